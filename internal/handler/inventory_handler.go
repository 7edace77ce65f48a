package handler

import (
	"net/url"
	"strconv"
	"time"

	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/repository"
	"go-inventory-ledger/internal/service"
	"go-inventory-ledger/pkg/pagination"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type InventoryHandler struct {
	service service.InventoryService
	reports service.ReportService
}

func NewInventoryHandler(s service.InventoryService, reports service.ReportService) *InventoryHandler {
	return &InventoryHandler{service: s, reports: reports}
}

// CreateProduct
// POST /api/v1/products
func (h *InventoryHandler) CreateProduct(c *fiber.Ctx) error {
	var req service.CreateProductInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	userID, err := currentUserID(c)
	if err != nil {
		return writeError(c, err)
	}
	req.CreatedBy = userID

	product, err := h.service.CreateProduct(c.UserContext(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Product created", "data": product.ToResponse()})
}

// UpdateProduct applies a partial update. A changed quantity is booked in the ledger.
// PUT /api/v1/products/:id
func (h *InventoryHandler) UpdateProduct(c *fiber.Ctx) error {
	productID, err := parseID(c, "id", "product")
	if err != nil {
		return writeError(c, err)
	}
	var req service.UpdateProductInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	userID, err := currentUserID(c)
	if err != nil {
		return writeError(c, err)
	}
	req.UpdatedBy = userID

	updated, err := h.service.UpdateProduct(c.UserContext(), productID, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Product updated", "data": updated.ToResponse()})
}

// DeleteProduct
// DELETE /api/v1/products/:id
func (h *InventoryHandler) DeleteProduct(c *fiber.Ctx) error {
	productID, err := parseID(c, "id", "product")
	if err != nil {
		return writeError(c, err)
	}
	if err := h.service.DeleteProduct(c.UserContext(), productID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Product deleted"})
}

func (h *InventoryHandler) GetProduct(c *fiber.Ctx) error {
	productID, err := parseID(c, "id", "product")
	if err != nil {
		return writeError(c, err)
	}
	product, err := h.service.GetProduct(c.UserContext(), productID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(product.ToResponse())
}

// GetProducts lists products. Query: page, limit, category_id, status, active.
func (h *InventoryHandler) GetProducts(c *fiber.Ctx) error {
	var filter repository.ProductFilter
	if raw := c.Query("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "invalid category_id")
		}
		filter.CategoryID = &id
	}
	if raw := c.Query("status"); raw != "" {
		status := model.StockStatus(raw)
		switch status {
		case model.StockStatusInStock, model.StockStatusLowStock, model.StockStatusOutOfStock:
			filter.Status = status
		default:
			return badRequest(c, "invalid status")
		}
	}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "invalid active flag")
		}
		filter.Active = &active
	}

	page := pagination.Parse(c)
	products, total, err := h.service.ListProducts(c.UserContext(), filter, page)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(pagination.NewPage(model.ProductResponses(products), total, page))
}

// SearchProducts
// GET /api/v1/products/search/:query
func (h *InventoryHandler) SearchProducts(c *fiber.Ctx) error {
	query, err := url.PathUnescape(c.Params("query"))
	if err != nil {
		return badRequest(c, "invalid search query")
	}
	products, err := h.reports.SearchProducts(c.UserContext(), query)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(model.ProductResponses(products))
}

// CreateTransaction records a stock movement.
// POST /api/v1/transactions
func (h *InventoryHandler) CreateTransaction(c *fiber.Ctx) error {
	var req service.RecordMovementInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	userID, err := currentUserID(c)
	if err != nil {
		return writeError(c, err)
	}
	req.PerformedBy = userID

	entry, err := h.service.RecordMovement(c.UserContext(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Transaction recorded", "data": entry.ToResponse()})
}

// GetTransactions lists ledger entries newest first. Query: page, limit, type, product_id, from, to.
func (h *InventoryHandler) GetTransactions(c *fiber.Ctx) error {
	var filter repository.TransactionFilter
	if raw := c.Query("product_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "invalid product_id")
		}
		filter.ProductID = &id
	}
	return h.listTransactions(c, filter)
}

// GetProductTransactions
// GET /api/v1/transactions/product/:productId
func (h *InventoryHandler) GetProductTransactions(c *fiber.Ctx) error {
	productID, err := parseID(c, "productId", "product")
	if err != nil {
		return writeError(c, err)
	}
	return h.listTransactions(c, repository.TransactionFilter{ProductID: &productID})
}

func (h *InventoryHandler) listTransactions(c *fiber.Ctx, filter repository.TransactionFilter) error {
	filter.Type = model.TransactionType(c.Query("type"))
	if raw := c.Query("from"); raw != "" {
		from, _, err := parseDate(raw)
		if err != nil {
			return badRequest(c, "invalid from date, use YYYY-MM-DD or RFC3339")
		}
		filter.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, dateOnly, err := parseDate(raw)
		if err != nil {
			return badRequest(c, "invalid to date, use YYYY-MM-DD or RFC3339")
		}
		if dateOnly {
			// A bare date covers that whole day.
			before := to.AddDate(0, 0, 1)
			filter.Before = &before
		} else {
			filter.To = &to
		}
	}

	page := pagination.Parse(c)
	entries, total, err := h.service.ListTransactions(c.UserContext(), filter, page)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(pagination.NewPage(model.TransactionResponses(entries), total, page))
}

func (h *InventoryHandler) GetTransaction(c *fiber.Ctx) error {
	txID, err := parseID(c, "id", "transaction")
	if err != nil {
		return writeError(c, err)
	}
	entry, err := h.service.GetTransaction(c.UserContext(), txID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(entry.ToResponse())
}

// parseDate accepts RFC3339 or YYYY-MM-DD and reports whether the value was a bare date.
func parseDate(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, false, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	return t, true, err
}
