package handler

import (
	"go-inventory-ledger/internal/middleware"
	"go-inventory-ledger/internal/model"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Auth      *AuthHandler
	Inventory *InventoryHandler
	Category  *CategoryHandler
	Dashboard *DashboardHandler
	User      *UserHandler
}

// RegisterRoutes mounts the API under /api/v1. requireAuth guards every non-auth route.
func RegisterRoutes(app fiber.Router, h Handlers, requireAuth fiber.Handler) {
	api := app.Group("/api/v1")
	priv := middleware.RequirePrivilege

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/login", h.Auth.Login)
	auth.Post("/register", h.Auth.Register)
	auth.Get("/me", requireAuth, h.Auth.Me)

	// ============ PROTECTED ROUTES ============
	protected := api.Group("", requireAuth)

	protected.Get("/dashboard", priv(model.PrivDashboardView), h.Dashboard.GetDashboard)
	protected.Get("/dashboard/stock-movement", priv(model.PrivDashboardView), h.Dashboard.GetStockMovement)

	protected.Get("/products", priv(model.PrivProductView), h.Inventory.GetProducts)
	protected.Get("/products/search/:query", priv(model.PrivProductView), h.Inventory.SearchProducts)
	protected.Get("/products/:id", priv(model.PrivProductView), h.Inventory.GetProduct)
	protected.Post("/products", priv(model.PrivProductCreate), h.Inventory.CreateProduct)
	protected.Put("/products/:id", priv(model.PrivProductUpdate), h.Inventory.UpdateProduct)
	protected.Delete("/products/:id", priv(model.PrivProductDelete), h.Inventory.DeleteProduct)

	protected.Get("/transactions", priv(model.PrivTransactionView), h.Inventory.GetTransactions)
	protected.Get("/transactions/product/:productId", priv(model.PrivTransactionView), h.Inventory.GetProductTransactions)
	protected.Get("/transactions/:id", priv(model.PrivTransactionView), h.Inventory.GetTransaction)
	protected.Post("/transactions", priv(model.PrivTransactionCreate), h.Inventory.CreateTransaction)

	protected.Get("/categories", priv(model.PrivCategoryView), h.Category.GetCategories)
	protected.Get("/categories/:id", priv(model.PrivCategoryView), h.Category.GetCategory)
	protected.Post("/categories", priv(model.PrivCategoryManage), h.Category.CreateCategory)
	protected.Put("/categories/:id", priv(model.PrivCategoryManage), h.Category.UpdateCategory)
	protected.Delete("/categories/:id", priv(model.PrivCategoryDelete), h.Category.DeleteCategory)

	protected.Get("/users", priv(model.PrivUserView), h.User.GetUsers)
	protected.Get("/users/:id", priv(model.PrivUserView), h.User.GetUser)
	protected.Post("/users", priv(model.PrivUserCreate), h.User.CreateUser)
	protected.Put("/users/:id", priv(model.PrivUserUpdate), h.User.UpdateUser)
	protected.Patch("/users/:id/toggle-status", priv(model.PrivUserUpdate), h.User.ToggleStatus)
	protected.Delete("/users/:id", priv(model.PrivUserUpdate), h.User.DeleteUser)
}
