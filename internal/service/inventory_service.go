package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go-inventory-ledger/internal/lock"
	"go-inventory-ledger/internal/metrics"
	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/repository"
	"go-inventory-ledger/pkg/config"
	pkgerrors "go-inventory-ledger/pkg/errors"
	"go-inventory-ledger/pkg/logger"
	"go-inventory-ledger/pkg/pagination"
	"go-inventory-ledger/pkg/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	NoteInitialInventory = "Initial inventory"
	NoteProductEdit      = "Stock update from product edit"
)

type InventoryService interface {
	CreateProduct(ctx context.Context, in CreateProductInput) (*model.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, in UpdateProductInput) (*model.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error)
	ListProducts(ctx context.Context, filter repository.ProductFilter, page pagination.Params) ([]model.Product, int64, error)

	RecordMovement(ctx context.Context, in RecordMovementInput) (*model.Transaction, error)
	ApplyDirectQuantityEdit(ctx context.Context, productID uuid.UUID, newQuantity int, performedBy uuid.UUID) (*model.Transaction, error)
	ListTransactions(ctx context.Context, filter repository.TransactionFilter, page pagination.Params) ([]model.Transaction, int64, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
}

// ChangeNotifier is told after any committed stock or catalog change.
type ChangeNotifier interface {
	InventoryChanged(ctx context.Context)
}

type CreateProductInput struct {
	SKU         string          `json:"sku" validate:"required,max=64"`
	Name        string          `json:"name" validate:"required,min=2,max=255"`
	Description string          `json:"description" validate:"max=5000"`
	CategoryID  uuid.UUID       `json:"category_id" validate:"uuid_required"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	Cost        decimal.Decimal `json:"cost" validate:"gte=0"`
	Quantity    int             `json:"quantity" validate:"gte=0,lte=2147483647"`
	MinQuantity int             `json:"min_quantity" validate:"gte=0,lte=2147483647"`
	Supplier    model.Supplier  `json:"supplier"`
	Location    model.Location  `json:"location"`
	ImageURL    string          `json:"image_url" validate:"omitempty,url"`
	IsActive    *bool           `json:"is_active"`
	CreatedBy   uuid.UUID       `json:"-" validate:"uuid_required"`
}

// UpdateProductInput is a partial update; nil fields are left untouched. The SKU cannot change.
type UpdateProductInput struct {
	Name        *string          `json:"name" validate:"omitempty,min=2,max=255"`
	Description *string          `json:"description" validate:"omitempty,max=5000"`
	CategoryID  *uuid.UUID       `json:"category_id"`
	Price       *decimal.Decimal `json:"price" validate:"omitempty,gte=0"`
	Cost        *decimal.Decimal `json:"cost" validate:"omitempty,gte=0"`
	Quantity    *int             `json:"quantity" validate:"omitempty,gte=0,lte=2147483647"`
	MinQuantity *int             `json:"min_quantity" validate:"omitempty,gte=0,lte=2147483647"`
	Supplier    *model.Supplier  `json:"supplier"`
	Location    *model.Location  `json:"location"`
	ImageURL    *string          `json:"image_url" validate:"omitempty,url"`
	IsActive    *bool            `json:"is_active"`
	UpdatedBy   uuid.UUID        `json:"-" validate:"uuid_required"`
}

type RecordMovementInput struct {
	ProductID uuid.UUID             `json:"product_id" validate:"uuid_required"`
	Type      model.TransactionType `json:"type" validate:"required,oneof=in out adjustment purchase"`
	// Quantity is the size of the movement. Adjustments derive it from NewQuantity.
	Quantity    int       `json:"quantity" validate:"gte=0,lte=2147483647"`
	NewQuantity *int      `json:"new_quantity" validate:"omitempty,gte=0,lte=2147483647"`
	Notes       string    `json:"notes" validate:"max=1000"`
	Reference   string    `json:"reference" validate:"max=255"`
	PerformedBy uuid.UUID `json:"-" validate:"uuid_required"`
}

type InventoryDeps struct {
	TxManager    repository.TransactionManager
	Products     repository.ProductRepository
	Transactions repository.TransactionRepository
	Categories   repository.CategoryRepository
	Locker       lock.Locker
	Metrics      *metrics.LedgerMetrics
	Logger       *logger.Logger
	Notifier     ChangeNotifier
	Config       config.LedgerConfig
}

type inventoryService struct {
	tm         repository.TransactionManager
	products   repository.ProductRepository
	ledger     repository.TransactionRepository
	categories repository.CategoryRepository
	locker     lock.Locker
	metrics    *metrics.LedgerMetrics
	logg       *logger.Logger
	notifier   ChangeNotifier
	maxRetries int
}

func NewInventoryService(deps InventoryDeps) InventoryService {
	logg := deps.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	locker := deps.Locker
	if locker == nil {
		locker = lock.NewKeyedLocker(deps.Config.LockTimeout)
	}
	retries := deps.Config.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &inventoryService{
		tm:         deps.TxManager,
		products:   deps.Products,
		ledger:     deps.Transactions,
		categories: deps.Categories,
		locker:     locker,
		metrics:    deps.Metrics,
		logg:       logg,
		notifier:   deps.Notifier,
		maxRetries: retries,
	}
}

// RecordMovement validates a movement and commits the quantity change together with its
// ledger entry.
func (s *inventoryService) RecordMovement(ctx context.Context, in RecordMovementInput) (*model.Transaction, error) {
	if err := validateMovement(in); err != nil {
		s.metrics.IncRejected(string(pkgerrors.CodeOf(err)))
		return nil, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"product_id": in.ProductID.String(),
		"tx_type":    string(in.Type),
	})

	start := time.Now()
	var entry *model.Transaction
	err := s.runLocked(ctx, in.ProductID, func(txCtx context.Context) error {
		product, err := s.products.FindByIDForUpdate(txCtx, in.ProductID)
		if err != nil {
			return err
		}
		newQty, magnitude, err := nextQuantity(in.Type, product.Quantity, in.Quantity, in.NewQuantity)
		if err != nil {
			return err
		}
		entry, err = s.writeMovement(txCtx, product, in.Type, magnitude, newQty, in.Notes, in.Reference, in.PerformedBy)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	s.committed(ctx, entry, time.Since(start))
	return s.resolveEntry(ctx, entry)
}

// ApplyDirectQuantityEdit moves a product to newQuantity: increases are booked as purchase,
// decreases as out. An unchanged quantity writes nothing and returns a nil entry.
func (s *inventoryService) ApplyDirectQuantityEdit(ctx context.Context, productID uuid.UUID, newQuantity int, performedBy uuid.UUID) (*model.Transaction, error) {
	if newQuantity < 0 || newQuantity > model.MaxQuantity {
		return nil, validationError("quantity is out of range")
	}
	if performedBy == uuid.Nil {
		return nil, validationError("performer is required")
	}
	ctx = s.logg.WithField(ctx, "product_id", productID.String())

	start := time.Now()
	var entry *model.Transaction
	err := s.runLocked(ctx, productID, func(txCtx context.Context) error {
		product, err := s.products.FindByIDForUpdate(txCtx, productID)
		if err != nil {
			return err
		}
		entry, err = s.applyQuantityEdit(txCtx, product, newQuantity, performedBy)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	if entry == nil {
		return nil, nil
	}

	s.committed(ctx, entry, time.Since(start))
	return s.resolveEntry(ctx, entry)
}

func (s *inventoryService) CreateProduct(ctx context.Context, in CreateProductInput) (*model.Product, error) {
	if err := validator.Validate(in); err != nil {
		return nil, err
	}

	product := &model.Product{
		SKU:         strings.TrimSpace(in.SKU),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		CategoryID:  in.CategoryID,
		Price:       in.Price,
		Cost:        in.Cost,
		Quantity:    in.Quantity,
		MinQuantity: in.MinQuantity,
		Supplier:    in.Supplier,
		Location:    in.Location,
		ImageURL:    in.ImageURL,
		IsActive:    true,
		Version:     1,
		CreatedByID: in.CreatedBy,
	}
	if in.IsActive != nil {
		product.IsActive = *in.IsActive
	}
	if err := product.Validate(); err != nil {
		return nil, err
	}

	var initial *model.Transaction
	err := s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.categories.FindByID(txCtx, product.CategoryID); err != nil {
			if isNotFound(err) {
				return validationError("category does not exist")
			}
			return err
		}
		if _, err := s.products.FindBySKU(txCtx, product.SKU); err == nil {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "SKU %s already exists", product.SKU)
		} else if !isNotFound(err) {
			return err
		}

		if err := s.products.Create(txCtx, product); err != nil {
			return err
		}
		if product.Quantity == 0 {
			return nil
		}
		initial = &model.Transaction{
			ProductID:        product.ID,
			Type:             model.TxPurchase,
			Quantity:         product.Quantity,
			PreviousQuantity: 0,
			NewQuantity:      product.Quantity,
			Notes:            NoteInitialInventory,
			PerformedByID:    in.CreatedBy,
		}
		if err := initial.Reconcile(); err != nil {
			return err
		}
		return s.ledger.Create(txCtx, initial)
	})
	if err != nil {
		return nil, translate(err, "product not found")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"product_id": product.ID.String(), "sku": product.SKU})
	s.logg.Info(ctx, "product created")
	if initial != nil {
		s.metrics.ObserveMovement(string(initial.Type), initial.Quantity, 0)
	}
	s.notify(ctx)
	return s.GetProduct(ctx, product.ID)
}

func (s *inventoryService) UpdateProduct(ctx context.Context, id uuid.UUID, in UpdateProductInput) (*model.Product, error) {
	if err := validator.Validate(in); err != nil {
		return nil, err
	}
	ctx = s.logg.WithField(ctx, "product_id", id.String())

	var entry *model.Transaction
	err := s.runLocked(ctx, id, func(txCtx context.Context) error {
		entry = nil
		product, err := s.products.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}

		fields := applyProductPatch(product, in)
		if err := product.Validate(); err != nil {
			return err
		}
		if in.CategoryID != nil {
			if _, err := s.categories.FindByID(txCtx, *in.CategoryID); err != nil {
				if isNotFound(err) {
					return validationError("category does not exist")
				}
				return err
			}
		}
		if len(fields) > 0 {
			if err := s.products.Update(txCtx, id, fields); err != nil {
				return err
			}
		}

		if in.Quantity != nil {
			entry, err = s.applyQuantityEdit(txCtx, product, *in.Quantity, in.UpdatedBy)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	if entry != nil {
		s.committed(ctx, entry, 0)
	} else {
		s.notify(ctx)
	}
	s.logg.Info(ctx, "product updated")
	return s.GetProduct(ctx, id)
}

// DeleteProduct removes the product's ledger entries and then the product, in one transaction.
func (s *inventoryService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	ctx = s.logg.WithField(ctx, "product_id", id.String())

	var removed int64
	err := s.runLocked(ctx, id, func(txCtx context.Context) error {
		if _, err := s.products.FindByIDForUpdate(txCtx, id); err != nil {
			return err
		}
		n, err := s.ledger.DeleteByProduct(txCtx, id)
		if err != nil {
			return err
		}
		removed = n
		return s.products.Delete(txCtx, id)
	})
	if err != nil {
		return s.fail(ctx, err)
	}

	s.logg.Info(s.logg.WithField(ctx, "ledger_entries_removed", removed), "product deleted")
	s.notify(ctx)
	return nil
}

func (s *inventoryService) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "product not found")
	}
	return product, nil
}

func (s *inventoryService) ListProducts(ctx context.Context, filter repository.ProductFilter, page pagination.Params) ([]model.Product, int64, error) {
	products, total, err := s.products.List(ctx, filter, page)
	if err != nil {
		return nil, 0, translate(err, "")
	}
	return products, total, nil
}

func (s *inventoryService) ListTransactions(ctx context.Context, filter repository.TransactionFilter, page pagination.Params) ([]model.Transaction, int64, error) {
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, 0, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown transaction type %q", filter.Type)
	}
	entries, total, err := s.ledger.List(ctx, filter, page)
	if err != nil {
		return nil, 0, translate(err, "")
	}
	return entries, total, nil
}

func (s *inventoryService) GetTransaction(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	entry, err := s.ledger.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "transaction not found")
	}
	return entry, nil
}

// runLocked serializes fn per product and runs it in a transaction. A version conflict rolls
// the transaction back and re-runs fn from a fresh read, at most maxRetries times.
func (s *inventoryService) runLocked(ctx context.Context, productID uuid.UUID, fn func(txCtx context.Context) error) error {
	release, err := s.locker.Acquire(ctx, lock.ProductKey(productID))
	if err != nil {
		return err
	}
	defer release()

	for attempt := 0; ; attempt++ {
		err = s.tm.RunInTx(ctx, fn)
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
		s.metrics.IncConflict()
		if attempt >= s.maxRetries {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product was modified concurrently, try again")
		}
		s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt+1), "version conflict on product, retrying")
	}
}

func (s *inventoryService) applyQuantityEdit(txCtx context.Context, product *model.Product, newQuantity int, performedBy uuid.UUID) (*model.Transaction, error) {
	if newQuantity < 0 {
		return nil, validationError("quantity cannot be negative")
	}
	if newQuantity > model.MaxQuantity {
		return nil, validationError("quantity is out of range")
	}
	previous := product.Quantity
	if newQuantity == previous {
		return nil, nil
	}
	txType, magnitude := model.TxPurchase, newQuantity-previous
	if newQuantity < previous {
		txType, magnitude = model.TxOut, previous-newQuantity
	}
	return s.writeMovement(txCtx, product, txType, magnitude, newQuantity, NoteProductEdit, "", performedBy)
}

// writeMovement persists the new quantity under the version read earlier and appends the entry.
func (s *inventoryService) writeMovement(txCtx context.Context, product *model.Product, txType model.TransactionType, magnitude, newQuantity int, notes, reference string, performedBy uuid.UUID) (*model.Transaction, error) {
	entry := &model.Transaction{
		ProductID:        product.ID,
		Type:             txType,
		Quantity:         magnitude,
		PreviousQuantity: product.Quantity,
		NewQuantity:      newQuantity,
		Notes:            strings.TrimSpace(notes),
		Reference:        strings.TrimSpace(reference),
		PerformedByID:    performedBy,
	}
	if err := entry.Reconcile(); err != nil {
		return nil, err
	}
	if err := s.products.UpdateQuantity(txCtx, product.ID, product.Version, newQuantity); err != nil {
		return nil, err
	}
	if err := s.ledger.Create(txCtx, entry); err != nil {
		return nil, err
	}
	product.Quantity = newQuantity
	product.Version++
	return entry, nil
}

// nextQuantity computes the post-movement quantity and the movement size.
func nextQuantity(txType model.TransactionType, previous, quantity int, target *int) (int, int, error) {
	switch txType {
	case model.TxIn, model.TxPurchase:
		if quantity > model.MaxQuantity-previous {
			return 0, 0, pkgerrors.Newf(pkgerrors.CodeValidation,
				"quantity out of range: %d + %d exceeds %d", previous, quantity, model.MaxQuantity).
				WithDetails(map[string]int{"previous": previous, "requested": quantity, "max": model.MaxQuantity})
		}
		return previous + quantity, quantity, nil
	case model.TxOut:
		if quantity > previous {
			return 0, 0, pkgerrors.Newf(pkgerrors.CodeInsufficientStock,
				"insufficient stock: requested %d, available %d", quantity, previous).
				WithDetails(map[string]int{"requested": quantity, "available": previous})
		}
		return previous - quantity, quantity, nil
	case model.TxAdjustment:
		if target == nil {
			return 0, 0, validationError("new_quantity is required for adjustment")
		}
		if *target < 0 || *target > model.MaxQuantity {
			return 0, 0, validationError("new_quantity is out of range")
		}
		delta := *target - previous
		if delta < 0 {
			delta = -delta
		}
		if delta == 0 {
			return 0, 0, validationError("adjustment does not change the quantity")
		}
		return *target, delta, nil
	}
	return 0, 0, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown transaction type %q", txType)
}

func validateMovement(in RecordMovementInput) error {
	if err := validator.Validate(in); err != nil {
		return err
	}
	if in.Type == model.TxAdjustment {
		if in.NewQuantity == nil {
			return validationError("new_quantity is required for adjustment")
		}
		return nil
	}
	if in.NewQuantity != nil {
		return validationError("new_quantity only applies to adjustment")
	}
	if in.Quantity <= 0 {
		return validationError("quantity must be greater than 0")
	}
	return nil
}

func applyProductPatch(product *model.Product, in UpdateProductInput) map[string]interface{} {
	fields := map[string]interface{}{}
	if in.Name != nil {
		product.Name = strings.TrimSpace(*in.Name)
		fields["name"] = product.Name
	}
	if in.Description != nil {
		product.Description = strings.TrimSpace(*in.Description)
		fields["description"] = product.Description
	}
	if in.CategoryID != nil {
		product.CategoryID = *in.CategoryID
		fields["category_id"] = product.CategoryID
	}
	if in.Price != nil {
		product.Price = *in.Price
		fields["price"] = product.Price
	}
	if in.Cost != nil {
		product.Cost = *in.Cost
		fields["cost"] = product.Cost
	}
	if in.MinQuantity != nil {
		product.MinQuantity = *in.MinQuantity
		fields["min_quantity"] = product.MinQuantity
	}
	if in.Supplier != nil {
		product.Supplier = *in.Supplier
		fields["supplier_name"] = in.Supplier.Name
		fields["supplier_contact"] = in.Supplier.Contact
		fields["supplier_email"] = in.Supplier.Email
		fields["supplier_phone"] = in.Supplier.Phone
	}
	if in.Location != nil {
		product.Location = *in.Location
		fields["location_warehouse"] = in.Location.Warehouse
		fields["location_shelf"] = in.Location.Shelf
		fields["location_bin"] = in.Location.Bin
	}
	if in.ImageURL != nil {
		product.ImageURL = *in.ImageURL
		fields["image_url"] = product.ImageURL
	}
	if in.IsActive != nil {
		product.IsActive = *in.IsActive
		fields["is_active"] = product.IsActive
	}
	if len(fields) > 0 {
		fields["updated_at"] = time.Now().UTC()
	}
	return fields
}

func (s *inventoryService) resolveEntry(ctx context.Context, entry *model.Transaction) (*model.Transaction, error) {
	resolved, err := s.ledger.FindByID(ctx, entry.ID)
	if err != nil {
		// Already committed; hand back what we wrote.
		s.logg.Warn(ctx, "could not resolve committed ledger entry")
		return entry, nil
	}
	return resolved, nil
}

func (s *inventoryService) committed(ctx context.Context, entry *model.Transaction, took time.Duration) {
	s.metrics.ObserveMovement(string(entry.Type), entry.Quantity, took)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"transaction_id":    entry.ID.String(),
		"tx_type":           string(entry.Type),
		"quantity":          entry.Quantity,
		"previous_quantity": entry.PreviousQuantity,
		"new_quantity":      entry.NewQuantity,
	}), "stock movement committed")
	s.notify(ctx)
}

func (s *inventoryService) fail(ctx context.Context, err error) error {
	typed := translate(err, "product not found")
	code := pkgerrors.CodeOf(typed)
	s.metrics.IncRejected(string(code))
	if pkgerrors.MetadataFor(code).HTTPStatus >= 500 {
		s.logg.Error(ctx, "inventory operation failed", err)
	} else {
		s.logg.Debug(s.logg.WithField(ctx, "code", string(code)), typed.Error())
	}
	return typed
}

func (s *inventoryService) notify(ctx context.Context) {
	if s.notifier != nil {
		s.notifier.InventoryChanged(ctx)
	}
}
