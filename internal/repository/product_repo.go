package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrVersionConflict means the row changed between read and conditional write.
var ErrVersionConflict = errors.New("product version conflict")

type ProductFilter struct {
	CategoryID *uuid.UUID
	Status     model.StockStatus
	Active     *bool
}

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindBySKU(ctx context.Context, sku string) (*model.Product, error)
	List(ctx context.Context, filter ProductFilter, page pagination.Params) ([]model.Product, int64, error)
	Search(ctx context.Context, query string, limit int) ([]model.Product, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	UpdateQuantity(ctx context.Context, id uuid.UUID, expectedVersion int64, quantity int) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error)

	LowStock(ctx context.Context, limit int) ([]model.Product, error)
	Count(ctx context.Context) (int64, error)
	CountOutOfStock(ctx context.Context) (int64, error)
	TotalValue(ctx context.Context) (decimal.Decimal, error)
	TopByQuantity(ctx context.Context, limit int) ([]model.Product, error)
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db}
}

func (r *productRepo) Create(ctx context.Context, product *model.Product) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(product).Error
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	err := GetDB(ctx, r.db).Preload("Category").Preload("Creator").First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDForUpdate takes a row lock on drivers that support it. Must run inside RunInTx.
func (r *productRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) FindBySKU(ctx context.Context, sku string) (*model.Product, error) {
	var product model.Product
	if err := GetDB(ctx, r.db).First(&product, "sku = ?", sku).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) List(ctx context.Context, filter ProductFilter, page pagination.Params) ([]model.Product, int64, error) {
	query := GetDB(ctx, r.db).Model(&model.Product{})
	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.Active != nil {
		query = query.Where("is_active = ?", *filter.Active)
	}
	switch filter.Status {
	case model.StockStatusOutOfStock:
		query = query.Where("quantity <= 0")
	case model.StockStatusLowStock:
		query = query.Where("quantity > 0 AND quantity <= min_quantity")
	case model.StockStatusInStock:
		query = query.Where("quantity > min_quantity")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var products []model.Product
	err := query.Preload("Category").Preload("Creator").
		Order("created_at DESC").
		Limit(page.Limit).Offset(page.Offset).
		Find(&products).Error
	return products, total, err
}

// Search matches name, SKU and description case-insensitively. Wildcards in query are literal.
func (r *productRepo) Search(ctx context.Context, query string, limit int) ([]model.Product, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	var products []model.Product
	err := GetDB(ctx, r.db).Preload("Category").
		Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(sku) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\'`,
			pattern, pattern, pattern).
		Order("name ASC").
		Limit(limit).
		Find(&products).Error
	return products, err
}

func (r *productRepo) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	res := GetDB(ctx, r.db).Model(&model.Product{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateQuantity writes quantity only if the row still carries expectedVersion, then bumps it.
func (r *productRepo) UpdateQuantity(ctx context.Context, id uuid.UUID, expectedVersion int64, quantity int) error {
	res := GetDB(ctx, r.db).Model(&model.Product{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"quantity":   quantity,
			"version":    expectedVersion + 1,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *productRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res := GetDB(ctx, r.db).Delete(&model.Product{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *productRepo) CountByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Product{}).Where("category_id = ?", categoryID).Count(&count).Error
	return count, err
}

func (r *productRepo) LowStock(ctx context.Context, limit int) ([]model.Product, error) {
	var products []model.Product
	err := GetDB(ctx, r.db).Preload("Category").
		Where("quantity <= min_quantity").
		Order("quantity ASC, name ASC").
		Limit(limit).
		Find(&products).Error
	return products, err
}

func (r *productRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Product{}).Count(&count).Error
	return count, err
}

func (r *productRepo) CountOutOfStock(ctx context.Context) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Product{}).Where("quantity = 0").Count(&count).Error
	return count, err
}

// TotalValue sums quantity * price over every product.
func (r *productRepo) TotalValue(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := GetDB(ctx, r.db).Model(&model.Product{}).
		Select("COALESCE(SUM(quantity * price), 0)").
		Row().
		Scan(&total)
	return total, err
}

func (r *productRepo) TopByQuantity(ctx context.Context, limit int) ([]model.Product, error) {
	var products []model.Product
	err := GetDB(ctx, r.db).
		Order("quantity DESC, name ASC").
		Limit(limit).
		Find(&products).Error
	return products, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
