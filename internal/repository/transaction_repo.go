package repository

import (
	"context"
	"time"

	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransactionFilter struct {
	ProductID *uuid.UUID
	Type      model.TransactionType
	From      *time.Time
	To        *time.Time
	// Before is an exclusive upper bound on the entry date.
	Before *time.Time
}

type TransactionRepository interface {
	Create(ctx context.Context, entry *model.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	List(ctx context.Context, filter TransactionFilter, page pagination.Params) ([]model.Transaction, int64, error)
	Latest(ctx context.Context, productID uuid.UUID) (*model.Transaction, error)
	DeleteByProduct(ctx context.Context, productID uuid.UUID) (int64, error)
	Recent(ctx context.Context, limit int) ([]model.Transaction, error)
	CountByType(ctx context.Context) ([]TypeCount, error)
	StockMovement(ctx context.Context, startDate, endDate time.Time) ([]StockMovementData, error)
}

// StockMovementData untuk chart data
type StockMovementData struct {
	Date     string `json:"date"`
	Inbound  int    `json:"inbound"`
	Outbound int    `json:"outbound"`
}

type TypeCount struct {
	Type  model.TransactionType `json:"type"`
	Count int64                 `json:"count"`
}

type transactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) TransactionRepository {
	return &transactionRepo{db}
}

func (r *transactionRepo) Create(ctx context.Context, entry *model.Transaction) error {
	return GetDB(ctx, r.db).Omit("Product", "Performer").Create(entry).Error
}

func (r *transactionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	var entry model.Transaction
	err := GetDB(ctx, r.db).Preload("Product").Preload("Performer").First(&entry, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns ledger entries newest first.
func (r *transactionRepo) List(ctx context.Context, filter TransactionFilter, page pagination.Params) ([]model.Transaction, int64, error) {
	query := GetDB(ctx, r.db).Model(&model.Transaction{})
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.From != nil {
		query = query.Where("date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("date <= ?", *filter.To)
	}
	if filter.Before != nil {
		query = query.Where("date < ?", *filter.Before)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []model.Transaction
	err := query.Preload("Product").Preload("Performer").
		Order("date DESC, created_at DESC").
		Limit(page.Limit).Offset(page.Offset).
		Find(&entries).Error
	return entries, total, err
}

// Latest returns the most recent entry for a product, or gorm.ErrRecordNotFound.
func (r *transactionRepo) Latest(ctx context.Context, productID uuid.UUID) (*model.Transaction, error) {
	var entry model.Transaction
	err := GetDB(ctx, r.db).
		Where("product_id = ?", productID).
		Order("date DESC, created_at DESC").
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *transactionRepo) DeleteByProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	res := GetDB(ctx, r.db).Where("product_id = ?", productID).Delete(&model.Transaction{})
	return res.RowsAffected, res.Error
}

func (r *transactionRepo) Recent(ctx context.Context, limit int) ([]model.Transaction, error) {
	var entries []model.Transaction
	err := GetDB(ctx, r.db).Preload("Product").Preload("Performer").
		Order("date DESC, created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *transactionRepo) CountByType(ctx context.Context) ([]TypeCount, error) {
	var counts []TypeCount
	err := GetDB(ctx, r.db).Model(&model.Transaction{}).
		Select("type, COUNT(*) AS count").
		Group("type").
		Order("type ASC").
		Scan(&counts).Error
	return counts, err
}

// StockMovement aggregates inbound (in, purchase) and outbound (out) units per day.
// Adjustments carry no direction and are left out.
func (r *transactionRepo) StockMovement(ctx context.Context, startDate, endDate time.Time) ([]StockMovementData, error) {
	rows, err := GetDB(ctx, r.db).Model(&model.Transaction{}).
		Select(`
			CAST(DATE(date) AS TEXT) AS day,
			COALESCE(SUM(CASE WHEN type IN (?, ?) THEN quantity ELSE 0 END), 0) AS inbound,
			COALESCE(SUM(CASE WHEN type = ? THEN quantity ELSE 0 END), 0) AS outbound
		`, model.TxIn, model.TxPurchase, model.TxOut).
		Where("date BETWEEN ? AND ?", startDate, endDate).
		Group("DATE(date)").
		Order("day ASC").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []StockMovementData{}
	for rows.Next() {
		var data StockMovementData
		if err := rows.Scan(&data.Date, &data.Inbound, &data.Outbound); err != nil {
			return nil, err
		}
		results = append(results, data)
	}
	return results, rows.Err()
}
