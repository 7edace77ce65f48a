package model

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	pkgerrors "go-inventory-ledger/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type StockStatus string

const (
	StockStatusOutOfStock StockStatus = "out_of_stock"
	StockStatusLowStock   StockStatus = "low_stock"
	StockStatusInStock    StockStatus = "in_stock"
)

const MinProductNameLength = 2

// MaxQuantity is the largest stock level the INTEGER quantity columns can hold.
const MaxQuantity = math.MaxInt32

type Supplier struct {
	Name    string `gorm:"type:varchar(255)" json:"name,omitempty"`
	Contact string `gorm:"type:varchar(255)" json:"contact,omitempty"`
	Email   string `gorm:"type:varchar(255)" json:"email,omitempty"`
	Phone   string `gorm:"type:varchar(50)" json:"phone,omitempty"`
}

type Location struct {
	Warehouse string `gorm:"type:varchar(100)" json:"warehouse,omitempty"`
	Shelf     string `gorm:"type:varchar(50)" json:"shelf,omitempty"`
	Bin       string `gorm:"type:varchar(50)" json:"bin,omitempty"`
}

type Product struct {
	BaseModel
	SKU         string          `gorm:"type:varchar(64);uniqueIndex;not null;<-:create" json:"sku"`
	Name        string          `gorm:"type:varchar(255);not null;index" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	CategoryID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"category_id"`
	Category    *Category       `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Price       decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"price"`
	Cost        decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"cost"`
	Quantity    int             `gorm:"not null;default:0;check:chk_products_quantity,quantity >= 0" json:"quantity"`
	MinQuantity int             `gorm:"not null;default:0" json:"min_quantity"`
	Supplier    Supplier        `gorm:"embedded;embeddedPrefix:supplier_" json:"supplier"`
	Location    Location        `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	ImageURL    string          `gorm:"type:varchar(500)" json:"image_url,omitempty"`
	IsActive    bool            `gorm:"not null;index" json:"is_active"`

	// Bumped on every quantity write; guards the read-compute-write cycle.
	Version int64 `gorm:"not null" json:"version"`

	CreatedByID uuid.UUID `gorm:"type:uuid;not null;index" json:"created_by_id"`
	Creator     *User     `gorm:"foreignKey:CreatedByID" json:"creator,omitempty"`
}

// ProfitMargin is (price - cost) / price * 100, or 0 for a zero price.
func (p *Product) ProfitMargin() decimal.Decimal {
	if p.Price.IsZero() {
		return decimal.Zero
	}
	return p.Price.Sub(p.Cost).Div(p.Price).Mul(decimal.NewFromInt(100)).Round(2)
}

func (p *Product) StockStatus() StockStatus {
	return StockStatusFor(p.Quantity, p.MinQuantity)
}

func StockStatusFor(quantity, minQuantity int) StockStatus {
	switch {
	case quantity <= 0:
		return StockStatusOutOfStock
	case quantity <= minQuantity:
		return StockStatusLowStock
	default:
		return StockStatusInStock
	}
}

// Value is the stock valuation of this product (quantity * price).
func (p *Product) Value() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// Validate checks the field rules that must hold before any write.
func (p *Product) Validate() error {
	var problems []string
	if strings.TrimSpace(p.SKU) == "" {
		problems = append(problems, "sku is required")
	}
	if utf8.RuneCountInString(strings.TrimSpace(p.Name)) < MinProductNameLength {
		problems = append(problems, "name must be at least 2 characters long")
	}
	if p.CategoryID == uuid.Nil {
		problems = append(problems, "category is required")
	}
	if p.Price.IsNegative() {
		problems = append(problems, "price cannot be negative")
	}
	if p.Cost.IsNegative() {
		problems = append(problems, "cost cannot be negative")
	}
	if p.Quantity < 0 {
		problems = append(problems, "quantity cannot be negative")
	}
	if p.Quantity > MaxQuantity {
		problems = append(problems, "quantity is out of range")
	}
	if p.MinQuantity < 0 {
		problems = append(problems, "minimum quantity cannot be negative")
	}
	if p.MinQuantity > MaxQuantity {
		problems = append(problems, "minimum quantity is out of range")
	}
	if len(problems) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, strings.Join(problems, "; ")).WithDetails(problems)
	}
	return nil
}

// ProductResponse carries the stored fields plus the derived ones.
type ProductResponse struct {
	ID           uuid.UUID         `json:"id"`
	SKU          string            `json:"sku"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	CategoryID   uuid.UUID         `json:"category_id"`
	Category     *CategoryResponse `json:"category,omitempty"`
	Price        decimal.Decimal   `json:"price"`
	Cost         decimal.Decimal   `json:"cost"`
	Quantity     int               `json:"quantity"`
	MinQuantity  int               `json:"min_quantity"`
	Supplier     Supplier          `json:"supplier"`
	Location     Location          `json:"location"`
	ImageURL     string            `json:"image_url,omitempty"`
	IsActive     bool              `json:"is_active"`
	ProfitMargin decimal.Decimal   `json:"profit_margin"`
	StockStatus  StockStatus       `json:"stock_status"`
	CreatedByID  uuid.UUID         `json:"created_by_id"`
	CreatedBy    *UserSummary      `json:"created_by,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (p *Product) ToResponse() ProductResponse {
	resp := ProductResponse{
		ID:           p.ID,
		SKU:          p.SKU,
		Name:         p.Name,
		Description:  p.Description,
		CategoryID:   p.CategoryID,
		Price:        p.Price,
		Cost:         p.Cost,
		Quantity:     p.Quantity,
		MinQuantity:  p.MinQuantity,
		Supplier:     p.Supplier,
		Location:     p.Location,
		ImageURL:     p.ImageURL,
		IsActive:     p.IsActive,
		ProfitMargin: p.ProfitMargin(),
		StockStatus:  p.StockStatus(),
		CreatedByID:  p.CreatedByID,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if p.Category != nil {
		category := p.Category.ToResponse()
		resp.Category = &category
	}
	if p.Creator != nil {
		creator := p.Creator.ToSummary()
		resp.CreatedBy = &creator
	}
	return resp
}

func ProductResponses(products []Product) []ProductResponse {
	out := make([]ProductResponse, len(products))
	for i := range products {
		out[i] = products[i].ToResponse()
	}
	return out
}

// ProductSummary is the slim product view embedded in ledger entries.
type ProductSummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	SKU  string    `json:"sku"`
}

func (p *Product) ToSummary() ProductSummary {
	return ProductSummary{ID: p.ID, Name: p.Name, SKU: p.SKU}
}
