package model

import (
	"fmt"
	"time"

	pkgerrors "go-inventory-ledger/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TxIn         TransactionType = "in"
	TxOut        TransactionType = "out"
	TxAdjustment TransactionType = "adjustment"
	TxPurchase   TransactionType = "purchase"
)

var TransactionTypes = []TransactionType{TxIn, TxOut, TxAdjustment, TxPurchase}

func (t TransactionType) IsValid() bool {
	switch t {
	case TxIn, TxOut, TxAdjustment, TxPurchase:
		return true
	}
	return false
}

// Increases reports whether the type adds its quantity to stock.
func (t TransactionType) Increases() bool {
	return t == TxIn || t == TxPurchase
}

// Transaction is one immutable ledger entry. Rows are only removed together with their product.
type Transaction struct {
	BaseModel
	ProductID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_transactions_product_date,priority:1" json:"product_id"`
	Product          *Product        `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Type             TransactionType `gorm:"type:varchar(20);not null;index" json:"type"`
	Quantity         int             `gorm:"not null" json:"quantity"`
	PreviousQuantity int             `gorm:"not null" json:"previous_quantity"`
	NewQuantity      int             `gorm:"not null" json:"new_quantity"`
	Notes            string          `gorm:"type:text" json:"notes"`
	Reference        string          `gorm:"type:varchar(255)" json:"reference,omitempty"`
	PerformedByID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"performed_by_id"`
	Performer        *User           `gorm:"foreignKey:PerformedByID" json:"performer,omitempty"`
	Date             time.Time       `gorm:"not null;index:idx_transactions_product_date,priority:2,sort:desc" json:"date"`
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.Date.IsZero() {
		t.Date = time.Now().UTC()
	}
	return t.BaseModel.BeforeCreate(tx)
}

// Reconcile verifies the entry's arithmetic against its type.
func (t *Transaction) Reconcile() error {
	if !t.Type.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unknown transaction type %q", t.Type)
	}
	if t.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than 0")
	}
	if t.PreviousQuantity < 0 || t.NewQuantity < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "previous and new quantity cannot be negative")
	}

	var want int
	switch t.Type {
	case TxIn, TxPurchase:
		want = t.PreviousQuantity + t.Quantity
	case TxOut:
		want = t.PreviousQuantity - t.Quantity
	case TxAdjustment:
		return nil
	}
	if t.NewQuantity != want {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("%s entry does not reconcile: %d -> %d by %d", t.Type, t.PreviousQuantity, t.NewQuantity, t.Quantity))
	}
	return nil
}

type TransactionResponse struct {
	ID               uuid.UUID       `json:"id"`
	ProductID        uuid.UUID       `json:"product_id"`
	Product          *ProductSummary `json:"product,omitempty"`
	Type             TransactionType `json:"type"`
	Quantity         int             `json:"quantity"`
	PreviousQuantity int             `json:"previous_quantity"`
	NewQuantity      int             `json:"new_quantity"`
	Notes            string          `json:"notes"`
	Reference        string          `json:"reference,omitempty"`
	PerformedByID    uuid.UUID       `json:"performed_by_id"`
	PerformedBy      *UserSummary    `json:"performed_by,omitempty"`
	Date             time.Time       `json:"date"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (t *Transaction) ToResponse() TransactionResponse {
	resp := TransactionResponse{
		ID:               t.ID,
		ProductID:        t.ProductID,
		Type:             t.Type,
		Quantity:         t.Quantity,
		PreviousQuantity: t.PreviousQuantity,
		NewQuantity:      t.NewQuantity,
		Notes:            t.Notes,
		Reference:        t.Reference,
		PerformedByID:    t.PerformedByID,
		Date:             t.Date,
		CreatedAt:        t.CreatedAt,
	}
	if t.Product != nil {
		product := t.Product.ToSummary()
		resp.Product = &product
	}
	if t.Performer != nil {
		performer := t.Performer.ToSummary()
		resp.PerformedBy = &performer
	}
	return resp
}

func TransactionResponses(entries []Transaction) []TransactionResponse {
	out := make([]TransactionResponse, len(entries))
	for i := range entries {
		out[i] = entries[i].ToResponse()
	}
	return out
}
