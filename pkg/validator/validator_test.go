package validator

import (
	"testing"

	pkgerrors "go-inventory-ledger/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	ID    uuid.UUID       `validate:"uuid_required"`
	Name  string          `validate:"required,min=2"`
	Price decimal.Decimal `validate:"gte=0"`
	Kind  string          `validate:"oneof=in out"`
}

type optionalPrice struct {
	Price *decimal.Decimal `validate:"omitempty,gte=0"`
}

func TestValidatePasses(t *testing.T) {
	err := Validate(sample{ID: uuid.New(), Name: "ok", Price: decimal.NewFromInt(3), Kind: "in"})
	assert.NoError(t, err)
}

func TestValidateCollectsFailures(t *testing.T) {
	errs := ValidateStruct(sample{Name: "x", Price: decimal.NewFromInt(-1), Kind: "sideways"})
	require.Len(t, errs, 4)

	tags := map[string]string{}
	for _, e := range errs {
		tags[e.FailedField] = e.Tag
	}
	assert.Equal(t, "uuid_required", tags["sample.ID"])
	assert.Equal(t, "min", tags["sample.Name"])
	assert.Equal(t, "gte", tags["sample.Price"])
	assert.Equal(t, "oneof", tags["sample.Kind"])
}

func TestValidateReturnsTypedError(t *testing.T) {
	err := Validate(sample{})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	assert.NotNil(t, pkgerrors.As(err).Details())
}

func TestOptionalDecimal(t *testing.T) {
	assert.NoError(t, Validate(optionalPrice{}))

	neg := decimal.NewFromFloat(-0.5)
	assert.Error(t, Validate(optionalPrice{Price: &neg}))

	pos := decimal.NewFromFloat(12.25)
	assert.NoError(t, Validate(optionalPrice{Price: &pos}))
}
