package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ingredient quantities are exact decimals; available quantity never goes
// negative. A reservation that would drive it negative is rejected, not
// clamped.
type Ingredient struct {
	ID           uuid.UUID
	Name         string
	Description  string
	Quantity     decimal.Decimal
	Unit         string
	Price        decimal.Decimal
	Supplier     string
	MinimumStock decimal.Decimal
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func NewIngredient(name, description string, quantity decimal.Decimal, unit, supplier string, minimumStock decimal.Decimal) (Ingredient, error) {
	if name == "" {
		return Ingredient{}, ErrIngredientName
	}
	if quantity.IsNegative() {
		return Ingredient{}, ErrNegativeQuantity
	}
	if unit == "" {
		return Ingredient{}, ErrMissingUnit
	}
	now := time.Now().UTC()
	return Ingredient{
		ID:           uuid.New(),
		Name:         name,
		Description:  description,
		Quantity:     quantity,
		Unit:         unit,
		Supplier:     supplier,
		MinimumStock: minimumStock,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (i Ingredient) HasLowStock() bool {
	return i.Quantity.LessThanOrEqual(i.MinimumStock)
}

func (i Ingredient) WithQuantity(q decimal.Decimal) (Ingredient, error) {
	if q.IsNegative() {
		return Ingredient{}, ErrNegativeQuantity
	}
	i.Quantity = q
	i.UpdatedAt = time.Now().UTC()
	return i, nil
}
