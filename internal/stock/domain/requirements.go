package domain

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mejiacortes/bakery-orders/internal/contracts"
)

// Shortage describes one ingredient that blocked a reservation.
type Shortage struct {
	IngredientID uuid.UUID
	Name         string
	Required     decimal.Decimal
	Available    decimal.Decimal
	Missing      bool
}

func (s Shortage) String() string {
	if s.Missing {
		return fmt.Sprintf("ingredient %s not found", s.IngredientID)
	}
	return fmt.Sprintf("insufficient stock for ingredient %s: need %s, have %s", s.Name, s.Required, s.Available)
}

// AggregateRequirements sums the ingredient amounts an order consumes across
// all of its line items. Two products that share an ingredient contribute to
// one combined requirement; the sum is commutative, so line-item order never
// changes the outcome.
func AggregateRequirements(recipes map[uuid.UUID]Recipe, items []contracts.ProductOrder) (map[uuid.UUID]decimal.Decimal, error) {
	required := make(map[uuid.UUID]decimal.Decimal)
	for _, item := range items {
		recipe, ok := recipes[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %s: %w", item.ProductID, ErrRecipeNotFound)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("product %s: %w", item.ProductID, ErrNonPositiveQuantity)
		}
		qty := decimal.NewFromInt(int64(item.Quantity))
		for _, ri := range recipe.Ingredients {
			need := ri.Quantity.Mul(qty)
			if cur, ok := required[ri.IngredientID]; ok {
				required[ri.IngredientID] = cur.Add(need)
			} else {
				required[ri.IngredientID] = need
			}
		}
	}
	return required, nil
}
