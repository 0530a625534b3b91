package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mejiacortes/bakery-orders/internal/contracts"
)

func TestAggregateRequirementsSumsSharedIngredients(t *testing.T) {
	flour := uuid.New()
	prodA, prodB := uuid.New(), uuid.New()

	// Recipe A needs 200g flour per unit, recipe B needs 300g.
	recipes := map[uuid.UUID]Recipe{
		prodA: {ProductID: prodA, Ingredients: []RecipeIngredient{{IngredientID: flour, Quantity: decimal.NewFromInt(200), Unit: "g"}}},
		prodB: {ProductID: prodB, Ingredients: []RecipeIngredient{{IngredientID: flour, Quantity: decimal.NewFromInt(300), Unit: "g"}}},
	}
	items := []contracts.ProductOrder{
		{ProductID: prodA, Quantity: 1},
		{ProductID: prodB, Quantity: 1},
	}

	required, err := AggregateRequirements(recipes, items)
	require.NoError(t, err)
	require.True(t, required[flour].Equal(decimal.NewFromInt(500)),
		"shared flour must aggregate to 500, got %s", required[flour])

	// Line-item order must not change the result.
	reversed, err := AggregateRequirements(recipes, []contracts.ProductOrder{items[1], items[0]})
	require.NoError(t, err)
	require.True(t, required[flour].Equal(reversed[flour]))
}

func TestAggregateRequirementsMultipliesByOrderedQuantity(t *testing.T) {
	sugar := uuid.New()
	prod := uuid.New()
	recipes := map[uuid.UUID]Recipe{
		prod: {ProductID: prod, Ingredients: []RecipeIngredient{{IngredientID: sugar, Quantity: decimal.NewFromInt(100), Unit: "g"}}},
	}

	required, err := AggregateRequirements(recipes, []contracts.ProductOrder{{ProductID: prod, Quantity: 2}})
	require.NoError(t, err)
	require.True(t, required[sugar].Equal(decimal.NewFromInt(200)))
}

func TestAggregateRequirementsExactDecimals(t *testing.T) {
	vanilla := uuid.New()
	prod := uuid.New()
	recipes := map[uuid.UUID]Recipe{
		prod: {ProductID: prod, Ingredients: []RecipeIngredient{{IngredientID: vanilla, Quantity: decimal.RequireFromString("0.1"), Unit: "ml"}}},
	}

	// 0.1 summed three times must be exactly 0.3, not 0.30000000000000004.
	required, err := AggregateRequirements(recipes, []contracts.ProductOrder{
		{ProductID: prod, Quantity: 1},
		{ProductID: prod, Quantity: 1},
		{ProductID: prod, Quantity: 1},
	})
	require.NoError(t, err)
	require.True(t, required[vanilla].Equal(decimal.RequireFromString("0.3")), "got %s", required[vanilla])
}

func TestAggregateRequirementsUnknownProduct(t *testing.T) {
	_, err := AggregateRequirements(map[uuid.UUID]Recipe{}, []contracts.ProductOrder{{ProductID: uuid.New(), Quantity: 1}})
	require.ErrorIs(t, err, ErrRecipeNotFound)
}

func TestIngredientLowStockAndNegativeGuard(t *testing.T) {
	ing, err := NewIngredient("sugar", "", decimal.NewFromInt(150), "g", "acme", decimal.NewFromInt(200))
	require.NoError(t, err)
	require.True(t, ing.HasLowStock())

	_, err = ing.WithQuantity(decimal.NewFromInt(-1))
	require.ErrorIs(t, err, ErrNegativeQuantity)

	updated, err := ing.WithQuantity(decimal.NewFromInt(500))
	require.NoError(t, err)
	require.False(t, updated.HasLowStock())
}

func TestNewRecipeValidation(t *testing.T) {
	ing := RecipeIngredient{IngredientID: uuid.New(), Quantity: decimal.NewFromInt(1), Unit: "g"}

	_, err := NewRecipe(uuid.Nil, "cake", "", []RecipeIngredient{ing})
	require.ErrorIs(t, err, ErrRecipeProduct)

	_, err = NewRecipe(uuid.New(), "cake", "", nil)
	require.ErrorIs(t, err, ErrRecipeEmpty)

	_, err = NewRecipe(uuid.New(), "cake", "", []RecipeIngredient{{IngredientID: uuid.New(), Quantity: decimal.Zero}})
	require.ErrorIs(t, err, ErrNonPositiveQuantity)
}
