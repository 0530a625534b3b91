package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecipeIngredient is owned by its recipe; the ingredient is referenced by ID.
type RecipeIngredient struct {
	IngredientID uuid.UUID
	Quantity     decimal.Decimal
	Unit         string
}

// Recipe maps one product to the ingredient amounts a single unit consumes.
type Recipe struct {
	ID          uuid.UUID
	ProductID   uuid.UUID
	Name        string
	Description string
	Ingredients []RecipeIngredient
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewRecipe(productID uuid.UUID, name, description string, ingredients []RecipeIngredient) (Recipe, error) {
	if productID == uuid.Nil {
		return Recipe{}, ErrRecipeProduct
	}
	if len(ingredients) == 0 {
		return Recipe{}, ErrRecipeEmpty
	}
	for _, ri := range ingredients {
		if ri.Quantity.LessThanOrEqual(decimal.Zero) {
			return Recipe{}, ErrNonPositiveQuantity
		}
	}
	now := time.Now().UTC()
	return Recipe{
		ID:          uuid.New(),
		ProductID:   productID,
		Name:        name,
		Description: description,
		Ingredients: ingredients,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
