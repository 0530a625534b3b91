package domain

import "errors"

var (
	ErrIngredientName      = errors.New("ingredient name is required")
	ErrMissingUnit         = errors.New("ingredient unit is required")
	ErrNegativeQuantity    = errors.New("quantity cannot be negative")
	ErrNonPositiveQuantity = errors.New("quantity must be greater than zero")
	ErrRecipeProduct       = errors.New("recipe needs a product id")
	ErrRecipeEmpty         = errors.New("recipe needs at least one ingredient")

	ErrIngredientNotFound = errors.New("ingredient not found")
	ErrRecipeNotFound     = errors.New("recipe not found")
)
