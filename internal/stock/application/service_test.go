package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mejiacortes/bakery-orders/internal/contracts"
	"github.com/mejiacortes/bakery-orders/internal/stock/domain"
	"github.com/mejiacortes/bakery-orders/pkg/logging"
)

func grams(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func mustIngredient(t *testing.T, name string, qty decimal.Decimal) domain.Ingredient {
	t.Helper()
	ing, err := domain.NewIngredient(name, "", qty, "g", "acme", decimal.Zero)
	require.NoError(t, err)
	return ing
}

func mustRecipe(t *testing.T, productID uuid.UUID, name string, ingredients ...domain.RecipeIngredient) domain.Recipe {
	t.Helper()
	r, err := domain.NewRecipe(productID, name, "", ingredients)
	require.NoError(t, err)
	return r
}

type engine struct {
	svc          *Service
	ingredients  *fakeIngredientRepo
	reservations *fakeReservationStore
}

func newEngine(t *testing.T, ingredients []domain.Ingredient, recipes []domain.Recipe) engine {
	t.Helper()
	ingRepo := newFakeIngredientRepo(ingredients...)
	store := newFakeReservationStore(ingRepo)
	return engine{
		svc:          NewService(logging.New(), ingRepo, newFakeRecipeRepo(recipes...), store),
		ingredients:  ingRepo,
		reservations: store,
	}
}

// 2×ProductX needing 100g sugar each against 150g available: the whole order
// is rejected and the sugar is untouched.
func TestReserveRejectsWhenAggregateExceedsStock(t *testing.T) {
	sugar := mustIngredient(t, "sugar", grams(150))
	productX := uuid.New()
	recipe := mustRecipe(t, productX, "cake", domain.RecipeIngredient{IngredientID: sugar.ID, Quantity: grams(100), Unit: "g"})
	e := newEngine(t, []domain.Ingredient{sugar}, []domain.Recipe{recipe})

	resp, err := e.svc.Reserve(context.Background(), contracts.OrderMessage{
		OrderID:  uuid.New(),
		Products: []contracts.ProductOrder{{ProductID: productX, Quantity: 2}},
	}, nil, "")
	require.NoError(t, err)
	require.Equal(t, contracts.ValidationCancelledNoStock, resp.Status)
	require.Contains(t, resp.Reason, "sugar")

	got, _ := e.ingredients.Get(context.Background(), sugar.ID)
	require.True(t, got.Quantity.Equal(grams(150)), "rejection must not mutate stock, got %s", got.Quantity)
}

// Same order against 250g: reserved, 50g left.
func TestReserveDecrementsOnSuccess(t *testing.T) {
	sugar := mustIngredient(t, "sugar", grams(250))
	productX := uuid.New()
	recipe := mustRecipe(t, productX, "cake", domain.RecipeIngredient{IngredientID: sugar.ID, Quantity: grams(100), Unit: "g"})
	e := newEngine(t, []domain.Ingredient{sugar}, []domain.Recipe{recipe})

	orderID := uuid.New()
	resp, err := e.svc.Reserve(context.Background(), contracts.OrderMessage{
		OrderID:  orderID,
		Products: []contracts.ProductOrder{{ProductID: productX, Quantity: 2}},
	}, nil, "")
	require.NoError(t, err)
	require.Equal(t, contracts.ValidationReserved, resp.Status)
	require.Equal(t, orderID, resp.OrderID)

	got, _ := e.ingredients.Get(context.Background(), sugar.ID)
	require.True(t, got.Quantity.Equal(grams(50)), "got %s", got.Quantity)
}

// Two line items sharing flour must be checked against their sum: 200g+300g
// needs 500g, and 400g available has to fail even though each line alone fits.
func TestReserveAggregatesSharedIngredients(t *testing.T) {
	flour := mustIngredient(t, "flour", grams(400))
	prodA, prodB := uuid.New(), uuid.New()
	recipes := []domain.Recipe{
		mustRecipe(t, prodA, "bread", domain.RecipeIngredient{IngredientID: flour.ID, Quantity: grams(200), Unit: "g"}),
		mustRecipe(t, prodB, "baguette", domain.RecipeIngredient{IngredientID: flour.ID, Quantity: grams(300), Unit: "g"}),
	}
	e := newEngine(t, []domain.Ingredient{flour}, recipes)

	resp, err := e.svc.Reserve(context.Background(), contracts.OrderMessage{
		OrderID: uuid.New(),
		Products: []contracts.ProductOrder{
			{ProductID: prodA, Quantity: 1},
			{ProductID: prodB, Quantity: 1},
		},
	}, nil, "")
	require.NoError(t, err)
	require.Equal(t, contracts.ValidationCancelledNoStock, resp.Status)

	got, _ := e.ingredients.Get(context.Background(), flour.ID)
	require.True(t, got.Quantity.Equal(grams(400)))
}

// One satisfiable and one short ingredient: the satisfiable one must not move.
func TestReserveIsAtomicAcrossIngredients(t *testing.T) {
	butter := mustIngredient(t, "butter", grams(1000))
	sugar := mustIngredient(t, "sugar", grams(10))
	product := uuid.New()
	recipe := mustRecipe(t, product, "cookie",
		domain.RecipeIngredient{IngredientID: butter.ID, Quantity: grams(50), Unit: "g"},
		domain.RecipeIngredient{IngredientID: sugar.ID, Quantity: grams(50), Unit: "g"},
	)
	e := newEngine(t, []domain.Ingredient{butter, sugar}, []domain.Recipe{recipe})

	resp, err := e.svc.Reserve(context.Background(), contracts.OrderMessage{
		OrderID:  uuid.New(),
		Products: []contracts.ProductOrder{{ProductID: product, Quantity: 1}},
	}, nil, "")
	require.NoError(t, err)
	require.Equal(t, contracts.ValidationCancelledNoStock, resp.Status)

	gotButter, _ := e.ingredients.Get(context.Background(), butter.ID)
	require.True(t, gotButter.Quantity.Equal(grams(1000)), "satisfiable ingredient must be unchanged")
	gotSugar, _ := e.ingredients.Get(context.Background(), sugar.ID)
	require.True(t, gotSugar.Quantity.Equal(grams(10)))
}

func TestReserveRejectsUnknownProduct(t *testing.T) {
	e := newEngine(t, nil, nil)
	unknown := uuid.New()

	resp, err := e.svc.Reserve(context.Background(), contracts.OrderMessage{
		OrderID:  uuid.New(),
		Products: []contracts.ProductOrder{{ProductID: unknown, Quantity: 1}},
	}, nil, "")
	require.NoError(t, err)
	require.Equal(t, contracts.ValidationCancelledNoStock, resp.Status)
	require.Contains(t, resp.Reason, unknown.String())
}

func TestReserveRedeliveryShortCircuits(t *testing.T) {
	sugar := mustIngredient(t, "sugar", grams(250))
	product := uuid.New()
	recipe := mustRecipe(t, product, "cake", domain.RecipeIngredient{IngredientID: sugar.ID, Quantity: grams(100), Unit: "g"})
	e := newEngine(t, []domain.Ingredient{sugar}, []domain.Recipe{recipe})

	msg := contracts.OrderMessage{
		OrderID:  uuid.New(),
		Products: []contracts.ProductOrder{{ProductID: product, Quantity: 2}},
	}
	first, err := e.svc.Reserve(context.Background(), msg, nil, "")
	require.NoError(t, err)
	require.Equal(t, contracts.ValidationReserved, first.Status)

	second, err := e.svc.Reserve(context.Background(), msg, nil, "")
	require.NoError(t, err)
	require.Equal(t, contracts.ValidationReserved, second.Status)

	got, _ := e.ingredients.Get(context.Background(), sugar.ID)
	require.True(t, got.Quantity.Equal(grams(50)), "redelivery must not double-spend, got %s", got.Quantity)
	require.Equal(t, 2, e.reservations.eventCount(), "each delivery re-announces the verdict")
}

func TestReserveInfrastructureFailureIsNotARejection(t *testing.T) {
	sugar := mustIngredient(t, "sugar", grams(250))
	product := uuid.New()
	recipe := mustRecipe(t, product, "cake", domain.RecipeIngredient{IngredientID: sugar.ID, Quantity: grams(100), Unit: "g"})
	e := newEngine(t, []domain.Ingredient{sugar}, []domain.Recipe{recipe})
	e.reservations.reserveErr = errors.New("pg down")

	_, err := e.svc.Reserve(context.Background(), contracts.OrderMessage{
		OrderID:  uuid.New(),
		Products: []contracts.ProductOrder{{ProductID: product, Quantity: 1}},
	}, nil, "")
	require.ErrorContains(t, err, "pg down")
	require.Zero(t, e.reservations.eventCount(), "no response may be enqueued on infrastructure failure")
}

// Concurrent reservations against one fixed stock: the final quantity equals
// initial minus the sum of accepted reservations only, and never goes negative.
func TestConcurrentReservationsNeverOversell(t *testing.T) {
	sugar := mustIngredient(t, "sugar", grams(500))
	product := uuid.New()
	recipe := mustRecipe(t, product, "cake", domain.RecipeIngredient{IngredientID: sugar.ID, Quantity: grams(100), Unit: "g"})
	e := newEngine(t, []domain.Ingredient{sugar}, []domain.Recipe{recipe})

	const attempts = 20
	var wg sync.WaitGroup
	results := make([]contracts.StockValidationResponse, attempts)
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.svc.Reserve(context.Background(), contracts.OrderMessage{
				OrderID:  uuid.New(),
				Products: []contracts.ProductOrder{{ProductID: product, Quantity: 1}},
			}, nil, "")
		}(i)
	}
	wg.Wait()

	accepted := 0
	for i, r := range results {
		require.NoError(t, errs[i])
		if r.Status == contracts.ValidationReserved {
			accepted++
		}
	}
	require.Equal(t, 5, accepted, "only 5 of %d 100g reservations fit in 500g", attempts)

	got, _ := e.ingredients.Get(context.Background(), sugar.ID)
	require.True(t, got.Quantity.Equal(grams(0)), "final quantity must be initial minus accepted, got %s", got.Quantity)
	require.False(t, got.Quantity.IsNegative())
}

func TestConfirmPromotesReservation(t *testing.T) {
	sugar := mustIngredient(t, "sugar", grams(250))
	product := uuid.New()
	recipe := mustRecipe(t, product, "cake", domain.RecipeIngredient{IngredientID: sugar.ID, Quantity: grams(100), Unit: "g"})
	e := newEngine(t, []domain.Ingredient{sugar}, []domain.Recipe{recipe})

	orderID := uuid.New()
	_, err := e.svc.Reserve(context.Background(), contracts.OrderMessage{
		OrderID:  orderID,
		Products: []contracts.ProductOrder{{ProductID: product, Quantity: 2}},
	}, nil, "")
	require.NoError(t, err)

	conf := contracts.StockUpdateConfirmation{OrderID: orderID, Products: []contracts.ProductOrder{{ProductID: product, Quantity: 2}}}
	require.NoError(t, e.svc.Confirm(context.Background(), conf))
	require.Equal(t, "COMMITTED", e.reservations.reserved[orderID])

	// Confirmation is idempotent and must not touch quantities again.
	require.NoError(t, e.svc.Confirm(context.Background(), conf))
	got, _ := e.ingredients.Get(context.Background(), sugar.ID)
	require.True(t, got.Quantity.Equal(grams(50)))
}

func TestRecipeCreationChecksIngredients(t *testing.T) {
	sugar := mustIngredient(t, "sugar", grams(100))
	e := newEngine(t, []domain.Ingredient{sugar}, nil)

	_, err := e.svc.CreateRecipe(context.Background(), uuid.New(), "cake", "", []domain.RecipeIngredient{
		{IngredientID: uuid.New(), Quantity: grams(10), Unit: "g"},
	})
	require.ErrorIs(t, err, domain.ErrIngredientNotFound)

	r, err := e.svc.CreateRecipe(context.Background(), uuid.New(), "cake", "", []domain.RecipeIngredient{
		{IngredientID: sugar.ID, Quantity: grams(10), Unit: "g"},
	})
	require.NoError(t, err)
	require.Len(t, r.Ingredients, 1)
}
