package application

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mejiacortes/bakery-orders/internal/stock/domain"
)

type IngredientRepository interface {
	Save(ctx context.Context, ing domain.Ingredient) error
	Get(ctx context.Context, id uuid.UUID) (domain.Ingredient, error)
	List(ctx context.Context) ([]domain.Ingredient, error)
	ListLowStock(ctx context.Context) ([]domain.Ingredient, error)
}

type RecipeRepository interface {
	Save(ctx context.Context, r domain.Recipe) error
	Get(ctx context.Context, id uuid.UUID) (domain.Recipe, error)
	FindByProductID(ctx context.Context, productID uuid.UUID) (domain.Recipe, error)
	List(ctx context.Context) ([]domain.Recipe, error)
}

// ReservationOutcome is what the reservation transaction decided, handed to
// the event builder so the response lands in the same transaction.
type ReservationOutcome struct {
	Shortages []domain.Shortage
}

func (o ReservationOutcome) OK() bool { return len(o.Shortages) == 0 }

// BuildEvent turns the outcome into the outbox event written atomically with
// the reservation itself.
type BuildEvent func(outcome ReservationOutcome) (eventType string, payload []byte)

type ReservationStore interface {
	// Reserved reports whether orderID already holds an active reservation,
	// so a redelivered order message can short-circuit without double
	// spending stock.
	Reserved(ctx context.Context, orderID uuid.UUID) (bool, error)
	// ReserveWithOutbox runs the all-or-nothing check-then-decrement: every
	// required ingredient is compared against its available quantity and
	// either all of them are decremented or none is. The event returned by
	// buildEvent is written in the same transaction. Shortages are a business
	// outcome, not an error.
	ReserveWithOutbox(ctx context.Context, orderID uuid.UUID, required map[uuid.UUID]decimal.Decimal, buildEvent BuildEvent, headers map[string]string, traceparent string) (ReservationOutcome, error)
	// RejectWithOutbox records a rejection that never reached the quantity
	// check (unknown product, missing recipe) together with its response
	// event.
	RejectWithOutbox(ctx context.Context, orderID uuid.UUID, reason string, eventType string, payload []byte, headers map[string]string, traceparent string) error
	// AppendEvent enqueues a response event outside a reservation, used when
	// republishing the verdict for an already-reserved order.
	AppendEvent(ctx context.Context, orderID uuid.UUID, eventType string, payload []byte, headers map[string]string, traceparent string) error
	// Commit promotes an order's reservation from RESERVED to COMMITTED once
	// the stock update confirmation arrives. Idempotent.
	Commit(ctx context.Context, orderID uuid.UUID) error
}
