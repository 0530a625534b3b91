package application

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mejiacortes/bakery-orders/internal/order/domain"
)

type OrderRepository interface {
	// SaveWithOutbox persists the order and its announcement event in one
	// transaction; either both land or neither does.
	SaveWithOutbox(ctx context.Context, o domain.Order, eventType string, payload []byte, headers map[string]string, traceparent string) error
	Get(ctx context.Context, id uuid.UUID) (domain.Order, error)
	// TransitionWithOutbox moves the order from one status to another only if
	// it still holds the expected current status, optionally enqueueing a
	// follow-up event in the same transaction. Returns
	// domain.ErrStaleTransition when the guard fails and domain.ErrOrderNotFound
	// when the order does not exist. An empty eventType enqueues nothing.
	TransitionWithOutbox(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus, eventType string, payload []byte, headers map[string]string, traceparent string) error
	UpdateShippingAddress(ctx context.Context, id uuid.UUID, address domain.AddressShipping) (domain.Order, error)
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]domain.Order, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ProductRepository interface {
	Save(ctx context.Context, p domain.Product) error
	Get(ctx context.Context, id uuid.UUID) (domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
