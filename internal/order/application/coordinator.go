package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mejiacortes/bakery-orders/internal/contracts"
	"github.com/mejiacortes/bakery-orders/internal/order/domain"
)

// Coordinator owns the order side of the fulfillment saga: it consumes stock
// validation responses and drives the order status machine.
type Coordinator struct {
	log    *slog.Logger
	orders OrderRepository
}

func NewCoordinator(log *slog.Logger, orders OrderRepository) *Coordinator {
	return &Coordinator{log: log, orders: orders}
}

// HandleValidationResponse applies one stock validation response.
//
// Malformed events are dropped. An event for an order that does not exist is
// surfaced as domain.ErrOrderNotFound so the caller can treat the message as
// poison. An event for an order that already left PENDING_VALIDATION is a
// duplicate or late retry and is dropped; that guard is what makes redelivery
// safe. Everything else is an infrastructure error and must bubble up so the
// transport redelivers.
func (c *Coordinator) HandleValidationResponse(ctx context.Context, ev contracts.StockValidationResponse, headers map[string]string, traceparent string) error {
	if ev.OrderID == uuid.Nil || ev.Status == "" {
		c.log.Warn("dropping stock validation response without order id or status")
		return nil
	}
	to, ok := domain.StatusForValidation(ev.Status)
	if !ok {
		c.log.Warn("dropping stock validation response with unknown status", "order_id", ev.OrderID, "status", ev.Status)
		return nil
	}

	o, err := c.orders.Get(ctx, ev.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return fmt.Errorf("stock validation response for unknown order %s: %w", ev.OrderID, err)
		}
		return err
	}
	if o.Status != domain.StatusPendingValidation {
		c.log.Info("duplicate stock validation response ignored",
			"order_id", o.ID, "status", o.Status, "event_status", ev.Status)
		return nil
	}

	var eventType string
	var payload []byte
	if to == domain.StatusStockConfirmed {
		payload, err = json.Marshal(o.Confirmation())
		if err != nil {
			return err
		}
		eventType = contracts.EventStockUpdateConfirmation
	}

	err = c.orders.TransitionWithOutbox(ctx, o.ID, domain.StatusPendingValidation, to, eventType, payload, headers, traceparent)
	if errors.Is(err, domain.ErrStaleTransition) {
		// Lost a race with a concurrent delivery of the same response.
		c.log.Info("order already transitioned, ignoring", "order_id", o.ID)
		return nil
	}
	if err != nil {
		return err
	}

	c.log.Info("order status updated", "order_id", o.ID, "from", domain.StatusPendingValidation, "to", to, "reason", ev.Reason)
	return nil
}

// SweepStale logs orders stuck in PENDING_VALIDATION past the cutoff. It
// deliberately changes nothing: there is no timeout transition in the saga,
// so a stuck order is an operational signal, not something to auto-resolve.
func (c *Coordinator) SweepStale(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := c.orders.ListPendingOlderThan(ctx, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	for _, o := range stale {
		c.log.Warn("order stuck in pending validation",
			"order_id", o.ID, "created_at", o.CreatedAt, "age", time.Since(o.CreatedAt).Round(time.Second))
	}
	return len(stale), nil
}
