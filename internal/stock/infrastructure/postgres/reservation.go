package postgres

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mejiacortes/bakery-orders/internal/stock/application"
	"github.com/mejiacortes/bakery-orders/internal/stock/domain"
)

// ReservationStore runs the all-or-nothing check-then-decrement. The response
// event lands in the outbox inside the same transaction as the quantity
// update, so a crash can never separate verdict from effect.
type ReservationStore struct {
	log    *slog.Logger
	pool   *pgxpool.Pool
	topics map[string]string // event type -> kafka topic
}

func NewReservationStore(log *slog.Logger, pool *pgxpool.Pool, topics map[string]string) *ReservationStore {
	return &ReservationStore{log: log, pool: pool, topics: topics}
}

func (s *ReservationStore) Reserved(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reservations WHERE order_id=$1 AND status IN ('RESERVED','COMMITTED'))`,
		orderID).Scan(&exists)
	return exists, err
}

func (s *ReservationStore) ReserveWithOutbox(ctx context.Context, orderID uuid.UUID, required map[uuid.UUID]decimal.Decimal, buildEvent application.BuildEvent, headers map[string]string, traceparent string) (application.ReservationOutcome, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return application.ReservationOutcome{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Lock in a fixed order so concurrent reservations cannot deadlock.
	ids := make([]uuid.UUID, 0, len(required))
	for id := range required {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	rows, err := tx.Query(ctx,
		`SELECT id, name, quantity::text FROM ingredients WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return application.ReservationOutcome{}, err
	}
	available := make(map[uuid.UUID]domain.Ingredient, len(ids))
	for rows.Next() {
		var (
			ing      domain.Ingredient
			quantity string
		)
		if err := rows.Scan(&ing.ID, &ing.Name, &quantity); err != nil {
			rows.Close()
			return application.ReservationOutcome{}, err
		}
		if ing.Quantity, err = decimal.NewFromString(quantity); err != nil {
			rows.Close()
			return application.ReservationOutcome{}, err
		}
		available[ing.ID] = ing
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return application.ReservationOutcome{}, err
	}

	var outcome application.ReservationOutcome
	for _, id := range ids {
		ing, ok := available[id]
		if !ok {
			outcome.Shortages = append(outcome.Shortages, domain.Shortage{IngredientID: id, Required: required[id], Missing: true})
			continue
		}
		if ing.Quantity.LessThan(required[id]) {
			outcome.Shortages = append(outcome.Shortages, domain.Shortage{
				IngredientID: id, Name: ing.Name, Required: required[id], Available: ing.Quantity,
			})
		}
	}

	status := "REJECTED"
	if outcome.OK() {
		status = "RESERVED"
	}

	// Parent row first: reservation_items carries a foreign key to
	// reservations(order_id), checked at the end of each statement.
	_, err = tx.Exec(ctx, `INSERT INTO reservations (order_id, status) VALUES ($1,$2)
		ON CONFLICT (order_id) DO UPDATE SET status=$2, updated_at=now()`, orderID, status)
	if err != nil {
		return application.ReservationOutcome{}, err
	}

	if outcome.OK() {
		batch := &pgx.Batch{}
		for _, id := range ids {
			batch.Queue(`UPDATE ingredients SET quantity = quantity - $2::numeric, updated_at = now() WHERE id=$1`,
				id, required[id].String())
			batch.Queue(`INSERT INTO reservation_items (order_id, ingredient_id, quantity) VALUES ($1,$2,$3)
				ON CONFLICT (order_id, ingredient_id) DO NOTHING`,
				orderID, id, required[id].String())
		}
		if err = tx.SendBatch(ctx, batch).Close(); err != nil {
			return application.ReservationOutcome{}, err
		}
	}

	eventType, payload := buildEvent(outcome)
	if err = s.enqueue(ctx, tx, orderID, eventType, payload, headers, traceparent); err != nil {
		return application.ReservationOutcome{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return application.ReservationOutcome{}, err
	}
	return outcome, nil
}

func (s *ReservationStore) RejectWithOutbox(ctx context.Context, orderID uuid.UUID, reason string, eventType string, payload []byte, headers map[string]string, traceparent string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `INSERT INTO reservations (order_id, status, reason) VALUES ($1,'REJECTED',$2)
		ON CONFLICT (order_id) DO UPDATE SET status='REJECTED', reason=$2, updated_at=now()`, orderID, reason)
	if err != nil {
		return err
	}
	if err = s.enqueue(ctx, tx, orderID, eventType, payload, headers, traceparent); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *ReservationStore) AppendEvent(ctx context.Context, orderID uuid.UUID, eventType string, payload []byte, headers map[string]string, traceparent string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err = s.enqueue(ctx, tx, orderID, eventType, payload, headers, traceparent); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *ReservationStore) Commit(ctx context.Context, orderID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE reservations SET status='COMMITTED', updated_at=now() WHERE order_id=$1 AND status='RESERVED'`,
		orderID)
	return err
}

func (s *ReservationStore) enqueue(ctx context.Context, tx pgx.Tx, aggregateID uuid.UUID, eventType string, payload []byte, headers map[string]string, traceparent string) error {
	topic, ok := s.topics[eventType]
	if !ok {
		return errors.New("no topic for event type " + eventType)
	}
	_, err := tx.Exec(ctx, `INSERT INTO outbox (topic, aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,'reservation',$2,$3,$4,$5,$6,'pending')`,
		topic, aggregateID, eventType, payload, headers, traceparent)
	return err
}
