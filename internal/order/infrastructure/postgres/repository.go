package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mejiacortes/bakery-orders/internal/order/domain"
)

type Repository struct {
	log    *slog.Logger
	pool   *pgxpool.Pool
	topics map[string]string // event type -> kafka topic
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool, topics map[string]string) *Repository {
	return &Repository{log: log, pool: pool, topics: topics}
}

func (r *Repository) SaveWithOutbox(ctx context.Context, o domain.Order, eventType string, payload []byte, headers map[string]string, traceparent string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `INSERT INTO orders
			(id, client_name, client_email, client_phone, street, city, state, zip_code, country,
			 total_amount, currency, status, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
			client_name=$2, client_email=$3, client_phone=$4,
			street=$5, city=$6, state=$7, zip_code=$8, country=$9,
			total_amount=$10, currency=$11, status=$12, notes=$13, updated_at=$15`,
		o.ID, o.Client.Name, o.Client.Email, o.Client.Phone,
		o.ShippingAddress.Street, o.ShippingAddress.City, o.ShippingAddress.State,
		o.ShippingAddress.ZipCode, o.ShippingAddress.Country,
		o.Total.Amount.String(), o.Total.Currency, o.Status, o.Notes, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, item := range o.Items {
		batch.Queue(`INSERT INTO order_items (order_id, product_id, quantity, unit_price)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (order_id, product_id) DO UPDATE SET quantity=$3, unit_price=$4`,
			o.ID, item.ProductID, item.Quantity, item.UnitPrice.String())
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	if err = r.enqueue(ctx, tx, o.ID, eventType, payload, headers, traceparent); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	var (
		o      domain.Order
		amount string
		status string
	)
	err := r.pool.QueryRow(ctx, `SELECT id, client_name, client_email, client_phone,
			street, city, state, zip_code, country,
			total_amount::text, currency, status, notes, created_at, updated_at
		FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.Client.Name, &o.Client.Email, &o.Client.Phone,
			&o.ShippingAddress.Street, &o.ShippingAddress.City, &o.ShippingAddress.State,
			&o.ShippingAddress.ZipCode, &o.ShippingAddress.Country,
			&amount, &o.Total.Currency, &status, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)
	if o.Total.Amount, err = decimal.NewFromString(amount); err != nil {
		return domain.Order{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT product_id, quantity, unit_price::text FROM order_items WHERE order_id=$1`, id)
	if err != nil {
		return domain.Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			item  domain.OrderItem
			price string
		)
		if err := rows.Scan(&item.ProductID, &item.Quantity, &price); err != nil {
			return domain.Order{}, err
		}
		if item.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return domain.Order{}, err
		}
		o.Items = append(o.Items, item)
	}
	return o, rows.Err()
}

func (r *Repository) TransitionWithOutbox(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus, eventType string, payload []byte, headers map[string]string, traceparent string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx, `UPDATE orders SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`, id, from, to)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		// Distinguish a missing order from one that already moved on.
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id=$1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrStaleTransition
	}

	if eventType != "" {
		if err = r.enqueue(ctx, tx, id, eventType, payload, headers, traceparent); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repository) UpdateShippingAddress(ctx context.Context, id uuid.UUID, address domain.AddressShipping) (domain.Order, error) {
	ct, err := r.pool.Exec(ctx, `UPDATE orders
		SET street=$2, city=$3, state=$4, zip_code=$5, country=$6, updated_at=now()
		WHERE id=$1`,
		id, address.Street, address.City, address.State, address.ZipCode, address.Country)
	if err != nil {
		return domain.Order{}, err
	}
	if ct.RowsAffected() == 0 {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return r.Get(ctx, id)
}

func (r *Repository) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, client_name, client_email, status, created_at, updated_at
		FROM orders WHERE status=$1 AND created_at < $2 ORDER BY created_at`,
		domain.StatusPendingValidation, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		var (
			o      domain.Order
			status string
		)
		if err := rows.Scan(&o.ID, &o.Client.Name, &o.Client.Email, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		o.Status = domain.OrderStatus(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *Repository) enqueue(ctx context.Context, tx pgx.Tx, aggregateID uuid.UUID, eventType string, payload []byte, headers map[string]string, traceparent string) error {
	topic, ok := r.topics[eventType]
	if !ok {
		return errors.New("no topic for event type " + eventType)
	}
	_, err := tx.Exec(ctx, `INSERT INTO outbox (topic, aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,'order',$2,$3,$4,$5,$6,'pending')`,
		topic, aggregateID, eventType, payload, headers, traceparent)
	return err
}

type ProductRepository struct {
	pool *pgxpool.Pool
}

func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

func (r *ProductRepository) Save(ctx context.Context, p domain.Product) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO products (id, name, description, price, stock, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET name=$2, description=$3, price=$4, stock=$5, updated_at=$7`,
		p.ID, p.Name, p.Description, p.Price.String(), p.Stock, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *ProductRepository) Get(ctx context.Context, id uuid.UUID) (domain.Product, error) {
	var (
		p     domain.Product
		price string
	)
	err := r.pool.QueryRow(ctx, `SELECT id, name, description, price::text, stock, created_at, updated_at
		FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Description, &price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, err
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func (r *ProductRepository) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, price::text, stock, created_at, updated_at
		FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var (
			p     domain.Product
			price string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}
