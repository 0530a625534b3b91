package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mejiacortes/bakery-orders/internal/contracts"
	"github.com/mejiacortes/bakery-orders/internal/order/domain"
)

type Service struct {
	log      *slog.Logger
	orders   OrderRepository
	products ProductRepository
}

func NewService(log *slog.Logger, orders OrderRepository, products ProductRepository) *Service {
	return &Service{log: log, orders: orders, products: products}
}

type SubmitItem struct {
	ProductID uuid.UUID
	Quantity  int
}

type SubmitOrderInput struct {
	Client          domain.Client
	Items           []SubmitItem
	ShippingAddress domain.AddressShipping
	Notes           string
}

// SubmitOrder validates the input, prices the line items from the catalog,
// and persists the order together with its OrderCreated event in one
// transaction. Any failure propagates to the caller; nothing is half-done.
func (s *Service) SubmitOrder(ctx context.Context, in SubmitOrderInput, headers map[string]string, traceparent string) (domain.Order, error) {
	if len(in.Items) == 0 {
		return domain.Order{}, domain.ErrNoItems
	}

	// Merge duplicate lines for the same product: the stored line items key on
	// (order, product), so two lines would otherwise collapse to one while the
	// total still counted both.
	merged := make([]SubmitItem, 0, len(in.Items))
	index := make(map[uuid.UUID]int, len(in.Items))
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return domain.Order{}, domain.ErrNonPositiveQty
		}
		if i, ok := index[it.ProductID]; ok {
			merged[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(merged)
		merged = append(merged, it)
	}

	items := make([]domain.OrderItem, 0, len(merged))
	for _, it := range merged {
		p, err := s.products.Get(ctx, it.ProductID)
		if err != nil {
			return domain.Order{}, fmt.Errorf("pricing product %s: %w", it.ProductID, err)
		}
		items = append(items, domain.OrderItem{
			ProductID: p.ID,
			Quantity:  it.Quantity,
			UnitPrice: p.Price,
		})
	}

	o, err := domain.NewOrder(in.Client, items, in.ShippingAddress)
	if err != nil {
		return domain.Order{}, err
	}
	o.Notes = in.Notes

	payload, err := json.Marshal(o.Message())
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.orders.SaveWithOutbox(ctx, o, contracts.EventOrderCreated, payload, headers, traceparent); err != nil {
		return domain.Order{}, err
	}

	s.log.Info("order submitted", "order_id", o.ID, "items", len(o.Items), "total", o.Total.Amount)
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	return s.orders.Get(ctx, id)
}

func (s *Service) UpdateShippingAddress(ctx context.Context, id uuid.UUID, address domain.AddressShipping) (domain.Order, error) {
	if address.Street == "" {
		return domain.Order{}, domain.ErrMissingAddress
	}
	return s.orders.UpdateShippingAddress(ctx, id, address)
}

func (s *Service) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	return s.orders.Delete(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, name, description string, price decimal.Decimal, stock int) (domain.Product, error) {
	p := domain.NewProduct(name, description, price, stock)
	if err := s.products.Save(ctx, p); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (domain.Product, error) {
	return s.products.Get(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.products.List(ctx)
}

func (s *Service) UpdateProduct(ctx context.Context, p domain.Product) error {
	if _, err := s.products.Get(ctx, p.ID); err != nil {
		return err
	}
	return s.products.Save(ctx, p)
}

func (s *Service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return s.products.Delete(ctx, id)
}
