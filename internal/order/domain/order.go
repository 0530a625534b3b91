package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mejiacortes/bakery-orders/internal/contracts"
)

const DefaultCurrency = "USD"

type Client struct {
	Name  string
	Email string
	Phone string
}

type AddressShipping struct {
	Street  string
	City    string
	State   string
	ZipCode string
	Country string
}

// OrderItem is owned by its order; the product is referenced by ID only.
type OrderItem struct {
	ProductID uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
}

func (i OrderItem) Value() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type OrderTotal struct {
	Amount   decimal.Decimal
	Currency string
}

type Order struct {
	ID              uuid.UUID
	Client          Client
	ShippingAddress AddressShipping
	Items           []OrderItem
	Total           OrderTotal
	Status          OrderStatus
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewOrder validates its inputs and returns an order in PENDING_VALIDATION
// with the total computed from the supplied unit prices.
func NewOrder(client Client, items []OrderItem, address AddressShipping) (Order, error) {
	if strings.TrimSpace(client.Name) == "" || strings.TrimSpace(client.Email) == "" {
		return Order{}, ErrMissingClient
	}
	if len(items) == 0 {
		return Order{}, ErrNoItems
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return Order{}, ErrNonPositiveQty
		}
	}
	if strings.TrimSpace(address.Street) == "" {
		return Order{}, ErrMissingAddress
	}

	now := time.Now().UTC()
	o := Order{
		ID:              uuid.New(),
		Client:          client,
		ShippingAddress: address,
		Items:           items,
		Status:          StatusPendingValidation,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	o.RecalculateTotal()
	return o, nil
}

// RecalculateTotal keeps the invariant total == Σ unit price × quantity.
func (o *Order) RecalculateTotal() {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Value())
	}
	o.Total = OrderTotal{Amount: sum, Currency: DefaultCurrency}
}

// Message builds the wire announcement for this order.
func (o Order) Message() contracts.OrderMessage {
	return contracts.OrderMessage{
		OrderID: o.ID,
		Client: contracts.ClientInfo{
			Name:  o.Client.Name,
			Email: o.Client.Email,
			Phone: o.Client.Phone,
		},
		ShippingAddress: contracts.ShippingAddress{
			Street:  o.ShippingAddress.Street,
			City:    o.ShippingAddress.City,
			State:   o.ShippingAddress.State,
			ZipCode: o.ShippingAddress.ZipCode,
			Country: o.ShippingAddress.Country,
		},
		Products: o.productOrders(),
	}
}

// Confirmation builds the stock-update message published once the order is
// STOCK_CONFIRMED.
func (o Order) Confirmation() contracts.StockUpdateConfirmation {
	return contracts.StockUpdateConfirmation{OrderID: o.ID, Products: o.productOrders()}
}

func (o Order) productOrders() []contracts.ProductOrder {
	products := make([]contracts.ProductOrder, 0, len(o.Items))
	for _, it := range o.Items {
		products = append(products, contracts.ProductOrder{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		})
	}
	return products
}
