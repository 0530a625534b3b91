// Package contracts holds the wire messages exchanged between the order and
// stock services. Both sides marshal these as JSON; field names are part of
// the protocol and must not change without a consumer migration.
package contracts

import "github.com/google/uuid"

// Event type names carried in the outbox and as Kafka headers.
const (
	EventOrderCreated            = "OrderCreated"
	EventStockValidationResponse = "StockValidationResponse"
	EventStockUpdateConfirmation = "StockUpdateConfirmation"
)

type StockValidationStatus string

const (
	ValidationReserved         StockValidationStatus = "RESERVED"
	ValidationCancelledNoStock StockValidationStatus = "CANCELLED_NO_STOCK"
	// ValidationUnavailable is a legacy alias of CANCELLED_NO_STOCK kept on the
	// wire. The order side records it distinctly but handles it the same.
	ValidationUnavailable StockValidationStatus = "UNAVAILABLE"
)

func (s StockValidationStatus) Valid() bool {
	switch s {
	case ValidationReserved, ValidationCancelledNoStock, ValidationUnavailable:
		return true
	}
	return false
}

type ClientInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type ShippingAddress struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

type ProductOrder struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

// OrderMessage announces a newly persisted order to the stock service.
type OrderMessage struct {
	OrderID         uuid.UUID       `json:"orderId"`
	Client          ClientInfo      `json:"client"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	Products        []ProductOrder  `json:"products"`
}

// StockValidationResponse is the stock service's verdict on an order.
type StockValidationResponse struct {
	OrderID uuid.UUID             `json:"orderId"`
	Status  StockValidationStatus `json:"status"`
	Reason  string                `json:"reason,omitempty"`
}

// StockUpdateConfirmation is published by the order service once an order
// reaches STOCK_CONFIRMED, so the stock side can commit the reservation it
// provisionally validated.
type StockUpdateConfirmation struct {
	OrderID  uuid.UUID      `json:"orderId"`
	Products []ProductOrder `json:"products"`
}
