package domain

import "github.com/mejiacortes/bakery-orders/internal/contracts"

type OrderStatus string

const (
	StatusPendingValidation OrderStatus = "PENDING_VALIDATION"
	StatusStockConfirmed    OrderStatus = "STOCK_CONFIRMED"
	StatusCancelledNoStock  OrderStatus = "CANCELLED_NO_STOCK"
	StatusUnavailable       OrderStatus = "UNAVAILABLE"
)

var validNext = map[OrderStatus]map[OrderStatus]bool{
	StatusPendingValidation: {
		StatusStockConfirmed:   true,
		StatusCancelledNoStock: true,
		StatusUnavailable:      true,
	},
	StatusStockConfirmed:   {},
	StatusCancelledNoStock: {},
	StatusUnavailable:      {},
}

func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

// Terminal reports whether no further saga transition is defined for s.
func Terminal(s OrderStatus) bool {
	return len(validNext[s]) == 0 && s != ""
}

// StatusForValidation maps a wire validation status to the order status it
// drives the saga into. UNAVAILABLE stays distinct from CANCELLED_NO_STOCK on
// the order record even though both mean "no".
func StatusForValidation(s contracts.StockValidationStatus) (OrderStatus, bool) {
	switch s {
	case contracts.ValidationReserved:
		return StatusStockConfirmed, true
	case contracts.ValidationCancelledNoStock:
		return StatusCancelledNoStock, true
	case contracts.ValidationUnavailable:
		return StatusUnavailable, true
	}
	return "", false
}
