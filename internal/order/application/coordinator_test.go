package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mejiacortes/bakery-orders/internal/contracts"
	"github.com/mejiacortes/bakery-orders/internal/order/domain"
	"github.com/mejiacortes/bakery-orders/pkg/logging"
)

func pendingOrder(t *testing.T, repo *fakeOrderRepo) domain.Order {
	t.Helper()
	o, err := domain.NewOrder(testClient(), []domain.OrderItem{
		{ProductID: uuid.New(), Quantity: 2, UnitPrice: decimal.NewFromInt(3)},
	}, testAddress())
	require.NoError(t, err)
	require.NoError(t, repo.SaveWithOutbox(context.Background(), o, contracts.EventOrderCreated, nil, nil, ""))
	return o
}

func TestReservedResponseConfirmsAndRepublishes(t *testing.T) {
	repo := newFakeOrderRepo()
	o := pendingOrder(t, repo)
	coord := NewCoordinator(logging.New(), repo)

	err := coord.HandleValidationResponse(context.Background(), contracts.StockValidationResponse{
		OrderID: o.ID,
		Status:  contracts.ValidationReserved,
	}, nil, "")
	require.NoError(t, err)

	got, err := repo.Get(context.Background(), o.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusStockConfirmed, got.Status)

	confs := repo.eventsOfType(contracts.EventStockUpdateConfirmation)
	require.Len(t, confs, 1, "exactly one stock update confirmation must be published")

	var conf contracts.StockUpdateConfirmation
	require.NoError(t, json.Unmarshal(confs[0].payload, &conf))
	require.Equal(t, o.ID, conf.OrderID)
	require.Equal(t, o.Items[0].ProductID, conf.Products[0].ProductID)
	require.Equal(t, 2, conf.Products[0].Quantity)
}

func TestRejectionResponsesAreTerminalWithoutConfirmation(t *testing.T) {
	for _, tt := range []struct {
		wire contracts.StockValidationStatus
		want domain.OrderStatus
	}{
		{contracts.ValidationCancelledNoStock, domain.StatusCancelledNoStock},
		{contracts.ValidationUnavailable, domain.StatusUnavailable},
	} {
		repo := newFakeOrderRepo()
		o := pendingOrder(t, repo)
		coord := NewCoordinator(logging.New(), repo)

		err := coord.HandleValidationResponse(context.Background(), contracts.StockValidationResponse{
			OrderID: o.ID,
			Status:  tt.wire,
			Reason:  "out of flour",
		}, nil, "")
		require.NoError(t, err)

		got, _ := repo.Get(context.Background(), o.ID)
		require.Equal(t, tt.want, got.Status)
		require.Empty(t, repo.eventsOfType(contracts.EventStockUpdateConfirmation))
	}
}

func TestDuplicateResponseIsNoOp(t *testing.T) {
	repo := newFakeOrderRepo()
	o := pendingOrder(t, repo)
	coord := NewCoordinator(logging.New(), repo)
	ev := contracts.StockValidationResponse{OrderID: o.ID, Status: contracts.ValidationReserved}

	require.NoError(t, coord.HandleValidationResponse(context.Background(), ev, nil, ""))
	require.NoError(t, coord.HandleValidationResponse(context.Background(), ev, nil, ""))

	got, _ := repo.Get(context.Background(), o.ID)
	require.Equal(t, domain.StatusStockConfirmed, got.Status)
	require.Len(t, repo.eventsOfType(contracts.EventStockUpdateConfirmation), 1,
		"second delivery must not publish another confirmation")

	// A conflicting late rejection must not move a terminal order either.
	require.NoError(t, coord.HandleValidationResponse(context.Background(), contracts.StockValidationResponse{
		OrderID: o.ID, Status: contracts.ValidationCancelledNoStock,
	}, nil, ""))
	got, _ = repo.Get(context.Background(), o.ID)
	require.Equal(t, domain.StatusStockConfirmed, got.Status)
}

func TestMalformedResponseIsDroppedSilently(t *testing.T) {
	repo := newFakeOrderRepo()
	coord := NewCoordinator(logging.New(), repo)
	ctx := context.Background()

	require.NoError(t, coord.HandleValidationResponse(ctx, contracts.StockValidationResponse{}, nil, ""))
	require.NoError(t, coord.HandleValidationResponse(ctx, contracts.StockValidationResponse{OrderID: uuid.New()}, nil, ""))
	require.NoError(t, coord.HandleValidationResponse(ctx, contracts.StockValidationResponse{
		OrderID: uuid.New(), Status: "NOT_A_STATUS",
	}, nil, ""))
}

func TestUnknownOrderIsSurfaced(t *testing.T) {
	repo := newFakeOrderRepo()
	coord := NewCoordinator(logging.New(), repo)

	err := coord.HandleValidationResponse(context.Background(), contracts.StockValidationResponse{
		OrderID: uuid.New(),
		Status:  contracts.ValidationReserved,
	}, nil, "")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestInfrastructureErrorPropagates(t *testing.T) {
	repo := newFakeOrderRepo()
	o := pendingOrder(t, repo)
	repo.transitionErr = errors.New("pg down")
	coord := NewCoordinator(logging.New(), repo)

	err := coord.HandleValidationResponse(context.Background(), contracts.StockValidationResponse{
		OrderID: o.ID,
		Status:  contracts.ValidationReserved,
	}, nil, "")
	require.ErrorContains(t, err, "pg down")

	got, _ := repo.Get(context.Background(), o.ID)
	require.Equal(t, domain.StatusPendingValidation, got.Status, "failed handling must not half-apply")
}

func TestSweepStaleOnlyReports(t *testing.T) {
	repo := newFakeOrderRepo()
	o := pendingOrder(t, repo)

	// Backdate the order so the sweep sees it.
	stale, _ := repo.Get(context.Background(), o.ID)
	stale.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	repo.orders[o.ID] = stale

	coord := NewCoordinator(logging.New(), repo)
	n, err := coord.SweepStale(context.Background(), time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, _ := repo.Get(context.Background(), o.ID)
	require.Equal(t, domain.StatusPendingValidation, got.Status, "sweep must not change state")
}
