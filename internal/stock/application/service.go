package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mejiacortes/bakery-orders/internal/contracts"
	"github.com/mejiacortes/bakery-orders/internal/stock/domain"
)

// Service is the reservation engine: it resolves ordered products to recipes,
// aggregates ingredient requirements across line items, and reserves stock
// all-or-nothing.
type Service struct {
	log          *slog.Logger
	ingredients  IngredientRepository
	recipes      RecipeRepository
	reservations ReservationStore
}

func NewService(log *slog.Logger, ingredients IngredientRepository, recipes RecipeRepository, reservations ReservationStore) *Service {
	return &Service{log: log, ingredients: ingredients, recipes: recipes, reservations: reservations}
}

// Reserve validates and reserves stock for one order message and returns the
// response that was enqueued for the order service.
//
// Business rejections (unknown product, missing ingredient, insufficient
// stock) come back as a CANCELLED_NO_STOCK response with nothing mutated.
// Infrastructure failures come back as an error with no response enqueued at
// all, so the transport redelivers the request.
func (s *Service) Reserve(ctx context.Context, msg contracts.OrderMessage, headers map[string]string, traceparent string) (contracts.StockValidationResponse, error) {
	already, err := s.reservations.Reserved(ctx, msg.OrderID)
	if err != nil {
		return contracts.StockValidationResponse{}, err
	}
	if already {
		// Redelivered order message: re-announce the verdict, touch nothing.
		resp := reserved(msg.OrderID)
		payload, err := json.Marshal(resp)
		if err != nil {
			return contracts.StockValidationResponse{}, err
		}
		if err := s.reservations.AppendEvent(ctx, msg.OrderID, contracts.EventStockValidationResponse, payload, headers, traceparent); err != nil {
			return contracts.StockValidationResponse{}, err
		}
		s.log.Info("order already reserved, republishing response", "order_id", msg.OrderID)
		return resp, nil
	}

	recipes := make(map[uuid.UUID]domain.Recipe, len(msg.Products))
	for _, item := range msg.Products {
		if _, ok := recipes[item.ProductID]; ok {
			continue
		}
		recipe, err := s.recipes.FindByProductID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrRecipeNotFound) {
				return s.reject(ctx, msg.OrderID, cancelled(msg.OrderID, fmt.Sprintf("no recipe for product %s", item.ProductID)), headers, traceparent)
			}
			return contracts.StockValidationResponse{}, err
		}
		recipes[item.ProductID] = recipe
	}

	required, err := domain.AggregateRequirements(recipes, msg.Products)
	if err != nil {
		if errors.Is(err, domain.ErrNonPositiveQuantity) {
			return s.reject(ctx, msg.OrderID, cancelled(msg.OrderID, err.Error()), headers, traceparent)
		}
		return contracts.StockValidationResponse{}, err
	}

	var resp contracts.StockValidationResponse
	outcome, err := s.reservations.ReserveWithOutbox(ctx, msg.OrderID, required, func(outcome ReservationOutcome) (string, []byte) {
		if outcome.OK() {
			resp = reserved(msg.OrderID)
		} else {
			resp = cancelled(msg.OrderID, outcome.Shortages[0].String())
		}
		payload, _ := json.Marshal(resp)
		return contracts.EventStockValidationResponse, payload
	}, headers, traceparent)
	if err != nil {
		return contracts.StockValidationResponse{}, err
	}

	if outcome.OK() {
		s.log.Info("stock reserved", "order_id", msg.OrderID, "ingredients", len(required))
	} else {
		s.log.Info("order rejected for insufficient stock",
			"order_id", msg.OrderID, "shortages", len(outcome.Shortages), "reason", resp.Reason)
	}
	return resp, nil
}

func (s *Service) reject(ctx context.Context, orderID uuid.UUID, resp contracts.StockValidationResponse, headers map[string]string, traceparent string) (contracts.StockValidationResponse, error) {
	payload, err := json.Marshal(resp)
	if err != nil {
		return contracts.StockValidationResponse{}, err
	}
	if err := s.reservations.RejectWithOutbox(ctx, orderID, resp.Reason, contracts.EventStockValidationResponse, payload, headers, traceparent); err != nil {
		return contracts.StockValidationResponse{}, err
	}
	s.log.Info("order rejected", "order_id", orderID, "status", resp.Status, "reason", resp.Reason)
	return resp, nil
}

// Confirm handles a stock update confirmation: the deduction already happened
// when the order was reserved, so this only promotes the reservation to its
// committed state. Re-delivered confirmations are no-ops.
func (s *Service) Confirm(ctx context.Context, conf contracts.StockUpdateConfirmation) error {
	if conf.OrderID == uuid.Nil {
		s.log.Warn("dropping stock update confirmation without order id")
		return nil
	}
	if err := s.reservations.Commit(ctx, conf.OrderID); err != nil {
		return err
	}
	s.log.Info("reservation committed", "order_id", conf.OrderID)
	return nil
}

func (s *Service) CreateIngredient(ctx context.Context, name, description string, quantity decimal.Decimal, unit, supplier string, minimumStock decimal.Decimal) (domain.Ingredient, error) {
	ing, err := domain.NewIngredient(name, description, quantity, unit, supplier, minimumStock)
	if err != nil {
		return domain.Ingredient{}, err
	}
	if err := s.ingredients.Save(ctx, ing); err != nil {
		return domain.Ingredient{}, err
	}
	return ing, nil
}

func (s *Service) GetIngredient(ctx context.Context, id uuid.UUID) (domain.Ingredient, error) {
	return s.ingredients.Get(ctx, id)
}

func (s *Service) ListIngredients(ctx context.Context) ([]domain.Ingredient, error) {
	return s.ingredients.List(ctx)
}

func (s *Service) ListLowStock(ctx context.Context) ([]domain.Ingredient, error) {
	return s.ingredients.ListLowStock(ctx)
}

func (s *Service) RestockIngredient(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) (domain.Ingredient, error) {
	ing, err := s.ingredients.Get(ctx, id)
	if err != nil {
		return domain.Ingredient{}, err
	}
	updated, err := ing.WithQuantity(quantity)
	if err != nil {
		return domain.Ingredient{}, err
	}
	if err := s.ingredients.Save(ctx, updated); err != nil {
		return domain.Ingredient{}, err
	}
	return updated, nil
}

func (s *Service) CreateRecipe(ctx context.Context, productID uuid.UUID, name, description string, ingredients []domain.RecipeIngredient) (domain.Recipe, error) {
	for _, ri := range ingredients {
		if _, err := s.ingredients.Get(ctx, ri.IngredientID); err != nil {
			return domain.Recipe{}, fmt.Errorf("recipe ingredient %s: %w", ri.IngredientID, err)
		}
	}
	r, err := domain.NewRecipe(productID, name, description, ingredients)
	if err != nil {
		return domain.Recipe{}, err
	}
	if err := s.recipes.Save(ctx, r); err != nil {
		return domain.Recipe{}, err
	}
	return r, nil
}

func (s *Service) GetRecipe(ctx context.Context, id uuid.UUID) (domain.Recipe, error) {
	return s.recipes.Get(ctx, id)
}

func (s *Service) ListRecipes(ctx context.Context) ([]domain.Recipe, error) {
	return s.recipes.List(ctx)
}

func reserved(orderID uuid.UUID) contracts.StockValidationResponse {
	return contracts.StockValidationResponse{OrderID: orderID, Status: contracts.ValidationReserved}
}

func cancelled(orderID uuid.UUID, reason string) contracts.StockValidationResponse {
	return contracts.StockValidationResponse{OrderID: orderID, Status: contracts.ValidationCancelledNoStock, Reason: reason}
}
