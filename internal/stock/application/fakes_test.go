package application

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mejiacortes/bakery-orders/internal/stock/domain"
)

type fakeIngredientRepo struct {
	mu          sync.Mutex
	ingredients map[uuid.UUID]domain.Ingredient
}

func newFakeIngredientRepo(ingredients ...domain.Ingredient) *fakeIngredientRepo {
	r := &fakeIngredientRepo{ingredients: make(map[uuid.UUID]domain.Ingredient)}
	for _, ing := range ingredients {
		r.ingredients[ing.ID] = ing
	}
	return r
}

func (r *fakeIngredientRepo) Save(_ context.Context, ing domain.Ingredient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ingredients[ing.ID] = ing
	return nil
}

func (r *fakeIngredientRepo) Get(_ context.Context, id uuid.UUID) (domain.Ingredient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ing, ok := r.ingredients[id]
	if !ok {
		return domain.Ingredient{}, domain.ErrIngredientNotFound
	}
	return ing, nil
}

func (r *fakeIngredientRepo) List(_ context.Context) ([]domain.Ingredient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Ingredient, 0, len(r.ingredients))
	for _, ing := range r.ingredients {
		out = append(out, ing)
	}
	return out, nil
}

func (r *fakeIngredientRepo) ListLowStock(ctx context.Context) ([]domain.Ingredient, error) {
	all, _ := r.List(ctx)
	var out []domain.Ingredient
	for _, ing := range all {
		if ing.HasLowStock() {
			out = append(out, ing)
		}
	}
	return out, nil
}

type fakeRecipeRepo struct {
	mu      sync.Mutex
	recipes map[uuid.UUID]domain.Recipe
}

func newFakeRecipeRepo(recipes ...domain.Recipe) *fakeRecipeRepo {
	r := &fakeRecipeRepo{recipes: make(map[uuid.UUID]domain.Recipe)}
	for _, rec := range recipes {
		r.recipes[rec.ID] = rec
	}
	return r
}

func (r *fakeRecipeRepo) Save(_ context.Context, rec domain.Recipe) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recipes[rec.ID] = rec
	return nil
}

func (r *fakeRecipeRepo) Get(_ context.Context, id uuid.UUID) (domain.Recipe, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recipes[id]
	if !ok {
		return domain.Recipe{}, domain.ErrRecipeNotFound
	}
	return rec, nil
}

func (r *fakeRecipeRepo) FindByProductID(_ context.Context, productID uuid.UUID) (domain.Recipe, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.recipes {
		if rec.ProductID == productID {
			return rec, nil
		}
	}
	return domain.Recipe{}, domain.ErrRecipeNotFound
}

func (r *fakeRecipeRepo) List(_ context.Context) ([]domain.Recipe, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Recipe, 0, len(r.recipes))
	for _, rec := range r.recipes {
		out = append(out, rec)
	}
	return out, nil
}

// fakeReservationStore mirrors the postgres store's atomicity: the whole
// check-then-decrement runs under one lock, and on shortfall nothing changes.
type fakeReservationStore struct {
	mu          sync.Mutex
	ingredients *fakeIngredientRepo
	reserved    map[uuid.UUID]string // order id -> RESERVED | COMMITTED | REJECTED
	events      []recordedEvent

	reserveErr error
}

type recordedEvent struct {
	orderID   uuid.UUID
	eventType string
	payload   []byte
}

func newFakeReservationStore(ingredients *fakeIngredientRepo) *fakeReservationStore {
	return &fakeReservationStore{ingredients: ingredients, reserved: make(map[uuid.UUID]string)}
}

func (s *fakeReservationStore) Reserved(_ context.Context, orderID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.reserved[orderID]
	return st == "RESERVED" || st == "COMMITTED", nil
}

func (s *fakeReservationStore) ReserveWithOutbox(ctx context.Context, orderID uuid.UUID, required map[uuid.UUID]decimal.Decimal, buildEvent BuildEvent, _ map[string]string, _ string) (ReservationOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reserveErr != nil {
		return ReservationOutcome{}, s.reserveErr
	}

	ids := make([]uuid.UUID, 0, len(required))
	for id := range required {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	var outcome ReservationOutcome
	for _, id := range ids {
		ing, err := s.ingredients.Get(ctx, id)
		if err != nil {
			outcome.Shortages = append(outcome.Shortages, domain.Shortage{IngredientID: id, Required: required[id], Missing: true})
			continue
		}
		if ing.Quantity.LessThan(required[id]) {
			outcome.Shortages = append(outcome.Shortages, domain.Shortage{
				IngredientID: id, Name: ing.Name, Required: required[id], Available: ing.Quantity,
			})
		}
	}

	if outcome.OK() {
		for _, id := range ids {
			ing, _ := s.ingredients.Get(ctx, id)
			updated, _ := ing.WithQuantity(ing.Quantity.Sub(required[id]))
			_ = s.ingredients.Save(ctx, updated)
		}
		s.reserved[orderID] = "RESERVED"
	} else {
		s.reserved[orderID] = "REJECTED"
	}

	eventType, payload := buildEvent(outcome)
	s.events = append(s.events, recordedEvent{orderID: orderID, eventType: eventType, payload: payload})
	return outcome, nil
}

func (s *fakeReservationStore) RejectWithOutbox(_ context.Context, orderID uuid.UUID, _ string, eventType string, payload []byte, _ map[string]string, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reserved[orderID] = "REJECTED"
	s.events = append(s.events, recordedEvent{orderID: orderID, eventType: eventType, payload: payload})
	return nil
}

func (s *fakeReservationStore) AppendEvent(_ context.Context, orderID uuid.UUID, eventType string, payload []byte, _ map[string]string, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{orderID: orderID, eventType: eventType, payload: payload})
	return nil
}

func (s *fakeReservationStore) Commit(_ context.Context, orderID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reserved[orderID] == "RESERVED" {
		s.reserved[orderID] = "COMMITTED"
	}
	return nil
}

func (s *fakeReservationStore) eventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
