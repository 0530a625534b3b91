package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/mejiacortes/bakery-orders/internal/stock/application"
	"github.com/mejiacortes/bakery-orders/internal/stock/domain"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("stock-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/ingredients", h.createIngredient)
	r.Get("/ingredients", h.listIngredients)
	r.Get("/ingredients/low-stock", h.listLowStock)
	r.Get("/ingredients/{id}", h.getIngredient)
	r.Put("/ingredients/{id}/quantity", h.restockIngredient)

	r.Post("/recipes", h.createRecipe)
	r.Get("/recipes", h.listRecipes)
	r.Get("/recipes/{id}", h.getRecipe)

	return r
}

type ingredientReq struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	Supplier     string          `json:"supplier"`
	MinimumStock decimal.Decimal `json:"minimumStock"`
}

func (h *Handler) createIngredient(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateIngredient")
	defer span.End()

	var req ingredientReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	ing, err := h.service.CreateIngredient(ctx, req.Name, req.Description, req.Quantity, req.Unit, req.Supplier, req.MinimumStock)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(ing)
}

func (h *Handler) listIngredients(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListIngredients")
	defer span.End()

	out, err := h.service.ListIngredients(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (h *Handler) listLowStock(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListLowStock")
	defer span.End()

	out, err := h.service.ListLowStock(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (h *Handler) getIngredient(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetIngredient")
	defer span.End()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid ingredient id", http.StatusBadRequest)
		return
	}
	ing, err := h.service.GetIngredient(ctx, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(ing)
}

func (h *Handler) restockIngredient(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RestockIngredient")
	defer span.End()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid ingredient id", http.StatusBadRequest)
		return
	}
	var req struct {
		Quantity decimal.Decimal `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	ing, err := h.service.RestockIngredient(ctx, id, req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(ing)
}

type recipeIngredientReq struct {
	IngredientID uuid.UUID       `json:"ingredientId"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
}

type recipeReq struct {
	ProductID   uuid.UUID             `json:"productId"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Ingredients []recipeIngredientReq `json:"ingredients"`
}

func (h *Handler) createRecipe(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateRecipe")
	defer span.End()

	var req recipeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	ingredients := make([]domain.RecipeIngredient, 0, len(req.Ingredients))
	for _, ri := range req.Ingredients {
		ingredients = append(ingredients, domain.RecipeIngredient{
			IngredientID: ri.IngredientID, Quantity: ri.Quantity, Unit: ri.Unit,
		})
	}
	rec, err := h.service.CreateRecipe(ctx, req.ProductID, req.Name, req.Description, ingredients)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(rec)
}

func (h *Handler) listRecipes(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListRecipes")
	defer span.End()

	out, err := h.service.ListRecipes(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (h *Handler) getRecipe(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetRecipe")
	defer span.End()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid recipe id", http.StatusBadRequest)
		return
	}
	rec, err := h.service.GetRecipe(ctx, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(rec)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrIngredientNotFound), errors.Is(err, domain.ErrRecipeNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrIngredientName), errors.Is(err, domain.ErrMissingUnit),
		errors.Is(err, domain.ErrNegativeQuantity), errors.Is(err, domain.ErrNonPositiveQuantity),
		errors.Is(err, domain.ErrRecipeProduct), errors.Is(err, domain.ErrRecipeEmpty):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.Error("request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
