package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/craftlane/api/internal/domain"
	"github.com/craftlane/api/internal/platform/httpx"
	"github.com/craftlane/api/internal/platform/requestctx"
	"github.com/craftlane/api/internal/services"
)

// VariantHandlers exposes variant generation and lifecycle endpoints.
type VariantHandlers struct {
	variants services.VariantService
}

// VariantOption customises construction of VariantHandlers.
type VariantOption func(*VariantHandlers)

// WithVariantService injects the variant service.
func WithVariantService(svc services.VariantService) VariantOption {
	return func(h *VariantHandlers) {
		h.variants = svc
	}
}

// NewVariantHandlers constructs handlers for variant endpoints.
func NewVariantHandlers(opts ...VariantOption) *VariantHandlers {
	handlers := &VariantHandlers{}
	for _, opt := range opts {
		if opt != nil {
			opt(handlers)
		}
	}
	return handlers
}

// Routes registers variant endpoints against the provided router.
func (h *VariantHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{productID}/variants", h.listVariants)
	r.Post("/{productID}/variants:generate", h.generateVariants)
	r.Delete("/{productID}/variants/{variantID}", h.deleteVariant)
}

func (h *VariantHandlers) listVariants(w http.ResponseWriter, r *http.Request) {
	if h.variants == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("variants_unavailable", "variant service is unavailable", http.StatusServiceUnavailable))
		return
	}

	variants, err := h.variants.ListVariants(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeVariantError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, variantListResponse{Variants: variantPayloads(variants)})
}

type generateVariantsRequest struct {
	Selection map[string][]string `json:"selection"`
}

func (h *VariantHandlers) generateVariants(w http.ResponseWriter, r *http.Request) {
	if h.variants == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("variants_unavailable", "variant service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var payload generateVariantsRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	actorID := requestctx.Actor(r.Context())
	variants, err := h.variants.Generate(r.Context(), services.VariantGenerateCommand{
		ProductID: chi.URLParam(r, "productID"),
		OwnerID:   actorID,
		ActorID:   actorID,
		Selection: payload.Selection,
	})
	if err != nil {
		writeVariantError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, variantListResponse{Variants: variantPayloads(variants)})
}

func (h *VariantHandlers) deleteVariant(w http.ResponseWriter, r *http.Request) {
	if h.variants == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("variants_unavailable", "variant service is unavailable", http.StatusServiceUnavailable))
		return
	}

	actorID := requestctx.Actor(r.Context())
	err := h.variants.DeleteVariant(r.Context(), services.VariantDeleteCommand{
		VariantID: chi.URLParam(r, "variantID"),
		OwnerID:   actorID,
		ActorID:   actorID,
	})
	if err != nil {
		writeVariantError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeVariantError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrVariantInvalidInput):
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrVariantNotFound):
		httpx.WriteError(r.Context(), w, httpx.NewError("variant_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrVariantCapacityExceeded):
		httpx.WriteError(r.Context(), w, httpx.NewError("generation_capacity_exceeded", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrVariantConflict):
		httpx.WriteError(r.Context(), w, httpx.NewError("variant_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(r.Context(), w, httpx.NewError("variant_error", err.Error(), http.StatusInternalServerError))
	}
}

type variantListResponse struct {
	Variants []variantPayload `json:"variants"`
}

type variantPayload struct {
	ID        string              `json:"id"`
	ProductID string              `json:"product_id"`
	Options   []optionPairPayload `json:"options"`
	SKU       string              `json:"sku"`
	Price     int64               `json:"price"`
	Cost      int64               `json:"cost"`
	Quantity  int64               `json:"quantity"`
	CreatedAt string              `json:"created_at,omitempty"`
	UpdatedAt string              `json:"updated_at,omitempty"`
}

type optionPairPayload struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func variantPayloads(variants []domain.Variant) []variantPayload {
	items := make([]variantPayload, 0, len(variants))
	for _, v := range variants {
		options := make([]optionPairPayload, 0, len(v.Options))
		for _, pair := range v.Options {
			options = append(options, optionPairPayload{Type: pair.TypeName, Value: pair.Value})
		}
		items = append(items, variantPayload{
			ID:        v.ID,
			ProductID: v.ProductID,
			Options:   options,
			SKU:       v.SKU,
			Price:     v.Price,
			Cost:      v.Cost,
			Quantity:  v.Quantity,
			CreatedAt: formatTimestamp(v.CreatedAt),
			UpdatedAt: formatTimestamp(v.UpdatedAt),
		})
	}
	return items
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}
