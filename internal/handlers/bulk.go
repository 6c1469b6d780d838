package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/craftlane/api/internal/platform/httpx"
	"github.com/craftlane/api/internal/platform/requestctx"
	"github.com/craftlane/api/internal/services"
)

// BulkHandlers exposes batched variant and inventory mutations.
type BulkHandlers struct {
	bulk services.BulkService
}

// BulkOption customises construction of BulkHandlers.
type BulkOption func(*BulkHandlers)

// WithBulkService injects the bulk mutation service.
func WithBulkService(svc services.BulkService) BulkOption {
	return func(h *BulkHandlers) {
		h.bulk = svc
	}
}

// NewBulkHandlers constructs handlers for bulk mutation endpoints.
func NewBulkHandlers(opts ...BulkOption) *BulkHandlers {
	handlers := &BulkHandlers{}
	for _, opt := range opts {
		if opt != nil {
			opt(handlers)
		}
	}
	return handlers
}

// Routes registers bulk endpoints against the provided router.
func (h *BulkHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/bulk-edit", h.bulkEdit)
	r.Post("/bulk-quantity", h.bulkQuantity)
}

type bulkEditRequest struct {
	Edits []bulkEditItem `json:"edits"`
}

type bulkEditItem struct {
	VariantID string `json:"variant_id"`
	Price     *int64 `json:"price"`
	Cost      *int64 `json:"cost"`
	Quantity  *int64 `json:"quantity"`
}

func (h *BulkHandlers) bulkEdit(w http.ResponseWriter, r *http.Request) {
	if h.bulk == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("bulk_unavailable", "bulk service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var payload bulkEditRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	actorID := requestctx.Actor(r.Context())
	edits := make([]services.VariantEdit, 0, len(payload.Edits))
	for _, item := range payload.Edits {
		edits = append(edits, services.VariantEdit{
			VariantID: item.VariantID,
			Price:     item.Price,
			Cost:      item.Cost,
			Quantity:  item.Quantity,
		})
	}

	result, err := h.bulk.BulkEditVariants(r.Context(), services.BulkEditCommand{
		OwnerID: actorID,
		ActorID: actorID,
		Edits:   edits,
	})
	if err != nil {
		writeBulkError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bulkResultPayload(result))
}

type bulkQuantityRequest struct {
	VariantIDs []string `json:"variant_ids"`
	Quantity   *int64   `json:"quantity"`
	Notes      string   `json:"notes"`
}

func (h *BulkHandlers) bulkQuantity(w http.ResponseWriter, r *http.Request) {
	if h.bulk == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("bulk_unavailable", "bulk service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var payload bulkQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if payload.Quantity == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "quantity is required", http.StatusBadRequest))
		return
	}

	actorID := requestctx.Actor(r.Context())
	result, err := h.bulk.BulkSetQuantity(r.Context(), services.BulkQuantityCommand{
		OwnerID:    actorID,
		ActorID:    actorID,
		VariantIDs: payload.VariantIDs,
		Quantity:   *payload.Quantity,
		Notes:      payload.Notes,
	})
	if err != nil {
		writeBulkError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bulkResultPayload(result))
}

func writeBulkError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrBulkInvalidInput):
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(r.Context(), w, httpx.NewError("bulk_error", err.Error(), http.StatusInternalServerError))
	}
}

type bulkResponse struct {
	Updated  []variantPayload     `json:"updated"`
	Failures []bulkFailurePayload `json:"failures"`
}

type bulkFailurePayload struct {
	VariantID string `json:"variant_id"`
	Reason    string `json:"reason"`
}

func bulkResultPayload(result services.BulkResult) bulkResponse {
	failures := make([]bulkFailurePayload, 0, len(result.Failures))
	for _, failure := range result.Failures {
		failures = append(failures, bulkFailurePayload{
			VariantID: failure.VariantID,
			Reason:    failure.Reason,
		})
	}
	return bulkResponse{
		Updated:  variantPayloads(result.Updated),
		Failures: failures,
	}
}
