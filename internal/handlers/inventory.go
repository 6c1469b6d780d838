package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/craftlane/api/internal/domain"
	"github.com/craftlane/api/internal/platform/httpx"
	"github.com/craftlane/api/internal/platform/pagination"
	"github.com/craftlane/api/internal/platform/requestctx"
	"github.com/craftlane/api/internal/services"
)

const (
	defaultLogPageSize = 50
	maxLogPageSize     = 200
)

// InventoryHandlers exposes the quantity ledger endpoints.
type InventoryHandlers struct {
	inventory services.InventoryService
}

// InventoryOption customises construction of InventoryHandlers.
type InventoryOption func(*InventoryHandlers)

// WithInventoryService injects the inventory service.
func WithInventoryService(svc services.InventoryService) InventoryOption {
	return func(h *InventoryHandlers) {
		h.inventory = svc
	}
}

// NewInventoryHandlers constructs handlers for inventory endpoints.
func NewInventoryHandlers(opts ...InventoryOption) *InventoryHandlers {
	handlers := &InventoryHandlers{}
	for _, opt := range opts {
		if opt != nil {
			opt(handlers)
		}
	}
	return handlers
}

// Routes registers inventory endpoints against the provided router.
func (h *InventoryHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Put("/products/{productID}", h.adjustProduct)
	r.Put("/variants/{variantID}", h.adjustVariant)
	r.Get("/products/{productID}/logs", h.productLogs)
	r.Get("/variants/{variantID}/logs", h.variantLogs)
	r.Get("/stats", h.stats)
}

type adjustRequest struct {
	Quantity   *int64 `json:"quantity"`
	ChangeType string `json:"change_type"`
	Notes      string `json:"notes"`
}

func (h *InventoryHandlers) adjustProduct(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, services.InventoryAdjustCommand{ProductID: chi.URLParam(r, "productID")})
}

func (h *InventoryHandlers) adjustVariant(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, services.InventoryAdjustCommand{VariantID: chi.URLParam(r, "variantID")})
}

func (h *InventoryHandlers) adjust(w http.ResponseWriter, r *http.Request, cmd services.InventoryAdjustCommand) {
	if h.inventory == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("inventory_unavailable", "inventory service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var payload adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if payload.Quantity == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "quantity is required", http.StatusBadRequest))
		return
	}

	actorID := requestctx.Actor(r.Context())
	cmd.OwnerID = actorID
	cmd.ActorID = actorID
	cmd.NewQuantity = *payload.Quantity
	cmd.ChangeType = domain.ChangeType(payload.ChangeType)
	cmd.Notes = payload.Notes

	entry, err := h.inventory.Adjust(r.Context(), cmd)
	if err != nil {
		writeInventoryError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, adjustResponse{Entry: logEntryPayloadFrom(entry)})
}

func (h *InventoryHandlers) productLogs(w http.ResponseWriter, r *http.Request) {
	h.logs(w, r, services.InventoryLogsQuery{ProductID: chi.URLParam(r, "productID")})
}

func (h *InventoryHandlers) variantLogs(w http.ResponseWriter, r *http.Request) {
	h.logs(w, r, services.InventoryLogsQuery{VariantID: chi.URLParam(r, "variantID")})
}

func (h *InventoryHandlers) logs(w http.ResponseWriter, r *http.Request, query services.InventoryLogsQuery) {
	if h.inventory == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("inventory_unavailable", "inventory service is unavailable", http.StatusServiceUnavailable))
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: defaultLogPageSize,
		MaxPageSize:     maxLogPageSize,
	})
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	query.Pager = domain.Pagination{PageSize: params.PageSize, PageToken: params.PageToken}

	page, err := h.inventory.Logs(r.Context(), query)
	if err != nil {
		writeInventoryError(w, r, err)
		return
	}

	entries := make([]logEntryPayload, 0, len(page.Items))
	for _, entry := range page.Items {
		entries = append(entries, logEntryPayloadFrom(entry))
	}
	httpx.WriteJSON(w, http.StatusOK, logListResponse{
		Logs:          entries,
		NextPageToken: page.NextPageToken,
	})
}

func (h *InventoryHandlers) stats(w http.ResponseWriter, r *http.Request) {
	if h.inventory == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("inventory_unavailable", "inventory service is unavailable", http.StatusServiceUnavailable))
		return
	}

	ownerID := requestctx.Actor(r.Context())
	stats, err := h.inventory.Statistics(r.Context(), ownerID)
	if err != nil {
		writeInventoryError(w, r, err)
		return
	}

	recent := make([]logEntryPayload, 0, len(stats.RecentChanges))
	for _, entry := range stats.RecentChanges {
		recent = append(recent, logEntryPayloadFrom(entry))
	}
	httpx.WriteJSON(w, http.StatusOK, statsResponse{
		TotalProducts:      stats.TotalProducts,
		TotalVariants:      stats.TotalVariants,
		LowStockProducts:   stats.LowStockProducts,
		LowStockVariants:   stats.LowStockVariants,
		OutOfStockProducts: stats.OutOfStockProducts,
		OutOfStockVariants: stats.OutOfStockVariants,
		RecentChanges:      recent,
		GeneratedAt:        formatTimestamp(stats.GeneratedAt),
	})
}

func writeInventoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrInventoryInvalidInput):
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrInventoryNotFound):
		httpx.WriteError(r.Context(), w, httpx.NewError("inventory_target_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrInventoryConflict):
		httpx.WriteError(r.Context(), w, httpx.NewError("inventory_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(r.Context(), w, httpx.NewError("inventory_error", err.Error(), http.StatusInternalServerError))
	}
}

type adjustResponse struct {
	Entry logEntryPayload `json:"entry"`
}

type logListResponse struct {
	Logs          []logEntryPayload `json:"logs"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

type logEntryPayload struct {
	ID               string `json:"id"`
	ProductID        string `json:"product_id"`
	VariantID        string `json:"variant_id,omitempty"`
	PreviousQuantity int64  `json:"previous_quantity"`
	NewQuantity      int64  `json:"new_quantity"`
	ChangeAmount     int64  `json:"change_amount"`
	ChangeType       string `json:"change_type"`
	ActorID          string `json:"actor_id"`
	Notes            string `json:"notes,omitempty"`
	CreatedAt        string `json:"created_at"`
}

func logEntryPayloadFrom(entry domain.InventoryLogEntry) logEntryPayload {
	return logEntryPayload{
		ID:               entry.ID,
		ProductID:        entry.ProductID,
		VariantID:        entry.VariantID,
		PreviousQuantity: entry.PreviousQuantity,
		NewQuantity:      entry.NewQuantity,
		ChangeAmount:     entry.ChangeAmount,
		ChangeType:       string(entry.ChangeType),
		ActorID:          entry.ActorID,
		Notes:            entry.Notes,
		CreatedAt:        formatTimestamp(entry.CreatedAt),
	}
}

type statsResponse struct {
	TotalProducts      int               `json:"total_products"`
	TotalVariants      int               `json:"total_variants"`
	LowStockProducts   int               `json:"low_stock_products"`
	LowStockVariants   int               `json:"low_stock_variants"`
	OutOfStockProducts int               `json:"out_of_stock_products"`
	OutOfStockVariants int               `json:"out_of_stock_variants"`
	RecentChanges      []logEntryPayload `json:"recent_changes"`
	GeneratedAt        string            `json:"generated_at"`
}
