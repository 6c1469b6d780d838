package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/craftlane/api/internal/platform/httpx"
	"github.com/craftlane/api/internal/services"
)

// CatalogHandlers exposes the variation catalog lookups.
type CatalogHandlers struct {
	catalog services.VariationCatalogService
}

// CatalogOption customises construction of CatalogHandlers.
type CatalogOption func(*CatalogHandlers)

// WithCatalogService injects the variation catalog service.
func WithCatalogService(svc services.VariationCatalogService) CatalogOption {
	return func(h *CatalogHandlers) {
		h.catalog = svc
	}
}

// NewCatalogHandlers constructs handlers for variation catalog endpoints.
func NewCatalogHandlers(opts ...CatalogOption) *CatalogHandlers {
	handlers := &CatalogHandlers{}
	for _, opt := range opts {
		if opt != nil {
			opt(handlers)
		}
	}
	return handlers
}

// Routes registers catalog endpoints against the provided router.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/categories/{categoryID}/variation-types", h.listVariationTypes)
	r.Get("/categories/{categoryID}/variation-types/{typeName}/options", h.listOptions)
}

func (h *CatalogHandlers) listVariationTypes(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("catalog_unavailable", "variation catalog is unavailable", http.StatusServiceUnavailable))
		return
	}

	categoryID := chi.URLParam(r, "categoryID")
	types, err := h.catalog.ResolveTypes(r.Context(), categoryID)
	if err != nil {
		// Unknown categories resolve to an empty type list for clients.
		if errors.Is(err, services.ErrCatalogNotFound) {
			httpx.WriteJSON(w, http.StatusOK, variationTypeListResponse{VariationTypes: []variationTypePayload{}})
			return
		}
		writeCatalogError(w, r, err)
		return
	}

	items := make([]variationTypePayload, 0, len(types))
	for _, vt := range types {
		items = append(items, variationTypePayload{
			Name:        vt.Name,
			DisplayName: vt.DisplayName,
			Options:     copyStringSlice(vt.Options),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, variationTypeListResponse{VariationTypes: items})
}

func (h *CatalogHandlers) listOptions(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("catalog_unavailable", "variation catalog is unavailable", http.StatusServiceUnavailable))
		return
	}

	categoryID := chi.URLParam(r, "categoryID")
	typeName := chi.URLParam(r, "typeName")
	options, err := h.catalog.ResolveOptions(r.Context(), categoryID, typeName)
	if err != nil {
		if errors.Is(err, services.ErrCatalogNotFound) {
			httpx.WriteJSON(w, http.StatusOK, optionListResponse{Options: []string{}})
			return
		}
		writeCatalogError(w, r, err)
		return
	}
	if options == nil {
		options = []string{}
	}
	httpx.WriteJSON(w, http.StatusOK, optionListResponse{Options: options})
}

func writeCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(r.Context(), w, httpx.NewError("catalog_error", err.Error(), http.StatusInternalServerError))
	}
}

type variationTypeListResponse struct {
	VariationTypes []variationTypePayload `json:"variation_types"`
}

type variationTypePayload struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name,omitempty"`
	Options     []string `json:"options"`
}

type optionListResponse struct {
	Options []string `json:"options"`
}

func copyStringSlice(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	return append([]string(nil), in...)
}
