package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/catalog/internal/service"
	"github.com/utafrali/catalog/pkg/httputil"
)

// FacetHandler serves the browse endpoints: facets, trending and related
// products, autocomplete, and raw index reads.
type FacetHandler struct {
	service *service.FacetService
	logger  *slog.Logger
}

// NewFacetHandler creates a new facet HTTP handler.
func NewFacetHandler(svc *service.FacetService, logger *slog.Logger) *FacetHandler {
	return &FacetHandler{
		service: svc,
		logger:  logger,
	}
}

// Categories handles GET /api/v1/facets/categories
func (h *FacetHandler) Categories(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Categories(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: out})
}

// Colors handles GET /api/v1/facets/colors
func (h *FacetHandler) Colors(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.service.Colors()})
}

// PriceRanges handles GET /api/v1/facets/price-ranges
func (h *FacetHandler) PriceRanges(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.PriceRanges(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: out})
}

// Trending handles GET /api/v1/products/trending
func (h *FacetHandler) Trending(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	out, err := h.service.Trending(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: out})
}

// Related handles GET /api/v1/products/{id}/related
func (h *FacetHandler) Related(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	out, err := h.service.Related(r.Context(), id.String(), limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: out})
}

// Suggest handles GET /api/v1/search/suggest
func (h *FacetHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Suggest(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: out})
}

// IndexedProduct handles GET /api/v1/index/products/{id}
func (h *FacetHandler) IndexedProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	out, err := h.service.IndexedProduct(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: out})
}

// parseLimit reads ?limit. Absent means the service default.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(v)
	if err != nil || limit < 1 {
		httputil.WriteInvalidParameter(w, "limit must be a positive integer")
		return 0, false
	}
	return limit, true
}
