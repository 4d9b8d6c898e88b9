package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/catalog/internal/service"
	"github.com/utafrali/catalog/pkg/httputil"
)

// AdminHandler handles index maintenance endpoints.
type AdminHandler struct {
	service          *service.IndexService
	defaultBatchSize int
	logger           *slog.Logger
}

// NewAdminHandler creates a new admin HTTP handler.
func NewAdminHandler(svc *service.IndexService, defaultBatchSize int, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		service:          svc,
		defaultBatchSize: defaultBatchSize,
		logger:           logger,
	}
}

// Reindex handles POST /api/v1/admin/reindex
func (h *AdminHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	batchSize := h.defaultBatchSize
	if v := r.URL.Query().Get("batch_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > service.MaxReindexBatchSize {
			httputil.WriteInvalidParameter(w, "batch_size must be an integer between 1 and "+strconv.Itoa(service.MaxReindexBatchSize))
			return
		}
		batchSize = n
	}

	result, err := h.service.Reindex(r.Context(), batchSize)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// DeleteIndexedProduct handles DELETE /api/v1/admin/index/products/{id}
func (h *AdminHandler) DeleteIndexedProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.DeleteDocument(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": id.String(), "status": "deleted"}})
}
