package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/service"
	"github.com/utafrali/catalog/pkg/httputil"
	"github.com/utafrali/catalog/pkg/validator"
)

// CacheHeader reports whether a search was served from the response cache.
const CacheHeader = "X-Cache"

// SearchHandler handles HTTP requests for search endpoints.
type SearchHandler struct {
	service *service.SearchService
	logger  *slog.Logger
}

// NewSearchHandler creates a new search HTTP handler.
func NewSearchHandler(svc *service.SearchService, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		service: svc,
		logger:  logger,
	}
}

// SearchRequest holds the raw query parameters of a search.
type SearchRequest struct {
	Page     string `form:"page" validate:"omitempty,number,max=9"`
	Limit    string `form:"limit" validate:"omitempty,number,max=9"`
	Query    string `form:"query" validate:"max=200"`
	Category string `form:"category" validate:"max=100"`
	MinPrice string `form:"minPrice" validate:"omitempty,number,max=15"`
	MaxPrice string `form:"maxPrice" validate:"omitempty,number,max=15"`
	Colors   string `form:"colors" validate:"max=500"`
	Sort     string `form:"sort"`
}

func bindSearchRequest(r *http.Request) SearchRequest {
	q := r.URL.Query()
	return SearchRequest{
		Page:     q.Get("page"),
		Limit:    q.Get("limit"),
		Query:    q.Get("query"),
		Category: q.Get("category"),
		MinPrice: q.Get("minPrice"),
		MaxPrice: q.Get("maxPrice"),
		Colors:   q.Get("colors"),
		Sort:     q.Get("sort"),
	}
}

func (req SearchRequest) toParams() domain.SearchParams {
	p := domain.SearchParams{
		Query:    req.Query,
		Category: req.Category,
		Colors:   req.Colors,
		Sort:     domain.SortKey(req.Sort),
	}
	p.Page, _ = strconv.Atoi(req.Page)
	p.Limit, _ = strconv.Atoi(req.Limit)
	if req.MinPrice != "" {
		v, _ := strconv.ParseInt(req.MinPrice, 10, 64)
		p.MinPrice = &v
	}
	if req.MaxPrice != "" {
		v, _ := strconv.ParseInt(req.MaxPrice, 10, 64)
		p.MaxPrice = &v
	}
	return p
}

// Search handles GET /api/v1/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	req := bindSearchRequest(r)
	if err := validator.Validate(req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	params := req.toParams()
	if params.MinPrice != nil && params.MaxPrice != nil && *params.MinPrice > *params.MaxPrice {
		httputil.WriteInvalidParameter(w, "minPrice must not exceed maxPrice")
		return
	}

	out, err := h.service.Search(r.Context(), params)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if out.CacheHit {
		w.Header().Set(CacheHeader, "HIT")
	} else {
		w.Header().Set(CacheHeader, "MISS")
	}
	httputil.WriteRawData(w, http.StatusOK, out.Payload)
}
