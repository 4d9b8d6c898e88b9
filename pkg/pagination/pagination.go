package pagination

import (
	"net/http"
	"strconv"
)

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Offset  int `json:"-"`
}

// Options controls how FromRequestWith reads the page size.
type Options struct {
	// SizeParam is the query parameter carrying the page size.
	SizeParam   string
	DefaultSize int
	MaxSize     int
}

// DefaultOptions reads ?page and ?per_page with a page size of 20, max 100.
func DefaultOptions() Options {
	return Options{SizeParam: "per_page", DefaultSize: 20, MaxSize: 100}
}

// DefaultParams returns sensible pagination defaults.
func DefaultParams() Params {
	return Params{
		Page:    1,
		PerPage: 20,
		Offset:  0,
	}
}

// FromRequest extracts ?page and ?per_page from an HTTP request.
func FromRequest(r *http.Request) Params {
	return FromRequestWith(r, DefaultOptions())
}

// FromRequestWith extracts pagination parameters using the given options.
// Non-numeric or non-positive values fall back to the defaults; sizes above
// MaxSize are clamped.
func FromRequestWith(r *http.Request, opts Options) Params {
	p := Params{Page: 1, PerPage: opts.DefaultSize}
	q := r.URL.Query()

	if page := q.Get("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 0 {
			p.Page = v
		}
	}

	if size := q.Get(opts.SizeParam); size != "" {
		if v, err := strconv.Atoi(size); err == nil && v > 0 {
			p.PerPage = v
			if opts.MaxSize > 0 && v > opts.MaxSize {
				p.PerPage = opts.MaxSize
			}
		}
	}

	p.Offset = (p.Page - 1) * p.PerPage
	return p
}

// TotalPages returns ceil(total/perPage), capped at maxPages when maxPages > 0.
func TotalPages(total, perPage, maxPages int) int {
	if perPage <= 0 || total <= 0 {
		return 0
	}
	pages := total / perPage
	if total%perPage > 0 {
		pages++
	}
	if maxPages > 0 && pages > maxPages {
		pages = maxPages
	}
	return pages
}

// Result wraps a paginated response.
type Result[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewResult creates a paginated result. A nil data slice is encoded as [].
func NewResult[T any](data []T, totalCount int, params Params) Result[T] {
	totalPages := TotalPages(totalCount, params.PerPage, 0)
	if data == nil {
		data = []T{}
	}

	return Result[T]{
		Data:       data,
		TotalCount: totalCount,
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalPages: totalPages,
		HasNext:    params.Page < totalPages,
		HasPrev:    params.Page > 1,
	}
}
