// Package memory is an in-process search engine for tests and local
// development. It mirrors the Elasticsearch adapter closely enough for the
// service layer: fuzzy matching is approximated by case-insensitive
// substring matching.
package memory

import (
	"cmp"
	"context"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/engine"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

// Engine is a map-backed engine.SearchEngine.
type Engine struct {
	mu     sync.RWMutex
	docs   map[string]domain.SearchDocument
	down   bool
	reject func(*domain.SearchDocument) error
}

var _ engine.SearchEngine = (*Engine)(nil)

// New returns an empty engine.
func New() *Engine {
	return &Engine{docs: make(map[string]domain.SearchDocument)}
}

// SetAvailable simulates an outage: while false every call fails with
// engine.ErrUnavailable.
func (e *Engine) SetAvailable(ok bool) {
	e.mu.Lock()
	e.down = !ok
	e.mu.Unlock()
}

// RejectWhen makes BulkIndex report documents for which fn returns an error
// as failed instead of storing them.
func (e *Engine) RejectWhen(fn func(*domain.SearchDocument) error) {
	e.mu.Lock()
	e.reject = fn
	e.mu.Unlock()
}

// Len returns the number of stored documents, deleted ones included.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.docs)
}

func (e *Engine) check() error {
	if e.down {
		return engine.ErrUnavailable
	}
	return nil
}

// Ping fails only while the engine is marked unavailable.
func (e *Engine) Ping(context.Context) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.check()
}

// Index stores a copy of doc, replacing any document with the same id.
func (e *Engine) Index(ctx context.Context, doc *domain.SearchDocument) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(); err != nil {
		return err
	}
	e.docs[doc.ID] = clone(doc)
	return nil
}

// Get returns a copy of the document with the given id, deleted or not.
func (e *Engine) Get(ctx context.Context, id string) (*domain.SearchDocument, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.check(); err != nil {
		return nil, err
	}
	doc, ok := e.docs[id]
	if !ok {
		return nil, apperrors.NotFound("indexed product", id)
	}
	out := clone(&doc)
	return &out, nil
}

// Exists reports whether a document with the given id is stored.
func (e *Engine) Exists(ctx context.Context, id string) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.check(); err != nil {
		return false, err
	}
	_, ok := e.docs[id]
	return ok, nil
}

// Delete removes a document. Unknown ids are ignored.
func (e *Engine) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(); err != nil {
		return err
	}
	delete(e.docs, id)
	return nil
}

// BulkIndex stores docs, reporting those refused by RejectWhen as failures.
func (e *Engine) BulkIndex(ctx context.Context, docs []*domain.SearchDocument) (*engine.BulkResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(); err != nil {
		return nil, err
	}

	res := &engine.BulkResult{}
	for _, doc := range docs {
		if e.reject != nil {
			if err := e.reject(doc); err != nil {
				res.Failed++
				res.Failures = append(res.Failures, engine.BulkFailure{ID: doc.ID, Reason: err.Error()})
				continue
			}
		}
		e.docs[doc.ID] = clone(doc)
		res.Indexed++
	}
	return res, nil
}

// RecreateIndex drops every stored document.
func (e *Engine) RecreateIndex(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(); err != nil {
		return err
	}
	e.docs = make(map[string]domain.SearchDocument)
	return nil
}

// Refresh is a no-op; writes are visible immediately.
func (e *Engine) Refresh(context.Context) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.check()
}

// Search filters, sorts and pages live documents and aggregates over the
// full match set.
func (e *Engine) Search(ctx context.Context, params *domain.SearchParams) (*domain.SearchResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.check(); err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(params.Query))
	colors := params.ColorList()

	var matched []domain.SearchDocument
	for _, d := range e.live() {
		if query != "" && !strings.Contains(strings.ToLower(d.Name), query) &&
			!strings.Contains(strings.ToLower(d.Description), query) {
			continue
		}
		if params.HasCategory() && d.Category != params.Category {
			continue
		}
		if params.MinPrice != nil && d.Price < *params.MinPrice {
			continue
		}
		if params.MaxPrice != nil && d.Price > *params.MaxPrice {
			continue
		}
		if len(colors) > 0 && !overlaps(d.Colors, colors) {
			continue
		}
		matched = append(matched, d)
	}

	sortDocs(matched, params.Sort)

	res := &domain.SearchResult{
		Products:     []domain.Product{},
		Total:        int64(len(matched)),
		Page:         params.Page,
		Pages:        domain.Pages(int64(len(matched)), params.Limit),
		Aggregations: aggregate(matched),
	}
	start := min(params.Offset(), len(matched))
	end := min(start+params.Limit, len(matched))
	for i := start; i < end; i++ {
		res.Products = append(res.Products, matched[i].Product())
	}
	return res, nil
}

// TermSuggestions returns name words that look like text.
func (e *Engine) TermSuggestions(ctx context.Context, text string, size int) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.check(); err != nil {
		return nil, err
	}
	return e.termSuggestions(text, size), nil
}

// termSuggestions proposes name words sharing the first two letters of text.
func (e *Engine) termSuggestions(text string, size int) []string {
	text = strings.ToLower(strings.TrimSpace(text))
	r := []rune(text)
	if len(r) < 2 {
		return []string{}
	}
	stem := string(r[:2])

	freq := map[string]int{}
	for _, d := range e.live() {
		for _, w := range strings.Fields(strings.ToLower(d.Name)) {
			if w != text && strings.HasPrefix(w, stem) {
				freq[w]++
			}
		}
	}
	return topKeys(freq, size)
}

// Suggest returns live product names containing prefix, most frequent first,
// followed by term suggestions.
func (e *Engine) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.check(); err != nil {
		return nil, err
	}

	names := map[string]int{}
	for _, d := range e.live() {
		if strings.Contains(d.Name, prefix) {
			names[d.Name]++
		}
	}
	out := topKeys(names, limit)
	out = append(out, e.termSuggestions(prefix, limit)...)

	seen := map[string]struct{}{}
	result := make([]string, 0, limit)
	for _, s := range out {
		if len(result) == limit {
			break
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		result = append(result, s)
	}
	return result, nil
}

// Categories counts live documents per category.
func (e *Engine) Categories(ctx context.Context, size int) ([]domain.CategoryCount, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.check(); err != nil {
		return nil, err
	}

	counts := map[string]int{}
	for _, d := range e.live() {
		counts[d.Category]++
	}
	out := []domain.CategoryCount{}
	for _, k := range topKeys(counts, size) {
		out = append(out, domain.CategoryCount{Name: k, Count: int64(counts[k])})
	}
	return out, nil
}

// PriceRanges computes price stats and the fixed bucket counts over live
// documents.
func (e *Engine) PriceRanges(ctx context.Context) (*domain.PriceRanges, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.check(); err != nil {
		return nil, err
	}

	docs := e.live()
	out := &domain.PriceRanges{Ranges: make([]domain.PriceRangeBucket, 0, len(domain.PriceBuckets))}
	for i, d := range docs {
		p := float64(d.Price)
		if i == 0 || p < out.Stats.Min {
			out.Stats.Min = p
		}
		if i == 0 || p > out.Stats.Max {
			out.Stats.Max = p
		}
		out.Stats.Sum += p
	}
	out.Stats.Count = int64(len(docs))
	if len(docs) > 0 {
		out.Stats.Avg = out.Stats.Sum / float64(len(docs))
	}

	for _, b := range domain.PriceBuckets {
		bucket := domain.PriceRangeBucket{Key: rangeKey(b)}
		if b.From > 0 {
			from := b.From
			bucket.From = &from
		}
		if b.To > 0 {
			to := b.To
			bucket.To = &to
		}
		for _, d := range docs {
			p := float64(d.Price)
			if (b.From == 0 || p >= b.From) && (b.To == 0 || p < b.To) {
				bucket.DocCount++
			}
		}
		out.Ranges = append(out.Ranges, bucket)
	}
	return out, nil
}

// rangeKey formats a bucket key the way Elasticsearch does.
func rangeKey(b domain.PriceBound) string {
	f := func(v float64) string {
		if v == 0 {
			return "*"
		}
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return f(b.From) + "-" + f(b.To)
}

// Trending ranks live documents by views and sales.
func (e *Engine) Trending(ctx context.Context, limit int) ([]domain.Product, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.check(); err != nil {
		return nil, err
	}

	docs := e.live()
	score := func(d domain.SearchDocument) float64 {
		// function_score multiplies the two functions, then boost_mode sum
		// adds the match_all score of 1.
		return 1 + math.Log10(1+float64(d.Views))*math.Log10(1+0.5*float64(d.Sold))
	}
	slices.SortStableFunc(docs, func(a, b domain.SearchDocument) int {
		if c := cmp.Compare(score(b), score(a)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return products(docs, limit), nil
}

// Related returns live documents sharing a category or color with id.
func (e *Engine) Related(ctx context.Context, id string, limit int) ([]domain.Product, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.check(); err != nil {
		return nil, err
	}

	src, ok := e.docs[id]
	if !ok {
		return nil, apperrors.NotFound("indexed product", id)
	}

	type scored struct {
		doc   domain.SearchDocument
		score int
	}
	var hits []scored
	for _, d := range e.live() {
		if d.ID == id {
			continue
		}
		s := 0
		if d.Category == src.Category {
			s += 2
		}
		if overlaps(d.Colors, src.Colors) {
			s++
		}
		if s > 0 {
			hits = append(hits, scored{d, s})
		}
	}
	slices.SortStableFunc(hits, func(a, b scored) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.doc.ID, b.doc.ID)
	})

	docs := make([]domain.SearchDocument, 0, len(hits))
	for _, h := range hits {
		docs = append(docs, h.doc)
	}
	return products(docs, limit), nil
}

// live returns non-deleted documents ordered by id. Callers hold the lock.
func (e *Engine) live() []domain.SearchDocument {
	out := make([]domain.SearchDocument, 0, len(e.docs))
	for _, d := range e.docs {
		if d.DeletedAt == nil {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b domain.SearchDocument) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func sortDocs(docs []domain.SearchDocument, key domain.SortKey) {
	var less func(a, b domain.SearchDocument) int
	switch key {
	case domain.SortPriceAsc:
		less = func(a, b domain.SearchDocument) int { return cmp.Compare(a.Price, b.Price) }
	case domain.SortPriceDesc:
		less = func(a, b domain.SearchDocument) int { return cmp.Compare(b.Price, a.Price) }
	case domain.SortNameAsc:
		less = func(a, b domain.SearchDocument) int { return cmp.Compare(a.Name, b.Name) }
	case domain.SortNameDesc:
		less = func(a, b domain.SearchDocument) int { return cmp.Compare(b.Name, a.Name) }
	default:
		less = func(a, b domain.SearchDocument) int { return b.CreatedAt.Compare(a.CreatedAt) }
	}
	slices.SortStableFunc(docs, less)
}

func aggregate(docs []domain.SearchDocument) domain.Aggregations {
	aggs := domain.EmptyAggregations()
	categories := map[string]int{}
	colors := map[string]int{}
	for i, d := range docs {
		categories[d.Category]++
		for _, c := range d.Colors {
			colors[c]++
		}
		p := float64(d.Price)
		if i == 0 || p < aggs.PriceStats.Min {
			aggs.PriceStats.Min = p
		}
		if i == 0 || p > aggs.PriceStats.Max {
			aggs.PriceStats.Max = p
		}
		aggs.PriceStats.Avg += p
	}
	if len(docs) > 0 {
		aggs.PriceStats.Avg /= float64(len(docs))
	}

	for _, k := range topKeys(categories, 20) {
		aggs.Categories.Buckets = append(aggs.Categories.Buckets, domain.Bucket{Key: k, DocCount: int64(categories[k])})
	}
	for _, k := range topKeys(colors, 30) {
		aggs.Colors.Buckets = append(aggs.Colors.Buckets, domain.Bucket{Key: k, DocCount: int64(colors[k])})
	}
	return aggs
}

// topKeys orders keys by count desc then key asc, as terms aggregations do.
func topKeys(counts map[string]int, size int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	if len(keys) > size {
		keys = keys[:size]
	}
	return keys
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		if slices.Contains(b, x) {
			return true
		}
	}
	return false
}

func products(docs []domain.SearchDocument, limit int) []domain.Product {
	out := make([]domain.Product, 0, min(len(docs), limit))
	for i := range docs {
		if len(out) == limit {
			break
		}
		out = append(out, docs[i].Product())
	}
	return out
}

func clone(doc *domain.SearchDocument) domain.SearchDocument {
	c := *doc
	c.Colors = slices.Clone(doc.Colors)
	c.Images = slices.Clone(doc.Images)
	if doc.DeletedAt != nil {
		t := *doc.DeletedAt
		c.DeletedAt = &t
	}
	return c
}
