package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/engine"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

// Config holds connection settings for the Elasticsearch engine.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	Index     string

	// Transport overrides the HTTP transport. Tests point it at httptest.
	Transport http.RoundTripper
}

// Engine is an Elasticsearch-backed implementation of engine.SearchEngine.
type Engine struct {
	client *elasticsearch.Client
	index  string
	logger *slog.Logger
}

var _ engine.SearchEngine = (*Engine)(nil)

// New creates the client. It does not contact the cluster; use Ping and
// EnsureIndex once connectivity is established.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	if cfg.Index == "" {
		cfg.Index = DefaultIndexName
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: create client: %w", err)
	}

	return &Engine{client: client, index: cfg.Index, logger: logger}, nil
}

// Ping checks whether the cluster is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return transportError("ping", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return decodeError("ping", res)
	}
	return nil
}

// EnsureIndex creates the index with its mappings when it does not exist.
func (e *Engine) EnsureIndex(ctx context.Context) error {
	exists, err := e.indexExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		e.logger.Debug("elasticsearch index already exists", slog.String("index", e.index))
		return nil
	}
	return e.createIndex(ctx)
}

// RecreateIndex drops the index if present and creates it from scratch.
func (e *Engine) RecreateIndex(ctx context.Context) error {
	exists, err := e.indexExists(ctx)
	if err != nil {
		return err
	}

	if exists {
		res, err := e.client.Indices.Delete([]string{e.index}, e.client.Indices.Delete.WithContext(ctx))
		if err != nil {
			return transportError("delete index", err)
		}
		defer closeBody(res)
		if res.IsError() && res.StatusCode != http.StatusNotFound {
			return decodeError("delete index", res)
		}
		e.logger.InfoContext(ctx, "elasticsearch index deleted", slog.String("index", e.index))
	}

	return e.createIndex(ctx)
}

func (e *Engine) indexExists(ctx context.Context) (bool, error) {
	res, err := e.client.Indices.Exists([]string{e.index}, e.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, transportError("index exists", err)
	}
	defer closeBody(res)

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, decodeError("index exists", res)
	}
}

func (e *Engine) createIndex(ctx context.Context) error {
	res, err := e.client.Indices.Create(
		e.index,
		e.client.Indices.Create.WithBody(strings.NewReader(buildIndexMapping())),
		e.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return transportError("create index", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return decodeError("create index", res)
	}

	e.logger.InfoContext(ctx, "elasticsearch index created", slog.String("index", e.index))
	return nil
}

// Refresh makes all recent writes searchable.
func (e *Engine) Refresh(ctx context.Context) error {
	res, err := e.client.Indices.Refresh(
		e.client.Indices.Refresh.WithIndex(e.index),
		e.client.Indices.Refresh.WithContext(ctx),
	)
	if err != nil {
		return transportError("refresh", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return decodeError("refresh", res)
	}
	return nil
}

// Index adds or replaces a single document and waits until it is searchable.
func (e *Engine) Index(ctx context.Context, doc *domain.SearchDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("elasticsearch index: marshal document: %w", err)
	}

	res, err := e.client.Index(
		e.index,
		bytes.NewReader(data),
		e.client.Index.WithDocumentID(doc.ID),
		e.client.Index.WithRefresh("wait_for"),
		e.client.Index.WithContext(ctx),
	)
	if err != nil {
		return transportError("index", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return decodeError("index", res)
	}

	e.logger.DebugContext(ctx, "indexed product", slog.String("id", doc.ID))
	return nil
}

type getResponse struct {
	ID     string                `json:"_id"`
	Found  bool                  `json:"found"`
	Source domain.SearchDocument `json:"_source"`
}

// Get fetches a document by id.
func (e *Engine) Get(ctx context.Context, id string) (*domain.SearchDocument, error) {
	res, err := e.client.Get(e.index, id, e.client.Get.WithContext(ctx))
	if err != nil {
		return nil, transportError("get", err)
	}
	defer closeBody(res)

	if res.IsError() {
		err := decodeError("get", res)
		if res.StatusCode == http.StatusNotFound && !isIndexMissing(err) {
			return nil, apperrors.NotFound("indexed product", id)
		}
		return nil, err
	}

	var gr getResponse
	if err := json.NewDecoder(res.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("elasticsearch get: decode response: %w", err)
	}
	if !gr.Found {
		return nil, apperrors.NotFound("indexed product", id)
	}

	doc := gr.Source
	doc.ID = gr.ID
	return &doc, nil
}

// Exists reports whether a document is indexed.
func (e *Engine) Exists(ctx context.Context, id string) (bool, error) {
	res, err := e.client.Exists(e.index, id, e.client.Exists.WithContext(ctx))
	if err != nil {
		return false, transportError("exists", err)
	}
	defer closeBody(res)

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, decodeError("exists", res)
	}
}

// Delete removes a document. A 404 is not an error.
func (e *Engine) Delete(ctx context.Context, id string) error {
	res, err := e.client.Delete(
		e.index,
		id,
		e.client.Delete.WithRefresh("wait_for"),
		e.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return transportError("delete", err)
	}
	defer closeBody(res)

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return decodeError("delete", res)
	}

	e.logger.DebugContext(ctx, "deleted product from index", slog.String("id", id))
	return nil
}

// Search runs a paged search. params must be normalized. Pages past the
// result window are refused without a round trip.
func (e *Engine) Search(ctx context.Context, params *domain.SearchParams) (*domain.SearchResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var sr searchResponse
	if err := e.search(ctx, "search", BuildSearchQuery(params), &sr); err != nil {
		return nil, err
	}

	return &domain.SearchResult{
		Products:     sr.products(),
		Total:        sr.Hits.Total.Value,
		Page:         params.Page,
		Pages:        domain.Pages(sr.Hits.Total.Value, params.Limit),
		Aggregations: sr.Aggregations.searchAggregations(),
	}, nil
}

// Categories returns live product counts per category.
func (e *Engine) Categories(ctx context.Context, size int) ([]domain.CategoryCount, error) {
	var sr searchResponse
	if err := e.search(ctx, "categories", BuildCategoriesQuery(size), &sr); err != nil {
		return nil, err
	}

	out := make([]domain.CategoryCount, 0, len(sr.Aggregations.Categories.Buckets))
	for _, b := range sr.Aggregations.Categories.Buckets {
		out = append(out, domain.CategoryCount{Name: b.keyString(), Count: b.DocCount})
	}
	return out, nil
}

// PriceRanges returns price stats and the fixed bucket counts.
func (e *Engine) PriceRanges(ctx context.Context) (*domain.PriceRanges, error) {
	var sr searchResponse
	if err := e.search(ctx, "price ranges", BuildPriceRangesQuery(), &sr); err != nil {
		return nil, err
	}

	st := sr.Aggregations.PriceStats
	out := &domain.PriceRanges{
		Stats: domain.PriceStatsFull{
			Count: st.Count,
			Min:   deref(st.Min),
			Max:   deref(st.Max),
			Avg:   deref(st.Avg),
			Sum:   st.Sum,
		},
		Ranges: make([]domain.PriceRangeBucket, 0, len(sr.Aggregations.PriceRanges.Buckets)),
	}
	for _, b := range sr.Aggregations.PriceRanges.Buckets {
		out.Ranges = append(out.Ranges, domain.PriceRangeBucket{
			Key:      b.keyString(),
			From:     b.From,
			To:       b.To,
			DocCount: b.DocCount,
		})
	}
	return out, nil
}

// Trending returns live products ranked by views and sales.
func (e *Engine) Trending(ctx context.Context, limit int) ([]domain.Product, error) {
	var sr searchResponse
	if err := e.search(ctx, "trending", BuildTrendingQuery(limit), &sr); err != nil {
		return nil, err
	}
	return sr.products(), nil
}

// Related returns products sharing a category or color with id.
func (e *Engine) Related(ctx context.Context, id string, limit int) ([]domain.Product, error) {
	doc, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var sr searchResponse
	if err := e.search(ctx, "related", BuildRelatedQuery(doc, limit), &sr); err != nil {
		return nil, err
	}
	return sr.products(), nil
}

// TermSuggestions returns spelling alternatives for text.
func (e *Engine) TermSuggestions(ctx context.Context, text string, size int) ([]string, error) {
	var sr searchResponse
	if err := e.search(ctx, "term suggest", BuildTermSuggestQuery(text, size), &sr); err != nil {
		return nil, err
	}
	return dedupe(sr.suggestionTexts(), size), nil
}

// Suggest returns exact name matches containing prefix followed by term
// suggestions, deduplicated and capped at limit.
func (e *Engine) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	var sr searchResponse
	if err := e.search(ctx, "suggest", BuildSuggestQuery(prefix, limit), &sr); err != nil {
		return nil, err
	}

	names := make([]string, 0, limit*2)
	for _, b := range sr.Aggregations.NameSuggestions.Buckets {
		names = append(names, b.keyString())
	}
	names = append(names, sr.suggestionTexts()...)
	return dedupe(names, limit), nil
}

func (e *Engine) search(ctx context.Context, op string, body map[string]any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("elasticsearch %s: marshal query: %w", op, err)
	}

	res, err := e.client.Search(
		e.client.Search.WithIndex(e.index),
		e.client.Search.WithBody(bytes.NewReader(data)),
		e.client.Search.WithContext(ctx),
	)
	if err != nil {
		return transportError(op, err)
	}
	defer closeBody(res)

	if res.IsError() {
		return decodeError(op, res)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("elasticsearch %s: decode response: %w", op, err)
	}
	return nil
}

func closeBody(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}
}

func dedupe(in []string, limit int) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, min(len(in), limit))
	for _, s := range in {
		if len(out) == limit {
			break
		}
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
