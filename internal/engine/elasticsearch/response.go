package elasticsearch

import (
	"encoding/json"
	"strconv"

	"github.com/utafrali/catalog/internal/domain"
)

type searchHit struct {
	ID     string                `json:"_id"`
	Source domain.SearchDocument `json:"_source"`
}

type bucket struct {
	Key      json.RawMessage `json:"key"`
	DocCount int64           `json:"doc_count"`
	From     *float64        `json:"from,omitempty"`
	To       *float64        `json:"to,omitempty"`
}

// keyString returns the bucket key as text. Terms keys are strings, numeric
// keys are formatted without quotes.
func (b bucket) keyString() string {
	var s string
	if err := json.Unmarshal(b.Key, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(b.Key, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return string(b.Key)
}

type bucketAgg struct {
	Buckets []bucket `json:"buckets"`
}

type statsAgg struct {
	Count int64    `json:"count"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
	Avg   *float64 `json:"avg"`
	Sum   float64  `json:"sum"`
}

type aggregations struct {
	Categories      bucketAgg `json:"categories"`
	Colors          bucketAgg `json:"colors"`
	PriceStats      statsAgg  `json:"price_stats"`
	PriceRanges     bucketAgg `json:"price_ranges"`
	NameSuggestions bucketAgg `json:"name_suggestions"`
}

type suggestOption struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
	Freq  int64   `json:"freq"`
}

type suggestEntry struct {
	Text    string          `json:"text"`
	Options []suggestOption `json:"options"`
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
	Aggregations aggregations              `json:"aggregations"`
	Suggest      map[string][]suggestEntry `json:"suggest"`
}

func (r *searchResponse) products() []domain.Product {
	out := make([]domain.Product, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		doc := h.Source
		doc.ID = h.ID
		out = append(out, doc.Product())
	}
	return out
}

func (r *searchResponse) suggestionTexts() []string {
	var out []string
	for _, entry := range r.Suggest["name_suggestions"] {
		for _, opt := range entry.Options {
			out = append(out, opt.Text)
		}
	}
	return out
}

func (a aggregations) searchAggregations() domain.Aggregations {
	out := domain.EmptyAggregations()
	for _, b := range a.Categories.Buckets {
		out.Categories.Buckets = append(out.Categories.Buckets, domain.Bucket{Key: b.keyString(), DocCount: b.DocCount})
	}
	for _, b := range a.Colors.Buckets {
		out.Colors.Buckets = append(out.Colors.Buckets, domain.Bucket{Key: b.keyString(), DocCount: b.DocCount})
	}
	out.PriceStats = domain.PriceStats{
		Min: deref(a.PriceStats.Min),
		Max: deref(a.PriceStats.Max),
		Avg: deref(a.PriceStats.Avg),
	}
	return out
}
