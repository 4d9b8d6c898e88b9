package elasticsearch

import (
	"strings"

	"github.com/utafrali/catalog/internal/domain"
)

// sourceFields are the document fields returned to API callers.
var sourceFields = []string{
	"name", "slug", "price", "description", "category", "colors", "images",
	"stock", "sold", "views", "type", "status", "createdAt", "updatedAt",
}

// notDeleted excludes soft-deleted documents.
var notDeleted = map[string]any{"exists": map[string]any{"field": "deletedAt"}}

// BuildSearchQuery builds the search request body for params. Callers must
// normalize and validate params first.
func BuildSearchQuery(params *domain.SearchParams) map[string]any {
	boolQuery := map[string]any{
		"must_not": []any{notDeleted},
	}

	if q := strings.TrimSpace(params.Query); q != "" {
		boolQuery["must"] = []any{
			map[string]any{
				"bool": map[string]any{
					"should": []any{
						map[string]any{
							"match_phrase_prefix": map[string]any{
								"name": map[string]any{"query": q, "boost": 10, "max_expansions": 10},
							},
						},
						map[string]any{
							"match": map[string]any{
								"name": map[string]any{"query": q, "boost": 5, "fuzziness": "AUTO", "prefix_length": 1},
							},
						},
						map[string]any{
							"match": map[string]any{
								"description": map[string]any{"query": q, "fuzziness": "AUTO", "prefix_length": 1},
							},
						},
					},
					"minimum_should_match": 1,
				},
			},
		}
	}

	if filters := buildFilters(params); len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	return map[string]any{
		"from":             params.Offset(),
		"size":             params.Limit,
		"track_total_hits": true,
		"query":            map[string]any{"bool": boolQuery},
		"sort":             buildSort(params.Sort),
		"_source":          map[string]any{"includes": sourceFields},
		"aggs": map[string]any{
			"categories":  termsAgg("category.keyword", 20),
			"colors":      termsAgg("colors.keyword", 30),
			"price_stats": map[string]any{"stats": map[string]any{"field": "price"}},
		},
	}
}

func buildFilters(params *domain.SearchParams) []any {
	var filters []any

	if params.HasCategory() {
		filters = append(filters, map[string]any{
			"term": map[string]any{"category.keyword": params.Category},
		})
	}

	if params.MinPrice != nil || params.MaxPrice != nil {
		r := map[string]any{}
		if params.MinPrice != nil {
			r["gte"] = *params.MinPrice
		}
		if params.MaxPrice != nil {
			r["lte"] = *params.MaxPrice
		}
		filters = append(filters, map[string]any{"range": map[string]any{"price": r}})
	}

	if colors := params.ColorList(); len(colors) > 0 {
		filters = append(filters, map[string]any{
			"terms": map[string]any{"colors.keyword": colors},
		})
	}

	return filters
}

func buildSort(key domain.SortKey) []any {
	switch key {
	case domain.SortPriceAsc:
		return []any{map[string]any{"price": map[string]any{"order": "asc"}}}
	case domain.SortPriceDesc:
		return []any{map[string]any{"price": map[string]any{"order": "desc"}}}
	case domain.SortNameAsc:
		return []any{map[string]any{"name.keyword": map[string]any{"order": "asc"}}}
	case domain.SortNameDesc:
		return []any{map[string]any{"name.keyword": map[string]any{"order": "desc"}}}
	default:
		return []any{map[string]any{"createdAt": map[string]any{"order": "desc"}}}
	}
}

func termsAgg(field string, size int) map[string]any {
	return map[string]any{"terms": map[string]any{"field": field, "size": size}}
}

// BuildTermSuggestQuery builds a suggest-only request proposing corrections
// for text from the name field.
func BuildTermSuggestQuery(text string, size int) map[string]any {
	return map[string]any{
		"size": 0,
		"suggest": map[string]any{
			"text": text,
			"name_suggestions": map[string]any{
				"term": map[string]any{
					"field":        "name",
					"suggest_mode": "popular",
					"size":         size,
				},
			},
		},
	}
}

// BuildSuggestQuery combines a term suggester with a terms aggregation over
// exact product names containing prefix.
func BuildSuggestQuery(prefix string, limit int) map[string]any {
	body := BuildTermSuggestQuery(prefix, limit)
	body["query"] = map[string]any{
		"bool": map[string]any{"must_not": []any{notDeleted}},
	}
	body["aggs"] = map[string]any{
		"name_suggestions": map[string]any{
			"terms": map[string]any{
				"field":   "name.keyword",
				"include": ".*" + escapeRegexp(prefix) + ".*",
				"size":    limit,
			},
		},
	}
	return body
}

// regexpReserved lists the characters with meaning in Lucene regular
// expressions, including the optional operators Elasticsearch enables.
const regexpReserved = `.?+*|{}[]()"\#@&<>~^$`

// escapeRegexp makes s match literally inside a Lucene regular expression.
func escapeRegexp(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 2)
	for _, r := range s {
		if strings.ContainsRune(regexpReserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// BuildCategoriesQuery counts live products per category.
func BuildCategoriesQuery(size int) map[string]any {
	return map[string]any{
		"size":  0,
		"query": map[string]any{"bool": map[string]any{"must_not": []any{notDeleted}}},
		"aggs": map[string]any{
			"categories": termsAgg("category.keyword", size),
		},
	}
}

// BuildPriceRangesQuery computes price stats and the fixed price buckets.
func BuildPriceRangesQuery() map[string]any {
	ranges := make([]any, 0, len(domain.PriceBuckets))
	for _, b := range domain.PriceBuckets {
		r := map[string]any{}
		if b.From > 0 {
			r["from"] = b.From
		}
		if b.To > 0 {
			r["to"] = b.To
		}
		ranges = append(ranges, r)
	}

	return map[string]any{
		"size":  0,
		"query": map[string]any{"bool": map[string]any{"must_not": []any{notDeleted}}},
		"aggs": map[string]any{
			"price_stats":  map[string]any{"stats": map[string]any{"field": "price"}},
			"price_ranges": map[string]any{"range": map[string]any{"field": "price", "ranges": ranges}},
		},
	}
}

// BuildTrendingQuery ranks live products by log-scaled views and sales.
func BuildTrendingQuery(limit int) map[string]any {
	return map[string]any{
		"size":    limit,
		"_source": map[string]any{"includes": sourceFields},
		"query": map[string]any{
			"function_score": map[string]any{
				"query": map[string]any{
					"bool": map[string]any{
						"must":     []any{map[string]any{"match_all": map[string]any{}}},
						"must_not": []any{notDeleted},
					},
				},
				"functions": []any{
					map[string]any{
						"field_value_factor": map[string]any{
							"field": "views", "factor": 1, "modifier": "log1p", "missing": 0,
						},
					},
					map[string]any{
						"field_value_factor": map[string]any{
							"field": "sold", "factor": 0.5, "modifier": "log1p", "missing": 0,
						},
					},
				},
				"boost_mode": "sum",
			},
		},
	}
}

// BuildRelatedQuery finds live products sharing doc's category or any of
// its colors, excluding doc itself.
func BuildRelatedQuery(doc *domain.SearchDocument, limit int) map[string]any {
	should := []any{
		map[string]any{
			"term": map[string]any{
				"category.keyword": map[string]any{"value": doc.Category, "boost": 2},
			},
		},
	}
	if len(doc.Colors) > 0 {
		should = append(should, map[string]any{
			"terms": map[string]any{"colors.keyword": doc.Colors},
		})
	}

	return map[string]any{
		"size":    limit,
		"_source": map[string]any{"includes": sourceFields},
		"query": map[string]any{
			"bool": map[string]any{
				"should": should,
				"must_not": []any{
					map[string]any{"ids": map[string]any{"values": []string{doc.ID}}},
					notDeleted,
				},
				"minimum_should_match": 1,
			},
		},
	}
}
