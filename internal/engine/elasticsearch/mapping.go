package elasticsearch

import (
	"strconv"

	"github.com/utafrali/catalog/internal/domain"
)

// DefaultIndexName is the index product documents are written to.
const DefaultIndexName = "products"

// buildIndexMapping returns the settings and mappings for the products index.
func buildIndexMapping() string {
	return `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "max_result_window": ` + strconv.Itoa(domain.MaxResultWindow) + `,
    "analysis": {
      "analyzer": {
        "folding": {
          "type": "custom",
          "tokenizer": "standard",
          "filter": ["lowercase", "asciifolding"]
        }
      }
    }
  },
  "mappings": {
    "properties": {
      "name":        { "type": "text", "analyzer": "folding", "fields": { "keyword": { "type": "keyword", "ignore_above": 256 } } },
      "slug":        { "type": "keyword" },
      "description": { "type": "text", "analyzer": "folding", "fields": { "keyword": { "type": "keyword", "ignore_above": 256 } } },
      "category":    { "type": "text", "fields": { "keyword": { "type": "keyword", "ignore_above": 256 } } },
      "colors":      { "type": "text", "fields": { "keyword": { "type": "keyword", "ignore_above": 256 } } },
      "images":      { "type": "keyword", "index": false },
      "price":       { "type": "double" },
      "stock":       { "type": "integer" },
      "views":       { "type": "integer", "null_value": 0 },
      "sold":        { "type": "integer", "null_value": 0 },
      "type":        { "type": "keyword" },
      "status":      { "type": "keyword" },
      "createdAt":   { "type": "date" },
      "updatedAt":   { "type": "date" },
      "deletedAt":   { "type": "date" }
    }
  }
}`
}
