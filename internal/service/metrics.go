package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_search_cache_requests_total",
		Help: "Search cache lookups by result (hit or miss)",
	}, []string{"result"})

	cacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_cache_errors_total",
		Help: "Cache operations that failed and were treated as misses",
	}, []string{"op"})

	degradedResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_degraded_responses_total",
		Help: "Read responses served empty because the search engine was unavailable",
	}, []string{"endpoint"})

	reindexDocuments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_reindex_documents_total",
		Help: "Documents processed by reindex runs by outcome",
	}, []string{"outcome"})

	indexSyncFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_index_sync_failures_total",
		Help: "Catalog writes whose search index propagation failed",
	}, []string{"op"})
)
