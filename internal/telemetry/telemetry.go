// Package telemetry holds the Prometheus collectors shared across packages.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "seo_insights",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route pattern, method and status code.",
	}, []string{"route", "method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "seo_insights",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	// GroupMutations counts successful group changes by operation
	// (create, rename, delete, add_items, remove_item).
	GroupMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "seo_insights",
		Name:      "group_mutations_total",
		Help:      "Successful group mutations by operation.",
	}, []string{"op"})

	GroupItemsAdded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "seo_insights",
		Name:      "group_items_added_total",
		Help:      "Queries added to groups, excluding duplicates.",
	})

	SearchFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "seo_insights",
		Name:      "search_fallbacks_total",
		Help:      "Searches served by the secondary backend.",
	})

	Reindexes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "seo_insights",
		Name:      "search_reindex_total",
		Help:      "Search reindex runs by result.",
	}, []string{"result"})

	ClusterSuggestions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "seo_insights",
		Name:      "cluster_suggestions_total",
		Help:      "Cluster suggestion runs by provider.",
	}, []string{"provider"})
)
