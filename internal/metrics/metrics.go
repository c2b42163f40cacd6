// Package metrics exposes the per-stage counters and latency histogram
// used across the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "newsfeed_requests_total",
		Help: "The number of requests handled by a pipeline stage",
	}, []string{"stage", "request_type"})

	usersCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "newsfeed_users_created_total",
		Help: "The number of users created by the Repository RPC",
	})

	feedsAddedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "newsfeed_feeds_added_total",
		Help: "The number of feeds added by the Repository RPC",
	})

	postsValidatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "newsfeed_posts_validated_total",
		Help: "The number of new posts emitted by the Feed Poller",
	}, []string{"feed_url"})

	summariesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "newsfeed_summaries_total",
		Help: "The number of summaries produced by the Summary Writer",
	})

	errorsByType = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "newsfeed_errors_total",
		Help: "The number of errors encountered, labeled by stage and error type",
	}, []string{"stage", "error_type"})

	requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "newsfeed_request_duration_seconds",
		Help:    "Latency of a pipeline request, labeled by request type",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage", "request_type"})
)

// IncrementRequest increments the request counter for a stage/request_type pair.
func IncrementRequest(stage, requestType string) {
	requestsTotal.WithLabelValues(stage, requestType).Inc()
}

// IncrementUsersCreated increments the user-creation counter.
func IncrementUsersCreated() { usersCreatedTotal.Inc() }

// IncrementFeedsAdded increments the feed-creation counter.
func IncrementFeedsAdded() { feedsAddedTotal.Inc() }

// IncrementPostsValidated increments the new-post counter for a feed URL.
func IncrementPostsValidated(feedURL string) {
	postsValidatedTotal.WithLabelValues(feedURL).Inc()
}

// IncrementSummaries increments the summary counter.
func IncrementSummaries() { summariesTotal.Inc() }

// IncrementError increments the error-by-type counter for a stage.
func IncrementError(stage string, errType string) {
	errorsByType.WithLabelValues(stage, errType).Inc()
}

// ObserveLatency records how long a request of the given type took.
func ObserveLatency(stage, requestType string, seconds float64) {
	requestLatency.WithLabelValues(stage, requestType).Observe(seconds)
}

func init() {
	prometheus.MustRegister(
		requestsTotal,
		usersCreatedTotal,
		feedsAddedTotal,
		postsValidatedTotal,
		summariesTotal,
		errorsByType,
		requestLatency,
	)
}
