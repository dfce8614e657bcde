package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatheringtracker_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gatheringtracker_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	gatheringMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatheringtracker_gathering_mutations_total",
		Help: "Count of gathering create/update/delete operations by result",
	}, []string{"action", "result"})

	photoNormalizations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gatheringtracker_photo_normalization_duration_seconds",
		Help:    "Duration of photo normalization attempts",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	codeValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatheringtracker_code_validations_total",
		Help: "Count of join-code validation attempts by result",
	}, []string{"result"})

	groupsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatheringtracker_groups_created_total",
		Help: "Number of groups created since startup",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveGatheringMutation counts one gathering write with a result label.
func ObserveGatheringMutation(action, result string) {
	gatheringMutations.WithLabelValues(action, result).Inc()
}

// ObservePhotoNormalization records one normalization attempt.
func ObservePhotoNormalization(result string, duration time.Duration) {
	photoNormalizations.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveCodeValidation counts one join-code validation attempt.
func ObserveCodeValidation(result string) {
	codeValidations.WithLabelValues(result).Inc()
}

// IncrementGroups counts a newly created group.
func IncrementGroups() {
	groupsCreated.Inc()
}
