package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// External APIs
	BookstoreRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mangashelf_bookstore_requests_total",
			Help: "Bookstore search requests by outcome",
		},
		[]string{"outcome"}, // ok, rate_limited, upstream_error, transport_error, circuit_open
	)

	CompletionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mangashelf_completion_requests_total",
			Help: "Completion API requests by outcome",
		},
		[]string{"outcome"},
	)

	// Ingestion
	IngestRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mangashelf_ingest_runs_total",
		Help: "Completed ingestion runs",
	})

	IngestNewVolumes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mangashelf_ingest_new_volumes_total",
		Help: "Volumes inserted by ingestion",
	})

	IngestSeriesFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mangashelf_ingest_series_failures_total",
		Help: "Series whose ingestion step failed",
	})

	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mangashelf_ingest_duration_seconds",
		Help:    "Wall-clock duration of ingestion runs",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	// Recommendations
	VerificationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mangashelf_candidate_verification_total",
			Help: "Candidate verification results",
		},
		[]string{"outcome"}, // verified, not_found, rate_limited, dropped
	)

	UsageDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mangashelf_usage_denied_total",
			Help: "Calls refused by usage quotas",
		},
		[]string{"service", "limit"},
	)
)

// ObserveIngest records a finished ingestion run.
func ObserveIngest(started time.Time, newVolumes, failures int) {
	IngestRuns.Inc()
	IngestDuration.Observe(time.Since(started).Seconds())
	IngestNewVolumes.Add(float64(newVolumes))
	IngestSeriesFailures.Add(float64(failures))
}

// Handler exposes the default registry for gin.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
