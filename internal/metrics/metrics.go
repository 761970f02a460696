// Package metrics exposes Prometheus collectors for the generator.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiRequestsTotal      *prometheus.CounterVec
	apiRetriesTotal       prometheus.Counter
	rateLimitWaitsSeconds prometheus.Histogram
	manifestCaptures      *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		apiRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nextfest_api_requests_total",
				Help: "Total Steam appdetails requests, labeled by result.",
			},
			[]string{"result"},
		)

		apiRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "nextfest_api_retries_total",
				Help: "Total appdetails attempts that were retried.",
			},
		)

		rateLimitWaitsSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nextfest_rate_limit_wait_seconds",
				Help:    "Histogram of sliding-window rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		)

		manifestCaptures = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nextfest_manifest_captures_total",
				Help: "Trailer manifest interception attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)
	})
}

// ObserveAPIRequest increments the appdetails request counter.
func ObserveAPIRequest(result string) {
	if apiRequestsTotal == nil {
		return
	}
	apiRequestsTotal.WithLabelValues(result).Inc()
}

// ObserveAPIRetry increments the retry counter.
func ObserveAPIRetry() {
	if apiRetriesTotal == nil {
		return
	}
	apiRetriesTotal.Inc()
}

// ObserveRateLimitWait records the duration of a quota wait.
func ObserveRateLimitWait(wait time.Duration) {
	if rateLimitWaitsSeconds == nil {
		return
	}
	rateLimitWaitsSeconds.Observe(wait.Seconds())
}

// ObserveManifestCapture records a trailer interception outcome.
func ObserveManifestCapture(outcome string) {
	if manifestCaptures == nil {
		return
	}
	manifestCaptures.WithLabelValues(outcome).Inc()
}
