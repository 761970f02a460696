package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zolointo/next-fext-randomizer/internal/progress"
)

// PrometheusSink exports run progress via Prometheus collectors.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted prometheus.Counter
	runRuntime    prometheus.Histogram

	appsProcessed *prometheus.CounterVec
	appRuntime    prometheus.Histogram
	pagesWritten  prometheus.Counter
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nextfest_runs_started_total",
			Help: "Total generation runs started.",
		}),
		runsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nextfest_runs_completed_total",
			Help: "Total generation runs completed.",
		}),
		runRuntime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nextfest_run_runtime_seconds",
			Help:    "Wall time per completed run.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		}),
		appsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nextfest_apps_processed_total",
			Help: "Apps processed partitioned by trailer outcome.",
		}, []string{"trailer"}),
		appRuntime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nextfest_app_runtime_seconds",
			Help:    "Wall time per processed app.",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60},
		}),
		pagesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nextfest_pages_written_total",
			Help: "Output HTML pages written.",
		}),
	}
	collectors := []prometheus.Collector{
		s.runsStarted, s.runsCompleted, s.runRuntime,
		s.appsProcessed, s.appRuntime, s.pagesWritten,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors for one event.
func (s *PrometheusSink) Consume(_ context.Context, evt progress.Event) error {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
	case progress.StageRunDone:
		s.runsCompleted.Inc()
		s.runRuntime.Observe(evt.Dur.Seconds())
	case progress.StageAppDone:
		outcome := "missing"
		if evt.TrailerFound {
			outcome = "found"
		}
		s.appsProcessed.WithLabelValues(outcome).Inc()
		s.appRuntime.Observe(evt.Dur.Seconds())
	case progress.StagePageWritten:
		s.pagesWritten.Inc()
	}
	return nil
}

// Close implements the Sink interface; collectors stay registered.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
