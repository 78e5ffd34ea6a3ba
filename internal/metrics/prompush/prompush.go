// Package prompush implements a metrics backend that pushes to a
// Prometheus Pushgateway. A synthesis run is a batch job, so the usual
// scrape model does not apply; metrics accumulate in a private registry
// during the run and are pushed once on Flush.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"synthpipe/internal/metrics"
)

// Backend accumulates metrics in a local registry and pushes on Flush.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	stageCounter  *prometheus.CounterVec
	stageDuration *prometheus.SummaryVec
	rowsCounter   *prometheus.CounterVec
	cacheCounter  *prometheus.CounterVec
	batchCounter  prometheus.Counter
}

// New builds a Pushgateway backend. gatewayURL is the base URL of the
// gateway (e.g. http://localhost:9091), jobName groups all pushed series.
func New(gatewayURL, jobName string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL required")
	}
	if jobName == "" {
		jobName = "synthpipe"
	}

	reg := prometheus.NewRegistry()

	stageCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "synth_stage_total",
		Help: "Count of pipeline stage executions by status.",
	}, []string{"stage", "status"})

	stageDuration := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name:       "synth_stage_duration_seconds",
		Help:       "Duration of pipeline stages in seconds.",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	}, []string{"stage", "status"})

	rowsCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "synth_rows_total",
		Help: "Rows processed by kind (loaded, generated, inserted, ...).",
	}, []string{"kind"})

	cacheCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "synth_fitcache_lookups_total",
		Help: "Fit cache lookups by outcome.",
	}, []string{"outcome"})

	batchCounter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "synth_batches_total",
		Help: "Batches written to the output sink.",
	})

	reg.MustRegister(stageCounter, stageDuration, rowsCounter, cacheCounter, batchCounter)

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		stageCounter:  stageCounter,
		stageDuration: stageDuration,
		rowsCounter:   rowsCounter,
		cacheCounter:  cacheCounter,
		batchCounter:  batchCounter,
	}, nil
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "synth_stage_total":
		b.stageCounter.WithLabelValues(labels["stage"], labels["status"]).Add(delta)
	case "synth_rows_total":
		b.rowsCounter.WithLabelValues(labels["kind"]).Add(delta)
	case "synth_fitcache_lookups_total":
		b.cacheCounter.WithLabelValues(labels["outcome"]).Add(delta)
	case "synth_batches_total":
		b.batchCounter.Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name == "synth_stage_duration_seconds" {
		b.stageDuration.WithLabelValues(labels["stage"], labels["status"]).Observe(value)
	}
}

// Flush pushes the accumulated registry to the gateway.
func (b *Backend) Flush() error {
	if err := push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push(); err != nil {
		return fmt.Errorf("prompush: push to %s: %w", b.gatewayURL, err)
	}
	return nil
}
