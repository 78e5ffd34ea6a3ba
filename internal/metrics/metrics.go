// Package metrics is a small, backend-agnostic layer for recording
// operational metrics from a synthesis run.
//
// It exposes a narrow Backend interface (counters, histograms, flush) with
// a global, pluggable implementation that defaults to a no-op, so metric
// calls are always safe even when no backend is configured. Concrete
// systems (Prometheus Pushgateway, Datadog) live in subpackages and are
// selected at startup; the rest of the codebase depends only on this
// package.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a duration-style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes buffered metrics when the backend batches (e.g.
	// Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing
// backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStage measures latency and success/failure for one run stage
// (load, fit, generate, sink, evaluate).
func RecordStage(job, stage string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"stage":  stage,
		"status": status,
	}

	backend.IncCounter("synth_stage_total", 1, lbls)
	backend.ObserveHistogram("synth_stage_duration_seconds", d.Seconds(), lbls)
}

// RecordRows increments a row-level counter for the given job and kind.
//
// Typical kinds mirror the run summary fields:
//   - "loaded"
//   - "parse_skipped"
//   - "generated"
//   - "inserted"
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("synth_rows_total", float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordCacheLookup counts fit-cache hits and misses.
func RecordCacheLookup(job string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	backend.IncCounter("synth_fitcache_lookups_total", 1, Labels{
		"job":     job,
		"outcome": outcome,
	})
}

// RecordBatches increments the sink batch counter for the given job.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("synth_batches_total", float64(delta), Labels{
		"job": job,
	})
}
