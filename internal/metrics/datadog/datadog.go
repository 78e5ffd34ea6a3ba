// Package datadog implements a metrics backend on top of dogstatsd.
// Metrics are sent to a local agent over UDP as they are recorded, so
// Flush only has to close the client and drain its buffer.
package datadog

import (
	"fmt"

	"github.com/DataDog/datadog-go/v5/statsd"

	"synthpipe/internal/metrics"
)

// Config holds Datadog agent settings.
type Config struct {
	// Addr is the dogstatsd endpoint, e.g. "127.0.0.1:8125".
	Addr string
	// Namespace is prepended to every metric name.
	Namespace string
	// GlobalTags are attached to every metric.
	GlobalTags []string
}

// Backend sends metrics to a Datadog agent.
type Backend struct {
	client statsd.ClientInterface
}

// New connects to the dogstatsd agent at cfg.Addr.
func New(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("datadog: agent address required")
	}

	opts := []statsd.Option{}
	if cfg.Namespace != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Namespace))
	}
	if len(cfg.GlobalTags) > 0 {
		opts = append(opts, statsd.WithTags(cfg.GlobalTags))
	}

	client, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("datadog: connect %s: %w", cfg.Addr, err)
	}
	return &Backend{client: client}, nil
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	b.client.Count(name, int64(delta), labelsToTags(labels), 1)
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	b.client.Histogram(name, value, labelsToTags(labels), 1)
}

// Flush closes the client, draining any buffered metrics.
func (b *Backend) Flush() error {
	return b.client.Close()
}

func labelsToTags(labels metrics.Labels) []string {
	tags := make([]string, 0, len(labels))
	for k, v := range labels {
		tags = append(tags, k+":"+v)
	}
	return tags
}
