// Package prom exports c2vprep metrics through Prometheus.
//
// Batch workers write a node-exporter textfile at exit; the long-running
// distributor serves them over HTTP.
package prom

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/c2vprep"
)

var _ c2vprep.MetricsCollector = (*Collector)(nil)

// Collector implements c2vprep.MetricsCollector with Prometheus instruments.
type Collector struct {
	registry *prometheus.Registry

	resolves       *prometheus.CounterVec
	resolveLatency *prometheus.HistogramVec
	cacheBuilds    *prometheus.CounterVec
	cacheLatency   prometheus.Histogram
	examples       *prometheus.CounterVec
	rawContexts    prometheus.Counter
	keptContexts   prometheus.Counter
	contextsPerEx  prometheus.Histogram
	segmentBytes   *prometheus.GaugeVec
}

// New creates a collector on its own registry. constLabels are attached to
// every series (for example the worker id).
func New(constLabels prometheus.Labels) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		resolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "c2vprep_resolve_total",
			Help:        "Vocabulary resolutions by source tier and status.",
			ConstLabels: constLabels,
		}, []string{"source", "status"}),
		resolveLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "c2vprep_resolve_duration_seconds",
			Help:        "Latency of vocabulary resolution.",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4min
		}, []string{"source"}),
		cacheBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "c2vprep_cache_builds_total",
			Help:        "Cache artifact builds by status.",
			ConstLabels: constLabels,
		}, []string{"status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "c2vprep_cache_build_duration_seconds",
			Help:        "Latency of cache artifact builds, including lock wait.",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(0.01, 4, 9),
		}),
		examples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "c2vprep_examples_total",
			Help:        "Parsed examples by outcome (emitted or empty).",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		rawContexts: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "c2vprep_raw_contexts_total",
			Help:        "Unfiltered path contexts seen.",
			ConstLabels: constLabels,
		}),
		keptContexts: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "c2vprep_kept_contexts_total",
			Help:        "Path contexts retained after sampling.",
			ConstLabels: constLabels,
		}),
		contextsPerEx: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "c2vprep_raw_contexts_per_example",
			Help:        "Distribution of unfiltered context counts per example.",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(1, 2, 14),
		}),
		segmentBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "c2vprep_segment_bytes",
			Help:        "Size of the published shared-memory payload.",
			ConstLabels: constLabels,
		}, []string{"dataset"}),
	}

	c.registry.MustRegister(
		c.resolves,
		c.resolveLatency,
		c.cacheBuilds,
		c.cacheLatency,
		c.examples,
		c.rawContexts,
		c.keptContexts,
		c.contextsPerEx,
		c.segmentBytes,
	)
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordResolve implements c2vprep.MetricsCollector.
func (c *Collector) RecordResolve(source c2vprep.Source, d time.Duration, err error) {
	label := source.String()
	if err != nil {
		label = "none"
	}
	c.resolves.WithLabelValues(label, status(err)).Inc()
	c.resolveLatency.WithLabelValues(label).Observe(d.Seconds())
}

// RecordCacheBuild implements c2vprep.MetricsCollector.
func (c *Collector) RecordCacheBuild(d time.Duration, err error) {
	c.cacheBuilds.WithLabelValues(status(err)).Inc()
	c.cacheLatency.Observe(d.Seconds())
}

// RecordExample implements c2vprep.MetricsCollector.
func (c *Collector) RecordExample(raw, kept int, emitted bool) {
	outcome := "emitted"
	if !emitted {
		outcome = "empty"
	}
	c.examples.WithLabelValues(outcome).Inc()
	c.rawContexts.Add(float64(raw))
	c.keptContexts.Add(float64(kept))
	c.contextsPerEx.Observe(float64(raw))
}

// SetSegmentBytes records the payload size a distributor published.
func (c *Collector) SetSegmentBytes(dataset string, n int) {
	c.segmentBytes.WithLabelValues(dataset).Set(float64(n))
}

// Gatherer exposes the underlying registry.
func (c *Collector) Gatherer() prometheus.Gatherer { return c.registry }

// Handler serves the collector's metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// WriteToTextfile atomically writes all metrics to path for the node
// exporter textfile collector.
func (c *Collector) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
