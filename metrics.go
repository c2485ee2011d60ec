package c2vprep

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus;
// package prom ships such an implementation.
type MetricsCollector interface {
	// RecordResolve is called after each vocabulary resolution.
	// source is the tier that succeeded and is meaningless when err is non-nil.
	RecordResolve(source Source, duration time.Duration, err error)

	// RecordCacheBuild is called after each cache build.
	RecordCacheBuild(duration time.Duration, err error)

	// RecordExample is called for every parsed input example.
	// raw is the unfiltered context count, kept the sampled one.
	RecordExample(raw, kept int, emitted bool)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordResolve(Source, time.Duration, error) {}
func (NoopMetricsCollector) RecordCacheBuild(time.Duration, error)      {}
func (NoopMetricsCollector) RecordExample(int, int, bool)               {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ResolveShared     atomic.Int64
	ResolveCache      atomic.Int64
	ResolveRemote     atomic.Int64
	ResolveRaw        atomic.Int64
	ResolveErrors     atomic.Int64
	ResolveTotalNanos atomic.Int64
	CacheBuilds       atomic.Int64
	CacheBuildErrors  atomic.Int64
	Examples          atomic.Int64
	EmptyExamples     atomic.Int64
	RawContexts       atomic.Int64
	KeptContexts      atomic.Int64
}

// RecordResolve implements MetricsCollector.
func (b *BasicMetricsCollector) RecordResolve(source Source, duration time.Duration, err error) {
	b.ResolveTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ResolveErrors.Add(1)
		return
	}
	switch source {
	case SourceSharedMemory:
		b.ResolveShared.Add(1)
	case SourceCache:
		b.ResolveCache.Add(1)
	case SourceRemote:
		b.ResolveRemote.Add(1)
	case SourceRaw:
		b.ResolveRaw.Add(1)
	}
}

// RecordCacheBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCacheBuild(duration time.Duration, err error) {
	b.CacheBuilds.Add(1)
	if err != nil {
		b.CacheBuildErrors.Add(1)
	}
}

// RecordExample implements MetricsCollector.
func (b *BasicMetricsCollector) RecordExample(raw, kept int, emitted bool) {
	b.Examples.Add(1)
	b.RawContexts.Add(int64(raw))
	b.KeptContexts.Add(int64(kept))
	if !emitted {
		b.EmptyExamples.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	resolves := b.ResolveShared.Load() + b.ResolveCache.Load() + b.ResolveRemote.Load() +
		b.ResolveRaw.Load() + b.ResolveErrors.Load()
	var avg int64
	if resolves > 0 {
		avg = b.ResolveTotalNanos.Load() / resolves
	}
	return BasicMetricsStats{
		ResolveShared:    b.ResolveShared.Load(),
		ResolveCache:     b.ResolveCache.Load(),
		ResolveRemote:    b.ResolveRemote.Load(),
		ResolveRaw:       b.ResolveRaw.Load(),
		ResolveErrors:    b.ResolveErrors.Load(),
		ResolveAvgNanos:  avg,
		CacheBuilds:      b.CacheBuilds.Load(),
		CacheBuildErrors: b.CacheBuildErrors.Load(),
		Examples:         b.Examples.Load(),
		EmptyExamples:    b.EmptyExamples.Load(),
		RawContexts:      b.RawContexts.Load(),
		KeptContexts:     b.KeptContexts.Load(),
	}
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ResolveShared    int64
	ResolveCache     int64
	ResolveRemote    int64
	ResolveRaw       int64
	ResolveErrors    int64
	ResolveAvgNanos  int64
	CacheBuilds      int64
	CacheBuildErrors int64
	Examples         int64
	EmptyExamples    int64
	RawContexts      int64
	KeptContexts     int64
}

// exampleObserver feeds pipeline observations into a MetricsCollector.
type exampleObserver struct {
	m MetricsCollector
}

func (o exampleObserver) ObserveExample(raw, kept int, emitted bool) {
	o.m.RecordExample(raw, kept, emitted)
}
