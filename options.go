package c2vprep

import (
	"github.com/hupe1980/c2vprep/cachestore"
	"github.com/hupe1980/c2vprep/shm"
	"github.com/hupe1980/c2vprep/vocab"
)

type options struct {
	dataDir          string
	histograms       *vocab.HistogramPaths
	startFrom        int
	cacheDir         string
	store            *cachestore.Store
	remote           *cachestore.Remote
	remotePush       bool
	client           *shm.Client
	disableShared    bool
	useEnvSegment    bool
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures a Resolver.
type Option func(*options)

// WithDataDir sets the data root. Histograms and the cache default to
// <dataDir>/<dataset>/.
func WithDataDir(dir string) Option {
	return func(o *options) {
		o.dataDir = dir
	}
}

// WithHistograms overrides the conventional histogram locations.
func WithHistograms(paths vocab.HistogramPaths) Option {
	return func(o *options) {
		o.histograms = &paths
	}
}

// WithStartFrom sets the first histogram rank kept in each table (default 1).
func WithStartFrom(rank int) Option {
	return func(o *options) {
		o.startFrom = rank
	}
}

// WithCacheDir places the cache under <dir>/<dataset> instead of the dataset's
// data directory. Resolvers of different datasets may share dir.
func WithCacheDir(dir string) Option {
	return func(o *options) {
		o.cacheDir = dir
	}
}

// WithCacheStore replaces the default cache store.
func WithCacheStore(s *cachestore.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithRemote adds a remote tier between the cache and the raw histograms.
// Artifacts fetched from it are installed into a missing cache; when push is
// true, caches built from the raw histograms are uploaded to it.
func WithRemote(r *cachestore.Remote, push bool) Option {
	return func(o *options) {
		o.remote = r
		o.remotePush = push
	}
}

// WithSharedMemory sets the client used for the shared-memory tier.
func WithSharedMemory(c *shm.Client) Option {
	return func(o *options) {
		o.client = c
		o.disableShared = c == nil
	}
}

// WithoutSharedMemory skips the shared-memory tier entirely.
func WithoutSharedMemory() Option {
	return func(o *options) {
		o.disableShared = true
	}
}

// WithEnvSegment controls whether HISTOGRAM_SHM_NAME/HISTOGRAM_SHM_SIZE take
// precedence over the registry (default true).
func WithEnvSegment(enabled bool) Option {
	return func(o *options) {
		o.useEnvSegment = enabled
	}
}

// WithMetricsCollector sets a custom metrics collector.
//
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger sets a custom logger for structured logging.
//
// If nil is passed, NoopLogger is used.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}
