package c2vprep

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hupe1980/c2vprep/artifact"
	"github.com/hupe1980/c2vprep/cachestore"
	"github.com/hupe1980/c2vprep/shm"
	"github.com/hupe1980/c2vprep/vocab"
)

// Source identifies the tier a vocabulary was resolved from.
type Source int

const (
	// SourceSharedMemory is a segment of a running distributor.
	SourceSharedMemory Source = iota
	// SourceCache is the on-disk cache artifact.
	SourceCache
	// SourceRemote is an artifact in shared object storage.
	SourceRemote
	// SourceRaw is the raw histogram files.
	SourceRaw
)

func (s Source) String() string {
	switch s {
	case SourceSharedMemory:
		return "shm"
	case SourceCache:
		return "cache"
	case SourceRemote:
		return "remote"
	case SourceRaw:
		return "raw"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// Resolution is a resolved vocabulary and where it came from.
type Resolution struct {
	Artifact *artifact.Artifact
	Source   Source
	// CacheBuilt is true when the remote or raw tier also published a fresh cache.
	CacheBuilt bool
}

// Resolver locates the vocabularies of one dataset.
// It is safe for concurrent use.
type Resolver struct {
	dataset    string
	sizes      vocab.Sizes
	startFrom  int
	histograms vocab.HistogramPaths
	store      *cachestore.Store
	remote     *cachestore.Remote
	push       bool
	client     *shm.Client
	useEnv     bool
	metrics    MetricsCollector
	logger     *Logger
}

// NewResolver creates a resolver for dataset built with sizes.
func NewResolver(dataset string, sizes vocab.Sizes, opts ...Option) (*Resolver, error) {
	if err := shm.ValidateDataset(dataset); err != nil {
		return nil, err
	}
	if err := sizes.Validate(); err != nil {
		return nil, err
	}

	o := options{
		dataDir:          ".",
		startFrom:        1,
		useEnvSegment:    true,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Resolver{
		dataset:   dataset,
		sizes:     sizes,
		startFrom: vocab.NormalizeStartFrom(o.startFrom),
		useEnv:    o.useEnvSegment,
		metrics:   o.metricsCollector,
		logger:    o.logger.WithDataset(dataset),
	}
	if o.histograms != nil {
		r.histograms = *o.histograms
	} else {
		r.histograms = vocab.DatasetHistograms(o.dataDir, dataset)
	}
	r.store = o.store
	r.remote = o.remote
	r.push = o.remotePush
	if r.store == nil {
		cacheDir := o.cacheDir
		if cacheDir == "" {
			cacheDir = o.dataDir
		}
		r.store = cachestore.New(filepath.Join(cacheDir, dataset), cachestore.WithLogger(r.logger.Logger))
	}
	if !o.disableShared {
		r.client = o.client
		if r.client == nil {
			r.client = shm.NewClient(shm.WithLogger(r.logger.Logger))
		}
	}
	return r, nil
}

// Dataset returns the dataset name.
func (r *Resolver) Dataset() string { return r.dataset }

// Sizes returns the vocabulary sizes.
func (r *Resolver) Sizes() vocab.Sizes { return r.sizes }

// Store returns the cache store of the cache tier.
func (r *Resolver) Store() *cachestore.Store { return r.store }

// Resolve returns the vocabulary from the first tier that has it.
//
// Shared-memory failures of any kind fall through to the cache. A missing or
// stale cache falls through to the remote tier, if configured, and then to
// the raw histograms; any other cache error is fatal, as is every raw-tier
// error. Remote failures fall through. The remote and raw tiers publish a
// cache only when none existed.
func (r *Resolver) Resolve(ctx context.Context) (*Resolution, error) {
	start := time.Now()
	res, err := r.resolve(ctx, true)
	elapsed := time.Since(start)

	err = translateError(err)
	var src Source
	if res != nil {
		src = res.Source
	}
	r.metrics.RecordResolve(src, elapsed, err)
	r.logger.LogResolve(ctx, src, elapsed, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Provide implements shm.Provider using the cache, remote and raw tiers.
func (r *Resolver) Provide(ctx context.Context, dataset string, sizes vocab.Sizes) (*artifact.Artifact, error) {
	if dataset != r.dataset || sizes != r.sizes {
		return nil, fmt.Errorf("resolver serves %q (%s), asked for %q (%s)", r.dataset, r.sizes, dataset, sizes)
	}
	res, err := r.resolve(ctx, false)
	if err != nil {
		return nil, translateError(err)
	}
	return res.Artifact, nil
}

// Preload parses the raw histograms and (re)builds the cache unconditionally.
// With a pushing remote the new artifact is uploaded as well; an upload
// failure is returned after the cache has been published.
func (r *Resolver) Preload(ctx context.Context) (*artifact.Artifact, error) {
	set, err := vocab.LoadSet(ctx, r.histograms, r.sizes, r.startFrom)
	if err != nil {
		return nil, translateError(err)
	}
	a, err := r.buildCache(ctx, set)
	if err != nil {
		return nil, translateError(err)
	}
	if r.remote != nil && r.push {
		if err := r.pushRemote(ctx, a); err != nil {
			return a, err
		}
	}
	return a, nil
}

// Push uploads the current cache artifact to the remote tier.
func (r *Resolver) Push(ctx context.Context) (*artifact.Artifact, error) {
	if r.remote == nil {
		return nil, ErrNoRemote
	}
	a, err := r.store.Load(r.dataset, r.sizes, r.startFrom)
	if err != nil {
		return nil, translateError(err)
	}
	if err := r.pushRemote(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *Resolver) resolve(ctx context.Context, shared bool) (*Resolution, error) {
	if shared && r.client != nil {
		if a := r.attach(ctx); a != nil {
			return &Resolution{Artifact: a, Source: SourceSharedMemory}, nil
		}
	}

	a, err := r.store.Load(r.dataset, r.sizes, r.startFrom)
	buildCache := false
	switch {
	case err == nil:
		return &Resolution{Artifact: a, Source: SourceCache}, nil
	case errors.Is(err, cachestore.ErrNotFound):
		r.logger.LogTierMiss(ctx, SourceCache, true, err)
		buildCache = true
	case errors.Is(err, cachestore.ErrStaleCache):
		r.logger.LogTierMiss(ctx, SourceCache, false, err)
	default:
		return nil, err
	}

	if r.remote != nil {
		if res := r.fetchRemote(ctx, buildCache); res != nil {
			return res, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	set, err := vocab.LoadSet(ctx, r.histograms, r.sizes, r.startFrom)
	if err != nil {
		return nil, err
	}

	res := &Resolution{Source: SourceRaw}
	if buildCache {
		// The vocabulary is usable even if publishing the cache fails.
		if built, err := r.buildCache(ctx, set); err == nil {
			res.Artifact = built
			res.CacheBuilt = true
			if r.remote != nil && r.push {
				_ = r.pushRemote(ctx, built)
			}
		}
	}
	if res.Artifact == nil {
		res.Artifact = &artifact.Artifact{
			Dataset:   r.dataset,
			Sizes:     r.sizes,
			StartFrom: r.startFrom,
			Vocab:     set,
			CreatedAt: time.Now(),
		}
	}
	return res, nil
}

// attach tries the environment segment, then the registry. Failures are
// logged and reported as nil.
func (r *Resolver) attach(ctx context.Context) *artifact.Artifact {
	var (
		a       *artifact.Artifact
		err     error
		segment string
	)
	if name, size, ok := shm.SegmentFromEnv(); r.useEnv && ok {
		segment = name
		a, err = r.client.AttachSegment(name, size)
	} else {
		segment = shm.SegmentName(r.dataset)
		a, err = r.client.Attach(r.dataset)
	}

	switch {
	case errors.Is(err, shm.ErrNotRunning):
		r.logger.LogTierMiss(ctx, SourceSharedMemory, true, err)
		return nil
	case err != nil:
		r.logger.LogAttach(ctx, segment, err)
		return nil
	case !a.Matches(r.dataset, r.sizes, r.startFrom):
		r.logger.LogTierMiss(ctx, SourceSharedMemory, false,
			fmt.Errorf("segment %s holds %q (%s start_from=%d)", segment, a.Dataset, a.Sizes, a.StartFrom))
		return nil
	}
	r.logger.LogAttach(ctx, segment, nil)
	return a
}

// fetchRemote downloads the artifact and, if install is set, publishes it as
// the cache. Failures are logged and reported as nil.
func (r *Resolver) fetchRemote(ctx context.Context, install bool) *Resolution {
	key := cachestore.RemoteKey(r.dataset, r.sizes, r.startFrom)
	start := time.Now()
	data, a, err := r.remote.Fetch(ctx, r.dataset, r.sizes, r.startFrom)
	switch {
	case errors.Is(err, cachestore.ErrNotFound):
		r.logger.LogTierMiss(ctx, SourceRemote, true, err)
		return nil
	case err != nil:
		r.logger.LogRemote(ctx, "fetch", key, time.Since(start), err)
		return nil
	}
	r.logger.LogRemote(ctx, "fetch", key, time.Since(start), nil)

	res := &Resolution{Artifact: a, Source: SourceRemote}
	if install {
		installStart := time.Now()
		installed, err := r.store.Install(ctx, data)
		r.metrics.RecordCacheBuild(time.Since(installStart), err)
		r.logger.LogCacheBuild(ctx, r.store.Path(), time.Since(installStart), err)
		if err == nil {
			res.Artifact = installed
			res.CacheBuilt = true
		}
	}
	return res
}

func (r *Resolver) pushRemote(ctx context.Context, a *artifact.Artifact) error {
	key := cachestore.RemoteKey(a.Dataset, a.Sizes, a.StartFrom)
	start := time.Now()
	err := r.remote.Push(ctx, a, r.store.Compression())
	r.logger.LogRemote(ctx, "push", key, time.Since(start), err)
	return err
}

func (r *Resolver) buildCache(ctx context.Context, set *vocab.Set) (*artifact.Artifact, error) {
	start := time.Now()
	a, err := r.store.Build(ctx, set, r.sizes, r.startFrom, r.dataset)
	elapsed := time.Since(start)
	r.metrics.RecordCacheBuild(elapsed, err)
	r.logger.LogCacheBuild(ctx, r.store.Path(), elapsed, err)
	return a, err
}
