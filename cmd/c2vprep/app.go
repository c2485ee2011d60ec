package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/c2vprep"
	"github.com/hupe1980/c2vprep/blobstore"
	miniostore "github.com/hupe1980/c2vprep/blobstore/minio"
	s3store "github.com/hupe1980/c2vprep/blobstore/s3"
	"github.com/hupe1980/c2vprep/cachestore"
	"github.com/hupe1980/c2vprep/config"
	"github.com/hupe1980/c2vprep/shm"
)

// app carries state shared by all subcommands.
type app struct {
	configPath string
	flags      struct {
		dataset    string
		dataDir    string
		wordSize   int
		pathSize   int
		targetSize int
		logLevel   string
		logFormat  string
	}

	cfg    *config.Config
	logger *c2vprep.Logger
}

// setup loads the config (defaults, file, environment, flags), validates it
// and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	if err := a.load(cmd); err != nil {
		return err
	}
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// load is setup without validation, for commands that span all datasets.
func (a *app) load(cmd *cobra.Command) error {
	cfg := config.DefaultConfig()
	if a.configPath != "" {
		loaded, err := config.LoadFromFile(a.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("dataset") {
		cfg.Dataset = a.flags.dataset
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = a.flags.dataDir
	}
	if flags.Changed("word-vocab-size") {
		cfg.Vocab.Sizes.Word = a.flags.wordSize
	}
	if flags.Changed("path-vocab-size") {
		cfg.Vocab.Sizes.Path = a.flags.pathSize
	}
	if flags.Changed("target-vocab-size") {
		cfg.Vocab.Sizes.Target = a.flags.targetSize
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.flags.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = a.flags.logFormat
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Log.Format == "json" {
		a.logger = c2vprep.NewJSONLogger(cmd.ErrOrStderr(), level)
	} else {
		a.logger = c2vprep.NewTextLogger(cmd.ErrOrStderr(), level)
	}
	a.cfg = cfg
	return nil
}

func (a *app) shmOptions() []shm.Option {
	d := a.cfg.Distributor
	return []shm.Option{
		shm.WithSegmentDir(d.SegmentDir),
		shm.WithMetadataDir(d.MetadataDir),
		shm.WithCompression(d.Compression),
		shm.WithStartFrom(a.cfg.Vocab.StartFrom),
		shm.WithStopGrace(d.StopGrace),
		shm.WithLogger(a.logger.Logger),
	}
}

// remote builds the configured remote tier; nil when none is configured.
func (a *app) remote(ctx context.Context) (*cachestore.Remote, error) {
	rc := a.cfg.Remote
	var (
		blobs blobstore.BlobStore
		err   error
	)
	switch rc.Kind {
	case config.RemoteNone:
		return nil, nil
	case config.RemoteLocal:
		blobs = blobstore.NewLocalStore(rc.Dir)
	case config.RemoteS3:
		opts := []s3store.Option{s3store.WithPrefix(rc.Prefix)}
		if rc.Region != "" {
			opts = append(opts, s3store.WithRegion(rc.Region))
		}
		if rc.Endpoint != "" {
			opts = append(opts, s3store.WithEndpoint(rc.Endpoint))
		}
		blobs, err = s3store.New(ctx, rc.Bucket, opts...)
	case config.RemoteMinio:
		blobs, err = miniostore.Connect(rc.Endpoint, rc.Bucket, rc.Prefix, !rc.Insecure)
	default:
		err = fmt.Errorf("unknown remote kind %q", rc.Kind)
	}
	if err != nil {
		return nil, err
	}
	return cachestore.NewRemote(blobs, a.logger.Logger), nil
}

func (a *app) resolver(ctx context.Context, mc c2vprep.MetricsCollector) (*c2vprep.Resolver, error) {
	cfg := a.cfg
	store := cachestore.New(cfg.CacheDir(),
		cachestore.WithFileName(cfg.Cache.FileName),
		cachestore.WithCompression(cfg.Cache.Compression),
		cachestore.WithLogger(a.logger.Logger),
	)

	opts := []c2vprep.Option{
		c2vprep.WithDataDir(cfg.DataDir),
		c2vprep.WithStartFrom(cfg.Vocab.StartFrom),
		c2vprep.WithCacheStore(store),
		c2vprep.WithEnvSegment(cfg.Distributor.UseEnvSegment),
		c2vprep.WithMetricsCollector(mc),
		c2vprep.WithLogger(a.logger),
	}
	remote, err := a.remote(ctx)
	if err != nil {
		return nil, err
	}
	if remote != nil {
		opts = append(opts, c2vprep.WithRemote(remote, cfg.Remote.Push))
	}
	if cfg.Distributor.Disabled {
		opts = append(opts, c2vprep.WithoutSharedMemory())
	} else {
		opts = append(opts, c2vprep.WithSharedMemory(shm.NewClient(a.shmOptions()...)))
	}
	return c2vprep.NewResolver(cfg.Dataset, cfg.Vocab.Sizes, opts...)
}
