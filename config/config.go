// Package config provides configuration loading for c2vprep.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/c2vprep/artifact"
	"github.com/hupe1980/c2vprep/shm"
	"github.com/hupe1980/c2vprep/vocab"
)

// Environment overrides applied by ApplyEnv.
const (
	EnvDataset  = "C2VPREP_DATASET"
	EnvDataDir  = "C2VPREP_DATA_DIR"
	EnvLogLevel = "C2VPREP_LOG_LEVEL"
	EnvSeed     = "C2VPREP_SEED"
)

// Config represents the complete c2vprep configuration
type Config struct {
	// Dataset names the histogram set, e.g. "java14m"
	Dataset string `yaml:"dataset"`
	// DataDir holds one directory per dataset with its histograms
	DataDir     string            `yaml:"data_dir"`
	Vocab       VocabConfig       `yaml:"vocab"`
	Cache       CacheConfig       `yaml:"cache"`
	Distributor DistributorConfig `yaml:"distributor"`
	Remote      RemoteConfig      `yaml:"remote"`
	Preprocess  PreprocessConfig  `yaml:"preprocess"`
	Log         LogConfig         `yaml:"log"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// VocabConfig bounds the three vocabularies
type VocabConfig struct {
	Sizes vocab.Sizes `yaml:",inline"`
	// StartFrom is the first histogram rank kept (default 1)
	StartFrom int `yaml:"start_from"`
}

// CacheConfig configures the on-disk artifact
type CacheConfig struct {
	// Dir is the root of the per-dataset cache directories; defaults to data_dir
	Dir         string               `yaml:"dir"`
	FileName    string               `yaml:"file_name"`
	Compression artifact.Compression `yaml:"compression"`
}

// DistributorConfig configures the shared-memory distributor
type DistributorConfig struct {
	SegmentDir  string               `yaml:"segment_dir"`
	MetadataDir string               `yaml:"metadata_dir"`
	Compression artifact.Compression `yaml:"compression"`
	StopGrace   time.Duration        `yaml:"stop_grace"`
	// Disabled skips the shared-memory tier in workers
	Disabled bool `yaml:"disabled"`
	// UseEnvSegment lets HISTOGRAM_SHM_NAME/HISTOGRAM_SHM_SIZE override the registry
	UseEnvSegment bool `yaml:"use_env_segment"`
	// MetricsAddr serves /metrics while the server runs (empty = off)
	MetricsAddr string `yaml:"metrics_addr"`
}

// Remote store kinds
const (
	RemoteNone  = ""
	RemoteLocal = "local"
	RemoteS3    = "s3"
	RemoteMinio = "minio"
)

// RemoteConfig configures the object store artifacts are shared through
type RemoteConfig struct {
	// Kind is empty (disabled), local, s3 or minio
	Kind string `yaml:"kind"`
	// Dir is the root of a local store, typically a network mount
	Dir    string `yaml:"dir"`
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	// Region overrides the AWS default region (s3)
	Region string `yaml:"region"`
	// Endpoint is an S3-compatible URL (s3) or host:port (minio)
	Endpoint string `yaml:"endpoint"`
	// Insecure disables TLS for minio
	Insecure bool `yaml:"insecure"`
	// Push uploads artifacts built from raw histograms
	Push bool `yaml:"push"`
}

// Validate checks the fields required by Kind
func (r RemoteConfig) Validate() error {
	switch r.Kind {
	case RemoteNone:
	case RemoteLocal:
		if r.Dir == "" {
			return fmt.Errorf("remote.dir is required for kind %q", r.Kind)
		}
	case RemoteS3:
		if r.Bucket == "" {
			return fmt.Errorf("remote.bucket is required for kind %q", r.Kind)
		}
	case RemoteMinio:
		if r.Bucket == "" || r.Endpoint == "" {
			return fmt.Errorf("remote.bucket and remote.endpoint are required for kind %q", r.Kind)
		}
	default:
		return fmt.Errorf("remote.kind must be local, s3 or minio, got %q", r.Kind)
	}
	return nil
}

// PreprocessConfig configures sampling
type PreprocessConfig struct {
	MaxContexts      int           `yaml:"max_contexts"`
	Seed             int64         `yaml:"seed"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
}

// LogConfig configures logging
type LogConfig struct {
	// Level is debug, info, warn or error
	Level string `yaml:"level"`
	// Format is text or json
	Format string `yaml:"format"`
}

// MetricsConfig configures metrics export for batch runs
type MetricsConfig struct {
	// Textfile is written at exit for the node exporter (empty = off)
	Textfile string `yaml:"textfile"`
}

// DefaultConfig returns a Config with the code2vec defaults
func DefaultConfig() *Config {
	return &Config{
		DataDir: "/code2vec/data",
		Vocab: VocabConfig{
			Sizes:     vocab.Sizes{Word: 1301136, Path: 911417, Target: 261245},
			StartFrom: 1,
		},
		Cache: CacheConfig{
			FileName:    "histogram_cache.bin",
			Compression: artifact.CompressionZSTD,
		},
		Distributor: DistributorConfig{
			SegmentDir:    shm.DefaultSegmentDir,
			MetadataDir:   os.TempDir(),
			Compression:   artifact.CompressionLZ4,
			StopGrace:     shm.DefaultStopGrace,
			UseEnvSegment: true,
		},
		Preprocess: PreprocessConfig{
			MaxContexts:      200,
			ProgressInterval: 10 * time.Second,
		},
		Remote: RemoteConfig{
			Push: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := shm.ValidateDataset(c.Dataset); err != nil {
		return fmt.Errorf("dataset: %w", err)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if err := c.Vocab.Sizes.Validate(); err != nil {
		return fmt.Errorf("vocab: %w", err)
	}
	if c.Vocab.StartFrom < 0 {
		return fmt.Errorf("vocab.start_from must not be negative")
	}
	if c.Preprocess.MaxContexts <= 0 {
		return fmt.Errorf("preprocess.max_contexts must be positive")
	}
	if c.Distributor.StopGrace <= 0 {
		return fmt.Errorf("distributor.stop_grace must be positive")
	}
	if err := c.Remote.Validate(); err != nil {
		return err
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// LogLevel parses Log.Level
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// CacheDir returns <cache.dir>/<dataset>, or <data_dir>/<dataset> when no
// cache dir is set. Datasets never share a cache file or its lock.
func (c *Config) CacheDir() string {
	if c.Cache.Dir != "" {
		return filepath.Join(c.Cache.Dir, c.Dataset)
	}
	return filepath.Join(c.DataDir, c.Dataset)
}

// ApplyEnv overrides fields from C2VPREP_* variables looked up through getenv
// (os.Getenv if nil)
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv(EnvDataset); v != "" {
		c.Dataset = v
	}
	if v := getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := getenv(EnvSeed); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSeed, err)
		}
		c.Preprocess.Seed = seed
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
