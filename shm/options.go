package shm

import (
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/c2vprep/artifact"
	"github.com/hupe1980/c2vprep/vocab"
)

const (
	// DefaultSegmentDir is the POSIX shared-memory namespace on Linux.
	DefaultSegmentDir = "/dev/shm"
	// DefaultStopGrace bounds how long Stop waits for the owner to exit.
	DefaultStopGrace = 2 * time.Second
)

type settings struct {
	segmentDir  string
	metadataDir string
	compression artifact.Compression
	startFrom   int
	stopGrace   time.Duration
	logger      *slog.Logger

	// process hooks, replaced in tests
	pid       int
	alive     func(pid int) bool
	terminate func(pid int) error
	now       func() time.Time
}

func newSettings(opts []Option) settings {
	s := settings{
		segmentDir:  DefaultSegmentDir,
		metadataDir: os.TempDir(),
		compression: artifact.CompressionLZ4,
		startFrom:   1,
		stopGrace:   DefaultStopGrace,
		logger:      slog.New(slog.DiscardHandler),
		pid:         os.Getpid(),
		alive:       processAlive,
		terminate:   terminateProcess,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option configures a Server, Client or Admin.
type Option func(*settings)

// WithSegmentDir sets the directory holding segment files.
func WithSegmentDir(dir string) Option {
	return func(s *settings) {
		if dir != "" {
			s.segmentDir = dir
		}
	}
}

// WithMetadataDir sets the registry directory (os.TempDir() by default).
func WithMetadataDir(dir string) Option {
	return func(s *settings) {
		if dir != "" {
			s.metadataDir = dir
		}
	}
}

// WithCompression sets the payload compression used by a Server.
func WithCompression(c artifact.Compression) Option {
	return func(s *settings) {
		s.compression = c
	}
}

// WithStartFrom sets the first histogram rank a Server's artifact must be
// built from (default 1).
func WithStartFrom(rank int) Option {
	return func(s *settings) {
		s.startFrom = vocab.NormalizeStartFrom(rank)
	}
}

// WithStopGrace sets how long Admin.Stop waits before force-cleaning.
func WithStopGrace(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.stopGrace = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
