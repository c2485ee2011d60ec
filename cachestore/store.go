// Package cachestore persists a dataset's vocabulary artifact to a single file.
//
// Writers serialize through an exclusive advisory lock on a sibling lock file
// and publish with write-to-temp + rename, so readers (which never lock) see
// either no file, the previous artifact or the new one in full.
package cachestore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/c2vprep/artifact"
	ifs "github.com/hupe1980/c2vprep/internal/fs"
	"github.com/hupe1980/c2vprep/vocab"
)

const (
	// DefaultFileName is the artifact file name inside the cache directory.
	DefaultFileName = "histogram_cache.bin"
	// LockSuffix is appended to the artifact path to name the lock file.
	LockSuffix = ".lock"
)

// Store reads and writes the artifact of one cache directory.
type Store struct {
	dir         string
	fileName    string
	compression artifact.Compression
	fs          ifs.FileSystem
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFileSystem replaces the filesystem used for publication (tests inject faults).
func WithFileSystem(fsys ifs.FileSystem) Option {
	return func(s *Store) {
		if fsys != nil {
			s.fs = fsys
		}
	}
}

// WithCompression sets the body compression of newly built artifacts.
func WithCompression(c artifact.Compression) Option {
	return func(s *Store) {
		s.compression = c
	}
}

// WithFileName overrides DefaultFileName.
func WithFileName(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.fileName = name
		}
	}
}

// New creates a store for the cache directory dir.
func New(dir string, opts ...Option) *Store {
	s := &Store{
		dir:         dir,
		fileName:    DefaultFileName,
		compression: artifact.CompressionZSTD,
		fs:          ifs.Default,
		logger:      slog.New(slog.DiscardHandler),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the artifact path.
func (s *Store) Path() string { return filepath.Join(s.dir, s.fileName) }

// LockPath returns the path of the writer lock file.
func (s *Store) LockPath() string { return s.Path() + LockSuffix }

// Build serializes set as the artifact for dataset, built with sizes from
// rank startFrom on, and publishes it.
//
// Build blocks until it holds the exclusive writer lock; there is no timeout.
// On failure the previously published artifact, if any, is left untouched.
func (s *Store) Build(ctx context.Context, set *vocab.Set, sizes vocab.Sizes, startFrom int, dataset string) (*artifact.Artifact, error) {
	if set == nil {
		return nil, fmt.Errorf("cachestore: nil vocabulary set")
	}
	a := &artifact.Artifact{
		Dataset:   dataset,
		Sizes:     sizes,
		StartFrom: vocab.NormalizeStartFrom(startFrom),
		Vocab:     set,
		CreatedAt: s.now(),
	}
	start := time.Now()
	err := s.publish(ctx, func(w io.Writer) error {
		return artifact.Encode(w, a, s.compression)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("cache artifact published",
		"path", s.Path(),
		"dataset", dataset,
		"words", set.Words.Len(),
		"paths", set.Paths.Len(),
		"targets", set.Targets.Len(),
		"compression", s.compression.String(),
		"elapsed", time.Since(start),
	)
	return a, nil
}

// Install publishes an already encoded artifact, such as one downloaded from
// a Remote. data must decode; it is written as is.
func (s *Store) Install(ctx context.Context, data []byte) (*artifact.Artifact, error) {
	a, err := artifact.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("install cache %s: %w", s.Path(), err)
	}
	err = s.publish(ctx, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("cache artifact installed",
		"path", s.Path(),
		"dataset", a.Dataset,
		"sizes", a.Sizes.String(),
		"bytes", len(data),
	)
	return a, nil
}

// publish writes the artifact file atomically while holding the writer lock.
func (s *Store) publish(ctx context.Context, write func(io.Writer) error) error {
	if err := s.fs.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create cache dir %s: %w", s.dir, err)
	}

	s.logger.Debug("acquiring cache lock", "lock", s.LockPath())
	unlock, err := ifs.Lock(s.LockPath())
	if err != nil {
		return fmt.Errorf("lock %s: %w", s.LockPath(), err)
	}
	defer func() {
		if uerr := unlock(); uerr != nil {
			s.logger.Warn("releasing cache lock failed", "lock", s.LockPath(), "error", uerr)
		}
	}()
	s.logger.Debug("cache lock acquired", "lock", s.LockPath())

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ifs.WriteAtomic(s.fs, s.Path(), 0644, write); err != nil {
		return fmt.Errorf("write cache %s: %w", s.Path(), err)
	}
	return nil
}

// Compression returns the body compression of newly built artifacts.
func (s *Store) Compression() artifact.Compression { return s.compression }

// Load reads the artifact and checks that it was built for dataset and sizes
// from rank startFrom on.
//
// A missing file yields ErrNotFound and an identity mismatch a
// *StaleCacheError; both are cache misses. Other errors mean the file is
// unreadable or corrupt.
func (s *Store) Load(dataset string, sizes vocab.Sizes, startFrom int) (*artifact.Artifact, error) {
	path := s.Path()
	f, err := s.fs.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 256*1024)
	id, err := artifact.ReadIdentity(r)
	if err != nil {
		return nil, fmt.Errorf("read cache %s: %w", path, err)
	}
	if !id.Matches(dataset, sizes, startFrom) {
		return nil, &StaleCacheError{
			Path:          path,
			WantDataset:   dataset,
			GotDataset:    id.Dataset,
			Want:          sizes,
			Got:           id.Sizes(),
			WantStartFrom: vocab.NormalizeStartFrom(startFrom),
			GotStartFrom:  id.StartFrom(),
		}
	}

	a, err := artifact.DecodeBody(r, id)
	if err != nil {
		return nil, fmt.Errorf("read cache %s: %w", path, err)
	}
	return a, nil
}

// Info describes the currently published artifact.
type Info struct {
	Path      string
	Size      int64
	ModTime   time.Time
	Dataset   string
	Sizes     vocab.Sizes
	StartFrom int
}

// Stat returns information about the published artifact without decoding its body.
func (s *Store) Stat() (*Info, error) {
	path := s.Path()
	f, err := s.fs.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	id, err := artifact.ReadIdentity(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("read cache %s: %w", path, err)
	}
	return &Info{
		Path:      path,
		Size:      fi.Size(),
		ModTime:   fi.ModTime(),
		Dataset:   id.Dataset,
		Sizes:     id.Sizes(),
		StartFrom: id.StartFrom(),
	}, nil
}
