package shm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/hupe1980/c2vprep/artifact"
	ifs "github.com/hupe1980/c2vprep/internal/fs"
	"github.com/hupe1980/c2vprep/vocab"
)

// Provider supplies the artifact a Server distributes.
type Provider interface {
	Provide(ctx context.Context, dataset string, sizes vocab.Sizes) (*artifact.Artifact, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, dataset string, sizes vocab.Sizes) (*artifact.Artifact, error)

// Provide implements Provider.
func (f ProviderFunc) Provide(ctx context.Context, dataset string, sizes vocab.Sizes) (*artifact.Artifact, error) {
	return f(ctx, dataset, sizes)
}

// Server owns the segment of one dataset.
type Server struct {
	dataset  string
	sizes    vocab.Sizes
	provider Provider
	registry *Registry
	settings

	mu     sync.Mutex
	record *Record
}

// NewServer creates a server for dataset. Nothing is loaded until Start or Publish.
func NewServer(dataset string, sizes vocab.Sizes, p Provider, opts ...Option) *Server {
	s := &Server{
		dataset:  dataset,
		sizes:    sizes,
		provider: p,
		settings: newSettings(opts),
	}
	s.registry = NewRegistry(s.metadataDir)
	return s
}

// Registry returns the registry the server publishes to.
func (s *Server) Registry() *Registry { return s.registry }

// Start publishes the segment and blocks until ctx is done, then unlinks the
// segment and removes the metadata record.
func (s *Server) Start(ctx context.Context) error {
	rec, err := s.Publish(ctx)
	if err != nil {
		return err
	}

	s.logger.Info("distributor running",
		"dataset", rec.Dataset,
		"segment", rec.Segment,
		"size", rec.Size,
		"pid", rec.PID,
		"metadata", s.registry.Path(rec.Dataset),
	)
	s.logger.Info("worker environment",
		"HISTOGRAM_SHM_NAME", rec.Segment,
		"HISTOGRAM_SHM_SIZE", rec.Size,
	)

	<-ctx.Done()
	s.logger.Info("distributor shutting down", "dataset", rec.Dataset, "reason", context.Cause(ctx))
	return s.Shutdown()
}

// Publish loads the artifact, writes it into a fresh segment and registers it.
// Any leftover segment or record of a dead owner is reclaimed first.
func (s *Server) Publish(ctx context.Context) (*Record, error) {
	if err := ValidateDataset(s.dataset); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record != nil {
		return nil, fmt.Errorf("%w: %s (this process)", ErrAlreadyRunning, s.dataset)
	}

	a, err := s.provider.Provide(ctx, s.dataset, s.sizes)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary for %s: %w", s.dataset, err)
	}
	if !a.Matches(s.dataset, s.sizes, s.startFrom) {
		return nil, fmt.Errorf("provider returned artifact for %q (%s start_from=%d), want %q (%s start_from=%d)",
			a.Dataset, a.Sizes, a.StartFrom, s.dataset, s.sizes, s.startFrom)
	}
	payload, err := artifact.Marshal(a, s.compression)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.registry.fs.MkdirAll(s.metadataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create metadata dir %s: %w", s.metadataDir, err)
	}
	unlock, err := ifs.Lock(s.registry.lockPath(s.dataset))
	if err != nil {
		return nil, fmt.Errorf("lock registry: %w", err)
	}
	defer func() { _ = unlock() }()

	if err := s.reclaim(); err != nil {
		return nil, err
	}

	rec := &Record{
		Segment:     SegmentName(s.dataset),
		Size:        len(payload),
		Dataset:     s.dataset,
		Sizes:       s.sizes,
		StartFrom:   s.startFrom,
		Compression: s.compression,
		PID:         s.pid,
		Instance:    uuid.New(),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.writeSegment(rec.Segment, payload); err != nil {
		return nil, err
	}
	// The record becomes visible only after the segment is complete.
	if err := s.registry.Publish(rec); err != nil {
		_ = s.unlinkSegment(rec.Segment)
		return nil, err
	}

	s.record = rec
	return rec, nil
}

// reclaim removes state of a previous owner. A live foreign owner wins.
func (s *Server) reclaim() error {
	name := SegmentName(s.dataset)
	old, err := s.registry.Lookup(s.dataset)
	switch {
	case err == nil:
		if old.PID != s.pid && s.alive(old.PID) {
			return fmt.Errorf("%w: %s (pid %d)", ErrAlreadyRunning, s.dataset, old.PID)
		}
		s.logger.Warn("reclaiming orphaned distributor state",
			"dataset", s.dataset, "pid", old.PID, "instance", old.Instance)
	case errors.Is(err, ErrNotRunning):
	default:
		// An unreadable record cannot name a live owner.
		s.logger.Warn("discarding unreadable metadata", "dataset", s.dataset, "error", err)
	}

	if s.segmentExists(name) {
		s.logger.Info("unlinking leftover segment", "segment", name)
	}
	if err := s.unlinkSegment(name); err != nil {
		return fmt.Errorf("unlink segment %s: %w", name, err)
	}
	return s.registry.Remove(s.dataset)
}

// Record returns the published record, or nil.
func (s *Server) Record() *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record
}

// Shutdown unlinks the segment, then removes the record. Only state created
// by this server instance is touched. It is idempotent.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return nil
	}
	rec := s.record
	s.record = nil

	current, err := s.registry.Lookup(rec.Dataset)
	if err == nil && current.Instance != rec.Instance {
		s.logger.Warn("segment taken over by another instance; leaving it",
			"dataset", rec.Dataset, "instance", current.Instance)
		return nil
	}

	var errs []error
	if err := s.unlinkSegment(rec.Segment); err != nil {
		errs = append(errs, fmt.Errorf("unlink segment %s: %w", rec.Segment, err))
	}
	if err := s.registry.Remove(rec.Dataset); err != nil {
		errs = append(errs, fmt.Errorf("remove metadata: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	s.logger.Info("distributor stopped", "dataset", rec.Dataset, "segment", rec.Segment)
	return nil
}
