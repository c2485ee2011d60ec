package shm

import (
	"context"
	"errors"
	"fmt"
	"time"

	ifs "github.com/hupe1980/c2vprep/internal/fs"
)

const stopPollInterval = 50 * time.Millisecond

// Status describes the distributor state of one dataset.
type Status struct {
	Dataset string
	// Running is true when a record exists and its owner is alive.
	Running    bool
	OwnerAlive bool
	// Orphaned is true when a record or segment outlived its owner.
	Orphaned       bool
	SegmentPresent bool
	Record         *Record
}

// Admin controls distributors from outside the owning process.
type Admin struct {
	registry *Registry
	settings
}

// NewAdmin creates an admin handle.
func NewAdmin(opts ...Option) *Admin {
	a := &Admin{settings: newSettings(opts)}
	a.registry = NewRegistry(a.metadataDir)
	return a
}

// Registry returns the registry the admin reads.
func (a *Admin) Registry() *Registry { return a.registry }

// Status reports the distributor state of dataset.
func (a *Admin) Status(dataset string) (*Status, error) {
	if err := ValidateDataset(dataset); err != nil {
		return nil, err
	}
	st := &Status{
		Dataset:        dataset,
		SegmentPresent: a.segmentExists(SegmentName(dataset)),
	}

	rec, err := a.registry.Lookup(dataset)
	switch {
	case err == nil:
		st.Record = rec
		st.OwnerAlive = a.alive(rec.PID)
		st.Running = st.OwnerAlive
		st.Orphaned = !st.OwnerAlive
	case errors.Is(err, ErrNotRunning):
		st.Orphaned = st.SegmentPresent
	default:
		return nil, err
	}
	return st, nil
}

// Stop asks the owner of dataset to exit and cleans up whatever it leaves.
//
// The owner gets SIGTERM and up to the stop grace period to remove its
// record; afterwards the segment and record are removed unconditionally.
// Stopping a dataset that is not running succeeds.
func (a *Admin) Stop(ctx context.Context, dataset string) error {
	if err := ValidateDataset(dataset); err != nil {
		return err
	}
	rec, err := a.registry.Lookup(dataset)
	switch {
	case errors.Is(err, ErrNotRunning):
		a.logger.Info("distributor not running", "dataset", dataset)
		return a.forceClean(dataset, nil)
	case err != nil:
		a.logger.Warn("unreadable metadata; cleaning up", "dataset", dataset, "error", err)
		return a.forceClean(dataset, nil)
	}

	if a.alive(rec.PID) {
		a.logger.Info("sending SIGTERM", "dataset", dataset, "pid", rec.PID)
		if err := a.terminate(rec.PID); err != nil {
			return fmt.Errorf("signal pid %d: %w", rec.PID, err)
		}
		if a.waitGone(ctx, dataset, rec) {
			a.logger.Info("distributor exited", "dataset", dataset, "pid", rec.PID)
		} else {
			a.logger.Warn("distributor did not clean up in time", "dataset", dataset, "pid", rec.PID, "grace", a.stopGrace)
		}
	} else {
		a.logger.Warn("owner process not found", "dataset", dataset, "pid", rec.PID)
	}
	return a.forceClean(dataset, rec)
}

// waitGone polls until the record of rec's instance disappears or the owner
// dies, bounded by the stop grace period and ctx.
func (a *Admin) waitGone(ctx context.Context, dataset string, rec *Record) bool {
	ctx, cancel := context.WithTimeout(ctx, a.stopGrace)
	defer cancel()

	ticker := time.NewTicker(stopPollInterval)
	defer ticker.Stop()
	for {
		cur, err := a.registry.Lookup(dataset)
		if errors.Is(err, ErrNotRunning) || (err == nil && cur.Instance != rec.Instance) {
			return true
		}
		if !a.alive(rec.PID) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// forceClean unlinks the segment and removes the record under the registry
// lock. When owner is set, state belonging to a newer instance is left alone.
func (a *Admin) forceClean(dataset string, owner *Record) error {
	if err := ifs.Default.MkdirAll(a.metadataDir, 0o755); err != nil {
		return err
	}
	unlock, err := ifs.Lock(a.registry.lockPath(dataset))
	if err != nil {
		return fmt.Errorf("lock registry: %w", err)
	}
	defer func() { _ = unlock() }()

	if owner != nil {
		cur, err := a.registry.Lookup(dataset)
		if err == nil && cur.Instance != owner.Instance {
			a.logger.Info("a new distributor instance took over; nothing to clean", "dataset", dataset)
			return nil
		}
	}

	name := SegmentName(dataset)
	if a.segmentExists(name) {
		a.logger.Info("unlinking segment", "segment", name)
	}
	if err := a.unlinkSegment(name); err != nil {
		return fmt.Errorf("unlink segment %s: %w", name, err)
	}
	if err := a.registry.Remove(dataset); err != nil {
		return fmt.Errorf("remove metadata: %w", err)
	}
	return nil
}
