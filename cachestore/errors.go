package cachestore

import (
	"errors"
	"fmt"

	"github.com/hupe1980/c2vprep/vocab"
)

var (
	// ErrNotFound is returned when no cache artifact exists yet.
	ErrNotFound = errors.New("cache not found")

	// ErrStaleCache is returned when the artifact was built for other parameters.
	ErrStaleCache = errors.New("stale cache")
)

// StaleCacheError describes an identity mismatch between a requested and a
// stored artifact.
type StaleCacheError struct {
	Path        string
	WantDataset string
	GotDataset  string
	Want        vocab.Sizes
	Got         vocab.Sizes
	// WantStartFrom and GotStartFrom are the first kept ranks.
	WantStartFrom int
	GotStartFrom  int
}

func (e *StaleCacheError) Error() string {
	return fmt.Sprintf("stale cache %s: want dataset %q (%s start_from=%d), found %q (%s start_from=%d)",
		e.Path, e.WantDataset, e.Want, e.WantStartFrom, e.GotDataset, e.Got, e.GotStartFrom)
}

// Is reports ErrStaleCache equivalence.
func (e *StaleCacheError) Is(target error) bool { return target == ErrStaleCache }
