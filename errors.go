package c2vprep

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/hupe1980/c2vprep/artifact"
	"github.com/hupe1980/c2vprep/cachestore"
	"github.com/hupe1980/c2vprep/pipeline"
	"github.com/hupe1980/c2vprep/sampler"
	"github.com/hupe1980/c2vprep/shm"
	"github.com/hupe1980/c2vprep/vocab"
)

var (
	// ErrNotFound is returned when a histogram, input file, cache or distributor is absent.
	ErrNotFound = errors.New("not found")

	// ErrFormat is returned for malformed histogram or input lines.
	ErrFormat = errors.New("malformed input")

	// ErrStaleCache is returned when a cache artifact was built with other parameters.
	ErrStaleCache = errors.New("stale cache")

	// ErrAttachFailure is returned when a registered segment cannot be read.
	ErrAttachFailure = errors.New("attach failure")

	// ErrCorrupt is returned when an artifact or segment fails validation.
	ErrCorrupt = errors.New("corrupt data")

	// ErrInvalidJob is returned for unusable Job parameters.
	ErrInvalidJob = errors.New("invalid job")

	// ErrNoRemote is returned by remote operations on a resolver without a remote tier.
	ErrNoRemote = errors.New("no remote configured")
)

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Already translated.
	for _, sentinel := range []error{ErrNotFound, ErrFormat, ErrStaleCache, ErrAttachFailure, ErrCorrupt, ErrInvalidJob} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	switch {
	case errors.Is(err, cachestore.ErrStaleCache):
		return fmt.Errorf("%w: %w", ErrStaleCache, err)
	case errors.Is(err, vocab.ErrFormat),
		errors.Is(err, pipeline.ErrFormat),
		errors.Is(err, sampler.ErrFormat):
		return fmt.Errorf("%w: %w", ErrFormat, err)
	case errors.Is(err, shm.ErrAttachFailure):
		return fmt.Errorf("%w: %w", ErrAttachFailure, err)
	case errors.Is(err, shm.ErrCorruptPayload),
		errors.Is(err, artifact.ErrCorrupt),
		errors.Is(err, artifact.ErrInvalidMagic),
		errors.Is(err, artifact.ErrInvalidVersion),
		errors.Is(err, artifact.ErrUnknownCompression):
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	case errors.Is(err, vocab.ErrNotFound),
		errors.Is(err, cachestore.ErrNotFound),
		errors.Is(err, shm.ErrNotRunning),
		errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
