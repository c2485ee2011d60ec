package cachestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/hupe1980/c2vprep/artifact"
	"github.com/hupe1980/c2vprep/blobstore"
	"github.com/hupe1980/c2vprep/vocab"
)

// Remote mirrors artifacts in a blob store shared between hosts.
//
// Objects are keyed by dataset, sizes and first kept rank, so artifacts built
// with different parameters never replace each other.
type Remote struct {
	blobs  blobstore.BlobStore
	logger *slog.Logger
}

// NewRemote wraps blobs. A nil logger discards.
func NewRemote(blobs blobstore.BlobStore, logger *slog.Logger) *Remote {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Remote{blobs: blobs, logger: logger}
}

// RemoteKey returns the object name of the artifact for dataset, sizes and
// first kept rank.
func RemoteKey(dataset string, sizes vocab.Sizes, startFrom int) string {
	return path.Join(dataset, fmt.Sprintf("vocab_w%d_p%d_t%d_s%d.bin",
		sizes.Word, sizes.Path, sizes.Target, vocab.NormalizeStartFrom(startFrom)))
}

// Fetch downloads the artifact for dataset, sizes and startFrom.
//
// A missing object yields ErrNotFound. The downloaded bytes are returned with
// the decoded artifact so they can be installed without re-encoding.
func (r *Remote) Fetch(ctx context.Context, dataset string, sizes vocab.Sizes, startFrom int) ([]byte, *artifact.Artifact, error) {
	key := RemoteKey(dataset, sizes, startFrom)
	data, err := blobstore.ReadAll(ctx, r.blobs, key)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: remote %s", ErrNotFound, key)
		}
		return nil, nil, fmt.Errorf("fetch remote %s: %w", key, err)
	}

	a, err := artifact.Unmarshal(data)
	if err != nil {
		return nil, nil, fmt.Errorf("decode remote %s: %w", key, err)
	}
	if !a.Matches(dataset, sizes, startFrom) {
		return nil, nil, &StaleCacheError{
			Path:          key,
			WantDataset:   dataset,
			GotDataset:    a.Dataset,
			Want:          sizes,
			Got:           a.Sizes,
			WantStartFrom: vocab.NormalizeStartFrom(startFrom),
			GotStartFrom:  a.StartFrom,
		}
	}
	r.logger.Debug("remote artifact fetched", "key", key, "bytes", len(data))
	return data, a, nil
}

// Push uploads a under its key.
func (r *Remote) Push(ctx context.Context, a *artifact.Artifact, c artifact.Compression) error {
	data, err := artifact.Marshal(a, c)
	if err != nil {
		return err
	}
	key := RemoteKey(a.Dataset, a.Sizes, a.StartFrom)
	if err := r.blobs.Put(ctx, key, data); err != nil {
		return fmt.Errorf("push remote %s: %w", key, err)
	}
	r.logger.Info("remote artifact pushed", "key", key, "bytes", len(data))
	return nil
}

// Delete removes the artifact for dataset, sizes and startFrom and returns its
// key. Deleting a missing artifact succeeds.
func (r *Remote) Delete(ctx context.Context, dataset string, sizes vocab.Sizes, startFrom int) (string, error) {
	key := RemoteKey(dataset, sizes, startFrom)
	if err := r.blobs.Delete(ctx, key); err != nil {
		return key, fmt.Errorf("delete remote %s: %w", key, err)
	}
	r.logger.Info("remote artifact deleted", "key", key)
	return key, nil
}

// List returns the artifact keys stored for dataset.
func (r *Remote) List(ctx context.Context, dataset string) ([]string, error) {
	return r.blobs.List(ctx, dataset+"/")
}
