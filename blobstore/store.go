package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore is an abstraction for whole-object blob access.
// Names are slash-separated and relative to the store root.
type BlobStore interface {
	// Get opens a blob for reading. The caller closes the reader.
	Get(ctx context.Context, name string) (io.ReadCloser, error)
	// Put writes a blob atomically, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob succeeds.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names that start with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// ReadAll gets name and reads it fully.
func ReadAll(ctx context.Context, s BlobStore, name string) ([]byte, error) {
	rc, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// ValidateName rejects names that are empty, absolute, end in a slash or
// contain empty, "." or ".." elements.
func ValidateName(name string) error {
	if name == "" || path.Clean("/"+name) != "/"+name {
		return fmt.Errorf("blobstore: invalid blob name %q", name)
	}
	return nil
}
