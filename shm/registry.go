package shm

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/c2vprep/artifact"
	"github.com/hupe1980/c2vprep/codec"
	ifs "github.com/hupe1980/c2vprep/internal/fs"
	"github.com/hupe1980/c2vprep/vocab"
)

const (
	segmentPrefix  = "code2vec_histograms_"
	metadataSuffix = "_metadata.json"
)

// SegmentName returns the segment name of dataset.
func SegmentName(dataset string) string { return segmentPrefix + dataset }

// ValidateDataset rejects names that cannot be embedded in a file name.
func ValidateDataset(dataset string) error {
	if dataset == "" || dataset == "." || dataset == ".." ||
		strings.ContainsAny(dataset, `/\`) || strings.ContainsRune(dataset, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidDataset, dataset)
	}
	return nil
}

// Record is the metadata a running server publishes for its segment.
type Record struct {
	Segment     string               `json:"segment"`
	Size        int                  `json:"size"`
	Dataset     string               `json:"dataset"`
	Sizes       vocab.Sizes          `json:"sizes"`
	StartFrom   int                  `json:"start_from"`
	Compression artifact.Compression `json:"compression"`
	PID         int                  `json:"pid"`
	Instance    uuid.UUID            `json:"instance"`
	CreatedAt   time.Time            `json:"created_at"`
}

// Registry stores one Record per dataset as a JSON file in a directory.
type Registry struct {
	dir   string
	codec codec.Codec
	fs    ifs.FileSystem
}

// NewRegistry creates a registry rooted at dir.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir, codec: codec.Default, fs: ifs.Default}
}

// Dir returns the registry directory.
func (r *Registry) Dir() string { return r.dir }

// Path returns the metadata file of dataset.
func (r *Registry) Path(dataset string) string {
	return filepath.Join(r.dir, SegmentName(dataset)+metadataSuffix)
}

func (r *Registry) lockPath(dataset string) string {
	return r.Path(dataset) + ".lock"
}

// Lookup returns the record of dataset, or ErrNotRunning.
func (r *Registry) Lookup(dataset string) (*Record, error) {
	return r.read(r.Path(dataset))
}

func (r *Registry) read(path string) (*Record, error) {
	data, err := ifs.ReadFile(r.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotRunning, path)
		}
		return nil, fmt.Errorf("read metadata %s: %w", path, err)
	}
	var rec Record
	if err := r.codec.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", path, err)
	}
	return &rec, nil
}

// Publish atomically writes rec.
func (r *Registry) Publish(rec *Record) error {
	data, err := r.codec.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := r.fs.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create metadata dir %s: %w", r.dir, err)
	}
	path := r.Path(rec.Dataset)
	err = ifs.WriteAtomic(r.fs, path, 0o644, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return fmt.Errorf("write metadata %s: %w", path, err)
	}
	return nil
}

// Remove deletes the record of dataset. A missing record is not an error.
func (r *Registry) Remove(dataset string) error {
	return ifs.RemoveIfExists(r.fs, r.Path(dataset))
}

// List returns all readable records in the registry directory.
func (r *Registry) List() ([]*Record, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var out []*Record
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, segmentPrefix) || !strings.HasSuffix(name, metadataSuffix) {
			continue
		}
		rec, err := r.read(filepath.Join(r.dir, name))
		if err != nil {
			if errors.Is(err, ErrNotRunning) {
				continue // removed concurrently
			}
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
