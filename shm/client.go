package shm

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/hupe1980/c2vprep/artifact"
)

// Environment variables through which an orchestrator hands a segment to workers.
const (
	EnvSegmentName = "HISTOGRAM_SHM_NAME"
	EnvSegmentSize = "HISTOGRAM_SHM_SIZE"
)

// SegmentFromEnv returns the segment named by the environment.
// ok is false when either variable is unset or the size does not parse.
func SegmentFromEnv() (name string, size int, ok bool) {
	name = os.Getenv(EnvSegmentName)
	raw := os.Getenv(EnvSegmentSize)
	if name == "" || raw == "" {
		return "", 0, false
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size <= 0 {
		return "", 0, false
	}
	return name, size, true
}

// Client attaches to segments published by a Server. It never unlinks anything.
type Client struct {
	registry *Registry
	settings
}

// NewClient creates a client.
func NewClient(opts ...Option) *Client {
	c := &Client{settings: newSettings(opts)}
	c.registry = NewRegistry(c.metadataDir)
	return c
}

// Attach returns a private copy of the artifact distributed for dataset.
//
// It returns ErrNotRunning when no record exists, ErrAttachFailure when the
// recorded segment is missing or short and ErrCorruptPayload when its bytes
// do not decode to an artifact of dataset.
func (c *Client) Attach(dataset string) (*artifact.Artifact, error) {
	if err := ValidateDataset(dataset); err != nil {
		return nil, err
	}
	rec, err := c.registry.Lookup(dataset)
	if err != nil {
		return nil, err
	}

	payload, err := c.readSegment(rec.Segment, rec.Size)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: segment %s is registered but missing", ErrAttachFailure, rec.Segment)
		}
		return nil, err
	}

	a, err := decodePayload(rec.Segment, payload)
	if err != nil {
		return nil, err
	}
	if a.Dataset != rec.Dataset {
		return nil, fmt.Errorf("%w: segment %s holds dataset %q, want %q", ErrCorruptPayload, rec.Segment, a.Dataset, rec.Dataset)
	}
	c.logger.Debug("attached to segment", "segment", rec.Segment, "size", rec.Size, "dataset", dataset)
	return a, nil
}

// AttachSegment reads size bytes from the named segment without consulting the
// registry. A missing segment yields ErrNotRunning.
func (c *Client) AttachSegment(name string, size int) (*artifact.Artifact, error) {
	if err := ValidateDataset(name); err != nil {
		return nil, err
	}
	payload, err := c.readSegment(name, size)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: segment %s: %w", ErrNotRunning, name, err)
		}
		return nil, err
	}
	a, err := decodePayload(name, payload)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("attached to segment", "segment", name, "size", size, "dataset", a.Dataset)
	return a, nil
}

func decodePayload(name string, payload []byte) (*artifact.Artifact, error) {
	a, err := artifact.Unmarshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: segment %s: %w", ErrCorruptPayload, name, err)
	}
	return a, nil
}
