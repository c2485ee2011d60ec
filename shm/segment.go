package shm

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	ifs "github.com/hupe1980/c2vprep/internal/fs"
	"github.com/hupe1980/c2vprep/internal/mmap"
)

func (s *settings) segmentPath(name string) string {
	return filepath.Join(s.segmentDir, name)
}

// writeSegment creates the named segment exclusively and fills it with payload.
func (s *settings) writeSegment(name string, payload []byte) error {
	path := s.segmentPath(name)
	if err := mmap.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("create segment %s: %w", path, err)
	}
	return nil
}

// readSegment copies exactly size bytes out of the named segment.
// A missing segment is reported with fs.ErrNotExist in the chain.
func (s *settings) readSegment(name string, size int) ([]byte, error) {
	path := s.segmentPath(name)
	if size <= 0 {
		return nil, fmt.Errorf("%w: %s: invalid size %d", ErrAttachFailure, path, size)
	}
	m, err := mmap.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrAttachFailure, path, err)
	}
	defer m.Close()

	out, err := m.Copy(size)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrAttachFailure, path, err)
	}
	return out, nil
}

// unlinkSegment removes the named segment. A missing segment is not an error.
func (s *settings) unlinkSegment(name string) error {
	return ifs.RemoveIfExists(nil, s.segmentPath(name))
}

func (s *settings) segmentExists(name string) bool {
	_, err := ifs.Default.Stat(s.segmentPath(name))
	return err == nil
}
