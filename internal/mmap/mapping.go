package mmap

import (
	"fmt"
	"os"
	"sync/atomic"
)

// Mapping is a read-only MAP_SHARED view of a file.
type Mapping struct {
	data   []byte
	closed atomic.Bool
	unmap  func([]byte) error
}

// Open maps the whole file at path read-only. The kernel is told the
// mapping will be read front to back.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := fi.Size()
	if size == 0 {
		return &Mapping{}, nil
	}
	if int64(int(size)) != size {
		return nil, ErrInvalidSize
	}

	data, unmap, err := osMap(f, int(size), false)
	if err != nil {
		return nil, err
	}
	osAdviseSequential(data)
	return &Mapping{data: data, unmap: unmap}, nil
}

// Len returns the mapped length in bytes.
func (m *Mapping) Len() int { return len(m.data) }

// Bytes returns the mapped bytes. The slice is invalid after Close.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Copy returns a private copy of the first n bytes, which outlives the mapping.
func (m *Mapping) Copy(n int) ([]byte, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if n < 0 || n > len(m.data) {
		return nil, fmt.Errorf("%w: want %d bytes, mapping holds %d", ErrInvalidSize, n, len(m.data))
	}
	out := make([]byte, n)
	copy(out, m.data[:n])
	return out, nil
}

// Close unmaps the memory. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if m.unmap != nil && m.data != nil {
		return m.unmap(m.data)
	}
	return nil
}

// WriteFile creates path exclusively with exactly len(data) bytes, fills it
// through a writable MAP_SHARED mapping and flushes it with msync before
// unmapping. On failure the file is removed.
func WriteFile(path string, data []byte, perm os.FileMode) (err error) {
	if len(data) == 0 {
		return ErrInvalidSize
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if err := f.Truncate(int64(len(data))); err != nil {
		return err
	}
	mem, unmap, err := osMap(f, len(data), true)
	if err != nil {
		return err
	}
	copy(mem, data)
	if err := osSync(mem); err != nil {
		_ = unmap(mem)
		return &os.PathError{Op: "msync", Path: path, Err: err}
	}
	return unmap(mem)
}
