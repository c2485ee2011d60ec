package mmap

import "errors"

var (
	// ErrClosed is returned when a closed mapping is used.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned for empty writes, files too large to map
	// and reads past the end of a mapping.
	ErrInvalidSize = errors.New("mmap: invalid size")
)
