// Package mmap moves shared-memory segments in and out of the address space.
//
// A segment is a plain file on a tmpfs such as /dev/shm. [WriteFile] creates
// it with its final size and fills it through a MAP_SHARED mapping; readers
// [Open] it read-only and [Mapping.Copy] the payload out before closing:
//
//	m, err := mmap.Open("/dev/shm/code2vec_histograms_java14m")
//	if err != nil { ... }
//	defer m.Close()
//	payload, err := m.Copy(size)
//
// Mapping is safe for concurrent readers. Close is idempotent; Bytes must not
// be used after it. Only Unix platforms are supported; elsewhere mapping
// returns errors.ErrUnsupported.
package mmap
