package fs

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
)

// WriteAtomic publishes filename with the contents produced by write.
//
// Data goes to a temp file in the same directory, which is fsynced and then
// renamed over filename, so readers see either the previous file or the new
// one in full. On any failure the temp file is removed and filename is left
// untouched.
func WriteAtomic(fsys FileSystem, filename string, perm os.FileMode, write func(io.Writer) error) (err error) {
	if fsys == nil {
		fsys = Default
	}
	dir := filepath.Dir(filename)

	tmp, err := fsys.CreateTemp(dir, filepath.Base(filename)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	closed := false
	defer func() {
		if !closed {
			_ = tmp.Close()
		}
		if err != nil {
			_ = fsys.Remove(tmpName)
		}
	}()

	if c, ok := tmp.(interface{ Chmod(os.FileMode) error }); ok {
		_ = c.Chmod(perm)
	}

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err = write(buf); err != nil {
		return err
	}
	if err = buf.Flush(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	closed = true
	if err = tmp.Close(); err != nil {
		return err
	}

	if err = fsys.Rename(tmpName, filename); err != nil {
		return err
	}

	// Best-effort: fsync the directory so the rename survives a crash.
	if d, derr := fsys.OpenFile(dir, os.O_RDONLY, 0); derr == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// RemoveIfExists removes name and treats a missing file as success.
func RemoveIfExists(fsys FileSystem, name string) error {
	if fsys == nil {
		fsys = Default
	}
	if err := fsys.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
