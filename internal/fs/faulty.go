package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrInjected is returned by injected faults that carry no error of their own.
var ErrInjected = errors.New("injected fault")

// Op is a set of file operations a Fault applies to.
type Op uint8

const (
	OpWrite Op = 1 << iota
	OpSync
	OpClose
	OpRename
	OpMkdir
)

// Fault makes the selected operations fail.
type Fault struct {
	Ops Op
	// After lets this many bytes through before OpWrite fails.
	After int64
	Err   error
}

func (f Fault) hits(op Op) error {
	if f.Ops&op == 0 {
		return nil
	}
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

type rule struct {
	substr string
	fault  Fault
}

// FaultyFS wraps a FileSystem and fails operations on matching paths.
// It drives the failure paths of atomic publication in tests.
type FaultyFS struct {
	fs FileSystem

	mu    sync.Mutex
	rules []rule
}

// NewFaultyFS wraps fsys (Default if nil).
func NewFaultyFS(fsys FileSystem) *FaultyFS {
	if fsys == nil {
		fsys = Default
	}
	return &FaultyFS{fs: fsys}
}

// AddRule injects fault into every path containing substr.
// When several rules match, the one added last wins.
func (f *FaultyFS) AddRule(substr string, fault Fault) {
	f.mu.Lock()
	f.rules = append(f.rules, rule{substr: substr, fault: fault})
	f.mu.Unlock()
}

func (f *FaultyFS) lookup(name string) Fault {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.rules) - 1; i >= 0; i-- {
		if strings.Contains(name, f.rules[i].substr) {
			return f.rules[i].fault
		}
	}
	return Fault{}
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	file, err := f.fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &faultyFile{File: file, fault: f.lookup(name)}, nil
}

func (f *FaultyFS) CreateTemp(dir, pattern string) (File, error) {
	file, err := f.fs.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	return &faultyFile{File: file, fault: f.lookup(file.Name())}, nil
}

func (f *FaultyFS) Rename(oldpath, newpath string) error {
	if err := f.lookup(oldpath).hits(OpRename); err != nil {
		return err
	}
	return f.fs.Rename(oldpath, newpath)
}

func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error {
	if err := f.lookup(path).hits(OpMkdir); err != nil {
		return err
	}
	return f.fs.MkdirAll(path, perm)
}

func (f *FaultyFS) Remove(name string) error              { return f.fs.Remove(name) }
func (f *FaultyFS) Stat(name string) (os.FileInfo, error) { return f.fs.Stat(name) }

type faultyFile struct {
	File
	fault   Fault
	written int64
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	if err := ff.fault.hits(OpWrite); err != nil && ff.written+int64(len(p)) > ff.fault.After {
		return 0, err
	}
	n, err := ff.File.Write(p)
	ff.written += int64(n)
	return n, err
}

func (ff *faultyFile) Sync() error {
	if err := ff.fault.hits(OpSync); err != nil {
		return err
	}
	return ff.File.Sync()
}

func (ff *faultyFile) Close() error {
	cerr := ff.File.Close()
	if err := ff.fault.hits(OpClose); err != nil {
		return err
	}
	return cerr
}
