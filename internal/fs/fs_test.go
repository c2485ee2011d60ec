package fs

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeString(s string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

func tempFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp-*"))
	require.NoError(t, err)
	return matches
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	require.NoError(t, WriteAtomic(LocalFS{}, path, 0644, writeString("first")))
	data, err := ReadFile(Default, path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	require.NoError(t, WriteAtomic(nil, path, 0644, writeString("second")))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
	assert.Empty(t, tempFiles(t, dir))
}

func TestWriteAtomic_FailureKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")
	require.NoError(t, WriteAtomic(nil, path, 0644, writeString("good")))

	cases := map[string]Fault{
		"write":         {Ops: OpWrite},
		"partial write": {Ops: OpWrite, After: 4},
		"sync":          {Ops: OpSync},
		"close":         {Ops: OpClose},
		"rename":        {Ops: OpRename},
	}
	for name, fault := range cases {
		t.Run(name, func(t *testing.T) {
			ffs := NewFaultyFS(nil)
			ffs.AddRule(".tmp-", fault)

			err := WriteAtomic(ffs, path, 0644, writeString("replacement"))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInjected)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, "good", string(data))
			assert.Empty(t, tempFiles(t, dir))
		})
	}
}

func TestWriteAtomic_CallbackError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")
	boom := errors.New("boom")

	err := WriteAtomic(nil, path, 0644, func(io.Writer) error { return boom })
	assert.ErrorIs(t, err, boom)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
	assert.Empty(t, tempFiles(t, dir))
}

func TestRemoveIfExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x")
	require.NoError(t, RemoveIfExists(nil, path))

	require.NoError(t, os.WriteFile(path, nil, 0644))
	require.NoError(t, RemoveIfExists(LocalFS{}, path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFaultyFS_RuleSelection(t *testing.T) {
	dir := t.TempDir()
	custom := errors.New("disk full")

	ffs := NewFaultyFS(nil)
	ffs.AddRule("blocked", Fault{Ops: OpMkdir})
	ffs.AddRule(".tmp-", Fault{Ops: OpSync})
	ffs.AddRule(".tmp-", Fault{Ops: OpWrite, Err: custom})

	assert.ErrorIs(t, ffs.MkdirAll(filepath.Join(dir, "blocked"), 0o755), ErrInjected)
	require.NoError(t, ffs.MkdirAll(filepath.Join(dir, "open"), 0o755))

	// The later rule replaces the sync fault.
	err := WriteAtomic(ffs, filepath.Join(dir, "open", "x"), 0o644, writeString("x"))
	assert.ErrorIs(t, err, custom)

	// Unmatched paths pass through.
	require.NoError(t, WriteAtomic(NewFaultyFS(nil), filepath.Join(dir, "y"), 0o644, writeString("y")))
}
