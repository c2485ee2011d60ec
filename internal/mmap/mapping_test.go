//go:build unix

package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileThenOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg")
	require.NoError(t, WriteFile(path, []byte("Hello, Mmap!"), 0o644))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(12), fi.Size())

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 12, m.Len())
	assert.Equal(t, "Hello, Mmap!", string(m.Bytes()))

	head, err := m.Copy(5)
	require.NoError(t, err)
	assert.Equal(t, "Hello", string(head))

	_, err = m.Copy(13)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestWriteFile_Exclusive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seg")
	require.NoError(t, WriteFile(path, []byte("first"), 0o644))

	err := WriteFile(path, []byte("second"), 0o644)
	assert.ErrorIs(t, err, os.ErrExist)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	empty := filepath.Join(dir, "empty")
	assert.ErrorIs(t, WriteFile(empty, nil, 0o644), ErrInvalidSize)
	assert.NoFileExists(t, empty)
}

func TestMapping_SeesLaterWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared")
	require.NoError(t, WriteFile(path, []byte("abcdefgh"), 0o644))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	// MAP_SHARED: writes through the file are visible in the mapping.
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("z"), 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Equal(t, byte('z'), r.Bytes()[0])
}

func TestMapping_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, 0, m.Len())
	assert.Nil(t, m.Bytes())
}

func TestMapping_AfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	m, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	assert.Nil(t, m.Bytes())
	_, err = m.Copy(1)
	assert.ErrorIs(t, err, ErrClosed)
}
