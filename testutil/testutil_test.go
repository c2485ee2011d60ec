package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/c2vprep/vocab"
)

func TestWriteDataset(t *testing.T) {
	dir := t.TempDir()
	paths := WriteDataset(t, dir, "ds", Dataset{
		Words:   []string{"a", "b", "c"},
		Paths:   []string{"P"},
		Targets: []string{"get", "set"},
	})

	tbl, err := vocab.LoadHistogram(paths.Words, 1, 0)
	require.NoError(t, err)
	rank, ok := tbl.Rank("c")
	require.True(t, ok)
	assert.Equal(t, 3, rank)
	assert.Equal(t, 3, tbl.Len())
}

func TestRawExample(t *testing.T) {
	rng := NewRNG(4711)
	words := []string{"a", "b"}
	paths := []string{"P"}

	line := rng.RawExample("get", words, paths, 5, 0)
	fields := strings.Fields(line)
	require.Len(t, fields, 6)
	assert.Equal(t, "get", fields[0])
	for _, f := range fields[1:] {
		parts := strings.Split(f, ",")
		require.Len(t, parts, 3)
		assert.Contains(t, words, parts[0])
		assert.Equal(t, "P", parts[1])
		assert.Contains(t, words, parts[2])
	}

	line = rng.RawExample("get", words, paths, 3, 1)
	assert.Equal(t, "get oov0,oov0,oov0 oov1,oov1,oov1 oov2,oov2,oov2", line)
}

func TestRNG_Reset(t *testing.T) {
	rng := NewRNG(7)
	first := rng.RawExample("t", []string{"a", "b", "c"}, []string{"P", "Q"}, 10, 0.3)
	rng.Reset()
	assert.Equal(t, first, rng.RawExample("t", []string{"a", "b", "c"}, []string{"P", "Q"}, 10, 0.3))
	assert.Equal(t, int64(7), rng.Seed())
}
