package vocab

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHistogram(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadHistogram_TopN(t *testing.T) {
	path := writeHistogram(t, t.TempDir(), "h.c2v", "a 5\nb 50\nc 7\nd 100\ne 1\n")

	tbl, err := LoadHistogram(path, 1, 3)
	require.NoError(t, err)
	require.Equal(t, 3, tbl.Len())

	assert.Equal(t, []Entry{
		{Token: "d", Count: 100, Rank: 1},
		{Token: "b", Count: 50, Rank: 2},
		{Token: "c", Count: 7, Rank: 3},
	}, tbl.Entries())
	assert.False(t, tbl.Contains("a"))
	assert.False(t, tbl.Contains("e"))
}

func TestLoadHistogram_TiesKeepFileOrder(t *testing.T) {
	tbl, err := ParseHistogram(strings.NewReader("x 3\ny 3\nz 9\nw 3\n"), "mem", 1, 0)
	require.NoError(t, err)

	var tokens []string
	tbl.Each(func(e Entry) bool {
		tokens = append(tokens, e.Token)
		return true
	})
	assert.Equal(t, []string{"z", "x", "y", "w"}, tokens)
}

func TestLoadHistogram_StartFrom(t *testing.T) {
	tbl, err := ParseHistogram(strings.NewReader("a 4\nb 3\nc 2\nd 1\n"), "mem", 2, 2)
	require.NoError(t, err)

	entries := tbl.Entries()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.GreaterOrEqual(t, e.Rank, 2)
	}
	assert.Equal(t, "b", entries[0].Token)
	assert.Equal(t, "c", entries[1].Token)

	// Past the end yields an empty table.
	tbl, err = ParseHistogram(strings.NewReader("a 4\n"), "mem", 5, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())
}

func TestLoadHistogram_BoundsProperty(t *testing.T) {
	content := "t1 9\nt2 2\nt3 9\nt4 40\nt5 0\nt6 3\nt7 3\nt8 11\n"
	for k := 0; k <= 9; k++ {
		for n := 0; n <= 9; n++ {
			tbl, err := ParseHistogram(strings.NewReader(content), "mem", k, n)
			require.NoError(t, err)

			if n > 0 {
				assert.LessOrEqual(t, tbl.Len(), n)
			}
			entries := tbl.Entries()
			for i, e := range entries {
				assert.GreaterOrEqual(t, e.Rank, k)
				if i > 0 {
					assert.GreaterOrEqual(t, entries[i-1].Count, e.Count)
				}
			}
		}
	}
}

func TestLoadHistogram_DuplicateTokenFirstWins(t *testing.T) {
	tbl, err := ParseHistogram(strings.NewReader("a 1\nb 2\na 10\n"), "mem", 1, 0)
	require.NoError(t, err)

	c, ok := tbl.Count("a")
	require.True(t, ok)
	assert.Equal(t, int64(1), c)
	assert.Equal(t, 2, tbl.Len())
}

func TestLoadHistogram_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadHistogram(filepath.Join(dir, "missing.c2v"), 1, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "missing.c2v")

	cases := []string{
		"token\n",
		"token 1 2\n",
		"token x\n",
		"token -3\n",
		" 5\n",
	}
	for _, c := range cases {
		path := writeHistogram(t, dir, "bad.c2v", "ok 1\n"+c)
		_, err := LoadHistogram(path, 1, 10)
		require.Error(t, err, c)
		assert.ErrorIs(t, err, ErrFormat)

		var fe *FormatError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, 2, fe.Line)
		assert.Equal(t, path, fe.Path)
	}
}

func TestLoadHistogram_SkipsBlankLines(t *testing.T) {
	tbl, err := ParseHistogram(strings.NewReader("a 1\n\n\nb 2\n"), "mem", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
}

func TestLoadSet(t *testing.T) {
	dataDir := t.TempDir()
	paths := DatasetHistograms(dataDir, "d")
	require.NoError(t, os.MkdirAll(filepath.Dir(paths.Words), 0755))
	require.NoError(t, os.WriteFile(paths.Words, []byte("w1 3\nw2 2\nw3 1\n"), 0644))
	require.NoError(t, os.WriteFile(paths.Paths, []byte("p1 3\np2 2\n"), 0644))
	require.NoError(t, os.WriteFile(paths.Targets, []byte("t1 1\n"), 0644))

	set, err := LoadSet(context.Background(), paths, Sizes{Word: 2, Path: 5, Target: 5}, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Words.Len())
	assert.Equal(t, 2, set.Paths.Len())
	assert.Equal(t, 1, set.Targets.Len())

	again, err := LoadSet(context.Background(), paths, Sizes{Word: 2, Path: 5, Target: 5}, 1)
	require.NoError(t, err)
	assert.True(t, set.Equal(again))

	require.NoError(t, os.Remove(paths.Targets))
	_, err = LoadSet(context.Background(), paths, Sizes{Word: 2, Path: 5, Target: 5}, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = LoadSet(context.Background(), paths, Sizes{Word: -1}, 1)
	assert.ErrorIs(t, err, ErrInvalidSizes)
}

func TestDatasetHistograms(t *testing.T) {
	p := DatasetHistograms("/data", "js")
	assert.Equal(t, filepath.Join("/data", "js", "js.histo.ori.c2v"), p.Words)
	assert.Equal(t, filepath.Join("/data", "js", "js.histo.path.c2v"), p.Paths)
	assert.Equal(t, filepath.Join("/data", "js", "js.histo.tgt.c2v"), p.Targets)
}
