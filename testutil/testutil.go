package testutil

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/c2vprep/vocab"
)

// Dataset lists the vocabulary of each histogram in descending frequency.
type Dataset struct {
	Words   []string
	Paths   []string
	Targets []string
}

// HistogramContent renders tokens as histogram lines with strictly
// descending counts, so ranks follow slice order.
func HistogramContent(tokens []string) string {
	var b strings.Builder
	for i, tok := range tokens {
		fmt.Fprintf(&b, "%s %d\n", tok, (len(tokens)-i)*10)
	}
	return b.String()
}

// WriteDataset writes the three histograms of dataset below dataDir.
func WriteDataset(tb testing.TB, dataDir, dataset string, d Dataset) vocab.HistogramPaths {
	tb.Helper()
	paths := vocab.DatasetHistograms(dataDir, dataset)
	require.NoError(tb, os.MkdirAll(filepath.Dir(paths.Words), 0o755))
	require.NoError(tb, os.WriteFile(paths.Words, []byte(HistogramContent(d.Words)), 0o644))
	require.NoError(tb, os.WriteFile(paths.Paths, []byte(HistogramContent(d.Paths)), 0o644))
	require.NoError(tb, os.WriteFile(paths.Targets, []byte(HistogramContent(d.Targets)), 0o644))
	return paths
}

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the seed the RNG was created with.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a random int in [0, n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a random float64 in [0, 1).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Pick returns a random element of tokens.
func (r *RNG) Pick(tokens []string) string {
	return tokens[r.Intn(len(tokens))]
}

// RawExample builds one raw input line with n contexts drawn from words and
// paths. Each token is replaced by an out-of-vocabulary token with
// probability unknown.
func (r *RNG) RawExample(target string, words, paths []string, n int, unknown float64) string {
	token := func(from []string, i int) string {
		if r.Float64() < unknown {
			return fmt.Sprintf("oov%d", i)
		}
		return r.Pick(from)
	}

	var b strings.Builder
	b.WriteString(target)
	for i := range n {
		b.WriteByte(' ')
		b.WriteString(token(words, i))
		b.WriteByte(',')
		b.WriteString(token(paths, i))
		b.WriteByte(',')
		b.WriteString(token(words, i))
	}
	return b.String()
}
