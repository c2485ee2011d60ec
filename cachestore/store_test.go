package cachestore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/c2vprep/artifact"
	"github.com/hupe1980/c2vprep/blobstore"
	ifs "github.com/hupe1980/c2vprep/internal/fs"
	"github.com/hupe1980/c2vprep/vocab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHistograms(t *testing.T, dataDir, dataset string, n int) vocab.HistogramPaths {
	t.Helper()
	paths := vocab.DatasetHistograms(dataDir, dataset)
	require.NoError(t, os.MkdirAll(filepath.Dir(paths.Words), 0755))
	for _, p := range []string{paths.Words, paths.Paths, paths.Targets} {
		f, err := os.Create(p)
		require.NoError(t, err)
		for i := range n {
			_, err := fmt.Fprintf(f, "%s_tok%d %d\n", filepath.Base(p)[len(dataset):], i, (i*7919)%1000)
			require.NoError(t, err)
		}
		require.NoError(t, f.Close())
	}
	return paths
}

func loadRaw(t *testing.T, paths vocab.HistogramPaths, sizes vocab.Sizes) *vocab.Set {
	t.Helper()
	set, err := vocab.LoadSet(context.Background(), paths, sizes, 1)
	require.NoError(t, err)
	return set
}

func TestBuildLoad_RoundTripMatchesRaw(t *testing.T) {
	dataDir := t.TempDir()
	paths := writeHistograms(t, dataDir, "d", 500)
	sizes := vocab.Sizes{Word: 100, Path: 100, Target: 100}
	raw := loadRaw(t, paths, sizes)

	for _, c := range []artifact.Compression{artifact.CompressionNone, artifact.CompressionLZ4, artifact.CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			store := New(filepath.Join(dataDir, "d"), WithCompression(c))
			_, err := store.Build(context.Background(), raw, sizes, 1, "d")
			require.NoError(t, err)

			a, err := store.Load("d", sizes, 1)
			require.NoError(t, err)
			assert.True(t, raw.Equal(a.Vocab))
			assert.Equal(t, sizes, a.Sizes)
			assert.Equal(t, "d", a.Dataset)
		})
	}
}

func TestLoad_StaleCache(t *testing.T) {
	dataDir := t.TempDir()
	paths := writeHistograms(t, dataDir, "d", 300)
	sizes := vocab.Sizes{Word: 100, Path: 100, Target: 100}

	store := New(filepath.Join(dataDir, "d"))
	_, err := store.Build(context.Background(), loadRaw(t, paths, sizes), sizes, 1, "d")
	require.NoError(t, err)

	_, err = store.Load("d", vocab.Sizes{Word: 200, Path: 100, Target: 100}, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStaleCache)

	var se *StaleCacheError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, sizes, se.Got)
	assert.Equal(t, 200, se.Want.Word)

	_, err = store.Load("other", sizes, 1)
	assert.ErrorIs(t, err, ErrStaleCache)

	// Same sizes, different first rank.
	_, err = store.Load("d", sizes, 2)
	require.ErrorIs(t, err, ErrStaleCache)
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 2, se.WantStartFrom)
	assert.Equal(t, 1, se.GotStartFrom)

	// 0 and 1 both start at the most frequent token.
	_, err = store.Load("d", sizes, 0)
	require.NoError(t, err)

	info, err := store.Stat()
	require.NoError(t, err)
	assert.Equal(t, 1, info.StartFrom)
}

func TestLoad_NotFound(t *testing.T) {
	store := New(t.TempDir())
	_, err := store.Load("d", vocab.Sizes{}, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Stat()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_Corrupt(t *testing.T) {
	headerSize := binary.Size(artifact.Header{})

	cases := map[string]struct {
		content []byte
		want    error
	}{
		"shorter than header": {[]byte("not an artifact at all"), artifact.ErrCorrupt},
		"bad magic":           {bytes.Repeat([]byte{'x'}, headerSize+16), artifact.ErrInvalidMagic},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			store := New(t.TempDir())
			require.NoError(t, os.WriteFile(store.Path(), tc.content, 0644))

			_, err := store.Load("d", vocab.Sizes{}, 1)
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrNotFound)
			assert.NotErrorIs(t, err, ErrStaleCache)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestBuild_FailureKeepsPreviousArtifact(t *testing.T) {
	dataDir := t.TempDir()
	paths := writeHistograms(t, dataDir, "d", 200)
	sizes := vocab.Sizes{Word: 50, Path: 50, Target: 50}
	set := loadRaw(t, paths, sizes)
	dir := filepath.Join(dataDir, "d")

	_, err := New(dir).Build(context.Background(), set, sizes, 1, "d")
	require.NoError(t, err)
	before, err := os.ReadFile(filepath.Join(dir, DefaultFileName))
	require.NoError(t, err)

	ffs := ifs.NewFaultyFS(nil)
	ffs.AddRule(".tmp-", ifs.Fault{Ops: ifs.OpWrite, After: 64})
	_, err = New(dir, WithFileSystem(ffs)).Build(context.Background(), set, vocab.Sizes{Word: 10, Path: 10, Target: 10}, 1, "d")
	require.Error(t, err)
	assert.ErrorIs(t, err, ifs.ErrInjected)

	after, err := os.ReadFile(filepath.Join(dir, DefaultFileName))
	require.NoError(t, err)
	assert.Equal(t, before, after)

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	// The lock was released despite the failure.
	_, err = New(dir).Build(context.Background(), set, sizes, 1, "d")
	require.NoError(t, err)
}

func TestBuild_BlocksOnHeldLock(t *testing.T) {
	dataDir := t.TempDir()
	paths := writeHistograms(t, dataDir, "d", 50)
	sizes := vocab.Sizes{Word: 10, Path: 10, Target: 10}
	set := loadRaw(t, paths, sizes)
	store := New(filepath.Join(dataDir, "d"))

	unlock, err := ifs.Lock(store.LockPath())
	require.NoError(t, err)

	var built atomic.Bool
	done := make(chan error, 1)
	go func() {
		_, err := store.Build(context.Background(), set, sizes, 1, "d")
		built.Store(true)
		done <- err
	}()

	time.Sleep(100 * time.Millisecond)
	assert.False(t, built.Load())
	_, err = os.Stat(store.Path())
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, unlock())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("build never acquired the lock")
	}
}

func TestBuild_ConcurrentWritersNeverExposePartialFile(t *testing.T) {
	dataDir := t.TempDir()
	paths := writeHistograms(t, dataDir, "d", 2000)
	dir := filepath.Join(dataDir, "d")

	sizeVariants := []vocab.Sizes{
		{Word: 2000, Path: 2000, Target: 2000},
		{Word: 1000, Path: 500, Target: 100},
		{Word: 10, Path: 10, Target: 10},
	}
	sets := make([]*vocab.Set, len(sizeVariants))
	for i, s := range sizeVariants {
		sets[i] = loadRaw(t, paths, s)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var readers sync.WaitGroup
	var observed, complete atomic.Int64
	for range 4 {
		readers.Add(1)
		go func() {
			defer readers.Done()
			store := New(dir)
			for ctx.Err() == nil {
				data, err := os.ReadFile(store.Path())
				if os.IsNotExist(err) {
					continue
				}
				if !assert.NoError(t, err) {
					return
				}
				observed.Add(1)
				a, err := artifact.Unmarshal(data)
				if !assert.NoError(t, err, "reader observed a partial artifact") {
					return
				}
				for i, s := range sizeVariants {
					if a.Sizes == s {
						assert.True(t, sets[i].Equal(a.Vocab))
						complete.Add(1)
					}
				}
			}
		}()
	}

	var writers sync.WaitGroup
	for w := range 6 {
		writers.Add(1)
		go func() {
			defer writers.Done()
			for i := range 5 {
				v := (w + i) % len(sizeVariants)
				_, err := New(dir).Build(ctx, sets[v], sizeVariants[v], 1, "d")
				assert.NoError(t, err)
			}
		}()
	}
	writers.Wait()
	cancel()
	readers.Wait()

	assert.Equal(t, observed.Load(), complete.Load())
	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestStat(t *testing.T) {
	dataDir := t.TempDir()
	paths := writeHistograms(t, dataDir, "d", 20)
	sizes := vocab.Sizes{Word: 5, Path: 5, Target: 5}
	store := New(filepath.Join(dataDir, "d"), WithFileName("custom.bin"))

	_, err := store.Build(context.Background(), loadRaw(t, paths, sizes), sizes, 1, "d")
	require.NoError(t, err)

	info, err := store.Stat()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dataDir, "d", "custom.bin"), info.Path)
	assert.Equal(t, "d", info.Dataset)
	assert.Equal(t, sizes, info.Sizes)
	assert.Positive(t, info.Size)
}

func TestBuild_CanceledContext(t *testing.T) {
	store := New(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	set := &vocab.Set{Words: vocab.NewTable(nil), Paths: vocab.NewTable(nil), Targets: vocab.NewTable(nil)}
	_, err := store.Build(ctx, set, vocab.Sizes{}, 1, "d")
	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(store.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestInstall(t *testing.T) {
	dataDir := t.TempDir()
	paths := writeHistograms(t, dataDir, "d", 50)
	sizes := vocab.Sizes{Word: 10, Path: 10, Target: 10}
	raw := loadRaw(t, paths, sizes)

	data, err := artifact.Marshal(&artifact.Artifact{Dataset: "d", Sizes: sizes, Vocab: raw, CreatedAt: time.Now()}, artifact.CompressionLZ4)
	require.NoError(t, err)

	store := New(filepath.Join(dataDir, "d"))
	a, err := store.Install(context.Background(), data)
	require.NoError(t, err)
	assert.True(t, raw.Equal(a.Vocab))

	onDisk, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, data, onDisk)

	loaded, err := store.Load("d", sizes, 1)
	require.NoError(t, err)
	assert.True(t, raw.Equal(loaded.Vocab))

	// Undecodable payloads never reach the cache file.
	_, err = store.Install(context.Background(), []byte("garbage"))
	require.Error(t, err)
	onDisk, err = os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, data, onDisk)
}

func TestRemote_PushFetch(t *testing.T) {
	dataDir := t.TempDir()
	paths := writeHistograms(t, dataDir, "d", 50)
	sizes := vocab.Sizes{Word: 10, Path: 10, Target: 10}
	raw := loadRaw(t, paths, sizes)

	blobs := blobstore.NewMemoryStore()
	remote := NewRemote(blobs, nil)
	ctx := context.Background()

	_, _, err := remote.Fetch(ctx, "d", sizes, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	a := &artifact.Artifact{Dataset: "d", Sizes: sizes, Vocab: raw, CreatedAt: time.Now()}
	require.NoError(t, remote.Push(ctx, a, artifact.CompressionZSTD))

	keys, err := remote.List(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, []string{"d/vocab_w10_p10_t10_s1.bin"}, keys)

	data, got, err := remote.Fetch(ctx, "d", sizes, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.True(t, raw.Equal(got.Vocab))

	// Other sizes and first ranks live under other keys.
	_, _, err = remote.Fetch(ctx, "d", vocab.Sizes{Word: 1, Path: 1, Target: 1}, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = remote.Fetch(ctx, "d", sizes, 2)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "d/vocab_w10_p10_t10_s2.bin", RemoteKey("d", sizes, 2))

	// An artifact built from another rank under this key is stale.
	require.NoError(t, blobs.Put(ctx, RemoteKey("d", sizes, 2), data))
	_, _, err = remote.Fetch(ctx, "d", sizes, 2)
	assert.ErrorIs(t, err, ErrStaleCache)

	// An object under the wrong key is reported as stale.
	wrong := vocab.Sizes{Word: 5, Path: 5, Target: 5}
	require.NoError(t, blobs.Put(ctx, RemoteKey("d", wrong, 1), data))
	_, _, err = remote.Fetch(ctx, "d", wrong, 1)
	assert.ErrorIs(t, err, ErrStaleCache)

	require.NoError(t, blobs.Put(ctx, RemoteKey("d", wrong, 1), []byte("junk")))
	_, _, err = remote.Fetch(ctx, "d", wrong, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, artifact.ErrCorrupt)
}

func TestRemote_Delete(t *testing.T) {
	dataDir := t.TempDir()
	paths := writeHistograms(t, dataDir, "d", 20)
	sizes := vocab.Sizes{Word: 5, Path: 5, Target: 5}
	raw := loadRaw(t, paths, sizes)

	remote := NewRemote(blobstore.NewMemoryStore(), nil)
	ctx := context.Background()
	for _, start := range []int{1, 2} {
		a := &artifact.Artifact{Dataset: "d", Sizes: sizes, StartFrom: start, Vocab: raw, CreatedAt: time.Now()}
		require.NoError(t, remote.Push(ctx, a, artifact.CompressionNone))
	}

	key, err := remote.Delete(ctx, "d", sizes, 2)
	require.NoError(t, err)
	assert.Equal(t, "d/vocab_w5_p5_t5_s2.bin", key)

	keys, err := remote.List(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, []string{"d/vocab_w5_p5_t5_s1.bin"}, keys)

	_, _, err = remote.Fetch(ctx, "d", sizes, 2)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = remote.Delete(ctx, "d", sizes, 2)
	assert.NoError(t, err)
}
