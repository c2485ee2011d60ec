package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/c2vprep/config"
	"github.com/hupe1980/c2vprep/shm"
	"github.com/hupe1980/c2vprep/testutil"
)

type env struct {
	dataDir string
	config  string
	metaDir string
}

func newEnv(t *testing.T, sharedMemory bool, extra ...string) env {
	t.Helper()
	for _, k := range []string{config.EnvDataset, config.EnvDataDir, config.EnvLogLevel, config.EnvSeed, shm.EnvSegmentName, shm.EnvSegmentSize} {
		t.Setenv(k, "")
	}

	root := t.TempDir()
	e := env{
		dataDir: filepath.Join(root, "data"),
		config:  filepath.Join(root, "c2vprep.yaml"),
		metaDir: filepath.Join(root, "meta"),
	}
	testutil.WriteDataset(t, e.dataDir, "ds", testutil.Dataset{
		Words:   []string{"a", "b", "c", "d", "e"},
		Paths:   []string{"P", "Q", "R", "S"},
		Targets: []string{"get", "set", "run"},
	})

	segDir := filepath.Join(root, "shm")
	require.NoError(t, os.MkdirAll(segDir, 0o755))

	cfg := fmt.Sprintf(`dataset: ds
data_dir: %s
vocab:
  word_size: 4
  path_size: 3
  target_size: 2
distributor:
  segment_dir: %s
  metadata_dir: %s
  disabled: %t
  stop_grace: 1s
log:
  level: error
`, e.dataDir, segDir, e.metaDir, !sharedMemory) + strings.Join(extra, "")
	require.NoError(t, os.WriteFile(e.config, []byte(cfg), 0o644))
	return e
}

func run(ctx context.Context, args ...string) (string, error) {
	var out, errOut bytes.Buffer
	cmd := rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(context.Background(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "c2vprep version "+Version)
}

func TestPreloadThenPreprocess(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()

	out, err := run(ctx, "preload", "-c", e.config)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(e.dataDir, "ds", "histogram_cache.bin"))
	assert.Contains(t, out, "words:   4")
	assert.FileExists(t, filepath.Join(e.dataDir, "ds", "histogram_cache.bin"))

	in := filepath.Join(e.dataDir, "in.txt")
	dst := filepath.Join(e.dataDir, "out", "ds.c2v")
	textfile := filepath.Join(e.dataDir, "metrics.prom")
	require.NoError(t, os.WriteFile(in, []byte("get a,P,b c,Q,d x,y,z\nset x,y,z\nrun e,S,e a,R,x\n"), 0o644))

	out, err = run(ctx, "preprocess", "-c", e.config, "-i", in, "-o", dst,
		"--max-contexts", "3", "--seed", "7", "--metrics-textfile", textfile, "--worker", "w1")
	require.NoError(t, err)
	assert.Contains(t, out, `"emitted": 2`)
	assert.Contains(t, out, `"empty": 1`)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "get a,P,b c,Q,d \nrun a,R,x  \n", string(data))

	metrics, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `c2vprep_resolve_total{source="cache",status="success",worker="w1"} 1`)
}

func TestPreprocess_FlagsOverrideConfig(t *testing.T) {
	e := newEnv(t, false)
	in := filepath.Join(e.dataDir, "in.txt")
	require.NoError(t, os.WriteFile(in, []byte("get a,P,b\n"), 0o644))

	// The config names "ds"; the flag selects a dataset without histograms.
	_, err := run(context.Background(), "preprocess", "-c", e.config, "-d", "other", "-i", in, "-o", in+".out")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "other.histo.")
}

func TestInvalidConfig(t *testing.T) {
	e := newEnv(t, false)

	_, err := run(context.Background(), "preload", "-c", e.config, "-d", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")

	_, err = run(context.Background(), "preload", "-c", e.config, "--log-format", "xml")
	require.Error(t, err)

	_, err = run(context.Background(), "preload", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestServerLifecycle(t *testing.T) {
	e := newEnv(t, true)

	out, err := run(context.Background(), "server", "status", "-c", e.config)
	require.NoError(t, err)
	assert.Regexp(t, `running\s+false`, out)
	assert.Regexp(t, `cache\s+none`, out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	var startOut string
	go func() {
		var err error
		startOut, err = run(ctx, "server", "start", "-c", e.config)
		done <- err
	}()

	registry := shm.NewRegistry(e.metaDir)
	require.Eventually(t, func() bool {
		_, err := registry.Lookup("ds")
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	out, err = run(context.Background(), "server", "status", "-c", e.config)
	require.NoError(t, err)
	assert.Regexp(t, `running\s+true`, out)
	assert.Regexp(t, `segment present\s+true`, out)
	assert.Contains(t, out, filepath.Join(e.dataDir, "ds", "histogram_cache.bin"))

	out, err = run(context.Background(), "server", "list", "-c", e.config)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "ds "))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Contains(t, startOut, "export "+shm.EnvSegmentName+"="+shm.SegmentName("ds"))

	_, err = registry.Lookup("ds")
	assert.ErrorIs(t, err, shm.ErrNotRunning)

	// Stop on a dataset without a distributor is a no-op.
	_, err = run(context.Background(), "server", "stop", "-c", e.config)
	require.NoError(t, err)
}

func TestRemote_SharesArtifactBetweenHosts(t *testing.T) {
	remoteDir := t.TempDir()
	remote := fmt.Sprintf("remote:\n  kind: local\n  dir: %s\n", remoteDir)
	ctx := context.Background()

	builder := newEnv(t, false, remote)
	_, err := run(ctx, "preload", "-c", builder.config)
	require.NoError(t, err)

	out, err := run(ctx, "remote", "list", "-c", builder.config)
	require.NoError(t, err)
	assert.Equal(t, "ds/vocab_w4_p3_t2_s1.bin\n", out)

	// A host whose histograms are gone resolves through the remote.
	worker := newEnv(t, false, remote)
	require.NoError(t, os.RemoveAll(filepath.Join(worker.dataDir, "ds")))
	in := filepath.Join(worker.dataDir, "in.txt")
	require.NoError(t, os.WriteFile(in, []byte("get a,P,b\n"), 0o644))

	_, err = run(ctx, "preprocess", "-c", worker.config, "-i", in, "-o", in+".out", "--max-contexts", "2")
	require.NoError(t, err)
	data, err := os.ReadFile(in + ".out")
	require.NoError(t, err)
	assert.Equal(t, "get a,P,b \n", string(data))
	assert.FileExists(t, filepath.Join(worker.dataDir, "ds", "histogram_cache.bin"))

	out, err = run(ctx, "remote", "push", "-c", worker.config)
	require.NoError(t, err)
	assert.Contains(t, out, "pushed ds/vocab_w4_p3_t2_s1.bin")

	out, err = run(ctx, "remote", "delete", "-c", worker.config)
	require.NoError(t, err)
	assert.Equal(t, "deleted ds/vocab_w4_p3_t2_s1.bin\n", out)
	out, err = run(ctx, "remote", "list", "-c", builder.config)
	require.NoError(t, err)
	assert.Empty(t, out)

	// Deleting again is not an error.
	_, err = run(ctx, "remote", "delete", "-c", worker.config)
	require.NoError(t, err)
}

func TestCacheDir_SharedBetweenDatasets(t *testing.T) {
	cacheDir := t.TempDir()
	cache := fmt.Sprintf("cache:\n  dir: %s\n", cacheDir)
	ctx := context.Background()

	e := newEnv(t, false, cache)
	testutil.WriteDataset(t, e.dataDir, "other", testutil.Dataset{
		Words:   []string{"x", "y"},
		Paths:   []string{"X"},
		Targets: []string{"go"},
	})
	_, err := run(ctx, "preload", "-c", e.config)
	require.NoError(t, err)
	t.Setenv(config.EnvDataset, "other")
	_, err = run(ctx, "preload", "-c", e.config)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(cacheDir, "ds", "histogram_cache.bin"))
	assert.FileExists(t, filepath.Join(cacheDir, "other", "histogram_cache.bin"))

	out, err := run(ctx, "server", "status", "-c", e.config)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(cacheDir, "other", "histogram_cache.bin"))
	assert.NotContains(t, out, "cache stale")
}

func TestServerStatus_StartFromMismatchIsStale(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)
	_, err := run(ctx, "preload", "-c", e.config)
	require.NoError(t, err)

	data, err := os.ReadFile(e.config)
	require.NoError(t, err)
	cfg := strings.Replace(string(data), "  target_size: 2\n", "  target_size: 2\n  start_from: 2\n", 1)
	require.NoError(t, os.WriteFile(e.config, []byte(cfg), 0o644))

	out, err := run(ctx, "server", "status", "-c", e.config)
	require.NoError(t, err)
	assert.Regexp(t, `cache stale\s+true`, out)
	assert.Contains(t, out, "start_from=1")
}

func TestServerStart_HelpNamesOwnerRules(t *testing.T) {
	out, err := run(context.Background(), "server", "start", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "distributor already running")
	assert.Contains(t, out, "dead")
}

func TestRemote_NotConfigured(t *testing.T) {
	e := newEnv(t, false)
	_, err := run(context.Background(), "remote", "list", "-c", e.config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no remote configured")
}
