//go:build unix

package fs

import (
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLock_Exclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.lock")

	unlock, err := Lock(path)
	require.NoError(t, err)

	var acquired atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		unlock2, err := Lock(path)
		if err != nil {
			return
		}
		acquired.Store(true)
		_ = unlock2()
	}()

	time.Sleep(100 * time.Millisecond)
	assert.False(t, acquired.Load(), "second lock must block while the first is held")

	require.NoError(t, unlock())
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("second lock was never granted")
	}
	assert.True(t, acquired.Load())
}
