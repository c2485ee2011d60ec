package minio

import (
	"context"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/c2vprep/blobstore"
)

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := "localhost:9000"
	bucket := "test-c2vprep"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "test-prefix/")

	_, err = store.Get(ctx, "ds/missing.bin")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "ds/vocab.bin", data))

	got, err := blobstore.ReadAll(ctx, store, "ds/vocab.bin")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	names, err := store.List(ctx, "ds/")
	require.NoError(t, err)
	assert.Contains(t, names, "ds/vocab.bin")

	require.NoError(t, store.Delete(ctx, "ds/vocab.bin"))
	_, err = store.Get(ctx, "ds/vocab.bin")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestConnect(t *testing.T) {
	store, err := Connect("localhost:9000", "bucket", "root/", false)
	require.NoError(t, err)
	assert.Equal(t, "root/ds/x.bin", store.key("ds/x.bin"))
}
