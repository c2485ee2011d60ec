// Package blobstore shares vocabulary artifacts between hosts through object
// storage.
//
// A host that built an artifact from the raw histograms uploads it; hosts
// without a local cache download it instead of parsing the histograms again.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: a directory, typically on a shared network mount
//   - MemoryStore: in-process, for tests
//   - s3.Store: Amazon S3 and S3-compatible endpoints (aws-sdk-go-v2)
//   - minio.Store: MinIO (minio-go)
package blobstore
