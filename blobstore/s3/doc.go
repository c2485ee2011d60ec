// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("code2vec/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
// Credentials come from the default AWS chain (environment, shared config,
// instance role). WithEndpoint targets S3-compatible services with path-style
// addressing.
//
// # Features
//
//   - Multipart uploads for large artifacts
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
