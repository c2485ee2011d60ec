// Package fs provides the filesystem seam used for durable publication.
//
//   - [FileSystem]: open, temp-create, rename, remove and stat operations
//   - [LocalFS]: production implementation on the os package
//   - [FaultyFS]: fault injection for tests (failed writes, syncs, renames)
//   - [WriteAtomic]: temp file + fsync + rename + directory fsync
//   - [Lock]: blocking exclusive advisory lock (flock) on a lock file
//
// Operations take no context.Context: local filesystem calls are not
// interruptible at the syscall level. [Lock] blocks until the lock is granted.
package fs
