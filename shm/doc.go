// Package shm distributes a dataset's vocabulary artifact to many worker
// processes through a named shared-memory segment.
//
// A Server loads the artifact once, copies its serialized form into a
// segment file under a tmpfs directory (/dev/shm by default) and then
// publishes a metadata Record in the Registry. Clients look up the record,
// map the segment read-only and decode a private copy. Publication order
// guarantees that a visible record always describes a fully written segment.
//
// On shutdown the server unlinks the segment first and removes the record
// second. Admin stops a server from another process and reports orphans
// left behind by a crashed owner.
package shm
