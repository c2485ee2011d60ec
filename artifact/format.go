package artifact

import "errors"

const (
	// MagicNumber identifies histogram cache artifacts (ASCII: "C2VH").
	MagicNumber = 0x43325648
	// Version is the current artifact format version (v2.0.0).
	// v2 records the first kept rank.
	Version = 0x00020000

	// maxRawSize bounds the decompressed body a header may announce.
	maxRawSize = 1 << 34
	// maxDatasetLen bounds the dataset name length a header may announce.
	maxDatasetLen = 4096
)

// Header is the fixed-size little-endian prefix of an encoded artifact.
//
// Layout: Header | dataset name (DatasetLen bytes) | body (BodySize bytes).
// The body holds the three tables and is compressed per Compression;
// Checksum is the CRC32 (IEEE) of the uncompressed body.
type Header struct {
	Magic       uint32
	Version     uint32
	Compression Compression
	_           [3]byte
	Checksum    uint32
	WordSize    int64
	PathSize    int64
	TargetSize  int64
	StartFrom   int64
	CreatedAt   int64 // Unix nanoseconds
	DatasetLen  uint32
	_           [4]byte
	RawSize     uint64
	BodySize    uint64
}

var (
	// ErrInvalidMagic is returned when the input is not an artifact.
	ErrInvalidMagic = errors.New("invalid magic number")
	// ErrInvalidVersion is returned for unsupported format versions.
	ErrInvalidVersion = errors.New("unsupported version")
	// ErrCorrupt is returned for truncated or checksum-mismatched artifacts.
	ErrCorrupt = errors.New("corrupt artifact")
	// ErrUnknownCompression is returned for unsupported compression names or ids.
	ErrUnknownCompression = errors.New("unknown compression")
)
