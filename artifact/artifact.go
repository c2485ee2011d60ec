// Package artifact serializes the three vocabulary tables of a dataset,
// together with the parameters they were built with, into one self-checking
// binary blob. The same bytes back the on-disk cache file and the shared
// memory segment.
package artifact

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"time"

	"github.com/hupe1980/c2vprep/vocab"
)

// Artifact is a built vocabulary set plus its identity.
// Identity is Dataset + Sizes + StartFrom; CreatedAt is informational.
type Artifact struct {
	Dataset string
	Sizes   vocab.Sizes
	// StartFrom is the first histogram rank kept in each table.
	// Values below 1 mean 1.
	StartFrom int
	Vocab     *vocab.Set
	CreatedAt time.Time
}

// Matches reports whether the artifact was built for dataset with sizes,
// starting at rank startFrom.
func (a *Artifact) Matches(dataset string, sizes vocab.Sizes, startFrom int) bool {
	return a.Dataset == dataset && a.Sizes == sizes &&
		vocab.NormalizeStartFrom(a.StartFrom) == vocab.NormalizeStartFrom(startFrom)
}

// Marshal encodes a into a byte slice.
func Marshal(a *Artifact, c Compression) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, a, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes a to w.
func Encode(w io.Writer, a *Artifact, c Compression) error {
	if a == nil || a.Vocab == nil {
		return fmt.Errorf("artifact: nil vocabulary")
	}
	if len(a.Dataset) > maxDatasetLen {
		return fmt.Errorf("artifact: dataset name too long (%d bytes)", len(a.Dataset))
	}

	raw := encodeBody(a.Vocab)
	body, applied, err := compress(raw, c)
	if err != nil {
		return err
	}

	h := Header{
		Magic:       MagicNumber,
		Version:     Version,
		Compression: applied,
		Checksum:    crc32.ChecksumIEEE(raw),
		WordSize:    int64(a.Sizes.Word),
		PathSize:    int64(a.Sizes.Path),
		TargetSize:  int64(a.Sizes.Target),
		StartFrom:   int64(vocab.NormalizeStartFrom(a.StartFrom)),
		CreatedAt:   a.CreatedAt.UnixNano(),
		DatasetLen:  uint32(len(a.Dataset)),
		RawSize:     uint64(len(raw)),
		BodySize:    uint64(len(body)),
	}
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return err
	}
	if _, err := io.WriteString(w, a.Dataset); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// Identity is the part of an artifact readable without decoding the body.
type Identity struct {
	Header  Header
	Dataset string
}

// Sizes returns the vocabulary sizes recorded in the header.
func (id *Identity) Sizes() vocab.Sizes {
	return vocab.Sizes{
		Word:   int(id.Header.WordSize),
		Path:   int(id.Header.PathSize),
		Target: int(id.Header.TargetSize),
	}
}

// StartFrom returns the first kept rank recorded in the header.
func (id *Identity) StartFrom() int { return int(id.Header.StartFrom) }

// Matches reports whether the header identifies dataset, sizes and startFrom.
func (id *Identity) Matches(dataset string, sizes vocab.Sizes, startFrom int) bool {
	return id.Dataset == dataset && id.Sizes() == sizes &&
		id.StartFrom() == vocab.NormalizeStartFrom(startFrom)
}

// ReadIdentity reads and validates the header and dataset name.
func ReadIdentity(r io.Reader) (*Identity, error) {
	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: truncated header", ErrCorrupt)
		}
		return nil, err
	}
	if h.Magic != MagicNumber {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, h.Magic)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, h.Version)
	}
	if h.DatasetLen > maxDatasetLen || h.RawSize > maxRawSize || h.BodySize > maxRawSize {
		return nil, fmt.Errorf("%w: implausible header sizes", ErrCorrupt)
	}

	name := make([]byte, h.DatasetLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, fmt.Errorf("%w: truncated dataset name", ErrCorrupt)
	}
	return &Identity{Header: h, Dataset: string(name)}, nil
}

// DecodeBody reads the body that follows id and builds the artifact.
func DecodeBody(r io.Reader, id *Identity) (*Artifact, error) {
	body := make([]byte, id.Header.BodySize)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("%w: truncated body", ErrCorrupt)
	}

	raw, err := decompress(body, id.Header.Compression, int(id.Header.RawSize))
	if err != nil {
		return nil, err
	}
	if sum := crc32.ChecksumIEEE(raw); sum != id.Header.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch: expected 0x%08x, got 0x%08x", ErrCorrupt, id.Header.Checksum, sum)
	}

	set, err := decodeBody(raw)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Dataset:   id.Dataset,
		Sizes:     id.Sizes(),
		StartFrom: id.StartFrom(),
		Vocab:     set,
		CreatedAt: time.Unix(0, id.Header.CreatedAt),
	}, nil
}

// Decode reads a complete artifact from r.
func Decode(r io.Reader) (*Artifact, error) {
	id, err := ReadIdentity(r)
	if err != nil {
		return nil, err
	}
	return DecodeBody(r, id)
}

// Unmarshal decodes a complete artifact from data.
// Trailing bytes after the body are rejected.
func Unmarshal(data []byte) (*Artifact, error) {
	r := bytes.NewReader(data)
	a, err := Decode(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, r.Len())
	}
	return a, nil
}
