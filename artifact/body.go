package artifact

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/c2vprep/vocab"
)

// Body layout, repeated for words, paths, targets:
//
//	uvarint(n) { uvarint(len) token uvarint(count) uvarint(rank) }*n
func encodeBody(set *vocab.Set) []byte {
	var out []byte
	for _, t := range []*vocab.Table{set.Words, set.Paths, set.Targets} {
		out = binary.AppendUvarint(out, uint64(t.Len()))
		t.Each(func(e vocab.Entry) bool {
			out = binary.AppendUvarint(out, uint64(len(e.Token)))
			out = append(out, e.Token...)
			out = binary.AppendUvarint(out, uint64(e.Count))
			out = binary.AppendUvarint(out, uint64(e.Rank))
			return true
		})
	}
	return out
}

type bodyReader struct {
	data []byte
	off  int
}

func (b *bodyReader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(b.data[b.off:])
	if n <= 0 {
		return 0, fmt.Errorf("%w: bad varint at offset %d", ErrCorrupt, b.off)
	}
	b.off += n
	return v, nil
}

func (b *bodyReader) bytes(n uint64) ([]byte, error) {
	if n > uint64(len(b.data)-b.off) {
		return nil, fmt.Errorf("%w: token overruns body at offset %d", ErrCorrupt, b.off)
	}
	s := b.data[b.off : b.off+int(n)]
	b.off += int(n)
	return s, nil
}

func (b *bodyReader) table() (*vocab.Table, error) {
	n, err := b.uvarint()
	if err != nil {
		return nil, err
	}
	// Each entry needs at least 3 bytes; reject counts the body cannot hold.
	if n > uint64(len(b.data)-b.off)/3+1 {
		return nil, fmt.Errorf("%w: implausible entry count %d", ErrCorrupt, n)
	}

	entries := make([]vocab.Entry, 0, n)
	for range n {
		l, err := b.uvarint()
		if err != nil {
			return nil, err
		}
		tok, err := b.bytes(l)
		if err != nil {
			return nil, err
		}
		count, err := b.uvarint()
		if err != nil {
			return nil, err
		}
		rank, err := b.uvarint()
		if err != nil {
			return nil, err
		}
		entries = append(entries, vocab.Entry{Token: string(tok), Count: int64(count), Rank: int(rank)})
	}
	return vocab.NewTable(entries), nil
}

func decodeBody(raw []byte) (*vocab.Set, error) {
	b := &bodyReader{data: raw}

	var set vocab.Set
	var err error
	if set.Words, err = b.table(); err != nil {
		return nil, err
	}
	if set.Paths, err = b.table(); err != nil {
		return nil, err
	}
	if set.Targets, err = b.table(); err != nil {
		return nil, err
	}
	if b.off != len(raw) {
		return nil, fmt.Errorf("%w: %d unread body bytes", ErrCorrupt, len(raw)-b.off)
	}
	return &set, nil
}
