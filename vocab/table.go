// Package vocab loads ranked vocabulary tables from frequency histograms.
//
// A histogram file holds one "<token> <count>" entry per line. Loading ranks
// the entries by descending count (ties keep file order) and keeps a bounded
// window of ranks. Tables are immutable once built and safe for concurrent
// readers.
package vocab

// Entry is a single ranked vocabulary entry.
type Entry struct {
	Token string
	Count int64
	// Rank is 1-based; rank 1 is the most frequent token of the histogram.
	Rank int
}

// Table is an immutable token -> count mapping with ranks.
type Table struct {
	entries []Entry
	index   map[string]int
}

// NewTable builds a table from entries in rank order.
// Later duplicates of a token are ignored. The slice is copied.
func NewTable(entries []Entry) *Table {
	t := &Table{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if _, ok := t.index[e.Token]; ok {
			continue
		}
		t.index[e.Token] = len(t.entries)
		t.entries = append(t.entries, e)
	}
	return t
}

// Len returns the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Contains reports whether token is in the table.
func (t *Table) Contains(token string) bool {
	if t == nil {
		return false
	}
	_, ok := t.index[token]
	return ok
}

// Count returns the occurrence count of token.
func (t *Table) Count(token string) (int64, bool) {
	if t == nil {
		return 0, false
	}
	i, ok := t.index[token]
	if !ok {
		return 0, false
	}
	return t.entries[i].Count, true
}

// Rank returns the histogram rank of token.
func (t *Table) Rank(token string) (int, bool) {
	if t == nil {
		return 0, false
	}
	i, ok := t.index[token]
	if !ok {
		return 0, false
	}
	return t.entries[i].Rank, true
}

// Entries returns a copy of the entries in rank order.
func (t *Table) Entries() []Entry {
	if t == nil {
		return nil
	}
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Each calls fn for every entry in rank order until fn returns false.
func (t *Table) Each(fn func(Entry) bool) {
	if t == nil {
		return
	}
	for _, e := range t.entries {
		if !fn(e) {
			return
		}
	}
}

// Equal reports whether both tables hold the same entries in the same order.
func (t *Table) Equal(other *Table) bool {
	if t.Len() != other.Len() {
		return false
	}
	for i := range t.Len() {
		if t.entries[i] != other.entries[i] {
			return false
		}
	}
	return true
}
