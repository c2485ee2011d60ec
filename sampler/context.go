// Package sampler reduces an example's path contexts to a bounded subset,
// preferring contexts whose tokens are covered by the vocabularies.
package sampler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFormat is returned for a context that is not "origin,path,dest".
var ErrFormat = errors.New("malformed path context")

// PathContext is one (origin, path, destination) triple.
// Raw is the original text written to output records.
type PathContext struct {
	Origin string
	Path   string
	Dest   string
	Raw    string
}

// ParseContext splits raw on commas into exactly three fields.
func ParseContext(raw string) (PathContext, error) {
	origin, rest, ok := strings.Cut(raw, ",")
	if !ok {
		return PathContext{}, fmt.Errorf("%w: %q", ErrFormat, raw)
	}
	path, dest, ok := strings.Cut(rest, ",")
	if !ok || strings.Contains(dest, ",") {
		return PathContext{}, fmt.Errorf("%w: %q", ErrFormat, raw)
	}
	return PathContext{Origin: origin, Path: path, Dest: dest, Raw: raw}, nil
}

// Vocabulary is the membership test the sampler needs; *vocab.Table satisfies it.
type Vocabulary interface {
	Contains(token string) bool
}

// Class is the vocabulary coverage of a context.
type Class int

const (
	// Unknown contexts have no token in the vocabularies. They are always dropped.
	Unknown Class = iota
	// Partial contexts have at least one, but not all, tokens in the vocabularies.
	Partial
	// Full contexts have origin and dest in the word vocabulary and path in the path vocabulary.
	Full
)

func (c Class) String() string {
	switch c {
	case Full:
		return "full"
	case Partial:
		return "partial"
	default:
		return "unknown"
	}
}

// Classify returns the coverage class of c.
func Classify(c PathContext, words, paths Vocabulary) Class {
	origin := words.Contains(c.Origin)
	path := paths.Contains(c.Path)
	dest := words.Contains(c.Dest)

	switch {
	case origin && path && dest:
		return Full
	case origin || path || dest:
		return Partial
	default:
		return Unknown
	}
}
