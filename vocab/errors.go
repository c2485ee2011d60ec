package vocab

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a histogram file does not exist.
	ErrNotFound = errors.New("histogram not found")

	// ErrFormat is returned when a histogram line cannot be parsed.
	ErrFormat = errors.New("malformed histogram")

	// ErrInvalidSizes is returned when vocabulary sizes are negative.
	ErrInvalidSizes = errors.New("invalid vocabulary sizes")
)

// FormatError describes an unparsable histogram line.
type FormatError struct {
	Path string
	Line int
	Text string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s:%d: malformed histogram line %q", e.Path, e.Line, e.Text)
}

// Is reports ErrFormat equivalence.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }
