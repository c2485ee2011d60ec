// Package pipeline turns raw path-context lines into fixed-width records.
//
// Each input line is "<target> <origin,path,dest> ...". The processor samples
// every example down to at most MaxContexts contexts and writes
// "<target> <ctx_1> ... <ctx_k>" followed by MaxContexts-k spaces, so every
// emitted record declares the same number of context slots. Examples with no
// retained context are counted and skipped.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/c2vprep/sampler"
)

// ErrFormat is returned for an input line that cannot be parsed.
var ErrFormat = errors.New("malformed example line")

// LineError locates a malformed input line.
type LineError struct {
	Name string
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Name, e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Is reports ErrFormat equivalence.
func (e *LineError) Is(target error) bool { return target == ErrFormat }

// Example is one parsed input line.
type Example struct {
	Target   string
	Contexts []sampler.PathContext
}

// ParseLine parses "<target> <ctx> <ctx> ...". Fields are separated by single
// spaces; empty fields, such as the padding of an already processed record,
// are ignored.
func ParseLine(line string) (Example, error) {
	line = strings.TrimRight(line, "\r\n")
	target, rest, _ := strings.Cut(line, " ")
	if target == "" {
		return Example{}, fmt.Errorf("%w: missing target", ErrFormat)
	}

	ex := Example{Target: target}
	for raw := range strings.SplitSeq(rest, " ") {
		if raw == "" {
			continue
		}
		c, err := sampler.ParseContext(raw)
		if err != nil {
			return Example{}, fmt.Errorf("%w: %w", ErrFormat, err)
		}
		ex.Contexts = append(ex.Contexts, c)
	}
	return ex, nil
}

// WriteRecord writes target, the contexts and the padding that brings the
// record to maxContexts slots, terminated by a newline.
func WriteRecord(w io.Writer, target string, contexts []sampler.PathContext, maxContexts int) error {
	var b strings.Builder
	b.WriteString(target)
	b.WriteByte(' ')
	for i, c := range contexts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(c.Raw)
	}
	if pad := maxContexts - len(contexts); pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}
