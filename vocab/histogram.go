package vocab

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
)

// LoadHistogram reads the histogram at path and returns at most maxSize
// entries starting at rank startFrom.
//
// startFrom < 1 is treated as 1. maxSize <= 0 keeps every rank from startFrom on.
func LoadHistogram(path string, startFrom, maxSize int) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, path, err)
		}
		return nil, err
	}
	defer f.Close()

	return ParseHistogram(f, path, startFrom, maxSize)
}

// NormalizeStartFrom maps every rank below 1 to 1, the rank a table built
// with startFrom actually begins at.
func NormalizeStartFrom(startFrom int) int {
	if startFrom < 1 {
		return 1
	}
	return startFrom
}

// ParseHistogram is LoadHistogram on an already opened reader.
// name is only used for error messages.
func ParseHistogram(r io.Reader, name string, startFrom, maxSize int) (*Table, error) {
	startFrom = NormalizeStartFrom(startFrom)

	var (
		entries []Entry
		seen    = make(map[string]struct{})
		lineNo  int
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, " ")
		if len(fields) != 2 || fields[0] == "" {
			return nil, &FormatError{Path: name, Line: lineNo, Text: line}
		}
		count, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil || count < 0 {
			return nil, &FormatError{Path: name, Line: lineNo, Text: line}
		}

		if _, dup := seen[fields[0]]; dup {
			continue
		}
		seen[fields[0]] = struct{}{}
		entries = append(entries, Entry{Token: fields[0], Count: count})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	// Stable sort keeps file order for equal counts.
	slices.SortStableFunc(entries, func(a, b Entry) int {
		switch {
		case a.Count > b.Count:
			return -1
		case a.Count < b.Count:
			return 1
		default:
			return 0
		}
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	lo := startFrom - 1
	if lo > len(entries) {
		lo = len(entries)
	}
	hi := len(entries)
	if maxSize > 0 && lo+maxSize < hi {
		hi = lo + maxSize
	}

	return NewTable(entries[lo:hi]), nil
}
