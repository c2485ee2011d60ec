package vocab

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// Sizes bounds the three vocabularies of a dataset.
type Sizes struct {
	Word   int `yaml:"word_size" json:"word_size"`
	Path   int `yaml:"path_size" json:"path_size"`
	Target int `yaml:"target_size" json:"target_size"`
}

// Validate rejects negative sizes.
func (s Sizes) Validate() error {
	if s.Word < 0 || s.Path < 0 || s.Target < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSizes, s)
	}
	return nil
}

func (s Sizes) String() string {
	return fmt.Sprintf("word=%d path=%d target=%d", s.Word, s.Path, s.Target)
}

// Set groups the origin-token, path-token and target-token tables.
type Set struct {
	Words   *Table
	Paths   *Table
	Targets *Table
}

// Equal reports element-wise equality of all three tables.
func (s *Set) Equal(other *Set) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.Words.Equal(other.Words) &&
		s.Paths.Equal(other.Paths) &&
		s.Targets.Equal(other.Targets)
}

// HistogramPaths locates the three histogram files of a dataset.
type HistogramPaths struct {
	Words   string
	Paths   string
	Targets string
}

// DatasetHistograms returns the conventional histogram locations:
// <dataDir>/<dataset>/<dataset>.histo.{ori,path,tgt}.c2v
func DatasetHistograms(dataDir, dataset string) HistogramPaths {
	dir := filepath.Join(dataDir, dataset)
	return HistogramPaths{
		Words:   filepath.Join(dir, dataset+".histo.ori.c2v"),
		Paths:   filepath.Join(dir, dataset+".histo.path.c2v"),
		Targets: filepath.Join(dir, dataset+".histo.tgt.c2v"),
	}
}

// LoadSet parses the three histograms concurrently.
// The first failure cancels the remaining loads.
func LoadSet(ctx context.Context, paths HistogramPaths, sizes Sizes, startFrom int) (*Set, error) {
	if err := sizes.Validate(); err != nil {
		return nil, err
	}

	var set Set
	g, ctx := errgroup.WithContext(ctx)

	load := func(dst **Table, path string, maxSize int) {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t, err := LoadHistogram(path, startFrom, maxSize)
			if err != nil {
				return err
			}
			*dst = t
			return nil
		})
	}
	load(&set.Words, paths.Words, sizes.Word)
	load(&set.Paths, paths.Paths, sizes.Path)
	load(&set.Targets, paths.Targets, sizes.Target)

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &set, nil
}
