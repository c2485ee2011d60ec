package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	ifs "github.com/hupe1980/c2vprep/internal/fs"
	"github.com/hupe1980/c2vprep/sampler"
	"github.com/hupe1980/c2vprep/vocab"
)

const ctxCheckInterval = 1024

// Observer receives one call per parsed example.
type Observer interface {
	ObserveExample(raw, kept int, emitted bool)
}

type noopObserver struct{}

func (noopObserver) ObserveExample(int, int, bool) {}

// Processor runs the sampling pass over example streams.
// It is single-threaded; use one Processor per goroutine.
type Processor struct {
	sampler  *sampler.Sampler
	words    sampler.Vocabulary
	paths    sampler.Vocabulary
	fs       ifs.FileSystem
	logger   *slog.Logger
	observer Observer
	progress rate.Sometimes
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger used for progress and summary lines.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithObserver registers a per-example observer.
func WithObserver(o Observer) Option {
	return func(p *Processor) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithProgressInterval sets the minimum time between progress log lines.
func WithProgressInterval(d time.Duration) Option {
	return func(p *Processor) {
		p.progress = rate.Sometimes{Interval: d}
	}
}

// WithFileSystem sets the file system ProcessFile publishes output through.
func WithFileSystem(fsys ifs.FileSystem) Option {
	return func(p *Processor) {
		if fsys != nil {
			p.fs = fsys
		}
	}
}

// NewProcessor creates a processor sampling against the word and path tables of set.
func NewProcessor(s *sampler.Sampler, set *vocab.Set, opts ...Option) *Processor {
	p := &Processor{
		sampler:  s,
		words:    set.Words,
		paths:    set.Paths,
		fs:       ifs.Default,
		logger:   slog.New(slog.DiscardHandler),
		observer: noopObserver{},
		progress: rate.Sometimes{Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxContexts returns the record width in context slots.
func (p *Processor) MaxContexts() int { return p.sampler.MaxContexts() }

// Process samples one example. The result is empty when no context is retained.
func (p *Processor) Process(ex Example) []sampler.PathContext {
	return p.sampler.Sample(ex.Contexts, p.words, p.paths)
}

// Run reads examples from r and writes records to w.
// Blank lines are skipped. A malformed line aborts the run with a *LineError.
func (p *Processor) Run(ctx context.Context, r io.Reader, w io.Writer) (Stats, error) {
	return p.run(ctx, r, w, "<input>")
}

func (p *Processor) run(ctx context.Context, r io.Reader, w io.Writer, name string) (Stats, error) {
	var (
		stats  Stats
		lineNo int
		br     = bufio.NewReaderSize(r, 1<<20)
		bw     = bufio.NewWriterSize(w, 1<<20)
	)

	for {
		line, readErr := br.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return stats, fmt.Errorf("read %s: %w", name, readErr)
		}
		if line != "" {
			lineNo++
			if lineNo%ctxCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return stats, err
				}
			}

			if strings.TrimSpace(line) != "" {
				ex, err := ParseLine(line)
				if err != nil {
					return stats, &LineError{Name: name, Line: lineNo, Err: err}
				}

				kept := p.Process(ex)
				stats.add(len(ex.Contexts), len(kept))
				p.observer.ObserveExample(len(ex.Contexts), len(kept), len(kept) > 0)

				if len(kept) > 0 {
					if err := WriteRecord(bw, ex.Target, kept, p.MaxContexts()); err != nil {
						return stats, fmt.Errorf("write record: %w", err)
					}
				}

				p.progress.Do(func() {
					p.logger.Info("preprocess progress",
						slog.String("input", name),
						slog.Int64("examples", stats.Examples),
						slog.Int64("emitted", stats.Emitted),
						slog.Int64("empty", stats.Empty))
				})
			}
		}
		if readErr != nil {
			break
		}
	}

	if err := bw.Flush(); err != nil {
		return stats, fmt.Errorf("write record: %w", err)
	}
	return stats, nil
}

// ProcessFile runs the pass from the file in to the file out.
//
// out is published atomically: it either keeps its previous contents or holds
// the complete output of this run.
func (p *Processor) ProcessFile(ctx context.Context, in, out string) (Stats, error) {
	f, err := os.Open(in)
	if err != nil {
		return Stats{}, fmt.Errorf("open input %s: %w", in, err)
	}
	defer f.Close()

	if dir := filepath.Dir(out); dir != "." {
		if err := p.fs.MkdirAll(dir, 0o755); err != nil {
			return Stats{}, fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}

	var stats Stats
	err = ifs.WriteAtomic(p.fs, out, 0o644, func(w io.Writer) error {
		var runErr error
		stats, runErr = p.run(ctx, f, w, in)
		return runErr
	})
	if err != nil {
		return stats, err
	}

	p.logger.Debug("output published",
		slog.String("input", in),
		slog.String("output", out),
		slog.Any("summary", stats.Summary()))
	return stats, nil
}
