package c2vprep

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/c2vprep/pipeline"
	"github.com/hupe1980/c2vprep/sampler"
)

// DefaultMaxContexts is the record width used by code2vec.
const DefaultMaxContexts = 200

// Job describes one preprocessing pass.
type Job struct {
	// Input is the raw example file.
	Input string
	// Output is published atomically once the pass completes.
	Output string
	// MaxContexts is the number of context slots per record.
	MaxContexts int
	// Seed drives context sampling; equal seeds and inputs give equal output.
	Seed int64
	// ProgressInterval throttles progress logging (10s when zero).
	ProgressInterval time.Duration
}

func (j Job) validate() error {
	switch {
	case j.Input == "":
		return fmt.Errorf("%w: empty input path", ErrInvalidJob)
	case j.Output == "":
		return fmt.Errorf("%w: empty output path", ErrInvalidJob)
	case j.MaxContexts <= 0:
		return fmt.Errorf("%w: max contexts must be positive, got %d", ErrInvalidJob, j.MaxContexts)
	}
	return nil
}

// Preprocess resolves the vocabulary through r and runs job.
func Preprocess(ctx context.Context, r *Resolver, job Job) (pipeline.Stats, error) {
	if err := job.validate(); err != nil {
		return pipeline.Stats{}, err
	}

	res, err := r.Resolve(ctx)
	if err != nil {
		return pipeline.Stats{}, err
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(r.logger.Logger),
		pipeline.WithObserver(exampleObserver{m: r.metrics}),
	}
	if job.ProgressInterval > 0 {
		opts = append(opts, pipeline.WithProgressInterval(job.ProgressInterval))
	}
	p := pipeline.NewProcessor(sampler.NewSeeded(job.MaxContexts, job.Seed), res.Artifact.Vocab, opts...)

	stats, err := p.ProcessFile(ctx, job.Input, job.Output)
	if err != nil {
		return stats, translateError(err)
	}
	r.logger.LogSummary(ctx, job, stats.Summary())
	return stats, nil
}
