package c2vprep

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/c2vprep/pipeline"
)

// Logger wraps slog.Logger with c2vprep-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that writes JSON lines to w (stderr if nil).
func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return NewLogger(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that writes human-readable lines to w (stderr if nil).
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return NewLogger(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithDataset adds a dataset field to the logger.
func (l *Logger) WithDataset(dataset string) *Logger {
	return &Logger{
		Logger: l.Logger.With("dataset", dataset),
	}
}

// LogResolve logs the outcome of vocabulary resolution.
func (l *Logger) LogResolve(ctx context.Context, source Source, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "vocabulary resolution failed",
			"elapsed", elapsed,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "vocabulary resolved",
			"source", source.String(),
			"elapsed", elapsed,
		)
	}
}

// LogTierMiss logs a tier that did not produce a vocabulary.
// Expected misses are logged at debug level, unexpected ones at warn level.
func (l *Logger) LogTierMiss(ctx context.Context, source Source, expected bool, err error) {
	level := slog.LevelWarn
	if expected {
		level = slog.LevelDebug
	}
	l.Log(ctx, level, "vocabulary source unavailable",
		"source", source.String(),
		"error", err,
	)
}

// LogCacheBuild logs a cache build triggered by resolution.
func (l *Logger) LogCacheBuild(ctx context.Context, path string, elapsed time.Duration, err error) {
	if err != nil {
		l.WarnContext(ctx, "cache build failed",
			"path", path,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "cache built",
			"path", path,
			"elapsed", elapsed,
		)
	}
}

// LogAttach logs a shared-memory attach.
func (l *Logger) LogAttach(ctx context.Context, segment string, err error) {
	if err != nil {
		l.WarnContext(ctx, "shared memory attach failed; falling back to disk",
			"segment", segment,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "attached to shared memory",
			"segment", segment,
		)
	}
}

// LogRemote logs a transfer to or from the remote tier.
func (l *Logger) LogRemote(ctx context.Context, op, key string, elapsed time.Duration, err error) {
	if err != nil {
		l.WarnContext(ctx, "remote "+op+" failed",
			"key", key,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "remote "+op,
		"key", key,
		"elapsed", elapsed,
	)
}

// LogSummary logs the end-of-run summary of one preprocessing job.
func (l *Logger) LogSummary(ctx context.Context, job Job, summary pipeline.Summary) {
	l.InfoContext(ctx, "preprocessing summary",
		"input", job.Input,
		"output", job.Output,
		"summary", summary,
	)
	if summary.Emitted == 0 {
		l.WarnContext(ctx, "no examples were emitted", "input", job.Input)
	}
}
