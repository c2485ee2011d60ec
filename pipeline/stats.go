package pipeline

import "log/slog"

// Stats are the counters of one run.
type Stats struct {
	// Examples is the number of parsed input examples.
	Examples int64 `json:"examples"`
	// RawContexts sums the unfiltered context counts of all examples.
	RawContexts int64 `json:"raw_contexts"`
	// KeptContexts sums the sampled context counts of emitted examples.
	KeptContexts int64 `json:"kept_contexts"`
	Emitted      int64 `json:"emitted"`
	// Empty counts examples that sampled to zero contexts.
	Empty int64 `json:"empty"`
	// MaxRawContexts is the largest unfiltered context count seen.
	MaxRawContexts int `json:"max_raw_contexts"`
}

func (s *Stats) add(raw, kept int) {
	s.Examples++
	s.RawContexts += int64(raw)
	s.MaxRawContexts = max(s.MaxRawContexts, raw)
	if kept == 0 {
		s.Empty++
		return
	}
	s.Emitted++
	s.KeptContexts += int64(kept)
}

// Summary is the end-of-run report.
type Summary struct {
	Stats
	// AvgRawContexts is RawContexts per emitted example.
	AvgRawContexts float64 `json:"avg_raw_contexts"`
	// AvgKeptContexts is KeptContexts per emitted example.
	AvgKeptContexts float64 `json:"avg_kept_contexts"`
}

// Summary derives the averages. Both are zero when nothing was emitted.
func (s Stats) Summary() Summary {
	sum := Summary{Stats: s}
	if s.Emitted > 0 {
		sum.AvgRawContexts = float64(s.RawContexts) / float64(s.Emitted)
		sum.AvgKeptContexts = float64(s.KeptContexts) / float64(s.Emitted)
	}
	return sum
}

// LogValue implements slog.LogValuer.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("examples", s.Examples),
		slog.Int64("emitted", s.Emitted),
		slog.Int64("empty", s.Empty),
		slog.Int64("raw_contexts", s.RawContexts),
		slog.Int64("kept_contexts", s.KeptContexts),
		slog.Int("max_raw_contexts", s.MaxRawContexts),
		slog.Float64("avg_raw_contexts", s.AvgRawContexts),
		slog.Float64("avg_kept_contexts", s.AvgKeptContexts),
	)
}
