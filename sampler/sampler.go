package sampler

import "math/rand"

// Sampler selects at most MaxContexts contexts per example.
//
// Sampling draws from an explicitly seeded source, so a fixed seed and input
// order reproduce the same output. A Sampler is not safe for concurrent use.
type Sampler struct {
	maxContexts int
	rng         *rand.Rand
}

// New creates a sampler. rng must not be nil.
func New(maxContexts int, rng *rand.Rand) *Sampler {
	if rng == nil {
		panic("sampler: nil random source")
	}
	return &Sampler{maxContexts: maxContexts, rng: rng}
}

// NewSeeded creates a sampler backed by rand.NewSource(seed).
func NewSeeded(maxContexts int, seed int64) *Sampler {
	return New(maxContexts, rand.New(rand.NewSource(seed)))
}

// MaxContexts returns the per-example capacity.
func (s *Sampler) MaxContexts() int { return s.maxContexts }

// Sample returns the retained contexts of one example.
//
// Unknown contexts are always dropped. When len(contexts) is within capacity
// the full and partial contexts are kept in input order. Otherwise full
// contexts win: more full contexts than capacity are sampled uniformly;
// remaining capacity is filled by a uniform sample of partial contexts.
//
// The capacity check uses the unfiltered count, so an over-capacity input
// whose full and partial contexts fit is kept without sampling.
func (s *Sampler) Sample(contexts []PathContext, words, paths Vocabulary) []PathContext {
	var full, partial []PathContext
	known := make([]PathContext, 0, len(contexts))
	for _, c := range contexts {
		switch Classify(c, words, paths) {
		case Full:
			full = append(full, c)
			known = append(known, c)
		case Partial:
			partial = append(partial, c)
			known = append(known, c)
		}
	}

	if len(contexts) <= s.maxContexts {
		return known
	}

	switch {
	case len(full) > s.maxContexts:
		return s.choose(full, s.maxContexts)
	case len(full)+len(partial) > s.maxContexts:
		out := make([]PathContext, 0, s.maxContexts)
		out = append(out, full...)
		return append(out, s.choose(partial, s.maxContexts-len(full))...)
	default:
		out := make([]PathContext, 0, len(full)+len(partial))
		out = append(out, full...)
		return append(out, partial...)
	}
}

// choose draws k distinct elements uniformly without replacement, in draw order.
func (s *Sampler) choose(src []PathContext, k int) []PathContext {
	if k <= 0 {
		return nil
	}
	if k > len(src) {
		k = len(src)
	}
	idx := make([]int, len(src))
	for i := range idx {
		idx[i] = i
	}
	out := make([]PathContext, k)
	// Partial Fisher-Yates: the first k positions become the sample.
	for i := range k {
		j := i + s.rng.Intn(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
		out[i] = src[idx[i]]
	}
	return out
}
