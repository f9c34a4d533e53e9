package guard

import "sync/atomic"

// SamplingStride is how many raw input events pass between state updates.
// Hooks fire on every key and every pointer move; updating on one in
// sixteen keeps the per-event cost to a counter increment while still
// registering activity within a fraction of a second of real use.
const SamplingStride = 16

// Sampler decides which raw input events are forwarded to the guard loop.
// Sample is called from the platform's hook thread.
type Sampler struct {
	calls  atomic.Uint64
	stride uint64
}

// NewSampler creates a sampler. A stride below one forwards every event.
func NewSampler(stride int) *Sampler {
	if stride < 1 {
		stride = 1
	}
	return &Sampler{stride: uint64(stride)}
}

// Sample counts one raw event and reports whether it should be forwarded.
func (s *Sampler) Sample() bool {
	return s.calls.Add(1)%s.stride == 0
}

// Calls returns the number of raw events observed so far.
func (s *Sampler) Calls() uint64 {
	return s.calls.Load()
}
