package board

import "sync/atomic"

// EdgeCounter is the single-writer/single-reader channel between the
// port-request pin's edge interrupt and the polled filter task. The
// interrupt side may only increment; the filter task alone drains. Nothing
// else may touch the counter, and the interrupt side must never reach into
// pin-sharing code.
type EdgeCounter struct {
	n atomic.Uint32
}

// Edge records one rising edge. Safe to call from interrupt-level context.
func (c *EdgeCounter) Edge() {
	c.n.Add(1)
}

// Drain returns the edges accumulated since the last drain and resets the
// counter to zero. Called only by the polled filter task at window
// boundaries.
func (c *EdgeCounter) Drain() uint32 {
	return c.n.Swap(0)
}
