package firmware

import (
	"sync"

	"github.com/tetherlab/tether/pkg/protocol"
)

// Transport is the control-endpoint plumbing between a host and the
// request dispatcher. Implementations deliver complete control transfers;
// Task is polled once per scheduler pass and must not block.
type Transport interface {
	Task(d *protocol.Dispatcher)
}

type loopbackResult struct {
	reply []byte
	err   error
}

type loopbackTransfer struct {
	req     protocol.SetupPacket
	payload []byte
	done    chan loopbackResult
}

// Loopback is an in-process transport: transfers submitted by a "host"
// goroutine are serviced by the firmware scheduler loop. It backs the
// simulator and tests.
type Loopback struct {
	mu    sync.Mutex
	queue []loopbackTransfer
}

// NewLoopback returns an empty loopback transport.
func NewLoopback() *Loopback {
	return &Loopback{}
}

// Submit issues a control transfer and blocks until the firmware loop has
// serviced it. The returned bytes are the data stage of a device-to-host
// request; a non-nil error is the transfer stalling.
func (l *Loopback) Submit(req protocol.SetupPacket, payload []byte) ([]byte, error) {
	xfer := loopbackTransfer{req: req, payload: payload, done: make(chan loopbackResult, 1)}
	l.mu.Lock()
	l.queue = append(l.queue, xfer)
	l.mu.Unlock()

	res := <-xfer.done
	return res.reply, res.err
}

// Task services every queued transfer through the dispatcher's three
// stages.
func (l *Loopback) Task(d *protocol.Dispatcher) {
	l.mu.Lock()
	pending := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, xfer := range pending {
		reply, err := d.Handle(xfer.req, xfer.payload)
		xfer.done <- loopbackResult{reply: reply, err: err}
	}
}
