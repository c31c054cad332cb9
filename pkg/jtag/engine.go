// Package jtag implements the scan-chain engine for the single downstream
// TAP this device drives. It is deliberately not a general-purpose JTAG
// link: one fixed-size buffer pair, one chain, no BSDL.
package jtag

import (
	"errors"
	"fmt"

	"github.com/tetherlab/tether/pkg/tap"
)

// BufferSize is the capacity of each scan buffer in bytes.
const BufferSize = 256

var (
	// ErrZeroLengthScan is returned when a scan of zero bits is requested.
	ErrZeroLengthScan = errors.New("jtag: zero-length scan")
	// ErrScanTooLong is returned when a scan would not fit the buffers.
	ErrScanTooLong = errors.New("jtag: scan exceeds buffer capacity")
	// ErrNotActive is returned when a scan operation arrives while the
	// engine does not own the JTAG pins.
	ErrNotActive = errors.New("jtag: engine not active")
)

// Engine owns the JTAG pins, the scan buffer pair, and the tracked TAP
// state. It is used strictly from the polled loop; the USB control pipe is
// single-outstanding, so no two scans can ever be in flight at once.
type Engine struct {
	port   Port
	pins   PinDriver
	sm     *tap.StateMachine
	active bool

	// Shared mutable scan storage, overwritten by each scan.
	outBuf [BufferSize]byte
	inBuf  [BufferSize]byte
}

// NewEngine creates an engine bound to the given board port. The engine does
// not own the pins until Init is called.
func NewEngine(port Port) *Engine {
	return &Engine{
		port: port,
		sm:   tap.NewStateMachine(),
	}
}

// Init acquires the JTAG pins and prepares the accelerated peripheral.
// Calling it while already active re-runs the port configuration, which the
// lifecycle code relies on when it borrows the chain mid-session.
func (e *Engine) Init() error {
	if err := e.port.Configure(); err != nil {
		return fmt.Errorf("jtag: configuring port: %w", err)
	}
	e.pins = e.port.Pins()
	e.active = true
	return nil
}

// Deinit stops driving the scan chain and releases the pins.
func (e *Engine) Deinit() error {
	if !e.active {
		return nil
	}
	e.active = false
	if err := e.port.Release(); err != nil {
		return fmt.Errorf("jtag: releasing port: %w", err)
	}
	return nil
}

// Active reports whether the engine currently owns the JTAG pins.
func (e *Engine) Active() bool {
	return e.active
}

// State returns the tracked TAP state.
func (e *Engine) State() tap.State {
	return e.sm.State()
}

// ClearOutBuffer zeroes the output scan buffer.
func (e *Engine) ClearOutBuffer() {
	e.outBuf = [BufferSize]byte{}
}

// SetOutBuffer loads data to be shifted out during the next scan. Payloads
// larger than the buffer are rejected outright.
func (e *Engine) SetOutBuffer(data []byte) error {
	if len(data) > BufferSize {
		return ErrScanTooLong
	}
	copy(e.outBuf[:], data)
	return nil
}

// InBuffer returns the bits captured during the last scan. Requests longer
// than the buffer are truncated to it.
func (e *Engine) InBuffer(length int) []byte {
	if length < 0 {
		return nil
	}
	if length > BufferSize {
		length = BufferSize
	}
	out := make([]byte, length)
	copy(out, e.inBuf[:length])
	return out
}

// Scan shifts bits across TDI/TDO from the output buffer into the input
// buffer. Whole bytes ride the accelerated peripheral; the remainder is
// bit-banged. When advanceState is set the final bit is always produced by
// the bit-banged path so TMS can be raised exactly on the last clock edge,
// moving the TAP out of its shift state. forceBitbang routes the entire
// transfer through the software path.
func (e *Engine) Scan(bits int, advanceState, forceBitbang bool) error {
	if !e.active {
		return ErrNotActive
	}
	if bits <= 0 {
		return ErrZeroLengthScan
	}
	if (bits+7)/8 > BufferSize {
		return ErrScanTooLong
	}

	bulkBytes := bits / 8
	slowBits := bits % 8

	if forceBitbang {
		bulkBytes = 0
		slowBits = bits
	}

	// No accelerated peripheral on this board: same surface, software path.
	if e.port.Accelerator() == nil {
		bulkBytes = 0
		slowBits = bits
	}

	// The accelerated path cannot toggle TMS, so the state-advancing edge
	// must come from the bit-banged remainder. Peel off a byte if needed.
	if slowBits == 0 && advanceState {
		bulkBytes--
		slowBits = 8
	}

	if bulkBytes > 0 {
		if err := e.bulkShift(bulkBytes); err != nil {
			return err
		}
	}
	if slowBits > 0 {
		e.bitShift(e.outBuf[bulkBytes:], e.inBuf[bulkBytes:], slowBits, advanceState)
	}
	return nil
}

// bulkShift moves n whole bytes through the accelerated peripheral,
// reversing each byte around the MSB-first transfer.
func (e *Engine) bulkShift(n int) error {
	accel := e.port.Accelerator()

	tx := make([]byte, n)
	rx := make([]byte, n)
	for i := 0; i < n; i++ {
		tx[i] = ReverseByte(e.outBuf[i])
	}

	accel.Claim()
	err := accel.Exchange(tx, rx)
	accel.Release()
	if err != nil {
		return fmt.Errorf("jtag: accelerated shift: %w", err)
	}

	for i := 0; i < n; i++ {
		e.inBuf[i] = ReverseByte(rx[i])
	}
	return nil
}

// bitShift clocks bits across the chain one at a time, LSB first. With
// advance set, TMS is raised on the final bit and the tracked TAP state
// follows the resulting transition.
func (e *Engine) bitShift(out, in []byte, bits int, advance bool) {
	for i := 0; i < bits; i++ {
		byteIdx := i / 8
		mask := byte(1) << (i % 8)

		if advance && i == bits-1 {
			e.pins.SetTMS(true)
			e.sm.Clock(true)
		}

		e.pins.SetTDI(out[byteIdx]&mask != 0)
		if e.pins.TDO() {
			in[byteIdx] |= mask
		} else {
			in[byteIdx] &^= mask
		}
		e.pins.PulseTCK()
	}
	e.pins.SetTMS(false)
}

// GoToState walks the TAP to the target state along the minimal TMS path,
// one bit per TCK edge on the software path. Requesting the current state
// produces no TCK pulses.
func (e *Engine) GoToState(target tap.State) error {
	if !e.active {
		return ErrNotActive
	}
	seq, err := e.sm.GoTo(target)
	if err != nil {
		return err
	}
	for _, tms := range seq.TMS {
		e.pins.SetTMS(tms)
		e.pins.PulseTCK()
	}
	e.pins.SetTMS(false)
	return nil
}

// RunClock pulses TCK the given number of cycles with TMS held low and no
// data shifted. Used for post-configuration settle delays.
func (e *Engine) RunClock(cycles int) error {
	if !e.active {
		return ErrNotActive
	}
	e.pins.SetTMS(false)
	for i := 0; i < cycles; i++ {
		e.pins.PulseTCK()
		e.sm.Clock(false)
	}
	return nil
}
