package jtag

// PinDriver gives the engine bit-level control of the JTAG lines while they
// are owned as general-purpose I/O.
type PinDriver interface {
	// SetTMS drives the TMS line.
	SetTMS(level bool)
	// SetTDI drives the TDI line.
	SetTDI(level bool)
	// TDO samples the TDO line. The port must be configured for continuous
	// sampling; per-bit on-demand sampling costs latency proportional to the
	// scan length.
	TDO() bool
	// PulseTCK produces one full TCK cycle (rising then falling edge).
	PulseTCK()
}

// Accelerator is a byte-oriented serial peripheral that can move whole bytes
// across TDI/TDO far faster than bit-banging. It only drives TDI/TCK and
// samples TDO; it cannot toggle TMS, so it can never produce a
// state-advancing edge.
//
// Claim reassigns the TDI/TDO/TCK pins from general-purpose I/O to the
// peripheral; Release returns them. Pin ownership is transient and
// exclusive: no PinDriver call may be made between Claim and Release.
type Accelerator interface {
	Claim()
	Release()
	// Exchange clocks out and captures len(out) bytes full-duplex,
	// MSB first. len(in) must equal len(out).
	Exchange(out, in []byte) error
}

// Port is the board-side binding of the JTAG interface. Configure prepares
// the pins (directions, continuous TDO sampling, accelerated peripheral
// clocking); Release returns them to their idle function.
type Port interface {
	Pins() PinDriver
	// Accelerator returns the byte-oriented shift peripheral, or nil on
	// boards without one. When absent, every scan runs on the bit-banged
	// path.
	Accelerator() Accelerator
	Configure() error
	Release() error
}
