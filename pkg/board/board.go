// Package board describes the hardware a firmware build runs on as a set of
// capabilities resolved once at startup. The lifecycle and protocol code is
// written once against these interfaces; boards lacking a capability leave
// the corresponding field nil and callers degrade to inert or default-value
// behavior instead of erroring.
package board

import (
	"time"

	"github.com/tetherlab/tether/pkg/jtag"
)

// Clock supplies monotonic milliseconds and the short bounded delays the
// electrical sequencing needs. No wait in this system is unbounded.
type Clock interface {
	Millis() uint32
	Delay(d time.Duration)
}

// ProgramControl drives the FPGA's program-trigger line. The line idles
// released (high); pulsing it low requests reconfiguration.
type ProgramControl interface {
	AssertProgram()
	ReleaseProgram()
}

// ConfigGate is the dedicated INIT/PROGRAM gating line present on some board
// revisions. While configuration is not permitted, the FPGA still erases and
// initializes its configuration memory but never completes configuration.
type ConfigGate interface {
	PermitConfiguration(enable bool)
}

// PortSelect routes the shared USB connector's D+/D- lines to one side or
// the other. The mechanism differs per board (an explicit switch line, or
// tri-stating a PHY reset), but the surface is uniform.
type PortSelect interface {
	RouteToFPGA()
	RouteToController()
}

// PortPHY performs soft connect/disconnect of the controller's own USB
// device function, bounding host re-enumeration after a port change.
type PortPHY interface {
	Disconnect()
	Connect()
}

// ADC reads the board's raw analog monitor channel.
type ADC interface {
	Read() uint16
}

// ButtonPin samples the raw PROGRAM button level. The line is active low.
type ButtonPin interface {
	Level() bool
}

// Pattern selects an LED blink pattern; the value is the blink period in
// milliseconds, matching the wire values the host sends with
// SET_LED_PATTERN.
type Pattern uint16

const (
	PatternIdle           Pattern = 500
	PatternJTAGConnected  Pattern = 150
	PatternJTAGUploading  Pattern = 50
	PatternFlashConnected Pattern = 130
)

// LED is the blink-pattern sink. Rendering is board glue and out of scope;
// the firmware only ever selects patterns.
type LED interface {
	SetPattern(p Pattern)
}

// Board aggregates the capabilities of one hardware target. JTAG and Clock
// are mandatory; every other field may be nil when the board lacks the
// feature.
type Board struct {
	Clock Clock
	JTAG  jtag.Port

	Program ProgramControl
	Gate    ConfigGate
	Switch  PortSelect
	PHY     PortPHY
	ADC     ADC
	Button  ButtonPin
	LED     LED

	// PortRequest is incremented by the edge-sensitive interrupt on the
	// FPGA's port-request pin; nil on boards without the shared-port
	// advertisement signal.
	PortRequest *EdgeCounter
}

// SetLED forwards a pattern change if the board has an LED at all.
func (b *Board) SetLED(p Pattern) {
	if b.LED != nil {
		b.LED.SetPattern(p)
	}
}

// SystemClock implements Clock on the host's monotonic clock. Firmware
// builds running against real time (and the sim command) use this; tests
// substitute a manually advanced clock.
type SystemClock struct {
	epoch time.Time
}

// NewSystemClock creates a clock whose millisecond counter starts at zero.
func NewSystemClock() *SystemClock {
	return &SystemClock{epoch: time.Now()}
}

func (c *SystemClock) Millis() uint32 {
	return uint32(time.Since(c.epoch) / time.Millisecond)
}

func (c *SystemClock) Delay(d time.Duration) {
	time.Sleep(d)
}
