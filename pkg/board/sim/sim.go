// Package sim provides an in-memory board for tests and for running the
// firmware loop without hardware. The JTAG chain is strapped in loopback
// (TDI wired to TDO) and every electrical side effect is recorded in an
// event log that tests inspect.
package sim

import (
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/tetherlab/tether/pkg/board"
	"github.com/tetherlab/tether/pkg/jtag"
)

// Clock is a manually advanced clock. Delay advances simulated time instead
// of sleeping, so settle-delay sequencing is observable and instant.
type Clock struct {
	now uint32
}

// NewClock creates a clock at t=0 ms.
func NewClock() *Clock {
	return &Clock{}
}

func (c *Clock) Millis() uint32 {
	return c.now
}

func (c *Clock) Delay(d time.Duration) {
	c.Advance(d)
}

// Advance moves simulated time forward.
func (c *Clock) Advance(d time.Duration) {
	c.now += uint32(d / time.Millisecond)
}

// Sim is a simulated board instance.
type Sim struct {
	profile board.Profile
	clock   board.Clock
	edges   *board.EdgeCounter

	events []string

	// JTAG loopback pin state.
	tms, tdi     bool
	tckPulses    int
	accelClaimed bool

	buttonLevel bool // raw pin level; the button is active low
	adcValue    uint16
	ledPattern  board.Pattern
}

// New creates a simulated board with the given capability profile. Pass a
// sim Clock for tests or a board.SystemClock for wall-time runs.
func New(profile board.Profile, clock board.Clock) *Sim {
	s := &Sim{
		profile:     profile,
		clock:       clock,
		buttonLevel: true, // released
	}
	if profile.PortAdvertisement {
		s.edges = &board.EdgeCounter{}
	}
	return s
}

// Board assembles the capability set for the firmware.
func (s *Sim) Board() *board.Board {
	b := &board.Board{
		Clock:   s.clock,
		JTAG:    (*simJTAGPort)(s),
		Program: (*simProgram)(s),
		PHY:     (*simPHY)(s),
		LED:     (*simLED)(s),
	}
	if s.profile.ConfigGate {
		b.Gate = (*simGate)(s)
	}
	if s.profile.USBSwitch {
		b.Switch = (*simSwitch)(s)
	}
	if s.profile.ADC {
		b.ADC = (*simADC)(s)
	}
	if s.profile.Button {
		b.Button = (*simButton)(s)
	}
	b.PortRequest = s.edges
	return b
}

func (s *Sim) record(event string) {
	glog.V(2).Infof("sim[%s]: %s", s.profile.Name, event)
	s.events = append(s.events, event)
}

// Events returns a copy of the recorded side-effect log.
func (s *Sim) Events() []string {
	return append([]string(nil), s.events...)
}

// TakeEvents drains and returns the recorded side effects.
func (s *Sim) TakeEvents() []string {
	out := s.events
	s.events = nil
	return out
}

// PressButton drives the raw button line low; ReleaseButton returns it high.
func (s *Sim) PressButton()   { s.buttonLevel = false }
func (s *Sim) ReleaseButton() { s.buttonLevel = true }

// PulseRequest produces n rising edges on the port-request pin, the way the
// FPGA's advertisement toggling does. No-op on boards without the pin.
func (s *Sim) PulseRequest(n int) {
	if s.edges == nil {
		return
	}
	for i := 0; i < n; i++ {
		s.edges.Edge()
	}
}

// SetADC sets the raw reading returned by the monitor channel.
func (s *Sim) SetADC(v uint16) { s.adcValue = v }

// LEDPattern reports the most recently selected blink pattern.
func (s *Sim) LEDPattern() board.Pattern { return s.ledPattern }

// TCKPulses reports the total TCK cycles driven through the bit-banged path.
func (s *Sim) TCKPulses() int { return s.tckPulses }

// --- capability views -------------------------------------------------

type simJTAGPort Sim

func (p *simJTAGPort) Pins() jtag.PinDriver { return (*simPins)(p) }

func (p *simJTAGPort) Accelerator() jtag.Accelerator {
	if !p.profile.AcceleratedJTAG {
		return nil
	}
	return (*simAccel)(p)
}

func (p *simJTAGPort) Configure() error {
	(*Sim)(p).record("jtag.configure")
	return nil
}

func (p *simJTAGPort) Release() error {
	(*Sim)(p).record("jtag.release")
	return nil
}

type simPins Sim

func (p *simPins) SetTMS(level bool) { p.tms = level }
func (p *simPins) SetTDI(level bool) { p.tdi = level }
func (p *simPins) TDO() bool         { return p.tdi } // loopback strap
func (p *simPins) PulseTCK()         { p.tckPulses++ }

type simAccel Sim

func (a *simAccel) Claim()   { a.accelClaimed = true }
func (a *simAccel) Release() { a.accelClaimed = false }

func (a *simAccel) Exchange(out, in []byte) error {
	if !a.accelClaimed {
		return fmt.Errorf("sim: accelerated exchange without pin ownership")
	}
	copy(in, out) // loopback strap
	return nil
}

type simProgram Sim

func (p *simProgram) AssertProgram()  { (*Sim)(p).record("program.assert") }
func (p *simProgram) ReleaseProgram() { (*Sim)(p).record("program.release") }

type simGate Sim

func (g *simGate) PermitConfiguration(enable bool) {
	if enable {
		(*Sim)(g).record("gate.permit")
	} else {
		(*Sim)(g).record("gate.block")
	}
}

type simSwitch Sim

func (w *simSwitch) RouteToFPGA()       { (*Sim)(w).record("switch.fpga") }
func (w *simSwitch) RouteToController() { (*Sim)(w).record("switch.mcu") }

type simPHY Sim

func (p *simPHY) Disconnect() { (*Sim)(p).record("phy.disconnect") }
func (p *simPHY) Connect()    { (*Sim)(p).record("phy.connect") }

type simADC Sim

func (a *simADC) Read() uint16 { return a.adcValue }

type simButton Sim

func (b *simButton) Level() bool { return b.buttonLevel }

type simLED Sim

func (l *simLED) SetPattern(p board.Pattern) {
	l.ledPattern = p
	(*Sim)(l).record(fmt.Sprintf("led.pattern:%d", p))
}
