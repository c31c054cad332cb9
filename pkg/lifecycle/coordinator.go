// Package lifecycle coordinates the FPGA's configuration state, ownership
// of the shared USB port, the port-request signal filter, and the PROGRAM
// button. It is the only writer of that state; the dispatcher and LED code
// read it through accessors.
package lifecycle

import (
	"time"

	"github.com/golang/glog"

	"github.com/tetherlab/tether/pkg/board"
	"github.com/tetherlab/tether/pkg/jtag"
	"github.com/tetherlab/tether/pkg/tap"
)

// iscEnable is the FPGA instruction opcode that enables offline
// configuration mode, halting the device without a physical pin toggle.
const iscEnable = 0xC6

const (
	// portSettle bounds host re-enumeration after the shared port moves.
	portSettle = 100 * time.Millisecond
	// programHold is the minimum low time of the program-trigger pulse.
	programHold = 1 * time.Millisecond
	// gateSettle guards against a program-trigger falling edge while the
	// FPGA is mid-initialization, which the FPGA would discard.
	gateSettle = 1 * time.Millisecond
	// settleClocks is the TCK settle run after a TAP reset; two cycles are
	// sufficient per the hardware note.
	settleClocks = 2

	// requestWindowMillis is the port-request filter window.
	requestWindowMillis = 200
	// requestThreshold is the edge count a window must exceed before the
	// request is treated as genuine rather than electrical noise.
	requestThreshold = 2
)

// FPGAState is the configuration state of the attached FPGA.
type FPGAState uint8

const (
	FPGAOffline FPGAState = iota
	FPGAConfiguring
	FPGAOnline
)

func (s FPGAState) String() string {
	switch s {
	case FPGAOffline:
		return "offline"
	case FPGAConfiguring:
		return "configuring"
	case FPGAOnline:
		return "online"
	}
	return "invalid"
}

// PortOwner identifies which side currently owns the shared USB port.
type PortOwner uint8

const (
	OwnerUnknown PortOwner = iota
	OwnerController
	OwnerFPGA
)

func (o PortOwner) String() string {
	switch o {
	case OwnerUnknown:
		return "unknown"
	case OwnerController:
		return "controller"
	case OwnerFPGA:
		return "fpga"
	}
	return "invalid"
}

// Coordinator owns the device lifecycle state. All methods run from the
// polled loop only; the sole interrupt-shared value is the edge counter on
// the board.
type Coordinator struct {
	brd *board.Board
	eng *jtag.Engine

	fpga            FPGAState
	owner           PortOwner
	takeoverAllowed bool

	requesting  bool
	windowStart uint32

	btn debouncer
}

// NewCoordinator creates a coordinator for the given board and scan engine.
// The FPGA starts Offline and the port owner Unknown until boot sequencing
// decides otherwise.
func NewCoordinator(brd *board.Board, eng *jtag.Engine) *Coordinator {
	return &Coordinator{
		brd:         brd,
		eng:         eng,
		windowStart: brd.Clock.Millis(),
		btn:         newDebouncer(),
	}
}

// FPGAState reports the FPGA's configuration state.
func (c *Coordinator) FPGAState() FPGAState { return c.fpga }

// PortOwner reports the current shared-port owner.
func (c *Coordinator) PortOwner() PortOwner { return c.owner }

// TakeoverAllowed reports whether the host has granted the FPGA permission
// to take the shared port.
func (c *Coordinator) TakeoverAllowed() bool { return c.takeoverAllowed }

// AllowTakeover grants or revokes the FPGA's permission to claim the shared
// port through the port-request signal.
func (c *Coordinator) AllowTakeover(allow bool) {
	glog.V(1).Infof("lifecycle: takeover permission -> %v", allow)
	c.takeoverAllowed = allow
}

// PermitConfiguration opens or closes the configuration gate. While closed,
// the FPGA still erases and initializes its configuration memory but cannot
// complete configuration. Idempotent; inert on boards without the gating
// line.
func (c *Coordinator) PermitConfiguration(enable bool) {
	if c.brd.Gate == nil {
		return
	}
	c.brd.Gate.PermitConfiguration(enable)
	c.brd.Clock.Delay(gateSettle)
}

// TriggerReconfiguration asks the FPGA to clear its configuration and
// reconfigure itself from flash. The TAP is reset first: left in certain
// states, the program-trigger pulse is ignored.
func (c *Coordinator) TriggerReconfiguration() error {
	glog.V(1).Info("lifecycle: triggering FPGA reconfiguration")

	if err := c.tapReset(); err != nil {
		return err
	}

	if c.brd.Gate != nil {
		c.fpga = FPGAConfiguring
	}
	if c.brd.Program != nil {
		c.brd.Program.AssertProgram()
		c.brd.Clock.Delay(programHold)
		c.brd.Program.ReleaseProgram()
	}

	c.fpga = FPGAOnline
	return nil
}

func (c *Coordinator) tapReset() error {
	if err := c.eng.Init(); err != nil {
		return err
	}
	if err := c.eng.GoToState(tap.StateTestLogicReset); err != nil {
		return err
	}
	if err := c.eng.RunClock(settleClocks); err != nil {
		return err
	}
	return c.eng.Deinit()
}

// ForceOffline holds the FPGA in an unconfigured state. Boards with a
// dedicated gating line simply assert it; others issue the offline-mode
// instruction sequence over JTAG. Either way the FPGA ends Offline and the
// takeover permission is cleared: the FPGA can never regain the port
// implicitly after being forced offline.
func (c *Coordinator) ForceOffline() error {
	glog.V(1).Info("lifecycle: forcing FPGA offline")

	var err error
	if c.brd.Gate != nil {
		c.brd.Gate.PermitConfiguration(false)
	} else {
		err = c.forceOfflineJTAG()
	}

	c.fpga = FPGAOffline
	c.takeoverAllowed = false
	return err
}

// forceOfflineJTAG loads the offline-mode instruction and shifts a single
// zero data bit, leaving the FPGA halted with the TAP parked in
// Run-Test/Idle.
func (c *Coordinator) forceOfflineJTAG() error {
	steps := []func() error{
		c.eng.Init,
		func() error { return c.eng.GoToState(tap.StateTestLogicReset) },
		func() error { return c.eng.GoToState(tap.StateShiftIR) },
		func() error { return c.eng.SetOutBuffer([]byte{iscEnable}) },
		func() error { return c.eng.Scan(8, true, false) },
		func() error { return c.eng.GoToState(tap.StatePauseIR) },
		func() error { return c.eng.GoToState(tap.StateShiftDR) },
		func() error { return c.eng.SetOutBuffer([]byte{0x00}) },
		func() error { return c.eng.Scan(8, true, false) },
		func() error { return c.eng.GoToState(tap.StatePauseDR) },
		func() error { return c.eng.GoToState(tap.StateRunTestIdle) },
		func() error { return c.eng.RunClock(settleClocks) },
		c.eng.Deinit,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// HandOff routes the shared USB port to the FPGA. No-op when the FPGA
// already owns it. The controller disconnects first and waits out the
// settle delay so the host sees a clean detach before the lines move.
func (c *Coordinator) HandOff() {
	if c.owner == OwnerFPGA {
		return
	}
	glog.V(1).Info("lifecycle: handing shared port to FPGA")

	if c.brd.PHY != nil {
		c.brd.PHY.Disconnect()
	}
	c.brd.Clock.Delay(portSettle)
	if c.brd.Switch != nil {
		c.brd.Switch.RouteToFPGA()
	}
	c.owner = OwnerFPGA
}

// TakeOver routes the shared USB port back to the controller. No-op when
// already owned. Reconnecting after the settle delay bounds host
// re-enumeration to a few seconds.
func (c *Coordinator) TakeOver() {
	if c.owner == OwnerController {
		return
	}
	glog.V(1).Info("lifecycle: taking shared port from FPGA")

	if c.brd.Switch != nil {
		c.brd.Switch.RouteToController()
	}
	if c.brd.PHY != nil {
		c.brd.PHY.Disconnect()
	}
	c.brd.Clock.Delay(portSettle)
	if c.brd.PHY != nil {
		c.brd.PHY.Connect()
	}
	c.owner = OwnerController
}

// RequestingPort reports the filtered port-request decision for the most
// recently completed window.
func (c *Coordinator) RequestingPort() bool { return c.requesting }

// PortRequestTask runs the windowed port-request filter and applies the
// resulting ownership policy. Every 200 ms the edge counter is drained and
// compared against the noise threshold; a genuine request hands the port
// off only while the host has granted permission, and the port reverts to
// the controller whenever no request is asserted. That default is the
// fail-safe against a silently unresponsive FPGA.
func (c *Coordinator) PortRequestTask() {
	if c.brd.PortRequest == nil {
		return
	}

	now := c.brd.Clock.Millis()
	if now-c.windowStart >= requestWindowMillis {
		c.windowStart = now
		edges := c.brd.PortRequest.Drain()
		asserted := edges > requestThreshold
		if asserted != c.requesting {
			glog.V(1).Infof("lifecycle: port request %v (%d edges)", asserted, edges)
		}
		c.requesting = asserted
	}

	if c.requesting {
		if c.takeoverAllowed {
			c.HandOff()
		}
	} else {
		c.TakeOver()
	}
}

// ButtonTask polls the PROGRAM button. A debounced press while the FPGA is
// online forces it offline and seizes the port; while offline, it
// reconfigures from flash and re-enables the request-driven hand-off path.
func (c *Coordinator) ButtonTask() {
	if c.brd.Button == nil {
		return
	}
	if !c.btn.pressed(c.brd.Clock.Millis(), c.brd.Button.Level()) {
		return
	}

	glog.V(1).Infof("lifecycle: button press (fpga %s)", c.fpga)
	if c.fpga == FPGAOnline {
		if err := c.ForceOffline(); err != nil {
			glog.Errorf("lifecycle: force offline failed: %v", err)
		}
		c.TakeOver()
	} else {
		c.PermitConfiguration(true)
		if err := c.TriggerReconfiguration(); err != nil {
			glog.Errorf("lifecycle: reconfiguration failed: %v", err)
		}
		c.AllowTakeover(true)
	}
}

// ButtonHeld reports the raw (undebounced) button level, used only by boot
// sequencing to detect an interrupted start-up.
func (c *Coordinator) ButtonHeld() bool {
	return c.brd.Button != nil && !c.brd.Button.Level()
}
