// Package firmware assembles the device: board capabilities, JTAG engine,
// lifecycle coordinator and request dispatcher, driven by a round-robin
// polled scheduler.
package firmware

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/tetherlab/tether/pkg/board"
	"github.com/tetherlab/tether/pkg/jtag"
	"github.com/tetherlab/tether/pkg/lifecycle"
	"github.com/tetherlab/tether/pkg/protocol"
)

// tickPeriod paces the scheduler loop. Every task is a short poll, so one
// millisecond keeps button and port-request latency well inside their
// debounce and filter windows.
const tickPeriod = time.Millisecond

// Firmware owns the polled tasks of the device.
type Firmware struct {
	brd       *board.Board
	eng       *jtag.Engine
	coord     *lifecycle.Coordinator
	disp      *protocol.Dispatcher
	transport Transport
}

// New wires a firmware instance onto the given board. version is the
// string reported to hosts asking for the firmware version.
func New(brd *board.Board, transport Transport, version string) *Firmware {
	eng := jtag.NewEngine(brd.JTAG)
	coord := lifecycle.NewCoordinator(brd, eng)
	return &Firmware{
		brd:       brd,
		eng:       eng,
		coord:     coord,
		disp:      protocol.NewDispatcher(brd, eng, coord, version),
		transport: transport,
	}
}

// Coordinator exposes the lifecycle coordinator, mainly to tests and the
// simulator front end.
func (f *Firmware) Coordinator() *lifecycle.Coordinator { return f.coord }

// Dispatcher exposes the request dispatcher for transports that are driven
// from outside the scheduler loop.
func (f *Firmware) Dispatcher() *protocol.Dispatcher { return f.disp }

// Boot runs the start-up sequence. Holding the button through power-up is
// the recovery path: the FPGA is kept offline and the controller takes the
// shared port, so a wedged bitstream can always be replaced. A normal boot
// configures the FPGA from flash and hands the port to it, which makes the
// reset button restart both chips.
func (f *Firmware) Boot() {
	f.brd.SetLED(board.PatternIdle)

	if f.coord.ButtonHeld() {
		glog.Info("firmware: interrupted start-up, holding FPGA offline")
		if err := f.coord.ForceOffline(); err != nil {
			glog.Errorf("firmware: force offline: %v", err)
		}
		f.coord.TakeOver()
		// The FPGA stays off only until its next configuration request;
		// the gate itself must not stay latched.
		f.coord.PermitConfiguration(true)
		return
	}

	glog.Info("firmware: normal start-up, configuring FPGA from flash")
	f.coord.PermitConfiguration(true)
	if err := f.coord.TriggerReconfiguration(); err != nil {
		glog.Errorf("firmware: reconfiguration: %v", err)
	}
	f.coord.HandOff()
}

// Tick runs one pass of the round-robin scheduler.
func (f *Firmware) Tick() {
	if f.transport != nil {
		f.transport.Task(f.disp)
	}
	f.coord.ButtonTask()
	f.coord.PortRequestTask()
}

// Run boots the device and polls the scheduler until ctx is cancelled.
func (f *Firmware) Run(ctx context.Context) error {
	f.Boot()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		f.Tick()
		f.brd.Clock.Delay(tickPeriod)
	}
}
