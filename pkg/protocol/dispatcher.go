package protocol

import (
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/tetherlab/tether/pkg/board"
	"github.com/tetherlab/tether/pkg/jtag"
	"github.com/tetherlab/tether/pkg/lifecycle"
	"github.com/tetherlab/tether/pkg/tap"
)

// DeviceID is the identification string returned by RequestGetID. Host
// software uses it as a sanity check that it is talking to this firmware.
const DeviceID = "Tether Debug Module"

// ErrUnknownRequest is returned for request codes the dispatcher does not
// implement. The transport answers it with a protocol stall.
var ErrUnknownRequest = errors.New("protocol: unknown request")

// Action is the dispatcher's answer to the setup stage of a transfer.
// Exactly one of Reply and NeedsPayload is meaningful: Reply carries the
// data stage of a device-to-host request, NeedsPayload announces that a
// host-to-device data stage must be collected before the request runs.
type Action struct {
	Reply        []byte
	NeedsPayload bool
}

// Dispatcher routes vendor control requests to the JTAG engine and the
// device lifecycle coordinator. It is driven through the three stages of
// a control transfer: Setup, Data, then Ack.
type Dispatcher struct {
	brd     *board.Board
	eng     *jtag.Engine
	coord   *lifecycle.Coordinator
	version string
}

// NewDispatcher returns a dispatcher bound to the given hardware. version
// is the string reported by RequestGetFirmwareVersion.
func NewDispatcher(brd *board.Board, eng *jtag.Engine, coord *lifecycle.Coordinator, version string) *Dispatcher {
	return &Dispatcher{brd: brd, eng: eng, coord: coord, version: version}
}

// Setup handles the setup stage of a control transfer. For device-to-host
// requests the returned action carries the reply, already truncated to the
// host's wLength. A non-nil error stalls the transfer.
func (d *Dispatcher) Setup(req SetupPacket) (Action, error) {
	act, err := d.setup(req)
	if err != nil {
		glog.V(1).Infof("protocol: request %#02x stalled: %v", req.Request, err)
		return Action{}, err
	}
	if len(act.Reply) > int(req.Length) {
		act.Reply = act.Reply[:req.Length]
	}
	return act, nil
}

func (d *Dispatcher) setup(req SetupPacket) (Action, error) {
	switch req.Request {
	case RequestGetID:
		return Action{Reply: cstring(DeviceID)}, nil

	case RequestGetFirmwareVersion:
		return Action{Reply: cstring(d.version)}, nil

	case RequestGetUSBAPIVersion:
		return Action{Reply: []byte{USBAPIMajor, USBAPIMinor}}, nil

	case RequestGetADCReading:
		var reading uint16
		if d.brd.ADC != nil {
			reading = d.brd.ADC.Read()
		}
		return Action{Reply: []byte{byte(reading >> 8), byte(reading)}}, nil

	case RequestSetLEDPattern:
		d.brd.SetLED(board.Pattern(req.Value))
		return Action{}, nil

	case RequestTriggerReconfiguration:
		if err := d.coord.TriggerReconfiguration(); err != nil {
			return Action{}, fmt.Errorf("protocol: reconfiguration: %w", err)
		}
		return Action{}, nil

	case RequestForceFPGAOffline:
		if err := d.coord.ForceOffline(); err != nil {
			return Action{}, fmt.Errorf("protocol: force offline: %w", err)
		}
		return Action{}, nil

	case RequestAllowFPGATakeoverUSB:
		// The permission itself is granted at the ack stage, once the
		// host has seen the transfer succeed. Granting it here would
		// let the FPGA yank the port out from under this very request.
		return Action{}, nil

	case RequestJTAGStart:
		d.brd.SetLED(board.PatternJTAGConnected)
		if err := d.eng.Init(); err != nil {
			return Action{}, fmt.Errorf("protocol: jtag start: %w", err)
		}
		return Action{}, nil

	case RequestJTAGStop:
		d.brd.SetLED(board.PatternIdle)
		if err := d.eng.Deinit(); err != nil {
			return Action{}, fmt.Errorf("protocol: jtag stop: %w", err)
		}
		return Action{}, nil

	case RequestJTAGClearOutBuffer:
		d.eng.ClearOutBuffer()
		return Action{}, nil

	case RequestJTAGSetOutBuffer:
		if int(req.Length) > jtag.BufferSize {
			return Action{}, fmt.Errorf("protocol: out buffer payload too long: %d bytes", req.Length)
		}
		return Action{NeedsPayload: req.Length > 0}, nil

	case RequestJTAGGetInBuffer:
		return Action{Reply: d.eng.InBuffer(int(req.Length))}, nil

	case RequestJTAGScan:
		advance := req.Index&ScanFlagAdvanceState != 0
		bitbang := req.Index&ScanFlagForceBitbang != 0
		if err := d.eng.Scan(int(req.Value), advance, bitbang); err != nil {
			return Action{}, fmt.Errorf("protocol: scan: %w", err)
		}
		return Action{}, nil

	case RequestJTAGRunClock:
		if err := d.eng.RunClock(int(req.Value)); err != nil {
			return Action{}, fmt.Errorf("protocol: run clock: %w", err)
		}
		return Action{}, nil

	case RequestJTAGGoToState:
		state, err := tap.StateForIndex(req.Value)
		if err != nil {
			return Action{}, fmt.Errorf("protocol: go to state: %w", err)
		}
		if err := d.eng.GoToState(state); err != nil {
			return Action{}, fmt.Errorf("protocol: go to state: %w", err)
		}
		return Action{}, nil

	case RequestJTAGGetState:
		return Action{Reply: []byte{byte(d.eng.State())}}, nil

	case RequestGetMSDescriptor:
		switch req.Index {
		case msDescriptorCompatID:
			return Action{Reply: msCompatID}, nil
		case msDescriptorExtProps:
			return Action{Reply: msExtProps}, nil
		default:
			return Action{}, fmt.Errorf("protocol: unknown MS descriptor index %#04x", req.Index)
		}

	default:
		return Action{}, fmt.Errorf("%w: %#02x", ErrUnknownRequest, req.Request)
	}
}

// Data handles the data stage of a host-to-device transfer whose setup
// stage announced NeedsPayload.
func (d *Dispatcher) Data(req SetupPacket, payload []byte) error {
	switch req.Request {
	case RequestJTAGSetOutBuffer:
		if err := d.eng.SetOutBuffer(payload); err != nil {
			return fmt.Errorf("protocol: set out buffer: %w", err)
		}
		return nil
	default:
		return nil
	}
}

// Ack handles the status stage. Side effects that must not race the
// transfer they arrive on run here.
func (d *Dispatcher) Ack(req SetupPacket) error {
	switch req.Request {
	case RequestAllowFPGATakeoverUSB:
		d.coord.AllowTakeover(true)
		return nil
	default:
		return nil
	}
}

// Handle runs a complete control transfer through all three stages. It is
// the path used by transports that deliver setup and payload together.
func (d *Dispatcher) Handle(req SetupPacket, payload []byte) ([]byte, error) {
	act, err := d.Setup(req)
	if err != nil {
		return nil, err
	}
	if act.NeedsPayload {
		if err := d.Data(req, payload); err != nil {
			return nil, err
		}
	}
	if err := d.Ack(req); err != nil {
		return nil, err
	}
	return act.Reply, nil
}

// cstring returns s with the trailing NUL host software expects from
// string-valued requests.
func cstring(s string) []byte {
	return append([]byte(s), 0x00)
}
