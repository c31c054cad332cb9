package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/tetherlab/tether/pkg/board"
	"github.com/tetherlab/tether/pkg/board/sim"
	"github.com/tetherlab/tether/pkg/jtag"
	"github.com/tetherlab/tether/pkg/lifecycle"
	"github.com/tetherlab/tether/pkg/tap"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *sim.Sim) {
	t.Helper()
	s := sim.New(board.DefaultProfile(), sim.NewClock())
	brd := s.Board()
	eng := jtag.NewEngine(brd.JTAG)
	coord := lifecycle.NewCoordinator(brd, eng)
	return NewDispatcher(brd, eng, coord, "1.1.0"), s
}

// in is a device-to-host vendor request.
func in(request uint8, value, index, length uint16) SetupPacket {
	return SetupPacket{RequestType: 0xC0, Request: request, Value: value, Index: index, Length: length}
}

// out is a host-to-device vendor request.
func out(request uint8, value, index, length uint16) SetupPacket {
	return SetupPacket{RequestType: 0x40, Request: request, Value: value, Index: index, Length: length}
}

func TestSetupPacketRoundTrip(t *testing.T) {
	p := out(RequestJTAGScan, 2048, ScanFlagAdvanceState, 0)
	wire := p.Marshal()
	want := []byte{0x40, 0xB3, 0x00, 0x08, 0x01, 0x00, 0x00, 0x00}
	if !bytes.Equal(wire, want) {
		t.Fatalf("Marshal() = % x, want % x", wire, want)
	}
	got, err := ParseSetupPacket(wire)
	if err != nil {
		t.Fatalf("ParseSetupPacket returned error: %v", err)
	}
	if got != p {
		t.Fatalf("round trip = %+v, want %+v", got, p)
	}
}

func TestParseSetupPacketShort(t *testing.T) {
	if _, err := ParseSetupPacket(make([]byte, 7)); err == nil {
		t.Fatal("ParseSetupPacket accepted a 7-byte packet")
	}
}

func TestGetID(t *testing.T) {
	d, _ := newTestDispatcher(t)
	reply, err := d.Handle(in(RequestGetID, 0, 0, 64), nil)
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	want := append([]byte("Tether Debug Module"), 0)
	if !bytes.Equal(reply, want) {
		t.Fatalf("GET_ID reply = %q", reply)
	}
}

func TestGetIDTruncatesToRequestedLength(t *testing.T) {
	d, _ := newTestDispatcher(t)
	reply, err := d.Handle(in(RequestGetID, 0, 0, 6), nil)
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if string(reply) != "Tether" {
		t.Fatalf("truncated reply = %q, want %q", reply, "Tether")
	}
}

func TestGetFirmwareVersion(t *testing.T) {
	d, _ := newTestDispatcher(t)
	reply, err := d.Handle(in(RequestGetFirmwareVersion, 0, 0, 64), nil)
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	want := append([]byte("1.1.0"), 0)
	if !bytes.Equal(reply, want) {
		t.Fatalf("version reply = %q", reply)
	}
}

func TestGetUSBAPIVersion(t *testing.T) {
	d, _ := newTestDispatcher(t)
	reply, err := d.Handle(in(RequestGetUSBAPIVersion, 0, 0, 2), nil)
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if !bytes.Equal(reply, []byte{1, 2}) {
		t.Fatalf("API version = % x, want 01 02", reply)
	}
}

func TestGetADCReadingIsBigEndian(t *testing.T) {
	d, s := newTestDispatcher(t)
	s.SetADC(0x0ABC)
	reply, err := d.Handle(in(RequestGetADCReading, 0, 0, 2), nil)
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if !bytes.Equal(reply, []byte{0x0A, 0xBC}) {
		t.Fatalf("ADC reply = % x, want 0a bc", reply)
	}
}

func TestSetLEDPattern(t *testing.T) {
	d, s := newTestDispatcher(t)
	if _, err := d.Handle(out(RequestSetLEDPattern, uint16(board.PatternFlashConnected), 0, 0), nil); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if s.LEDPattern() != board.PatternFlashConnected {
		t.Fatalf("LED pattern = %d, want %d", s.LEDPattern(), board.PatternFlashConnected)
	}
}

func TestJTAGStartStopDriveLED(t *testing.T) {
	d, s := newTestDispatcher(t)

	if _, err := d.Handle(out(RequestJTAGStart, 0, 0, 0), nil); err != nil {
		t.Fatalf("JTAG_START returned error: %v", err)
	}
	if s.LEDPattern() != board.PatternJTAGConnected {
		t.Fatalf("LED pattern after start = %d, want %d", s.LEDPattern(), board.PatternJTAGConnected)
	}

	if _, err := d.Handle(out(RequestJTAGStop, 0, 0, 0), nil); err != nil {
		t.Fatalf("JTAG_STOP returned error: %v", err)
	}
	if s.LEDPattern() != board.PatternIdle {
		t.Fatalf("LED pattern after stop = %d, want %d", s.LEDPattern(), board.PatternIdle)
	}
}

func TestScanWithoutStartStalls(t *testing.T) {
	d, _ := newTestDispatcher(t)
	if _, err := d.Handle(out(RequestJTAGScan, 8, 0, 0), nil); err == nil {
		t.Fatal("scan before JTAG_START did not stall")
	}
}

func TestSetOutBufferTooLongStalls(t *testing.T) {
	d, _ := newTestDispatcher(t)
	if _, err := d.Setup(out(RequestJTAGSetOutBuffer, 0, 0, 300)); err == nil {
		t.Fatal("300-byte out buffer did not stall at setup")
	}
}

func TestZeroBitScanStalls(t *testing.T) {
	d, _ := newTestDispatcher(t)
	if _, err := d.Handle(out(RequestJTAGStart, 0, 0, 0), nil); err != nil {
		t.Fatalf("JTAG_START returned error: %v", err)
	}
	_, err := d.Handle(out(RequestJTAGScan, 0, 0, 0), nil)
	if !errors.Is(err, jtag.ErrZeroLengthScan) {
		t.Fatalf("zero-bit scan error = %v, want ErrZeroLengthScan", err)
	}
}

func TestGoToInvalidStateStalls(t *testing.T) {
	d, _ := newTestDispatcher(t)
	if _, err := d.Handle(out(RequestJTAGStart, 0, 0, 0), nil); err != nil {
		t.Fatalf("JTAG_START returned error: %v", err)
	}
	if _, err := d.Handle(out(RequestJTAGGoToState, 16, 0, 0), nil); err == nil {
		t.Fatal("state index 16 did not stall")
	}
}

func TestUnknownRequestStalls(t *testing.T) {
	d, _ := newTestDispatcher(t)
	_, err := d.Handle(out(0xB7, 0, 0, 0), nil)
	if !errors.Is(err, ErrUnknownRequest) {
		t.Fatalf("error = %v, want ErrUnknownRequest", err)
	}
}

func TestAllowTakeoverDeferredToAck(t *testing.T) {
	s := sim.New(board.DefaultProfile(), sim.NewClock())
	brd := s.Board()
	eng := jtag.NewEngine(brd.JTAG)
	coord := lifecycle.NewCoordinator(brd, eng)
	d := NewDispatcher(brd, eng, coord, "test")

	req := out(RequestAllowFPGATakeoverUSB, 0, 0, 0)
	if _, err := d.Setup(req); err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}
	if coord.TakeoverAllowed() {
		t.Fatal("takeover granted before the ack stage")
	}
	if err := d.Ack(req); err != nil {
		t.Fatalf("Ack returned error: %v", err)
	}
	if !coord.TakeoverAllowed() {
		t.Fatal("takeover not granted at the ack stage")
	}
}

func TestMSDescriptors(t *testing.T) {
	d, _ := newTestDispatcher(t)

	compat, err := d.Handle(in(RequestGetMSDescriptor, 0, 0x0004, 0xFFFF), nil)
	if err != nil {
		t.Fatalf("compat ID request returned error: %v", err)
	}
	if len(compat) != 0x28 {
		t.Fatalf("compat ID descriptor length = %d, want 40", len(compat))
	}
	if !bytes.Contains(compat, []byte("WINUSB")) {
		t.Fatalf("compat ID descriptor missing WINUSB: % x", compat)
	}

	props, err := d.Handle(in(RequestGetMSDescriptor, 0, 0x0005, 0xFFFF), nil)
	if err != nil {
		t.Fatalf("ext props request returned error: %v", err)
	}
	if len(props) != 0x8E {
		t.Fatalf("ext props descriptor length = %d, want 142", len(props))
	}
	guid := []byte{'{', 0, '8', 0, '8', 0, 'b', 0, 'a', 0, 'e', 0}
	if !bytes.Contains(props, guid) {
		t.Fatal("ext props descriptor missing interface GUID")
	}

	if _, err := d.Handle(in(RequestGetMSDescriptor, 0, 0x0001, 0xFFFF), nil); err == nil {
		t.Fatal("unknown MS descriptor index did not stall")
	}
}

// TestInstructionScanSequence walks the transfer sequence a programmer
// uses to shift one instruction: load the out buffer, park in Shift-IR,
// scan eight bits advancing out of the state, then rest in Pause-IR.
func TestInstructionScanSequence(t *testing.T) {
	d, _ := newTestDispatcher(t)

	steps := []SetupPacket{
		out(RequestJTAGStart, 0, 0, 0),
		out(RequestJTAGClearOutBuffer, 0, 0, 0),
		out(RequestJTAGSetOutBuffer, 0, 0, 1),
		out(RequestJTAGGoToState, uint16(tap.StateShiftIR), 0, 0),
		out(RequestJTAGScan, 8, ScanFlagAdvanceState, 0),
		out(RequestJTAGGoToState, uint16(tap.StatePauseIR), 0, 0),
	}
	payloads := map[uint8][]byte{RequestJTAGSetOutBuffer: {0xC6}}

	for _, req := range steps {
		if _, err := d.Handle(req, payloads[req.Request]); err != nil {
			t.Fatalf("request %#02x returned error: %v", req.Request, err)
		}
	}

	state, err := d.Handle(in(RequestJTAGGetState, 0, 0, 1), nil)
	if err != nil {
		t.Fatalf("GET_STATE returned error: %v", err)
	}
	if len(state) != 1 || tap.State(state[0]) != tap.StatePauseIR {
		t.Fatalf("TAP state = % x, want Pause-IR", state)
	}

	// The simulator straps TDO to TDI, so the instruction comes back.
	inBuf, err := d.Handle(in(RequestJTAGGetInBuffer, 0, 0, 1), nil)
	if err != nil {
		t.Fatalf("GET_IN_BUFFER returned error: %v", err)
	}
	if len(inBuf) != 1 || inBuf[0] != 0xC6 {
		t.Fatalf("in buffer = % x, want c6", inBuf)
	}
}
