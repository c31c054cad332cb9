// Package host is the host-side driver for the debug module. It speaks
// the vendor control-request protocol over USB and exposes the device's
// JTAG and lifecycle operations as plain method calls.
package host

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/google/gousb"
	"github.com/juju/errors"

	"github.com/tetherlab/tether/pkg/jtag"
	"github.com/tetherlab/tether/pkg/protocol"
	"github.com/tetherlab/tether/pkg/tap"
)

const (
	requestOut = uint8(gousb.ControlVendor | gousb.ControlDevice | gousb.ControlOut)
	requestIn  = uint8(gousb.ControlVendor | gousb.ControlDevice | gousb.ControlIn)
)

type knownUSBDevice struct {
	VendorID    gousb.ID
	ProductID   gousb.ID
	Description string
}

var knownDevices = []knownUSBDevice{
	{VendorID: 0x1d50, ProductID: 0x615c, Description: "Tether Debug Module"},
}

// Info describes a detected debug module.
type Info struct {
	VendorID    uint16
	ProductID   uint16
	Description string
}

// Label returns a user-friendly description of the device.
func (i Info) Label() string {
	if i.Description != "" {
		return fmt.Sprintf("%s (%04X:%04X)", i.Description, i.VendorID, i.ProductID)
	}
	return fmt.Sprintf("Device %04X:%04X", i.VendorID, i.ProductID)
}

// Discover enumerates connected debug modules by VID/PID.
func Discover() ([]Info, error) {
	usb := gousb.NewContext()
	defer usb.Close()

	var results []Info
	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		for _, known := range knownDevices {
			if desc.Vendor == known.VendorID && desc.Product == known.ProductID {
				results = append(results, Info{
					VendorID:    uint16(desc.Vendor),
					ProductID:   uint16(desc.Product),
					Description: known.Description,
				})
			}
		}
		return false
	})
	if err != nil && err != gousb.ErrorAccess {
		return results, errors.Annotate(err, "enumerating USB devices")
	}
	return results, nil
}

// Device is an open connection to a debug module.
type Device struct {
	ctx *gousb.Context
	dev *gousb.Device
}

// Open connects to the first debug module found.
func Open() (*Device, error) {
	ctx := gousb.NewContext()
	for _, known := range knownDevices {
		dev, err := ctx.OpenDeviceWithVIDPID(known.VendorID, known.ProductID)
		if err != nil {
			ctx.Close()
			return nil, errors.Annotatef(err, "opening %s", known.Description)
		}
		if dev != nil {
			glog.V(1).Infof("host: opened %s", known.Description)
			return &Device{ctx: ctx, dev: dev}, nil
		}
	}
	ctx.Close()
	return nil, errors.New("no debug module found")
}

// Close releases the device and the USB context.
func (d *Device) Close() error {
	err := d.dev.Close()
	d.ctx.Close()
	return errors.Annotate(err, "closing device")
}

func (d *Device) out(request uint8, value, index uint16, payload []byte) error {
	if _, err := d.dev.Control(requestOut, request, value, index, payload); err != nil {
		return errors.Annotatef(err, "vendor request %#02x", request)
	}
	return nil
}

func (d *Device) in(request uint8, value, index uint16, length int) ([]byte, error) {
	buf := make([]byte, length)
	n, err := d.dev.Control(requestIn, request, value, index, buf)
	if err != nil {
		return nil, errors.Annotatef(err, "vendor request %#02x", request)
	}
	return buf[:n], nil
}

// cutNUL trims a C-style string terminator and anything after it.
func cutNUL(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// ID returns the device's identification string.
func (d *Device) ID() (string, error) {
	b, err := d.in(protocol.RequestGetID, 0, 0, 64)
	if err != nil {
		return "", errors.Trace(err)
	}
	return cutNUL(b), nil
}

// FirmwareVersion returns the firmware version string.
func (d *Device) FirmwareVersion() (string, error) {
	b, err := d.in(protocol.RequestGetFirmwareVersion, 0, 0, 64)
	if err != nil {
		return "", errors.Trace(err)
	}
	return cutNUL(b), nil
}

// USBAPIVersion returns the device's protocol version pair.
func (d *Device) USBAPIVersion() (major, minor uint8, err error) {
	b, err := d.in(protocol.RequestGetUSBAPIVersion, 0, 0, 2)
	if err != nil {
		return 0, 0, errors.Trace(err)
	}
	if len(b) < 2 {
		return 0, 0, errors.Errorf("short API version reply: %d bytes", len(b))
	}
	return b[0], b[1], nil
}

// ADCReading returns the raw value of the device's monitoring ADC.
func (d *Device) ADCReading() (uint16, error) {
	b, err := d.in(protocol.RequestGetADCReading, 0, 0, 2)
	if err != nil {
		return 0, errors.Trace(err)
	}
	if len(b) < 2 {
		return 0, errors.Errorf("short ADC reply: %d bytes", len(b))
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

// SetLEDPattern selects the device's LED blink pattern.
func (d *Device) SetLEDPattern(pattern uint16) error {
	return d.out(protocol.RequestSetLEDPattern, pattern, 0, nil)
}

// TriggerReconfiguration asks the FPGA to reconfigure itself from flash.
func (d *Device) TriggerReconfiguration() error {
	return d.out(protocol.RequestTriggerReconfiguration, 0, 0, nil)
}

// ForceOffline holds the FPGA offline so its flash can be replaced safely.
func (d *Device) ForceOffline() error {
	return d.out(protocol.RequestForceFPGAOffline, 0, 0, nil)
}

// AllowTakeover permits the FPGA to claim the shared USB port.
func (d *Device) AllowTakeover() error {
	return d.out(protocol.RequestAllowFPGATakeoverUSB, 0, 0, nil)
}

// JTAGStart borrows the scan chain.
func (d *Device) JTAGStart() error {
	return d.out(protocol.RequestJTAGStart, 0, 0, nil)
}

// JTAGStop releases the scan chain.
func (d *Device) JTAGStop() error {
	return d.out(protocol.RequestJTAGStop, 0, 0, nil)
}

// JTAGState reads the device's current TAP state.
func (d *Device) JTAGState() (tap.State, error) {
	b, err := d.in(protocol.RequestJTAGGetState, 0, 0, 1)
	if err != nil {
		return 0, errors.Trace(err)
	}
	if len(b) < 1 {
		return 0, errors.New("short TAP state reply")
	}
	return tap.State(b[0]), nil
}

// JTAGGoToState walks the device's TAP to the given state.
func (d *Device) JTAGGoToState(state tap.State) error {
	return d.out(protocol.RequestJTAGGoToState, uint16(state), 0, nil)
}

// JTAGRunClock runs the test clock for the given number of cycles with TMS
// held low.
func (d *Device) JTAGRunClock(cycles uint16) error {
	return d.out(protocol.RequestJTAGRunClock, cycles, 0, nil)
}

// JTAGScan shifts bits through the scan chain and returns the bits
// captured from TDO. out supplies the TDI data; advance leaves the shift
// state on the final bit when set.
func (d *Device) JTAGScan(out []byte, bits int, advance bool) ([]byte, error) {
	if bits <= 0 || (bits+7)/8 > jtag.BufferSize {
		return nil, errors.Errorf("scan length %d bits out of range", bits)
	}
	if len(out) < (bits+7)/8 {
		return nil, errors.Errorf("scan data too short: %d bytes for %d bits", len(out), bits)
	}

	if err := d.out(protocol.RequestJTAGSetOutBuffer, 0, 0, out[:(bits+7)/8]); err != nil {
		return nil, errors.Trace(err)
	}
	var flags uint16
	if advance {
		flags |= protocol.ScanFlagAdvanceState
	}
	if err := d.out(protocol.RequestJTAGScan, uint16(bits), flags, nil); err != nil {
		return nil, errors.Trace(err)
	}
	b, err := d.in(protocol.RequestJTAGGetInBuffer, 0, 0, (bits+7)/8)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return b, nil
}
