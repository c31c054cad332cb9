// Package protocol implements the vendor control-request protocol spoken
// over endpoint zero. Requests carry their parameters in the 8-byte setup
// packet; payloads larger than that ride in the data stage.
package protocol

import (
	"encoding/binary"
	"fmt"
)

// Vendor request codes.
const (
	RequestGetID              = 0xA0
	RequestSetLEDPattern      = 0xA1
	RequestGetFirmwareVersion = 0xA2
	RequestGetUSBAPIVersion   = 0xA3
	RequestGetADCReading      = 0xA4

	RequestJTAGStart = 0xBF
	RequestJTAGStop  = 0xBE

	RequestJTAGClearOutBuffer = 0xB0
	RequestJTAGSetOutBuffer   = 0xB1
	RequestJTAGGetInBuffer    = 0xB2
	RequestJTAGScan           = 0xB3
	RequestJTAGRunClock       = 0xB4
	RequestJTAGGoToState      = 0xB5
	RequestJTAGGetState       = 0xB6

	RequestTriggerReconfiguration = 0xC0
	RequestForceFPGAOffline       = 0xC1
	RequestAllowFPGATakeoverUSB   = 0xC2

	RequestGetMSDescriptor = 0xEE
)

// USB API version reported by RequestGetUSBAPIVersion. The minor number
// advances with backward-compatible protocol additions.
const (
	USBAPIMajor = 1
	USBAPIMinor = 2
)

// Scan request wIndex flags.
const (
	ScanFlagAdvanceState = 1 << 0
	ScanFlagForceBitbang = 1 << 1
)

// SetupPacketSize is the wire size of a control setup packet.
const SetupPacketSize = 8

// SetupPacket is the 8-byte header of a control transfer, in the layout
// defined by USB 2.0 section 9.3. Multi-byte fields are little-endian on
// the wire.
type SetupPacket struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
	Length      uint16
}

// ParseSetupPacket decodes an 8-byte setup packet.
func ParseSetupPacket(data []byte) (SetupPacket, error) {
	if len(data) < SetupPacketSize {
		return SetupPacket{}, fmt.Errorf("protocol: setup packet too short: %d bytes", len(data))
	}
	return SetupPacket{
		RequestType: data[0],
		Request:     data[1],
		Value:       binary.LittleEndian.Uint16(data[2:4]),
		Index:       binary.LittleEndian.Uint16(data[4:6]),
		Length:      binary.LittleEndian.Uint16(data[6:8]),
	}, nil
}

// Marshal encodes the setup packet into its wire form.
func (p SetupPacket) Marshal() []byte {
	buf := make([]byte, SetupPacketSize)
	buf[0] = p.RequestType
	buf[1] = p.Request
	binary.LittleEndian.PutUint16(buf[2:4], p.Value)
	binary.LittleEndian.PutUint16(buf[4:6], p.Index)
	binary.LittleEndian.PutUint16(buf[6:8], p.Length)
	return buf
}

// DeviceToHost reports whether the transfer's data stage, if any, flows
// from the device to the host.
func (p SetupPacket) DeviceToHost() bool {
	return p.RequestType&0x80 != 0
}
