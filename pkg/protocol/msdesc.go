package protocol

// Microsoft OS 1.0 feature descriptor indices, carried in wIndex of a
// RequestGetMSDescriptor transfer.
const (
	msDescriptorCompatID = 0x0004
	msDescriptorExtProps = 0x0005
)

// msCompatID is the Microsoft OS 1.0 Compatible ID feature descriptor.
// It binds interface 2 to the WinUSB driver so Windows hosts need no
// custom INF.
var msCompatID = []byte{
	// Header: dwLength, bcdVersion, wIndex, bCount, reserved[7]
	0x28, 0x00, 0x00, 0x00,
	0x00, 0x01,
	0x04, 0x00,
	0x01,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,

	// Function: bFirstInterfaceNumber, reserved, compatibleID[8],
	// subCompatibleID[8], reserved[6]
	0x02,
	0x01,
	'W', 'I', 'N', 'U', 'S', 'B', 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// msExtProps is the Microsoft OS 1.0 Extended Properties feature
// descriptor. It publishes the DeviceInterfaceGUID that host software
// enumerates the device by.
var msExtProps = buildExtProps()

func buildExtProps() []byte {
	const guid = "{88bae032-5a81-49f0-bc3d-a4ff138216d6}"

	name := utf16le("DeviceInterfaceGUID")
	data := utf16le(guid)

	prop := make([]byte, 0, 0x84)
	prop = appendLE32(prop, 0x84)              // property section size
	prop = appendLE32(prop, 1)                 // REG_SZ
	prop = append(prop, byte(len(name)), 0x00) // property name length
	prop = append(prop, name...)
	prop = appendLE32(prop, uint32(len(data))) // property data length
	prop = append(prop, data...)

	desc := make([]byte, 0, 0x8E)
	desc = appendLE32(desc, uint32(10+len(prop))) // dwLength
	desc = append(desc, 0x00, 0x01)               // bcdVersion
	desc = append(desc, 0x05, 0x00)               // wIndex
	desc = append(desc, 0x01, 0x00)               // wCount
	return append(desc, prop...)
}

// utf16le encodes an ASCII string as null-terminated UTF-16LE.
func utf16le(s string) []byte {
	out := make([]byte, 0, 2*len(s)+2)
	for i := 0; i < len(s); i++ {
		out = append(out, s[i], 0x00)
	}
	return append(out, 0x00, 0x00)
}

func appendLE32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
