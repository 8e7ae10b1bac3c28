// Package gattdb declares GATT attribute databases as static data: an ordered
// table of service, characteristic and descriptor records, the linear image
// encoding handed to a GATT server stack, and an external attribute index
// that maps value handles to their backing buffers.
//
// Nothing here speaks ATT. The server stack that consumes a Database performs
// lookups, permission checks and notification delivery; this package only
// guarantees the structural invariants that stack relies on.
package gattdb

import (
	"fmt"
	"strings"

	"tinygo.org/x/bluetooth"
)

// Attribute types and well-known 16-bit UUIDs.
var (
	UUIDPrimaryService = bluetooth.New16BitUUID(0x2800)
	UUIDCharacteristic = bluetooth.New16BitUUID(0x2803)
	UUIDCCCD           = bluetooth.New16BitUUID(0x2902)

	UUIDServiceGAP               = bluetooth.New16BitUUID(0x1800)
	UUIDServiceGATT              = bluetooth.New16BitUUID(0x1801)
	UUIDServiceDeviceInformation = bluetooth.New16BitUUID(0x180A)
	UUIDServiceHeartRate         = bluetooth.New16BitUUID(0x180D)

	UUIDDeviceName             = bluetooth.New16BitUUID(0x2A00)
	UUIDAppearance             = bluetooth.New16BitUUID(0x2A01)
	UUIDModelNumberString      = bluetooth.New16BitUUID(0x2A24)
	UUIDFirmwareRevisionString = bluetooth.New16BitUUID(0x2A26)
	UUIDSoftwareRevisionString = bluetooth.New16BitUUID(0x2A28)
	UUIDManufacturerNameString = bluetooth.New16BitUUID(0x2A29)
	UUIDHeartRateMeasurement   = bluetooth.New16BitUUID(0x2A37)
	UUIDBodySensorLocation     = bluetooth.New16BitUUID(0x2A38)
	UUIDHeartRateControlPoint  = bluetooth.New16BitUUID(0x2A39)
)

var uuidNames = map[bluetooth.UUID]string{
	UUIDPrimaryService:           "Primary Service",
	UUIDCharacteristic:           "Characteristic",
	UUIDCCCD:                     "Client Characteristic Configuration",
	UUIDServiceGAP:               "Generic Access",
	UUIDServiceGATT:              "Generic Attribute",
	UUIDServiceDeviceInformation: "Device Information",
	UUIDServiceHeartRate:         "Heart Rate",
	UUIDDeviceName:               "Device Name",
	UUIDAppearance:               "Appearance",
	UUIDModelNumberString:        "Model Number String",
	UUIDFirmwareRevisionString:   "Firmware Revision String",
	UUIDSoftwareRevisionString:   "Software Revision String",
	UUIDManufacturerNameString:   "Manufacturer Name String",
	UUIDHeartRateMeasurement:     "Heart Rate Measurement",
	UUIDBodySensorLocation:       "Body Sensor Location",
	UUIDHeartRateControlPoint:    "Heart Rate Control Point",
}

// UUIDName returns the assigned name of a well-known UUID, or the UUID in
// string form (short form for 16-bit UUIDs) when it is not known.
func UUIDName(uuid bluetooth.UUID) string {
	if name, ok := uuidNames[uuid]; ok {
		return name
	}
	return shortString(uuid)
}

func shortString(uuid bluetooth.UUID) string {
	if uuid.Is16Bit() {
		return fmt.Sprintf("0x%04X", uuid.Get16Bit())
	}
	return uuid.String()
}

// Kind tags the variant of a Record.
type Kind uint8

const (
	KindPrimaryService Kind = iota
	KindCharacteristic
	KindValue
	KindDescriptor
)

func (k Kind) String() string {
	switch k {
	case KindPrimaryService:
		return "service"
	case KindCharacteristic:
		return "characteristic"
	case KindValue:
		return "value"
	case KindDescriptor:
		return "descriptor"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Properties are the characteristic property bits carried in a
// characteristic declaration.
type Properties uint8

const (
	PropBroadcast                 Properties = 0x01
	PropRead                      Properties = 0x02
	PropWriteWithoutResponse      Properties = 0x04
	PropWrite                     Properties = 0x08
	PropNotify                    Properties = 0x10
	PropIndicate                  Properties = 0x20
	PropAuthenticatedSignedWrites Properties = 0x40
	PropExtendedProperties        Properties = 0x80
)

func (p Properties) Broadcast() bool            { return p&PropBroadcast != 0 }
func (p Properties) Read() bool                 { return p&PropRead != 0 }
func (p Properties) WriteWithoutResponse() bool { return p&PropWriteWithoutResponse != 0 }
func (p Properties) Write() bool                { return p&PropWrite != 0 }
func (p Properties) Notify() bool               { return p&PropNotify != 0 }
func (p Properties) Indicate() bool             { return p&PropIndicate != 0 }

var propNames = []struct {
	bit  Properties
	name string
}{
	{PropBroadcast, "broadcast"},
	{PropRead, "read"},
	{PropWriteWithoutResponse, "write-no-rsp"},
	{PropWrite, "write"},
	{PropNotify, "notify"},
	{PropIndicate, "indicate"},
	{PropAuthenticatedSignedWrites, "signed-write"},
	{PropExtendedProperties, "ext"},
}

func (p Properties) String() string {
	var parts []string
	for _, pn := range propNames {
		if p&pn.bit != 0 {
			parts = append(parts, pn.name)
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "|")
}

// Permissions are server-side access requirements for an attribute. They are
// never sent over the air; the server stack enforces them.
type Permissions uint8

const (
	PermNone          Permissions = 0x00
	PermReadable      Permissions = 0x01
	PermWriteCmd      Permissions = 0x02
	PermWriteReq      Permissions = 0x04
	PermAuthReadable  Permissions = 0x08
	PermReliableWrite Permissions = 0x10
	PermAuthWritable  Permissions = 0x20

	// permUUID128 is set in an encoded permission byte when the attribute
	// type that follows is a full 128-bit UUID.
	permUUID128 Permissions = 0x80

	permWritable = PermWriteCmd | PermWriteReq | PermReliableWrite
)

// Writable reports whether any write permission is set. Writable records
// carry a max length byte in the image.
func (p Permissions) Writable() bool { return p&permWritable != 0 }

var permNames = []struct {
	bit  Permissions
	name string
}{
	{PermReadable, "read"},
	{PermWriteCmd, "write-cmd"},
	{PermWriteReq, "write-req"},
	{PermAuthReadable, "auth-read"},
	{PermReliableWrite, "reliable-write"},
	{PermAuthWritable, "auth-write"},
}

func (p Permissions) String() string {
	var parts []string
	for _, pn := range permNames {
		if p&pn.bit != 0 {
			parts = append(parts, pn.name)
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "|")
}

// Record is one attribute of the database. The fields that apply depend on
// Kind: Properties and ValueHandle are only set on characteristic
// declarations, MaxLen only on writable values and descriptors.
//
// For a service declaration UUID is the service UUID; for a characteristic
// declaration and its value it is the characteristic UUID; for a descriptor it
// is the descriptor type.
type Record struct {
	Handle      uint16
	Kind        Kind
	UUID        bluetooth.UUID
	Properties  Properties
	ValueHandle uint16
	Permissions Permissions
	MaxLen      uint8
}

func (r Record) String() string {
	switch r.Kind {
	case KindCharacteristic:
		return fmt.Sprintf("0x%04X %s %s props=%s value=0x%04X", r.Handle, r.Kind, UUIDName(r.UUID), r.Properties, r.ValueHandle)
	case KindPrimaryService:
		return fmt.Sprintf("0x%04X %s %s", r.Handle, r.Kind, UUIDName(r.UUID))
	default:
		return fmt.Sprintf("0x%04X %s %s perm=%s", r.Handle, r.Kind, UUIDName(r.UUID), r.Permissions)
	}
}
