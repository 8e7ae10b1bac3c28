// Package hrs declares the GATT database of the Heart Rate Sensor peripheral:
// the mandatory Generic Attribute and Generic Access services, the Heart Rate
// service and the Device Information service, plus the peripheral state that
// backs the externally referenced values.
package hrs

import (
	"encoding/binary"

	"github.com/Hemanth143-hy/heart-rate-server/internal/gattdb"
)

// Attribute handles. A Value suffix marks a characteristic value; the bare
// name is its declaration.
const (
	HandleGenericAttribute uint16 = 0x0001

	HandleGenericAccess         uint16 = 0x0014
	HandleDeviceName            uint16 = 0x0015
	HandleDeviceNameValue       uint16 = 0x0016
	HandleAppearance            uint16 = 0x0017
	HandleAppearanceValue       uint16 = 0x0018
	HandleHeartRate             uint16 = 0x0028
	HandleMeasurement           uint16 = 0x0029
	HandleMeasurementValue      uint16 = 0x002A
	HandleMeasurementCCCD       uint16 = 0x002B
	HandleSensorLocation        uint16 = 0x002C
	HandleSensorLocationValue   uint16 = 0x002D
	HandleControlPoint          uint16 = 0x002E
	HandleControlPointValue     uint16 = 0x002F
	HandleDeviceInformation     uint16 = 0x0050
	HandleManufacturerName      uint16 = 0x0051
	HandleManufacturerNameValue uint16 = 0x0052
	HandleModelNumber           uint16 = 0x0053
	HandleModelNumberValue      uint16 = 0x0054
	HandleFirmwareRevision      uint16 = 0x0055
	HandleFirmwareRevisionValue uint16 = 0x0056
	HandleSoftwareRevision      uint16 = 0x0057
	HandleSoftwareRevisionValue uint16 = 0x0058
)

const (
	// DeviceName is the GAP device name, also used as the advertised name.
	DeviceName    = "HRS"
	DeviceNameLen = len(DeviceName)

	// AppearanceGenericTag is the GAP appearance value (category "Tag").
	AppearanceGenericTag uint16 = 0x0200
	AppearanceLen               = 2

	// ImageLen is the size of the encoded database image.
	ImageLen = 193
)

// DeviceNameBytes returns the device name value.
func DeviceNameBytes() []byte { return []byte(DeviceName) }

// AppearanceBytes returns the appearance value, little-endian.
func AppearanceBytes() []byte {
	return binary.LittleEndian.AppendUint16(nil, AppearanceGenericTag)
}

var database = mustBuild()

// Database returns the peripheral's attribute database. It is immutable and
// shared.
func Database() *gattdb.Database { return database }

func mustBuild() *gattdb.Database {
	const (
		read      = gattdb.PermReadable
		cccdPerm  = gattdb.PermReadable | gattdb.PermWriteReq | gattdb.PermAuthWritable | gattdb.PermAuthReadable
		writeAuth = gattdb.PermReadable | gattdb.PermWriteReq | gattdb.PermAuthWritable
	)

	db, err := gattdb.NewBuilder().
		// Mandatory GATT service.
		PrimaryService(HandleGenericAttribute, gattdb.UUIDServiceGATT).

		// Mandatory GAP service; Device Name and Appearance are required.
		PrimaryService(HandleGenericAccess, gattdb.UUIDServiceGAP).
		Characteristic(HandleDeviceName, HandleDeviceNameValue, gattdb.UUIDDeviceName, gattdb.PropRead, read).
		Characteristic(HandleAppearance, HandleAppearanceValue, gattdb.UUIDAppearance, gattdb.PropRead, read).

		// Heart Rate service. Writing 1 to the measurement CCCD enables
		// notifications.
		PrimaryService(HandleHeartRate, gattdb.UUIDServiceHeartRate).
		Characteristic(HandleMeasurement, HandleMeasurementValue, gattdb.UUIDHeartRateMeasurement, gattdb.PropNotify, read).
		WritableDescriptor(HandleMeasurementCCCD, gattdb.UUIDCCCD, cccdPerm, 0).
		Characteristic(HandleSensorLocation, HandleSensorLocationValue, gattdb.UUIDBodySensorLocation, gattdb.PropRead, read).
		// Mandatory when the measurement carries the energy expended field.
		WritableCharacteristic(HandleControlPoint, HandleControlPointValue, gattdb.UUIDHeartRateControlPoint, gattdb.PropWrite, writeAuth, 0).

		// Device Information service.
		PrimaryService(HandleDeviceInformation, gattdb.UUIDServiceDeviceInformation).
		Characteristic(HandleManufacturerName, HandleManufacturerNameValue, gattdb.UUIDManufacturerNameString, gattdb.PropRead, read|gattdb.PermAuthReadable).
		Characteristic(HandleModelNumber, HandleModelNumberValue, gattdb.UUIDModelNumberString, gattdb.PropRead, read).
		Characteristic(HandleFirmwareRevision, HandleFirmwareRevisionValue, gattdb.UUIDFirmwareRevisionString, gattdb.PropRead, read).
		Characteristic(HandleSoftwareRevision, HandleSoftwareRevisionValue, gattdb.UUIDSoftwareRevisionString, gattdb.PropRead, read).
		Build()
	if err != nil {
		panic("hrs: invalid attribute database: " + err.Error())
	}
	return db
}
