package hrs

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/Hemanth143-hy/heart-rate-server/internal/gattdb"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	s, err := NewState(DefaultDeviceInfo())
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	return s
}

func TestDatabaseServices(t *testing.T) {
	svcs := Database().Services()
	want := []struct {
		handle uint16
		uuid   string
		chars  int
	}{
		{HandleGenericAttribute, gattdb.UUIDServiceGATT.String(), 0},
		{HandleGenericAccess, gattdb.UUIDServiceGAP.String(), 2},
		{HandleHeartRate, gattdb.UUIDServiceHeartRate.String(), 3},
		{HandleDeviceInformation, gattdb.UUIDServiceDeviceInformation.String(), 4},
	}
	if len(svcs) != len(want) {
		t.Fatalf("len(Services()) = %d, want %d", len(svcs), len(want))
	}
	for i, w := range want {
		s := svcs[i]
		if s.Declaration.Handle != w.handle || s.UUID().String() != w.uuid || len(s.Characteristics) != w.chars {
			t.Errorf("Services()[%d] = 0x%04X %s with %d characteristics, want 0x%04X %s with %d",
				i, s.Declaration.Handle, s.UUID(), len(s.Characteristics), w.handle, w.uuid, w.chars)
		}
	}
}

func TestCCCDFollowsNotifyValue(t *testing.T) {
	db := Database()
	records := db.Records()
	for i, r := range records {
		if r.Kind != gattdb.KindCharacteristic || !(r.Properties.Notify() || r.Properties.Indicate()) {
			continue
		}
		if i+2 >= len(records) {
			t.Fatalf("characteristic 0x%04X has no room for a CCCD", r.Handle)
		}
		if d := records[i+2]; d.Kind != gattdb.KindDescriptor || d.UUID != gattdb.UUIDCCCD {
			t.Errorf("record after value 0x%04X = %s, want CCCD", r.ValueHandle, d)
		}
	}

	cccd, ok := db.Lookup(HandleMeasurementCCCD)
	if !ok {
		t.Fatal("Lookup(CCCD) not found")
	}
	want := gattdb.PermReadable | gattdb.PermWriteReq | gattdb.PermAuthWritable | gattdb.PermAuthReadable
	if cccd.Permissions != want {
		t.Errorf("CCCD permissions = %s, want %s", cccd.Permissions, want)
	}
}

func TestControlPoint(t *testing.T) {
	decl, ok := Database().Lookup(HandleControlPoint)
	if !ok {
		t.Fatal("Lookup(control point) not found")
	}
	if decl.Properties != gattdb.PropWrite || decl.ValueHandle != HandleControlPointValue {
		t.Errorf("control point declaration = %s", decl)
	}
	val, _ := Database().Lookup(HandleControlPointValue)
	if !val.Permissions.Writable() {
		t.Errorf("control point value permissions = %s, want writable", val.Permissions)
	}
}

func TestImage(t *testing.T) {
	db := Database()
	img := db.Image()
	if len(img) != ImageLen || db.ImageLen() != ImageLen {
		t.Errorf("len(Image()) = %d, ImageLen() = %d, want %d", len(img), db.ImageLen(), ImageLen)
	}

	head := []byte{
		0x01, 0x00, 0x01, 0x04, 0x00, 0x28, 0x01, 0x18,
		0x14, 0x00, 0x01, 0x04, 0x00, 0x28, 0x00, 0x18,
		0x15, 0x00, 0x01, 0x07, 0x03, 0x28, 0x02, 0x16, 0x00, 0x00, 0x2A,
		0x16, 0x00, 0x01, 0x02, 0x00, 0x2A,
	}
	if !bytes.HasPrefix(img, head) {
		t.Errorf("Image() prefix =\n  got  % X\n  want % X", img[:len(head)], head)
	}

	back, err := gattdb.Decode(img)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !slices.Equal(back.Records(), db.Records()) {
		t.Error("decoded records differ from the database")
	}
	if err := db.VerifyImage(); err != nil {
		t.Errorf("VerifyImage() error = %v", err)
	}
}

func TestIndexHandlesAreValueHandles(t *testing.T) {
	s := newTestState(t)
	if s.Index().Len() != 6 {
		t.Errorf("Index().Len() = %d, want 6", s.Index().Len())
	}
	if err := s.Index().Verify(Database()); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
	values := Database().ValueHandles()
	for _, e := range s.Index().Entries() {
		if !slices.Contains(values, e.Handle) {
			t.Errorf("index handle 0x%04X is not a value handle", e.Handle)
		}
		if e.CurLen() > e.MaxLen() {
			t.Errorf("index handle 0x%04X cur %d > max %d", e.Handle, e.CurLen(), e.MaxLen())
		}
	}
}

func TestIndexEntries(t *testing.T) {
	s := newTestState(t)
	tests := []struct {
		name   string
		handle uint16
		want   []byte
	}{
		{"device name", HandleDeviceNameValue, []byte("HRS")},
		{"appearance", HandleAppearanceValue, []byte{0x00, 0x02}},
		{"manufacturer", HandleManufacturerNameValue, []byte("Cypress")},
		{"model", HandleModelNumberValue, []byte("BLE-103")},
		{"firmware", HandleFirmwareRevisionValue, []byte("1.0.0")},
		{"software", HandleSoftwareRevisionValue, []byte("1.0.1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.Value(tt.handle)
			if !ok {
				t.Fatalf("Value(0x%04X) not found", tt.handle)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Value(0x%04X) = % X, want % X", tt.handle, got, tt.want)
			}
			b, _ := s.Index().Lookup(tt.handle)
			if b.MaxLen() != len(tt.want) {
				t.Errorf("MaxLen() = %d, want %d", b.MaxLen(), len(tt.want))
			}
		})
	}
}

func TestSetValue(t *testing.T) {
	s := newTestState(t)

	if err := s.SetValue(HandleFirmwareRevisionValue, []byte("1.2.3")); err != nil {
		t.Fatalf("SetValue(firmware) error = %v", err)
	}
	if got := s.Info().Firmware; got != "1.2.3" {
		t.Errorf("Info().Firmware = %q, want 1.2.3", got)
	}
	if err := s.SetValue(HandleFirmwareRevisionValue, []byte("1.2.3.4")); !errors.Is(err, gattdb.ErrTooLong) {
		t.Errorf("SetValue(too long) error = %v, want ErrTooLong", err)
	}
	if err := s.SetValue(HandleDeviceNameValue, []byte("ABC")); !errors.Is(err, gattdb.ErrReadOnly) {
		t.Errorf("SetValue(device name) error = %v, want ErrReadOnly", err)
	}
	if err := s.SetValue(HandleControlPointValue, []byte{0x01}); err == nil {
		t.Error("SetValue(control point) should fail, it is not indexed")
	}
}

func TestNewStateRejectsLongStrings(t *testing.T) {
	info := DefaultDeviceInfo()
	info.Model = strings.Repeat("x", MaxStringLen+1)
	if _, err := NewState(info); err == nil {
		t.Error("NewState() with oversized model should fail")
	}
}

func TestGaps(t *testing.T) {
	var got []uint16
	for _, r := range newTestState(t).Gaps() {
		got = append(got, r.Handle)
	}
	want := []uint16{HandleMeasurementValue, HandleMeasurementCCCD, HandleSensorLocationValue, HandleControlPointValue}
	if !slices.Equal(got, want) {
		t.Errorf("Gaps() = %04X, want %04X", got, want)
	}
}

func TestConstants(t *testing.T) {
	if len(DeviceNameBytes()) != DeviceNameLen || DeviceNameLen != 3 {
		t.Errorf("device name length = %d, want 3", len(DeviceNameBytes()))
	}
	if got := AppearanceBytes(); !bytes.Equal(got, []byte{0x00, 0x02}) || len(got) != AppearanceLen {
		t.Errorf("AppearanceBytes() = % X, want 00 02", got)
	}
}
