package gattdb

import (
	"bytes"
	"errors"
	"slices"
	"testing"

	"tinygo.org/x/bluetooth"
)

func mustBuild(t *testing.T, b *Builder) *Database {
	t.Helper()
	db, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return db
}

func TestImageServiceAndCharacteristic(t *testing.T) {
	db := mustBuild(t, NewBuilder().
		PrimaryService(0x0001, UUIDServiceGATT).
		PrimaryService(0x0014, UUIDServiceGAP).
		Characteristic(0x0015, 0x0016, UUIDDeviceName, PropRead, PermReadable))

	want := []byte{
		// service 0x1801 at handle 0x0001
		0x01, 0x00, 0x01, 0x04, 0x00, 0x28, 0x01, 0x18,
		// service 0x1800 at handle 0x0014
		0x14, 0x00, 0x01, 0x04, 0x00, 0x28, 0x00, 0x18,
		// declaration: props=read, value handle 0x0016, uuid 0x2A00
		0x15, 0x00, 0x01, 0x07, 0x03, 0x28, 0x02, 0x16, 0x00, 0x00, 0x2A,
		// value 0x0016, readable
		0x16, 0x00, 0x01, 0x02, 0x00, 0x2A,
	}
	got := db.Image()
	if !bytes.Equal(got, want) {
		t.Errorf("Image() =\n  got  % X\n  want % X", got, want)
	}
	if db.ImageLen() != len(want) {
		t.Errorf("ImageLen() = %d, want %d", db.ImageLen(), len(want))
	}
}

func TestImageWritableDescriptor(t *testing.T) {
	perm := PermReadable | PermWriteReq | PermAuthWritable | PermAuthReadable
	db := mustBuild(t, NewBuilder().
		PrimaryService(0x0028, UUIDServiceHeartRate).
		Characteristic(0x0029, 0x002A, UUIDHeartRateMeasurement, PropNotify, PermReadable).
		WritableDescriptor(0x002B, UUIDCCCD, perm, 0))

	want := []byte{
		0x28, 0x00, 0x01, 0x04, 0x00, 0x28, 0x0D, 0x18,
		0x29, 0x00, 0x01, 0x07, 0x03, 0x28, 0x10, 0x2A, 0x00, 0x37, 0x2A,
		0x2A, 0x00, 0x01, 0x02, 0x37, 0x2A,
		// writable: max length byte follows the length byte
		0x2B, 0x00, 0x2D, 0x02, 0x00, 0x02, 0x29,
	}
	got := db.Image()
	if !bytes.Equal(got, want) {
		t.Errorf("Image() =\n  got  % X\n  want % X", got, want)
	}
}

func TestImage128BitUUID(t *testing.T) {
	svc, err := bluetooth.ParseUUID("19b10000-e8f2-537e-4f6c-d104768a1214")
	if err != nil {
		t.Fatalf("ParseUUID() error = %v", err)
	}
	chr, err := bluetooth.ParseUUID("19b10001-e8f2-537e-4f6c-d104768a1214")
	if err != nil {
		t.Fatalf("ParseUUID() error = %v", err)
	}

	db := mustBuild(t, NewBuilder().
		PrimaryService(0x0001, svc).
		WritableCharacteristic(0x0002, 0x0003, chr, PropRead|PropWrite, PermReadable|PermWriteReq, 20))

	img := db.Image()
	// service 4+2+16, declaration 4+5+16, value 4+1+16
	if len(img) != 22+25+21 {
		t.Fatalf("len(Image()) = %d, want %d", len(img), 22+25+21)
	}
	b := svc.Bytes()
	if !bytes.Equal(img[6:22], b[:]) {
		t.Errorf("service UUID bytes = % X, want % X", img[6:22], b[:])
	}
	value := img[47:]
	if value[2] != byte(PermReadable|PermWriteReq|permUUID128) {
		t.Errorf("value perm byte = 0x%02X, want 128-bit flag set", value[2])
	}
	if value[3] != 16 || value[4] != 20 {
		t.Errorf("value len/maxlen = %d/%d, want 16/20", value[3], value[4])
	}

	back, err := Decode(img)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !slices.Equal(back.Records(), db.Records()) {
		t.Errorf("Decode() records = %v, want %v", back.Records(), db.Records())
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	db := mustBuild(t, NewBuilder().
		PrimaryService(0x0001, UUIDServiceGATT).
		PrimaryService(0x0028, UUIDServiceHeartRate).
		Characteristic(0x0029, 0x002A, UUIDHeartRateMeasurement, PropNotify, PermReadable).
		WritableDescriptor(0x002B, UUIDCCCD, PermReadable|PermWriteReq, 0).
		WritableCharacteristic(0x002E, 0x002F, UUIDHeartRateControlPoint, PropWrite, PermReadable|PermWriteReq|PermAuthWritable, 1))

	img := db.Image()
	back, err := Decode(img)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !slices.Equal(back.Records(), db.Records()) {
		t.Errorf("Decode() records =\n  got  %v\n  want %v", back.Records(), db.Records())
	}
	if again := back.Image(); !bytes.Equal(again, img) {
		t.Errorf("re-encoded image =\n  got  % X\n  want % X", again, img)
	}
}

func TestDecodeErrors(t *testing.T) {
	base := bluetooth.New16BitUUID(0x1801).Bytes()
	nonCanonical := append([]byte{0x01, 0x00, 0x01, 18, 0x00, 0x28}, base[:]...)

	tests := []struct {
		name  string
		image []byte
		want  error
	}{
		{"short header", []byte{0x01, 0x00, 0x01}, ErrTruncated},
		{"short payload", []byte{0x01, 0x00, 0x01, 0x04, 0x00, 0x28, 0x01}, ErrTruncated},
		{"writable without max length byte", []byte{0x01, 0x00, 0x04, 0x02}, ErrTruncated},
		{"payload too short for type", []byte{0x01, 0x00, 0x01, 0x01, 0x00}, ErrMalformed},
		{"128-bit flag with short type", []byte{0x01, 0x00, 0x81, 0x02, 0x00, 0x2A}, ErrMalformed},
		{"inline value on attribute", []byte{
			0x01, 0x00, 0x01, 0x04, 0x00, 0x28, 0x01, 0x18,
			0x02, 0x00, 0x01, 0x03, 0x00, 0x2A, 0x07,
		}, ErrMalformed},
		{"odd service UUID length", []byte{0x01, 0x00, 0x01, 0x05, 0x00, 0x28, 0x01, 0x18, 0x00}, ErrMalformed},
		{"non-canonical 128-bit UUID", nonCanonical, ErrMalformed},
		{"empty image", nil, ErrEmpty},
		{"value before service", []byte{0x01, 0x00, 0x01, 0x02, 0x00, 0x2A}, ErrNoService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.image)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestVerifyImage(t *testing.T) {
	if err := testHeartRateDB(t).VerifyImage(); err != nil {
		t.Errorf("VerifyImage() error = %v", err)
	}
}
