package binary

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func TestReaderReadUint8(t *testing.T) {
	r := NewReader(Bytes{0x42, 0xFF}, DefaultConfig())

	v, err := r.ReadUint8()
	if err != nil {
		t.Fatalf("ReadUint8 failed: %v", err)
	}
	if v != 0x42 {
		t.Errorf("expected 0x42, got 0x%02x", v)
	}

	v, err = r.ReadUint8()
	if err != nil {
		t.Fatalf("ReadUint8 failed: %v", err)
	}
	if v != 0xFF {
		t.Errorf("expected 0xFF, got 0x%02x", v)
	}
}

func TestReaderReadUint32(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(0x12345678))
	binary.Write(&buf, binary.LittleEndian, uint32(0xDEADBEEF))

	r := NewReader(Bytes(buf.Bytes()), DefaultConfig())

	for _, want := range []uint32{0x12345678, 0xDEADBEEF} {
		v, err := r.ReadUint32()
		if err != nil {
			t.Fatalf("ReadUint32 failed: %v", err)
		}
		if v != want {
			t.Errorf("expected 0x%08x, got 0x%08x", want, v)
		}
	}
}

func TestReaderReadOffset(t *testing.T) {
	tests := []struct {
		name       string
		offsetSize int
		data       []byte
		expected   uint64
	}{
		{"2-byte", 2, []byte{0x34, 0x12}, 0x1234},
		{"4-byte", 4, []byte{0x78, 0x56, 0x34, 0x12}, 0x12345678},
		{"8-byte", 8, []byte{0xF0, 0xDE, 0xBC, 0x9A, 0x78, 0x56, 0x34, 0x12}, 0x123456789ABCDEF0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{OffsetSize: tt.offsetSize}
			r := NewReader(Bytes(tt.data), cfg)

			v, err := r.ReadOffset()
			if err != nil {
				t.Fatalf("ReadOffset failed: %v", err)
			}
			if v != tt.expected {
				t.Errorf("expected 0x%x, got 0x%x", tt.expected, v)
			}
		})
	}
}

func TestReaderAt(t *testing.T) {
	r := NewReader(Bytes{0x00, 0x01, 0x02, 0x03}, DefaultConfig())

	v, err := r.At(3).ReadUint8()
	if err != nil {
		t.Fatalf("ReadUint8 failed: %v", err)
	}
	if v != 0x03 {
		t.Errorf("expected 0x03, got 0x%02x", v)
	}

	// Original reader should be unaffected
	v, err = r.ReadUint8()
	if err != nil {
		t.Fatalf("ReadUint8 failed: %v", err)
	}
	if v != 0x00 {
		t.Errorf("expected 0x00, got 0x%02x", v)
	}
}

func TestReaderShortRead(t *testing.T) {
	r := NewReader(Bytes{0x01, 0x02}, DefaultConfig())

	if _, err := r.ReadUint32(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected io.ErrUnexpectedEOF, got %v", err)
	}
	if r.Pos() != 0 {
		t.Errorf("failed read moved position to %d", r.Pos())
	}

	if _, err := r.At(2).ReadUint8(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF at end of data, got %v", err)
	}
}

func TestReaderStringAndBlob(t *testing.T) {
	buf := NewBuffer(0)
	w := buf.Writer(DefaultConfig())
	if err := w.WriteString("energy_UNIT"); err != nil {
		t.Fatalf("WriteString failed: %v", err)
	}
	if err := w.WriteBlob([]byte{1, 2, 3}); err != nil {
		t.Fatalf("WriteBlob failed: %v", err)
	}
	if err := w.WriteBlob(nil); err != nil {
		t.Fatalf("WriteBlob failed: %v", err)
	}

	r := NewReader(Bytes(buf.Bytes()), DefaultConfig())
	s, err := r.ReadString()
	if err != nil {
		t.Fatalf("ReadString failed: %v", err)
	}
	if s != "energy_UNIT" {
		t.Errorf("expected energy_UNIT, got %q", s)
	}
	b, err := r.ReadBlob()
	if err != nil {
		t.Fatalf("ReadBlob failed: %v", err)
	}
	if !bytes.Equal(b, []byte{1, 2, 3}) {
		t.Errorf("blob mismatch: %v", b)
	}
	b, err = r.ReadBlob()
	if err != nil {
		t.Fatalf("ReadBlob failed: %v", err)
	}
	if len(b) != 0 {
		t.Errorf("expected empty blob, got %v", b)
	}
	if r.Pos() != int64(buf.Len()) {
		t.Errorf("expected position %d, got %d", buf.Len(), r.Pos())
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	bad := Config{OffsetSize: 3}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("expected ErrInvalidSize, got %v", err)
	}
}
