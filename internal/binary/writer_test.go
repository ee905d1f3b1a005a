package binary

import (
	"bytes"
	"math"
	"testing"
)

func TestWriteUint16(t *testing.T) {
	buf := NewBuffer(0)
	w := buf.Writer(DefaultConfig())

	if err := w.WriteUint16(0x0102); err != nil {
		t.Fatalf("WriteUint16 failed: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{0x02, 0x01}) {
		t.Errorf("expected little-endian bytes, got %x", buf.Bytes())
	}
	if w.Pos() != 2 {
		t.Errorf("expected position 2, got %d", w.Pos())
	}
}

func TestWriteOffset(t *testing.T) {
	tests := []struct {
		offsetSize int
		value      uint64
		expected   []byte
	}{
		{2, 0x1234, []byte{0x34, 0x12}},
		{4, 0x12345678, []byte{0x78, 0x56, 0x34, 0x12}},
		{8, 0x0102030405060708, []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}},
	}

	for _, tt := range tests {
		buf := NewBuffer(0)
		w := buf.Writer(Config{OffsetSize: tt.offsetSize})
		if err := w.WriteOffset(tt.value); err != nil {
			t.Fatalf("WriteOffset failed: %v", err)
		}
		if !bytes.Equal(buf.Bytes(), tt.expected) {
			t.Errorf("offset size %d: expected %x, got %x", tt.offsetSize, tt.expected, buf.Bytes())
		}
	}
}

func TestWriterAt(t *testing.T) {
	buf := NewBuffer(0)
	w := buf.Writer(DefaultConfig())

	if err := w.At(4).WriteUint8(0xAA); err != nil {
		t.Fatalf("WriteUint8 failed: %v", err)
	}
	if buf.Len() != 5 {
		t.Fatalf("expected buffer to grow to 5 bytes, got %d", buf.Len())
	}
	if !bytes.Equal(buf.Bytes(), []byte{0, 0, 0, 0, 0xAA}) {
		t.Errorf("unexpected buffer contents %x", buf.Bytes())
	}
	if w.Pos() != 0 {
		t.Errorf("original writer moved to %d", w.Pos())
	}
}

func TestWriterRoundTrip(t *testing.T) {
	buf := NewBuffer(16)
	w := buf.Writer(DefaultConfig())

	w.WriteUint8(7)
	w.WriteUint32(0xDEADBEEF)
	w.WriteUint64(1 << 40)
	w.WriteFloat64(math.Pi)
	w.WriteZeros(3)
	w.WriteString("TeV")

	r := NewReader(Bytes(buf.Bytes()), DefaultConfig())
	if v, _ := r.ReadUint8(); v != 7 {
		t.Errorf("uint8: got %d", v)
	}
	if v, _ := r.ReadUint32(); v != 0xDEADBEEF {
		t.Errorf("uint32: got 0x%x", v)
	}
	if v, _ := r.ReadUint64(); v != 1<<40 {
		t.Errorf("uint64: got %d", v)
	}
	if v, _ := r.ReadFloat64(); v != math.Pi {
		t.Errorf("float64: got %v", v)
	}
	r.Skip(3)
	if s, _ := r.ReadString(); s != "TeV" {
		t.Errorf("string: got %q", s)
	}
}

func TestEncodeDecodeUint(t *testing.T) {
	for _, size := range []int{1, 2, 3, 4, 8} {
		buf := make([]byte, size)
		want := uint64(0x0102030405060708) & (1<<(8*size) - 1)
		if size == 8 {
			want = 0x0102030405060708
		}
		EncodeUint(buf, want)
		if buf[0] != 0x08 {
			t.Errorf("size %d: low byte first expected, got %x", size, buf)
		}
		if got := DecodeUint(buf); got != want {
			t.Errorf("size %d: got 0x%x, want 0x%x", size, got, want)
		}
	}
}

func TestWriteStringTooLong(t *testing.T) {
	w := NewBuffer(0).Writer(DefaultConfig())
	long := string(make([]byte, MaxStringLen+1))
	if err := w.WriteString(long); err == nil {
		t.Error("expected error for oversized string")
	}
}

func TestEncodedSizes(t *testing.T) {
	if StringSize("abc") != 5 {
		t.Errorf("StringSize: got %d", StringSize("abc"))
	}
	if BlobSize([]byte{1, 2}) != 6 {
		t.Errorf("BlobSize: got %d", BlobSize([]byte{1, 2}))
	}
}
