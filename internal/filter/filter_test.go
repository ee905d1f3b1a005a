package filter

import (
	"bytes"
	"testing"

	"github.com/robert-malhotra/go-h5table/internal/binary"
	"github.com/robert-malhotra/go-h5table/internal/message"
)

// compressible returns data that every codec shrinks.
func compressible(n int) []byte {
	return bytes.Repeat([]byte("energy=1.25TeV;"), n)
}

func TestCodecRoundtrip(t *testing.T) {
	original := compressible(200)

	codecs := []Filter{
		NewDeflate(nil),
		NewDeflate([]uint32{9}),
		NewZstd(nil),
		NewZstd([]uint32{19}),
		NewLZ4(nil),
		NewLZ4([]uint32{9}),
	}

	for _, f := range codecs {
		t.Run(FilterName(f.ID()), func(t *testing.T) {
			encoded, err := f.Encode(original)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if len(encoded) >= len(original) {
				t.Errorf("expected compression, got %d >= %d bytes", len(encoded), len(original))
			}
			decoded, err := f.Decode(encoded)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !bytes.Equal(decoded, original) {
				t.Error("round trip mismatch")
			}
		})
	}
}

func TestFilterIDs(t *testing.T) {
	tests := []struct {
		f  Filter
		id uint16
	}{
		{NewDeflate(nil), message.FilterDeflate},
		{NewShuffle(nil), message.FilterShuffle},
		{NewFletcher32(nil), message.FilterFletcher32},
		{NewZstd(nil), message.FilterZstd},
		{NewLZ4(nil), message.FilterLZ4},
	}
	for _, tt := range tests {
		if tt.f.ID() != tt.id {
			t.Errorf("expected ID %d, got %d", tt.id, tt.f.ID())
		}
	}
}

func TestShuffleUnshuffle(t *testing.T) {
	// Original: [A0 A1 A2 A3] [B0 B1 B2 B3] [C0 C1 C2 C3] [D0 D1 D2 D3]
	// Shuffled: [A0 B0 C0 D0] [A1 B1 C1 D1] [A2 B2 C2 D2] [A3 B3 C3 D3]
	original := []byte{
		0x01, 0x02, 0x03, 0x04,
		0x11, 0x12, 0x13, 0x14,
		0x21, 0x22, 0x23, 0x24,
		0x31, 0x32, 0x33, 0x34,
	}
	shuffled := []byte{
		0x01, 0x11, 0x21, 0x31,
		0x02, 0x12, 0x22, 0x32,
		0x03, 0x13, 0x23, 0x33,
		0x04, 0x14, 0x24, 0x34,
	}

	f := NewShuffle([]uint32{4})
	got, err := f.Encode(original)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(got, shuffled) {
		t.Errorf("Shuffled data mismatch:\ngot:  %v\nwant: %v", got, shuffled)
	}

	unshuffled, err := f.Decode(shuffled)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(unshuffled, original) {
		t.Errorf("Unshuffled data mismatch:\ngot:  %v\nwant: %v", unshuffled, original)
	}
}

func TestShuffleTrailingBytes(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7}
	back := UnshuffleBytes(ShuffleBytes(data, 2), 2)
	if !bytes.Equal(back, data) {
		t.Errorf("got %v, want %v", back, data)
	}
}

func TestShuffleSingleByte(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5}
	result, err := NewShuffle([]uint32{1}).Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(result, data) {
		t.Errorf("Single-byte shuffle should be identity")
	}
}

func TestFletcher32(t *testing.T) {
	data := []byte("test data for checksum")
	f := NewFletcher32(nil)

	encoded, err := f.Encode(data)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(encoded) != len(data)+4 {
		t.Fatalf("expected %d bytes, got %d", len(data)+4, len(encoded))
	}
	checksum := binary.Fletcher32(data)
	if encoded[len(data)] != byte(checksum) {
		t.Error("checksum not stored little-endian")
	}

	output, err := f.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(output, data) {
		t.Errorf("Output mismatch:\ngot:  %v\nwant: %v", output, data)
	}

	encoded[0] ^= 0xFF
	if _, err := f.Decode(encoded); err == nil {
		t.Error("Expected error for corrupted data")
	}
	if _, err := f.Decode([]byte{1}); err == nil {
		t.Error("Expected error for short input")
	}
}

func TestPipelineEmpty(t *testing.T) {
	p, err := NewPipeline(nil)
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	if !p.Empty() {
		t.Error("Expected empty pipeline")
	}

	data := []byte("unchanged")
	stored, mask, err := p.Encode(data)
	if err != nil || mask != 0 || !bytes.Equal(stored, data) {
		t.Errorf("Empty pipeline should pass data through, got %v mask %d err %v", stored, mask, err)
	}
	result, err := p.Decode(data, 0)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(result, data) {
		t.Error("Empty pipeline should pass data through unchanged")
	}
}

func TestPipelineRoundTrip(t *testing.T) {
	fp := &message.FilterPipeline{
		Filters: []message.FilterInfo{
			{ID: message.FilterShuffle},
			{ID: message.FilterZstd, ClientData: []uint32{5}},
			{ID: message.FilterFletcher32},
		},
	}

	p, err := NewPipeline(fp)
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	// Per-column shuffle contributes no stage.
	if p.Len() != 2 {
		t.Errorf("expected 2 stages, got %d", p.Len())
	}

	original := compressible(100)
	stored, mask, err := p.Encode(original)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if mask != 0 {
		t.Errorf("expected no skipped filters, got mask %b", mask)
	}
	back, err := p.Decode(stored, mask)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(back, original) {
		t.Error("pipeline round trip mismatch")
	}
}

func TestPipelineSkipsIncompressible(t *testing.T) {
	fp := &message.FilterPipeline{
		Filters: []message.FilterInfo{
			{ID: message.FilterLZ4},
			{ID: message.FilterFletcher32},
		},
	}
	p, err := NewPipeline(fp)
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}

	tiny := []byte{0x9f}
	stored, mask, err := p.Encode(tiny)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if mask != 0x01 {
		t.Errorf("expected codec to be skipped (mask 0b1), got %b", mask)
	}
	if len(stored) != len(tiny)+4 {
		t.Errorf("expected only the checksum to be added, got %d bytes", len(stored))
	}
	back, err := p.Decode(stored, mask)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(back, tiny) {
		t.Error("round trip mismatch")
	}
}

func TestPipelineUnknownFilter(t *testing.T) {
	required := &message.FilterPipeline{Filters: []message.FilterInfo{{ID: 999}}}
	if _, err := NewPipeline(required); err == nil {
		t.Error("expected error for unknown required filter")
	}

	optional := &message.FilterPipeline{Filters: []message.FilterInfo{{ID: 999, Flags: message.FilterOptional}}}
	p, err := NewPipeline(optional)
	if err != nil {
		t.Fatalf("optional unknown filter should be skipped: %v", err)
	}
	if !p.Empty() {
		t.Error("expected empty pipeline")
	}
}
