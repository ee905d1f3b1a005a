package object

import (
	"errors"
	"io"
	"testing"

	"github.com/robert-malhotra/go-h5table/internal/binary"
	"github.com/robert-malhotra/go-h5table/internal/message"
)

func encodeBlock(t *testing.T, kind Kind, msgs []message.Message) []byte {
	t.Helper()
	data, err := Encode(kind, msgs, binary.DefaultConfig())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return data
}

func TestTableBlockRoundTrip(t *testing.T) {
	row := &message.Datatype{
		Class: message.ClassCompound,
		Size:  8,
		Members: []message.CompoundMember{
			{Name: "energy", Type: &message.Datatype{Class: message.ClassFloatPoint, Size: 8}},
		},
	}
	pipeline := &message.FilterPipeline{Filters: []message.FilterInfo{{ID: message.FilterFletcher32}}}
	msgs := NewTableHeader("/dl1/events", "Storage of EventContainer", row, &message.TableLayout{ChunkRows: 64}, pipeline)

	data := encodeBlock(t, KindTable, msgs)
	h, err := Read(binary.NewReader(binary.Bytes(data), binary.DefaultConfig()), 0)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if h.Kind != KindTable {
		t.Errorf("expected kind OTBL, got %s", h.Kind)
	}
	if h.Size != int64(len(data)) {
		t.Errorf("expected size %d, got %d", len(data), h.Size)
	}
	if h.Path() != "/dl1/events" {
		t.Errorf("unexpected path %q", h.Path())
	}
	if h.Title() != "Storage of EventContainer" {
		t.Errorf("unexpected title %q", h.Title())
	}
	if dt := h.Datatype(); dt == nil || len(dt.Members) != 1 || dt.Members[0].Name != "energy" {
		t.Errorf("unexpected datatype %+v", dt)
	}
	if l := h.TableLayout(); l == nil || l.ChunkRows != 64 {
		t.Errorf("unexpected layout %+v", l)
	}
	if fp := h.FilterPipeline(); fp == nil || !fp.HasFilter(message.FilterFletcher32) {
		t.Errorf("unexpected pipeline %+v", fp)
	}
	if h.Attribute() != nil || h.ChunkInfo() != nil || h.ChunkData() != nil {
		t.Error("table block should not carry attribute or chunk messages")
	}
}

func TestChunkBlockAtOffset(t *testing.T) {
	info := &message.ChunkInfo{FirstRow: 10, NumRows: 2, RawSize: 16}
	block := encodeBlock(t, KindChunk, NewChunkHeader("/t", info, []byte{1, 2, 3}))

	file := append(make([]byte, 7), block...)
	h, err := Read(binary.NewReader(binary.Bytes(file), binary.DefaultConfig()), 7)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if h.Address != 7 {
		t.Errorf("expected address 7, got %d", h.Address)
	}
	if got := h.ChunkInfo(); got == nil || *got != *info {
		t.Errorf("unexpected chunk info %+v", got)
	}
	if string(h.ChunkData()) != "\x01\x02\x03" {
		t.Errorf("unexpected chunk data %v", h.ChunkData())
	}
	if len(h.GetMessages(message.TypeName)) != 1 {
		t.Error("expected exactly one name message")
	}
}

func TestReadCorruptBlock(t *testing.T) {
	data := encodeBlock(t, KindGroup, NewGroupHeader("/dl1"))
	data[len(data)-6] ^= 0xFF

	_, err := Read(binary.NewReader(binary.Bytes(data), binary.DefaultConfig()), 0)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestReadTruncatedBlock(t *testing.T) {
	data := encodeBlock(t, KindGroup, NewGroupHeader("/dl1"))

	_, err := Read(binary.NewReader(binary.Bytes(data[:len(data)-3]), binary.DefaultConfig()), 0)
	if !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated, got %v", err)
	}

	_, err = Read(binary.NewReader(binary.Bytes(data), binary.DefaultConfig()), uint64(len(data)))
	if !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF at end of file, got %v", err)
	}
}

func TestReadInvalidSignature(t *testing.T) {
	data := encodeBlock(t, KindGroup, NewGroupHeader("/"))
	copy(data, "XXXX")

	_, err := Read(binary.NewReader(binary.Bytes(data), binary.DefaultConfig()), 0)
	if !errors.Is(err, ErrInvalidHeader) {
		t.Errorf("expected ErrInvalidHeader, got %v", err)
	}
}

func TestReadUnsupportedVersion(t *testing.T) {
	data := encodeBlock(t, KindGroup, NewGroupHeader("/"))
	data[4] = 9

	_, err := Read(binary.NewReader(binary.Bytes(data), binary.DefaultConfig()), 0)
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestWriteAtPosition(t *testing.T) {
	buf := binary.NewBuffer(0)
	w := buf.Writer(binary.DefaultConfig())

	n1, err := Write(w, KindGroup, NewGroupHeader("/a"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	n2, err := Write(w.At(n1), KindGroup, NewGroupHeader("/a/b"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if int64(buf.Len()) != n1+n2 {
		t.Fatalf("expected %d bytes, got %d", n1+n2, buf.Len())
	}

	r := binary.NewReader(binary.Bytes(buf.Bytes()), binary.DefaultConfig())
	h, err := Read(r, uint64(n1))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if h.Path() != "/a/b" {
		t.Errorf("unexpected path %q", h.Path())
	}
}
