package message

import (
	"fmt"

	"github.com/robert-malhotra/go-h5table/internal/binary"
)

// TableLayout describes how rows of a table are grouped into chunks.
type TableLayout struct {
	ChunkRows uint32
}

func (m *TableLayout) Type() Type { return TypeTableLayout }

// SerializedSize returns the size in bytes when serialized.
func (m *TableLayout) SerializedSize() int { return 4 }

// Serialize writes the chunk row count.
func (m *TableLayout) Serialize(w *binary.Writer) error {
	return w.WriteUint32(m.ChunkRows)
}

func parseTableLayout(r *binary.Reader) (*TableLayout, error) {
	rows, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, fmt.Errorf("chunk row count is zero")
	}
	return &TableLayout{ChunkRows: rows}, nil
}

// ChunkInfo locates one chunk of rows within its table.
type ChunkInfo struct {
	FirstRow   uint64
	NumRows    uint32
	FilterMask uint32 // bit i set: filter i was skipped when encoding
	RawSize    uint64 // size of the unfiltered column-major data
}

func (m *ChunkInfo) Type() Type { return TypeChunkInfo }

// SerializedSize returns the size in bytes when serialized.
func (m *ChunkInfo) SerializedSize() int { return 24 }

// Serialize writes first row(8) rows(4) mask(4) raw size(8).
func (m *ChunkInfo) Serialize(w *binary.Writer) error {
	if err := w.WriteUint64(m.FirstRow); err != nil {
		return err
	}
	if err := w.WriteUint32(m.NumRows); err != nil {
		return err
	}
	if err := w.WriteUint32(m.FilterMask); err != nil {
		return err
	}
	return w.WriteUint64(m.RawSize)
}

func parseChunkInfo(r *binary.Reader) (*ChunkInfo, error) {
	ci := &ChunkInfo{}
	var err error
	if ci.FirstRow, err = r.ReadUint64(); err != nil {
		return nil, err
	}
	if ci.NumRows, err = r.ReadUint32(); err != nil {
		return nil, err
	}
	if ci.FilterMask, err = r.ReadUint32(); err != nil {
		return nil, err
	}
	if ci.RawSize, err = r.ReadUint64(); err != nil {
		return nil, err
	}
	return ci, nil
}

// ChunkData holds the filtered bytes of a chunk. It is always the last
// message of a chunk block and is stored without a length prefix.
type ChunkData struct {
	Data []byte
}

func (m *ChunkData) Type() Type                       { return TypeChunkData }
func (m *ChunkData) SerializedSize() int              { return len(m.Data) }
func (m *ChunkData) Serialize(w *binary.Writer) error { return w.WriteBytes(m.Data) }
