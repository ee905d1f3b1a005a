package filter

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/robert-malhotra/go-h5table/internal/message"
)

// LZ4 implements the LZ4 frame filter.
type LZ4 struct {
	level lz4.CompressionLevel
}

// NewLZ4 creates a new LZ4 filter.
// Client data: [0] = compression level (0 = fast, 1-9)
func NewLZ4(clientData []uint32) *LZ4 {
	level := lz4.Fast
	if len(clientData) > 0 {
		level = lz4Level(clientData[0])
	}
	return &LZ4{level: level}
}

func lz4Level(n uint32) lz4.CompressionLevel {
	switch n {
	case 1:
		return lz4.Level1
	case 2:
		return lz4.Level2
	case 3:
		return lz4.Level3
	case 4:
		return lz4.Level4
	case 5:
		return lz4.Level5
	case 6:
		return lz4.Level6
	case 7:
		return lz4.Level7
	case 8:
		return lz4.Level8
	case 9:
		return lz4.Level9
	default:
		return lz4.Fast
	}
}

func (f *LZ4) ID() uint16 {
	return message.FilterLZ4
}

func (f *LZ4) Encode(input []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(f.level)); err != nil {
		return nil, fmt.Errorf("lz4 writer: %w", err)
	}
	if _, err := w.Write(input); err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (f *LZ4) Decode(input []byte) ([]byte, error) {
	out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(input)))
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	return out, nil
}
