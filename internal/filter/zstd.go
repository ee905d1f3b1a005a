package filter

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/robert-malhotra/go-h5table/internal/message"
)

// DefaultZstdLevel is the medium compression level used for new tables.
const DefaultZstdLevel = 5

// Zstd implements the Zstandard filter. Encoder and decoder are created on
// first use and reused for every chunk of the table.
type Zstd struct {
	level int

	encOnce sync.Once
	enc     *zstd.Encoder
	encErr  error

	decOnce sync.Once
	dec     *zstd.Decoder
	decErr  error
}

// NewZstd creates a new Zstandard filter.
// Client data: [0] = zstd compression level (1-22, default 5)
func NewZstd(clientData []uint32) *Zstd {
	level := DefaultZstdLevel
	if len(clientData) > 0 && clientData[0] >= 1 && clientData[0] <= 22 {
		level = int(clientData[0])
	}
	return &Zstd{level: level}
}

func (f *Zstd) ID() uint16 {
	return message.FilterZstd
}

func (f *Zstd) Encode(input []byte) ([]byte, error) {
	f.encOnce.Do(func() {
		f.enc, f.encErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(f.level)))
	})
	if f.encErr != nil {
		return nil, fmt.Errorf("zstd encoder: %w", f.encErr)
	}
	return f.enc.EncodeAll(input, make([]byte, 0, len(input)/2)), nil
}

func (f *Zstd) Decode(input []byte) ([]byte, error) {
	f.decOnce.Do(func() {
		f.dec, f.decErr = zstd.NewReader(nil)
	})
	if f.decErr != nil {
		return nil, fmt.Errorf("zstd decoder: %w", f.decErr)
	}
	out, err := f.dec.DecodeAll(input, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}
