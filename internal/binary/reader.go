// Package binary provides the low-level encoding primitives of the table file:
// positioned readers and writers over io.ReaderAt/io.WriterAt, length-prefixed
// strings and blobs, and the checksums used to frame superblocks and blocks.
// Every multi-byte value is little-endian.
package binary

import (
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrInvalidSize is returned when an invalid offset or length size is specified.
var ErrInvalidSize = errors.New("invalid offset size: must be 2, 4, or 8")

var order = binary.LittleEndian

// Reader reads table-file data at an explicit position.
type Reader struct {
	r          io.ReaderAt
	offsetSize int
	lengthSize int
	pos        int64
}

// Config holds the encoding parameters, typically taken from the superblock.
//
// LengthSize is only used by HDF5 structures; zero means 8.
type Config struct {
	OffsetSize int // 2, 4, or 8 bytes
	LengthSize int
}

// DefaultConfig returns 8-byte offsets and lengths.
func DefaultConfig() Config {
	return Config{OffsetSize: 8, LengthSize: 8}
}

// Validate checks that the configuration can be used for encoding.
func (c Config) Validate() error {
	switch c.OffsetSize {
	case 2, 4, 8:
	default:
		return fmt.Errorf("%w: %d", ErrInvalidSize, c.OffsetSize)
	}
	switch c.LengthSize {
	case 0, 2, 4, 8:
	default:
		return fmt.Errorf("%w: length size %d", ErrInvalidSize, c.LengthSize)
	}
	return nil
}

// NewReader creates a binary reader with the given configuration.
func NewReader(r io.ReaderAt, cfg Config) *Reader {
	return &Reader{
		r:          r,
		offsetSize: cfg.OffsetSize,
		lengthSize: cmp.Or(cfg.LengthSize, 8),
	}
}

// At returns a new reader positioned at the given offset.
// The new reader shares the underlying io.ReaderAt but has independent position.
func (r *Reader) At(offset int64) *Reader {
	return &Reader{
		r:          r.r,
		offsetSize: r.offsetSize,
		lengthSize: r.lengthSize,
		pos:        offset,
	}
}

// Pos returns the current read position.
func (r *Reader) Pos() int64 {
	return r.pos
}

// ReadBytes reads exactly n bytes from the current position.
// A short read is reported as io.ErrUnexpectedEOF, or io.EOF when nothing was read.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	got, err := r.r.ReadAt(buf, r.pos)
	if got < n {
		if err == nil || errors.Is(err, io.EOF) {
			if got == 0 {
				return nil, io.EOF
			}
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	r.pos += int64(n)
	return buf, nil
}

// ReadUint8 reads an unsigned 8-bit integer.
func (r *Reader) ReadUint8() (uint8, error) {
	buf, err := r.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadUint16 reads an unsigned 16-bit integer.
func (r *Reader) ReadUint16() (uint16, error) {
	buf, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return order.Uint16(buf), nil
}

// ReadUint32 reads an unsigned 32-bit integer.
func (r *Reader) ReadUint32() (uint32, error) {
	buf, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return order.Uint32(buf), nil
}

// ReadUint64 reads an unsigned 64-bit integer.
func (r *Reader) ReadUint64() (uint64, error) {
	buf, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return order.Uint64(buf), nil
}

// ReadFloat64 reads an IEEE-754 double.
func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadOffset reads a file offset using the configured offset size.
func (r *Reader) ReadOffset() (uint64, error) {
	buf, err := r.ReadBytes(r.offsetSize)
	if err != nil {
		return 0, err
	}
	return DecodeUint(buf), nil
}

// ReadLength reads a length using the configured length size.
func (r *Reader) ReadLength() (uint64, error) {
	buf, err := r.ReadBytes(r.lengthSize)
	if err != nil {
		return 0, err
	}
	return DecodeUint(buf), nil
}

// ReadString reads a string prefixed by its uint16 byte length.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUint16()
	if err != nil {
		return "", err
	}
	buf, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// ReadBlob reads a byte slice prefixed by its uint32 length.
func (r *Reader) ReadBlob() ([]byte, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	return r.ReadBytes(int(n))
}

// Skip advances the position by n bytes.
func (r *Reader) Skip(n int64) {
	r.pos += n
}

// OffsetSize returns the configured offset size in bytes.
func (r *Reader) OffsetSize() int {
	return r.offsetSize
}

// LengthSize returns the configured length size in bytes.
func (r *Reader) LengthSize() int {
	return r.lengthSize
}

// IsUndefined reports whether addr is the all-ones "undefined address" for
// the configured offset size.
func (r *Reader) IsUndefined(addr uint64) bool {
	if r.offsetSize >= 8 {
		return addr == math.MaxUint64
	}
	return addr == 1<<(8*r.offsetSize)-1
}

// DecodeUint decodes a 1, 2, 4 or 8 byte unsigned integer.
func DecodeUint(buf []byte) uint64 {
	switch len(buf) {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(order.Uint16(buf))
	case 4:
		return uint64(order.Uint32(buf))
	case 8:
		return order.Uint64(buf)
	default:
		var val uint64
		for i := len(buf) - 1; i >= 0; i-- {
			val = (val << 8) | uint64(buf[i])
		}
		return val
	}
}

// Bytes adapts a byte slice to io.ReaderAt.
type Bytes []byte

// ReadAt implements io.ReaderAt.
func (b Bytes) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
