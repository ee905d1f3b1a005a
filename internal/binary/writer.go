package binary

import (
	"fmt"
	"io"
	"math"
)

// MaxStringLen is the longest string WriteString can encode.
const MaxStringLen = math.MaxUint16

// Writer writes table-file data at an explicit position.
type Writer struct {
	w          io.WriterAt
	offsetSize int
	pos        int64
}

// NewWriter creates a binary writer with the given configuration.
func NewWriter(w io.WriterAt, cfg Config) *Writer {
	return &Writer{
		w:          w,
		offsetSize: cfg.OffsetSize,
	}
}

// At returns a new writer positioned at the given offset.
// The new writer shares the underlying io.WriterAt but has independent position.
func (w *Writer) At(offset int64) *Writer {
	return &Writer{
		w:          w.w,
		offsetSize: w.offsetSize,
		pos:        offset,
	}
}

// Pos returns the current write position.
func (w *Writer) Pos() int64 {
	return w.pos
}

// WriteBytes writes the given bytes at the current position.
func (w *Writer) WriteBytes(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n, err := w.w.WriteAt(data, w.pos)
	w.pos += int64(n)
	return err
}

// WriteUint8 writes an unsigned 8-bit integer.
func (w *Writer) WriteUint8(v uint8) error {
	return w.WriteBytes([]byte{v})
}

// WriteUint16 writes an unsigned 16-bit integer.
func (w *Writer) WriteUint16(v uint16) error {
	buf := make([]byte, 2)
	order.PutUint16(buf, v)
	return w.WriteBytes(buf)
}

// WriteUint32 writes an unsigned 32-bit integer.
func (w *Writer) WriteUint32(v uint32) error {
	buf := make([]byte, 4)
	order.PutUint32(buf, v)
	return w.WriteBytes(buf)
}

// WriteUint64 writes an unsigned 64-bit integer.
func (w *Writer) WriteUint64(v uint64) error {
	buf := make([]byte, 8)
	order.PutUint64(buf, v)
	return w.WriteBytes(buf)
}

// WriteFloat64 writes an IEEE-754 double.
func (w *Writer) WriteFloat64(v float64) error {
	return w.WriteUint64(math.Float64bits(v))
}

// WriteOffset writes a file offset using the configured offset size.
func (w *Writer) WriteOffset(v uint64) error {
	buf := make([]byte, w.offsetSize)
	EncodeUint(buf, v)
	return w.WriteBytes(buf)
}

// WriteString writes s prefixed by its uint16 byte length.
func (w *Writer) WriteString(s string) error {
	if len(s) > MaxStringLen {
		return fmt.Errorf("string of %d bytes exceeds %d", len(s), MaxStringLen)
	}
	if err := w.WriteUint16(uint16(len(s))); err != nil {
		return err
	}
	return w.WriteBytes([]byte(s))
}

// WriteBlob writes data prefixed by its uint32 length.
func (w *Writer) WriteBlob(data []byte) error {
	if uint64(len(data)) > math.MaxUint32 {
		return fmt.Errorf("blob of %d bytes too large", len(data))
	}
	if err := w.WriteUint32(uint32(len(data))); err != nil {
		return err
	}
	return w.WriteBytes(data)
}

// WriteZeros writes n zero bytes.
func (w *Writer) WriteZeros(n int) error {
	if n <= 0 {
		return nil
	}
	return w.WriteBytes(make([]byte, n))
}

// OffsetSize returns the configured offset size in bytes.
func (w *Writer) OffsetSize() int {
	return w.offsetSize
}

// EncodeUint encodes v into buf using len(buf) bytes.
func EncodeUint(buf []byte, v uint64) {
	switch len(buf) {
	case 1:
		buf[0] = uint8(v)
	case 2:
		order.PutUint16(buf, uint16(v))
	case 4:
		order.PutUint32(buf, uint32(v))
	case 8:
		order.PutUint64(buf, v)
	default:
		for i := range buf {
			buf[i] = byte(v >> (8 * i))
		}
	}
}

// StringSize returns the encoded size of s as written by WriteString.
func StringSize(s string) int {
	return 2 + len(s)
}

// BlobSize returns the encoded size of data as written by WriteBlob.
func BlobSize(data []byte) int {
	return 4 + len(data)
}
