package binary

// Buffer is a growable in-memory io.WriterAt and io.ReaderAt. Blocks are
// serialized into a Buffer first so their checksum can be computed before
// they hit the file. It also backs in-memory table files.
type Buffer struct {
	buf []byte
}

// NewBuffer creates a buffer with the given initial capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{buf: make([]byte, 0, capacity)}
}

// WriteAt implements io.WriterAt, growing the buffer as needed.
func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	end := int(off) + len(p)
	if end > len(b.buf) {
		if end > cap(b.buf) {
			grown := make([]byte, end, max(end, 2*cap(b.buf)))
			copy(grown, b.buf)
			b.buf = grown
		} else {
			b.buf = b.buf[:end]
		}
	}
	copy(b.buf[off:], p)
	return len(p), nil
}

// ReadAt implements io.ReaderAt over the buffered data.
func (b *Buffer) ReadAt(p []byte, off int64) (int, error) {
	return Bytes(b.buf).ReadAt(p, off)
}

// Truncate shrinks the buffer to size bytes.
func (b *Buffer) Truncate(size int64) error {
	if size < int64(len(b.buf)) {
		b.buf = b.buf[:size]
	}
	return nil
}

// Bytes returns the buffered data.
func (b *Buffer) Bytes() []byte {
	return b.buf
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	return len(b.buf)
}

// Writer returns a Writer over the buffer starting at offset 0.
func (b *Buffer) Writer(cfg Config) *Writer {
	return NewWriter(b, cfg)
}
