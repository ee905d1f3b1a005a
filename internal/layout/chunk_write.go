package layout

import (
	"fmt"

	"github.com/robert-malhotra/go-h5table/internal/filter"
	"github.com/robert-malhotra/go-h5table/internal/message"
)

// Append adds one packed row to the pending chunk. It reports whether the
// pending chunk is now full and should be sealed.
func (c *Chunked) Append(row []byte) (bool, error) {
	if len(row) != c.rowSize {
		return false, fmt.Errorf("row is %d bytes, expected %d", len(row), c.rowSize)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = append(c.pending, row...)
	c.pendingRows++
	return c.pendingRows >= c.chunkRows, nil
}

// Pending returns the number of rows not yet committed to a chunk.
func (c *Chunked) Pending() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingRows
}

// Seal encodes the pending rows into a chunk payload. It returns a nil info
// when nothing is pending. The rows stay pending until Commit.
func (c *Chunked) Seal() (*message.ChunkInfo, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pendingRows == 0 {
		return nil, nil, nil
	}

	stored, mask, err := c.EncodeChunk(c.pending, c.pendingRows)
	if err != nil {
		return nil, nil, err
	}

	info := &message.ChunkInfo{
		FirstRow:   c.indexed,
		NumRows:    c.pendingRows,
		FilterMask: mask,
		RawSize:    uint64(len(c.pending)),
	}
	return info, stored, nil
}

// Commit records that the sealed chunk described by info was written as
// the block at addr, and clears the pending rows.
func (c *Chunked) Commit(info *message.ChunkInfo, addr uint64, stored int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if info.NumRows != c.pendingRows || info.FirstRow != c.indexed {
		return fmt.Errorf("commit of rows [%d, %d) does not match pending rows [%d, %d)",
			info.FirstRow, info.FirstRow+uint64(info.NumRows), c.indexed, c.indexed+uint64(c.pendingRows))
	}

	ref := ChunkRef{
		FirstRow:   info.FirstRow,
		NumRows:    info.NumRows,
		FilterMask: info.FilterMask,
		RawSize:    info.RawSize,
		Address:    addr,
		Stored:     uint64(stored),
	}
	if err := c.addLocked(ref); err != nil {
		return err
	}

	// The just-written rows are the most likely to be read back.
	c.cache.valid = true
	c.cache.firstRow = ref.FirstRow
	c.cache.data = c.pending

	c.pending = nil
	c.pendingRows = 0
	return nil
}

// EncodeChunk converts numRows packed rows into the stored chunk payload:
// one segment per column, each optionally shuffled, then run through the
// filter pipeline.
func (c *Chunked) EncodeChunk(rows []byte, numRows uint32) ([]byte, uint32, error) {
	if len(rows) != int(numRows)*c.rowSize {
		return nil, 0, fmt.Errorf("%d bytes do not hold %d rows of %d bytes", len(rows), numRows, c.rowSize)
	}

	columnar := make([]byte, 0, len(rows))
	for i, m := range c.row.Members {
		size := m.ByteSize()
		seg := make([]byte, int(numRows)*size)
		for r := 0; r < int(numRows); r++ {
			start := r*c.rowSize + c.offsets[i]
			copy(seg[r*size:], rows[start:start+size])
		}
		if c.shuffle {
			seg = filter.ShuffleBytes(seg, int(m.Type.Size))
		}
		columnar = append(columnar, seg...)
	}

	return c.pipeline.Encode(columnar)
}
