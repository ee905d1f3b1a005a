package layout

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/btree"

	"github.com/robert-malhotra/go-h5table/internal/binary"
	"github.com/robert-malhotra/go-h5table/internal/filter"
	"github.com/robert-malhotra/go-h5table/internal/message"
	"github.com/robert-malhotra/go-h5table/internal/object"
)

// DefaultChunkRows is the number of rows per chunk when none is configured.
const DefaultChunkRows = 1024

// ErrRowOutOfRange is returned when a row index is past the end of the table.
var ErrRowOutOfRange = errors.New("row index out of range")

// ChunkRef locates one stored chunk of rows.
type ChunkRef struct {
	FirstRow   uint64
	NumRows    uint32
	FilterMask uint32
	RawSize    uint64
	Address    uint64 // address of the OCHK block
	Stored     uint64 // encoded payload size
}

func chunkLess(a, b ChunkRef) bool { return a.FirstRow < b.FirstRow }

// Chunked stores the rows of one table as a sequence of column-major chunks.
//
// Rows are appended to an in-memory pending chunk; Seal encodes the pending
// rows and Commit moves them into the chunk index once the caller has
// written the encoded block to the file.
type Chunked struct {
	mu sync.Mutex

	row       *message.Datatype
	offsets   []int // byte offset of each column within a row
	rowSize   int
	chunkRows uint32
	pipeline  *filter.Pipeline
	shuffle   bool
	reader    *binary.Reader

	index   *btree.BTreeG[ChunkRef]
	indexed uint64 // rows stored in committed chunks

	pending     []byte
	pendingRows uint32

	cache struct {
		valid    bool
		firstRow uint64
		data     []byte // row-major
	}
}

// NewChunked creates a chunked layout handler for rows of the compound
// datatype row.
func NewChunked(
	row *message.Datatype,
	layout *message.TableLayout,
	filterPipeline *message.FilterPipeline,
	reader *binary.Reader,
) (*Chunked, error) {
	if row == nil || row.Class != message.ClassCompound {
		return nil, fmt.Errorf("table rows must be a compound datatype")
	}

	chunkRows := uint32(DefaultChunkRows)
	if layout != nil && layout.ChunkRows > 0 {
		chunkRows = layout.ChunkRows
	}

	pipeline, err := filter.NewPipeline(filterPipeline)
	if err != nil {
		return nil, fmt.Errorf("creating filter pipeline: %w", err)
	}

	c := &Chunked{
		row:       row,
		offsets:   make([]int, len(row.Members)),
		chunkRows: chunkRows,
		pipeline:  pipeline,
		shuffle:   columnShuffle(filterPipeline),
		reader:    reader,
		index:     btree.NewG[ChunkRef](16, chunkLess),
	}
	for i, m := range row.Members {
		c.offsets[i] = c.rowSize
		c.rowSize += m.ByteSize()
	}
	if c.rowSize != int(row.Size) {
		return nil, fmt.Errorf("compound size %d does not match member sizes %d", row.Size, c.rowSize)
	}

	return c, nil
}

// columnShuffle reports whether the pipeline asks for per-column shuffling.
func columnShuffle(fp *message.FilterPipeline) bool {
	if fp == nil {
		return false
	}
	for _, f := range fp.Filters {
		if f.ID == message.FilterShuffle && len(f.ClientData) == 0 {
			return true
		}
	}
	return false
}

// RowSize returns the size in bytes of one packed row.
func (c *Chunked) RowSize() int { return c.rowSize }

// ChunkRows returns the number of rows per full chunk.
func (c *Chunked) ChunkRows() uint32 { return c.chunkRows }

// Len returns the number of rows, including rows not yet sealed.
func (c *Chunked) Len() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexed + uint64(c.pendingRows)
}

// NumChunks returns the number of committed chunks.
func (c *Chunked) NumChunks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.Len()
}

// Chunks returns the committed chunks in row order.
func (c *Chunked) Chunks() []ChunkRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	refs := make([]ChunkRef, 0, c.index.Len())
	c.index.Ascend(func(ref ChunkRef) bool {
		refs = append(refs, ref)
		return true
	})
	return refs
}

// AddChunk registers a chunk found in the file. Chunks must arrive in row
// order with no gaps.
func (c *Chunked) AddChunk(ref ChunkRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addLocked(ref)
}

func (c *Chunked) addLocked(ref ChunkRef) error {
	if ref.FirstRow != c.indexed {
		return fmt.Errorf("chunk starts at row %d, expected %d", ref.FirstRow, c.indexed)
	}
	if ref.NumRows == 0 {
		return fmt.Errorf("chunk at row %d is empty", ref.FirstRow)
	}
	if ref.RawSize != uint64(ref.NumRows)*uint64(c.rowSize) {
		return fmt.Errorf("chunk at row %d has raw size %d, expected %d",
			ref.FirstRow, ref.RawSize, uint64(ref.NumRows)*uint64(c.rowSize))
	}
	c.index.ReplaceOrInsert(ref)
	c.indexed += uint64(ref.NumRows)
	return nil
}

// Row returns a copy of the packed bytes of row i.
func (c *Chunked) Row(i uint64) ([]byte, error) {
	out, err := c.Rows(i, 1)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Rows returns the packed bytes of n rows starting at start, in row-major
// order.
func (c *Chunked) Rows(start, n uint64) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.indexed + uint64(c.pendingRows)
	if start > total || n > total-start {
		return nil, fmt.Errorf("%w: rows [%d, %d) of %d", ErrRowOutOfRange, start, start+n, total)
	}

	rs := uint64(c.rowSize)
	out := make([]byte, 0, n*rs)
	row := start
	end := start + n

	for row < end && row < c.indexed {
		ref, ok := c.chunkForRow(row)
		if !ok {
			return nil, fmt.Errorf("no chunk holds row %d", row)
		}
		data, err := c.decodedLocked(ref)
		if err != nil {
			return nil, err
		}
		from := row - ref.FirstRow
		to := min(uint64(ref.NumRows), end-ref.FirstRow)
		out = append(out, data[from*rs:to*rs]...)
		row = ref.FirstRow + to
	}

	if row < end {
		from := row - c.indexed
		to := end - c.indexed
		out = append(out, c.pending[from*rs:to*rs]...)
	}

	return out, nil
}

// chunkForRow finds the chunk containing row.
func (c *Chunked) chunkForRow(row uint64) (ChunkRef, bool) {
	var found ChunkRef
	var ok bool
	c.index.DescendLessOrEqual(ChunkRef{FirstRow: row}, func(ref ChunkRef) bool {
		if row < ref.FirstRow+uint64(ref.NumRows) {
			found, ok = ref, true
		}
		return false
	})
	return found, ok
}

// decodedLocked returns the row-major bytes of a chunk, reusing the last
// decoded chunk when possible.
func (c *Chunked) decodedLocked(ref ChunkRef) ([]byte, error) {
	if c.cache.valid && c.cache.firstRow == ref.FirstRow {
		return c.cache.data, nil
	}

	stored, err := c.readChunkData(ref)
	if err != nil {
		return nil, err
	}
	data, err := c.DecodeChunk(stored, ref.NumRows, ref.FilterMask)
	if err != nil {
		return nil, fmt.Errorf("chunk at row %d: %w", ref.FirstRow, err)
	}

	c.cache.valid = true
	c.cache.firstRow = ref.FirstRow
	c.cache.data = data
	return data, nil
}

// readChunkData reads the stored (possibly compressed) chunk payload.
func (c *Chunked) readChunkData(ref ChunkRef) ([]byte, error) {
	if c.reader == nil {
		return nil, fmt.Errorf("no reader for chunk at 0x%x", ref.Address)
	}
	h, err := object.Read(c.reader, ref.Address)
	if err != nil {
		return nil, fmt.Errorf("reading chunk block at 0x%x: %w", ref.Address, err)
	}
	if h.Kind != object.KindChunk {
		return nil, fmt.Errorf("block at 0x%x is %s, not a chunk", ref.Address, h.Kind)
	}
	return h.ChunkData(), nil
}

// DecodeChunk turns a stored chunk payload back into row-major bytes.
func (c *Chunked) DecodeChunk(stored []byte, numRows uint32, filterMask uint32) ([]byte, error) {
	raw, err := c.pipeline.Decode(stored, filterMask)
	if err != nil {
		return nil, err
	}
	want := int(numRows) * c.rowSize
	if len(raw) != want {
		return nil, fmt.Errorf("decoded %d bytes, expected %d", len(raw), want)
	}

	out := make([]byte, want)
	pos := 0
	for i, m := range c.row.Members {
		size := m.ByteSize()
		seg := raw[pos : pos+int(numRows)*size]
		if c.shuffle {
			seg = filter.UnshuffleBytes(seg, int(m.Type.Size))
		}
		for r := 0; r < int(numRows); r++ {
			copy(out[r*c.rowSize+c.offsets[i]:], seg[r*size:(r+1)*size])
		}
		pos += len(seg)
	}
	return out, nil
}
