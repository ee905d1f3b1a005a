package layout

import (
	"fmt"
	"sync"

	"github.com/robert-malhotra/go-h5table/internal/binary"
	"github.com/robert-malhotra/go-h5table/internal/btree"
	"github.com/robert-malhotra/go-h5table/internal/dtype"
	"github.com/robert-malhotra/go-h5table/internal/filter"
	"github.com/robert-malhotra/go-h5table/internal/message"
)

// contiguousSlab is the number of records read at once from contiguous
// and compact storage.
const contiguousSlab = 4096

// H5Rows serves the records of a one-dimensional HDF5 compound dataset as
// packed rows. It is read-only.
//
// Chunked datasets are read through their version 1 chunk B-tree and the
// HDF5 filter pipeline. Chunks the index does not list were never written
// and read as zeros, which is the HDF5 default fill value.
type H5Rows struct {
	mu sync.Mutex

	conv      *dtype.RowConverter
	nrows     uint64
	chunkRows uint32
	class     message.H5LayoutClass
	address   uint64
	compact   []byte
	index     *btree.ChunkIndex
	pipeline  *filter.Pipeline
	reader    *binary.Reader

	cache struct {
		valid    bool
		firstRow uint64
		data     []byte
	}
}

// NewH5Rows creates the row source of a dataset with nrows records stored
// as lay describes.
func NewH5Rows(conv *dtype.RowConverter, nrows uint64, lay *message.H5Layout, fp *message.FilterPipeline, r *binary.Reader) (*H5Rows, error) {
	h := &H5Rows{
		conv:    conv,
		nrows:   nrows,
		class:   lay.Class,
		address: lay.Address,
		reader:  r,
	}
	switch lay.Class {
	case message.H5Compact:
		h.compact = lay.Data
		h.chunkRows = contiguousSlab
	case message.H5Contiguous:
		h.chunkRows = contiguousSlab
	case message.H5Chunked:
		if len(lay.ChunkDims) != 1 || lay.ChunkDims[0] == 0 {
			return nil, fmt.Errorf("chunk shape %v is not one-dimensional", lay.ChunkDims)
		}
		h.chunkRows = lay.ChunkDims[0]
		var err error
		if h.index, err = btree.ReadChunkIndex(r, lay.Address, 1); err != nil {
			return nil, fmt.Errorf("reading chunk index: %w", err)
		}
		if h.pipeline, err = filter.NewH5Pipeline(fp); err != nil {
			return nil, fmt.Errorf("creating filter pipeline: %w", err)
		}
	default:
		return nil, fmt.Errorf("%s storage not supported", lay.Class)
	}
	return h, nil
}

// RowType returns the packed datatype of a row.
func (h *H5Rows) RowType() *message.Datatype { return h.conv.Row() }

// RowSize returns the size in bytes of one packed row.
func (h *H5Rows) RowSize() int { return int(h.conv.Row().Size) }

// ChunkRows returns the rows per chunk, or the read size for unchunked
// storage.
func (h *H5Rows) ChunkRows() uint32 { return h.chunkRows }

// Len returns the number of rows.
func (h *H5Rows) Len() uint64 { return h.nrows }

// NumChunks returns the number of stored chunks; unchunked storage counts
// as one.
func (h *H5Rows) NumChunks() int {
	if h.index != nil {
		return len(h.index.Entries)
	}
	if h.nrows == 0 {
		return 0
	}
	return 1
}

// Rows returns the packed bytes of n rows starting at start.
func (h *H5Rows) Rows(start, n uint64) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if start > h.nrows || n > h.nrows-start {
		return nil, fmt.Errorf("%w: rows [%d, %d) of %d", ErrRowOutOfRange, start, start+n, h.nrows)
	}
	rs := uint64(h.RowSize())
	out := make([]byte, 0, n*rs)
	for row, end := start, start+n; row < end; {
		first := row - row%uint64(h.chunkRows)
		data, err := h.slabLocked(first)
		if err != nil {
			return nil, err
		}
		count := uint64(len(data)) / rs
		to := min(count, end-first)
		out = append(out, data[(row-first)*rs:to*rs]...)
		row = first + to
	}
	return out, nil
}

// Row returns the packed bytes of row i.
func (h *H5Rows) Row(i uint64) ([]byte, error) { return h.Rows(i, 1) }

// slabLocked returns the packed rows of the chunk or slab starting at
// first, reusing the last one read.
func (h *H5Rows) slabLocked(first uint64) ([]byte, error) {
	if h.cache.valid && h.cache.firstRow == first {
		return h.cache.data, nil
	}
	count := min(uint64(h.chunkRows), h.nrows-first)
	records, err := h.records(first, count)
	if err != nil {
		return nil, fmt.Errorf("rows from %d: %w", first, err)
	}
	data, err := h.conv.Convert(records, int(count))
	if err != nil {
		return nil, fmt.Errorf("rows from %d: %w", first, err)
	}
	h.cache.valid = true
	h.cache.firstRow = first
	h.cache.data = data
	return data, nil
}

// records returns count stored records starting at first.
func (h *H5Rows) records(first, count uint64) ([]byte, error) {
	rec := uint64(h.conv.RecordSize())
	switch h.class {
	case message.H5Compact:
		end := (first + count) * rec
		if end > uint64(len(h.compact)) {
			return nil, fmt.Errorf("compact data holds %d bytes, need %d", len(h.compact), end)
		}
		return h.compact[first*rec : end], nil
	case message.H5Contiguous:
		if h.reader.IsUndefined(h.address) {
			return make([]byte, count*rec), nil
		}
		return h.reader.At(int64(h.address + first*rec)).ReadBytes(int(count * rec))
	}

	entry, ok := h.index.Find(first)
	if !ok {
		return make([]byte, count*rec), nil
	}
	stored, err := h.reader.At(int64(entry.Address)).ReadBytes(int(entry.Size))
	if err != nil {
		return nil, fmt.Errorf("reading chunk at 0x%x: %w", entry.Address, err)
	}
	raw, err := h.pipeline.Decode(stored, entry.FilterMask)
	if err != nil {
		return nil, fmt.Errorf("chunk at 0x%x: %w", entry.Address, err)
	}
	if uint64(len(raw)) < count*rec {
		return nil, fmt.Errorf("chunk at 0x%x decoded to %d bytes, need %d", entry.Address, len(raw), count*rec)
	}
	return raw[:count*rec], nil
}
