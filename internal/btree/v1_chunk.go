package btree

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/robert-malhotra/go-h5table/internal/binary"
)

// ChunkEntry locates one stored chunk of a dataset.
type ChunkEntry struct {
	// Offset is the chunk's first element in each dataset dimension.
	Offset []uint64

	// FilterMask has bit i set when filter i was skipped for this chunk.
	FilterMask uint32

	// Size is the stored, possibly compressed, size in bytes.
	Size uint32

	Address uint64
}

// ChunkIndex lists the chunks of a dataset ordered by offset.
type ChunkIndex struct {
	Rank    int
	Entries []ChunkEntry
}

// ReadChunkIndex reads the v1 chunk B-tree at btreeAddr. rank is the
// dataset rank; keys carry one extra zero offset for the element size.
func ReadChunkIndex(r *binary.Reader, btreeAddr uint64, rank int) (*ChunkIndex, error) {
	if r.IsUndefined(btreeAddr) {
		// No chunk was ever written.
		return &ChunkIndex{Rank: rank}, nil
	}
	entries, err := readChunkNode(r, btreeAddr, rank, 0)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(entries, func(a, b ChunkEntry) int {
		return slices.Compare(a.Offset, b.Offset)
	})
	return &ChunkIndex{Rank: rank, Entries: entries}, nil
}

func readChunkNode(r *binary.Reader, address uint64, rank, depth int) ([]ChunkEntry, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("chunk B-tree deeper than %d levels", maxDepth)
	}
	nr, h, err := readNodeHeader(r, address, nodeChunk)
	if err != nil {
		return nil, err
	}

	var entries []ChunkEntry
	for i := 0; i < int(h.entries); i++ {
		key, err := readChunkKey(nr, rank)
		if err != nil {
			return nil, fmt.Errorf("chunk key %d: %w", i, err)
		}
		child, err := nr.ReadOffset()
		if err != nil {
			return nil, err
		}
		if h.level > 0 {
			sub, err := readChunkNode(r, child, rank, depth+1)
			if err != nil {
				return nil, err
			}
			entries = append(entries, sub...)
			continue
		}
		if r.IsUndefined(child) || key.Size == 0 {
			continue
		}
		key.Address = child
		entries = append(entries, key)
	}
	return entries, nil
}

// readChunkKey reads size(4) mask(4) and rank+1 8-byte offsets.
func readChunkKey(r *binary.Reader, rank int) (ChunkEntry, error) {
	var e ChunkEntry
	var err error
	if e.Size, err = r.ReadUint32(); err != nil {
		return e, err
	}
	if e.FilterMask, err = r.ReadUint32(); err != nil {
		return e, err
	}
	e.Offset = make([]uint64, rank+1)
	for d := range e.Offset {
		if e.Offset[d], err = r.ReadUint64(); err != nil {
			return e, err
		}
	}
	e.Offset = e.Offset[:rank]
	return e, nil
}

// Find returns the chunk whose first offset in dimension 0 is start.
func (idx *ChunkIndex) Find(start uint64) (ChunkEntry, bool) {
	i, ok := slices.BinarySearchFunc(idx.Entries, start, func(e ChunkEntry, s uint64) int {
		return cmp.Compare(e.Offset[0], s)
	})
	if !ok {
		return ChunkEntry{}, false
	}
	return idx.Entries[i], true
}
