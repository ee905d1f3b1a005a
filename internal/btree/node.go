package btree

import (
	"fmt"

	"github.com/robert-malhotra/go-h5table/internal/binary"
)

const (
	nodeGroup = 0
	nodeChunk = 1
)

// maxDepth bounds recursion through corrupt or cyclic trees.
const maxDepth = 32

// nodeHeader is the fixed part of a "TREE" node.
type nodeHeader struct {
	level   uint8
	entries uint16
}

// readNodeHeader reads the node at address and leaves nr positioned on the
// first key.
func readNodeHeader(r *binary.Reader, address uint64, wantType uint8) (*binary.Reader, nodeHeader, error) {
	nr := r.At(int64(address))
	var h nodeHeader

	sig, err := nr.ReadBytes(4)
	if err != nil {
		return nil, h, fmt.Errorf("reading B-tree signature at 0x%x: %w", address, err)
	}
	if string(sig) != "TREE" {
		return nil, h, fmt.Errorf("invalid B-tree signature at 0x%x: got %q, expected \"TREE\"", address, sig)
	}
	typ, err := nr.ReadUint8()
	if err != nil {
		return nil, h, err
	}
	if typ != wantType {
		return nil, h, fmt.Errorf("unexpected B-tree node type %d at 0x%x, expected %d", typ, address, wantType)
	}
	if h.level, err = nr.ReadUint8(); err != nil {
		return nil, h, err
	}
	if h.entries, err = nr.ReadUint16(); err != nil {
		return nil, h, err
	}
	// Left and right siblings; the walk goes top-down instead.
	nr.Skip(2 * int64(r.OffsetSize()))
	return nr, h, nil
}
