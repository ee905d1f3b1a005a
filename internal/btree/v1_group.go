package btree

import (
	"fmt"

	"github.com/robert-malhotra/go-h5table/internal/binary"
	"github.com/robert-malhotra/go-h5table/internal/heap"
)

// LinkKind says what a group entry points to.
type LinkKind uint8

const (
	LinkHard LinkKind = iota
	LinkSoft
)

// GroupEntry is one member of a symbol table group.
type GroupEntry struct {
	Name    string
	Address uint64   // object header address of a hard link
	Kind    LinkKind // soft links carry their target in Target
	Target  string

	// Cached B-tree and heap addresses when the member is itself a
	// symbol table group (cache type 1).
	GroupBTree uint64
	GroupHeap  uint64
	Cached     bool
}

// Symbol table entry cache types.
const (
	cacheNone     = 0
	cacheGroup    = 1
	cacheSoftLink = 2
	entryScratch  = 16
)

// ReadGroupEntries returns every member of the group whose B-tree is at
// btreeAddr, with names resolved through names.
func ReadGroupEntries(r *binary.Reader, btreeAddr uint64, names *heap.LocalHeap) ([]GroupEntry, error) {
	return readGroupNode(r, btreeAddr, names, 0)
}

func readGroupNode(r *binary.Reader, address uint64, names *heap.LocalHeap, depth int) ([]GroupEntry, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("group B-tree deeper than %d levels", maxDepth)
	}
	nr, h, err := readNodeHeader(r, address, nodeGroup)
	if err != nil {
		return nil, err
	}

	var entries []GroupEntry
	// Keys and children alternate: key0 child0 key1 ... keyN. Group keys
	// are heap offsets of the largest name below each child.
	for i := 0; i < int(h.entries); i++ {
		if _, err := nr.ReadLength(); err != nil {
			return nil, err
		}
		child, err := nr.ReadOffset()
		if err != nil {
			return nil, err
		}
		var sub []GroupEntry
		if h.level == 0 {
			sub, err = readSymbolNode(r, child, names)
		} else {
			sub, err = readGroupNode(r, child, names, depth+1)
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, sub...)
	}
	return entries, nil
}

func readSymbolNode(r *binary.Reader, address uint64, names *heap.LocalHeap) ([]GroupEntry, error) {
	nr := r.At(int64(address))

	sig, err := nr.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("reading SNOD signature: %w", err)
	}
	if string(sig) != "SNOD" {
		return nil, fmt.Errorf("invalid symbol table node signature at 0x%x: %q", address, sig)
	}
	version, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 1 {
		return nil, fmt.Errorf("unsupported symbol table node version: %d", version)
	}
	nr.Skip(1)
	count, err := nr.ReadUint16()
	if err != nil {
		return nil, err
	}

	entries := make([]GroupEntry, 0, count)
	for i := range int(count) {
		e, err := ReadSymbolEntry(nr, names)
		if err != nil {
			return nil, fmt.Errorf("symbol table entry %d: %w", i, err)
		}
		if e.Name != "" {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// ReadSymbolEntry reads one symbol table entry at the position of r. The
// root group of a version 0 or 1 superblock is described by such an entry.
// names may be nil when only the cached addresses are wanted.
func ReadSymbolEntry(r *binary.Reader, names *heap.LocalHeap) (GroupEntry, error) {
	var e GroupEntry
	nameOff, err := r.ReadOffset()
	if err != nil {
		return e, err
	}
	if e.Address, err = r.ReadOffset(); err != nil {
		return e, err
	}
	cache, err := r.ReadUint32()
	if err != nil {
		return e, err
	}
	r.Skip(4)
	scratch, err := r.ReadBytes(entryScratch)
	if err != nil {
		return e, err
	}
	if names != nil {
		e.Name = names.String(nameOff)
	}

	o := r.OffsetSize()
	switch cache {
	case cacheNone:
	case cacheGroup:
		e.Cached = true
		e.GroupBTree = binary.DecodeUint(scratch[:o])
		e.GroupHeap = binary.DecodeUint(scratch[o : 2*o])
	case cacheSoftLink:
		e.Kind = LinkSoft
		if names != nil {
			e.Target = names.String(binary.DecodeUint(scratch[:4]))
		}
	default:
		return e, fmt.Errorf("unknown symbol table cache type %d", cache)
	}
	return e, nil
}
