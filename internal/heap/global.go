package heap

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/go-h5table/internal/binary"
)

// GlobalHeap is one HDF5 global heap collection.
type GlobalHeap struct {
	Address uint64
	objects map[uint16][]byte
}

// ID references an object in a global heap collection. Variable-length
// values store a 4-byte length followed by an ID.
type ID struct {
	Collection uint64
	Index      uint32
}

// objectHeader is index(2) refcount(2) reserved(4), before the size.
const objectHeader = 8

// ReadGlobalHeap reads the collection at address.
func ReadGlobalHeap(r *binary.Reader, address uint64) (*GlobalHeap, error) {
	if address == 0 || r.IsUndefined(address) {
		return nil, fmt.Errorf("invalid global heap address 0x%x", address)
	}
	hr := r.At(int64(address))

	sig, err := hr.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("reading global heap signature: %w", err)
	}
	if string(sig) != "GCOL" {
		return nil, fmt.Errorf("invalid global heap signature: %q", sig)
	}
	version, err := hr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 1 {
		return nil, fmt.Errorf("unsupported global heap version: %d", version)
	}
	hr.Skip(3)

	size, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}

	h := &GlobalHeap{Address: address, objects: make(map[uint16][]byte)}
	end := int64(address) + int64(size)
	for hr.Pos()+objectHeader+int64(r.LengthSize()) <= end {
		index, err := hr.ReadUint16()
		if err != nil {
			return nil, err
		}
		// Index 0 is the free space object that closes the collection.
		if index == 0 {
			break
		}
		hr.Skip(6)
		n, err := hr.ReadLength()
		if err != nil {
			return nil, err
		}
		if hr.Pos()+int64(n) > end {
			return nil, fmt.Errorf("global heap object %d overruns its collection", index)
		}
		data, err := hr.ReadBytes(int(n))
		if err != nil {
			return nil, err
		}
		h.objects[index] = data
		hr.Skip(int64(pad8(n)))
	}
	return h, nil
}

func pad8(n uint64) uint64 { return (8 - n%8) % 8 }

// Object returns a copy of the object with the given index.
func (h *GlobalHeap) Object(index uint32) ([]byte, error) {
	data, ok := h.objects[uint16(index)]
	if !ok || index > 0xFFFF {
		return nil, fmt.Errorf("object %d not in global heap at 0x%x", index, h.Address)
	}
	return bytes.Clone(data), nil
}

// ParseID decodes a heap ID: the collection address followed by a 4-byte
// object index.
func ParseID(data []byte, offsetSize int) (ID, error) {
	if len(data) < offsetSize+4 {
		return ID{}, fmt.Errorf("global heap ID needs %d bytes, got %d", offsetSize+4, len(data))
	}
	return ID{
		Collection: binary.DecodeUint(data[:offsetSize]),
		Index:      uint32(binary.DecodeUint(data[offsetSize : offsetSize+4])),
	}, nil
}

// Resolver reads heap objects, caching collections by address.
type Resolver struct {
	r     *binary.Reader
	heaps map[uint64]*GlobalHeap
}

// NewResolver creates a resolver reading collections through r.
func NewResolver(r *binary.Reader) *Resolver {
	return &Resolver{r: r, heaps: make(map[uint64]*GlobalHeap)}
}

// Object returns the object id refers to.
func (rs *Resolver) Object(id ID) ([]byte, error) {
	h, ok := rs.heaps[id.Collection]
	if !ok {
		var err error
		if h, err = ReadGlobalHeap(rs.r, id.Collection); err != nil {
			return nil, err
		}
		rs.heaps[id.Collection] = h
	}
	return h.Object(id.Index)
}
