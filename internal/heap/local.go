package heap

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/go-h5table/internal/binary"
)

// LocalHeap is an HDF5 local heap, the name store of a symbol table group.
type LocalHeap struct {
	DataAddress uint64
	data        []byte
}

// ReadLocalHeap reads the local heap at address and its data segment.
func ReadLocalHeap(r *binary.Reader, address uint64) (*LocalHeap, error) {
	hr := r.At(int64(address))

	sig, err := hr.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("reading local heap signature: %w", err)
	}
	if string(sig) != "HEAP" {
		return nil, fmt.Errorf("invalid local heap signature: got %q, expected \"HEAP\"", sig)
	}
	version, err := hr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 0 {
		return nil, fmt.Errorf("unsupported local heap version: %d", version)
	}
	hr.Skip(3)

	size, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}
	// Free list head, unused when reading.
	if _, err := hr.ReadLength(); err != nil {
		return nil, err
	}
	dataAddr, err := hr.ReadOffset()
	if err != nil {
		return nil, err
	}

	h := &LocalHeap{DataAddress: dataAddr}
	if h.data, err = r.At(int64(dataAddr)).ReadBytes(int(size)); err != nil {
		return nil, fmt.Errorf("reading local heap data: %w", err)
	}
	return h, nil
}

// String returns the NUL-terminated string at offset, or "" when offset is
// outside the data segment.
func (h *LocalHeap) String(offset uint64) string {
	if offset >= uint64(len(h.data)) {
		return ""
	}
	s := h.data[offset:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s)
}
