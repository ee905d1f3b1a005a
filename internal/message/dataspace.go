package message

import (
	"github.com/robert-malhotra/go-h5table/internal/binary"
)

// Dataspace represents a dataspace message (type 0x0001).
// A rank of zero is a scalar.
type Dataspace struct {
	Dims []uint64
}

func (m *Dataspace) Type() Type { return TypeDataspace }

// Rank returns the number of dimensions.
func (m *Dataspace) Rank() int {
	return len(m.Dims)
}

// IsScalar reports whether the dataspace holds a single element.
func (m *Dataspace) IsScalar() bool {
	return len(m.Dims) == 0
}

// NumElements returns the total number of elements.
func (m *Dataspace) NumElements() uint64 {
	n := uint64(1)
	for _, d := range m.Dims {
		n *= d
	}
	return n
}

// Serialize writes rank(1) followed by each dimension as a uint64.
func (m *Dataspace) Serialize(w *binary.Writer) error {
	if err := w.WriteUint8(uint8(len(m.Dims))); err != nil {
		return err
	}
	for _, d := range m.Dims {
		if err := w.WriteUint64(d); err != nil {
			return err
		}
	}
	return nil
}

// SerializedSize returns the size in bytes when serialized.
func (m *Dataspace) SerializedSize() int {
	return 1 + 8*len(m.Dims)
}

func parseDataspace(r *binary.Reader) (*Dataspace, error) {
	rank, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	ds := &Dataspace{}
	if rank == 0 {
		return ds, nil
	}
	ds.Dims = make([]uint64, rank)
	for i := range ds.Dims {
		if ds.Dims[i], err = r.ReadUint64(); err != nil {
			return nil, err
		}
	}
	return ds, nil
}
