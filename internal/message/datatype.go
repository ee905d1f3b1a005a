package message

import (
	"fmt"

	"github.com/robert-malhotra/go-h5table/internal/binary"
)

// DatatypeClass represents the class of a datatype.
type DatatypeClass uint8

const (
	ClassFixedPoint DatatypeClass = 0 // Integers
	ClassFloatPoint DatatypeClass = 1 // Floating-point
	ClassString     DatatypeClass = 3 // Fixed-length byte strings
	ClassBitfield   DatatypeClass = 4 // Booleans, one byte each
	ClassOpaque     DatatypeClass = 5 // JSON documents (attributes only)
	ClassCompound   DatatypeClass = 6 // Table row description
)

func (c DatatypeClass) String() string {
	switch c {
	case ClassFixedPoint:
		return "fixed-point"
	case ClassFloatPoint:
		return "float"
	case ClassString:
		return "string"
	case ClassBitfield:
		return "bitfield"
	case ClassOpaque:
		return "opaque"
	case ClassCompound:
		return "compound"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

const (
	flagSigned uint8 = 0x01
)

// maxCompoundDepth bounds recursion when parsing nested compound types.
const maxCompoundDepth = 4

// Datatype represents a datatype message (type 0x0003).
type Datatype struct {
	Class DatatypeClass
	Size  uint32 // element size in bytes; 0 for opaque

	// Fixed-point specific
	Signed bool

	// Compound specific
	Members []CompoundMember
}

// CompoundMember describes one column of a table row.
type CompoundMember struct {
	Name string
	Type *Datatype
	Dims []uint32 // nil for scalar members
}

// Elements returns the number of elements in the member's shape.
func (m CompoundMember) Elements() int {
	n := 1
	for _, d := range m.Dims {
		n *= int(d)
	}
	return n
}

// ByteSize returns the stored size of one member value.
func (m CompoundMember) ByteSize() int {
	return m.Elements() * int(m.Type.Size)
}

func (m *Datatype) Type() Type { return TypeDatatype }

// Serialize writes the datatype.
//
// Layout: class(1) flags(1) size(4), then for compound types a uint16 member
// count followed by name, rank(1), dims(4 each) and the member datatype.
func (m *Datatype) Serialize(w *binary.Writer) error {
	var flags uint8
	if m.Signed {
		flags |= flagSigned
	}
	if err := w.WriteUint8(uint8(m.Class)); err != nil {
		return err
	}
	if err := w.WriteUint8(flags); err != nil {
		return err
	}
	if err := w.WriteUint32(m.Size); err != nil {
		return err
	}
	if m.Class != ClassCompound {
		return nil
	}
	if err := w.WriteUint16(uint16(len(m.Members))); err != nil {
		return err
	}
	for _, mem := range m.Members {
		if err := w.WriteString(mem.Name); err != nil {
			return err
		}
		if err := w.WriteUint8(uint8(len(mem.Dims))); err != nil {
			return err
		}
		for _, d := range mem.Dims {
			if err := w.WriteUint32(d); err != nil {
				return err
			}
		}
		if err := mem.Type.Serialize(w); err != nil {
			return fmt.Errorf("member %q: %w", mem.Name, err)
		}
	}
	return nil
}

// SerializedSize returns the size in bytes when serialized.
func (m *Datatype) SerializedSize() int {
	size := 6
	if m.Class != ClassCompound {
		return size
	}
	size += 2
	for _, mem := range m.Members {
		size += binary.StringSize(mem.Name) + 1 + 4*len(mem.Dims) + mem.Type.SerializedSize()
	}
	return size
}

func parseDatatype(r *binary.Reader) (*Datatype, error) {
	return parseDatatypeDepth(r, 0)
}

func parseDatatypeDepth(r *binary.Reader, depth int) (*Datatype, error) {
	if depth > maxCompoundDepth {
		return nil, fmt.Errorf("compound nesting deeper than %d", maxCompoundDepth)
	}
	class, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	flags, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	size, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	dt := &Datatype{
		Class:  DatatypeClass(class),
		Size:   size,
		Signed: flags&flagSigned != 0,
	}

	switch dt.Class {
	case ClassFixedPoint, ClassFloatPoint, ClassString, ClassBitfield, ClassOpaque:
		return dt, nil
	case ClassCompound:
	default:
		return nil, fmt.Errorf("unsupported datatype class: %d", class)
	}

	n, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	dt.Members = make([]CompoundMember, n)
	for i := range dt.Members {
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		rank, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}
		var dims []uint32
		if rank > 0 {
			dims = make([]uint32, rank)
			for j := range dims {
				if dims[j], err = r.ReadUint32(); err != nil {
					return nil, err
				}
			}
		}
		mt, err := parseDatatypeDepth(r, depth+1)
		if err != nil {
			return nil, fmt.Errorf("member %q: %w", name, err)
		}
		dt.Members[i] = CompoundMember{Name: name, Type: mt, Dims: dims}
	}
	return dt, nil
}
