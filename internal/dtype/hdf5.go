package dtype

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/robert-malhotra/go-h5table/internal/message"
)

// FromH5 maps an HDF5 element type onto a column datatype and cell shape.
// bigEndian reports whether stored elements must be byte-swapped.
//
// Enums become their integer base type, except the FALSE/TRUE enum which
// becomes bool like a one-byte bitfield. Arrays of a scalar type become
// array cells.
func FromH5(h *message.H5Datatype) (dt *message.Datatype, dims []uint32, bigEndian bool, err error) {
	switch h.Class {
	case message.H5FixedPoint:
		switch h.Size {
		case 1, 2, 4, 8:
			return &message.Datatype{Class: message.ClassFixedPoint, Size: h.Size, Signed: h.Signed}, nil, h.BigEndian, nil
		}
	case message.H5Float:
		switch h.Size {
		case 4, 8:
			return &message.Datatype{Class: message.ClassFloatPoint, Size: h.Size}, nil, h.BigEndian, nil
		}
	case message.H5Bitfield:
		switch h.Size {
		case 1:
			return Bool, nil, false, nil
		case 2, 4, 8:
			return &message.Datatype{Class: message.ClassFixedPoint, Size: h.Size}, nil, h.BigEndian, nil
		}
	case message.H5Enum:
		if h.IsBoolEnum() {
			return Bool, nil, false, nil
		}
		return FromH5(h.Base)
	case message.H5String:
		if h.Size > 0 {
			return String(int(h.Size)), nil, false, nil
		}
	case message.H5Array:
		base, inner, be, err := FromH5(h.Base)
		if err != nil {
			return nil, nil, false, err
		}
		if len(inner) > 0 {
			return nil, nil, false, fmt.Errorf("nested array types not supported")
		}
		return base, slices.Clone(h.Dims), be, nil
	}
	return nil, nil, false, fmt.Errorf("%d-byte HDF5 %s type not supported", h.Size, h.Class)
}

// h5Field moves one compound member from a stored record to a packed row.
type h5Field struct {
	src, dst int
	elem     int
	count    int
	swap     bool
}

// RowConverter repacks records of an HDF5 compound type into packed rows:
// members in order, no padding, little-endian.
type RowConverter struct {
	row        *message.Datatype
	fields     []h5Field
	recordSize int

	// Skipped names the members that have no column representation, with
	// the reason.
	Skipped []string
}

// NewRowConverter builds the converter for records of type h.
func NewRowConverter(h *message.H5Datatype) (*RowConverter, error) {
	if h.Class != message.H5Compound {
		return nil, fmt.Errorf("table records must be compound, not %s", h.Class)
	}
	c := &RowConverter{
		row:        &message.Datatype{Class: message.ClassCompound},
		recordSize: int(h.Size),
	}
	for _, m := range h.Members {
		dt, dims, be, err := FromH5(m.Type)
		if err != nil {
			c.Skipped = append(c.Skipped, fmt.Sprintf("%s: %v", m.Name, err))
			continue
		}
		mem := message.CompoundMember{Name: m.Name, Type: dt, Dims: dims}
		if int(m.Offset)+mem.ByteSize() > c.recordSize {
			return nil, fmt.Errorf("member %q at offset %d overruns the %d-byte record", m.Name, m.Offset, c.recordSize)
		}
		c.fields = append(c.fields, h5Field{
			src:   int(m.Offset),
			dst:   int(c.row.Size),
			elem:  int(dt.Size),
			count: mem.Elements(),
			swap:  be && dt.Class != message.ClassString && dt.Size > 1,
		})
		c.row.Members = append(c.row.Members, mem)
		c.row.Size += uint32(mem.ByteSize())
	}
	if len(c.row.Members) == 0 {
		return nil, fmt.Errorf("no member of the record type can be read")
	}
	return c, nil
}

// Row returns the packed row datatype.
func (c *RowConverter) Row() *message.Datatype { return c.row }

// RecordSize returns the size of one stored record.
func (c *RowConverter) RecordSize() int { return c.recordSize }

// Convert repacks n stored records into packed rows.
func (c *RowConverter) Convert(records []byte, n int) ([]byte, error) {
	if len(records) < n*c.recordSize {
		return nil, fmt.Errorf("have %d bytes for %d records of %d bytes", len(records), n, c.recordSize)
	}
	rowSize := int(c.row.Size)
	out := make([]byte, n*rowSize)
	for i := 0; i < n; i++ {
		rec := records[i*c.recordSize : (i+1)*c.recordSize]
		row := out[i*rowSize : (i+1)*rowSize]
		for _, f := range c.fields {
			size := f.elem * f.count
			dst := row[f.dst : f.dst+size]
			copy(dst, rec[f.src:f.src+size])
			if f.swap {
				swapElements(dst, f.elem)
			}
		}
	}
	return out, nil
}

// swapElements reverses the bytes of each size-byte element in place.
func swapElements(b []byte, size int) {
	for i := 0; i+size <= len(b); i += size {
		slices.Reverse(b[i : i+size])
	}
}

// AttributeFromH5 converts an HDF5 attribute into a stored attribute.
// Variable-length strings are resolved through vlen, which receives the
// raw heap reference of each element and returns its bytes.
func AttributeFromH5(a *message.H5Attribute, vlen func(ref []byte) ([]byte, error)) (*message.Attribute, error) {
	h := a.Datatype
	out := &message.Attribute{
		Name:      a.Name,
		Dataspace: &message.Dataspace{Dims: slices.Clone(a.Dataspace.Dims)},
	}
	n := int(a.Dataspace.NumElements())

	if h.Class == message.H5VarLen && h.VarLenString {
		if vlen == nil {
			return nil, fmt.Errorf("attribute %s: variable-length strings cannot be resolved", a.Name)
		}
		strs := make([][]byte, n)
		width := 1
		for i := range strs {
			ref := a.Data[i*int(h.Size) : (i+1)*int(h.Size)]
			s, err := vlen(ref)
			if err != nil {
				return nil, fmt.Errorf("attribute %s: %w", a.Name, err)
			}
			if j := bytes.IndexByte(s, 0); j >= 0 {
				s = s[:j]
			}
			strs[i] = s
			width = max(width, len(s))
		}
		out.Datatype = String(width)
		out.Data = make([]byte, n*width)
		for i, s := range strs {
			copy(out.Data[i*width:], s)
		}
		return out, nil
	}

	dt, dims, be, err := FromH5(h)
	if err != nil {
		return nil, fmt.Errorf("attribute %s: %w", a.Name, err)
	}
	for _, d := range dims {
		out.Dataspace.Dims = append(out.Dataspace.Dims, uint64(d))
	}
	out.Datatype = dt
	out.Data = bytes.Clone(a.Data)
	if be && dt.Class != message.ClassString && dt.Size > 1 {
		swapElements(out.Data, int(dt.Size))
	}
	return out, nil
}

// VarLenRef splits a variable-length element into its length and heap
// reference.
func VarLenRef(elem []byte) (length uint32, ref []byte, err error) {
	if len(elem) < 4 {
		return 0, nil, fmt.Errorf("variable-length element of %d bytes", len(elem))
	}
	return order.Uint32(elem[:4]), elem[4:], nil
}
