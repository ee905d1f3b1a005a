package message

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/go-h5table/internal/binary"
)

// H5Class is the class of an HDF5 datatype.
type H5Class uint8

const (
	H5FixedPoint H5Class = 0
	H5Float      H5Class = 1
	H5Time       H5Class = 2
	H5String     H5Class = 3
	H5Bitfield   H5Class = 4
	H5Opaque     H5Class = 5
	H5Compound   H5Class = 6
	H5Reference  H5Class = 7
	H5Enum       H5Class = 8
	H5VarLen     H5Class = 9
	H5Array      H5Class = 10
)

var h5ClassNames = [...]string{
	"integer", "float", "time", "string", "bitfield", "opaque",
	"compound", "reference", "enum", "vlen", "array",
}

func (c H5Class) String() string {
	if int(c) < len(h5ClassNames) {
		return h5ClassNames[c]
	}
	return fmt.Sprintf("h5class(%d)", uint8(c))
}

// HDF5 string padding.
const (
	H5PadNullTerm  uint8 = 0
	H5PadNullPad   uint8 = 1
	H5PadSpacePad  uint8 = 2
	h5VarLenString uint8 = 1
)

// H5Datatype is an HDF5 datatype message as stored in the file.
type H5Datatype struct {
	Class   H5Class
	Version uint8
	Size    uint32

	BigEndian bool
	Signed    bool

	// Padding applies to strings, including variable-length ones.
	Padding uint8

	// VarLenString marks a variable-length string; Base is then the
	// character type.
	VarLenString bool

	Members []H5Member

	// Base is the element type of enums, arrays and variable-length types.
	Base *H5Datatype

	// Dims is the shape of an array type.
	Dims []uint32

	EnumNames  []string
	EnumValues [][]byte
}

// H5Member is one field of an HDF5 compound type.
type H5Member struct {
	Name   string
	Offset uint32
	Type   *H5Datatype
}

// ParseH5Datatype decodes an HDF5 datatype message body.
func ParseH5Datatype(data []byte) (*H5Datatype, error) {
	r := binary.NewReader(binary.Bytes(data), binary.DefaultConfig())
	return parseH5Datatype(r, 0)
}

func parseH5Datatype(r *binary.Reader, depth int) (*H5Datatype, error) {
	if depth > maxCompoundDepth {
		return nil, fmt.Errorf("datatype nesting deeper than %d", maxCompoundDepth)
	}
	head, err := r.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	dt := &H5Datatype{
		Class:   H5Class(head[0] & 0x0F),
		Version: head[0] >> 4,
	}
	bits := head[1:4]
	if dt.Size, err = r.ReadUint32(); err != nil {
		return nil, err
	}

	switch dt.Class {
	case H5FixedPoint, H5Bitfield:
		dt.BigEndian = bits[0]&0x01 != 0
		dt.Signed = dt.Class == H5FixedPoint && bits[0]&0x08 != 0
		r.Skip(4) // bit offset, bit precision
	case H5Float:
		if bits[0]&0x40 != 0 {
			return nil, fmt.Errorf("VAX float byte order not supported")
		}
		dt.BigEndian = bits[0]&0x01 != 0
		dt.Signed = true
		r.Skip(12)
	case H5Time:
		r.Skip(2)
	case H5String:
		dt.Padding = bits[0] & 0x0F
	case H5Opaque:
		r.Skip(int64(bits[0]))
	case H5Compound:
		err = dt.parseMembers(r, int(binary.DecodeUint(bits[:2])), depth)
	case H5Reference:
	case H5Enum:
		err = dt.parseEnum(r, int(binary.DecodeUint(bits[:2])), depth)
	case H5VarLen:
		dt.VarLenString = bits[0]&0x0F == h5VarLenString
		dt.Padding = bits[0] >> 4
		dt.Base, err = parseH5Datatype(r, depth+1)
	case H5Array:
		err = dt.parseArray(r, depth)
	default:
		return nil, fmt.Errorf("unknown datatype class %d", dt.Class)
	}
	if err != nil {
		return nil, fmt.Errorf("%s datatype: %w", dt.Class, err)
	}
	return dt, nil
}

func (dt *H5Datatype) parseMembers(r *binary.Reader, n, depth int) error {
	dt.Members = make([]H5Member, n)
	for i := range dt.Members {
		m := &dt.Members[i]
		var err error
		if m.Name, err = readCString(r, dt.Version < 3); err != nil {
			return err
		}

		switch dt.Version {
		case 1, 2:
			off, err := r.ReadUint32()
			if err != nil {
				return err
			}
			m.Offset = off
		default:
			buf, err := r.ReadBytes(offsetWidth(dt.Size))
			if err != nil {
				return err
			}
			m.Offset = uint32(binary.DecodeUint(buf))
		}

		// Version 1 members carry an inline array shape.
		var dims []uint32
		if dt.Version == 1 {
			rank, err := r.ReadUint8()
			if err != nil {
				return err
			}
			r.Skip(3 + 4 + 4)
			all := make([]uint32, 4)
			for d := range all {
				if all[d], err = r.ReadUint32(); err != nil {
					return err
				}
			}
			dims = all[:min(int(rank), 4)]
		}

		if m.Type, err = parseH5Datatype(r, depth+1); err != nil {
			return fmt.Errorf("member %q: %w", m.Name, err)
		}
		if len(dims) > 0 {
			m.Type = arrayOf(m.Type, dims)
		}
	}
	return nil
}

func (dt *H5Datatype) parseEnum(r *binary.Reader, n, depth int) error {
	var err error
	if dt.Base, err = parseH5Datatype(r, depth+1); err != nil {
		return err
	}
	dt.EnumNames = make([]string, n)
	for i := range dt.EnumNames {
		if dt.EnumNames[i], err = readCString(r, dt.Version < 3); err != nil {
			return err
		}
	}
	dt.EnumValues = make([][]byte, n)
	for i := range dt.EnumValues {
		if dt.EnumValues[i], err = r.ReadBytes(int(dt.Base.Size)); err != nil {
			return err
		}
	}
	return nil
}

func (dt *H5Datatype) parseArray(r *binary.Reader, depth int) error {
	rank, err := r.ReadUint8()
	if err != nil {
		return err
	}
	if dt.Version < 3 {
		r.Skip(3)
	}
	dt.Dims = make([]uint32, rank)
	for d := range dt.Dims {
		if dt.Dims[d], err = r.ReadUint32(); err != nil {
			return err
		}
	}
	if dt.Version < 3 {
		r.Skip(4 * int64(rank)) // permutation
	}
	dt.Base, err = parseH5Datatype(r, depth+1)
	return err
}

// arrayOf wraps base in an array type of the given shape.
func arrayOf(base *H5Datatype, dims []uint32) *H5Datatype {
	n := uint32(1)
	for _, d := range dims {
		n *= d
	}
	return &H5Datatype{Class: H5Array, Version: 2, Size: n * base.Size, Dims: dims, Base: base}
}

// offsetWidth is the size of a version 3 member offset: the fewest bytes
// that can hold the compound size.
func offsetWidth(size uint32) int {
	switch {
	case size < 1<<8:
		return 1
	case size < 1<<16:
		return 2
	case size < 1<<24:
		return 3
	}
	return 4
}

// readCString reads a NUL-terminated name. Padded names occupy a multiple
// of 8 bytes, terminator included.
func readCString(r *binary.Reader, padded bool) (string, error) {
	var b bytes.Buffer
	for {
		c, err := r.ReadUint8()
		if err != nil {
			return "", err
		}
		if c == 0 {
			break
		}
		b.WriteByte(c)
	}
	if padded {
		r.Skip(int64(pad8(b.Len() + 1)))
	}
	return b.String(), nil
}

func pad8(n int) int { return (8 - n%8) % 8 }

// EnumName returns the name of the enum member whose stored value is v.
func (dt *H5Datatype) EnumName(v []byte) (string, bool) {
	for i, val := range dt.EnumValues {
		if bytes.Equal(val, v) {
			return dt.EnumNames[i], true
		}
	}
	return "", false
}

// IsBoolEnum reports whether dt is the FALSE/TRUE enum some HDF5 writers
// use for booleans.
func (dt *H5Datatype) IsBoolEnum() bool {
	if dt.Class != H5Enum || dt.Size != 1 || len(dt.EnumNames) != 2 {
		return false
	}
	f, okF := dt.EnumName([]byte{0})
	t, okT := dt.EnumName([]byte{1})
	return okF && okT && f == "FALSE" && t == "TRUE"
}
