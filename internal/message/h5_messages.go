package message

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-h5table/internal/binary"
)

// ErrH5Shared is returned for messages stored in the shared message table
// or as committed datatypes, which imports do not follow.
var ErrH5Shared = errors.New("shared HDF5 message not supported")

func h5Reader(data []byte, cfg binary.Config) *binary.Reader {
	return binary.NewReader(binary.Bytes(data), cfg)
}

// ParseH5Dataspace decodes an HDF5 dataspace message. A null dataspace
// decodes as one dimension of size zero.
func ParseH5Dataspace(data []byte, cfg binary.Config) (*Dataspace, error) {
	r := h5Reader(data, cfg)
	head, err := r.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	version, rank := head[0], int(head[1])
	switch version {
	case 1:
		r.Skip(4)
	case 2:
		switch head[3] {
		case 0:
			return &Dataspace{}, nil
		case 2:
			return &Dataspace{Dims: []uint64{0}}, nil
		}
	default:
		return nil, fmt.Errorf("unsupported dataspace version %d", version)
	}
	// Max dims and the permutation follow the dims and are not needed.
	ds := &Dataspace{}
	if rank == 0 {
		return ds, nil
	}
	ds.Dims = make([]uint64, rank)
	for i := range ds.Dims {
		if ds.Dims[i], err = r.ReadLength(); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// H5LayoutClass is the storage class of an HDF5 dataset.
type H5LayoutClass uint8

const (
	H5Compact    H5LayoutClass = 0
	H5Contiguous H5LayoutClass = 1
	H5Chunked    H5LayoutClass = 2
	H5Virtual    H5LayoutClass = 3
)

func (c H5LayoutClass) String() string {
	switch c {
	case H5Compact:
		return "compact"
	case H5Contiguous:
		return "contiguous"
	case H5Chunked:
		return "chunked"
	case H5Virtual:
		return "virtual"
	}
	return fmt.Sprintf("layout(%d)", uint8(c))
}

// H5Layout is an HDF5 data layout message.
type H5Layout struct {
	Version uint8
	Class   H5LayoutClass

	// Address is the contiguous data or the chunk B-tree.
	Address uint64

	// Size is the contiguous data size; zero when the message predates
	// version 3.
	Size uint64

	// Data holds compact storage inline.
	Data []byte

	// ChunkDims is the chunk shape in dataset elements.
	ChunkDims []uint32
}

// ParseH5Layout decodes versions 1 to 3 of the data layout message and the
// compact and contiguous forms of version 4. Version 4 chunk indexes are
// rejected.
func ParseH5Layout(data []byte, cfg binary.Config) (*H5Layout, error) {
	r := h5Reader(data, cfg)
	version, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	l := &H5Layout{Version: version}
	switch version {
	case 1, 2:
		err = l.parseV1(r)
	case 3, 4:
		err = l.parseV3(r)
	default:
		return nil, fmt.Errorf("unsupported data layout version %d", version)
	}
	if err != nil {
		return nil, fmt.Errorf("data layout v%d: %w", version, err)
	}
	return l, nil
}

func (l *H5Layout) parseV1(r *binary.Reader) error {
	head, err := r.ReadBytes(7)
	if err != nil {
		return err
	}
	rank := int(head[0])
	l.Class = H5LayoutClass(head[1])
	if l.Class != H5Compact {
		if l.Address, err = r.ReadOffset(); err != nil {
			return err
		}
	}
	dims, err := readDims32(r, rank)
	if err != nil {
		return err
	}
	switch l.Class {
	case H5Compact:
		n, err := r.ReadUint32()
		if err != nil {
			return err
		}
		l.Data, err = r.ReadBytes(int(n))
		return err
	case H5Chunked:
		// The last dimension is the element size.
		if len(dims) > 0 {
			l.ChunkDims = dims[:len(dims)-1]
		}
	}
	return nil
}

func (l *H5Layout) parseV3(r *binary.Reader) error {
	class, err := r.ReadUint8()
	if err != nil {
		return err
	}
	l.Class = H5LayoutClass(class)
	switch l.Class {
	case H5Compact:
		n, err := r.ReadUint16()
		if err != nil {
			return err
		}
		l.Data, err = r.ReadBytes(int(n))
		return err
	case H5Contiguous:
		if l.Address, err = r.ReadOffset(); err != nil {
			return err
		}
		l.Size, err = r.ReadLength()
		return err
	case H5Chunked:
		if l.Version == 4 {
			return fmt.Errorf("version 4 chunk indexes not supported")
		}
		rank, err := r.ReadUint8()
		if err != nil {
			return err
		}
		if l.Address, err = r.ReadOffset(); err != nil {
			return err
		}
		dims, err := readDims32(r, int(rank))
		if err != nil {
			return err
		}
		if len(dims) > 0 {
			l.ChunkDims = dims[:len(dims)-1]
		}
		return nil
	}
	return fmt.Errorf("%s storage not supported", l.Class)
}

func readDims32(r *binary.Reader, n int) ([]uint32, error) {
	dims := make([]uint32, n)
	for i := range dims {
		var err error
		if dims[i], err = r.ReadUint32(); err != nil {
			return nil, err
		}
	}
	return dims, nil
}

// ParseH5FilterPipeline decodes versions 1 and 2 of the HDF5 filter
// pipeline message.
func ParseH5FilterPipeline(data []byte) (*FilterPipeline, error) {
	r := h5Reader(data, binary.DefaultConfig())
	head, err := r.ReadBytes(2)
	if err != nil {
		return nil, err
	}
	version, n := head[0], int(head[1])
	switch version {
	case 1:
		r.Skip(6)
	case 2:
	default:
		return nil, fmt.Errorf("unsupported filter pipeline version %d", version)
	}

	fp := &FilterPipeline{Filters: make([]FilterInfo, n)}
	for i := range fp.Filters {
		f := &fp.Filters[i]
		if f.ID, err = r.ReadUint16(); err != nil {
			return nil, err
		}
		var nameLen uint16
		if version == 1 || f.ID >= 256 {
			if nameLen, err = r.ReadUint16(); err != nil {
				return nil, err
			}
		}
		if f.Flags, err = r.ReadUint16(); err != nil {
			return nil, err
		}
		nvalues, err := r.ReadUint16()
		if err != nil {
			return nil, err
		}
		if nameLen > 0 {
			name, err := r.ReadBytes(int(nameLen))
			if err != nil {
				return nil, err
			}
			f.Name = cString(name)
		}
		f.ClientData = make([]uint32, nvalues)
		for j := range f.ClientData {
			if f.ClientData[j], err = r.ReadUint32(); err != nil {
				return nil, err
			}
		}
		if version == 1 && nvalues%2 == 1 {
			r.Skip(4)
		}
	}
	return fp, nil
}

// cString returns b up to its first NUL.
func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// H5Attribute is an HDF5 attribute message with its raw value.
type H5Attribute struct {
	Name      string
	Datatype  *H5Datatype
	Dataspace *Dataspace
	Data      []byte
}

// ParseH5Attribute decodes versions 1 to 3 of the HDF5 attribute message.
func ParseH5Attribute(data []byte, cfg binary.Config) (*H5Attribute, error) {
	r := h5Reader(data, cfg)
	head, err := r.ReadBytes(8)
	if err != nil {
		return nil, err
	}
	version, flags := head[0], head[1]
	nameSize := int(binary.DecodeUint(head[2:4]))
	typeSize := int(binary.DecodeUint(head[4:6]))
	spaceSize := int(binary.DecodeUint(head[6:8]))
	switch version {
	case 1, 2:
	case 3:
		r.Skip(1) // name character set
	default:
		return nil, fmt.Errorf("unsupported attribute version %d", version)
	}
	if version > 1 && flags&0x03 != 0 {
		return nil, ErrH5Shared
	}

	field := func(n int) ([]byte, error) {
		b, err := r.ReadBytes(n)
		if err != nil {
			return nil, err
		}
		if version == 1 {
			r.Skip(int64(pad8(n)))
		}
		return b, nil
	}

	a := &H5Attribute{}
	name, err := field(nameSize)
	if err != nil {
		return nil, fmt.Errorf("attribute name: %w", err)
	}
	a.Name = cString(name)
	typeData, err := field(typeSize)
	if err != nil {
		return nil, fmt.Errorf("attribute %q datatype: %w", a.Name, err)
	}
	if a.Datatype, err = ParseH5Datatype(typeData); err != nil {
		return nil, fmt.Errorf("attribute %q: %w", a.Name, err)
	}
	spaceData, err := field(spaceSize)
	if err != nil {
		return nil, fmt.Errorf("attribute %q dataspace: %w", a.Name, err)
	}
	if a.Dataspace, err = ParseH5Dataspace(spaceData, cfg); err != nil {
		return nil, fmt.Errorf("attribute %q: %w", a.Name, err)
	}

	n := int(a.Dataspace.NumElements()) * int(a.Datatype.Size)
	if a.Data, err = r.ReadBytes(n); err != nil {
		return nil, fmt.Errorf("attribute %q data: %w", a.Name, err)
	}
	return a, nil
}

// H5Link is a link message of a new-style group.
type H5Link struct {
	Name    string
	Hard    bool
	Address uint64 // hard links
	Target  string // soft links
}

// ParseH5Link decodes an HDF5 link message.
func ParseH5Link(data []byte, cfg binary.Config) (*H5Link, error) {
	r := h5Reader(data, cfg)
	head, err := r.ReadBytes(2)
	if err != nil {
		return nil, err
	}
	if head[0] != 1 {
		return nil, fmt.Errorf("unsupported link version %d", head[0])
	}
	flags := head[1]
	kind := uint8(0)
	if flags&0x08 != 0 {
		if kind, err = r.ReadUint8(); err != nil {
			return nil, err
		}
	}
	if flags&0x04 != 0 {
		r.Skip(8) // creation order
	}
	if flags&0x10 != 0 {
		r.Skip(1) // character set
	}
	lenField, err := r.ReadBytes(1 << (flags & 0x03))
	if err != nil {
		return nil, err
	}
	name, err := r.ReadBytes(int(binary.DecodeUint(lenField)))
	if err != nil {
		return nil, err
	}

	l := &H5Link{Name: string(name)}
	switch kind {
	case 0:
		l.Hard = true
		l.Address, err = r.ReadOffset()
	case 1:
		var n uint16
		if n, err = r.ReadUint16(); err == nil {
			var target []byte
			target, err = r.ReadBytes(int(n))
			l.Target = string(target)
		}
	default:
		return nil, fmt.Errorf("link %q: link type %d not supported", l.Name, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("link %q: %w", l.Name, err)
	}
	return l, nil
}

// H5LinkInfo is the link info message of a new-style group. A defined
// FractalHeap means the links are in dense storage.
type H5LinkInfo struct {
	FractalHeap uint64
	NameIndex   uint64
}

// ParseH5LinkInfo decodes an HDF5 link info message.
func ParseH5LinkInfo(data []byte, cfg binary.Config) (*H5LinkInfo, error) {
	r := h5Reader(data, cfg)
	head, err := r.ReadBytes(2)
	if err != nil {
		return nil, err
	}
	if head[0] != 0 {
		return nil, fmt.Errorf("unsupported link info version %d", head[0])
	}
	if head[1]&0x01 != 0 {
		r.Skip(8) // maximum creation index
	}
	li := &H5LinkInfo{}
	if li.FractalHeap, err = r.ReadOffset(); err != nil {
		return nil, err
	}
	if li.NameIndex, err = r.ReadOffset(); err != nil {
		return nil, err
	}
	return li, nil
}

// H5SymbolTable locates the B-tree and local heap of an old-style group.
type H5SymbolTable struct {
	BTree uint64
	Heap  uint64
}

// ParseH5SymbolTable decodes an HDF5 symbol table message.
func ParseH5SymbolTable(data []byte, cfg binary.Config) (*H5SymbolTable, error) {
	r := h5Reader(data, cfg)
	st := &H5SymbolTable{}
	var err error
	if st.BTree, err = r.ReadOffset(); err != nil {
		return nil, err
	}
	if st.Heap, err = r.ReadOffset(); err != nil {
		return nil, err
	}
	return st, nil
}
