// Package h5test builds small HDF5 images for tests of the HDF5 read path.
//
// Images use 8-byte offsets and lengths and little-endian fields, like the
// files the HDF5 library writes by default. Every helper encodes exactly
// one structure; tests compose them into files.
package h5test

import (
	"encoding/binary"
	"math"

	binpkg "github.com/robert-malhotra/go-h5table/internal/binary"
)

// Undefined is the undefined address.
const Undefined uint64 = math.MaxUint64

var le = binary.LittleEndian

// Message types used by the helpers.
const (
	TypeDataspace      uint16 = 0x01
	TypeLinkInfo       uint16 = 0x02
	TypeDatatype       uint16 = 0x03
	TypeLink           uint16 = 0x06
	TypeDataLayout     uint16 = 0x08
	TypeFilterPipeline uint16 = 0x0B
	TypeAttribute      uint16 = 0x0C
	TypeContinuation   uint16 = 0x10
	TypeSymbolTable    uint16 = 0x11
)

// Image accumulates the bytes of a file. Structures are placed on 8-byte
// boundaries.
type Image struct {
	buf []byte
}

// NewImage starts an image whose first reserve bytes are left for the
// superblock.
func NewImage(reserve int) *Image {
	return &Image{buf: make([]byte, reserve)}
}

// Append places data at the end of the image and returns its address.
func (im *Image) Append(data []byte) uint64 {
	for len(im.buf)%8 != 0 {
		im.buf = append(im.buf, 0)
	}
	addr := uint64(len(im.buf))
	im.buf = append(im.buf, data...)
	return addr
}

// PutAt overwrites the image at addr, growing it when needed.
func (im *Image) PutAt(addr uint64, data []byte) {
	if end := int(addr) + len(data); end > len(im.buf) {
		im.buf = append(im.buf, make([]byte, end-len(im.buf))...)
	}
	copy(im.buf[addr:], data)
}

// Len returns the current end of the image.
func (im *Image) Len() uint64 { return uint64(len(im.buf)) }

// Bytes returns the image.
func (im *Image) Bytes() []byte { return im.buf }

func pad8(b []byte) []byte {
	for len(b)%8 != 0 {
		b = append(b, 0)
	}
	return b
}

func u64(v uint64) []byte { return le.AppendUint64(nil, v) }

// SuperblockV0 encodes a version 0 superblock. The root symbol table entry
// caches btree and heap when btree is not Undefined.
func SuperblockV0(eof, root, btree, heap uint64) []byte {
	b := []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}
	b = append(b, 0, 0, 0, 0, 0, 8, 8, 0)
	b = le.AppendUint16(b, 4)  // group leaf K
	b = le.AppendUint16(b, 16) // group internal K
	b = le.AppendUint32(b, 0)
	b = le.AppendUint64(b, 0) // base
	b = le.AppendUint64(b, Undefined)
	b = le.AppendUint64(b, eof)
	b = le.AppendUint64(b, Undefined)
	cache := uint32(0)
	if btree != Undefined {
		cache = 1
	}
	var scratch [16]byte
	if cache == 1 {
		le.PutUint64(scratch[:], btree)
		le.PutUint64(scratch[8:], heap)
	}
	return append(b, SymbolEntry(0, root, cache, scratch)...)
}

// SuperblockV0Size is the encoded size of SuperblockV0.
const SuperblockV0Size = 56 + 40

// SuperblockV2 encodes a checksummed version 2 superblock.
func SuperblockV2(eof, root uint64) []byte {
	b := []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}
	b = append(b, 2, 8, 8, 0)
	b = le.AppendUint64(b, 0)
	b = le.AppendUint64(b, Undefined)
	b = le.AppendUint64(b, eof)
	b = le.AppendUint64(b, root)
	return le.AppendUint32(b, binpkg.Lookup3Checksum(b))
}

// SuperblockV2Size is the encoded size of SuperblockV2.
const SuperblockV2Size = 12 + 4*8 + 4

// SymbolEntry encodes a symbol table entry.
func SymbolEntry(nameOffset, header uint64, cache uint32, scratch [16]byte) []byte {
	b := le.AppendUint64(nil, nameOffset)
	b = le.AppendUint64(b, header)
	b = le.AppendUint32(b, cache)
	b = le.AppendUint32(b, 0)
	return append(b, scratch[:]...)
}

// Msg is one object header message.
type Msg struct {
	Type  uint16
	Flags uint8
	Data  []byte
}

// HeaderV1 encodes a version 1 object header holding msgs. total is the
// message count including messages in continuation blocks; zero means
// len(msgs).
func HeaderV1(total int, msgs ...Msg) []byte {
	body := MessagesV1(msgs...)
	if total == 0 {
		total = len(msgs)
	}
	b := []byte{1, 0}
	b = le.AppendUint16(b, uint16(total))
	b = le.AppendUint32(b, 1)
	b = le.AppendUint32(b, uint32(len(body)))
	b = le.AppendUint32(b, 0)
	return append(b, body...)
}

// MessagesV1 encodes messages the way version 1 headers and their
// continuation blocks hold them.
func MessagesV1(msgs ...Msg) []byte {
	var b []byte
	for _, m := range msgs {
		data := pad8(append([]byte(nil), m.Data...))
		b = le.AppendUint16(b, m.Type)
		b = le.AppendUint16(b, uint16(len(data)))
		b = append(b, m.Flags, 0, 0, 0)
		b = append(b, data...)
	}
	return b
}

func messagesV2(msgs []Msg) []byte {
	var b []byte
	for _, m := range msgs {
		b = append(b, uint8(m.Type))
		b = le.AppendUint16(b, uint16(len(m.Data)))
		b = append(b, m.Flags)
		b = append(b, m.Data...)
	}
	return b
}

// HeaderV2 encodes a checksummed version 2 object header.
func HeaderV2(msgs ...Msg) []byte {
	body := messagesV2(msgs)
	b := []byte{'O', 'H', 'D', 'R', 2, 0x02}
	b = le.AppendUint32(b, uint32(len(body)))
	b = append(b, body...)
	return le.AppendUint32(b, binpkg.Lookup3Checksum(b))
}

// ContinuationV2 encodes a version 2 continuation block.
func ContinuationV2(msgs ...Msg) []byte {
	b := append([]byte("OCHK"), messagesV2(msgs)...)
	return le.AppendUint32(b, binpkg.Lookup3Checksum(b))
}

// Continuation encodes a continuation message body.
func Continuation(addr, size uint64) []byte {
	return le.AppendUint64(u64(addr), size)
}

// LocalHeap places a local heap holding names and returns its address and
// the offset of every name. Offset 0 holds the empty string.
func (im *Image) LocalHeap(names ...string) (uint64, []uint64) {
	data := make([]byte, 8)
	offsets := make([]uint64, len(names))
	for i, n := range names {
		offsets[i] = uint64(len(data))
		data = pad8(append(append(data, n...), 0))
	}
	dataAddr := im.Append(data)

	b := []byte{'H', 'E', 'A', 'P', 0, 0, 0, 0}
	b = le.AppendUint64(b, uint64(len(data)))
	b = le.AppendUint64(b, Undefined)
	b = le.AppendUint64(b, dataAddr)
	return im.Append(b), offsets
}

// SymbolNode places a symbol table node holding entries.
func (im *Image) SymbolNode(entries ...[]byte) uint64 {
	b := []byte{'S', 'N', 'O', 'D', 1, 0}
	b = le.AppendUint16(b, uint16(len(entries)))
	for _, e := range entries {
		b = append(b, e...)
	}
	return im.Append(b)
}

// GroupTree places a leaf group B-tree node pointing at symbol nodes.
func (im *Image) GroupTree(nodes ...uint64) uint64 {
	b := []byte{'T', 'R', 'E', 'E', 0, 0}
	b = le.AppendUint16(b, uint16(len(nodes)))
	b = le.AppendUint64(b, Undefined)
	b = le.AppendUint64(b, Undefined)
	for i, n := range nodes {
		b = le.AppendUint64(b, uint64(i))
		b = le.AppendUint64(b, n)
	}
	b = le.AppendUint64(b, uint64(len(nodes)))
	return im.Append(b)
}

// Chunk is one stored chunk of a one-dimensional dataset.
type Chunk struct {
	Row  uint64
	Mask uint32
	Data []byte
}

// ChunkTree places chunks and the leaf chunk B-tree node indexing them.
func (im *Image) ChunkTree(recordSize uint32, chunks ...Chunk) uint64 {
	addrs := make([]uint64, len(chunks))
	for i, c := range chunks {
		addrs[i] = im.Append(c.Data)
	}
	b := []byte{'T', 'R', 'E', 'E', 1, 0}
	b = le.AppendUint16(b, uint16(len(chunks)))
	b = le.AppendUint64(b, Undefined)
	b = le.AppendUint64(b, Undefined)
	for i, c := range chunks {
		b = le.AppendUint32(b, uint32(len(c.Data)))
		b = le.AppendUint32(b, c.Mask)
		b = le.AppendUint64(b, c.Row)
		b = le.AppendUint64(b, 0)
		b = le.AppendUint64(b, addrs[i])
	}
	// Closing key.
	b = le.AppendUint32(b, 0)
	b = le.AppendUint32(b, 0)
	b = le.AppendUint64(b, math.MaxUint32)
	b = le.AppendUint64(b, uint64(recordSize))
	return im.Append(b)
}

// GlobalHeap places a global heap collection holding objects with indexes
// starting at 1.
func (im *Image) GlobalHeap(objects ...[]byte) uint64 {
	var body []byte
	for i, o := range objects {
		body = le.AppendUint16(body, uint16(i+1))
		body = le.AppendUint16(body, 1)
		body = le.AppendUint32(body, 0)
		body = le.AppendUint64(body, uint64(len(o)))
		body = pad8(append(body, o...))
	}
	// Free space object.
	body = append(body, make([]byte, 16)...)

	b := []byte{'G', 'C', 'O', 'L', 1, 0, 0, 0}
	b = le.AppendUint64(b, uint64(16+len(body)))
	return im.Append(append(b, body...))
}

// Dataspace encodes a version 1 dataspace with unlimited maximum dims.
func Dataspace(dims ...uint64) []byte {
	flags := uint8(0)
	if len(dims) > 0 {
		flags = 1
	}
	b := []byte{1, uint8(len(dims)), flags, 0, 0, 0, 0, 0}
	for _, d := range dims {
		b = le.AppendUint64(b, d)
	}
	for range dims {
		b = le.AppendUint64(b, Undefined)
	}
	return b
}

func typeHeader(class, version uint8, bits [3]byte, size uint32) []byte {
	b := []byte{class | version<<4, bits[0], bits[1], bits[2]}
	return le.AppendUint32(b, size)
}

// Int encodes an integer datatype.
func Int(size uint32, signed, bigEndian bool) []byte {
	var bits [3]byte
	if bigEndian {
		bits[0] |= 0x01
	}
	if signed {
		bits[0] |= 0x08
	}
	b := typeHeader(0, 1, bits, size)
	b = le.AppendUint16(b, 0)
	return le.AppendUint16(b, uint16(size*8))
}

// Float encodes an IEEE float datatype.
func Float(size uint32, bigEndian bool) []byte {
	bits := [3]byte{0x20, 31, 0}
	expSize, mantSize, bias := uint8(8), uint8(23), uint32(127)
	if size == 8 {
		bits[1] = 63
		expSize, mantSize, bias = 11, 52, 1023
	}
	if bigEndian {
		bits[0] |= 0x01
	}
	b := typeHeader(1, 1, bits, size)
	b = le.AppendUint16(b, 0)
	b = le.AppendUint16(b, uint16(size*8))
	b = append(b, mantSize, expSize, 0, mantSize)
	return le.AppendUint32(b, bias)
}

// String encodes a fixed-length, NUL-padded string datatype.
func String(size uint32) []byte {
	return typeHeader(3, 1, [3]byte{1, 0, 0}, size)
}

// VarLenString encodes a variable-length string datatype.
func VarLenString() []byte {
	b := typeHeader(9, 1, [3]byte{1, 0, 0}, 16)
	return append(b, Int(1, false, false)...)
}

// BoolEnum encodes the FALSE/TRUE enum PyTables and h5py use for booleans.
func BoolEnum() []byte {
	b := typeHeader(8, 1, [3]byte{2, 0, 0}, 1)
	b = append(b, Int(1, true, false)...)
	b = append(b, pad8([]byte("FALSE\x00"))...)
	b = append(b, pad8([]byte("TRUE\x00"))...)
	return append(b, 0, 1)
}

// Array encodes a version 3 array datatype.
func Array(base []byte, baseSize uint32, dims ...uint32) []byte {
	n := baseSize
	for _, d := range dims {
		n *= d
	}
	b := typeHeader(10, 3, [3]byte{}, n)
	b = append(b, uint8(len(dims)))
	for _, d := range dims {
		b = le.AppendUint32(b, d)
	}
	return append(b, base...)
}

// Field is one compound member.
type Field struct {
	Name   string
	Offset uint32
	Type   []byte
}

// Compound encodes a version 3 compound datatype of the given size.
func Compound(size uint32, fields ...Field) []byte {
	b := typeHeader(6, 3, [3]byte{uint8(len(fields)), uint8(len(fields) >> 8), 0}, size)
	width := 4
	switch {
	case size < 1<<8:
		width = 1
	case size < 1<<16:
		width = 2
	case size < 1<<24:
		width = 3
	}
	for _, f := range fields {
		b = append(b, f.Name...)
		b = append(b, 0)
		b = append(b, le.AppendUint32(nil, f.Offset)[:width]...)
		b = append(b, f.Type...)
	}
	return b
}

// CompoundV1 encodes a version 1 compound datatype. dims gives the inline
// array shape of each field, nil for scalars.
func CompoundV1(size uint32, dims [][]uint32, fields ...Field) []byte {
	b := typeHeader(6, 1, [3]byte{uint8(len(fields)), uint8(len(fields) >> 8), 0}, size)
	for i, f := range fields {
		b = append(b, pad8(append([]byte(f.Name), 0))...)
		b = le.AppendUint32(b, f.Offset)
		var shape []uint32
		if i < len(dims) {
			shape = dims[i]
		}
		b = append(b, uint8(len(shape)), 0, 0, 0)
		b = le.AppendUint32(b, 0) // permutation
		b = le.AppendUint32(b, 0)
		for d := 0; d < 4; d++ {
			v := uint32(0)
			if d < len(shape) {
				v = shape[d]
			}
			b = le.AppendUint32(b, v)
		}
		b = append(b, f.Type...)
	}
	return b
}

// ChunkedLayout encodes a version 3 chunked layout of a one-dimensional
// dataset.
func ChunkedLayout(btree uint64, chunkRows, recordSize uint32) []byte {
	b := []byte{3, 2, 2}
	b = le.AppendUint64(b, btree)
	b = le.AppendUint32(b, chunkRows)
	return le.AppendUint32(b, recordSize)
}

// ContiguousLayout encodes a version 3 contiguous layout.
func ContiguousLayout(addr, size uint64) []byte {
	b := []byte{3, 1}
	b = le.AppendUint64(b, addr)
	return le.AppendUint64(b, size)
}

// CompactLayout encodes a version 3 compact layout holding data.
func CompactLayout(data []byte) []byte {
	b := []byte{3, 0}
	b = le.AppendUint16(b, uint16(len(data)))
	return append(b, data...)
}

// SymbolTable encodes a symbol table message.
func SymbolTable(btree, heap uint64) []byte {
	return le.AppendUint64(u64(btree), heap)
}

// Link encodes a hard link message.
func Link(name string, addr uint64) []byte {
	b := []byte{1, 0, uint8(len(name))}
	b = append(b, name...)
	return le.AppendUint64(b, addr)
}

// SoftLink encodes a soft link message.
func SoftLink(name, target string) []byte {
	b := []byte{1, 0x08, 1, uint8(len(name))}
	b = append(b, name...)
	b = le.AppendUint16(b, uint16(len(target)))
	return append(b, target...)
}

// LinkInfo encodes a link info message for compact link storage.
func LinkInfo() []byte {
	b := []byte{0, 0}
	b = le.AppendUint64(b, Undefined)
	return le.AppendUint64(b, Undefined)
}

// Attribute encodes a version 1 attribute message.
func Attribute(name string, dtype, space, data []byte) []byte {
	nameBytes := append([]byte(name), 0)
	b := []byte{1, 0}
	b = le.AppendUint16(b, uint16(len(nameBytes)))
	b = le.AppendUint16(b, uint16(len(dtype)))
	b = le.AppendUint16(b, uint16(len(space)))
	b = append(b, pad8(nameBytes)...)
	b = append(b, pad8(append([]byte(nil), dtype...))...)
	b = append(b, pad8(append([]byte(nil), space...))...)
	return append(b, data...)
}

// StringAttribute encodes a scalar fixed-length string attribute.
func StringAttribute(name, value string) []byte {
	return Attribute(name, String(uint32(len(value))), Dataspace(), []byte(value))
}

// Filter is one entry of a filter pipeline.
type Filter struct {
	ID         uint16
	Name       string
	ClientData []uint32
}

// FilterPipeline encodes a version 1 filter pipeline message.
func FilterPipeline(filters ...Filter) []byte {
	b := []byte{1, uint8(len(filters)), 0, 0, 0, 0, 0, 0}
	for _, f := range filters {
		var name []byte
		if f.Name != "" {
			name = pad8(append([]byte(f.Name), 0))
		}
		b = le.AppendUint16(b, f.ID)
		b = le.AppendUint16(b, uint16(len(name)))
		b = le.AppendUint16(b, 0)
		b = le.AppendUint16(b, uint16(len(f.ClientData)))
		b = append(b, name...)
		for _, v := range f.ClientData {
			b = le.AppendUint32(b, v)
		}
		if len(f.ClientData)%2 == 1 {
			b = le.AppendUint32(b, 0)
		}
	}
	return b
}
