package filter

import (
	"encoding/binary"
	"fmt"
	"maps"

	"github.com/pierrec/lz4/v4"

	binpkg "github.com/robert-malhotra/go-h5table/internal/binary"
	"github.com/robert-malhotra/go-h5table/internal/message"
)

// H5Registry resolves the filters of chunks written by the HDF5 library.
// It differs from Registry where the HDF5 plugins frame their output
// differently: Fletcher-32 sums big-endian words, and the LZ4 plugin
// writes length-prefixed blocks instead of LZ4 frames. Blosc is only
// available here.
var H5Registry = h5Registry()

func h5Registry() map[uint16]func([]uint32) Filter {
	r := maps.Clone(Registry)
	r[message.FilterFletcher32] = func(cd []uint32) Filter { return &H5Fletcher32{} }
	r[message.FilterLZ4] = func(cd []uint32) Filter { return &H5LZ4{} }
	r[message.FilterBlosc] = func(cd []uint32) Filter { return NewBlosc(cd) }
	return r
}

// H5Fletcher32 verifies the checksum the HDF5 library appends to chunks.
type H5Fletcher32 struct{}

func (f *H5Fletcher32) ID() uint16 { return message.FilterFletcher32 }

// Encode appends the checksum of input.
func (f *H5Fletcher32) Encode(input []byte) ([]byte, error) {
	out := make([]byte, len(input)+4)
	copy(out, input)
	binary.LittleEndian.PutUint32(out[len(input):], binpkg.Fletcher32H5(input))
	return out, nil
}

// Decode verifies and strips the checksum. Files from HDF5 releases before
// 1.6.3 stored it byte-reversed, which is accepted too.
func (f *H5Fletcher32) Decode(input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, fmt.Errorf("fletcher32: input too short for checksum")
	}
	data := input[:len(input)-4]
	stored := binary.LittleEndian.Uint32(input[len(input)-4:])
	sum := binpkg.Fletcher32H5(data)
	if stored != sum && stored != reverse32(sum) {
		return nil, fmt.Errorf("fletcher32: checksum mismatch (stored=0x%08x, computed=0x%08x)", stored, sum)
	}
	return data, nil
}

func reverse32(v uint32) uint32 {
	return v>>24 | (v>>8)&0xff00 | (v<<8)&0xff0000 | v<<24
}

// h5LZ4Block is the block size the HDF5 LZ4 plugin uses by default.
const h5LZ4Block = 1 << 30

// H5LZ4 implements the HDF5 LZ4 plugin format: the original size as a
// big-endian int64 and the block size as a big-endian uint32, then every
// block as a big-endian compressed size and its data. A block whose
// compressed size equals its raw size is stored raw.
type H5LZ4 struct{}

func (f *H5LZ4) ID() uint16 { return message.FilterLZ4 }

func (f *H5LZ4) Encode(input []byte) ([]byte, error) {
	block := max(min(len(input), h5LZ4Block), 1)
	out := binary.BigEndian.AppendUint64(nil, uint64(len(input)))
	out = binary.BigEndian.AppendUint32(out, uint32(block))
	buf := make([]byte, lz4.CompressBlockBound(block))
	for start := 0; start < len(input); start += block {
		src := input[start:min(start+block, len(input))]
		n, err := lz4.CompressBlock(src, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if n == 0 || n >= len(src) {
			out = binary.BigEndian.AppendUint32(out, uint32(len(src)))
			out = append(out, src...)
			continue
		}
		out = binary.BigEndian.AppendUint32(out, uint32(n))
		out = append(out, buf[:n]...)
	}
	return out, nil
}

func (f *H5LZ4) Decode(input []byte) ([]byte, error) {
	if len(input) < 12 {
		return nil, fmt.Errorf("lz4: %d-byte chunk shorter than its header", len(input))
	}
	total := binary.BigEndian.Uint64(input[:8])
	block := int(binary.BigEndian.Uint32(input[8:12]))
	if block <= 0 || total > uint64(len(input))*255+uint64(block) {
		return nil, fmt.Errorf("lz4: implausible sizes %d and %d", total, block)
	}
	out := make([]byte, total)
	pos := 12
	for start := 0; start < int(total); start += block {
		want := min(block, int(total)-start)
		if pos+4 > len(input) {
			return nil, fmt.Errorf("lz4: block at %d truncated", start)
		}
		n := int(binary.BigEndian.Uint32(input[pos:]))
		pos += 4
		if n > len(input)-pos {
			return nil, fmt.Errorf("lz4: block at %d truncated", start)
		}
		dst := out[start : start+want]
		if n == want {
			copy(dst, input[pos:pos+n])
		} else if got, err := lz4.UncompressBlock(input[pos:pos+n], dst); err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		} else if got != want {
			return nil, fmt.Errorf("lz4: block at %d expanded to %d bytes, expected %d", start, got, want)
		}
		pos += n
	}
	return out, nil
}
