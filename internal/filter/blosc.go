package filter

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/robert-malhotra/go-h5table/internal/message"
)

// Blosc decodes chunks compressed by the Blosc filter that PyTables uses by
// default. Only Blosc 1 buffers are understood and encoding is not
// supported.
//
// Client data, as PyTables records it: [0] filter revision, [1] Blosc
// version, [2] type size, [3] chunk size, [4] level, [5] shuffle,
// [6] compressor code.
type Blosc struct {
	clientData []uint32

	decOnce sync.Once
	zdec    *zstd.Decoder
	zerr    error
}

// NewBlosc creates a Blosc filter.
func NewBlosc(clientData []uint32) *Blosc {
	return &Blosc{clientData: clientData}
}

func (f *Blosc) ID() uint16 { return message.FilterBlosc }

// ErrBloscEncode is returned by Blosc.Encode.
var ErrBloscEncode = errors.New("blosc: encoding not supported")

func (f *Blosc) Encode([]byte) ([]byte, error) { return nil, ErrBloscEncode }

// Blosc header flags.
const (
	bloscShuffle    = 0x01
	bloscMemcpyed   = 0x02
	bloscBitShuffle = 0x04
	bloscDontSplit  = 0x10

	bloscHeaderSize = 16
	bloscMaxSplits  = 16
	bloscMinSplit   = 128
)

// Blosc compressor codes, stored in the top three flag bits.
const (
	bloscLZ = iota
	bloscLZ4
	bloscSnappy
	bloscZlib
	bloscZstd
)

// BloscCodecName returns the name of a Blosc compressor code.
func BloscCodecName(code uint32) string {
	switch code {
	case bloscLZ:
		return "blosclz"
	case bloscLZ4:
		return "lz4"
	case bloscSnappy:
		return "snappy"
	case bloscZlib:
		return "zlib"
	case bloscZstd:
		return "zstd"
	}
	return fmt.Sprintf("codec-%d", code)
}

// Decode expands one Blosc buffer.
func (f *Blosc) Decode(input []byte) ([]byte, error) {
	if len(input) < bloscHeaderSize {
		return nil, fmt.Errorf("blosc: %d-byte buffer shorter than its header", len(input))
	}
	flags := input[2]
	typesize := max(int(input[3]), 1)
	nbytes := int(binary.LittleEndian.Uint32(input[4:8]))
	blocksize := int(binary.LittleEndian.Uint32(input[8:12]))
	cbytes := int(binary.LittleEndian.Uint32(input[12:16]))
	if cbytes > len(input) {
		return nil, fmt.Errorf("blosc: header says %d bytes, buffer has %d", cbytes, len(input))
	}
	input = input[:cbytes]

	if flags&bloscMemcpyed != 0 {
		if bloscHeaderSize+nbytes > len(input) {
			return nil, fmt.Errorf("blosc: copied buffer of %d bytes truncated", nbytes)
		}
		return bytes.Clone(input[bloscHeaderSize : bloscHeaderSize+nbytes]), nil
	}
	if flags&bloscBitShuffle != 0 {
		return nil, fmt.Errorf("blosc: bit shuffle not supported")
	}
	if nbytes == 0 {
		return []byte{}, nil
	}
	if blocksize <= 0 {
		return nil, fmt.Errorf("blosc: block size %d", blocksize)
	}

	codec := flags >> 5
	nblocks := (nbytes + blocksize - 1) / blocksize
	if bloscHeaderSize+4*nblocks > len(input) {
		return nil, fmt.Errorf("blosc: %d block offsets do not fit", nblocks)
	}

	out := make([]byte, nbytes)
	for b := 0; b < nblocks; b++ {
		start := int(binary.LittleEndian.Uint32(input[bloscHeaderSize+4*b:]))
		bsize := min(blocksize, nbytes-b*blocksize)
		leftover := bsize < blocksize

		nsplits := 1
		if flags&bloscDontSplit == 0 && !leftover && typesize <= bloscMaxSplits && blocksize/typesize >= bloscMinSplit {
			nsplits = typesize
		}
		block, err := f.decodeBlock(input, start, bsize, nsplits, codec)
		if err != nil {
			return nil, fmt.Errorf("blosc block %d: %w", b, err)
		}
		if flags&bloscShuffle != 0 {
			block = UnshuffleBytes(block, typesize)
		}
		copy(out[b*blocksize:], block)
	}
	return out, nil
}

// decodeBlock expands the nsplits streams of one block. Each stream is a
// 4-byte compressed size followed by the data; a stream as long as its
// output is stored raw.
func (f *Blosc) decodeBlock(input []byte, pos, bsize, nsplits int, codec byte) ([]byte, error) {
	block := make([]byte, 0, bsize)
	neblock := bsize / nsplits
	for s := 0; s < nsplits; s++ {
		if pos < 0 || pos+4 > len(input) {
			return nil, fmt.Errorf("stream %d starts outside the buffer", s)
		}
		n := int(int32(binary.LittleEndian.Uint32(input[pos:])))
		pos += 4
		if n < 0 || pos+n > len(input) {
			return nil, fmt.Errorf("stream %d of %d bytes overruns the buffer", s, n)
		}
		src := input[pos : pos+n]
		pos += n

		if n == neblock {
			block = append(block, src...)
			continue
		}
		dst, err := f.decompress(codec, src, neblock)
		if err != nil {
			return nil, fmt.Errorf("%s stream %d: %w", BloscCodecName(uint32(codec)), s, err)
		}
		if len(dst) != neblock {
			return nil, fmt.Errorf("%s stream %d expanded to %d bytes, expected %d",
				BloscCodecName(uint32(codec)), s, len(dst), neblock)
		}
		block = append(block, dst...)
	}
	return block, nil
}

func (f *Blosc) decompress(codec byte, src []byte, size int) ([]byte, error) {
	switch codec {
	case bloscLZ:
		return BloscLZDecode(src, size)
	case bloscLZ4:
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(src, dst)
		if err != nil {
			return nil, err
		}
		return dst[:n], nil
	case bloscSnappy:
		return snappy.Decode(nil, src)
	case bloscZlib:
		r, err := zlib.NewReader(bytes.NewReader(src))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case bloscZstd:
		f.decOnce.Do(func() {
			f.zdec, f.zerr = zstd.NewReader(nil)
		})
		if f.zerr != nil {
			return nil, f.zerr
		}
		return f.zdec.DecodeAll(src, make([]byte, 0, size))
	}
	return nil, fmt.Errorf("unknown compressor code %d", codec)
}

// bloscMaxDistance is the largest match distance of the short form.
const bloscMaxDistance = 8191

// BloscLZDecode expands a BloscLZ stream into at most size bytes.
//
// Each control byte is either a literal run (values below 32, run length
// value+1) or a match: the top three bits hold the length minus 2, with 7
// meaning more length bytes follow, and the low five bits with the next
// byte hold the distance. A distance byte of 255 after the largest high
// part announces a 16-bit distance.
func BloscLZDecode(src []byte, size int) ([]byte, error) {
	if len(src) == 0 {
		return nil, fmt.Errorf("empty blosclz stream")
	}
	out := make([]byte, 0, size)
	ip := 0
	ctrl := int(src[ip] & 31)
	ip++

	for {
		if ctrl >= 32 {
			length := (ctrl >> 5) - 1
			ofs := (ctrl & 31) << 8
			if length == 6 {
				for {
					if ip+1 >= len(src) {
						return nil, fmt.Errorf("blosclz: match length runs past input")
					}
					code := int(src[ip])
					ip++
					length += code
					if code != 255 {
						break
					}
				}
			}
			if ip >= len(src) {
				return nil, fmt.Errorf("blosclz: match truncated")
			}
			code := int(src[ip])
			ip++
			length += 3
			dist := ofs + code
			if code == 255 && ofs == 31<<8 {
				if ip+1 >= len(src) {
					return nil, fmt.Errorf("blosclz: long distance truncated")
				}
				dist = int(src[ip])<<8 | int(src[ip+1]) + bloscMaxDistance
				ip += 2
			}
			// The reference points dist+1 bytes back.
			ref := len(out) - dist - 1
			if ref < 0 {
				return nil, fmt.Errorf("blosclz: match reaches before the output start")
			}
			if len(out)+length > size {
				return nil, fmt.Errorf("blosclz: output exceeds %d bytes", size)
			}
			for i := 0; i < length; i++ {
				out = append(out, out[ref+i])
			}
		} else {
			n := ctrl + 1
			if len(out)+n > size || ip+n > len(src) {
				return nil, fmt.Errorf("blosclz: literal run of %d bytes overruns", n)
			}
			out = append(out, src[ip:ip+n]...)
			ip += n
		}
		if ip >= len(src) {
			return out, nil
		}
		ctrl = int(src[ip])
		ip++
	}
}
