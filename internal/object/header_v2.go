package object

import (
	"fmt"

	"github.com/robert-malhotra/go-h5table/internal/binary"
	"github.com/robert-malhotra/go-h5table/internal/message"
)

/*
Version 2 HDF5 object header:

	0   4  signature "OHDR"
	4   1  version (2)
	5   1  flags
	       bits 0-1  width of the chunk 0 size field, 1 << value bytes
	       bit  2    messages carry a creation order
	       bit  4    attribute phase change values present
	       bit  5    access, modification, change and birth times present
	       16        times, when flag bit 5 is set
	       4         max compact and min dense attributes, when bit 4 is set
	       1-8       size of chunk 0
	       messages
	       4         lookup3 checksum of everything before it

Each message:

	0   1  type
	1   2  size of data
	3   1  flags
	4   2  creation order, when header flag bit 2 is set
	       data

Continuation blocks start with "OCHK" and end with a checksum.
*/

const (
	h5v2FlagSizeMask   = 0x03
	h5v2FlagCrtOrder   = 0x04
	h5v2FlagPhase      = 0x10
	h5v2FlagTimes      = 0x20
	h5v2MessageHeader  = 4
	h5v2ContinuationSz = 4 + 4 // "OCHK" and checksum
)

func readH5V2(r *binary.Reader, address uint64) (*H5Header, error) {
	hr := r.At(int64(address) + 4)
	fixed, err := hr.ReadBytes(2)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if fixed[0] != 2 {
		return nil, fmt.Errorf("%w: HDF5 header version %d", ErrUnsupportedVersion, fixed[0])
	}
	flags := fixed[1]
	if flags&h5v2FlagTimes != 0 {
		hr.Skip(16)
	}
	if flags&h5v2FlagPhase != 0 {
		hr.Skip(4)
	}
	sizeField, err := hr.ReadBytes(1 << (flags & h5v2FlagSizeMask))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	chunk0 := binary.DecodeUint(sizeField)

	start := uint64(hr.Pos())
	whole, err := r.At(int64(address)).ReadBytes(int(start-address) + int(chunk0) + 4)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if err := verifyH5(whole, address); err != nil {
		return nil, err
	}

	msgHeader := h5v2MessageHeader
	if flags&h5v2FlagCrtOrder != 0 {
		msgHeader += 2
	}

	h := &H5Header{Version: 2, Address: address}
	pending, err := h.parseV2(r, whole[start-address:len(whole)-4], msgHeader)
	if err != nil {
		return nil, err
	}
	for n := 0; len(pending) > 0; n++ {
		if n > maxContinuations {
			return nil, fmt.Errorf("%w: more than %d continuation blocks", ErrInvalidHeader, maxContinuations)
		}
		b := pending[0]
		pending = pending[1:]
		if b.size < h5v2ContinuationSz {
			return nil, fmt.Errorf("%w: continuation block of %d bytes", ErrInvalidHeader, b.size)
		}
		data, err := r.At(int64(b.addr)).ReadBytes(int(b.size))
		if err != nil {
			return nil, fmt.Errorf("%w: continuation block at 0x%x: %v", ErrTruncated, b.addr, err)
		}
		if string(data[:4]) != "OCHK" {
			return nil, fmt.Errorf("%w: continuation block at 0x%x has signature %q", ErrInvalidHeader, b.addr, data[:4])
		}
		if err := verifyH5(data, b.addr); err != nil {
			return nil, err
		}
		more, err := h.parseV2(r, data[4:len(data)-4], msgHeader)
		if err != nil {
			return nil, err
		}
		pending = append(pending, more...)
	}
	return h, nil
}

// parseV2 appends the messages of one block and returns the continuation
// blocks it names. A tail shorter than a message header is a gap.
func (h *H5Header) parseV2(r *binary.Reader, data []byte, msgHeader int) ([]block, error) {
	var next []block
	for pos := 0; pos+msgHeader <= len(data); {
		typ := message.Type(data[pos])
		n := int(binary.DecodeUint(data[pos+1 : pos+3]))
		flags := data[pos+3]
		pos += msgHeader
		if pos+n > len(data) {
			return nil, fmt.Errorf("%w: %s message overruns its block", ErrInvalidHeader, typ)
		}
		m := H5Message{Type: typ, Flags: flags, Data: data[pos : pos+n]}
		pos += n
		if typ == message.TypeContinuation {
			b, err := continuation(r, m.Data)
			if err != nil {
				return nil, err
			}
			next = append(next, b)
		}
		h.Messages = append(h.Messages, m)
	}
	return next, nil
}

// verifyH5 checks the trailing lookup3 checksum of a header block.
func verifyH5(data []byte, addr uint64) error {
	n := len(data) - 4
	if !binary.VerifyLookup3(data[:n], uint32(binary.DecodeUint(data[n:]))) {
		return fmt.Errorf("%w: HDF5 header block at 0x%x", ErrChecksumMismatch, addr)
	}
	return nil
}
