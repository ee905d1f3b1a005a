package object

import (
	"fmt"

	"github.com/robert-malhotra/go-h5table/internal/binary"
	"github.com/robert-malhotra/go-h5table/internal/message"
)

// H5Message is one raw HDF5 header message. Bodies are decoded by the
// message package's HDF5 parsers.
type H5Message struct {
	Type  message.Type
	Flags uint8
	Data  []byte
}

// Shared reports whether the body is a reference to a message stored
// elsewhere instead of the message itself.
func (m H5Message) Shared() bool { return m.Flags&0x02 != 0 }

// H5Header is a decoded HDF5 object header with its continuation blocks
// already followed.
type H5Header struct {
	Version  uint8
	Address  uint64
	Messages []H5Message
}

// maxContinuations bounds the continuation blocks followed for one header.
const maxContinuations = 1024

// block is a span of header messages still to be parsed.
type block struct {
	addr, size uint64
}

// ReadHDF5 reads the HDF5 object header at address. Version 1 headers
// start with their version byte, version 2 headers with "OHDR".
func ReadHDF5(r *binary.Reader, address uint64) (*H5Header, error) {
	sig, err := r.At(int64(address)).ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("%w: reading HDF5 header at 0x%x: %v", ErrTruncated, address, err)
	}
	if string(sig) == "OHDR" {
		return readH5V2(r, address)
	}
	if sig[0] == 1 {
		return readH5V1(r, address)
	}
	return nil, fmt.Errorf("%w: HDF5 header at 0x%x starts with % x", ErrInvalidHeader, address, sig)
}

// Find returns the first message of type t.
func (h *H5Header) Find(t message.Type) (H5Message, bool) {
	for _, m := range h.Messages {
		if m.Type == t {
			return m, true
		}
	}
	return H5Message{}, false
}

// All returns every message of type t in header order.
func (h *H5Header) All(t message.Type) []H5Message {
	var out []H5Message
	for _, m := range h.Messages {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// continuation decodes a continuation message body: offset and length.
func continuation(r *binary.Reader, data []byte) (block, error) {
	cr := binary.NewReader(binary.Bytes(data), binary.Config{OffsetSize: r.OffsetSize(), LengthSize: r.LengthSize()})
	addr, err := cr.ReadOffset()
	if err != nil {
		return block{}, fmt.Errorf("%w: continuation message: %v", ErrInvalidHeader, err)
	}
	size, err := cr.ReadLength()
	if err != nil {
		return block{}, fmt.Errorf("%w: continuation message: %v", ErrInvalidHeader, err)
	}
	return block{addr: addr, size: size}, nil
}
