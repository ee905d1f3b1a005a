package object

import (
	"fmt"

	"github.com/robert-malhotra/go-h5table/internal/binary"
	"github.com/robert-malhotra/go-h5table/internal/message"
)

/*
Version 1 HDF5 object header:

	0   1  version (1)
	1   1  reserved
	2   2  number of messages
	4   4  reference count
	8   4  header size, the bytes of messages in the first block
	12  4  padding to an 8-byte boundary

Each message, 8-byte aligned:

	0   2  type
	2   2  size of data
	4   1  flags
	5   3  reserved
	8      data

Continuation blocks hold messages only.
*/

const h5v1MessageHeader = 8

func readH5V1(r *binary.Reader, address uint64) (*H5Header, error) {
	hr := r.At(int64(address))
	prefix, err := hr.ReadBytes(16)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if prefix[0] != 1 {
		return nil, fmt.Errorf("%w: HDF5 header version %d", ErrUnsupportedVersion, prefix[0])
	}
	nmsgs := int(binary.DecodeUint(prefix[2:4]))
	size := binary.DecodeUint(prefix[8:12])

	h := &H5Header{Version: 1, Address: address}
	pending := []block{{addr: address + 16, size: size}}
	for n := 0; len(pending) > 0; n++ {
		if n > maxContinuations {
			return nil, fmt.Errorf("%w: more than %d continuation blocks", ErrInvalidHeader, maxContinuations)
		}
		b := pending[0]
		pending = pending[1:]

		data, err := r.At(int64(b.addr)).ReadBytes(int(b.size))
		if err != nil {
			return nil, fmt.Errorf("%w: header block at 0x%x: %v", ErrTruncated, b.addr, err)
		}
		for pos := 0; pos+h5v1MessageHeader <= len(data) && len(h.Messages) < nmsgs; {
			typ := message.Type(binary.DecodeUint(data[pos : pos+2]))
			msize := int(binary.DecodeUint(data[pos+2 : pos+4]))
			flags := data[pos+4]
			pos += h5v1MessageHeader
			if pos+msize > len(data) {
				return nil, fmt.Errorf("%w: %s message overruns its block", ErrInvalidHeader, typ)
			}
			m := H5Message{Type: typ, Flags: flags, Data: data[pos : pos+msize]}
			pos += msize
			if typ == message.TypeContinuation {
				next, err := continuation(r, m.Data)
				if err != nil {
					return nil, err
				}
				pending = append(pending, next)
			}
			h.Messages = append(h.Messages, m)
		}
	}
	return h, nil
}
