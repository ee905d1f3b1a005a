package object

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/robert-malhotra/go-h5table/internal/binary"
	"github.com/robert-malhotra/go-h5table/internal/message"
)

// Kind is the 4-byte signature that starts a block.
type Kind [4]byte

// Block kinds.
var (
	KindGroup     = Kind{'O', 'G', 'R', 'P'}
	KindTable     = Kind{'O', 'T', 'B', 'L'}
	KindAttribute = Kind{'O', 'A', 'T', 'R'}
	KindChunk     = Kind{'O', 'C', 'H', 'K'}
)

func (k Kind) String() string { return string(k[:]) }

func (k Kind) known() bool {
	switch k {
	case KindGroup, KindTable, KindAttribute, KindChunk:
		return true
	}
	return false
}

// Version is the block format version written by this package.
const Version = 1

// prefixSize is signature(4) + version(1) + flags(1) + body size(4).
const prefixSize = 10

// messageHeaderSize is type(2) + size(4).
const messageHeaderSize = 6

// maxBodySize bounds the body length accepted when reading.
const maxBodySize = 1 << 30

// Errors
var (
	ErrInvalidHeader      = errors.New("invalid object header")
	ErrUnsupportedVersion = errors.New("unsupported object header version")
	ErrChecksumMismatch   = errors.New("object header checksum mismatch")
	ErrTruncated          = errors.New("object header truncated")
)

// Header is one decoded block.
type Header struct {
	Kind Kind

	// Address is the file address where this header was found
	Address uint64

	// Size is the number of bytes the block occupies, checksum included
	Size int64

	// Messages contains all parsed header messages
	Messages []message.Message
}

// Read parses the block at the given address. A block cut short by the end
// of the file yields ErrTruncated.
func Read(r *binary.Reader, address uint64) (*Header, error) {
	hr := r.At(int64(address))

	prefix, err := hr.ReadBytes(prefixSize)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}

	var kind Kind
	copy(kind[:], prefix[:4])
	if !kind.known() {
		return nil, fmt.Errorf("%w: unknown signature %q at address %d", ErrInvalidHeader, prefix[:4], address)
	}
	if prefix[4] != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, prefix[4])
	}
	bodySize := uint32(binary.DecodeUint(prefix[6:10]))
	if bodySize > maxBodySize {
		return nil, fmt.Errorf("%w: body of %d bytes at address %d", ErrInvalidHeader, bodySize, address)
	}

	rest, err := hr.ReadBytes(int(bodySize) + 4)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	body := rest[:bodySize]

	stored := uint32(binary.DecodeUint(rest[bodySize:]))
	computed := binary.Lookup3Checksum(append(bytes.Clone(prefix), body...))
	if stored != computed {
		return nil, fmt.Errorf("%w at address %d (stored=0x%08x, computed=0x%08x)",
			ErrChecksumMismatch, address, stored, computed)
	}

	msgs, err := parseMessages(body, binary.Config{OffsetSize: r.OffsetSize()})
	if err != nil {
		return nil, fmt.Errorf("%s block at address %d: %w", kind, address, err)
	}

	return &Header{
		Kind:     kind,
		Address:  address,
		Size:     int64(prefixSize + len(body) + 4),
		Messages: msgs,
	}, nil
}

func parseMessages(body []byte, cfg binary.Config) ([]message.Message, error) {
	var msgs []message.Message
	r := binary.NewReader(binary.Bytes(body), cfg)
	for r.Pos() < int64(len(body)) {
		typ, err := r.ReadUint16()
		if err != nil {
			return nil, fmt.Errorf("%w: message type: %v", ErrInvalidHeader, err)
		}
		size, err := r.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("%w: message size: %v", ErrInvalidHeader, err)
		}
		data, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, fmt.Errorf("%w: message body: %v", ErrInvalidHeader, err)
		}
		if message.Type(typ) == message.TypeNIL {
			continue
		}
		msg, err := message.Parse(message.Type(typ), data, cfg)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// GetMessage returns the first message of the given type, or nil if not found.
func (h *Header) GetMessage(typ message.Type) message.Message {
	for _, msg := range h.Messages {
		if msg.Type() == typ {
			return msg
		}
	}
	return nil
}

// GetMessages returns all messages of the given type.
func (h *Header) GetMessages(typ message.Type) []message.Message {
	var result []message.Message
	for _, msg := range h.Messages {
		if msg.Type() == typ {
			result = append(result, msg)
		}
	}
	return result
}

// Path returns the object path stored in the Name message, or "".
func (h *Header) Path() string {
	if msg, ok := h.GetMessage(message.TypeName).(*message.Name); ok {
		return msg.Path
	}
	return ""
}

// Title returns the table title, or "".
func (h *Header) Title() string {
	if msg, ok := h.GetMessage(message.TypeTitle).(*message.Title); ok {
		return msg.Text
	}
	return ""
}

// Datatype returns the datatype message, or nil if not present.
func (h *Header) Datatype() *message.Datatype {
	if msg, ok := h.GetMessage(message.TypeDatatype).(*message.Datatype); ok {
		return msg
	}
	return nil
}

// FilterPipeline returns the filter pipeline message, or nil if not present.
func (h *Header) FilterPipeline() *message.FilterPipeline {
	if msg, ok := h.GetMessage(message.TypeFilterPipeline).(*message.FilterPipeline); ok {
		return msg
	}
	return nil
}

// TableLayout returns the table layout message, or nil if not present.
func (h *Header) TableLayout() *message.TableLayout {
	if msg, ok := h.GetMessage(message.TypeTableLayout).(*message.TableLayout); ok {
		return msg
	}
	return nil
}

// Attribute returns the attribute message, or nil if not present.
func (h *Header) Attribute() *message.Attribute {
	if msg, ok := h.GetMessage(message.TypeAttribute).(*message.Attribute); ok {
		return msg
	}
	return nil
}

// ChunkInfo returns the chunk info message, or nil if not present.
func (h *Header) ChunkInfo() *message.ChunkInfo {
	if msg, ok := h.GetMessage(message.TypeChunkInfo).(*message.ChunkInfo); ok {
		return msg
	}
	return nil
}

// ChunkData returns the filtered chunk bytes, or nil if not present.
func (h *Header) ChunkData() []byte {
	if msg, ok := h.GetMessage(message.TypeChunkData).(*message.ChunkData); ok {
		return msg.Data
	}
	return nil
}
