package message

import (
	"fmt"

	"github.com/robert-malhotra/go-h5table/internal/binary"
)

// Type identifies a header message.
type Type uint16

// Header message types. The low values keep their HDF5 numbering.
const (
	TypeNIL            Type = 0x0000
	TypeDataspace      Type = 0x0001
	TypeDatatype       Type = 0x0003
	TypeFilterPipeline Type = 0x000B
	TypeAttribute      Type = 0x000C
	TypeName           Type = 0x0100
	TypeTitle          Type = 0x0101
	TypeTableLayout    Type = 0x0102
	TypeChunkInfo      Type = 0x0103
	TypeChunkData      Type = 0x0104
)

// Message types found only in imported HDF5 object headers.
const (
	TypeLinkInfo      Type = 0x0002
	TypeLink          Type = 0x0006
	TypeDataLayout    Type = 0x0008
	TypeContinuation  Type = 0x0010
	TypeSymbolTable   Type = 0x0011
	TypeAttributeInfo Type = 0x0015
)

func (t Type) String() string {
	switch t {
	case TypeNIL:
		return "nil"
	case TypeDataspace:
		return "dataspace"
	case TypeDatatype:
		return "datatype"
	case TypeFilterPipeline:
		return "filter-pipeline"
	case TypeAttribute:
		return "attribute"
	case TypeName:
		return "name"
	case TypeTitle:
		return "title"
	case TypeTableLayout:
		return "table-layout"
	case TypeChunkInfo:
		return "chunk-info"
	case TypeChunkData:
		return "chunk-data"
	case TypeLinkInfo:
		return "link-info"
	case TypeLink:
		return "link"
	case TypeDataLayout:
		return "data-layout"
	case TypeContinuation:
		return "continuation"
	case TypeSymbolTable:
		return "symbol-table"
	case TypeAttributeInfo:
		return "attribute-info"
	default:
		return fmt.Sprintf("type(0x%04x)", uint16(t))
	}
}

// Message is the interface implemented by all header messages.
type Message interface {
	Type() Type
	// Serialize writes the message body to the writer.
	Serialize(w *binary.Writer) error
	// SerializedSize returns the size of the body in bytes.
	SerializedSize() int
}

// Parse parses a header message body.
func Parse(typ Type, data []byte, cfg binary.Config) (Message, error) {
	r := binary.NewReader(binary.Bytes(data), cfg)
	var (
		msg Message
		err error
	)
	switch typ {
	case TypeDataspace:
		msg, err = parseDataspace(r)
	case TypeDatatype:
		msg, err = parseDatatype(r)
	case TypeFilterPipeline:
		msg, err = parseFilterPipeline(r)
	case TypeAttribute:
		msg, err = parseAttribute(r)
	case TypeName:
		var s string
		s, err = r.ReadString()
		msg = &Name{Path: s}
	case TypeTitle:
		var s string
		s, err = r.ReadString()
		msg = &Title{Text: s}
	case TypeTableLayout:
		msg, err = parseTableLayout(r)
	case TypeChunkInfo:
		msg, err = parseChunkInfo(r)
	case TypeChunkData:
		msg = &ChunkData{Data: data}
	default:
		return &Unknown{typ: typ, data: data}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s message: %w", typ, err)
	}
	return msg, nil
}

// Unknown represents an unrecognized message type. It is preserved verbatim.
type Unknown struct {
	typ  Type
	data []byte
}

func (m *Unknown) Type() Type                       { return m.typ }
func (m *Unknown) Data() []byte                     { return m.data }
func (m *Unknown) SerializedSize() int              { return len(m.data) }
func (m *Unknown) Serialize(w *binary.Writer) error { return w.WriteBytes(m.data) }

// Name carries the absolute path of the object a block describes or targets.
type Name struct {
	Path string
}

func (m *Name) Type() Type                       { return TypeName }
func (m *Name) SerializedSize() int              { return binary.StringSize(m.Path) }
func (m *Name) Serialize(w *binary.Writer) error { return w.WriteString(m.Path) }

// Title is the human readable table title.
type Title struct {
	Text string
}

func (m *Title) Type() Type                       { return TypeTitle }
func (m *Title) SerializedSize() int              { return binary.StringSize(m.Text) }
func (m *Title) Serialize(w *binary.Writer) error { return w.WriteString(m.Text) }
