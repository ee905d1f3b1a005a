package message

import (
	"fmt"

	"github.com/robert-malhotra/go-h5table/internal/binary"
)

const attributeVersion = 1

// Attribute represents an attribute message (type 0x000C).
type Attribute struct {
	Name      string
	Datatype  *Datatype
	Dataspace *Dataspace
	Data      []byte
}

func (m *Attribute) Type() Type { return TypeAttribute }

// Serialize writes version(1), name, datatype, dataspace and the data blob.
func (m *Attribute) Serialize(w *binary.Writer) error {
	if err := w.WriteUint8(attributeVersion); err != nil {
		return err
	}
	if err := w.WriteString(m.Name); err != nil {
		return err
	}
	if err := m.Datatype.Serialize(w); err != nil {
		return err
	}
	if err := m.Dataspace.Serialize(w); err != nil {
		return err
	}
	return w.WriteBlob(m.Data)
}

// SerializedSize returns the size in bytes when serialized.
func (m *Attribute) SerializedSize() int {
	return 1 + binary.StringSize(m.Name) + m.Datatype.SerializedSize() +
		m.Dataspace.SerializedSize() + binary.BlobSize(m.Data)
}

func parseAttribute(r *binary.Reader) (*Attribute, error) {
	version, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != attributeVersion {
		return nil, fmt.Errorf("unsupported attribute version: %d", version)
	}
	attr := &Attribute{}
	if attr.Name, err = r.ReadString(); err != nil {
		return nil, err
	}
	if attr.Datatype, err = parseDatatype(r); err != nil {
		return nil, fmt.Errorf("attribute %q datatype: %w", attr.Name, err)
	}
	if attr.Dataspace, err = parseDataspace(r); err != nil {
		return nil, fmt.Errorf("attribute %q dataspace: %w", attr.Name, err)
	}
	if attr.Data, err = r.ReadBlob(); err != nil {
		return nil, fmt.Errorf("attribute %q data: %w", attr.Name, err)
	}
	return attr, nil
}
