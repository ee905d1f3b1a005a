package dtype

import (
	"encoding/binary"
	"math"
	"reflect"
	"testing"

	binpkg "github.com/robert-malhotra/go-h5table/internal/binary"
	"github.com/robert-malhotra/go-h5table/internal/h5test"
	"github.com/robert-malhotra/go-h5table/internal/message"
)

func parseH5(t *testing.T, data []byte) *message.H5Datatype {
	t.Helper()
	h, err := message.ParseH5Datatype(data)
	if err != nil {
		t.Fatalf("ParseH5Datatype failed: %v", err)
	}
	return h
}

func TestFromH5(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
		dims []uint32
		be   bool
	}{
		{"int16", h5test.Int(2, true, false), "int16", nil, false},
		{"uint64 big-endian", h5test.Int(8, false, true), "uint64", nil, true},
		{"float32", h5test.Float(4, false), "float32", nil, false},
		{"float64 big-endian", h5test.Float(8, true), "float64", nil, true},
		{"string", h5test.String(12), "S12", nil, false},
		{"bool enum", h5test.BoolEnum(), "bool", nil, false},
		{"array", h5test.Array(h5test.Float(4, false), 4, 2, 3), "float32", []uint32{2, 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt, dims, be, err := FromH5(parseH5(t, tt.data))
			if err != nil {
				t.Fatalf("FromH5 failed: %v", err)
			}
			if got := Name(dt); got != tt.want {
				t.Errorf("type %q, want %q", got, tt.want)
			}
			if !reflect.DeepEqual(dims, tt.dims) {
				t.Errorf("dims %v, want %v", dims, tt.dims)
			}
			if be != tt.be {
				t.Errorf("big-endian %v, want %v", be, tt.be)
			}
		})
	}
}

func TestFromH5Unsupported(t *testing.T) {
	nested := h5test.Array(h5test.Array(h5test.Int(1, false, false), 1, 2), 2, 2)
	for name, data := range map[string][]byte{
		"vlen string":  h5test.VarLenString(),
		"3-byte int":   h5test.Int(3, true, false),
		"nested array": nested,
	} {
		if _, _, _, err := FromH5(parseH5(t, data)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestRowConverter(t *testing.T) {
	// Record layout with padding: id at 0, energy (big-endian) at 8,
	// a 6-byte string at 16, a vlen member to skip at 24 and a bool at 40.
	h := parseH5(t, h5test.Compound(48,
		h5test.Field{Name: "id", Offset: 0, Type: h5test.Int(4, true, false)},
		h5test.Field{Name: "energy", Offset: 8, Type: h5test.Float(8, true)},
		h5test.Field{Name: "name", Offset: 16, Type: h5test.String(6)},
		h5test.Field{Name: "comment", Offset: 24, Type: h5test.VarLenString()},
		h5test.Field{Name: "is_good", Offset: 40, Type: h5test.BoolEnum()},
	))

	c, err := NewRowConverter(h)
	if err != nil {
		t.Fatalf("NewRowConverter failed: %v", err)
	}
	if len(c.Skipped) != 1 {
		t.Errorf("expected the vlen member to be skipped, got %v", c.Skipped)
	}
	row := c.Row()
	if len(row.Members) != 4 || row.Size != 4+8+6+1 {
		t.Fatalf("unexpected row type with %d members of %d bytes", len(row.Members), row.Size)
	}
	if c.RecordSize() != 48 {
		t.Errorf("record size %d", c.RecordSize())
	}

	records := make([]byte, 2*48)
	for i := 0; i < 2; i++ {
		rec := records[i*48:]
		binary.LittleEndian.PutUint32(rec[0:], uint32(int32(-7+i)))
		binary.BigEndian.PutUint64(rec[8:], math.Float64bits(1.5*float64(i+1)))
		copy(rec[16:], "gamma")
		rec[40] = byte(i)
	}

	out, err := c.Convert(records, 2)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if len(out) != 2*int(row.Size) {
		t.Fatalf("converted %d bytes", len(out))
	}
	for i := 0; i < 2; i++ {
		r := out[i*int(row.Size):]
		if got := int32(binary.LittleEndian.Uint32(r[0:])); got != int32(-7+i) {
			t.Errorf("row %d id = %d", i, got)
		}
		if got := math.Float64frombits(binary.LittleEndian.Uint64(r[4:])); got != 1.5*float64(i+1) {
			t.Errorf("row %d energy = %v", i, got)
		}
		if got := string(r[12:17]); got != "gamma" {
			t.Errorf("row %d name = %q", i, got)
		}
		if r[18] != byte(i) {
			t.Errorf("row %d is_good = %d", i, r[18])
		}
	}

	if _, err := c.Convert(records[:50], 2); err == nil {
		t.Error("expected error for short input")
	}
}

func TestRowConverterErrors(t *testing.T) {
	if _, err := NewRowConverter(parseH5(t, h5test.Int(4, true, false))); err == nil {
		t.Error("expected error for a non-compound type")
	}
	overrun := parseH5(t, h5test.Compound(8,
		h5test.Field{Name: "x", Offset: 4, Type: h5test.Float(8, false)},
	))
	if _, err := NewRowConverter(overrun); err == nil {
		t.Error("expected error for a member past the record end")
	}
	none := parseH5(t, h5test.Compound(16,
		h5test.Field{Name: "s", Offset: 0, Type: h5test.VarLenString()},
	))
	if _, err := NewRowConverter(none); err == nil {
		t.Error("expected error when no member is readable")
	}
}

func TestAttributeFromH5(t *testing.T) {
	a, err := message.ParseH5Attribute(
		h5test.Attribute("counts", h5test.Int(2, false, true), h5test.Dataspace(2), []byte{0x01, 0x02, 0x00, 0x03}),
		binpkg.DefaultConfig(),
	)
	if err != nil {
		t.Fatalf("ParseH5Attribute failed: %v", err)
	}
	attr, err := AttributeFromH5(a, nil)
	if err != nil {
		t.Fatalf("AttributeFromH5 failed: %v", err)
	}
	v, err := Decode(attr.Datatype, attr.Data, 2, false)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !reflect.DeepEqual(v, []uint16{0x0102, 0x0003}) {
		t.Errorf("decoded %v", v)
	}
}

func TestAttributeFromH5VarLenString(t *testing.T) {
	elem := make([]byte, 16)
	binary.LittleEndian.PutUint32(elem, 3)
	binary.LittleEndian.PutUint64(elem[4:], 0x500)
	binary.LittleEndian.PutUint32(elem[12:], 1)

	a, err := message.ParseH5Attribute(
		h5test.Attribute("energy_UNIT", h5test.VarLenString(), h5test.Dataspace(), elem),
		binpkg.DefaultConfig(),
	)
	if err != nil {
		t.Fatalf("ParseH5Attribute failed: %v", err)
	}

	var gotRef []byte
	attr, err := AttributeFromH5(a, func(ref []byte) ([]byte, error) {
		gotRef = ref
		return []byte("TeV"), nil
	})
	if err != nil {
		t.Fatalf("AttributeFromH5 failed: %v", err)
	}
	if !reflect.DeepEqual(gotRef, elem) {
		t.Errorf("resolver got %v, want the whole element", gotRef)
	}
	if Name(attr.Datatype) != "S3" || string(attr.Data) != "TeV" || !attr.Dataspace.IsScalar() {
		t.Errorf("unexpected attribute %s %q %v", Name(attr.Datatype), attr.Data, attr.Dataspace.Dims)
	}

	if _, err := AttributeFromH5(a, nil); err == nil {
		t.Error("expected error without a resolver")
	}

	n, ref, err := VarLenRef(elem)
	if err != nil || n != 3 || len(ref) != 12 {
		t.Errorf("VarLenRef = %d, %v, %v", n, ref, err)
	}
	if _, _, err := VarLenRef(elem[:3]); err == nil {
		t.Error("expected error for a short element")
	}
}
