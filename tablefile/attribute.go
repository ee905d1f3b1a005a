package tablefile

import (
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/goccy/go-json"

	"github.com/robert-malhotra/go-h5table/internal/dtype"
	"github.com/robert-malhotra/go-h5table/internal/message"
	"github.com/robert-malhotra/go-h5table/internal/object"
)

// AttributeSet holds the header attributes of a group or table.
//
// Values are stored with a native datatype when they are a string, bool,
// integer or float, or a slice of one of those. Anything else is stored as
// JSON. Reading back yields string, bool, int64, uint64, float64, the
// corresponding slice types, or the decoded JSON value.
type AttributeSet struct {
	owner *node
	attrs map[string]*message.Attribute
}

func newAttributeSet(owner *node) *AttributeSet {
	return &AttributeSet{owner: owner, attrs: make(map[string]*message.Attribute)}
}

// Set stores value under name, replacing any previous value.
func (a *AttributeSet) Set(name string, value any) error {
	f := a.owner.file
	if f.closed {
		return ErrClosed
	}
	if !f.mode.Writable() {
		return ErrReadOnly
	}
	if name == "" {
		return fmt.Errorf("attribute name cannot be empty")
	}

	attr, err := encodeAttribute(name, value)
	if err != nil {
		return fmt.Errorf("attribute %s: %w", name, err)
	}
	if _, _, err := f.appendBlock(object.KindAttribute, object.NewAttributeHeader(a.owner.path, attr)); err != nil {
		return fmt.Errorf("writing attribute %s: %w", name, err)
	}
	a.attrs[name] = attr
	return nil
}

// Get returns the value stored under name.
func (a *AttributeSet) Get(name string) (any, error) {
	attr, ok := a.attrs[name]
	if !ok {
		return nil, fmt.Errorf("%w: attribute %s", ErrNotFound, JoinAttrPath(a.owner.path, name))
	}
	return decodeAttribute(attr)
}

// GetDefault returns the value stored under name, or def when it is absent
// or cannot be decoded.
func (a *AttributeSet) GetDefault(name string, def any) any {
	v, err := a.Get(name)
	if err != nil {
		return def
	}
	return v
}

// Has reports whether an attribute named name exists.
func (a *AttributeSet) Has(name string) bool {
	_, ok := a.attrs[name]
	return ok
}

// Names returns the attribute names in sorted order.
func (a *AttributeSet) Names() []string {
	return slices.Sorted(maps.Keys(a.attrs))
}

// Len returns the number of attributes.
func (a *AttributeSet) Len() int {
	return len(a.attrs)
}

// Dtype returns the stored datatype name and shape of an attribute.
func (a *AttributeSet) Dtype(name string) (string, []uint64, bool) {
	attr, ok := a.attrs[name]
	if !ok {
		return "", nil, false
	}
	return dtype.Name(attr.Datatype), attr.Dataspace.Dims, true
}

// load installs an attribute read from the file.
func (a *AttributeSet) load(attr *message.Attribute) {
	a.attrs[attr.Name] = attr
}

// scalarDatatype returns the attribute datatype for a Go kind.
func scalarDatatype(k reflect.Kind) *message.Datatype {
	switch k {
	case reflect.Bool:
		return dtype.Bool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return dtype.Int64
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return dtype.Uint64
	case reflect.Float32, reflect.Float64:
		return dtype.Float64
	}
	return nil
}

func encodeAttribute(name string, value any) (*message.Attribute, error) {
	attr := &message.Attribute{Name: name, Dataspace: &message.Dataspace{}}

	rv := reflect.ValueOf(value)
	switch {
	case !rv.IsValid():
	case rv.Kind() == reflect.String:
		attr.Datatype = dtype.String(max(rv.Len(), 1))
		attr.Data = make([]byte, attr.Datatype.Size)
		if err := dtype.Encode(attr.Datatype, rv.String(), 1, attr.Data); err != nil {
			return nil, err
		}
		return attr, nil
	case scalarDatatype(rv.Kind()) != nil:
		attr.Datatype = scalarDatatype(rv.Kind())
		attr.Data = make([]byte, attr.Datatype.Size)
		if err := dtype.Encode(attr.Datatype, value, 1, attr.Data); err != nil {
			return nil, err
		}
		return attr, nil
	case rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array:
		if dt := sliceDatatype(rv); dt != nil {
			n := rv.Len()
			attr.Datatype = dt
			attr.Dataspace.Dims = []uint64{uint64(n)}
			attr.Data = make([]byte, n*int(dt.Size))
			if err := dtype.Encode(dt, value, n, attr.Data); err != nil {
				return nil, err
			}
			return attr, nil
		}
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding JSON: %w", err)
	}
	attr.Datatype = dtype.JSON
	attr.Data = data
	return attr, nil
}

// sliceDatatype returns the element datatype for a slice of primitives, or
// nil when the slice must be stored as JSON.
func sliceDatatype(rv reflect.Value) *message.Datatype {
	elem := rv.Type().Elem().Kind()
	if elem == reflect.String {
		width := 1
		for i := 0; i < rv.Len(); i++ {
			width = max(width, rv.Index(i).Len())
		}
		return dtype.String(width)
	}
	return scalarDatatype(elem)
}

func decodeAttribute(attr *message.Attribute) (any, error) {
	dt := attr.Datatype
	if dt.Class == message.ClassOpaque {
		var v any
		if err := json.Unmarshal(attr.Data, &v); err != nil {
			return nil, fmt.Errorf("attribute %s: decoding JSON: %w", attr.Name, err)
		}
		return v, nil
	}

	scalar := attr.Dataspace.IsScalar()
	n := int(attr.Dataspace.NumElements())
	v, err := dtype.Decode(dt, attr.Data, n, scalar)
	if err != nil {
		return nil, fmt.Errorf("attribute %s: %w", attr.Name, err)
	}

	switch s := v.(type) {
	case []byte:
		if dt.Class == message.ClassString {
			return string(s), nil
		}
	case [][]byte:
		out := make([]string, len(s))
		for i, b := range s {
			out[i] = string(b)
		}
		return out, nil
	}
	return v, nil
}
