// Package container defines typed records: a Type declares an ordered list
// of fields with their metadata, and a Container holds one value per field.
//
// Containers are the unit of I/O for package tableio. A container may carry
// a prefix, which table writers can prepend to column names, and free-form
// metadata that is copied into table headers.
//
//	var Hillas = container.MustType("HillasParametersContainer", "hillas",
//		container.Field{Name: "intensity", Default: 0.0, Unit: "p.e.", Description: "total intensity"},
//		container.Field{Name: "width", Default: 0.0, Unit: "deg"},
//	)
//
//	c := Hillas.New()
//	c.Set("intensity", units.MustQuantity(312, "p.e."))
package container

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"reflect"

	"github.com/robert-malhotra/go-h5table/units"
)

// Errors
var (
	ErrUnknownField = errors.New("unknown field")
	ErrInvalidType  = errors.New("invalid container type")
	ErrValidation   = errors.New("container validation failed")
)

// Field declares one field of a Type.
type Field struct {
	// Name is the field name, unique within its type.
	Name string
	// Default is copied into new containers. A func() any is called once
	// per container, which gives every container its own nested container
	// or slice.
	Default any
	// Description is a human-readable explanation of the field.
	Description string
	// Unit is the unit values must be stored in, "" when not declared.
	Unit string
	// Enum is the enumeration values of this field belong to.
	Enum *EnumType
	// MaxLength bounds the byte length of string values; 0 means unbounded.
	MaxLength int
	// Required fields must not be nil when validated.
	Required bool
}

// Type describes the fields of a kind of container.
type Type struct {
	name   string
	prefix string
	fields []Field
	index  map[string]int
	units  map[string]units.Unit
}

// NewType declares a container type. prefix is the default column prefix
// of its containers.
func NewType(name, prefix string, fields ...Field) (*Type, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty type name", ErrInvalidType)
	}
	t := &Type{
		name:   name,
		prefix: prefix,
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
		units:  make(map[string]units.Unit),
	}
	copy(t.fields, fields)

	for i, f := range t.fields {
		if f.Name == "" {
			return nil, fmt.Errorf("%w: %s: field %d has no name", ErrInvalidType, name, i)
		}
		if _, dup := t.index[f.Name]; dup {
			return nil, fmt.Errorf("%w: %s: duplicate field %q", ErrInvalidType, name, f.Name)
		}
		t.index[f.Name] = i
		if f.Unit != "" {
			u, err := units.Parse(f.Unit)
			if err != nil {
				return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalidType, name, f.Name, err)
			}
			t.units[f.Name] = u
		}
		if f.MaxLength < 0 {
			return nil, fmt.Errorf("%w: %s.%s: negative max length", ErrInvalidType, name, f.Name)
		}
	}
	return t, nil
}

// MustType is like NewType but panics on error. It is meant for package
// level type declarations.
func MustType(name, prefix string, fields ...Field) *Type {
	t, err := NewType(name, prefix, fields...)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the type name.
func (t *Type) Name() string { return t.name }

// Prefix returns the default prefix of containers of this type.
func (t *Type) Prefix() string { return t.prefix }

// Fields returns the fields in declaration order.
func (t *Type) Fields() []Field {
	out := make([]Field, len(t.fields))
	copy(out, t.fields)
	return out
}

// FieldNames returns the field names in declaration order.
func (t *Type) FieldNames() []string {
	names := make([]string, len(t.fields))
	for i, f := range t.fields {
		names[i] = f.Name
	}
	return names
}

// Field returns the field called name.
func (t *Type) Field(name string) (Field, bool) {
	i, ok := t.index[name]
	if !ok {
		return Field{}, false
	}
	return t.fields[i], true
}

// Has reports whether t declares a field called name.
func (t *Type) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Unit returns the parsed unit declared for a field.
func (t *Type) Unit(name string) (units.Unit, bool) {
	u, ok := t.units[name]
	return u, ok
}

// New returns a container holding the field defaults.
func (t *Type) New() *Container {
	c := &Container{
		typ:    t,
		prefix: t.prefix,
		values: make([]any, len(t.fields)),
		meta:   make(map[string]any),
	}
	for i, f := range t.fields {
		if fn, ok := f.Default.(func() any); ok {
			c.values[i] = fn()
		} else {
			c.values[i] = f.Default
		}
	}
	return c
}

func (t *Type) String() string { return t.name }

// Container is an instance of a Type.
type Container struct {
	typ    *Type
	prefix string
	values []any
	meta   map[string]any
}

// Type returns the container's type.
func (c *Container) Type() *Type { return c.typ }

// Prefix returns the column prefix, initially the type's prefix.
func (c *Container) Prefix() string { return c.prefix }

// SetPrefix overrides the column prefix of this container.
func (c *Container) SetPrefix(p string) { c.prefix = p }

// Meta returns the container's free-form metadata. The map is owned by the
// container and may be modified.
func (c *Container) Meta() map[string]any { return c.meta }

// Get returns the value of a field.
func (c *Container) Get(name string) (any, bool) {
	i, ok := c.typ.index[name]
	if !ok {
		return nil, false
	}
	return c.values[i], true
}

// Set assigns a field value.
func (c *Container) Set(name string, v any) error {
	i, ok := c.typ.index[name]
	if !ok {
		return fmt.Errorf("%w: %s has no field %q", ErrUnknownField, c.typ.name, name)
	}
	c.values[i] = v
	return nil
}

// MustSet is like Set but panics on error.
func (c *Container) MustSet(name string, v any) {
	if err := c.Set(name, v); err != nil {
		panic(err)
	}
}

// Key returns the column name of a field: the field name, or
// prefix_field when addPrefix is set and the container has a prefix.
func (c *Container) Key(field string, addPrefix bool) string {
	if addPrefix && c.prefix != "" {
		return c.prefix + "_" + field
	}
	return field
}

// Items yields (key, value) pairs in declaration order, with keys built by
// Key.
func (c *Container) Items(addPrefix bool) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for i, f := range c.typ.fields {
			if !yield(c.Key(f.Name, addPrefix), c.values[i]) {
				return
			}
		}
	}
}

// Map returns the field values keyed by field name. Nested containers are
// converted recursively.
func (c *Container) Map() map[string]any {
	m := make(map[string]any, len(c.values))
	for i, f := range c.typ.fields {
		switch v := c.values[i].(type) {
		case *Container:
			m[f.Name] = v.Map()
		case *Map:
			m[f.Name] = v.asMap()
		default:
			m[f.Name] = v
		}
	}
	return m
}

// Clone returns a shallow copy of c with its own value slice and metadata
// map.
func (c *Container) Clone() *Container {
	out := &Container{
		typ:    c.typ,
		prefix: c.prefix,
		values: make([]any, len(c.values)),
		meta:   maps.Clone(c.meta),
	}
	copy(out.values, c.values)
	return out
}

// Validate checks every field against its declaration: required fields
// are set, enum fields hold members of their enumeration, unit fields hold
// convertible quantities and strings fit MaxLength. Nested containers are
// validated too. All problems are reported together.
func (c *Container) Validate() error {
	var errs []error
	for i, f := range c.typ.fields {
		if err := c.validateField(f, c.values[i]); err != nil {
			errs = append(errs, fmt.Errorf("%s.%s: %w", c.typ.name, f.Name, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidation, errors.Join(errs...))
}

func (c *Container) validateField(f Field, v any) error {
	if v == nil {
		if f.Required {
			return errors.New("required field is not set")
		}
		return nil
	}

	switch x := v.(type) {
	case *Container:
		return x.Validate()
	case *Map:
		for _, k := range x.Keys() {
			sub, _ := x.Lookup(k)
			if err := sub.Validate(); err != nil {
				return fmt.Errorf("[%d]: %w", k, err)
			}
		}
		return nil
	case Enum:
		if f.Enum != nil && x.Type() != f.Enum {
			return fmt.Errorf("enum %s is not a member of %s", x, f.Enum.Name())
		}
		return nil
	case units.Quantity:
		return checkUnit(c.typ, f.Name, x.Unit)
	case units.Quantities:
		return checkUnit(c.typ, f.Name, x.Unit)
	case string:
		if f.MaxLength > 0 && len(x) > f.MaxLength {
			return fmt.Errorf("string of %d bytes exceeds max length %d", len(x), f.MaxLength)
		}
	}

	if f.Enum != nil {
		return fmt.Errorf("expected a member of %s, got %T", f.Enum.Name(), v)
	}
	if _, ok := c.typ.units[f.Name]; ok && isNumber(v) {
		return fmt.Errorf("expected a quantity in %s, got a bare %T", f.Unit, v)
	}
	return nil
}

func checkUnit(t *Type, field string, got units.Unit) error {
	want, ok := t.units[field]
	if !ok || got.Convertible(want) {
		return nil
	}
	return fmt.Errorf("unit %q cannot be converted to %q", got, want)
}

func isNumber(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
