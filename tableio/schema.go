package tableio

import (
	"errors"
	"fmt"
	"maps"
	"reflect"

	"go.uber.org/zap"

	"github.com/robert-malhotra/go-h5table/container"
	"github.com/robert-malhotra/go-h5table/tablefile"
	"github.com/robert-malhotra/go-h5table/units"
)

// column is one resolved table column and where its values come from.
type column struct {
	tablefile.Column

	// source is the index of the container in a Write call that supplies
	// the value, and field the container field. source is -1 until known.
	source int
	field  string

	// auto is the automatic transform, applied after any custom one. For
	// reopened tables it is the transform rebuilt from the header.
	auto     Transform
	reopened bool
}

// Schema is the resolved column layout of a table.
type Schema struct {
	columns []*column
	byName  map[string]*column
	meta    map[string]any
}

// Columns returns the table columns in storage order.
func (s *Schema) Columns() []tablefile.Column {
	out := make([]tablefile.Column, len(s.columns))
	for i, c := range s.columns {
		out[i] = c.Column
	}
	return out
}

// Meta returns the header attributes produced while resolving.
func (s *Schema) Meta() map[string]any { return s.meta }

// resolver infers a schema from containers.
type resolver struct {
	table     string
	addPrefix bool
	excluded  func(col string) bool
	custom    func(col string) Transform
	log       *zap.Logger
	dropped   func()
}

// resolve builds the schema of containers written together. Unsupported
// and duplicate columns are dropped with a warning.
func (r *resolver) resolve(containers []*container.Container) *Schema {
	s := &Schema{
		byName: make(map[string]*column),
		meta:   make(map[string]any),
	}

	pos := 0
	for ci, c := range containers {
		typ := c.Type()
		for _, f := range typ.Fields() {
			v, _ := c.Get(f.Name)
			if classify(v) == kindNested {
				r.log.Debug("nested container not stored", zap.String("table", r.table), zap.String("field", f.Name))
				continue
			}

			name := c.Key(f.Name, r.addPrefix)
			if r.excluded(name) {
				r.log.Debug("excluded column", zap.String("table", r.table), zap.String("column", name))
				continue
			}
			if prev, dup := s.byName[name]; dup {
				r.log.Warn("column already provided by an earlier container, skipping",
					zap.String("table", r.table),
					zap.String("column", name),
					zap.String("container", typ.Name()),
					zap.Int("first_source", prev.source))
				continue
			}

			col, attrs, err := r.resolveField(c, f, name, v)
			if err != nil {
				r.log.Warn("column cannot be stored, skipping",
					zap.String("table", r.table),
					zap.String("column", name),
					zap.String("container", typ.Name()),
					zap.Error(err))
				if r.dropped != nil {
					r.dropped()
				}
				continue
			}

			col.source = ci
			col.Pos = pos
			pos++
			s.columns = append(s.columns, col)
			s.byName[name] = col
			maps.Copy(s.meta, attrs)

			r.log.Debug("added column",
				zap.String("table", r.table),
				zap.String("column", name),
				zap.String("dtype", col.Dtype),
				zap.Ints("shape", col.Shape))
		}
	}

	for _, c := range containers {
		maps.Copy(s.meta, c.Meta())
	}
	return s
}

// resolveField picks the transforms and the storage type of one field.
func (r *resolver) resolveField(c *container.Container, f container.Field, name string, v any) (*column, map[string]any, error) {
	col := &column{Column: tablefile.Column{Name: name}, field: f.Name}
	attrs := make(map[string]any)
	if f.Description != "" {
		attrs[name+SuffixDesc] = f.Description
	}

	if custom := r.custom(name); custom != nil {
		out, err := custom.Apply(v)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: custom transform: %v", ErrSchema, err)
		}
		maps.Copy(attrs, custom.Attrs(name))
		v = out
	}

	kind := classify(v)
	switch kind {
	case kindEnum:
		col.auto = newEnumTransform(v.(container.Enum).Type())
	case kindQuantity, kindQuantityArray:
		unit, ok := c.Type().Unit(f.Name)
		if !ok {
			unit = quantityUnit(v)
		}
		col.auto = &QuantityTransform{Unit: unit}
	case kindTime:
		col.auto = DefaultTimeTransform()
	case kindString:
		n := f.MaxLength
		if n == 0 {
			n = max(len(v.(string)), 1)
		}
		col.auto = &StringTransform{MaxLen: n}
	case kindArray, kindScalar:
	default:
		return nil, nil, fmt.Errorf("%w: %s value of type %T", ErrSchema, kind, v)
	}

	if col.auto != nil {
		out, err := col.auto.Apply(v)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrSchema, err)
		}
		maps.Copy(attrs, col.auto.Attrs(name))
		v = out
	}

	var err error
	switch {
	case kind == kindString:
		col.Dtype = fmt.Sprintf("S%d", col.auto.(*StringTransform).MaxLen)
	case isSlice(v):
		col.Dtype, col.Shape, err = arrayShape(v)
	default:
		col.Dtype, err = scalarDtype(v)
	}
	if err != nil {
		return nil, nil, err
	}
	return col, attrs, nil
}

// quantityUnit returns the unit a quantity value carries.
func quantityUnit(v any) units.Unit {
	switch q := v.(type) {
	case units.Quantity:
		return q.Unit
	case units.Quantities:
		return q.Unit
	}
	return units.One
}

// errNoValue marks a column no container supplied a value for.
var errNoValue = errors.New("no container supplies this column")

// lookupValue finds the value of col among containers, resolving and
// remembering its source for reopened tables.
func lookupValue(col *column, containers []*container.Container, addPrefix bool) (*container.Container, any, error) {
	if col.source >= 0 && col.source < len(containers) {
		c := containers[col.source]
		if v, ok := c.Get(col.field); ok {
			return c, v, nil
		}
	}
	for i, c := range containers {
		for _, f := range c.Type().FieldNames() {
			if c.Key(f, addPrefix) == col.Name {
				col.source, col.field = i, f
				v, _ := c.Get(f)
				return c, v, nil
			}
		}
	}
	return nil, nil, errNoValue
}

// conform converts a decoded scalar to the Go type of def when both are
// numbers of different types, so an int field reads back as int.
func conform(v, def any) any {
	if def == nil || v == nil {
		return v
	}
	dv, rv := reflect.ValueOf(def), reflect.ValueOf(v)
	if dv.Type() == rv.Type() || !numericKind(dv.Kind()) || !numericKind(rv.Kind()) {
		return v
	}
	return rv.Convert(dv.Type()).Interface()
}

func numericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
