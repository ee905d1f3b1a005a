// Package tableloader reads whole tables column by column into Apache Arrow
// records, for bulk analysis without building one container per row.
//
// Column header attributes written by tableio (unit, enumeration,
// description, time scale, stored transforms) become Arrow field metadata;
// the remaining table attributes become schema metadata. Values are the
// stored ones: no transform is inverted.
package tableloader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-h5table/tablefile"
	"github.com/robert-malhotra/go-h5table/tableio"
)

// Field metadata keys.
const (
	MetaUnit            = "unit"
	MetaEnum            = "enum"
	MetaDescription     = "description"
	MetaTimeScale       = "time_scale"
	MetaTimeFormat      = "time_format"
	MetaTransform       = "transform"
	MetaTransformScale  = "transform_scale"
	MetaTransformOffset = "transform_offset"
	MetaTransformDtype  = "transform_dtype"
	MetaMaxLen          = "maxlen"
	// MetaShape holds the comma separated shape of an array column, whose
	// cells are flattened into fixed-size lists.
	MetaShape = "shape"
	// MetaDtype is the stored column type.
	MetaDtype = "dtype"
)

var suffixKeys = []struct {
	suffix, key string
}{
	{tableio.SuffixTransformOffset, MetaTransformOffset},
	{tableio.SuffixTransformScale, MetaTransformScale},
	{tableio.SuffixTransformDtype, MetaTransformDtype},
	{tableio.SuffixTimeFormat, MetaTimeFormat},
	{tableio.SuffixTimeScale, MetaTimeScale},
	{tableio.SuffixTransform, MetaTransform},
	{tableio.SuffixMaxLen, MetaMaxLen},
	{tableio.SuffixDesc, MetaDescription},
	{tableio.SuffixEnum, MetaEnum},
	{tableio.SuffixUnit, MetaUnit},
}

// Option configures Load.
type Option func(*options)

type options struct {
	mem     memory.Allocator
	columns []string
	log     *zap.Logger
}

// WithAllocator sets the Arrow allocator. The default is a Go allocator.
func WithAllocator(mem memory.Allocator) Option {
	return func(o *options) { o.mem = mem }
}

// WithColumns loads only the named columns, in the given order.
func WithColumns(names ...string) Option {
	return func(o *options) { o.columns = names }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// LoadFile opens path read-only and loads one table.
func LoadFile(path, table string, opts ...Option) (arrow.Record, error) {
	f, err := tablefile.Open(path, tablefile.ModeRead)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := f.Table(table)
	if err != nil {
		return nil, err
	}
	return Load(t, opts...)
}

// Load reads every row of t into a new record. The caller must Release it.
func Load(t *tablefile.Table, opts ...Option) (arrow.Record, error) {
	o := &options{mem: memory.NewGoAllocator(), log: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	cols, err := selectColumns(t, o.columns)
	if err != nil {
		return nil, err
	}
	schema, err := schemaOf(t, cols)
	if err != nil {
		return nil, err
	}

	b := array.NewRecordBuilder(o.mem, schema)
	defer b.Release()

	rows := t.Len()
	for i, c := range cols {
		flat, err := t.ReadColumn(c.Name)
		if err != nil {
			return nil, err
		}
		if err := appendColumn(b.Field(i), flat, rows); err != nil {
			return nil, fmt.Errorf("table %s column %s: %w", t.Path(), c.Name, err)
		}
	}

	rec := b.NewRecord()
	o.log.Debug("loaded table",
		zap.String("table", t.Path()),
		zap.Int64("rows", rec.NumRows()),
		zap.Int64("columns", rec.NumCols()))
	return rec, nil
}

// Schema returns the Arrow schema Load would produce for every column of t.
func Schema(t *tablefile.Table) (*arrow.Schema, error) {
	return schemaOf(t, t.Columns())
}

func selectColumns(t *tablefile.Table, names []string) ([]tablefile.Column, error) {
	if len(names) == 0 {
		return t.Columns(), nil
	}
	cols := make([]tablefile.Column, 0, len(names))
	for _, n := range names {
		c, ok := t.Col(n)
		if !ok {
			return nil, fmt.Errorf("%w: column %q in %s", tablefile.ErrNotFound, n, t.Path())
		}
		cols = append(cols, c)
	}
	return cols, nil
}

func schemaOf(t *tablefile.Table, cols []tablefile.Column) (*arrow.Schema, error) {
	attrs := t.Attrs()
	owned := make(map[string]bool)

	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		typ, err := arrowType(c)
		if err != nil {
			return nil, fmt.Errorf("table %s column %s: %w", t.Path(), c.Name, err)
		}
		keys := []string{MetaDtype}
		values := []string{c.Dtype}
		if len(c.Shape) > 0 {
			keys = append(keys, MetaShape)
			values = append(values, joinShape(c.Shape))
		}
		for _, sk := range suffixKeys {
			name := c.Name + sk.suffix
			if !attrs.Has(name) {
				continue
			}
			owned[name] = true
			keys = append(keys, sk.key)
			values = append(values, attrString(attrs.GetDefault(name, nil)))
		}
		fields[i] = arrow.Field{
			Name:     c.Name,
			Type:     typ,
			Metadata: arrow.NewMetadata(keys, values),
		}
	}

	// Attributes of columns not loaded are dropped with their columns.
	colNames := t.ColNames()
	var keys, values []string
	for _, name := range attrs.Names() {
		if owned[name] || ownedByColumn(name, colNames) {
			continue
		}
		keys = append(keys, name)
		values = append(values, attrString(attrs.GetDefault(name, nil)))
	}
	if title := t.Title(); title != "" {
		keys = append(keys, "title")
		values = append(values, title)
	}
	md := arrow.NewMetadata(keys, values)
	return arrow.NewSchema(fields, &md), nil
}

func ownedByColumn(attr string, cols []string) bool {
	for _, sk := range suffixKeys {
		if col, ok := strings.CutSuffix(attr, sk.suffix); ok && slices.Contains(cols, col) {
			return true
		}
	}
	return false
}

func attrString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func joinShape(shape []int) string {
	parts := make([]string, len(shape))
	for i, n := range shape {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

// elementType maps a stored element type onto an Arrow type.
func elementType(dtype string) (arrow.DataType, error) {
	switch dtype {
	case "int8":
		return arrow.PrimitiveTypes.Int8, nil
	case "int16":
		return arrow.PrimitiveTypes.Int16, nil
	case "int32":
		return arrow.PrimitiveTypes.Int32, nil
	case "int64":
		return arrow.PrimitiveTypes.Int64, nil
	case "uint8":
		return arrow.PrimitiveTypes.Uint8, nil
	case "uint16":
		return arrow.PrimitiveTypes.Uint16, nil
	case "uint32":
		return arrow.PrimitiveTypes.Uint32, nil
	case "uint64":
		return arrow.PrimitiveTypes.Uint64, nil
	case "float32":
		return arrow.PrimitiveTypes.Float32, nil
	case "float64":
		return arrow.PrimitiveTypes.Float64, nil
	case "bool":
		return arrow.FixedWidthTypes.Boolean, nil
	}
	if strings.HasPrefix(dtype, "S") {
		return arrow.BinaryTypes.String, nil
	}
	return nil, fmt.Errorf("no Arrow type for %q", dtype)
}

func arrowType(c tablefile.Column) (arrow.DataType, error) {
	elem, err := elementType(c.Dtype)
	if err != nil {
		return nil, err
	}
	if n := c.Elements(); len(c.Shape) > 0 {
		return arrow.FixedSizeListOf(int32(n), elem), nil
	}
	return elem, nil
}

func appendColumn(b array.Builder, flat any, rows int) error {
	if lb, ok := b.(*array.FixedSizeListBuilder); ok {
		for i := 0; i < rows; i++ {
			lb.Append(true)
		}
		return appendValues(lb.ValueBuilder(), flat)
	}
	return appendValues(b, flat)
}

func appendValues(b array.Builder, flat any) error {
	switch v := flat.(type) {
	case []int8:
		b.(*array.Int8Builder).AppendValues(v, nil)
	case []int16:
		b.(*array.Int16Builder).AppendValues(v, nil)
	case []int32:
		b.(*array.Int32Builder).AppendValues(v, nil)
	case []int64:
		b.(*array.Int64Builder).AppendValues(v, nil)
	case []uint8:
		b.(*array.Uint8Builder).AppendValues(v, nil)
	case []uint16:
		b.(*array.Uint16Builder).AppendValues(v, nil)
	case []uint32:
		b.(*array.Uint32Builder).AppendValues(v, nil)
	case []uint64:
		b.(*array.Uint64Builder).AppendValues(v, nil)
	case []float32:
		b.(*array.Float32Builder).AppendValues(v, nil)
	case []float64:
		b.(*array.Float64Builder).AppendValues(v, nil)
	case []bool:
		b.(*array.BooleanBuilder).AppendValues(v, nil)
	case [][]byte:
		sb := b.(*array.StringBuilder)
		for _, s := range v {
			sb.Append(string(s))
		}
	default:
		return fmt.Errorf("unsupported column data %T", flat)
	}
	return nil
}
