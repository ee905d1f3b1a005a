package tablefile

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"reflect"
	"slices"
	"strings"

	"github.com/robert-malhotra/go-h5table/internal/dtype"
	"github.com/robert-malhotra/go-h5table/internal/layout"
	"github.com/robert-malhotra/go-h5table/internal/message"
	"github.com/robert-malhotra/go-h5table/internal/object"
)

// Column describes one column of a table.
type Column struct {
	// Name is the column name, unique within the table.
	Name string
	// Dtype is the element datatype name: int8..int64, uint8..uint64,
	// float32, float64, bool or Sn for an n-byte string.
	Dtype string
	// Shape is nil for a scalar column, or the fixed array shape of each
	// cell.
	Shape []int
	// Pos orders the columns. Columns are sorted by Pos, ties keep their
	// given order.
	Pos int
}

// Elements returns the number of elements in one cell.
func (c Column) Elements() int {
	n := 1
	for _, d := range c.Shape {
		n *= d
	}
	return n
}

// rowDatatype builds the compound row datatype of cols.
func rowDatatype(cols []Column) (*message.Datatype, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: a table needs at least one column", ErrSchema)
	}

	sorted := slices.Clone(cols)
	slices.SortStableFunc(sorted, func(a, b Column) int { return cmp.Compare(a.Pos, b.Pos) })

	row := &message.Datatype{Class: message.ClassCompound}
	seen := make(map[string]bool, len(sorted))
	for _, c := range sorted {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: empty column name", ErrSchema)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrSchema, c.Name)
		}
		seen[c.Name] = true

		dt, err := dtype.ParseName(c.Dtype)
		if err != nil {
			return nil, fmt.Errorf("%w: column %q: %v", ErrSchema, c.Name, err)
		}
		if dt.Class == message.ClassOpaque {
			return nil, fmt.Errorf("%w: column %q: json is not a column type", ErrSchema, c.Name)
		}

		member := message.CompoundMember{Name: c.Name, Type: dt}
		for _, d := range c.Shape {
			if d <= 0 {
				return nil, fmt.Errorf("%w: column %q has shape %v", ErrSchema, c.Name, c.Shape)
			}
			member.Dims = append(member.Dims, uint32(d))
		}
		row.Members = append(row.Members, member)
		row.Size += uint32(member.ByteSize())
	}
	return row, nil
}

// columnsOf is the inverse of rowDatatype.
func columnsOf(row *message.Datatype) []Column {
	cols := make([]Column, len(row.Members))
	for i, m := range row.Members {
		cols[i] = Column{Name: m.Name, Dtype: dtype.Name(m.Type), Pos: i}
		for _, d := range m.Dims {
			cols[i].Shape = append(cols[i].Shape, int(d))
		}
	}
	return cols
}

// rowSource serves the encoded rows of a table.
type rowSource interface {
	ChunkRows() uint32
	NumChunks() int
	Len() uint64
	Row(i uint64) ([]byte, error)
	Rows(start, n uint64) ([]byte, error)
}

// Table represents a table of fixed-schema rows.
type Table struct {
	node
	title   string
	row     *message.Datatype
	columns []Column
	byName  map[string]int
	offsets []int
	filters Filters
	rows    rowSource

	// chunked is nil for tables that cannot be appended to.
	chunked *layout.Chunked
}

func newTable(f *File, path, title string, row *message.Datatype, lay *message.TableLayout, fp *message.FilterPipeline) (*Table, error) {
	chunked, err := layout.NewChunked(row, lay, fp, f.reader)
	if err != nil {
		return nil, err
	}
	t := assembleTable(f, path, title, row, fp, chunked)
	t.chunked = chunked
	return t, nil
}

// assembleTable builds the column index of a table reading rows from src.
func assembleTable(f *File, path, title string, row *message.Datatype, fp *message.FilterPipeline, src rowSource) *Table {
	t := &Table{
		node:    node{file: f, path: path},
		title:   title,
		row:     row,
		columns: columnsOf(row),
		byName:  make(map[string]int, len(row.Members)),
		offsets: make([]int, len(row.Members)),
		filters: filtersFromPipeline(fp),
		rows:    src,
	}
	t.attrs = newAttributeSet(&t.node)

	off := 0
	for i, m := range row.Members {
		t.byName[m.Name] = i
		t.offsets[i] = off
		off += m.ByteSize()
	}
	return t
}

// CreateTable creates a table at a path relative to g. Missing
// intermediate groups are created.
func (g *Group) CreateTable(relativePath string, cols []Column, opts ...TableOption) (*Table, error) {
	f := g.file
	if err := f.checkWritable(); err != nil {
		return nil, err
	}

	parts := SplitPath(relativePath)
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: table name cannot be empty", ErrInvalidPath)
	}
	name := parts[len(parts)-1]
	if err := validName(name); err != nil {
		return nil, err
	}

	parent := g
	if len(parts) > 1 {
		var err error
		if parent, err = g.CreateGroup(strings.Join(parts[:len(parts)-1], "/")); err != nil {
			return nil, err
		}
	}
	if existing, ok := parent.children[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrExists, existing.Path())
	}

	options := defaultTableOptions()
	for _, opt := range opts {
		opt(options)
	}

	row, err := rowDatatype(cols)
	if err != nil {
		return nil, err
	}
	pipeline, err := options.filters.pipeline()
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", name, err)
	}
	lay := &message.TableLayout{ChunkRows: options.chunkRows}
	if lay.ChunkRows == 0 {
		lay.ChunkRows = defaultChunkRows(row)
	}

	path := JoinPath(parent.path, name)
	t, err := newTable(f, path, options.title, row, lay, pipeline)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", path, err)
	}
	if _, _, err := f.appendBlock(object.KindTable, object.NewTableHeader(path, options.title, row, lay, pipeline)); err != nil {
		return nil, fmt.Errorf("writing table %s: %w", path, err)
	}
	f.register(parent, t)
	return t, nil
}

// defaultChunkRows sizes chunks to roughly 64 KiB of rows.
func defaultChunkRows(row *message.Datatype) uint32 {
	const target = 64 << 10
	n := target / max(int(row.Size), 1)
	return uint32(min(max(n, 16), layout.DefaultChunkRows*8))
}

// Title returns the table title.
func (t *Table) Title() string { return t.title }

// Columns returns the table columns in storage order.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// ColNames returns the column names in storage order.
func (t *Table) ColNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Col returns the column called name.
func (t *Table) Col(name string) (Column, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// Filters returns the table's chunk filters.
func (t *Table) Filters() Filters { return t.filters }

// ChunkRows returns the number of rows per chunk.
func (t *Table) ChunkRows() int { return int(t.rows.ChunkRows()) }

// NumChunks returns the number of chunks written so far.
func (t *Table) NumChunks() int { return t.rows.NumChunks() }

// Len returns the number of rows, including rows not yet flushed.
func (t *Table) Len() int { return int(t.rows.Len()) }

// Append adds one row. values holds one value per column in storage order;
// array cells may be flat or nested slices.
func (t *Table) Append(values []any) error {
	f := t.file
	if err := f.checkWritable(); err != nil {
		return err
	}
	if t.chunked == nil {
		return fmt.Errorf("%w: table %s", ErrReadOnly, t.path)
	}
	if len(values) != len(t.columns) {
		return fmt.Errorf("%w: %d values for %d columns", ErrRowValue, len(values), len(t.columns))
	}

	buf := make([]byte, t.row.Size)
	for i, m := range t.row.Members {
		cell := values[i]
		if len(m.Dims) > 1 {
			cell = flatten(cell, m.Type)
		}
		n := m.Elements()
		if err := dtype.Encode(m.Type, cell, n, buf[t.offsets[i]:t.offsets[i]+m.ByteSize()]); err != nil {
			return fmt.Errorf("%w: column %q: %v", ErrRowValue, m.Name, err)
		}
	}

	full, err := t.chunked.Append(buf)
	if err != nil {
		return err
	}
	f.metrics.RowWritten(t.path)
	if full {
		return t.Flush()
	}
	return nil
}

// Flush writes the rows appended since the last chunk as a new chunk.
func (t *Table) Flush() error {
	f := t.file
	if err := f.checkWritable(); err != nil {
		return err
	}
	if t.chunked == nil {
		return nil
	}

	info, stored, err := t.chunked.Seal()
	if err != nil {
		return fmt.Errorf("table %s: encoding chunk: %w", t.path, err)
	}
	if info == nil {
		return nil
	}
	addr, _, err := f.appendBlock(object.KindChunk, object.NewChunkHeader(t.path, info, stored))
	if err != nil {
		return fmt.Errorf("table %s: writing chunk: %w", t.path, err)
	}
	if err := t.chunked.Commit(info, addr, len(stored)); err != nil {
		return fmt.Errorf("table %s: %w", t.path, err)
	}
	f.metrics.ChunkFlushed(t.path, len(stored))
	return nil
}

// Row is one decoded table row.
type Row struct {
	// Index is the row number.
	Index  int
	table  *Table
	values []any
}

// Get returns the value of the column called name.
func (r Row) Get(name string) (any, bool) {
	i, ok := r.table.byName[name]
	if !ok {
		return nil, false
	}
	return r.values[i], true
}

// Values returns the cell values in column order. String cells are []byte,
// array cells are slices (nested for multi-dimensional shapes).
func (r Row) Values() []any { return r.values }

// Map returns the row as a column name to value map.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.values))
	for i, c := range r.table.columns {
		m[c.Name] = r.values[i]
	}
	return m
}

// Row decodes row i. It returns an error wrapping ErrBounds when i is out
// of range.
func (t *Table) Row(i int) (Row, error) {
	if t.file.closed {
		return Row{}, ErrClosed
	}
	if i < 0 || i >= t.Len() {
		return Row{}, fmt.Errorf("%w: row %d of %s with %d rows", ErrBounds, i, t.path, t.Len())
	}

	raw, err := t.rows.Row(uint64(i))
	if err != nil {
		if errors.Is(err, layout.ErrRowOutOfRange) {
			return Row{}, fmt.Errorf("%w: %v", ErrBounds, err)
		}
		return Row{}, fmt.Errorf("table %s: %w", t.path, err)
	}

	values := make([]any, len(t.row.Members))
	for c, m := range t.row.Members {
		cell := raw[t.offsets[c] : t.offsets[c]+m.ByteSize()]
		v, err := dtype.Decode(m.Type, cell, m.Elements(), len(m.Dims) == 0)
		if err != nil {
			return Row{}, fmt.Errorf("table %s: row %d column %q: %w", t.path, i, m.Name, err)
		}
		if len(m.Dims) > 1 {
			v = reshape(reflect.ValueOf(v), m.Dims)
		}
		values[c] = v
	}
	return Row{Index: i, table: t, values: values}, nil
}

// Iter yields every row in order. Rows appended while iterating are
// included.
func (t *Table) Iter() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		for i := 0; ; i++ {
			row, err := t.Row(i)
			if errors.Is(err, ErrBounds) {
				return
			}
			if !yield(row, err) || err != nil {
				return
			}
		}
	}
}

// ReadColumn returns every value of one column as a flat typed slice, for
// example []float64 for a float64 column, or [][]byte for a string column.
// Array columns contribute Elements() consecutive values per row.
func (t *Table) ReadColumn(name string) (any, error) {
	if t.file.closed {
		return nil, ErrClosed
	}
	c, ok := t.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: column %q in %s", ErrNotFound, name, t.path)
	}
	m := t.row.Members[c]

	n := t.Len()
	raw, err := t.rows.Rows(0, uint64(n))
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", t.path, err)
	}

	size := m.ByteSize()
	col := make([]byte, 0, n*size)
	for r := 0; r < n; r++ {
		start := r*int(t.row.Size) + t.offsets[c]
		col = append(col, raw[start:start+size]...)
	}
	return dtype.Decode(m.Type, col, n*m.Elements(), false)
}

// flatten turns nested slices into a flat []any. A []byte is one element
// only in string columns. Other values are returned unchanged.
func flatten(v any, dt *message.Datatype) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return v
	}
	var out []any
	var walk func(reflect.Value)
	walk = func(x reflect.Value) {
		if x.Kind() == reflect.Interface {
			x = x.Elem()
		}
		byteString := dt.Class == message.ClassString && x.Kind() == reflect.Slice && x.Type().Elem().Kind() == reflect.Uint8
		if (x.Kind() == reflect.Slice || x.Kind() == reflect.Array) && !byteString {
			for i := 0; i < x.Len(); i++ {
				walk(x.Index(i))
			}
			return
		}
		out = append(out, x.Interface())
	}
	walk(rv)
	return out
}

// reshape splits a flat slice into nested slices of the given dims.
func reshape(flat reflect.Value, dims []uint32) any {
	if len(dims) <= 1 {
		return flat.Interface()
	}
	inner := 1
	for _, d := range dims[1:] {
		inner *= int(d)
	}

	first := reshape(flat.Slice(0, inner), dims[1:])
	out := reflect.MakeSlice(reflect.SliceOf(reflect.TypeOf(first)), int(dims[0]), int(dims[0]))
	out.Index(0).Set(reflect.ValueOf(first))
	for i := 1; i < int(dims[0]); i++ {
		out.Index(i).Set(reflect.ValueOf(reshape(flat.Slice(i*inner, (i+1)*inner), dims[1:])))
	}
	return out.Interface()
}
