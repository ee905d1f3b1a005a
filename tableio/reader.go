package tableio

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/robert-malhotra/go-h5table/container"
	"github.com/robert-malhotra/go-h5table/internal/metrics"
	"github.com/robert-malhotra/go-h5table/tablefile"
)

// readerTable is what a Reader knows about one table.
type readerTable struct {
	table      *tablefile.Table
	transforms map[string]Transform
	attrs      map[string]any
	mappings   map[string]*mapping
}

// fieldSource says how one field of a requested type is filled.
type fieldSource struct {
	field  string
	column string
	def    any
	tr     Transform
}

// mapping binds the columns of a table to the fields of requested types.
type mapping struct {
	types    []*container.Type
	prefixes []string
	sources  [][]fieldSource
	missing  [][]string
	meta     []map[string]any
}

// Reader reads table rows back into containers.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	file    *tablefile.File
	log     *zap.Logger
	metrics *metrics.Metrics
	tables  map[string]*readerTable
	custom  map[string]map[string]Transform
}

// NewReader opens path read-only.
func NewReader(path string, opts ...Option) (*Reader, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	f, err := tablefile.Open(path, tablefile.ModeRead, o.fileOptions()...)
	if err != nil {
		return nil, err
	}
	return &Reader{
		file:    f,
		log:     o.logger,
		metrics: metrics.For(o.registerer),
		tables:  make(map[string]*readerTable),
		custom:  make(map[string]map[string]Transform),
	}, nil
}

// File returns the underlying table file.
func (r *Reader) File() *tablefile.File { return r.file }

// AddColumnTransform makes the reader use tr.Inverse for a column instead of
// the transform recorded in the table header. It must be called before the
// table is first read.
func (r *Reader) AddColumnTransform(table, col string, tr Transform) {
	table = tablefile.CleanPath(table)
	if r.custom[table] == nil {
		r.custom[table] = make(map[string]Transform)
	}
	r.custom[table][col] = tr
}

// ReadOne is Read for a single type.
func (r *Reader) ReadOne(table string, typ *container.Type, opts ...ReadOption) iter.Seq2[*container.Container, error] {
	return func(yield func(*container.Container, error) bool) {
		for row, err := range r.Read(table, []*container.Type{typ}, opts...) {
			var c *container.Container
			if err == nil {
				c = row[0]
			}
			if !yield(c, err) {
				return
			}
		}
	}
}

// Read yields the rows of table as new containers, one per requested type,
// starting at row 0. Each call starts over. Setup problems are yielded as a
// single error.
func (r *Reader) Read(table string, types []*container.Type, opts ...ReadOption) iter.Seq2[[]*container.Container, error] {
	return func(yield func([]*container.Container, error) bool) {
		m, rt, err := r.setup(table, types, opts)
		if err != nil {
			yield(nil, err)
			return
		}

		for i := 0; ; i++ {
			row, err := rt.table.Row(i)
			if errors.Is(err, tablefile.ErrBounds) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			out, err := m.materialize(row)
			if err != nil {
				yield(nil, fmt.Errorf("table %s row %d: %w", rt.table.Path(), i, err))
				return
			}
			r.metrics.RowRead(rt.table.Path())
			if !yield(out, nil) {
				return
			}
		}
	}
}

func (r *Reader) setup(table string, types []*container.Type, opts []ReadOption) (*mapping, *readerTable, error) {
	if r.file == nil {
		return nil, nil, tablefile.ErrClosed
	}
	if len(types) == 0 {
		return nil, nil, fmt.Errorf("%w: no container types requested", ErrTypeContract)
	}
	for i, t := range types {
		if t == nil {
			return nil, nil, fmt.Errorf("%w: type %d is nil", ErrTypeContract, i)
		}
	}

	ro := &readOptions{}
	for _, opt := range opts {
		opt(ro)
	}
	prefixes := make([]string, len(types))
	switch {
	case ro.prefixes != nil:
		if len(ro.prefixes) != len(types) {
			return nil, nil, fmt.Errorf("%w: %d prefixes for %d types", ErrConfiguration, len(ro.prefixes), len(types))
		}
		copy(prefixes, ro.prefixes)
	case ro.typePrefixes:
		for i, t := range types {
			prefixes[i] = t.Prefix()
		}
	}

	path := tablefile.CleanPath(table)
	rt, ok := r.tables[path]
	if !ok {
		var err error
		if rt, err = r.loadTable(path); err != nil {
			return nil, nil, err
		}
		r.tables[path] = rt
	}

	key := mappingKey(types, prefixes, ro.ignore)
	m, ok := rt.mappings[key]
	if !ok {
		m = r.mapColumns(rt, types, prefixes, ro.ignore)
		rt.mappings[key] = m
	}
	return m, rt, nil
}

// loadTable resolves a table and rebuilds its transforms from the header.
func (r *Reader) loadTable(path string) (*readerTable, error) {
	t, err := r.file.Table(path)
	if err != nil {
		return nil, err
	}
	rt := &readerTable{
		table:      t,
		transforms: make(map[string]Transform),
		attrs:      make(map[string]any),
		mappings:   make(map[string]*mapping),
	}
	for _, name := range t.Attrs().Names() {
		v, err := t.Attrs().Get(name)
		if err != nil {
			r.log.Warn("unreadable header attribute", zap.String("table", path), zap.String("attribute", name), zap.Error(err))
			continue
		}
		rt.attrs[name] = v
	}

	get := func(name string) (any, bool) {
		v, ok := rt.attrs[name]
		return v, ok
	}
	for _, col := range t.Columns() {
		if tr, ok := r.custom[path][col.Name]; ok {
			rt.transforms[col.Name] = tr
			continue
		}
		tr, err := rebuildTransform(col, get)
		if err != nil {
			r.log.Warn("cannot rebuild column transform, reading raw values",
				zap.String("table", path), zap.Error(err))
			continue
		}
		if tr != nil {
			rt.transforms[col.Name] = tr
		}
	}
	return rt, nil
}

func mappingKey(types []*container.Type, prefixes []string, ignore map[string]bool) string {
	var b strings.Builder
	for i, t := range types {
		fmt.Fprintf(&b, "%p:%s;", t, prefixes[i])
	}
	for _, col := range slices.Sorted(maps.Keys(ignore)) {
		b.WriteString("!" + col + ";")
	}
	return b.String()
}

// mapColumns binds table columns to type fields and partitions the header
// metadata between the types.
func (r *Reader) mapColumns(rt *readerTable, types []*container.Type, prefixes []string, ignore map[string]bool) *mapping {
	t := rt.table
	m := &mapping{
		types:    types,
		prefixes: prefixes,
		sources:  make([][]fieldSource, len(types)),
		missing:  make([][]string, len(types)),
		meta:     make([]map[string]any, len(types)),
	}

	used := make(map[string]bool)
	for ti, typ := range types {
		for _, f := range typ.Fields() {
			if classify(defaultOf(f)) == kindNested {
				continue
			}
			col := columnName(prefixes[ti], f.Name)
			if ignore[col] {
				continue
			}
			if _, ok := t.Col(col); !ok {
				m.missing[ti] = append(m.missing[ti], f.Name)
				continue
			}
			used[col] = true
			m.sources[ti] = append(m.sources[ti], fieldSource{
				field:  f.Name,
				column: col,
				def:    defaultOf(f),
				tr:     r.fieldTransform(t.Path(), rt.transforms[col], f),
			})
		}
		if len(m.missing[ti]) > 0 {
			r.log.Warn("table is missing fields of the requested type, they will be nil",
				zap.String("table", t.Path()),
				zap.String("container", typ.Name()),
				zap.Strings("fields", m.missing[ti]))
		}
	}

	for _, col := range t.ColNames() {
		if !used[col] {
			r.log.Debug("column not mapped to any requested field",
				zap.String("table", t.Path()), zap.String("column", col))
		}
	}

	for ti := range types {
		m.meta[ti] = make(map[string]any)
	}
	for name, v := range rt.attrs {
		owners := metaOwners(name, types, prefixes)
		if len(owners) == 0 {
			for ti := range types {
				m.meta[ti][name] = v
			}
			continue
		}
		for _, ti := range owners {
			m.meta[ti][name] = v
		}
	}
	return m
}

// fieldTransform resolves the enumeration of an enum column: the field's
// own enumeration when its name matches, then the registry. Without either
// the integer codes are kept.
func (r *Reader) fieldTransform(table string, tr Transform, f container.Field) Transform {
	et, ok := tr.(*EnumTransform)
	if !ok {
		return tr
	}
	if f.Enum != nil && f.Enum.Name() == et.Name {
		return &EnumTransform{Name: et.Name, Enum: f.Enum, Dtype: et.Dtype}
	}
	if et.Enum == nil {
		r.log.Warn("enumeration not known, keeping integer codes",
			zap.String("table", table), zap.String("field", f.Name), zap.String("enum", et.Name))
		return nil
	}
	return et
}

// metaOwners returns the indexes of the types an attribute belongs to: those
// declaring the field named by the attribute once its suffix and the type's
// prefix are removed.
func metaOwners(attr string, types []*container.Type, prefixes []string) []int {
	col, _, ok := stripSuffix(attr)
	if !ok {
		return nil
	}
	var owners []int
	for ti, typ := range types {
		field := col
		if p := prefixes[ti]; p != "" {
			rest, found := strings.CutPrefix(col, p+"_")
			if !found {
				continue
			}
			field = rest
		}
		if typ.Has(field) {
			owners = append(owners, ti)
		}
	}
	return owners
}

func columnName(prefix, field string) string {
	if prefix == "" {
		return field
	}
	return prefix + "_" + field
}

func defaultOf(f container.Field) any {
	if fn, ok := f.Default.(func() any); ok {
		return fn()
	}
	return f.Default
}

// materialize builds fresh containers from one row.
func (m *mapping) materialize(row tablefile.Row) ([]*container.Container, error) {
	out := make([]*container.Container, len(m.types))
	for ti, typ := range m.types {
		c := typ.New()
		if m.prefixes[ti] != "" {
			c.SetPrefix(m.prefixes[ti])
		}
		for _, src := range m.sources[ti] {
			raw, _ := row.Get(src.column)
			v := raw
			if src.tr != nil {
				var err error
				if v, err = src.tr.Inverse(raw); err != nil {
					return nil, fmt.Errorf("column %s: %w", src.column, err)
				}
			} else {
				v = conform(raw, src.def)
			}
			if err := c.Set(src.field, v); err != nil {
				return nil, err
			}
		}
		for _, name := range m.missing[ti] {
			if err := c.Set(name, nil); err != nil {
				return nil, err
			}
		}
		maps.Copy(c.Meta(), m.meta[ti])
		out[ti] = c
	}
	return out, nil
}

// Close closes the file. Closing twice is a no-op.
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
