package tableio

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/robert-malhotra/go-h5table/container"
	"github.com/robert-malhotra/go-h5table/internal/metrics"
	"github.com/robert-malhotra/go-h5table/tablefile"
)

// tableState is what a Writer knows about one table.
type tableState struct {
	table  *tablefile.Table
	schema *Schema
}

type patternTransform struct {
	re *regexp.Regexp
	tr Transform
}

// Writer writes containers into the tables of one group.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	file    *tablefile.File
	group   *tablefile.Group
	opts    *options
	log     *zap.Logger
	metrics *metrics.Metrics

	tables     map[string]*tableState
	custom     map[string]map[string]Transform
	patterns   map[string][]patternTransform
	exclusions map[string][]*regexp.Regexp
}

// NewWriter opens path for writing and makes group, below the root given
// by WithRootUEP, the parent of every table written.
func NewWriter(path, group string, opts ...Option) (*Writer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if !o.mode.Writable() {
		return nil, fmt.Errorf("%w: mode %q is not supported for writing", ErrConfiguration, o.mode)
	}
	if len(tablefile.SplitPath(group)) == 0 {
		return nil, fmt.Errorf("%w: empty group name", ErrConfiguration)
	}
	if !strings.HasPrefix(o.rootUEP, "/") {
		return nil, fmt.Errorf("%w: root %q must be an absolute path", ErrConfiguration, o.rootUEP)
	}

	f, err := tablefile.Open(path, o.mode, o.fileOptions()...)
	if err != nil {
		return nil, err
	}
	groupPath := tablefile.JoinPath(o.rootUEP, group)
	g, err := f.Root().CreateGroup(groupPath)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("group %s: %w", groupPath, err)
	}

	o.logger.Debug("opened writer",
		zap.String("path", path),
		zap.Stringer("mode", o.mode),
		zap.String("group", g.Path()))

	return &Writer{
		file:       f,
		group:      g,
		opts:       o,
		log:        o.logger,
		metrics:    metrics.For(o.registerer),
		tables:     make(map[string]*tableState),
		custom:     make(map[string]map[string]Transform),
		patterns:   make(map[string][]patternTransform),
		exclusions: make(map[string][]*regexp.Regexp),
	}, nil
}

// File returns the underlying table file.
func (w *Writer) File() *tablefile.File { return w.file }

// Group returns the group tables are written to.
func (w *Writer) Group() *tablefile.Group { return w.group }

// AddColumnTransform registers tr for a column of a table. It runs before
// the automatic transform and replaces any earlier registration.
func (w *Writer) AddColumnTransform(table, col string, tr Transform) {
	if w.custom[table] == nil {
		w.custom[table] = make(map[string]Transform)
	}
	w.custom[table][col] = tr
}

// AddColumnTransformRegexp registers tr for every column of a table whose
// full name matches pattern. Transforms added with AddColumnTransform take
// precedence.
func (w *Writer) AddColumnTransformRegexp(table, pattern string, tr Transform) error {
	re, err := compileFull(pattern)
	if err != nil {
		return err
	}
	w.patterns[table] = append(w.patterns[table], patternTransform{re: re, tr: tr})
	return nil
}

// Exclude drops the columns of a table whose full name matches pattern.
// Exclusions only affect tables not yet created.
func (w *Writer) Exclude(table, pattern string) error {
	re, err := compileFull(pattern)
	if err != nil {
		return err
	}
	w.exclusions[table] = append(w.exclusions[table], re)
	return nil
}

func compileFull(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("%w: pattern %q: %v", ErrConfiguration, pattern, err)
	}
	return re, nil
}

func (w *Writer) customTransform(table, col string) Transform {
	if tr, ok := w.custom[table][col]; ok {
		return tr
	}
	for _, p := range w.patterns[table] {
		if p.re.MatchString(col) {
			return p.tr
		}
	}
	return nil
}

func (w *Writer) isExcluded(table, col string) bool {
	for _, re := range w.exclusions[table] {
		if re.MatchString(col) {
			return true
		}
	}
	return false
}

// Schema returns the resolved schema of a table written by w.
func (w *Writer) Schema(table string) (*Schema, bool) {
	st, ok := w.tables[table]
	if !ok {
		return nil, false
	}
	return st.schema, true
}

// Write appends one row to table, built from the fields of containers.
// The first write to a table creates it with a schema inferred from
// containers; later writes must supply values of the same types and
// shapes.
func (w *Writer) Write(table string, containers ...*container.Container) error {
	if w.file == nil {
		return tablefile.ErrClosed
	}
	if table == "" || strings.HasPrefix(table, "/") {
		return fmt.Errorf("%w: table name %q must be a non-empty relative path", ErrConfiguration, table)
	}
	if len(containers) == 0 {
		return fmt.Errorf("%w: no containers to write", ErrTypeContract)
	}
	for i, c := range containers {
		if c == nil {
			return fmt.Errorf("%w: container %d is nil", ErrTypeContract, i)
		}
		if w.opts.validate {
			if err := c.Validate(); err != nil {
				return err
			}
		}
	}

	st, ok := w.tables[table]
	if !ok {
		var err error
		if st, err = w.setupTable(table, containers); err != nil {
			return err
		}
		w.tables[table] = st
	}
	return w.appendRow(table, st, containers)
}

// setupTable reuses an existing table or creates a new one.
func (w *Writer) setupTable(table string, containers []*container.Container) (*tableState, error) {
	if existing, err := w.group.Table(table); err == nil {
		return w.reopenTable(table, existing)
	} else if !errors.Is(err, tablefile.ErrNotFound) {
		return nil, err
	}

	r := &resolver{
		table:     table,
		addPrefix: w.opts.addPrefix,
		excluded:  func(col string) bool { return w.isExcluded(table, col) },
		custom:    func(col string) Transform { return w.customTransform(table, col) },
		log:       w.log,
		dropped:   func() { w.metrics.SchemaError(table) },
	}
	schema := r.resolve(containers)
	if len(schema.columns) == 0 {
		return nil, fmt.Errorf("%w: table %s has no storable columns", ErrSchema, table)
	}

	names := make([]string, len(containers))
	for i, c := range containers {
		names[i] = c.Type().Name()
	}
	tableOpts := []tablefile.TableOption{
		tablefile.WithTitle("Storage of " + strings.Join(names, ",")),
		tablefile.WithFilters(w.opts.filters),
	}
	if w.opts.chunkRows > 0 {
		tableOpts = append(tableOpts, tablefile.WithChunkRows(w.opts.chunkRows))
	}

	t, err := w.group.CreateTable(table, schema.Columns(), tableOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating table %s: %w", table, err)
	}

	schema.meta[VersionAttr] = Version
	for _, k := range slices.Sorted(maps.Keys(schema.meta)) {
		if err := t.Attrs().Set(k, schema.meta[k]); err != nil {
			return nil, fmt.Errorf("table %s: %w", table, err)
		}
	}

	w.log.Debug("created table",
		zap.String("table", t.Path()),
		zap.String("title", t.Title()),
		zap.Strings("columns", t.ColNames()))
	return &tableState{table: t, schema: schema}, nil
}

// reopenTable trusts the stored schema and rebuilds the transforms from the
// table header.
func (w *Writer) reopenTable(table string, t *tablefile.Table) (*tableState, error) {
	schema := &Schema{
		byName: make(map[string]*column),
		meta:   make(map[string]any),
	}
	get := attrsOf(t.Attrs())
	for _, c := range t.Columns() {
		tr, err := rebuildTransform(c, get)
		if err != nil {
			w.log.Warn("cannot rebuild column transform", zap.String("table", table), zap.Error(err))
		}
		col := &column{Column: c, source: -1, auto: tr, reopened: true}
		schema.columns = append(schema.columns, col)
		schema.byName[c.Name] = col
	}
	for _, name := range t.Attrs().Names() {
		schema.meta[name] = t.Attrs().GetDefault(name, nil)
	}

	w.log.Debug("reusing existing table", zap.String("table", t.Path()), zap.Int("rows", t.Len()))
	return &tableState{table: t, schema: schema}, nil
}

// appendRow transforms every column value and appends the row. Nothing is
// appended if any column fails.
func (w *Writer) appendRow(table string, st *tableState, containers []*container.Container) error {
	values := make([]any, len(st.schema.columns))
	for i, col := range st.schema.columns {
		c, v, err := lookupValue(col, containers, w.opts.addPrefix)
		if err != nil {
			return fmt.Errorf("%w: table %s column %s: %v", ErrAppend, table, col.Name, err)
		}
		if values[i], err = w.applyTransforms(table, col, v); err != nil {
			w.log.Error("transform failed",
				zap.String("table", table),
				zap.String("column", col.Name),
				zap.String("container", c.Type().Name()),
				zap.Error(err))
			return fmt.Errorf("%w: table %s column %s of %s: %v", ErrAppend, table, col.Name, c.Type().Name(), err)
		}
	}

	if err := st.table.Append(values); err != nil {
		w.log.Error("append failed", zap.String("table", table), zap.Error(err))
		return fmt.Errorf("%w: table %s: %w", ErrAppend, table, err)
	}
	return nil
}

func (w *Writer) applyTransforms(table string, col *column, v any) (any, error) {
	custom := w.customTransform(table, col.Name)
	if custom != nil {
		var err error
		if v, err = custom.Apply(v); err != nil {
			return nil, err
		}
	}
	if col.auto != nil && !(col.reopened && custom != nil) {
		return col.auto.Apply(v)
	}
	return v, nil
}

// Flush writes buffered rows of all tables to the file.
func (w *Writer) Flush() error {
	if w.file == nil {
		return tablefile.ErrClosed
	}
	return w.file.Flush()
}

// Close flushes and closes the file. Closing twice is a no-op.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
