package tableio

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-h5table/tablefile"
)

// Option configures a Writer or a Reader. Options that only concern
// writing are ignored by NewReader.
type Option func(*options)

type options struct {
	mode       tablefile.Mode
	rootUEP    string
	addPrefix  bool
	filters    tablefile.Filters
	chunkRows  int
	logger     *zap.Logger
	registerer prometheus.Registerer
	validate   bool
}

func defaultOptions() *options {
	return &options{
		mode:    tablefile.ModeWrite,
		rootUEP: "/",
		filters: tablefile.DefaultFilters(),
		logger:  zap.NewNop(),
	}
}

// WithMode sets the file mode of a Writer: ModeWrite (the default),
// ModeAppend or ModeReadWrite.
func WithMode(m tablefile.Mode) Option {
	return func(o *options) {
		o.mode = m
	}
}

// WithRootUEP sets the group under which the writer's group is placed.
// The default is "/".
func WithRootUEP(path string) Option {
	return func(o *options) {
		o.rootUEP = path
	}
}

// WithAddPrefix prefixes every column name with its container's prefix.
func WithAddPrefix(add bool) Option {
	return func(o *options) {
		o.addPrefix = add
	}
}

// WithFilters sets the chunk filters of every table the writer creates.
func WithFilters(f tablefile.Filters) Option {
	return func(o *options) {
		o.filters = f
	}
}

// WithChunkRows sets the rows per chunk of every table the writer creates.
func WithChunkRows(n int) Option {
	return func(o *options) {
		o.chunkRows = n
	}
}

// WithLogger sets the logger for schema and mapping warnings.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records row, chunk and schema metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithValidation validates every container before it is written.
func WithValidation(validate bool) Option {
	return func(o *options) {
		o.validate = validate
	}
}

func (o *options) fileOptions() []tablefile.FileOption {
	return []tablefile.FileOption{
		tablefile.WithLogger(o.logger),
		tablefile.WithMetrics(o.registerer),
	}
}

// ReadOption configures one Read call.
type ReadOption func(*readOptions)

type readOptions struct {
	prefixes     []string
	typePrefixes bool
	ignore       map[string]bool
}

// WithPrefixes gives the column prefix of each requested type, in order.
// An empty prefix means the type's fields are the column names.
func WithPrefixes(prefixes ...string) ReadOption {
	return func(o *readOptions) {
		o.prefixes = prefixes
	}
}

// WithTypePrefixes uses each requested type's own prefix.
func WithTypePrefixes() ReadOption {
	return func(o *readOptions) {
		o.typePrefixes = true
	}
}

// WithIgnoreColumns skips the named columns. Fields mapping to them keep
// their defaults and are not reported as missing.
func WithIgnoreColumns(cols ...string) ReadOption {
	return func(o *readOptions) {
		if o.ignore == nil {
			o.ignore = make(map[string]bool, len(cols))
		}
		for _, c := range cols {
			o.ignore[c] = true
		}
	}
}
