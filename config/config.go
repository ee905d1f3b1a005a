// Package config loads writer, reader and logging settings from a YAML
// file and H5TABLE_* environment variables.
//
//	logging:
//	  level: debug
//	writer:
//	  mode: a
//	  root_uep: /sim
//	  add_prefix: true
//	  filters:
//	    complib: lz4
//	    complevel: 3
//	reader:
//	  type_prefixes: true
//	  ignore_columns: [obs_id]
//
// Environment variables use the key path in upper case with dots replaced
// by underscores, for example H5TABLE_WRITER_MODE=a.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-h5table/internal/logging"
	"github.com/robert-malhotra/go-h5table/tablefile"
	"github.com/robert-malhotra/go-h5table/tableio"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "H5TABLE"

// ErrInvalid is returned for settings that cannot be applied.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full configuration.
type Config struct {
	Logging logging.Config `mapstructure:"logging"`
	Writer  Writer         `mapstructure:"writer"`
	Reader  Reader         `mapstructure:"reader"`
}

// Writer holds tableio.Writer settings.
type Writer struct {
	Mode      string  `mapstructure:"mode"` // w, a or r+
	RootUEP   string  `mapstructure:"root_uep"`
	AddPrefix bool    `mapstructure:"add_prefix"`
	Validate  bool    `mapstructure:"validate"`
	ChunkRows int     `mapstructure:"chunk_rows"`
	Filters   Filters `mapstructure:"filters"`
}

// Filters mirrors tablefile.Filters.
type Filters struct {
	Complib    string `mapstructure:"complib"`
	Complevel  int    `mapstructure:"complevel"`
	Shuffle    bool   `mapstructure:"shuffle"`
	Fletcher32 bool   `mapstructure:"fletcher32"`
}

// Reader holds tableio.Reader settings.
type Reader struct {
	TypePrefixes  bool     `mapstructure:"type_prefixes"`
	IgnoreColumns []string `mapstructure:"ignore_columns"`
}

// Default returns the built-in configuration.
func Default() Config {
	f := tablefile.DefaultFilters()
	return Config{
		Logging: logging.DefaultConfig(),
		Writer: Writer{
			Mode:    tablefile.ModeWrite.String(),
			RootUEP: "/",
			Filters: Filters{
				Complib:    f.Complib,
				Complevel:  f.Complevel,
				Shuffle:    f.Shuffle,
				Fletcher32: f.Fletcher32,
			},
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.development", d.Logging.Development)
	v.SetDefault("logging.encoding", d.Logging.Encoding)
	v.SetDefault("logging.output_paths", d.Logging.OutputPaths)

	v.SetDefault("writer.mode", d.Writer.Mode)
	v.SetDefault("writer.root_uep", d.Writer.RootUEP)
	v.SetDefault("writer.add_prefix", d.Writer.AddPrefix)
	v.SetDefault("writer.validate", d.Writer.Validate)
	v.SetDefault("writer.chunk_rows", d.Writer.ChunkRows)
	v.SetDefault("writer.filters.complib", d.Writer.Filters.Complib)
	v.SetDefault("writer.filters.complevel", d.Writer.Filters.Complevel)
	v.SetDefault("writer.filters.shuffle", d.Writer.Filters.Shuffle)
	v.SetDefault("writer.filters.fletcher32", d.Writer.Filters.Fletcher32)

	v.SetDefault("reader.type_prefixes", d.Reader.TypePrefixes)
	v.SetDefault("reader.ignore_columns", []string{})
}

// Load reads the configuration file at path, if path is not empty, on top
// of the defaults. Environment variables override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that are not checked when they are used.
func (c *Config) Validate() error {
	var errs []error
	if _, err := tablefile.ParseMode(c.Writer.Mode); err != nil {
		errs = append(errs, fmt.Errorf("%w: writer.mode: %v", ErrInvalid, err))
	}
	switch c.Writer.Filters.Complib {
	case "", "none", "zstd", "lz4", "deflate", "zlib", "gzip", "blosc:zstd", "blosc:lz4":
	default:
		errs = append(errs, fmt.Errorf("%w: writer.filters.complib %q", ErrInvalid, c.Writer.Filters.Complib))
	}
	if c.Writer.ChunkRows < 0 {
		errs = append(errs, fmt.Errorf("%w: writer.chunk_rows %d", ErrInvalid, c.Writer.ChunkRows))
	}
	if !strings.HasPrefix(c.Writer.RootUEP, "/") {
		errs = append(errs, fmt.Errorf("%w: writer.root_uep %q is not absolute", ErrInvalid, c.Writer.RootUEP))
	}
	return errors.Join(errs...)
}

// Options converts the writer settings into tableio options. logger and
// reg may be nil.
func (w Writer) Options(logger *zap.Logger, reg prometheus.Registerer) ([]tableio.Option, error) {
	mode, err := tablefile.ParseMode(w.Mode)
	if err != nil {
		return nil, fmt.Errorf("%w: writer.mode: %v", ErrInvalid, err)
	}
	complib := w.Filters.Complib
	if complib == "" {
		complib = "none"
	}
	opts := []tableio.Option{
		tableio.WithMode(mode),
		tableio.WithRootUEP(w.RootUEP),
		tableio.WithAddPrefix(w.AddPrefix),
		tableio.WithValidation(w.Validate),
		tableio.WithFilters(tablefile.Filters{
			Complib:    complib,
			Complevel:  w.Filters.Complevel,
			Shuffle:    w.Filters.Shuffle,
			Fletcher32: w.Filters.Fletcher32,
		}),
		tableio.WithLogger(logger),
	}
	if w.ChunkRows > 0 {
		opts = append(opts, tableio.WithChunkRows(w.ChunkRows))
	}
	if reg != nil {
		opts = append(opts, tableio.WithMetrics(reg))
	}
	return opts, nil
}

// ReadOptions converts the reader settings into options for Reader.Read.
func (r Reader) ReadOptions() []tableio.ReadOption {
	var opts []tableio.ReadOption
	if r.TypePrefixes {
		opts = append(opts, tableio.WithTypePrefixes())
	}
	if len(r.IgnoreColumns) > 0 {
		opts = append(opts, tableio.WithIgnoreColumns(r.IgnoreColumns...))
	}
	return opts
}
