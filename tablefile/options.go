package tablefile

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-h5table/internal/filter"
	"github.com/robert-malhotra/go-h5table/internal/message"
)

// Mode selects how Open treats the file.
type Mode int

const (
	// ModeRead opens an existing file read-only.
	ModeRead Mode = iota
	// ModeReadWrite opens an existing file for reading and appending.
	ModeReadWrite
	// ModeAppend opens a file for appending, creating it if needed.
	ModeAppend
	// ModeWrite creates a new file, replacing any existing one.
	ModeWrite
)

// ParseMode converts "r", "r+", "a" or "w" into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "r":
		return ModeRead, nil
	case "r+":
		return ModeReadWrite, nil
	case "a":
		return ModeAppend, nil
	case "w":
		return ModeWrite, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "r"
	case ModeReadWrite:
		return "r+"
	case ModeAppend:
		return "a"
	case ModeWrite:
		return "w"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Writable reports whether the mode allows changes.
func (m Mode) Writable() bool {
	return m != ModeRead
}

// FileOption configures Open.
type FileOption func(*fileOptions)

type fileOptions struct {
	offsetSize int
	logger     *zap.Logger
	registerer prometheus.Registerer
}

func defaultFileOptions() *fileOptions {
	return &fileOptions{
		offsetSize: 8,
		logger:     zap.NewNop(),
	}
}

// WithOffsetSize sets the size in bytes for file offsets (2, 4, or 8) of a
// newly created file.
func WithOffsetSize(size int) FileOption {
	return func(o *fileOptions) {
		if size == 2 || size == 4 || size == 8 {
			o.offsetSize = size
		}
	}
}

// WithLogger sets the logger used for recovery and consistency warnings.
func WithLogger(l *zap.Logger) FileOption {
	return func(o *fileOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records row and chunk metrics on reg.
func WithMetrics(reg prometheus.Registerer) FileOption {
	return func(o *fileOptions) {
		o.registerer = reg
	}
}

// Filters describes the chunk filter pipeline of a table.
type Filters struct {
	// Complib is the codec: "zstd", "lz4", "deflate" (alias "zlib") or
	// "none".
	Complib string
	// Complevel is the codec level; 0 means no compression.
	Complevel int
	// Shuffle byte-shuffles each column before compression.
	Shuffle bool
	// Fletcher32 appends a checksum to every chunk.
	Fletcher32 bool
}

// DefaultFilters returns zstd at level 5 with Fletcher-32 checksums.
func DefaultFilters() Filters {
	return Filters{
		Complib:    "zstd",
		Complevel:  filter.DefaultZstdLevel,
		Fletcher32: true,
	}
}

// NoFilters stores chunks uncompressed and without checksums.
func NoFilters() Filters {
	return Filters{Complib: "none"}
}

// pipeline converts f into a FilterPipeline message; nil means no filters.
func (f Filters) pipeline() (*message.FilterPipeline, error) {
	var infos []message.FilterInfo
	if f.Shuffle {
		infos = append(infos, message.FilterInfo{ID: message.FilterShuffle})
	}

	if f.Complevel > 0 {
		level := []uint32{uint32(f.Complevel)}
		switch strings.ToLower(f.Complib) {
		case "zstd", "blosc:zstd":
			infos = append(infos, message.FilterInfo{ID: message.FilterZstd, ClientData: level})
		case "lz4", "blosc:lz4":
			infos = append(infos, message.FilterInfo{ID: message.FilterLZ4, ClientData: level})
		case "deflate", "zlib", "gzip":
			if f.Complevel > 9 {
				return nil, fmt.Errorf("deflate level %d out of range 1-9", f.Complevel)
			}
			infos = append(infos, message.FilterInfo{ID: message.FilterDeflate, ClientData: level})
		case "none", "":
		default:
			return nil, fmt.Errorf("unknown compression library %q", f.Complib)
		}
	}

	if f.Fletcher32 {
		infos = append(infos, message.FilterInfo{ID: message.FilterFletcher32})
	}
	if len(infos) == 0 {
		return nil, nil
	}
	return &message.FilterPipeline{Filters: infos}, nil
}

// filtersFromPipeline is the inverse of Filters.pipeline.
func filtersFromPipeline(fp *message.FilterPipeline) Filters {
	f := Filters{Complib: "none"}
	if fp == nil {
		return f
	}
	for _, info := range fp.Filters {
		switch info.ID {
		case message.FilterShuffle:
			f.Shuffle = true
		case message.FilterFletcher32:
			f.Fletcher32 = true
		case message.FilterZstd, message.FilterLZ4, message.FilterDeflate:
			f.Complib = filter.FilterName(info.ID)
			f.Complevel = 1
			if len(info.ClientData) > 0 {
				f.Complevel = int(info.ClientData[0])
			}
		case message.FilterBlosc:
			// Level, shuffle and codec follow the four header values.
			f.Complib = "blosc"
			if cd := info.ClientData; len(cd) >= 7 {
				f.Complib = "blosc:" + filter.BloscCodecName(cd[6])
				f.Complevel = int(cd[4])
				f.Shuffle = cd[5] != 0
			}
		}
	}
	return f
}

// TableOption configures CreateTable.
type TableOption func(*tableOptions)

type tableOptions struct {
	title     string
	filters   Filters
	chunkRows uint32
}

func defaultTableOptions() *tableOptions {
	return &tableOptions{
		filters: DefaultFilters(),
	}
}

// WithTitle sets the table title.
func WithTitle(title string) TableOption {
	return func(o *tableOptions) {
		o.title = title
	}
}

// WithFilters sets the chunk filter pipeline.
func WithFilters(f Filters) TableOption {
	return func(o *tableOptions) {
		o.filters = f
	}
}

// WithChunkRows sets the number of rows per chunk.
func WithChunkRows(n int) TableOption {
	return func(o *tableOptions) {
		if n > 0 {
			o.chunkRows = uint32(n)
		}
	}
}
