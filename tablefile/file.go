package tablefile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-h5table/internal/alloc"
	"github.com/robert-malhotra/go-h5table/internal/binary"
	"github.com/robert-malhotra/go-h5table/internal/layout"
	"github.com/robert-malhotra/go-h5table/internal/metrics"
	"github.com/robert-malhotra/go-h5table/internal/object"
	"github.com/robert-malhotra/go-h5table/internal/superblock"
)

// File represents an open table file. A File is not safe for concurrent
// use.
type File struct {
	path       string
	mode       Mode
	file       *os.File
	reader     *binary.Reader
	writer     *binary.Writer
	superblock *superblock.Superblock
	hdf5       *superblock.HDF5 // set instead of superblock for HDF5 files
	allocator  *alloc.Allocator
	root       *Group
	nodes      map[string]Node
	tables     []*Table // in creation order
	closed     bool

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Open opens the table file at path in the given mode.
//
//   - ModeRead and ModeReadWrite require an existing file.
//   - ModeAppend opens an existing file or creates a new one.
//   - ModeWrite always creates a new, empty file.
func Open(path string, mode Mode, opts ...FileOption) (*File, error) {
	options := defaultFileOptions()
	for _, opt := range opts {
		opt(options)
	}

	switch mode {
	case ModeRead:
		osFile, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening file: %w", err)
		}
		return openExisting(path, mode, osFile, options)

	case ModeReadWrite:
		osFile, err := os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			return nil, fmt.Errorf("opening file: %w", err)
		}
		return openExisting(path, mode, osFile, options)

	case ModeAppend:
		osFile, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening file: %w", err)
		}
		info, err := osFile.Stat()
		if err != nil {
			osFile.Close()
			return nil, fmt.Errorf("opening file: %w", err)
		}
		if info.Size() == 0 {
			return create(path, mode, osFile, options)
		}
		return openExisting(path, mode, osFile, options)

	case ModeWrite:
		osFile, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, fmt.Errorf("creating file: %w", err)
		}
		return create(path, mode, osFile, options)
	}

	return nil, fmt.Errorf("%w: %v", ErrInvalidMode, mode)
}

func newFile(path string, mode Mode, osFile *os.File, options *fileOptions) *File {
	return &File{
		path:    path,
		mode:    mode,
		file:    osFile,
		nodes:   make(map[string]Node),
		logger:  options.logger.With(zap.String("file", path)),
		metrics: metrics.For(options.registerer),
	}
}

// openExisting reads the superblock and replays every block of the file.
// HDF5 files are handed to openHDF5.
func openExisting(path string, mode Mode, osFile *os.File, options *fileOptions) (*File, error) {
	if superblock.FindHDF5(osFile) >= 0 {
		return openHDF5(path, mode, osFile, options)
	}

	sb, err := superblock.Read(osFile)
	if err != nil {
		osFile.Close()
		return nil, fmt.Errorf("reading superblock: %w", err)
	}

	f := newFile(path, mode, osFile, options)
	f.superblock = sb
	f.reader = binary.NewReader(osFile, sb.ReaderConfig())
	f.allocator = alloc.New(sb.FirstBlockAddress)

	if sb.FileConsistencyFlags&superblock.FlagOpenForWrite != 0 {
		f.logger.Warn("file was not closed cleanly by its last writer")
	}

	if err := f.scan(); err != nil {
		osFile.Close()
		return nil, err
	}
	if f.root == nil {
		osFile.Close()
		return nil, fmt.Errorf("%w: file has no root group", ErrNotFound)
	}

	if mode.Writable() {
		f.writer = binary.NewWriter(osFile, sb.ReaderConfig())
		if err := f.markOpen(true); err != nil {
			osFile.Close()
			return nil, err
		}
	}

	return f, nil
}

// scan replays the blocks following the superblock. A block that cannot be
// read ends the scan. In writable modes only a block cut short by the end of
// the file is dropped, by truncating there; any other unreadable block fails
// with ErrCorrupt so that the blocks after it are kept.
func (f *File) scan() error {
	addr := f.superblock.FirstBlockAddress
	for {
		h, err := object.Read(f.reader, addr)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			torn := errors.Is(err, object.ErrTruncated)
			if f.mode.Writable() && !torn {
				return fmt.Errorf("%w: block at 0x%x: %v", ErrCorrupt, addr, err)
			}
			f.logger.Warn("discarding unreadable trailing data",
				zap.Uint64("address", addr), zap.Bool("torn", torn), zap.Error(err))
			f.metrics.TornBlock()
			if f.mode.Writable() {
				if terr := f.file.Truncate(int64(addr)); terr != nil {
					return fmt.Errorf("truncating torn block: %w", terr)
				}
			}
			break
		}

		if err := f.allocator.Record(addr, uint64(h.Size), h.Kind.String()); err != nil {
			return err
		}
		if err := f.apply(h); err != nil {
			return fmt.Errorf("block at 0x%x: %w", addr, err)
		}
		addr += uint64(h.Size)
	}
	return nil
}

// apply installs the object described by one block.
func (f *File) apply(h *object.Header) error {
	path := h.Path()
	if path == "" {
		return fmt.Errorf("%s block without a name", h.Kind)
	}

	switch h.Kind {
	case object.KindGroup:
		if path == "/" {
			if f.root == nil {
				f.root = newGroup(f, "/")
				f.nodes["/"] = f.root
			}
			return nil
		}
		parent, err := f.Group(parentPath(path))
		if err != nil {
			return err
		}
		if existing, ok := f.nodes[path]; ok {
			if _, isGroup := existing.(*Group); !isGroup {
				return fmt.Errorf("%w: %s", ErrNotGroup, path)
			}
			return nil
		}
		f.register(parent, newGroup(f, path))

	case object.KindTable:
		parent, err := f.Group(parentPath(path))
		if err != nil {
			return err
		}
		if _, ok := f.nodes[path]; ok {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
		t, err := newTable(f, path, h.Title(), h.Datatype(), h.TableLayout(), h.FilterPipeline())
		if err != nil {
			return fmt.Errorf("table %s: %w", path, err)
		}
		f.register(parent, t)

	case object.KindAttribute:
		n, err := f.Node(path)
		if err != nil {
			return err
		}
		attr := h.Attribute()
		if attr == nil {
			return fmt.Errorf("attribute block for %s has no attribute", path)
		}
		n.Attrs().load(attr)

	case object.KindChunk:
		t, err := f.Table(path)
		if err != nil {
			return err
		}
		info := h.ChunkInfo()
		if info == nil {
			return fmt.Errorf("chunk block for %s has no chunk info", path)
		}
		return t.chunked.AddChunk(layout.ChunkRef{
			FirstRow:   info.FirstRow,
			NumRows:    info.NumRows,
			FilterMask: info.FilterMask,
			RawSize:    info.RawSize,
			Address:    h.Address,
			Stored:     uint64(len(h.ChunkData())),
		})
	}
	return nil
}

// register links a new node into its parent and the node index.
func (f *File) register(parent *Group, n Node) {
	parent.children[n.Name()] = n
	f.nodes[n.Path()] = n
	if t, ok := n.(*Table); ok {
		f.tables = append(f.tables, t)
	}
}

// Root returns the root group of the file.
func (f *File) Root() *Group {
	return f.root
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Mode returns the mode the file was opened with.
func (f *File) Mode() Mode {
	return f.mode
}

// ID returns the unique identifier assigned when the file was created.
// HDF5 files have no identifier and return uuid.Nil.
func (f *File) ID() uuid.UUID {
	if f.superblock == nil {
		return uuid.Nil
	}
	return f.superblock.FileID
}

// Created returns the creation time of the file, or the zero time for HDF5
// files.
func (f *File) Created() time.Time {
	if f.superblock == nil {
		return time.Time{}
	}
	return f.superblock.Created
}

// IsHDF5 reports whether the file was read from the HDF5 format.
func (f *File) IsHDF5() bool {
	return f.hdf5 != nil
}

// Stats returns how the file's bytes are spent per block kind.
func (f *File) Stats() alloc.Stats {
	return f.allocator.Stats()
}

// Size returns the end-of-file address.
func (f *File) Size() int64 {
	return int64(f.allocator.EOFAddr())
}

// Node returns the group or table at an absolute path.
func (f *File) Node(path string) (Node, error) {
	if f.closed {
		return nil, ErrClosed
	}
	n, ok := f.nodes[CleanPath(path)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, CleanPath(path))
	}
	return n, nil
}

// Group returns the group at an absolute path.
func (f *File) Group(path string) (*Group, error) {
	n, err := f.Node(path)
	if err != nil {
		return nil, err
	}
	g, ok := n.(*Group)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotGroup, n.Path())
	}
	return g, nil
}

// Table returns the table at an absolute path.
func (f *File) Table(path string) (*Table, error) {
	n, err := f.Node(path)
	if err != nil {
		return nil, err
	}
	t, ok := n.(*Table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotTable, n.Path())
	}
	return t, nil
}

// Has reports whether a node exists at path.
func (f *File) Has(path string) bool {
	_, ok := f.nodes[CleanPath(path)]
	return ok
}

// GetAttr returns an attribute value by path.
// Path format: /group/table@attribute_name
//
// Examples:
//
//	val, err := f.GetAttr("/@TABLEIO_VERSION")
//	val, err := f.GetAttr("/dl1/events@energy_UNIT")
func (f *File) GetAttr(path string) (any, error) {
	nodePath, attrName, err := ParseAttrPath(path)
	if err != nil {
		return nil, err
	}
	n, err := f.Node(nodePath)
	if err != nil {
		return nil, err
	}
	return n.Attrs().Get(attrName)
}

// Close flushes pending rows, marks the file as cleanly closed and closes
// it. Closing twice is a no-op.
func (f *File) Close() error {
	if f.closed {
		return nil
	}

	var errs []error
	if f.mode.Writable() {
		if err := f.Flush(); err != nil {
			errs = append(errs, err)
		}
		if err := f.markOpen(false); err != nil {
			errs = append(errs, err)
		}
		if err := f.file.Sync(); err != nil {
			errs = append(errs, err)
		}
	}
	f.closed = true
	if err := f.file.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
