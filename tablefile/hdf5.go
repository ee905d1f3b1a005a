package tablefile

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/robert-malhotra/go-h5table/internal/alloc"
	"github.com/robert-malhotra/go-h5table/internal/binary"
	"github.com/robert-malhotra/go-h5table/internal/btree"
	"github.com/robert-malhotra/go-h5table/internal/dtype"
	"github.com/robert-malhotra/go-h5table/internal/heap"
	"github.com/robert-malhotra/go-h5table/internal/layout"
	"github.com/robert-malhotra/go-h5table/internal/message"
	"github.com/robert-malhotra/go-h5table/internal/object"
	"github.com/robert-malhotra/go-h5table/internal/superblock"
)

// titleAttr holds the title of a PyTables node.
const titleAttr = "TITLE"

// pytablesAttrs are the bookkeeping attributes PyTables writes on every
// node. They describe the HDF5 layout, not the data, and are not loaded.
var pytablesAttrs = map[string]bool{
	"CLASS":                   true,
	"VERSION":                 true,
	titleAttr:                 true,
	"PYTABLES_FORMAT_VERSION": true,
	"NROWS":                   true,
	"EXTDIM":                  true,
	"FILTERS":                 true,
	"AUTO_INDEX":              true,
}

func isPyTablesAttr(name string) bool {
	if pytablesAttrs[name] {
		return true
	}
	return strings.HasPrefix(name, "FIELD_") && (strings.HasSuffix(name, "_NAME") || strings.HasSuffix(name, "_FILL"))
}

// openHDF5 opens an HDF5 file read-only. Groups become groups and
// one-dimensional compound datasets become tables; other datasets are
// skipped.
func openHDF5(path string, mode Mode, osFile *os.File, options *fileOptions) (*File, error) {
	if mode.Writable() {
		osFile.Close()
		return nil, fmt.Errorf("%w: HDF5 file %s must be opened with mode %s", ErrReadOnlyFormat, path, ModeRead)
	}

	sb, err := superblock.ReadHDF5(osFile)
	if err != nil {
		osFile.Close()
		return nil, fmt.Errorf("reading superblock: %w", err)
	}

	f := newFile(path, mode, osFile, options)
	f.hdf5 = sb
	base := int64(sb.BaseAddress)
	f.reader = binary.NewReader(io.NewSectionReader(osFile, base, math.MaxInt64-base), sb.ReaderConfig())
	f.allocator = alloc.New(sb.EOFAddress)
	f.root = newGroup(f, "/")
	f.nodes["/"] = f.root

	f.logger.Debug("reading HDF5 file",
		zap.Uint8("superblock_version", sb.Version),
		zap.Uint64("base", sb.BaseAddress),
		zap.Uint64("root", sb.RootAddress))

	w := &h5Walker{
		f:       f,
		r:       f.reader,
		cfg:     sb.ReaderConfig(),
		heaps:   heap.NewResolver(f.reader),
		visited: map[uint64]string{sb.RootAddress: "/"},
		log:     f.logger,
	}
	hdr, err := object.ReadHDF5(f.reader, sb.RootAddress)
	if err != nil {
		osFile.Close()
		return nil, fmt.Errorf("%w: root group: %v", ErrCorrupt, err)
	}
	var cached *message.H5SymbolTable
	if sb.RootCached {
		cached = &message.H5SymbolTable{BTree: sb.RootBTree, Heap: sb.RootHeap}
	}
	if err := w.walkGroup(f.root, hdr, cached); err != nil {
		osFile.Close()
		return nil, err
	}
	return f, nil
}

// h5Walker builds the node tree of an HDF5 file.
type h5Walker struct {
	f     *File
	r     *binary.Reader
	cfg   binary.Config
	heaps *heap.Resolver
	log   *zap.Logger

	// visited maps object header addresses to the first path they were
	// reached by, so hard link cycles end.
	visited map[uint64]string
}

type h5Member struct {
	name    string
	address uint64
}

func (w *h5Walker) walkGroup(g *Group, hdr *object.H5Header, cached *message.H5SymbolTable) error {
	w.loadAttrs(g.path, g.Attrs(), hdr)

	members, err := w.members(g.path, hdr, cached)
	if err != nil {
		return fmt.Errorf("%w: group %s: %v", ErrCorrupt, g.path, err)
	}
	for _, m := range members {
		path := JoinPath(g.path, m.name)
		if err := validName(m.name); err != nil {
			w.log.Warn("skipping HDF5 object with an unusable name", zap.String("path", path), zap.Error(err))
			continue
		}
		if first, ok := w.visited[m.address]; ok {
			w.log.Debug("skipping second link to an object", zap.String("path", path), zap.String("first", first))
			continue
		}
		w.visited[m.address] = path

		child, err := object.ReadHDF5(w.r, m.address)
		if err != nil {
			w.log.Warn("skipping unreadable HDF5 object", zap.String("path", path), zap.Error(err))
			continue
		}
		if isH5Group(child) {
			sub := newGroup(w.f, path)
			w.f.register(g, sub)
			if err := w.walkGroup(sub, child, nil); err != nil {
				return err
			}
			continue
		}

		t, err := w.table(path, child)
		if err != nil {
			w.log.Warn("skipping HDF5 dataset", zap.String("path", path), zap.Error(err))
			continue
		}
		if t == nil {
			w.log.Debug("skipping HDF5 object that is not a table", zap.String("path", path))
			continue
		}
		w.f.register(g, t)
	}
	return nil
}

func isH5Group(hdr *object.H5Header) bool {
	for _, t := range []message.Type{message.TypeSymbolTable, message.TypeLinkInfo, message.TypeLink} {
		if _, ok := hdr.Find(t); ok {
			return true
		}
	}
	return false
}

// members lists the hard links of a group. Old-style groups keep them in a
// symbol table, new-style groups in link messages. cached stands in for a
// missing symbol table message.
func (w *h5Walker) members(path string, hdr *object.H5Header, cached *message.H5SymbolTable) ([]h5Member, error) {
	st := cached
	if m, ok := hdr.Find(message.TypeSymbolTable); ok {
		var err error
		if st, err = message.ParseH5SymbolTable(m.Data, w.cfg); err != nil {
			return nil, err
		}
	}

	var out []h5Member
	if st != nil {
		names, err := heap.ReadLocalHeap(w.r, st.Heap)
		if err != nil {
			return nil, err
		}
		entries, err := btree.ReadGroupEntries(w.r, st.BTree, names)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.Kind != btree.LinkHard {
				w.log.Debug("skipping soft link", zap.String("group", path), zap.String("name", e.Name), zap.String("target", e.Target))
				continue
			}
			out = append(out, h5Member{name: e.Name, address: e.Address})
		}
	}

	for _, m := range hdr.All(message.TypeLink) {
		l, err := message.ParseH5Link(m.Data, w.cfg)
		if err != nil {
			return nil, err
		}
		if !l.Hard {
			w.log.Debug("skipping soft link", zap.String("group", path), zap.String("name", l.Name), zap.String("target", l.Target))
			continue
		}
		out = append(out, h5Member{name: l.Name, address: l.Address})
	}

	if m, ok := hdr.Find(message.TypeLinkInfo); ok {
		li, err := message.ParseH5LinkInfo(m.Data, w.cfg)
		if err != nil {
			return nil, err
		}
		if !w.r.IsUndefined(li.FractalHeap) {
			w.log.Warn("group stores its links densely, members not read", zap.String("group", path))
		}
	}
	return out, nil
}

// table maps a one-dimensional compound dataset onto a table. It returns
// nil and no error for objects that are not such datasets.
func (w *h5Walker) table(path string, hdr *object.H5Header) (*Table, error) {
	dtMsg, ok := hdr.Find(message.TypeDatatype)
	if !ok {
		return nil, nil
	}
	dsMsg, ok := hdr.Find(message.TypeDataspace)
	if !ok {
		return nil, nil
	}
	layMsg, ok := hdr.Find(message.TypeDataLayout)
	if !ok {
		return nil, nil
	}
	for _, m := range []object.H5Message{dtMsg, dsMsg, layMsg} {
		if m.Shared() {
			return nil, fmt.Errorf("shared %s message", m.Type)
		}
	}

	h, err := message.ParseH5Datatype(dtMsg.Data)
	if err != nil {
		return nil, err
	}
	if h.Class != message.H5Compound {
		return nil, nil
	}
	space, err := message.ParseH5Dataspace(dsMsg.Data, w.cfg)
	if err != nil {
		return nil, err
	}
	if space.Rank() != 1 {
		return nil, fmt.Errorf("compound dataset of rank %d", space.Rank())
	}
	lay, err := message.ParseH5Layout(layMsg.Data, w.cfg)
	if err != nil {
		return nil, err
	}
	var fp *message.FilterPipeline
	if m, ok := hdr.Find(message.TypeFilterPipeline); ok {
		if fp, err = message.ParseH5FilterPipeline(m.Data); err != nil {
			return nil, err
		}
	}

	conv, err := dtype.NewRowConverter(h)
	if err != nil {
		return nil, err
	}
	if len(conv.Skipped) > 0 {
		w.log.Warn("HDF5 table has members without a column type, they are not read",
			zap.String("table", path), zap.Strings("members", conv.Skipped))
	}
	if len(conv.Row().Members) == 0 {
		return nil, fmt.Errorf("%w: no readable columns", ErrSchema)
	}

	rows, err := layout.NewH5Rows(conv, space.Dims[0], lay, fp, w.r)
	if err != nil {
		return nil, err
	}

	t := assembleTable(w.f, path, "", conv.Row(), fp, rows)
	t.title = w.loadAttrs(path, t.Attrs(), hdr)

	w.log.Debug("read HDF5 table",
		zap.String("table", path),
		zap.Uint64("rows", rows.Len()),
		zap.Stringer("layout", lay.Class),
		zap.Strings("columns", t.ColNames()))
	return t, nil
}

// loadAttrs copies the compact attributes of an object into set and
// returns its PyTables title. Attributes that cannot be represented are
// skipped.
func (w *h5Walker) loadAttrs(path string, set *AttributeSet, hdr *object.H5Header) (title string) {
	for _, m := range hdr.All(message.TypeAttribute) {
		if m.Shared() {
			w.log.Warn("skipping shared attribute", zap.String("node", path))
			continue
		}
		a, err := message.ParseH5Attribute(m.Data, w.cfg)
		if err != nil {
			w.log.Debug("skipping unreadable attribute", zap.String("node", path), zap.Error(err))
			continue
		}
		attr, err := dtype.AttributeFromH5(a, w.varLen)
		if err != nil {
			w.log.Debug("skipping attribute", zap.String("node", path), zap.String("attribute", a.Name), zap.Error(err))
			continue
		}
		if attr.Name == titleAttr {
			if v, err := decodeAttribute(attr); err == nil {
				title, _ = v.(string)
			}
		}
		if isPyTablesAttr(attr.Name) {
			continue
		}
		set.load(attr)
	}
	if _, ok := hdr.Find(message.TypeAttributeInfo); ok {
		w.log.Debug("densely stored attributes are not read", zap.String("node", path))
	}
	return title
}

// varLen resolves one variable-length element through the global heap.
func (w *h5Walker) varLen(elem []byte) ([]byte, error) {
	n, ref, err := dtype.VarLenRef(elem)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	id, err := heap.ParseID(ref, w.r.OffsetSize())
	if err != nil {
		return nil, err
	}
	obj, err := w.heaps.Object(id)
	if err != nil {
		return nil, err
	}
	if int(n) > len(obj) {
		return nil, fmt.Errorf("variable-length element of %d bytes in a %d byte heap object", n, len(obj))
	}
	return obj[:n], nil
}
