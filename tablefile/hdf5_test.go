package tablefile

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/robert-malhotra/go-h5table/internal/h5test"
)

// dl1Record is the stored record of the test tables: a little-endian int64
// event_id at 0, a big-endian float64 energy at 8 and a 4-byte string at
// 16, padded to 24 bytes.
const dl1Record = 24

func dl1Type() []byte {
	return h5test.Compound(dl1Record,
		h5test.Field{Name: "event_id", Offset: 0, Type: h5test.Int(8, true, false)},
		h5test.Field{Name: "energy", Offset: 8, Type: h5test.Float(8, true)},
		h5test.Field{Name: "kind", Offset: 16, Type: h5test.String(4)},
	)
}

func dl1Records(first, n int) []byte {
	out := make([]byte, n*dl1Record)
	for i := 0; i < n; i++ {
		rec := out[i*dl1Record:]
		binary.LittleEndian.PutUint64(rec, uint64(first+i))
		binary.BigEndian.PutUint64(rec[8:], math.Float64bits(0.25*float64(first+i)))
		copy(rec[16:], "gam")
	}
	return out
}

func writeImage(t *testing.T, im *h5test.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.h5")
	if err := os.WriteFile(path, im.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

// pytablesImage builds a file laid out like PyTables writes it: a version 0
// superblock and symbol table groups, with /dl1/events a chunked table of
// six rows and /dl1/ids a plain integer dataset.
func pytablesImage() *h5test.Image {
	im := h5test.NewImage(h5test.SuperblockV0Size)

	// Six rows in chunks of four; the second chunk is only partly used.
	tree := im.ChunkTree(dl1Record,
		h5test.Chunk{Row: 0, Data: dl1Records(0, 4)},
		h5test.Chunk{Row: 4, Data: dl1Records(4, 4)},
	)
	events := im.Append(h5test.HeaderV1(0,
		h5test.Msg{Type: h5test.TypeDatatype, Data: dl1Type()},
		h5test.Msg{Type: h5test.TypeDataspace, Data: h5test.Dataspace(6)},
		h5test.Msg{Type: h5test.TypeDataLayout, Data: h5test.ChunkedLayout(tree, 4, dl1Record)},
		h5test.Msg{Type: h5test.TypeAttribute, Data: h5test.StringAttribute("CLASS", "TABLE")},
		h5test.Msg{Type: h5test.TypeAttribute, Data: h5test.StringAttribute("TITLE", "DL1 events")},
		h5test.Msg{Type: h5test.TypeAttribute, Data: h5test.StringAttribute("FIELD_0_NAME", "event_id")},
		h5test.Msg{Type: h5test.TypeAttribute, Data: h5test.StringAttribute("energy_UNIT", "TeV")},
	))

	idsData := im.Append(make([]byte, 24))
	ids := im.Append(h5test.HeaderV1(0,
		h5test.Msg{Type: h5test.TypeDatatype, Data: h5test.Int(8, true, false)},
		h5test.Msg{Type: h5test.TypeDataspace, Data: h5test.Dataspace(3)},
		h5test.Msg{Type: h5test.TypeDataLayout, Data: h5test.ContiguousLayout(idsData, 24)},
	))

	var scratch [16]byte
	dl1Heap, dl1Names := im.LocalHeap("events", "ids")
	dl1Tree := im.GroupTree(im.SymbolNode(
		h5test.SymbolEntry(dl1Names[0], events, 0, scratch),
		h5test.SymbolEntry(dl1Names[1], ids, 0, scratch),
	))

	// The group attribute is a variable-length string in the global heap.
	creator := im.GlobalHeap([]byte("lstchain"))
	elem := binary.LittleEndian.AppendUint32(nil, 8)
	elem = binary.LittleEndian.AppendUint64(elem, creator)
	elem = binary.LittleEndian.AppendUint32(elem, 1)
	dl1 := im.Append(h5test.HeaderV1(0,
		h5test.Msg{Type: h5test.TypeSymbolTable, Data: h5test.SymbolTable(dl1Tree, dl1Heap)},
		h5test.Msg{Type: h5test.TypeAttribute, Data: h5test.Attribute("creator", h5test.VarLenString(), h5test.Dataspace(), elem)},
	))

	rootHeap, rootNames := im.LocalHeap("dl1")
	rootTree := im.GroupTree(im.SymbolNode(h5test.SymbolEntry(rootNames[0], dl1, 0, scratch)))
	root := im.Append(h5test.HeaderV1(0,
		h5test.Msg{Type: h5test.TypeSymbolTable, Data: h5test.SymbolTable(rootTree, rootHeap)},
		h5test.Msg{Type: h5test.TypeAttribute, Data: h5test.StringAttribute("CLASS", "GROUP")},
	))

	im.PutAt(0, h5test.SuperblockV0(im.Len(), root, rootTree, rootHeap))
	return im
}

func TestOpenHDF5(t *testing.T) {
	path := writeImage(t, pytablesImage())

	core, logs := observer.New(zapcore.DebugLevel)
	f, err := Open(path, ModeRead, WithLogger(zap.New(core)))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	if !f.IsHDF5() {
		t.Error("IsHDF5 = false")
	}
	if f.ID() != uuid.Nil || !f.Created().IsZero() {
		t.Errorf("HDF5 file reported id %v created %v", f.ID(), f.Created())
	}
	if !f.Has("/dl1") || !f.Has("/dl1/events") {
		t.Fatalf("expected /dl1/events, root members %v", f.Root().Members())
	}
	if f.Has("/dl1/ids") {
		t.Error("non-compound dataset loaded as a table")
	}
	if logs.FilterMessage("skipping HDF5 object that is not a table").Len() != 1 {
		t.Error("skipped dataset not logged")
	}

	tbl, err := f.Table("/dl1/events")
	if err != nil {
		t.Fatalf("Table failed: %v", err)
	}
	if tbl.Len() != 6 || tbl.ChunkRows() != 4 || tbl.NumChunks() != 2 {
		t.Errorf("len %d, chunk rows %d, chunks %d", tbl.Len(), tbl.ChunkRows(), tbl.NumChunks())
	}
	if tbl.Title() != "DL1 events" {
		t.Errorf("title %q", tbl.Title())
	}
	wantCols := []Column{
		{Name: "event_id", Dtype: "int64", Pos: 0},
		{Name: "energy", Dtype: "float64", Pos: 1},
		{Name: "kind", Dtype: "S4", Pos: 2},
	}
	if got := tbl.Columns(); !reflect.DeepEqual(got, wantCols) {
		t.Errorf("columns %+v", got)
	}

	for i := 0; i < tbl.Len(); i++ {
		row, err := tbl.Row(i)
		if err != nil {
			t.Fatalf("Row %d failed: %v", i, err)
		}
		if id, _ := row.Get("event_id"); id != int64(i) {
			t.Errorf("row %d event_id = %v", i, id)
		}
		if e, _ := row.Get("energy"); e != 0.25*float64(i) {
			t.Errorf("row %d energy = %v", i, e)
		}
	}
	energy, err := tbl.ReadColumn("energy")
	if err != nil {
		t.Fatalf("ReadColumn failed: %v", err)
	}
	if !reflect.DeepEqual(energy, []float64{0, 0.25, 0.5, 0.75, 1, 1.25}) {
		t.Errorf("energy column %v", energy)
	}
	if _, err := tbl.Row(6); !errors.Is(err, ErrBounds) {
		t.Errorf("expected ErrBounds, got %v", err)
	}

	if unit, err := f.GetAttr("/dl1/events@energy_UNIT"); err != nil || unit != "TeV" {
		t.Errorf("energy_UNIT = %v, %v", unit, err)
	}
	if names := tbl.Attrs().Names(); !reflect.DeepEqual(names, []string{"energy_UNIT"}) {
		t.Errorf("bookkeeping attributes loaded: %v", names)
	}
	if creator, err := f.GetAttr("/dl1@creator"); err != nil || creator != "lstchain" {
		t.Errorf("creator = %v, %v", creator, err)
	}
	if f.Root().Attrs().Len() != 0 {
		t.Errorf("root attributes %v", f.Root().Attrs().Names())
	}

	if err := tbl.Append([]any{int64(6), 1.5, "gam"}); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly from Append, got %v", err)
	}
	if err := tbl.Attrs().Set("note", "x"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly from Set, got %v", err)
	}
}

func TestOpenHDF5Writable(t *testing.T) {
	path := writeImage(t, pytablesImage())
	for _, mode := range []Mode{ModeReadWrite, ModeAppend} {
		if _, err := Open(path, mode); !errors.Is(err, ErrReadOnlyFormat) {
			t.Errorf("mode %s: expected ErrReadOnlyFormat, got %v", mode, err)
		}
	}
}

func TestOpenHDF5LinkMessages(t *testing.T) {
	im := h5test.NewImage(h5test.SuperblockV2Size)

	records := dl1Records(0, 3)
	data := im.Append(records)
	events := im.Append(h5test.HeaderV2(
		h5test.Msg{Type: h5test.TypeDatatype, Data: dl1Type()},
		h5test.Msg{Type: h5test.TypeDataspace, Data: h5test.Dataspace(3)},
		h5test.Msg{Type: h5test.TypeDataLayout, Data: h5test.ContiguousLayout(data, uint64(len(records)))},
		h5test.Msg{Type: h5test.TypeAttribute, Data: h5test.StringAttribute("energy_UNIT", "GeV")},
	))
	root := im.Append(h5test.HeaderV2(
		h5test.Msg{Type: h5test.TypeLinkInfo, Data: h5test.LinkInfo()},
		h5test.Msg{Type: h5test.TypeLink, Data: h5test.Link("events", events)},
		h5test.Msg{Type: h5test.TypeLink, Data: h5test.SoftLink("latest", "/events")},
		h5test.Msg{Type: h5test.TypeLink, Data: h5test.Link("again", events)},
	))
	im.PutAt(0, h5test.SuperblockV2(im.Len(), root))

	f, err := Open(writeImage(t, im), ModeRead)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	if got := f.Root().Members(); !reflect.DeepEqual(got, []string{"events"}) {
		t.Errorf("root members %v", got)
	}
	tbl, err := f.Table("/events")
	if err != nil {
		t.Fatalf("Table failed: %v", err)
	}
	if tbl.Len() != 3 || tbl.NumChunks() != 1 {
		t.Errorf("len %d, chunks %d", tbl.Len(), tbl.NumChunks())
	}
	row, err := tbl.Row(2)
	if err != nil {
		t.Fatalf("Row failed: %v", err)
	}
	if id, _ := row.Get("event_id"); id != int64(2) {
		t.Errorf("event_id = %v", id)
	}
	if unit, _ := tbl.Attrs().Get("energy_UNIT"); unit != "GeV" {
		t.Errorf("energy_UNIT = %v", unit)
	}
}

func TestOpenHDF5CorruptRoot(t *testing.T) {
	im := h5test.NewImage(h5test.SuperblockV2Size)
	root := im.Append([]byte("not an object header"))
	im.PutAt(0, h5test.SuperblockV2(im.Len(), root))

	if _, err := Open(writeImage(t, im), ModeRead); !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt, got %v", err)
	}
}
