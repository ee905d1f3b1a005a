package tableio

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-h5table/container"
	"github.com/robert-malhotra/go-h5table/internal/h5test"
	"github.com/robert-malhotra/go-h5table/tablefile"
	"github.com/robert-malhotra/go-h5table/units"
)

var showerContainer = container.MustType("ShowerContainer", "shower",
	container.Field{Name: "event_id", Default: int64(-1)},
	container.Field{Name: "energy", Default: units.MustQuantity(math.NaN(), "TeV"), Unit: "TeV"},
)

// writeHDF5Events writes an HDF5 file with a /dl1/events table of n rows
// whose energy column is stored in GeV, with event_id as a big-endian
// int64 and the energy column padded to an 8-byte boundary.
func writeHDF5Events(t *testing.T, n int) string {
	t.Helper()
	const record = 24
	im := h5test.NewImage(h5test.SuperblockV2Size)

	data := make([]byte, n*record)
	for i := 0; i < n; i++ {
		rec := data[i*record:]
		binary.BigEndian.PutUint64(rec, uint64(1000+i))
		rec[8] = byte(i % 2)
		binary.LittleEndian.PutUint64(rec[16:], math.Float64bits(250*float64(i+1)))
	}
	dataAddr := im.Append(data)

	events := im.Append(h5test.HeaderV2(
		h5test.Msg{Type: h5test.TypeDatatype, Data: h5test.Compound(record,
			h5test.Field{Name: "event_id", Offset: 0, Type: h5test.Int(8, true, true)},
			h5test.Field{Name: "is_good", Offset: 8, Type: h5test.BoolEnum()},
			h5test.Field{Name: "energy", Offset: 16, Type: h5test.Float(8, false)},
		)},
		h5test.Msg{Type: h5test.TypeDataspace, Data: h5test.Dataspace(uint64(n))},
		h5test.Msg{Type: h5test.TypeDataLayout, Data: h5test.ContiguousLayout(dataAddr, uint64(len(data)))},
		h5test.Msg{Type: h5test.TypeAttribute, Data: h5test.StringAttribute("CLASS", "TABLE")},
		h5test.Msg{Type: h5test.TypeAttribute, Data: h5test.StringAttribute("energy_UNIT", "GeV")},
		h5test.Msg{Type: h5test.TypeAttribute, Data: h5test.StringAttribute("CTA PRODUCT ID", "abc")},
	))
	dl1 := im.Append(h5test.HeaderV2(
		h5test.Msg{Type: h5test.TypeLinkInfo, Data: h5test.LinkInfo()},
		h5test.Msg{Type: h5test.TypeLink, Data: h5test.Link("events", events)},
	))
	root := im.Append(h5test.HeaderV2(
		h5test.Msg{Type: h5test.TypeLinkInfo, Data: h5test.LinkInfo()},
		h5test.Msg{Type: h5test.TypeLink, Data: h5test.Link("dl1", dl1)},
	))
	im.PutAt(0, h5test.SuperblockV2(im.Len(), root))

	path := filepath.Join(t.TempDir(), "dl1.h5")
	require.NoError(t, os.WriteFile(path, im.Bytes(), 0o644))
	return path
}

func TestReadHDF5Table(t *testing.T) {
	path := writeHDF5Events(t, 3)
	r := newTestReader(t, path)
	assert.True(t, r.File().IsHDF5())

	i := 0
	for c, err := range r.ReadOne("/dl1/events", showerContainer) {
		require.NoError(t, err)

		id, _ := c.Get("event_id")
		assert.Equal(t, int64(1000+i), id)

		e, _ := c.Get("energy")
		q, ok := e.(units.Quantity)
		require.True(t, ok, "energy read as %T", e)
		assert.Equal(t, "GeV", q.Unit.String())
		tev, err := q.In(units.MustParse("TeV"))
		require.NoError(t, err)
		assert.InDelta(t, 0.25*float64(i+1), tev, 1e-12)

		assert.Equal(t, "abc", c.Meta()["CTA PRODUCT ID"])
		assert.NotContains(t, c.Meta(), "CLASS")
		i++
	}
	assert.Equal(t, 3, i)
}

func TestReadHDF5IsReadOnly(t *testing.T) {
	path := writeHDF5Events(t, 1)
	_, err := NewWriter(path, "dl1", WithMode(tablefile.ModeAppend))
	assert.ErrorIs(t, err, tablefile.ErrReadOnlyFormat)
}
