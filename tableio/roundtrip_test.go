package tableio

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-h5table/astrotime"
	"github.com/robert-malhotra/go-h5table/container"
	"github.com/robert-malhotra/go-h5table/tablefile"
	"github.com/robert-malhotra/go-h5table/units"
)

var qualityEnum = container.MustEnumType("Quality",
	container.EnumMember{Name: "Good", Value: 0},
	container.EnumMember{Name: "Bad", Value: 1},
	container.EnumMember{Name: "Ugly", Value: 2},
)

var subType = container.MustType("SubContainer", "sub",
	container.Field{Name: "n", Default: 7},
)

var fullType = container.MustType("FullContainer", "full",
	container.Field{Name: "obs_id", Default: int64(0), Description: "observation id"},
	container.Field{Name: "flag", Default: false},
	container.Field{Name: "intensity", Default: float32(0)},
	container.Field{Name: "count", Default: 0},
	container.Field{Name: "pos", Default: func() any { return []float64{0, 0, 0} }},
	container.Field{Name: "image", Default: func() any { return [][]int16{{0, 0}, {0, 0}} }},
	container.Field{Name: "mask", Default: func() any { return [][]uint8{{0, 0}, {0, 0}} }},
	container.Field{Name: "alt", Default: units.MustQuantity(0, "deg"), Unit: "deg"},
	container.Field{Name: "pixels", Default: func() any { return units.MustQuantities([]float64{0, 0}, "p.e.") }},
	container.Field{Name: "time", Default: astrotime.New(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))},
	container.Field{Name: "label", Default: "", MaxLength: 8},
	container.Field{Name: "quality", Default: qualityEnum.MustMember("Good"), Enum: qualityEnum},
	container.Field{Name: "sub", Default: container.Of(subType)},
)

func fullRow(i int) *container.Container {
	c := fullType.New()
	c.MustSet("obs_id", int64(100+i))
	c.MustSet("flag", i%2 == 0)
	c.MustSet("intensity", float32(i)*1.5)
	c.MustSet("count", i*10)
	c.MustSet("pos", []float64{float64(i), 1, 2})
	c.MustSet("image", [][]int16{{int16(i), 1}, {2, 3}})
	c.MustSet("mask", [][]uint8{{uint8(i), 1}, {2, 255}})
	c.MustSet("alt", units.MustQuantity(float64(60+i), "deg"))
	c.MustSet("pixels", units.MustQuantities([]float64{float64(i), 0.5}, "p.e."))
	c.MustSet("time", astrotime.New(time.Date(2021, 3, 4, 5, 6, i, 500000000, time.UTC)))
	c.MustSet("label", []string{"alpha", "béta", "a very long label"}[i])
	c.MustSet("quality", qualityEnum.MustMember(qualityEnum.Members()[i].Name))
	c.Meta()["origin"] = "sim"
	return c
}

func writeFull(t *testing.T, rows int) string {
	t.Helper()
	w, path := newTestWriter(t)
	for i := 0; i < rows; i++ {
		require.NoError(t, w.Write("full", fullRow(i)))
	}
	require.NoError(t, w.Close())
	return path
}

func newTestReader(t *testing.T, path string, opts ...Option) *Reader {
	t.Helper()
	r, err := NewReader(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRoundTripAllKinds(t *testing.T) {
	path := writeFull(t, 3)
	r := newTestReader(t, path)

	var got []*container.Container
	for c, err := range r.ReadOne("/dl1/full", fullType) {
		require.NoError(t, err)
		got = append(got, c)
	}
	require.Len(t, got, 3)

	labels := []string{"alpha", "béta", "a very l"}
	for i, c := range got {
		assert.Same(t, fullType, c.Type())
		get := func(name string) any {
			v, ok := c.Get(name)
			require.True(t, ok, name)
			return v
		}
		assert.Equal(t, int64(100+i), get("obs_id"))
		assert.Equal(t, i%2 == 0, get("flag"))
		assert.Equal(t, float32(i)*1.5, get("intensity"))
		assert.Equal(t, i*10, get("count"))
		assert.Equal(t, []float64{float64(i), 1, 2}, get("pos"))
		assert.Equal(t, [][]int16{{int16(i), 1}, {2, 3}}, get("image"))
		assert.Equal(t, [][]uint8{{uint8(i), 1}, {2, 255}}, get("mask"))
		assert.Equal(t, units.MustQuantity(float64(60+i), "deg"), get("alt"))
		assert.Equal(t, units.MustQuantities([]float64{float64(i), 0.5}, "p.e."), get("pixels"))
		assert.WithinDuration(t,
			time.Date(2021, 3, 4, 5, 6, i, 500000000, time.UTC),
			get("time").(astrotime.Time).UTC(), 2*time.Microsecond)
		assert.Equal(t, labels[i], get("label"))
		assert.Equal(t, qualityEnum.Members()[i].Name, get("quality").(container.Enum).Name())

		sub, ok := get("sub").(*container.Container)
		require.True(t, ok)
		n, _ := sub.Get("n")
		assert.Equal(t, 7, n)

		assert.Equal(t, "sim", c.Meta()["origin"])
		assert.Equal(t, "deg", c.Meta()["alt_UNIT"])
		assert.Equal(t, "observation id", c.Meta()["obs_id_DESC"])
		assert.Equal(t, Version, c.Meta()[VersionAttr])
	}
}

func TestReadIsRestartable(t *testing.T) {
	path := writeFull(t, 3)
	r := newTestReader(t, path)

	for c, err := range r.ReadOne("/dl1/full", fullType) {
		require.NoError(t, err)
		id, _ := c.Get("obs_id")
		assert.Equal(t, int64(100), id)
		break
	}

	var ids []int64
	for c, err := range r.ReadOne("/dl1/full", fullType) {
		require.NoError(t, err)
		id, _ := c.Get("obs_id")
		ids = append(ids, id.(int64))
	}
	assert.Equal(t, []int64{100, 101, 102}, ids)
}

func TestReadMissingAndExtraColumns(t *testing.T) {
	written := container.MustType("Written", "",
		container.Field{Name: "a", Default: 1.0},
		container.Field{Name: "b", Default: int32(2)},
		container.Field{Name: "c", Default: true},
	)
	requested := container.MustType("Requested", "",
		container.Field{Name: "a", Default: 0.0},
		container.Field{Name: "d", Default: "none"},
	)

	w, path := newTestWriter(t)
	for i := 0; i < 3; i++ {
		c := written.New()
		c.MustSet("a", float64(i))
		require.NoError(t, w.Write("tab", c))
	}
	require.NoError(t, w.Close())

	logger, logs := observedLogger(zap.WarnLevel)
	r := newTestReader(t, path, WithLogger(logger))

	for pass := 0; pass < 2; pass++ {
		n := 0
		for c, err := range r.ReadOne("/dl1/tab", requested) {
			require.NoError(t, err)
			a, _ := c.Get("a")
			assert.Equal(t, float64(n), a)
			d, ok := c.Get("d")
			assert.True(t, ok)
			assert.Nil(t, d)
			n++
		}
		assert.Equal(t, 3, n)
	}
	assert.Equal(t, 1, logs.FilterMessage("table is missing fields of the requested type, they will be nil").Len())
}

func TestReadIgnoreColumns(t *testing.T) {
	typ := container.MustType("T", "",
		container.Field{Name: "a", Default: 1.0},
		container.Field{Name: "b", Default: -1.0},
	)
	w, path := newTestWriter(t)
	c := typ.New()
	c.MustSet("b", 5.0)
	require.NoError(t, w.Write("tab", c))
	require.NoError(t, w.Close())

	logger, logs := observedLogger(zap.WarnLevel)
	r := newTestReader(t, path, WithLogger(logger))
	for c, err := range r.ReadOne("/dl1/tab", typ, WithIgnoreColumns("b")) {
		require.NoError(t, err)
		b, _ := c.Get("b")
		assert.Equal(t, -1.0, b)
	}
	assert.Zero(t, logs.Len())
}

var (
	hillasType = container.MustType("HillasParametersContainer", "hillas",
		container.Field{Name: "intensity", Default: 0.0, Description: "total intensity"},
		container.Field{Name: "width", Default: units.MustQuantity(0, "deg"), Unit: "deg"},
	)
	leakageType = container.MustType("LeakageContainer", "leakage",
		container.Field{Name: "intensity", Default: 0.0},
	)
)

func TestReadMultipleTypesWithPrefixes(t *testing.T) {
	w, path := newTestWriter(t, WithAddPrefix(true))
	for i := 0; i < 2; i++ {
		h, l := hillasType.New(), leakageType.New()
		h.MustSet("intensity", 100.0+float64(i))
		h.MustSet("width", units.MustQuantity(0.1, "deg"))
		l.MustSet("intensity", 0.01*float64(i))
		require.NoError(t, w.Write("params", h, l))
	}
	require.NoError(t, w.Close())

	tbl := openTable(t, path, "/dl1/params")
	assert.Equal(t, []string{"hillas_intensity", "hillas_width", "leakage_intensity"}, tbl.ColNames())

	r := newTestReader(t, path)
	i := 0
	for row, err := range r.Read("/dl1/params", []*container.Type{hillasType, leakageType}, WithTypePrefixes()) {
		require.NoError(t, err)
		require.Len(t, row, 2)
		h, l := row[0], row[1]
		assert.Equal(t, "hillas", h.Prefix())
		assert.Equal(t, "leakage", l.Prefix())

		hi, _ := h.Get("intensity")
		assert.Equal(t, 100.0+float64(i), hi)
		width, _ := h.Get("width")
		assert.Equal(t, units.MustQuantity(0.1, "deg"), width)
		li, _ := l.Get("intensity")
		assert.Equal(t, 0.01*float64(i), li)

		assert.Equal(t, "total intensity", h.Meta()["hillas_intensity_DESC"])
		assert.Equal(t, "deg", h.Meta()["hillas_width_UNIT"])
		assert.NotContains(t, l.Meta(), "hillas_intensity_DESC")
		assert.NotContains(t, l.Meta(), "hillas_width_UNIT")
		assert.Equal(t, Version, h.Meta()[VersionAttr])
		assert.Equal(t, Version, l.Meta()[VersionAttr])
		i++
	}
	assert.Equal(t, 2, i)

	// Explicit prefixes, in order.
	for row, err := range r.Read("/dl1/params", []*container.Type{leakageType}, WithPrefixes("leakage")) {
		require.NoError(t, err)
		_, ok := row[0].Get("intensity")
		assert.True(t, ok)
	}
}

func TestReadContractErrors(t *testing.T) {
	w, path := newTestWriter(t)
	require.NoError(t, w.Write("events", newEvent(1, "A")))
	require.NoError(t, w.Close())
	r := newTestReader(t, path)

	firstErr := func(seq func(func([]*container.Container, error) bool)) error {
		var out error
		seq(func(_ []*container.Container, err error) bool {
			out = err
			return false
		})
		return out
	}

	assert.ErrorIs(t, firstErr(r.Read("/dl1/events", nil)), ErrTypeContract)
	assert.ErrorIs(t, firstErr(r.Read("/dl1/events", []*container.Type{nil})), ErrTypeContract)
	assert.ErrorIs(t, firstErr(r.Read("/dl1/events",
		[]*container.Type{eventContainer, fullType}, WithPrefixes("event"))), ErrConfiguration)
	assert.ErrorIs(t, firstErr(r.Read("/dl1/nope", []*container.Type{eventContainer})), tablefile.ErrNotFound)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.ErrorIs(t, firstErr(r.Read("/dl1/events", []*container.Type{eventContainer})), tablefile.ErrClosed)

	_, err := NewReader(filepath.Join(t.TempDir(), "missing.h5t"))
	assert.Error(t, err)
}

func TestReadEnergyEventType(t *testing.T) {
	w, path := newTestWriter(t)
	energies := []float64{1, 2.5, 10}
	for i, e := range energies {
		require.NoError(t, w.Write("events", newEvent(e, []string{"A", "B", "A"}[i])))
	}
	require.NoError(t, w.Close())

	r := newTestReader(t, path)
	i := 0
	for c, err := range r.ReadOne("/dl1/events", eventContainer) {
		require.NoError(t, err)
		e, _ := c.Get("energy")
		q := e.(units.Quantity)
		assert.Equal(t, "GeV", q.Unit.String())
		tev, err := q.In(units.MustParse("TeV"))
		require.NoError(t, err)
		assert.InDelta(t, energies[i], tev, 1e-12)

		et, _ := c.Get("event_type")
		assert.Equal(t, eventTypeEnum.MustMember([]string{"A", "B", "A"}[i]), et)
		i++
	}
	assert.Equal(t, 3, i)
}

var flagEnum = container.MustEnumType("ReadFlag",
	container.EnumMember{Name: "Off", Value: 0},
	container.EnumMember{Name: "On", Value: 1},
)

func TestReadEnumFromRegistry(t *testing.T) {
	require.NoError(t, container.RegisterEnum(flagEnum))
	orphan := container.MustEnumType("OrphanFlag",
		container.EnumMember{Name: "No", Value: 0},
		container.EnumMember{Name: "Yes", Value: 1},
	)

	written := container.MustType("Flags", "",
		container.Field{Name: "registered", Default: flagEnum.MustMember("Off"), Enum: flagEnum},
		container.Field{Name: "orphan", Default: orphan.MustMember("No"), Enum: orphan},
	)
	w, path := newTestWriter(t)
	c := written.New()
	c.MustSet("registered", flagEnum.MustMember("On"))
	c.MustSet("orphan", orphan.MustMember("Yes"))
	require.NoError(t, w.Write("flags", c))
	require.NoError(t, w.Close())

	plain := container.MustType("PlainFlags", "",
		container.Field{Name: "registered"},
		container.Field{Name: "orphan"},
	)
	logger, logs := observedLogger(zap.WarnLevel)
	r := newTestReader(t, path, WithLogger(logger))
	for c, err := range r.ReadOne("/dl1/flags", plain) {
		require.NoError(t, err)
		reg, _ := c.Get("registered")
		assert.Equal(t, flagEnum.MustMember("On"), reg)
		o, _ := c.Get("orphan")
		assert.Equal(t, int8(1), o)
	}
	assert.Equal(t, 1, logs.FilterMessage("enumeration not known, keeping integer codes").Len())
}

func TestListToMaskRoundTrip(t *testing.T) {
	typ := container.MustType("TriggerContainer", "",
		container.Field{Name: "tels_with_trigger", Default: func() any { return []int{} }},
	)
	w, path := newTestWriter(t)
	w.AddColumnTransform("trigger", "tels_with_trigger", &ListToMaskTransform{Length: 4})
	c := typ.New()
	c.MustSet("tels_with_trigger", []int{0, 3})
	require.NoError(t, w.Write("trigger", c))
	require.NoError(t, w.Close())

	col, ok := openTable(t, path, "/dl1/trigger").Col("tels_with_trigger")
	require.True(t, ok)
	assert.Equal(t, "bool", col.Dtype)
	assert.Equal(t, []int{4}, col.Shape)

	r := newTestReader(t, path)
	for c, err := range r.ReadOne("/dl1/trigger", typ) {
		require.NoError(t, err)
		v, _ := c.Get("tels_with_trigger")
		assert.Equal(t, []bool{true, false, false, true}, v)
	}

	r2 := newTestReader(t, path)
	r2.AddColumnTransform("/dl1/trigger", "tels_with_trigger", &ListToMaskTransform{Length: 4})
	for c, err := range r2.ReadOne("dl1/trigger", typ) {
		require.NoError(t, err)
		v, _ := c.Get("tels_with_trigger")
		assert.Equal(t, []int{0, 3}, v)
	}
}

func TestFixedPointColumnRoundTrip(t *testing.T) {
	typ := container.MustType("ImageContainer", "",
		container.Field{Name: "image", Default: func() any { return []float32{0, 0, 0} }},
	)
	fp, err := NewFixedPointTransform(10, 0, "float32", "uint16")
	require.NoError(t, err)

	w, path := newTestWriter(t)
	require.NoError(t, w.AddColumnTransformRegexp("images", "im.*", fp))
	c := typ.New()
	c.MustSet("image", []float32{1.5, -2, 12.25})
	require.NoError(t, w.Write("images", c))
	require.NoError(t, w.Close())

	col, _ := openTable(t, path, "/dl1/images").Col("image")
	assert.Equal(t, "uint16", col.Dtype)

	r := newTestReader(t, path)
	for c, err := range r.ReadOne("/dl1/images", typ) {
		require.NoError(t, err)
		v, _ := c.Get("image")
		assert.InDeltaSlice(t, []float32{1.5, 0, 12.3}, v, 1e-5)
	}
}

func TestReopenAppend(t *testing.T) {
	w, path := newTestWriter(t)
	require.NoError(t, w.Write("events", newEvent(1, "A")))
	require.NoError(t, w.Write("events", newEvent(2, "B")))
	require.NoError(t, w.Close())

	w2, err := NewWriter(path, "dl1", WithMode(tablefile.ModeAppend))
	require.NoError(t, err)
	require.NoError(t, w2.Write("events", newEvent(3, "B")))
	schema, ok := w2.Schema("events")
	require.True(t, ok)
	assert.Len(t, schema.Columns(), 2)
	require.NoError(t, w2.Close())

	r := newTestReader(t, path)
	var tev []float64
	var types []string
	for c, err := range r.ReadOne("/dl1/events", eventContainer) {
		require.NoError(t, err)
		e, _ := c.Get("energy")
		v, err := e.(units.Quantity).In(units.MustParse("TeV"))
		require.NoError(t, err)
		tev = append(tev, v)
		et, _ := c.Get("event_type")
		types = append(types, et.(container.Enum).Name())
	}
	assert.InDeltaSlice(t, []float64{1, 2, 3}, tev, 1e-12)
	assert.Equal(t, []string{"A", "B", "B"}, types)
}
