package tableio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-h5table/astrotime"
	"github.com/robert-malhotra/go-h5table/container"
	"github.com/robert-malhotra/go-h5table/units"
)

func TestClassify(t *testing.T) {
	sub := container.MustType("Sub", "", container.Field{Name: "x", Default: 1})

	tests := []struct {
		name string
		v    any
		want valueKind
	}{
		{"nil", nil, kindUnsupported},
		{"container", sub.New(), kindNested},
		{"map", container.NewMap(sub), kindNested},
		{"enum", eventTypeEnum.MustMember("A"), kindEnum},
		{"zero enum", container.Enum{}, kindUnsupported},
		{"quantity", units.MustQuantity(1, "m"), kindQuantity},
		{"quantities", units.MustQuantities([]float64{1}, "m"), kindQuantityArray},
		{"empty quantities", units.Quantities{Unit: units.MustParse("m")}, kindUnsupported},
		{"array", []int16{1, 2}, kindArray},
		{"matrix", [][]float32{{1, 2}, {3, 4}}, kindArray},
		{"ragged", [][]float32{{1, 2}, {3}}, kindUnsupported},
		{"strings", []string{"a"}, kindUnsupported},
		{"time", astrotime.New(time.Now()), kindTime},
		{"int", 3, kindScalar},
		{"bool", true, kindScalar},
		{"string", "x", kindString},
		{"struct", struct{}{}, kindUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.v))
		})
	}
}

func TestArrayShape(t *testing.T) {
	dt, shape, err := arrayShape([][]int16{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	assert.Equal(t, "int16", dt)
	assert.Equal(t, []int{2, 3}, shape)

	dt, shape, err = arrayShape([]any{1.0, 2.0})
	require.NoError(t, err)
	assert.Equal(t, "float64", dt)
	assert.Equal(t, []int{2}, shape)

	_, _, err = arrayShape([]any{1.0, int32(2)})
	assert.ErrorIs(t, err, ErrSchema)

	_, _, err = arrayShape([]bool{})
	assert.ErrorIs(t, err, ErrSchema)

	_, _, err = arrayShape([][]uint8{{1}, {2, 3}})
	assert.ErrorIs(t, err, ErrSchema)
}

func TestScalarDtype(t *testing.T) {
	dt, err := scalarDtype(int(1))
	require.NoError(t, err)
	assert.Equal(t, "int64", dt)

	dt, err = scalarDtype(float32(1))
	require.NoError(t, err)
	assert.Equal(t, "float32", dt)

	_, err = scalarDtype("x")
	assert.ErrorIs(t, err, ErrSchema)
}
