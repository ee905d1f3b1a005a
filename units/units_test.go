package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want string
		dim  Dimension
	}{
		{"TeV", "TeV", Energy},
		{" GeV ", "GeV", Energy},
		{"deg", "deg", Angle},
		{"m^2", "m2", Area},
		{"deg**2", "deg2", SolidAngle},
		{"pe", "p.e.", Photoelectron},
		{"", "", Dimensionless},
		{"ns", "ns", Time},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			u, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
			assert.Equal(t, tt.dim, u.Dimension())
		})
	}

	_, err := Parse("furlong")
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestFactor(t *testing.T) {
	f, err := MustParse("TeV").Factor(MustParse("GeV"))
	require.NoError(t, err)
	assert.Equal(t, 1000.0, f)

	f, err = MustParse("deg").Factor(MustParse("arcmin"))
	require.NoError(t, err)
	assert.InDelta(t, 60.0, f, 1e-12)

	_, err = MustParse("TeV").Factor(MustParse("m"))
	assert.ErrorIs(t, err, ErrIncompatible)

	_, err = Unit{}.Factor(One)
	assert.ErrorIs(t, err, ErrIncompatible)
}

func TestQuantityConversion(t *testing.T) {
	q := MustQuantity(1.5, "TeV")
	gev, err := q.To(MustParse("GeV"))
	require.NoError(t, err)
	assert.Equal(t, 1500.0, gev.Value)
	assert.Equal(t, "1500 GeV", gev.String())

	back, err := gev.In(MustParse("TeV"))
	require.NoError(t, err)
	assert.InDelta(t, 1.5, back, 1e-15)

	assert.Equal(t, "2", Quantity{Value: 2, Unit: One}.String())
}

func TestQuantitiesConversion(t *testing.T) {
	q := MustQuantities([]float64{1, 2, 3}, "m")
	cm, err := q.To(MustParse("cm"))
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 200, 300}, cm.Values)
	assert.Equal(t, []float64{1, 2, 3}, q.Values, "conversion must not modify the source")
	assert.Equal(t, "[100 200 300] cm", cm.String())
	assert.Equal(t, MustQuantity(2, "m"), q.At(1))
}

func TestNamesAreParseable(t *testing.T) {
	for _, name := range Names() {
		u, err := Parse(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, u.String())
	}
}
