package astrotime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTAIMinusUTC(t *testing.T) {
	assert.Equal(t, 10*time.Second, TAIMinusUTC(time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 32*time.Second, TAIMinusUTC(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 36*time.Second, TAIMinusUTC(time.Date(2016, 12, 31, 23, 59, 59, 0, time.UTC)))
	assert.Equal(t, 37*time.Second, TAIMinusUTC(time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestMJD(t *testing.T) {
	tm := New(time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC))

	assert.Equal(t, 51544.5, tm.MJD(UTC))
	assert.InDelta(t, 51544.5+32.0/86400, tm.MJD(TAI), 1e-9)
	assert.InDelta(t, 51544.5+64.184/86400, tm.MJD(TT), 1e-9)

	jd, err := tm.Value(UTC, JD)
	require.NoError(t, err)
	assert.Equal(t, 2451545.0, jd)

	epoch, err := FromMJD(0, UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(1858, 11, 17, 0, 0, 0, 0, time.UTC), epoch.UTC())
}

func TestUnixFormats(t *testing.T) {
	tm := New(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))

	unix, err := tm.Value(TAI, Unix)
	require.NoError(t, err)
	assert.Equal(t, float64(tm.UTC().Unix()), unix)

	unixTAI, err := tm.Value(UTC, UnixTAI)
	require.NoError(t, err)
	assert.Equal(t, unix+37, unixTAI)
}

func TestValueRoundTrip(t *testing.T) {
	instants := []time.Time{
		time.Date(2019, 10, 1, 22, 15, 3, 123456000, time.UTC),
		time.Date(2016, 12, 31, 23, 59, 50, 0, time.UTC),
		time.Date(1985, 3, 4, 5, 6, 7, 0, time.UTC),
	}
	for _, in := range instants {
		for _, s := range []Scale{UTC, TAI, TT} {
			for _, f := range []Format{MJD, JD, Unix, UnixTAI} {
				tm := New(in)
				v, err := tm.Value(s, f)
				require.NoError(t, err)
				back, err := FromValue(v, s, f)
				require.NoError(t, err)

				tol := 2 * time.Microsecond
				if f == JD {
					// JD values near 2.4e6 keep fewer fractional digits.
					tol = 50 * time.Microsecond
				}
				assert.WithinDuration(t, in, back.UTC(), tol, "%s %s %s", in, s, f)
			}
		}
	}
}

func TestParse(t *testing.T) {
	s, err := ParseScale("TAI")
	require.NoError(t, err)
	assert.Equal(t, TAI, s)
	_, err = ParseScale("tcb")
	assert.ErrorIs(t, err, ErrUnknownScale)

	f, err := ParseFormat("unix_tai")
	require.NoError(t, err)
	assert.Equal(t, UnixTAI, f)
	_, err = ParseFormat("iso")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = FromValue(1, "tcb", MJD)
	assert.ErrorIs(t, err, ErrUnknownScale)
}
