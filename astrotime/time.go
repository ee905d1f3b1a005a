// Package astrotime represents instants in the astronomical time scales
// UTC, TAI and TT, and converts them to and from the numeric formats used
// in table columns (MJD, JD, Unix seconds).
//
// A Time is an instant; the scale only matters when it is turned into a
// number. Numeric values carry about a microsecond of precision, so values
// decoded from a float are rounded to the microsecond.
package astrotime

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Scale is a time scale name.
type Scale string

// Supported scales.
const (
	UTC Scale = "utc"
	TAI Scale = "tai"
	TT  Scale = "tt"
)

// Format is a numeric time representation.
type Format string

// Supported formats.
const (
	MJD     Format = "mjd"
	JD      Format = "jd"
	Unix    Format = "unix"
	UnixTAI Format = "unix_tai"
)

// Errors
var (
	ErrUnknownScale  = errors.New("unknown time scale")
	ErrUnknownFormat = errors.New("unknown time format")
)

const (
	secondsPerDay = 86400
	// mjdEpochUnix is 1858-11-17T00:00:00 in Unix seconds.
	mjdEpochUnix = -3506716800
	jdOffset     = 2400000.5
	ttMinusTAI   = 32184 * time.Millisecond
)

// ParseScale validates a scale name, case-insensitively.
func ParseScale(s string) (Scale, error) {
	switch sc := Scale(strings.ToLower(strings.TrimSpace(s))); sc {
	case UTC, TAI, TT:
		return sc, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScale, s)
}

// ParseFormat validates a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case MJD, JD, Unix, UnixTAI:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Time is an instant. The zero value is 0001-01-01 UTC, like time.Time.
type Time struct {
	utc time.Time
}

// New returns the instant t.
func New(t time.Time) Time {
	return Time{utc: t.UTC()}
}

// Now returns the current instant.
func Now() Time { return New(time.Now()) }

// UTC returns the instant as a UTC time.Time.
func (t Time) UTC() time.Time { return t.utc }

// IsZero reports whether t is the zero instant.
func (t Time) IsZero() bool { return t.utc.IsZero() }

// Equal reports whether t and u are the same instant.
func (t Time) Equal(u Time) bool { return t.utc.Equal(u.utc) }

// Sub returns t-u.
func (t Time) Sub(u Time) time.Duration { return t.utc.Sub(u.utc) }

// Calendar returns the calendar reading of t in scale s: the wall clock
// of a clock running in that scale, expressed as a time.Time.
func (t Time) Calendar(s Scale) (time.Time, error) {
	switch s {
	case UTC:
		return t.utc, nil
	case TAI:
		return t.utc.Add(TAIMinusUTC(t.utc)), nil
	case TT:
		return t.utc.Add(TAIMinusUTC(t.utc) + ttMinusTAI), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownScale, s)
}

// fromCalendar is the inverse of Calendar.
func fromCalendar(c time.Time, s Scale) (Time, error) {
	switch s {
	case UTC:
		return New(c), nil
	case TAI:
		return New(c.Add(-utcOffsetAtTAI(c))), nil
	case TT:
		tai := c.Add(-ttMinusTAI)
		return New(tai.Add(-utcOffsetAtTAI(tai))), nil
	}
	return Time{}, fmt.Errorf("%w: %q", ErrUnknownScale, s)
}

// Value returns t as a number in the given scale and format. The unix
// format always counts UTC seconds and unix_tai always counts TAI seconds
// since 1970-01-01T00:00:00 TAI, whatever the scale.
func (t Time) Value(s Scale, f Format) (float64, error) {
	switch f {
	case Unix:
		return unixSeconds(t.utc), nil
	case UnixTAI:
		c, _ := t.Calendar(TAI)
		return unixSeconds(c), nil
	case MJD, JD:
		c, err := t.Calendar(s)
		if err != nil {
			return 0, err
		}
		secs := c.Unix() - mjdEpochUnix
		mjd := float64(secs)/secondsPerDay + float64(c.Nanosecond())/(secondsPerDay*1e9)
		if f == JD {
			return mjd + jdOffset, nil
		}
		return mjd, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// MJD returns t as a Modified Julian Date in scale s.
func (t Time) MJD(s Scale) float64 {
	v, _ := t.Value(s, MJD)
	return v
}

// FromValue is the inverse of Time.Value.
func FromValue(v float64, s Scale, f Format) (Time, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Time{}, fmt.Errorf("cannot convert %v to a time", v)
	}
	switch f {
	case Unix:
		return New(fromSeconds(v, 0)), nil
	case UnixTAI:
		return fromCalendar(fromSeconds(v, 0), TAI)
	case MJD, JD:
		if _, err := ParseScale(string(s)); err != nil {
			return Time{}, err
		}
		mjd := v
		if f == JD {
			mjd -= jdOffset
		}
		whole, frac := math.Modf(mjd)
		c := fromSeconds(frac*secondsPerDay, int64(whole)*secondsPerDay+mjdEpochUnix)
		return fromCalendar(c, s)
	}
	return Time{}, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// FromMJD returns the instant of a Modified Julian Date in scale s.
func FromMJD(mjd float64, s Scale) (Time, error) {
	return FromValue(mjd, s, MJD)
}

// String formats t as RFC 3339 in UTC with microseconds.
func (t Time) String() string {
	return t.utc.Format("2006-01-02T15:04:05.000000Z07:00")
}

func unixSeconds(c time.Time) float64 {
	return float64(c.Unix()) + float64(c.Nanosecond())/1e9
}

// fromSeconds returns the time base+secs Unix seconds, rounded to the
// microsecond.
func fromSeconds(secs float64, base int64) time.Time {
	whole, frac := math.Modf(secs)
	t := time.Unix(base+int64(whole), 0).UTC()
	return t.Add(time.Duration(math.Round(frac*1e6)) * time.Microsecond)
}
