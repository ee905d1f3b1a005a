// Package units implements the small closed set of physical units used by
// telescope event data: energies, angles, lengths, times, areas, solid
// angles, frequencies, photo-electron counts and dimensionless values.
//
// A Unit is a comparable value; two units are convertible when they share a
// dimension.
//
//	q := units.MustQuantity(1.5, "TeV")
//	gev, _ := q.To(units.MustParse("GeV")) // 1500 GeV
package units

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Errors
var (
	ErrUnknownUnit  = errors.New("unknown unit")
	ErrIncompatible = errors.New("incompatible units")
)

// Dimension is the physical dimension of a unit.
type Dimension string

// Dimensions
const (
	Dimensionless Dimension = "dimensionless"
	Energy        Dimension = "energy"
	Angle         Dimension = "angle"
	Length        Dimension = "length"
	Time          Dimension = "time"
	Area          Dimension = "area"
	SolidAngle    Dimension = "solid angle"
	Frequency     Dimension = "frequency"
	Photoelectron Dimension = "photoelectron"
)

// Unit is a named unit with its scale relative to the base unit of its
// dimension (eV, rad, m, s, m2, sr, Hz, p.e.).
type Unit struct {
	name  string
	scale float64
	dim   Dimension
}

// One is the dimensionless unit. It formats as the empty string.
var One = Unit{name: "", scale: 1, dim: Dimensionless}

const (
	degree     = 0.017453292519943295
	evPerJoule = 6.241509074460763e18
)

var known = []Unit{
	One,
	{"%", 0.01, Dimensionless},

	{"eV", 1, Energy},
	{"keV", 1e3, Energy},
	{"MeV", 1e6, Energy},
	{"GeV", 1e9, Energy},
	{"TeV", 1e12, Energy},
	{"PeV", 1e15, Energy},
	{"J", evPerJoule, Energy},
	{"erg", evPerJoule * 1e-7, Energy},

	{"rad", 1, Angle},
	{"mrad", 1e-3, Angle},
	{"deg", degree, Angle},
	{"arcmin", degree / 60, Angle},
	{"arcsec", degree / 3600, Angle},

	{"m", 1, Length},
	{"km", 1e3, Length},
	{"cm", 1e-2, Length},
	{"mm", 1e-3, Length},
	{"um", 1e-6, Length},
	{"nm", 1e-9, Length},

	{"s", 1, Time},
	{"ms", 1e-3, Time},
	{"us", 1e-6, Time},
	{"ns", 1e-9, Time},
	{"min", 60, Time},
	{"h", 3600, Time},
	{"d", 86400, Time},

	{"m2", 1, Area},
	{"km2", 1e6, Area},
	{"cm2", 1e-4, Area},

	{"sr", 1, SolidAngle},
	{"deg2", degree * degree, SolidAngle},

	{"Hz", 1, Frequency},
	{"kHz", 1e3, Frequency},
	{"MHz", 1e6, Frequency},
	{"GHz", 1e9, Frequency},

	{"p.e.", 1, Photoelectron},
}

var aliases = map[string]string{
	"dimensionless_unscaled": "",
	"electronvolt":           "eV",
	"radian":                 "rad",
	"degree":                 "deg",
	"meter":                  "m",
	"micron":                 "um",
	"µm":                     "um",
	"second":                 "s",
	"µs":                     "us",
	"hour":                   "h",
	"day":                    "d",
	"m^2":                    "m2",
	"m**2":                   "m2",
	"km^2":                   "km2",
	"km**2":                  "km2",
	"cm^2":                   "cm2",
	"cm**2":                  "cm2",
	"deg^2":                  "deg2",
	"deg**2":                 "deg2",
	"steradian":              "sr",
	"pe":                     "p.e.",
	"phe":                    "p.e.",
	"ph.e.":                  "p.e.",
}

var byName = func() map[string]Unit {
	m := make(map[string]Unit, len(known))
	for _, u := range known {
		m[u.name] = u
	}
	return m
}()

// Parse returns the unit called name. Surrounding white space is ignored
// and a few spellings such as "m^2", "deg**2" and "pe" are accepted.
func Parse(name string) (Unit, error) {
	s := strings.TrimSpace(name)
	if alias, ok := aliases[s]; ok {
		s = alias
	}
	u, ok := byName[s]
	if !ok {
		return Unit{}, fmt.Errorf("%w: %q", ErrUnknownUnit, name)
	}
	return u, nil
}

// MustParse is like Parse but panics on error.
func MustParse(name string) Unit {
	u, err := Parse(name)
	if err != nil {
		panic(err)
	}
	return u
}

// Names returns the canonical names of all known units, sorted.
func Names() []string {
	names := make([]string, 0, len(known))
	for _, u := range known {
		names = append(names, u.name)
	}
	slices.Sort(names)
	return names
}

// String returns the canonical unit name.
func (u Unit) String() string { return u.name }

// Dimension returns the dimension of u.
func (u Unit) Dimension() Dimension {
	if u.dim == "" {
		return Dimensionless
	}
	return u.dim
}

// IsZero reports whether u is the zero Unit, which is not a valid unit.
func (u Unit) IsZero() bool { return u.scale == 0 }

// Convertible reports whether values in u can be expressed in other.
func (u Unit) Convertible(other Unit) bool {
	return !u.IsZero() && !other.IsZero() && u.Dimension() == other.Dimension()
}

// Factor returns the number that converts a value in u into other.
func (u Unit) Factor(other Unit) (float64, error) {
	if !u.Convertible(other) {
		return 0, fmt.Errorf("%w: %q (%s) and %q (%s)", ErrIncompatible, u.name, u.Dimension(), other.name, other.Dimension())
	}
	if u == other {
		return 1, nil
	}
	return u.scale / other.scale, nil
}
