package units

import (
	"fmt"
	"strconv"
	"strings"
)

// Quantity is a scalar value with a unit.
type Quantity struct {
	Value float64
	Unit  Unit
}

// NewQuantity returns value in the unit called unit.
func NewQuantity(value float64, unit string) (Quantity, error) {
	u, err := Parse(unit)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Value: value, Unit: u}, nil
}

// MustQuantity is like NewQuantity but panics on error.
func MustQuantity(value float64, unit string) Quantity {
	return Quantity{Value: value, Unit: MustParse(unit)}
}

// To converts q into u.
func (q Quantity) To(u Unit) (Quantity, error) {
	f, err := q.Unit.Factor(u)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Value: q.Value * f, Unit: u}, nil
}

// In returns the value of q expressed in u.
func (q Quantity) In(u Unit) (float64, error) {
	c, err := q.To(u)
	return c.Value, err
}

// String formats q as "1.5 TeV".
func (q Quantity) String() string {
	v := strconv.FormatFloat(q.Value, 'g', -1, 64)
	if q.Unit.name == "" {
		return v
	}
	return v + " " + q.Unit.name
}

// Quantities is a fixed-size array of values sharing one unit.
type Quantities struct {
	Values []float64
	Unit   Unit
}

// NewQuantities returns values in the unit called unit. The slice is not
// copied.
func NewQuantities(values []float64, unit string) (Quantities, error) {
	u, err := Parse(unit)
	if err != nil {
		return Quantities{}, err
	}
	return Quantities{Values: values, Unit: u}, nil
}

// MustQuantities is like NewQuantities but panics on error.
func MustQuantities(values []float64, unit string) Quantities {
	return Quantities{Values: values, Unit: MustParse(unit)}
}

// Len returns the number of values.
func (q Quantities) Len() int { return len(q.Values) }

// At returns element i as a Quantity.
func (q Quantities) At(i int) Quantity {
	return Quantity{Value: q.Values[i], Unit: q.Unit}
}

// To converts every value into u. The result never aliases q.Values.
func (q Quantities) To(u Unit) (Quantities, error) {
	f, err := q.Unit.Factor(u)
	if err != nil {
		return Quantities{}, err
	}
	out := make([]float64, len(q.Values))
	for i, v := range q.Values {
		out[i] = v * f
	}
	return Quantities{Values: out, Unit: u}, nil
}

func (q Quantities) String() string {
	parts := make([]string, len(q.Values))
	for i, v := range q.Values {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	s := fmt.Sprintf("[%s]", strings.Join(parts, " "))
	if q.Unit.name == "" {
		return s
	}
	return s + " " + q.Unit.name
}
