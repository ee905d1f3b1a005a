package tableio

import (
	"fmt"
	"reflect"

	"github.com/robert-malhotra/go-h5table/astrotime"
	"github.com/robert-malhotra/go-h5table/container"
	"github.com/robert-malhotra/go-h5table/internal/dtype"
	"github.com/robert-malhotra/go-h5table/units"
)

// valueKind is the closed set of value shapes the schema resolver knows.
type valueKind int

const (
	kindUnsupported valueKind = iota
	kindNested
	kindEnum
	kindQuantity
	kindQuantityArray
	kindArray
	kindTime
	kindScalar
	kindString
)

var kindNames = [...]string{
	kindUnsupported:   "unsupported",
	kindNested:        "nested",
	kindEnum:          "enum",
	kindQuantity:      "quantity",
	kindQuantityArray: "quantity array",
	kindArray:         "array",
	kindTime:          "time",
	kindScalar:        "scalar",
	kindString:        "string",
}

func (k valueKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("valueKind(%d)", int(k))
}

// classify picks the kind of v. The order of the cases is the priority
// order of the automatic transforms.
func classify(v any) valueKind {
	switch x := v.(type) {
	case nil:
		return kindUnsupported
	case *container.Container, *container.Map:
		return kindNested
	case container.Enum:
		if x.IsZero() {
			return kindUnsupported
		}
		return kindEnum
	case units.Quantity:
		return kindQuantity
	case units.Quantities:
		if x.Len() == 0 {
			return kindUnsupported
		}
		return kindQuantityArray
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if _, _, err := arrayShape(v); err == nil {
			return kindArray
		}
		return kindUnsupported
	}
	if _, ok := v.(astrotime.Time); ok {
		return kindTime
	}
	if _, ok := dtype.FromKind(rv.Kind()); ok {
		return kindScalar
	}
	if rv.Kind() == reflect.String {
		return kindString
	}
	return kindUnsupported
}

// scalarDtype returns the column type name of a scalar value.
func scalarDtype(v any) (string, error) {
	dt, ok := dtype.FromKind(reflect.ValueOf(v).Kind())
	if !ok {
		return "", fmt.Errorf("%w: %T is not a numeric or boolean scalar", ErrSchema, v)
	}
	return dtype.Name(dt), nil
}

// arrayShape returns the element type name and the shape of a regular,
// non-empty, possibly nested slice of numbers or booleans.
func arrayShape(v any) (string, []int, error) {
	var shape []int
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if rv.Len() == 0 {
			return "", nil, fmt.Errorf("%w: empty array has no fixed shape", ErrSchema)
		}
		shape = append(shape, rv.Len())
		rv = rv.Index(0)
		if rv.Kind() == reflect.Interface {
			rv = rv.Elem()
		}
	}
	dt, ok := dtype.FromKind(rv.Kind())
	if !ok {
		return "", nil, fmt.Errorf("%w: array of %s", ErrSchema, rv.Kind())
	}
	if err := checkRegular(reflect.ValueOf(v), shape, rv.Kind()); err != nil {
		return "", nil, err
	}
	return dtype.Name(dt), shape, nil
}

// checkRegular verifies that every sub-slice of v has the length given by
// shape and that all leaves have the same kind.
func checkRegular(v reflect.Value, shape []int, leaf reflect.Kind) error {
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if len(shape) == 0 {
		if v.Kind() != leaf {
			return fmt.Errorf("%w: mixed element types %s and %s", ErrSchema, leaf, v.Kind())
		}
		return nil
	}
	if (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) || v.Len() != shape[0] {
		return fmt.Errorf("%w: ragged array", ErrSchema)
	}
	for i := 0; i < v.Len(); i++ {
		if err := checkRegular(v.Index(i), shape[1:], leaf); err != nil {
			return err
		}
	}
	return nil
}
