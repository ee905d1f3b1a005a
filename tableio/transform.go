package tableio

import (
	"fmt"
	"math"
	"reflect"
	"unicode/utf8"

	"github.com/robert-malhotra/go-h5table/astrotime"
	"github.com/robert-malhotra/go-h5table/container"
	"github.com/robert-malhotra/go-h5table/internal/dtype"
	"github.com/robert-malhotra/go-h5table/internal/message"
	"github.com/robert-malhotra/go-h5table/units"
)

// Transform converts a container value into a storable column value and
// back.
type Transform interface {
	// Apply converts a container value into the stored value.
	Apply(v any) (any, error)
	// Inverse converts a stored value back into a container value.
	Inverse(v any) (any, error)
	// Attrs returns the header attributes that let a reader rebuild the
	// transform for column col. It may return nil.
	Attrs(col string) map[string]any
}

// TransformFunc adapts a one-way function into a Transform. Its inverse is
// the identity and it records no attributes.
type TransformFunc func(v any) (any, error)

// Apply calls f.
func (f TransformFunc) Apply(v any) (any, error) { return f(v) }

// Inverse returns v unchanged.
func (f TransformFunc) Inverse(v any) (any, error) { return v, nil }

// Attrs returns nil.
func (f TransformFunc) Attrs(string) map[string]any { return nil }

// QuantityTransform stores quantities as plain numbers in Unit.
type QuantityTransform struct {
	Unit units.Unit
}

// Apply converts a units.Quantity into a float64, or units.Quantities
// into a []float64, expressed in t.Unit.
func (t *QuantityTransform) Apply(v any) (any, error) {
	switch q := v.(type) {
	case units.Quantity:
		return q.In(t.Unit)
	case units.Quantities:
		c, err := q.To(t.Unit)
		if err != nil {
			return nil, err
		}
		return c.Values, nil
	}
	return nil, fmt.Errorf("expected a quantity in %q, got %T", t.Unit, v)
}

// Inverse attaches t.Unit to a number or a slice of numbers.
func (t *QuantityTransform) Inverse(v any) (any, error) {
	if isSlice(v) {
		values, err := floatSlice(v)
		if err != nil {
			return nil, err
		}
		return units.Quantities{Values: values, Unit: t.Unit}, nil
	}
	f, err := dtype.ToFloat64(v)
	if err != nil {
		return nil, err
	}
	return units.Quantity{Value: f, Unit: t.Unit}, nil
}

// Attrs records the unit.
func (t *QuantityTransform) Attrs(col string) map[string]any {
	return map[string]any{col + SuffixUnit: t.Unit.String()}
}

// EnumTransform stores enum members as their integer code.
type EnumTransform struct {
	// Name is the enumeration name recorded in the header.
	Name string
	// Enum resolves codes on read. Apply does not need it.
	Enum *container.EnumType
	// Dtype is the integer column type.
	Dtype string
}

func newEnumTransform(e *container.EnumType) *EnumTransform {
	return &EnumTransform{Name: e.Name(), Enum: e, Dtype: e.Dtype()}
}

// Apply returns the member's code as a value of t.Dtype.
func (t *EnumTransform) Apply(v any) (any, error) {
	m, ok := v.(container.Enum)
	if !ok || m.IsZero() {
		return nil, fmt.Errorf("expected a member of %s, got %T", t.Name, v)
	}
	if m.Type().Name() != t.Name {
		return nil, fmt.Errorf("%s is not a member of %s", m, t.Name)
	}
	dt, err := dtype.ParseName(t.Dtype)
	if err != nil {
		return nil, err
	}
	return dtype.Convert(dt, m.Value())
}

// Inverse returns the member with the stored code.
func (t *EnumTransform) Inverse(v any) (any, error) {
	if t.Enum == nil {
		return nil, fmt.Errorf("enum %s is not known", t.Name)
	}
	code, err := dtype.ToInt64(v)
	if err != nil {
		return nil, err
	}
	return t.Enum.FromValue(code)
}

// Attrs records the enumeration name.
func (t *EnumTransform) Attrs(col string) map[string]any {
	return map[string]any{col + SuffixEnum: t.Name}
}

// TimeTransform stores times as a float64 in Scale and Format.
type TimeTransform struct {
	Scale  astrotime.Scale
	Format astrotime.Format
}

// DefaultTimeTransform stores times as MJD in the TAI scale.
func DefaultTimeTransform() *TimeTransform {
	return &TimeTransform{Scale: astrotime.TAI, Format: astrotime.MJD}
}

// Apply converts an astrotime.Time into a number.
func (t *TimeTransform) Apply(v any) (any, error) {
	tm, ok := v.(astrotime.Time)
	if !ok {
		return nil, fmt.Errorf("expected an astrotime.Time, got %T", v)
	}
	return tm.Value(t.Scale, t.Format)
}

// Inverse converts a number into an astrotime.Time.
func (t *TimeTransform) Inverse(v any) (any, error) {
	f, err := dtype.ToFloat64(v)
	if err != nil {
		return nil, err
	}
	return astrotime.FromValue(f, t.Scale, t.Format)
}

// Attrs records scale and format.
func (t *TimeTransform) Attrs(col string) map[string]any {
	return map[string]any{
		col + SuffixTimeScale:  string(t.Scale),
		col + SuffixTimeFormat: string(t.Format),
	}
}

// StringTransform stores text as a fixed-width byte string of MaxLen
// bytes. Longer text is cut at the last full UTF-8 character that fits.
type StringTransform struct {
	MaxLen int
}

// Apply encodes a string.
func (t *StringTransform) Apply(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("expected a string, got %T", v)
	}
	b := []byte(s)
	if len(b) > t.MaxLen {
		n := t.MaxLen
		for n > 0 && !utf8.RuneStart(b[n]) {
			n--
		}
		b = b[:n]
	}
	return b, nil
}

// Inverse decodes stored bytes.
func (t *StringTransform) Inverse(v any) (any, error) {
	switch b := v.(type) {
	case []byte:
		return string(b), nil
	case string:
		return b, nil
	}
	return nil, fmt.Errorf("expected bytes, got %T", v)
}

// Attrs records the transform kind and width.
func (t *StringTransform) Attrs(col string) map[string]any {
	return map[string]any{
		col + SuffixTransform: "string",
		col + SuffixMaxLen:    int64(t.MaxLen),
	}
}

// FixedPointTransform stores floats as scaled integers:
// stored = round((v + Offset) * Scale). NaN and infinities map onto
// reserved codes at the ends of the integer range, finite values are
// clipped to the codes in between.
type FixedPointTransform struct {
	Scale  float64
	Offset float64
	// Source is the float type restored on read: float32 or float64.
	Source string
	// Target is the integer column type.
	Target string

	target *message.Datatype
	codes  fixedPointCodes
}

// fixedPointCodes are the reserved codes and finite range of a target
// type, widened to float64 for comparisons and to big-enough integers for
// storing.
type fixedPointCodes struct {
	signed           bool
	nan, posInf, neg int64
	unan, upos, uneg uint64
	lo, hi           float64
	ulo, uhi         uint64
	slo, shi         int64
}

// NewFixedPointTransform returns a fixed-point transform from the float
// type source to the integer type target.
func NewFixedPointTransform(scale, offset float64, source, target string) (*FixedPointTransform, error) {
	if scale == 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("%w: fixed-point scale %v", ErrConfiguration, scale)
	}
	src, err := dtype.ParseName(source)
	if err != nil || src.Class != message.ClassFloatPoint {
		return nil, fmt.Errorf("%w: fixed-point source %q is not a float type", ErrConfiguration, source)
	}
	dst, err := dtype.ParseName(target)
	if err != nil || !dtype.IsInteger(dst) {
		return nil, fmt.Errorf("%w: fixed-point target %q is not an integer type", ErrConfiguration, target)
	}
	return &FixedPointTransform{
		Scale:  scale,
		Offset: offset,
		Source: dtype.Name(src),
		Target: dtype.Name(dst),
		target: dst,
		codes:  codesFor(dst),
	}, nil
}

func codesFor(dt *message.Datatype) fixedPointCodes {
	bits := dt.Size * 8
	if dt.Signed {
		minV := -int64(1) << (bits - 1)
		maxV := int64(uint64(1)<<(bits-1) - 1)
		return fixedPointCodes{
			signed: true,
			nan:    minV, posInf: maxV, neg: minV + 1,
			slo: minV + 2, shi: maxV - 1,
			lo: float64(minV + 2), hi: float64(maxV - 1),
		}
	}
	maxV := uint64(math.MaxUint64)
	if bits < 64 {
		maxV = uint64(1)<<bits - 1
	}
	return fixedPointCodes{
		unan: maxV, upos: maxV - 1, uneg: maxV - 2,
		ulo: 0, uhi: maxV - 3,
		lo: 0, hi: float64(maxV - 3),
	}
}

func (t *FixedPointTransform) encode(f float64) any {
	c := t.codes
	x := math.Round((f + t.Offset) * t.Scale)
	if c.signed {
		var i int64
		switch {
		case math.IsNaN(f):
			i = c.nan
		case math.IsInf(f, 1):
			i = c.posInf
		case math.IsInf(f, -1):
			i = c.neg
		case x <= c.lo:
			i = c.slo
		case x >= c.hi:
			i = c.shi
		default:
			i = int64(x)
		}
		v, _ := dtype.Convert(t.target, i)
		return v
	}

	var u uint64
	switch {
	case math.IsNaN(f):
		u = c.unan
	case math.IsInf(f, 1):
		u = c.upos
	case math.IsInf(f, -1):
		u = c.uneg
	case x <= c.lo:
		u = c.ulo
	case x >= c.hi:
		u = c.uhi
	default:
		u = uint64(x)
	}
	v, _ := dtype.Convert(t.target, u)
	return v
}

func (t *FixedPointTransform) decode(v reflect.Value) float64 {
	c := t.codes
	var x float64
	if c.signed {
		i := v.Int()
		switch i {
		case c.nan:
			return math.NaN()
		case c.posInf:
			return math.Inf(1)
		case c.neg:
			return math.Inf(-1)
		}
		x = float64(i)
	} else {
		u := v.Uint()
		switch u {
		case c.unan:
			return math.NaN()
		case c.upos:
			return math.Inf(1)
		case c.uneg:
			return math.Inf(-1)
		}
		x = float64(u)
	}
	return x/t.Scale - t.Offset
}

// Apply converts a float, or a slice of floats, into integer codes.
func (t *FixedPointTransform) Apply(v any) (any, error) {
	if t.target == nil {
		return nil, fmt.Errorf("fixed-point transform was not built with NewFixedPointTransform")
	}
	if !isSlice(v) {
		f, err := dtype.ToFloat64(v)
		if err != nil {
			return nil, err
		}
		return t.encode(f), nil
	}
	values, err := floatSlice(v)
	if err != nil {
		return nil, err
	}
	elem, err := dtype.GoType(t.target)
	if err != nil {
		return nil, err
	}
	out := reflect.MakeSlice(reflect.SliceOf(elem), len(values), len(values))
	for i, f := range values {
		out.Index(i).Set(reflect.ValueOf(t.encode(f)))
	}
	return out.Interface(), nil
}

// Inverse converts integer codes back into Source floats.
func (t *FixedPointTransform) Inverse(v any) (any, error) {
	if t.target == nil {
		return nil, fmt.Errorf("fixed-point transform was not built with NewFixedPointTransform")
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		if t.Source == "float32" {
			out := make([]float32, rv.Len())
			for i := range out {
				x, err := t.decodeAny(rv.Index(i))
				if err != nil {
					return nil, err
				}
				out[i] = float32(x)
			}
			return out, nil
		}
		out := make([]float64, rv.Len())
		for i := range out {
			x, err := t.decodeAny(rv.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	}
	x, err := t.decodeAny(rv)
	if err != nil {
		return nil, err
	}
	if t.Source == "float32" {
		return float32(x), nil
	}
	return x, nil
}

func (t *FixedPointTransform) decodeAny(v reflect.Value) (float64, error) {
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if !t.codes.signed {
			return float64(v.Int())/t.Scale - t.Offset, nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if t.codes.signed {
			return float64(v.Uint())/t.Scale - t.Offset, nil
		}
	default:
		return 0, fmt.Errorf("fixed-point code must be an integer, got %s", v.Type())
	}
	return t.decode(v), nil
}

// Attrs records scale, offset and source type.
func (t *FixedPointTransform) Attrs(col string) map[string]any {
	return map[string]any{
		col + SuffixTransformScale:  t.Scale,
		col + SuffixTransformOffset: t.Offset,
		col + SuffixTransformDtype:  t.Source,
	}
}

// ListToMaskTransform turns a list of indices into a boolean mask of
// Length elements with those indices set, for example the telescopes that
// took part in an event. Its inverse turns the mask back into indices.
type ListToMaskTransform struct {
	Length int
}

// Apply builds the mask.
func (t *ListToMaskTransform) Apply(v any) (any, error) {
	mask := make([]bool, t.Length)
	if v == nil {
		return mask, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected a list of indices, got %T", v)
	}
	for i := 0; i < rv.Len(); i++ {
		idx, err := dtype.ToInt64(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= int64(t.Length) {
			return nil, fmt.Errorf("index %d outside mask of length %d", idx, t.Length)
		}
		mask[idx] = true
	}
	return mask, nil
}

// Inverse returns the set indices of a mask.
func (t *ListToMaskTransform) Inverse(v any) (any, error) {
	mask, ok := v.([]bool)
	if !ok {
		return nil, fmt.Errorf("expected []bool, got %T", v)
	}
	var out []int
	for i, set := range mask {
		if set {
			out = append(out, i)
		}
	}
	return out, nil
}

// Attrs returns nil.
func (t *ListToMaskTransform) Attrs(string) map[string]any { return nil }

func isSlice(v any) bool {
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// floatSlice converts a slice of numbers to []float64.
func floatSlice(v any) ([]float64, error) {
	if f, ok := v.([]float64); ok {
		return f, nil
	}
	rv := reflect.ValueOf(v)
	out := make([]float64, rv.Len())
	for i := range out {
		f, err := dtype.ToFloat64(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}
