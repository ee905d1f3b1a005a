package tableio

import (
	"fmt"
	"strings"

	"github.com/robert-malhotra/go-h5table/astrotime"
	"github.com/robert-malhotra/go-h5table/container"
	"github.com/robert-malhotra/go-h5table/internal/dtype"
	"github.com/robert-malhotra/go-h5table/tablefile"
	"github.com/robert-malhotra/go-h5table/units"
)

// Header attribute suffixes.
const (
	SuffixDesc            = "_DESC"
	SuffixEnum            = "_ENUM"
	SuffixTimeFormat      = "_TIME_FORMAT"
	SuffixTimeScale       = "_TIME_SCALE"
	SuffixTransform       = "_TRANSFORM"
	SuffixTransformScale  = "_TRANSFORM_SCALE"
	SuffixTransformOffset = "_TRANSFORM_OFFSET"
	SuffixTransformDtype  = "_TRANSFORM_DTYPE"
	SuffixUnit            = "_UNIT"
	SuffixMaxLen          = "_MAXLEN"
)

// VersionAttr is the header attribute holding the writer's format version.
const VersionAttr = "TABLEIO_VERSION"

// Version is the format version written into every table header.
const Version = "1.0"

// knownSuffixes is ordered longest first so stripping is unambiguous.
var knownSuffixes = []string{
	SuffixTransformOffset,
	SuffixTransformScale,
	SuffixTransformDtype,
	SuffixTimeFormat,
	SuffixTimeScale,
	SuffixTransform,
	SuffixMaxLen,
	SuffixDesc,
	SuffixEnum,
	SuffixUnit,
}

// stripSuffix splits an attribute name into column name and known suffix.
func stripSuffix(attr string) (col, suffix string, ok bool) {
	for _, s := range knownSuffixes {
		if c, found := strings.CutSuffix(attr, s); found && c != "" {
			return c, s, true
		}
	}
	return "", "", false
}

// attrGetter reads a header attribute.
type attrGetter func(name string) (any, bool)

// suffixRule rebuilds a column transform when the attribute col+suffix is
// present.
type suffixRule struct {
	suffix string
	build  func(col tablefile.Column, get attrGetter) (Transform, error)
}

// suffixRules are evaluated in order for every column; the first rule whose
// attribute exists decides the column's transform.
var suffixRules = []suffixRule{
	{SuffixUnit, buildQuantity},
	{SuffixEnum, buildEnum},
	{SuffixTimeScale, buildTime},
	{SuffixTransformScale, buildFixedPoint},
	{SuffixTransform, buildString},
}

func attrsOf(set *tablefile.AttributeSet) attrGetter {
	return func(name string) (any, bool) {
		v, err := set.Get(name)
		if err != nil {
			return nil, false
		}
		return v, true
	}
}

// rebuildTransform returns the transform recorded for col, or nil when
// the column was stored as is.
func rebuildTransform(col tablefile.Column, get attrGetter) (Transform, error) {
	for _, rule := range suffixRules {
		if _, ok := get(col.Name + rule.suffix); !ok {
			continue
		}
		tr, err := rule.build(col, get)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		if tr != nil {
			return tr, nil
		}
	}
	return nil, nil
}

func stringAttr(get attrGetter, name string) (string, error) {
	v, _ := get(name)
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("attribute %s is %T, not a string", name, v)
	}
	return s, nil
}

func buildQuantity(col tablefile.Column, get attrGetter) (Transform, error) {
	name, err := stringAttr(get, col.Name+SuffixUnit)
	if err != nil {
		return nil, err
	}
	u, err := units.Parse(name)
	if err != nil {
		return nil, err
	}
	return &QuantityTransform{Unit: u}, nil
}

func buildEnum(col tablefile.Column, get attrGetter) (Transform, error) {
	name, err := stringAttr(get, col.Name+SuffixEnum)
	if err != nil {
		return nil, err
	}
	tr := &EnumTransform{Name: name, Dtype: col.Dtype}
	if e, ok := container.LookupEnum(name); ok {
		tr.Enum = e
	}
	return tr, nil
}

func buildTime(col tablefile.Column, get attrGetter) (Transform, error) {
	scaleName, err := stringAttr(get, col.Name+SuffixTimeScale)
	if err != nil {
		return nil, err
	}
	scale, err := astrotime.ParseScale(scaleName)
	if err != nil {
		return nil, err
	}
	format := astrotime.MJD
	if _, ok := get(col.Name + SuffixTimeFormat); ok {
		name, err := stringAttr(get, col.Name+SuffixTimeFormat)
		if err != nil {
			return nil, err
		}
		if format, err = astrotime.ParseFormat(name); err != nil {
			return nil, err
		}
	}
	return &TimeTransform{Scale: scale, Format: format}, nil
}

func buildFixedPoint(col tablefile.Column, get attrGetter) (Transform, error) {
	raw, _ := get(col.Name + SuffixTransformScale)
	scale, err := dtype.ToFloat64(raw)
	if err != nil {
		return nil, fmt.Errorf("attribute %s: %w", col.Name+SuffixTransformScale, err)
	}
	offset := 0.0
	if raw, ok := get(col.Name + SuffixTransformOffset); ok {
		if offset, err = dtype.ToFloat64(raw); err != nil {
			return nil, fmt.Errorf("attribute %s: %w", col.Name+SuffixTransformOffset, err)
		}
	}
	source := "float32"
	if _, ok := get(col.Name + SuffixTransformDtype); ok {
		if source, err = stringAttr(get, col.Name+SuffixTransformDtype); err != nil {
			return nil, err
		}
	}
	return NewFixedPointTransform(scale, offset, source, col.Dtype)
}

func buildString(col tablefile.Column, get attrGetter) (Transform, error) {
	kind, err := stringAttr(get, col.Name+SuffixTransform)
	if err != nil || kind != "string" {
		// Other transform kinds are left to the caller.
		return nil, nil
	}
	raw, ok := get(col.Name + SuffixMaxLen)
	if !ok {
		return nil, fmt.Errorf("string column without %s attribute", col.Name+SuffixMaxLen)
	}
	n, err := dtype.ToInt64(raw)
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("attribute %s: invalid length %v", col.Name+SuffixMaxLen, raw)
	}
	return &StringTransform{MaxLen: int(n)}, nil
}
