package dtype

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/robert-malhotra/go-h5table/internal/message"
)

// Predefined column datatypes.
var (
	Int8    = &message.Datatype{Class: message.ClassFixedPoint, Size: 1, Signed: true}
	Int16   = &message.Datatype{Class: message.ClassFixedPoint, Size: 2, Signed: true}
	Int32   = &message.Datatype{Class: message.ClassFixedPoint, Size: 4, Signed: true}
	Int64   = &message.Datatype{Class: message.ClassFixedPoint, Size: 8, Signed: true}
	Uint8   = &message.Datatype{Class: message.ClassFixedPoint, Size: 1}
	Uint16  = &message.Datatype{Class: message.ClassFixedPoint, Size: 2}
	Uint32  = &message.Datatype{Class: message.ClassFixedPoint, Size: 4}
	Uint64  = &message.Datatype{Class: message.ClassFixedPoint, Size: 8}
	Float32 = &message.Datatype{Class: message.ClassFloatPoint, Size: 4}
	Float64 = &message.Datatype{Class: message.ClassFloatPoint, Size: 8}
	Bool    = &message.Datatype{Class: message.ClassBitfield, Size: 1}
	JSON    = &message.Datatype{Class: message.ClassOpaque}
)

// String returns a fixed-width byte string datatype of n bytes.
func String(n int) *message.Datatype {
	return &message.Datatype{Class: message.ClassString, Size: uint32(n)}
}

// Name returns the canonical name of a scalar datatype ("int16", "float32",
// "bool", "S12", ...).
func Name(dt *message.Datatype) string {
	if dt == nil {
		return "<nil>"
	}
	switch dt.Class {
	case message.ClassFixedPoint:
		if dt.Signed {
			return fmt.Sprintf("int%d", dt.Size*8)
		}
		return fmt.Sprintf("uint%d", dt.Size*8)
	case message.ClassFloatPoint:
		return fmt.Sprintf("float%d", dt.Size*8)
	case message.ClassBitfield:
		return "bool"
	case message.ClassString:
		return fmt.Sprintf("S%d", dt.Size)
	case message.ClassOpaque:
		return "json"
	default:
		return dt.Class.String()
	}
}

// ParseName is the inverse of Name. It also accepts the aliases "int"
// (int64), "float" and "double" (float64).
func ParseName(name string) (*message.Datatype, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "int8":
		return Int8, nil
	case "int16":
		return Int16, nil
	case "int32":
		return Int32, nil
	case "int64", "int":
		return Int64, nil
	case "uint8":
		return Uint8, nil
	case "uint16":
		return Uint16, nil
	case "uint32":
		return Uint32, nil
	case "uint64", "uint":
		return Uint64, nil
	case "float32":
		return Float32, nil
	case "float64", "float", "double":
		return Float64, nil
	case "bool":
		return Bool, nil
	case "json":
		return JSON, nil
	}
	if rest, ok := strings.CutPrefix(name, "S"); ok {
		n, err := strconv.Atoi(rest)
		if err == nil && n > 0 {
			return String(n), nil
		}
	}
	return nil, fmt.Errorf("unknown datatype name %q", name)
}

// Equal reports whether two scalar datatypes describe the same storage.
func Equal(a, b *message.Datatype) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Class == b.Class && a.Size == b.Size && a.Signed == b.Signed
}

// GoType returns the Go type a decoded element of dt has.
// Strings decode to []byte, matching fixed-width storage.
func GoType(dt *message.Datatype) (reflect.Type, error) {
	if dt == nil {
		return nil, fmt.Errorf("nil datatype")
	}
	switch dt.Class {
	case message.ClassFixedPoint:
		return goTypeFixedPoint(dt)
	case message.ClassFloatPoint:
		switch dt.Size {
		case 4:
			return reflect.TypeOf(float32(0)), nil
		case 8:
			return reflect.TypeOf(float64(0)), nil
		}
		return nil, fmt.Errorf("unsupported float size: %d", dt.Size)
	case message.ClassBitfield:
		return reflect.TypeOf(false), nil
	case message.ClassString:
		return reflect.TypeOf([]byte(nil)), nil
	default:
		return nil, fmt.Errorf("datatype class %s has no element type", dt.Class)
	}
}

func goTypeFixedPoint(dt *message.Datatype) (reflect.Type, error) {
	switch dt.Size {
	case 1:
		if dt.Signed {
			return reflect.TypeOf(int8(0)), nil
		}
		return reflect.TypeOf(uint8(0)), nil
	case 2:
		if dt.Signed {
			return reflect.TypeOf(int16(0)), nil
		}
		return reflect.TypeOf(uint16(0)), nil
	case 4:
		if dt.Signed {
			return reflect.TypeOf(int32(0)), nil
		}
		return reflect.TypeOf(uint32(0)), nil
	case 8:
		if dt.Signed {
			return reflect.TypeOf(int64(0)), nil
		}
		return reflect.TypeOf(uint64(0)), nil
	default:
		return nil, fmt.Errorf("unsupported fixed-point size: %d", dt.Size)
	}
}

// FromKind maps a Go scalar kind onto its column datatype. Platform-sized
// int and uint are stored as 64-bit.
func FromKind(k reflect.Kind) (*message.Datatype, bool) {
	switch k {
	case reflect.Int8:
		return Int8, true
	case reflect.Int16:
		return Int16, true
	case reflect.Int32:
		return Int32, true
	case reflect.Int64, reflect.Int:
		return Int64, true
	case reflect.Uint8:
		return Uint8, true
	case reflect.Uint16:
		return Uint16, true
	case reflect.Uint32:
		return Uint32, true
	case reflect.Uint64, reflect.Uint:
		return Uint64, true
	case reflect.Float32:
		return Float32, true
	case reflect.Float64:
		return Float64, true
	case reflect.Bool:
		return Bool, true
	default:
		return nil, false
	}
}

// IsNumeric returns true if the datatype is an integer or float type.
func IsNumeric(dt *message.Datatype) bool {
	return dt.Class == message.ClassFixedPoint || dt.Class == message.ClassFloatPoint
}

// IsInteger returns true for fixed-point datatypes.
func IsInteger(dt *message.Datatype) bool {
	return dt.Class == message.ClassFixedPoint
}
