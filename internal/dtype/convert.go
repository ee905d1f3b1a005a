package dtype

import (
	"bytes"
	"fmt"
	"math"
	"reflect"

	"github.com/robert-malhotra/go-h5table/internal/message"
)

// Decode converts n elements of raw column data to Go values. A scalar
// column (n == 1 and scalar true) yields a single value; otherwise the
// result is a slice such as []float32. String elements are returned as
// []byte with trailing NUL padding removed.
func Decode(dt *message.Datatype, data []byte, n int, scalar bool) (any, error) {
	size := int(dt.Size)
	if len(data) != n*size {
		return nil, fmt.Errorf("have %d bytes for %d elements of %s", len(data), n, Name(dt))
	}
	if scalar {
		return decodeElement(dt, data)
	}

	elemType, err := GoType(dt)
	if err != nil {
		return nil, err
	}
	out := reflect.MakeSlice(reflect.SliceOf(elemType), n, n)
	for i := 0; i < n; i++ {
		v, err := decodeElement(dt, data[i*size:(i+1)*size])
		if err != nil {
			return nil, err
		}
		out.Index(i).Set(reflect.ValueOf(v))
	}
	return out.Interface(), nil
}

func decodeElement(dt *message.Datatype, b []byte) (any, error) {
	switch dt.Class {
	case message.ClassFixedPoint:
		switch dt.Size {
		case 1:
			if dt.Signed {
				return int8(b[0]), nil
			}
			return b[0], nil
		case 2:
			if dt.Signed {
				return int16(order.Uint16(b)), nil
			}
			return order.Uint16(b), nil
		case 4:
			if dt.Signed {
				return int32(order.Uint32(b)), nil
			}
			return order.Uint32(b), nil
		case 8:
			if dt.Signed {
				return int64(order.Uint64(b)), nil
			}
			return order.Uint64(b), nil
		}
		return nil, fmt.Errorf("unsupported fixed-point size: %d", dt.Size)
	case message.ClassFloatPoint:
		if dt.Size == 4 {
			return math.Float32frombits(order.Uint32(b)), nil
		}
		return math.Float64frombits(order.Uint64(b)), nil
	case message.ClassBitfield:
		return b[0] != 0, nil
	case message.ClassString:
		end := len(b)
		if i := bytes.IndexByte(b, 0); i >= 0 {
			end = i
		}
		return bytes.Clone(b[:end]), nil
	default:
		return nil, fmt.Errorf("unsupported datatype class for decoding: %s", dt.Class)
	}
}

// ToFloat64 converts any Go numeric scalar to float64.
func ToFloat64(v any) (float64, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return 0, fmt.Errorf("nil is not a number")
	}
	return floatOf(rv)
}

// ToInt64 converts any Go integer scalar to int64. Floats are accepted when
// integral.
func ToInt64(v any) (int64, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, fmt.Errorf("value %v is not an integer", f)
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("%T is not an integer", v)
	}
}

// Convert casts a numeric value to the Go type of dt, for example float64
// to float32 or int64 to int16. Values that do not fit are an error.
func Convert(dt *message.Datatype, v any) (any, error) {
	if !IsNumeric(dt) {
		return nil, fmt.Errorf("cannot convert to %s", Name(dt))
	}
	buf := make([]byte, dt.Size)
	if err := encodeElement(dt, reflect.ValueOf(v), buf); err != nil {
		return nil, err
	}
	return decodeElement(dt, buf)
}
