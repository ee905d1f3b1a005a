package dtype

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	"github.com/robert-malhotra/go-h5table/internal/message"
)

// order is the byte order of all column data.
var order = binary.LittleEndian

// Encode writes n elements of value into buf, which must hold n*dt.Size bytes.
// For n == 1 value may be a scalar; otherwise it must be a slice or array of
// exactly n elements.
func Encode(dt *message.Datatype, value any, n int, buf []byte) error {
	if dt == nil {
		return fmt.Errorf("nil datatype")
	}
	size := int(dt.Size)
	if len(buf) != n*size {
		return fmt.Errorf("buffer of %d bytes for %d elements of %s", len(buf), n, Name(dt))
	}

	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		v = v.Elem()
	}
	isSeq := (v.Kind() == reflect.Slice || v.Kind() == reflect.Array) && !isByteString(dt, v)
	if !isSeq {
		if n != 1 {
			return fmt.Errorf("scalar %T for column of %d elements", value, n)
		}
		return encodeElement(dt, v, buf)
	}
	if v.Len() != n {
		return fmt.Errorf("shape mismatch: got %d elements, column holds %d", v.Len(), n)
	}
	for i := 0; i < n; i++ {
		if err := encodeElement(dt, v.Index(i), buf[i*size:(i+1)*size]); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// isByteString reports whether v is a []byte that should fill one string element.
func isByteString(dt *message.Datatype, v reflect.Value) bool {
	return dt.Class == message.ClassString && v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8
}

func encodeElement(dt *message.Datatype, v reflect.Value, buf []byte) error {
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if !v.IsValid() {
		return fmt.Errorf("nil value for %s column", Name(dt))
	}
	switch dt.Class {
	case message.ClassFixedPoint:
		return encodeFixedPoint(dt, v, buf)
	case message.ClassFloatPoint:
		f, err := floatOf(v)
		if err != nil {
			return err
		}
		if dt.Size == 4 {
			order.PutUint32(buf, math.Float32bits(float32(f)))
		} else {
			order.PutUint64(buf, math.Float64bits(f))
		}
		return nil
	case message.ClassBitfield:
		if v.Kind() != reflect.Bool {
			return fmt.Errorf("cannot store %s in bool column", v.Type())
		}
		buf[0] = 0
		if v.Bool() {
			buf[0] = 1
		}
		return nil
	case message.ClassString:
		var raw []byte
		switch {
		case v.Kind() == reflect.String:
			raw = []byte(v.String())
		case v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8:
			raw = v.Bytes()
		default:
			return fmt.Errorf("cannot store %s in string column", v.Type())
		}
		if len(raw) > len(buf) {
			return fmt.Errorf("string of %d bytes exceeds column width %d", len(raw), len(buf))
		}
		n := copy(buf, raw)
		clear(buf[n:])
		return nil
	default:
		return fmt.Errorf("unsupported datatype class for encoding: %s", dt.Class)
	}
}

func encodeFixedPoint(dt *message.Datatype, v reflect.Value, buf []byte) error {
	var bits uint64
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := v.Int()
		if !fitsSigned(dt, i) {
			return fmt.Errorf("value %d overflows %s", i, Name(dt))
		}
		bits = uint64(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if !fitsUnsigned(dt, u) {
			return fmt.Errorf("value %d overflows %s", u, Name(dt))
		}
		bits = u
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
			return fmt.Errorf("cannot store non-integral %v in %s column", f, Name(dt))
		}
		if dt.Signed || f < 0 {
			if !fitsSigned(dt, int64(f)) {
				return fmt.Errorf("value %v overflows %s", f, Name(dt))
			}
			bits = uint64(int64(f))
		} else {
			if !fitsUnsigned(dt, uint64(f)) {
				return fmt.Errorf("value %v overflows %s", f, Name(dt))
			}
			bits = uint64(f)
		}
	case reflect.Bool:
		if v.Bool() {
			bits = 1
		}
	default:
		return fmt.Errorf("cannot store %s in %s column", v.Type(), Name(dt))
	}

	switch dt.Size {
	case 1:
		buf[0] = uint8(bits)
	case 2:
		order.PutUint16(buf, uint16(bits))
	case 4:
		order.PutUint32(buf, uint32(bits))
	case 8:
		order.PutUint64(buf, bits)
	default:
		return fmt.Errorf("unsupported fixed-point size: %d", dt.Size)
	}
	return nil
}

func fitsSigned(dt *message.Datatype, i int64) bool {
	bits := dt.Size * 8
	if !dt.Signed {
		return i >= 0 && (bits == 64 || uint64(i) < 1<<bits)
	}
	if bits == 64 {
		return true
	}
	limit := int64(1) << (bits - 1)
	return i >= -limit && i < limit
}

func fitsUnsigned(dt *message.Datatype, u uint64) bool {
	bits := dt.Size * 8
	if dt.Signed {
		return u < 1<<(bits-1)
	}
	return bits == 64 || u < 1<<bits
}

func floatOf(v reflect.Value) (float64, error) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), nil
	default:
		return 0, fmt.Errorf("cannot store %s in float column", v.Type())
	}
}
