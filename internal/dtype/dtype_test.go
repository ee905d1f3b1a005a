package dtype

import (
	"math"
	"reflect"
	"testing"
)

func TestNameRoundTrip(t *testing.T) {
	for _, name := range []string{"int8", "int16", "int32", "int64", "uint8", "uint16", "uint32", "uint64", "float32", "float64", "bool", "S12"} {
		dt, err := ParseName(name)
		if err != nil {
			t.Fatalf("ParseName(%q) failed: %v", name, err)
		}
		if got := Name(dt); got != name {
			t.Errorf("Name(ParseName(%q)) = %q", name, got)
		}
	}

	if dt, _ := ParseName("float"); !Equal(dt, Float64) {
		t.Error("float should alias float64")
	}
	if _, err := ParseName("complex128"); err == nil {
		t.Error("expected error for unknown name")
	}
}

func TestEncodeDecodeScalars(t *testing.T) {
	tests := []struct {
		name  string
		dt    string
		value any
		want  any
	}{
		{"int16", "int16", int16(-1234), int16(-1234)},
		{"int widened", "int64", 42, int64(42)},
		{"uint8", "uint8", uint8(200), uint8(200)},
		{"float32", "float32", float32(1.5), float32(1.5)},
		{"float64 from int", "float64", int32(7), float64(7)},
		{"bool", "bool", true, true},
		{"string", "S8", "TeV", []byte("TeV")},
		{"integral float into int", "int32", 3.0, int32(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt, err := ParseName(tt.dt)
			if err != nil {
				t.Fatal(err)
			}
			buf := make([]byte, dt.Size)
			if err := Encode(dt, tt.value, 1, buf); err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			got, err := Decode(dt, buf, 1, true)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestEncodeRejects(t *testing.T) {
	tests := []struct {
		name  string
		dt    string
		value any
	}{
		{"overflow", "int8", 300},
		{"negative into unsigned", "uint16", -1},
		{"fractional into int", "int32", 1.5},
		{"string too long", "S2", "abc"},
		{"string into float", "float64", "x"},
		{"nil", "float64", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt, _ := ParseName(tt.dt)
			if err := Encode(dt, tt.value, 1, make([]byte, dt.Size)); err == nil {
				t.Errorf("expected error encoding %#v as %s", tt.value, tt.dt)
			}
		})
	}
}

func TestEncodeDecodeArray(t *testing.T) {
	values := []float64{1, math.Inf(1), -2.5}
	buf := make([]byte, 3*Float64.Size)
	if err := Encode(Float64, values, 3, buf); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, err := Decode(Float64, buf, 3, false)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !reflect.DeepEqual(got, values) {
		t.Errorf("got %v, want %v", got, values)
	}

	if err := Encode(Float64, []float64{1, 2}, 3, buf); err == nil {
		t.Error("expected shape mismatch error")
	}

	ints := [4]int16{1, 2, 3, 4}
	ibuf := make([]byte, 4*Int16.Size)
	if err := Encode(Int16, ints, 4, ibuf); err != nil {
		t.Fatalf("Encode array failed: %v", err)
	}
	back, _ := Decode(Int16, ibuf, 4, false)
	if !reflect.DeepEqual(back, []int16{1, 2, 3, 4}) {
		t.Errorf("got %v", back)
	}
}

func TestConvert(t *testing.T) {
	v, err := Convert(Float32, 0.5)
	if err != nil || v != float32(0.5) {
		t.Errorf("Convert float32: got %v, %v", v, err)
	}
	v, err = Convert(Int16, int64(-7))
	if err != nil || v != int16(-7) {
		t.Errorf("Convert int16: got %v, %v", v, err)
	}
	if _, err := Convert(Uint8, 256); err == nil {
		t.Error("expected overflow error")
	}
}

func TestToInt64(t *testing.T) {
	if v, err := ToInt64(uint16(9)); err != nil || v != 9 {
		t.Errorf("got %v, %v", v, err)
	}
	if _, err := ToInt64(2.5); err == nil {
		t.Error("expected error for fractional value")
	}
	if _, err := ToInt64("1"); err == nil {
		t.Error("expected error for string")
	}
}
