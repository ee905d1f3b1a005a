package tablefile

import (
	"errors"
	"reflect"
	"testing"
)

func TestAttributeRoundTrip(t *testing.T) {
	type calib struct {
		Gain  float64 `json:"gain"`
		Pixel int     `json:"pixel"`
	}

	tests := []struct {
		name  string
		value any
		want  any
	}{
		{"str", "TeV", "TeV"},
		{"empty", "", ""},
		{"int", 42, int64(42)},
		{"int16", int16(-7), int64(-7)},
		{"uint", uint32(7), uint64(7)},
		{"float", 1.5, 1.5},
		{"float32", float32(0.25), 0.25},
		{"bool", true, true},
		{"ints", []int{1, 2, 3}, []int64{1, 2, 3}},
		{"floats", []float32{0.5, 1}, []float64{0.5, 1}},
		{"strings", []string{"a", "bcd", ""}, []string{"a", "bcd", ""}},
		{"bools", []bool{true, false}, []bool{true, false}},
		{"map", map[string]any{"a": 1.0, "b": "x"}, map[string]any{"a": 1.0, "b": "x"}},
		{"struct", calib{Gain: 2.5, Pixel: 3}, map[string]any{"gain": 2.5, "pixel": 3.0}},
		{"nil", nil, nil},
	}

	f, path := newTestFile(t)
	tbl, err := f.Root().CreateTable("events", eventColumns)
	if err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	for _, tt := range tests {
		if err := tbl.Attrs().Set(tt.name, tt.value); err != nil {
			t.Fatalf("Set(%s) failed: %v", tt.name, err)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err = Open(path, ModeRead)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	tbl, _ = f.Table("/events")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tbl.Attrs().Get(tt.name)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}

	if tbl.Attrs().Len() != len(tests) {
		t.Errorf("expected %d attributes, got %d", len(tests), tbl.Attrs().Len())
	}
}

func TestAttributeLastWriteWins(t *testing.T) {
	f, path := newTestFile(t)
	root := f.Root()
	root.Attrs().Set("version", "1.0")
	root.Attrs().Set("version", "2.0")
	f.Close()

	f, err := Open(path, ModeRead)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	if v, _ := f.Root().Attrs().Get("version"); v != "2.0" {
		t.Errorf("expected last value, got %v", v)
	}
}

func TestAttributeAccessors(t *testing.T) {
	f, _ := newTestFile(t)
	defer f.Close()
	attrs := f.Root().Attrs()

	attrs.Set("b", 1)
	attrs.Set("a", "x")

	if !reflect.DeepEqual(attrs.Names(), []string{"a", "b"}) {
		t.Errorf("Names: got %v", attrs.Names())
	}
	if !attrs.Has("a") || attrs.Has("c") {
		t.Error("Has returned the wrong answer")
	}
	if got := attrs.GetDefault("c", "fallback"); got != "fallback" {
		t.Errorf("GetDefault: got %v", got)
	}
	if got := attrs.GetDefault("b", 0); got != int64(1) {
		t.Errorf("GetDefault: got %v", got)
	}
	if _, err := attrs.Get("c"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if name, shape, ok := attrs.Dtype("a"); !ok || name != "S1" || shape != nil {
		t.Errorf("Dtype: got %q %v %v", name, shape, ok)
	}
	if err := attrs.Set("", 1); err == nil {
		t.Error("expected error for empty attribute name")
	}
}
