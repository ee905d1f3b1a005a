package tablefile

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseAttrPath(t *testing.T) {
	tests := []struct {
		path     string
		wantNode string
		wantAttr string
		wantErr  bool
	}{
		{"/@root_attr", "/", "root_attr", false},
		{"/events@energy_UNIT", "/events", "energy_UNIT", false},
		{"/dl1/events@attr", "/dl1/events", "attr", false},
		{"events@attr", "/events", "attr", false},

		// Empty path, no separator, empty attribute name.
		{"", "", "", true},
		{"/path/no/at", "", "", true},
		{"/path@", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			n, attr, err := ParseAttrPath(tt.path)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPath) {
					t.Errorf("expected ErrInvalidPath for %q, got %v", tt.path, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for %q: %v", tt.path, err)
			}
			if n != tt.wantNode {
				t.Errorf("node path: got %q, want %q", n, tt.wantNode)
			}
			if attr != tt.wantAttr {
				t.Errorf("attr name: got %q, want %q", attr, tt.wantAttr)
			}
		})
	}
}

func TestJoinAttrPath(t *testing.T) {
	if got := JoinAttrPath("/", "attr"); got != "/@attr" {
		t.Errorf("got %q", got)
	}
	if got := JoinAttrPath("/dl1/events", "energy_UNIT"); got != "/dl1/events@energy_UNIT" {
		t.Errorf("got %q", got)
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"/", []string{}},
		{"/foo", []string{"foo"}},
		{"/foo/bar", []string{"foo", "bar"}},
		{"foo//bar/", []string{"foo", "bar"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := SplitPath(tt.path)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCleanAndJoinPath(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{CleanPath(""), "/"},
		{CleanPath("a/b/"), "/a/b"},
		{CleanPath("//a"), "/a"},
		{JoinPath("/", "events"), "/events"},
		{JoinPath("/dl1", "events"), "/dl1/events"},
		{JoinPath("/dl1", "a/b"), "/dl1/a/b"},
		{parentPath("/dl1/events"), "/dl1"},
		{parentPath("/events"), "/"},
		{baseName("/dl1/events"), "events"},
		{baseName("/"), "/"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestValidName(t *testing.T) {
	for _, name := range []string{"", ".", "..", "a/b", "a@b"} {
		if err := validName(name); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("expected ErrInvalidPath for %q, got %v", name, err)
		}
	}
	if err := validName("events"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
