package container

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"
)

// ErrUnknownMember is returned when an enum value or name has no member.
var ErrUnknownMember = errors.New("unknown enum member")

// EnumMember is one named integer code of an enumeration.
type EnumMember struct {
	Name  string
	Value int64
}

// EnumType is an enumeration of named integer codes.
type EnumType struct {
	name    string
	members []EnumMember
	byName  map[string]int
	byValue map[int64]int
	dtype   string
}

// NewEnumType declares an enumeration. Member names and values must be
// unique.
func NewEnumType(name string, members ...EnumMember) (*EnumType, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: enum without a name", ErrInvalidType)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: enum %s has no members", ErrInvalidType, name)
	}
	e := &EnumType{
		name:    name,
		members: append([]EnumMember(nil), members...),
		byName:  make(map[string]int, len(members)),
		byValue: make(map[int64]int, len(members)),
	}

	lo, hi := int64(math.MaxInt64), int64(math.MinInt64)
	for i, m := range e.members {
		if _, dup := e.byName[m.Name]; dup || m.Name == "" {
			return nil, fmt.Errorf("%w: enum %s: bad or duplicate member name %q", ErrInvalidType, name, m.Name)
		}
		if _, dup := e.byValue[m.Value]; dup {
			return nil, fmt.Errorf("%w: enum %s: duplicate value %d", ErrInvalidType, name, m.Value)
		}
		e.byName[m.Name] = i
		e.byValue[m.Value] = i
		lo, hi = min(lo, m.Value), max(hi, m.Value)
	}
	e.dtype = smallestSigned(lo, hi)
	return e, nil
}

// MustEnumType is like NewEnumType but panics on error.
func MustEnumType(name string, members ...EnumMember) *EnumType {
	e, err := NewEnumType(name, members...)
	if err != nil {
		panic(err)
	}
	return e
}

func smallestSigned(lo, hi int64) string {
	switch {
	case lo >= math.MinInt8 && hi <= math.MaxInt8:
		return "int8"
	case lo >= math.MinInt16 && hi <= math.MaxInt16:
		return "int16"
	case lo >= math.MinInt32 && hi <= math.MaxInt32:
		return "int32"
	}
	return "int64"
}

// Name returns the enumeration name.
func (e *EnumType) Name() string { return e.name }

// Dtype returns the smallest signed integer datatype name holding every
// member value.
func (e *EnumType) Dtype() string { return e.dtype }

// Members returns the members in declaration order.
func (e *EnumType) Members() []EnumMember {
	return append([]EnumMember(nil), e.members...)
}

// Member returns the member called name.
func (e *EnumType) Member(name string) (Enum, error) {
	i, ok := e.byName[name]
	if !ok {
		return Enum{}, fmt.Errorf("%w: %s has no member %q", ErrUnknownMember, e.name, name)
	}
	return Enum{typ: e, idx: i}, nil
}

// MustMember is like Member but panics on error.
func (e *EnumType) MustMember(name string) Enum {
	m, err := e.Member(name)
	if err != nil {
		panic(err)
	}
	return m
}

// FromValue returns the member with integer code v.
func (e *EnumType) FromValue(v int64) (Enum, error) {
	i, ok := e.byValue[v]
	if !ok {
		return Enum{}, fmt.Errorf("%w: %s has no value %d", ErrUnknownMember, e.name, v)
	}
	return Enum{typ: e, idx: i}, nil
}

func (e *EnumType) String() string { return e.name }

// Enum is a member of an EnumType. The zero Enum is not a member of any
// enumeration.
type Enum struct {
	typ *EnumType
	idx int
}

// Type returns the member's enumeration.
func (m Enum) Type() *EnumType { return m.typ }

// Name returns the member name.
func (m Enum) Name() string {
	if m.typ == nil {
		return ""
	}
	return m.typ.members[m.idx].Name
}

// Value returns the member's integer code.
func (m Enum) Value() int64 {
	if m.typ == nil {
		return 0
	}
	return m.typ.members[m.idx].Value
}

// IsZero reports whether m is the zero Enum.
func (m Enum) IsZero() bool { return m.typ == nil }

// String formats m as Type.Member.
func (m Enum) String() string {
	if m.typ == nil {
		return "<invalid enum>"
	}
	return m.typ.name + "." + m.Name()
}

var (
	enumMu   sync.RWMutex
	enumRegs = map[string]*EnumType{}
)

// RegisterEnum makes e resolvable by name with LookupEnum. Registering a
// different enumeration under a taken name is an error; registering the
// same one again is not.
func RegisterEnum(e *EnumType) error {
	enumMu.Lock()
	defer enumMu.Unlock()
	if old, ok := enumRegs[e.name]; ok && old != e {
		return fmt.Errorf("%w: enum %s is already registered", ErrInvalidType, e.name)
	}
	enumRegs[e.name] = e
	return nil
}

// LookupEnum returns the registered enumeration called name.
func LookupEnum(name string) (*EnumType, bool) {
	enumMu.RLock()
	defer enumMu.RUnlock()
	e, ok := enumRegs[name]
	return e, ok
}

// RegisteredEnums returns the names of all registered enumerations, sorted.
func RegisteredEnums() []string {
	enumMu.RLock()
	defer enumMu.RUnlock()
	return slices.Sorted(maps.Keys(enumRegs))
}
