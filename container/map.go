package container

import (
	"maps"
	"slices"
)

// Map is a keyed collection of containers of one type, such as per-telescope
// data keyed by telescope id. Missing entries are created on first access.
type Map struct {
	typ     *Type
	entries map[int]*Container
}

// NewMap returns an empty map of containers of type t.
func NewMap(t *Type) *Map {
	return &Map{typ: t, entries: make(map[int]*Container)}
}

// MapOf returns a Field default that creates an empty Map of t.
func MapOf(t *Type) func() any {
	return func() any { return NewMap(t) }
}

// Of returns a Field default that creates a new container of t.
func Of(t *Type) func() any {
	return func() any { return t.New() }
}

// Type returns the element type.
func (m *Map) Type() *Type { return m.typ }

// Get returns the container stored under key, creating it when absent.
func (m *Map) Get(key int) *Container {
	c, ok := m.entries[key]
	if !ok {
		c = m.typ.New()
		m.entries[key] = c
	}
	return c
}

// Lookup returns the container stored under key without creating it.
func (m *Map) Lookup(key int) (*Container, bool) {
	c, ok := m.entries[key]
	return c, ok
}

// Delete removes key.
func (m *Map) Delete(key int) { delete(m.entries, key) }

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.entries) }

// Keys returns the keys in ascending order.
func (m *Map) Keys() []int {
	return slices.Sorted(maps.Keys(m.entries))
}

func (m *Map) asMap() map[int]any {
	out := make(map[int]any, len(m.entries))
	for k, c := range m.entries {
		out[k] = c.Map()
	}
	return out
}
