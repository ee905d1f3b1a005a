package tablefile

import (
	"fmt"
	"maps"
	"slices"

	"github.com/robert-malhotra/go-h5table/internal/object"
)

// Node is a group or a table.
type Node interface {
	// Path returns the absolute path of the node.
	Path() string
	// Name returns the last component of the path.
	Name() string
	// Attrs returns the node's header attributes.
	Attrs() *AttributeSet
	// File returns the file holding the node.
	File() *File
}

// node holds the state shared by groups and tables.
type node struct {
	file  *File
	path  string
	attrs *AttributeSet
}

func (n *node) Path() string         { return n.path }
func (n *node) Name() string         { return baseName(n.path) }
func (n *node) Attrs() *AttributeSet { return n.attrs }
func (n *node) File() *File          { return n.file }

// Group represents a group of tables and subgroups.
type Group struct {
	node
	children map[string]Node
}

func newGroup(f *File, path string) *Group {
	g := &Group{
		node:     node{file: f, path: path},
		children: make(map[string]Node),
	}
	g.attrs = newAttributeSet(&g.node)
	return g
}

// Members returns the names of the group's children in sorted order.
func (g *Group) Members() []string {
	return slices.Sorted(maps.Keys(g.children))
}

// Child returns the direct child called name.
func (g *Group) Child(name string) (Node, error) {
	child, ok := g.children[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, JoinPath(g.path, name))
	}
	return child, nil
}

// Group returns the group at a path relative to g.
func (g *Group) Group(relativePath string) (*Group, error) {
	return g.file.Group(JoinPath(g.path, relativePath))
}

// Table returns the table at a path relative to g.
func (g *Group) Table(relativePath string) (*Table, error) {
	return g.file.Table(JoinPath(g.path, relativePath))
}

// CreateGroup returns the group at a path relative to g, creating it and
// any missing intermediate groups. Existing groups are reused.
func (g *Group) CreateGroup(relativePath string) (*Group, error) {
	if err := g.file.checkWritable(); err != nil {
		return nil, err
	}

	parts := SplitPath(relativePath)
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: group name cannot be empty", ErrInvalidPath)
	}

	current := g
	for _, name := range parts {
		if err := validName(name); err != nil {
			return nil, err
		}
		if child, ok := current.children[name]; ok {
			next, ok := child.(*Group)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrNotGroup, child.Path())
			}
			current = next
			continue
		}

		path := JoinPath(current.path, name)
		if _, _, err := g.file.appendBlock(object.KindGroup, object.NewGroupHeader(path)); err != nil {
			return nil, fmt.Errorf("writing group %s: %w", path, err)
		}
		child := newGroup(g.file, path)
		g.file.register(current, child)
		current = child
	}

	return current, nil
}
