package tablefile

import (
	"errors"
)

// WalkFunc is called for each node during traversal.
// path is the full path to the node.
// n is either *Group or *Table.
// Return nil to continue walking, ErrStopWalk to stop without an error, or
// any other error to stop and return it.
type WalkFunc func(path string, n Node) error

// Walk traverses all nodes (groups and tables) in the hierarchy starting
// from g, parents before children and children in name order. The callback
// is called for the starting group too.
//
// Example:
//
//	tablefile.Walk(f.Root(), func(path string, n tablefile.Node) error {
//	    switch t := n.(type) {
//	    case *tablefile.Group:
//	        fmt.Println("Group:", path)
//	    case *tablefile.Table:
//	        fmt.Println("Table:", path, "rows:", t.Len())
//	    }
//	    return nil
//	})
func Walk(g *Group, fn WalkFunc) error {
	if g.file.closed {
		return ErrClosed
	}
	err := walkGroup(g, fn)
	if errors.Is(err, ErrStopWalk) {
		return nil
	}
	return err
}

// walkGroup recursively walks a group and its children.
func walkGroup(g *Group, fn WalkFunc) error {
	if err := fn(g.Path(), g); err != nil {
		return err
	}

	for _, name := range g.Members() {
		switch child := g.children[name].(type) {
		case *Group:
			if err := walkGroup(child, fn); err != nil {
				return err
			}
		case *Table:
			if err := fn(child.Path(), child); err != nil {
				return err
			}
		}
	}

	return nil
}

// AttrInfo contains information about an attribute during walking.
type AttrInfo struct {
	// Path is the full attribute path (e.g., "/dl1/events@energy_UNIT")
	Path string

	// NodePath is the path to the node holding this attribute
	NodePath string

	// NodeType is "group" or "table"
	NodeType string

	// Name is the attribute name
	Name string

	// Value contains the decoded attribute value (nil on read error)
	Value any

	// Err contains any error from decoding the attribute value
	Err error
}

// WalkAttrsFunc is the callback function type for WalkAttrs.
// Return nil to continue walking, or an error to stop.
type WalkAttrsFunc func(info AttrInfo) error

// WalkAttrs walks all attributes in the file in path order.
//
// Example:
//
//	f.WalkAttrs(func(info tablefile.AttrInfo) error {
//	    fmt.Printf("%s = %v\n", info.Path, info.Value)
//	    return nil
//	})
func (f *File) WalkAttrs(fn WalkAttrsFunc) error {
	return Walk(f.root, func(path string, n Node) error {
		nodeType := "group"
		if _, ok := n.(*Table); ok {
			nodeType = "table"
		}
		for _, name := range n.Attrs().Names() {
			val, err := n.Attrs().Get(name)
			info := AttrInfo{
				Path:     JoinAttrPath(path, name),
				NodePath: path,
				NodeType: nodeType,
				Name:     name,
				Value:    val,
				Err:      err,
			}
			if err := fn(info); err != nil {
				return err
			}
		}
		return nil
	})
}
