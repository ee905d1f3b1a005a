package tablefile

import (
	"fmt"
	"strings"
)

// ParseAttrPath parses an attribute path into node path and attribute name.
// Path format: /group/subgroup/table@attribute_name
//
// Examples:
//   - "/@root_attr" -> nodePath="/", attrName="root_attr"
//   - "/dl1/events@energy_UNIT" -> nodePath="/dl1/events", attrName="energy_UNIT"
//
// Returns an error if the path is invalid or missing the @ separator.
func ParseAttrPath(path string) (nodePath, attrName string, err error) {
	if path == "" {
		return "", "", fmt.Errorf("%w: empty attribute path", ErrInvalidPath)
	}

	atIdx := strings.LastIndex(path, "@")
	if atIdx == -1 {
		return "", "", fmt.Errorf("%w: attribute path must contain '@' separator: %s", ErrInvalidPath, path)
	}

	nodePath = path[:atIdx]
	attrName = path[atIdx+1:]

	if attrName == "" {
		return "", "", fmt.Errorf("%w: attribute name cannot be empty: %s", ErrInvalidPath, path)
	}

	return CleanPath(nodePath), attrName, nil
}

// JoinAttrPath creates an attribute path from node path and attribute name.
func JoinAttrPath(nodePath, attrName string) string {
	if nodePath == "/" {
		return "/@" + attrName
	}
	return nodePath + "@" + attrName
}

// SplitPath splits a path into its components.
// Leading and trailing slashes are handled, empty components are removed.
//
// Examples:
//   - "/" -> []string{}
//   - "/foo" -> []string{"foo"}
//   - "/foo//bar/" -> []string{"foo", "bar"}
func SplitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CleanPath normalizes a path, ensuring it starts with "/" and has no
// trailing or repeated slashes.
func CleanPath(path string) string {
	parts := SplitPath(path)
	if len(parts) == 0 {
		return "/"
	}
	return "/" + strings.Join(parts, "/")
}

// JoinPath joins a parent path and a child name.
func JoinPath(parent, name string) string {
	if parent == "/" || parent == "" {
		return CleanPath(name)
	}
	return CleanPath(parent + "/" + name)
}

// parentPath returns the path of the group holding path.
func parentPath(path string) string {
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return "/"
	}
	return path[:i]
}

// baseName returns the last component of path.
func baseName(path string) string {
	if path == "/" {
		return "/"
	}
	return path[strings.LastIndex(path, "/")+1:]
}

// validName reports whether name can be used as a single path component.
func validName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidPath)
	case name == "." || name == "..":
		return fmt.Errorf("%w: reserved name %q", ErrInvalidPath, name)
	case strings.ContainsAny(name, "/@"):
		return fmt.Errorf("%w: name %q contains '/' or '@'", ErrInvalidPath, name)
	}
	return nil
}
