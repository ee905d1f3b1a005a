// Package tablefile reads and writes append-only files of named, chunked
// tables organised in a group hierarchy.
package tablefile

import "errors"

// Common errors
var (
	ErrNotFound    = errors.New("node not found")
	ErrNotTable    = errors.New("node is not a table")
	ErrNotGroup    = errors.New("node is not a group")
	ErrExists      = errors.New("node already exists")
	ErrInvalidPath = errors.New("invalid path")
	ErrInvalidMode = errors.New("invalid file mode")
	ErrReadOnly    = errors.New("file is opened read-only")
	ErrClosed      = errors.New("file is closed")
	ErrBounds      = errors.New("row index out of range")
	ErrSchema      = errors.New("invalid table schema")
	ErrRowValue    = errors.New("invalid row value")
	ErrCorrupt     = errors.New("corrupt block")

	// ErrReadOnlyFormat is returned when an HDF5 file is opened in a
	// writable mode. HDF5 files can only be read.
	ErrReadOnlyFormat = errors.New("file format is read-only")
)

// ErrStopWalk can be returned from a walk callback to stop walking without
// an error.
var ErrStopWalk = errors.New("walk stopped")
