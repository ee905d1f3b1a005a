// Package tableio maps containers to table rows and back.
//
// A Writer infers a column schema from the first containers written to a
// table, picks a value transform for every column (unit stripping, enum
// codes, time to float, fixed-width strings) and records what it did in the
// table's header attributes. A Reader rebuilds the transforms from those
// attributes alone and yields freshly built containers, one per row.
//
//	w, err := tableio.NewWriter("events.h5t", "dl1")
//	...
//	for ev := range events {
//		if err := w.Write("events", ev); err != nil {
//			return err
//		}
//	}
//	w.Close()
//
//	r, err := tableio.NewReader("events.h5t")
//	...
//	for ev, err := range r.ReadOne("/dl1/events", EventType) {
//		...
//	}
//
// # Header attributes
//
// Column metadata is stored as table attributes named {column}_{SUFFIX}:
//
//	_DESC              field description
//	_UNIT              unit of a quantity column
//	_ENUM              enumeration name of an enum column
//	_TIME_SCALE        time scale of a time column (utc, tai, tt)
//	_TIME_FORMAT       numeric time format (mjd, jd, unix, unix_tai)
//	_TRANSFORM         "string" for fixed-width string columns
//	_MAXLEN            byte width of a string column
//	_TRANSFORM_SCALE   fixed-point scale
//	_TRANSFORM_OFFSET  fixed-point offset
//	_TRANSFORM_DTYPE   float type restored by the fixed-point inverse
package tableio

import "errors"

// Errors
var (
	// ErrSchema marks a value that has no column representation. The
	// writer drops the column and logs a warning.
	ErrSchema = errors.New("unsupported column value")
	// ErrConfiguration marks invalid writer or reader arguments.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrAppend marks a row that could not be appended. Nothing of the
	// row is stored.
	ErrAppend = errors.New("row append failed")
	// ErrTypeContract marks a call without container types, or with nil
	// containers or types.
	ErrTypeContract = errors.New("container type contract violated")
)
