// Package dtype maps between Go values and the scalar column datatypes of a
// table file.
//
// The supported datatypes form a closed set:
//
//	Datatype          | Go type
//	------------------|------------------------------------------
//	Fixed-point       | int8/16/32/64 or uint8/16/32/64
//	Floating-point    | float32 or float64
//	Bitfield (1 byte) | bool
//	String (fixed)    | []byte, NUL padded on disk
//	Opaque            | JSON document (attributes only)
//
// [Encode] writes a scalar or a fixed-length slice into a column buffer and
// [Decode] reads it back. Integer columns reject values that overflow the
// column width instead of wrapping.
//
// Imported HDF5 tables are mapped onto the same set: [FromH5] picks the
// column datatype of an HDF5 element type and a [RowConverter] repacks
// stored records, which may be padded or big-endian, into packed rows.
package dtype
