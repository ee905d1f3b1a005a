// Package layout stores table rows as filtered, column-major chunks.
//
// A table's rows are packed according to its compound datatype: one member
// per column, in declaration order. Rows are gathered in memory until a
// chunk is full, then encoded:
//
//  1. The rows are transposed so each column occupies one contiguous
//     segment.
//  2. If the table's filter pipeline carries a shuffle entry without client
//     data, every segment is byte-shuffled using its own element size.
//  3. The result runs through the remaining filters (compression, then
//     fletcher32). A codec that does not shrink the data is skipped and
//     flagged in the chunk's filter mask.
//
// # Index
//
// Committed chunks are kept in a B-tree keyed by their first row, so a row
// lookup is a single descend. The most recently decoded chunk is cached
// because readers usually walk rows in order.
//
// # HDF5 tables
//
// [H5Rows] serves the rows of a table imported from an HDF5 file. Its
// records are row-major and may be padded, so every chunk is decoded with
// the HDF5 filter pipeline and repacked by a [dtype.RowConverter].
//
// # Key Types
//
//   - [Chunked]: per-table chunk index, pending rows and codec
//   - [ChunkRef]: location and filter state of one stored chunk
//   - [H5Rows]: read-only rows of an HDF5 compound dataset
package layout
