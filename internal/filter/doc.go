// Package filter implements the chunk filter pipeline of the table file.
//
// Every table records the filters its chunks pass through in a filter
// pipeline message. Writing applies them in order; reading applies them in
// reverse. Each chunk carries a filter mask: bit i set means filter i was
// skipped for that chunk, which happens when a codec fails to shrink it.
//
// # Filters
//
//   - Deflate (ID 1): zlib via [Deflate], backed by klauspost/compress.
//   - Shuffle (ID 2): byte shuffling via [Shuffle]. Tables store it without
//     client data and the chunk layout shuffles each column segment with
//     [ShuffleBytes] using that column's element size.
//   - Fletcher32 (ID 3): checksum appended to every chunk via [Fletcher32Filter].
//   - LZ4 (ID 32004): LZ4 frames via [LZ4], backed by pierrec/lz4.
//   - Zstandard (ID 32015): via [Zstd], backed by klauspost/compress. This is
//     the default codec at level [DefaultZstdLevel].
//
// Imported HDF5 files go through [NewH5Pipeline], which resolves IDs with
// [H5Registry]. It adds [Blosc] (ID 32001, decode only, the PyTables
// default) and swaps in [H5Fletcher32] and [H5LZ4] for the framing the
// HDF5 library and its LZ4 plugin use.
//
// # Usage
//
//	pipeline, err := filter.NewPipeline(filterPipelineMsg)
//	stored, mask, err := pipeline.Encode(raw)
//	raw, err = pipeline.Decode(stored, mask)
package filter
