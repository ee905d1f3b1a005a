// Package message encodes and parses the header messages that make up the
// object blocks of a table file.
//
// Each block (group, table, attribute, chunk) is a list of messages. A
// message has a [Type] and a type-specific body:
//
//   - Dataspace (0x0001): dimensions of an attribute value. See [Dataspace].
//   - Datatype (0x0003): element type; compound for table rows. See [Datatype].
//   - Filter Pipeline (0x000B): filters applied to chunks. See [FilterPipeline].
//   - Attribute (0x000C): name, datatype, dataspace and value. See [Attribute].
//   - Name, Title: object path and table title.
//   - Table Layout: rows per chunk. See [TableLayout].
//   - Chunk Info and Chunk Data: one chunk of rows. See [ChunkInfo].
//
// Unrecognized message types are wrapped in [Unknown] so newer files remain
// readable.
//
// The H5 parsers decode the same messages as written by the HDF5 library,
// for importing PyTables files: [ParseH5Datatype], [ParseH5Dataspace],
// [ParseH5Layout], [ParseH5FilterPipeline], [ParseH5Attribute],
// [ParseH5Link], [ParseH5LinkInfo] and [ParseH5SymbolTable].
//
// Use [Parse] to decode a message body:
//
//	msg, err := message.Parse(message.TypeDatatype, body, binary.DefaultConfig())
package message
