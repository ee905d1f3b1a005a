// Package object reads and writes the framed blocks that follow the
// superblock of a table file.
//
// A table file is append-only: every change (new group, new table, attribute
// update, chunk of rows) is one block appended at the end of the file.
//
// # Block Structure
//
//	signature  4 bytes   OGRP, OTBL, OATR or OCHK
//	version    1 byte
//	flags      1 byte    reserved
//	body size  4 bytes
//	messages   body size bytes, each type(2) size(4) body
//	checksum   4 bytes   Jenkins lookup3 over everything above
//
// # Usage
//
// Append a block:
//
//	n, err := object.Write(writer.At(eof), object.KindGroup, object.NewGroupHeader("/dl1"))
//
// Read the block at a known address and access its messages:
//
//	header, err := object.Read(reader, addr)
//	path := header.Path()
//	attr := header.Attribute()
//
// # Errors
//
//   - [ErrInvalidHeader]: unknown signature or malformed messages
//   - [ErrUnsupportedVersion]: block version not supported
//   - [ErrChecksumMismatch]: the block was corrupted
//   - [ErrTruncated]: the block was cut short, typically by a crash mid-write
package object
