// Package superblock reads and writes the fixed header at the start of a
// table file.
//
// # Layout
//
//	signature        8 bytes  0x89 H 5 T \r \n 0x1a \n
//	version          1 byte
//	offset size      1 byte   2, 4 or 8
//	flags            1 byte   FlagOpenForWrite
//	reserved         1 byte
//	file id         16 bytes  random UUID
//	created          8 bytes  Unix nanoseconds
//	first block      offset size bytes
//	checksum         4 bytes  Jenkins lookup3
//
// The superblock is rewritten in place only to toggle FlagOpenForWrite;
// everything else about the file lives in the object blocks that follow it.
package superblock
