// Package btree walks HDF5 version 1 B-trees, the indexes PyTables files
// use for their groups and table chunks.
//
// A group B-tree (node type 0) points at symbol table nodes ("SNOD") whose
// entries name group members through a [heap.LocalHeap]; see
// [ReadGroupEntries]. A chunk B-tree (node type 1) maps chunk offsets to
// the file address, stored size and filter mask of each chunk; see
// [ReadChunkIndex].
//
// Both readers follow child pointers recursively and bound the depth, so a
// corrupt tree fails with an error instead of looping.
package btree
