// Package heap reads the HDF5 heaps that hold names and variable-length
// values of imported files.
//
// A [LocalHeap] stores the link names of an old-style (symbol table) group.
// A [GlobalHeap] collection stores variable-length strings, which PyTables
// files use for some attribute values. Both are read whole and kept in
// memory; the heaps of the tables this module imports are small.
package heap
