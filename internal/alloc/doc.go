// Package alloc tracks the end-of-file address of an append-only table file.
//
// Every block written to a table file is placed at the current end of file.
// The [Allocator] records each block with a tag naming its kind so callers
// can report how the file's bytes are spent, and it can move EOF back over a
// torn trailing block before new data is appended.
//
// # Usage
//
//	a := alloc.New(sb.FirstBlockAddress)
//	addr := a.AllocTagged(uint64(len(block)), "OCHK")
//
// When opening an existing file, replay the blocks found during the scan:
//
//	for _, b := range blocks {
//		a.Record(b.Addr, b.Size, b.Kind)
//	}
//	a.Truncate(lastGoodEnd)
package alloc
