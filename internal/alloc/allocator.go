package alloc

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Allocator hands out file addresses for appended blocks. Blocks are never
// moved or freed, so allocation only ever advances the end-of-file address.
type Allocator struct {
	mu sync.Mutex

	// eofAddr is the current end-of-file address (next allocation point)
	eofAddr uint64

	// baseAddr is the minimum address that can be allocated
	// (right after the superblock)
	baseAddr uint64

	// allocations tracks all allocations made in this session
	allocations []Allocation

	stats Stats
}

// Allocation represents a single allocated block.
type Allocation struct {
	Addr uint64
	Size uint64
	Tag  string // block kind, e.g. "OCHK"
}

// Stats contains allocation statistics.
type Stats struct {
	TotalAllocations uint64            // Number of allocations made
	TotalBytesAlloc  uint64            // Total bytes allocated
	LargestAlloc     uint64            // Largest single allocation
	BytesByTag       map[string]uint64 // Bytes allocated per tag
	Discarded        uint64            // Bytes dropped by Truncate
}

// New creates a new Allocator starting at the given base address.
func New(baseAddr uint64) *Allocator {
	return &Allocator{
		eofAddr:  baseAddr,
		baseAddr: baseAddr,
	}
}

// Alloc allocates a block of the given size at EOF and returns its address.
func (a *Allocator) Alloc(size uint64) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.allocLocked(size, "")
}

// AllocTagged allocates a block and records it under tag.
func (a *Allocator) AllocTagged(size uint64, tag string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.allocLocked(size, tag)
}

func (a *Allocator) allocLocked(size uint64, tag string) uint64 {
	if size == 0 {
		return a.eofAddr
	}

	addr := a.eofAddr
	a.eofAddr += size

	a.allocations = append(a.allocations, Allocation{
		Addr: addr,
		Size: size,
		Tag:  tag,
	})

	a.stats.TotalAllocations++
	a.stats.TotalBytesAlloc += size
	if size > a.stats.LargestAlloc {
		a.stats.LargestAlloc = size
	}
	if tag != "" {
		if a.stats.BytesByTag == nil {
			a.stats.BytesByTag = make(map[string]uint64)
		}
		a.stats.BytesByTag[tag] += size
	}

	return addr
}

// Record registers a block that already exists in the file, found while
// scanning it on open. The EOF advances past the block.
func (a *Allocator) Record(addr, size uint64, tag string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if addr != a.eofAddr {
		return fmt.Errorf("block at 0x%x does not start at EOF 0x%x", addr, a.eofAddr)
	}
	a.allocLocked(size, tag)
	return nil
}

// Truncate moves EOF back to addr, discarding everything after it. It is
// used to drop a torn block left by an interrupted write.
func (a *Allocator) Truncate(addr uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if addr < a.baseAddr {
		return fmt.Errorf("truncate to 0x%x is before base address 0x%x", addr, a.baseAddr)
	}
	if addr > a.eofAddr {
		return fmt.Errorf("truncate to 0x%x is past EOF 0x%x", addr, a.eofAddr)
	}

	a.stats.Discarded += a.eofAddr - addr
	a.eofAddr = addr

	kept := a.allocations[:0]
	for _, alloc := range a.allocations {
		if alloc.Addr+alloc.Size <= addr {
			kept = append(kept, alloc)
		}
	}
	a.allocations = kept
	return nil
}

// EOFAddr returns the current end-of-file address.
func (a *Allocator) EOFAddr() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.eofAddr
}

// BaseAddr returns the base address (start of allocatable space).
func (a *Allocator) BaseAddr() uint64 {
	return a.baseAddr
}

// Stats returns a copy of the allocation statistics.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.stats
	if a.stats.BytesByTag != nil {
		s.BytesByTag = make(map[string]uint64, len(a.stats.BytesByTag))
		for k, v := range a.stats.BytesByTag {
			s.BytesByTag[k] = v
		}
	}
	return s
}

// Tags returns the recorded tags in sorted order.
func (s Stats) Tags() []string {
	return slices.Sorted(maps.Keys(s.BytesByTag))
}

// Allocations returns a copy of all allocations made.
func (a *Allocator) Allocations() []Allocation {
	a.mu.Lock()
	defer a.mu.Unlock()
	result := make([]Allocation, len(a.allocations))
	copy(result, a.allocations)
	return result
}

// Validate checks that allocations are contiguous and within bounds.
func (a *Allocator) Validate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := a.baseAddr
	for _, alloc := range a.allocations {
		if alloc.Addr < a.baseAddr {
			return fmt.Errorf("allocation at 0x%x is before base address 0x%x", alloc.Addr, a.baseAddr)
		}
		if alloc.Addr < next {
			return fmt.Errorf("overlapping allocation at 0x%x size %d", alloc.Addr, alloc.Size)
		}
		if alloc.Addr+alloc.Size > a.eofAddr {
			return fmt.Errorf("allocation at 0x%x size %d extends past EOF 0x%x", alloc.Addr, alloc.Size, a.eofAddr)
		}
		next = alloc.Addr + alloc.Size
	}

	return nil
}
