package filter

import (
	"fmt"

	"github.com/robert-malhotra/go-h5table/internal/message"
)

// Filter is the interface implemented by all chunk filters.
type Filter interface {
	// ID returns the filter identifier.
	ID() uint16

	// Encode transforms raw data to its stored form.
	Encode(input []byte) ([]byte, error)

	// Decode transforms stored data back to raw form.
	Decode(input []byte) ([]byte, error)
}

// Registry maps filter IDs to filter constructors.
var Registry = map[uint16]func([]uint32) Filter{
	message.FilterDeflate:    func(cd []uint32) Filter { return NewDeflate(cd) },
	message.FilterShuffle:    func(cd []uint32) Filter { return NewShuffle(cd) },
	message.FilterFletcher32: func(cd []uint32) Filter { return NewFletcher32(cd) },
	message.FilterZstd:       func(cd []uint32) Filter { return NewZstd(cd) },
	message.FilterLZ4:        func(cd []uint32) Filter { return NewLZ4(cd) },
}

// filterNames maps known filter IDs to their names for better error messages.
var filterNames = map[uint16]string{
	message.FilterDeflate:    "deflate",
	message.FilterShuffle:    "shuffle",
	message.FilterFletcher32: "fletcher32",
	message.FilterZstd:       "zstd",
	message.FilterLZ4:        "lz4",
	message.FilterBlosc:      "blosc",
}

// FilterName returns the name of a known filter ID.
func FilterName(id uint16) string {
	if name, ok := filterNames[id]; ok {
		return name
	}
	return fmt.Sprintf("filter-%d", id)
}

// IsCodec reports whether the filter compresses data. A codec whose output
// is not smaller than its input is skipped through the chunk filter mask.
func IsCodec(id uint16) bool {
	switch id {
	case message.FilterDeflate, message.FilterZstd, message.FilterLZ4, message.FilterBlosc:
		return true
	}
	return false
}

// New creates a filter from a FilterInfo.
func New(info message.FilterInfo) (Filter, error) {
	return newFilter(info, Registry)
}

func newFilter(info message.FilterInfo, registry map[uint16]func([]uint32) Filter) (Filter, error) {
	constructor, ok := registry[info.ID]
	if !ok {
		if info.IsOptional() {
			return nil, nil // Optional filter not available
		}
		return nil, fmt.Errorf("unsupported filter ID: %d", info.ID)
	}
	return constructor(info.ClientData), nil
}
