package message

import (
	"fmt"

	"github.com/robert-malhotra/go-h5table/internal/binary"
)

// Filter IDs. Deflate, shuffle and Fletcher32 keep their HDF5 numbers; zstd
// and lz4 use the IDs registered for them with the HDF Group.
const (
	FilterDeflate    uint16 = 1     // zlib
	FilterShuffle    uint16 = 2     // Byte shuffle
	FilterFletcher32 uint16 = 3     // Fletcher32 checksum
	FilterLZ4        uint16 = 32004 // LZ4 frame
	FilterZstd       uint16 = 32015 // Zstandard
	FilterBlosc      uint16 = 32001 // Blosc, read only
)

// FilterOptional marks a filter that may be skipped when unavailable.
const FilterOptional uint16 = 0x0001

// FilterInfo describes a single filter in the pipeline.
type FilterInfo struct {
	ID         uint16   // Filter identifier
	Flags      uint16   // Filter flags (bit 0: optional)
	Name       string   // Filter name, informational
	ClientData []uint32 // Filter parameters
}

// IsOptional returns true if this filter is optional.
func (f *FilterInfo) IsOptional() bool {
	return f.Flags&FilterOptional != 0
}

// FilterPipeline represents a filter pipeline message (type 0x000B).
type FilterPipeline struct {
	Filters []FilterInfo
}

func (m *FilterPipeline) Type() Type { return TypeFilterPipeline }

// HasFilter returns true if the pipeline contains the given filter ID.
func (m *FilterPipeline) HasFilter(id uint16) bool {
	for _, f := range m.Filters {
		if f.ID == id {
			return true
		}
	}
	return false
}

// HasCompression returns true if the pipeline has any compression filter.
func (m *FilterPipeline) HasCompression() bool {
	for _, f := range m.Filters {
		switch f.ID {
		case FilterDeflate, FilterZstd, FilterLZ4, FilterBlosc:
			return true
		}
	}
	return false
}

// Serialize writes count(1) then id(2) flags(2) name ncd(1) cd(4 each) per filter.
func (m *FilterPipeline) Serialize(w *binary.Writer) error {
	if len(m.Filters) > 32 {
		return fmt.Errorf("too many filters: %d", len(m.Filters))
	}
	if err := w.WriteUint8(uint8(len(m.Filters))); err != nil {
		return err
	}
	for _, f := range m.Filters {
		if err := w.WriteUint16(f.ID); err != nil {
			return err
		}
		if err := w.WriteUint16(f.Flags); err != nil {
			return err
		}
		if err := w.WriteString(f.Name); err != nil {
			return err
		}
		if err := w.WriteUint8(uint8(len(f.ClientData))); err != nil {
			return err
		}
		for _, cd := range f.ClientData {
			if err := w.WriteUint32(cd); err != nil {
				return err
			}
		}
	}
	return nil
}

// SerializedSize returns the size in bytes when serialized.
func (m *FilterPipeline) SerializedSize() int {
	size := 1
	for _, f := range m.Filters {
		size += 4 + binary.StringSize(f.Name) + 1 + 4*len(f.ClientData)
	}
	return size
}

func parseFilterPipeline(r *binary.Reader) (*FilterPipeline, error) {
	n, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	fp := &FilterPipeline{Filters: make([]FilterInfo, n)}
	for i := range fp.Filters {
		f := &fp.Filters[i]
		if f.ID, err = r.ReadUint16(); err != nil {
			return nil, err
		}
		if f.Flags, err = r.ReadUint16(); err != nil {
			return nil, err
		}
		if f.Name, err = r.ReadString(); err != nil {
			return nil, err
		}
		ncd, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}
		if ncd > 0 {
			f.ClientData = make([]uint32, ncd)
			for j := range f.ClientData {
				if f.ClientData[j], err = r.ReadUint32(); err != nil {
					return nil, err
				}
			}
		}
	}
	return fp, nil
}
