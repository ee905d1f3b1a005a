package filter

import (
	"fmt"

	"github.com/robert-malhotra/go-h5table/internal/message"
)

// MaxFilters is the number of filters a chunk filter mask can address.
const MaxFilters = 32

type stage struct {
	index  int // position in the FilterPipeline message, used for the mask
	filter Filter
}

// Pipeline represents a filter pipeline that encodes and decodes chunk data.
type Pipeline struct {
	stages []stage
}

// NewPipeline creates a filter pipeline from a FilterPipeline message.
//
// A shuffle entry without client data stands for per-column shuffling,
// which the chunk layout performs itself because columns differ in element
// size. It contributes no stage here.
func NewPipeline(fp *message.FilterPipeline) (*Pipeline, error) {
	return newPipeline(fp, Registry, true)
}

// NewH5Pipeline creates a decode pipeline for chunks written by the HDF5
// library. It resolves filters through [H5Registry] and treats every
// shuffle entry as a stage.
func NewH5Pipeline(fp *message.FilterPipeline) (*Pipeline, error) {
	return newPipeline(fp, H5Registry, false)
}

func newPipeline(fp *message.FilterPipeline, registry map[uint16]func([]uint32) Filter, columnShuffle bool) (*Pipeline, error) {
	if fp == nil || len(fp.Filters) == 0 {
		return &Pipeline{}, nil
	}
	if len(fp.Filters) > MaxFilters {
		return nil, fmt.Errorf("pipeline has %d filters, at most %d supported", len(fp.Filters), MaxFilters)
	}

	p := &Pipeline{
		stages: make([]stage, 0, len(fp.Filters)),
	}

	for i, info := range fp.Filters {
		if columnShuffle && info.ID == message.FilterShuffle && len(info.ClientData) == 0 {
			continue
		}
		f, err := newFilter(info, registry)
		if err != nil {
			return nil, fmt.Errorf("creating filter %s: %w", FilterName(info.ID), err)
		}
		if f != nil {
			p.stages = append(p.stages, stage{index: i, filter: f})
		}
	}

	return p, nil
}

// Encode applies the filters in order and returns the stored data along
// with the filter mask to record for the chunk. Codecs that fail to shrink
// the data are skipped and flagged in the mask.
func (p *Pipeline) Encode(input []byte) ([]byte, uint32, error) {
	data := input
	var mask uint32

	for _, s := range p.stages {
		out, err := s.filter.Encode(data)
		if err != nil {
			return nil, 0, fmt.Errorf("filter %s encode: %w", FilterName(s.filter.ID()), err)
		}
		if IsCodec(s.filter.ID()) && len(out) >= len(data) {
			mask |= 1 << uint(s.index)
			continue
		}
		data = out
	}

	return data, mask, nil
}

// Decode applies the filter pipeline to encoded data.
// The filterMask specifies which filters to skip (bit i = skip filter i).
// Filters are applied in reverse order (last filter first).
func (p *Pipeline) Decode(input []byte, filterMask uint32) ([]byte, error) {
	data := input

	for i := len(p.stages) - 1; i >= 0; i-- {
		s := p.stages[i]
		if filterMask&(1<<uint(s.index)) != 0 {
			continue
		}

		var err error
		data, err = s.filter.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("filter %s decode: %w", FilterName(s.filter.ID()), err)
		}
	}

	return data, nil
}

// Empty returns true if the pipeline has no filters.
func (p *Pipeline) Empty() bool {
	return len(p.stages) == 0
}

// Len returns the number of filters in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.stages)
}
