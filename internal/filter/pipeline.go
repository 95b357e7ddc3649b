package filter

import (
	"fmt"

	"github.com/robert-malhotra/turbslice/internal/message"
)

type stage struct {
	id  uint16
	bit uint32 // position in the stored pipeline, as used by chunk filter masks
	dec Decoder
}

// Pipeline decodes chunks written through a filter pipeline message.
type Pipeline struct {
	stages []stage
}

// NewPipeline builds the decoders for fp. A nil message gives an empty
// pipeline.
func NewPipeline(fp *message.FilterPipeline, elemSize int) (*Pipeline, error) {
	p := &Pipeline{}
	if fp == nil {
		return p, nil
	}
	for i, info := range fp.Filters {
		dec, err := New(info, elemSize)
		if err != nil {
			return nil, err
		}
		if dec != nil {
			p.stages = append(p.stages, stage{id: info.ID, bit: 1 << i, dec: dec})
		}
	}
	return p, nil
}

// Decode runs the stages last to first. A set bit i in mask means filter i
// was skipped when the chunk was written.
func (p *Pipeline) Decode(data []byte, mask uint32) ([]byte, error) {
	for i := len(p.stages) - 1; i >= 0; i-- {
		s := p.stages[i]
		if mask&s.bit != 0 {
			continue
		}
		out, err := s.dec.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", s.id, err)
		}
		data = out
	}
	return data, nil
}

func (p *Pipeline) Empty() bool { return p == nil || len(p.stages) == 0 }

func (p *Pipeline) Len() int { return len(p.stages) }
