package requant

import (
	"fmt"

	"github.com/samcharles93/fixq/pkg/qparams"
)

// Plan is the prepared requantization state for one layer. Scales are fixed
// after training, so the multiplier decomposition happens once at
// model-preparation time; the resulting Plan is immutable and safe to share
// across goroutines for every subsequent inference call.
type Plan struct {
	Weights qparams.Params
	Input   qparams.Params
	Output  qparams.Params

	// M is the exact combined scale scale_w*scale_x/scale_y, kept for
	// diagnostics. Inference uses only the integer fields below.
	M float64

	Mult            Candidate
	FanIn           int
	AccumulatorBits int
}

// NewPlan validates the layer parameters, budgets register bits for the
// worst-case accumulator of the given fan-in, and decomposes the combined
// scale at the largest safe shift.
func NewPlan(w, x, y qparams.Params, fanIn, availableBits int) (*Plan, error) {
	for _, p := range []qparams.Params{w, x, y} {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	if fanIn <= 0 {
		return nil, fmt.Errorf("requant: fan-in must be positive, got %d", fanIn)
	}

	accBits := AccumulatorBits(fanIn)
	shift, err := SelectShift(availableBits, accBits)
	if err != nil {
		return nil, err
	}

	m := w.Scale * x.Scale / y.Scale
	cands, err := Decompose(m, []uint{shift})
	if err != nil {
		return nil, err
	}
	mult := cands[0]
	if mult.Degenerate() {
		return nil, fmt.Errorf("%w: M=%v at shift %d", ErrDegenerateMultiplier, m, shift)
	}

	return &Plan{
		Weights:         w,
		Input:           x,
		Output:          y,
		M:               m,
		Mult:            mult,
		FanIn:           fanIn,
		AccumulatorBits: accBits,
	}, nil
}

// Apply requantizes a raw accumulator plus bias code into an output code.
// This is the hot inference path: one multiply, one shift, one add.
func (pl *Plan) Apply(p, bias int64) int32 {
	return int32(pl.Mult.Apply(p+bias)) + pl.Output.ZeroPoint
}

// PerChannelPlan holds one decomposition per output channel. Input and output
// parameters stay per-tensor; only the weight scale varies by channel.
type PerChannelPlan struct {
	Input  qparams.Params
	Output qparams.Params
	Chans  []*Plan
}

// NewPerChannelPlan prepares one Plan per output channel weight scale.
func NewPerChannelPlan(w []qparams.Params, x, y qparams.Params, fanIn, availableBits int) (*PerChannelPlan, error) {
	if len(w) == 0 {
		return nil, fmt.Errorf("requant: no channel weight parameters")
	}
	chans := make([]*Plan, len(w))
	for c, wp := range w {
		pl, err := NewPlan(wp, x, y, fanIn, availableBits)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", c, err)
		}
		chans[c] = pl
	}
	return &PerChannelPlan{Input: x, Output: y, Chans: chans}, nil
}

// Apply requantizes an accumulator for the given output channel.
func (pp *PerChannelPlan) Apply(channel int, p, bias int64) int32 {
	return pp.Chans[channel].Apply(p, bias)
}
