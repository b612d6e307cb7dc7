// Package conv runs integer-only 2D convolution over 8-bit quantized
// tensors. It owns everything the requantizer deliberately does not: tensor
// shapes, kernel fan-in, spatial iteration and output saturation. All
// per-element work (zero-point subtraction, multiply, accumulate) stays in
// the integer domain; the single floating-point ratio per layer is applied
// through a precomputed multiplier plan.
package conv

import (
	"fmt"

	"github.com/samcharles93/fixq/pkg/qparams"
	"github.com/samcharles93/fixq/pkg/requant"
)

// Options configures a convolution call.
type Options struct {
	Stride int
	Pad    int
	// RegisterBits is the accumulator register width used for shift
	// selection. Defaults to 32.
	RegisterBits int
}

func (o Options) stride() int {
	if o.Stride <= 0 {
		return 1
	}
	return o.Stride
}

func (o Options) bits() int {
	if o.RegisterBits <= 0 {
		return 32
	}
	return o.RegisterBits
}

// Conv2D convolves a quantized input with quantized weights and requantizes
// each accumulator to the output mapping. bias holds one code per output
// channel at scale scale_w*scale_x (nil for no bias). Padded positions carry
// the input zero point, i.e. real zero, so they contribute nothing to the
// zero-point-subtracted accumulation.
func Conv2D(in Tensor, w Weights, bias []int64, out qparams.Params, opts Options) (Tensor, error) {
	if err := in.validate(); err != nil {
		return Tensor{}, err
	}
	if err := w.validate(); err != nil {
		return Tensor{}, err
	}
	if w.CIn != in.C {
		return Tensor{}, fmt.Errorf("%w: input C=%d, kernel CIn=%d", ErrBadShape, in.C, w.CIn)
	}
	if bias != nil && len(bias) != w.COut {
		return Tensor{}, fmt.Errorf("%w: %d bias codes for %d channels", ErrBadShape, len(bias), w.COut)
	}

	stride, pad := opts.stride(), opts.Pad
	outH := (in.H+2*pad-w.KH)/stride + 1
	outW := (in.W+2*pad-w.KW)/stride + 1
	if outH <= 0 || outW <= 0 {
		return Tensor{}, fmt.Errorf("%w: kernel %dx%d does not fit input %dx%d",
			ErrBadShape, w.KH, w.KW, in.H, in.W)
	}

	// One multiplier decomposition per output channel, computed before any
	// accumulation so preparation errors never surface mid-loop.
	chanParams := make([]qparams.Params, w.COut)
	for o := 0; o < w.COut; o++ {
		chanParams[o] = w.channelParams(o)
	}
	plan, err := requant.NewPerChannelPlan(chanParams, in.Params, out, w.FanIn(), opts.bits())
	if err != nil {
		return Tensor{}, err
	}

	res := NewTensor(outH, outW, w.COut, out)
	xZP := int64(in.Params.ZeroPoint)

	for oy := 0; oy < outH; oy++ {
		for ox := 0; ox < outW; ox++ {
			for o := 0; o < w.COut; o++ {
				wZP := int64(chanParams[o].ZeroPoint)

				var acc int64
				for ky := 0; ky < w.KH; ky++ {
					iy := oy*stride + ky - pad
					if iy < 0 || iy >= in.H {
						continue
					}
					for kx := 0; kx < w.KW; kx++ {
						ix := ox*stride + kx - pad
						if ix < 0 || ix >= in.W {
							continue
						}
						for ci := 0; ci < in.C; ci++ {
							xv := int64(in.At(iy, ix, ci)) - xZP
							wv := int64(w.At(o, ky, kx, ci)) - wZP
							acc += wv * xv
						}
					}
				}

				var b int64
				if bias != nil {
					b = bias[o]
				}
				res.Set(oy, ox, o, qparams.ClampUint8(plan.Apply(o, acc, b)))
			}
		}
	}
	return res, nil
}
