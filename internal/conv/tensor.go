package conv

import (
	"fmt"

	"github.com/samcharles93/fixq/pkg/qparams"
)

// Tensor is a quantized HWC activation map: 8-bit unsigned codes with one
// affine mapping for the whole tensor.
type Tensor struct {
	H, W, C int
	Data    []uint8
	Params  qparams.Params
}

// NewTensor allocates a zeroed activation tensor.
func NewTensor(h, w, c int, p qparams.Params) Tensor {
	return Tensor{H: h, W: w, C: c, Data: make([]uint8, h*w*c), Params: p}
}

// At returns the code at (y, x, ch).
func (t Tensor) At(y, x, ch int) uint8 {
	return t.Data[(y*t.W+x)*t.C+ch]
}

// Set stores a code at (y, x, ch).
func (t *Tensor) Set(y, x, ch int, v uint8) {
	t.Data[(y*t.W+x)*t.C+ch] = v
}

func (t Tensor) validate() error {
	if t.H <= 0 || t.W <= 0 || t.C <= 0 {
		return fmt.Errorf("%w: %dx%dx%d", ErrBadShape, t.H, t.W, t.C)
	}
	if len(t.Data) != t.H*t.W*t.C {
		return fmt.Errorf("%w: data %d, shape %dx%dx%d", ErrBadShape, len(t.Data), t.H, t.W, t.C)
	}
	return t.Params.Validate()
}

// Weights is a quantized convolution kernel in OHWI layout
// ([cout][kh][kw][cin]). Params holds either a single tensor-wide mapping or
// one per output channel.
type Weights struct {
	KH, KW, CIn, COut int
	Data              []uint8
	Params            []qparams.Params
}

// At returns the weight code for output channel o at (ky, kx, ci).
func (w Weights) At(o, ky, kx, ci int) uint8 {
	return w.Data[((o*w.KH+ky)*w.KW+kx)*w.CIn+ci]
}

// FanIn is the kernel volume: the count of products feeding one accumulator.
func (w Weights) FanIn() int {
	return w.KH * w.KW * w.CIn
}

func (w Weights) validate() error {
	if w.KH <= 0 || w.KW <= 0 || w.CIn <= 0 || w.COut <= 0 {
		return fmt.Errorf("%w: kernel %dx%dx%dx%d", ErrBadShape, w.COut, w.KH, w.KW, w.CIn)
	}
	if len(w.Data) != w.COut*w.KH*w.KW*w.CIn {
		return fmt.Errorf("%w: weight data %d for kernel %dx%dx%dx%d",
			ErrBadShape, len(w.Data), w.COut, w.KH, w.KW, w.CIn)
	}
	if len(w.Params) != 1 && len(w.Params) != w.COut {
		return fmt.Errorf("%w: %d weight params for %d channels", ErrBadShape, len(w.Params), w.COut)
	}
	for _, p := range w.Params {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// channelParams returns the mapping for one output channel.
func (w Weights) channelParams(o int) qparams.Params {
	if len(w.Params) == 1 {
		return w.Params[0]
	}
	return w.Params[o]
}
