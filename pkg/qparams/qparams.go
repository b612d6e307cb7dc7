// Package qparams describes affine quantization parameters for a tensor.
//
// A stored integer code q maps to a real value via x = (q - ZeroPoint) * Scale.
// One Params value exists per tensor; per-channel quantization carries one
// Params per output channel.
package qparams

import (
	"fmt"
	"math"
)

// Params is the affine mapping between real values and integer codes.
type Params struct {
	Scale     float64
	ZeroPoint int32
}

// Validate checks that the mapping is usable. Scales are ratios of observed
// ranges and must be strictly positive.
func (p Params) Validate() error {
	if !(p.Scale > 0) || math.IsInf(p.Scale, 1) {
		return fmt.Errorf("%w: scale %v", ErrInvalidScale, p.Scale)
	}
	return nil
}

// Quantize maps a real value to its integer code, rounding to nearest.
// The result is not clamped; callers saturate to their storage width.
func (p Params) Quantize(x float64) int32 {
	return int32(math.Round(x/p.Scale)) + p.ZeroPoint
}

// Dequantize maps an integer code back to its real value.
func (p Params) Dequantize(q int32) float64 {
	return float64(q-p.ZeroPoint) * p.Scale
}

// FromMinMax derives Params from an observed calibration range, the way a
// quantization-aware training pipeline records per-tensor min/max statistics.
//
// For asymmetric quantization the range [min, max] is mapped onto the full
// unsigned code range [0, 2^bits-1] and the zero point is the code for 0.0.
// For symmetric quantization the zero point is fixed at 0 and the scale maps
// max(|min|, |max|) onto 2^(bits-1)-1.
func FromMinMax(min, max float64, bits uint, symmetric bool) (Params, error) {
	if bits == 0 || bits > 16 {
		return Params{}, fmt.Errorf("%w: %d-bit codes", ErrInvalidBits, bits)
	}
	if !(max > min) {
		return Params{}, fmt.Errorf("%w: min %v, max %v", ErrInvalidRange, min, max)
	}

	if symmetric {
		absMax := math.Max(math.Abs(min), math.Abs(max))
		if absMax == 0 {
			return Params{}, fmt.Errorf("%w: zero range", ErrInvalidRange)
		}
		qMax := float64(int32(1)<<(bits-1) - 1)
		return Params{Scale: absMax / qMax}, nil
	}

	// The representable range must include 0.0 so that padding and ReLU
	// zeros have an exact code.
	if min > 0 {
		min = 0
	}
	if max < 0 {
		max = 0
	}
	qMax := float64(uint32(1)<<bits - 1)
	scale := (max - min) / qMax
	zp := int32(math.Round(-min / scale))
	return Params{Scale: scale, ZeroPoint: zp}, nil
}

// ClampUint8 saturates a requantized value to the 8-bit activation range.
func ClampUint8(v int32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
