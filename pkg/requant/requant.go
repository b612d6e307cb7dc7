// Package requant converts the floating-point rescaling step of quantized
// convolution into integer-only multiply-shift arithmetic.
//
// A convolution over zero-point-subtracted 8-bit operands produces an integer
// accumulator P whose real value is P * scale_w * scale_x. Emitting the result
// as an output code requires scaling by M = scale_w * scale_x / scale_y, the
// only non-integer quantity in the whole pipeline. M is approximated once per
// layer by an integer mantissa Mo and a right-shift count n with
// Mo = round(M * 2^n), so the hot path is a single integer multiply and an
// arithmetic shift.
package requant

import (
	"fmt"
	"math"

	"github.com/samcharles93/fixq/pkg/qparams"
)

// operandMax is the largest magnitude of an 8-bit unsigned operand.
const operandMax = 255

// Candidate is one (shift, mantissa) decomposition of a combined scale M.
type Candidate struct {
	Shift    uint
	Mantissa int64
}

// Degenerate reports whether the mantissa rounded to zero, which collapses
// every requantized output to the zero point regardless of the accumulator.
func (c Candidate) Degenerate() bool {
	return c.Mantissa == 0
}

// Apply rescales an accumulator value using the integer multiply-shift.
// The shift is arithmetic and truncates toward negative infinity for
// negative products, matching the reference fixed-point scheme. Rounding to
// nearest before the shift would change outputs by up to one code and is
// deliberately not done here.
func (c Candidate) Apply(p int64) int64 {
	return (c.Mantissa * p) >> c.Shift
}

// ApproxError returns M*P - ((Mo*P) >> n) for a representative accumulator P.
// Diagnostic only; it is not part of the inference path.
func (c Candidate) ApproxError(m float64, p int64) float64 {
	return m*float64(p) - float64(c.Apply(p))
}

// Decompose computes Mo = round(M * 2^n) for each candidate shift, using
// round-half-away-from-zero. The approximation error of Mo/2^n against M is
// non-increasing as n grows, so callers pick the largest shift their register
// budget allows.
func Decompose(m float64, shifts []uint) ([]Candidate, error) {
	if !(m > 0) || math.IsInf(m, 1) {
		return nil, fmt.Errorf("%w: combined scale %v", qparams.ErrInvalidScale, m)
	}
	out := make([]Candidate, 0, len(shifts))
	for _, n := range shifts {
		out = append(out, Candidate{
			Shift:    n,
			Mantissa: int64(math.Round(m * math.Exp2(float64(n)))),
		})
	}
	return out, nil
}

// AccumulatorBits returns the register bits consumed by the worst-case
// accumulator magnitude of a dot product with the given fan-in: fanIn
// products of 8-bit unsigned operands, plus one sign bit because operands are
// zero-point subtracted before multiplying. fanIn is the kernel volume
// (kh*kw*cin); discovering it from tensor shapes is the convolution caller's
// concern, not this package's.
//
// The bound assumes both operands sit at full range across the whole window,
// which real inputs essentially never do. Callers may knowingly shave a bit
// or two off the result if saturation under that synthetic worst case is
// acceptable.
func AccumulatorBits(fanIn int) int {
	if fanIn <= 0 {
		return 0
	}
	maxMag := float64(fanIn) * operandMax * operandMax
	return int(math.Ceil(math.Log2(maxMag))) + 1
}

// SelectShift returns the largest shift n such that the mantissa and the
// accumulator product still fit the target register:
// n = availableBits - accumulatorBits, clamped to >= 0.
//
// When the accumulator alone exceeds the register, no shift is safe; this is
// a configuration error surfaced at model-preparation time, never
// mid-inference.
func SelectShift(availableBits, accumulatorBits int) (uint, error) {
	if availableBits <= 0 {
		return 0, fmt.Errorf("%w: register width %d", ErrOverflowRisk, availableBits)
	}
	n := availableBits - accumulatorBits
	if accumulatorBits > availableBits {
		return 0, fmt.Errorf("%w: accumulator needs %d bits, register has %d",
			ErrOverflowRisk, accumulatorBits, availableBits)
	}
	if n < 0 {
		n = 0
	}
	return uint(n), nil
}

// ValidateBiasScale verifies the bias precondition: the bias tensor must be
// quantized at exactly scale_w * scale_x (zero point 0 by convention), so the
// bias term shares the layer multiplier M with the dot-product term. The
// scale is verified against the supplied parameters, never re-derived.
func ValidateBiasScale(w, x, b qparams.Params) error {
	want := w.Scale * x.Scale
	if math.Abs(b.Scale-want) > biasScaleTolerance {
		return fmt.Errorf("%w: bias scale %v, want scale_w*scale_x = %v",
			ErrBiasScale, b.Scale, want)
	}
	if b.ZeroPoint != 0 {
		return fmt.Errorf("%w: bias zero point %d, want 0", ErrBiasScale, b.ZeroPoint)
	}
	return nil
}

const biasScaleTolerance = 1e-9

// Requantize converts a raw accumulator into an output code using
// integer-only arithmetic:
//
//	M  = scale_w * scale_x / scale_y
//	Mo = round(M * 2^n)
//	y  = ((Mo * (P + bias)) >> n) + zero_point_y
//
// bias is the bias code at scale scale_w*scale_x with zero point 0; it is
// folded into the accumulator before the multiply so it shares (Mo, n) with
// the dot-product term. Pass 0 for layers without bias.
//
// Overflow of Mo*(P+bias) is a caller precondition, avoided by choosing n via
// SelectShift; no internal guard is applied.
func Requantize(p int64, w, x, y qparams.Params, bias int64, shift uint) (int32, error) {
	for _, params := range []qparams.Params{w, x, y} {
		if err := params.Validate(); err != nil {
			return 0, err
		}
	}
	m := w.Scale * x.Scale / y.Scale
	mo := int64(math.Round(m * math.Exp2(float64(shift))))
	return int32((mo*(p+bias))>>shift) + y.ZeroPoint, nil
}
