package qparams

import (
	"errors"
	"math"
	"testing"
)

func TestValidateRejectsNonPositiveScale(t *testing.T) {
	for _, scale := range []float64{0, -1e-3, math.Inf(1), math.NaN()} {
		p := Params{Scale: scale}
		if err := p.Validate(); !errors.Is(err, ErrInvalidScale) {
			t.Errorf("scale %v: got %v, want ErrInvalidScale", scale, err)
		}
	}
	if err := (Params{Scale: 0.05}).Validate(); err != nil {
		t.Fatalf("valid scale rejected: %v", err)
	}
}

func TestQuantizeDequantizeRoundTrip(t *testing.T) {
	p := Params{Scale: 0.025, ZeroPoint: 128}
	for _, x := range []float64{-3.2, -0.025, 0, 0.0125, 1.0, 3.17} {
		q := p.Quantize(x)
		got := p.Dequantize(q)
		if math.Abs(got-x) > p.Scale/2+1e-12 {
			t.Errorf("x=%v: round trip gave %v (q=%d)", x, got, q)
		}
	}
}

func TestQuantizePreservesZeroPoint(t *testing.T) {
	p := Params{Scale: 0.1, ZeroPoint: 7}
	if q := p.Quantize(0); q != 7 {
		t.Fatalf("code for 0.0: got %d, want zero point 7", q)
	}
}

func TestFromMinMaxAsymmetric(t *testing.T) {
	p, err := FromMinMax(-1.0, 1.55, 8, false)
	if err != nil {
		t.Fatalf("FromMinMax: %v", err)
	}
	wantScale := 2.55 / 255.0
	if math.Abs(p.Scale-wantScale) > 1e-12 {
		t.Errorf("scale: got %v, want %v", p.Scale, wantScale)
	}
	if p.ZeroPoint != 100 {
		t.Errorf("zero point: got %d, want 100", p.ZeroPoint)
	}
	// 0.0 must dequantize exactly from the zero point code.
	if got := p.Dequantize(p.ZeroPoint); got != 0 {
		t.Errorf("dequantized zero point: got %v, want 0", got)
	}
}

func TestFromMinMaxSymmetric(t *testing.T) {
	p, err := FromMinMax(-2.54, 1.0, 8, true)
	if err != nil {
		t.Fatalf("FromMinMax: %v", err)
	}
	if p.ZeroPoint != 0 {
		t.Errorf("symmetric zero point: got %d, want 0", p.ZeroPoint)
	}
	wantScale := 2.54 / 127.0
	if math.Abs(p.Scale-wantScale) > 1e-12 {
		t.Errorf("scale: got %v, want %v", p.Scale, wantScale)
	}
}

func TestFromMinMaxShiftsRangeToIncludeZero(t *testing.T) {
	p, err := FromMinMax(0.5, 2.5, 8, false)
	if err != nil {
		t.Fatalf("FromMinMax: %v", err)
	}
	if p.ZeroPoint != 0 {
		t.Errorf("zero point for all-positive range: got %d, want 0", p.ZeroPoint)
	}
}

func TestFromMinMaxRejectsBadInputs(t *testing.T) {
	if _, err := FromMinMax(1, 1, 8, false); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("empty range: got %v, want ErrInvalidRange", err)
	}
	if _, err := FromMinMax(-1, 1, 0, false); !errors.Is(err, ErrInvalidBits) {
		t.Errorf("zero bits: got %v, want ErrInvalidBits", err)
	}
	if _, err := FromMinMax(-1, 1, 32, true); !errors.Is(err, ErrInvalidBits) {
		t.Errorf("32 bits: got %v, want ErrInvalidBits", err)
	}
}

func TestClampUint8(t *testing.T) {
	cases := []struct {
		in   int32
		want uint8
	}{
		{-1, 0}, {0, 0}, {51, 51}, {255, 255}, {256, 255}, {100000, 255},
	}
	for _, c := range cases {
		if got := ClampUint8(c.in); got != c.want {
			t.Errorf("ClampUint8(%d): got %d, want %d", c.in, got, c.want)
		}
	}
}
