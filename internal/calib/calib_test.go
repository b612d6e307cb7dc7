package calib

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/samcharles93/fixq/pkg/requant"
)

const sampleDoc = `{
  "model": "mobilenet_cifar10",
  "register_bits": 32,
  "layers": [
    {
      "name": "conv2d/stem",
      "fan_in": 27,
      "weights": {"scale": 0.02182667888700962, "zero_point": 121},
      "input": {"scale": 0.0078125, "zero_point": 128},
      "output": {"scale": 0.023528477177023888},
      "bias": {"scale": 1.705209288047627e-4}
    },
    {
      "name": "conv2d/pointwise",
      "fan_in": 64,
      "weights": {"min": -1.27, "max": 1.27, "symmetric": true},
      "input": {"min": -1.0, "max": 1.55},
      "output": {"min": -2.0, "max": 2.0}
    }
  ]
}`

func TestDecodeSampleDocument(t *testing.T) {
	c, err := Decode(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.Model != "mobilenet_cifar10" {
		t.Errorf("model: got %q", c.Model)
	}
	if c.Bits() != 32 {
		t.Errorf("bits: got %d", c.Bits())
	}

	l, ok := c.Layer("conv2d/stem")
	if !ok {
		t.Fatalf("missing layer")
	}
	w, err := l.Weights.Params()
	if err != nil {
		t.Fatalf("weights params: %v", err)
	}
	if w.ZeroPoint != 121 {
		t.Errorf("weight zero point: got %d", w.ZeroPoint)
	}

	// Symmetric range-derived weights: zero point pinned at 0.
	l2, _ := c.Layer("conv2d/pointwise")
	w2, err := l2.Weights.Params()
	if err != nil {
		t.Fatalf("range weights params: %v", err)
	}
	if w2.ZeroPoint != 0 {
		t.Errorf("symmetric zero point: got %d", w2.ZeroPoint)
	}
	if math.Abs(w2.Scale-0.01) > 1e-12 {
		t.Errorf("derived scale: got %v, want 0.01", w2.Scale)
	}
}

func TestDecodeRejectsBadDocuments(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"empty", `{"layers": []}`},
		{"unnamed", `{"layers": [{"fan_in": 9, "weights": {"scale": 1}, "input": {"scale": 1}, "output": {"scale": 1}}]}`},
		{"fan-in", `{"layers": [{"name": "a", "fan_in": 0, "weights": {"scale": 1}, "input": {"scale": 1}, "output": {"scale": 1}}]}`},
		{"duplicate", `{"layers": [
			{"name": "a", "fan_in": 9, "weights": {"scale": 1}, "input": {"scale": 1}, "output": {"scale": 1}},
			{"name": "a", "fan_in": 9, "weights": {"scale": 1}, "input": {"scale": 1}, "output": {"scale": 1}}
		]}`},
		{"syntax", `{"layers": [`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := Decode(strings.NewReader(c.doc)); err == nil {
				t.Fatalf("document accepted")
			}
		})
	}
}

func TestTensorStatsNeedScaleOrRange(t *testing.T) {
	_, err := TensorStats{}.Params()
	if !errors.Is(err, ErrMissingStats) {
		t.Fatalf("got %v, want ErrMissingStats", err)
	}
}

func TestBuildPlansFromSample(t *testing.T) {
	c, err := Decode(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	records, err := BuildPlans(c, 0)
	if err != nil {
		t.Fatalf("build plans: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records: got %d, want 2", len(records))
	}
	if records[0].Name != "conv2d/stem" {
		t.Errorf("record order: got %q first", records[0].Name)
	}
	// 32-bit register, 22-bit accumulator for fan-in 27: shift 10.
	if records[0].Shift != 10 {
		t.Errorf("stem shift: got %d, want 10", records[0].Shift)
	}
	if records[0].Mantissa == 0 {
		t.Errorf("stem mantissa degenerate")
	}
}

func TestBuildPlansChecksBiasScale(t *testing.T) {
	doc := strings.Replace(sampleDoc, "1.705209288047627e-4", "2.0e-4", 1)
	c, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := BuildPlans(c, 0); !errors.Is(err, requant.ErrBiasScale) {
		t.Fatalf("got %v, want ErrBiasScale", err)
	}
}

func TestBuildPlansPerChannel(t *testing.T) {
	doc := `{
	  "layers": [
	    {
	      "name": "dwconv",
	      "fan_in": 9,
	      "weights_per_channel": [
	        {"scale": 0.02}, {"scale": 0.05}, {"scale": 0.011}
	      ],
	      "weights": {"scale": 1},
	      "input": {"scale": 0.0078125, "zero_point": 128},
	      "output": {"scale": 0.05}
	    }
	  ]
	}`
	c, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	records, err := BuildPlans(c, 32)
	if err != nil {
		t.Fatalf("build plans: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records: got %d, want 3", len(records))
	}
	for i, r := range records {
		want := "dwconv#" + string(rune('0'+i))
		if r.Name != want {
			t.Errorf("record %d name: got %q, want %q", i, r.Name, want)
		}
	}
}

func TestBuildPlansSurfacesOverflowRisk(t *testing.T) {
	doc := `{
	  "register_bits": 20,
	  "layers": [
	    {
	      "name": "conv",
	      "fan_in": 27,
	      "weights": {"scale": 0.02},
	      "input": {"scale": 0.0078125},
	      "output": {"scale": 0.023}
	    }
	  ]
	}`
	c, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := BuildPlans(c, 0); !errors.Is(err, requant.ErrOverflowRisk) {
		t.Fatalf("got %v, want ErrOverflowRisk", err)
	}
}
