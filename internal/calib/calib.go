// Package calib loads calibration documents: the per-tensor quantization
// statistics an external quantization-aware training pipeline records for
// each layer. Tensors are addressed by exact name through an explicit table,
// never by substring matching against a model's internal tensor list.
package calib

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/samcharles93/fixq/pkg/qparams"
)

// TensorStats describes one tensor either by explicit affine parameters or
// by an observed min/max range to derive them from.
type TensorStats struct {
	Scale     *float64 `json:"scale,omitempty"`
	ZeroPoint int32    `json:"zero_point,omitempty"`

	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
	// Bits defaults to 8 when deriving from a range.
	Bits      uint `json:"bits,omitempty"`
	Symmetric bool `json:"symmetric,omitempty"`
}

// Params resolves the stats into affine parameters. Explicit scale wins over
// a range; a range is reduced via qparams.FromMinMax.
func (ts TensorStats) Params() (qparams.Params, error) {
	if ts.Scale != nil {
		p := qparams.Params{Scale: *ts.Scale, ZeroPoint: ts.ZeroPoint}
		if err := p.Validate(); err != nil {
			return qparams.Params{}, err
		}
		return p, nil
	}
	if ts.Min == nil || ts.Max == nil {
		return qparams.Params{}, fmt.Errorf("%w: need scale or min/max", ErrMissingStats)
	}
	bits := ts.Bits
	if bits == 0 {
		bits = 8
	}
	return qparams.FromMinMax(*ts.Min, *ts.Max, bits, ts.Symmetric)
}

// Layer is the calibration record for one accumulator: weight, input and
// output statistics plus the kernel fan-in the convolution reports.
type Layer struct {
	Name  string `json:"name"`
	FanIn int    `json:"fan_in"`

	Weights TensorStats  `json:"weights"`
	Input   TensorStats  `json:"input"`
	Output  TensorStats  `json:"output"`
	Bias    *TensorStats `json:"bias,omitempty"`

	// WeightsPerChannel, when present, overrides Weights with one entry
	// per output channel.
	WeightsPerChannel []TensorStats `json:"weights_per_channel,omitempty"`
}

// Calibration is a parsed calibration document.
type Calibration struct {
	Model        string  `json:"model,omitempty"`
	RegisterBits int     `json:"register_bits,omitempty"`
	Layers       []Layer `json:"layers"`

	byName map[string]int
}

// Load reads and decodes a calibration file.
func Load(path string) (*Calibration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}

// Decode parses a calibration document from r and indexes its layers.
func Decode(r io.Reader) (*Calibration, error) {
	var c Calibration
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("calib: decode: %w", err)
	}
	if len(c.Layers) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrEmptyDocument)
	}
	c.byName = make(map[string]int, len(c.Layers))
	for i, l := range c.Layers {
		if l.Name == "" {
			return nil, fmt.Errorf("calib: layer %d has no name", i)
		}
		if l.FanIn <= 0 {
			return nil, fmt.Errorf("calib: layer %q: fan-in must be positive", l.Name)
		}
		if _, dup := c.byName[l.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateLayer, l.Name)
		}
		c.byName[l.Name] = i
	}
	return &c, nil
}

// Layer returns the calibration record for an exact layer name.
func (c *Calibration) Layer(name string) (Layer, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Layer{}, false
	}
	return c.Layers[i], true
}

// Bits returns the document's register width, defaulting to 32.
func (c *Calibration) Bits() int {
	if c.RegisterBits > 0 {
		return c.RegisterBits
	}
	return 32
}
