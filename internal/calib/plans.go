package calib

import (
	"fmt"

	"github.com/samcharles93/fixq/pkg/fqp"
	"github.com/samcharles93/fixq/pkg/qparams"
	"github.com/samcharles93/fixq/pkg/requant"
)

// BuildPlans prepares one requantization plan per calibrated layer and
// returns the on-disk records in document order. Per-channel layers emit one
// record per channel, named "<layer>#<channel>".
//
// Every precondition failure (invalid scale, bias scale mismatch, overflow
// risk, degenerate mantissa) aborts the build: these are model-preparation
// errors that must never reach inference.
func BuildPlans(c *Calibration, registerBits int) ([]fqp.LayerRecord, error) {
	if registerBits <= 0 {
		registerBits = c.Bits()
	}

	var records []fqp.LayerRecord
	for _, l := range c.Layers {
		x, err := l.Input.Params()
		if err != nil {
			return nil, fmt.Errorf("layer %q input: %w", l.Name, err)
		}
		y, err := l.Output.Params()
		if err != nil {
			return nil, fmt.Errorf("layer %q output: %w", l.Name, err)
		}

		if len(l.WeightsPerChannel) > 0 {
			for ch, ws := range l.WeightsPerChannel {
				w, err := ws.Params()
				if err != nil {
					return nil, fmt.Errorf("layer %q channel %d: %w", l.Name, ch, err)
				}
				if err := checkBias(l, w.Scale, x.Scale); err != nil {
					return nil, err
				}
				pl, err := requant.NewPlan(w, x, y, l.FanIn, registerBits)
				if err != nil {
					return nil, fmt.Errorf("layer %q channel %d: %w", l.Name, ch, err)
				}
				records = append(records, fqp.FromPlan(fmt.Sprintf("%s#%d", l.Name, ch), pl))
			}
			continue
		}

		w, err := l.Weights.Params()
		if err != nil {
			return nil, fmt.Errorf("layer %q weights: %w", l.Name, err)
		}
		if err := checkBias(l, w.Scale, x.Scale); err != nil {
			return nil, err
		}
		pl, err := requant.NewPlan(w, x, y, l.FanIn, registerBits)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", l.Name, err)
		}
		records = append(records, fqp.FromPlan(l.Name, pl))
	}
	return records, nil
}

func checkBias(l Layer, wScale, xScale float64) error {
	if l.Bias == nil {
		return nil
	}
	b, err := l.Bias.Params()
	if err != nil {
		return fmt.Errorf("layer %q bias: %w", l.Name, err)
	}
	w := qparams.Params{Scale: wScale}
	x := qparams.Params{Scale: xScale}
	if err := requant.ValidateBiasScale(w, x, b); err != nil {
		return fmt.Errorf("layer %q: %w", l.Name, err)
	}
	return nil
}
