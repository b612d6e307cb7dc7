package api

import (
	"time"

	"github.com/samcharles93/fixq/pkg/fqp"
	"github.com/samcharles93/fixq/pkg/qparams"
)

// ParamsDTO carries one tensor's affine quantization parameters.
type ParamsDTO struct {
	Scale     float64 `json:"scale"`
	ZeroPoint int32   `json:"zero_point,omitempty"`
}

func (p ParamsDTO) params() qparams.Params {
	return qparams.Params{Scale: p.Scale, ZeroPoint: p.ZeroPoint}
}

// RequantizeRequest is a one-off requantization of a raw accumulator.
// Either an explicit shift or a fan-in (for shift selection against the
// register width) must be supplied.
type RequantizeRequest struct {
	Accumulator int64     `json:"accumulator"`
	Weights     ParamsDTO `json:"weights"`
	Input       ParamsDTO `json:"input"`
	Output      ParamsDTO `json:"output"`
	Bias        int64     `json:"bias,omitempty"`

	Shift        *uint `json:"shift,omitempty"`
	FanIn        int   `json:"fan_in,omitempty"`
	RegisterBits int   `json:"register_bits,omitempty"`
}

// RequantizeResponse reports the output code and the integer arithmetic that
// produced it.
type RequantizeResponse struct {
	Value           int32   `json:"value"`
	Mantissa        int64   `json:"mantissa"`
	Shift           uint    `json:"shift"`
	M               float64 `json:"m"`
	AccumulatorBits int     `json:"accumulator_bits,omitempty"`
}

// LayerDTO is the JSON view of one prepared layer record.
type LayerDTO struct {
	Name     string  `json:"name"`
	FanIn    uint32  `json:"fan_in"`
	Shift    uint32  `json:"shift"`
	Mantissa int64   `json:"mantissa"`
	M        float64 `json:"m"`

	Weights ParamsDTO `json:"weights"`
	Input   ParamsDTO `json:"input"`
	Output  ParamsDTO `json:"output"`
}

func layerDTO(r fqp.LayerRecord) LayerDTO {
	return LayerDTO{
		Name:     r.Name,
		FanIn:    r.FanIn,
		Shift:    r.Shift,
		Mantissa: r.Mantissa,
		M:        r.WScale * r.XScale / r.YScale,
		Weights:  ParamsDTO{Scale: r.WScale, ZeroPoint: r.WZero},
		Input:    ParamsDTO{Scale: r.XScale, ZeroPoint: r.XZero},
		Output:   ParamsDTO{Scale: r.YScale, ZeroPoint: r.YZero},
	}
}

// PlanResponse is the stored result of preparing a calibration document.
type PlanResponse struct {
	ID        string     `json:"id"`
	Object    string     `json:"object"`
	CreatedAt int64      `json:"created_at"`
	Model     string     `json:"model,omitempty"`
	Layers    []LayerDTO `json:"layers"`
}

// ResponseError is the error envelope returned by every failing endpoint.
type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}

func planResponse(p *storedPlan) PlanResponse {
	layers := make([]LayerDTO, len(p.Records))
	for i, r := range p.Records {
		layers[i] = layerDTO(r)
	}
	return PlanResponse{
		ID:        p.ID,
		Object:    "requant.plan",
		CreatedAt: p.CreatedAt.Unix(),
		Model:     p.Model,
		Layers:    layers,
	}
}

type storedPlan struct {
	ID        string
	Model     string
	CreatedAt time.Time
	Records   []fqp.LayerRecord
}
