package api

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"golang.org/x/time/rate"

	"github.com/samcharles93/fixq/internal/calib"
	"github.com/samcharles93/fixq/pkg/requant"
)

// Server exposes requantization arithmetic and plan preparation over HTTP.
type Server struct {
	store   *PlanStore
	clock   func() time.Time
	limiter *rate.Limiter
}

// ServerConfig tunes the mutation-route rate limit.
type ServerConfig struct {
	// RateLimit is requests per second for plan preparation and one-off
	// requantization. Zero means the default of 20/s with burst 40.
	RateLimit rate.Limit
	Burst     int
}

func NewServer(store *PlanStore, cfg ServerConfig) *Server {
	if store == nil {
		store = NewPlanStore()
	}
	limit := cfg.RateLimit
	burst := cfg.Burst
	if limit <= 0 {
		limit = 20
	}
	if burst <= 0 {
		burst = 40
	}
	return &Server{
		store:   store,
		clock:   time.Now,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/requantize", s.handleRequantize, s.rateLimit)
	e.POST("/v1/plans", s.handleCreatePlan, s.rateLimit)
	e.GET("/v1/plans/:id", s.handleGetPlan)
	e.DELETE("/v1/plans/:id", s.handleDeletePlan)
}

func (s *Server) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		if !s.limiter.Allow() {
			return writeError(c, http.StatusTooManyRequests, "rate_limit_error",
				"too many requests")
		}
		return next(c)
	}
}

func (s *Server) handleRequantize(c *echo.Context) error {
	req, err := decodeJSON[RequantizeRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	w := req.Weights.params()
	x := req.Input.params()
	y := req.Output.params()

	var (
		shift   uint
		accBits int
	)
	switch {
	case req.Shift != nil:
		shift = *req.Shift
	case req.FanIn > 0:
		bits := req.RegisterBits
		if bits <= 0 {
			bits = 32
		}
		accBits = requant.AccumulatorBits(req.FanIn)
		shift, err = requant.SelectShift(bits, accBits)
		if err != nil {
			return writeBadRequest(c, err.Error())
		}
	default:
		return writeBadRequest(c, "either shift or fan_in is required")
	}

	value, err := requant.Requantize(req.Accumulator, w, x, y, req.Bias, shift)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	m := w.Scale * x.Scale / y.Scale
	return c.JSON(http.StatusOK, RequantizeResponse{
		Value:           value,
		Mantissa:        int64(math.Round(m * math.Exp2(float64(shift)))),
		Shift:           shift,
		M:               m,
		AccumulatorBits: accBits,
	})
}

func (s *Server) handleCreatePlan(c *echo.Context) error {
	doc, err := calib.Decode(c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	records, err := calib.BuildPlans(doc, 0)
	if err != nil {
		// Preparation failures (overflow risk, degenerate multiplier, bias
		// scale mismatch) are configuration errors in the uploaded document.
		if errors.Is(err, requant.ErrOverflowRisk) ||
			errors.Is(err, requant.ErrDegenerateMultiplier) ||
			errors.Is(err, requant.ErrBiasScale) {
			return writeError(c, http.StatusUnprocessableEntity, "preparation_error", err.Error())
		}
		return writeBadRequest(c, err.Error())
	}

	p := s.store.Create(doc.Model, records, s.clock())
	return c.JSON(http.StatusOK, planResponse(p))
}

func (s *Server) handleGetPlan(c *echo.Context) error {
	p, ok := s.store.Get(c.Param("id"))
	if !ok {
		return writeNotFound(c, "no plan with that ID")
	}
	return c.JSON(http.StatusOK, planResponse(p))
}

func (s *Server) handleDeletePlan(c *echo.Context) error {
	id := c.Param("id")
	if !s.store.Delete(id) {
		return writeNotFound(c, "no plan with that ID")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"id":      id,
		"object":  "requant.plan.deleted",
		"deleted": true,
	})
}
