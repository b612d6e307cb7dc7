package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"
	"golang.org/x/time/rate"
)

func newTestEcho(cfg ServerConfig) *echo.Echo {
	server := NewServer(NewPlanStore(), cfg)
	e := echo.New()
	server.Register(e)
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

const requantBody = `{
  "accumulator": 7091,
  "weights": {"scale": 0.02182667888700962, "zero_point": 121},
  "input": {"scale": 0.0078125, "zero_point": 128},
  "output": {"scale": 0.023528477177023888},
  "shift": 11
}`

func TestRequantizeExplicitShift(t *testing.T) {
	t.Parallel()

	e := newTestEcho(ServerConfig{})
	rec := doJSON(t, e, http.MethodPost, "/v1/requantize", requantBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}

	var resp RequantizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Value != 51 {
		t.Errorf("value: got %d, want 51", resp.Value)
	}
	if resp.Mantissa != 15 || resp.Shift != 11 {
		t.Errorf("decomposition: got Mo=%d n=%d, want Mo=15 n=11", resp.Mantissa, resp.Shift)
	}
}

func TestRequantizeSelectsShiftFromFanIn(t *testing.T) {
	t.Parallel()

	body := strings.Replace(requantBody, `"shift": 11`, `"fan_in": 27`, 1)
	e := newTestEcho(ServerConfig{})
	rec := doJSON(t, e, http.MethodPost, "/v1/requantize", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp RequantizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Shift != 10 || resp.AccumulatorBits != 22 {
		t.Errorf("got n=%d accBits=%d, want n=10 accBits=22", resp.Shift, resp.AccumulatorBits)
	}
}

func TestRequantizeRejectsMissingShiftAndFanIn(t *testing.T) {
	t.Parallel()

	body := strings.Replace(requantBody, `"shift": 11`, `"bias": 0`, 1)
	e := newTestEcho(ServerConfig{})
	rec := doJSON(t, e, http.MethodPost, "/v1/requantize", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRequantizeRejectsInvalidScale(t *testing.T) {
	t.Parallel()

	body := strings.Replace(requantBody, "0.02182667888700962", "0", 1)
	e := newTestEcho(ServerConfig{})
	rec := doJSON(t, e, http.MethodPost, "/v1/requantize", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
}

const calibrationBody = `{
  "model": "mobilenet_cifar10",
  "register_bits": 32,
  "layers": [
    {
      "name": "conv2d/stem",
      "fan_in": 27,
      "weights": {"scale": 0.02182667888700962, "zero_point": 121},
      "input": {"scale": 0.0078125, "zero_point": 128},
      "output": {"scale": 0.023528477177023888}
    }
  ]
}`

func TestPlanLifecycle(t *testing.T) {
	t.Parallel()

	e := newTestEcho(ServerConfig{})
	createRec := doJSON(t, e, http.MethodPost, "/v1/plans", calibrationBody)
	if createRec.Code != http.StatusOK {
		t.Fatalf("create status: got %d body=%s", createRec.Code, createRec.Body.String())
	}

	var created PlanResponse
	if err := json.Unmarshal(createRec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	if created.ID == "" || !strings.HasPrefix(created.ID, "plan_") {
		t.Fatalf("plan ID: got %q", created.ID)
	}
	if len(created.Layers) != 1 || created.Layers[0].Shift != 10 {
		t.Fatalf("layers: got %+v", created.Layers)
	}

	getRec := doJSON(t, e, http.MethodGet, "/v1/plans/"+created.ID, "")
	if getRec.Code != http.StatusOK {
		t.Fatalf("get status: got %d", getRec.Code)
	}

	delRec := doJSON(t, e, http.MethodDelete, "/v1/plans/"+created.ID, "")
	if delRec.Code != http.StatusOK {
		t.Fatalf("delete status: got %d", delRec.Code)
	}

	missRec := doJSON(t, e, http.MethodGet, "/v1/plans/"+created.ID, "")
	if missRec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: got %d", missRec.Code)
	}
}

func TestPlanPreparationErrorsAreUnprocessable(t *testing.T) {
	t.Parallel()

	body := strings.Replace(calibrationBody, `"register_bits": 32`, `"register_bits": 20`, 1)
	e := newTestEcho(ServerConfig{})
	rec := doJSON(t, e, http.MethodPost, "/v1/plans", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestPlanBadJSONIsBadRequest(t *testing.T) {
	t.Parallel()

	e := newTestEcho(ServerConfig{})
	rec := doJSON(t, e, http.MethodPost, "/v1/plans", `{"layers": [`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rec.Code)
	}
}

func TestRateLimitReturns429(t *testing.T) {
	t.Parallel()

	e := newTestEcho(ServerConfig{RateLimit: rate.Limit(1e-9), Burst: 1})
	first := doJSON(t, e, http.MethodPost, "/v1/requantize", requantBody)
	if first.Code != http.StatusOK {
		t.Fatalf("first status: got %d", first.Code)
	}
	second := doJSON(t, e, http.MethodPost, "/v1/requantize", requantBody)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second status: got %d", second.Code)
	}
}
