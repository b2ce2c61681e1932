package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"math"

	"kppsim/internal/app/engine"
	"kppsim/internal/app/params"
	"kppsim/internal/domain/plant"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// Simulator is the control surface the HTTP layer drives.
type Simulator interface {
	Start() error
	Stop() error
	Reset() error
	Step(dt float64) (plant.Snapshot, error)
	TriggerPulse()
	UpdateParams(updates map[string]any) (params.Params, error)
	SetLoad(torque float64) error
	LatestState() plant.Snapshot
	Params() params.Params
	Running() bool
	RunID() string
}

type Handler struct {
	Sim     Simulator
	Metrics metricsSnapshotProvider
	// AllowOrigin is sent as Access-Control-Allow-Origin; empty allows any.
	AllowOrigin string
}

func (h Handler) RegisterRoutes(s *server.Hertz) {
	s.Use(corsMiddleware(h.AllowOrigin))

	sim := s.Group("/api/sim")
	sim.POST("/start", h.start)
	sim.POST("/stop", h.stop)
	sim.POST("/reset", h.reset)
	sim.POST("/step", h.step)
	sim.POST("/pulse", h.pulse)
	sim.GET("/params", h.getParams)
	sim.POST("/params", h.updateParams)
	sim.POST("/load", h.setLoad)
	sim.GET("/state", h.state)

	s.GET("/ops/metrics", h.metrics)
}

type stepRequest struct {
	DT float64 `json:"dt"`
}

type loadRequest struct {
	Torque float64 `json:"torque"`
}

type lifecycleResponse struct {
	Running bool   `json:"running"`
	RunID   string `json:"run_id"`
}

func (h Handler) start(_ context.Context, ctx *app.RequestContext) {
	if err := h.Sim.Start(); err != nil {
		writeError(ctx, err)
		return
	}
	h.writeLifecycle(ctx)
}

func (h Handler) stop(_ context.Context, ctx *app.RequestContext) {
	if err := h.Sim.Stop(); err != nil {
		writeError(ctx, err)
		return
	}
	h.writeLifecycle(ctx)
}

func (h Handler) reset(_ context.Context, ctx *app.RequestContext) {
	if err := h.Sim.Reset(); err != nil {
		writeError(ctx, err)
		return
	}
	h.writeLifecycle(ctx)
}

func (h Handler) writeLifecycle(ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, lifecycleResponse{Running: h.Sim.Running(), RunID: h.Sim.RunID()})
}

func (h Handler) step(_ context.Context, ctx *app.RequestContext) {
	var body stepRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if body.DT < 0 || math.IsNaN(body.DT) {
		writeErrorBody(ctx, consts.StatusBadRequest, "bad_request", "dt must not be negative")
		return
	}
	snap, err := h.Sim.Step(body.DT)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeSnapshot(ctx, snap)
}

func (h Handler) pulse(_ context.Context, ctx *app.RequestContext) {
	h.Sim.TriggerPulse()
	ctx.JSON(consts.StatusOK, map[string]any{"triggered": true})
}

func (h Handler) getParams(_ context.Context, ctx *app.RequestContext) {
	writeParams(ctx, h.Sim.Params())
}

func (h Handler) updateParams(_ context.Context, ctx *app.RequestContext) {
	var body map[string]any
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	p, err := h.Sim.UpdateParams(body)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeParams(ctx, p)
}

func (h Handler) setLoad(_ context.Context, ctx *app.RequestContext) {
	var body loadRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if !hasJSONField(ctx.Request.Body(), "torque") {
		writeErrorBody(ctx, consts.StatusBadRequest, "bad_request", "torque is required")
		return
	}
	if err := h.Sim.SetLoad(body.Torque); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, map[string]any{"torque": body.Torque})
}

func (h Handler) state(_ context.Context, ctx *app.RequestContext) {
	writeSnapshot(ctx, h.Sim.LatestState())
}

type metricsSnapshotProvider interface {
	SnapshotAny() any
}

func (h Handler) metrics(_ context.Context, ctx *app.RequestContext) {
	if h.Metrics == nil {
		writeErrorBody(ctx, consts.StatusNotFound, "not_configured", "metrics provider not configured")
		return
	}
	ctx.JSON(consts.StatusOK, h.Metrics.SnapshotAny())
}

func writeSnapshot(ctx *app.RequestContext, snap plant.Snapshot) {
	m, err := snap.Map()
	if err != nil {
		writeErrorBody(ctx, consts.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	ctx.JSON(consts.StatusOK, m)
}

func writeParams(ctx *app.RequestContext, p params.Params) {
	m, err := p.Map()
	if err != nil {
		writeErrorBody(ctx, consts.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	ctx.JSON(consts.StatusOK, m)
}

func decodeJSON(ctx *app.RequestContext, out any) error {
	body := ctx.Request.Body()
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

func hasJSONField(body []byte, key string) bool {
	if len(body) == 0 {
		return false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return false
	}
	_, ok := m[key]
	return ok
}

func writeError(ctx *app.RequestContext, err error) {
	switch {
	case errors.Is(err, engine.ErrAlreadyRunning):
		writeErrorBody(ctx, consts.StatusConflict, "already_running", err.Error())
	case errors.Is(err, engine.ErrNotRunning):
		writeErrorBody(ctx, consts.StatusConflict, "not_running", err.Error())
	case errors.Is(err, params.ErrInvalidParams):
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_params", err.Error())
	case errors.Is(err, engine.ErrInvalidLoad):
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_load", err.Error())
	case errors.Is(err, engine.ErrTickPanicked):
		writeErrorBody(ctx, consts.StatusInternalServerError, "tick_failed", err.Error())
	default:
		writeErrorBody(ctx, consts.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeErrorBody(ctx *app.RequestContext, status int, code, message string) {
	ctx.JSON(status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
