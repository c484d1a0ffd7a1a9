package handlers

import (
	"context"
	"net/http"

	"spotscan/internal/selector"
)

// EmergencyStopper is the write contract this handler needs, satisfied
// by *risk.Loop.
type EmergencyStopper interface {
	EmergencyStopAll(ctx context.Context, reason string) error
}

// TradingToggle starts and stops new-entry acceptance without touching
// already-open positions, satisfied by *trading.Engine.
type TradingToggle interface {
	EmergencyStop()
	Resume()
}

// Revalidator forces an immediate symbol-universe re-selection outside
// its normal schedule, satisfied by *selector.Selector.
type Revalidator interface {
	Select(ctx context.Context, forceRefresh bool) ([]selector.Candidate, error)
}

// ControlHandler exposes operator actions that don't fit the
// resource-oriented routes: start/stop, the panic button, and a forced
// re-selection of the trading universe.
type ControlHandler struct {
	risk    EmergencyStopper
	engine  TradingToggle
	revalid Revalidator
}

func NewControlHandler(risk EmergencyStopper, engine TradingToggle, revalid Revalidator) *ControlHandler {
	return &ControlHandler{risk: risk, engine: engine, revalid: revalid}
}

// PostStop halts new trade entries; open trades continue under
// internal/risk's management.
func (h *ControlHandler) PostStop(w http.ResponseWriter, r *http.Request) {
	h.engine.EmergencyStop()
	writeJSON(w, http.StatusOK, SuccessResponse{Message: "new trade entries halted"})
}

// PostStart resumes new trade entries after a PostStop.
func (h *ControlHandler) PostStart(w http.ResponseWriter, r *http.Request) {
	h.engine.Resume()
	writeJSON(w, http.StatusOK, SuccessResponse{Message: "trade entries resumed"})
}

// PostForceRevalidate forces an immediate symbol-universe re-selection,
// bypassing the normal refresh interval.
func (h *ControlHandler) PostForceRevalidate(w http.ResponseWriter, r *http.Request) {
	candidates, err := h.revalid.Select(r.Context(), true)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "revalidation_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Message: "universe revalidated", Data: len(candidates)})
}

type emergencyStopRequest struct {
	Reason string `json:"reason"`
}

// PostEmergencyStop handles POST /api/v1/control/emergency-stop. It
// closes every open position at market and halts new entries; a
// partial close failure is reported but does not change the response
// status, since the stop itself (halting new entries) always took
// effect.
func (h *ControlHandler) PostEmergencyStop(w http.ResponseWriter, r *http.Request) {
	var req emergencyStopRequest
	_ = jsonAPI.NewDecoder(r.Body).Decode(&req)
	if req.Reason == "" {
		req.Reason = "manual operator request"
	}

	if err := h.risk.EmergencyStopAll(r.Context(), req.Reason); err != nil {
		writeJSON(w, http.StatusOK, SuccessResponse{
			Message: "emergency stop engaged, with errors closing some positions",
			Data:    err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Message: "emergency stop engaged"})
}
