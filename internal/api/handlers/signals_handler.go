package handlers

import (
	"context"
	"net/http"
	"strconv"

	"spotscan/internal/models"
)

// SignalLister is the read contract this handler needs, satisfied by
// *repository.Repository.
type SignalLister interface {
	ListRecentSignals(ctx context.Context, limit int) ([]models.Signal, error)
}

// SignalsHandler serves the recent-signals feed.
type SignalsHandler struct {
	lister SignalLister
}

func NewSignalsHandler(lister SignalLister) *SignalsHandler {
	return &SignalsHandler{lister: lister}
}

const defaultSignalsLimit = 50

// GetSignals handles GET /api/v1/signals?limit=N.
func (h *SignalsHandler) GetSignals(w http.ResponseWriter, r *http.Request) {
	limit := defaultSignalsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	signals, err := h.lister.ListRecentSignals(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "signals_fetch_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, signals)
}
