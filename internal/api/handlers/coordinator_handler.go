package handlers

import (
	"net/http"

	"spotscan/internal/coordinator"
	"spotscan/internal/signalbus"
)

// CoordinatorStatsProvider is the read contract this handler needs,
// satisfied by *coordinator.Coordinator.
type CoordinatorStatsProvider interface {
	Stats() (workers map[string]coordinator.WorkerStats, total int64)
}

// BusStatsProvider is the read contract for the signal bus panel,
// satisfied by *signalbus.Bus.
type BusStatsProvider interface {
	Stats() signalbus.Stats
}

// CoordinatorHandler serves operational visibility into rate-limit
// budget arbitration and signal-bus health.
type CoordinatorHandler struct {
	coord CoordinatorStatsProvider
	bus   BusStatsProvider
}

func NewCoordinatorHandler(coord CoordinatorStatsProvider, bus BusStatsProvider) *CoordinatorHandler {
	return &CoordinatorHandler{coord: coord, bus: bus}
}

type coordinatorStatsResponse struct {
	Workers map[string]coordinator.WorkerStats `json:"workers"`
	Total   int64                              `json:"total_requests"`
	Bus     signalbus.Stats                    `json:"bus"`
}

// GetStats handles GET /api/v1/coordinator/stats.
func (h *CoordinatorHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	workers, total := h.coord.Stats()
	resp := coordinatorStatsResponse{Workers: workers, Total: total}
	if h.bus != nil {
		resp.Bus = h.bus.Stats()
	}
	writeJSON(w, http.StatusOK, resp)
}
