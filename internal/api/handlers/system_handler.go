package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Pinger is the liveness contract this handler needs from the
// database connection pool.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SystemHandler serves the health check and its system-resource detail.
type SystemHandler struct {
	db        Pinger
	startedAt time.Time
}

func NewSystemHandler(db Pinger, startedAt time.Time) *SystemHandler {
	return &SystemHandler{db: db, startedAt: startedAt}
}

type healthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	DatabaseOK    bool    `json:"database_ok"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemPercent    float64 `json:"mem_percent"`
}

// GetHealth handles GET /healthz: a 200 with a resource snapshot when
// the database is reachable, 503 otherwise.
func (h *SystemHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbOK := h.db == nil || h.db.PingContext(ctx) == nil

	resp := healthResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
		DatabaseOK:    dbOK,
	}

	if pct, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(pct) > 0 {
		resp.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		resp.MemPercent = vm.UsedPercent
	}

	status := http.StatusOK
	if !dbOK {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
