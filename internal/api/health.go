package api

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v3/process"
)

// HealthHandler reports liveness and process statistics.
type HealthHandler struct {
	started  time.Time
	sessions func() int
	agent    AgentStatus
}

// NewHealthHandler creates a health handler. sessions reports the number of
// live chat transcripts and may be nil.
func NewHealthHandler(a AgentStatus, sessions func() int) *HealthHandler {
	return &HealthHandler{started: time.Now(), sessions: sessions, agent: a}
}

type processStats struct {
	PID        int     `json:"pid"`
	CPUPercent float64 `json:"cpu_percent"`
	MemRSS     uint64  `json:"mem_rss"`
	NumThreads int32   `json:"num_threads"`
	Goroutines int     `json:"goroutines"`
}

type healthResponse struct {
	Status   string            `json:"status"`
	Uptime   string            `json:"uptime"`
	Checks   map[string]string `json:"checks"`
	Sessions int               `json:"sessions"`
	Process  *processStats     `json:"process,omitempty"`
}

// Health returns the health status of the API. Agent connectivity problems
// degrade the status but keep 200, since the UI stays usable.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "healthy",
		Uptime: time.Since(h.started).Round(time.Second).String(),
		Checks: map[string]string{"api": "ok"},
	}

	if h.agent != nil {
		status := h.agent.Status()
		resp.Checks["agent"] = string(status.State)
		if !status.Connected() {
			resp.Status = "degraded"
		}
	}
	if h.sessions != nil {
		resp.Sessions = h.sessions()
	}
	resp.Process = collectProcessStats()

	JSON(w, http.StatusOK, resp)
}

func collectProcessStats() *processStats {
	stats := &processStats{
		PID:        os.Getpid(),
		Goroutines: runtime.NumGoroutine(),
	}

	proc, err := process.NewProcess(int32(stats.PID))
	if err != nil {
		return stats
	}
	if pct, err := proc.CPUPercent(); err == nil {
		stats.CPUPercent = pct
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		stats.MemRSS = mem.RSS
	}
	if n, err := proc.NumThreads(); err == nil {
		stats.NumThreads = n
	}
	return stats
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Health)
}
