package handlers

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/isdelr/spacemate-auth/internal/api/response"
	"github.com/isdelr/spacemate-auth/internal/monitoring"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ProbeSource exposes the latest background store probe.
type ProbeSource interface {
	LastProbe() (monitoring.ProbeResult, bool)
}

// HealthHandler reports process and store status.
type HealthHandler struct {
	store       monitoring.Pinger
	probes      ProbeSource
	environment string
	version     string
	started     time.Time
	now         func() time.Time
}

// NewHealthHandler creates a new HealthHandler. probes may be nil.
func NewHealthHandler(store monitoring.Pinger, probes ProbeSource, environment, version string) *HealthHandler {
	return &HealthHandler{
		store:       store,
		probes:      probes,
		environment: environment,
		version:     version,
		started:     time.Now(),
		now:         time.Now,
	}
}

// MemoryStats is the memory section of a health snapshot, in bytes.
type MemoryStats struct {
	RSS   uint64 `json:"rss"`
	Total uint64 `json:"total"`
}

// HealthData is the health snapshot.
type HealthData struct {
	Status      string                  `json:"status"`
	Timestamp   time.Time               `json:"timestamp"`
	Environment string                  `json:"environment"`
	Uptime      float64                 `json:"uptime"`
	Memory      MemoryStats             `json:"memory"`
	Database    string                  `json:"database"`
	LastProbe   *monitoring.ProbeResult `json:"lastProbe,omitempty"`
	Version     string                  `json:"version"`
}

// Check handles the health probe. The store is pinged on every call; the
// background probe result is attached for context.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	data := HealthData{
		Status:      "healthy",
		Timestamp:   now.UTC(),
		Environment: h.environment,
		Uptime:      now.Sub(h.started).Seconds(),
		Memory:      readMemory(r.Context()),
		Database:    "connected",
		Version:     h.version,
	}
	if h.probes != nil {
		if last, ok := h.probes.LastProbe(); ok {
			data.LastProbe = &last
		}
	}

	if err := h.store.Ping(r.Context()); err != nil {
		log.Error().Err(err).Msg("Health check failed: store unreachable")
		data.Status = "unhealthy"
		data.Database = "disconnected"
		response.ErrorWithData(w, http.StatusServiceUnavailable, "Server health check failed - Database disconnected", data)
		return
	}

	response.Success(w, http.StatusOK, "Server is running healthy!", data)
}

func readMemory(ctx context.Context) MemoryStats {
	var stats MemoryStats
	if p, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if info, err := p.MemoryInfoWithContext(ctx); err == nil {
			stats.RSS = info.RSS
		}
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.Total = vm.Total
	}
	return stats
}
