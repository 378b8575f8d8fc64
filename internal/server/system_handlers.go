package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/scheduler"
)

// SystemHandlers handles system monitoring and job trigger endpoints.
// Jobs are addressed by their registered name, so the handlers hold
// only the scheduler.
type SystemHandlers struct {
	log       zerolog.Logger
	db        *database.DB
	scheduler *scheduler.Scheduler
	startedAt time.Time
}

// SystemConfig holds construction parameters for system handlers
type SystemConfig struct {
	Log       zerolog.Logger
	DB        *database.DB
	Scheduler *scheduler.Scheduler
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(cfg SystemConfig) *SystemHandlers {
	return &SystemHandlers{
		log:       cfg.Log.With().Str("component", "system_handlers").Logger(),
		db:        cfg.DB,
		scheduler: cfg.Scheduler,
		startedAt: time.Now(),
	}
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := map[string]interface{}{
		"status":         "running",
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"process": map[string]interface{}{
			"alloc_mb":   m.Alloc / 1024 / 1024,
			"sys_mb":     m.Sys / 1024 / 1024,
			"num_gc":     m.NumGC,
			"goroutines": runtime.NumGoroutine(),
		},
	}

	// Host stats are best-effort; a sandboxed environment may refuse them
	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		response["cpu_percent"] = percentages[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		response["memory"] = map[string]interface{}{
			"total_mb":     vm.Total / 1024 / 1024,
			"used_mb":      vm.Used / 1024 / 1024,
			"used_percent": vm.UsedPercent,
		}
	}
	if uptime, err := host.Uptime(); err == nil {
		response["host_uptime_seconds"] = uptime
	}

	if info, err := os.Stat(h.db.Path()); err == nil {
		response["database"] = map[string]interface{}{
			"path":    h.db.Path(),
			"size_mb": float64(info.Size()) / 1024 / 1024,
		}
	}

	response["jobs"] = h.scheduler.Jobs()

	h.writeJSON(w, response)
}

// HandleTriggerJob handles POST /api/system/jobs/{name}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	h.log.Info().Str("job", name).Msg("Manual job trigger")

	if err := h.scheduler.RunNow(name); err != nil {
		if errors.Is(err, scheduler.ErrUnknownJob) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("job", name).Msg("Failed to run job")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]string{
		"status": "success",
		"job":    name,
	})
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
