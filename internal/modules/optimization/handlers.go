package optimization

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/marketdata"
	"github.com/aristath/frontier/pkg/qp"
)

// Handler handles HTTP requests for the optimization module
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new optimization handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "optimization").Logger(),
	}
}

// RegisterRoutes mounts the optimization endpoints
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/optimize", h.HandleOptimize)
	r.Post("/frontier", h.HandleFrontier)
	r.Post("/allocation/discrete", h.HandleDiscrete)
	r.Get("/runs", h.HandleListRuns)
	r.Get("/runs/{id}", h.HandleGetRun)
	r.Delete("/runs/{id}", h.HandleDeleteRun)
}

// HandleOptimize handles POST /api/optimize
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.service.Optimize(r.Context(), req)
	if err != nil {
		h.writeAllocationError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleFrontier handles POST /api/frontier
func (h *Handler) HandleFrontier(w http.ResponseWriter, r *http.Request) {
	var req FrontierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.service.Frontier(r.Context(), req)
	if err != nil {
		h.writeAllocationError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleDiscrete handles POST /api/allocation/discrete
func (h *Handler) HandleDiscrete(w http.ResponseWriter, r *http.Request) {
	var req DiscreteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.service.Discrete(r.Context(), req)
	if err != nil {
		h.writeAllocationError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleListRuns handles GET /api/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.service.Runs().List(0)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []domain.Run{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// HandleGetRun handles GET /api/runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, payload, err := h.service.GetRunPayload(id)
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			h.writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to load run")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":         rec.ID,
		"kind":       rec.Kind,
		"symbols":    rec.Symbols,
		"params":     rec.Params,
		"created_at": rec.CreatedAt,
		"result":     payload,
	})
}

// HandleDeleteRun handles DELETE /api/runs/{id}
func (h *Handler) HandleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Runs().Delete(id); err != nil {
		if errors.Is(err, ErrRunNotFound) {
			h.writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to delete run")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": id})
}

// writeAllocationError maps service errors to HTTP statuses: bad input
// is the caller's fault, an infeasible problem is a well-formed request
// with no solution, everything else is a server failure.
func (h *Handler) writeAllocationError(w http.ResponseWriter, err error) {
	var insufficient *marketdata.InsufficientHistoryError
	switch {
	case errors.Is(err, ErrRunNotFound):
		h.writeError(w, http.StatusNotFound, "run not found")
	case IsInputError(err), errors.As(err, &insufficient):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, qp.ErrInfeasible), errors.Is(err, ErrNoAssetBeatsRiskFree):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error().Err(err).Msg("Optimization request failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// HTTP helpers

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]interface{}{"error": message})
}
