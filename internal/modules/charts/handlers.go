package charts

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/modules/optimization"
)

// Handler serves rendered chart PNGs
type Handler struct {
	service      *Service
	optimization *optimization.Service
	log          zerolog.Logger
}

// NewHandler creates a new charts handler
func NewHandler(service *Service, optService *optimization.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service:      service,
		optimization: optService,
		log:          log.With().Str("handler", "charts").Logger(),
	}
}

// RegisterRoutes mounts the chart endpoints
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/charts/price/{symbol}", h.HandlePriceChart)
	r.Get("/charts/runs/{id}/frontier", h.HandleFrontierChart)
	r.Get("/charts/runs/{id}/weights", h.HandleWeightsChart)
}

// HandlePriceChart handles GET /api/charts/price/{symbol}?range=1y
func (h *Handler) HandlePriceChart(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
	if symbol == "" {
		h.writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	dateRange := r.URL.Query().Get("range")
	if dateRange == "" {
		dateRange = "1y"
	}

	png, err := h.service.PricePNG(r.Context(), symbol, dateRange)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to render price chart")
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.writePNG(w, png)
}

// HandleFrontierChart handles GET /api/charts/runs/{id}/frontier
func (h *Handler) HandleFrontierChart(w http.ResponseWriter, r *http.Request) {
	result, ok := h.loadFrontierRun(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	png, err := h.service.FrontierPNG(result)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to render frontier chart")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writePNG(w, png)
}

// HandleWeightsChart handles GET /api/charts/runs/{id}/weights.
// For frontier runs ?which=max_sharpe (default) or min_volatility picks
// which anchoring portfolio to render.
func (h *Handler) HandleWeightsChart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	_, payload, err := h.optimization.GetRunPayload(id)
	if err != nil {
		h.writeRunError(w, id, err)
		return
	}

	var (
		weights map[string]float64
		title   string
	)
	switch result := payload.(type) {
	case *optimization.OptimizeResult:
		weights = result.Weights
		title = "Weights • " + string(result.Strategy)
	case *optimization.FrontierRunResult:
		which := r.URL.Query().Get("which")
		if which == "" {
			which = "max_sharpe"
		}
		switch which {
		case "max_sharpe":
			weights = result.MaxSharpe.Weights
			title = "Weights • max sharpe"
		case "min_volatility":
			weights = result.MinVolatility.Weights
			title = "Weights • min volatility"
		default:
			h.writeError(w, http.StatusBadRequest, "unknown portfolio "+which)
			return
		}
	default:
		h.writeError(w, http.StatusBadRequest, "run has no weights to render")
		return
	}

	png, err := h.service.WeightsPNG(weights, title)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to render weights chart")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writePNG(w, png)
}

func (h *Handler) loadFrontierRun(w http.ResponseWriter, id string) (*optimization.FrontierRunResult, bool) {
	_, payload, err := h.optimization.GetRunPayload(id)
	if err != nil {
		h.writeRunError(w, id, err)
		return nil, false
	}
	result, ok := payload.(*optimization.FrontierRunResult)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "run is not a frontier run")
		return nil, false
	}
	return result, true
}

func (h *Handler) writeRunError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, optimization.ErrRunNotFound) {
		h.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	h.log.Error().Err(err).Str("run_id", id).Msg("Failed to load run")
	h.writeError(w, http.StatusInternalServerError, err.Error())
}

func (h *Handler) writePNG(w http.ResponseWriter, png []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.log.Error().Err(err).Msg("Failed to write PNG response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
