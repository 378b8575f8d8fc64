package marketdata

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles market data HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new market data handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "marketdata").Logger(),
	}
}

// RegisterRoutes mounts the price endpoints
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/prices/{symbol}", h.HandleGetPrices)
	r.Get("/prices", h.HandleListSymbols)
}

// HandleGetPrices returns cached closes for one symbol
// GET /api/prices/{symbol}?range=1y
func (h *Handler) HandleGetPrices(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
	if symbol == "" {
		h.writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	dateRange := r.URL.Query().Get("range")
	if dateRange == "" {
		dateRange = "1y"
	}

	points, err := h.service.GetChartPoints(r.Context(), symbol, dateRange)
	if err != nil {
		var insufficient *InsufficientHistoryError
		if errors.As(err, &insufficient) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get prices")
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"range":  dateRange,
		"points": points,
	})
}

// HandleListSymbols returns every cached symbol
// GET /api/prices
func (h *Handler) HandleListSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.service.repo.Symbols()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list symbols")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if symbols == nil {
		symbols = []string{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbols": symbols,
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
