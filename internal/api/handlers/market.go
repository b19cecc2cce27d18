package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/internal/macro"
	"github.com/wonny/alphaterminal/backend/internal/sentiment"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
)

// MarketHandler serves the macro context and sentiment baselines
type MarketHandler struct {
	macro     *macro.Builder
	sentiment *sentiment.Screener // nil without a mention provider
	logger    *logger.Logger
}

// NewMarketHandler creates a new market handler. screener may be nil.
func NewMarketHandler(builder *macro.Builder, screener *sentiment.Screener, log *logger.Logger) *MarketHandler {
	return &MarketHandler{
		macro:     builder,
		sentiment: screener,
		logger:    log,
	}
}

// GetMacro returns the current macro context
// GET /api/macro?refresh=true
func (h *MarketHandler) GetMacro(w http.ResponseWriter, r *http.Request) {
	mc, err := h.macro.Context(r.Context(), parseBool(r, "refresh"))
	if err != nil {
		h.logger.WithError(err).Warn("Macro context unavailable")
		respondError(w, http.StatusServiceUnavailable, "macro context unavailable")
		return
	}
	respondJSON(w, http.StatusOK, mc)
}

// GetSentiments lists every tracked sentiment baseline
// GET /api/sentiment
func (h *MarketHandler) GetSentiments(w http.ResponseWriter, r *http.Request) {
	if h.sentiment == nil {
		respondError(w, http.StatusNotImplemented, "sentiment screening is not configured")
		return
	}
	states := h.sentiment.States()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"states": states,
		"count":  len(states),
	})
}

// GetSentiment returns a ticker's baseline and last classification.
// Reading does not observe: the baseline only moves during runs.
// GET /api/sentiment/{ticker}
func (h *MarketHandler) GetSentiment(w http.ResponseWriter, r *http.Request) {
	if h.sentiment == nil {
		respondError(w, http.StatusNotImplemented, "sentiment screening is not configured")
		return
	}

	ticker := contracts.NormalizeTicker(mux.Vars(r)["ticker"])
	state, ok := h.sentiment.State(ticker)
	if !ok {
		respondError(w, http.StatusNotFound, "ticker has no sentiment baseline")
		return
	}
	respondJSON(w, http.StatusOK, state)
}
