package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/internal/snapshot"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
)

const (
	defaultTopLimit = 10
	maxTopLimit     = 100
)

// SnapshotArchive serves stored snapshots beyond the current one
type SnapshotArchive interface {
	Get(ctx context.Context, runID string) (*contracts.Snapshot, error)
	History(ctx context.Context, limit int) ([]snapshot.Entry, error)
}

// RankingHandler serves the published ranking snapshot
// ⭐ SSOT: 랭킹 API 핸들러는 이 구조체에서만
type RankingHandler struct {
	store   *snapshot.Store
	archive SnapshotArchive // nil without Postgres
	logger  *logger.Logger
}

// NewRankingHandler creates a new ranking handler. archive may be nil.
func NewRankingHandler(store *snapshot.Store, archive SnapshotArchive, log *logger.Logger) *RankingHandler {
	return &RankingHandler{
		store:   store,
		archive: archive,
		logger:  log,
	}
}

// GetRanking returns the full current snapshot
// GET /api/ranking
func (h *RankingHandler) GetRanking(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.latest(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// GetTop returns the best-ranked picks of the current snapshot
// GET /api/ranking/top?limit=10
func (h *RankingHandler) GetTop(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r, defaultTopLimit, maxTopLimit)
	if !ok {
		respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	snap, ok := h.latest(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":       snap.RunID,
		"timestamp":    snap.Timestamp,
		"partial":      snap.Partial,
		"total_ranked": snap.TotalRanked,
		"ranking":      snap.Top(limit),
	})
}

// GetPick returns one ticker's entry in the current snapshot
// GET /api/ranking/tickers/{ticker}
func (h *RankingHandler) GetPick(w http.ResponseWriter, r *http.Request) {
	ticker := contracts.NormalizeTicker(mux.Vars(r)["ticker"])

	snap, ok := h.latest(w, r)
	if !ok {
		return
	}
	for _, p := range snap.Ranking {
		if p.Ticker == ticker {
			respondJSON(w, http.StatusOK, p)
			return
		}
	}
	respondError(w, http.StatusNotFound, "ticker not ranked in the current snapshot")
}

// GetSnapshots lists stored snapshots, newest first
// GET /api/ranking/snapshots?limit=30
func (h *RankingHandler) GetSnapshots(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		respondError(w, http.StatusNotImplemented, "snapshot archive requires a database")
		return
	}
	limit, ok := parseLimit(r, snapshot.DefaultRetention, maxTopLimit)
	if !ok {
		respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	entries, err := h.archive.History(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list snapshots")
		respondError(w, http.StatusInternalServerError, "Failed to list snapshots")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"snapshots": entries,
		"count":     len(entries),
	})
}

// GetSnapshot returns a stored snapshot by run ID
// GET /api/ranking/snapshots/{id}
func (h *RankingHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		respondError(w, http.StatusNotImplemented, "snapshot archive requires a database")
		return
	}

	snap, err := h.archive.Get(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, contracts.ErrNoSnapshot) {
		respondError(w, http.StatusNotFound, "snapshot not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load snapshot")
		respondError(w, http.StatusInternalServerError, "Failed to load snapshot")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *RankingHandler) latest(w http.ResponseWriter, r *http.Request) (*contracts.Snapshot, bool) {
	snap, err := h.store.Latest(r.Context())
	if errors.Is(err, contracts.ErrNoSnapshot) {
		respondError(w, http.StatusNotFound, "no ranking published yet")
		return nil, false
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load latest snapshot")
		respondError(w, http.StatusInternalServerError, "Failed to load latest snapshot")
		return nil, false
	}
	return snap, true
}
