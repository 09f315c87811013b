package handlers

import (
	"context"
	"net/http"

	"civicconnect-backend/api/internal/models"
	"civicconnect-backend/api/internal/verify"
	"civicconnect-backend/shared/httpx"
	"civicconnect-backend/shared/logx"
)

// Sweeper runs one reconcile pass and reports how many complaints it
// scheduled.
type Sweeper interface {
	Reconcile(ctx context.Context) (int, error)
}

type SnapshotCache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
}

type VerificationStatsStore interface {
	VerificationStats(ctx context.Context) (models.VerificationStats, error)
}

// MLHandler exposes the verification pipeline controls. The queue
// itself lives in the worker process; this side schedules attempts and
// reads the mirrored snapshot.
type MLHandler struct {
	Sweeps Sweeper
	Cache  SnapshotCache
	Stats  VerificationStatsStore
	Logger logx.Logger
}

func (h MLHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/ml/process-all", h.processAll)
	mux.HandleFunc("GET /api/v1/ml/queue", h.queue)
	mux.HandleFunc("GET /api/v1/ml/stats", h.stats)
}

// processAll sweeps unprocessed complaints immediately. The attempts
// themselves still run deferred in the worker, so this answers 202.
func (h MLHandler) processAll(w http.ResponseWriter, r *http.Request) {
	queued, err := h.Sweeps.Reconcile(r.Context())
	if err != nil {
		httpx.WriteError(w, r, http.StatusServiceUnavailable, "INTERNAL_ERROR", "failed to run verification sweep", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, map[string]any{
		"message": "verification sweep finished",
		"queued":  queued,
	})
}

func (h MLHandler) queue(w http.ResponseWriter, r *http.Request) {
	entries := []verify.Entry{}
	if h.Cache != nil {
		found, err := h.Cache.GetJSON(r.Context(), verify.QueueSnapshotKey, &entries)
		if err != nil {
			httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to read queue snapshot", nil)
			return
		}
		if !found {
			entries = []verify.Entry{}
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"queue": entries,
		"count": len(entries),
	})
}

func (h MLHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Stats.VerificationStats(r.Context())
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load verification stats", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}
