package handlers

import (
	"context"
	"net/http"

	"civicconnect-backend/api/internal/models"
	"civicconnect-backend/shared/httpx"
)

type StatsStore interface {
	ComplaintStats(ctx context.Context) (models.ComplaintStats, error)
	VerificationStats(ctx context.Context) (models.VerificationStats, error)
	CountsBy(ctx context.Context, dimension string) ([]models.CategoryCount, error)
}

type ActivityStore interface {
	RecentActivity(ctx context.Context, limit int) ([]models.Complaint, error)
}

type StatsHandler struct {
	Stats    StatsStore
	Activity ActivityStore
}

func (h StatsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/stats", h.overview)
	mux.HandleFunc("GET /api/v1/analytics", h.analytics)
	mux.HandleFunc("GET /api/v1/recent-activity", h.recentActivity)
}

func (h StatsHandler) overview(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Stats.ComplaintStats(r.Context())
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load stats", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}

func (h StatsHandler) analytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	byCategory, err := h.Stats.CountsBy(ctx, "category")
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load analytics", nil)
		return
	}
	byDepartment, err := h.Stats.CountsBy(ctx, "department")
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load analytics", nil)
		return
	}
	bySeverity, err := h.Stats.CountsBy(ctx, "severity")
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load analytics", nil)
		return
	}
	verification, err := h.Stats.VerificationStats(ctx)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load analytics", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"byCategory":   byCategory,
		"byDepartment": byDepartment,
		"bySeverity":   bySeverity,
		"verification": verification,
	})
}

func (h StatsHandler) recentActivity(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r.URL.Query().Get("limit"), 20)
	complaints, err := h.Activity.RecentActivity(r.Context(), limit)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load recent activity", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"activity": complaints,
		"count":    len(complaints),
	})
}
