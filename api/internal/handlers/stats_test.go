package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"civicconnect-backend/api/internal/models"
)

type fakeStats struct {
	counts map[string][]models.CategoryCount
}

func (f fakeStats) ComplaintStats(ctx context.Context) (models.ComplaintStats, error) {
	return models.ComplaintStats{Total: 4, ByStatus: map[string]int64{"Pending": 3, "Completed": 1}}, nil
}

func (f fakeStats) VerificationStats(ctx context.Context) (models.VerificationStats, error) {
	return models.VerificationStats{
		ByMLStatus: map[string]int64{"completed": 2, "failed": 1},
		Verified:   1,
		Pending:    1,
	}, nil
}

func (f fakeStats) CountsBy(ctx context.Context, dimension string) ([]models.CategoryCount, error) {
	return f.counts[dimension], nil
}

type fakeActivity struct {
	complaints []models.Complaint
	lastLimit  int
}

func (f *fakeActivity) RecentActivity(ctx context.Context, limit int) ([]models.Complaint, error) {
	f.lastLimit = limit
	if limit < len(f.complaints) {
		return f.complaints[:limit], nil
	}
	return f.complaints, nil
}

func TestAnalyticsBundlesDimensions(t *testing.T) {
	h := StatsHandler{Stats: fakeStats{counts: map[string][]models.CategoryCount{
		"category":   {{Key: "pothole", Count: 3}, {Key: "garbage", Count: 1}},
		"department": {{Key: "Public Works", Count: 2}},
		"severity":   {{Key: "high", Count: 1}},
	}}}
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		ByCategory   []models.CategoryCount   `json:"byCategory"`
		ByDepartment []models.CategoryCount   `json:"byDepartment"`
		BySeverity   []models.CategoryCount   `json:"bySeverity"`
		Verification models.VerificationStats `json:"verification"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.ByCategory) != 2 || body.ByCategory[0].Key != "pothole" {
		t.Fatalf("unexpected byCategory: %+v", body.ByCategory)
	}
	if len(body.ByDepartment) != 1 || len(body.BySeverity) != 1 {
		t.Fatalf("missing dimensions: %+v", body)
	}
	if body.Verification.Verified != 1 {
		t.Fatalf("unexpected verification stats: %+v", body.Verification)
	}
}

func TestRecentActivityDefaultLimit(t *testing.T) {
	activity := &fakeActivity{complaints: []models.Complaint{
		{Title: "Pothole on Main St", UpdatedAt: time.Now()},
	}}
	h := StatsHandler{Stats: fakeStats{}, Activity: activity}
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/recent-activity", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if activity.lastLimit != 20 {
		t.Fatalf("default limit = %d, want 20", activity.lastLimit)
	}
	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 {
		t.Fatalf("count = %d", body.Count)
	}
}
