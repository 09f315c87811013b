package ml

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"civicconnect-backend/shared/config"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(config.Config{
		MLGatewayURL:    srv.URL,
		MLHealthTimeout: 1000,
		MLDetectTimeout: 2000,
		MLRetryMax:      1,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestHealthOK(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	healthy, err := c.Health(context.Background())
	if err != nil || !healthy {
		t.Fatalf("Health = %v, %v", healthy, err)
	}
}

func TestHealthNon2xxIsUnhealthy(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	healthy, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("non-2xx must not be a transport error: %v", err)
	}
	if healthy {
		t.Fatalf("expected unhealthy")
	}
}

func TestProcessAllDecodesInserted(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/process_all" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Processed 2 images","inserted":[
			{"complaintId":"a1","status":"Accepted","potholeCount":3},
			{"complaintId":"b2","status":"Rejected","potholeCount":0}
		]}`))
	}))
	detections, err := c.ProcessAll(context.Background())
	if err != nil {
		t.Fatalf("ProcessAll: %v", err)
	}
	if len(detections) != 2 {
		t.Fatalf("expected 2 detections, got %d", len(detections))
	}
	if !detections[0].Accepted() || detections[0].PotholeCount != 3 {
		t.Fatalf("unexpected first detection: %+v", detections[0])
	}
	if detections[1].Accepted() {
		t.Fatalf("rejected detection must not be accepted")
	}
}

func TestProcessAllEmptyBatch(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	detections, err := c.ProcessAll(context.Background())
	if err != nil {
		t.Fatalf("404 means an empty batch, not an error: %v", err)
	}
	if detections != nil {
		t.Fatalf("expected no detections, got %v", detections)
	}
}

func TestProcessAllRetriesServerErrors(t *testing.T) {
	hits := 0
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"ok","inserted":[]}`))
	}))
	detections, err := c.ProcessAll(context.Background())
	if err != nil {
		t.Fatalf("ProcessAll after retry: %v", err)
	}
	if hits != 2 {
		t.Fatalf("expected one retry, got %d hits", hits)
	}
	if len(detections) != 0 {
		t.Fatalf("expected empty result, got %v", detections)
	}
}

func TestProcessAllExhaustedRetries(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	if _, err := c.ProcessAll(context.Background()); err == nil {
		t.Fatalf("expected error after exhausted retries")
	}
}
