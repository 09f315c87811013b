package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"civicconnect-backend/api/internal/models"
	"civicconnect-backend/shared/logx"
	"civicconnect-backend/shared/workflow"
)

type memStore struct {
	complaints map[uuid.UUID]models.Complaint
	listed     []models.Complaint
}

func newMemStore(complaints ...models.Complaint) *memStore {
	s := &memStore{complaints: make(map[uuid.UUID]models.Complaint)}
	for _, c := range complaints {
		s.complaints[c.ID] = c
	}
	return s
}

func (s *memStore) Create(_ context.Context, c models.Complaint) (models.Complaint, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = workflow.ComplaintStatusPending
	}
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	s.complaints[c.ID] = c
	return c, nil
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (models.Complaint, error) {
	c, ok := s.complaints[id]
	if !ok {
		return models.Complaint{}, pgx.ErrNoRows
	}
	return c, nil
}

func (s *memStore) List(context.Context, string, string, int, int) ([]models.Complaint, error) {
	return s.listed, nil
}

func (s *memStore) UpdateStatus(_ context.Context, id uuid.UUID, status string) (models.Complaint, error) {
	c, ok := s.complaints[id]
	if !ok {
		return models.Complaint{}, pgx.ErrNoRows
	}
	c.Status = status
	s.complaints[id] = c
	return c, nil
}

func (s *memStore) Assign(_ context.Context, id uuid.UUID, department string, assignedTo string) (models.Complaint, error) {
	c, ok := s.complaints[id]
	if !ok {
		return models.Complaint{}, pgx.ErrNoRows
	}
	c.Department = department
	if assignedTo != "" {
		c.AssignedTo = &assignedTo
	}
	c.Status = workflow.ComplaintStatusAssigned
	s.complaints[id] = c
	return c, nil
}

func (s *memStore) UpdateVerification(_ context.Context, id uuid.UUID, v models.MLVerification) (models.Complaint, error) {
	c, ok := s.complaints[id]
	if !ok {
		return models.Complaint{}, pgx.ErrNoRows
	}
	c.MLVerification = v
	s.complaints[id] = c
	return c, nil
}

func (s *memStore) ResetVerification(_ context.Context, id uuid.UUID) (models.Complaint, error) {
	c, ok := s.complaints[id]
	if !ok {
		return models.Complaint{}, pgx.ErrNoRows
	}
	c.MLVerification = models.MLVerification{
		Severity: "low",
		Pending:  true,
		Status:   workflow.MLStatusPending,
	}
	s.complaints[id] = c
	return c, nil
}

type recordingEnqueuer struct {
	queued []uuid.UUID
	err    error
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, c models.Complaint) (bool, error) {
	if e.err != nil {
		return false, e.err
	}
	e.queued = append(e.queued, c.ID)
	return true, nil
}

func newComplaintsMux(store ComplaintStore, enq VerificationEnqueuer) *http.ServeMux {
	mux := http.NewServeMux()
	ComplaintsHandler{
		Store:    store,
		Enqueuer: enq,
		Logger:   logx.New("handlers-test", "test", "", "error"),
	}.Register(mux)
	return mux
}

func TestCreateComplaintValidation(t *testing.T) {
	mux := newComplaintsMux(newMemStore(), &recordingEnqueuer{})

	body := `{"title":"","description":"","locationText":"","imageUrl":"","reporterId":""}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/complaints", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Missing []string `json:"missing"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if envelope.Error.Code != "INVALID_ARGUMENT" {
		t.Fatalf("expected INVALID_ARGUMENT, got %q", envelope.Error.Code)
	}
	if len(envelope.Error.Details.Missing) != 5 {
		t.Fatalf("expected all five fields flagged, got %v", envelope.Error.Details.Missing)
	}
}

func TestCreateComplaintClassifiesAndQueues(t *testing.T) {
	store := newMemStore()
	enq := &recordingEnqueuer{}
	mux := newComplaintsMux(store, enq)

	body := `{"title":"Pothole on Elm Street","description":"deep crack in the asphalt","locationText":"Elm St 4","imageUrl":"https://img/1.jpg","reporterId":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/complaints", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created createComplaintResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode complaint: %v", err)
	}
	if created.Category != "pothole" {
		t.Fatalf("expected category pothole, got %q", created.Category)
	}
	if !created.QueuedForVerification {
		t.Fatalf("expected queuedForVerification true, body %s", rec.Body.String())
	}
	if len(enq.queued) != 1 || enq.queued[0] != created.ID {
		t.Fatalf("expected complaint queued for verification, got %v", enq.queued)
	}
}

func TestCreateComplaintSurvivesEnqueueFailure(t *testing.T) {
	store := newMemStore()
	enq := &recordingEnqueuer{err: context.DeadlineExceeded}
	mux := newComplaintsMux(store, enq)

	body := `{"title":"Pothole","description":"road damage","locationText":"x","imageUrl":"y","reporterId":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/complaints", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("enqueue failure must not fail the request, got %d", rec.Code)
	}
	var created createComplaintResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode complaint: %v", err)
	}
	if created.QueuedForVerification {
		t.Fatalf("expected queuedForVerification false when enqueue fails")
	}
}

func TestGetComplaintNotFound(t *testing.T) {
	mux := newComplaintsMux(newMemStore(), &recordingEnqueuer{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/complaints/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestUpdateStatusRejectsUnknown(t *testing.T) {
	c := models.Complaint{ID: uuid.New(), Status: workflow.ComplaintStatusPending}
	mux := newComplaintsMux(newMemStore(c), &recordingEnqueuer{})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/complaints/"+c.ID.String()+"/status",
		strings.NewReader(`{"status":"Escalated"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUpdateStatusOK(t *testing.T) {
	c := models.Complaint{ID: uuid.New(), Status: workflow.ComplaintStatusPending}
	store := newMemStore(c)
	mux := newComplaintsMux(store, &recordingEnqueuer{})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/complaints/"+c.ID.String()+"/status",
		strings.NewReader(`{"status":"In Progress"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.complaints[c.ID].Status != workflow.ComplaintStatusInProgress {
		t.Fatalf("status not updated: %q", store.complaints[c.ID].Status)
	}
}

func TestReverifyRejectsActiveVerification(t *testing.T) {
	c := models.Complaint{
		ID:     uuid.New(),
		Status: workflow.ComplaintStatusPending,
		MLVerification: models.MLVerification{
			Pending: true,
			Status:  workflow.MLStatusProcessing,
		},
	}
	mux := newComplaintsMux(newMemStore(c), &recordingEnqueuer{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/complaints/"+c.ID.String()+"/reverify", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for in-flight verification, got %d", rec.Code)
	}
}

func TestReverifyResetsTerminalComplaint(t *testing.T) {
	analysis := "YOLO model did not detect any potholes in the image."
	c := models.Complaint{
		ID:          uuid.New(),
		Title:       "Pothole on Main St",
		Description: "crack in the road",
		Status:      workflow.ComplaintStatusPending,
		MLVerification: models.MLVerification{
			Status:     workflow.MLStatusFailed,
			Analysis:   &analysis,
			Confidence: 0.1,
		},
	}
	store := newMemStore(c)
	enq := &recordingEnqueuer{}
	mux := newComplaintsMux(store, enq)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/complaints/"+c.ID.String()+"/reverify", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	got := store.complaints[c.ID].MLVerification
	if !got.Pending || got.Status != workflow.MLStatusPending || got.Verified || got.Confidence != 0 {
		t.Fatalf("sub-record not reset: %#v", got)
	}
	if len(enq.queued) != 1 {
		t.Fatalf("expected complaint requeued, got %v", enq.queued)
	}
}
