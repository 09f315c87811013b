package verify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"civicconnect-backend/api/internal/models"
	"civicconnect-backend/shared/clients/ml"
	"civicconnect-backend/shared/logx"
	"civicconnect-backend/shared/workflow"
)

type fakeStore struct {
	mu          sync.Mutex
	complaints  map[uuid.UUID]models.Complaint
	results     map[uuid.UUID]models.MLVerification
	promotions  map[uuid.UUID]string
	pendingIDs  []uuid.UUID
	unprocessed []models.Complaint
}

func newFakeStore(complaints ...models.Complaint) *fakeStore {
	s := &fakeStore{
		complaints: make(map[uuid.UUID]models.Complaint),
		results:    make(map[uuid.UUID]models.MLVerification),
		promotions: make(map[uuid.UUID]string),
	}
	for _, c := range complaints {
		s.complaints[c.ID] = c
	}
	return s
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (models.Complaint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.complaints[id]
	if !ok {
		return models.Complaint{}, pgx.ErrNoRows
	}
	return c, nil
}

func (s *fakeStore) MarkVerificationPending(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.complaints[id]
	c.MLVerification.Pending = true
	c.MLVerification.Status = workflow.MLStatusPending
	s.complaints[id] = c
	s.pendingIDs = append(s.pendingIDs, id)
	return nil
}

func (s *fakeStore) MarkVerificationProcessing(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.complaints[id]
	c.MLVerification.Pending = true
	c.MLVerification.Status = workflow.MLStatusProcessing
	s.complaints[id] = c
	return nil
}

func (s *fakeStore) WriteVerificationResult(_ context.Context, id uuid.UUID, result models.MLVerification, promoteStatus string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[id] = result
	s.promotions[id] = promoteStatus
	c := s.complaints[id]
	c.MLVerification = result
	if promoteStatus != "" {
		c.Status = promoteStatus
	}
	s.complaints[id] = c
	return nil
}

func (s *fakeStore) ListUnprocessed(_ context.Context, limit int) ([]models.Complaint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.unprocessed) {
		limit = len(s.unprocessed)
	}
	return s.unprocessed[:limit], nil
}

type fakeGateway struct {
	healthy    bool
	healthErr  error
	detections []ml.Detection
	detectErr  error
	healthHits int
	detectHits int
}

func (g *fakeGateway) Health(context.Context) (bool, error) {
	g.healthHits++
	return g.healthy, g.healthErr
}

func (g *fakeGateway) ProcessAll(context.Context) ([]ml.Detection, error) {
	g.detectHits++
	return g.detections, g.detectErr
}

type fakeLocker struct {
	held map[string]bool
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(context.Context) error, bool, error) {
	if l.held[key] {
		return nil, false, nil
	}
	return func(context.Context) error { return nil }, true, nil
}

type fakeTasks struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (f *fakeTasks) EnqueueVerify(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	return nil
}

func testLogger() logx.Logger {
	return logx.New("verify-test", "test", "", "error")
}

func potholeComplaint() models.Complaint {
	return models.Complaint{
		ID:          uuid.New(),
		Title:       "Large pothole on Main Street",
		Description: "dangerous crater near the crossing",
		Status:      workflow.ComplaintStatusPending,
		Category:    "pothole",
		MLVerification: models.MLVerification{
			Pending: true,
			Status:  workflow.MLStatusPending,
		},
	}
}

func TestProcessOneVerifiedHighSeverity(t *testing.T) {
	c := potholeComplaint()
	store := newFakeStore(c)
	gw := &fakeGateway{
		healthy:    true,
		detections: []ml.Detection{{ComplaintID: c.ID.String(), Status: "Accepted", PotholeCount: 3}},
	}
	queue := NewQueue()
	queue.Track(c.ID, c.Title, c.Category)
	p := NewProcessor(store, gw, queue, &fakeLocker{}, nil, nil, testLogger(), time.Minute)

	if err := p.ProcessOne(context.Background(), c.ID); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	result := store.results[c.ID]
	if !result.Verified || result.Confidence != 0.95 || result.Severity != SeverityHigh {
		t.Fatalf("unexpected result: %#v", result)
	}
	if store.promotions[c.ID] != workflow.ComplaintStatusInProgress {
		t.Fatalf("expected promotion to In Progress, got %q", store.promotions[c.ID])
	}
	if queue.Contains(c.ID) {
		t.Fatalf("expected entry removed after terminal result")
	}
}

func TestProcessOneRejectedDetectionIsUnverified(t *testing.T) {
	c := potholeComplaint()
	store := newFakeStore(c)
	gw := &fakeGateway{
		healthy:    true,
		detections: []ml.Detection{{ComplaintID: c.ID.String(), Status: "Not Accepted", PotholeCount: 3}},
	}
	queue := NewQueue()
	queue.Track(c.ID, c.Title, c.Category)
	p := NewProcessor(store, gw, queue, &fakeLocker{}, nil, nil, testLogger(), time.Minute)

	if err := p.ProcessOne(context.Background(), c.ID); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	result := store.results[c.ID]
	if result.Verified || result.Confidence != 0.1 || result.Severity != SeverityLow {
		t.Fatalf("rejected image must not verify, got %#v", result)
	}
	if store.promotions[c.ID] != "" {
		t.Fatalf("rejected image must not promote, got %q", store.promotions[c.ID])
	}
}

func TestProcessOneGatewayUnhealthy(t *testing.T) {
	c := potholeComplaint()
	store := newFakeStore(c)
	gw := &fakeGateway{healthy: false, healthErr: errors.New("timeout")}
	queue := NewQueue()
	queue.Track(c.ID, c.Title, c.Category)
	p := NewProcessor(store, gw, queue, &fakeLocker{}, nil, nil, testLogger(), time.Minute)

	if err := p.ProcessOne(context.Background(), c.ID); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if gw.detectHits != 0 {
		t.Fatalf("detection must not run when gateway is unhealthy")
	}
	result := store.results[c.ID]
	if result.Status != workflow.MLStatusCompleted || result.Verified || result.Confidence != 0.1 {
		t.Fatalf("unexpected unavailable result: %#v", result)
	}
	// primary status untouched
	if store.complaints[c.ID].Status != workflow.ComplaintStatusPending {
		t.Fatalf("primary status must stay Pending, got %q", store.complaints[c.ID].Status)
	}
}

func TestProcessOneDetectErrorMarksFailed(t *testing.T) {
	c := potholeComplaint()
	store := newFakeStore(c)
	gw := &fakeGateway{healthy: true, detectErr: errors.New("connection reset")}
	queue := NewQueue()
	queue.Track(c.ID, c.Title, c.Category)
	p := NewProcessor(store, gw, queue, &fakeLocker{}, nil, nil, testLogger(), time.Minute)

	if err := p.ProcessOne(context.Background(), c.ID); err != nil {
		t.Fatalf("ProcessOne must contain gateway errors, got %v", err)
	}
	result := store.results[c.ID]
	if result.Status != workflow.MLStatusFailed || result.Pending {
		t.Fatalf("unexpected failed result: %#v", result)
	}
	if *result.Analysis != "ML processing failed: connection reset" {
		t.Fatalf("unexpected analysis: %q", *result.Analysis)
	}
	if queue.Contains(c.ID) {
		t.Fatalf("expected entry removed after failure")
	}
}

func TestProcessOneFirstResultFallback(t *testing.T) {
	c := potholeComplaint()
	store := newFakeStore(c)
	gw := &fakeGateway{
		healthy: true,
		detections: []ml.Detection{
			{ComplaintID: uuid.NewString(), Status: "Accepted", PotholeCount: 2},
			{ComplaintID: uuid.NewString(), Status: "Accepted", PotholeCount: 5},
		},
	}
	queue := NewQueue()
	queue.Track(c.ID, c.Title, c.Category)
	p := NewProcessor(store, gw, queue, &fakeLocker{}, nil, nil, testLogger(), time.Minute)

	if err := p.ProcessOne(context.Background(), c.ID); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	result := store.results[c.ID]
	if !result.Verified || result.Severity != SeverityMedium {
		t.Fatalf("expected first entry (count 2) to be used, got %#v", result)
	}
}

func TestProcessOneEmptyBatchIsNoDetection(t *testing.T) {
	c := potholeComplaint()
	store := newFakeStore(c)
	gw := &fakeGateway{healthy: true}
	queue := NewQueue()
	queue.Track(c.ID, c.Title, c.Category)
	p := NewProcessor(store, gw, queue, &fakeLocker{}, nil, nil, testLogger(), time.Minute)

	if err := p.ProcessOne(context.Background(), c.ID); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	result := store.results[c.ID]
	if result.Verified || result.Confidence != 0.1 || result.Status != workflow.MLStatusCompleted {
		t.Fatalf("unexpected no-detection result: %#v", result)
	}
}

func TestProcessOneSkipsWhenLeaseHeld(t *testing.T) {
	c := potholeComplaint()
	store := newFakeStore(c)
	gw := &fakeGateway{healthy: true}
	queue := NewQueue()
	locker := &fakeLocker{held: map[string]bool{lockKey(c.ID): true}}
	p := NewProcessor(store, gw, queue, locker, nil, nil, testLogger(), time.Minute)

	if err := p.ProcessOne(context.Background(), c.ID); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if gw.healthHits != 0 {
		t.Fatalf("expected no gateway call while lease is held")
	}
	if len(store.results) != 0 {
		t.Fatalf("expected no write while lease is held")
	}
}

func TestProcessOneDropsStaleTask(t *testing.T) {
	c := potholeComplaint()
	c.MLVerification = models.MLVerification{Status: workflow.MLStatusCompleted, Pending: false, Verified: true}
	store := newFakeStore(c)
	gw := &fakeGateway{healthy: true}
	queue := NewQueue()
	queue.Track(c.ID, c.Title, c.Category)
	p := NewProcessor(store, gw, queue, &fakeLocker{}, nil, nil, testLogger(), time.Minute)

	if err := p.ProcessOne(context.Background(), c.ID); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if gw.healthHits != 0 || len(store.results) != 0 {
		t.Fatalf("settled complaint must not be reprocessed")
	}
	if queue.Contains(c.ID) {
		t.Fatalf("stale entry must be dropped")
	}
}

func TestProcessOneMissingComplaint(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{healthy: true}
	queue := NewQueue()
	p := NewProcessor(store, gw, queue, &fakeLocker{}, nil, nil, testLogger(), time.Minute)

	if err := p.ProcessOne(context.Background(), uuid.New()); err != nil {
		t.Fatalf("missing complaint must not error, got %v", err)
	}
}
