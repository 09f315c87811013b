package verify

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"civicconnect-backend/api/internal/models"
	"civicconnect-backend/shared/workflow"
)

func TestReconcileSplitsByClassifier(t *testing.T) {
	pothole := potholeComplaint()
	pothole.MLVerification = models.MLVerification{}
	water := models.Complaint{
		ID:          uuid.New(),
		Title:       "Water Supply Issue",
		Description: "no water",
		Status:      workflow.ComplaintStatusPending,
	}
	store := newFakeStore(pothole, water)
	store.unprocessed = []models.Complaint{pothole, water}
	tasks := &fakeTasks{}
	queue := NewQueue()
	r := NewReconciler(store, NewEnqueuer(store, tasks, queue), queue, nil, testLogger(), 100)

	queued, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if queued != 1 {
		t.Fatalf("expected one queued complaint, got %d", queued)
	}
	if !queue.Contains(pothole.ID) || queue.Contains(water.ID) {
		t.Fatalf("only the pothole complaint should be tracked")
	}
	if store.results[water.ID].Status != workflow.MLStatusCompleted {
		t.Fatalf("non-target complaint should get a terminal result during the sweep")
	}
}

func TestReconcileEmptyStore(t *testing.T) {
	store := newFakeStore()
	queue := NewQueue()
	r := NewReconciler(store, NewEnqueuer(store, &fakeTasks{}, queue), queue, nil, testLogger(), 100)
	queued, err := r.Reconcile(context.Background())
	if err != nil || queued != 0 {
		t.Fatalf("expected empty sweep, queued=%d err=%v", queued, err)
	}
}
