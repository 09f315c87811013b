package verify

import (
	"testing"

	"github.com/google/uuid"
)

func TestQueueTrackIsIdempotent(t *testing.T) {
	q := NewQueue()
	id := uuid.New()
	if !q.Track(id, "Pothole on Main St", "pothole") {
		t.Fatalf("expected first track to insert")
	}
	if q.Track(id, "Pothole on Main St", "pothole") {
		t.Fatalf("expected second track to be a no-op")
	}
	if q.Len() != 1 {
		t.Fatalf("expected one entry, got %d", q.Len())
	}
}

func TestQueueMarkProcessingCountsAttempts(t *testing.T) {
	q := NewQueue()
	id := uuid.New()
	q.Track(id, "t", "pothole")
	q.MarkProcessing(id)
	q.MarkProcessing(id)

	snapshot := q.Snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("expected one entry, got %d", len(snapshot))
	}
	entry := snapshot[0]
	if entry.Status != "processing" || entry.AttemptCount != 2 || entry.LastAttemptAt == nil {
		t.Fatalf("unexpected entry: %#v", entry)
	}
}

func TestQueueRemove(t *testing.T) {
	q := NewQueue()
	id := uuid.New()
	q.Track(id, "t", "pothole")
	q.Remove(id)
	if q.Contains(id) || q.Len() != 0 {
		t.Fatalf("expected entry to be removed")
	}
	// removing twice must not panic
	q.Remove(id)
}
