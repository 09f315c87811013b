package verify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is the transient per-complaint tracking record. It is not
// persisted; the periodic sweep rebuilds the table after a restart.
type Entry struct {
	ComplaintID   uuid.UUID  `json:"complaintId"`
	Title         string     `json:"title"`
	Category      string     `json:"category"`
	Status        string     `json:"status"`
	QueuedAt      time.Time  `json:"queuedAt"`
	AttemptCount  int        `json:"attemptCount"`
	LastAttemptAt *time.Time `json:"lastAttemptAt"`
}

// Queue owns the in-process table of complaints awaiting verification.
// All mutation goes through its methods; nothing else touches the map.
type Queue struct {
	mu      sync.Mutex
	entries map[uuid.UUID]Entry
}

func NewQueue() *Queue {
	return &Queue{entries: make(map[uuid.UUID]Entry)}
}

// Track inserts an entry unless the complaint is already tracked.
func (q *Queue) Track(id uuid.UUID, title string, category string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.entries[id]; ok {
		return false
	}
	q.entries[id] = Entry{
		ComplaintID: id,
		Title:       title,
		Category:    category,
		Status:      "pending",
		QueuedAt:    time.Now().UTC(),
	}
	return true
}

func (q *Queue) MarkProcessing(id uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.entries[id]
	if !ok {
		return
	}
	now := time.Now().UTC()
	entry.Status = "processing"
	entry.AttemptCount++
	entry.LastAttemptAt = &now
	q.entries[id] = entry
}

func (q *Queue) Remove(id uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, id)
}

func (q *Queue) Contains(id uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.entries[id]
	return ok
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Snapshot returns a copy of the current entries for dashboards.
func (q *Queue) Snapshot() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, 0, len(q.entries))
	for _, entry := range q.entries {
		out = append(out, entry)
	}
	return out
}
