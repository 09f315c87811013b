package verify

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"civicconnect-backend/api/internal/classify"
	"civicconnect-backend/api/internal/models"
)

// Store is the slice of the complaint store the verification pipeline
// writes through.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (models.Complaint, error)
	MarkVerificationPending(ctx context.Context, id uuid.UUID) error
	MarkVerificationProcessing(ctx context.Context, id uuid.UUID) error
	WriteVerificationResult(ctx context.Context, id uuid.UUID, result models.MLVerification, promoteStatus string) error
	ListUnprocessed(ctx context.Context, limit int) ([]models.Complaint, error)
}

type TaskEnqueuer interface {
	EnqueueVerify(ctx context.Context, complaintID uuid.UUID) error
}

// Enqueuer decides whether a complaint enters the verification
// pipeline. Non-target complaints get a terminal not-applicable result
// written immediately; target complaints are marked pending and a
// deferred attempt is scheduled. Relative to the HTTP caller this is
// fire-and-forget: enqueue failures never fail the original request.
type Enqueuer struct {
	store Store
	tasks TaskEnqueuer
	queue *Queue
}

// NewEnqueuer builds an enqueuer. queue may be nil for callers that do
// not own the transient table (the API process).
func NewEnqueuer(store Store, tasks TaskEnqueuer, queue *Queue) *Enqueuer {
	return &Enqueuer{store: store, tasks: tasks, queue: queue}
}

// Enqueue classifies the complaint and routes it. Returns true when a
// verification attempt was scheduled.
func (e *Enqueuer) Enqueue(ctx context.Context, c models.Complaint) (bool, error) {
	res := classify.Classify(c.Title, c.Description)
	if !res.IsTarget {
		if err := e.store.WriteVerificationResult(ctx, c.ID, NotApplicableResult(), ""); err != nil {
			return false, fmt.Errorf("write not-applicable result: %w", err)
		}
		return false, nil
	}

	if err := e.store.MarkVerificationPending(ctx, c.ID); err != nil {
		return false, fmt.Errorf("mark pending: %w", err)
	}
	if e.queue != nil {
		e.queue.Track(c.ID, c.Title, res.Category)
	}
	if err := e.tasks.EnqueueVerify(ctx, c.ID); err != nil {
		return false, fmt.Errorf("schedule verification: %w", err)
	}
	return true, nil
}
