package verify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	TaskVerifyComplaint = "verify:complaint"
	TaskSweep           = "verify:sweep"
)

type verifyPayload struct {
	ComplaintID uuid.UUID `json:"complaint_id"`
}

// Tasks schedules deferred verification attempts on the redis-backed
// queue. The task id is derived from the complaint id, so re-enqueuing
// an already queued complaint is a no-op.
type Tasks struct {
	client *asynq.Client
	queue  string
	delay  time.Duration
}

func NewTasks(client *asynq.Client, queue string, delay time.Duration) *Tasks {
	return &Tasks{client: client, queue: queue, delay: delay}
}

func (t *Tasks) EnqueueVerify(ctx context.Context, complaintID uuid.UUID) error {
	if t == nil || t.client == nil {
		return errors.New("task client not initialized")
	}
	payload, err := json.Marshal(verifyPayload{ComplaintID: complaintID})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskVerifyComplaint, payload)
	_, err = t.client.EnqueueContext(ctx, task,
		asynq.Queue(t.queue),
		asynq.TaskID("verify:"+complaintID.String()),
		asynq.ProcessIn(t.delay),
		asynq.MaxRetry(0),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func ParseVerifyTask(task *asynq.Task) (uuid.UUID, error) {
	var payload verifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return uuid.Nil, err
	}
	if payload.ComplaintID == uuid.Nil {
		return uuid.Nil, errors.New("missing complaint_id")
	}
	return payload.ComplaintID, nil
}
