package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
}

const (
	TopicComplaintEvents     = "complaint.events"
	TopicVerificationResults = "verification.results"
	TopicAlerts              = "alerts"
)

// VerificationResultPayload is the payload carried on
// TopicVerificationResults messages.
type VerificationResultPayload struct {
	ComplaintID   uuid.UUID `json:"complaint_id"`
	Category      string    `json:"category"`
	Verified      bool      `json:"verified"`
	Confidence    float64   `json:"confidence"`
	Severity      string    `json:"severity"`
	Status        string    `json:"status"`
	DetectedCount int       `json:"detected_count"`
}
