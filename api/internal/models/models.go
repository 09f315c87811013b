package models

import (
	"time"

	"github.com/google/uuid"
)

type Complaint struct {
	ID             uuid.UUID      `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	LocationText   string         `json:"locationText"`
	ImageURL       string         `json:"imageUrl"`
	Status         string         `json:"status"`
	Category       string         `json:"category"`
	Department     string         `json:"department"`
	AssignedTo     *string        `json:"assignedTo"`
	ReporterID     uuid.UUID      `json:"reporterId"`
	MLVerification MLVerification `json:"mlVerification"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// MLVerification is the embedded verification sub-record. Exactly one
// exists per complaint. Pending is true only while Status is pending
// or processing.
type MLVerification struct {
	Verified   bool       `json:"verified"`
	Confidence float64    `json:"confidence"`
	Analysis   *string    `json:"analysis"`
	Severity   string     `json:"severity"`
	Pending    bool       `json:"pending"`
	Status     string     `json:"status"`
	VerifiedAt *time.Time `json:"verifiedAt"`
}

type User struct {
	UserID      uuid.UUID  `json:"userId"`
	Subject     string     `json:"subject"`
	Email       string     `json:"email"`
	DisplayName string     `json:"displayName"`
	Role        string     `json:"role"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLoginAt *time.Time `json:"lastLoginAt"`
}

type Department struct {
	Name         string    `json:"name"`
	ContactEmail string    `json:"contactEmail"`
	CreatedAt    time.Time `json:"createdAt"`
}

type AuditLog struct {
	AuditID      uuid.UUID
	OccurredAt   time.Time
	ActorUserID  *uuid.UUID
	Subject      string
	Action       string
	ResourceType *string
	ResourceID   *string
	RequestID    string
	Method       string
	Path         string
	StatusCode   int
	DurationMS   int64
	ClientIP     string
	UserAgent    string
	Details      []byte
}

// ComplaintStats aggregates complaint counts for the dashboard.
type ComplaintStats struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"byStatus"`
}

// VerificationStats aggregates the verification pipeline state.
type VerificationStats struct {
	ByMLStatus  map[string]int64 `json:"byMlStatus"`
	Verified    int64            `json:"verified"`
	Pending     int64            `json:"pending"`
	Unprocessed int64            `json:"unprocessed"`
}

// CategoryCount is one analytics bucket.
type CategoryCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}
