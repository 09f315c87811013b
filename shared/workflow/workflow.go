package workflow

import "strings"

const (
	ComplaintStatusPending    = "Pending"
	ComplaintStatusReceived   = "Received"
	ComplaintStatusAssigned   = "Assigned"
	ComplaintStatusInProgress = "In Progress"
	ComplaintStatusCompleted  = "Completed"
)

const (
	MLStatusNone       = ""
	MLStatusPending    = "pending"
	MLStatusProcessing = "processing"
	MLStatusCompleted  = "completed"
	MLStatusFailed     = "failed"
)

const (
	EventComplaintCreated     = "complaint_created"
	EventComplaintStatus      = "complaint_status_changed"
	EventComplaintAssigned    = "complaint_assigned"
	EventVerificationQueued   = "verification_queued"
	EventVerificationStarted  = "verification_started"
	EventVerificationComplete = "verification_completed"
	EventVerificationFailed   = "verification_failed"
	EventVerificationRequeued = "verification_requeued"
)

var mlTransitions = map[string]map[string]string{
	MLStatusNone: {
		MLStatusPending:   EventVerificationQueued,
		MLStatusCompleted: EventVerificationComplete,
	},
	MLStatusPending: {
		MLStatusProcessing: EventVerificationStarted,
		MLStatusCompleted:  EventVerificationComplete,
		MLStatusFailed:     EventVerificationFailed,
	},
	MLStatusProcessing: {
		MLStatusCompleted: EventVerificationComplete,
		MLStatusFailed:    EventVerificationFailed,
	},
	// terminal states re-enter the machine only through an explicit requeue
	MLStatusCompleted: {
		MLStatusPending: EventVerificationRequeued,
	},
	MLStatusFailed: {
		MLStatusPending: EventVerificationRequeued,
	},
}

func NormalizeMLStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

func IsTerminalMLStatus(status string) bool {
	switch NormalizeMLStatus(status) {
	case MLStatusCompleted, MLStatusFailed:
		return true
	}
	return false
}

func CanTransitionML(fromStatus string, toStatus string) bool {
	fromStatus = NormalizeMLStatus(fromStatus)
	toStatus = NormalizeMLStatus(toStatus)
	if fromStatus == toStatus {
		return true
	}
	next := mlTransitions[fromStatus]
	if next == nil {
		return false
	}
	_, ok := next[toStatus]
	return ok
}

func EventTypeForMLTransition(fromStatus string, toStatus string) string {
	fromStatus = NormalizeMLStatus(fromStatus)
	toStatus = NormalizeMLStatus(toStatus)
	if fromStatus == toStatus {
		return ""
	}
	next := mlTransitions[fromStatus]
	if next == nil {
		return ""
	}
	return next[toStatus]
}

func IsComplaintStatus(status string) bool {
	switch status {
	case ComplaintStatusPending, ComplaintStatusReceived, ComplaintStatusAssigned,
		ComplaintStatusInProgress, ComplaintStatusCompleted:
		return true
	}
	return false
}

func AllComplaintStatuses() []string {
	return []string{
		ComplaintStatusPending,
		ComplaintStatusReceived,
		ComplaintStatusAssigned,
		ComplaintStatusInProgress,
		ComplaintStatusCompleted,
	}
}

func AllMLStatuses() []string {
	return []string{
		MLStatusPending,
		MLStatusProcessing,
		MLStatusCompleted,
		MLStatusFailed,
	}
}
