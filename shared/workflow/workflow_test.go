package workflow

import "testing"

func TestCanTransitionML(t *testing.T) {
	if !CanTransitionML(MLStatusPending, MLStatusProcessing) {
		t.Fatalf("expected pending -> processing to be allowed")
	}
	if !CanTransitionML(MLStatusFailed, MLStatusPending) {
		t.Fatalf("expected failed -> pending requeue to be allowed")
	}
	if CanTransitionML(MLStatusCompleted, MLStatusProcessing) {
		t.Fatalf("expected completed -> processing to be blocked")
	}
}

func TestEventTypeForMLTransition(t *testing.T) {
	ev := EventTypeForMLTransition(MLStatusProcessing, MLStatusFailed)
	if ev != EventVerificationFailed {
		t.Fatalf("expected %s, got %s", EventVerificationFailed, ev)
	}
}

func TestIsTerminalMLStatus(t *testing.T) {
	if !IsTerminalMLStatus("Completed") {
		t.Fatalf("expected completed to be terminal")
	}
	if IsTerminalMLStatus(MLStatusProcessing) {
		t.Fatalf("expected processing to be non-terminal")
	}
}

func TestIsComplaintStatus(t *testing.T) {
	if !IsComplaintStatus(ComplaintStatusInProgress) {
		t.Fatalf("expected In Progress to be a valid status")
	}
	if IsComplaintStatus("in progress") {
		t.Fatalf("expected status check to be case sensitive")
	}
}
