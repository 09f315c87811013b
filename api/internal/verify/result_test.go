package verify

import (
	"errors"
	"math"
	"testing"

	"civicconnect-backend/shared/workflow"
)

func TestDeriveFormula(t *testing.T) {
	cases := []struct {
		count      int
		verified   bool
		confidence float64
		severity   string
	}{
		{0, false, 0.1, SeverityLow},
		{1, true, 0.8, SeverityLow},
		{2, true, 0.9, SeverityMedium},
		{3, true, 0.95, SeverityHigh},
		{10, true, 0.95, SeverityHigh},
	}
	for _, tc := range cases {
		got := Derive(tc.count)
		if got.Verified != tc.verified {
			t.Fatalf("Derive(%d).Verified = %v, want %v", tc.count, got.Verified, tc.verified)
		}
		if math.Abs(got.Confidence-tc.confidence) > 1e-9 {
			t.Fatalf("Derive(%d).Confidence = %v, want %v", tc.count, got.Confidence, tc.confidence)
		}
		if got.Severity != tc.severity {
			t.Fatalf("Derive(%d).Severity = %q, want %q", tc.count, got.Severity, tc.severity)
		}
		if got.Pending {
			t.Fatalf("Derive(%d) must not be pending", tc.count)
		}
		if got.Status != workflow.MLStatusCompleted {
			t.Fatalf("Derive(%d).Status = %q, want completed", tc.count, got.Status)
		}
	}
}

func TestDeriveAnalysisText(t *testing.T) {
	if got := *Derive(0).Analysis; got != "YOLO model did not detect any potholes in the image." {
		t.Fatalf("unexpected zero-count analysis: %q", got)
	}
	if got := *Derive(1).Analysis; got != "YOLO model detected 1 pothole. Low severity requiring attention." {
		t.Fatalf("unexpected single-count analysis: %q", got)
	}
	if got := *Derive(4).Analysis; got != "YOLO model detected 4 potholes. Multiple potholes requiring immediate attention." {
		t.Fatalf("unexpected multi-count analysis: %q", got)
	}
}

func TestPromotion(t *testing.T) {
	if got := Promotion(Derive(3)); got != workflow.ComplaintStatusInProgress {
		t.Fatalf("high severity should promote to In Progress, got %q", got)
	}
	if got := Promotion(Derive(2)); got != workflow.ComplaintStatusReceived {
		t.Fatalf("medium severity should promote to Received, got %q", got)
	}
	if got := Promotion(Derive(1)); got != workflow.ComplaintStatusReceived {
		t.Fatalf("low verified severity should promote to Received, got %q", got)
	}
	if got := Promotion(Derive(0)); got != "" {
		t.Fatalf("unverified result must not promote, got %q", got)
	}
}

func TestTerminalResultShapes(t *testing.T) {
	na := NotApplicableResult()
	if na.Pending || na.Status != workflow.MLStatusCompleted || na.Verified {
		t.Fatalf("unexpected not-applicable shape: %#v", na)
	}
	if *na.Analysis != "ML model only processes pothole complaints" {
		t.Fatalf("unexpected not-applicable analysis: %q", *na.Analysis)
	}

	un := UnavailableResult()
	if un.Pending || un.Status != workflow.MLStatusCompleted || un.Confidence != 0.1 {
		t.Fatalf("unexpected unavailable shape: %#v", un)
	}

	failed := FailedResult(errors.New("connection refused"))
	if failed.Pending || failed.Status != workflow.MLStatusFailed {
		t.Fatalf("unexpected failed shape: %#v", failed)
	}
	if *failed.Analysis != "ML processing failed: connection refused" {
		t.Fatalf("unexpected failed analysis: %q", *failed.Analysis)
	}
}
