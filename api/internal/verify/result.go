package verify

import (
	"fmt"

	"civicconnect-backend/api/internal/models"
	"civicconnect-backend/shared/workflow"
)

const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

const (
	notApplicableAnalysis = "ML model only processes pothole complaints"
	unavailableAnalysis   = "YOLO detection service not available. Please ensure the model is running."
)

const (
	OutcomeVerified      = "verified"
	OutcomeUnverified    = "unverified"
	OutcomeUnavailable   = "unavailable"
	OutcomeFailed        = "failed"
	OutcomeNotApplicable = "not_applicable"
)

// Derive maps a detected object count to the verification result. The
// formula is load-bearing for downstream dashboards and must not drift:
//
//	verified   = count > 0
//	confidence = verified ? min(0.7 + 0.1*count, 0.95) : 0.1
//	severity   = high when count > 2, medium when count > 1, else low
func Derive(detectedCount int) models.MLVerification {
	verified := detectedCount > 0
	confidence := 0.1
	severity := SeverityLow
	if verified {
		confidence = 0.7 + 0.1*float64(detectedCount)
		if confidence > 0.95 {
			confidence = 0.95
		}
		switch {
		case detectedCount > 2:
			severity = SeverityHigh
		case detectedCount > 1:
			severity = SeverityMedium
		}
	}
	analysis := analysisFor(detectedCount)
	return models.MLVerification{
		Verified:   verified,
		Confidence: confidence,
		Analysis:   &analysis,
		Severity:   severity,
		Pending:    false,
		Status:     workflow.MLStatusCompleted,
	}
}

func analysisFor(detectedCount int) string {
	switch {
	case detectedCount > 2:
		return fmt.Sprintf("YOLO model detected %d potholes. Multiple potholes requiring immediate attention.", detectedCount)
	case detectedCount > 1:
		return fmt.Sprintf("YOLO model detected %d potholes. Moderate severity requiring attention within 24 hours.", detectedCount)
	case detectedCount == 1:
		return "YOLO model detected 1 pothole. Low severity requiring attention."
	default:
		return "YOLO model did not detect any potholes in the image."
	}
}

// Promotion returns the complaint status a verified result promotes
// to, or empty when the primary status must stay untouched.
func Promotion(v models.MLVerification) string {
	if !v.Verified {
		return ""
	}
	if v.Severity == SeverityHigh {
		return workflow.ComplaintStatusInProgress
	}
	return workflow.ComplaintStatusReceived
}

// NotApplicableResult is written for complaints outside the target
// category, without any gateway call.
func NotApplicableResult() models.MLVerification {
	analysis := notApplicableAnalysis
	return models.MLVerification{
		Verified:   false,
		Confidence: 0,
		Analysis:   &analysis,
		Severity:   SeverityLow,
		Pending:    false,
		Status:     workflow.MLStatusCompleted,
	}
}

// UnavailableResult is written when the gateway health probe fails.
// The attempt terminates without calling the detection operation.
func UnavailableResult() models.MLVerification {
	analysis := unavailableAnalysis
	return models.MLVerification{
		Verified:   false,
		Confidence: 0.1,
		Analysis:   &analysis,
		Severity:   SeverityLow,
		Pending:    false,
		Status:     workflow.MLStatusCompleted,
	}
}

// FailedResult is written when the detection call itself errors.
// Failed is terminal; only an explicit requeue re-enters the machine.
func FailedResult(err error) models.MLVerification {
	analysis := "ML processing failed: " + err.Error()
	return models.MLVerification{
		Verified:   false,
		Confidence: 0,
		Analysis:   &analysis,
		Severity:   SeverityLow,
		Pending:    false,
		Status:     workflow.MLStatusFailed,
	}
}
