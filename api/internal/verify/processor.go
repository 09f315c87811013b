package verify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"civicconnect-backend/api/internal/models"
	"civicconnect-backend/shared/clients/ml"
	"civicconnect-backend/shared/events"
	"civicconnect-backend/shared/logx"
	"civicconnect-backend/shared/metricsx"
	"civicconnect-backend/shared/workflow"
)

type Gateway interface {
	Health(ctx context.Context) (bool, error)
	ProcessAll(ctx context.Context) ([]ml.Detection, error)
}

// Locker hands out a per-complaint lease so only one verification
// attempt is in flight per id at a time.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value []byte, headers map[string]string) error
}

type PointWriter interface {
	WritePoint(ctx context.Context, measurement string, tags map[string]string, fields map[string]any, ts time.Time) error
}

// Processor performs single verification attempts against the external
// detection gateway and writes terminal results back to the store.
// Every failure mode is contained: ProcessOne never returns an error
// for gateway problems, it records them on the complaint instead.
type Processor struct {
	store   Store
	gateway Gateway
	queue   *Queue
	locker  Locker
	events  Publisher
	points  PointWriter
	logger  logx.Logger
	lockTTL time.Duration
}

func NewProcessor(store Store, gateway Gateway, queue *Queue, locker Locker, events Publisher, points PointWriter, logger logx.Logger, lockTTL time.Duration) *Processor {
	return &Processor{
		store:   store,
		gateway: gateway,
		queue:   queue,
		locker:  locker,
		events:  events,
		points:  points,
		logger:  logger,
		lockTTL: lockTTL,
	}
}

func (p *Processor) ProcessOne(ctx context.Context, complaintID uuid.UUID) error {
	if p.locker != nil {
		release, acquired, err := p.locker.Acquire(ctx, lockKey(complaintID), p.lockTTL)
		if err != nil {
			return err
		}
		if !acquired {
			p.logger.Debug(ctx, "verify_skipped", "attempt already in flight",
				slog.String("complaint_id", complaintID.String()),
			)
			return nil
		}
		defer func() { _ = release(context.Background()) }()
	}

	start := time.Now()

	c, err := p.store.GetByID(ctx, complaintID)
	if err != nil {
		p.queue.Remove(complaintID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	// A stale task for an already settled complaint is dropped.
	if workflow.IsTerminalMLStatus(c.MLVerification.Status) && !c.MLVerification.Pending {
		p.queue.Remove(complaintID)
		return nil
	}

	p.queue.MarkProcessing(complaintID)
	if err := p.store.MarkVerificationProcessing(ctx, complaintID); err != nil {
		return err
	}

	healthy, healthErr := p.gateway.Health(ctx)
	if !healthy {
		if healthErr != nil {
			p.logger.Warn(ctx, "gateway_unhealthy", "health probe failed",
				slog.String("complaint_id", complaintID.String()),
				slog.String("error", healthErr.Error()),
			)
		}
		return p.finish(ctx, c, UnavailableResult(), 0, OutcomeUnavailable, start)
	}

	detections, err := p.gateway.ProcessAll(ctx)
	if err != nil {
		p.logger.Error(ctx, "gateway_detect_failed", "batch detection failed",
			slog.String("error_code", "INTERNAL_ERROR"),
			slog.String("complaint_id", complaintID.String()),
			slog.String("error", err.Error()),
		)
		return p.finish(ctx, c, FailedResult(err), 0, OutcomeFailed, start)
	}

	detectedCount := correlate(detections, complaintID)
	result := Derive(detectedCount)
	outcome := OutcomeUnverified
	if result.Verified {
		outcome = OutcomeVerified
	}
	return p.finish(ctx, c, result, detectedCount, outcome, start)
}

// correlate finds the detection for this complaint. When no entry
// matches by id the first entry is used as a best-effort guess.
func correlate(detections []ml.Detection, complaintID uuid.UUID) int {
	var match *ml.Detection
	for i := range detections {
		if detections[i].ComplaintID == complaintID.String() {
			match = &detections[i]
			break
		}
	}
	if match == nil && len(detections) > 0 {
		match = &detections[0]
	}
	if match == nil {
		return 0
	}
	// A count only stands when the gateway accepted the image.
	if match.Accepted() && match.PotholeCount > 0 {
		return match.PotholeCount
	}
	return 0
}

func (p *Processor) finish(ctx context.Context, c models.Complaint, result models.MLVerification, detectedCount int, outcome string, start time.Time) error {
	promote := Promotion(result)
	if err := p.store.WriteVerificationResult(ctx, c.ID, result, promote); err != nil {
		return err
	}
	p.queue.Remove(c.ID)
	metricsx.IncVerificationResult(outcome)
	metricsx.ObserveVerificationLatency(time.Since(start))
	metricsx.SetVerificationQueueDepth(p.queue.Len())

	p.logger.Info(ctx, "verification_done", "verification attempt finished",
		slog.String("complaint_id", c.ID.String()),
		slog.String("outcome", outcome),
		slog.Bool("verified", result.Verified),
		slog.Float64("confidence", result.Confidence),
		slog.String("severity", result.Severity),
		slog.String("promoted_status", promote),
	)

	p.emitEvent(ctx, c, result, detectedCount)
	p.writePoint(ctx, c, result, detectedCount)
	return nil
}

func (p *Processor) emitEvent(ctx context.Context, c models.Complaint, result models.MLVerification, detectedCount int) {
	if p.events == nil {
		return
	}
	payload, err := json.Marshal(events.VerificationResultPayload{
		ComplaintID:   c.ID,
		Category:      c.Category,
		Verified:      result.Verified,
		Confidence:    result.Confidence,
		Severity:      result.Severity,
		Status:        result.Status,
		DetectedCount: detectedCount,
	})
	if err != nil {
		return
	}
	envelope := events.Envelope{
		EventID:       uuid.New(),
		OccurredAt:    time.Now().UTC(),
		AggregateType: "complaint",
		AggregateID:   c.ID,
		EventType:     workflow.EventTypeForMLTransition(workflow.MLStatusProcessing, result.Status),
		Payload:       payload,
	}
	value, err := json.Marshal(envelope)
	if err != nil {
		return
	}
	if err := p.events.Publish(ctx, events.TopicVerificationResults, []byte(c.ID.String()), value, nil); err != nil {
		p.logger.Warn(ctx, "event_publish_failed", "failed to publish verification event",
			slog.String("complaint_id", c.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Processor) writePoint(ctx context.Context, c models.Complaint, result models.MLVerification, detectedCount int) {
	if p.points == nil {
		return
	}
	err := p.points.WritePoint(ctx, "ml_verification",
		map[string]string{
			"category": c.Category,
			"severity": result.Severity,
			"status":   result.Status,
		},
		map[string]any{
			"confidence":     result.Confidence,
			"detected_count": detectedCount,
			"verified":       result.Verified,
		},
		time.Now().UTC(),
	)
	if err != nil {
		metricsx.IncInfluxWriteFailure()
		p.logger.Warn(ctx, "influx_write_failed", "failed to write verification point",
			slog.String("error", err.Error()),
		)
	}
}
