package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"civicconnect-backend/api/internal/verify"
	"civicconnect-backend/shared/cachex"
	"civicconnect-backend/shared/config"
	"civicconnect-backend/shared/events"
	"civicconnect-backend/shared/influxx"
	"civicconnect-backend/shared/logx"
	"civicconnect-backend/shared/metricsx"
	"civicconnect-backend/shared/mqx"
	"civicconnect-backend/shared/observability"
)

// alertChannel is the redis pub/sub channel dashboards subscribe to.
const alertChannel = "alerts:high-severity"

type alertPayload struct {
	ComplaintID uuid.UUID `json:"complaint_id"`
	Category    string    `json:"category"`
	Severity    string    `json:"severity"`
	Confidence  float64   `json:"confidence"`
	RaisedAt    time.Time `json:"raised_at"`
}

// cooldownTracker suppresses repeat alerts for the same complaint
// inside the configured window.
type cooldownTracker struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[uuid.UUID]time.Time
}

func newCooldownTracker(window time.Duration) *cooldownTracker {
	return &cooldownTracker{window: window, seen: make(map[uuid.UUID]time.Time)}
}

func (t *cooldownTracker) shouldAlert(id uuid.UUID, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, raisedAt := range t.seen {
		if now.Sub(raisedAt) > t.window {
			delete(t.seen, key)
		}
	}
	if last, ok := t.seen[id]; ok && now.Sub(last) <= t.window {
		return false
	}
	t.seen[id] = now
	return true
}

func main() {
	cfg, problems := config.Load("notifier", 8082)
	version := strings.TrimSpace(os.Getenv("VERSION"))
	logger := logx.New(cfg.ServiceName, cfg.Env, version, cfg.LogLevel)

	if len(cfg.KafkaBrokers) == 0 {
		problems = append(problems, config.Problem{Field: "KAFKA_BROKERS", Message: "KAFKA_BROKERS is required"})
	}
	if cfg.KafkaGroupID == "" {
		problems = append(problems, config.Problem{Field: "KAFKA_CONSUMER_GROUP", Message: "KAFKA_CONSUMER_GROUP is required"})
	}
	if cfg.RedisAddr == "" {
		problems = append(problems, config.Problem{Field: "REDIS_ADDR", Message: "REDIS_ADDR is required"})
	}
	if len(problems) > 0 {
		logger.Error(context.Background(), "config_invalid", "invalid config",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.Any("problems", problems),
		)
		os.Exit(1)
	}

	if cfg.OtelEnabled {
		if shutdown, err := observability.InitTracer(context.Background(), observability.TracerConfig{
			ServiceName: cfg.ServiceName,
			Env:         cfg.Env,
			Endpoint:    cfg.OtelEndpoint,
			Insecure:    cfg.OtelInsecure,
			SampleRatio: cfg.OtelSampleRatio,
		}); err == nil {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	cache, err := cachex.New(cfg)
	if err != nil {
		logger.Error(context.Background(), "redis_init_failed", "redis init failed",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer cache.Close()

	reader, err := mqx.NewConsumer(cfg, events.TopicVerificationResults, cfg.KafkaGroupID)
	if err != nil {
		logger.Error(context.Background(), "kafka_init_failed", "kafka reader init failed",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer reader.Close()

	producer, err := mqx.NewProducer(cfg)
	if err != nil {
		logger.Error(context.Background(), "kafka_init_failed", "kafka producer init failed",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer producer.Close()

	var points *influxx.Client
	if cfg.InfluxURL != "" {
		points, err = influxx.New(cfg)
		if err != nil {
			logger.Warn(context.Background(), "influx_init_failed", "influx unavailable, measurements disabled",
				slog.String("error", err.Error()),
			)
		} else {
			defer points.Close()
		}
	}

	cooldown := newCooldownTracker(time.Duration(cfg.AlertCooldownSec) * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	logger.Info(ctx, "notifier_start", "verification results notifier started",
		slog.String("topic", events.TopicVerificationResults),
		slog.String("group", cfg.KafkaGroupID),
		slog.Int("cooldown_sec", cfg.AlertCooldownSec),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			logger.Error(ctx, "kafka_fetch_failed", "failed to fetch message",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
			)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		spanCtx, span := otel.Tracer("mqx").Start(ctx, "kafka.consume")
		span.SetAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", events.TopicVerificationResults),
		)
		if err := handleResult(spanCtx, logger, cache, producer, points, cooldown, msg.Value); err != nil {
			span.End()
			logger.Error(ctx, "result_handle_failed", "failed to handle verification result",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
			)
			continue
		}
		span.End()
		if err := reader.CommitMessages(ctx, msg); err != nil {
			logger.Error(ctx, "kafka_commit_failed", "failed to commit message",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
			)
		}
		stats := reader.Stats()
		metricsx.SetKafkaLag(stats.Topic, cfg.KafkaGroupID, stats.Lag)
	}

	logger.Info(context.Background(), "notifier_stop", "verification results notifier stopped")
}

func handleResult(ctx context.Context, logger logx.Logger, cache *cachex.Client, producer *mqx.Producer, points *influxx.Client, cooldown *cooldownTracker, raw []byte) error {
	var envelope events.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return err
	}
	if envelope.EventID == uuid.Nil || envelope.AggregateID == uuid.Nil {
		return errors.New("missing event_id/aggregate_id")
	}
	var result events.VerificationResultPayload
	if err := json.Unmarshal(envelope.Payload, &result); err != nil {
		return err
	}

	if points != nil {
		if err := points.WritePoint(ctx, "verification_results",
			map[string]string{
				"category": result.Category,
				"severity": result.Severity,
				"status":   result.Status,
			},
			map[string]any{
				"confidence":     result.Confidence,
				"detected_count": result.DetectedCount,
				"verified":       result.Verified,
			},
			envelope.OccurredAt,
		); err != nil {
			metricsx.IncInfluxWriteFailure()
			logger.Warn(ctx, "influx_write_failed", "failed to record result point",
				slog.String("error", err.Error()),
			)
		}
	}

	if !result.Verified || result.Severity != verify.SeverityHigh {
		return nil
	}
	now := time.Now().UTC()
	if !cooldown.shouldAlert(result.ComplaintID, now) {
		return nil
	}

	alert := alertPayload{
		ComplaintID: result.ComplaintID,
		Category:    result.Category,
		Severity:    result.Severity,
		Confidence:  result.Confidence,
		RaisedAt:    now,
	}
	if err := cache.Publish(ctx, alertChannel, alert); err != nil {
		logger.Warn(ctx, "alert_publish_failed", "failed to publish alert to redis",
			slog.String("error", err.Error()),
		)
	}

	value, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	if err := producer.Publish(ctx, events.TopicAlerts, []byte(result.ComplaintID.String()), value, map[string]string{
		"event_id":  envelope.EventID.String(),
		"raised_at": now.Format(time.RFC3339Nano),
	}); err != nil {
		return err
	}

	logger.Info(ctx, "alert_raised", "high severity pothole alert",
		slog.String("complaint_id", result.ComplaintID.String()),
		slog.Float64("confidence", result.Confidence),
	)
	return nil
}
