package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"civicconnect-backend/api/internal/repos"
	"civicconnect-backend/api/internal/verify"
	"civicconnect-backend/shared/cachex"
	"civicconnect-backend/shared/clients/ml"
	"civicconnect-backend/shared/config"
	"civicconnect-backend/shared/dbx"
	"civicconnect-backend/shared/influxx"
	"civicconnect-backend/shared/logx"
	"civicconnect-backend/shared/metricsx"
	"civicconnect-backend/shared/mqx"
	"civicconnect-backend/shared/observability"
)

func main() {
	cfg, problems := config.Load("verify-worker", 8081)
	version := strings.TrimSpace(os.Getenv("VERSION"))
	logger := logx.New(cfg.ServiceName, cfg.Env, version, cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		problems = append(problems, config.Problem{Field: "DATABASE_URL", Message: "DATABASE_URL is required"})
	}
	if cfg.AsynqRedisAddr == "" {
		problems = append(problems, config.Problem{Field: "ASYNQ_REDIS_ADDR", Message: "ASYNQ_REDIS_ADDR is required"})
	}
	if cfg.MLGatewayURL == "" {
		problems = append(problems, config.Problem{Field: "ML_GATEWAY_URL", Message: "ML_GATEWAY_URL is required"})
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
	metricsx.Register()

	dbPool, err := dbx.NewPool(cfg)
	if err != nil {
		logger.Error(context.Background(), "db_init_failed", "db init failed",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer dbPool.Close()
	complaintsRepo := repos.NewComplaintsRepo(dbPool)

	cache, err := cachex.New(cfg)
	if err != nil {
		logger.Error(context.Background(), "redis_init_failed", "redis init failed",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer cache.Close()

	gateway, err := ml.New(cfg)
	if err != nil {
		logger.Error(context.Background(), "ml_init_failed", "ml gateway client init failed",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	var producer *mqx.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = mqx.NewProducer(cfg)
		if err != nil {
			logger.Warn(context.Background(), "kafka_init_failed", "kafka producer unavailable, events disabled",
				slog.String("error", err.Error()),
			)
		} else {
			defer producer.Close()
		}
	}

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

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.AsynqRedisAddr,
		Password: cfg.AsynqRedisPass,
		DB:       cfg.AsynqRedisDB,
	}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()
	tasks := verify.NewTasks(asynqClient, cfg.AsynqQueue, time.Duration(cfg.MLEnqueueDelayMS)*time.Millisecond)

	queue := verify.NewQueue()
	enqueuer := verify.NewEnqueuer(complaintsRepo, tasks, queue)
	locker := verify.RedisLocker{Client: cache.Client()}
	lockTTL := time.Duration(cfg.MLLockTTLSec) * time.Second

	var eventsOut verify.Publisher
	if producer != nil {
		eventsOut = producer
	}
	var pointsOut verify.PointWriter
	if points != nil {
		pointsOut = points
	}
	processor := verify.NewProcessor(complaintsRepo, gateway, queue, locker, eventsOut, pointsOut, logger, lockTTL)
	reconciler := verify.NewReconciler(complaintsRepo, enqueuer, queue, cache, logger, cfg.MLSweepBatchSize)

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.AsynqConcurrency,
		Queues: map[string]int{
			cfg.AsynqQueue: 1,
		},
	})
	defer server.Shutdown()

	mux := asynq.NewServeMux()
	mux.HandleFunc(verify.TaskVerifyComplaint, func(ctx context.Context, t *asynq.Task) error {
		ctx, span := otel.Tracer("asynq").Start(ctx, "verify.complaint")
		span.SetAttributes(attribute.String("queue", cfg.AsynqQueue))
		defer span.End()
		complaintID, err := verify.ParseVerifyTask(t)
		if err != nil {
			logger.Warn(ctx, "verify_task_invalid", "dropping malformed verify task",
				slog.String("error", err.Error()),
			)
			return nil
		}
		return processor.ProcessOne(ctx, complaintID)
	})
	mux.HandleFunc(verify.TaskSweep, func(ctx context.Context, t *asynq.Task) error {
		ctx, span := otel.Tracer("asynq").Start(ctx, "verify.sweep")
		defer span.End()
		_, err := reconciler.Reconcile(ctx)
		return err
	})

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
	})
	defer scheduler.Shutdown()
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()
	if _, err := scheduler.Register("@every "+strconv.Itoa(cfg.MLSweepSec)+"s", asynq.NewTask(verify.TaskSweep, nil, asynq.Queue(cfg.AsynqQueue))); err != nil {
		logger.Error(context.Background(), "scheduler_init_failed", "scheduler init failed",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		logger.Error(context.Background(), "scheduler_start_failed", "scheduler start failed",
			slog.String("error_code", "INTERNAL_ERROR"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			info, err := inspector.GetQueueInfo(cfg.AsynqQueue)
			if err != nil {
				continue
			}
			metricsx.SetAsynqQueueDepth(cfg.AsynqQueue, info.Size)
		}
	}()

	// metrics and liveness for the scrape target
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsx.Handler())
	metricsMux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	metricsServer := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.HTTPPort)),
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn(context.Background(), "metrics_server_failed", "metrics endpoint unavailable",
				slog.String("error", err.Error()),
			)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "worker_start", "verification worker started",
			slog.String("queue", cfg.AsynqQueue),
			slog.Int("concurrency", cfg.AsynqConcurrency),
			slog.Int("sweep_interval_sec", cfg.MLSweepSec),
			slog.String("gateway_url", cfg.MLGatewayURL),
		)
		errCh <- server.Run(mux)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info(context.Background(), "shutdown_signal", "received signal", slog.String("signal", sig.String()))
	case err := <-errCh:
		if !errors.Is(err, asynq.ErrServerClosed) {
			logger.Error(context.Background(), "worker_failed", "worker failed",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
	logger.Info(context.Background(), "worker_stop", "verification worker stopped")
}
