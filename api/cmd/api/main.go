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
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"civicconnect-backend/api/internal/handlers"
	"civicconnect-backend/api/internal/middleware"
	"civicconnect-backend/api/internal/repos"
	"civicconnect-backend/api/internal/verify"
	"civicconnect-backend/shared/authx"
	"civicconnect-backend/shared/cachex"
	"civicconnect-backend/shared/config"
	"civicconnect-backend/shared/dbx"
	"civicconnect-backend/shared/httpx"
	"civicconnect-backend/shared/logx"
	"civicconnect-backend/shared/metricsx"
	"civicconnect-backend/shared/mqx"
	"civicconnect-backend/shared/observability"
)

type statusResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Env     string `json:"env,omitempty"`
	Version string `json:"version,omitempty"`
}

func main() {
	cfg, readyProblems := config.Load("api", 8080)
	version := strings.TrimSpace(os.Getenv("VERSION"))
	logger := logx.New(cfg.ServiceName, cfg.Env, version, cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		readyProblems = append(readyProblems, config.Problem{Field: "DATABASE_URL", Message: "DATABASE_URL is required"})
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

	var dbPool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		var err error
		dbPool, err = dbx.NewPool(cfg)
		if err != nil {
			readyProblems = append(readyProblems, config.Problem{Field: "DATABASE_URL", Message: "failed to connect to database"})
			logger.Error(context.Background(), "db_init_failed", "database init failed",
				slog.String("error_code", "FAILED_PRECONDITION"),
				slog.String("error", err.Error()),
			)
		}
	}

	complaintsRepo := repos.NewComplaintsRepo(dbPool)
	statsRepo := repos.NewStatsRepo(dbPool)
	usersRepo := repos.NewUsersRepo(dbPool)
	departmentsRepo := repos.NewDepartmentsRepo(dbPool)
	auditRepo := repos.NewAuditRepo(dbPool)

	cache, err := cachex.New(cfg)
	if err != nil {
		readyProblems = append(readyProblems, config.Problem{Field: "REDIS_ADDR", Message: "failed to initialize redis client"})
	}
	defer func() {
		if cache != nil {
			_ = cache.Close()
		}
	}()

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

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.AsynqRedisAddr,
		Password: cfg.AsynqRedisPass,
		DB:       cfg.AsynqRedisDB,
	})
	defer asynqClient.Close()
	tasks := verify.NewTasks(asynqClient, cfg.AsynqQueue, time.Duration(cfg.MLEnqueueDelayMS)*time.Millisecond)

	// The API side has no transient queue table; the worker owns it.
	// Its sweeper only schedules attempts, it never publishes the
	// snapshot the worker mirrors to redis.
	enqueuer := verify.NewEnqueuer(complaintsRepo, tasks, nil)
	sweeper := verify.NewReconciler(complaintsRepo, enqueuer, verify.NewQueue(), nil, logger, cfg.MLSweepBatchSize)

	var verifier *authx.JWTVerifier
	if cfg.OIDCIssuer != "" && cfg.OIDCAudience != "" {
		verifier, err = authx.NewJWTVerifier(cfg.OIDCIssuer, cfg.OIDCAudience, cfg.OIDCJWKSURL, cfg.JWKSTTLSeconds, cfg.JWTClockSkewSec)
		if err != nil {
			readyProblems = append(readyProblems, config.Problem{Field: "OIDC_ISSUER", Message: "failed to initialize JWT verifier"})
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, statusResponse{
			Status:  "ok",
			Service: cfg.ServiceName,
			Env:     cfg.Env,
			Version: version,
		})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if len(readyProblems) > 0 {
			httpx.WriteError(
				w,
				r,
				http.StatusServiceUnavailable,
				"FAILED_PRECONDITION",
				"service not ready: invalid configuration",
				map[string]any{"problems": readyProblems},
			)
			return
		}
		if err := dbx.Ping(r.Context(), dbPool); err != nil {
			httpx.WriteError(
				w,
				r,
				http.StatusServiceUnavailable,
				"FAILED_PRECONDITION",
				"service not ready: database unavailable",
				map[string]any{"problem": "db_ping_failed"},
			)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, statusResponse{
			Status:  "ready",
			Service: cfg.ServiceName,
			Env:     cfg.Env,
			Version: version,
		})
	})
	mux.Handle("GET /metrics", metricsx.Handler())

	mux.HandleFunc("GET /api/v1/me", func(w http.ResponseWriter, r *http.Request) {
		auth, ok := authx.FromContext(r.Context())
		if !ok {
			httpx.WriteError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "missing auth context", nil)
			return
		}
		role := "citizen"
		for _, candidate := range auth.Roles {
			if candidate == "admin" || candidate == "staff" {
				role = candidate
				break
			}
		}
		user, err := usersRepo.UpsertUserFromOIDC(r.Context(), auth.Subject, auth.Email, auth.Name, role)
		if err != nil {
			httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load user", nil)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, user)
	})
	mux.HandleFunc("GET /api/v1/departments", func(w http.ResponseWriter, r *http.Request) {
		departments, err := departmentsRepo.ListDepartments(r.Context())
		if err != nil {
			httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list departments", nil)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"departments": departments})
	})

	complaintsHandler := handlers.ComplaintsHandler{
		Store:       complaintsRepo,
		Enqueuer:    enqueuer,
		Departments: departmentsRepo,
		Logger:      logger,
	}
	if producer != nil {
		complaintsHandler.Events = producer
	}
	complaintsHandler.Register(mux)

	handlers.MLHandler{
		Sweeps: sweeper,
		Cache:  cache,
		Stats:  statsRepo,
		Logger: logger,
	}.Register(mux)

	handlers.StatsHandler{
		Stats:    statsRepo,
		Activity: complaintsRepo,
	}.Register(mux)

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})

	skipInfra := func(r *http.Request) bool {
		return r.URL.Path == "/healthz" || r.URL.Path == "/readyz" || r.URL.Path == "/metrics"
	}

	handler := httpx.WrapServeMux(mux, notFound)
	handler = middleware.DBRequiredMiddleware{
		Pool: dbPool,
		Skip: skipInfra,
	}.Wrap(handler)
	handler = middleware.AuditMiddleware{
		Enabled: cfg.AuditEnabled,
		Repo:    auditRepo,
		Logger:  logger,
		Skip:    skipInfra,
	}.Wrap(handler)
	handler = middleware.AuthMiddleware{
		Verifier: verifier,
		Skip:     skipInfra,
	}.Wrap(handler)
	handler = middleware.RateLimitMiddleware{
		Limiter: middleware.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 2*time.Minute),
		Skip:    skipInfra,
	}.Wrap(handler)
	handler = middleware.CORSMiddleware{
		AllowedOrigins: []string{"*"},
		MaxAge:         10 * time.Minute,
	}.Wrap(handler)
	handler = httpx.WithTimeout(cfg.RequestTimeout, handler)
	handler = metricsx.Instrument(handler)
	handler = httpx.WithRequestID(handler)
	handler = httpx.WithRecover(logger, handler)
	handler = httpx.WithRequestLog(logger, httpx.RequestLogOptions{SkipPaths: map[string]bool{"/healthz": true, "/metrics": true}}, handler)
	handler = otelhttp.NewHandler(handler, "http.server")

	server := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.HTTPPort)),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "service_start", "starting service",
			slog.String("addr", server.Addr),
			slog.Int("http_port", cfg.HTTPPort),
			slog.String("log_level", cfg.LogLevel),
			slog.Int("request_timeout_ms", cfg.RequestTimeoutMS),
		)
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info(context.Background(), "shutdown_signal", "received signal", slog.String("signal", sig.String()))
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "server_failed", "server failed",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(context.Background(), "shutdown_failed", "shutdown failed",
			slog.String("error_code", "INTERNAL_ERROR"),
			slog.String("error", err.Error()),
		)
	}
	if dbPool != nil {
		dbPool.Close()
	}
	logger.Info(context.Background(), "service_stop", "service stopped")
}
