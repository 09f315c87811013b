package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Config struct {
	Env              string
	ServiceName      string
	HTTPPort         int
	LogLevel         string
	ConfigPath       string
	RequestTimeoutMS int
	RequestTimeout   time.Duration
	OIDCIssuer       string
	OIDCAudience     string
	OIDCJWKSURL      string
	JWKSTTLSeconds   int
	JWTClockSkewSec  int
	DatabaseURL      string
	DBMaxConns       int
	DBMinConns       int
	DBConnMaxIdleSec int
	DBConnMaxLifeSec int
	AuditEnabled     bool
	KafkaBrokers     []string
	KafkaClientID    string
	KafkaGroupID     string
	KafkaRetryMax    int
	KafkaWriteMS     int
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	AsynqRedisAddr   string
	AsynqRedisPass   string
	AsynqRedisDB     int
	AsynqQueue       string
	AsynqConcurrency int
	MLGatewayURL     string
	MLHealthTimeout  int
	MLDetectTimeout  int
	MLRetryMax       int
	MLSweepSec       int
	MLEnqueueDelayMS int
	MLLockTTLSec     int
	MLSweepBatchSize int
	AlertCooldownSec int
	RateLimitRPS     float64
	RateLimitBurst   int
	InfluxURL        string
	InfluxToken      string
	InfluxOrg        string
	InfluxBucket     string
	InfluxTimeoutMS  int
	OtelEnabled      bool
	OtelEndpoint     string
	OtelInsecure     bool
	OtelSampleRatio  float64
}

func Load(serviceNameDefault string, httpPortDefault int) (Config, []Problem) {
	envRaw := strings.TrimSpace(os.Getenv("ENV"))
	cfg := Config{
		Env:              envRaw,
		ServiceName:      serviceNameDefault,
		HTTPPort:         httpPortDefault,
		LogLevel:         "info",
		ConfigPath:       strings.TrimSpace(os.Getenv("CONFIG_PATH")),
		RequestTimeoutMS: 30000,
		OIDCIssuer:       strings.TrimSpace(os.Getenv("OIDC_ISSUER")),
		OIDCAudience:     strings.TrimSpace(os.Getenv("OIDC_AUDIENCE")),
		OIDCJWKSURL:      strings.TrimSpace(os.Getenv("OIDC_JWKS_URL")),
		JWKSTTLSeconds:   300,
		JWTClockSkewSec:  60,
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:       10,
		DBMinConns:       1,
		DBConnMaxIdleSec: 300,
		DBConnMaxLifeSec: 1800,
		AuditEnabled:     false,
		KafkaRetryMax:    5,
		KafkaWriteMS:     5000,
		AsynqQueue:       "verification",
		AsynqConcurrency: 10,
		MLGatewayURL:     "",
		MLHealthTimeout:  10000,
		MLDetectTimeout:  120000,
		MLRetryMax:       2,
		MLSweepSec:       30,
		MLEnqueueDelayMS: 2000,
		MLLockTTLSec:     180,
		MLSweepBatchSize: 100,
		AlertCooldownSec: 120,
		RateLimitRPS:     10,
		RateLimitBurst:   20,
		InfluxTimeoutMS:  5000,
		OtelEnabled:      false,
		OtelInsecure:     true,
		OtelSampleRatio:  1.0,
	}

	problems := make([]Problem, 0, 4)
	envProvided := envRaw != ""

	if repoRoot, ok := findRepoRoot(); ok && cfg.Env != "" && cfg.ConfigPath == "" {
		cfg.ConfigPath = filepath.Join(repoRoot, "configs", cfg.Env+".json")
	}

	if fileData, fileProblems, ok := loadConfigFile(cfg.ConfigPath, strings.TrimSpace(os.Getenv("CONFIG_PATH")) != ""); ok {
		problems = append(problems, fileProblems...)
		if fileEnv, ok := readStringKey(fileData, "ENV"); ok && strings.TrimSpace(fileEnv) != "" {
			envProvided = true
		}
		applyConfigMap(&cfg, fileData, &problems)
	} else {
		problems = append(problems, fileProblems...)
	}

	applyEnv(&cfg, &problems)

	// If issuer is set and no explicit JWKS URL is provided, default to issuer/.well-known/jwks.json.
	if cfg.OIDCIssuer != "" && strings.TrimSpace(cfg.OIDCJWKSURL) == "" {
		cfg.OIDCJWKSURL = strings.TrimRight(cfg.OIDCIssuer, "/") + "/.well-known/jwks.json"
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if !envProvided {
		problems = append(problems, Problem{Field: "ENV", Message: "ENV is required"})
	}
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		problems = append(problems, Problem{Field: "HTTP_PORT", Message: "HTTP_PORT must be 1-65535"})
		cfg.HTTPPort = httpPortDefault
	}
	if cfg.RequestTimeoutMS <= 0 {
		problems = append(problems, Problem{Field: "REQUEST_TIMEOUT_MS", Message: "REQUEST_TIMEOUT_MS must be > 0"})
		cfg.RequestTimeoutMS = 30000
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutMS) * time.Millisecond
	if cfg.JWKSTTLSeconds <= 0 {
		problems = append(problems, Problem{Field: "JWKS_CACHE_TTL_SECONDS", Message: "JWKS_CACHE_TTL_SECONDS must be > 0"})
		cfg.JWKSTTLSeconds = 300
	}
	if cfg.JWTClockSkewSec < 0 {
		problems = append(problems, Problem{Field: "JWT_CLOCK_SKEW_SECONDS", Message: "JWT_CLOCK_SKEW_SECONDS must be >= 0"})
		cfg.JWTClockSkewSec = 60
	}
	if cfg.DBMaxConns <= 0 {
		problems = append(problems, Problem{Field: "DB_MAX_CONNS", Message: "DB_MAX_CONNS must be > 0"})
		cfg.DBMaxConns = 10
	}
	if cfg.DBMinConns < 0 {
		problems = append(problems, Problem{Field: "DB_MIN_CONNS", Message: "DB_MIN_CONNS must be >= 0"})
		cfg.DBMinConns = 1
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		problems = append(problems, Problem{Field: "DB_MIN_CONNS", Message: "DB_MIN_CONNS must be <= DB_MAX_CONNS"})
		cfg.DBMinConns = cfg.DBMaxConns
	}
	if cfg.DBConnMaxIdleSec <= 0 {
		problems = append(problems, Problem{Field: "DB_CONN_MAX_IDLE_SECONDS", Message: "DB_CONN_MAX_IDLE_SECONDS must be > 0"})
		cfg.DBConnMaxIdleSec = 300
	}
	if cfg.DBConnMaxLifeSec <= 0 {
		problems = append(problems, Problem{Field: "DB_CONN_MAX_LIFETIME_SECONDS", Message: "DB_CONN_MAX_LIFETIME_SECONDS must be > 0"})
		cfg.DBConnMaxLifeSec = 1800
	}
	if cfg.KafkaRetryMax < 0 {
		problems = append(problems, Problem{Field: "KAFKA_RETRY_MAX", Message: "KAFKA_RETRY_MAX must be >= 0"})
		cfg.KafkaRetryMax = 5
	}
	if cfg.KafkaWriteMS <= 0 {
		problems = append(problems, Problem{Field: "KAFKA_WRITE_TIMEOUT_MS", Message: "KAFKA_WRITE_TIMEOUT_MS must be > 0"})
		cfg.KafkaWriteMS = 5000
	}
	if cfg.RedisDB < 0 {
		problems = append(problems, Problem{Field: "REDIS_DB", Message: "REDIS_DB must be >= 0"})
		cfg.RedisDB = 0
	}
	if cfg.AsynqRedisDB < 0 {
		problems = append(problems, Problem{Field: "ASYNQ_REDIS_DB", Message: "ASYNQ_REDIS_DB must be >= 0"})
		cfg.AsynqRedisDB = 0
	}
	if cfg.AsynqConcurrency <= 0 {
		problems = append(problems, Problem{Field: "ASYNQ_CONCURRENCY", Message: "ASYNQ_CONCURRENCY must be > 0"})
		cfg.AsynqConcurrency = 10
	}
	if cfg.MLHealthTimeout <= 0 {
		problems = append(problems, Problem{Field: "ML_HEALTH_TIMEOUT_MS", Message: "ML_HEALTH_TIMEOUT_MS must be > 0"})
		cfg.MLHealthTimeout = 10000
	}
	if cfg.MLDetectTimeout <= 0 {
		problems = append(problems, Problem{Field: "ML_DETECT_TIMEOUT_MS", Message: "ML_DETECT_TIMEOUT_MS must be > 0"})
		cfg.MLDetectTimeout = 120000
	}
	if cfg.MLRetryMax < 0 {
		problems = append(problems, Problem{Field: "ML_RETRY_MAX", Message: "ML_RETRY_MAX must be >= 0"})
		cfg.MLRetryMax = 2
	}
	if cfg.MLSweepSec <= 0 {
		problems = append(problems, Problem{Field: "ML_SWEEP_INTERVAL_SECONDS", Message: "ML_SWEEP_INTERVAL_SECONDS must be > 0"})
		cfg.MLSweepSec = 30
	}
	if cfg.MLEnqueueDelayMS < 0 {
		problems = append(problems, Problem{Field: "ML_ENQUEUE_DELAY_MS", Message: "ML_ENQUEUE_DELAY_MS must be >= 0"})
		cfg.MLEnqueueDelayMS = 2000
	}
	if cfg.MLLockTTLSec <= 0 {
		problems = append(problems, Problem{Field: "ML_LOCK_TTL_SECONDS", Message: "ML_LOCK_TTL_SECONDS must be > 0"})
		cfg.MLLockTTLSec = 180
	}
	if cfg.MLSweepBatchSize <= 0 {
		problems = append(problems, Problem{Field: "ML_SWEEP_BATCH_SIZE", Message: "ML_SWEEP_BATCH_SIZE must be > 0"})
		cfg.MLSweepBatchSize = 100
	}
	if cfg.AlertCooldownSec <= 0 {
		problems = append(problems, Problem{Field: "ALERT_COOLDOWN_SECONDS", Message: "ALERT_COOLDOWN_SECONDS must be > 0"})
		cfg.AlertCooldownSec = 120
	}
	if cfg.RateLimitRPS <= 0 {
		problems = append(problems, Problem{Field: "RATE_LIMIT_RPS", Message: "RATE_LIMIT_RPS must be > 0"})
		cfg.RateLimitRPS = 10
	}
	if cfg.RateLimitBurst <= 0 {
		problems = append(problems, Problem{Field: "RATE_LIMIT_BURST", Message: "RATE_LIMIT_BURST must be > 0"})
		cfg.RateLimitBurst = 20
	}
	if cfg.InfluxTimeoutMS <= 0 {
		problems = append(problems, Problem{Field: "INFLUX_TIMEOUT_MS", Message: "INFLUX_TIMEOUT_MS must be > 0"})
		cfg.InfluxTimeoutMS = 5000
	}
	if cfg.OtelSampleRatio < 0 || cfg.OtelSampleRatio > 1 {
		problems = append(problems, Problem{Field: "OTEL_SAMPLE_RATIO", Message: "OTEL_SAMPLE_RATIO must be 0-1"})
		cfg.OtelSampleRatio = 1.0
	}

	return cfg, problems
}

func findRepoRoot() (string, bool) {
	start, err := os.Getwd()
	if err != nil {
		return "", false
	}
	dir := start
	for i := 0; i < 8; i++ {
		candidate := filepath.Join(dir, "configs")
		if fi, err := os.Stat(candidate); err == nil && fi.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

func loadConfigFile(path string, explicit bool) (map[string]any, []Problem, bool) {
	if strings.TrimSpace(path) == "" {
		return nil, nil, false
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if explicit && !errors.Is(err, os.ErrNotExist) {
			return nil, []Problem{{Field: "CONFIG_PATH", Message: fmt.Sprintf("failed to read config file: %v", err)}}, false
		}
		if explicit && errors.Is(err, os.ErrNotExist) {
			return nil, []Problem{{Field: "CONFIG_PATH", Message: "config file not found"}}, false
		}
		return nil, nil, false
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, []Problem{{Field: "CONFIG_PATH", Message: fmt.Sprintf("invalid json: %v", err)}}, false
	}
	return raw, nil, true
}

func applyEnv(cfg *Config, problems *[]Problem) {
	if v := strings.TrimSpace(os.Getenv("SERVICE_NAME")); v != "" {
		cfg.ServiceName = v
	}

	portRaw := strings.TrimSpace(os.Getenv("HTTP_PORT"))
	if portRaw == "" {
		portRaw = strings.TrimSpace(os.Getenv("PORT"))
	}
	if portRaw != "" {
		if p, err := strconv.Atoi(portRaw); err != nil || p <= 0 || p > 65535 {
			*problems = append(*problems, Problem{Field: "HTTP_PORT", Message: "HTTP_PORT must be 1-65535"})
		} else {
			cfg.HTTPPort = p
		}
	}

	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}

	applyEnvInt(problems, "REQUEST_TIMEOUT_MS", &cfg.RequestTimeoutMS)

	if v := strings.TrimSpace(os.Getenv("OIDC_ISSUER")); v != "" {
		cfg.OIDCIssuer = v
	}
	if v := strings.TrimSpace(os.Getenv("OIDC_AUDIENCE")); v != "" {
		cfg.OIDCAudience = v
	}
	if v := strings.TrimSpace(os.Getenv("OIDC_JWKS_URL")); v != "" {
		cfg.OIDCJWKSURL = v
	}
	applyEnvInt(problems, "JWKS_CACHE_TTL_SECONDS", &cfg.JWKSTTLSeconds)
	applyEnvInt(problems, "JWT_CLOCK_SKEW_SECONDS", &cfg.JWTClockSkewSec)

	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	applyEnvInt(problems, "DB_MAX_CONNS", &cfg.DBMaxConns)
	applyEnvInt(problems, "DB_MIN_CONNS", &cfg.DBMinConns)
	applyEnvInt(problems, "DB_CONN_MAX_IDLE_SECONDS", &cfg.DBConnMaxIdleSec)
	applyEnvInt(problems, "DB_CONN_MAX_LIFETIME_SECONDS", &cfg.DBConnMaxLifeSec)
	applyEnvBool(problems, "AUDIT_ENABLED", &cfg.AuditEnabled)

	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		cfg.KafkaBrokers = parseCSV(v)
	}
	if v := strings.TrimSpace(os.Getenv("KAFKA_CLIENT_ID")); v != "" {
		cfg.KafkaClientID = v
	}
	if v := strings.TrimSpace(os.Getenv("KAFKA_CONSUMER_GROUP")); v != "" {
		cfg.KafkaGroupID = v
	}
	applyEnvInt(problems, "KAFKA_RETRY_MAX", &cfg.KafkaRetryMax)
	applyEnvInt(problems, "KAFKA_WRITE_TIMEOUT_MS", &cfg.KafkaWriteMS)

	if v := strings.TrimSpace(os.Getenv("REDIS_ADDR")); v != "" {
		cfg.RedisAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_PASSWORD")); v != "" {
		cfg.RedisPassword = v
	}
	applyEnvInt(problems, "REDIS_DB", &cfg.RedisDB)

	if v := strings.TrimSpace(os.Getenv("ASYNQ_REDIS_ADDR")); v != "" {
		cfg.AsynqRedisAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("ASYNQ_REDIS_PASSWORD")); v != "" {
		cfg.AsynqRedisPass = v
	}
	applyEnvInt(problems, "ASYNQ_REDIS_DB", &cfg.AsynqRedisDB)
	if v := strings.TrimSpace(os.Getenv("ASYNQ_QUEUE")); v != "" {
		cfg.AsynqQueue = v
	}
	applyEnvInt(problems, "ASYNQ_CONCURRENCY", &cfg.AsynqConcurrency)

	if v := strings.TrimSpace(os.Getenv("ML_GATEWAY_URL")); v != "" {
		cfg.MLGatewayURL = v
	}
	applyEnvInt(problems, "ML_HEALTH_TIMEOUT_MS", &cfg.MLHealthTimeout)
	applyEnvInt(problems, "ML_DETECT_TIMEOUT_MS", &cfg.MLDetectTimeout)
	applyEnvInt(problems, "ML_RETRY_MAX", &cfg.MLRetryMax)
	applyEnvInt(problems, "ML_SWEEP_INTERVAL_SECONDS", &cfg.MLSweepSec)
	applyEnvInt(problems, "ML_ENQUEUE_DELAY_MS", &cfg.MLEnqueueDelayMS)
	applyEnvInt(problems, "ML_LOCK_TTL_SECONDS", &cfg.MLLockTTLSec)
	applyEnvInt(problems, "ML_SWEEP_BATCH_SIZE", &cfg.MLSweepBatchSize)
	applyEnvInt(problems, "ALERT_COOLDOWN_SECONDS", &cfg.AlertCooldownSec)
	applyEnvFloat(problems, "RATE_LIMIT_RPS", &cfg.RateLimitRPS)
	applyEnvInt(problems, "RATE_LIMIT_BURST", &cfg.RateLimitBurst)

	if v := strings.TrimSpace(os.Getenv("INFLUX_URL")); v != "" {
		cfg.InfluxURL = v
	}
	if v := strings.TrimSpace(os.Getenv("INFLUX_TOKEN")); v != "" {
		cfg.InfluxToken = v
	}
	if v := strings.TrimSpace(os.Getenv("INFLUX_ORG")); v != "" {
		cfg.InfluxOrg = v
	}
	if v := strings.TrimSpace(os.Getenv("INFLUX_BUCKET")); v != "" {
		cfg.InfluxBucket = v
	}
	applyEnvInt(problems, "INFLUX_TIMEOUT_MS", &cfg.InfluxTimeoutMS)

	applyEnvBool(problems, "OTEL_ENABLED", &cfg.OtelEnabled)
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); v != "" {
		cfg.OtelEndpoint = v
	}
	applyEnvBool(problems, "OTEL_EXPORTER_OTLP_INSECURE", &cfg.OtelInsecure)
	applyEnvFloat(problems, "OTEL_SAMPLE_RATIO", &cfg.OtelSampleRatio)
}

func applyEnvInt(problems *[]Problem, key string, dest *int) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*problems = append(*problems, Problem{Field: key, Message: key + " must be an integer"})
		return
	}
	*dest = n
}

func applyEnvBool(problems *[]Problem, key string, dest *bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	b, ok := asBool(v)
	if !ok {
		*problems = append(*problems, Problem{Field: key, Message: key + " must be a boolean"})
		return
	}
	*dest = b
}

func applyEnvFloat(problems *[]Problem, key string, dest *float64) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*problems = append(*problems, Problem{Field: key, Message: key + " must be a number"})
		return
	}
	*dest = f
}

func applyConfigMap(cfg *Config, raw map[string]any, problems *[]Problem) {
	for k, v := range raw {
		key := strings.ToUpper(strings.TrimSpace(k))
		switch key {
		case "ENV":
			if s, ok := v.(string); ok {
				cfg.Env = strings.TrimSpace(s)
			}
		case "SERVICE_NAME":
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				cfg.ServiceName = strings.TrimSpace(s)
			}
		case "HTTP_PORT":
			p, ok := asInt(v)
			if !ok || p <= 0 || p > 65535 {
				*problems = append(*problems, Problem{Field: key, Message: "HTTP_PORT must be 1-65535"})
			} else {
				cfg.HTTPPort = p
			}
		case "LOG_LEVEL":
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				cfg.LogLevel = strings.TrimSpace(s)
			}
		case "REQUEST_TIMEOUT_MS":
			applyMapInt(problems, key, v, &cfg.RequestTimeoutMS)
		case "OIDC_ISSUER":
			applyMapString(v, &cfg.OIDCIssuer)
		case "OIDC_AUDIENCE":
			applyMapString(v, &cfg.OIDCAudience)
		case "OIDC_JWKS_URL":
			applyMapString(v, &cfg.OIDCJWKSURL)
		case "JWKS_CACHE_TTL_SECONDS":
			applyMapInt(problems, key, v, &cfg.JWKSTTLSeconds)
		case "JWT_CLOCK_SKEW_SECONDS":
			applyMapInt(problems, key, v, &cfg.JWTClockSkewSec)
		case "DATABASE_URL":
			applyMapString(v, &cfg.DatabaseURL)
		case "DB_MAX_CONNS":
			applyMapInt(problems, key, v, &cfg.DBMaxConns)
		case "DB_MIN_CONNS":
			applyMapInt(problems, key, v, &cfg.DBMinConns)
		case "DB_CONN_MAX_IDLE_SECONDS":
			applyMapInt(problems, key, v, &cfg.DBConnMaxIdleSec)
		case "DB_CONN_MAX_LIFETIME_SECONDS":
			applyMapInt(problems, key, v, &cfg.DBConnMaxLifeSec)
		case "AUDIT_ENABLED":
			applyMapBool(problems, key, v, &cfg.AuditEnabled)
		case "KAFKA_BROKERS":
			if s, ok := v.(string); ok {
				cfg.KafkaBrokers = parseCSV(s)
			} else if arr, ok := v.([]any); ok {
				cfg.KafkaBrokers = parseAnyCSV(arr)
			}
		case "KAFKA_CLIENT_ID":
			applyMapString(v, &cfg.KafkaClientID)
		case "KAFKA_CONSUMER_GROUP":
			applyMapString(v, &cfg.KafkaGroupID)
		case "KAFKA_RETRY_MAX":
			applyMapInt(problems, key, v, &cfg.KafkaRetryMax)
		case "KAFKA_WRITE_TIMEOUT_MS":
			applyMapInt(problems, key, v, &cfg.KafkaWriteMS)
		case "REDIS_ADDR":
			applyMapString(v, &cfg.RedisAddr)
		case "REDIS_PASSWORD":
			if s, ok := v.(string); ok {
				cfg.RedisPassword = s
			}
		case "REDIS_DB":
			applyMapInt(problems, key, v, &cfg.RedisDB)
		case "ASYNQ_REDIS_ADDR":
			applyMapString(v, &cfg.AsynqRedisAddr)
		case "ASYNQ_REDIS_PASSWORD":
			if s, ok := v.(string); ok {
				cfg.AsynqRedisPass = s
			}
		case "ASYNQ_REDIS_DB":
			applyMapInt(problems, key, v, &cfg.AsynqRedisDB)
		case "ASYNQ_QUEUE":
			applyMapString(v, &cfg.AsynqQueue)
		case "ASYNQ_CONCURRENCY":
			applyMapInt(problems, key, v, &cfg.AsynqConcurrency)
		case "ML_GATEWAY_URL":
			applyMapString(v, &cfg.MLGatewayURL)
		case "ML_HEALTH_TIMEOUT_MS":
			applyMapInt(problems, key, v, &cfg.MLHealthTimeout)
		case "ML_DETECT_TIMEOUT_MS":
			applyMapInt(problems, key, v, &cfg.MLDetectTimeout)
		case "ML_RETRY_MAX":
			applyMapInt(problems, key, v, &cfg.MLRetryMax)
		case "ML_SWEEP_INTERVAL_SECONDS":
			applyMapInt(problems, key, v, &cfg.MLSweepSec)
		case "ML_ENQUEUE_DELAY_MS":
			applyMapInt(problems, key, v, &cfg.MLEnqueueDelayMS)
		case "ML_LOCK_TTL_SECONDS":
			applyMapInt(problems, key, v, &cfg.MLLockTTLSec)
		case "ML_SWEEP_BATCH_SIZE":
			applyMapInt(problems, key, v, &cfg.MLSweepBatchSize)
		case "ALERT_COOLDOWN_SECONDS":
			applyMapInt(problems, key, v, &cfg.AlertCooldownSec)
		case "RATE_LIMIT_RPS":
			applyMapFloat(problems, key, v, &cfg.RateLimitRPS)
		case "RATE_LIMIT_BURST":
			applyMapInt(problems, key, v, &cfg.RateLimitBurst)
		case "INFLUX_URL":
			applyMapString(v, &cfg.InfluxURL)
		case "INFLUX_TOKEN":
			if s, ok := v.(string); ok {
				cfg.InfluxToken = s
			}
		case "INFLUX_ORG":
			applyMapString(v, &cfg.InfluxOrg)
		case "INFLUX_BUCKET":
			applyMapString(v, &cfg.InfluxBucket)
		case "INFLUX_TIMEOUT_MS":
			applyMapInt(problems, key, v, &cfg.InfluxTimeoutMS)
		case "OTEL_ENABLED":
			applyMapBool(problems, key, v, &cfg.OtelEnabled)
		case "OTEL_EXPORTER_OTLP_ENDPOINT":
			applyMapString(v, &cfg.OtelEndpoint)
		case "OTEL_EXPORTER_OTLP_INSECURE":
			applyMapBool(problems, key, v, &cfg.OtelInsecure)
		case "OTEL_SAMPLE_RATIO":
			applyMapFloat(problems, key, v, &cfg.OtelSampleRatio)
		}
	}
}

func applyMapString(v any, dest *string) {
	if s, ok := v.(string); ok {
		*dest = strings.TrimSpace(s)
	}
}

func applyMapInt(problems *[]Problem, key string, v any, dest *int) {
	n, ok := asInt(v)
	if !ok {
		*problems = append(*problems, Problem{Field: key, Message: key + " must be an integer"})
		return
	}
	*dest = n
}

func applyMapBool(problems *[]Problem, key string, v any, dest *bool) {
	switch t := v.(type) {
	case bool:
		*dest = t
	case string:
		if b, ok := asBool(t); ok {
			*dest = b
		} else {
			*problems = append(*problems, Problem{Field: key, Message: key + " must be a boolean"})
		}
	default:
		*problems = append(*problems, Problem{Field: key, Message: key + " must be a boolean"})
	}
}

func applyMapFloat(problems *[]Problem, key string, v any, dest *float64) {
	f, ok := asFloat(v)
	if !ok {
		*problems = append(*problems, Problem{Field: key, Message: key + " must be a number"})
		return
	}
	*dest = f
}

func readStringKey(raw map[string]any, key string) (string, bool) {
	for k, v := range raw {
		if strings.EqualFold(strings.TrimSpace(k), key) {
			s, ok := v.(string)
			return s, ok
		}
	}
	return "", false
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case json.Number:
		i, err := t.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		return i, err == nil
	default:
		return 0, false
	}
}

func asBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "y":
		return true, true
	case "false", "0", "no", "n":
		return false, true
	default:
		return false, false
	}
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func parseCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseAnyCSV(raw []any) []string {
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			s = strings.TrimSpace(s)
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
