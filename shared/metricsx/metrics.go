package metricsx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	verificationResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ml_verification_results_total",
			Help: "Completed verification attempts by outcome.",
		},
		[]string{"outcome"},
	)
	verificationLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ml_verification_duration_seconds",
			Help:    "End-to-end verification attempt latency in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 180},
		},
	)
	gatewayFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ml_gateway_failures_total",
			Help: "Total ML gateway call failures by operation.",
		},
		[]string{"operation"},
	)
	gatewaySuccess = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ml_gateway_success_total",
			Help: "Total ML gateway call successes by operation.",
		},
		[]string{"operation"},
	)
	gatewayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ml_gateway_latency_seconds",
			Help:    "ML gateway call latency in seconds by operation.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"operation"},
	)
	verificationQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ml_verification_queue_depth",
			Help: "Complaints currently tracked by the verification queue.",
		},
	)
	asynqQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "asynq_queue_depth",
			Help: "Asynq queue depth by queue.",
		},
		[]string{"queue"},
	)
	kafkaConsumerLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_consumer_lag",
			Help: "Kafka consumer lag by topic.",
		},
		[]string{"topic", "group"},
	)
	influxWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "influx_write_failures_total",
			Help: "Total InfluxDB write failures.",
		},
	)
)

func Register() {
	prometheus.MustRegister(
		httpRequests,
		httpLatency,
		verificationResults,
		verificationLatency,
		gatewayFailures,
		gatewaySuccess,
		gatewayLatency,
		verificationQueueDepth,
		asynqQueueDepth,
		kafkaConsumerLag,
		influxWriteFailures,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)
		status := strconv.Itoa(lrw.statusCode)
		httpRequests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpLatency.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
	})
}

func IncVerificationResult(outcome string) {
	verificationResults.WithLabelValues(outcome).Inc()
}

func ObserveVerificationLatency(d time.Duration) {
	verificationLatency.Observe(d.Seconds())
}

func IncGatewayFailure(operation string) {
	gatewayFailures.WithLabelValues(operation).Inc()
}

func IncGatewaySuccess(operation string) {
	gatewaySuccess.WithLabelValues(operation).Inc()
}

func ObserveGatewayLatency(operation string, d time.Duration) {
	gatewayLatency.WithLabelValues(operation).Observe(d.Seconds())
}

func SetVerificationQueueDepth(depth int) {
	verificationQueueDepth.Set(float64(depth))
}

func SetAsynqQueueDepth(queue string, depth int) {
	asynqQueueDepth.WithLabelValues(queue).Set(float64(depth))
}

func SetKafkaLag(topic string, group string, lag int64) {
	kafkaConsumerLag.WithLabelValues(topic, group).Set(float64(lag))
}

func IncInfluxWriteFailure() {
	influxWriteFailures.Inc()
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
