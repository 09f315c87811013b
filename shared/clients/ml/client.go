package ml

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"civicconnect-backend/shared/config"
	"civicconnect-backend/shared/metricsx"
)

// Client talks to the external YOLO detection gateway. The gateway
// exposes a fast health probe and a long-running batch detection
// endpoint that analyzes every pending image it knows about.
type Client struct {
	baseURL       string
	healthTimeout time.Duration
	detectTimeout time.Duration
	retryMax      int
	http          *http.Client
	breaker       *circuitBreaker
}

type Detection struct {
	ComplaintID  string `json:"complaintId"`
	Status       string `json:"status"`
	PotholeCount int    `json:"potholeCount"`
}

type processAllResponse struct {
	Message  string      `json:"message"`
	Inserted []Detection `json:"inserted"`
}

func New(cfg config.Config) (*Client, error) {
	if cfg.MLGatewayURL == "" {
		return nil, errors.New("ML_GATEWAY_URL is required")
	}
	return &Client{
		baseURL:       cfg.MLGatewayURL,
		healthTimeout: time.Duration(cfg.MLHealthTimeout) * time.Millisecond,
		detectTimeout: time.Duration(cfg.MLDetectTimeout) * time.Millisecond,
		retryMax:      cfg.MLRetryMax,
		http:          &http.Client{},
		breaker:       newCircuitBreaker(5, 30*time.Second),
	}, nil
}

// Health probes the gateway. Any transport error, timeout, or non-2xx
// response counts as unhealthy.
func (c *Client) Health(ctx context.Context) (bool, error) {
	if c == nil || c.http == nil {
		return false, errors.New("ml client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		metricsx.IncGatewayFailure("health")
		return false, err
	}
	defer resp.Body.Close()
	metricsx.ObserveGatewayLatency("health", time.Since(start))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metricsx.IncGatewayFailure("health")
		return false, nil
	}
	metricsx.IncGatewaySuccess("health")
	return true, nil
}

// ProcessAll triggers batch detection on the gateway and returns one
// entry per image it processed.
func (c *Client) ProcessAll(ctx context.Context) ([]Detection, error) {
	if c == nil || c.http == nil {
		return nil, errors.New("ml client not initialized")
	}
	if c.breaker.Open() {
		return nil, errors.New("ml gateway circuit open")
	}
	ctx, cancel := context.WithTimeout(ctx, c.detectTimeout)
	defer cancel()

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/process_all", nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			c.breaker.Fail()
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = errors.New("ml gateway error")
			c.breaker.Fail()
			continue
		}
		// The gateway answers 404 when it has nothing to process.
		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			c.breaker.Success()
			metricsx.IncGatewaySuccess("process_all")
			metricsx.ObserveGatewayLatency("process_all", time.Since(start))
			return nil, nil
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			metricsx.IncGatewayFailure("process_all")
			return nil, errors.New("ml gateway request failed")
		}
		var out processAllResponse
		err = json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if err != nil {
			c.breaker.Fail()
			metricsx.IncGatewayFailure("process_all")
			return nil, err
		}
		c.breaker.Success()
		metricsx.IncGatewaySuccess("process_all")
		metricsx.ObserveGatewayLatency("process_all", time.Since(start))
		return out.Inserted, nil
	}
	if lastErr == nil {
		lastErr = errors.New("ml gateway request failed")
	}
	metricsx.IncGatewayFailure("process_all")
	return nil, lastErr
}

// Accepted reports whether the gateway accepted the image as a
// confirmed detection.
func (d Detection) Accepted() bool {
	return d.Status == "Accepted"
}

type circuitBreaker struct {
	mu            sync.Mutex
	failures      int
	openUntil     time.Time
	threshold     int
	resetDuration time.Duration
}

func newCircuitBreaker(threshold int, reset time.Duration) *circuitBreaker {
	return &circuitBreaker{threshold: threshold, resetDuration: reset}
}

func (b *circuitBreaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openUntil.IsZero() {
		return false
	}
	if time.Now().After(b.openUntil) {
		b.openUntil = time.Time{}
		b.failures = 0
		return false
	}
	return true
}

func (b *circuitBreaker) Fail() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold {
		b.openUntil = time.Now().Add(b.resetDuration)
	}
}

func (b *circuitBreaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.openUntil = time.Time{}
}
