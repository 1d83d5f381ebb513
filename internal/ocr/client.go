package ocr

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"gatewatch/internal/validate"
	"gatewatch/pkg/models"
	"gatewatch/pkg/retry"

	"go.uber.org/zap"
)

// Client calls a remote OCR service over HTTP. Submissions are bounded by a
// semaphore sized to the engine's safe concurrency (default 1: the model
// behind the service is single-threaded).
type Client struct {
	serviceURL     string
	httpClient     *http.Client
	logger         *zap.Logger
	retryConfig    retry.Config
	circuitBreaker *CircuitBreaker
	sem            chan struct{}
}

// CircuitBreaker prevents hammering a failing OCR service.
type CircuitBreaker struct {
	failures    int
	lastFailure time.Time
	threshold   int
	timeout     time.Duration
	mu          sync.Mutex
}

// NewCircuitBreaker creates a circuit breaker that opens after threshold
// consecutive failures and closes again after the timeout.
func NewCircuitBreaker(threshold int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		timeout:   timeout,
	}
}

func (cb *CircuitBreaker) isOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.failures >= cb.threshold && time.Since(cb.lastFailure) < cb.timeout {
		return true
	}
	if time.Since(cb.lastFailure) >= cb.timeout {
		cb.failures = 0
	}
	return false
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	cb.lastFailure = time.Now()
}

// NewClient creates an OCR service client. tlsConfig may be nil for plain
// HTTP deployments on the terminal's internal network.
func NewClient(serviceURL string, tlsConfig *tls.Config, timeout time.Duration, maxRetries, concurrency int, logger *zap.Logger) *Client {
	if concurrency <= 0 {
		concurrency = 1
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig:     tlsConfig,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: concurrency,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: timeout,
	}

	return &Client{
		serviceURL: serviceURL,
		httpClient: httpClient,
		logger:     logger,
		retryConfig: retry.Config{
			MaxRetries:  maxRetries,
			InitialWait: 1 * time.Second,
			MaxWait:     30 * time.Second,
			Multiplier:  2.0,
		},
		circuitBreaker: NewCircuitBreaker(5, 60*time.Second),
		sem:            make(chan struct{}, concurrency),
	}
}

// recognizeResponse is the OCR service's wire format.
type recognizeResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Recognize submits one image and returns the recognized text plus the
// container-number candidates extracted from it. Transport and service
// failures come back as Success=false results.
func (c *Client) Recognize(ctx context.Context, image []byte) models.OCRResult {
	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return failure(ctx.Err().Error())
	}

	if c.circuitBreaker.isOpen() {
		return failure("circuit breaker is open, OCR service may be down")
	}

	var text string
	err := retry.Do(ctx, c.retryConfig, func() error {
		var reqErr error
		text, reqErr = c.sendRequest(ctx, image)
		return reqErr
	})
	if err != nil {
		c.circuitBreaker.recordFailure()
		c.logger.Warn("OCR request failed", zap.Error(err))
		return failure(err.Error())
	}
	c.circuitBreaker.recordSuccess()

	result := models.OCRResult{
		Success:    true,
		Text:       text,
		Candidates: validate.ExtractCandidates(text),
	}
	if len(result.Candidates) > 0 {
		result.Primary = result.Candidates[0]
	}
	return result
}

// sendRequest makes a single HTTP call to the OCR service.
func (c *Client) sendRequest(ctx context.Context, image []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serviceURL, bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OCR service returned status %d", resp.StatusCode)
	}

	var parsed recognizeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("invalid OCR response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("OCR service error: %s", parsed.Error)
	}

	return parsed.Text, nil
}

func failure(reason string) models.OCRResult {
	return models.OCRResult{Success: false, Error: reason}
}
