package services

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"
)

// HealthResult is the diagnostic from a single probe
type HealthResult struct {
	URL          string  `json:"url"`
	StatusCode   int     `json:"statusCode,omitempty"`
	ResponseTime float64 `json:"responseTime,omitempty"`
	Healthy      bool    `json:"healthy"`
	Error        string  `json:"error,omitempty"`
}

// HealthService polls a deployed application until it answers
type HealthService struct {
	baseURL string
	client  *http.Client
	sleep   func(time.Duration)
}

// NewHealthService probes http://<host>:<port>
func NewHealthService(host string, port int) *HealthService {
	return &HealthService{
		baseURL: fmt.Sprintf("http://%s:%d", host, port),
		client:  &http.Client{Timeout: 10 * time.Second},
		sleep:   time.Sleep,
	}
}

// CheckOnce performs a single probe against endpoint and reports the
// outcome without retrying
func (s *HealthService) CheckOnce(ctx context.Context, endpoint string, expectedStatus int) HealthResult {
	if endpoint == "" {
		endpoint = "/"
	}
	if expectedStatus == 0 {
		expectedStatus = http.StatusOK
	}

	url := s.baseURL + endpoint
	result := HealthResult{URL: url}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		result.Error = classifyProbeError(err)
		log.Printf("Health check failed: %s (%s)", url, result.Error)
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.ResponseTime = time.Since(start).Seconds()
	result.Healthy = resp.StatusCode == expectedStatus

	if result.Healthy {
		log.Printf("Application is healthy (status: %d, time: %.3fs)", resp.StatusCode, result.ResponseTime)
	} else {
		log.Printf("Application health check failed (status: %d)", resp.StatusCode)
	}
	return result
}

func classifyProbeError(err error) string {
	if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
		return "timeout"
	}
	return "connection_error"
}

// WaitUntilHealthy polls CheckOnce up to maxAttempts times with
// retryInterval seconds between attempts, returning after the first
// healthy probe. Exhausting all attempts is reported as a value, not an
// error.
func (s *HealthService) WaitUntilHealthy(ctx context.Context, maxAttempts, retryInterval int) (bool, string) {
	log.Printf("Waiting for application to become healthy (max %d attempts)", maxAttempts)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, fmt.Sprintf("health check aborted: %v", err)
		}

		log.Printf("Health check attempt %d/%d", attempt, maxAttempts)
		result := s.CheckOnce(ctx, "/", http.StatusOK)
		if result.Healthy {
			return true, fmt.Sprintf("Application is healthy after %d attempts", attempt)
		}

		if attempt < maxAttempts {
			log.Printf("Application not ready, waiting %ds before retry...", retryInterval)
			s.sleep(time.Duration(retryInterval) * time.Second)
		}
	}

	return false, fmt.Sprintf("Application failed to become healthy after %d attempts", maxAttempts)
}
