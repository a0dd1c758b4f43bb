package tracksync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Client talks to the state track-and-trace API. Submissions are rate limited
// (the state endpoints throttle aggressively) and wrapped in a circuit breaker
// so a provider outage fails fast instead of tying up Pub/Sub workers for the
// full HTTP timeout on every redelivery.
type Client struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
	limiter   <-chan time.Time
	breaker   *gobreaker.CircuitBreaker
}

func NewClient(logger *logrus.Logger) (*Client, error) {
	baseURL := strings.TrimSpace(os.Getenv("TRACKTRACE_API_BASE_URL"))
	if baseURL == "" {
		return nil, errors.New("TRACKTRACE_API_BASE_URL is empty")
	}
	apiKey := strings.TrimSpace(os.Getenv("TRACKTRACE_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("TRACKTRACE_API_KEY is empty")
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("TRACKTRACE_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	rateLimitPerMin := int64(30)
	if v := strings.TrimSpace(os.Getenv("TRACKTRACE_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "tracktrace",
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("track-trace circuit breaker state changed")
			}
		},
	})

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   time.Tick(interval),
		breaker:   breaker,
	}, nil
}

// SubmitAdjustment files one adjustment and returns the provider's id.
func (c *Client) SubmitAdjustment(ctx context.Context, provider string, sub AdjustmentSubmission) (string, error) {
	return c.post(ctx, fmt.Sprintf("/v1/%s/adjustments", provider), sub)
}

// SubmitReceipt files a received delivery and returns the provider's id.
func (c *Client) SubmitReceipt(ctx context.Context, provider string, sub ReceiptSubmission) (string, error) {
	return c.post(ctx, fmt.Sprintf("/v1/%s/receipts", provider), sub)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		<-c.limiter
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set(c.apiKeyHdr, c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", fmt.Errorf("track-trace api error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}

		var parsed submissionResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return "", err
		}
		if parsed.ExternalId != "" {
			return parsed.ExternalId, nil
		}
		return parsed.Id, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
