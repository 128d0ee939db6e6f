package anomaly

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"timesheet/internal/log"
)

const maxResponseBytes = 64 << 10

// ClientConfig configures the remote checker.
type ClientConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	Retries int
	Logger  *log.Logger
}

// Client calls a remote validation endpoint that answers with a Result.
type Client struct {
	url    string
	apiKey string
	http   *retryablehttp.Client
	logger *log.Logger
}

type wireRequest struct {
	Date     string      `json:"date"`
	Project  string      `json:"project"`
	Hours    json.Number `json:"hours"`
	UserName string      `json:"userName"`
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("anomaly endpoint URL is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.Retries
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			logger.Warn("Retrying anomaly check", "attempt", attempt, "url", req.URL.String())
		}
	}

	return &Client{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		http:   rc,
		logger: logger.WithComponent(log.ComponentAnomaly),
	}, nil
}

func (c *Client) Check(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(wireRequest{
		Date:     req.Date.String(),
		Project:  req.Project,
		Hours:    json.Number(req.Hours.String()),
		UserName: req.UserName,
	})
	if err != nil {
		return Result{}, fmt.Errorf("encode anomaly request: %w", err)
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build anomaly request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("call anomaly endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("anomaly endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out Result
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("decode anomaly response: %w", err)
	}
	if !out.ConfirmationNeeded {
		out.Reason = ""
	}

	c.logger.Debug("Anomaly check completed",
		log.FieldDate, req.Date.String(),
		log.FieldProject, req.Project,
		"confirmation_needed", out.ConfirmationNeeded,
		log.FieldDuration, time.Since(start).Milliseconds())
	return out, nil
}
