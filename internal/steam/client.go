// Package steam fetches app metadata from the Steam storefront API.
package steam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://store.steampowered.com"

// ErrAppUnavailable marks an appdetails response with success=false. The
// storefront returns it both for delisted apps and as its rate-limit signal,
// so the client treats it as retryable.
var ErrAppUnavailable = errors.New("steam: appdetails reported success=false")

// AppDetails is the subset of storefront metadata the pipeline consumes.
type AppDetails struct {
	AppID       int
	Name        string
	HeaderImage string
}

// Gate admits one outbound API call per successful Acquire. The pipeline
// shares one sliding-window limiter across all workers through this.
type Gate interface {
	Acquire(ctx context.Context) error
}

// Config controls request timeouts and retry behavior.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Client talks to the storefront appdetails endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	gate       Gate
	retry      retryPolicy
	logger     *zap.Logger
}

// NewClient builds a Client with defaults applied. gate may be nil, in which
// case calls are not quota-gated (tests use this).
func NewClient(cfg Config, gate Gate, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		gate:       gate,
		retry:      newRetryPolicy(cfg.MaxAttempts, cfg.BackoffInitial, cfg.BackoffMax),
		logger:     logger,
	}
}

// StoreURL returns the storefront page for an appid.
func StoreURL(appID int) string {
	return fmt.Sprintf("https://store.steampowered.com/app/%d/", appID)
}

// AppDetails fetches name and header image for the appid, retrying with
// exponential backoff on transient failures. Every attempt passes through
// the gate so retries cannot blow the API quota.
func (c *Client) AppDetails(ctx context.Context, appID int) (AppDetails, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		if c.gate != nil {
			if err := c.gate.Acquire(ctx); err != nil {
				return AppDetails{}, err
			}
		}

		details, err := c.fetchOnce(ctx, appID)
		if err == nil {
			return details, nil
		}
		lastErr = err

		if !c.retry.shouldRetry(err, attempt) {
			break
		}
		wait := c.retry.backoff(attempt)
		c.logger.Warn("appdetails fetch failed, retrying",
			zap.Int("appid", appID),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.retry.maxAttempts),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if err := sleepCtx(ctx, wait); err != nil {
			return AppDetails{}, err
		}
	}
	return AppDetails{}, fmt.Errorf("appdetails for %d: %w", appID, lastErr)
}

type detailsEnvelope struct {
	Success bool `json:"success"`
	Data    struct {
		Name        string `json:"name"`
		HeaderImage string `json:"header_image"`
	} `json:"data"`
}

func (c *Client) fetchOnce(ctx context.Context, appID int) (AppDetails, error) {
	url := fmt.Sprintf("%s/api/appdetails?appids=%d", c.baseURL, appID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return AppDetails{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return AppDetails{}, fmt.Errorf("appdetails request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return AppDetails{}, fmt.Errorf("appdetails status %d", resp.StatusCode)
	}

	var payload map[string]detailsEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return AppDetails{}, fmt.Errorf("decode appdetails: %w", err)
	}

	entry, ok := payload[strconv.Itoa(appID)]
	if !ok || !entry.Success {
		return AppDetails{}, ErrAppUnavailable
	}
	return AppDetails{
		AppID:       appID,
		Name:        entry.Data.Name,
		HeaderImage: entry.Data.HeaderImage,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
