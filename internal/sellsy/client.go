package sellsy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sellsync/supplier-invoice-sync/internal/storage"
)

// ErrNotFound is returned when the platform reports that an invoice or
// document does not exist. It is a clean negative result, never retried.
var ErrNotFound = errors.New("sellsy: not found")

// HTTPClient interface for testability
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const (
	defaultAPIURL   = "https://api.sellsy.com/v2"
	defaultV1URL    = "https://apifeed.sellsy.com"
	defaultTokenURL = "https://login.sellsy.com/oauth2/access-tokens"

	defaultRetryAttempts = 3
	defaultRetryBackoff  = 2 * time.Second
	defaultRateLimitWait = 30 * time.Second
	requestTimeout       = 30 * time.Second

	v1PageSize = 100
)

// Config holds Sellsy client configuration. Exactly one credential scheme is
// used: OAuth2 client-credentials (ClientID/ClientSecret) for current
// installations, or OAuth1 PLAINTEXT signing (consumer/user token pairs) for
// legacy apifeed-only ones. The scheme is fixed by configuration, one method
// per operation.
type Config struct {
	APIURL   string
	V1URL    string
	TokenURL string

	ClientID     string
	ClientSecret string

	ConsumerToken  string
	ConsumerSecret string
	UserToken      string
	UserSecret     string
}

// Client talks to the Sellsy platform: legacy v1 purchase RPC, v2 OCR
// endpoints, and PDF retrieval. The auth session (cached token, expiry) is
// owned here and injected into every request; there is no process-wide state.
type Client struct {
	cfg        Config
	httpClient HTTPClient
	auth       authorizer
	store      *storage.PDFStore
	logger     *zap.Logger

	retryAttempts int
	retryBackoff  time.Duration
	rateLimitWait time.Duration
	sleep         func(time.Duration)
}

// NewClient creates a Sellsy client. store may be nil when PDF retrieval is
// not needed.
func NewClient(cfg Config, store *storage.PDFStore, logger *zap.Logger) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.V1URL == "" {
		cfg.V1URL = defaultV1URL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := &http.Client{Timeout: requestTimeout}

	var auth authorizer
	if cfg.ConsumerToken != "" {
		auth = newOAuth1Auth(cfg.ConsumerToken, cfg.ConsumerSecret, cfg.UserToken, cfg.UserSecret)
	} else {
		auth = newOAuth2Auth(cfg.ClientID, cfg.ClientSecret, cfg.TokenURL, httpClient, logger)
	}

	return &Client{
		cfg:           cfg,
		httpClient:    httpClient,
		auth:          auth,
		store:         store,
		logger:        logger,
		retryAttempts: defaultRetryAttempts,
		retryBackoff:  defaultRetryBackoff,
		rateLimitWait: defaultRateLimitWait,
		sleep:         time.Sleep,
	}
}

// Healthy reports whether credentials currently authorize against the
// platform. Used by the webhook health endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	probe, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURL, nil)
	if err != nil {
		return err
	}
	return c.auth.authorize(ctx, probe)
}

// do runs a request with the shared retry discipline: bounded retries with
// fixed backoff on transport errors and 5xx, a Retry-After sleep on 429, and
// a single re-authentication on 401. The request is rebuilt per attempt so
// body readers are fresh.
func (c *Client) do(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	var lastErr error
	attempt := 0
	reauthed := false

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.auth.authorize(ctx, req); err != nil {
			return nil, fmt.Errorf("authorization failed: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			attempt++
			if attempt >= c.retryAttempts {
				return nil, lastErr
			}
			c.sleep(c.retryBackoff)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("failed to read response: %w", readErr)
			attempt++
			if attempt >= c.retryAttempts {
				return nil, lastErr
			}
			c.sleep(c.retryBackoff)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil

		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrNotFound

		case resp.StatusCode == http.StatusUnauthorized:
			if reauthed {
				return nil, fmt.Errorf("authentication rejected: %s", truncate(body))
			}
			// Token expiry: refresh once and replay; does not consume an attempt.
			reauthed = true
			c.auth.invalidate()
			c.logger.Info("token rejected, re-authenticating")
			continue

		case resp.StatusCode == http.StatusTooManyRequests:
			wait := retryAfter(resp, c.rateLimitWait)
			c.logger.Warn("rate limited by sellsy",
				zap.Duration("wait", wait))
			lastErr = fmt.Errorf("rate limited (429)")
			attempt++
			if attempt >= c.retryAttempts {
				return nil, lastErr
			}
			c.sleep(wait)
			continue

		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("server error %d: %s", resp.StatusCode, truncate(body))
			attempt++
			if attempt >= c.retryAttempts {
				return nil, lastErr
			}
			c.sleep(c.retryBackoff)
			continue

		default:
			return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, truncate(body))
		}
	}
}

func retryAfter(resp *http.Response, fallback time.Duration) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}

func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
