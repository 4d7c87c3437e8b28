package zephyr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/testgenie-labs/testgenie-go/internal/retry"
)

// StatusError is a non-2xx response from the Zephyr API. The body snippet
// is bounded so logs and error lists stay readable.
type StatusError struct {
	Code   int
	Method string
	URI    string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("zephyr: %s %s returned %d: %s", e.Method, e.URI, e.Code, e.Body)
}

func (e *StatusError) HTTPStatus() int { return e.Code }

func bodySnippet(b []byte, max int) string {
	s := strings.ReplaceAll(string(b), "\n", " ")
	if len(s) > max {
		s = s[:max]
	}
	return s
}

// Client talks to the Zephyr Squad cloud API. It owns its HTTP connection
// pool for the process lifetime and serializes step mutations per issue.
type Client struct {
	cfg        Config
	logger     *slog.Logger
	httpClient *http.Client
	retryCfg   retry.Config
	locks      *IssueLocks

	// now is swapped in tests to pin token timestamps.
	now func() time.Time
}

func NewClient(logger *slog.Logger, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		httpClient: &http.Client{
			// Per-request timeouts come from the request context; the
			// client-level timeout is a backstop.
			Timeout: cfg.Timeout + 5*time.Second,
		},
		retryCfg: retry.DefaultConfig(),
		locks:    NewIssueLocks(),
		now:      time.Now,
	}, nil
}

// Close releases idle upstream connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// ProjectID returns the configured Zephyr project id.
func (c *Client) ProjectID() int { return c.cfg.ProjectID }

// doOnce performs one signed request attempt. query must be a raw query
// string without the leading "?"; it is both signed and sent.
func (c *Client) doOnce(ctx context.Context, method, uri, query string, body any) ([]byte, error) {
	token, err := GenerateToken(c.cfg, method, uri, query, c.now().UTC())
	if err != nil {
		return nil, err
	}

	fullURL := c.cfg.BaseURL + uri
	if query != "" {
		fullURL += "?" + query
	}

	var reqBody io.Reader
	hasJSON := false
	if body != nil && (method == http.MethodPost || method == http.MethodPut) {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
		hasJSON = true
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, fullURL, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "JWT "+token)
	req.Header.Set("zapiAccessKey", c.cfg.AccessKey)
	req.Header.Set("zapiAccountId", c.cfg.AccountID)
	req.Header.Set("Accept", "application/json")
	if hasJSON {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		statusErr := &StatusError{
			Code:   resp.StatusCode,
			Method: method,
			URI:    uri,
			Body:   bodySnippet(data, 300),
		}
		c.logger.Error("zephyr http error",
			"method", method,
			"uri", uri,
			"status", resp.StatusCode,
			"body", statusErr.Body)
		return nil, statusErr
	}

	if method == http.MethodDelete && resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	return data, nil
}

// do wraps doOnce with the standard transient-failure retry policy.
func (c *Client) do(ctx context.Context, method, uri, query string, body any) ([]byte, error) {
	var data []byte
	err := retry.Do(ctx, c.logger, c.retryCfg, method+" "+uri, func(ctx context.Context) error {
		var attemptErr error
		data, attemptErr = c.doOnce(ctx, method, uri, query, body)
		return attemptErr
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
