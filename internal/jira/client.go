package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/testgenie-labs/testgenie-go/internal/retry"
)

// StatusError is a non-2xx Jira response.
type StatusError struct {
	Code   int
	Method string
	Path   string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("jira: %s %s returned %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func (e *StatusError) HTTPStatus() int { return e.Code }

// Client talks to Jira Cloud REST APIs with basic auth.
type Client struct {
	cfg        Config
	logger     *slog.Logger
	httpClient *http.Client
	retryCfg   retry.Config
	authHeader string

	fields *fieldCache
}

func NewClient(logger *slog.Logger, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := &Client{
		cfg:    cfg,
		logger: logger,
		httpClient: &http.Client{
			Timeout: cfg.Timeout + 5*time.Second,
		},
		retryCfg:   retry.DefaultConfig(),
		authHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.Username+":"+cfg.APIToken)),
	}
	c.fields = newFieldCache(c)
	return c, nil
}

func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// do issues a request against a path relative to the base URL and decodes
// the JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	return retry.Do(ctx, c.logger, c.retryCfg, method+" "+path, func(ctx context.Context) error {
		return c.doOnce(ctx, method, path, body, out)
	})
}

func (c *Client) doOnce(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, c.cfg.BaseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		snippet := strings.ReplaceAll(string(data), "\n", " ")
		if len(snippet) > 300 {
			snippet = snippet[:300]
		}
		statusErr := &StatusError{Code: resp.StatusCode, Method: method, Path: path, Body: snippet}
		c.logger.Error("jira http error",
			"method", method, "path", path, "status", resp.StatusCode, "body", snippet)
		return statusErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
