// Package ai proxies the JQL generation service. The service is optional
// infrastructure: every failure mode is folded into a negative response so
// the frontend can fall back to manual JQL entry.
package ai

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

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/testgenie-labs/testgenie-go/internal/platform/env"
)

const defaultTimeout = 60 * time.Second

// responseSchema constrains what the generation service may return.
// Responses outside it are treated as generation failures.
const responseSchema = `{
	"type": "object",
	"properties": {
		"success": {"type": "boolean"},
		"jql": {"type": "string"},
		"explanation": {"type": "string"},
		"error": {"type": "string"}
	},
	"required": ["success"],
	"additionalProperties": true
}`

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func ConfigFromEnv() (Config, error) {
	timeout, err := env.Duration("AI_SERVICE_TIMEOUT", defaultTimeout)
	if err != nil {
		return Config{}, err
	}
	return Config{
		BaseURL: strings.TrimRight(env.String("AI_SERVICE_URL", ""), "/"),
		Timeout: timeout,
	}, nil
}

// GenerateRequest is the natural-language query plus the field names the
// generator may reference.
type GenerateRequest struct {
	Text            string   `json:"text"`
	AvailableFields []string `json:"available_fields,omitempty"`
}

// GenerateResponse always reaches the caller; Success false carries the
// reason in Error.
type GenerateResponse struct {
	Success     bool   `json:"success"`
	JQL         string `json:"jql,omitempty"`
	Explanation string `json:"explanation,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Client calls the generation service.
type Client struct {
	cfg        Config
	logger     *slog.Logger
	httpClient *http.Client
	schema     *jsonschema.Schema
}

func NewClient(logger *slog.Logger, cfg Config) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("generate-jql-response.json", strings.NewReader(responseSchema)); err != nil {
		return nil, fmt.Errorf("register response schema: %w", err)
	}
	schema, err := compiler.Compile("generate-jql-response.json")
	if err != nil {
		return nil, fmt.Errorf("compile response schema: %w", err)
	}
	return &Client{
		cfg:        cfg,
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.Timeout + 5*time.Second},
		schema:     schema,
	}, nil
}

// Enabled reports whether a generation service is configured.
func (c *Client) Enabled() bool { return c.cfg.BaseURL != "" }

func failure(reason string) GenerateResponse {
	return GenerateResponse{Success: false, Error: reason}
}

// GenerateJQL asks the service to turn free text into a JQL query. It
// never returns an error: unreachable service, bad status, malformed or
// schema-violating payloads all come back as Success false.
func (c *Client) GenerateJQL(ctx context.Context, req GenerateRequest) GenerateResponse {
	if !c.Enabled() {
		return failure("jql generation service is not configured")
	}
	if strings.TrimSpace(req.Text) == "" {
		return failure("query text is required")
	}

	encoded, err := json.Marshal(req)
	if err != nil {
		return failure(fmt.Sprintf("encode request: %v", err))
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost,
		c.cfg.BaseURL+"/api/generate-jql", bytes.NewReader(encoded))
	if err != nil {
		return failure(fmt.Sprintf("build request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("jql generation service unreachable", "error", err)
		return failure(fmt.Sprintf("generation service unreachable: %v", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return failure(fmt.Sprintf("read response: %v", err))
	}
	if resp.StatusCode >= 400 {
		c.logger.Warn("jql generation service error",
			"status", resp.StatusCode, "body", string(data))
		return failure(fmt.Sprintf("generation service returned %d", resp.StatusCode))
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return failure(fmt.Sprintf("malformed response: %v", err))
	}
	if err := c.schema.Validate(doc); err != nil {
		c.logger.Warn("jql generation response failed validation", "error", err)
		return failure("generation service returned an unexpected response shape")
	}

	var out GenerateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return failure(fmt.Sprintf("decode response: %v", err))
	}
	if out.Success && strings.TrimSpace(out.JQL) == "" {
		return failure("generation service reported success without a query")
	}
	return out
}
