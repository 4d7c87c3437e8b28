package jira

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/testgenie-labs/testgenie-go/internal/retry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:     baseURL,
		Username:    "bot@example.com",
		APIToken:    "token-123",
		ProjectID:   "10000",
		ProjectKey:  "TG",
		ProjectName: "TestGenie",
		BoardID:     "3",
		SprintField: defaultSprintField,
		Timeout:     5 * time.Second,
	}
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(discardLogger(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.retryCfg = retry.Config{
		MaxAttempts:     3,
		BaseDelay:       time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		ExponentialBase: 2,
	}
	return c
}

func TestClientBasicAuth(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	if err := c.do(context.Background(), http.MethodGet, "/rest/api/3/myself", nil, nil); err != nil {
		t.Fatalf("do: %v", err)
	}
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("bot@example.com:token-123"))
	if got != want {
		t.Errorf("Authorization = %q, want %q", got, want)
	}
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorMessages":["Issue does not exist"]}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	err := c.do(context.Background(), http.MethodGet, "/rest/api/3/issue/TG-404", nil, nil)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error type %T", err)
	}
	if statusErr.Code != http.StatusNotFound {
		t.Errorf("code = %d", statusErr.Code)
	}
	if !strings.Contains(statusErr.Body, "does not exist") {
		t.Errorf("body = %q", statusErr.Body)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"key":"TG-1"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	var out struct {
		Key string `json:"key"`
	}
	if err := c.do(context.Background(), http.MethodGet, "/rest/api/3/issue/TG-1", nil, &out); err != nil {
		t.Fatalf("do: %v", err)
	}
	if out.Key != "TG-1" || calls.Load() != 2 {
		t.Errorf("key=%q calls=%d", out.Key, calls.Load())
	}
}

func TestNewClientValidation(t *testing.T) {
	cfg := testConfig("https://jira.example.com")
	cfg.APIToken = ""
	if _, err := NewClient(discardLogger(), cfg); err == nil {
		t.Fatal("expected validation error")
	}
}
