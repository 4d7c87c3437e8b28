package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/testgenie-labs/testgenie-go/internal/ai"
	"github.com/testgenie-labs/testgenie-go/internal/jira"
	"github.com/testgenie-labs/testgenie-go/internal/platform/env"
	"github.com/testgenie-labs/testgenie-go/internal/platform/httpserver"
	"github.com/testgenie-labs/testgenie-go/internal/testcase"
	"github.com/testgenie-labs/testgenie-go/internal/zephyr"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("SERVER_HTTP_ADDR", ":8000")
	shutdownTimeout, err := env.Duration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	zephyrCfg, err := zephyr.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid zephyr config", "error", err)
		os.Exit(2)
	}
	zephyrClient, err := zephyr.NewClient(logger, zephyrCfg)
	if err != nil {
		logger.Error("zephyr client init failed", "error", err)
		os.Exit(2)
	}
	defer zephyrClient.Close()

	jiraCfg, err := jira.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid jira config", "error", err)
		os.Exit(2)
	}
	jiraClient, err := jira.NewClient(logger, jiraCfg)
	if err != nil {
		logger.Error("jira client init failed", "error", err)
		os.Exit(2)
	}
	defer jiraClient.Close()

	aiCfg, err := ai.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid ai service config", "error", err)
		os.Exit(2)
	}
	aiClient, err := ai.NewClient(logger, aiCfg)
	if err != nil {
		logger.Error("ai client init failed", "error", err)
		os.Exit(2)
	}

	statuses, err := zephyr.LoadStatusMap(env.String("ZEPHYR_STATUS_MAP", ""))
	if err != nil {
		logger.Error("invalid status map", "error", err)
		os.Exit(2)
	}

	authCfg, err := authConfigFromEnv()
	if err != nil {
		logger.Error("invalid auth config", "error", err)
		os.Exit(2)
	}
	authSvc, err := newAuthService(logger, authCfg)
	if err != nil {
		logger.Error("auth init failed", "error", err)
		os.Exit(2)
	}
	if authSvc == nil {
		logger.Info("oauth login disabled, no client id configured")
	}

	testcases := testcase.NewService(logger, jiraClient, zephyrClient, zephyrClient)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("testgenie"))
	mux.HandleFunc("GET /api/health", httpserver.Healthz("testgenie"))
	mux.HandleFunc(
		"/readyz",
		httpserver.ReadyzWithChecks(
			"testgenie",
			httpserver.ReadinessCheck{
				Name: "jira",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
					defer cancel()
					_, err := jiraClient.Fields(checkCtx)
					return err
				},
			},
			httpserver.ReadinessCheck{
				Name: "zephyr",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
					defer cancel()
					_, err := zephyrClient.GetExecutionStatuses(checkCtx)
					return err
				},
			},
		),
	)

	api := newServerAPI(logger, zephyrClient, jiraClient, aiClient, testcases, statuses, authSvc)
	api.register(mux)

	limitPerMinute, err := env.Int("SERVER_RATE_LIMIT_PER_MINUTE", 100)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}
	var limiter *httpserver.RateLimiter
	if limitPerMinute > 0 {
		limiter = httpserver.NewRateLimiter(limitPerMinute)
	}

	handler := httpserver.Wrap(logger, "testgenie", limiter, mux)
	origins := env.Strings("CORS_ALLOWED_ORIGINS", nil)
	if len(origins) > 0 {
		handler = httpserver.CORS(origins, handler)
	}

	cfg := httpserver.Config{
		Service:         "testgenie",
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}
	if err := httpserver.Run(ctx, logger, cfg, handler); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}
