package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/testgenie-labs/testgenie-go/internal/ai"
	"github.com/testgenie-labs/testgenie-go/internal/jira"
	"github.com/testgenie-labs/testgenie-go/internal/platform/httpserver"
	"github.com/testgenie-labs/testgenie-go/internal/testcase"
	"github.com/testgenie-labs/testgenie-go/internal/zephyr"
)

type serverAPI struct {
	logger    *slog.Logger
	zephyr    *zephyr.Client
	jira      *jira.Client
	ai        *ai.Client
	testcases *testcase.Service
	statuses  *zephyr.StatusMap
	auth      *authService
}

func newServerAPI(
	logger *slog.Logger,
	zc *zephyr.Client,
	jc *jira.Client,
	ac *ai.Client,
	tc *testcase.Service,
	statuses *zephyr.StatusMap,
	auth *authService,
) *serverAPI {
	return &serverAPI{
		logger:    logger,
		zephyr:    zc,
		jira:      jc,
		ai:        ac,
		testcases: tc,
		statuses:  statuses,
		auth:      auth,
	}
}

func (api *serverAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/zephyr/test-cases/{issueId}", api.handleGetTestCase)
	mux.HandleFunc("PUT /api/zephyr/test-cases/{issueId}", api.handleReplaceSteps)
	mux.HandleFunc("POST /api/zephyr/test-cases/{issueId}/steps", api.handleAddSteps)
	mux.HandleFunc("POST /api/zephyr/test-cases/{issueId}/cycle", api.handleAddToCycle)
	mux.HandleFunc("GET /api/zephyr/cycles", api.handleGetCycles)
	mux.HandleFunc("POST /api/zephyr/cycles", api.handleCreateCycle)
	mux.HandleFunc("GET /api/zephyr/executions", api.handleListExecutions)
	mux.HandleFunc("PUT /api/zephyr/executions/{executionId}", api.handleExecuteTest)
	mux.HandleFunc("GET /api/zephyr/execution-statuses", api.handleExecutionStatuses)

	mux.HandleFunc("POST /api/test-cases/full-create", api.handleFullCreate)
	mux.HandleFunc("POST /api/test-cases/bulk/full-create", api.handleBulkFullCreate)
	mux.HandleFunc("POST /api/test-cases/{issueId}/execution", api.handleEnsureExecution)

	mux.HandleFunc("POST /api/jira/issues/search", api.handleSearchIssues)
	mux.HandleFunc("POST /api/jira/test-cases", api.handleCreateTestIssue)
	mux.HandleFunc("GET /api/jira/projects", api.handleProjects)
	mux.HandleFunc("GET /api/jira/boards", api.handleBoards)
	mux.HandleFunc("GET /api/jira/sprints", api.handleSprints)
	mux.HandleFunc("GET /api/jira/components", api.handleComponents)
	mux.HandleFunc("GET /api/jira/versions", api.handleVersions)
	mux.HandleFunc("GET /api/jira/users", api.handleUsers)

	mux.HandleFunc("POST /api/ai/jql/generate", api.handleGenerateJQL)
	mux.HandleFunc("POST /api/ai/jql/search", api.handleGenerateAndSearch)
	mux.HandleFunc("GET /api/ai/jql/fields", api.handleFields)

	if api.auth != nil {
		api.auth.register(mux)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 4<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("multiple JSON values")
	}
	return nil
}

func (api *serverAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	httpserver.WriteJSON(w, status, body)
}

func (api *serverAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

// upstreamError maps a backend failure onto the response: upstream HTTP
// statuses pass through, anything else is a bad gateway.
func (api *serverAPI) upstreamError(w http.ResponseWriter, r *http.Request, err error) {
	var zerr *zephyr.StatusError
	if errors.As(err, &zerr) {
		api.writeError(w, r, zerr.Code, "zephyr_error")
		return
	}
	var jerr *jira.StatusError
	if errors.As(err, &jerr) {
		api.writeError(w, r, jerr.Code, "jira_error")
		return
	}
	api.logger.Error("upstream call failed",
		"path", r.URL.Path, "error", err,
		"request_id", r.Header.Get("X-Request-Id"))
	api.writeError(w, r, http.StatusBadGateway, "upstream_unavailable")
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
