package main

import (
	"net/http"
	"strings"

	"github.com/testgenie-labs/testgenie-go/internal/zephyr"
)

func (api *serverAPI) handleGetTestCase(w http.ResponseWriter, r *http.Request) {
	issueID := strings.TrimSpace(r.PathValue("issueId"))
	if issueID == "" {
		api.writeError(w, r, http.StatusBadRequest, "issue_id_required")
		return
	}
	tc, err := api.zephyr.GetTestCase(r.Context(), issueID)
	if err != nil {
		api.upstreamError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, tc)
}

type addStepsRequest struct {
	Steps []zephyr.StepInput `json:"steps"`
}

func (api *serverAPI) handleAddSteps(w http.ResponseWriter, r *http.Request) {
	issueID := strings.TrimSpace(r.PathValue("issueId"))
	if issueID == "" {
		api.writeError(w, r, http.StatusBadRequest, "issue_id_required")
		return
	}
	var req addStepsRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if len(req.Steps) == 0 {
		api.writeError(w, r, http.StatusBadRequest, "steps_required")
		return
	}
	res := api.zephyr.AddSteps(r.Context(), issueID, req.Steps)
	api.writeJSON(w, http.StatusOK, res)
}

type replaceStepsRequest struct {
	Steps []zephyr.StepInput `json:"steps"`
}

type replaceStepsResponse struct {
	IssueID       string   `json:"issue_id"`
	StepsDeleted  int      `json:"steps_deleted"`
	StepsCreated  int      `json:"steps_created"`
	CreatedIDs    []string `json:"created_ids,omitempty"`
	UpdatedFields []string `json:"updated_fields"`
	Errors        []string `json:"errors,omitempty"`
}

func (api *serverAPI) handleReplaceSteps(w http.ResponseWriter, r *http.Request) {
	issueID := strings.TrimSpace(r.PathValue("issueId"))
	if issueID == "" {
		api.writeError(w, r, http.StatusBadRequest, "issue_id_required")
		return
	}
	var req replaceStepsRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if len(req.Steps) == 0 {
		api.writeError(w, r, http.StatusBadRequest, "steps_required")
		return
	}

	res, err := api.zephyr.ReplaceSteps(r.Context(), issueID, req.Steps)
	if err != nil {
		api.upstreamError(w, r, err)
		return
	}

	resp := replaceStepsResponse{
		IssueID:       issueID,
		StepsDeleted:  res.StepsDeleted,
		StepsCreated:  res.StepsCreated,
		CreatedIDs:    res.CreatedIDs,
		UpdatedFields: []string{},
		Errors:        res.Errors,
	}
	if res.StepsCreated > 0 || res.StepsDeleted > 0 {
		resp.UpdatedFields = append(resp.UpdatedFields, "test_steps")
	}
	api.writeJSON(w, http.StatusOK, resp)
}

func (api *serverAPI) handleGetCycles(w http.ResponseWriter, r *http.Request) {
	versionID := parseIntQuery(r, "versionId", -1)
	offset := parseIntQuery(r, "offset", 0)
	limit := parseIntQuery(r, "limit", 50)
	name := strings.TrimSpace(r.URL.Query().Get("name"))

	page, err := api.zephyr.GetCycles(r.Context(), versionID, name, offset, limit)
	if err != nil {
		api.upstreamError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, page)
}

func (api *serverAPI) handleCreateCycle(w http.ResponseWriter, r *http.Request) {
	var req zephyr.CreateCycleInput
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		api.writeError(w, r, http.StatusBadRequest, "name_required")
		return
	}
	cycle, err := api.zephyr.CreateCycle(r.Context(), req)
	if err != nil {
		api.upstreamError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusCreated, cycle)
}

func (api *serverAPI) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	issueID := strings.TrimSpace(r.URL.Query().Get("issueId"))
	if issueID == "" {
		api.writeError(w, r, http.StatusBadRequest, "issue_id_required")
		return
	}
	cycleID := strings.TrimSpace(r.URL.Query().Get("cycleId"))

	execs, err := api.zephyr.ListExecutions(r.Context(), issueID, cycleID)
	if err != nil {
		api.upstreamError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"executions": execs})
}

type executeTestRequest struct {
	IssueID   string `json:"issue_id"`
	CycleID   string `json:"cycle_id,omitempty"`
	VersionID string `json:"version_id,omitempty"`
	StatusID  int    `json:"status_id"`
	Status    string `json:"status,omitempty"`
}

func (api *serverAPI) handleExecuteTest(w http.ResponseWriter, r *http.Request) {
	executionID := strings.TrimSpace(r.PathValue("executionId"))
	if executionID == "" {
		api.writeError(w, r, http.StatusBadRequest, "execution_id_required")
		return
	}
	var req executeTestRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.IssueID == "" {
		api.writeError(w, r, http.StatusBadRequest, "issue_id_required")
		return
	}

	statusID := req.StatusID
	if statusID == 0 && req.Status != "" {
		id, ok := api.statuses.Lookup(req.Status)
		if !ok {
			api.writeError(w, r, http.StatusBadRequest, "unknown_status")
			return
		}
		statusID = id
	}
	if statusID == 0 {
		api.writeError(w, r, http.StatusBadRequest, "status_required")
		return
	}

	if err := api.zephyr.ExecuteTest(r.Context(), executionID, req.IssueID, req.CycleID, req.VersionID, statusID); err != nil {
		api.upstreamError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"execution_id": executionID,
		"status_id":    statusID,
	})
}

// handleExecutionStatuses serves the live catalogue, falling back to the
// configured map when Zephyr is unreachable.
func (api *serverAPI) handleExecutionStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := api.zephyr.GetExecutionStatuses(r.Context())
	if err != nil || len(statuses) == 0 {
		if err != nil {
			api.logger.Warn("statuses endpoint unavailable, serving configured map", "error", err)
		}
		statuses = api.statuses.Statuses()
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"statuses": statuses})
}

type ensureExecutionRequest struct {
	VersionID string `json:"version_id"`
	CycleID   string `json:"cycle_id"`
	FolderID  string `json:"folder_id,omitempty"`
	// StatusID absent means link only; -1 (UNEXECUTED) is a valid update.
	StatusID *int `json:"status_id,omitempty"`
}

func (api *serverAPI) handleEnsureExecution(w http.ResponseWriter, r *http.Request) {
	issueID := strings.TrimSpace(r.PathValue("issueId"))
	if issueID == "" {
		api.writeError(w, r, http.StatusBadRequest, "issue_id_required")
		return
	}
	var req ensureExecutionRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.CycleID == "" {
		api.writeError(w, r, http.StatusBadRequest, "cycle_id_required")
		return
	}

	res, err := api.zephyr.EnsureExecution(r.Context(), issueID, req.VersionID, req.CycleID, req.FolderID, req.StatusID)
	if err != nil {
		api.upstreamError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, res)
}

type addToCycleRequest struct {
	VersionID string `json:"version_id"`
	CycleID   string `json:"cycle_id"`
	FolderID  string `json:"folder_id,omitempty"`
}

type addToCycleResponse struct {
	IssueID     string `json:"issue_id"`
	CycleID     string `json:"cycle_id"`
	VersionID   string `json:"version_id"`
	ExecutionID string `json:"execution_id,omitempty"`
	Created     bool   `json:"created"`
	Error       string `json:"error,omitempty"`
}

// handleAddToCycle creates (or fetches the existing) execution linking the
// test to a cycle, without touching its status.
func (api *serverAPI) handleAddToCycle(w http.ResponseWriter, r *http.Request) {
	issueID := strings.TrimSpace(r.PathValue("issueId"))
	if issueID == "" {
		api.writeError(w, r, http.StatusBadRequest, "issue_id_required")
		return
	}
	var req addToCycleRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.CycleID == "" {
		api.writeError(w, r, http.StatusBadRequest, "cycle_id_required")
		return
	}

	outcome := api.zephyr.AddTestToCycle(r.Context(), issueID, req.VersionID, req.CycleID, req.FolderID)
	resp := addToCycleResponse{
		IssueID:     issueID,
		CycleID:     req.CycleID,
		VersionID:   req.VersionID,
		ExecutionID: outcome.ExecutionID,
		Created:     outcome.Kind == zephyr.CreateCreated,
	}
	if outcome.Kind == zephyr.CreateFailed {
		resp.Error = outcome.Reason
	}
	api.writeJSON(w, http.StatusOK, resp)
}
