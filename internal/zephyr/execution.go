package zephyr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const executionAPIBase = "/public/rest/api/" + apiVersion

// isAlreadyExists reports whether an error is Zephyr's duplicate-execution
// rejection. The API signals this only through message text, so the
// substring check is confined here.
func isAlreadyExists(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return strings.Contains(strings.ToLower(statusErr.Body), "already exist")
}

// sortedQuery builds a deterministic query string from key/value pairs.
// Stable ordering keeps the signed canonical form independent of map
// iteration.
func sortedQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+url.QueryEscape(params[k]))
	}
	return strings.Join(parts, "&")
}

// AddTestToCycle creates an execution linking a test issue to a cycle.
// A duplicate rejection is not an error: the existing execution is looked
// up and reported as CreateAlreadyExists.
func (c *Client) AddTestToCycle(ctx context.Context, issueID, versionID, cycleID, folderID string) CreateExecutionOutcome {
	body := map[string]any{
		"issueId":   issueID,
		"projectId": c.cfg.ProjectID,
		"versionId": versionID,
		"cycleId":   cycleID,
	}
	if folderID != "" {
		body["folderId"] = folderID
	}
	query := sortedQuery(map[string]string{
		"issueId":   issueID,
		"projectId": strconv.Itoa(c.cfg.ProjectID),
	})

	data, err := c.do(ctx, http.MethodPost, executionAPIBase+"/execution", query, body)
	if err == nil {
		if id := parseCreatedExecutionID(data); id != "" {
			return CreateExecutionOutcome{Kind: CreateCreated, ExecutionID: id}
		}
		// Created but the id was not in the response; fall back to lookup.
		if exec, findErr := c.FindExecution(ctx, issueID, cycleID); findErr == nil && exec.ExecutionID != "" {
			return CreateExecutionOutcome{Kind: CreateCreated, ExecutionID: exec.ExecutionID}
		}
		return CreateExecutionOutcome{Kind: CreateFailed, Reason: "execution created but id missing from response"}
	}

	if isAlreadyExists(err) {
		exec, findErr := c.FindExecution(ctx, issueID, cycleID)
		if findErr != nil || exec.ExecutionID == "" {
			return CreateExecutionOutcome{
				Kind:   CreateFailed,
				Reason: fmt.Sprintf("execution exists but lookup failed: %v", findErr),
			}
		}
		return CreateExecutionOutcome{Kind: CreateAlreadyExists, ExecutionID: exec.ExecutionID}
	}
	return CreateExecutionOutcome{Kind: CreateFailed, Reason: err.Error()}
}

// ListExecutions returns the executions for an issue, optionally filtered
// by cycle.
func (c *Client) ListExecutions(ctx context.Context, issueID, cycleID string) ([]Execution, error) {
	query := sortedQuery(map[string]string{
		"issueId":   issueID,
		"projectId": strconv.Itoa(c.cfg.ProjectID),
		"cycleId":   cycleID,
	})
	data, err := c.do(ctx, http.MethodGet, executionAPIBase+"/executions", query, nil)
	if err != nil {
		return nil, err
	}
	return parseExecutions(data), nil
}

// FindExecution returns the first execution linking an issue to a cycle.
func (c *Client) FindExecution(ctx context.Context, issueID, cycleID string) (Execution, error) {
	execs, err := c.ListExecutions(ctx, issueID, cycleID)
	if err != nil {
		return Execution{}, err
	}
	if len(execs) == 0 {
		return Execution{}, fmt.Errorf("no execution for issue %s in cycle %s", issueID, cycleID)
	}
	return execs[0], nil
}

// ExecuteTest sets the status of an execution.
func (c *Client) ExecuteTest(ctx context.Context, executionID, issueID, cycleID, versionID string, statusID int) error {
	body := map[string]any{
		"status":    map[string]int{"id": statusID},
		"projectId": c.cfg.ProjectID,
		"id":        executionID,
		"issueId":   issueID,
	}
	if cycleID != "" {
		body["cycleId"] = cycleID
	}
	if versionID != "" {
		body["versionId"] = versionID
	}
	query := sortedQuery(map[string]string{
		"issueId":   issueID,
		"projectId": strconv.Itoa(c.cfg.ProjectID),
	})
	uri := executionAPIBase + "/execution/" + url.PathEscape(executionID)
	_, err := c.do(ctx, http.MethodPut, uri, query, body)
	return err
}

// EnsureExecution links an issue to a cycle, tolerating an existing link,
// and optionally sets a status. A nil statusID means no status update;
// the presence check is a pointer because every id value is meaningful,
// including UNEXECUTED's -1. A creation failure lands in the result so
// batch callers keep going; a status-update failure is returned as an
// error because at that point the link exists but is in the wrong state.
func (c *Client) EnsureExecution(ctx context.Context, issueID, versionID, cycleID, folderID string, statusID *int) (EnsureExecutionResult, error) {
	outcome := c.AddTestToCycle(ctx, issueID, versionID, cycleID, folderID)
	res := EnsureExecutionResult{ExecutionID: outcome.ExecutionID}
	switch outcome.Kind {
	case CreateCreated:
		res.Created = true
	case CreateAlreadyExists:
		c.logger.Info("execution already linked",
			"issue_id", issueID, "cycle_id", cycleID, "execution_id", outcome.ExecutionID)
	case CreateFailed:
		res.Error = outcome.Reason
		return res, nil
	}

	if statusID != nil {
		if err := c.ExecuteTest(ctx, res.ExecutionID, issueID, cycleID, versionID, *statusID); err != nil {
			return res, fmt.Errorf("set execution %s status: %w", res.ExecutionID, err)
		}
		res.StatusUpdated = true
	}
	return res, nil
}

// GetExecutionStatuses fetches the project's execution status catalogue.
func (c *Client) GetExecutionStatuses(ctx context.Context) ([]ExecutionStatus, error) {
	data, err := c.do(ctx, http.MethodGet, executionAPIBase+"/execution/statuses", "", nil)
	if err != nil {
		return nil, err
	}
	return parseStatuses(data), nil
}

// GetCycles lists cycles for a version, with client-side name filtering
// and offset/limit paging. The upstream endpoint has no server-side
// filter.
func (c *Client) GetCycles(ctx context.Context, versionID int, nameFilter string, offset, limit int) (CyclesPage, error) {
	uri := fmt.Sprintf("%s/cycles/search", executionAPIBase)
	query := sortedQuery(map[string]string{
		"projectId": strconv.Itoa(c.cfg.ProjectID),
		"versionId": strconv.Itoa(versionID),
	})
	data, err := c.do(ctx, http.MethodGet, uri, query, nil)
	if err != nil {
		return CyclesPage{}, err
	}
	cycles := parseCycles(data, c.cfg.ProjectID, versionID)

	if nameFilter != "" {
		needle := strings.ToLower(nameFilter)
		filtered := cycles[:0]
		for _, cy := range cycles {
			if strings.Contains(strings.ToLower(cy.Name), needle) {
				filtered = append(filtered, cy)
			}
		}
		cycles = filtered
	}

	page := CyclesPage{Total: len(cycles), Offset: offset, Limit: limit}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(cycles) {
		page.Items = []Cycle{}
		return page, nil
	}
	end := len(cycles)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	page.Items = cycles[offset:end]
	return page, nil
}

// CreateCycle creates a test cycle under a version.
func (c *Client) CreateCycle(ctx context.Context, in CreateCycleInput) (Cycle, error) {
	if strings.TrimSpace(in.Name) == "" {
		return Cycle{}, fmt.Errorf("cycle name is required")
	}
	body := map[string]any{
		"name":      in.Name,
		"projectId": c.cfg.ProjectID,
		"versionId": in.VersionID,
	}
	if in.Description != "" {
		body["description"] = in.Description
	}
	if in.Build != "" {
		body["build"] = in.Build
	}
	if in.Environment != "" {
		body["environment"] = in.Environment
	}
	if in.StartDate != "" {
		body["startDate"] = in.StartDate
	}
	if in.EndDate != "" {
		body["endDate"] = in.EndDate
	}
	query := sortedQuery(map[string]string{
		"projectId": strconv.Itoa(c.cfg.ProjectID),
		"versionId": strconv.Itoa(in.VersionID),
	})
	data, err := c.do(ctx, http.MethodPost, executionAPIBase+"/cycle", query, body)
	if err != nil {
		return Cycle{}, err
	}
	created := parseCycles(data, c.cfg.ProjectID, in.VersionID)
	if len(created) > 0 {
		return created[0], nil
	}
	return Cycle{Name: in.Name, ProjectID: c.cfg.ProjectID, VersionID: in.VersionID}, nil
}
