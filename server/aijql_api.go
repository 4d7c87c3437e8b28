package main

import (
	"net/http"
	"strings"

	"github.com/testgenie-labs/testgenie-go/internal/ai"
	"github.com/testgenie-labs/testgenie-go/internal/jira"
)

type generateJQLRequest struct {
	Text          string `json:"text"`
	IncludeFields bool   `json:"include_fields,omitempty"`
}

// handleGenerateJQL proxies to the generation service, enriching the
// request with the instance's field names so generated queries reference
// real fields. Generation failures come back as 200 with success false.
func (api *serverAPI) handleGenerateJQL(w http.ResponseWriter, r *http.Request) {
	var req generateJQLRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}

	genReq := ai.GenerateRequest{Text: req.Text}
	if req.IncludeFields {
		names, err := api.jira.FieldNames(r.Context())
		if err != nil {
			api.logger.Warn("field names unavailable for jql generation", "error", err)
		} else {
			genReq.AvailableFields = names
		}
	}

	api.writeJSON(w, http.StatusOK, api.ai.GenerateJQL(r.Context(), genReq))
}

type generateAndSearchRequest struct {
	Text       string `json:"text"`
	MaxResults int    `json:"max_results,omitempty"`
}

type generateAndSearchResponse struct {
	GeneratedJQL string       `json:"generated_jql"`
	Issues       []jira.Issue `json:"issues"`
	Total        int          `json:"total"`
	Error        string       `json:"error,omitempty"`
	JiraError    string       `json:"jira_error,omitempty"`
}

// handleGenerateAndSearch turns free text into JQL and runs the search in
// one round trip. Generation failures and rejected queries still return
// 200 so the frontend can show the generated JQL alongside the error.
func (api *serverAPI) handleGenerateAndSearch(w http.ResponseWriter, r *http.Request) {
	var req generateAndSearchRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}

	genReq := ai.GenerateRequest{Text: req.Text}
	if names, err := api.jira.FieldNames(r.Context()); err != nil {
		api.logger.Warn("field names unavailable for jql generation", "error", err)
	} else {
		genReq.AvailableFields = names
	}

	gen := api.ai.GenerateJQL(r.Context(), genReq)
	resp := generateAndSearchResponse{Issues: []jira.Issue{}}
	if !gen.Success || strings.TrimSpace(gen.JQL) == "" {
		resp.Error = gen.Error
		if resp.Error == "" {
			resp.Error = "generation returned empty JQL"
		}
		api.writeJSON(w, http.StatusOK, resp)
		return
	}

	resp.GeneratedJQL = gen.JQL
	res, err := api.jira.SearchIssues(r.Context(), gen.JQL, 0, req.MaxResults)
	if err != nil {
		api.logger.Warn("search rejected generated jql", "jql", gen.JQL, "error", err)
		resp.Error = "generated JQL rejected by search"
		resp.JiraError = err.Error()
		api.writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.Issues = res.Issues
	resp.Total = res.Total
	api.writeJSON(w, http.StatusOK, resp)
}
