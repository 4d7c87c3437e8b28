package main

import (
	"net/http"
	"strings"

	"github.com/testgenie-labs/testgenie-go/internal/jira"
)

type searchIssuesRequest struct {
	JQL        string `json:"jql"`
	StartAt    int    `json:"start_at,omitempty"`
	MaxResults int    `json:"max_results,omitempty"`
}

func (api *serverAPI) handleSearchIssues(w http.ResponseWriter, r *http.Request) {
	var req searchIssuesRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(req.JQL) == "" {
		api.writeError(w, r, http.StatusBadRequest, "jql_required")
		return
	}
	res, err := api.jira.SearchIssues(r.Context(), req.JQL, req.StartAt, req.MaxResults)
	if err != nil {
		api.upstreamError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, res)
}

func (api *serverAPI) handleProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := api.jira.Projects(r.Context())
	if err != nil {
		api.upstreamError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (api *serverAPI) handleBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := api.jira.Boards(r.Context())
	if err != nil {
		api.upstreamError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"boards": boards})
}

func (api *serverAPI) handleSprints(w http.ResponseWriter, r *http.Request) {
	boardID := strings.TrimSpace(r.URL.Query().Get("boardId"))
	sprints, err := api.jira.Sprints(r.Context(), boardID)
	if err != nil {
		api.upstreamError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"sprints": sprints})
}

func (api *serverAPI) handleComponents(w http.ResponseWriter, r *http.Request) {
	components, err := api.jira.Components(r.Context())
	if err != nil {
		api.upstreamError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"components": components})
}

func (api *serverAPI) handleVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := api.jira.Versions(r.Context())
	if err != nil {
		api.upstreamError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (api *serverAPI) handleUsers(w http.ResponseWriter, r *http.Request) {
	users, err := api.jira.AssignableUsers(r.Context())
	if err != nil {
		api.upstreamError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (api *serverAPI) handleFields(w http.ResponseWriter, r *http.Request) {
	var fields any
	var err error
	if r.URL.Query().Get("refresh") == "true" {
		fields, err = api.jira.RefreshFields(r.Context())
	} else {
		fields, err = api.jira.Fields(r.Context())
	}
	if err != nil {
		api.upstreamError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"fields": fields})
}

// handleCreateTestIssue creates a Test issue and links it to any named
// issues. Link failures are reported, not fatal.
func (api *serverAPI) handleCreateTestIssue(w http.ResponseWriter, r *http.Request) {
	var in jira.CreateTestInput
	if err := decodeJSON(r, &in); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(in.Summary) == "" {
		api.writeError(w, r, http.StatusBadRequest, "summary_required")
		return
	}
	created, err := api.jira.CreateTestIssue(r.Context(), in)
	if err != nil {
		api.upstreamError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusCreated, created)
}
