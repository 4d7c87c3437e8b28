package jira

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Issue is the summary view returned by searches.
type Issue struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	IssueType   string `json:"issue_type,omitempty"`
	Assignee    string `json:"assignee,omitempty"`
}

// SearchResult is one page of a JQL search.
type SearchResult struct {
	Issues     []Issue `json:"issues"`
	Total      int     `json:"total"`
	StartAt    int     `json:"start_at"`
	MaxResults int     `json:"max_results"`
}

// CreateTestInput describes a new Test issue.
type CreateTestInput struct {
	Summary         string   `json:"summary"`
	Description     string   `json:"description,omitempty"`
	AssigneeID      string   `json:"assignee_id,omitempty"`
	Components      []string `json:"components,omitempty"`
	Labels          []string `json:"labels,omitempty"`
	SprintID        int      `json:"sprint_id,omitempty"`
	LinkedIssueKeys []string `json:"linked_issue_keys,omitempty"`
}

// CreatedIssue is the identity of a freshly created issue plus any
// non-fatal link failures.
type CreatedIssue struct {
	ID         string   `json:"id"`
	Key        string   `json:"key"`
	Self       string   `json:"self,omitempty"`
	LinkErrors []string `json:"link_errors,omitempty"`
}

// SearchIssues runs a JQL query with bounded paging.
func (c *Client) SearchIssues(ctx context.Context, jql string, startAt, maxResults int) (SearchResult, error) {
	if strings.TrimSpace(jql) == "" {
		return SearchResult{}, fmt.Errorf("jql is required")
	}
	if maxResults <= 0 || maxResults > 100 {
		maxResults = 50
	}
	if startAt < 0 {
		startAt = 0
	}

	body := map[string]any{
		"jql":        jql,
		"startAt":    startAt,
		"maxResults": maxResults,
		"fields":     []string{"summary", "description", "status", "issuetype", "assignee"},
	}
	var raw struct {
		Total      int `json:"total"`
		StartAt    int `json:"startAt"`
		MaxResults int `json:"maxResults"`
		Issues     []struct {
			ID     string `json:"id"`
			Key    string `json:"key"`
			Fields struct {
				Summary     string `json:"summary"`
				Description any    `json:"description"`
				Status      struct {
					Name string `json:"name"`
				} `json:"status"`
				IssueType struct {
					Name string `json:"name"`
				} `json:"issuetype"`
				Assignee struct {
					DisplayName string `json:"displayName"`
				} `json:"assignee"`
			} `json:"fields"`
		} `json:"issues"`
	}
	if err := c.do(ctx, http.MethodPost, "/rest/api/3/search", body, &raw); err != nil {
		return SearchResult{}, err
	}

	res := SearchResult{
		Total:      raw.Total,
		StartAt:    raw.StartAt,
		MaxResults: raw.MaxResults,
		Issues:     make([]Issue, 0, len(raw.Issues)),
	}
	for _, it := range raw.Issues {
		res.Issues = append(res.Issues, Issue{
			ID:          it.ID,
			Key:         it.Key,
			Summary:     it.Fields.Summary,
			Description: ADFToText(it.Fields.Description),
			Status:      it.Fields.Status.Name,
			IssueType:   it.Fields.IssueType.Name,
			Assignee:    it.Fields.Assignee.DisplayName,
		})
	}
	return res, nil
}

// CreateTestIssue creates a Test-type issue in the configured project and
// links it to the given issues. Link failures do not fail the creation;
// they are reported per link so the caller can surface them.
func (c *Client) CreateTestIssue(ctx context.Context, in CreateTestInput) (CreatedIssue, error) {
	if strings.TrimSpace(in.Summary) == "" {
		return CreatedIssue{}, fmt.Errorf("summary is required")
	}
	if c.cfg.ProjectID == "" {
		return CreatedIssue{}, fmt.Errorf("jira project id is not configured")
	}

	fields := map[string]any{
		"project":   map[string]string{"id": c.cfg.ProjectID},
		"summary":   in.Summary,
		"issuetype": map[string]string{"name": "Test"},
	}
	if in.Description != "" {
		fields["description"] = TextToADF(in.Description)
	}
	if in.AssigneeID != "" {
		fields["assignee"] = map[string]string{"id": in.AssigneeID}
	}
	if len(in.Components) > 0 {
		comps := make([]map[string]string, 0, len(in.Components))
		for _, name := range in.Components {
			comps = append(comps, map[string]string{"name": name})
		}
		fields["components"] = comps
	}
	if len(in.Labels) > 0 {
		fields["labels"] = in.Labels
	}
	if in.SprintID > 0 && c.cfg.SprintField != "" {
		fields[c.cfg.SprintField] = in.SprintID
	}

	var created CreatedIssue
	if err := c.do(ctx, http.MethodPost, "/rest/api/3/issue", map[string]any{"fields": fields}, &created); err != nil {
		return CreatedIssue{}, err
	}
	c.logger.Info("test issue created", "key", created.Key, "id", created.ID)

	for _, target := range in.LinkedIssueKeys {
		if err := c.LinkIssues(ctx, created.Key, target); err != nil {
			created.LinkErrors = append(created.LinkErrors,
				fmt.Sprintf("link %s to %s: %v", created.Key, target, err))
		}
	}
	return created, nil
}

// LinkIssues creates a Relates link with the new issue on the outward side.
func (c *Client) LinkIssues(ctx context.Context, outwardKey, inwardKey string) error {
	body := map[string]any{
		"type":         map[string]string{"name": "Relates"},
		"outwardIssue": map[string]string{"key": outwardKey},
		"inwardIssue":  map[string]string{"key": inwardKey},
	}
	return c.do(ctx, http.MethodPost, "/rest/api/3/issueLink", body, nil)
}
