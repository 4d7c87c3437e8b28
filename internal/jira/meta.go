package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Project is the identity triple of a Jira project.
type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Board is a Jira software board.
type Board struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Sprint is a board sprint.
type Sprint struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

// Component is a project component.
type Component struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Version is a project version.
type Version struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Released bool   `json:"released"`
}

// User is an assignable project member.
type User struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
	Active      bool   `json:"active"`
}

// Projects lists projects visible to the integration user. When a project
// is configured, the listing is narrowed to it so the frontend only offers
// the deployment's project.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var raw []Project
	if err := c.do(ctx, http.MethodGet, "/rest/api/3/project", nil, &raw); err != nil {
		return nil, err
	}
	if c.cfg.ProjectID == "" && c.cfg.ProjectKey == "" {
		return raw, nil
	}
	out := make([]Project, 0, 1)
	for _, p := range raw {
		if p.ID == c.cfg.ProjectID || p.Key == c.cfg.ProjectKey || p.Name == c.cfg.ProjectName {
			out = append(out, p)
		}
	}
	return out, nil
}

// Boards lists the boards of the configured project.
func (c *Client) Boards(ctx context.Context) ([]Board, error) {
	path := "/rest/agile/1.0/board"
	if c.cfg.ProjectKey != "" {
		path += "?projectKeyOrId=" + url.QueryEscape(c.cfg.ProjectKey)
	}
	var raw struct {
		Values []Board `json:"values"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	return raw.Values, nil
}

// Sprints lists a board's sprints, active and future first the way Jira
// orders them. An empty boardID falls back to the configured board.
func (c *Client) Sprints(ctx context.Context, boardID string) ([]Sprint, error) {
	if boardID == "" {
		boardID = c.cfg.BoardID
	}
	if boardID == "" {
		return nil, fmt.Errorf("board id is required")
	}
	var raw struct {
		Values []Sprint `json:"values"`
	}
	path := "/rest/agile/1.0/board/" + url.PathEscape(boardID) + "/sprint"
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	return raw.Values, nil
}

// Components lists the configured project's components.
func (c *Client) Components(ctx context.Context) ([]Component, error) {
	if c.cfg.ProjectKey == "" && c.cfg.ProjectID == "" {
		return nil, fmt.Errorf("jira project is not configured")
	}
	project := c.cfg.ProjectKey
	if project == "" {
		project = c.cfg.ProjectID
	}
	var raw []Component
	path := "/rest/api/3/project/" + url.PathEscape(project) + "/components"
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Versions lists the configured project's versions.
func (c *Client) Versions(ctx context.Context) ([]Version, error) {
	if c.cfg.ProjectKey == "" && c.cfg.ProjectID == "" {
		return nil, fmt.Errorf("jira project is not configured")
	}
	project := c.cfg.ProjectKey
	if project == "" {
		project = c.cfg.ProjectID
	}
	var raw []Version
	path := "/rest/api/3/project/" + url.PathEscape(project) + "/versions"
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// AssignableUsers lists users assignable to issues in the configured
// project.
func (c *Client) AssignableUsers(ctx context.Context) ([]User, error) {
	if c.cfg.ProjectKey == "" {
		return nil, fmt.Errorf("jira project key is not configured")
	}
	var raw []struct {
		AccountID   string `json:"accountId"`
		DisplayName string `json:"displayName"`
		Active      bool   `json:"active"`
	}
	path := "/rest/api/3/user/assignable/search?project=" + url.QueryEscape(c.cfg.ProjectKey)
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]User, 0, len(raw))
	for _, u := range raw {
		out = append(out, User{AccountID: u.AccountID, DisplayName: u.DisplayName, Active: u.Active})
	}
	return out, nil
}
