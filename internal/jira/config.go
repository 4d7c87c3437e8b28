package jira

import (
	"errors"
	"strings"
	"time"

	"github.com/testgenie-labs/testgenie-go/internal/platform/env"
)

const (
	defaultTimeout = 30 * time.Second

	// defaultSprintField is Jira's stock sprint custom field. Instances
	// with a relocated field override it.
	defaultSprintField = "customfield_10007"
)

type Config struct {
	BaseURL  string
	Username string
	APIToken string

	// The single project this deployment serves.
	ProjectID   string
	ProjectKey  string
	ProjectName string
	BoardID     string
	SprintField string

	Timeout time.Duration
}

func ConfigFromEnv() (Config, error) {
	baseURL, err := env.Required("JIRA_BASE_URL")
	if err != nil {
		return Config{}, err
	}
	username, err := env.Required("JIRA_USERNAME")
	if err != nil {
		return Config{}, err
	}
	token, err := env.Required("JIRA_API_TOKEN")
	if err != nil {
		return Config{}, err
	}
	timeout, err := env.Duration("JIRA_TIMEOUT", defaultTimeout)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Username:    username,
		APIToken:    token,
		ProjectID:   env.String("JIRA_PROJECT_ID", ""),
		ProjectKey:  env.String("JIRA_PROJECT_KEY", ""),
		ProjectName: env.String("JIRA_PROJECT_NAME", ""),
		BoardID:     env.String("JIRA_BOARD_ID", ""),
		SprintField: env.String("JIRA_SPRINT_FIELD", defaultSprintField),
		Timeout:     timeout,
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("jira base url is required")
	}
	if strings.TrimSpace(c.Username) == "" {
		return errors.New("jira username is required")
	}
	if strings.TrimSpace(c.APIToken) == "" {
		return errors.New("jira api token is required")
	}
	return nil
}
