package zephyr

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/testgenie-labs/testgenie-go/internal/platform/env"
)

const (
	apiVersion     = "1.0"
	defaultTimeout = 30 * time.Second

	// deleteConcurrency bounds simultaneous step deletions during a
	// replacement pass.
	deleteConcurrency = 6
)

type Config struct {
	BaseURL   string
	AccessKey string
	SecretKey string
	AccountID string
	ProjectID int
	Timeout   time.Duration
}

func ConfigFromEnv() (Config, error) {
	baseURL, err := env.Required("ZEPHYR_BASE_URL")
	if err != nil {
		return Config{}, err
	}
	accessKey, err := env.Required("ZEPHYR_ACCESS_KEY")
	if err != nil {
		return Config{}, err
	}
	secretKey, err := env.Required("ZEPHYR_SECRET_KEY")
	if err != nil {
		return Config{}, err
	}
	projectID, err := env.Int("ZEPHYR_PROJECT_ID", 0)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		AccessKey: accessKey,
		SecretKey: secretKey,
		AccountID: env.String("ZEPHYR_ACCOUNT_ID", ""),
		ProjectID: projectID,
		Timeout:   defaultTimeout,
	}
	timeout, err := env.Duration("ZEPHYR_TIMEOUT", defaultTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.Timeout = timeout
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("zephyr base url is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("zephyr access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("zephyr secret key is required")
	}
	if c.ProjectID <= 0 {
		return fmt.Errorf("zephyr project id must be positive (got %d)", c.ProjectID)
	}
	return nil
}
