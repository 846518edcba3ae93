package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	envProjectRoot     = "PS_PROJECT_ROOT"
	envSuiteFile       = "PS_SUITE_FILE"
	envSuiteName       = "PS_SUITE_NAME"
	envTerraformBin    = "PS_TERRAFORM_BIN"
	envPythonBin       = "PS_PYTHON_BIN"
	envCommandTimeout  = "PS_COMMAND_TIMEOUT"
	envHTTPTimeout     = "PS_HTTP_TIMEOUT"
	envLogLevel        = "PS_LOG_LEVEL"
	envPollInterval    = "PS_POLL_INTERVAL"
	envStatePath       = "PS_STATE_PATH"
	envHealthPort      = "PS_HEALTH_PORT"
	envMetricsPort     = "PS_METRICS_PORT"
	envSlackWebhookURL = "PS_SLACK_WEBHOOK_URL"
	envWebhookURL      = "PS_WEBHOOK_URL"
	envWebhookTemplate = "PS_WEBHOOK_TEMPLATE"
	envNotifyDryRun    = "PS_NOTIFY_DRY_RUN"
)

const (
	defaultProjectRoot    = "."
	defaultSuiteName      = "default"
	defaultTerraformBin   = "terraform"
	defaultPythonBin      = "python3"
	defaultCommandTimeout = 10 * time.Minute
	defaultHTTPTimeout    = 15 * time.Second
	defaultLogLevel       = "info"
	defaultPollInterval   = 5 * time.Minute
)

// Config describes runtime configuration loaded from the environment.
// Gate variables consumed by individual checks are not part of it.
type Config struct {
	ProjectRoot    string
	SuiteFile      string
	SuiteName      string
	TerraformBin   string
	PythonBin      string
	CommandTimeout time.Duration
	HTTPTimeout    time.Duration
	LogLevel       string

	PollInterval    time.Duration
	StatePath       string
	HealthPort      int
	MetricsPort     int
	SlackWebhookURL string
	WebhookURL      string
	WebhookTemplate string
	NotifyDryRun    bool
}

// Load reads configuration from environment variables and a local .env file if present.
// Existing environment variables take precedence over values in .env.
func Load() (Config, error) {
	if err := loadDotEnvIfPresent(".env"); err != nil {
		return Config{}, err
	}

	cfg := Config{
		ProjectRoot:    defaultProjectRoot,
		SuiteName:      defaultSuiteName,
		TerraformBin:   defaultTerraformBin,
		PythonBin:      defaultPythonBin,
		CommandTimeout: defaultCommandTimeout,
		HTTPTimeout:    defaultHTTPTimeout,
		LogLevel:       defaultLogLevel,
		PollInterval:   defaultPollInterval,
	}

	setString(&cfg.ProjectRoot, envProjectRoot)
	setString(&cfg.SuiteFile, envSuiteFile)
	setString(&cfg.SuiteName, envSuiteName)
	setString(&cfg.TerraformBin, envTerraformBin)
	setString(&cfg.PythonBin, envPythonBin)
	setString(&cfg.LogLevel, envLogLevel)
	setString(&cfg.StatePath, envStatePath)
	setString(&cfg.SlackWebhookURL, envSlackWebhookURL)
	setString(&cfg.WebhookURL, envWebhookURL)
	setString(&cfg.WebhookTemplate, envWebhookTemplate)

	if value, ok := lookupTrimmed(envCommandTimeout); ok {
		timeout, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envCommandTimeout, err)
		}
		if timeout < 0 {
			return Config{}, fmt.Errorf("%s cannot be negative", envCommandTimeout)
		}
		cfg.CommandTimeout = timeout
	}

	if value, ok := lookupTrimmed(envHTTPTimeout); ok {
		timeout, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envHTTPTimeout, err)
		}
		if timeout <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than zero", envHTTPTimeout)
		}
		cfg.HTTPTimeout = timeout
	}

	if value, ok := lookupTrimmed(envPollInterval); ok {
		interval, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envPollInterval, err)
		}
		if interval <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than zero", envPollInterval)
		}
		cfg.PollInterval = interval
	}

	var err error
	if cfg.HealthPort, err = lookupPort(envHealthPort); err != nil {
		return Config{}, err
	}
	if cfg.MetricsPort, err = lookupPort(envMetricsPort); err != nil {
		return Config{}, err
	}

	if value, ok := lookupTrimmed(envNotifyDryRun); ok && value != "" {
		dryRun, err := strconv.ParseBool(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envNotifyDryRun, err)
		}
		cfg.NotifyDryRun = dryRun
	}

	if cfg.ProjectRoot == "" {
		return Config{}, errors.New("PS_PROJECT_ROOT must not be empty")
	}
	if cfg.SuiteName == "" {
		return Config{}, errors.New("PS_SUITE_NAME must not be empty")
	}

	if cfg.SlackWebhookURL != "" {
		if err := validateURL(cfg.SlackWebhookURL, envSlackWebhookURL); err != nil {
			return Config{}, err
		}
	}
	if cfg.WebhookURL != "" {
		if err := validateURL(cfg.WebhookURL, envWebhookURL); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

func setString(target *string, key string) {
	if value, ok := lookupTrimmed(key); ok && value != "" {
		*target = value
	}
}

func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func lookupPort(key string) (int, error) {
	value, ok := lookupTrimmed(key)
	if !ok || value == "" {
		return 0, nil
	}
	port, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("invalid %s: port out of range", key)
	}
	return port, nil
}

func loadDotEnvIfPresent(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return nil
	}

	return err
}

func validateURL(value, name string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid %s: must include scheme and host", name)
	}
	return nil
}
