package config

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/nholik/wolfpy-pipeline/internal/failure"
)

const (
	envProjectRoot     = "WOLFPY_PROJECT_ROOT"
	envPython          = "WOLFPY_PYTHON"
	envLogLevel        = "WOLFPY_LOG_LEVEL"
	envSettingsFile    = "WOLFPY_SETTINGS_FILE"
	envDockerHost      = "WOLFPY_DOCKER_HOST"
	envSlackWebhookURL = "WOLFPY_SLACK_WEBHOOK_URL"
	envWebhookURL      = "WOLFPY_WEBHOOK_URL"
	envWebhookTemplate = "WOLFPY_WEBHOOK_TEMPLATE"
	envNotifyDryRun    = "WOLFPY_NOTIFY_DRY_RUN"
	envMetricsFile     = "WOLFPY_METRICS_FILE"
)

const (
	defaultPython       = "python"
	defaultLogLevel     = "info"
	defaultSettingsFile = "wolfpy.yaml"
)

// Config describes runtime configuration loaded from the environment.
type Config struct {
	ProjectRoot     string
	Python          string
	LogLevel        string
	SettingsFile    string
	DockerHost      string
	SlackWebhookURL string
	WebhookURL      string
	WebhookTemplate string
	NotifyDryRun    bool
	MetricsFile     string
}

// Load reads configuration from environment variables and a local .env file if present.
// Existing environment variables take precedence over values in .env.
func Load() (Config, error) {
	if err := loadDotEnvIfPresent(".env"); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Python:   defaultPython,
		LogLevel: defaultLogLevel,
	}

	if value, ok := lookupTrimmed(envProjectRoot); ok && value != "" {
		cfg.ProjectRoot = value
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, err
		}
		cfg.ProjectRoot = wd
	}
	root, err := filepath.Abs(cfg.ProjectRoot)
	if err != nil {
		return Config{}, &failure.ConfigError{Field: envProjectRoot, Reason: err.Error()}
	}
	cfg.ProjectRoot = root

	if value, ok := lookupTrimmed(envPython); ok && value != "" {
		cfg.Python = value
	}
	if value, ok := lookupTrimmed(envLogLevel); ok && value != "" {
		cfg.LogLevel = value
	}

	cfg.SettingsFile = filepath.Join(cfg.ProjectRoot, defaultSettingsFile)
	if value, ok := lookupTrimmed(envSettingsFile); ok && value != "" {
		if !filepath.IsAbs(value) {
			value = filepath.Join(cfg.ProjectRoot, value)
		}
		cfg.SettingsFile = value
	}

	if value, ok := lookupTrimmed(envDockerHost); ok {
		cfg.DockerHost = value
	}
	if value, ok := lookupTrimmed(envSlackWebhookURL); ok {
		cfg.SlackWebhookURL = value
	}
	if value, ok := lookupTrimmed(envWebhookURL); ok {
		cfg.WebhookURL = value
	}
	if value, ok := os.LookupEnv(envWebhookTemplate); ok {
		cfg.WebhookTemplate = value
	}
	if value, ok := lookupTrimmed(envMetricsFile); ok {
		cfg.MetricsFile = value
	}

	if value, ok := lookupTrimmed(envNotifyDryRun); ok && value != "" {
		dryRun, err := strconv.ParseBool(value)
		if err != nil {
			return Config{}, &failure.ConfigError{Field: envNotifyDryRun, Reason: "must be a boolean"}
		}
		cfg.NotifyDryRun = dryRun
	}

	if cfg.DockerHost != "" {
		if err := validateDockerHost(cfg.DockerHost); err != nil {
			return Config{}, err
		}
	}
	if cfg.SlackWebhookURL != "" {
		if err := validateHTTPURL(cfg.SlackWebhookURL, envSlackWebhookURL); err != nil {
			return Config{}, err
		}
	}
	if cfg.WebhookURL != "" {
		if err := validateHTTPURL(cfg.WebhookURL, envWebhookURL); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
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

func validateHTTPURL(value, name string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return &failure.ConfigError{Field: name, Reason: err.Error()}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &failure.ConfigError{Field: name, Reason: "scheme must be http or https"}
	}
	if parsed.Host == "" {
		return &failure.ConfigError{Field: name, Reason: "must include scheme and host"}
	}
	return nil
}

// validateDockerHost accepts the daemon address forms the engine client understands.
// unix:// and npipe:// addresses carry a path instead of a host.
func validateDockerHost(value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return &failure.ConfigError{Field: envDockerHost, Reason: err.Error()}
	}
	switch parsed.Scheme {
	case "unix", "npipe":
		if parsed.Path == "" {
			return &failure.ConfigError{Field: envDockerHost, Reason: "socket path is required"}
		}
	case "tcp", "http", "https":
		if parsed.Host == "" {
			return &failure.ConfigError{Field: envDockerHost, Reason: "must include scheme and host"}
		}
	default:
		return &failure.ConfigError{Field: envDockerHost, Reason: "unsupported scheme " + strconv.Quote(parsed.Scheme)}
	}
	return nil
}
