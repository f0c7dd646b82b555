package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	APIToken             string        `mapstructure:"qualtrics_api_token"`
	APIURL               string        `mapstructure:"qualtrics_api_url"`
	AuthScheme           string        `mapstructure:"qualtrics_auth_scheme"`
	PollIntervalMs       int64         `mapstructure:"export_poll_interval_ms"`
	ExportTimeoutSeconds int64         `mapstructure:"export_timeout_seconds"`
	HTTPTimeoutSeconds   int64         `mapstructure:"http_timeout_seconds"`
	PollInterval         time.Duration `mapstructure:"-"`
	ExportTimeout        time.Duration `mapstructure:"-"`
	HTTPTimeout          time.Duration `mapstructure:"-"`

	SurveysFile            string        `mapstructure:"surveys_file"`
	PublishersFile         string        `mapstructure:"publishers_file"`
	HarvestIntervalSeconds int64         `mapstructure:"harvest_interval"`
	HarvestInterval        time.Duration `mapstructure:"-"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "qualclient")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("qualtrics_api_token", "")
	v.SetDefault("qualtrics_api_url", "")
	v.SetDefault("qualtrics_auth_scheme", "token")
	v.SetDefault("export_poll_interval_ms", 5000)
	v.SetDefault("export_timeout_seconds", 600)
	v.SetDefault("http_timeout_seconds", 60)
	v.SetDefault("surveys_file", "./configs/surveys.yaml")
	v.SetDefault("publishers_file", "./configs/publishers.yaml")
	v.SetDefault("harvest_interval", 3600) // seconds
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/responses.db")
	v.SetDefault("storage_ttl_seconds", 0) // 0 keeps marks forever
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.APIToken = strings.TrimSpace(cfg.APIToken)
	cfg.APIURL = strings.TrimSpace(cfg.APIURL)
	cfg.AuthScheme = strings.ToLower(strings.TrimSpace(cfg.AuthScheme))

	switch cfg.AuthScheme {
	case "token", "bearer":
	default:
		return nil, fmt.Errorf("invalid qualtrics_auth_scheme %q (expected token or bearer)", cfg.AuthScheme)
	}

	if cfg.PollIntervalMs <= 0 {
		return nil, fmt.Errorf("invalid export_poll_interval_ms (must be positive milliseconds)")
	}
	if cfg.ExportTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid export_timeout_seconds (must be positive seconds)")
	}
	if cfg.HTTPTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid http_timeout_seconds (must be positive seconds)")
	}
	cfg.PollInterval = time.Duration(cfg.PollIntervalMs) * time.Millisecond
	cfg.ExportTimeout = time.Duration(cfg.ExportTimeoutSeconds) * time.Second
	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSeconds) * time.Second

	if cfg.HarvestIntervalSeconds <= 0 {
		return nil, fmt.Errorf("invalid harvest_interval (must be positive seconds)")
	}
	cfg.HarvestInterval = time.Duration(cfg.HarvestIntervalSeconds) * time.Second

	if cfg.StorageTTLSeconds < 0 {
		return nil, fmt.Errorf("invalid storage_ttl_seconds (must be zero or positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second

	return &cfg, nil
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.APIToken != "" {
		c.APIToken = "****"
	}
	return c
}
