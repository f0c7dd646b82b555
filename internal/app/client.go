package app

import (
	"fmt"

	"github.com/samvad-hq/qualclient/internal/config"
	"github.com/samvad-hq/qualclient/internal/logger"
	"github.com/samvad-hq/qualclient/pkg/qualtrics"
)

// NewQualtricsClient builds an API client from the loaded configuration.
func NewQualtricsClient(cfg *config.Config, log logger.Logger) (*qualtrics.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	client, err := qualtrics.New(qualtrics.Config{
		Token:         cfg.APIToken,
		BaseURL:       cfg.APIURL,
		AuthScheme:    cfg.AuthScheme,
		PollInterval:  cfg.PollInterval,
		ExportTimeout: cfg.ExportTimeout,
		HTTPTimeout:   cfg.HTTPTimeout,
	}, qualtrics.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("init qualtrics client: %w", err)
	}
	return client, nil
}
