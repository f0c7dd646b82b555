package app

import (
	"context"
	"fmt"
	"time"

	"github.com/samvad-hq/qualclient/internal/config"
	"github.com/samvad-hq/qualclient/internal/harvest"
	"github.com/samvad-hq/qualclient/internal/logger"
	"github.com/samvad-hq/qualclient/internal/storage"
	"github.com/samvad-hq/qualclient/pkg/publishers"
	"github.com/samvad-hq/qualclient/pkg/qualtrics"
	"github.com/samvad-hq/qualclient/pkg/surveys"
)

// Harvester represents the response harvester runtime. It periodically
// exports every enabled survey and publishes responses it has not seen yet.
type Harvester struct {
	cfg             *config.Config
	surveyReg       *surveys.Registry
	client          *qualtrics.Client
	fanout          *publishers.Fanout
	service         *harvest.Service
	harvestInterval time.Duration
	log             logger.Logger
	store           storage.Store
}

// NewHarvester builds a harvester runtime from config files.
func NewHarvester(ctx context.Context, cfg *config.Config, log logger.Logger) (*Harvester, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := NewQualtricsClient(cfg, log)
	if err != nil {
		return nil, err
	}

	surveyReg, err := surveys.LoadRegistry(cfg.SurveysFile)
	if err != nil {
		return nil, fmt.Errorf("load surveys registry: %w", err)
	}
	surveyList := surveyReg.All()
	surveyIDs := make([]string, 0, len(surveyList))
	for _, s := range surveyList {
		surveyIDs = append(surveyIDs, s.ID)
	}
	log.InfoObj("surveys registry loaded", "surveys_meta", map[string]any{
		"count": len(surveyIDs),
		"ids":   surveyIDs,
	})

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}

	enabledPublishers := publisherReg.Enabled()
	if len(enabledPublishers) == 0 {
		return nil, fmt.Errorf("no publishers configured")
	}

	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabledPublishers, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	fanout := publishers.NewFanout(pubClients)
	publisherSummaries := make([]map[string]string, 0, len(enabledPublishers))
	for _, pubCfg := range enabledPublishers {
		publisherSummaries = append(publisherSummaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(publisherSummaries),
		"publishers": publisherSummaries,
	})

	storeOpts := storage.Options{
		ResponseTTL:     cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	}
	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storeOpts)
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"response_ttl_seconds":     int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	return &Harvester{
		cfg:             cfg,
		surveyReg:       surveyReg,
		client:          client,
		fanout:          fanout,
		service:         harvest.NewService(client, fanout, log, store),
		harvestInterval: cfg.HarvestInterval,
		log:             log,
		store:           store,
	}, nil
}

// Run starts the harvest loop until the context is cancelled.
func (h *Harvester) Run(ctx context.Context) error {
	if h == nil || h.service == nil {
		return fmt.Errorf("harvester is not initialized")
	}
	defer h.close()

	enabled := h.surveyReg.Enabled()
	if len(enabled) == 0 {
		h.log.WarnObj("no surveys enabled; harvester idle", "surveys_file", h.cfg.SurveysFile)
		<-ctx.Done()
		return ctx.Err()
	}

	h.resolveSurveyNames(ctx)

	h.log.InfoObj("harvester loop starting", "harvester_state", map[string]any{
		"surveys_count":    len(enabled),
		"publishers_count": h.fanout.Size(),
		"harvest_interval": h.harvestInterval.String(),
	})

	if err := h.runOnce(ctx); err != nil {
		h.log.ErrorObj("initial harvest failed", "error", err)
	}

	ticker := time.NewTicker(h.harvestInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.InfoObj("harvester loop exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := h.runOnce(ctx); err != nil {
				h.log.ErrorObj("scheduled harvest failed", "error", err)
			}
		}
	}
}

// resolveSurveyNames fills missing survey names from the account listing and
// warns about configured ids the token cannot see.
func (h *Harvester) resolveSurveyNames(ctx context.Context) {
	metas, err := h.client.ListSurveys(ctx)
	if err != nil {
		h.log.WarnObj("survey listing failed; names left unresolved", "error", err.Error())
		return
	}
	names := make(map[string]string, len(metas))
	for _, m := range metas {
		names[m.ID] = m.Name
	}
	for _, s := range h.surveyReg.Enabled() {
		name, ok := names[s.ID]
		if !ok {
			h.log.WarnObj("configured survey not visible to api token", "survey_id", s.ID)
			continue
		}
		h.surveyReg.SetName(s.ID, name)
	}
}

// runOnce performs a single harvest pass across all enabled surveys.
func (h *Harvester) runOnce(ctx context.Context) error {
	list := h.surveyReg.Enabled()
	start := time.Now()
	h.log.InfoObj("harvest started", "harvest_meta", map[string]any{
		"surveys_count": len(list),
		"started_at":    start.UTC(),
	})
	if err := h.service.Run(ctx, list); err != nil {
		return err
	}
	h.log.InfoObj("harvest completed", "harvest_meta", map[string]any{
		"surveys_count": len(list),
		"elapsed_ms":    time.Since(start).Milliseconds(),
	})
	return nil
}

// close releases publishers and the storage backend, logging any errors encountered.
func (h *Harvester) close() {
	if h == nil {
		return
	}
	if err := h.fanout.Close(); err != nil {
		h.log.ErrorObj("publisher close failed", "error", err)
	}
	if h.store == nil {
		return
	}
	if err := h.store.Close(); err != nil {
		h.log.ErrorObj("storage close failed", "error", err)
	}
}
