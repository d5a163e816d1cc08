package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/acadence/notification-service/internal/config"
	"github.com/acadence/notification-service/internal/service"
)

// Scheduler owns the recurring jobs: the weekly digest campaign, the periodic
// Classroom sync and the stale sync log reaper. All jobs run in the cron
// library's own goroutines.
type Scheduler struct {
	cron        *cron.Cron
	campaignSvc service.CampaignService
	syncSvc     service.SyncService
	campaignCfg config.CampaignConfig
	syncCfg     config.SyncConfig
	logger      zerolog.Logger
}

func New(
	campaignSvc service.CampaignService,
	syncSvc service.SyncService,
	campaignCfg config.CampaignConfig,
	syncCfg config.SyncConfig,
	logger zerolog.Logger,
) (*Scheduler, error) {
	location, err := time.LoadLocation(campaignCfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign timezone %q: %w", campaignCfg.Timezone, err)
	}

	return &Scheduler{
		cron:        cron.New(cron.WithLocation(location)),
		campaignSvc: campaignSvc,
		syncSvc:     syncSvc,
		campaignCfg: campaignCfg,
		syncCfg:     syncCfg,
		logger:      logger,
	}, nil
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.campaignCfg.CronSpec, s.runCampaign); err != nil {
		return fmt.Errorf("failed to schedule weekly campaign: %w", err)
	}

	syncSpec := fmt.Sprintf("@every %s", s.syncCfg.Interval)
	if _, err := s.cron.AddFunc(syncSpec, s.runSync); err != nil {
		return fmt.Errorf("failed to schedule classroom sync: %w", err)
	}

	reaperSpec := fmt.Sprintf("@every %s", s.syncCfg.ReaperInterval)
	if _, err := s.cron.AddFunc(reaperSpec, s.runReaper); err != nil {
		return fmt.Errorf("failed to schedule sync log reaper: %w", err)
	}

	s.cron.Start()

	s.logger.Info().
		Str("campaign_spec", s.campaignCfg.CronSpec).
		Str("timezone", s.campaignCfg.Timezone).
		Dur("sync_interval", s.syncCfg.Interval).
		Dur("reaper_interval", s.syncCfg.ReaperInterval).
		Msg("Scheduler started")

	return nil
}

// Stop halts scheduling and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) runCampaign() {
	s.logger.Info().Msg("Starting weekly attendance campaign")

	summary, err := s.campaignSvc.Run(context.Background())
	if err != nil {
		s.logger.Error().Err(err).Msg("Weekly campaign failed")
		return
	}

	s.logger.Info().
		Int("sent", summary.Sent).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Str("duration", summary.Duration).
		Msg("Weekly campaign completed")
}

func (s *Scheduler) runSync() {
	s.logger.Info().Msg("Starting scheduled classroom sync")

	summary, err := s.syncSvc.SyncAll(context.Background())
	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduled classroom sync failed")
		return
	}

	s.logger.Info().
		Int("total", summary.Total).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Msg("Scheduled classroom sync completed")
}

func (s *Scheduler) runReaper() {
	count, err := s.syncSvc.ReapStaleLogs(context.Background())
	if err != nil {
		s.logger.Error().Err(err).Msg("Sync log reaper failed")
		return
	}
	if count > 0 {
		s.logger.Warn().Int("count", count).Msg("Marked stale sync logs as failed")
	}
}
