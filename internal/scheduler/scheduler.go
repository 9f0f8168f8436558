package scheduler

import (
	"context"
	"fmt"
	"time"

	"pubg-rank-bot/internal/config"
	"pubg-rank-bot/internal/discord"
	"pubg-rank-bot/internal/service"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

type BatchSyncer interface {
	SyncAll(ctx context.Context, roles service.RoleManager) (*service.BatchReport, error)
}

// Scheduler runs a batch sync of every registered player on a fixed interval.
type Scheduler struct {
	cron     *gocron.Scheduler
	syncer   BatchSyncer
	roles    service.RoleManager
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	logger   zerolog.Logger
}

func New(cfg *config.Config, syncSvc *service.SyncService, bot *discord.Bot, logger zerolog.Logger) *Scheduler {
	var roles service.RoleManager
	if cfg.GuildID != "" {
		roles = bot.Roles(cfg.GuildID)
	}
	return newScheduler(syncSvc, roles, cfg.SyncInterval, logger)
}

func newScheduler(syncer BatchSyncer, roles service.RoleManager, interval time.Duration, logger zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     gocron.NewScheduler(time.UTC),
		syncer:   syncer,
		roles:    roles,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info().Msg("periodic sync disabled")
		return nil
	}
	if s.roles == nil {
		s.logger.Warn().Msg("no guild configured, periodic sync will not update roles")
	}

	if _, err := s.cron.Every(s.interval).SingletonMode().WaitForSchedule().Do(s.run); err != nil {
		return fmt.Errorf("failed to schedule sync: %w", err)
	}
	s.cron.StartAsync()
	s.logger.Info().Dur("interval", s.interval).Msg("periodic sync scheduled")
	return nil
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
}

func (s *Scheduler) run() {
	start := time.Now()
	report, err := s.syncer.SyncAll(s.ctx, s.roles)
	if report == nil {
		s.logger.Error().Err(err).Msg("periodic sync failed")
		return
	}

	event := s.logger.Info()
	if err != nil {
		event = s.logger.Warn().Err(err)
	}
	event.
		Int("players", report.Total).
		Int("synced", report.Synced).
		Int("failed", len(report.Failed)).
		Int("role_failures", len(report.RoleFailures)).
		Bool("aborted", report.Aborted).
		Dur("took", time.Since(start)).
		Msg("periodic sync finished")
}
