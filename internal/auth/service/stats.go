package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/identity/internal/auth/metrics"
	"github.com/aussiebroadwan/identity/internal/auth/store"
	"github.com/robfig/cron/v3"
)

// DefaultStatsSchedule is the cron spec used when none is configured.
const DefaultStatsSchedule = "@every 1m"

// StatsService periodically publishes session gauges. Refresh tokens are
// kept as an audit trail, so this job only counts; it never deletes.
type StatsService struct {
	Store    store.Store
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Schedule string

	Now func() time.Time

	cron *cron.Cron
}

func NewStatsService(st store.Store, m *metrics.Metrics, logger *slog.Logger, schedule string) *StatsService {
	if schedule == "" {
		schedule = DefaultStatsSchedule
	}
	return &StatsService{
		Store:    st,
		Metrics:  m,
		Logger:   logger,
		Schedule: schedule,
	}
}

// Start collects once and then schedules collection. It does not block.
func (s *StatsService) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(s.Schedule, func() { s.collect() }); err != nil {
		return fmt.Errorf("invalid stats schedule %q: %w", s.Schedule, err)
	}
	s.cron = c

	s.collect()
	c.Start()
	s.Logger.Info("stats job started", "schedule", s.Schedule)
	return nil
}

// Stop waits for a running collection to finish or ctx to expire.
func (s *StatsService) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	s.Logger.Info("stats job stopped")
}

func (s *StatsService) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.Collect(ctx); err != nil {
		s.Logger.Error("stats collection failed", "error", err)
	}
}

// Collect counts active sessions and MFA-enabled users and updates the gauges.
func (s *StatsService) Collect(ctx context.Context) error {
	active, err := s.Store.RefreshTokens().CountActiveRefreshTokens(ctx, clock(s.Now))
	if err != nil {
		return fmt.Errorf("failed to count active sessions: %w", err)
	}
	mfa, err := s.Store.MFAConfigs().CountEnabledMFAConfigs(ctx)
	if err != nil {
		return fmt.Errorf("failed to count MFA users: %w", err)
	}

	s.Metrics.SetSessionStats(active, mfa)
	s.Logger.Debug("session stats collected", "active_sessions", active, "mfa_enabled_users", mfa)
	return nil
}
