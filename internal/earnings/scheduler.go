package earnings

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler drives the periodic sync-all sweep on a cron schedule
type Scheduler struct {
	service  *Service
	schedule string
	cron     *cron.Cron
}

func NewScheduler(service *Service, schedule string) *Scheduler {
	return &Scheduler{
		service:  service,
		schedule: schedule,
	}
}

// Start registers the sweep job and starts the cron scheduler
func (s *Scheduler) Start() error {
	logger := log.With().Str("component", "sync_scheduler").Logger()

	s.cron = cron.New()

	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		summary, err := s.service.SyncAll(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("scheduled sync sweep failed")
			return
		}

		logger.Info().
			Int("synced", summary.Synced).
			Int("skipped", summary.Skipped).
			Int("failed", summary.Failed).
			Msg("scheduled sync sweep finished")
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	logger.Info().Str("schedule", s.schedule).Msg("sync scheduler started")
	return nil
}

// Stop halts the scheduler, waiting for a running sweep to finish
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}
