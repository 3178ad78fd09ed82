// Package scheduler keeps the persisted TFEX flow history fresh with a
// daily post-close snapshot, so the history blob does not depend on someone
// hitting the live endpoints every trading day.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"set-market-api/internal/tradesum"
)

type History interface {
	MergeAndSave(ctx context.Context, incoming *tradesum.Observation) (tradesum.Series, error)
}

type Scheduler struct {
	cron    *cron.Cron
	history History
	scrape  func(ctx context.Context) (*tradesum.Observation, error)
	log     zerolog.Logger
}

// New builds a scheduler in the given location. The scrape callback returns
// today's net observation; failures are logged and retried at the next tick,
// never escalated.
func New(loc *time.Location, history History, scrape func(ctx context.Context) (*tradesum.Observation, error), log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		history: history,
		scrape:  scrape,
		log:     log,
	}
}

// Register adds the snapshot job under the given cron spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.snapshot); err != nil {
		return fmt.Errorf("register snapshot job: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("snapshot scheduler started")
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.log.Info().Msg("snapshot scheduler stopped")
}

func (s *Scheduler) snapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	obs, err := s.scrape(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("snapshot scrape failed, history left unchanged")
		return
	}
	merged, err := s.history.MergeAndSave(ctx, obs)
	if err != nil {
		s.log.Warn().Err(err).Msg("snapshot merge failed")
		return
	}
	s.log.Info().
		Str("date", obs.Date.Format("2006-01-02")).
		Int("rows", len(merged)).
		Msg("history snapshot merged")
}
