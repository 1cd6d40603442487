// Package jobs schedules the background maintenance work.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/bankcards/card-service/internal/service"
)

// ExpirySweeper periodically blocks active cards whose expiry month has
// passed, so stale cards cannot keep moving money.
type ExpirySweeper struct {
	cards *service.CardService
	cron  *cron.Cron
	spec  string
	log   *logrus.Logger
}

// NewExpirySweeper builds a sweeper with a cron spec like "0 3 * * *".
func NewExpirySweeper(cards *service.CardService, spec string, log *logrus.Logger) *ExpirySweeper {
	return &ExpirySweeper{cards: cards, cron: cron.New(), spec: spec, log: log}
}

// Start registers the schedule and launches the cron runner.
func (s *ExpirySweeper) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.Sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Infof("Expiry sweep scheduled: %s", s.spec)
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *ExpirySweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep runs one pass immediately.
func (s *ExpirySweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := s.cards.BlockExpired(ctx, time.Now()); err != nil {
		s.log.Errorf("Expiry sweep failed: %v", err)
	}
}
