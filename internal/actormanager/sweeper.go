package actormanager

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// IdleSweeper periodically evicts actors that have gone quiet past a TTL,
// freeing their goroutine and mailbox. Actors are recreated on demand the
// next time a message lands on their topic, so eviction is safe.
type IdleSweeper struct {
	manager *Manager
	ttl     time.Duration
	logger  *slog.Logger
	cron    *cron.Cron
}

// NewIdleSweeper builds a sweeper bound to manager. schedule is a standard
// five-field cron expression (e.g. "*/5 * * * *" to sweep every five
// minutes); ttl is how long an actor may sit idle before eviction.
func NewIdleSweeper(manager *Manager, schedule string, ttl time.Duration, logger *slog.Logger) (*IdleSweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &IdleSweeper{
		manager: manager,
		ttl:     ttl,
		logger:  logger,
		cron:    cron.New(),
	}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins the cron schedule. It does not block.
func (s *IdleSweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for any in-flight sweep to finish.
func (s *IdleSweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *IdleSweeper) sweep() {
	removed := s.manager.SweepIdle(s.ttl)
	if len(removed) > 0 {
		s.logger.Info("actormanager: swept idle actors", "count", len(removed), "agent_ids", removed)
	}
}
