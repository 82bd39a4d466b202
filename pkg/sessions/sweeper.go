package sessions

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/testboss/testboss/pkg/observability"
)

// Sweeper periodically removes expired session rows. Expiry is still
// enforced lazily at resolution time; the sweep only bounds table
// growth.
type Sweeper struct {
	service *PostgresService
	logger  *observability.Logger
	cron    *cron.Cron
}

// NewSweeper creates a sweeper running on the given cron schedule
func NewSweeper(service *PostgresService, logger *observability.Logger, schedule string) (*Sweeper, error) {
	s := &Sweeper{
		service: service,
		logger:  logger,
		cron:    cron.New(),
	}

	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	return s, nil
}

// Start begins the background sweep
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the background sweep, waiting for a running sweep to finish
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweep() {
	deleted, err := s.service.DeleteExpired()
	if err != nil {
		s.logger.WithError(err).Error("session sweep failed")
		return
	}
	if deleted > 0 {
		s.logger.WithField("deleted", deleted).Info("swept expired sessions")
	}
}
