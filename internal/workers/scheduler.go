package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/open-builders/premium-backend/internal/common/logger"
	"github.com/open-builders/premium-backend/internal/service/entitlement"
)

// Cycler runs one maintenance cycle (reminders, then expiry sweep).
type Cycler interface {
	RunCycle(ctx context.Context) (entitlement.CycleResult, error)
}

// Scheduler runs the maintenance cycle on a cron schedule. Runs never
// overlap within one process; across replicas the sweep is safe anyway.
type Scheduler struct {
	cron   *cron.Cron
	cycler Cycler
	spec   string
	mu     sync.Mutex
	logger zerolog.Logger
}

func NewScheduler(spec string, cycler Cycler) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		cycler: cycler,
		spec:   spec,
		logger: logger.Component("scheduler"),
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs until ctx is cancelled and waits for an in-flight cycle.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info().Str("schedule", s.spec).Msg("Starting maintenance scheduler")
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Maintenance scheduler stopped")
	return nil
}

func (s *Scheduler) run() {
	if !s.mu.TryLock() {
		s.logger.Warn().Msg("Previous maintenance cycle still running, skipping")
		return
	}
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	res, err := s.cycler.RunCycle(ctx)
	if err != nil {
		s.logger.Error().Err(err).Int("expired", res.Expired).Msg("Maintenance cycle failed")
		return
	}
	s.logger.Info().Int("expired", res.Expired).Int("notices", res.Notices).Msg("Maintenance cycle finished")
}
