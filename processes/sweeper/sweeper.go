package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Store drops staging tables whose expiry is before [now], [*mssql.Store] satisfies it.
type Store interface {
	SweepStaging(ctx context.Context, now time.Time) (int, error)
}

// Sweeper runs the staging sweep on a cron schedule. Runs never overlap, a tick that fires while the
// previous sweep is still going is skipped.
type Sweeper struct {
	store  Store
	cron   *cron.Cron
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	running bool
}

func New(store Store, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:  store,
		cron:   cron.New(),
		logger: logger,
		now:    time.Now,
	}
}

// RunOnce sweeps immediately.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Info("Previous sweep is still running, skipping...")
		return 0, nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	return s.store.SweepStaging(ctx, s.now())
}

// Start schedules the sweep and blocks until [ctx] is done, waiting for a running sweep to finish.
func (s *Sweeper) Start(ctx context.Context, schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if dropped, err := s.RunOnce(ctx); err != nil {
			s.logger.Warn("Scheduled sweep failed", slog.Any("err", err))
		} else {
			s.logger.Debug("Scheduled sweep finished", slog.Int("dropped", dropped))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	s.logger.Info("Staging sweeper started", slog.String("schedule", schedule))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("Staging sweeper stopped")
	return nil
}
