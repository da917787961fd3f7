package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultSweepSpec = "@every 10m"
	sweepTimeout     = time.Minute
)

// Sweeper drops expired sessions and reports how many were removed.
type Sweeper interface {
	Sweep(ctx context.Context) int
}

type Scheduler struct {
	ctx     context.Context
	cron    *cron.Cron
	spec    string
	sweeper Sweeper
	log     *slog.Logger
}

func New(ctx context.Context, spec string, sweeper Sweeper, log *slog.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultSweepSpec
	}

	return &Scheduler{
		ctx:     ctx,
		cron:    cron.New(cron.WithLocation(time.UTC)),
		spec:    spec,
		sweeper: sweeper,
		log:     log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.sweepSessions); err != nil {
		return err
	}

	s.cron.Start()

	return nil
}

// Stop halts the cron and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sweepSessions() {
	ctx, cancel := context.WithTimeout(s.ctx, sweepTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	removed := s.sweeper.Sweep(ctx)
	if removed > 0 {
		s.log.InfoContext(ctx, "Expired chat sessions removed",
			"removed", removed)
	}
}
