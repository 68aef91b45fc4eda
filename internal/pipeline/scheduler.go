package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/boardwatch/internal/logging"
	"github.com/JakeFAU/boardwatch/internal/metrics"
)

// MinInterval is the floor for the polling interval.
const MinInterval = time.Minute

// DefaultCycleTimeout bounds a single cycle.
const DefaultCycleTimeout = 3 * time.Minute

// SchedulerConfig controls cadence and per-cycle limits.
type SchedulerConfig struct {
	Interval     time.Duration
	CycleTimeout time.Duration
	Location     *time.Location
}

// Scheduler fires the pipeline once at start and then every Interval.
// Overlapping triggers are skipped, never queued.
type Scheduler struct {
	pipeline *Pipeline
	cfg      SchedulerConfig
	logger   *zap.Logger

	cron    *cron.Cron
	job     cron.Job
	wg      sync.WaitGroup
	skipped atomic.Int64
	started atomic.Bool
}

// NewScheduler wires the cron runner. Intervals below MinInterval are raised
// to it.
func NewScheduler(p *Pipeline, cfg SchedulerConfig, logger *zap.Logger) (*Scheduler, error) {
	if p == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval < MinInterval {
		logger.Warn("poll interval below floor, raising",
			zap.Duration("requested", cfg.Interval),
			zap.Duration("floor", MinInterval))
		cfg.Interval = MinInterval
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = DefaultCycleTimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	metrics.Init()

	s := &Scheduler{pipeline: p, cfg: cfg, logger: logger}
	cronLogger := logging.NewCronLogger(logger)
	s.cron = cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithLogger(cronLogger),
	)
	s.job = cron.NewChain(
		cron.Recover(cronLogger),
		cron.SkipIfStillRunning(skipCounter{Logger: cronLogger, s: s}),
	).Then(cron.FuncJob(s.runCycle))
	return s, nil
}

// Interval returns the effective polling interval.
func (s *Scheduler) Interval() time.Duration {
	return s.cfg.Interval
}

// Skipped returns how many triggers the busy guard dropped.
func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}

// Start runs a cycle immediately and then on the interval.
func (s *Scheduler) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.cron.Schedule(cron.Every(s.cfg.Interval), s.job)
	s.cron.Start()
	s.trigger()
	s.logger.Info("scheduler started", zap.Duration("interval", s.cfg.Interval))
}

// trigger runs the guarded job outside the cron clock.
func (s *Scheduler) trigger() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.job.Run()
	}()
}

// Stop stops new triggers, waits for the in-flight cycle, and closes the
// renderer. The wait is bounded by ctx; the cycle itself is never cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("wait for running cycle: %w", ctx.Err())
	}
	if err := s.pipeline.Close(); err != nil {
		return err
	}
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) runCycle() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CycleTimeout)
	defer cancel()
	// errors are logged and reported by the pipeline
	_, _ = s.pipeline.RunCycle(ctx)
}

// skipCounter observes the "skip" message cron.SkipIfStillRunning logs.
type skipCounter struct {
	cron.Logger
	s *Scheduler
}

func (l skipCounter) Info(msg string, keysAndValues ...any) {
	if msg == "skip" {
		l.s.skipped.Add(1)
		metrics.ObserveSkippedCycle()
		l.s.logger.Warn("previous cycle still running, trigger skipped")
		return
	}
	l.Logger.Info(msg, keysAndValues...)
}
