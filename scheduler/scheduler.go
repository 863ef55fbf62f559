// Package scheduler runs a periodic job on a cron spec in a fixed timezone.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type Runner interface {
	Run(ctx context.Context) error
}

type Settings interface {
	Schedule() string
	Timezone() string
}

type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	entry  cron.EntryID
	runner Runner
	log    cron.Logger
	ctx    context.Context
}

func New(r Runner, logger cron.Logger) *Scheduler {
	return &Scheduler{runner: r, log: logger}
}

// Start schedules the runner. Runs that overlap a still-running one are
// skipped.
func (s *Scheduler) Start(ctx context.Context, settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("already started")
	}
	loc, err := time.LoadLocation(settings.Timezone())
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx = ctx
	sched := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(s.log),
		cron.WithChain(cron.Recover(s.log), cron.SkipIfStillRunning(s.log)),
	)
	entry, err := sched.AddFunc(settings.Schedule(), s.run)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", settings.Schedule(), err)
	}
	s.cron = sched
	s.entry = entry
	sched.Start()
	return nil
}

func (s *Scheduler) run() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if err := s.runner.Run(ctx); err != nil {
		s.log.Error(err, "scheduled run failed")
	}
}

// Next returns the next activation time, or zero when not started.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.entry = 0
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.mu.Lock()
	s.ctx = nil
	s.mu.Unlock()
}

// Validate checks a cron spec without scheduling anything.
func Validate(spec string) error {
	_, err := cron.ParseStandard(spec)
	return err
}
