package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xaenox/persona-forge/internal/models"
	"github.com/xaenox/persona-forge/internal/storage"
	"go.uber.org/zap"
)

// CalendarStore persists the calendar between ticks.
type CalendarStore interface {
	LoadCalendar(ctx context.Context) (*models.Calendar, error)
	SaveCalendar(ctx context.Context, cal models.Calendar) error
}

// Runner drives Tick from a cron expression and keeps the calendar in the
// store between invocations.
type Runner struct {
	sched  *Scheduler
	store  CalendarStore
	cron   *cron.Cron
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	entryID cron.EntryID
	started bool
}

func NewRunner(sched *Scheduler, store CalendarStore, logger *zap.Logger) *Runner {
	return &Runner{
		sched:  sched,
		store:  store,
		logger: logger,
		now:    time.Now,
		cron: cron.New(
			cron.WithLocation(sched.opts.Location),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger.Sugar()})),
		),
	}
}

// Load returns the stored calendar, or a fresh one when nothing is stored.
func (r *Runner) Load(ctx context.Context) (models.Calendar, error) {
	cal, err := r.store.LoadCalendar(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return r.sched.NewCalendar(r.now())
	}
	if err != nil {
		return models.Calendar{}, fmt.Errorf("load calendar: %w", err)
	}
	return *cal, nil
}

// RunOnce performs a single load, tick and save. The calendar is saved even
// when the tick reports store errors, so slot outcomes are not lost.
func (r *Runner) RunOnce(ctx context.Context) (models.Calendar, Report, error) {
	cal, err := r.Load(ctx)
	if err != nil {
		return cal, Report{}, err
	}

	next, rep, tickErr := r.sched.Tick(ctx, cal, r.now())
	if rep.Skipped {
		return cal, rep, nil
	}
	if err := r.store.SaveCalendar(ctx, next); err != nil {
		return next, rep, errors.Join(tickErr, fmt.Errorf("save calendar: %w", err))
	}
	return next, rep, tickErr
}

// Start registers RunOnce under spec and starts the cron loop.
func (r *Runner) Start(ctx context.Context, spec string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entryID != 0 {
		r.cron.Remove(r.entryID)
	}
	id, err := r.cron.AddFunc(spec, func() {
		if _, rep, err := r.RunOnce(ctx); err != nil {
			r.logger.Error("Scheduled tick failed", zap.Error(err))
		} else if !rep.Skipped {
			r.logger.Info("Scheduled tick done",
				zap.Int("generated", len(rep.Generated)),
				zap.Int("missed", len(rep.Missed)))
		}
	})
	if err != nil {
		return fmt.Errorf("add cron job %q: %w", spec, err)
	}
	r.entryID = id

	if !r.started {
		r.cron.Start()
		r.started = true
	}
	r.logger.Info("Scheduler started", zap.String("cron", spec))
	return nil
}

// Next reports when the registered job fires next.
func (r *Runner) Next() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cron.Entry(r.entryID).Next
}

// Stop halts the cron loop and waits for a running tick to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	r.mu.Unlock()

	<-r.cron.Stop().Done()
	r.logger.Info("Scheduler stopped")
}

// cronLogger routes cron's own messages through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
