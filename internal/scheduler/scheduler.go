package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/persona-forge/internal/coordinator"
	"github.com/xaenox/persona-forge/internal/metrics"
	"github.com/xaenox/persona-forge/internal/models"
	"go.uber.org/zap"
)

type MissedPolicy string

const (
	MissedDrop       MissedPolicy = "drop"
	MissedReschedule MissedPolicy = "reschedule"
)

func ParseMissedPolicy(s string) (MissedPolicy, error) {
	switch p := MissedPolicy(s); p {
	case MissedDrop, MissedReschedule:
		return p, nil
	}
	return "", fmt.Errorf("unknown missed policy %q", s)
}

// Generator turns requests into saved drafts.
type Generator interface {
	GenerateBatch(ctx context.Context, reqs []models.PostRequest) []coordinator.Outcome
}

// Store is what the scheduler reads and writes of the post store.
type Store interface {
	QueryDue(ctx context.Context, from, to time.Time) ([]*models.GeneratedPost, error)
	UpdateStatus(ctx context.Context, id string, status models.PostStatus, at time.Time) error
}

type Options struct {
	Cadence       Cadence
	LookaheadDays int
	MissedPolicy  MissedPolicy
	Location      *time.Location
	Style         models.ImageStyle
}

// Report summarizes one Tick.
type Report struct {
	// Skipped is set when another Tick was already running.
	Skipped     bool
	RolledOver  bool
	Cycle       int
	Requested   int
	Generated   []models.Slot
	Failed      []models.Slot
	Missed      []models.Slot
	Rescheduled []models.Slot
	Dropped     []models.Slot
}

type Scheduler struct {
	gen     Generator
	store   Store
	profile models.UserProfile
	opts    Options
	logger  *zap.Logger

	running atomic.Bool
}

func New(gen Generator, store Store, profile models.UserProfile, opts Options, logger *zap.Logger) *Scheduler {
	if opts.Cadence == (Cadence{}) {
		opts.Cadence = DefaultCadence()
	}
	if opts.LookaheadDays < 0 {
		opts.LookaheadDays = 0
	}
	if opts.MissedPolicy == "" {
		opts.MissedPolicy = MissedReschedule
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Scheduler{
		gen:     gen,
		store:   store,
		profile: profile.Snapshot(),
		opts:    opts,
		logger:  logger,
	}
}

func (s *Scheduler) day(t time.Time) time.Time {
	return models.Day(t.In(s.opts.Location))
}

func daysBetween(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}

// NewCalendar starts the first cycle on the day of now.
func (s *Scheduler) NewCalendar(now time.Time) (models.Calendar, error) {
	plan, err := BuildPlan(now.In(s.opts.Location), s.opts.Cadence)
	if err != nil {
		return models.Calendar{}, err
	}
	cal := models.NewCalendar(plan)
	cal.Cycle = 1
	cal.UpdatedAt = now
	return cal, nil
}

// Tick advances cal to now: it rolls the horizon over when it has passed,
// adopts posts already in the store and schedules any still in Draft, marks
// passed slots missed, then generates every open slot due within the
// lookahead window. It returns the
// new calendar; cal itself is not modified. A Tick that starts while
// another is running does nothing and reports Skipped.
func (s *Scheduler) Tick(ctx context.Context, cal models.Calendar, now time.Time) (models.Calendar, Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Info("Tick already in progress, skipping")
		return cal, Report{Skipped: true, Cycle: cal.Cycle}, nil
	}
	defer s.running.Store(false)

	now = now.In(s.opts.Location)
	today := models.Day(now)
	var rep Report

	if cal.Plan.Start.IsZero() {
		fresh, err := s.NewCalendar(now)
		if err != nil {
			return cal, rep, err
		}
		cal = fresh
	} else {
		cal = cal.Clone()
	}

	var errs []error
	for {
		drafts, err := s.reconcile(ctx, &cal)
		if err != nil {
			return cal, rep, err
		}
		errs = append(errs, s.schedule(ctx, drafts, now)...)
		s.markMissed(&cal, today, &rep)

		end := s.day(cal.Plan.Start).AddDate(0, 0, cal.Plan.HorizonDays)
		if !today.After(end) {
			break
		}
		next, err := s.rollover(cal, end)
		if err != nil {
			return cal, rep, err
		}
		cal = next
		rep.RolledOver = true
	}
	rep.Cycle = cal.Cycle

	errs = append(errs, s.generateDue(ctx, &cal, now, today, &rep)...)
	err := errors.Join(errs...)

	cal.SortSlots()
	cal.UpdatedAt = now
	s.logger.Info("Tick finished",
		zap.Int("cycle", cal.Cycle),
		zap.Int("requested", rep.Requested),
		zap.Int("generated", len(rep.Generated)),
		zap.Int("failed", len(rep.Failed)),
		zap.Int("missed", len(rep.Missed)))
	return cal, rep, err
}

// rollover starts the next cycle on the previous capstone day. The plan
// keeps the intervals the calendar was built with.
func (s *Scheduler) rollover(cal models.Calendar, end time.Time) (models.Calendar, error) {
	plan, err := BuildPlan(end, cadenceOf(cal.Plan))
	if err != nil {
		return cal, err
	}
	next := models.NewCalendar(plan)
	next.Cycle = cal.Cycle + 1
	s.logger.Info("Cadence horizon rolled over",
		zap.Int("cycle", next.Cycle),
		zap.Time("start", plan.Start))
	return next, nil
}

type slotKey struct {
	day  int64
	tier models.PostType
}

// reconcile lines the calendar up with the store. Open slots adopt a live
// post generated for the same day and tier; generated slots whose post was
// reported failed go back to failed so they get another attempt. It returns
// the ids of slot posts still sitting in Draft.
func (s *Scheduler) reconcile(ctx context.Context, cal *models.Calendar) ([]string, error) {
	start := s.day(cal.Plan.Start)
	posts, err := s.store.QueryDue(ctx, start, start.AddDate(0, 0, cal.Plan.HorizonDays+1))
	if err != nil {
		return nil, fmt.Errorf("load scheduled posts: %w", err)
	}

	byID := make(map[string]*models.GeneratedPost, len(posts))
	bySlot := make(map[slotKey]*models.GeneratedPost)
	for _, p := range posts {
		byID[p.ID] = p
		if p.Status == models.StatusFailed {
			continue
		}
		k := slotKey{s.day(p.ScheduledDate).Unix(), p.PostType}
		if _, ok := bySlot[k]; !ok {
			bySlot[k] = p
		}
	}

	claimed := make(map[string]bool)
	for _, sl := range cal.Slots {
		if sl.State == models.SlotGenerated {
			claimed[sl.PostID] = true
		}
	}

	var drafts []string
	for i := range cal.Slots {
		sl := &cal.Slots[i]
		switch sl.State {
		case models.SlotGenerated:
			p, ok := byID[sl.PostID]
			if !ok {
				continue
			}
			switch p.Status {
			case models.StatusFailed:
				sl.State = models.SlotFailed
				sl.LastErr = "post reported failed"
				sl.PostID = ""
			case models.StatusDraft:
				drafts = append(drafts, p.ID)
			}
		case models.SlotOpen, models.SlotFailed:
			p, ok := bySlot[slotKey{s.day(sl.Due.Date).Unix(), sl.Due.Tier}]
			if ok && !claimed[p.ID] {
				sl.State = models.SlotGenerated
				sl.PostID = p.ID
				sl.LastErr = ""
				claimed[p.ID] = true
				if p.Status == models.StatusDraft {
					drafts = append(drafts, p.ID)
				}
			}
		}
	}
	return drafts, nil
}

// schedule moves drafts to Scheduled. A draft that fails to move keeps its
// slot and is picked up again by the next reconcile.
func (s *Scheduler) schedule(ctx context.Context, ids []string, now time.Time) []error {
	var errs []error
	for _, id := range ids {
		if err := s.store.UpdateStatus(ctx, id, models.StatusScheduled, now); err != nil {
			s.logger.Error("Failed to schedule post", zap.String("post_id", id), zap.Error(err))
			errs = append(errs, fmt.Errorf("schedule post %s: %w", id, err))
		}
	}
	return errs
}

// markMissed handles slots whose day passed without a post. Under the drop
// policy they are dropped; under reschedule each gets one make-up slot of the
// same tier on the first free day left in the horizon.
func (s *Scheduler) markMissed(cal *models.Calendar, today time.Time, rep *Report) {
	start := s.day(cal.Plan.Start)
	n := len(cal.Slots)
	for i := 0; i < n; i++ {
		sl := &cal.Slots[i]
		if sl.State != models.SlotOpen && sl.State != models.SlotFailed {
			continue
		}
		if !s.day(sl.Due.Date).Before(today) {
			continue
		}

		sl.State = models.SlotMissed
		metrics.IncMissedSlot(string(sl.Due.Tier))
		rep.Missed = append(rep.Missed, *sl)
		s.logger.Warn("Slot missed",
			zap.String("tier", string(sl.Due.Tier)),
			zap.Time("due", sl.Due.Date),
			zap.String("last_error", sl.LastErr))

		if s.opts.MissedPolicy == MissedDrop || sl.MakeupFor != 0 {
			sl.State = models.SlotDropped
			rep.Dropped = append(rep.Dropped, *sl)
			continue
		}

		makeup, ok := s.makeupSlot(*cal, *sl, start, today)
		if !ok {
			sl.State = models.SlotDropped
			rep.Dropped = append(rep.Dropped, *sl)
			continue
		}
		cal.Slots = append(cal.Slots, makeup)
		rep.Rescheduled = append(rep.Rescheduled, makeup)
	}
}

func (s *Scheduler) makeupSlot(cal models.Calendar, missed models.Slot, start, today time.Time) (models.Slot, bool) {
	for k := daysBetween(start, today); k <= cal.Plan.HorizonDays; k++ {
		if k < 1 {
			continue
		}
		d := start.AddDate(0, 0, k)
		if cal.Occupied(d) {
			continue
		}
		return models.Slot{
			Due: models.DueDate{
				Tier:   missed.Due.Tier,
				Day:    k,
				Date:   d,
				PostAt: PostTime(d),
			},
			State:     models.SlotOpen,
			MakeupFor: missed.Due.Day,
		}, true
	}
	return models.Slot{}, false
}

// generateDue asks the generator for every open or failed slot due between
// today and the end of the lookahead window, then schedules what came back.
// Pipeline failures stay on the slot; store failures are returned.
func (s *Scheduler) generateDue(ctx context.Context, cal *models.Calendar, now, today time.Time, rep *Report) []error {
	horizon := today.AddDate(0, 0, s.opts.LookaheadDays)

	var reqs []models.PostRequest
	var idx []int
	for i, sl := range cal.Slots {
		if sl.State != models.SlotOpen && sl.State != models.SlotFailed {
			continue
		}
		d := s.day(sl.Due.Date)
		if d.Before(today) || d.After(horizon) {
			continue
		}
		reqs = append(reqs, models.PostRequest{
			ID:         uuid.New().String(),
			PostType:   sl.Due.Tier,
			TargetDate: sl.Due.PostAt.In(s.opts.Location),
			Profile:    s.profile,
			Style:      s.opts.Style,
			TopicHint:  TopicHint(sl.Due.Tier, s.profile),
		})
		idx = append(idx, i)
	}
	rep.Requested = len(reqs)
	if len(reqs) == 0 {
		return nil
	}

	var errs []error
	var drafts []string
	for i, out := range s.gen.GenerateBatch(ctx, reqs) {
		sl := &cal.Slots[idx[i]]
		sl.Attempts++
		if out.Err != nil {
			sl.State = models.SlotFailed
			sl.LastErr = out.Err.Error()
			rep.Failed = append(rep.Failed, *sl)
			var se *coordinator.StageError
			if !errors.As(out.Err, &se) {
				errs = append(errs, out.Err)
			}
			s.logger.Error("Failed to generate scheduled post",
				zap.String("tier", string(sl.Due.Tier)),
				zap.Time("due", sl.Due.Date),
				zap.Int("attempts", sl.Attempts),
				zap.Error(out.Err))
			continue
		}

		post := out.Result.Post
		sl.State = models.SlotGenerated
		sl.PostID = post.ID
		sl.LastErr = ""
		rep.Generated = append(rep.Generated, *sl)
		drafts = append(drafts, post.ID)
	}
	return append(errs, s.schedule(ctx, drafts, now)...)
}

// Reconfigure rebuilds the plan for a new cadence over the same horizon
// start. Slots whose tier and date survive keep their outcome; make-up slots
// are kept when their day is still free.
func (s *Scheduler) Reconfigure(cal models.Calendar, c Cadence, now time.Time) (models.Calendar, error) {
	start := now.In(s.opts.Location)
	if !cal.Plan.Start.IsZero() {
		start = cal.Plan.Start.In(s.opts.Location)
	}
	plan, err := BuildPlan(start, c)
	if err != nil {
		return cal, err
	}

	old := make(map[slotKey]models.Slot, len(cal.Slots))
	for _, sl := range cal.Slots {
		if sl.MakeupFor == 0 {
			old[slotKey{s.day(sl.Due.Date).Unix(), sl.Due.Tier}] = sl
		}
	}

	next := models.NewCalendar(plan)
	next.Cycle = cal.Cycle
	if next.Cycle == 0 {
		next.Cycle = 1
	}
	for i := range next.Slots {
		sl := &next.Slots[i]
		if prev, ok := old[slotKey{s.day(sl.Due.Date).Unix(), sl.Due.Tier}]; ok {
			sl.State = prev.State
			sl.PostID = prev.PostID
			sl.Attempts = prev.Attempts
			sl.LastErr = prev.LastErr
		}
	}
	for _, sl := range cal.Slots {
		if sl.MakeupFor == 0 || sl.State == models.SlotDropped {
			continue
		}
		if sl.Due.Day > plan.HorizonDays || next.Occupied(sl.Due.Date) {
			continue
		}
		next.Slots = append(next.Slots, sl)
	}
	next.SortSlots()
	next.UpdatedAt = now

	s.logger.Info("Cadence reconfigured",
		zap.Int("mini_interval_days", c.MiniIntervalDays),
		zap.Int("main_interval_days", c.MainIntervalDays),
		zap.Int("horizon_days", c.HorizonDays),
		zap.Int("slots", len(next.Slots)))
	return next, nil
}

// Upcoming lists the live slots due from the day of now through days ahead.
func (s *Scheduler) Upcoming(cal models.Calendar, now time.Time, days int) []models.Slot {
	today := s.day(now)
	until := today.AddDate(0, 0, days)
	var out []models.Slot
	for _, sl := range cal.Slots {
		if sl.State == models.SlotDropped || sl.State == models.SlotMissed {
			continue
		}
		d := s.day(sl.Due.Date)
		if d.Before(today) || d.After(until) {
			continue
		}
		out = append(out, sl)
	}
	return out
}

// MarkPosted records that a scheduled post went out at at.
func (s *Scheduler) MarkPosted(ctx context.Context, id string, at time.Time) error {
	return s.store.UpdateStatus(ctx, id, models.StatusPosted, at)
}

// MarkFailed reports a post that could not be published. The next Tick
// reopens its slot if the day has not passed.
func (s *Scheduler) MarkFailed(ctx context.Context, id string, at time.Time) error {
	return s.store.UpdateStatus(ctx, id, models.StatusFailed, at)
}
