package scheduler

import (
	"sort"
	"strings"
	"time"

	"github.com/xaenox/persona-forge/internal/models"
)

// mixWindow is how many of the most recent posts the content mix covers.
const mixWindow = 20

// mixTargets is the share of recent posts each type should hold, in percent.
var mixTargets = []struct {
	postType models.PostType
	target   float64
}{
	{models.PostTypeMini, 40},
	{models.PostTypeMain, 30},
	{models.PostTypeInsight, 20},
	{models.PostTypeAchievement, 10},
}

// MixShare compares one post type's share of recent posts with its target.
type MixShare struct {
	PostType models.PostType
	Share    float64
	Target   float64
}

func (m MixShare) Delta() float64 {
	return m.Share - m.Target
}

type Analytics struct {
	TotalPosts     int
	Drafts         int
	ScheduledPosts int
	PostedPosts    int
	FailedPosts    int
	ByType         map[models.PostType]int

	// PostAdherence is the share of scheduled-or-posted posts that went
	// out, in percent.
	PostAdherence float64
	// SlotAdherence is the share of calendar slots due so far that got a
	// post, in percent. Make-up slots count toward the slot they replace.
	SlotAdherence float64
	MissedSlots   int
	Upcoming      []models.Slot

	// ContentMix covers the last mixWindow posts; empty with no posts.
	ContentMix []MixShare
	// Frequency is the suggested interval in days per post type.
	Frequency map[models.PostType]int
}

// Analyze summarizes posting history against the calendar as of now.
func (s *Scheduler) Analyze(posts []*models.GeneratedPost, cal models.Calendar, now time.Time) Analytics {
	a := Analytics{TotalPosts: len(posts), ByType: make(map[models.PostType]int)}
	for _, p := range posts {
		a.ByType[p.PostType]++
		switch p.Status {
		case models.StatusDraft:
			a.Drafts++
		case models.StatusScheduled:
			a.ScheduledPosts++
		case models.StatusPosted:
			a.PostedPosts++
		case models.StatusFailed:
			a.FailedPosts++
		}
	}
	a.PostAdherence = percent(a.PostedPosts, a.ScheduledPosts+a.PostedPosts)

	today := s.day(now)
	var due, kept int
	for _, sl := range cal.Slots {
		if sl.MakeupFor != 0 || s.day(sl.Due.Date).After(today) {
			continue
		}
		due++
		switch sl.State {
		case models.SlotGenerated:
			kept++
		case models.SlotMissed:
			a.MissedSlots++
			if madeUp(cal, sl.Due.Day) {
				kept++
			}
		case models.SlotDropped:
			a.MissedSlots++
		}
	}
	a.SlotAdherence = percent(kept, due)
	a.Upcoming = s.Upcoming(cal, now, 7)
	a.ContentMix = contentMix(posts)
	a.Frequency = s.frequency(cal)
	return a
}

func contentMix(posts []*models.GeneratedPost) []MixShare {
	if len(posts) == 0 {
		return nil
	}
	recent := make([]*models.GeneratedPost, len(posts))
	copy(recent, posts)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].CreatedAt.After(recent[j].CreatedAt)
	})
	if len(recent) > mixWindow {
		recent = recent[:mixWindow]
	}

	counts := make(map[models.PostType]int)
	for _, p := range recent {
		counts[p.PostType]++
	}
	out := make([]MixShare, 0, len(mixTargets))
	for _, t := range mixTargets {
		out = append(out, MixShare{
			PostType: t.postType,
			Share:    percent(counts[t.postType], len(recent)),
			Target:   t.target,
		})
	}
	return out
}

// frequency follows the calendar's cadence. Technology profiles also get a
// weekly insight post.
func (s *Scheduler) frequency(cal models.Calendar) map[models.PostType]int {
	c := s.opts.Cadence
	if cal.Plan.HorizonDays > 0 {
		c = cadenceOf(cal.Plan)
	}
	f := map[models.PostType]int{
		models.PostTypeMini:     c.MiniIntervalDays,
		models.PostTypeMain:     c.MainIntervalDays,
		models.PostTypeCapstone: c.HorizonDays,
	}
	if s.profile.Industry == "" || strings.Contains(strings.ToLower(s.profile.Industry), "technology") {
		f[models.PostTypeInsight] = 7
	}
	return f
}

func madeUp(cal models.Calendar, day int) bool {
	for _, sl := range cal.Slots {
		if sl.MakeupFor == day && sl.State == models.SlotGenerated {
			return true
		}
	}
	return false
}

func percent(n, of int) float64 {
	if of == 0 {
		return 0
	}
	return float64(n) / float64(of) * 100
}
