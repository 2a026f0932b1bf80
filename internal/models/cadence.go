package models

import (
	"sort"
	"time"
)

// DueDate is one slot of a cadence plan. Day counts from the plan start.
type DueDate struct {
	Tier   PostType  `json:"tier"`
	Day    int       `json:"day"`
	Date   time.Time `json:"date"`
	PostAt time.Time `json:"post_at"`
}

// CadencePlan is a pure function of (start, intervals); rebuilding it from
// the same inputs yields the same dates.
type CadencePlan struct {
	Start            time.Time `json:"start"`
	MiniIntervalDays int       `json:"mini_interval_days"`
	MainIntervalDays int       `json:"main_interval_days"`
	HorizonDays      int       `json:"horizon_days"`
	Dates            []DueDate `json:"dates"`
}

// End is the date the capstone falls on.
func (p CadencePlan) End() time.Time {
	return Day(p.Start).AddDate(0, 0, p.HorizonDays)
}

type SlotState string

const (
	SlotOpen      SlotState = "open"
	SlotGenerated SlotState = "generated"
	SlotFailed    SlotState = "failed"
	SlotMissed    SlotState = "missed"
	SlotDropped   SlotState = "dropped"
)

// Slot tracks what happened to one due date.
type Slot struct {
	Due      DueDate   `json:"due"`
	State    SlotState `json:"state"`
	PostID   string    `json:"post_id,omitempty"`
	Attempts int       `json:"attempts"`
	LastErr  string    `json:"last_error,omitempty"`
	// MakeupFor is the day of the missed slot this one replaces.
	MakeupFor int `json:"makeup_for,omitempty"`
}

// Calendar is the persisted scheduler state: the active plan and one slot
// per due date, including make-up slots added by the reschedule policy.
type Calendar struct {
	Plan      CadencePlan `json:"plan"`
	Slots     []Slot      `json:"slots"`
	Cycle     int         `json:"cycle"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewCalendar opens one slot per plan date.
func NewCalendar(plan CadencePlan) Calendar {
	cal := Calendar{Plan: plan, Slots: make([]Slot, 0, len(plan.Dates))}
	for _, d := range plan.Dates {
		cal.Slots = append(cal.Slots, Slot{Due: d, State: SlotOpen})
	}
	return cal
}

func (c Calendar) Clone() Calendar {
	out := c
	out.Plan.Dates = append([]DueDate(nil), c.Plan.Dates...)
	out.Slots = append([]Slot(nil), c.Slots...)
	return out
}

// SortSlots orders slots by date, then by tier rank descending.
func (c *Calendar) SortSlots() {
	sort.SliceStable(c.Slots, func(i, j int) bool {
		a, b := c.Slots[i].Due, c.Slots[j].Due
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.Tier.Rank() > b.Tier.Rank()
	})
}

// Occupied reports whether any non-dropped slot sits on day.
func (c Calendar) Occupied(day time.Time) bool {
	day = Day(day)
	for _, s := range c.Slots {
		if s.State == SlotDropped {
			continue
		}
		if Day(s.Due.Date).Equal(day) {
			return true
		}
	}
	return false
}
