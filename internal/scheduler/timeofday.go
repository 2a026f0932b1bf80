package scheduler

import "time"

type clock struct{ hour, minute int }

// Mid-morning Tuesday to Thursday gets the most reach; the rest of the week
// falls back to early slots.
var postingTimes = map[time.Weekday]clock{
	time.Monday:    {9, 0},
	time.Tuesday:   {10, 0},
	time.Wednesday: {14, 0},
	time.Thursday:  {11, 0},
	time.Friday:    {9, 0},
	time.Saturday:  {11, 0},
	time.Sunday:    {11, 0},
}

// PostTime returns the preferred publishing time on the day of t, in t's
// location.
func PostTime(t time.Time) time.Time {
	c := postingTimes[t.Weekday()]
	y, m, d := t.Date()
	return time.Date(y, m, d, c.hour, c.minute, 0, 0, t.Location())
}
