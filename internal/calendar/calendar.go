// Package calendar implements the market calendar: the month grid, the
// holiday table, trading-day navigation, note tags and the notes board.
package calendar

import (
	"time"
)

// Layouts for the calendar's date keys
const (
	ISOLayout    = "2006-01-02"
	DayKeyLayout = "Mon Jan 02 2006"
)

// DayKey formats a date the way note files key their days ("Mon Jun 30 2025")
func DayKey(t time.Time) string {
	return t.Format(DayKeyLayout)
}

// ISOKey formats a date as YYYY-MM-DD
func ISOKey(t time.Time) string {
	return t.Format(ISOLayout)
}

// Calendar answers date questions against a holiday table in one timezone
type Calendar struct {
	holidays  Holidays
	flowStart time.Time
	loc       *time.Location
	now       func() time.Time
}

// New creates a calendar. flowStart is the first date the flow chart is
// published for; loc is the market timezone.
func New(holidays Holidays, flowStart time.Time, loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	if holidays == nil {
		holidays = DefaultHolidays()
	}
	return &Calendar{
		holidays:  holidays,
		flowStart: dateOf(flowStart, loc),
		loc:       loc,
		now:       time.Now,
	}
}

// Location returns the calendar's timezone
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Holidays returns the holiday table
func (c *Calendar) Holidays() Holidays {
	return c.holidays
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Date returns midnight of the given civil date in the calendar timezone
func (c *Calendar) Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, c.loc)
}

// SetClock replaces the time source
func (c *Calendar) SetClock(now func() time.Time) {
	c.now = now
}

// Today is the current date in the calendar timezone
func (c *Calendar) Today() time.Time {
	return dateOf(c.now().In(c.loc), c.loc)
}

// IsWeekend reports Saturday or Sunday
func (c *Calendar) IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsHoliday reports whether the date is in the holiday table
func (c *Calendar) IsHoliday(t time.Time) bool {
	_, ok := c.holidays.Name(t)
	return ok
}

// IsTradingDay is a weekday that is not a holiday
func (c *Calendar) IsTradingDay(t time.Time) bool {
	return !c.IsWeekend(t) && !c.IsHoliday(t)
}

// IsFuture reports a date after today
func (c *Calendar) IsFuture(t time.Time) bool {
	return dateOf(t, c.loc).After(c.Today())
}

// PrevTradingDay steps back to the nearest earlier trading day
func (c *Calendar) PrevTradingDay(t time.Time) time.Time {
	d := dateOf(t, c.loc)
	for {
		d = d.AddDate(0, 0, -1)
		if c.IsTradingDay(d) {
			return d
		}
	}
}

// NextTradingDay steps forward to the nearest later trading day. When that
// would land in the future the input date is returned unchanged.
func (c *Calendar) NextTradingDay(t time.Time) time.Time {
	start := dateOf(t, c.loc)
	d := start
	for {
		d = d.AddDate(0, 0, 1)
		if c.IsFuture(d) {
			return start
		}
		if c.IsTradingDay(d) {
			return d
		}
	}
}

// FlowEligible reports whether the flow chart can be opened for a date: on
// or after the first published date, not in the future, a trading day, and
// inside the month being shown.
func (c *Calendar) FlowEligible(t time.Time, shown time.Month) bool {
	d := dateOf(t, c.loc)
	if d.Month() != shown {
		return false
	}
	if !c.flowStart.IsZero() && d.Before(c.flowStart) {
		return false
	}
	if c.IsFuture(d) {
		return false
	}
	return c.IsTradingDay(d)
}
