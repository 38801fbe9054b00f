package calendar

import (
	"time"

	"github.com/StockHamster/market-calendar/internal/sector"
	"github.com/StockHamster/market-calendar/pkg/models"
)

// Grid dimensions: six weeks starting on the Sunday on or before the 1st
const (
	GridWeeks = 6
	GridDays  = 7
)

// Cell is one day of the month grid
type Cell struct {
	Date         string     `json:"date"`
	DayKey       string     `json:"day_key"`
	Day          int        `json:"day"`
	InMonth      bool       `json:"in_month"`
	Sunday       bool       `json:"sunday"`
	Saturday     bool       `json:"saturday"`
	Holiday      string     `json:"holiday,omitempty"`
	FlowEligible bool       `json:"flow_eligible"`
	Highlight    string     `json:"highlight,omitempty"`
	Notes        []NoteView `json:"notes"`
}

// Month is a rendered month grid
type Month struct {
	Year     int                 `json:"year"`
	Month    int                 `json:"month"`
	View     models.CalendarView `json:"view"`
	Sector   string              `json:"sector,omitempty"`
	Weeks    [][]Cell            `json:"weeks"`
	Holidays []Holiday           `json:"holidays"`
}

// GridInput carries everything a month grid is built from
type GridInput struct {
	Year  int
	Month time.Month
	View  models.CalendarView
	Notes models.Notes
	Tags  *TagSet
	// Sector highlights days whose MonthlySectors entry contains it
	Sector         string
	MonthlySectors map[string][]string
	Registry       *sector.Registry
}

// Grid builds the 6x7 month grid
func (c *Calendar) Grid(in GridInput) Month {
	first := c.Date(in.Year, in.Month, 1)
	start := first.AddDate(0, 0, -int(first.Weekday()))

	var highlight string
	if in.Sector != "" && in.Registry != nil {
		if style, ok := in.Registry.Lookup(in.Sector); ok {
			highlight = sector.HighlightBackground(style.Color)
		}
	}

	m := Month{
		Year:     in.Year,
		Month:    int(in.Month),
		View:     in.View,
		Sector:   in.Sector,
		Weeks:    make([][]Cell, GridWeeks),
		Holidays: c.holidays.InMonth(in.Year, in.Month),
	}
	for w := 0; w < GridWeeks; w++ {
		week := make([]Cell, GridDays)
		for d := 0; d < GridDays; d++ {
			date := start.AddDate(0, 0, w*GridDays+d)
			week[d] = c.cell(date, in, highlight)
		}
		m.Weeks[w] = week
	}
	return m
}

func (c *Calendar) cell(date time.Time, in GridInput, highlight string) Cell {
	iso := ISOKey(date)
	key := DayKey(date)
	cell := Cell{
		Date:     iso,
		DayKey:   key,
		Day:      date.Day(),
		InMonth:  date.Month() == in.Month,
		Sunday:   date.Weekday() == time.Sunday,
		Saturday: date.Weekday() == time.Saturday,
	}
	if name, ok := c.holidays.Name(date); ok && cell.InMonth {
		cell.Holiday = name
	}
	cell.FlowEligible = c.FlowEligible(date, in.Month)

	if highlight != "" {
		for _, s := range in.MonthlySectors[iso] {
			if s == in.Sector {
				cell.Highlight = highlight
				break
			}
		}
	}

	notes := in.Notes[key]
	cell.Notes = make([]NoteView, 0, len(notes))
	for i, n := range notes {
		if in.Tags != nil {
			cell.Notes = append(cell.Notes, in.Tags.Style(in.View, i, n))
		} else {
			cell.Notes = append(cell.Notes, NoteView{Index: i, Text: n.Text, Tag: n.Tag})
		}
	}
	return cell
}
