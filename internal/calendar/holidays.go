package calendar

import (
	"sort"
	"time"
)

// Holidays maps YYYY-MM-DD to a holiday name
type Holidays map[string]string

// DefaultHolidays is the built-in KRX closure table
func DefaultHolidays() Holidays {
	return Holidays{
		"2025-06-03": "대통령 선거일",
		"2025-06-06": "현충일",
		"2025-08-15": "광복절",
		"2025-10-03": "개천절",
		"2025-10-06": "추석",
		"2025-10-07": "　　",
		"2025-10-08": "대체공휴일",
		"2025-10-09": "한글날",
		"2025-12-25": "성탄절",
		"2026-01-01": "신년",
	}
}

// Name returns the holiday name of a date
func (h Holidays) Name(t time.Time) (string, bool) {
	name, ok := h[ISOKey(t)]
	return name, ok
}

// Merge adds or replaces entries; keys that are not valid dates are skipped
// and returned.
func (h Holidays) Merge(other map[string]string) []string {
	var skipped []string
	for k, v := range other {
		if _, err := time.Parse(ISOLayout, k); err != nil {
			skipped = append(skipped, k)
			continue
		}
		h[k] = v
	}
	sort.Strings(skipped)
	return skipped
}

// Holiday is a dated holiday, for listings
type Holiday struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

// InMonth lists the holidays of a month in date order
func (h Holidays) InMonth(year int, month time.Month) []Holiday {
	var out []Holiday
	for k, v := range h {
		t, err := time.Parse(ISOLayout, k)
		if err != nil || t.Year() != year || t.Month() != month {
			continue
		}
		out = append(out, Holiday{Date: k, Name: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
