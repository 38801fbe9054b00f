package flow

import (
	"fmt"
	"sort"

	"github.com/StockHamster/market-calendar/internal/sector"
	"github.com/StockHamster/market-calendar/pkg/models"
)

// MinLeadingCount is how many movers a sector needs within an hour bucket
const MinLeadingCount = 2

// TimeSectorMap maps an hour key ("HH:00") to its leading sectors, most
// frequent first.
type TimeSectorMap map[string][]string

// HourKey rounds a time to the nearest hour bucket: minutes >= 30 round up.
// Missing or unparseable times land in "00:00".
func HourKey(hhmm string) string {
	h, m, ok := ParseClock(hhmm)
	if !ok {
		return "00:00"
	}
	if m >= 30 {
		h++
	}
	return fmt.Sprintf("%02d:00", h)
}

// BuildTimeSectorMap counts sectors per hour bucket and keeps those reaching
// MinLeadingCount. Movers without a sector count under sector.None; the
// header placeholder never leads.
func BuildTimeSectorMap(movers []models.PlacedMover) TimeSectorMap {
	counts := make(map[string]map[string]int)
	for _, m := range movers {
		key := HourKey(m.HighTime)
		name := m.Sector
		if name == "" {
			name = sector.None
		}
		if counts[key] == nil {
			counts[key] = make(map[string]int)
		}
		counts[key][name]++
	}

	result := make(TimeSectorMap)
	for key, sectors := range counts {
		var leading []string
		for name, n := range sectors {
			if n >= MinLeadingCount && name != sector.HeaderPlace {
				leading = append(leading, name)
			}
		}
		if len(leading) == 0 {
			continue
		}
		sort.Slice(leading, func(i, j int) bool {
			ci, cj := sectors[leading[i]], sectors[leading[j]]
			if ci != cj {
				return ci > cj
			}
			return leading[i] < leading[j]
		})
		result[key] = leading
	}
	return result
}

// Keys returns the hour keys in order
func (t TimeSectorMap) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Badge layout constants of the leading-sector overlay
const (
	BadgeLeft     = 55
	BadgeOffset   = 14
	BadgeStep     = 17
	BadgeHalf     = 8
	BadgeFontSize = 12
	BadgePadding  = 8
	BadgeHeight   = 16
)

// SectorBadge is one positioned leading-sector badge
type SectorBadge struct {
	Time       string `json:"time"`
	Sector     string `json:"sector"`
	Label      string `json:"label"`
	Background string `json:"background"`
	TextColor  string `json:"text_color"`
	Box        Box    `json:"box"`
}

// OverlayBadges positions the leading-sector badges: for the i-th sector of
// an hour, top = y(hour) + 14 + 17*i - 8, left fixed.
func OverlayBadges(tsm TimeSectorMap, reg *sector.Registry, c Canvas, tm TextMeasurer) []SectorBadge {
	var badges []SectorBadge
	for _, key := range tsm.Keys() {
		y := MapTimeToY(key)/100*c.Height + BadgeOffset
		for i, name := range tsm[key] {
			style := reg.Style(name)
			label := style.Emoji + " " + name
			badges = append(badges, SectorBadge{
				Time:       key,
				Sector:     name,
				Label:      label,
				Background: style.Color,
				TextColor:  sector.ChartTextColor(style.Color),
				Box: Box{
					Left:   BadgeLeft,
					Top:    y + float64(BadgeStep*i) - BadgeHalf,
					Width:  measureBold(tm, label, BadgeFontSize) + BadgePadding*2,
					Height: BadgeHeight,
				},
			})
		}
	}
	return badges
}

// BadgeAt returns the sector of the first badge containing the point
func BadgeAt(badges []SectorBadge, x, y float64) (string, bool) {
	for _, b := range badges {
		if b.Box.Contains(x, y) {
			return b.Sector, true
		}
	}
	return "", false
}
