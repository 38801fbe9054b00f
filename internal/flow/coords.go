// Package flow holds the market-flow chart model: coordinate mapping, label
// geometry, hit testing, the leading-sector overlay and the view state that
// pointer events mutate.
package flow

import (
	"strconv"
	"strings"

	"github.com/StockHamster/market-calendar/pkg/models"
)

// Canvas is the drawing surface size in pixels
type Canvas struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DefaultCanvas matches the chart's fixed height and initial width
var DefaultCanvas = Canvas{Width: 600, Height: 1500}

// MapPercentToX maps a high-price percent change to an x ratio. The negative
// side (-30..0) takes the first 20% of the width, the positive side (0..30)
// the remaining 80%. Values outside -30..30 are not clamped.
func MapPercentToX(pct float64) float64 {
	if pct < 0 {
		return (pct + 30) / 30 * 20
	}
	return 20 + pct/30*80
}

// ParseClock parses "HH:MM". Fields after the minutes ("HH:MM:SS") are
// ignored.
func ParseClock(hhmm string) (h, m int, ok bool) {
	parts := strings.Split(strings.TrimSpace(hhmm), ":")
	if len(parts) < 2 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	m, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return h, m, true
}

// MapTimeToY maps a time of day to a y ratio: before 08:00 sits at the top,
// 08:00..15:00 spans 0..75 and the after-hours session adds 4 per hour.
// Unparseable input is treated as 00:00.
func MapTimeToY(hhmm string) float64 {
	h, m, ok := ParseClock(hhmm)
	if !ok {
		return 0
	}
	minutes := float64(h*60 + m)
	switch {
	case minutes < 480:
		return 0
	case minutes <= 900:
		return (minutes - 480) / 420 * 75
	default:
		return 75 + (minutes-900)/60*4
	}
}

var labelNudge = map[string]float64{
	"08:00": 2,
	"08:20": 1.5,
	"08:40": 1,
}

// LabelYRatio is MapTimeToY plus a small downward nudge for the early
// pre-market slots, keeping those labels off the top gridline.
func LabelYRatio(hhmm string) float64 {
	return MapTimeToY(hhmm) + labelNudge[strings.TrimSpace(hhmm)]
}

// InitialPosition places a mover by its high rate and time of high
func InitialPosition(m models.Mover) models.Position {
	t := m.HighTime
	if t == "" {
		t = "00:00"
	}
	return models.Position{XRatio: MapPercentToX(m.HighRate), YRatio: LabelYRatio(t)}
}

// ToPixel converts a ratio position to canvas pixels
func (c Canvas) ToPixel(p models.Position) (x, y float64) {
	return p.XRatio / 100 * c.Width, p.YRatio / 100 * c.Height
}

// ToRatio converts canvas pixels to a ratio position
func (c Canvas) ToRatio(x, y float64) models.Position {
	var p models.Position
	if c.Width > 0 {
		p.XRatio = x / c.Width * 100
	}
	if c.Height > 0 {
		p.YRatio = y / c.Height * 100
	}
	return p
}
