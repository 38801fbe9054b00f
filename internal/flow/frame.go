package flow

import (
	"fmt"

	"github.com/StockHamster/market-calendar/internal/sector"
	"github.com/StockHamster/market-calendar/pkg/models"
)

// Axis layout of the chart background
var (
	XTicks    = []float64{-30, 0, 10, 20, 30}
	HourTicks = []int{8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}
)

const (
	GradientHeight  = 10
	XTickLabelY     = 14
	XGridTop        = 30
	HourLabelRight  = 45
	HourGridLeft    = 50
	VolumeRightGap  = 60
	VolumeLineStep  = 12
	LabelTextColor  = "#000000"
	GridColor       = "#dddddd"
	AxisFontSize    = 12
	VolumeFontSize  = 11
	TooltipFontSize = 14
)

// Label is a mover label ready to draw
type Label struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Market    string  `json:"market"`
	Sector    string  `json:"sector,omitempty"`
	FontSize  float64 `json:"font_size"`
	Box       Box     `json:"box"`
	CenterX   float64 `json:"center_x"`
	CenterY   float64 `json:"center_y"`
	Color     string  `json:"color"`
	Alpha     float64 `json:"alpha"`
	Fill      string  `json:"fill"`
	TextColor string  `json:"text_color"`
	Dragged   bool    `json:"dragged,omitempty"`
	XRatio    float64 `json:"x_ratio"`
	YRatio    float64 `json:"y_ratio"`
}

// XTick is an x axis tick
type XTick struct {
	Label string  `json:"label"`
	X     float64 `json:"x"`
}

// HourLine is a horizontal hour gridline
type HourLine struct {
	Label string  `json:"label"`
	Y     float64 `json:"y"`
}

// VolumeLine is one line of a trading-volume annotation
type VolumeLine struct {
	Time string  `json:"time"`
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Frame is everything needed to draw one chart frame. The PNG renderer and
// the JSON layout endpoint both consume it.
type Frame struct {
	Date          string              `json:"date"`
	Market        models.MarketFilter `json:"market"`
	Canvas        Canvas              `json:"canvas"`
	XTicks        []XTick             `json:"x_ticks"`
	HourLines     []HourLine          `json:"hour_lines"`
	Volume        []VolumeLine        `json:"volume"`
	Badges        []SectorBadge       `json:"badges"`
	Labels        []Label             `json:"labels"`
	Tooltip       *Tooltip            `json:"tooltip,omitempty"`
	Ratings       []RatingRow         `json:"ratings"`
	Comment       string              `json:"comment"`
	HoveredID     string              `json:"hovered_id,omitempty"`
	HoveredSector string              `json:"hovered_sector,omitempty"`
	Dragging      string              `json:"dragging,omitempty"`
	Failed        []string            `json:"failed,omitempty"`
	Seq           uint64              `json:"seq"`
}

// BuildFrame lays out the current view
func BuildFrame(s *ViewState, reg *sector.Registry, tm TextMeasurer) Frame {
	c := s.Canvas
	f := Frame{
		Date:          s.Date,
		Market:        s.Market,
		Canvas:        c,
		HoveredID:     s.HoveredID,
		HoveredSector: s.HoveredSector,
		Failed:        s.Failed,
		Seq:           s.Seq,
		Ratings:       Ratings(s.Volume),
	}
	if s.Drag.Phase == PhaseDragging {
		f.Dragging = s.Drag.MoverID
	}
	if s.Volume != nil {
		f.Comment = s.Volume.Comment
	}

	for _, tick := range XTicks {
		f.XTicks = append(f.XTicks, XTick{
			Label: fmt.Sprintf("%g%%", tick),
			X:     MapPercentToX(tick) / 100 * c.Width,
		})
	}
	for _, h := range HourTicks {
		f.HourLines = append(f.HourLines, HourLine{
			Label: fmt.Sprintf("%d시", h),
			Y:     MapTimeToY(fmt.Sprintf("%02d:00", h)) / 100 * c.Height,
		})
	}
	for _, key := range models.VolumeTimes {
		y := MapTimeToY(key) / 100 * c.Height
		for i, line := range s.Volume.Lines(key) {
			f.Volume = append(f.Volume, VolumeLine{
				Time: key,
				Text: line,
				X:    c.Width - VolumeRightGap,
				Y:    y + (float64(i)-0.5)*VolumeLineStep,
			})
		}
	}

	f.Badges = OverlayBadges(s.Sectors, reg, c, tm)

	f.Labels = make([]Label, 0, len(s.Movers))
	for _, m := range s.Movers {
		style := reg.Style(m.Sector)
		alpha := s.Alpha(m)
		box := LabelBox(m, c, tm)
		cx, cy := c.ToPixel(m.Position)
		f.Labels = append(f.Labels, Label{
			ID:        m.ID,
			Name:      m.Name,
			Market:    string(m.Market),
			Sector:    m.Sector,
			FontSize:  FontSize(m.Size),
			Box:       box,
			CenterX:   cx,
			CenterY:   cy,
			Color:     style.Color,
			Alpha:     alpha,
			Fill:      sector.CSSRGBA(style.Color, alpha),
			TextColor: LabelTextColor,
			Dragged:   m.Dragged,
			XRatio:    m.XRatio,
			YRatio:    m.YRatio,
		})
	}

	if h, ok := s.Mover(s.HoveredID); ok {
		if t, ok := BuildTooltip(h, reg, c, tm); ok {
			f.Tooltip = &t
		}
	}
	return f
}
