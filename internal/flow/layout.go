package flow

import (
	"unicode/utf8"

	"golang.org/x/text/width"

	"github.com/StockHamster/market-calendar/pkg/models"
)

// Padding around label text inside its box
const Padding = 4

// FontSize buckets a mover's size into a label font size
func FontSize(size float64) float64 {
	switch {
	case size >= 250:
		return 36
	case size >= 200:
		return 28
	case size >= 150:
		return 16
	case size >= 100:
		return 12
	default:
		return 10
	}
}

// TextMeasurer reports the rendered width of text at a font size. The
// renderer and the hit tester must share one so boxes agree.
type TextMeasurer interface {
	MeasureString(text string, fontSize float64) float64
}

// BoldMeasurer is implemented by measurers that can size bold text
type BoldMeasurer interface {
	MeasureBold(text string, fontSize float64) float64
}

// measureBold uses the bold width when tm provides one
func measureBold(tm TextMeasurer, text string, fontSize float64) float64 {
	if b, ok := tm.(BoldMeasurer); ok {
		return b.MeasureBold(text, fontSize)
	}
	return tm.MeasureString(text, fontSize)
}

// EstimateMeasurer approximates widths without a font: East Asian wide runes
// take one em, everything else NarrowRatio of an em.
type EstimateMeasurer struct {
	NarrowRatio float64
}

// MeasureString implements TextMeasurer
func (e EstimateMeasurer) MeasureString(text string, fontSize float64) float64 {
	narrow := e.NarrowRatio
	if narrow <= 0 {
		narrow = 0.55
	}
	var w float64
	for len(text) > 0 {
		r, n := utf8.DecodeRuneInString(text)
		text = text[n:]
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			w += fontSize
		default:
			w += fontSize * narrow
		}
	}
	return w
}

// Box is an axis-aligned rectangle in canvas pixels
type Box struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether the point lies in the box, edges included
func (b Box) Contains(x, y float64) bool {
	return x >= b.Left && x <= b.Left+b.Width && y >= b.Top && y <= b.Top+b.Height
}

// Center returns the box midpoint
func (b Box) Center() (x, y float64) {
	return b.Left + b.Width/2, b.Top + b.Height/2
}

// LabelBox is the label rectangle of a placed mover, centered on its pixel
// position. Drawing and hit testing both go through here.
func LabelBox(m models.PlacedMover, c Canvas, tm TextMeasurer) Box {
	x, y := c.ToPixel(m.Position)
	fs := FontSize(m.Size)
	w := tm.MeasureString(m.Name, fs) + Padding*2
	h := fs + Padding*2
	return Box{Left: x - w/2, Top: y - h/2, Width: w, Height: h}
}

// HitTest returns the index of the first mover, in draw order, whose label
// box contains the point.
func HitTest(movers []models.PlacedMover, c Canvas, tm TextMeasurer, x, y float64) (int, bool) {
	for i := range movers {
		if LabelBox(movers[i], c, tm).Contains(x, y) {
			return i, true
		}
	}
	return -1, false
}
