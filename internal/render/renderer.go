// Package render draws chart frames onto a raster canvas and encodes PNG.
package render

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/fogleman/gg"
	"github.com/sirupsen/logrus"

	"github.com/StockHamster/market-calendar/internal/flow"
	"github.com/StockHamster/market-calendar/internal/sector"
)

// Gradient stops of the x axis bar
var gradientStops = []struct {
	offset float64
	hex    string
}{
	{0, "#115bcb"},
	{0.2, "#ffffff"},
	{1, "#e71909"},
}

// Renderer turns flow frames into images
type Renderer struct {
	fonts     *Fonts
	maxWidth  float64
	maxHeight float64
	overlay   bool
	logger    *logrus.Entry
}

// Options configures a Renderer
type Options struct {
	FontPath  string
	MaxWidth  int
	MaxHeight int
	// Overlay draws the leading-sector badges and the hover tooltip on top
	// of the canvas.
	Overlay bool
}

// New creates a renderer
func New(opts Options, logger *logrus.Logger) (*Renderer, error) {
	fonts, err := LoadFonts(opts.FontPath)
	if err != nil {
		return nil, err
	}
	return &Renderer{
		fonts:     fonts,
		maxWidth:  float64(opts.MaxWidth),
		maxHeight: float64(opts.MaxHeight),
		overlay:   opts.Overlay,
		logger:    logger.WithField("component", "renderer"),
	}, nil
}

// MaxSize is the largest canvas Draw renders; zero means unlimited
func (r *Renderer) MaxSize() (width, height float64) {
	return r.maxWidth, r.maxHeight
}

// Measurer returns the text measurer matching what Draw renders
func (r *Renderer) Measurer() flow.TextMeasurer {
	return r.fonts
}

// Draw runs the render pass: background, x gradient and ticks, hour lines,
// volume text, then mover labels on top.
func (r *Renderer) Draw(f flow.Frame) image.Image {
	width, height := f.Canvas.Width, f.Canvas.Height
	if r.maxWidth > 0 && width > r.maxWidth {
		width = r.maxWidth
	}
	if r.maxHeight > 0 && height > r.maxHeight {
		height = r.maxHeight
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	r.fonts.mu.Lock()
	defer r.fonts.mu.Unlock()

	dc := gg.NewContext(int(width), int(height))
	dc.SetColor(color.White)
	dc.Clear()

	r.drawAxes(dc, f, width, height)
	r.drawVolume(dc, f)
	r.drawLabels(dc, f)
	if r.overlay {
		r.drawBadges(dc, f)
		r.drawTooltip(dc, f)
	}
	return dc.Image()
}

func (r *Renderer) drawAxes(dc *gg.Context, f flow.Frame, width, height float64) {
	grad := gg.NewLinearGradient(0, 0, width, 0)
	for _, stop := range gradientStops {
		grad.AddColorStop(stop.offset, sector.RGBA(stop.hex, 1))
	}
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, width, flow.GradientHeight)
	dc.Fill()

	dc.SetLineWidth(1)
	dc.SetFontFace(r.fonts.face(flow.AxisFontSize, true))
	for _, tick := range f.XTicks {
		dc.SetHexColor("#000000")
		dc.DrawStringAnchored(tick.Label, tick.X, flow.XTickLabelY, 0.5, 1)
		dc.SetHexColor(flow.GridColor)
		dc.DrawLine(tick.X, flow.XGridTop, tick.X, height)
		dc.Stroke()
	}

	for _, line := range f.HourLines {
		dc.SetHexColor("#000000")
		dc.DrawStringAnchored(line.Label, flow.HourLabelRight, line.Y, 1, 0.5)
		dc.SetHexColor(flow.GridColor)
		dc.DrawLine(flow.HourGridLeft, line.Y, width, line.Y)
		dc.Stroke()
	}
}

func (r *Renderer) drawVolume(dc *gg.Context, f flow.Frame) {
	dc.SetFontFace(r.fonts.face(flow.VolumeFontSize, false))
	dc.SetHexColor("#000000")
	for _, line := range f.Volume {
		dc.DrawStringAnchored(line.Text, line.X, line.Y, 0, 0.5)
	}
}

func (r *Renderer) drawLabels(dc *gg.Context, f flow.Frame) {
	for _, l := range f.Labels {
		dc.SetColor(sector.RGBA(l.Color, l.Alpha))
		dc.DrawRectangle(l.Box.Left, l.Box.Top, l.Box.Width, l.Box.Height)
		dc.Fill()

		dc.SetFontFace(r.fonts.face(l.FontSize, false))
		dc.SetHexColor(l.TextColor)
		dc.DrawStringAnchored(l.Name, l.CenterX, l.CenterY, 0.5, 0.5)
	}
}

func (r *Renderer) drawBadges(dc *gg.Context, f flow.Frame) {
	dc.SetFontFace(r.fonts.face(flow.BadgeFontSize, true))
	for _, b := range f.Badges {
		dc.SetHexColor(b.Background)
		dc.DrawRoundedRectangle(b.Box.Left, b.Box.Top, b.Box.Width, b.Box.Height, 2)
		dc.Fill()
		dc.SetHexColor(b.TextColor)
		cx, cy := b.Box.Center()
		dc.DrawStringAnchored(b.Label, cx, cy, 0.5, 0.5)
	}
}

func (r *Renderer) drawTooltip(dc *gg.Context, f flow.Frame) {
	t := f.Tooltip
	if t == nil {
		return
	}
	dc.SetFontFace(r.fonts.face(flow.TooltipFontSize, false))

	lines := []string{}
	if t.Title != "" {
		lines = append(lines, t.Title)
	}
	if t.Note != "" {
		lines = append(lines, t.Note)
	}
	const pad, lineH, minWidth = 6.0, 18.0, 120.0
	w := minWidth
	for _, line := range lines {
		if lw := r.fonts.measure(line, flow.TooltipFontSize, false) + pad*2; lw > w {
			w = lw
		}
	}
	h := float64(len(lines))*lineH + pad*2

	dc.SetHexColor("#fefce8")
	dc.DrawRectangle(t.Left, t.Top, w, h)
	dc.Fill()
	dc.SetHexColor("#d1d5db")
	dc.DrawRectangle(t.Left, t.Top, w, h)
	dc.Stroke()

	dc.SetHexColor("#1f2937")
	for i, line := range lines {
		dc.DrawStringAnchored(line, t.Left+pad, t.Top+pad+float64(i)*lineH+lineH/2, 0, 0.5)
	}
}

// EncodePNG draws the frame and writes it as PNG
func (r *Renderer) EncodePNG(w io.Writer, f flow.Frame) error {
	img := r.Draw(f)
	bw := bufio.NewWriter(w)
	if err := png.Encode(bw, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	r.logger.WithFields(logrus.Fields{
		"date":   f.Date,
		"labels": len(f.Labels),
	}).Debug("Rendered chart")
	return nil
}
