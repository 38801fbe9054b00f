package render

import (
	"bytes"
	"image/png"
	"math"
	"testing"

	"github.com/StockHamster/market-calendar/internal/flow"
	"github.com/StockHamster/market-calendar/internal/sector"
	"github.com/StockHamster/market-calendar/pkg/logger"
	"github.com/StockHamster/market-calendar/pkg/models"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New(Options{MaxWidth: 4000, Overlay: true}, logger.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestMeasureStringScalesWithSize(t *testing.T) {
	r := newTestRenderer(t)
	small := r.Measurer().MeasureString("Samsung", 12)
	large := r.Measurer().MeasureString("Samsung", 24)
	if small <= 0 {
		t.Fatalf("width = %v", small)
	}
	if math.Abs(large-2*small) > 2 {
		t.Fatalf("24px width %v is not about twice 12px width %v", large, small)
	}
}

func TestEncodePNG(t *testing.T) {
	r := newTestRenderer(t)

	s := flow.NewViewState(flow.DefaultCanvas)
	res := s.Apply(flow.RequestDate{Date: "20250630"}, r.Measurer())
	s.Apply(flow.LoadData{Seq: res.Seq, Bundle: &models.DayBundle{
		Date:  "20250630",
		Kospi: []models.Mover{{Name: "ABC", HighRate: 10, HighTime: "11:00", Size: 260}},
	}}, r.Measurer())
	f := flow.BuildFrame(s, sector.NewRegistry(), r.Measurer())

	var buf bytes.Buffer
	if err := r.EncodePNG(&buf, f); err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 600 || b.Dy() != 1500 {
		t.Fatalf("bounds = %v", b)
	}

	// gradient runs blue to red
	lr, _, lb, _ := img.At(0, 5).RGBA()
	rr, _, rb, _ := img.At(599, 5).RGBA()
	if lb <= lr || rr <= rb {
		t.Fatalf("gradient ends: left r=%d b=%d, right r=%d b=%d", lr, lb, rr, rb)
	}

	// label padding is a faded gray, neither white nor black
	box := f.Labels[0].Box
	pr, pg, pb, _ := img.At(int(box.Left)+1, int(box.Top)+1).RGBA()
	for _, c := range []uint32{pr >> 8, pg >> 8, pb >> 8} {
		if c < 220 || c > 250 {
			t.Fatalf("label fill = (%d,%d,%d)", pr>>8, pg>>8, pb>>8)
		}
	}
}

func TestBoldIsWider(t *testing.T) {
	r := newTestRenderer(t)
	regular := r.fonts.MeasureString("Semiconductor", 12)
	bold := r.fonts.MeasureBold("Semiconductor", 12)
	if bold <= regular {
		t.Fatalf("bold %v <= regular %v", bold, regular)
	}
}

func TestMissingGlyphsAreEstimated(t *testing.T) {
	r := newTestRenderer(t)
	m := r.Measurer()

	// the bundled Go fonts have no hangul
	if got := m.MeasureString("가나", 10); math.Abs(got-20) > 0.01 {
		t.Fatalf("hangul width = %v, want 20", got)
	}
	latin := m.MeasureString("AB", 10)
	if got := m.MeasureString("AB가", 10); math.Abs(got-(latin+10)) > 0.01 {
		t.Fatalf("mixed width = %v, want %v", got, latin+10)
	}
}

func TestDrawClampsWidth(t *testing.T) {
	r, err := New(Options{MaxWidth: 800}, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	img := r.Draw(flow.Frame{Canvas: flow.Canvas{Width: 5000, Height: 100}})
	if img.Bounds().Dx() != 800 {
		t.Fatalf("width = %d", img.Bounds().Dx())
	}
}

func TestDrawClampsHeight(t *testing.T) {
	r, err := New(Options{MaxWidth: 800, MaxHeight: 300}, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	img := r.Draw(flow.Frame{Canvas: flow.Canvas{Width: 100, Height: 60000}})
	if img.Bounds().Dy() != 300 {
		t.Fatalf("height = %d", img.Bounds().Dy())
	}
}
