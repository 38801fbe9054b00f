package session

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"

	"github.com/StockHamster/market-calendar/internal/flow"
	"github.com/StockHamster/market-calendar/internal/messaging"
	"github.com/StockHamster/market-calendar/internal/sector"
	"github.com/StockHamster/market-calendar/pkg/logger"
	"github.com/StockHamster/market-calendar/pkg/models"
)

type fakeLoader struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	errs  map[string]error
	calls int
}

func (l *fakeLoader) LoadDay(ctx context.Context, date string) (*models.DayBundle, error) {
	l.mu.Lock()
	l.calls++
	gate := l.gates[date]
	err := l.errs[date]
	l.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return &models.DayBundle{
		Date:   date,
		Kospi:  []models.Mover{{Name: "삼성전자", HighRate: 5, HighTime: "10:00", Sector: "반도체", Size: 120}},
		Kosdaq: []models.Mover{{Name: "에코프로", HighRate: 10, HighTime: "13:00", Sector: "2차전지", Size: 60}},
		Volume: models.NewVolumeAnnotation(),
	}, nil
}

type recorder struct {
	mu     sync.Mutex
	events []models.FlowEvent
}

func (r *recorder) PublishFlowEvent(e *models.FlowEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *e)
	return nil
}

func (r *recorder) types() []models.FlowEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.FlowEventType
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type halfEm struct{}

func (halfEm) MeasureString(text string, size float64) float64 {
	return float64(len([]rune(text))) * size / 2
}

func newTestManager(l DayLoader, pub messaging.Publisher) *Manager {
	return NewManager(l, sector.NewRegistry(), halfEm{}, pub, flow.DefaultCanvas, logger.Discard())
}

func TestDispatchLoadsDate(t *testing.T) {
	pub := &recorder{}
	sm := newTestManager(&fakeLoader{}, pub)
	s := sm.Create()

	frame, res, err := s.Dispatch(context.Background(), flow.RequestDate{Date: "20250630"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stale {
		t.Fatal("unexpected stale load")
	}
	if frame.Date != "20250630" || len(frame.Labels) != 2 {
		t.Fatalf("frame date=%q labels=%d", frame.Date, len(frame.Labels))
	}
	if got := pub.types(); len(got) != 1 || got[0] != models.EventDayLoaded {
		t.Fatalf("events = %v", got)
	}
	if len(sm.ShowingDate("20250630")) != 1 {
		t.Error("session not listed under its date")
	}
}

func TestDragPublishesMovedOnRelease(t *testing.T) {
	pub := &recorder{}
	sm := newTestManager(&fakeLoader{}, pub)
	s := sm.Create()
	ctx := context.Background()

	frame, _, _ := s.Dispatch(ctx, flow.RequestDate{Date: "20250630"})
	l := frame.Labels[0]

	if _, _, err := s.Dispatch(ctx, flow.PointerDown{X: l.CenterX, Y: l.CenterY}); err != nil {
		t.Fatal(err)
	}
	frame, res, _ := s.Dispatch(ctx, flow.PointerMove{X: l.CenterX + 30, Y: l.CenterY + 40})
	if res.Moved != l.ID {
		t.Fatalf("moved = %q, want %q", res.Moved, l.ID)
	}
	if frame.Dragging != l.ID {
		t.Errorf("dragging = %q", frame.Dragging)
	}
	if len(pub.types()) != 1 {
		t.Fatal("moved published before release")
	}

	s.Dispatch(ctx, flow.PointerUp{})
	got := pub.types()
	if len(got) != 2 || got[1] != models.EventMoverMoved {
		t.Fatalf("events = %v", got)
	}

	// a click without movement publishes nothing
	s.Dispatch(ctx, flow.PointerDown{X: l.CenterX + 30, Y: l.CenterY + 40})
	s.Dispatch(ctx, flow.PointerUp{})
	if len(pub.types()) != 2 {
		t.Fatalf("events = %v", pub.types())
	}
}

func TestStaleLoadIsDropped(t *testing.T) {
	gate := make(chan struct{})
	loader := &fakeLoader{gates: map[string]chan struct{}{"20250630": gate}}
	pub := &recorder{}
	sm := newTestManager(loader, pub)
	s := sm.Create()
	ctx := context.Background()

	done := make(chan flow.Result, 1)
	go func() {
		_, res, _ := s.Dispatch(ctx, flow.RequestDate{Date: "20250630"})
		done <- res
	}()

	// wait for the first load to be in flight
	for {
		loader.mu.Lock()
		n := loader.calls
		loader.mu.Unlock()
		if n == 1 {
			break
		}
		runtime.Gosched()
	}

	frame, res, err := s.Dispatch(ctx, flow.RequestDate{Date: "20250701"})
	if err != nil || res.Stale {
		t.Fatalf("second load: stale=%v err=%v", res.Stale, err)
	}
	if frame.Date != "20250701" {
		t.Fatalf("date = %q", frame.Date)
	}

	close(gate)
	first := <-done
	if !first.Stale {
		t.Fatal("first load should be stale")
	}
	if s.Date() != "20250701" {
		t.Fatalf("stale load overwrote the view: %q", s.Date())
	}
	if got := pub.types(); len(got) != 1 {
		t.Fatalf("events = %v", got)
	}
}

func TestManagerRemove(t *testing.T) {
	sm := newTestManager(&fakeLoader{}, nil)
	s := sm.Create()
	if _, ok := sm.Get(s.ID); !ok || sm.Count() != 1 {
		t.Fatal("session not registered")
	}
	sm.Remove(s.ID)
	if sm.Count() != 0 {
		t.Fatal("session not removed")
	}
}

func TestDashedDateIsNormalized(t *testing.T) {
	sm := newTestManager(&fakeLoader{}, nil)
	s := sm.Create()

	frame, _, err := s.Dispatch(context.Background(), flow.RequestDate{Date: "2025-07-01"})
	if err != nil {
		t.Fatal(err)
	}
	if frame.Date != "20250701" || s.Date() != "20250701" {
		t.Fatalf("frame date=%q session date=%q", frame.Date, s.Date())
	}
	if len(sm.ShowingDate("20250701")) != 1 {
		t.Fatal("session not found by normalized date")
	}
}

func TestInvalidDateLeavesViewUntouched(t *testing.T) {
	sm := newTestManager(&fakeLoader{}, nil)
	s := sm.Create()
	ctx := context.Background()

	before, _, err := s.Dispatch(ctx, flow.RequestDate{Date: "20250630"})
	if err != nil {
		t.Fatal(err)
	}

	frame, _, err := s.Dispatch(ctx, flow.RequestDate{Date: "bogus"})
	if err == nil {
		t.Fatal("expected an error for a bad date")
	}
	if frame.Date != "20250630" || len(frame.Labels) != len(before.Labels) {
		t.Fatalf("frame date=%q labels=%d", frame.Date, len(frame.Labels))
	}
	if s.state.Seq != before.Seq {
		t.Fatalf("seq = %d, want %d", s.state.Seq, before.Seq)
	}
}

func TestFailedLoadRollsBack(t *testing.T) {
	loader := &fakeLoader{errs: map[string]error{"20250701": errors.New("boom")}}
	sm := newTestManager(loader, nil)
	s := sm.Create()
	ctx := context.Background()

	before, _, err := s.Dispatch(ctx, flow.RequestDate{Date: "20250630"})
	if err != nil {
		t.Fatal(err)
	}

	frame, res, err := s.Dispatch(ctx, flow.RequestDate{Date: "20250701"})
	if err == nil {
		t.Fatal("expected load error")
	}
	if res.Changed {
		t.Error("failed load reported a change")
	}
	if frame.Date != "20250630" || s.Date() != "20250630" {
		t.Fatalf("frame date=%q session date=%q", frame.Date, s.Date())
	}
	if s.state.Seq != before.Seq {
		t.Fatalf("seq = %d, want %d", s.state.Seq, before.Seq)
	}

	// the view still accepts loads afterwards
	if _, res, err := s.Dispatch(ctx, flow.RequestDate{Date: "20250702"}); err != nil || res.Stale {
		t.Fatalf("reload: stale=%v err=%v", res.Stale, err)
	}
}

type bundleLoader struct {
	bundle models.DayBundle
}

func (l bundleLoader) LoadDay(ctx context.Context, date string) (*models.DayBundle, error) {
	b := l.bundle
	b.Date = date
	return &b, nil
}

func TestPointerOnBadgeHighlightsSector(t *testing.T) {
	sm := newTestManager(bundleLoader{models.DayBundle{
		Kospi: []models.Mover{
			{Name: "가", HighRate: 5, HighTime: "10:00", Sector: "반도체", Size: 100},
			{Name: "나", HighRate: 20, HighTime: "10:10", Sector: "반도체", Size: 100},
		},
		Volume: models.NewVolumeAnnotation(),
	}}, nil)
	s := sm.Create()
	ctx := context.Background()

	frame, _, err := s.Dispatch(ctx, flow.RequestDate{Date: "20250630"})
	if err != nil {
		t.Fatal(err)
	}
	if len(frame.Badges) != 1 {
		t.Fatalf("badges = %d", len(frame.Badges))
	}
	badge := frame.Badges[0]
	cx, cy := badge.Box.Center()

	frame, res, _ := s.Dispatch(ctx, flow.PointerMove{X: cx, Y: cy})
	if !res.Changed || frame.HoveredSector != badge.Sector {
		t.Fatalf("hovered sector = %q changed=%v", frame.HoveredSector, res.Changed)
	}

	frame, _, _ = s.Dispatch(ctx, flow.PointerMove{X: cx, Y: frame.Canvas.Height - 1})
	if frame.HoveredSector != "" {
		t.Fatalf("sector kept after leaving badge: %q", frame.HoveredSector)
	}

	// an explicit highlight is not cleared by pointer movement
	s.Dispatch(ctx, flow.HoverSector{Sector: "반도체"})
	frame, _, _ = s.Dispatch(ctx, flow.PointerMove{X: cx, Y: frame.Canvas.Height - 1})
	if frame.HoveredSector != "반도체" {
		t.Fatalf("explicit highlight lost: %q", frame.HoveredSector)
	}
}
