package flow

import (
	"github.com/google/uuid"

	"github.com/StockHamster/market-calendar/pkg/models"
)

// DragPhase is the pointer interaction phase
type DragPhase string

const (
	PhaseIdle     DragPhase = "idle"
	PhaseDragging DragPhase = "dragging"
)

// Drag tracks the mover being dragged and where it was grabbed, relative to
// the label center.
type Drag struct {
	Phase   DragPhase `json:"phase"`
	MoverID string    `json:"mover_id,omitempty"`
	OffsetX float64   `json:"offset_x"`
	OffsetY float64   `json:"offset_y"`
}

// ViewState is the whole state of one chart view. It is only changed by
// Apply, one event at a time.
type ViewState struct {
	Date          string                     `json:"date"`
	Market        models.MarketFilter        `json:"market"`
	Canvas        Canvas                     `json:"canvas"`
	Kospi         []models.Mover             `json:"-"`
	Kosdaq        []models.Mover             `json:"-"`
	Movers        []models.PlacedMover       `json:"movers"`
	Overrides     map[string]models.Position `json:"-"`
	Sectors       TimeSectorMap              `json:"sectors"`
	Volume        *models.VolumeAnnotation   `json:"volume"`
	Failed        []string                   `json:"failed,omitempty"`
	Drag          Drag                       `json:"drag"`
	HoveredID     string                     `json:"hovered_id,omitempty"`
	HoveredSector string                     `json:"hovered_sector,omitempty"`
	Seq           uint64                     `json:"seq"`
}

// NewViewState returns an empty idle view
func NewViewState(canvas Canvas) *ViewState {
	if canvas.Width <= 0 || canvas.Height <= 0 {
		canvas = DefaultCanvas
	}
	return &ViewState{
		Market:    models.FilterAll,
		Canvas:    canvas,
		Overrides: make(map[string]models.Position),
		Sectors:   TimeSectorMap{},
		Volume:    models.NewVolumeAnnotation(),
		Drag:      Drag{Phase: PhaseIdle},
	}
}

// Event is an input to ViewState.Apply
type Event interface {
	event()
}

// RequestDate asks for another date; the caller loads it and answers with
// LoadData carrying the Seq from the returned Result.
type RequestDate struct {
	Date string `json:"date"`
}

// LoadData delivers a fetched bundle. Bundles whose Seq is not the latest
// requested one are dropped.
type LoadData struct {
	Seq    uint64
	Bundle *models.DayBundle
}

// SetFilter switches the market filter
type SetFilter struct {
	Market models.MarketFilter `json:"market"`
}

// PointerDown starts a drag when it lands on a label
type PointerDown struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PointerMove drags the grabbed label and updates the hover target
type PointerMove struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PointerUp ends any drag
type PointerUp struct{}

// PointerLeave clears hover when the pointer leaves the canvas
type PointerLeave struct{}

// HoverSector highlights a sector; empty clears it
type HoverSector struct {
	Sector string `json:"sector"`
}

// Resize changes the canvas size
type Resize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (RequestDate) event()  {}
func (LoadData) event()     {}
func (SetFilter) event()    {}
func (PointerDown) event()  {}
func (PointerMove) event()  {}
func (PointerUp) event()    {}
func (PointerLeave) event() {}
func (HoverSector) event()  {}
func (Resize) event()       {}

// Result describes what an event did
type Result struct {
	Changed bool
	// Load is set by RequestDate: the caller must fetch Date and apply
	// LoadData{Seq: Seq}.
	Load  bool
	Seq   uint64
	Stale bool
	// Moved is the mover whose position changed, if any
	Moved string
}

// newID is swapped in tests
var newID = uuid.NewString

// Apply runs one event to completion
func (s *ViewState) Apply(ev Event, tm TextMeasurer) Result {
	switch e := ev.(type) {
	case RequestDate:
		s.Date = e.Date
		s.Seq++
		return Result{Changed: true, Load: true, Seq: s.Seq}

	case LoadData:
		if e.Seq != s.Seq {
			return Result{Stale: true, Seq: e.Seq}
		}
		s.load(e.Bundle)
		return Result{Changed: true, Seq: s.Seq}

	case SetFilter:
		if e.Market == "" {
			e.Market = models.FilterAll
		}
		if e.Market == s.Market {
			return Result{}
		}
		s.Market = e.Market
		s.rebuild()
		return Result{Changed: true}

	case PointerDown:
		i, ok := HitTest(s.Movers, s.Canvas, tm, e.X, e.Y)
		if !ok {
			return Result{}
		}
		cx, cy := s.Canvas.ToPixel(s.Movers[i].Position)
		s.Drag = Drag{Phase: PhaseDragging, MoverID: s.Movers[i].ID, OffsetX: e.X - cx, OffsetY: e.Y - cy}
		return Result{Changed: true}

	case PointerMove:
		var res Result
		if s.Drag.Phase == PhaseDragging {
			pos := s.Canvas.ToRatio(e.X-s.Drag.OffsetX, e.Y-s.Drag.OffsetY)
			for i := range s.Movers {
				if s.Movers[i].ID == s.Drag.MoverID {
					s.Movers[i].Position = pos
					s.Movers[i].Dragged = true
					s.Overrides[s.Drag.MoverID] = pos
					res.Changed = true
					res.Moved = s.Drag.MoverID
					break
				}
			}
		}
		hovered := ""
		if i, ok := HitTest(s.Movers, s.Canvas, tm, e.X, e.Y); ok {
			hovered = s.Movers[i].ID
		}
		if hovered != s.HoveredID {
			s.HoveredID = hovered
			res.Changed = true
		}
		return res

	case PointerUp:
		if s.Drag.Phase == PhaseIdle {
			return Result{}
		}
		s.Drag = Drag{Phase: PhaseIdle}
		return Result{Changed: true}

	case PointerLeave:
		if s.HoveredID == "" {
			return Result{}
		}
		s.HoveredID = ""
		return Result{Changed: true}

	case HoverSector:
		if e.Sector == s.HoveredSector {
			return Result{}
		}
		s.HoveredSector = e.Sector
		return Result{Changed: true}

	case Resize:
		if e.Width <= 0 {
			return Result{}
		}
		if e.Height <= 0 {
			e.Height = s.Canvas.Height
		}
		s.Canvas = Canvas{Width: e.Width, Height: e.Height}
		return Result{Changed: true}
	}
	return Result{}
}

func (s *ViewState) load(b *models.DayBundle) {
	if b == nil {
		b = &models.DayBundle{Date: s.Date}
	}
	if b.Date != "" {
		s.Date = b.Date
	}
	s.Kospi = assignIDs(b.Kospi, models.MarketKOSPI)
	s.Kosdaq = assignIDs(b.Kosdaq, models.MarketKOSDAQ)
	s.Volume = b.Volume
	if s.Volume == nil {
		s.Volume = models.NewVolumeAnnotation()
	}
	s.Failed = append([]string(nil), b.Failed...)
	s.Overrides = make(map[string]models.Position)
	s.Drag = Drag{Phase: PhaseIdle}
	s.HoveredID = ""
	s.HoveredSector = ""
	s.rebuild()
}

func assignIDs(src []models.Mover, market models.Market) []models.Mover {
	out := make([]models.Mover, len(src))
	for i, m := range src {
		m.ID = newID()
		m.Market = market
		out[i] = m
	}
	return out
}

// rebuild derives the visible movers and sector summary from the raw lists,
// the filter and any drag overrides.
func (s *ViewState) rebuild() {
	var src []models.Mover
	if s.Market.Includes(models.MarketKOSPI) {
		src = append(src, s.Kospi...)
	}
	if s.Market.Includes(models.MarketKOSDAQ) {
		src = append(src, s.Kosdaq...)
	}

	movers := make([]models.PlacedMover, 0, len(src))
	present := make(map[string]bool, len(src))
	for _, m := range src {
		pm := models.PlacedMover{Mover: m, Position: InitialPosition(m)}
		if pos, ok := s.Overrides[m.ID]; ok {
			pm.Position = pos
			pm.Dragged = true
		}
		movers = append(movers, pm)
		present[m.ID] = true
	}
	s.Movers = movers
	s.Sectors = BuildTimeSectorMap(movers)

	if !present[s.HoveredID] {
		s.HoveredID = ""
	}
	if s.Drag.Phase == PhaseDragging && !present[s.Drag.MoverID] {
		s.Drag = Drag{Phase: PhaseIdle}
	}
}

// Mover returns the visible mover with the given id
func (s *ViewState) Mover(id string) (models.PlacedMover, bool) {
	if id == "" {
		return models.PlacedMover{}, false
	}
	for _, m := range s.Movers {
		if m.ID == id {
			return m, true
		}
	}
	return models.PlacedMover{}, false
}

// Alpha is the label fill opacity: full when the hovered mover has the same
// name or the mover belongs to the hovered sector, faded otherwise.
func (s *ViewState) Alpha(m models.PlacedMover) float64 {
	if h, ok := s.Mover(s.HoveredID); ok && h.Name == m.Name {
		return 1.0
	}
	if s.HoveredSector != "" && s.HoveredSector == m.Sector {
		return 1.0
	}
	return 0.3
}
