package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/StockHamster/market-calendar/internal/flow"
	"github.com/StockHamster/market-calendar/internal/marketdata"
	"github.com/StockHamster/market-calendar/internal/messaging"
	"github.com/StockHamster/market-calendar/internal/sector"
	"github.com/StockHamster/market-calendar/pkg/models"
)

// DayLoader fetches the data of one trading date
type DayLoader interface {
	LoadDay(ctx context.Context, date string) (*models.DayBundle, error)
}

// Manager owns the chart views of connected clients
type Manager struct {
	loader   DayLoader
	registry *sector.Registry
	measurer flow.TextMeasurer
	events   messaging.Publisher
	canvas   flow.Canvas
	logger   *logrus.Entry

	sessions   map[string]*Session
	sessionsMu sync.RWMutex
}

// NewManager creates a new session manager. events may be nil.
func NewManager(
	loader DayLoader,
	registry *sector.Registry,
	measurer flow.TextMeasurer,
	events messaging.Publisher,
	canvas flow.Canvas,
	logger *logrus.Logger,
) *Manager {
	return &Manager{
		loader:   loader,
		registry: registry,
		measurer: measurer,
		events:   events,
		canvas:   canvas,
		logger:   logger.WithField("component", "session-manager"),
		sessions: make(map[string]*Session),
	}
}

// Create starts a new idle view
func (sm *Manager) Create() *Session {
	s := &Session{
		ID:      uuid.NewString(),
		Created: time.Now(),
		state:   flow.NewViewState(sm.canvas),
		manager: sm,
	}

	sm.sessionsMu.Lock()
	sm.sessions[s.ID] = s
	sm.sessionsMu.Unlock()

	sm.logger.WithField("session", s.ID).Debug("Session created")
	return s
}

// Get returns a session by id
func (sm *Manager) Get(id string) (*Session, bool) {
	sm.sessionsMu.RLock()
	defer sm.sessionsMu.RUnlock()
	s, ok := sm.sessions[id]
	return s, ok
}

// Remove forgets a session
func (sm *Manager) Remove(id string) {
	sm.sessionsMu.Lock()
	delete(sm.sessions, id)
	sm.sessionsMu.Unlock()
}

// Count returns the number of live sessions
func (sm *Manager) Count() int {
	sm.sessionsMu.RLock()
	defer sm.sessionsMu.RUnlock()
	return len(sm.sessions)
}

// ShowingDate returns the sessions currently viewing date
func (sm *Manager) ShowingDate(date string) []*Session {
	sm.sessionsMu.RLock()
	all := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		all = append(all, s)
	}
	sm.sessionsMu.RUnlock()

	var out []*Session
	for _, s := range all {
		if s.Date() == date {
			out = append(out, s)
		}
	}
	return out
}

// GetStats returns session manager statistics
func (sm *Manager) GetStats() map[string]interface{} {
	sm.sessionsMu.RLock()
	defer sm.sessionsMu.RUnlock()

	dates := make(map[string]int)
	for _, s := range sm.sessions {
		if d := s.Date(); d != "" {
			dates[d]++
		}
	}
	return map[string]interface{}{
		"total_sessions": len(sm.sessions),
		"dates":          dates,
	}
}

func (sm *Manager) publish(event *models.FlowEvent) {
	if sm.events == nil {
		return
	}
	if err := sm.events.PublishFlowEvent(event); err != nil {
		sm.logger.WithError(err).Warn("Failed to publish flow event")
	}
}

// Session is one client's chart view. Events are applied one at a time;
// data loads run outside the lock and come back as flow.LoadData.
type Session struct {
	ID      string
	Created time.Time

	mu    sync.Mutex
	state *flow.ViewState
	moved string
	// badgeHover is set while HoveredSector comes from the pointer
	badgeHover bool
	manager    *Manager
}

// Date returns the date being shown
func (s *Session) Date() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Date
}

// Frame renders the current state
func (s *Session) Frame() flow.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return flow.BuildFrame(s.state, s.manager.registry, s.manager.measurer)
}

// hoverBadge highlights the sector of the leading-sector badge under the
// pointer and clears that highlight once the pointer moves off it. Callers
// hold mu.
func (s *Session) hoverBadge(x, y float64, inside bool) bool {
	name := ""
	if inside && s.state.Drag.Phase != flow.PhaseDragging {
		badges := flow.OverlayBadges(s.state.Sectors, s.manager.registry, s.state.Canvas, s.manager.measurer)
		name, _ = flow.BadgeAt(badges, x, y)
	}
	if name == "" && (!s.badgeHover || s.state.HoveredSector == "") {
		s.badgeHover = false
		return false
	}
	s.badgeHover = name != ""
	return s.state.Apply(flow.HoverSector{Sector: name}, s.manager.measurer).Changed
}

// Dispatch applies ev and returns the resulting frame. A date request
// blocks until its data is loaded; if a newer request arrived meanwhile the
// result is marked Stale and the frame reflects the newer state.
func (s *Session) Dispatch(ctx context.Context, ev flow.Event) (flow.Frame, flow.Result, error) {
	sm := s.manager

	if rd, ok := ev.(flow.RequestDate); ok {
		t, err := marketdata.ParseDate(rd.Date)
		if err != nil {
			return s.Frame(), flow.Result{}, err
		}
		ev = flow.RequestDate{Date: t.Format(marketdata.DateLayout)}
	}

	s.mu.Lock()
	prevDate, prevSeq := s.state.Date, s.state.Seq
	res := s.state.Apply(ev, sm.measurer)
	var movedEvent *models.FlowEvent
	switch e := ev.(type) {
	case flow.PointerMove:
		if res.Moved != "" {
			s.moved = res.Moved
		}
		if s.hoverBadge(e.X, e.Y, true) {
			res.Changed = true
		}
	case flow.PointerLeave:
		if s.hoverBadge(0, 0, false) {
			res.Changed = true
		}
	case flow.HoverSector:
		s.badgeHover = false
	case flow.PointerUp:
		if s.moved != "" {
			movedEvent = &models.FlowEvent{
				Type:    models.EventMoverMoved,
				Date:    s.state.Date,
				Market:  s.state.Market,
				MoverID: s.moved,
			}
			s.moved = ""
		}
	}
	date := s.state.Date
	if !res.Load {
		frame := flow.BuildFrame(s.state, sm.registry, sm.measurer)
		s.mu.Unlock()
		if movedEvent != nil {
			sm.publish(movedEvent)
		}
		return frame, res, nil
	}
	s.moved = ""
	s.mu.Unlock()

	bundle, err := sm.loader.LoadDay(ctx, date)
	if err != nil {
		s.mu.Lock()
		// roll back unless a newer request took over
		if s.state.Seq == res.Seq {
			s.state.Date, s.state.Seq = prevDate, prevSeq
		}
		frame := flow.BuildFrame(s.state, sm.registry, sm.measurer)
		s.mu.Unlock()
		return frame, flow.Result{Seq: res.Seq}, fmt.Errorf("failed to load %s: %w", date, err)
	}

	s.mu.Lock()
	loaded := s.state.Apply(flow.LoadData{Seq: res.Seq, Bundle: bundle}, sm.measurer)
	frame := flow.BuildFrame(s.state, sm.registry, sm.measurer)
	movers := len(s.state.Movers)
	s.mu.Unlock()

	if loaded.Stale {
		sm.logger.WithFields(logrus.Fields{
			"session": s.ID,
			"date":    date,
			"seq":     res.Seq,
		}).Debug("Dropped stale load")
		return frame, loaded, nil
	}

	sm.publish(&models.FlowEvent{
		Type:   models.EventDayLoaded,
		Date:   bundle.Date,
		Market: frame.Market,
		Movers: movers,
	})
	return frame, loaded, nil
}
