package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/StockHamster/market-calendar/internal/calendar"
	"github.com/StockHamster/market-calendar/internal/marketdata"
	"github.com/StockHamster/market-calendar/internal/sector"
	"github.com/StockHamster/market-calendar/pkg/models"
)

// SectorFiles loads the published sector summaries
type SectorFiles interface {
	LoadMonthlySectors(ctx context.Context) map[string][]string
	LoadTopSectors(ctx context.Context) []models.SectorRank
}

// CalendarHandler serves the month grid, trading-day navigation and the
// notes board
type CalendarHandler struct {
	cal      *calendar.Calendar
	tags     *calendar.TagSet
	board    *calendar.Board
	files    SectorFiles
	registry *sector.Registry
	logger   *logrus.Entry
}

// NewCalendarHandler creates a new calendar handler
func NewCalendarHandler(
	cal *calendar.Calendar,
	tags *calendar.TagSet,
	board *calendar.Board,
	files SectorFiles,
	registry *sector.Registry,
	logger *logrus.Logger,
) *CalendarHandler {
	return &CalendarHandler{
		cal:      cal,
		tags:     tags,
		board:    board,
		files:    files,
		registry: registry,
		logger:   logger.WithField("component", "calendar-api"),
	}
}

// RegisterRoutes registers the calendar and notes routes
func (h *CalendarHandler) RegisterRoutes(router *mux.Router) {
	c := router.PathPrefix("/api/v1/calendar").Subrouter()
	c.HandleFunc("/today", h.GetToday).Methods("GET")
	c.HandleFunc("/trading-day/prev", h.GetPrevTradingDay).Methods("GET")
	c.HandleFunc("/trading-day/next", h.GetNextTradingDay).Methods("GET")
	c.HandleFunc("/holidays", h.GetHolidays).Methods("GET")
	c.HandleFunc("/{year:[0-9]{4}}/{month:[0-9]{1,2}}", h.GetMonth).Methods("GET")

	n := router.PathPrefix("/api/v1/notes/{view}").Subrouter()
	n.HandleFunc("", h.GetNotes).Methods("GET")
	n.HandleFunc("/tags", h.GetTags).Methods("GET")
	n.HandleFunc("/reorder", h.ReorderNotes).Methods("POST")
	n.HandleFunc("/entry", h.EditNote).Methods("PUT")
	n.HandleFunc("/entry", h.DeleteNote).Methods("DELETE")
	n.HandleFunc("/export", h.ExportNotes).Methods("GET")
	n.HandleFunc("/reload", h.ReloadNotes).Methods("POST")
}

// DayInfo describes one date for navigation
type DayInfo struct {
	Date         string `json:"date"`
	DayKey       string `json:"day_key"`
	FlowDate     string `json:"flow_date"`
	TradingDay   bool   `json:"trading_day"`
	Holiday      string `json:"holiday,omitempty"`
	FlowEligible bool   `json:"flow_eligible"`
}

func (h *CalendarHandler) dayInfo(t time.Time) DayInfo {
	name, _ := h.cal.Holidays().Name(t)
	return DayInfo{
		Date:         calendar.ISOKey(t),
		DayKey:       calendar.DayKey(t),
		FlowDate:     t.Format(marketdata.DateLayout),
		TradingDay:   h.cal.IsTradingDay(t),
		Holiday:      name,
		FlowEligible: h.cal.FlowEligible(t, t.Month()),
	}
}

func (h *CalendarHandler) parseDay(raw string) (time.Time, error) {
	if raw == "" {
		return h.cal.Today(), nil
	}
	t, err := marketdata.ParseDate(raw)
	if err != nil {
		return time.Time{}, err
	}
	return h.cal.Date(t.Year(), t.Month(), t.Day()), nil
}

// GetToday handles GET /api/v1/calendar/today
func (h *CalendarHandler) GetToday(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dayInfo(h.cal.Today()))
}

// GetPrevTradingDay handles GET /api/v1/calendar/trading-day/prev?date=
func (h *CalendarHandler) GetPrevTradingDay(w http.ResponseWriter, r *http.Request) {
	t, err := h.parseDay(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.dayInfo(h.cal.PrevTradingDay(t)))
}

// GetNextTradingDay handles GET /api/v1/calendar/trading-day/next?date=
func (h *CalendarHandler) GetNextTradingDay(w http.ResponseWriter, r *http.Request) {
	t, err := h.parseDay(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.dayInfo(h.cal.NextTradingDay(t)))
}

// GetHolidays handles GET /api/v1/calendar/holidays?year=&month=
func (h *CalendarHandler) GetHolidays(w http.ResponseWriter, r *http.Request) {
	today := h.cal.Today()
	year, month := today.Year(), int(today.Month())
	var err error
	if raw := r.URL.Query().Get("year"); raw != "" {
		if year, err = strconv.Atoi(raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid year")
			return
		}
	}
	if raw := r.URL.Query().Get("month"); raw != "" {
		if month, err = strconv.Atoi(raw); err != nil || month < 1 || month > 12 {
			writeError(w, http.StatusBadRequest, "invalid month")
			return
		}
	}
	holidays := h.cal.Holidays().InMonth(year, time.Month(month))
	if holidays == nil {
		holidays = []calendar.Holiday{}
	}
	writeJSON(w, http.StatusOK, holidays)
}

// GetMonth handles GET /api/v1/calendar/{year}/{month}?view=&sector=
func (h *CalendarHandler) GetMonth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	year, _ := strconv.Atoi(vars["year"])
	month, _ := strconv.Atoi(vars["month"])
	if month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "invalid month")
		return
	}
	view, err := models.ParseCalendarView(r.URL.Query().Get("view"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := calendar.GridInput{
		Year:     year,
		Month:    time.Month(month),
		View:     view,
		Notes:    h.board.Notes(ctx, view),
		Tags:     h.tags,
		Registry: h.registry,
	}
	if s := r.URL.Query().Get("sector"); s != "" {
		in.Sector = sector.Normalize(s)
		in.MonthlySectors = h.files.LoadMonthlySectors(ctx)
	}
	writeJSON(w, http.StatusOK, h.cal.Grid(in))
}

func parseView(w http.ResponseWriter, r *http.Request) (models.CalendarView, bool) {
	view, err := models.ParseCalendarView(mux.Vars(r)["view"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	return view, true
}

// resolveDayKey accepts a day key as is, or a date in either layout
func resolveDayKey(raw string) string {
	if t, err := marketdata.ParseDate(raw); err == nil {
		return calendar.DayKey(t)
	}
	return raw
}

// GetNotes handles GET /api/v1/notes/{view}
func (h *CalendarHandler) GetNotes(w http.ResponseWriter, r *http.Request) {
	view, ok := parseView(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.board.Notes(r.Context(), view))
}

// GetTags handles GET /api/v1/notes/{view}/tags
func (h *CalendarHandler) GetTags(w http.ResponseWriter, r *http.Request) {
	view, ok := parseView(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.tags.Tags(view))
}

// ReorderNotes handles POST /api/v1/notes/{view}/reorder
func (h *CalendarHandler) ReorderNotes(w http.ResponseWriter, r *http.Request) {
	view, ok := parseView(w, r)
	if !ok {
		return
	}
	var mv calendar.Move
	if err := json.NewDecoder(r.Body).Decode(&mv); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	mv.SourceDay = resolveDayKey(mv.SourceDay)
	mv.TargetDay = resolveDayKey(mv.TargetDay)

	changed, err := h.board.Reorder(r.Context(), view, mv)
	if err != nil {
		h.noteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"changed": changed,
		"notes":   h.board.Notes(r.Context(), view)[mv.TargetDay],
	})
}

// NoteRequest addresses one note of a day
type NoteRequest struct {
	Day   string `json:"day"`
	Index int    `json:"index"`
	Text  string `json:"text,omitempty"`
}

// EditNote handles PUT /api/v1/notes/{view}/entry
func (h *CalendarHandler) EditNote(w http.ResponseWriter, r *http.Request) {
	view, ok := parseView(w, r)
	if !ok {
		return
	}
	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	day := resolveDayKey(req.Day)
	if err := h.board.Edit(r.Context(), view, day, req.Index, req.Text); err != nil {
		h.noteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"notes": h.board.Notes(r.Context(), view)[day]})
}

// DeleteNote handles DELETE /api/v1/notes/{view}/entry?day=&index=
func (h *CalendarHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	view, ok := parseView(w, r)
	if !ok {
		return
	}
	idx, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid index")
		return
	}
	day := resolveDayKey(r.URL.Query().Get("day"))
	if err := h.board.Delete(r.Context(), view, day, idx); err != nil {
		h.noteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"notes": h.board.Notes(r.Context(), view)[day]})
}

// ExportNotes handles GET /api/v1/notes/{view}/export
func (h *CalendarHandler) ExportNotes(w http.ResponseWriter, r *http.Request) {
	view, ok := parseView(w, r)
	if !ok {
		return
	}
	data, err := h.board.Export(r.Context(), view)
	if err != nil {
		h.logger.WithError(err).Error("Failed to export notes")
		writeError(w, http.StatusInternalServerError, "Failed to export notes")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", view.FileName()))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ReloadNotes handles POST /api/v1/notes/{view}/reload
func (h *CalendarHandler) ReloadNotes(w http.ResponseWriter, r *http.Request) {
	view, ok := parseView(w, r)
	if !ok {
		return
	}
	h.board.Reload(view)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded", "view": string(view)})
}

func (h *CalendarHandler) noteError(w http.ResponseWriter, err error) {
	if errors.Is(err, calendar.ErrNoSuchNote) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.logger.WithError(err).Error("Notes operation failed")
	writeError(w, http.StatusInternalServerError, "Notes operation failed")
}
