package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/StockHamster/market-calendar/internal/flow"
	"github.com/StockHamster/market-calendar/internal/marketdata"
	"github.com/StockHamster/market-calendar/internal/sector"
)

// SectorHistory answers which sectors led on which days
type SectorHistory interface {
	SectorDays(ctx context.Context, from, to time.Time, minCount int) (map[string][]string, error)
}

// SectorHandler serves the sector palette and sector summaries
type SectorHandler struct {
	registry *sector.Registry
	files    SectorFiles
	history  SectorHistory
	loc      *time.Location
	logger   *logrus.Entry
}

// NewSectorHandler creates a new sector handler. history may be nil.
func NewSectorHandler(registry *sector.Registry, files SectorFiles, history SectorHistory, loc *time.Location, logger *logrus.Logger) *SectorHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &SectorHandler{
		registry: registry,
		files:    files,
		history:  history,
		loc:      loc,
		logger:   logger.WithField("component", "sector-api"),
	}
}

// RegisterRoutes registers the sector routes
func (h *SectorHandler) RegisterRoutes(router *mux.Router) {
	s := router.PathPrefix("/api/v1/sectors").Subrouter()
	s.HandleFunc("", h.GetSectors).Methods("GET")
	s.HandleFunc("/top", h.GetTopSectors).Methods("GET")
	s.HandleFunc("/monthly", h.GetMonthlySectors).Methods("GET")
	s.HandleFunc("/history", h.GetSectorHistory).Methods("GET")
}

// GetSectors handles GET /api/v1/sectors
func (h *SectorHandler) GetSectors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Entries())
}

// TopSector is a ranked sector with its palette colors
type TopSector struct {
	Rank      int    `json:"rank"`
	Sector    string `json:"sector"`
	Emoji     string `json:"emoji"`
	Color     string `json:"color"`
	TextColor string `json:"text_color"`
}

// GetTopSectors handles GET /api/v1/sectors/top
func (h *SectorHandler) GetTopSectors(w http.ResponseWriter, r *http.Request) {
	ranks := h.files.LoadTopSectors(r.Context())
	out := make([]TopSector, 0, len(ranks))
	for i, rank := range ranks {
		style := h.registry.Style(rank.Sector)
		emoji := rank.Emoji
		if emoji == "" {
			emoji = style.Emoji
		}
		out = append(out, TopSector{
			Rank:      i + 1,
			Sector:    rank.Sector,
			Emoji:     emoji,
			Color:     style.Color,
			TextColor: sector.PaletteTextColor(style.Color),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetMonthlySectors handles GET /api/v1/sectors/monthly
func (h *SectorHandler) GetMonthlySectors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.files.LoadMonthlySectors(r.Context()))
}

// GetSectorHistory handles GET /api/v1/sectors/history?from=&to=&min=
func (h *SectorHandler) GetSectorHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "Sector history is not enabled")
		return
	}

	q := r.URL.Query()
	from, err := marketdata.ParseDate(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date")
		return
	}
	to, err := marketdata.ParseDate(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date")
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to is before from")
		return
	}
	minCount := flow.MinLeadingCount
	if raw := q.Get("min"); raw != "" {
		if minCount, err = strconv.Atoi(raw); err != nil || minCount < 1 {
			writeError(w, http.StatusBadRequest, "invalid min")
			return
		}
	}

	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, h.loc)
	stop := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, h.loc).AddDate(0, 0, 1)
	days, err := h.history.SectorDays(r.Context(), start, stop, minCount)
	if err != nil {
		h.logger.WithError(err).Error("Failed to query sector history")
		writeError(w, http.StatusInternalServerError, "Failed to query sector history")
		return
	}
	writeJSON(w, http.StatusOK, days)
}
