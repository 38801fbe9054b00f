package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/StockHamster/market-calendar/internal/database"
	"github.com/StockHamster/market-calendar/internal/marketdata"
	"github.com/StockHamster/market-calendar/internal/messaging"
	"github.com/StockHamster/market-calendar/pkg/models"
)

// VisitHandler serves the per-day visit counter
type VisitHandler struct {
	store  database.VisitStore
	events messaging.Publisher
	today  func() time.Time
	logger *logrus.Entry
}

// NewVisitHandler creates a new visit handler. events may be nil.
func NewVisitHandler(store database.VisitStore, events messaging.Publisher, today func() time.Time, logger *logrus.Logger) *VisitHandler {
	return &VisitHandler{
		store:  store,
		events: events,
		today:  today,
		logger: logger.WithField("component", "visit-api"),
	}
}

// RegisterRoutes registers the visit counter routes
func (h *VisitHandler) RegisterRoutes(router *mux.Router) {
	v := router.PathPrefix("/api/v1/visits").Subrouter()
	v.HandleFunc("", h.RecordVisit).Methods("POST")
	v.HandleFunc("", h.GetVisits).Methods("GET")
}

// RecordVisit handles POST /api/v1/visits, counting a visit for today
func (h *VisitHandler) RecordVisit(w http.ResponseWriter, r *http.Request) {
	day := h.today().Format("2006-01-02")
	count, err := h.store.Increment(r.Context(), day)
	if err != nil {
		h.logger.WithError(err).WithField("day", day).Error("Failed to record visit")
		writeError(w, http.StatusInternalServerError, "Failed to record visit")
		return
	}

	if h.events != nil {
		if err := h.events.PublishFlowEvent(&models.FlowEvent{Type: models.EventVisit, Date: day, Count: count}); err != nil {
			h.logger.WithError(err).Warn("Failed to publish visit event")
		}
	}
	writeJSON(w, http.StatusOK, models.VisitCount{Day: day, Count: count})
}

// GetVisits handles GET /api/v1/visits?day= or ?from=&to=
func (h *VisitHandler) GetVisits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("from") != "" || q.Get("to") != "" {
		from, err1 := marketdata.ParseDate(q.Get("from"))
		to, err2 := marketdata.ParseDate(q.Get("to"))
		if err1 != nil || err2 != nil {
			writeError(w, http.StatusBadRequest, "from and to must be dates")
			return
		}
		visits, err := h.store.Range(r.Context(), from.Format("2006-01-02"), to.Format("2006-01-02"))
		if err != nil {
			h.logger.WithError(err).Error("Failed to read visits")
			writeError(w, http.StatusInternalServerError, "Failed to read visits")
			return
		}
		if visits == nil {
			visits = []models.VisitCount{}
		}
		writeJSON(w, http.StatusOK, visits)
		return
	}

	day := h.today()
	if raw := q.Get("day"); raw != "" {
		t, err := marketdata.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		day = t
	}
	key := day.Format("2006-01-02")
	count, err := h.store.Get(r.Context(), key)
	if err != nil {
		h.logger.WithError(err).Error("Failed to read visits")
		writeError(w, http.StatusInternalServerError, "Failed to read visits")
		return
	}
	writeJSON(w, http.StatusOK, models.VisitCount{Day: key, Count: count})
}
