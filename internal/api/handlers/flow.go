package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/StockHamster/market-calendar/internal/cache"
	"github.com/StockHamster/market-calendar/internal/flow"
	"github.com/StockHamster/market-calendar/internal/marketdata"
	"github.com/StockHamster/market-calendar/internal/render"
	"github.com/StockHamster/market-calendar/internal/sector"
	"github.com/StockHamster/market-calendar/pkg/models"
)

// DayLoader fetches the data of one trading date
type DayLoader interface {
	LoadDay(ctx context.Context, date string) (*models.DayBundle, error)
}

// ChartCache stores rendered PNGs
type ChartCache interface {
	GetChart(ctx context.Context, key string) ([]byte, error)
	SetChart(ctx context.Context, key string, png []byte) error
}

// FlowHandler serves stateless renderings of the market flow chart
type FlowHandler struct {
	loader   DayLoader
	renderer *render.Renderer
	registry *sector.Registry
	charts   ChartCache
	canvas   flow.Canvas
	logger   *logrus.Entry
}

// NewFlowHandler creates a new flow chart handler. charts may be nil.
func NewFlowHandler(
	loader DayLoader,
	renderer *render.Renderer,
	registry *sector.Registry,
	charts ChartCache,
	canvas flow.Canvas,
	logger *logrus.Logger,
) *FlowHandler {
	return &FlowHandler{
		loader:   loader,
		renderer: renderer,
		registry: registry,
		charts:   charts,
		canvas:   canvas,
		logger:   logger.WithField("component", "flow-api"),
	}
}

// RegisterRoutes registers the flow chart routes
func (h *FlowHandler) RegisterRoutes(router *mux.Router) {
	f := router.PathPrefix("/api/v1/flow").Subrouter()
	f.HandleFunc("/{date}", h.GetLayout).Methods("GET")
	f.HandleFunc("/{date}/chart.png", h.GetChart).Methods("GET")
	f.HandleFunc("/{date}/hit", h.HitTest).Methods("GET")
}

// viewRequest is the query of a stateless chart request: market filter,
// canvas size, hovered sector and an optional pointer position for hover.
type viewRequest struct {
	date          string
	market        models.MarketFilter
	width, height float64
	sector        string
	x, y          float64
	pointer       bool
}

func (h *FlowHandler) parseView(r *http.Request) (viewRequest, error) {
	q := r.URL.Query()
	req := viewRequest{
		date:   mux.Vars(r)["date"],
		width:  h.canvas.Width,
		height: h.canvas.Height,
		sector: q.Get("sector"),
	}
	t, err := marketdata.ParseDate(req.date)
	if err != nil {
		return req, err
	}
	req.date = t.Format(marketdata.DateLayout)

	if req.market, err = models.ParseMarketFilter(q.Get("market")); err != nil {
		return req, err
	}
	if w, ok, err := floatParam(r, "width"); err != nil || (ok && w <= 0) {
		return req, fmt.Errorf("invalid width")
	} else if ok {
		req.width = w
	}
	if ht, ok, err := floatParam(r, "height"); err != nil || (ok && ht <= 0) {
		return req, fmt.Errorf("invalid height")
	} else if ok {
		req.height = ht
	}
	maxW, maxH := h.renderer.MaxSize()
	if (maxW > 0 && req.width > maxW) || (maxH > 0 && req.height > maxH) {
		return req, fmt.Errorf("canvas %gx%g exceeds the %gx%g limit", req.width, req.height, maxW, maxH)
	}

	x, okX, errX := floatParam(r, "x")
	y, okY, errY := floatParam(r, "y")
	if errX != nil || errY != nil || okX != okY {
		return req, fmt.Errorf("x and y must be given together")
	}
	req.x, req.y, req.pointer = x, y, okX
	return req, nil
}

// buildView runs a fresh view through the same events an interactive
// session would see.
func (h *FlowHandler) buildView(ctx context.Context, req viewRequest) (*flow.ViewState, error) {
	tm := h.renderer.Measurer()
	s := flow.NewViewState(flow.Canvas{Width: req.width, Height: req.height})

	res := s.Apply(flow.RequestDate{Date: req.date}, tm)
	bundle, err := h.loader.LoadDay(ctx, req.date)
	if err != nil {
		return nil, err
	}
	s.Apply(flow.LoadData{Seq: res.Seq, Bundle: bundle}, tm)
	s.Apply(flow.SetFilter{Market: req.market}, tm)
	if req.sector != "" {
		s.Apply(flow.HoverSector{Sector: sector.Normalize(req.sector)}, tm)
	}
	if req.pointer {
		s.Apply(flow.PointerMove{X: req.x, Y: req.y}, tm)
	}
	return s, nil
}

// GetLayout handles GET /api/v1/flow/{date}
func (h *FlowHandler) GetLayout(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseView(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s, err := h.buildView(r.Context(), req)
	if err != nil {
		h.logger.WithError(err).WithField("date", req.date).Error("Failed to build flow view")
		writeError(w, http.StatusInternalServerError, "Failed to load flow data")
		return
	}
	writeJSON(w, http.StatusOK, flow.BuildFrame(s, h.registry, h.renderer.Measurer()))
}

// GetChart handles GET /api/v1/flow/{date}/chart.png
func (h *FlowHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := h.parseView(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// only the plain chart is cached; hover variants are cheap to miss
	cacheable := h.charts != nil && req.sector == "" && !req.pointer
	key := cache.ChartKey(req.date, req.market, int(req.width), int(req.height))
	if cacheable {
		if png, err := h.charts.GetChart(ctx, key); err != nil {
			h.logger.WithError(err).Warn("Chart cache read failed")
		} else if png != nil {
			writePNG(w, png, "HIT")
			return
		}
	}

	s, err := h.buildView(ctx, req)
	if err != nil {
		h.logger.WithError(err).WithField("date", req.date).Error("Failed to build flow view")
		writeError(w, http.StatusInternalServerError, "Failed to load flow data")
		return
	}

	var buf bytes.Buffer
	if err := h.renderer.EncodePNG(&buf, flow.BuildFrame(s, h.registry, h.renderer.Measurer())); err != nil {
		h.logger.WithError(err).Error("Failed to encode chart")
		writeError(w, http.StatusInternalServerError, "Failed to render chart")
		return
	}

	if cacheable && len(s.Failed) == 0 {
		if err := h.charts.SetChart(ctx, key, buf.Bytes()); err != nil {
			h.logger.WithError(err).Warn("Chart cache write failed")
		}
	}
	writePNG(w, buf.Bytes(), "MISS")
}

func writePNG(w http.ResponseWriter, png []byte, cacheStatus string) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Cache", cacheStatus)
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// HitResponse reports which label a point lands on
type HitResponse struct {
	Hit   bool                `json:"hit"`
	Mover *models.PlacedMover `json:"mover,omitempty"`
	Box   *flow.Box           `json:"box,omitempty"`
}

// HitTest handles GET /api/v1/flow/{date}/hit?x=&y=
func (h *FlowHandler) HitTest(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseView(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.pointer {
		writeError(w, http.StatusBadRequest, "x and y are required")
		return
	}

	// hover is not needed for the hit itself
	req.pointer = false
	s, err := h.buildView(r.Context(), req)
	if err != nil {
		h.logger.WithError(err).WithField("date", req.date).Error("Failed to build flow view")
		writeError(w, http.StatusInternalServerError, "Failed to load flow data")
		return
	}

	tm := h.renderer.Measurer()
	i, ok := flow.HitTest(s.Movers, s.Canvas, tm, req.x, req.y)
	if !ok {
		writeJSON(w, http.StatusOK, HitResponse{})
		return
	}
	m := s.Movers[i]
	box := flow.LabelBox(m, s.Canvas, tm)
	writeJSON(w, http.StatusOK, HitResponse{Hit: true, Mover: &m, Box: &box})
}
