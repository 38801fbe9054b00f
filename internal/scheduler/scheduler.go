package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/StockHamster/market-calendar/internal/calendar"
	"github.com/StockHamster/market-calendar/internal/marketdata"
	"github.com/StockHamster/market-calendar/internal/messaging"
	"github.com/StockHamster/market-calendar/pkg/config"
	"github.com/StockHamster/market-calendar/pkg/logger"
	"github.com/StockHamster/market-calendar/pkg/models"
)

// DayLoader fetches the data of one trading date
type DayLoader interface {
	LoadDay(ctx context.Context, date string) (*models.DayBundle, error)
}

// BundleInvalidator drops cached data of a date
type BundleInvalidator interface {
	InvalidateBundle(ctx context.Context, date string) error
}

// MoverWriter records a day's movers
type MoverWriter interface {
	WriteBundle(ctx context.Context, b *models.DayBundle) (int, error)
}

// NotesReloader drops in-memory notes so the published files are read again
type NotesReloader interface {
	Reload(view models.CalendarView)
}

// Deps are the collaborators of the scheduled jobs. Only Loader and
// Calendar are required.
type Deps struct {
	Loader   DayLoader
	Calendar *calendar.Calendar
	Cache    BundleInvalidator
	History  MoverWriter
	Events   messaging.Publisher
	Notes    NotesReloader
	// OnRefresh is called with the refreshed date when no event bus is
	// configured, so local sessions still reload.
	OnRefresh func(date string)
}

// Scheduler runs the post-close data refresh jobs
type Scheduler struct {
	cron   *cron.Cron
	deps   Deps
	cfg    *config.SchedulerConfig
	logger *logrus.Entry
}

// New creates a new Scheduler
func New(cfg *config.SchedulerConfig, deps Deps, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds(), cron.WithLocation(deps.Calendar.Location())),
		deps:   deps,
		cfg:    cfg,
		logger: logger.WithField("component", "scheduler"),
	}
}

// RegisterAll registers the prewarm and evening jobs
func (s *Scheduler) RegisterAll() error {
	if _, err := s.cron.AddFunc(s.cfg.PrewarmCron, s.prewarmTask); err != nil {
		return fmt.Errorf("register prewarm task: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.EveningCron, s.eveningTask); err != nil {
		return fmt.Errorf("register evening task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.WithFields(logrus.Fields{
		"prewarm": s.cfg.PrewarmCron,
		"evening": s.cfg.EveningCron,
	}).Info("Scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) prewarmTask() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if _, err := s.RefreshDay(ctx, s.deps.Calendar.Today()); err != nil {
		s.logger.WithError(err).Error("Prewarm failed")
	}
}

func (s *Scheduler) eveningTask() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if s.deps.Notes != nil {
		s.deps.Notes.Reload(models.ViewSchedule)
		s.deps.Notes.Reload(models.ViewRecord)
	}
	if _, err := s.RefreshDay(ctx, s.deps.Calendar.Today()); err != nil {
		s.logger.WithError(err).Error("Evening refresh failed")
	}
}

// RefreshDay drops cached data of a trading day, loads it again, records
// its movers and tells live sessions. Non-trading days are skipped and
// return a nil bundle.
func (s *Scheduler) RefreshDay(ctx context.Context, day time.Time) (*models.DayBundle, error) {
	log := logger.WithDate(s.logger, calendar.ISOKey(day))
	if !s.deps.Calendar.IsTradingDay(day) {
		log.Debug("Not a trading day, skipping refresh")
		return nil, nil
	}
	date := day.Format(marketdata.DateLayout)

	if s.deps.Cache != nil {
		if err := s.deps.Cache.InvalidateBundle(ctx, date); err != nil {
			log.WithError(err).Warn("Failed to invalidate cached bundle")
		}
	}

	bundle, err := s.deps.Loader.LoadDay(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", date, err)
	}
	if len(bundle.Failed) > 0 {
		log.WithField("failed", bundle.Failed).Warn("Day is only partially published")
	}

	if s.deps.History != nil && !bundle.Empty() {
		n, err := s.deps.History.WriteBundle(ctx, bundle)
		if err != nil {
			log.WithError(err).Warn("Failed to record mover history")
		} else {
			log.WithField("points", n).Debug("Recorded mover history")
		}
	}

	if s.deps.Events != nil {
		err := s.deps.Events.PublishFlowEvent(&models.FlowEvent{
			Type:   models.EventRefreshed,
			Date:   date,
			Movers: len(bundle.Kospi) + len(bundle.Kosdaq),
		})
		if err != nil {
			log.WithError(err).Warn("Failed to publish refresh event")
		}
	} else if s.deps.OnRefresh != nil {
		s.deps.OnRefresh(date)
	}

	log.WithFields(logrus.Fields{
		"kospi":  len(bundle.Kospi),
		"kosdaq": len(bundle.Kosdaq),
	}).Info("Refreshed trading day")
	return bundle, nil
}
