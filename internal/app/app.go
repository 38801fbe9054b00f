package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/StockHamster/market-calendar/internal/api"
	"github.com/StockHamster/market-calendar/internal/api/handlers"
	"github.com/StockHamster/market-calendar/internal/cache"
	"github.com/StockHamster/market-calendar/internal/calendar"
	"github.com/StockHamster/market-calendar/internal/database"
	"github.com/StockHamster/market-calendar/internal/flow"
	"github.com/StockHamster/market-calendar/internal/marketdata"
	"github.com/StockHamster/market-calendar/internal/messaging"
	"github.com/StockHamster/market-calendar/internal/render"
	"github.com/StockHamster/market-calendar/internal/scheduler"
	"github.com/StockHamster/market-calendar/internal/sector"
	"github.com/StockHamster/market-calendar/internal/session"
	"github.com/StockHamster/market-calendar/internal/websocket"
	"github.com/StockHamster/market-calendar/pkg/config"
	"github.com/StockHamster/market-calendar/pkg/models"
)

// App represents the main application
type App struct {
	cfg    *config.Config
	logger *logrus.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Data layer
	loc      *time.Location
	registry *sector.Registry
	tags     *calendar.TagSet
	calendar *calendar.Calendar
	loader   *marketdata.Loader
	renderer *render.Renderer
	board    *calendar.Board

	// Optional backends
	redisCache *cache.RedisClient
	visits     database.VisitStore
	influxDB   *database.InfluxClient
	natsClient *messaging.NATSClient

	// Services
	sessionMgr *session.Manager
	wsManager  *websocket.Manager
	scheduler  *scheduler.Scheduler
	apiServer  *api.Server
}

// New creates a new application instance
func New(cfg *config.Config, logger *logrus.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// InitializeData builds what the CLI tools need: lookup tables, calendar,
// loader and renderer. The bundle cache is attached when Redis is enabled.
func (a *App) InitializeData() error {
	if err := a.initializeTables(); err != nil {
		return fmt.Errorf("failed to initialize tables: %w", err)
	}

	if a.cfg.Redis.Enabled {
		if err := a.initializeCache(); err != nil {
			return fmt.Errorf("failed to initialize cache: %w", err)
		}
	}

	var bundleCache marketdata.BundleCache
	if a.redisCache != nil {
		bundleCache = a.redisCache
	}
	a.loader = marketdata.NewLoader(marketdata.NewSource(&a.cfg.Data, a.logger), &a.cfg.Data, bundleCache, a.logger)
	a.board = calendar.NewBoard(a.loader.LoadNotes, a.logger)

	renderer, err := render.New(render.Options{
		FontPath:  a.cfg.Chart.FontPath,
		MaxWidth:  a.cfg.Chart.MaxWidth,
		MaxHeight: a.cfg.Chart.MaxHeight,
		Overlay:   a.cfg.Chart.Overlay,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize renderer: %w", err)
	}
	a.renderer = renderer
	return nil
}

// Initialize initializes all application components
func (a *App) Initialize() error {
	if err := a.InitializeData(); err != nil {
		return err
	}

	if err := a.initializeDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if a.cfg.NATS.Enabled {
		if err := a.initializeMessaging(); err != nil {
			return fmt.Errorf("failed to initialize messaging: %w", err)
		}
	}

	if err := a.initializeWebSocket(); err != nil {
		return fmt.Errorf("failed to initialize WebSocket: %w", err)
	}

	if a.cfg.Scheduler.Enabled {
		if err := a.initializeScheduler(); err != nil {
			return fmt.Errorf("failed to initialize scheduler: %w", err)
		}
	}

	a.initializeAPIServer()
	return nil
}

// Start starts the application
func (a *App) Start() error {
	if a.wsManager != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.wsManager.Run(a.ctx)
		}()

		if a.natsClient != nil {
			if err := a.natsClient.SubscribeFlowEvents(models.EventRefreshed, a.wsManager.HandleFlowEvent); err != nil {
				return fmt.Errorf("failed to subscribe to refresh events: %w", err)
			}
		}
	}

	if a.scheduler != nil {
		a.scheduler.Start()
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.apiServer.Start(); err != nil {
			a.logger.WithError(err).Error("API server error")
		}
	}()

	return nil
}

// Stop gracefully stops the application
func (a *App) Stop() error {
	a.logger.Info("Stopping application...")

	if a.apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := a.apiServer.Stop(ctx); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("Error stopping API server")
		}
		cancel()
	}

	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	a.cancel()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info("All goroutines stopped")
	case <-time.After(3 * time.Second):
		a.logger.Warn("Timeout waiting for goroutines to finish")
	}

	if err := a.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing connections")
	}

	a.logger.Info("Application stopped successfully")
	return nil
}

// Close releases backend connections
func (a *App) Close() error {
	var errs []error

	if a.natsClient != nil {
		if err := a.natsClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close NATS: %w", err))
		}
	}
	if a.redisCache != nil {
		if err := a.redisCache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}
	if a.visits != nil {
		if err := a.visits.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close visit store: %w", err))
		}
	}
	if a.influxDB != nil {
		a.influxDB.Close()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing connections: %v", errs)
	}
	return nil
}

func (a *App) GetContext() context.Context {
	return a.ctx
}

func (a *App) GetConfig() *config.Config {
	return a.cfg
}

func (a *App) GetLogger() *logrus.Logger {
	return a.logger
}

func (a *App) Loader() *marketdata.Loader {
	return a.loader
}

func (a *App) Renderer() *render.Renderer {
	return a.renderer
}

func (a *App) Registry() *sector.Registry {
	return a.registry
}

func (a *App) Calendar() *calendar.Calendar {
	return a.calendar
}

func (a *App) Board() *calendar.Board {
	return a.board
}

func (a *App) Canvas() flow.Canvas {
	return flow.Canvas{Width: float64(a.cfg.Chart.Width), Height: float64(a.cfg.Chart.Height)}
}

// initializeTables loads the timezone, the built-in tables and any YAML
// overrides
func (a *App) initializeTables() error {
	loc, err := time.LoadLocation(a.cfg.Data.Timezone)
	if err != nil {
		a.logger.WithError(err).WithField("timezone", a.cfg.Data.Timezone).Warn("Unknown timezone, using UTC+9")
		loc = time.FixedZone("KST", 9*3600)
	}
	a.loc = loc

	tables, err := config.LoadTables(a.cfg.Data.TablesFile)
	if err != nil {
		return err
	}

	a.registry = sector.NewRegistry()
	for name, entry := range tables.Sectors {
		a.registry.Set(name, sector.Style{Emoji: entry.Emoji, Color: entry.Color})
	}

	holidays := calendar.DefaultHolidays()
	if skipped := holidays.Merge(tables.Holidays); len(skipped) > 0 {
		a.logger.WithField("keys", skipped).Warn("Skipped holiday overrides with invalid dates")
	}

	a.tags = calendar.DefaultTags()
	for raw, tags := range tables.Tags {
		view, err := models.ParseCalendarView(raw)
		if err != nil {
			a.logger.WithError(err).Warn("Skipped tag overrides")
			continue
		}
		a.tags.Replace(view, tags)
	}

	a.calendar = calendar.New(holidays, a.cfg.Features.FlowStart(), loc)

	a.logger.WithFields(logrus.Fields{
		"sectors":  a.registry.Len(),
		"holidays": len(holidays),
		"timezone": loc.String(),
	}).Debug("Lookup tables ready")
	return nil
}

func (a *App) initializeCache() error {
	redisClient, err := cache.NewRedisClient(&a.cfg.Redis, a.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	a.redisCache = redisClient
	return nil
}

// InitializeHistory connects to InfluxDB
func (a *App) InitializeHistory() error {
	a.influxDB = database.NewInfluxClient(&a.cfg.InfluxDB, a.loc, a.logger)
	if err := a.influxDB.Health(a.ctx); err != nil {
		return fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}
	return nil
}

// History returns the InfluxDB client, nil until InitializeHistory
func (a *App) History() *database.InfluxClient {
	return a.influxDB
}

func (a *App) initializeDatabase() error {
	if a.cfg.Features.VisitsEnabled {
		store, err := database.OpenVisitStore(a.cfg, a.logger)
		if err != nil {
			return fmt.Errorf("failed to open visit store: %w", err)
		}
		if store != nil {
			if err := store.Migrate(a.ctx); err != nil {
				store.Close()
				return err
			}
			a.visits = store
		}
	}

	if a.cfg.InfluxDB.Enabled {
		if err := a.InitializeHistory(); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) initializeMessaging() error {
	natsClient, err := messaging.NewNATSClient(&a.cfg.NATS, a.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	a.natsClient = natsClient
	return nil
}

func (a *App) events() messaging.Publisher {
	if a.natsClient == nil {
		return nil
	}
	return a.natsClient
}

func (a *App) initializeWebSocket() error {
	if !a.cfg.Features.WebSocketEnabled {
		a.logger.Info("WebSocket disabled")
		return nil
	}
	a.sessionMgr = session.NewManager(a.loader, a.registry, a.renderer.Measurer(), a.events(), a.Canvas(), a.logger)
	a.wsManager = websocket.NewManager(a.sessionMgr, &a.cfg.WebSocket, a.logger)
	return nil
}

func (a *App) initializeScheduler() error {
	deps := scheduler.Deps{
		Loader:   a.loader,
		Calendar: a.calendar,
		Events:   a.events(),
		Notes:    a.board,
	}
	if a.redisCache != nil {
		deps.Cache = a.redisCache
	}
	if a.influxDB != nil {
		deps.History = a.influxDB
	}
	if a.wsManager != nil {
		deps.OnRefresh = a.wsManager.Refresh
	}

	a.scheduler = scheduler.New(&a.cfg.Scheduler, deps, a.logger)
	return a.scheduler.RegisterAll()
}

func (a *App) initializeAPIServer() {
	checks := map[string]api.HealthCheck{}
	var charts handlers.ChartCache
	if a.redisCache != nil {
		checks["redis"] = a.redisCache.Health
		charts = a.redisCache
	}
	var history handlers.SectorHistory
	if a.influxDB != nil {
		checks["influxdb"] = a.influxDB.Health
		history = a.influxDB
	}
	if a.natsClient != nil {
		nc := a.natsClient
		checks["nats"] = func(ctx context.Context) error {
			if !nc.IsConnected() {
				return fmt.Errorf("not connected")
			}
			return nil
		}
	}

	groups := []api.RouteRegistrar{
		handlers.NewFlowHandler(a.loader, a.renderer, a.registry, charts, a.Canvas(), a.logger),
		handlers.NewCalendarHandler(a.calendar, a.tags, a.board, a.loader, a.registry, a.logger),
		handlers.NewSectorHandler(a.registry, a.loader, history, a.loc, a.logger),
	}
	if a.visits != nil {
		checks["visits"] = a.visits.Health
		groups = append(groups, handlers.NewVisitHandler(a.visits, a.events(), a.calendar.Today, a.logger))
	}

	a.apiServer = api.NewServer(a.cfg, a.logger, checks, a.wsManager, groups...)
}
