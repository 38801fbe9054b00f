package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/StockHamster/market-calendar/pkg/config"
	"github.com/StockHamster/market-calendar/pkg/logger"
	"github.com/StockHamster/market-calendar/pkg/models"
)

// DateLayout is the yyyymmdd form used in file names and bundle keys
const DateLayout = "20060102"

// BundleCache stores fully loaded day bundles
type BundleCache interface {
	GetBundle(ctx context.Context, date string) (*models.DayBundle, error)
	SetBundle(ctx context.Context, bundle *models.DayBundle) error
}

// Loader fetches the three per-date flow files
type Loader struct {
	source     Source
	flowPrefix string
	calPrefix  string
	cache      BundleCache
	logger     *logrus.Entry
}

// NewLoader creates a loader. cache may be nil.
func NewLoader(source Source, cfg *config.DataConfig, cache BundleCache, logger *logrus.Logger) *Loader {
	return &Loader{
		source:     source,
		flowPrefix: cfg.FlowPrefix,
		calPrefix:  cfg.CalPrefix,
		cache:      cache,
		logger:     logger.WithField("component", "loader"),
	}
}

// ParseDate accepts yyyymmdd or yyyy-mm-dd
func ParseDate(s string) (time.Time, error) {
	for _, layout := range []string{DateLayout, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// KospiFile, KosdaqFile and VolumeFile name the per-date files
func (l *Loader) KospiFile(date string) string {
	return fmt.Sprintf("%s/%s_kospi.json", l.flowPrefix, date)
}

func (l *Loader) KosdaqFile(date string) string {
	return fmt.Sprintf("%s/%s_kosdaq.json", l.flowPrefix, date)
}

func (l *Loader) VolumeFile(date string) string {
	return fmt.Sprintf("%s/volume_%s.json", l.flowPrefix, date)
}

// LoadDay fetches the KOSPI list, KOSDAQ list and volume annotation for a
// date concurrently. A missing or malformed file degrades to empty data and
// is listed in Failed; only an invalid date is an error.
func (l *Loader) LoadDay(ctx context.Context, date string) (*models.DayBundle, error) {
	t, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	date = t.Format(DateLayout)
	log := logger.WithDate(l.logger, date)

	if l.cache != nil {
		cached, err := l.cache.GetBundle(ctx, date)
		if err != nil {
			log.WithError(err).Warn("Bundle cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	bundle := &models.DayBundle{
		Date:   date,
		Kospi:  []models.Mover{},
		Kosdaq: []models.Mover{},
		Volume: models.NewVolumeAnnotation(),
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed = map[string]bool{}
	)
	fail := func(source string, err error) {
		log.WithField("source", source).WithError(err).Warn("Failed to load flow data, using empty data")
		mu.Lock()
		failed[source] = true
		mu.Unlock()
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		movers, err := l.fetchMovers(ctx, l.KospiFile(date), models.MarketKOSPI)
		if err != nil {
			fail(models.SourceKOSPI, err)
			return
		}
		bundle.Kospi = movers
	}()
	go func() {
		defer wg.Done()
		movers, err := l.fetchMovers(ctx, l.KosdaqFile(date), models.MarketKOSDAQ)
		if err != nil {
			fail(models.SourceKOSDAQ, err)
			return
		}
		bundle.Kosdaq = movers
	}()
	go func() {
		defer wg.Done()
		volume, err := l.fetchVolume(ctx, l.VolumeFile(date))
		if err != nil {
			fail(models.SourceVolume, err)
			return
		}
		bundle.Volume = volume
	}()
	wg.Wait()

	for _, source := range []string{models.SourceKOSPI, models.SourceKOSDAQ, models.SourceVolume} {
		if failed[source] {
			bundle.Failed = append(bundle.Failed, source)
		}
	}
	bundle.LoadedAt = time.Now()

	log.WithFields(logrus.Fields{
		"kospi":  len(bundle.Kospi),
		"kosdaq": len(bundle.Kosdaq),
		"failed": bundle.Failed,
	}).Debug("Loaded day bundle")

	if l.cache != nil && len(bundle.Failed) == 0 {
		if err := l.cache.SetBundle(ctx, bundle); err != nil {
			log.WithError(err).Warn("Bundle cache write failed")
		}
	}
	return bundle, nil
}

func (l *Loader) fetchMovers(ctx context.Context, name string, market models.Market) ([]models.Mover, error) {
	data, err := l.source.Fetch(ctx, name)
	if err != nil {
		return nil, err
	}
	var movers []models.Mover
	if err := json.Unmarshal(data, &movers); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	for i := range movers {
		movers[i].Market = market
	}
	if movers == nil {
		movers = []models.Mover{}
	}
	return movers, nil
}

func (l *Loader) fetchVolume(ctx context.Context, name string) (*models.VolumeAnnotation, error) {
	data, err := l.source.Fetch(ctx, name)
	if err != nil {
		return nil, err
	}
	volume := models.NewVolumeAnnotation()
	if err := json.Unmarshal(data, volume); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return volume, nil
}
