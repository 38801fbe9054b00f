package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"

	"github.com/StockHamster/market-calendar/pkg/config"
	"github.com/StockHamster/market-calendar/pkg/models"
)

const moverMeasurement = "movers"

// InfluxClient stores the per-day mover lists as a time series
type InfluxClient struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	logger   *logrus.Entry
	cfg      *config.InfluxConfig
	org      string
	bucket   string
	loc      *time.Location
}

// NewInfluxClient creates a new InfluxDB client
func NewInfluxClient(cfg *config.InfluxConfig, loc *time.Location, logger *logrus.Logger) *InfluxClient {
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetHTTPRequestTimeout(uint(cfg.Timeout.Seconds())).
			SetLogLevel(0),
	)
	if loc == nil {
		loc = time.UTC
	}

	return &InfluxClient{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI: client.QueryAPI(cfg.Org),
		logger:   logger.WithField("component", "influxdb"),
		cfg:      cfg,
		org:      cfg.Org,
		bucket:   cfg.Bucket,
		loc:      loc,
	}
}

// Close closes the InfluxDB client
func (ic *InfluxClient) Close() {
	ic.client.Close()
}

// Health checks InfluxDB health
func (ic *InfluxClient) Health(ctx context.Context) error {
	health, err := ic.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("failed to check health: %w", err)
	}

	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return fmt.Errorf("influxdb health check failed: %s", msg)
	}

	return nil
}

// MoverTimestamp places a mover at its time of high on its trading date.
// Movers without a time are stamped at midnight.
func MoverTimestamp(date string, m models.Mover, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation("20060102", date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	hs, ms, ok := strings.Cut(m.HighTime, ":")
	if !ok {
		return day, nil
	}
	var h, min int
	if _, err := fmt.Sscanf(hs+" "+ms, "%d %d", &h, &min); err != nil {
		return day, nil
	}
	return day.Add(time.Duration(h)*time.Hour + time.Duration(min)*time.Minute), nil
}

// MoverPoints converts a day bundle to points, one per mover
func MoverPoints(b *models.DayBundle, loc *time.Location) ([]*write.Point, error) {
	movers := append(append([]models.Mover(nil), b.Kospi...), b.Kosdaq...)
	points := make([]*write.Point, 0, len(movers))
	for _, m := range movers {
		ts, err := MoverTimestamp(b.Date, m, loc)
		if err != nil {
			return nil, err
		}
		sectorTag := m.Sector
		if sectorTag == "" {
			sectorTag = "없음"
		}
		points = append(points, influxdb2.NewPoint(
			moverMeasurement,
			map[string]string{
				"market": string(m.Market),
				"sector": sectorTag,
				"name":   m.Name,
				"date":   b.Date,
			},
			map[string]interface{}{
				"high_rate": m.HighRate,
				"size":      m.Size,
			},
			ts,
		))
	}
	return points, nil
}

// WriteBundle writes every mover of a day
func (ic *InfluxClient) WriteBundle(ctx context.Context, b *models.DayBundle) (int, error) {
	points, err := MoverPoints(b, ic.loc)
	if err != nil {
		return 0, err
	}
	if len(points) == 0 {
		return 0, nil
	}

	if err := ic.writeAPI.WritePoint(ctx, points...); err != nil {
		return 0, fmt.Errorf("failed to write movers: %w", err)
	}

	ic.logger.WithFields(logrus.Fields{
		"date":   b.Date,
		"points": len(points),
	}).Debug("Wrote movers")
	return len(points), nil
}

// SectorDays returns, for each trading date in range, the sectors with at
// least minCount movers, most frequent first. The shape matches the
// monthly-sector calendar file.
func (ic *InfluxClient) SectorDays(ctx context.Context, from, to time.Time, minCount int) (map[string][]string, error) {
	query := fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: %s, stop: %s)
			|> filter(fn: (r) => r._measurement == "%s" and r._field == "size")
			|> group(columns: ["date", "sector"])
			|> count()
	`, ic.bucket, from.Format(time.RFC3339), to.Format(time.RFC3339), moverMeasurement)

	result, err := ic.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sector days: %w", err)
	}
	defer result.Close()

	counts := make(map[string]map[string]int64)
	for result.Next() {
		record := result.Record()
		date, _ := record.ValueByKey("date").(string)
		name, _ := record.ValueByKey("sector").(string)
		n, _ := record.Value().(int64)
		if date == "" || name == "" || name == "없음" {
			continue
		}
		iso := date
		if t, err := time.Parse("20060102", date); err == nil {
			iso = t.Format("2006-01-02")
		}
		if counts[iso] == nil {
			counts[iso] = make(map[string]int64)
		}
		counts[iso][name] += n
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("query error: %w", result.Err())
	}

	out := make(map[string][]string, len(counts))
	for iso, sectors := range counts {
		var names []string
		for name, n := range sectors {
			if n >= int64(minCount) {
				names = append(names, name)
			}
		}
		sort.Slice(names, func(i, j int) bool {
			if sectors[names[i]] != sectors[names[j]] {
				return sectors[names[i]] > sectors[names[j]]
			}
			return names[i] < names[j]
		})
		if len(names) > 0 {
			out[iso] = names
		}
	}
	return out, nil
}
