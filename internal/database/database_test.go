package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/StockHamster/market-calendar/pkg/logger"
	"github.com/StockHamster/market-calendar/pkg/models"
)

func TestSQLiteVisitCounter(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "visits.db"), logger.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	if n, err := store.Get(ctx, "2025-07-15"); err != nil || n != 0 {
		t.Fatalf("unseen day = %d, %v", n, err)
	}
	for want := int64(1); want <= 3; want++ {
		n, err := store.Increment(ctx, "2025-07-15")
		if err != nil {
			t.Fatal(err)
		}
		if n != want {
			t.Fatalf("count = %d, want %d", n, want)
		}
	}
	if _, err := store.Increment(ctx, "2025-07-16"); err != nil {
		t.Fatal(err)
	}

	visits, err := store.Range(ctx, "2025-07-01", "2025-07-31")
	if err != nil {
		t.Fatal(err)
	}
	if len(visits) != 2 || visits[0].Day != "2025-07-15" || visits[0].Count != 3 || visits[1].Count != 1 {
		t.Fatalf("range = %+v", visits)
	}

	// migrations are idempotent
	if err := store.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestMoverPoints(t *testing.T) {
	kst := time.FixedZone("KST", 9*3600)
	b := &models.DayBundle{
		Date:   "20250630",
		Kospi:  []models.Mover{{Name: "삼성전자", Market: models.MarketKOSPI, HighRate: 12.5, HighTime: "09:31", Sector: "반도체", Size: 260}},
		Kosdaq: []models.Mover{{Name: "에코프로", Market: models.MarketKOSDAQ, HighRate: 3}},
	}
	points, err := MoverPoints(b, kst)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 2 {
		t.Fatalf("points = %d", len(points))
	}

	want := time.Date(2025, 6, 30, 9, 31, 0, 0, kst)
	if !points[0].Time().Equal(want) {
		t.Errorf("time = %v, want %v", points[0].Time(), want)
	}
	if !points[1].Time().Equal(time.Date(2025, 6, 30, 0, 0, 0, 0, kst)) {
		t.Errorf("untimed mover = %v", points[1].Time())
	}

	tags := map[string]string{}
	for _, tag := range points[1].TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["sector"] != "없음" || tags["market"] != "KOSDAQ" {
		t.Errorf("tags = %v", tags)
	}
}

func TestMoverTimestampRejectsBadDate(t *testing.T) {
	if _, err := MoverTimestamp("2025-06-30", models.Mover{}, time.UTC); err == nil {
		t.Fatal("expected error")
	}
}
