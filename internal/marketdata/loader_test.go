package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/StockHamster/market-calendar/pkg/config"
	"github.com/StockHamster/market-calendar/pkg/logger"
	"github.com/StockHamster/market-calendar/pkg/models"
)

var testDataConfig = &config.DataConfig{FlowPrefix: "backup_marketflow", CalPrefix: "cal"}

const kospiJSON = `[
  {"종목명": "삼성전자", "고가등락률": "12.5", "고가발생시간": "09:31", "섹터": "반도체", "크기": 260, "메모": "실적"},
  {"종목명": "현대차", "고가등락률": -3, "고가발생시간": "", "크기": "90"}
]`

const volumeJSON = `{
  "09:30": "1조\n2조",
  "rating": {"미장 상태": "3.5", "시장 난이도": 2},
  "comment": "무난",
  "extra": 42
}`

func writeFile(t *testing.T, root, name, body string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDayFromDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "backup_marketflow/20250630_kospi.json", kospiJSON)
	writeFile(t, root, "backup_marketflow/volume_20250630.json", volumeJSON)

	l := NewLoader(NewDirSource(root), testDataConfig, nil, logger.Discard())
	b, err := l.LoadDay(context.Background(), "2025-06-30")
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}

	if b.Date != "20250630" {
		t.Errorf("date = %s", b.Date)
	}
	if len(b.Kospi) != 2 {
		t.Fatalf("kospi = %+v", b.Kospi)
	}
	first := b.Kospi[0]
	if first.Name != "삼성전자" || first.HighRate != 12.5 || first.Size != 260 || first.Market != models.MarketKOSPI {
		t.Errorf("first mover = %+v", first)
	}
	if b.Kospi[1].Size != 90 || b.Kospi[1].HighTime != "" {
		t.Errorf("second mover = %+v", b.Kospi[1])
	}
	if b.Kosdaq == nil || len(b.Kosdaq) != 0 {
		t.Errorf("kosdaq should be empty, got %+v", b.Kosdaq)
	}
	if len(b.Failed) != 1 || b.Failed[0] != models.SourceKOSDAQ {
		t.Errorf("failed = %v", b.Failed)
	}
	if lines := b.Volume.Lines("09:30"); len(lines) != 2 || lines[1] != "2조" {
		t.Errorf("volume lines = %v", lines)
	}
	if b.Volume.RatingFor("미장 상태") != 3.5 || b.Volume.Comment != "무난" {
		t.Errorf("volume = %+v", b.Volume)
	}
}

func TestLoadDayOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/backup_marketflow/20250701_kospi.json":
			w.Write([]byte(kospiJSON))
		case "/data/backup_marketflow/20250701_kosdaq.json":
			w.Write([]byte(`[{"종목명": "에코프로", "고가등락률": 29.9, "고가발생시간": "14:10", "크기": 150}]`))
		case "/data/backup_marketflow/volume_20250701.json":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := *testDataConfig
	cfg.Source = srv.URL + "/data/"
	l := NewLoader(NewSource(&cfg, logger.Discard()), &cfg, nil, logger.Discard())

	b, err := l.LoadDay(context.Background(), "20250701")
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}
	if len(b.Kospi) != 2 || len(b.Kosdaq) != 1 {
		t.Fatalf("kospi=%d kosdaq=%d", len(b.Kospi), len(b.Kosdaq))
	}
	if b.Kosdaq[0].Market != models.MarketKOSDAQ {
		t.Errorf("market = %s", b.Kosdaq[0].Market)
	}
	if len(b.Failed) != 1 || b.Failed[0] != models.SourceVolume {
		t.Errorf("failed = %v", b.Failed)
	}
	if b.Volume == nil || len(b.Volume.Blocks) != 0 {
		t.Errorf("volume should be empty, got %+v", b.Volume)
	}
}

func TestLoadDayRejectsBadDate(t *testing.T) {
	l := NewLoader(NewDirSource(t.TempDir()), testDataConfig, nil, logger.Discard())
	if _, err := l.LoadDay(context.Background(), "june"); err == nil {
		t.Fatal("expected error for invalid date")
	}
}

type memoryCache struct {
	bundles map[string]*models.DayBundle
	sets    int
}

func (m *memoryCache) GetBundle(ctx context.Context, date string) (*models.DayBundle, error) {
	return m.bundles[date], nil
}

func (m *memoryCache) SetBundle(ctx context.Context, b *models.DayBundle) error {
	m.sets++
	m.bundles[b.Date] = b
	return nil
}

type failingSource struct{ t *testing.T }

func (f failingSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	f.t.Errorf("unexpected fetch of %s", name)
	return nil, ErrNotFound
}

func TestLoadDayCache(t *testing.T) {
	cached := &models.DayBundle{Date: "20250702", Kospi: []models.Mover{{Name: "캐시"}}}
	cache := &memoryCache{bundles: map[string]*models.DayBundle{"20250702": cached}}

	l := NewLoader(failingSource{t}, testDataConfig, cache, logger.Discard())
	b, err := l.LoadDay(context.Background(), "20250702")
	if err != nil || b != cached {
		t.Fatalf("expected cached bundle, got %+v, %v", b, err)
	}

	root := t.TempDir()
	writeFile(t, root, "backup_marketflow/20250703_kospi.json", kospiJSON)
	l = NewLoader(NewDirSource(root), testDataConfig, cache, logger.Discard())
	if _, err := l.LoadDay(context.Background(), "20250703"); err != nil {
		t.Fatal(err)
	}
	if cache.sets != 0 {
		t.Fatal("partially failed bundle should not be cached")
	}

	writeFile(t, root, "backup_marketflow/20250703_kosdaq.json", "[]")
	writeFile(t, root, "backup_marketflow/volume_20250703.json", "{}")
	if _, err := l.LoadDay(context.Background(), "20250703"); err != nil {
		t.Fatal(err)
	}
	if cache.sets != 1 {
		t.Fatalf("complete bundle should be cached once, sets = %d", cache.sets)
	}
}

func TestDirSourceStaysInsideRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "data")
	writeFile(t, parent, "secret.json", "{}")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := NewDirSource(root).Fetch(context.Background(), "../secret.json")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCalendarFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "cal/record.json", `{"Mon Jun 30 2025": [{"text": "삼성전자 상한가", "tag": "당일 시장 주도주"}]}`)
	writeFile(t, root, "cal/monthlySector.json", `{"2025-06-30": ["반도체", "바이오"]}`)
	writeFile(t, root, "cal/top10_sectors.json", `[{"섹터": "반도체", "이모지": "💾"}]`)

	l := NewLoader(NewDirSource(root), testDataConfig, nil, logger.Discard())
	ctx := context.Background()

	notes := l.LoadNotes(ctx, models.ViewRecord)
	if got := notes["Mon Jun 30 2025"]; len(got) != 1 || got[0].Tag != "당일 시장 주도주" {
		t.Fatalf("record notes = %+v", notes)
	}
	if schedule := l.LoadNotes(ctx, models.ViewSchedule); len(schedule) != 0 {
		t.Fatalf("missing schedule should be empty, got %+v", schedule)
	}
	if ms := l.LoadMonthlySectors(ctx); len(ms["2025-06-30"]) != 2 {
		t.Fatalf("monthly sectors = %+v", ms)
	}
	if top := l.LoadTopSectors(ctx); len(top) != 1 || top[0].Emoji != "💾" {
		t.Fatalf("top sectors = %+v", top)
	}
}
