package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/StockHamster/market-calendar/pkg/models"
	"github.com/sethvargo/go-envconfig"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWithLookuper(envconfig.MapLookuper(map[string]string{}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Chart.Width != 600 || cfg.Chart.Height != 1500 {
		t.Errorf("chart = %dx%d, want 600x1500", cfg.Chart.Width, cfg.Chart.Height)
	}
	if cfg.Data.FlowPrefix != "backup_marketflow" {
		t.Errorf("flow prefix = %q", cfg.Data.FlowPrefix)
	}
	if got := cfg.Features.FlowStart().Format("2006-01-02"); got != "2025-06-30" {
		t.Errorf("flow start = %s", got)
	}
	if cfg.IsRemoteSource() {
		t.Error("default source should be a local directory")
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadWithLookuper(envconfig.MapLookuper(map[string]string{
		"SERVER_PORT":           "9091",
		"DATA_SOURCE":           "https://example.com/data",
		"VISITS_DRIVER":         "none",
		"SECURITY_CORS_ORIGINS": "https://a.example,https://b.example",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9091 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if !cfg.IsRemoteSource() {
		t.Error("expected remote source")
	}
	if len(cfg.Security.CORSOrigins) != 2 {
		t.Errorf("origins = %v", cfg.Security.CORSOrigins)
	}
}

func TestLoadRejectsUnknownVisitsDriver(t *testing.T) {
	_, err := LoadWithLookuper(envconfig.MapLookuper(map[string]string{
		"VISITS_DRIVER": "firestore",
	}))
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestLoadTables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tables.yaml")
	content := `
sectors:
  반도체:
    emoji: "💾"
    color: "#123456"
holidays:
  "2026-01-01": 신년
tags:
  record:
    - label: 단기과열
      prefix: 열
      bg_color: "#ffff00"
      text_color: "#ff0000"
    - label: 기타
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	tables, err := LoadTables(path)
	if err != nil {
		t.Fatalf("load tables: %v", err)
	}
	if tables.Sectors["반도체"].Color != "#123456" {
		t.Errorf("sector override missing: %+v", tables.Sectors)
	}
	if tables.Holidays["2026-01-01"] != "신년" {
		t.Errorf("holiday override missing: %+v", tables.Holidays)
	}
	tags := tables.Tags["record"]
	if len(tags) != 2 || tags[0].Kind != models.TagPrefixed || tags[1].Kind != models.TagSimple {
		t.Errorf("tags kinds not inferred: %+v", tags)
	}
}

func TestLoadTablesMissingFile(t *testing.T) {
	tables, err := LoadTables(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(tables.Sectors) != 0 {
		t.Error("expected empty tables")
	}
}
