package config

import (
	"fmt"
	"os"

	"github.com/StockHamster/market-calendar/pkg/models"
	"gopkg.in/yaml.v3"
)

// SectorEntry is a sector style override
type SectorEntry struct {
	Emoji string `yaml:"emoji"`
	Color string `yaml:"color"`
}

// Tables holds optional overrides for the static lookup tables compiled into
// the binary (sector styles, holidays, calendar tags).
type Tables struct {
	Sectors  map[string]SectorEntry  `yaml:"sectors"`
	Holidays map[string]string       `yaml:"holidays"` // YYYY-MM-DD -> name
	Tags     map[string][]models.Tag `yaml:"tags"`     // view -> tags
}

// LoadTables reads the YAML tables file. An empty path or a missing file
// yields empty tables.
func LoadTables(path string) (*Tables, error) {
	tables := &Tables{}
	if path == "" {
		return tables, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return tables, nil
		}
		return nil, fmt.Errorf("failed to read tables file: %w", err)
	}

	if err := yaml.Unmarshal(data, tables); err != nil {
		return nil, fmt.Errorf("failed to parse tables file %s: %w", path, err)
	}

	for view, tags := range tables.Tags {
		for i := range tags {
			if tags[i].Kind == "" {
				if tags[i].Prefix != "" {
					tags[i].Kind = models.TagPrefixed
				} else {
					tags[i].Kind = models.TagSimple
				}
			}
		}
		tables.Tags[view] = tags
	}

	return tables, nil
}
