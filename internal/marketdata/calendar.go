package marketdata

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/StockHamster/market-calendar/pkg/models"
)

// Calendar file names under the calendar prefix
const (
	MonthlySectorFile = "monthlySector.json"
	TopSectorsFile    = "top10_sectors.json"
)

func (l *Loader) calFile(name string) string {
	return l.calPrefix + "/" + name
}

func (l *Loader) fetchJSON(ctx context.Context, name string, v interface{}) error {
	data, err := l.source.Fetch(ctx, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}

// LoadNotes loads the notes of a calendar view. Failures yield empty notes
// and a warning, like the other calendar files.
func (l *Loader) LoadNotes(ctx context.Context, view models.CalendarView) models.Notes {
	notes := models.Notes{}
	if err := l.fetchJSON(ctx, l.calFile(view.FileName()), &notes); err != nil {
		l.logger.WithField("view", view).WithError(err).Warn("Failed to load notes")
		return models.Notes{}
	}
	return notes
}

// LoadMonthlySectors loads the iso-date -> sectors map used for highlighting
func (l *Loader) LoadMonthlySectors(ctx context.Context) map[string][]string {
	sectors := map[string][]string{}
	if err := l.fetchJSON(ctx, l.calFile(MonthlySectorFile), &sectors); err != nil {
		l.logger.WithError(err).Warn("Failed to load monthly sectors")
		return map[string][]string{}
	}
	return sectors
}

// LoadTopSectors loads the ranked sector list
func (l *Loader) LoadTopSectors(ctx context.Context) []models.SectorRank {
	var ranks []models.SectorRank
	if err := l.fetchJSON(ctx, l.calFile(TopSectorsFile), &ranks); err != nil {
		l.logger.WithError(err).Warn("Failed to load top sectors")
		return []models.SectorRank{}
	}
	if ranks == nil {
		ranks = []models.SectorRank{}
	}
	return ranks
}
