package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/StockHamster/market-calendar/pkg/models"
)

// ErrNoSuchNote is returned for a day key or index that does not exist
var ErrNoSuchNote = errors.New("no such note")

// NotesFetcher loads a view's published notes
type NotesFetcher func(ctx context.Context, view models.CalendarView) models.Notes

// Board holds the in-memory notes of each view. Notes are loaded from the
// published files on first use; edits live until the next reload and leave
// only through Export.
type Board struct {
	mu     sync.RWMutex
	fetch  NotesFetcher
	notes  map[models.CalendarView]models.Notes
	logger *logrus.Entry
}

// NewBoard creates a board backed by fetch
func NewBoard(fetch NotesFetcher, logger *logrus.Logger) *Board {
	return &Board{
		fetch:  fetch,
		notes:  make(map[models.CalendarView]models.Notes),
		logger: logger.WithField("component", "notes-board"),
	}
}

func (b *Board) ensure(ctx context.Context, view models.CalendarView) models.Notes {
	b.mu.RLock()
	notes, ok := b.notes[view]
	b.mu.RUnlock()
	if ok {
		return notes
	}

	fetched := models.Notes{}
	if b.fetch != nil {
		fetched = b.fetch(ctx, view)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if notes, ok := b.notes[view]; ok {
		return notes
	}
	b.notes[view] = fetched
	return fetched
}

// Notes returns a copy of a view's notes
func (b *Board) Notes(ctx context.Context, view models.CalendarView) models.Notes {
	b.ensure(ctx, view)
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.notes[view].Clone()
}

// Reload drops a view's in-memory notes so the next access refetches them
func (b *Board) Reload(view models.CalendarView) {
	b.mu.Lock()
	delete(b.notes, view)
	b.mu.Unlock()
}

// Move is a drag of one note onto another position
type Move struct {
	SourceDay   string `json:"source_day"`
	SourceIndex int    `json:"source_index"`
	TargetDay   string `json:"target_day"`
	TargetIndex int    `json:"target_index"`
}

// Reorder moves a note within its day. Moves across days, onto the same
// index, or on a day without notes change nothing and report false.
func (b *Board) Reorder(ctx context.Context, view models.CalendarView, mv Move) (bool, error) {
	if mv.SourceDay != mv.TargetDay || mv.SourceIndex == mv.TargetIndex {
		return false, nil
	}
	b.ensure(ctx, view)

	b.mu.Lock()
	defer b.mu.Unlock()
	day, ok := b.notes[view][mv.TargetDay]
	if !ok {
		b.logger.WithField("day", mv.TargetDay).Warn("Reorder on a day without notes")
		return false, nil
	}
	if mv.SourceIndex < 0 || mv.SourceIndex >= len(day) || mv.TargetIndex < 0 || mv.TargetIndex >= len(day) {
		return false, fmt.Errorf("move %d -> %d on %s: %w", mv.SourceIndex, mv.TargetIndex, mv.TargetDay, ErrNoSuchNote)
	}

	updated := append([]models.Note(nil), day...)
	moved := updated[mv.SourceIndex]
	updated = append(updated[:mv.SourceIndex], updated[mv.SourceIndex+1:]...)
	updated = append(updated[:mv.TargetIndex], append([]models.Note{moved}, updated[mv.TargetIndex:]...)...)
	b.notes[view][mv.TargetDay] = updated
	return true, nil
}

// Edit replaces a note's text, keeping its tag
func (b *Board) Edit(ctx context.Context, view models.CalendarView, dayKey string, idx int, text string) error {
	b.ensure(ctx, view)

	b.mu.Lock()
	defer b.mu.Unlock()
	day := b.notes[view][dayKey]
	if idx < 0 || idx >= len(day) {
		return fmt.Errorf("edit %s[%d]: %w", dayKey, idx, ErrNoSuchNote)
	}
	updated := append([]models.Note(nil), day...)
	updated[idx].Text = text
	b.notes[view][dayKey] = updated
	return nil
}

// Delete removes a note
func (b *Board) Delete(ctx context.Context, view models.CalendarView, dayKey string, idx int) error {
	b.ensure(ctx, view)

	b.mu.Lock()
	defer b.mu.Unlock()
	day := b.notes[view][dayKey]
	if idx < 0 || idx >= len(day) {
		return fmt.Errorf("delete %s[%d]: %w", dayKey, idx, ErrNoSuchNote)
	}
	updated := make([]models.Note, 0, len(day)-1)
	updated = append(updated, day[:idx]...)
	updated = append(updated, day[idx+1:]...)
	b.notes[view][dayKey] = updated
	return nil
}

// Export serializes a view's notes as indented JSON, suitable for
// publishing back as the view's file.
func (b *Board) Export(ctx context.Context, view models.CalendarView) ([]byte, error) {
	notes := b.Notes(ctx, view)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(notes); err != nil {
		return nil, fmt.Errorf("failed to encode notes: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
