package calendar

import (
	"sync"

	"github.com/StockHamster/market-calendar/pkg/models"
)

// Tag labels with special rendering
const (
	TagEvent = "이벤트"
	TagOther = "기타"
)

// TagSet holds the tags of each calendar view
type TagSet struct {
	mu     sync.RWMutex
	byView map[models.CalendarView][]models.Tag
}

// DefaultTags returns the built-in schedule and record tags
func DefaultTags() *TagSet {
	return &TagSet{byView: map[models.CalendarView][]models.Tag{
		models.ViewSchedule: {
			models.SimpleTag("신규상장주", "bg-yellow-300"),
			models.SimpleTag("주요일정", "bg-orange-300"),
			models.SimpleTag(TagEvent, "bg-rose-500"),
			models.SimpleTag("보호예수. CB/BW", "bg-lime-300"),
			models.SimpleTag(TagOther, ""),
		},
		models.ViewRecord: {
			models.SimpleTag("당일 시장 주도주", "bg-sky-300"),
			models.SimpleTag("특징 뉴스", "bg-violet-200"),
			models.PrefixedTag("단기과열", "열", "#ffff00", "#ff0000"),
			models.PrefixedTag("투자주의", "주", "#91847d", "#ffffff"),
			models.PrefixedTag("투자경고", "경", "#ab6f6f", "#ffffff"),
			models.PrefixedTag("투자위험", "위", "#a42d6c", "#ffffff"),
			models.PrefixedTag("거래정지", "정", "#dd4596", "#ffffff"),
			models.SimpleTag(TagOther, ""),
		},
	}}
}

// Tags returns a view's tags in display order
func (s *TagSet) Tags(view models.CalendarView) []models.Tag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Tag(nil), s.byView[view]...)
}

// Lookup finds a view's tag by label
func (s *TagSet) Lookup(view models.CalendarView, label string) (models.Tag, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.byView[view] {
		if t.Label == label {
			return t, true
		}
	}
	return models.Tag{}, false
}

// Replace swaps a view's tags
func (s *TagSet) Replace(view models.CalendarView, tags []models.Tag) {
	s.mu.Lock()
	s.byView[view] = append([]models.Tag(nil), tags...)
	s.mu.Unlock()
}

// NoteView is a note with its tag styling resolved
type NoteView struct {
	Index      int    `json:"index"`
	Text       string `json:"text"`
	Tag        string `json:"tag"`
	Background string `json:"background,omitempty"`
	Prefix     string `json:"prefix,omitempty"`
	PrefixBg   string `json:"prefix_bg,omitempty"`
	PrefixText string `json:"prefix_text,omitempty"`
	Bold       bool   `json:"bold"`
	LightText  bool   `json:"light_text"`
	Warning    bool   `json:"warning"`
}

// Style resolves how a note renders: prefixed tags show a badge, simple
// tags tint the background, and everything except prefixed and "기타"
// notes is bold.
func (s *TagSet) Style(view models.CalendarView, idx int, n models.Note) NoteView {
	v := NoteView{Index: idx, Text: n.Text, Tag: n.Tag, LightText: n.Tag == TagEvent}
	tag, ok := s.Lookup(view, n.Tag)
	prefixed := ok && tag.IsPrefixed()
	switch {
	case prefixed:
		v.Prefix, v.PrefixBg, v.PrefixText = tag.Prefix, tag.BgColor, tag.TextColor
		v.Warning = true
	case ok:
		v.Background = tag.Color
	}
	v.Bold = !prefixed && n.Tag != TagOther
	return v
}
