package models

import (
	"encoding/json"
	"fmt"
)

// CalendarView selects which note set the calendar shows
type CalendarView string

const (
	ViewSchedule CalendarView = "schedule"
	ViewRecord   CalendarView = "record"
)

// ParseCalendarView validates a view name, defaulting to schedule
func ParseCalendarView(s string) (CalendarView, error) {
	switch s {
	case "", string(ViewSchedule), "일정":
		return ViewSchedule, nil
	case string(ViewRecord), "기록":
		return ViewRecord, nil
	}
	return "", fmt.Errorf("unknown calendar view %q", s)
}

// FileName is the static JSON file the view's notes are published in
func (v CalendarView) FileName() string {
	if v == ViewRecord {
		return "record.json"
	}
	return "schedule.json"
}

// Note is a calendar entry
type Note struct {
	Text string `json:"text"`
	Tag  string `json:"tag"`
}

// Notes maps a day key ("Mon Jun 30 2025") to that day's ordered entries
type Notes map[string][]Note

// Clone returns a deep copy
func (n Notes) Clone() Notes {
	out := make(Notes, len(n))
	for k, v := range n {
		out[k] = append([]Note(nil), v...)
	}
	return out
}

// TagKind distinguishes the two tag shapes
type TagKind string

const (
	TagSimple   TagKind = "simple"
	TagPrefixed TagKind = "prefixed"
)

// Tag is a tagged variant: a Simple tag carries a background class, a
// Prefixed tag renders a small colored prefix badge before the note text.
type Tag struct {
	Kind      TagKind `json:"kind" yaml:"kind"`
	Label     string  `json:"label" yaml:"label"`
	Color     string  `json:"color,omitempty" yaml:"color,omitempty"`
	Prefix    string  `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	BgColor   string  `json:"bg_color,omitempty" yaml:"bg_color,omitempty"`
	TextColor string  `json:"text_color,omitempty" yaml:"text_color,omitempty"`
}

// SimpleTag builds a Simple tag
func SimpleTag(label, color string) Tag {
	return Tag{Kind: TagSimple, Label: label, Color: color}
}

// PrefixedTag builds a Prefixed tag
func PrefixedTag(label, prefix, bgColor, textColor string) Tag {
	return Tag{Kind: TagPrefixed, Label: label, Prefix: prefix, BgColor: bgColor, TextColor: textColor}
}

// IsPrefixed reports whether the tag renders a prefix badge
func (t Tag) IsPrefixed() bool {
	return t.Kind == TagPrefixed
}

// SectorRank is an entry of the top-sectors-by-recent-days list
type SectorRank struct {
	Sector string `json:"sector"`
	Emoji  string `json:"emoji"`
}

// UnmarshalJSON accepts the Korean-keyed source form as well as the API form
func (s *SectorRank) UnmarshalJSON(data []byte) error {
	var w struct {
		SrcSector string `json:"섹터"`
		SrcEmoji  string `json:"이모지"`
		Sector    string `json:"sector"`
		Emoji     string `json:"emoji"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.Sector, s.Emoji = w.SrcSector, w.SrcEmoji
	if s.Sector == "" {
		s.Sector, s.Emoji = w.Sector, w.Emoji
	}
	return nil
}

// VisitCount is the per-day visit counter value
type VisitCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}
