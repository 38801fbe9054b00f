package flow

import (
	"strings"

	"github.com/StockHamster/market-calendar/internal/sector"
	"github.com/StockHamster/market-calendar/pkg/models"
)

// Tooltip is the hover card shown under a mover label
type Tooltip struct {
	MoverID string  `json:"mover_id"`
	Title   string  `json:"title,omitempty"`
	Note    string  `json:"note,omitempty"`
	Left    float64 `json:"left"`
	Top     float64 `json:"top"`
}

// Text joins title and note on separate lines
func (t Tooltip) Text() string {
	switch {
	case t.Title == "":
		return t.Note
	case t.Note == "":
		return t.Title
	}
	return t.Title + "\n" + t.Note
}

// BuildTooltip returns the tooltip for a hovered mover, anchored to the
// bottom-left corner of its label box. It reports false when the mover has
// neither a real sector nor a note.
func BuildTooltip(m models.PlacedMover, reg *sector.Registry, c Canvas, tm TextMeasurer) (Tooltip, bool) {
	t := Tooltip{MoverID: m.ID, Note: strings.TrimSpace(m.Note)}
	if s := m.Sector; s != "" && s != sector.HeaderPlace && s != sector.None {
		emoji := "📂"
		if style, ok := reg.Lookup(s); ok {
			emoji = style.Emoji
		}
		t.Title = emoji + " " + s
	}
	if t.Title == "" && t.Note == "" {
		return Tooltip{}, false
	}
	box := LabelBox(m, c, tm)
	t.Left = box.Left
	t.Top = box.Top + box.Height
	return t, true
}
