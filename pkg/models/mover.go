package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Market identifies the exchange a mover list was published for
type Market string

const (
	MarketKOSPI  Market = "KOSPI"
	MarketKOSDAQ Market = "KOSDAQ"
)

// MarketFilter selects which fetched lists feed the combined mover list
type MarketFilter string

const (
	FilterAll    MarketFilter = "all"
	FilterKOSPI  MarketFilter = "kospi"
	FilterKOSDAQ MarketFilter = "kosdaq"
)

// ParseMarketFilter accepts the API spelling as well as the Korean button labels
func ParseMarketFilter(s string) (MarketFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "전체":
		return FilterAll, nil
	case "kospi", "코스피":
		return FilterKOSPI, nil
	case "kosdaq", "코스닥":
		return FilterKOSDAQ, nil
	}
	return "", fmt.Errorf("unknown market filter %q", s)
}

// Includes reports whether movers of the given market pass the filter
func (f MarketFilter) Includes(m Market) bool {
	switch f {
	case FilterKOSPI:
		return m == MarketKOSPI
	case FilterKOSDAQ:
		return m == MarketKOSDAQ
	default:
		return true
	}
}

// Mover is one traded stock plotted on the flow chart for a given day
type Mover struct {
	ID       string  `json:"id"`
	Market   Market  `json:"market"`
	Name     string  `json:"name"`
	HighRate float64 `json:"high_rate"` // percent change at the daily high
	HighTime string  `json:"high_time"` // HH:MM, may be empty
	Sector   string  `json:"sector,omitempty"`
	Size     float64 `json:"size"`
	Note     string  `json:"note,omitempty"`
}

// wireMover accepts the Korean-keyed records of the published JSON files as
// well as the English keys this service emits (cached bundles).
type wireMover struct {
	SrcName     string    `json:"종목명"`
	SrcHighRate FlexFloat `json:"고가등락률"`
	SrcHighTime string    `json:"고가발생시간"`
	SrcSector   string    `json:"섹터"`
	SrcSize     FlexFloat `json:"크기"`
	SrcNote     string    `json:"메모"`

	ID       string    `json:"id"`
	Market   Market    `json:"market"`
	Name     string    `json:"name"`
	HighRate FlexFloat `json:"high_rate"`
	HighTime string    `json:"high_time"`
	Sector   string    `json:"sector"`
	Size     FlexFloat `json:"size"`
	Note     string    `json:"note"`
}

// UnmarshalJSON decodes either record shape
func (m *Mover) UnmarshalJSON(data []byte) error {
	var w wireMover
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.SrcName == "" && w.Name != "" {
		*m = Mover{
			ID:       w.ID,
			Market:   w.Market,
			Name:     w.Name,
			HighRate: float64(w.HighRate),
			HighTime: strings.TrimSpace(w.HighTime),
			Sector:   strings.TrimSpace(w.Sector),
			Size:     float64(w.Size),
			Note:     w.Note,
		}
		return nil
	}
	*m = Mover{
		Name:     w.SrcName,
		HighRate: float64(w.SrcHighRate),
		HighTime: strings.TrimSpace(w.SrcHighTime),
		Sector:   strings.TrimSpace(w.SrcSector),
		Size:     float64(w.SrcSize),
		Note:     w.SrcNote,
	}
	return nil
}

// FlexFloat accepts both JSON numbers and numeric strings ("12.5", "12.5%")
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", s, err)
		}
		*f = FlexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

// Position is a label location in percent of canvas width/height
type Position struct {
	XRatio float64 `json:"x_ratio"`
	YRatio float64 `json:"y_ratio"`
}

// PlacedMover is a mover together with its current ratio position
type PlacedMover struct {
	Mover
	Position
	Dragged bool `json:"dragged,omitempty"`
}

// UnmarshalJSON restores the mover and its position (the promoted
// Mover.UnmarshalJSON alone drops the ratio fields)
func (p *PlacedMover) UnmarshalJSON(data []byte) error {
	if err := p.Mover.UnmarshalJSON(data); err != nil {
		return err
	}
	var rest struct {
		Position
		Dragged bool `json:"dragged"`
	}
	if err := json.Unmarshal(data, &rest); err != nil {
		return err
	}
	p.Position = rest.Position
	p.Dragged = rest.Dragged
	return nil
}
