package models

import "time"

// Data source names used in DayBundle.Failed and logs
const (
	SourceKOSPI  = "kospi"
	SourceKOSDAQ = "kosdaq"
	SourceVolume = "volume"
)

// DayBundle is everything fetched for one trading date
type DayBundle struct {
	Date     string            `json:"date"` // YYYYMMDD
	Kospi    []Mover           `json:"kospi"`
	Kosdaq   []Mover           `json:"kosdaq"`
	Volume   *VolumeAnnotation `json:"volume"`
	Failed   []string          `json:"failed,omitempty"`
	LoadedAt time.Time         `json:"loaded_at"`
}

// Empty reports whether neither mover list has entries
func (b *DayBundle) Empty() bool {
	return b == nil || (len(b.Kospi) == 0 && len(b.Kosdaq) == 0)
}

// FlowEventType names the events published on the message bus
type FlowEventType string

const (
	EventDayLoaded  FlowEventType = "loaded"
	EventMoverMoved FlowEventType = "moved"
	EventVisit      FlowEventType = "visit"
	EventRefreshed  FlowEventType = "refreshed"
)

// FlowEvent is published on NATS when something observable happens
type FlowEvent struct {
	Type    FlowEventType `json:"type"`
	Date    string        `json:"date,omitempty"`
	Market  MarketFilter  `json:"market,omitempty"`
	MoverID string        `json:"mover_id,omitempty"`
	Movers  int           `json:"movers,omitempty"`
	Count   int64         `json:"count,omitempty"`
	At      time.Time     `json:"at"`
}
