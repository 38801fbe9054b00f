package messaging

import (
	"testing"

	"github.com/StockHamster/market-calendar/pkg/models"
)

func TestFlowSubject(t *testing.T) {
	tests := []struct {
		event models.FlowEvent
		want  string
	}{
		{models.FlowEvent{Type: models.EventDayLoaded, Date: "20250630"}, "flow.loaded.20250630"},
		{models.FlowEvent{Type: models.EventMoverMoved, Date: "20250630"}, "flow.moved.20250630"},
		{models.FlowEvent{Type: models.EventVisit}, "flow.visit"},
	}
	for _, tt := range tests {
		if got := FlowSubject(&tt.event); got != tt.want {
			t.Errorf("FlowSubject(%+v) = %q, want %q", tt.event, got, tt.want)
		}
	}
}
