package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/StockHamster/market-calendar/internal/flow"
	"github.com/StockHamster/market-calendar/internal/sector"
	"github.com/StockHamster/market-calendar/internal/session"
	"github.com/StockHamster/market-calendar/pkg/config"
	"github.com/StockHamster/market-calendar/pkg/logger"
	"github.com/StockHamster/market-calendar/pkg/models"
)

type stubLoader struct{}

func (stubLoader) LoadDay(ctx context.Context, date string) (*models.DayBundle, error) {
	return &models.DayBundle{
		Date:   date,
		Kospi:  []models.Mover{{Name: "삼성전자", HighRate: 5, HighTime: "10:00", Sector: "반도체", Size: 120}},
		Kosdaq: []models.Mover{{Name: "에코프로", HighRate: 10, HighTime: "13:00", Sector: "2차전지", Size: 60}},
	}, nil
}

type halfEm struct{}

func (halfEm) MeasureString(text string, size float64) float64 {
	return float64(len([]rune(text))) * size / 2
}

func TestParseMessage(t *testing.T) {
	tests := []struct {
		in   string
		want flow.Event
	}{
		{`{"type":"request_date","date":"20250630"}`, flow.RequestDate{Date: "20250630"}},
		{`{"type":"set_filter","market":"코스닥"}`, flow.SetFilter{Market: models.FilterKOSDAQ}},
		{`{"type":"pointer_down","x":10,"y":20}`, flow.PointerDown{X: 10, Y: 20}},
		{`{"type":"pointer_move","x":1,"y":2}`, flow.PointerMove{X: 1, Y: 2}},
		{`{"type":"pointer_up"}`, flow.PointerUp{}},
		{`{"type":"pointer_leave"}`, flow.PointerLeave{}},
		{`{"type":"hover_sector","sector":"반도체"}`, flow.HoverSector{Sector: "반도체"}},
		{`{"type":"resize","width":800,"height":1200}`, flow.Resize{Width: 800, Height: 1200}},
		{`{"type":"ping"}`, nil},
	}
	for _, tt := range tests {
		got, err := ParseMessage([]byte(tt.in))
		if err != nil {
			t.Errorf("%s: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s = %#v, want %#v", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{`{"type":"request_date"}`, `{"type":"set_filter","market":"nyse"}`, `{"type":"dance"}`, `nope`} {
		if _, err := ParseMessage([]byte(bad)); err == nil {
			t.Errorf("%s: expected error", bad)
		}
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) frameMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg frameMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	if msg.Type != "frame" {
		t.Fatalf("message = %s", data)
	}
	return msg
}

func TestWebSocketSession(t *testing.T) {
	log := logger.Discard()
	sessions := session.NewManager(stubLoader{}, sector.NewRegistry(), halfEm{}, nil, flow.DefaultCanvas, log)
	m := NewManager(sessions, &config.WebSocketConfig{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		MaxMessageSize:  4096,
		PingInterval:    time.Minute,
		PongTimeout:     time.Minute,
		WriteTimeout:    time.Second,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(m.HandleWebSocket))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"?date=20250630", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	initial := readFrame(t, conn)
	if initial.Session == "" {
		t.Fatal("missing session id")
	}
	loaded := readFrame(t, conn)
	if loaded.Frame.Date != "20250630" || len(loaded.Frame.Labels) != 2 {
		t.Fatalf("loaded frame date=%q labels=%d", loaded.Frame.Date, len(loaded.Frame.Labels))
	}

	if err := conn.WriteJSON(Message{Type: "set_filter", Market: "kospi"}); err != nil {
		t.Fatal(err)
	}
	filtered := readFrame(t, conn)
	if len(filtered.Frame.Labels) != 1 || filtered.Frame.Labels[0].Name != "삼성전자" {
		t.Fatalf("filtered labels = %+v", filtered.Frame.Labels)
	}

	m.HandleFlowEvent(&models.FlowEvent{Type: models.EventRefreshed, Date: "20250630"})
	refreshed := readFrame(t, conn)
	if refreshed.Frame.Seq <= loaded.Frame.Seq {
		t.Fatalf("refresh did not reload: seq %d -> %d", loaded.Frame.Seq, refreshed.Frame.Seq)
	}

	if m.GetConnectionCount() != 1 || sessions.Count() != 1 {
		t.Fatalf("connections=%d sessions=%d", m.GetConnectionCount(), sessions.Count())
	}
}
