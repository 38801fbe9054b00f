package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/StockHamster/market-calendar/internal/flow"
	"github.com/StockHamster/market-calendar/internal/session"
	"github.com/StockHamster/market-calendar/pkg/config"
	"github.com/StockHamster/market-calendar/pkg/models"
)

// Manager connects WebSocket clients to their chart sessions
type Manager struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex

	sessions *session.Manager
	cfg      *config.WebSocketConfig
	upgrader websocket.Upgrader
	logger   *logrus.Entry
}

// Client is one WebSocket connection bound to one session
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	session *session.Session
	manager *Manager

	mu     sync.Mutex
	closed bool
}

// NewManager creates a new WebSocket manager
func NewManager(sessions *session.Manager, cfg *config.WebSocketConfig, logger *logrus.Logger) *Manager {
	return &Manager{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		sessions:   sessions,
		cfg:        cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.WithField("component", "websocket"),
	}
}

// Run starts the manager's main loop
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(m.done)
			m.shutdown()
			return

		case client := <-m.register:
			m.mu.Lock()
			m.clients[client] = true
			m.mu.Unlock()

		case client := <-m.unregister:
			m.mu.Lock()
			_, ok := m.clients[client]
			delete(m.clients, client)
			m.mu.Unlock()
			if ok {
				m.sessions.Remove(client.session.ID)
				client.close()
			}
		}
	}
}

// GetConnectionCount returns the number of active connections
func (m *Manager) GetConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// HandleWebSocket upgrades the request and starts a chart session. An
// optional ?date= loads that date right away.
func (m *Manager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.WithError(err).Error("Failed to upgrade connection")
		return
	}

	client := &Client{
		conn:    conn,
		send:    make(chan []byte, 64),
		session: m.sessions.Create(),
		manager: m,
	}
	select {
	case m.register <- client:
	case <-m.done:
		m.sessions.Remove(client.session.ID)
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()

	client.push(client.session.Frame())
	if date := r.URL.Query().Get("date"); date != "" {
		go client.dispatch(flow.RequestDate{Date: date})
	}
}

// Refresh reloads every session showing date, after its data was republished
func (m *Manager) Refresh(date string) {
	m.mu.RLock()
	var targets []*Client
	for c := range m.clients {
		if c.session.Date() == date {
			targets = append(targets, c)
		}
	}
	m.mu.RUnlock()

	m.logger.WithFields(logrus.Fields{
		"date":    date,
		"clients": len(targets),
	}).Debug("Refreshing sessions")
	for _, c := range targets {
		go c.dispatch(flow.RequestDate{Date: date})
	}
}

// HandleFlowEvent reacts to bus events; refreshed days are reloaded
func (m *Manager) HandleFlowEvent(event *models.FlowEvent) {
	if event.Type == models.EventRefreshed && event.Date != "" {
		m.Refresh(event.Date)
	}
}

func (m *Manager) shutdown() {
	m.mu.Lock()
	for client := range m.clients {
		client.close()
	}
	m.clients = make(map[*Client]bool)
	m.mu.Unlock()
}

// Message is a client control message
type Message struct {
	Type   string  `json:"type"`
	Date   string  `json:"date,omitempty"`
	Market string  `json:"market,omitempty"`
	Sector string  `json:"sector,omitempty"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// ParseMessage converts a control message into a view event. A ping yields
// a nil event.
func ParseMessage(data []byte) (flow.Event, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	switch msg.Type {
	case "request_date":
		if msg.Date == "" {
			return nil, fmt.Errorf("request_date requires a date")
		}
		return flow.RequestDate{Date: msg.Date}, nil
	case "set_filter":
		market, err := models.ParseMarketFilter(msg.Market)
		if err != nil {
			return nil, err
		}
		return flow.SetFilter{Market: market}, nil
	case "pointer_down":
		return flow.PointerDown{X: msg.X, Y: msg.Y}, nil
	case "pointer_move":
		return flow.PointerMove{X: msg.X, Y: msg.Y}, nil
	case "pointer_up":
		return flow.PointerUp{}, nil
	case "pointer_leave":
		return flow.PointerLeave{}, nil
	case "hover_sector":
		return flow.HoverSector{Sector: msg.Sector}, nil
	case "resize":
		return flow.Resize{Width: msg.Width, Height: msg.Height}, nil
	case "ping":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown message type %q", msg.Type)
}

type frameMessage struct {
	Type    string     `json:"type"`
	Session string     `json:"session"`
	Frame   flow.Frame `json:"frame"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func (c *Client) enqueue(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		c.manager.logger.WithError(err).Error("Failed to marshal message")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.manager.logger.WithField("session", c.session.ID).Warn("Send buffer full, dropping message")
	}
}

func (c *Client) push(frame flow.Frame) {
	c.enqueue(frameMessage{Type: "frame", Session: c.session.ID, Frame: frame})
}

func (c *Client) fail(err error) {
	c.enqueue(errorMessage{Type: "error", Error: err.Error()})
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) dispatch(ev flow.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	frame, res, err := c.session.Dispatch(ctx, ev)
	if err != nil {
		c.fail(err)
		return
	}
	if res.Stale {
		return
	}
	if res.Changed {
		c.push(frame)
	}
}

// WritePump pumps messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.manager.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.cfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure) {
					c.manager.logger.WithError(err).Debug("Write error")
				}
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump reads control messages until the connection closes
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.manager.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.manager.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.manager.cfg.PongTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
				websocket.CloseNormalClosure) {
				c.manager.logger.WithError(err).Debug("WebSocket closed")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.manager.cfg.PongTimeout))

		ev, err := ParseMessage(message)
		if err != nil {
			c.fail(err)
			continue
		}
		if ev == nil {
			c.enqueue(map[string]string{"type": "pong"})
			continue
		}

		// loads run concurrently so a newer request can supersede them
		if _, ok := ev.(flow.RequestDate); ok {
			go c.dispatch(ev)
			continue
		}
		c.dispatch(ev)
	}
}
