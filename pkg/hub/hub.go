package hub

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"live-chat-supervisor/pkg/metrics"
	"live-chat-supervisor/pkg/models"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	clientBuffer   = 8
	maxInboundSize = 4096
)

// Frame is what panels receive over the socket
type Frame struct {
	Type     string                 `json:"type"`
	Snapshot *models.StatusSnapshot `json:"snapshot,omitempty"`
	Alert    *models.AlertEvent     `json:"alert,omitempty"`
}

// Client is one connected supervisor panel
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan Frame
	done chan struct{}
	once sync.Once
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
	})
}

// Hub fans evaluation snapshots and alerts out to every connected panel
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan Frame
	clients    map[string]*Client
	upgrader   websocket.Upgrader
	logger     *logrus.Logger
	metrics    *metrics.Metrics
}

func NewHub(logger *logrus.Logger, metrics *metrics.Metrics) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Frame, 16),
		clients:    make(map[string]*Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Panels are injected into third-party chat pages
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Run owns the client set until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for id, client := range h.clients {
				client.close()
				delete(h.clients, id)
			}
			h.metrics.PanelConnections.Set(0)
			return

		case client := <-h.register:
			h.clients[client.ID] = client
			h.metrics.PanelConnections.Set(float64(len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				client.close()
				h.metrics.PanelConnections.Set(float64(len(h.clients)))
			}

		case frame := <-h.broadcast:
			for id, client := range h.clients {
				select {
				case client.send <- frame:
				default:
					// Slow panel; drop it rather than stall the evaluation loop
					client.close()
					delete(h.clients, id)
					h.logger.WithField("client_id", id).Warn("Dropped slow panel connection")
				}
			}
			h.metrics.PanelConnections.Set(float64(len(h.clients)))
		}
	}
}

// PublishSnapshot queues a snapshot for every panel without blocking
func (h *Hub) PublishSnapshot(snapshot models.StatusSnapshot) {
	h.publish(Frame{Type: "status", Snapshot: &snapshot})
}

// Alert forwards a keyword alert to every panel; it satisfies alert.Alerter
func (h *Hub) Alert(ctx context.Context, event models.AlertEvent) error {
	h.publish(Frame{Type: "alert", Alert: &event})
	return nil
}

func (h *Hub) publish(frame Frame) {
	select {
	case h.broadcast <- frame:
	default:
		h.logger.WithField("type", frame.Type).Debug("Panel broadcast queue full, frame dropped")
	}
}

// ServeWS upgrades the request and attaches a new panel
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to upgrade panel connection")
		return
	}

	client := &Client{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan Frame, clientBuffer),
		done: make(chan struct{}),
	}

	select {
	case h.register <- client:
	case <-r.Context().Done():
		conn.Close()
		return
	}

	h.logger.WithField("client_id", client.ID).Info("Panel connected")

	go h.writePump(client)
	go h.readPump(client)
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				h.logger.WithError(err).WithField("client_id", c.ID).Debug("Panel write failed")
				h.drop(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(c)
				return
			}
		}
	}
}

// readPump only services control frames; panels do not send data
func (h *Hub) readPump(c *Client) {
	defer h.drop(c)

	c.conn.SetReadLimit(maxInboundSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				h.logger.WithError(err).WithField("client_id", c.ID).Debug("Panel read failed")
			}
			return
		}
	}
}

func (h *Hub) drop(c *Client) {
	select {
	case h.unregister <- c:
	case <-c.done:
	}
}
