package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Типы событий push канала
const (
	EventToast   = "toast"
	EventHaptic  = "haptic"
	EventTrade   = "trade"
	EventPayment = "payment"
	EventMode    = "mode"
)

const (
	pingPeriod = 15 * time.Second
	writeWait  = 5 * time.Second
	sendBuffer = 32
)

// Event - сообщение для Mini App
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type Toast struct {
	Level   string `json:"level"` // success, error, info
	Message string `json:"message"`
}

type Haptic struct {
	Kind  string `json:"kind"` // impact, notification
	Style string `json:"style"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub рассылает события всем подключенным окнам Mini App.
// Реализует notify.Notifier и notify.Haptics.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Mini App открывается из Telegram с другого origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP подключает клиента и держит соединение до его закрытия
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", slog.Any("error", err))
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("🔌 WebSocket client connected", slog.String("remote", r.RemoteAddr))

	go h.writeMessages(c)
	h.readMessages(c)
}

// readMessages читает до ошибки, входящие сообщения не используются
func (h *Hub) readMessages(c *client) {
	defer h.remove(c)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("WebSocket read error", slog.Any("error", err))
			}

			return
		}
	}
}

func (h *Hub) writeMessages(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			_ = c.conn.Close()

			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("WebSocket write error", slog.Any("error", err))
				h.remove(c)
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				h.logger.Debug("WebSocket ping error", slog.Any("error", err))
				h.remove(c)
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	c.close()

	if ok {
		h.logger.Info("WebSocket client disconnected")
	}
}

// Broadcast отправляет событие всем клиентам. Клиент с переполненным буфером отключается.
func (h *Hub) Broadcast(typ string, payload any) {
	msg, err := json.Marshal(Event{Type: typ, Payload: payload})
	if err != nil {
		h.logger.Error("Failed to marshal event", slog.String("type", typ), slog.Any("error", err))
		return
	}

	h.mu.Lock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		h.logger.Warn("⚠️  Slow WebSocket client dropped")
		h.remove(c)
	}
}

// Clients возвращает число подключенных клиентов
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

// Close отключает всех клиентов
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
}

func (h *Hub) Success(_ context.Context, msg string) {
	h.Broadcast(EventToast, Toast{Level: "success", Message: msg})
}

func (h *Hub) Error(_ context.Context, msg string) {
	h.Broadcast(EventToast, Toast{Level: "error", Message: msg})
}

func (h *Hub) Info(_ context.Context, msg string) {
	h.Broadcast(EventToast, Toast{Level: "info", Message: msg})
}

func (h *Hub) Impact(_ context.Context, style string) {
	h.Broadcast(EventHaptic, Haptic{Kind: "impact", Style: style})
}

func (h *Hub) Notify(_ context.Context, kind string) {
	h.Broadcast(EventHaptic, Haptic{Kind: "notification", Style: kind})
}
