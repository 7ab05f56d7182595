package realtime

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/charlesng35/taskhub/internal/push"
	"github.com/charlesng35/taskhub/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10

	defaultBufferSize = 64
)

// Events written to connected devices.
const (
	EventNotification = "notification"
	EventPong         = "pong"
)

// Message represents a JSON payload delivered to a connected device.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type controlMessage struct {
	Action string `json:"action"`
}

// Hub keeps one live websocket per registered device token and delivers push
// payloads over it. It satisfies push.Provider.
type Hub struct {
	mu       sync.RWMutex
	devices  map[string]*connection
	upgrader websocket.Upgrader
	log      *zap.Logger
}

var _ push.Provider = (*Hub)(nil)

// NewHub constructs a realtime hub.
func NewHub() *Hub {
	return &Hub{
		devices: make(map[string]*connection),
		log:     logger.WithModule("realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Allow same-origin requests and explicit localhost development.
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originHost := hostWithoutPort(origin)
				requestHost := hostWithoutPort(r.Host)
				return originHost == requestHost || isLoopback(originHost)
			},
		},
	}
}

// Serve upgrades the HTTP connection and binds it to the device token until the socket closes.
// A newer connection for the same token replaces the older one.
func (h *Hub) Serve(userID, token string, w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	client := newConnection(h, conn, userID, token)
	h.register(client)

	go client.writeLoop()
	client.readLoop()
}

// Connected reports whether the device token currently has a live socket.
func (h *Hub) Connected(token string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.devices[token]
	return ok
}

// SendBatch queues the payload on every connected token. Tokens without a
// socket fail with push.ErrDeviceOffline; a full send buffer drops the client.
func (h *Hub) SendBatch(ctx context.Context, tokens []string, payload push.Payload) ([]push.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	message := Message{Event: EventNotification, Data: payload}
	results := make([]push.Result, len(tokens))

	h.mu.RLock()
	defer h.mu.RUnlock()

	for i, token := range tokens {
		results[i] = push.Result{Token: token}
		client, ok := h.devices[token]
		if !ok {
			results[i].Err = push.ErrDeviceOffline
			continue
		}
		if !h.enqueue(client, message) {
			results[i].Err = push.ErrDeviceOffline
		}
	}
	return results, nil
}

func (h *Hub) register(client *connection) {
	h.mu.Lock()
	previous := h.devices[client.token]
	h.devices[client.token] = client
	h.mu.Unlock()

	if previous != nil {
		previous.close()
	}
}

func (h *Hub) unregister(client *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.devices[client.token]; ok && current == client {
		delete(h.devices, client.token)
	}
}

func (h *Hub) enqueue(client *connection, message Message) bool {
	select {
	case <-client.done:
		return false
	default:
	}

	select {
	case client.send <- message:
		return true
	default:
		h.log.Warn("dropping backpressure client", zap.String("user_id", client.userID))
		go client.close()
		return false
	}
}

type connection struct {
	hub    *Hub
	socket *websocket.Conn
	userID string
	token  string
	send   chan Message
	done   chan struct{}
	once   sync.Once
}

func newConnection(hub *Hub, conn *websocket.Conn, userID, token string) *connection {
	return &connection{
		hub:    hub,
		socket: conn,
		userID: userID,
		token:  token,
		send:   make(chan Message, defaultBufferSize),
		done:   make(chan struct{}),
	}
}

func (c *connection) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("unexpected close", zap.String("user_id", c.userID), zap.Error(err))
			}
			break
		}

		if len(payload) == 0 {
			continue
		}

		var ctrl controlMessage
		if err := json.Unmarshal(payload, &ctrl); err != nil {
			continue
		}

		if strings.EqualFold(strings.TrimSpace(ctrl.Action), "ping") {
			select {
			case c.send <- Message{Event: EventPong}:
			case <-c.done:
				return
			}
		}
	}
}

func (c *connection) writeLoop() {
	defer c.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteJSON(message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) close() {
	c.once.Do(func() {
		c.hub.unregister(c)
		close(c.done)
		_ = c.socket.Close()
	})
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		parsed, err := http.NewRequest(http.MethodGet, host, nil)
		if err == nil {
			return hostWithoutPort(parsed.URL.Host)
		}
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	if ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
