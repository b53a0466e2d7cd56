package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"sangha-backend/internal/presence"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 32
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub owns the live presence connections. Each connection gets a handle, a
// reader feeding the presence protocol and a writer draining its send queue.
type Hub struct {
	protocol    *presence.Protocol
	idleTimeout time.Duration

	mu      sync.RWMutex
	clients map[uuid.UUID]*client
}

type client struct {
	handle uuid.UUID
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func NewHub(protocol *presence.Protocol, idleTimeout time.Duration) *Hub {
	return &Hub{
		protocol:    protocol,
		idleTimeout: idleTimeout,
		clients:     make(map[uuid.UUID]*client),
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{
		handle: uuid.New(),
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
	h.registerClient(c)

	go h.writeLoop(c)
	go h.readLoop(c)
}

// Shutdown closes every live connection. Their read loops then run the
// ordinary disconnect path.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		c.close()
	}
}

func (h *Hub) readLoop(c *client) {
	defer h.unregisterClient(c)

	c.conn.SetReadLimit(maxMessageSize)
	for {
		// Idle connections are dropped like any other disconnect.
		c.conn.SetReadDeadline(time.Now().Add(h.idleTimeout))
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithError(err).WithField("handle", c.handle).Debug("websocket read failed")
			}
			return
		}

		h.dispatch(h.protocol.HandleMessage(context.Background(), c.handle, data))
	}
}

func (h *Hub) writeLoop(c *client) {
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logrus.WithError(err).WithField("handle", c.handle).Debug("websocket write failed")
				c.close()
				return
			}
		}
	}
}

func (h *Hub) registerClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.handle] = c
	logrus.WithFields(logrus.Fields{"handle": c.handle, "total": len(h.clients)}).Info("websocket connected")
}

func (h *Hub) unregisterClient(c *client) {
	h.mu.Lock()
	delete(h.clients, c.handle)
	h.mu.Unlock()

	c.close()
	h.dispatch(h.protocol.HandleDisconnect(c.handle))

	logrus.WithField("handle", c.handle).Info("websocket disconnected")
}

func (h *Hub) dispatch(deliveries []presence.Delivery) {
	for _, d := range deliveries {
		payload, err := json.Marshal(d.Message)
		if err != nil {
			logrus.WithError(err).Error("failed to encode presence message")
			continue
		}

		h.mu.RLock()
		c, ok := h.clients[d.Handle]
		h.mu.RUnlock()
		if !ok {
			continue
		}

		select {
		case c.send <- payload:
		case <-c.done:
		default:
			logrus.WithFields(logrus.Fields{"handle": d.Handle, "event": d.Message.Event}).Warn("websocket send buffer full, dropping message")
		}
	}
}

// Clients is the number of open websocket connections, registered for presence or not.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
