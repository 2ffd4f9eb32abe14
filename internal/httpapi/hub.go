package httpapi

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/srg/padctl/internal/groutine"
	"github.com/srg/padctl/internal/protocol"
	"github.com/srg/padctl/internal/ringchan"
)

const (
	defaultClientBuffer = 16
	defaultWriteTimeout = time.Second
)

// Hub fans pad states out to websocket clients. It is a pad.Subscriber:
// OnState only queues the state per client, a slow client loses its oldest
// queued states and never stalls the notification pump.
type Hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}

	buffer       int
	writeTimeout time.Duration
	logger       *logrus.Logger
}

type wsClient struct {
	conn   *websocket.Conn
	states *ringchan.RingChannel[protocol.DeviceState]
	once   sync.Once
}

func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.New()
	}
	return &Hub{
		clients:      make(map[*wsClient]struct{}),
		buffer:       defaultClientBuffer,
		writeTimeout: defaultWriteTimeout,
		logger:       logger,
	}
}

// AddClient registers conn and starts its writer. The client is removed
// when ctx ends, the peer goes away or a write fails.
func (h *Hub) AddClient(ctx context.Context, conn *websocket.Conn) {
	c := &wsClient{conn: conn, states: ringchan.New[protocol.DeviceState](h.buffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.WithField("remote", conn.RemoteAddr().String()).Debug("Websocket client connected")

	groutine.Go(ctx, "ws-client-writer", func(ctx context.Context) {
		h.writeLoop(ctx, c)
	})
	groutine.Go(ctx, "ws-client-reader", func(ctx context.Context) {
		// Inbound messages are ignored; a read error means the peer is gone.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.removeClient(c)
				return
			}
		}
	})
}

func (h *Hub) writeLoop(ctx context.Context, c *wsClient) {
	defer h.removeClient(c)
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-c.states.C():
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.conn.WriteJSON(st); err != nil {
				h.logger.WithError(err).Debug("Websocket write failed, dropping client")
				return
			}
		}
	}
}

func (h *Hub) removeClient(c *wsClient) {
	c.once.Do(func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()

		c.states.Close()
		_ = c.conn.Close()
		h.logger.Debug("Websocket client disconnected")
	})
}

// OnState queues st for every connected client.
func (h *Hub) OnState(st protocol.DeviceState) error {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.states.Send(st)
	}
	return nil
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.removeClient(c)
	}
}
