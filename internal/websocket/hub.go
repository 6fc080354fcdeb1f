package websocket

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"presence-service/internal/metrics"
)

// Hub indexes live sockets by id. It is the router's Sender.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Client
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewHub(m *metrics.Metrics, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[uuid.UUID]*Client),
		metrics: m,
		logger:  logger,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if current, ok := h.clients[c.id]; ok && current == c {
		delete(h.clients, c.id)
	}
	h.mu.Unlock()
}

// Send queues payload without blocking. A client whose buffer is full is
// closed; its read loop then runs the normal disconnect path. Frames for a
// client that is already closing are dropped without being counted.
func (h *Hub) Send(socketID uuid.UUID, payload []byte) bool {
	h.mu.RLock()
	c, ok := h.clients[socketID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	err := c.enqueue(payload)
	if err == nil {
		return true
	}
	if errors.Is(err, errClientClosed) {
		return false
	}

	h.metrics.RecordDroppedFrame()
	h.logger.Warn("Closing slow client",
		zap.String("socket_id", socketID.String()),
		zap.String("user_id", c.userID.String()))
	c.close()
	return false
}

// Count returns the number of registered sockets.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll closes every socket. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.shutdown()
	}
	h.logger.Info("Closed all websocket clients", zap.Int("count", len(clients)))
}
