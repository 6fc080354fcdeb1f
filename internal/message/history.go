package message

import (
	"sync"

	"presence-service/internal/domain"
)

// History holds one ring buffer per organization room.
// Buffers are created on first append and live until the process exits.
type History struct {
	mu       sync.RWMutex
	capacity int
	buffers  map[domain.RoomKey]*RingBuffer
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{
		capacity: capacity,
		buffers:  make(map[domain.RoomKey]*RingBuffer),
	}
}

func (h *History) Capacity() int { return h.capacity }

func (h *History) Append(key domain.RoomKey, msg domain.ChatMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.buffers[key]
	if !ok {
		b = NewRingBuffer(h.capacity)
		h.buffers[key] = b
	}
	b.Append(msg)
}

// Recent returns the newest messages of a room in chronological order.
func (h *History) Recent(key domain.RoomKey, limit int) []domain.ChatMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()

	b, ok := h.buffers[key]
	if !ok {
		return []domain.ChatMessage{}
	}
	return b.Recent(limit)
}
