package message

import (
	"presence-service/internal/domain"
)

// DefaultCapacity is how many messages a room keeps.
const DefaultCapacity = 100

// RingBuffer is a fixed-size log that overwrites its oldest entry when full.
// It is not safe for concurrent use; History guards it.
type RingBuffer struct {
	entries []domain.ChatMessage
	start   int
	size    int
}

func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RingBuffer{entries: make([]domain.ChatMessage, capacity)}
}

// Append stores msg, evicting the oldest message if the buffer is full.
func (b *RingBuffer) Append(msg domain.ChatMessage) {
	capacity := len(b.entries)
	if b.size < capacity {
		b.entries[(b.start+b.size)%capacity] = msg
		b.size++
		return
	}
	b.entries[b.start] = msg
	b.start = (b.start + 1) % capacity
}

// Recent returns up to limit of the newest messages, oldest first.
// limit <= 0 means everything held.
func (b *RingBuffer) Recent(limit int) []domain.ChatMessage {
	n := b.size
	if limit > 0 && limit < n {
		n = limit
	}

	capacity := len(b.entries)
	skip := b.size - n
	out := make([]domain.ChatMessage, n)
	for i := 0; i < n; i++ {
		out[i] = b.entries[(b.start+skip+i)%capacity]
	}
	return out
}

func (b *RingBuffer) Len() int { return b.size }

func (b *RingBuffer) Cap() int { return len(b.entries) }
