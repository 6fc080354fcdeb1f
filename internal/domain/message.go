package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageKind string

const (
	MessageKindText  MessageKind = "text"
	MessageKindImage MessageKind = "image"
	MessageKindFile  MessageKind = "file"
)

// ParseMessageKind defaults an empty kind to text.
func ParseMessageKind(s string) (MessageKind, error) {
	switch kind := MessageKind(s); kind {
	case "":
		return MessageKindText, nil
	case MessageKindText, MessageKindImage, MessageKindFile:
		return kind, nil
	default:
		return "", ErrInvalidMessage
	}
}

// ChatMessage is an ephemeral room-scoped chat event.
// IDs are UUIDv7 so they sort by send time.
type ChatMessage struct {
	ID            uuid.UUID   `json:"id"`
	RoomID        string      `json:"roomId"`
	SenderID      uuid.UUID   `json:"senderId"`
	SenderName    string      `json:"senderName"`
	Content       string      `json:"content"`
	Kind          MessageKind `json:"kind"`
	AttachmentURL string      `json:"attachmentUrl,omitempty"`
	SentAt        time.Time   `json:"sentAt"`
}
