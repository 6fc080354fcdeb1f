package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"presence-service/internal/domain"
)

// Inbound event types.
const (
	EventAuthenticate = "authenticate"
	EventChangeRoom   = "change-room"
	EventSendMessage  = "send-message"
	EventUpdateStatus = "update-status"
	EventTyping       = "typing"
	EventCallSignal   = "call-signal"
	EventCallJoin     = "call-join"
	EventPing         = "ping"
)

// Outbound event types.
const (
	EventAuthenticated   = "authenticated"
	EventAuthError       = "auth_error"
	EventOfficeState     = "office-state"
	EventUserJoined      = "user-joined"
	EventUserOffline     = "user-offline"
	EventUserLeft        = "user-left"
	EventUserEntered     = "user-entered"
	EventRoomChanged     = "room-changed"
	EventNewMessage      = "new-message"
	EventPresenceUpdated = "presence-updated"
	EventTypingIndicator = "typing-indicator"
	EventCallToken       = "call-token"
	EventNotification    = "notification"
	EventError           = "error"
	EventPong            = "pong"
)

// InboundEvent is a decoded client frame. Only the fields of its type are set.
type InboundEvent struct {
	Type          string          `json:"type"`
	Token         string          `json:"token,omitempty"`
	WorkspaceID   string          `json:"workspaceId,omitempty"`
	RoomID        string          `json:"roomId,omitempty"`
	Content       string          `json:"content,omitempty"`
	Kind          string          `json:"kind,omitempty"`
	AttachmentKey string          `json:"attachmentKey,omitempty"`
	AttachmentURL string          `json:"attachmentUrl,omitempty"`
	Status        string          `json:"status,omitempty"`
	Activity      string          `json:"activity,omitempty"`
	IsTyping      bool            `json:"isTyping,omitempty"`
	TargetUserID  string          `json:"targetUserId,omitempty"`
	Signal        json.RawMessage `json:"signal,omitempty"`
}

// DecodeInbound parses one client frame.
func DecodeInbound(raw []byte) (*InboundEvent, error) {
	var ev InboundEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("%w: missing type", domain.ErrInvalidEvent)
	}
	return &ev, nil
}

// OutboundEvent is the envelope of every server frame.
type OutboundEvent struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Encode builds a server frame.
func Encode(eventType string, data interface{}) ([]byte, error) {
	return json.Marshal(OutboundEvent{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

type AuthenticatedData struct {
	UserID         uuid.UUID `json:"userId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	DisplayName    string    `json:"displayName"`
}

type AuthErrorData struct {
	Reason string `json:"reason"`
}

type OfficeStateData struct {
	Self           domain.PresenceRecord   `json:"self"`
	CurrentRoomID  string                  `json:"currentRoomId,omitempty"`
	Rooms          []domain.RoomSummary    `json:"rooms"`
	Members        []domain.PresenceRecord `json:"members"`
	RecentMessages []domain.ChatMessage    `json:"recentMessages"`
}

type UserJoinedData struct {
	User domain.PresenceRecord `json:"user"`
}

type UserOfflineData struct {
	UserID     uuid.UUID `json:"userId"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

type UserLeftData struct {
	UserID uuid.UUID `json:"userId"`
	RoomID string    `json:"roomId"`
	Reason string    `json:"reason"`
}

type UserEnteredData struct {
	User   domain.PresenceRecord `json:"user"`
	RoomID string                `json:"roomId"`
}

type RoomChangedData struct {
	RoomID         string                  `json:"roomId"`
	PreviousRoomID string                  `json:"previousRoomId,omitempty"`
	Room           domain.RoomSummary      `json:"room"`
	Members        []domain.PresenceRecord `json:"members"`
	RecentMessages []domain.ChatMessage    `json:"recentMessages"`
}

type PresenceUpdatedData struct {
	UserID     uuid.UUID             `json:"userId"`
	Status     domain.PresenceStatus `json:"status"`
	Activity   string                `json:"activity,omitempty"`
	LastSeenAt time.Time             `json:"lastSeenAt"`
}

type TypingIndicatorData struct {
	UserID   uuid.UUID `json:"userId"`
	RoomID   string    `json:"roomId"`
	IsTyping bool      `json:"isTyping"`
}

type CallSignalData struct {
	FromUserID uuid.UUID       `json:"fromUserId"`
	RoomID     string          `json:"roomId"`
	Signal     json.RawMessage `json:"signal"`
}

type CallTokenData struct {
	Token string `json:"token"`
	URL   string `json:"url,omitempty"`
	Room  string `json:"room"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}
