package domain

import (
	"time"

	"github.com/google/uuid"
)

// PresenceStatus is a user's live availability.
type PresenceStatus string

const (
	PresenceStatusOnline  PresenceStatus = "online"
	PresenceStatusBusy    PresenceStatus = "busy"
	PresenceStatusMeeting PresenceStatus = "meeting"
	PresenceStatusAway    PresenceStatus = "away"
	PresenceStatusOffline PresenceStatus = "offline"
)

// ParsePresenceStatus validates a status sent by a client.
// offline is reserved for the last socket disconnecting and cannot be chosen.
func ParsePresenceStatus(s string) (PresenceStatus, error) {
	switch status := PresenceStatus(s); status {
	case PresenceStatusOnline, PresenceStatusBusy, PresenceStatusMeeting, PresenceStatusAway:
		return status, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Identity is what the identity resolver knows about an authenticated caller.
type Identity struct {
	UserID          uuid.UUID `json:"userId"`
	OrganizationID  uuid.UUID `json:"organizationId"`
	DisplayName     string    `json:"displayName"`
	AvatarRef       string    `json:"avatarRef,omitempty"`
	RoleLabel       string    `json:"roleLabel,omitempty"`
	DepartmentLabel string    `json:"departmentLabel,omitempty"`
	Roles           []string  `json:"roles,omitempty"`
}

// PresenceRecord is a copy of one user's live presence.
// CurrentRoomID is empty while the user is in no room.
type PresenceRecord struct {
	UserID          uuid.UUID      `json:"userId"`
	OrganizationID  uuid.UUID      `json:"organizationId"`
	DisplayName     string         `json:"displayName"`
	AvatarRef       string         `json:"avatarRef,omitempty"`
	RoleLabel       string         `json:"roleLabel,omitempty"`
	DepartmentLabel string         `json:"departmentLabel,omitempty"`
	Status          PresenceStatus `json:"status"`
	Activity        string         `json:"activity,omitempty"`
	CurrentRoomID   string         `json:"currentRoomId,omitempty"`
	LastSeenAt      time.Time      `json:"lastSeenAt"`
	ActiveSocketIDs []uuid.UUID    `json:"-"`
}

// IsOnline reports whether the user has at least one live socket.
func (r PresenceRecord) IsOnline() bool {
	return r.Status != PresenceStatusOffline
}
