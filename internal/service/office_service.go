package service

import (
	"time"

	"github.com/google/uuid"

	"presence-service/internal/domain"
	"presence-service/internal/presence"
	"presence-service/internal/room"
)

// RoomView is a room with the presence records of its occupants.
type RoomView struct {
	domain.RoomSummary
	Members []domain.PresenceRecord `json:"members"`
}

// OfficeView is the virtual office of one organization.
type OfficeView struct {
	OrganizationID uuid.UUID               `json:"organizationId"`
	Rooms          []RoomView              `json:"rooms"`
	OnlineUsers    []domain.PresenceRecord `json:"onlineUsers"`
	OnlineCount    int                     `json:"onlineCount"`
}

// UserStatus answers a last-seen query.
type UserStatus struct {
	UserID        uuid.UUID             `json:"userId"`
	Online        bool                  `json:"online"`
	Status        domain.PresenceStatus `json:"status"`
	Activity      string                `json:"activity,omitempty"`
	CurrentRoomID string                `json:"currentRoomId,omitempty"`
	LastSeenAt    time.Time             `json:"lastSeenAt"`
}

// OfficeService answers read-only questions about live presence.
// It never mutates the store or the registry.
type OfficeService struct {
	presence *presence.Store
	rooms    *room.Registry
}

func NewOfficeService(store *presence.Store, rooms *room.Registry) *OfficeService {
	return &OfficeService{presence: store, rooms: rooms}
}

func (s *OfficeService) Office(organizationID uuid.UUID) OfficeView {
	summaries := s.rooms.ListRooms(organizationID)
	view := OfficeView{
		OrganizationID: organizationID,
		Rooms:          make([]RoomView, 0, len(summaries)),
		OnlineUsers:    make([]domain.PresenceRecord, 0),
	}
	for _, summary := range summaries {
		view.Rooms = append(view.Rooms, RoomView{
			RoomSummary: summary,
			Members:     s.presence.Records(organizationID, summary.Occupants),
		})
	}
	for _, record := range s.presence.Snapshot(organizationID) {
		if record.IsOnline() {
			view.OnlineUsers = append(view.OnlineUsers, record)
		}
	}
	view.OnlineCount = len(view.OnlineUsers)
	return view
}

func (s *OfficeService) Rooms(organizationID uuid.UUID) []domain.RoomSummary {
	return s.rooms.ListRooms(organizationID)
}

// Members includes recently disconnected users still within retention.
func (s *OfficeService) Members(organizationID uuid.UUID) []domain.PresenceRecord {
	return s.presence.Snapshot(organizationID)
}

func (s *OfficeService) OnlineUserIDs(organizationID uuid.UUID) []uuid.UUID {
	return s.presence.OnlineUserIDs(organizationID)
}

// Status returns one user's presence. Users of another organization are
// reported as not found.
func (s *OfficeService) Status(organizationID, userID uuid.UUID) (UserStatus, error) {
	record, ok := s.presence.Get(userID)
	if !ok || record.OrganizationID != organizationID {
		return UserStatus{}, domain.ErrUserNotFound
	}
	return UserStatus{
		UserID:        record.UserID,
		Online:        record.IsOnline(),
		Status:        record.Status,
		Activity:      record.Activity,
		CurrentRoomID: record.CurrentRoomID,
		LastSeenAt:    record.LastSeenAt,
	}, nil
}
