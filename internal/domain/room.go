package domain

import (
	"github.com/google/uuid"
)

type RoomCategory string

const (
	RoomCategoryOffice  RoomCategory = "office"
	RoomCategoryStudio  RoomCategory = "studio"
	RoomCategoryMeeting RoomCategory = "meeting"
	RoomCategoryLounge  RoomCategory = "lounge"
	RoomCategoryQuiet   RoomCategory = "quiet"
	RoomCategoryGame    RoomCategory = "game"
)

// Valid reports whether c is one of the known categories.
func (c RoomCategory) Valid() bool {
	switch c {
	case RoomCategoryOffice, RoomCategoryStudio, RoomCategoryMeeting,
		RoomCategoryLounge, RoomCategoryQuiet, RoomCategoryGame:
		return true
	}
	return false
}

// Room is a catalog entry. Every organization gets its own instance of each room.
type Room struct {
	ID          string       `json:"id" yaml:"id"`
	DisplayName string       `json:"displayName" yaml:"display_name"`
	Category    RoomCategory `json:"category" yaml:"category"`
	Capacity    int          `json:"capacity" yaml:"capacity"`
}

// RoomKey identifies one organization's instance of a catalog room.
type RoomKey struct {
	OrganizationID uuid.UUID
	RoomID         string
}

// RoomSummary is a point-in-time view of a room and its occupants.
type RoomSummary struct {
	Room
	OccupantCount int         `json:"occupantCount"`
	Occupants     []uuid.UUID `json:"occupants"`
}

// IsFull reports whether a new occupant would exceed capacity.
func (s RoomSummary) IsFull() bool {
	return s.OccupantCount >= s.Capacity
}

// RoomTransition is the result of a join.
// Changed is false when the user already occupied the room.
type RoomTransition struct {
	Room              RoomSummary
	PreviousRoomID    string
	PreviousOccupants []uuid.UUID
	Changed           bool
}
