package room

import (
	"fmt"

	"presence-service/internal/domain"
)

// DefaultRooms is the pre-provisioned virtual office.
var DefaultRooms = []domain.Room{
	{ID: "main-office", DisplayName: "Main Office", Category: domain.RoomCategoryOffice, Capacity: 50},
	{ID: "design-studio", DisplayName: "Design Studio", Category: domain.RoomCategoryStudio, Capacity: 20},
	{ID: "meeting-room-1", DisplayName: "Meeting Room 1", Category: domain.RoomCategoryMeeting, Capacity: 10},
	{ID: "lounge", DisplayName: "Lounge", Category: domain.RoomCategoryLounge, Capacity: 30},
	{ID: "quiet-zone", DisplayName: "Quiet Zone", Category: domain.RoomCategoryQuiet, Capacity: 15},
	{ID: "game-room", DisplayName: "Game Room", Category: domain.RoomCategoryGame, Capacity: 12},
}

// Catalog is the fixed, ordered set of rooms every organization gets.
type Catalog struct {
	rooms []domain.Room
	index map[string]int
}

// NewCatalog validates rooms and keeps their order for listings.
func NewCatalog(rooms []domain.Room) (*Catalog, error) {
	if len(rooms) == 0 {
		return nil, fmt.Errorf("room catalog is empty")
	}

	c := &Catalog{
		rooms: make([]domain.Room, 0, len(rooms)),
		index: make(map[string]int, len(rooms)),
	}
	for _, r := range rooms {
		if r.ID == "" {
			return nil, fmt.Errorf("room id is required")
		}
		if _, dup := c.index[r.ID]; dup {
			return nil, fmt.Errorf("duplicate room id %q", r.ID)
		}
		if r.Capacity <= 0 {
			return nil, fmt.Errorf("room %q: capacity must be positive", r.ID)
		}
		if !r.Category.Valid() {
			return nil, fmt.Errorf("room %q: unknown category %q", r.ID, r.Category)
		}
		if r.DisplayName == "" {
			r.DisplayName = r.ID
		}
		c.index[r.ID] = len(c.rooms)
		c.rooms = append(c.rooms, r)
	}
	return c, nil
}

// DefaultCatalog returns the catalog built from DefaultRooms.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultRooms)
	if err != nil {
		panic(err)
	}
	return c
}

// Get looks up a room by id.
func (c *Catalog) Get(id string) (domain.Room, bool) {
	i, ok := c.index[id]
	if !ok {
		return domain.Room{}, false
	}
	return c.rooms[i], true
}

// Rooms returns the catalog in its configured order.
func (c *Catalog) Rooms() []domain.Room {
	rooms := make([]domain.Room, len(c.rooms))
	copy(rooms, c.rooms)
	return rooms
}
