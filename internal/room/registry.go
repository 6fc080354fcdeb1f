package room

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"presence-service/internal/domain"
)

// Registry tracks who occupies which room.
// A single lock covers every room so a transition removes the user from the
// old room and adds them to the new one in one step.
type Registry struct {
	catalog *Catalog

	mu        sync.Mutex
	occupants map[domain.RoomKey]map[uuid.UUID]struct{}
	// userID -> room. Users belong to one organization so the key is unique.
	membership map[uuid.UUID]domain.RoomKey
}

func NewRegistry(catalog *Catalog) *Registry {
	return &Registry{
		catalog:    catalog,
		occupants:  make(map[domain.RoomKey]map[uuid.UUID]struct{}),
		membership: make(map[uuid.UUID]domain.RoomKey),
	}
}

// Catalog returns the room catalog the registry serves.
func (r *Registry) Catalog() *Catalog {
	return r.catalog
}

// Join moves the user into roomID of their organization.
// Joining the room the user already occupies changes nothing and reports
// Changed=false. A full room returns ErrRoomFull and leaves every occupant set
// untouched.
func (r *Registry) Join(orgID, userID uuid.UUID, roomID string) (domain.RoomTransition, error) {
	room, ok := r.catalog.Get(roomID)
	if !ok {
		return domain.RoomTransition{}, domain.ErrRoomNotFound
	}
	target := domain.RoomKey{OrganizationID: orgID, RoomID: roomID}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, inRoom := r.membership[userID]
	if inRoom && current == target {
		return domain.RoomTransition{Room: r.summaryLocked(room, target)}, nil
	}

	if len(r.occupants[target]) >= room.Capacity {
		return domain.RoomTransition{}, domain.ErrRoomFull
	}

	transition := domain.RoomTransition{Changed: true}
	if inRoom {
		r.removeLocked(current, userID)
		transition.PreviousRoomID = current.RoomID
		transition.PreviousOccupants = r.occupantIDsLocked(current)
	}

	set, ok := r.occupants[target]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		r.occupants[target] = set
	}
	set[userID] = struct{}{}
	r.membership[userID] = target

	transition.Room = r.summaryLocked(room, target)
	return transition, nil
}

// LeaveAll removes the user from whatever room they occupy.
// It returns the vacated room and its remaining occupants; ok is false if the
// user was in no room.
func (r *Registry) LeaveAll(userID uuid.UUID) (previous domain.RoomKey, remaining []uuid.UUID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, inRoom := r.membership[userID]
	if !inRoom {
		return domain.RoomKey{}, nil, false
	}

	r.removeLocked(current, userID)
	return current, r.occupantIDsLocked(current), true
}

// CurrentRoom returns the room the user occupies, if any.
func (r *Registry) CurrentRoom(userID uuid.UUID) (domain.RoomKey, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.membership[userID]
	return key, ok
}

// IsMember checks live membership, never a cached view.
func (r *Registry) IsMember(orgID uuid.UUID, roomID string, userID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.occupants[domain.RoomKey{OrganizationID: orgID, RoomID: roomID}][userID]
	return ok
}

// Occupants lists the users in one room.
func (r *Registry) Occupants(orgID uuid.UUID, roomID string) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.occupantIDsLocked(domain.RoomKey{OrganizationID: orgID, RoomID: roomID})
}

// Get returns a summary of one room of the organization.
func (r *Registry) Get(orgID uuid.UUID, roomID string) (domain.RoomSummary, error) {
	room, ok := r.catalog.Get(roomID)
	if !ok {
		return domain.RoomSummary{}, domain.ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.summaryLocked(room, domain.RoomKey{OrganizationID: orgID, RoomID: roomID}), nil
}

// ListRooms returns the catalog with the organization's live occupants.
func (r *Registry) ListRooms(orgID uuid.UUID) []domain.RoomSummary {
	rooms := r.catalog.Rooms()

	r.mu.Lock()
	defer r.mu.Unlock()

	summaries := make([]domain.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, r.summaryLocked(room, domain.RoomKey{OrganizationID: orgID, RoomID: room.ID}))
	}
	return summaries
}

// Occupancy sums occupants per catalog room across all organizations.
func (r *Registry) Occupancy() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[string]int)
	for _, room := range r.catalog.rooms {
		counts[room.ID] = 0
	}
	for key, set := range r.occupants {
		counts[key.RoomID] += len(set)
	}
	return counts
}

func (r *Registry) removeLocked(key domain.RoomKey, userID uuid.UUID) {
	if set, ok := r.occupants[key]; ok {
		delete(set, userID)
		if len(set) == 0 {
			delete(r.occupants, key)
		}
	}
	delete(r.membership, userID)
}

func (r *Registry) occupantIDsLocked(key domain.RoomKey) []uuid.UUID {
	set := r.occupants[key]
	ids := make([]uuid.UUID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

func (r *Registry) summaryLocked(room domain.Room, key domain.RoomKey) domain.RoomSummary {
	occupants := r.occupantIDsLocked(key)
	return domain.RoomSummary{
		Room:          room,
		OccupantCount: len(occupants),
		Occupants:     occupants,
	}
}
