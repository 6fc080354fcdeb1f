package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"presence-service/internal/domain"
)

type entry struct {
	record  domain.PresenceRecord
	sockets map[uuid.UUID]struct{}
}

// Store tracks the live presence of every connected user.
// All methods are safe for concurrent use; returned records are copies.
type Store struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*entry
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		entries: make(map[uuid.UUID]*entry),
		now:     time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Register adds socketID to the user's record, creating the record if needed.
// cameOnline is true when this is the user's only live socket, which is when
// the caller should announce the user to the organization.
func (s *Store) Register(identity domain.Identity, socketID uuid.UUID) (record domain.PresenceRecord, cameOnline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[identity.UserID]
	if !ok {
		e = &entry{sockets: make(map[uuid.UUID]struct{})}
		s.entries[identity.UserID] = e
	}

	if len(e.sockets) == 0 {
		// 처음 접속했거나 오프라인 기록이 남아있던 사용자
		e.record = domain.PresenceRecord{
			UserID:          identity.UserID,
			OrganizationID:  identity.OrganizationID,
			DisplayName:     identity.DisplayName,
			AvatarRef:       identity.AvatarRef,
			RoleLabel:       identity.RoleLabel,
			DepartmentLabel: identity.DepartmentLabel,
			Status:          domain.PresenceStatusOnline,
		}
		cameOnline = true
	}

	e.sockets[socketID] = struct{}{}
	e.record.LastSeenAt = now

	return e.copy(), cameOnline
}

// DeregisterSocket removes one socket. When it was the user's last socket the
// record goes offline, its room is cleared and wentOffline is true.
func (s *Store) DeregisterSocket(userID, socketID uuid.UUID) (wentOffline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[userID]
	if !ok {
		return false
	}
	if _, ok := e.sockets[socketID]; !ok {
		return false
	}

	delete(e.sockets, socketID)
	e.record.LastSeenAt = s.now()
	if len(e.sockets) > 0 {
		return false
	}

	e.record.Status = domain.PresenceStatusOffline
	e.record.Activity = ""
	e.record.CurrentRoomID = ""
	return true
}

// UpdateStatus changes a connected user's status.
// It returns ErrNotConnected if the user has no live socket.
func (s *Store) UpdateStatus(userID uuid.UUID, status domain.PresenceStatus, activity string) (domain.PresenceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[userID]
	if !ok || len(e.sockets) == 0 {
		return domain.PresenceRecord{}, domain.ErrNotConnected
	}

	e.record.Status = status
	e.record.Activity = activity
	e.record.LastSeenAt = s.now()
	return e.copy(), nil
}

// SetCurrentRoom records the room the user now occupies. roomID may be empty.
func (s *Store) SetCurrentRoom(userID uuid.UUID, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[userID]
	if !ok || len(e.sockets) == 0 {
		return domain.ErrNotConnected
	}

	e.record.CurrentRoomID = roomID
	e.record.LastSeenAt = s.now()
	return nil
}

// Touch refreshes lastSeenAt for a connected user.
func (s *Store) Touch(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[userID]; ok && len(e.sockets) > 0 {
		e.record.LastSeenAt = s.now()
	}
}

// Get returns the user's record, online or retained offline.
func (s *Store) Get(userID uuid.UUID) (domain.PresenceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[userID]
	if !ok {
		return domain.PresenceRecord{}, false
	}
	return e.copy(), true
}

// Records returns the records of the given users that are in orgID, in the
// order given. Unknown users and other organizations are skipped.
func (s *Store) Records(orgID uuid.UUID, userIDs []uuid.UUID) []domain.PresenceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]domain.PresenceRecord, 0, len(userIDs))
	for _, id := range userIDs {
		if e, ok := s.entries[id]; ok && e.record.OrganizationID == orgID {
			records = append(records, e.copy())
		}
	}
	return records
}

// Snapshot returns every record of one organization, including retained
// offline records, sorted by display name.
func (s *Store) Snapshot(orgID uuid.UUID) []domain.PresenceRecord {
	s.mu.RLock()
	records := make([]domain.PresenceRecord, 0)
	for _, e := range s.entries {
		if e.record.OrganizationID == orgID {
			records = append(records, e.copy())
		}
	}
	s.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].DisplayName != records[j].DisplayName {
			return records[i].DisplayName < records[j].DisplayName
		}
		return records[i].UserID.String() < records[j].UserID.String()
	})
	return records
}

// OnlineUserIDs lists the users of one organization with at least one socket.
func (s *Store) OnlineUserIDs(orgID uuid.UUID) []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]uuid.UUID, 0)
	for id, e := range s.entries {
		if e.record.OrganizationID == orgID && len(e.sockets) > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// SocketIDs returns the user's live sockets.
func (s *Store) SocketIDs(userID uuid.UUID) []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[userID]
	if !ok {
		return nil
	}
	return e.socketIDs()
}

func (s *Store) IsOnline(userID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[userID]
	return ok && len(e.sockets) > 0
}

// OnlineCount is the number of users with at least one socket.
func (s *Store) OnlineCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.entries {
		if len(e.sockets) > 0 {
			count++
		}
	}
	return count
}

// EvictOffline drops offline records last seen before cutoff and returns how
// many were removed.
func (s *Store) EvictOffline(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, e := range s.entries {
		if len(e.sockets) == 0 && e.record.LastSeenAt.Before(cutoff) {
			delete(s.entries, id)
			evicted++
		}
	}
	return evicted
}

func (e *entry) copy() domain.PresenceRecord {
	record := e.record
	record.ActiveSocketIDs = e.socketIDs()
	return record
}

func (e *entry) socketIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(e.sockets))
	for id := range e.sockets {
		ids = append(ids, id)
	}
	return ids
}
