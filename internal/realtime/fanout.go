package realtime

import (
	"github.com/google/uuid"

	"presence-service/internal/presence"
)

// Sender queues a frame on one socket. It returns false if the socket is gone
// or could not take the frame.
type Sender interface {
	Send(socketID uuid.UUID, payload []byte) bool
}

// Fanout resolves users to their live sockets and queues frames on each.
type Fanout struct {
	presence *presence.Store
	sender   Sender
}

func NewFanout(store *presence.Store, sender Sender) *Fanout {
	return &Fanout{presence: store, sender: sender}
}

// ToSocket queues payload on a single socket.
func (f *Fanout) ToSocket(socketID uuid.UUID, payload []byte) bool {
	return f.sender.Send(socketID, payload)
}

// ToUser queues payload on every socket of the user and returns how many took it.
func (f *Fanout) ToUser(userID uuid.UUID, payload []byte) int {
	sent := 0
	for _, socketID := range f.presence.SocketIDs(userID) {
		if f.sender.Send(socketID, payload) {
			sent++
		}
	}
	return sent
}

// ToUsers queues payload for each user except the excluded one (uuid.Nil
// excludes nobody).
func (f *Fanout) ToUsers(userIDs []uuid.UUID, payload []byte, except uuid.UUID) int {
	sent := 0
	for _, userID := range userIDs {
		if userID == except {
			continue
		}
		sent += f.ToUser(userID, payload)
	}
	return sent
}

// ToOrganization queues payload for every online member of the organization.
func (f *Fanout) ToOrganization(organizationID uuid.UUID, payload []byte, except uuid.UUID) int {
	return f.ToUsers(f.presence.OnlineUserIDs(organizationID), payload, except)
}
