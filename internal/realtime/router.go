package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"presence-service/internal/broker"
	"presence-service/internal/domain"
	"presence-service/internal/message"
	"presence-service/internal/metrics"
	"presence-service/internal/presence"
	"presence-service/internal/room"
)

const (
	defaultMaxMessageLength = 4000
	maxActivityLength       = 100
	mirrorTimeout           = 2 * time.Second
)

// AttachmentResolver turns an uploaded object key into a download URL.
type AttachmentResolver interface {
	PresignDownload(ctx context.Context, key string) (string, error)
}

// CallTokenIssuer grants access to the media server for one room.
type CallTokenIssuer interface {
	IssueToken(roomName, identity, displayName string) (string, error)
	URL() string
}

// Session is one authenticated connection.
type Session struct {
	SocketID uuid.UUID
	Identity domain.Identity
}

type handlerFunc func(ctx context.Context, s *Session, ev *InboundEvent) error

// Options wires a Router.
type Options struct {
	Presence    *presence.Store
	Rooms       *room.Registry
	History     *message.History
	Sender      Sender
	Publisher   broker.Publisher
	Attachments AttachmentResolver
	Calls       CallTokenIssuer
	Metrics     *metrics.Metrics
	Logger      *zap.Logger

	DefaultRoomID    string
	HistoryLimit     int
	MaxMessageLength int
}

// Router is the single entry point for client events after the handshake.
// Every event of one user runs under that user's lock, so a user's state is
// never mutated by two events at once.
type Router struct {
	presence    *presence.Store
	rooms       *room.Registry
	history     *message.History
	fanout      *Fanout
	publisher   broker.Publisher
	attachments AttachmentResolver
	calls       CallTokenIssuer
	metrics     *metrics.Metrics
	logger      *zap.Logger

	defaultRoomID    string
	historyLimit     int
	maxMessageLength int

	locks    *userLocks
	handlers map[string]handlerFunc
}

func NewRouter(opts Options) *Router {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Publisher == nil {
		opts.Publisher = broker.NoopPublisher{}
	}
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = defaultMaxMessageLength
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = opts.History.Capacity()
	}

	r := &Router{
		presence:         opts.Presence,
		rooms:            opts.Rooms,
		history:          opts.History,
		fanout:           NewFanout(opts.Presence, opts.Sender),
		publisher:        opts.Publisher,
		attachments:      opts.Attachments,
		calls:            opts.Calls,
		metrics:          opts.Metrics,
		logger:           opts.Logger,
		defaultRoomID:    opts.DefaultRoomID,
		historyLimit:     opts.HistoryLimit,
		maxMessageLength: opts.MaxMessageLength,
		locks:            newUserLocks(),
	}

	// event           precondition                      broadcast
	// change-room     room exists, capacity ok          old room, new room, self
	// send-message    sender occupies the target room   room occupants
	// update-status   live presence record              organization
	// typing          sender has a current room         room occupants but sender
	// call-signal     target shares the sender's room   target
	// call-join       meeting room, calls configured    self
	// ping            none                              self
	r.handlers = map[string]handlerFunc{
		EventChangeRoom:   r.handleChangeRoom,
		EventSendMessage:  r.handleSendMessage,
		EventUpdateStatus: r.handleUpdateStatus,
		EventTyping:       r.handleTyping,
		EventCallSignal:   r.handleCallSignal,
		EventCallJoin:     r.handleCallJoin,
		EventPing:         r.handlePing,
		EventAuthenticate: r.handleReauthenticate,
	}
	return r
}

// Fanout exposes the socket fan-out used by the router.
func (r *Router) Fanout() *Fanout {
	return r.fanout
}

// Connect registers a freshly authenticated socket. The caller receives its
// identity and a full snapshot; the organization hears about the user only
// when this is their first socket.
//
// A user is online in one organization at a time. A socket for another
// organization is refused with ErrForbidden while the first one is live, and
// nothing is registered or sent for it.
func (r *Router) Connect(ctx context.Context, s *Session) error {
	userID := s.Identity.UserID
	orgID := s.Identity.OrganizationID

	unlock := r.locks.lock(userID)
	defer unlock()

	if current, ok := r.presence.Get(userID); ok && current.IsOnline() && current.OrganizationID != orgID {
		r.logger.Warn("Rejected socket for a second organization",
			zap.String("user_id", userID.String()),
			zap.String("organization_id", orgID.String()),
			zap.String("online_organization_id", current.OrganizationID.String()),
			zap.String("socket_id", s.SocketID.String()))
		return fmt.Errorf("user is online in another organization: %w", domain.ErrForbidden)
	}

	record, cameOnline := r.presence.Register(s.Identity, s.SocketID)
	r.sendToSocket(s.SocketID, EventAuthenticated, AuthenticatedData{
		UserID:         userID,
		OrganizationID: orgID,
		DisplayName:    s.Identity.DisplayName,
	})

	if record.CurrentRoomID == "" && r.defaultRoomID != "" {
		transition, err := r.rooms.Join(orgID, userID, r.defaultRoomID)
		switch {
		case err != nil:
			// 기본 방이 가득 차도 연결은 유지한다
			r.logger.Warn("Default room join rejected",
				zap.String("user_id", userID.String()),
				zap.String("room_id", r.defaultRoomID),
				zap.Error(err))
			r.replyError(s, EventAuthenticate, err)
		case transition.Changed:
			r.applyTransition(s, transition)
		default:
			_ = r.presence.SetCurrentRoom(userID, r.defaultRoomID)
		}
	}

	r.sendOfficeState(s)

	if cameOnline {
		if self, ok := r.presence.Get(userID); ok {
			payload, err := Encode(EventUserJoined, UserJoinedData{User: self})
			if err == nil {
				r.fanout.ToOrganization(orgID, payload, userID)
				r.mirrorPresence(ctx, orgID, payload)
			}
		}
	}

	r.logger.Info("Client connected",
		zap.String("user_id", userID.String()),
		zap.String("organization_id", orgID.String()),
		zap.String("socket_id", s.SocketID.String()),
		zap.Bool("came_online", cameOnline))
	return nil
}

// Disconnect removes a socket. Only the user's last socket takes them out of
// their room and broadcasts them offline.
func (r *Router) Disconnect(ctx context.Context, s *Session) {
	userID := s.Identity.UserID
	orgID := s.Identity.OrganizationID

	unlock := r.locks.lock(userID)
	defer unlock()

	if !r.presence.DeregisterSocket(userID, s.SocketID) {
		r.logger.Debug("Socket closed, user still online",
			zap.String("user_id", userID.String()),
			zap.String("socket_id", s.SocketID.String()))
		return
	}

	if previous, remaining, ok := r.rooms.LeaveAll(userID); ok {
		r.sendToUsers(remaining, EventUserLeft, UserLeftData{
			UserID: userID,
			RoomID: previous.RoomID,
			Reason: "disconnect",
		}, uuid.Nil)
	}

	lastSeen := time.Now()
	if record, ok := r.presence.Get(userID); ok {
		lastSeen = record.LastSeenAt
	}
	payload, err := Encode(EventUserOffline, UserOfflineData{UserID: userID, LastSeenAt: lastSeen})
	if err != nil {
		r.logger.Error("Failed to encode offline event", zap.Error(err))
		return
	}
	r.fanout.ToOrganization(orgID, payload, userID)
	r.mirrorPresence(ctx, orgID, payload)

	r.logger.Info("User went offline",
		zap.String("user_id", userID.String()),
		zap.String("organization_id", orgID.String()))
}

// Dispatch runs one inbound event. Failures are reported to the originating
// socket only.
func (r *Router) Dispatch(ctx context.Context, s *Session, ev *InboundEvent) {
	start := time.Now()
	label := ev.Type

	var err error
	handler, ok := r.handlers[ev.Type]
	if !ok {
		label = "unknown"
		err = fmt.Errorf("%w: unknown event type %q", domain.ErrInvalidEvent, ev.Type)
	} else {
		unlock := r.locks.lock(s.Identity.UserID)
		err = handler(ctx, s, ev)
		unlock()
	}

	result := "ok"
	if err != nil {
		result = domain.ErrorCode(err)
		r.replyError(s, ev.Type, err)

		fields := []zap.Field{
			zap.String("event", ev.Type),
			zap.String("user_id", s.Identity.UserID.String()),
			zap.String("socket_id", s.SocketID.String()),
			zap.Error(err),
		}
		if result == domain.CodeInternal {
			r.logger.Error("Event handling failed", fields...)
		} else {
			r.logger.Debug("Event rejected", fields...)
		}
	}
	r.metrics.RecordEvent(label, result, time.Since(start))
}

// replyError sends a typed error event to one socket.
func (r *Router) replyError(s *Session, eventType string, err error) {
	code := domain.ErrorCode(err)
	msg := err.Error()
	if code == domain.CodeInternal {
		msg = "internal error"
	}
	r.sendToSocket(s.SocketID, EventError, ErrorData{Code: code, Message: msg, Event: eventType})
}

// applyTransition records a room change and tells both rooms about it.
func (r *Router) applyTransition(s *Session, t domain.RoomTransition) {
	userID := s.Identity.UserID

	if err := r.presence.SetCurrentRoom(userID, t.Room.ID); err != nil {
		r.logger.Warn("Room changed for user without presence",
			zap.String("user_id", userID.String()), zap.Error(err))
	}

	if t.PreviousRoomID != "" {
		r.sendToUsers(t.PreviousOccupants, EventUserLeft, UserLeftData{
			UserID: userID,
			RoomID: t.PreviousRoomID,
			Reason: "moved",
		}, uuid.Nil)
	}

	self, _ := r.presence.Get(userID)
	r.sendToUsers(t.Room.Occupants, EventUserEntered, UserEnteredData{User: self, RoomID: t.Room.ID}, userID)
}

func (r *Router) sendOfficeState(s *Session) {
	orgID := s.Identity.OrganizationID
	self, _ := r.presence.Get(s.Identity.UserID)

	state := OfficeStateData{
		Self:           self,
		CurrentRoomID:  self.CurrentRoomID,
		Rooms:          r.rooms.ListRooms(orgID),
		Members:        r.presence.Snapshot(orgID),
		RecentMessages: []domain.ChatMessage{},
	}
	if self.CurrentRoomID != "" {
		state.RecentMessages = r.history.Recent(
			domain.RoomKey{OrganizationID: orgID, RoomID: self.CurrentRoomID}, r.historyLimit)
	}
	r.sendToSocket(s.SocketID, EventOfficeState, state)
}

func (r *Router) sendToSocket(socketID uuid.UUID, eventType string, data interface{}) {
	payload, err := Encode(eventType, data)
	if err != nil {
		r.logger.Error("Failed to encode event", zap.String("event", eventType), zap.Error(err))
		return
	}
	r.fanout.ToSocket(socketID, payload)
}

func (r *Router) sendToUser(userID uuid.UUID, eventType string, data interface{}) {
	payload, err := Encode(eventType, data)
	if err != nil {
		r.logger.Error("Failed to encode event", zap.String("event", eventType), zap.Error(err))
		return
	}
	r.fanout.ToUser(userID, payload)
}

func (r *Router) sendToUsers(userIDs []uuid.UUID, eventType string, data interface{}, except uuid.UUID) {
	if len(userIDs) == 0 {
		return
	}
	payload, err := Encode(eventType, data)
	if err != nil {
		r.logger.Error("Failed to encode event", zap.String("event", eventType), zap.Error(err))
		return
	}
	r.fanout.ToUsers(userIDs, payload, except)
}

func (r *Router) mirrorPresence(ctx context.Context, orgID uuid.UUID, payload []byte) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
	defer cancel()

	if err := r.publisher.PublishPresence(ctx, orgID, payload); err != nil {
		r.logger.Warn("Failed to mirror presence event",
			zap.String("organization_id", orgID.String()), zap.Error(err))
	}
}

func isRejection(err error) bool {
	return errors.Is(err, domain.ErrRoomFull) || errors.Is(err, domain.ErrRoomNotFound)
}
