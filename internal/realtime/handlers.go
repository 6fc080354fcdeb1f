package realtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"presence-service/internal/domain"
)

func (r *Router) handleChangeRoom(_ context.Context, s *Session, ev *InboundEvent) error {
	userID := s.Identity.UserID
	orgID := s.Identity.OrganizationID

	roomID := strings.TrimSpace(ev.RoomID)
	if roomID == "" {
		return fmt.Errorf("%w: roomId is required", domain.ErrInvalidEvent)
	}
	if !r.presence.IsOnline(userID) {
		return domain.ErrNotConnected
	}

	transition, err := r.rooms.Join(orgID, userID, roomID)
	if err != nil {
		if isRejection(err) {
			r.metrics.RecordRoomRejection(roomID, domain.ErrorCode(err))
		}
		return fmt.Errorf("change room to %s: %w", roomID, err)
	}

	if transition.Changed {
		r.applyTransition(s, transition)
	}

	key := domain.RoomKey{OrganizationID: orgID, RoomID: roomID}
	r.sendToUser(userID, EventRoomChanged, RoomChangedData{
		RoomID:         roomID,
		PreviousRoomID: transition.PreviousRoomID,
		Room:           transition.Room,
		Members:        r.presence.Records(orgID, transition.Room.Occupants),
		RecentMessages: r.history.Recent(key, r.historyLimit),
	})
	return nil
}

func (r *Router) handleSendMessage(ctx context.Context, s *Session, ev *InboundEvent) error {
	userID := s.Identity.UserID
	orgID := s.Identity.OrganizationID

	kind, err := domain.ParseMessageKind(ev.Kind)
	if err != nil {
		return fmt.Errorf("%w: unknown kind %q", err, ev.Kind)
	}
	content := strings.TrimSpace(ev.Content)
	if kind == domain.MessageKindText && content == "" {
		return fmt.Errorf("%w: content is required", domain.ErrInvalidMessage)
	}
	if utf8.RuneCountInString(content) > r.maxMessageLength {
		return fmt.Errorf("%w: content exceeds %d characters", domain.ErrInvalidMessage, r.maxMessageLength)
	}

	roomID := strings.TrimSpace(ev.RoomID)
	if roomID == "" {
		current, ok := r.rooms.CurrentRoom(userID)
		if !ok {
			return domain.ErrNotRoomMember
		}
		roomID = current.RoomID
	}
	if _, ok := r.rooms.Catalog().Get(roomID); !ok {
		return domain.ErrRoomNotFound
	}
	if !r.rooms.IsMember(orgID, roomID, userID) {
		return fmt.Errorf("send to %s: %w", roomID, domain.ErrNotRoomMember)
	}

	attachmentURL, err := r.resolveAttachment(ctx, kind, ev)
	if err != nil {
		return err
	}

	msg := domain.ChatMessage{
		ID:            uuid.Must(uuid.NewV7()),
		RoomID:        roomID,
		SenderID:      userID,
		SenderName:    s.Identity.DisplayName,
		Content:       content,
		Kind:          kind,
		AttachmentURL: attachmentURL,
		SentAt:        time.Now().UTC(),
	}

	key := domain.RoomKey{OrganizationID: orgID, RoomID: roomID}
	r.history.Append(key, msg)
	r.presence.Touch(userID)

	r.sendToUsers(r.rooms.Occupants(orgID, roomID), EventNewMessage, msg, uuid.Nil)
	r.metrics.RecordMessage(string(kind))
	return nil
}

func (r *Router) resolveAttachment(ctx context.Context, kind domain.MessageKind, ev *InboundEvent) (string, error) {
	if kind == domain.MessageKindText {
		return "", nil
	}

	if ev.AttachmentKey != "" && r.attachments != nil {
		url, err := r.attachments.PresignDownload(ctx, ev.AttachmentKey)
		if err != nil {
			return "", fmt.Errorf("%w: presign attachment: %v", domain.ErrUpstream, err)
		}
		return url, nil
	}
	if ev.AttachmentURL != "" {
		return ev.AttachmentURL, nil
	}
	return "", fmt.Errorf("%w: %s message needs an attachment", domain.ErrInvalidMessage, kind)
}

func (r *Router) handleUpdateStatus(ctx context.Context, s *Session, ev *InboundEvent) error {
	userID := s.Identity.UserID
	orgID := s.Identity.OrganizationID

	status, err := domain.ParsePresenceStatus(ev.Status)
	if err != nil {
		return fmt.Errorf("%w: %q", err, ev.Status)
	}
	activity := strings.TrimSpace(ev.Activity)
	if utf8.RuneCountInString(activity) > maxActivityLength {
		activity = string([]rune(activity)[:maxActivityLength])
	}

	record, err := r.presence.UpdateStatus(userID, status, activity)
	if errors.Is(err, domain.ErrNotConnected) {
		// 연결 해제와 경합한 경우라 무시한다
		r.logger.Debug("Status update for disconnected user ignored",
			zap.String("user_id", userID.String()))
		return nil
	}
	if err != nil {
		return err
	}

	payload, err := Encode(EventPresenceUpdated, PresenceUpdatedData{
		UserID:     userID,
		Status:     record.Status,
		Activity:   record.Activity,
		LastSeenAt: record.LastSeenAt,
	})
	if err != nil {
		return err
	}
	r.fanout.ToOrganization(orgID, payload, uuid.Nil)
	r.mirrorPresence(ctx, orgID, payload)
	return nil
}

func (r *Router) handleTyping(_ context.Context, s *Session, ev *InboundEvent) error {
	userID := s.Identity.UserID

	current, ok := r.rooms.CurrentRoom(userID)
	if !ok {
		return domain.ErrNotRoomMember
	}

	r.sendToUsers(r.rooms.Occupants(current.OrganizationID, current.RoomID), EventTypingIndicator, TypingIndicatorData{
		UserID:   userID,
		RoomID:   current.RoomID,
		IsTyping: ev.IsTyping,
	}, userID)
	return nil
}

func (r *Router) handleCallSignal(_ context.Context, s *Session, ev *InboundEvent) error {
	userID := s.Identity.UserID

	targetID, err := uuid.Parse(ev.TargetUserID)
	if err != nil {
		return fmt.Errorf("%w: invalid targetUserId", domain.ErrInvalidEvent)
	}
	if len(ev.Signal) == 0 {
		return fmt.Errorf("%w: signal is required", domain.ErrInvalidEvent)
	}

	current, ok := r.rooms.CurrentRoom(userID)
	if !ok {
		return domain.ErrNotRoomMember
	}
	// RoomKey includes the organization, so this also rejects other tenants.
	targetRoom, ok := r.rooms.CurrentRoom(targetID)
	if !ok || targetRoom != current {
		return fmt.Errorf("signal %s: %w", targetID, domain.ErrNotRoomMember)
	}

	r.sendToUser(targetID, EventCallSignal, CallSignalData{
		FromUserID: userID,
		RoomID:     current.RoomID,
		Signal:     ev.Signal,
	})
	return nil
}

func (r *Router) handleCallJoin(_ context.Context, s *Session, _ *InboundEvent) error {
	if r.calls == nil {
		return fmt.Errorf("calls: %w", domain.ErrUnavailable)
	}

	current, ok := r.rooms.CurrentRoom(s.Identity.UserID)
	if !ok {
		return domain.ErrNotRoomMember
	}
	room, ok := r.rooms.Catalog().Get(current.RoomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	if room.Category != domain.RoomCategoryMeeting {
		return fmt.Errorf("%w: calls are only available in meeting rooms", domain.ErrForbidden)
	}

	roomName := CallRoomName(current)
	token, err := r.calls.IssueToken(roomName, s.Identity.UserID.String(), s.Identity.DisplayName)
	if err != nil {
		return fmt.Errorf("issue call token: %w", err)
	}

	r.sendToSocket(s.SocketID, EventCallToken, CallTokenData{Token: token, URL: r.calls.URL(), Room: roomName})
	return nil
}

func (r *Router) handlePing(_ context.Context, s *Session, _ *InboundEvent) error {
	r.presence.Touch(s.Identity.UserID)
	r.sendToSocket(s.SocketID, EventPong, nil)
	return nil
}

func (r *Router) handleReauthenticate(_ context.Context, _ *Session, _ *InboundEvent) error {
	return fmt.Errorf("%w: connection is already authenticated", domain.ErrInvalidEvent)
}

// CallRoomName is the media server room backing one organization room.
func CallRoomName(key domain.RoomKey) string {
	return fmt.Sprintf("%s_%s", key.OrganizationID, key.RoomID)
}
