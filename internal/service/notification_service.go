package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"presence-service/internal/broker"
	"presence-service/internal/client"
	"presence-service/internal/domain"
	"presence-service/internal/metrics"
	"presence-service/internal/presence"
	"presence-service/internal/realtime"
)

const (
	persistTimeout     = 5 * time.Second
	mirrorTimeout      = 2 * time.Second
	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

// NotificationWriter stores the durable copy of a notification. It is either
// the repository itself or the worker enqueuer in front of it.
type NotificationWriter interface {
	Save(ctx context.Context, n *domain.Notification) error
}

// NotificationReader reads a user's inbox.
type NotificationReader interface {
	FindRecentForUser(ctx context.Context, userID, organizationID uuid.UUID, limit int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Delivery reports what a fan-out reached.
type Delivery struct {
	NotificationIDs []uuid.UUID `json:"notificationIds"`
	Recipients      int         `json:"recipients"`
	OnlineUsers     int         `json:"onlineUsers"`
	Sockets         int         `json:"sockets"`
}

// Inbox is a page of a user's persisted notifications.
type Inbox struct {
	Notifications []domain.Notification `json:"notifications"`
	UnreadCount   int64                 `json:"unreadCount"`
}

type NotificationDeps struct {
	Presence  *presence.Store
	Fanout    *realtime.Fanout
	Writer    NotificationWriter
	Reader    NotificationReader
	Projects  client.ProjectClient
	Publisher broker.Publisher
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// NotificationService pushes notifications to live sockets and keeps a
// durable copy. Live delivery never waits on or fails because of persistence.
type NotificationService struct {
	presence  *presence.Store
	fanout    *realtime.Fanout
	writer    NotificationWriter
	reader    NotificationReader
	projects  client.ProjectClient
	publisher broker.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewNotificationService(deps NotificationDeps) *NotificationService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Publisher == nil {
		deps.Publisher = broker.NoopPublisher{}
	}
	return &NotificationService{
		presence:  deps.Presence,
		fanout:    deps.Fanout,
		writer:    deps.Writer,
		reader:    deps.Reader,
		projects:  deps.Projects,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NotifyUser delivers to every socket of one user.
func (s *NotificationService) NotifyUser(ctx context.Context, userID uuid.UUID, payload domain.NotificationPayload) (Delivery, error) {
	if err := payload.Validate(); err != nil {
		return Delivery{}, err
	}
	if userID == uuid.Nil {
		return Delivery{}, fmt.Errorf("recipient is required: %w", domain.ErrInvalidNotification)
	}

	n := s.build(domain.NotificationScopeUser, payload)
	n.RecipientID = &userID

	delivery := Delivery{NotificationIDs: []uuid.UUID{n.ID}, Recipients: 1}
	s.deliverToUser(ctx, userID, n, &delivery)
	s.persist(ctx, n)
	s.metrics.RecordNotification(string(domain.NotificationScopeUser), delivery.Sockets)

	s.logger.Info("Notification sent to user",
		zap.String("notification_id", n.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("kind", n.Kind),
		zap.Int("sockets", delivery.Sockets))
	return delivery, nil
}

// NotifyOrganization delivers to every online member of the organization
// except exclude (uuid.Nil excludes nobody). One organization-scoped copy is
// persisted for members who are offline now.
func (s *NotificationService) NotifyOrganization(ctx context.Context, organizationID uuid.UUID, payload domain.NotificationPayload, exclude uuid.UUID) (Delivery, error) {
	if err := payload.Validate(); err != nil {
		return Delivery{}, err
	}
	if organizationID == uuid.Nil {
		return Delivery{}, fmt.Errorf("organization is required: %w", domain.ErrInvalidNotification)
	}

	n := s.build(domain.NotificationScopeOrganization, payload)
	n.OrganizationID = &organizationID

	frame, err := realtime.Encode(realtime.EventNotification, n)
	if err != nil {
		return Delivery{}, fmt.Errorf("encode notification: %w", err)
	}

	delivery := Delivery{NotificationIDs: []uuid.UUID{n.ID}}
	for _, userID := range s.presence.OnlineUserIDs(organizationID) {
		if userID == exclude {
			continue
		}
		delivery.Recipients++
		if sent := s.fanout.ToUser(userID, frame); sent > 0 {
			delivery.OnlineUsers++
			delivery.Sockets += sent
		}
	}

	s.mirror(ctx, n, func(ctx context.Context) error {
		return s.publisher.PublishOrganizationNotification(ctx, organizationID, frame)
	})
	s.persist(ctx, n)
	s.metrics.RecordNotification(string(domain.NotificationScopeOrganization), delivery.Sockets)

	s.logger.Info("Notification sent to organization",
		zap.String("notification_id", n.ID.String()),
		zap.String("organization_id", organizationID.String()),
		zap.String("kind", n.Kind),
		zap.Int("recipients", delivery.Recipients),
		zap.Int("sockets", delivery.Sockets))
	return delivery, nil
}

// NotifyProject delivers to the project's members. Membership comes from
// board-service; every member gets an inbox copy, online or not.
func (s *NotificationService) NotifyProject(ctx context.Context, projectID uuid.UUID, payload domain.NotificationPayload) (Delivery, error) {
	if err := payload.Validate(); err != nil {
		return Delivery{}, err
	}
	if s.projects == nil {
		return Delivery{}, fmt.Errorf("project lookup: %w", domain.ErrUnavailable)
	}

	memberIDs, err := s.projects.GetProjectMemberIDs(ctx, projectID)
	if err != nil {
		s.logger.Warn("Failed to load project members",
			zap.String("project_id", projectID.String()), zap.Error(err))
		return Delivery{}, fmt.Errorf("project %s members: %v: %w", projectID, err, domain.ErrUpstream)
	}

	delivery := Delivery{NotificationIDs: make([]uuid.UUID, 0, len(memberIDs))}
	seen := make(map[uuid.UUID]struct{}, len(memberIDs))
	for _, userID := range memberIDs {
		if _, dup := seen[userID]; dup || userID == uuid.Nil {
			continue
		}
		seen[userID] = struct{}{}

		n := s.build(domain.NotificationScopeProject, payload)
		n.RecipientID = &userID
		n.ProjectID = &projectID

		delivery.NotificationIDs = append(delivery.NotificationIDs, n.ID)
		delivery.Recipients++
		s.deliverToUser(ctx, userID, n, &delivery)
		s.persist(ctx, n)
	}
	s.metrics.RecordNotification(string(domain.NotificationScopeProject), delivery.Sockets)

	s.logger.Info("Notification sent to project",
		zap.String("project_id", projectID.String()),
		zap.String("kind", payload.Kind),
		zap.Int("recipients", delivery.Recipients),
		zap.Int("sockets", delivery.Sockets))
	return delivery, nil
}

// IsOnline reports whether the user has a live socket.
func (s *NotificationService) IsOnline(userID uuid.UUID) bool {
	return s.presence.IsOnline(userID)
}

// OnlineUsers lists the connected members of one organization.
func (s *NotificationService) OnlineUsers(organizationID uuid.UUID) []uuid.UUID {
	return s.presence.OnlineUserIDs(organizationID)
}

// Recent returns the caller's persisted notifications, newest first.
func (s *NotificationService) Recent(ctx context.Context, identity domain.Identity, limit int) (*Inbox, error) {
	if s.reader == nil {
		return nil, fmt.Errorf("notification inbox: %w", domain.ErrUnavailable)
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	notifications, err := s.reader.FindRecentForUser(ctx, identity.UserID, identity.OrganizationID, limit)
	if err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}
	unread, err := s.reader.CountUnread(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("count unread notifications: %w", err)
	}
	return &Inbox{Notifications: notifications, UnreadCount: unread}, nil
}

func (s *NotificationService) build(scope domain.NotificationScope, payload domain.NotificationPayload) *domain.Notification {
	n := &domain.Notification{
		ID:           newNotificationID(),
		Scope:        scope,
		Title:        payload.Title,
		Message:      payload.Message,
		Kind:         payload.Kind,
		ResourceType: payload.ResourceType,
		ResourceID:   payload.ResourceID,
		CreatedAt:    s.now(),
	}
	if len(payload.Metadata) > 0 {
		n.Metadata = datatypes.JSONMap(payload.Metadata)
	}
	return n
}

func (s *NotificationService) deliverToUser(ctx context.Context, userID uuid.UUID, n *domain.Notification, delivery *Delivery) {
	frame, err := realtime.Encode(realtime.EventNotification, n)
	if err != nil {
		s.logger.Error("Failed to encode notification", zap.String("notification_id", n.ID.String()), zap.Error(err))
		return
	}
	if sent := s.fanout.ToUser(userID, frame); sent > 0 {
		delivery.OnlineUsers++
		delivery.Sockets += sent
	}

	s.mirror(ctx, n, func(ctx context.Context) error {
		return s.publisher.PublishNotification(ctx, userID, frame)
	})
}

// mirror hands the frame to the broker with its own deadline so a stuck bus
// never holds up the caller.
func (s *NotificationService) mirror(ctx context.Context, n *domain.Notification, publish func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
	defer cancel()

	if err := publish(ctx); err != nil {
		s.logger.Warn("Failed to mirror notification",
			zap.String("notification_id", n.ID.String()),
			zap.String("scope", string(n.Scope)),
			zap.Error(err))
	}
}

// persist writes the durable copy. Failures are logged and counted only.
func (s *NotificationService) persist(ctx context.Context, n *domain.Notification) {
	if s.writer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := s.writer.Save(ctx, n); err != nil {
		s.metrics.RecordNotificationPersistError()
		s.logger.Warn("Failed to persist notification",
			zap.String("notification_id", n.ID.String()),
			zap.String("scope", string(n.Scope)),
			zap.Error(err))
	}
}

func newNotificationID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
