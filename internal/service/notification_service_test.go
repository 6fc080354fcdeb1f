package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"presence-service/internal/domain"
	"presence-service/internal/metrics"
	"presence-service/internal/presence"
	"presence-service/internal/realtime"
)

// MockNotificationWriter is a mock implementation of NotificationWriter
type MockNotificationWriter struct {
	mock.Mock
}

func (m *MockNotificationWriter) Save(ctx context.Context, n *domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// MockProjectClient is a mock implementation of client.ProjectClient
type MockProjectClient struct {
	mock.Mock
}

func (m *MockProjectClient) GetProjectMemberIDs(ctx context.Context, projectID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, projectID)
	if ids := args.Get(0); ids != nil {
		return ids.([]uuid.UUID), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockNotificationReader is a mock implementation of NotificationReader
type MockNotificationReader struct {
	mock.Mock
}

func (m *MockNotificationReader) FindRecentForUser(ctx context.Context, userID, organizationID uuid.UUID, limit int) ([]domain.Notification, error) {
	args := m.Called(ctx, userID, organizationID, limit)
	if ns := args.Get(0); ns != nil {
		return ns.([]domain.Notification), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockNotificationReader) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type capturingSender struct {
	mu     sync.Mutex
	frames map[uuid.UUID][][]byte
}

func newCapturingSender() *capturingSender {
	return &capturingSender{frames: make(map[uuid.UUID][][]byte)}
}

func (s *capturingSender) Send(socketID uuid.UUID, payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames[socketID] = append(s.frames[socketID], payload)
	return true
}

func (s *capturingSender) notifications(socketID uuid.UUID) []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Notification
	for _, raw := range s.frames[socketID] {
		var frame struct {
			Type string              `json:"type"`
			Data domain.Notification `json:"data"`
		}
		if json.Unmarshal(raw, &frame) == nil && frame.Type == realtime.EventNotification {
			out = append(out, frame.Data)
		}
	}
	return out
}

type publishCall struct {
	kind        string
	target      uuid.UUID
	hasDeadline bool
	ctxErr      error
}

// recordingPublisher stands in for the redis/nats mirror.
type recordingPublisher struct {
	mu    sync.Mutex
	calls []publishCall
	err   error
}

func (p *recordingPublisher) record(ctx context.Context, kind string, target uuid.UUID) error {
	_, hasDeadline := ctx.Deadline()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, publishCall{kind: kind, target: target, hasDeadline: hasDeadline, ctxErr: ctx.Err()})
	return p.err
}

func (p *recordingPublisher) PublishPresence(ctx context.Context, organizationID uuid.UUID, _ []byte) error {
	return p.record(ctx, "presence", organizationID)
}

func (p *recordingPublisher) PublishNotification(ctx context.Context, userID uuid.UUID, _ []byte) error {
	return p.record(ctx, "user", userID)
}

func (p *recordingPublisher) PublishOrganizationNotification(ctx context.Context, organizationID uuid.UUID, _ []byte) error {
	return p.record(ctx, "organization", organizationID)
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) recorded() []publishCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishCall(nil), p.calls...)
}

type notificationFixture struct {
	store     *presence.Store
	sender    *capturingSender
	publisher *recordingPublisher
	writer   *MockNotificationWriter
	projects *MockProjectClient
	metrics  *metrics.Metrics
	service  *NotificationService
}

func newNotificationFixture(t *testing.T) *notificationFixture {
	t.Helper()
	store := presence.NewStore()
	sender := newCapturingSender()
	f := &notificationFixture{
		store:     store,
		sender:    sender,
		publisher: &recordingPublisher{},
		writer:    new(MockNotificationWriter),
		projects:  new(MockProjectClient),
		metrics:   metrics.NewWithRegistry(prometheus.NewRegistry(), zap.NewNop()),
	}
	f.service = NewNotificationService(NotificationDeps{
		Presence:  store,
		Fanout:    realtime.NewFanout(store, sender),
		Writer:    f.writer,
		Projects:  f.projects,
		Publisher: f.publisher,
		Metrics:   f.metrics,
		Logger:    zap.NewNop(),
	})
	return f
}

func (f *notificationFixture) connect(orgID uuid.UUID, name string) (uuid.UUID, uuid.UUID) {
	userID, socketID := uuid.New(), uuid.New()
	f.store.Register(domain.Identity{UserID: userID, OrganizationID: orgID, DisplayName: name}, socketID)
	return userID, socketID
}

func samplePayload() domain.NotificationPayload {
	return domain.NotificationPayload{
		Title:    "You were mentioned",
		Message:  "in #general",
		Kind:     "MENTION",
		Metadata: map[string]interface{}{"channel": "general"},
	}
}

func TestNotifyUser_DeliversLiveAndPersists(t *testing.T) {
	f := newNotificationFixture(t)
	userID, socketA := f.connect(uuid.New(), "Ann")
	socketB := uuid.New()
	f.store.Register(domain.Identity{UserID: userID}, socketB)

	f.writer.On("Save", mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.Scope == domain.NotificationScopeUser && *n.RecipientID == userID
	})).Return(nil).Once()

	delivery, err := f.service.NotifyUser(context.Background(), userID, samplePayload())
	require.NoError(t, err)

	assert.Equal(t, 1, delivery.Recipients)
	assert.Equal(t, 1, delivery.OnlineUsers)
	assert.Equal(t, 2, delivery.Sockets)
	require.Len(t, delivery.NotificationIDs, 1)
	assert.Equal(t, uuid.Version(7), delivery.NotificationIDs[0].Version())

	for _, socketID := range []uuid.UUID{socketA, socketB} {
		got := f.sender.notifications(socketID)
		require.Len(t, got, 1)
		assert.Equal(t, delivery.NotificationIDs[0], got[0].ID)
		assert.Equal(t, "general", got[0].Metadata["channel"])
	}
	f.writer.AssertExpectations(t)
}

func TestNotifyUser_OfflineUserStillPersisted(t *testing.T) {
	f := newNotificationFixture(t)
	userID := uuid.New()
	f.writer.On("Save", mock.Anything, mock.Anything).Return(nil).Once()

	delivery, err := f.service.NotifyUser(context.Background(), userID, samplePayload())
	require.NoError(t, err)
	assert.Equal(t, 0, delivery.Sockets)
	assert.Equal(t, 0, delivery.OnlineUsers)
	f.writer.AssertExpectations(t)
}

func TestNotifyUser_PersistFailureIsNotFatal(t *testing.T) {
	f := newNotificationFixture(t)
	userID, socketID := f.connect(uuid.New(), "Ann")
	f.writer.On("Save", mock.Anything, mock.Anything).Return(errors.New("database not connected"))

	delivery, err := f.service.NotifyUser(context.Background(), userID, samplePayload())
	require.NoError(t, err)
	assert.Equal(t, 1, delivery.Sockets)
	assert.Len(t, f.sender.notifications(socketID), 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.NotificationPersistErrors))
}

func TestNotifyUser_Validation(t *testing.T) {
	f := newNotificationFixture(t)

	_, err := f.service.NotifyUser(context.Background(), uuid.New(), domain.NotificationPayload{Kind: "MENTION"})
	assert.ErrorIs(t, err, domain.ErrInvalidNotification)

	_, err = f.service.NotifyUser(context.Background(), uuid.Nil, samplePayload())
	assert.ErrorIs(t, err, domain.ErrInvalidNotification)

	f.writer.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestNotifyOrganization_ExcludesAndScopes(t *testing.T) {
	f := newNotificationFixture(t)
	orgID, otherOrg := uuid.New(), uuid.New()
	author, authorSocket := f.connect(orgID, "Ann")
	_, peerSocket := f.connect(orgID, "Ben")
	_, outsiderSocket := f.connect(otherOrg, "Cy")

	f.writer.On("Save", mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.Scope == domain.NotificationScopeOrganization && *n.OrganizationID == orgID && n.RecipientID == nil
	})).Return(nil).Once()

	delivery, err := f.service.NotifyOrganization(context.Background(), orgID, samplePayload(), author)
	require.NoError(t, err)

	assert.Equal(t, 1, delivery.Recipients)
	assert.Equal(t, 1, delivery.Sockets)
	assert.Len(t, f.sender.notifications(peerSocket), 1)
	assert.Empty(t, f.sender.notifications(authorSocket))
	assert.Empty(t, f.sender.notifications(outsiderSocket))

	calls := f.publisher.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "organization", calls[0].kind)
	assert.Equal(t, orgID, calls[0].target)
	assert.True(t, calls[0].hasDeadline)
	f.writer.AssertExpectations(t)
}

func TestNotify_MirrorIsBoundedAndBestEffort(t *testing.T) {
	f := newNotificationFixture(t)
	f.publisher.err = errors.New("redis: connection pool timeout")
	userID, socketID := f.connect(uuid.New(), "Ann")
	f.writer.On("Save", mock.Anything, mock.Anything).Return(nil)

	// 호출자의 컨텍스트가 이미 취소돼도 미러링은 자체 데드라인으로 진행된다
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	delivery, err := f.service.NotifyUser(ctx, userID, samplePayload())
	require.NoError(t, err)
	assert.Equal(t, 1, delivery.Sockets)
	assert.Len(t, f.sender.notifications(socketID), 1)

	calls := f.publisher.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "user", calls[0].kind)
	assert.Equal(t, userID, calls[0].target)
	assert.True(t, calls[0].hasDeadline)
	assert.NoError(t, calls[0].ctxErr)
}

func TestNotifyProject(t *testing.T) {
	orgID, projectID := uuid.New(), uuid.New()

	t.Run("members get their own copy", func(t *testing.T) {
		f := newNotificationFixture(t)
		online, onlineSocket := f.connect(orgID, "Ann")
		offline := uuid.New()
		_, bystanderSocket := f.connect(orgID, "Ben")

		f.projects.On("GetProjectMemberIDs", mock.Anything, projectID).
			Return([]uuid.UUID{online, offline, online}, nil)
		f.writer.On("Save", mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
			return n.Scope == domain.NotificationScopeProject && *n.ProjectID == projectID && n.RecipientID != nil
		})).Return(nil).Times(2)

		delivery, err := f.service.NotifyProject(context.Background(), projectID, samplePayload())
		require.NoError(t, err)

		assert.Equal(t, 2, delivery.Recipients)
		assert.Equal(t, 1, delivery.OnlineUsers)
		assert.Equal(t, 1, delivery.Sockets)
		assert.Len(t, delivery.NotificationIDs, 2)
		assert.Len(t, f.sender.notifications(onlineSocket), 1)
		assert.Empty(t, f.sender.notifications(bystanderSocket))
		f.writer.AssertExpectations(t)
	})

	t.Run("membership lookup failure", func(t *testing.T) {
		f := newNotificationFixture(t)
		f.projects.On("GetProjectMemberIDs", mock.Anything, projectID).
			Return(nil, errors.New("board-service returned status 503"))

		_, err := f.service.NotifyProject(context.Background(), projectID, samplePayload())
		assert.ErrorIs(t, err, domain.ErrUpstream)
		f.writer.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("no project client", func(t *testing.T) {
		svc := NewNotificationService(NotificationDeps{
			Presence: presence.NewStore(),
			Fanout:   realtime.NewFanout(presence.NewStore(), newCapturingSender()),
		})
		_, err := svc.NotifyProject(context.Background(), projectID, samplePayload())
		assert.ErrorIs(t, err, domain.ErrUnavailable)
	})
}

func TestOnlineQueries(t *testing.T) {
	f := newNotificationFixture(t)
	orgID := uuid.New()
	userID, socketID := f.connect(orgID, "Ann")

	assert.True(t, f.service.IsOnline(userID))
	assert.Equal(t, []uuid.UUID{userID}, f.service.OnlineUsers(orgID))

	f.store.DeregisterSocket(userID, socketID)
	assert.False(t, f.service.IsOnline(userID))
	assert.Empty(t, f.service.OnlineUsers(orgID))
}

func TestRecent(t *testing.T) {
	identity := domain.Identity{UserID: uuid.New(), OrganizationID: uuid.New()}

	t.Run("clamps the limit", func(t *testing.T) {
		reader := new(MockNotificationReader)
		reader.On("FindRecentForUser", mock.Anything, identity.UserID, identity.OrganizationID, maxRecentLimit).
			Return([]domain.Notification{{ID: uuid.New(), Title: "hi"}}, nil)
		reader.On("CountUnread", mock.Anything, identity.UserID).Return(int64(4), nil)

		svc := NewNotificationService(NotificationDeps{Presence: presence.NewStore(), Reader: reader})
		inbox, err := svc.Recent(context.Background(), identity, 500)
		require.NoError(t, err)
		assert.Len(t, inbox.Notifications, 1)
		assert.Equal(t, int64(4), inbox.UnreadCount)
		reader.AssertExpectations(t)
	})

	t.Run("default limit", func(t *testing.T) {
		reader := new(MockNotificationReader)
		reader.On("FindRecentForUser", mock.Anything, identity.UserID, identity.OrganizationID, defaultRecentLimit).
			Return([]domain.Notification{}, nil)
		reader.On("CountUnread", mock.Anything, identity.UserID).Return(int64(0), nil)

		svc := NewNotificationService(NotificationDeps{Presence: presence.NewStore(), Reader: reader})
		_, err := svc.Recent(context.Background(), identity, 0)
		require.NoError(t, err)
		reader.AssertExpectations(t)
	})

	t.Run("no reader", func(t *testing.T) {
		svc := NewNotificationService(NotificationDeps{Presence: presence.NewStore()})
		_, err := svc.Recent(context.Background(), identity, 10)
		assert.ErrorIs(t, err, domain.ErrUnavailable)
	})
}
