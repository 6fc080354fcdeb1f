package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"presence-service/internal/domain"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// :memory: 데이터베이스는 커넥션마다 따로 생긴다
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&domain.Notification{}))
	return db
}

func notificationFor(scope domain.NotificationScope, target uuid.UUID, createdAt time.Time) *domain.Notification {
	n := &domain.Notification{
		ID:        uuid.Must(uuid.NewV7()),
		Scope:     scope,
		Title:     "Task assigned",
		Kind:      "TASK_ASSIGNED",
		Metadata:  datatypes.JSONMap{"taskId": "T-1"},
		CreatedAt: createdAt,
	}
	switch scope {
	case domain.NotificationScopeUser:
		n.RecipientID = &target
	case domain.NotificationScopeOrganization:
		n.OrganizationID = &target
	case domain.NotificationScopeProject:
		n.ProjectID = &target
	}
	return n
}

func TestNotificationRepository_SaveAndFindRecent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(func() *gorm.DB { return db })
	ctx := context.Background()

	userID, orgID, otherUser, otherOrg := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	mine := notificationFor(domain.NotificationScopeUser, userID, base)
	orgWide := notificationFor(domain.NotificationScopeOrganization, orgID, base.Add(time.Minute))
	newest := notificationFor(domain.NotificationScopeUser, userID, base.Add(2*time.Minute))
	projectCopy := notificationFor(domain.NotificationScopeProject, uuid.New(), base.Add(-time.Minute))
	projectCopy.RecipientID = &userID
	for _, n := range []*domain.Notification{
		mine,
		projectCopy,
		orgWide,
		newest,
		notificationFor(domain.NotificationScopeUser, otherUser, base),
		notificationFor(domain.NotificationScopeOrganization, otherOrg, base),
		notificationFor(domain.NotificationScopeProject, uuid.New(), base),
	} {
		require.NoError(t, repo.Save(ctx, n))
	}

	got, err := repo.FindRecentForUser(ctx, userID, orgID, 10)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, newest.ID, got[0].ID)
	assert.Equal(t, orgWide.ID, got[1].ID)
	assert.Equal(t, mine.ID, got[2].ID)
	assert.Equal(t, projectCopy.ID, got[3].ID)
	assert.Equal(t, "T-1", got[0].Metadata["taskId"])

	limited, err := repo.FindRecentForUser(ctx, userID, orgID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	unread, err := repo.CountUnread(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), unread)
}

func TestNotificationRepository_SaveIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(func() *gorm.DB { return db })
	ctx := context.Background()

	n := notificationFor(domain.NotificationScopeUser, uuid.New(), time.Now().UTC())
	require.NoError(t, repo.Save(ctx, n))
	require.NoError(t, repo.Save(ctx, n))

	var count int64
	require.NoError(t, db.Model(&domain.Notification{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestNotificationRepository_NoDatabase(t *testing.T) {
	repo := NewNotificationRepository(func() *gorm.DB { return nil })

	err := repo.Save(context.Background(), &domain.Notification{ID: uuid.New()})
	assert.ErrorIs(t, err, ErrDatabaseUnavailable)

	_, err = repo.FindRecentForUser(context.Background(), uuid.New(), uuid.New(), 5)
	assert.ErrorIs(t, err, ErrDatabaseUnavailable)
}
