package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"presence-service/internal/domain"
)

// ErrDatabaseUnavailable is returned while the database connection is not up.
var ErrDatabaseUnavailable = errors.New("database not connected")

// NotificationRepository stores durable notification copies.
// The connection is looked up per call so it can come up after startup.
type NotificationRepository struct {
	db func() *gorm.DB
}

func NewNotificationRepository(db func() *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) conn(ctx context.Context) (*gorm.DB, error) {
	db := r.db()
	if db == nil {
		return nil, ErrDatabaseUnavailable
	}
	return db.WithContext(ctx), nil
}

// Save inserts a notification. Saving the same id twice is a no-op so a
// retried task does not duplicate the inbox entry.
func (r *NotificationRepository) Save(ctx context.Context, n *domain.Notification) error {
	db, err := r.conn(ctx)
	if err != nil {
		return err
	}

	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(n).Error
}

// FindRecentForUser returns the newest notifications addressed to the user
// (directly or as a project member) or to their whole organization.
func (r *NotificationRepository) FindRecentForUser(ctx context.Context, userID, organizationID uuid.UUID, limit int) ([]domain.Notification, error) {
	db, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	var notifications []domain.Notification
	err = db.
		Where("recipient_id = ? OR (scope = ? AND organization_id = ?)",
			userID, domain.NotificationScopeOrganization, organizationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

// CountUnread counts unread notifications that carry the user as recipient.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	db, err := r.conn(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	err = db.Model(&domain.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}
