package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// NotificationScope tells which audience a notification was sent to.
type NotificationScope string

const (
	NotificationScopeUser         NotificationScope = "user"
	NotificationScopeOrganization NotificationScope = "organization"
	NotificationScopeProject      NotificationScope = "project"
)

// Notification is the durable inbox copy of a fan-out.
// User and project notifications carry RecipientID (project copies also keep
// ProjectID); organization notifications carry OrganizationID only.
type Notification struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Scope          NotificationScope `gorm:"type:varchar(20);not null" json:"scope"`
	RecipientID    *uuid.UUID        `gorm:"type:uuid;index:idx_notifications_recipient" json:"recipientId,omitempty"`
	OrganizationID *uuid.UUID        `gorm:"type:uuid;index:idx_notifications_organization" json:"organizationId,omitempty"`
	ProjectID      *uuid.UUID        `gorm:"type:uuid;index:idx_notifications_project" json:"projectId,omitempty"`
	Title          string            `gorm:"type:varchar(255);not null" json:"title"`
	Message        string            `gorm:"type:text" json:"message"`
	Kind           string            `gorm:"type:varchar(50);not null" json:"kind"`
	ResourceType   string            `gorm:"type:varchar(50)" json:"resourceType,omitempty"`
	ResourceID     *uuid.UUID        `gorm:"type:uuid" json:"resourceId,omitempty"`
	Metadata       datatypes.JSONMap `json:"metadata,omitempty"`
	IsRead         bool              `gorm:"default:false" json:"isRead"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"createdAt"`
}

func (Notification) TableName() string {
	return "notifications"
}

// NotificationPayload is what callers ask to fan out.
type NotificationPayload struct {
	Title        string                 `json:"title" binding:"required"`
	Message      string                 `json:"message"`
	Kind         string                 `json:"kind" binding:"required"`
	ResourceType string                 `json:"resourceType,omitempty"`
	ResourceID   *uuid.UUID             `json:"resourceId,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// Validate checks the fields every notification needs.
func (p NotificationPayload) Validate() error {
	if p.Title == "" || p.Kind == "" {
		return ErrInvalidNotification
	}
	return nil
}
