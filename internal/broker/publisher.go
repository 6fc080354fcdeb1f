// Package broker mirrors presence and notification events to other services.
// It only publishes; live delivery inside this process never depends on it.
package broker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Publisher pushes already-encoded events to a message bus.
type Publisher interface {
	PublishPresence(ctx context.Context, organizationID uuid.UUID, payload []byte) error
	PublishNotification(ctx context.Context, userID uuid.UUID, payload []byte) error
	PublishOrganizationNotification(ctx context.Context, organizationID uuid.UUID, payload []byte) error
	Close() error
}

// Redis channel names, shared with the rest of the platform.
func PresenceChannel(organizationID uuid.UUID) string {
	return fmt.Sprintf("presence:workspace:%s", organizationID)
}

func NotificationChannel(userID uuid.UUID) string {
	return fmt.Sprintf("notifications:user:%s", userID)
}

func OrganizationNotificationChannel(organizationID uuid.UUID) string {
	return fmt.Sprintf("notifications:workspace:%s", organizationID)
}

// NATS subjects.
func PresenceSubject(organizationID uuid.UUID) string {
	return fmt.Sprintf("presence.event.%s", organizationID)
}

func NotificationSubject(userID uuid.UUID) string {
	return fmt.Sprintf("notifications.user.%s", userID)
}

func OrganizationNotificationSubject(organizationID uuid.UUID) string {
	return fmt.Sprintf("notifications.workspace.%s", organizationID)
}

// NoopPublisher drops everything. Used when no bus is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishPresence(context.Context, uuid.UUID, []byte) error { return nil }

func (NoopPublisher) PublishNotification(context.Context, uuid.UUID, []byte) error { return nil }

func (NoopPublisher) PublishOrganizationNotification(context.Context, uuid.UUID, []byte) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }
