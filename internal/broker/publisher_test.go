package broker

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestChannelNames(t *testing.T) {
	id := uuid.MustParse("123e4567-e89b-12d3-a456-426614174000")

	assert.Equal(t, "presence:workspace:123e4567-e89b-12d3-a456-426614174000", PresenceChannel(id))
	assert.Equal(t, "notifications:user:123e4567-e89b-12d3-a456-426614174000", NotificationChannel(id))
	assert.Equal(t, "presence.event.123e4567-e89b-12d3-a456-426614174000", PresenceSubject(id))
	assert.Equal(t, "notifications.user.123e4567-e89b-12d3-a456-426614174000", NotificationSubject(id))
	assert.Equal(t, "notifications:workspace:123e4567-e89b-12d3-a456-426614174000", OrganizationNotificationChannel(id))
	assert.Equal(t, "notifications.workspace.123e4567-e89b-12d3-a456-426614174000", OrganizationNotificationSubject(id))
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}

	assert.NoError(t, p.PublishPresence(context.Background(), uuid.New(), []byte("{}")))
	assert.NoError(t, p.PublishNotification(context.Background(), uuid.New(), []byte("{}")))
	assert.NoError(t, p.PublishOrganizationNotification(context.Background(), uuid.New(), []byte("{}")))
	assert.NoError(t, p.Close())
}
