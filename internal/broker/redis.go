package broker

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes to redis pub/sub channels.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) PublishPresence(ctx context.Context, organizationID uuid.UUID, payload []byte) error {
	return p.client.Publish(ctx, PresenceChannel(organizationID), payload).Err()
}

func (p *RedisPublisher) PublishNotification(ctx context.Context, userID uuid.UUID, payload []byte) error {
	return p.client.Publish(ctx, NotificationChannel(userID), payload).Err()
}

func (p *RedisPublisher) PublishOrganizationNotification(ctx context.Context, organizationID uuid.UUID, payload []byte) error {
	return p.client.Publish(ctx, OrganizationNotificationChannel(organizationID), payload).Err()
}

// Close is a no-op; the redis client is shared and closed by main.
func (p *RedisPublisher) Close() error {
	return nil
}
