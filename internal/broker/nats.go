package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSPublisher publishes to NATS subjects.
type NATSPublisher struct {
	conn *nats.Conn
}

// ConnectNATS dials NATS, retrying the initial connection.
func ConnectNATS(url, name string, attempts int, logger *zap.Logger) (*NATSPublisher, error) {
	if attempts <= 0 {
		attempts = 1
	}

	var (
		conn *nats.Conn
		err  error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err = nats.Connect(url,
			nats.Name(name),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("NATS disconnected", zap.Error(err))
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
			}),
		)
		if err == nil {
			return &NATSPublisher{conn: conn}, nil
		}
		logger.Info("Waiting for NATS", zap.Int("attempt", attempt), zap.Error(err))
		if attempt < attempts {
			time.Sleep(2 * time.Second)
		}
	}
	return nil, fmt.Errorf("connect to NATS: %w", err)
}

func (p *NATSPublisher) PublishPresence(_ context.Context, organizationID uuid.UUID, payload []byte) error {
	return p.conn.Publish(PresenceSubject(organizationID), payload)
}

func (p *NATSPublisher) PublishNotification(_ context.Context, userID uuid.UUID, payload []byte) error {
	return p.conn.Publish(NotificationSubject(userID), payload)
}

func (p *NATSPublisher) PublishOrganizationNotification(_ context.Context, organizationID uuid.UUID, payload []byte) error {
	return p.conn.Publish(OrganizationNotificationSubject(organizationID), payload)
}

// Close flushes pending messages and drains the connection.
func (p *NATSPublisher) Close() error {
	if err := p.conn.Flush(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Drain()
}
