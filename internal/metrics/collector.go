package metrics

import (
	"time"

	"go.uber.org/zap"
)

// PresenceSource is read by the collector.
type PresenceSource interface {
	OnlineCount() int
}

// OccupancySource is read by the collector.
type OccupancySource interface {
	Occupancy() map[string]int
}

// PresenceMetricsCollector refreshes the presence gauges periodically
type PresenceMetricsCollector struct {
	presence PresenceSource
	rooms    OccupancySource
	metrics  *Metrics
	logger   *zap.Logger
	ticker   *time.Ticker
	done     chan struct{}
}

// NewPresenceMetricsCollector creates a new collector
func NewPresenceMetricsCollector(presence PresenceSource, rooms OccupancySource, metrics *Metrics, logger *zap.Logger, interval time.Duration) *PresenceMetricsCollector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &PresenceMetricsCollector{
		presence: presence,
		rooms:    rooms,
		metrics:  metrics,
		logger:   logger,
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *PresenceMetricsCollector) Start() {
	go func() {
		// 즉시 한 번 수집
		c.collect()

		for {
			select {
			case <-c.ticker.C:
				c.collect()
			case <-c.done:
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *PresenceMetricsCollector) Stop() {
	c.ticker.Stop()
	close(c.done)
}

func (c *PresenceMetricsCollector) collect() {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Panic in presence metrics collection", zap.Any("panic", r))
		}
	}()

	c.metrics.SetPresence(c.presence.OnlineCount(), c.rooms.Occupancy())
}
