package metrics

import (
	"time"
)

// RecordConnectionOpened counts an authenticated WebSocket connection.
func (m *Metrics) RecordConnectionOpened() {
	m.safeExecute("RecordConnectionOpened", func() {
		m.WSConnectionsTotal.Inc()
		m.WSActiveConnections.Inc()
	})
}

func (m *Metrics) RecordConnectionClosed() {
	m.safeExecute("RecordConnectionClosed", func() {
		m.WSActiveConnections.Dec()
	})
}

func (m *Metrics) RecordAuthFailure() {
	m.safeExecute("RecordAuthFailure", func() {
		m.WSAuthFailuresTotal.Inc()
	})
}

func (m *Metrics) RecordDroppedFrame() {
	m.safeExecute("RecordDroppedFrame", func() {
		m.WSDroppedFrames.Inc()
	})
}

// RecordEvent records one handled inbound event. result is "ok" or an error code.
func (m *Metrics) RecordEvent(eventType, result string, duration time.Duration) {
	m.safeExecute("RecordEvent", func() {
		m.EventsTotal.WithLabelValues(eventType, result).Inc()
		m.EventDuration.WithLabelValues(eventType).Observe(duration.Seconds())
	})
}

func (m *Metrics) RecordRoomRejection(roomID, reason string) {
	m.safeExecute("RecordRoomRejection", func() {
		m.RoomRejections.WithLabelValues(roomID, reason).Inc()
	})
}

func (m *Metrics) RecordMessage(kind string) {
	m.safeExecute("RecordMessage", func() {
		m.MessagesTotal.WithLabelValues(kind).Inc()
	})
}

// RecordNotification records one fan-out and the sockets it reached.
func (m *Metrics) RecordNotification(scope string, sockets int) {
	m.safeExecute("RecordNotification", func() {
		m.NotificationsTotal.WithLabelValues(scope).Inc()
		m.NotificationSocketsTotal.Add(float64(sockets))
	})
}

func (m *Metrics) RecordNotificationPersistError() {
	m.safeExecute("RecordNotificationPersistError", func() {
		m.NotificationPersistErrors.Inc()
	})
}

// SetPresence publishes the presence gauges.
func (m *Metrics) SetPresence(online int, occupancy map[string]int) {
	m.safeExecute("SetPresence", func() {
		m.OnlineUsers.Set(float64(online))
		for room, count := range occupancy {
			m.RoomOccupants.WithLabelValues(room).Set(float64(count))
		}
	})
}
