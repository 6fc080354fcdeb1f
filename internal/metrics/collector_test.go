package metrics

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

type staticPresence int

func (s staticPresence) OnlineCount() int { return int(s) }

type staticOccupancy map[string]int

func (s staticOccupancy) Occupancy() map[string]int { return s }

func TestPresenceMetricsCollector_Collect(t *testing.T) {
	m := getTestMetrics()
	c := NewPresenceMetricsCollector(staticPresence(4), staticOccupancy{"quiet-zone": 3}, m, zap.NewNop(), time.Hour)
	defer c.ticker.Stop()

	c.collect()

	if got := getGaugeValue(t, m.OnlineUsers); got != 4 {
		t.Errorf("Expected 4 online users, got %f", got)
	}
	if got := getGaugeValue(t, m.RoomOccupants.WithLabelValues("quiet-zone")); got != 3 {
		t.Errorf("Expected 3 quiet-zone occupants, got %f", got)
	}
}
