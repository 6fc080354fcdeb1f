package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

func getTestMetrics() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry(), zap.NewNop())
}

func getCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	if err := counter.Write(metric); err != nil {
		t.Fatalf("Failed to write counter metric: %v", err)
	}
	return metric.Counter.GetValue()
}

func getGaugeValue(t *testing.T, gauge prometheus.Gauge) float64 {
	t.Helper()
	metric := &dto.Metric{}
	if err := gauge.Write(metric); err != nil {
		t.Fatalf("Failed to write gauge metric: %v", err)
	}
	return metric.Gauge.GetValue()
}

func TestConnectionGauge(t *testing.T) {
	m := getTestMetrics()

	m.RecordConnectionOpened()
	m.RecordConnectionOpened()
	m.RecordConnectionClosed()

	if got := getGaugeValue(t, m.WSActiveConnections); got != 1 {
		t.Errorf("Expected 1 active connection, got %f", got)
	}
	if got := getCounterValue(t, m.WSConnectionsTotal); got != 2 {
		t.Errorf("Expected 2 total connections, got %f", got)
	}
}

func TestRecordEvent(t *testing.T) {
	m := getTestMetrics()

	m.RecordEvent("change-room", "ok", 2*time.Millisecond)
	m.RecordEvent("change-room", "ROOM_FULL", time.Millisecond)
	m.RecordEvent("change-room", "ok", time.Millisecond)

	if got := getCounterValue(t, m.EventsTotal.WithLabelValues("change-room", "ok")); got != 2 {
		t.Errorf("Expected 2 ok events, got %f", got)
	}
	if got := getCounterValue(t, m.EventsTotal.WithLabelValues("change-room", "ROOM_FULL")); got != 1 {
		t.Errorf("Expected 1 rejected event, got %f", got)
	}
}

func TestSetPresence(t *testing.T) {
	m := getTestMetrics()

	m.SetPresence(7, map[string]int{"main-office": 5, "lounge": 2})

	if got := getGaugeValue(t, m.OnlineUsers); got != 7 {
		t.Errorf("Expected 7 online users, got %f", got)
	}
	if got := getGaugeValue(t, m.RoomOccupants.WithLabelValues("lounge")); got != 2 {
		t.Errorf("Expected 2 lounge occupants, got %f", got)
	}
}

func TestRecordNotification(t *testing.T) {
	m := getTestMetrics()

	m.RecordNotification("user", 3)
	m.RecordNotification("organization", 10)
	m.RecordNotificationPersistError()

	if got := getCounterValue(t, m.NotificationSocketsTotal); got != 13 {
		t.Errorf("Expected 13 socket deliveries, got %f", got)
	}
	if got := getCounterValue(t, m.NotificationPersistErrors); got != 1 {
		t.Errorf("Expected 1 persist error, got %f", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	m.RecordEvent("typing", "ok", time.Millisecond)
	m.RecordConnectionOpened()
	m.SetPresence(1, nil)
}

func TestRecordExternalAPICall(t *testing.T) {
	m := getTestMetrics()

	m.RecordExternalAPICall("/api/users/123e4567-e89b-12d3-a456-426614174000", "GET", 200, 10*time.Millisecond, nil)
	m.RecordExternalAPICall("/api/users/123e4567-e89b-12d3-a456-426614174000", "GET", 0, time.Second, errors.New("dial tcp: connection refused"))

	if got := getCounterValue(t, m.ExternalAPIRequestsTotal.WithLabelValues("/api/users/{id}", "GET", "200")); got != 1 {
		t.Errorf("Expected normalized endpoint counter 1, got %f", got)
	}
	if got := getCounterValue(t, m.ExternalAPIErrors.WithLabelValues("/api/users/{id}", "connection_refused")); got != 1 {
		t.Errorf("Expected connection_refused error counter 1, got %f", got)
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct{ in, want string }{
		{"http://user-service:8081/api/workspaces/123e4567-e89b-12d3-a456-426614174000/validate-member/9F1C2B3A-1111-2222-3333-444455556666", "/api/workspaces/{id}/validate-member/{id}"},
		{"http://auth-service:8080/api/auth/validate", "/api/auth/validate"},
		{"/api/internal/projects/123e4567-e89b-12d3-a456-426614174000/members?x=1", "/api/internal/projects/{id}/members"},
	}
	for _, tt := range tests {
		if got := normalizeEndpoint(tt.in); got != tt.want {
			t.Errorf("normalizeEndpoint(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGetErrorType(t *testing.T) {
	tests := []struct {
		code int
		err  error
		want string
	}{
		{401, nil, "unauthorized"},
		{404, nil, "not_found"},
		{422, nil, "client_error"},
		{503, nil, "service_unavailable"},
		{500, nil, "server_error"},
		{0, context.DeadlineExceeded, "timeout"},
		{0, fmt.Errorf("do request: %w", context.Canceled), "canceled"},
		{0, errors.New("read: connection reset by peer"), "connection_reset"},
		{0, errors.New("something odd"), "network_error"},
	}
	for _, tt := range tests {
		if got := getErrorType(tt.code, tt.err); got != tt.want {
			t.Errorf("getErrorType(%d, %v) = %s, want %s", tt.code, tt.err, got, tt.want)
		}
	}
}

func TestCategorizeStatus(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{503, "5xx"},
		{0, "unknown"},
	}

	for _, tt := range tests {
		if got := categorizeStatus(tt.code); got != tt.want {
			t.Errorf("categorizeStatus(%d) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestShouldSkipEndpoint(t *testing.T) {
	skipped := []string{"/metrics", "/health", "/ready", "/api/office/health", "/api/office/ws"}
	for _, path := range skipped {
		if !ShouldSkipEndpoint(path) {
			t.Errorf("Expected %s to be skipped", path)
		}
	}
	if ShouldSkipEndpoint("/api/office/presence/online") {
		t.Error("Expected presence endpoint to be recorded")
	}
}
