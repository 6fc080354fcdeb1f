package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"presence-service/internal/domain"
	"presence-service/internal/handler"
	"presence-service/internal/message"
	"presence-service/internal/metrics"
	"presence-service/internal/presence"
	"presence-service/internal/realtime"
	"presence-service/internal/room"
	"presence-service/internal/service"
	"presence-service/internal/websocket"
)

const internalKey = "internal-key"

type fixedResolver map[string]domain.Identity

func (r fixedResolver) Resolve(_ context.Context, token string, _ uuid.UUID) (domain.Identity, error) {
	if id, ok := r[token]; ok {
		return id, nil
	}
	return domain.Identity{}, domain.ErrAuthentication
}

func setupRouter(t *testing.T) (*gin.Engine, domain.Identity) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(registry, zap.NewNop())
	store := presence.NewStore()
	rooms := room.NewRegistry(room.DefaultCatalog())
	hub := websocket.NewHub(m, zap.NewNop())
	events := realtime.NewRouter(realtime.Options{
		Presence:      store,
		Rooms:         rooms,
		History:       message.NewHistory(message.DefaultCapacity),
		Sender:        hub,
		Metrics:       m,
		DefaultRoomID: "main-office",
	})

	ann := domain.Identity{UserID: uuid.New(), OrganizationID: uuid.New(), DisplayName: "Ann"}
	resolver := fixedResolver{"ann-token": ann}

	notifications := service.NewNotificationService(service.NotificationDeps{
		Presence: store,
		Fanout:   events.Fanout(),
		Metrics:  m,
	})

	engine := Setup(Config{
		Env:            "test",
		BasePath:       "/api/presence",
		CORSOrigins:    []string{"*"},
		InternalAPIKey: internalKey,
		Resolver:       resolver,
		WebSocket:      websocket.NewHandler(hub, events, resolver, time.Second, m, zap.NewNop()),
		Health:         handler.NewHealthHandler(nil, nil, hub),
		Office:         handler.NewOfficeHandler(service.NewOfficeService(store, rooms)),
		Notifications:  handler.NewNotificationHandler(notifications, zap.NewNop()),
		Metrics:        m,
		Gatherer:       registry,
		Logger:         zap.NewNop(),
	})
	return engine, ann
}

func TestSetup_Routes(t *testing.T) {
	engine, _ := setupRouter(t)

	tests := []struct {
		name       string
		method     string
		path       string
		headers    map[string]string
		body       string
		wantStatus int
	}{
		{"health", http.MethodGet, "/health", nil, "", http.StatusOK},
		{"ready under base path", http.MethodGet, "/api/presence/ready", nil, "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", nil, "", http.StatusOK},
		{"office needs a token", http.MethodGet, "/api/presence/office", nil, "", http.StatusUnauthorized},
		{"office with token", http.MethodGet, "/api/presence/office",
			map[string]string{"Authorization": "Bearer ann-token"}, "", http.StatusOK},
		{"online with bad token", http.MethodGet, "/api/presence/presence/online",
			map[string]string{"Authorization": "Bearer nope"}, "", http.StatusUnauthorized},
		{"internal needs the key", http.MethodPost, "/api/presence/internal/notifications/user",
			nil, `{"userId":"` + uuid.NewString() + `","title":"t","kind":"k"}`, http.StatusUnauthorized},
		{"internal with key", http.MethodPost, "/api/presence/internal/notifications/user",
			map[string]string{"X-Internal-API-Key": internalKey},
			`{"userId":"` + uuid.NewString() + `","title":"t","kind":"k"}`, http.StatusAccepted},
		{"bearer token does not open internal routes", http.MethodPost, "/api/presence/internal/notifications/user",
			map[string]string{"Authorization": "Bearer ann-token"},
			`{"userId":"` + uuid.NewString() + `","title":"t","kind":"k"}`, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestSetup_MetricsExposesServiceNamespace(t *testing.T) {
	engine, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/presence/office/rooms", nil)
	req.Header.Set("Authorization", "Bearer ann-token")
	engine.ServeHTTP(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "presence_service_http_requests_total")
}

func TestSetup_WebSocketRoute(t *testing.T) {
	engine, ann := setupRouter(t)
	server := httptest.NewServer(engine)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/presence/ws?token=ann-token"
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame struct {
		Type string `json:"type"`
		Data struct {
			UserID uuid.UUID `json:"userId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &frame))
	assert.Equal(t, realtime.EventAuthenticated, frame.Type)
	assert.Equal(t, ann.UserID, frame.Data.UserID)
}
