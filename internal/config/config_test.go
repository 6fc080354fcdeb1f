package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presence-service/internal/domain"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8010, cfg.Server.Port)
	assert.Equal(t, "/api/presence", cfg.Server.BasePath)
	assert.Equal(t, "main-office", cfg.Presence.DefaultRoomID)
	assert.Equal(t, 100, cfg.Presence.HistorySize)
	assert.Equal(t, 10*time.Minute, cfg.Presence.OfflineRetention)
	assert.Equal(t, "@every 1m", cfg.Presence.SweepSchedule)
	assert.Equal(t, "redis", cfg.Broker.Backend)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.False(t, cfg.LiveKit.Enabled())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9000
  log_level: info
auth:
  secret_key: from-file
presence:
  auth_timeout: 3s
  rooms:
    - id: war-room
      display_name: War Room
      category: meeting
      capacity: 4
broker:
  backend: nats
  nats_url: nats://localhost:4222
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("PORT", "9100")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("LIVEKIT_URL", "wss://livekit.example.com")
	t.Setenv("LIVEKIT_API_KEY", "key")
	t.Setenv("LIVEKIT_API_SECRET", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "from-file", cfg.Auth.SecretKey)
	assert.Equal(t, 3*time.Second, cfg.Presence.AuthTimeout)
	require.Len(t, cfg.Presence.Rooms, 1)
	assert.Equal(t, domain.Room{ID: "war-room", DisplayName: "War Room", Category: domain.RoomCategoryMeeting, Capacity: 4}, cfg.Presence.Rooms[0])
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.Origins)
	assert.True(t, cfg.LiveKit.Enabled())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"unknown broker", func(c *Config) { c.Broker.Backend = "kafka" }, true},
		{"nats without url", func(c *Config) { c.Broker.Backend = "nats" }, true},
		{"no auth source", func(c *Config) { c.Auth.SecretKey = "" }, true},
		{"jwks only", func(c *Config) { c.Auth.SecretKey = ""; c.Auth.JWKSURL = "https://auth.example.com/jwks" }, false},
		{"zero history", func(c *Config) { c.Presence.HistorySize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Auth:     AuthConfig{SecretKey: "secret"},
				Presence: PresenceConfig{HistorySize: 100, AuthTimeout: time.Second},
				Broker:   BrokerConfig{Backend: "none"},
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
