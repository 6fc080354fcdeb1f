package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"presence-service/internal/domain"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Services ServicesConfig `yaml:"services"`
	Presence PresenceConfig `yaml:"presence"`
	Broker   BrokerConfig   `yaml:"broker"`
	Worker   WorkerConfig   `yaml:"worker"`
	LiveKit  LiveKitConfig  `yaml:"livekit"`
	S3       S3Config       `yaml:"s3"`
	CORS     CORSConfig     `yaml:"cors"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	BasePath        string        `yaml:"base_path"`
	Env             string        `yaml:"env"`
	LogLevel        string        `yaml:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Addr is host:port for go-redis and asynq.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type AuthConfig struct {
	ServiceURL     string `yaml:"service_url"`
	SecretKey      string `yaml:"secret_key"`
	JWKSURL        string `yaml:"jwks_url"`
	InternalAPIKey string `yaml:"internal_api_key"`
}

type ServicesConfig struct {
	UserServiceURL  string        `yaml:"user_service_url"`
	BoardServiceURL string        `yaml:"board_service_url"`
	Timeout         time.Duration `yaml:"timeout"`
}

type PresenceConfig struct {
	DefaultRoomID    string        `yaml:"default_room"`
	HistorySize      int           `yaml:"history_size"`
	HistoryLimit     int           `yaml:"history_limit"`
	MaxMessageLength int           `yaml:"max_message_length"`
	AuthTimeout      time.Duration `yaml:"auth_timeout"`
	OfflineRetention time.Duration `yaml:"offline_retention"`
	SweepSchedule    string        `yaml:"sweep_schedule"`
	MetricsInterval  time.Duration `yaml:"metrics_interval"`
	Rooms            []domain.Room `yaml:"rooms"`
}

type BrokerConfig struct {
	// Backend is redis, nats or none.
	Backend string `yaml:"backend"`
	NATSURL string `yaml:"nats_url"`
}

type WorkerConfig struct {
	Enabled     bool `yaml:"enabled"`
	Concurrency int  `yaml:"concurrency"`
}

type LiveKitConfig struct {
	URL       string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

// Enabled reports whether call tokens can be issued.
func (l LiveKitConfig) Enabled() bool {
	return l.URL != "" && l.APIKey != "" && l.APISecret != ""
}

type S3Config struct {
	Bucket     string        `yaml:"bucket"`
	Region     string        `yaml:"region"`
	Endpoint   string        `yaml:"endpoint"`
	AccessKey  string        `yaml:"access_key"`
	SecretKey  string        `yaml:"secret_key"`
	PresignTTL time.Duration `yaml:"presign_ttl"`
}

type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            8010,
			BasePath:        "/api/presence",
			Env:             "dev",
			LogLevel:        "debug",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			AutoMigrate:     true,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
			DB:   0,
		},
		Services: ServicesConfig{
			Timeout: 5 * time.Second,
		},
		Presence: PresenceConfig{
			DefaultRoomID:    "main-office",
			HistorySize:      100,
			HistoryLimit:     50,
			MaxMessageLength: 4000,
			AuthTimeout:      10 * time.Second,
			OfflineRetention: 10 * time.Minute,
			SweepSchedule:    "@every 1m",
			MetricsInterval:  15 * time.Second,
		},
		Broker: BrokerConfig{
			Backend: "redis",
		},
		Worker: WorkerConfig{
			Enabled:     true,
			Concurrency: 10,
		},
		S3: S3Config{
			Region:     "ap-northeast-2",
			PresignTTL: 15 * time.Minute,
		},
		CORS: CORSConfig{
			Origins: []string{"*"},
		},
	}

	// Load from yaml file if exists
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Override with environment variables
func applyEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if basePath := os.Getenv("SERVER_BASE_PATH"); basePath != "" {
		cfg.Server.BasePath = basePath
	}
	if env := os.Getenv("ENV"); env != "" {
		cfg.Server.Env = env
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		cfg.Redis.Host = redisHost
	}
	if redisPort := os.Getenv("REDIS_PORT"); redisPort != "" {
		if p, err := strconv.Atoi(redisPort); err == nil {
			cfg.Redis.Port = p
		}
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		cfg.Redis.Password = redisPassword
	}
	if authURL := os.Getenv("AUTH_SERVICE_URL"); authURL != "" {
		cfg.Auth.ServiceURL = authURL
	}
	if secretKey := os.Getenv("SECRET_KEY"); secretKey != "" {
		cfg.Auth.SecretKey = secretKey
	}
	if jwksURL := os.Getenv("JWKS_URL"); jwksURL != "" {
		cfg.Auth.JWKSURL = jwksURL
	}
	if apiKey := os.Getenv("INTERNAL_API_KEY"); apiKey != "" {
		cfg.Auth.InternalAPIKey = apiKey
	}
	if userURL := os.Getenv("USER_SERVICE_URL"); userURL != "" {
		cfg.Services.UserServiceURL = userURL
	}
	if boardURL := os.Getenv("BOARD_SERVICE_URL"); boardURL != "" {
		cfg.Services.BoardServiceURL = boardURL
	}
	if backend := os.Getenv("BROKER_BACKEND"); backend != "" {
		cfg.Broker.Backend = backend
	}
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		cfg.Broker.NATSURL = natsURL
	}
	if url := os.Getenv("LIVEKIT_URL"); url != "" {
		cfg.LiveKit.URL = url
	}
	if key := os.Getenv("LIVEKIT_API_KEY"); key != "" {
		cfg.LiveKit.APIKey = key
	}
	if secret := os.Getenv("LIVEKIT_API_SECRET"); secret != "" {
		cfg.LiveKit.APISecret = secret
	}
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		cfg.S3.Bucket = bucket
	}
	if region := os.Getenv("S3_REGION"); region != "" {
		cfg.S3.Region = region
	}
	if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
		cfg.S3.Endpoint = endpoint
	}
	if accessKey := os.Getenv("S3_ACCESS_KEY"); accessKey != "" {
		cfg.S3.AccessKey = accessKey
	}
	if secretKey := os.Getenv("S3_SECRET_KEY"); secretKey != "" {
		cfg.S3.SecretKey = secretKey
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORS.Origins = splitList(origins)
	}
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Broker.Backend {
	case "redis", "nats", "none":
	default:
		return fmt.Errorf("broker.backend must be redis, nats or none, got %q", c.Broker.Backend)
	}
	if c.Broker.Backend == "nats" && c.Broker.NATSURL == "" {
		return fmt.Errorf("broker.nats_url is required for the nats backend")
	}
	if c.Auth.ServiceURL == "" && c.Auth.SecretKey == "" && c.Auth.JWKSURL == "" {
		return fmt.Errorf("one of auth.service_url, auth.secret_key or auth.jwks_url is required")
	}
	if c.Presence.HistorySize <= 0 {
		return fmt.Errorf("presence.history_size must be positive")
	}
	if c.Presence.AuthTimeout <= 0 {
		return fmt.Errorf("presence.auth_timeout must be positive")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
