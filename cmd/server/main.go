package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"presence-service/internal/broker"
	"presence-service/internal/client"
	"presence-service/internal/config"
	"presence-service/internal/database"
	"presence-service/internal/handler"
	"presence-service/internal/identity"
	"presence-service/internal/job"
	"presence-service/internal/message"
	"presence-service/internal/metrics"
	"presence-service/internal/presence"
	"presence-service/internal/realtime"
	"presence-service/internal/repository"
	"presence-service/internal/room"
	"presence-service/internal/router"
	"presence-service/internal/service"
	"presence-service/internal/websocket"
	"presence-service/internal/worker"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Presence Service",
		zap.Int("port", cfg.Server.Port),
		zap.String("env", cfg.Server.Env),
		zap.String("base_path", cfg.Server.BasePath),
		zap.String("broker", cfg.Broker.Backend),
	)

	rootCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	m := metrics.NewWithLogger(logger)

	// Database (실패해도 앱은 시작됨 - 알림 영속화만 비활성화)
	if cfg.Database.URL != "" {
		dbConfig := database.Config{
			DSN:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			AutoMigrate:     cfg.Database.AutoMigrate,
		}
		db, err := database.New(dbConfig)
		if err != nil {
			logger.Warn("Failed to connect to database on startup, will retry in background", zap.Error(err))
			database.NewAsync(rootCtx, dbConfig, 5*time.Second, logger)
		} else {
			database.SetDB(db)
			logger.Info("Database connected successfully")
		}
	} else {
		logger.Warn("DATABASE_URL not set, notification inbox disabled")
	}

	var redisClient *redis.Client
	if rc, err := database.NewRedisClient(rootCtx, cfg.Redis); err != nil {
		logger.Warn("Redis unavailable, broker mirror and worker disabled", zap.Error(err))
	} else {
		redisClient = rc
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	publisher := newPublisher(cfg, redisClient, logger)

	// Identity
	var jwks *keyfunc.JWKS
	resolverOpts := identity.Options{SecretKey: cfg.Auth.SecretKey, Logger: logger}
	if cfg.Auth.JWKSURL != "" {
		jwks, err = identity.LoadJWKS(rootCtx, cfg.Auth.JWKSURL, 5, logger)
		if err != nil {
			logger.Warn("JWKS unavailable, falling back to other token sources", zap.Error(err))
		} else {
			resolverOpts.Keyfunc = jwks.Keyfunc
		}
	}
	if cfg.Auth.ServiceURL != "" {
		resolverOpts.Auth = client.NewAuthClient(cfg.Auth.ServiceURL, cfg.Services.Timeout, logger, m)
	}
	if cfg.Services.UserServiceURL != "" {
		resolverOpts.Users = client.NewUserClient(cfg.Services.UserServiceURL, cfg.Services.Timeout, logger, m)
	}
	resolver, err := identity.NewTokenResolver(resolverOpts)
	if err != nil {
		logger.Fatal("Failed to initialize identity resolver", zap.Error(err))
	}

	var projects client.ProjectClient
	if cfg.Services.BoardServiceURL != "" {
		projects = client.NewProjectClient(cfg.Services.BoardServiceURL, cfg.Auth.InternalAPIKey, cfg.Services.Timeout, logger, m)
	}

	var calls realtime.CallTokenIssuer
	if cfg.LiveKit.Enabled() {
		lk, err := client.NewLiveKitClient(cfg.LiveKit)
		if err != nil {
			logger.Warn("LiveKit disabled", zap.Error(err))
		} else {
			calls = lk
			logger.Info("LiveKit enabled", zap.String("url", cfg.LiveKit.URL))
		}
	}

	var attachments realtime.AttachmentResolver
	if cfg.S3.Bucket != "" {
		s3Client, err := client.NewS3Client(rootCtx, cfg.S3)
		if err != nil {
			logger.Warn("Failed to initialize S3 client, attachments are sent without download URLs", zap.Error(err))
		} else {
			attachments = s3Client
			logger.Info("S3 client initialized", zap.String("bucket", cfg.S3.Bucket), zap.String("region", cfg.S3.Region))
		}
	}

	// Core
	catalog := room.DefaultCatalog()
	if len(cfg.Presence.Rooms) > 0 {
		catalog, err = room.NewCatalog(cfg.Presence.Rooms)
		if err != nil {
			logger.Fatal("Invalid room catalog", zap.Error(err))
		}
	}
	store := presence.NewStore()
	rooms := room.NewRegistry(catalog)
	history := message.NewHistory(cfg.Presence.HistorySize)
	hub := websocket.NewHub(m, logger)

	events := realtime.NewRouter(realtime.Options{
		Presence:         store,
		Rooms:            rooms,
		History:          history,
		Sender:           hub,
		Publisher:        publisher,
		Attachments:      attachments,
		Calls:            calls,
		Metrics:          m,
		Logger:           logger,
		DefaultRoomID:    cfg.Presence.DefaultRoomID,
		HistoryLimit:     cfg.Presence.HistoryLimit,
		MaxMessageLength: cfg.Presence.MaxMessageLength,
	})

	// Durable notifications
	repo := repository.NewNotificationRepository(database.GetDB)
	var writer service.NotificationWriter = repo
	var (
		taskClient *asynq.Client
		workerSrv  *worker.Server
	)
	if cfg.Worker.Enabled && redisClient != nil {
		redisOpt := asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
		taskClient = asynq.NewClient(redisOpt)
		writer = worker.NewEnqueuer(taskClient, logger)
		workerSrv = worker.NewServer(redisOpt, cfg.Worker.Concurrency, repo, logger)
		go workerSrv.Start()
	}

	notifications := service.NewNotificationService(service.NotificationDeps{
		Presence:  store,
		Fanout:    events.Fanout(),
		Writer:    writer,
		Reader:    repo,
		Projects:  projects,
		Publisher: publisher,
		Metrics:   m,
		Logger:    logger,
	})

	scheduler := job.NewScheduler(logger)
	sweep := job.NewPresenceSweepJob(store, cfg.Presence.OfflineRetention, logger)
	if err := scheduler.Register("presence-sweep", cfg.Presence.SweepSchedule, sweep); err != nil {
		logger.Fatal("Failed to schedule presence sweep", zap.Error(err))
	}
	scheduler.Start()

	collector := metrics.NewPresenceMetricsCollector(store, rooms, m, logger, cfg.Presence.MetricsInterval)
	collector.Start()

	var pinger redis.UniversalClient
	if redisClient != nil {
		pinger = redisClient
	}

	r := router.Setup(router.Config{
		Env:            cfg.Server.Env,
		BasePath:       cfg.Server.BasePath,
		CORSOrigins:    cfg.CORS.Origins,
		InternalAPIKey: cfg.Auth.InternalAPIKey,
		Resolver:       resolver,
		WebSocket:      websocket.NewHandler(hub, events, resolver, cfg.Presence.AuthTimeout, m, logger),
		Health:         handler.NewHealthHandler(database.IsConnected, pinger, hub),
		Office:         handler.NewOfficeHandler(service.NewOfficeService(store, rooms)),
		Notifications:  handler.NewNotificationHandler(notifications, logger),
		Metrics:        m,
		Gatherer:       prometheus.DefaultGatherer,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Presence Service started successfully", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// 소켓을 먼저 닫아 남은 이벤트가 정리되게 한다
	hub.CloseAll()
	scheduler.Stop()
	collector.Stop()

	if workerSrv != nil {
		workerSrv.Shutdown()
	}
	if taskClient != nil {
		if err := taskClient.Close(); err != nil {
			logger.Warn("Failed to close task client", zap.Error(err))
		}
	}
	if err := publisher.Close(); err != nil {
		logger.Warn("Failed to close broker", zap.Error(err))
	}
	if jwks != nil {
		jwks.EndBackground()
	}
	stopBackground()

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("Failed to close redis", zap.Error(err))
		}
	}
	if err := database.Close(database.GetDB()); err != nil {
		logger.Warn("Failed to close database", zap.Error(err))
	}

	logger.Info("Server exited gracefully")
}

// newPublisher picks the event mirror backend. A broker that cannot be
// reached degrades to the no-op publisher.
func newPublisher(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) broker.Publisher {
	switch cfg.Broker.Backend {
	case "redis":
		if redisClient == nil {
			logger.Warn("Redis broker selected but redis is unavailable, mirror disabled")
			return broker.NoopPublisher{}
		}
		return broker.NewRedisPublisher(redisClient)
	case "nats":
		p, err := broker.ConnectNATS(cfg.Broker.NATSURL, "presence-service", 5, logger)
		if err != nil {
			logger.Warn("NATS unavailable, mirror disabled", zap.Error(err))
			return broker.NoopPublisher{}
		}
		logger.Info("NATS connected", zap.String("url", cfg.Broker.NATSURL))
		return p
	default:
		return broker.NoopPublisher{}
	}
}

// initLogger initializes the zap logger with the specified level
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      zapLevel == zapcore.DebugLevel,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}
