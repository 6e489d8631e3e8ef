package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"helpdesk/internal/adapter/api"
	"helpdesk/internal/adapter/api/handler"
	"helpdesk/internal/adapter/api/router"
	"helpdesk/internal/adapter/repository"
	domainrepo "helpdesk/internal/domain/repository"
	"helpdesk/internal/domain/service"
	"helpdesk/internal/infrastructure/database"
	"helpdesk/internal/infrastructure/metrics"
	"helpdesk/internal/infrastructure/presence"
	"helpdesk/internal/infrastructure/push"
	"helpdesk/internal/infrastructure/ratelimit"
	"helpdesk/internal/infrastructure/scheduler"
	"helpdesk/internal/infrastructure/websocket"
	"helpdesk/internal/usecase"
	"helpdesk/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.HealthCheck{}

	var firebaseApp *fbapp.App
	if cfg.StoreDriver == "firestore" || cfg.PushProvider == "fcm" || cfg.PushProvider == "all" {
		opt := firebaseCredentials(cfg)
		firebaseApp, err = fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opt)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}
	}

	var conversationRepo domainrepo.ConversationRepository
	var subscriptionRepo domainrepo.SubscriptionRepository

	switch cfg.StoreDriver {
	case "firestore":
		firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, firebaseCredentials(cfg))
		if err != nil {
			log.Fatalf("Failed to create Firestore client: %v", err)
		}
		defer firestoreClient.Close()

		conversationRepo = repository.NewFirestoreConversationRepository(firestoreClient)
		subscriptionRepo = repository.NewFirestoreSubscriptionRepository(firestoreClient)
		checks["firestore"] = func(ctx context.Context) error {
			_, err := firestoreClient.Collection("conversations").Limit(1).Documents(ctx).GetAll()
			return err
		}

	case "postgres":
		pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to postgres: %v", err)
		}
		defer pool.Close()

		if err := database.RunMigrations(ctx, pool); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}

		conversationRepo = repository.NewPostgresConversationRepository(pool)
		subscriptionRepo = repository.NewPostgresSubscriptionRepository(pool)
		checks["postgres"] = pool.Ping

	case "mongo":
		db, err := database.NewMongoDatabase(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			log.Fatalf("Failed to connect to mongo: %v", err)
		}
		defer db.Client().Disconnect(context.Background())

		conversationRepo = repository.NewMongoConversationRepository(db)
		subscriptionRepo = repository.NewMongoSubscriptionRepository(db)
		checks["mongo"] = func(ctx context.Context) error {
			return db.Client().Ping(ctx, nil)
		}

	default:
		log.Printf("Using in-memory store; conversations are lost on restart")
		conversationRepo = repository.NewMemoryConversationRepository()
		subscriptionRepo = repository.NewMemorySubscriptionRepository()
	}

	var tracker service.PresenceTracker
	var redisTracker *presence.RedisTracker
	if cfg.PresenceDriver == "redis" {
		redisOpt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		redisClient := redis.NewClient(redisOpt)
		defer redisClient.Close()

		redisTracker = presence.NewRedisTracker(redisClient, cfg.InstanceID)
		tracker = redisTracker
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	} else {
		tracker = presence.NewMemoryTracker()
	}

	var autoReplyScheduler service.AutoReplyScheduler
	if cfg.AutoReply.Enabled {
		if cfg.SchedulerDriver == "asynq" {
			autoReplyScheduler, err = scheduler.NewAsynqScheduler(cfg.RedisURL, 10)
			if err != nil {
				log.Fatalf("Failed to initialize asynq scheduler: %v", err)
			}
		} else {
			autoReplyScheduler = scheduler.NewTimerScheduler()
		}
	}

	pushSender := newPushSender(ctx, cfg, firebaseApp)

	appMetrics := metrics.New()

	limiter := ratelimit.NewRateLimiterFromConfig(cfg.RateLimit)
	limiter.StartCleanupRoutine(ctx)

	ledger := usecase.NewLedgerUseCase(conversationRepo, appMetrics)

	wsManager := websocket.NewManager(ledger, tracker, limiter, appMetrics, websocket.Config{
		PingInterval:    cfg.WSPingInterval,
		PongTimeout:     cfg.WSPongTimeout,
		EventsPerSecond: cfg.WSEventsPerSecond,
		EventBurst:      cfg.WSEventBurst,
	})
	wsManager.Start(ctx)

	notificationUseCase := usecase.NewNotificationUseCase(subscriptionRepo, tracker, pushSender, autoReplyScheduler, ledger, cfg.AutoReply, appMetrics)
	chatUseCase := usecase.NewChatUseCase(ledger, conversationRepo, wsManager, notificationUseCase, cfg.AutoReply, appMetrics)

	if autoReplyScheduler != nil {
		if err := autoReplyScheduler.Start(chatUseCase.HandleAutoReply); err != nil {
			log.Fatalf("Failed to start auto-reply scheduler: %v", err)
		}
	}

	handler.Setup(chatUseCase, notificationUseCase, wsManager, cfg.AllowedOrigins, checks)

	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	if len(cfg.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: cfg.AllowedOrigins}))
	} else {
		e.Use(middleware.CORS())
	}

	e.Validator = api.NewValidator()

	router.Setup(e, limiter, appMetrics)

	go func() {
		log.Printf("Starting server on port %s...", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	if err := wsManager.Shutdown(shutdownCtx); err != nil {
		log.Printf("WebSocket shutdown: %v", err)
	}
	if autoReplyScheduler != nil {
		autoReplyScheduler.Stop()
	}
	if redisTracker != nil {
		if err := redisTracker.Close(shutdownCtx); err != nil {
			log.Printf("Presence cleanup: %v", err)
		}
	}
}

func firebaseCredentials(cfg *config.Config) option.ClientOption {
	if cfg.FirebaseCredentialsJS != "" {
		log.Printf("Using Firebase service account from environment variable")
		return option.WithCredentialsJSON([]byte(cfg.FirebaseCredentialsJS))
	}

	if cfg.FirebaseCredentials == "" {
		log.Fatalf("FIREBASE_SERVICE_ACCOUNT_JSON or FIREBASE_SERVICE_ACCOUNT_PATH is required")
	}
	if _, err := os.Stat(cfg.FirebaseCredentials); os.IsNotExist(err) {
		log.Fatalf("Service account file does not exist: %s", cfg.FirebaseCredentials)
	}

	log.Printf("Using Firebase service account from file: %s", cfg.FirebaseCredentials)
	return option.WithCredentialsFile(cfg.FirebaseCredentials)
}

// newPushSender returns nil when push is disabled; notifications are then skipped.
func newPushSender(ctx context.Context, cfg *config.Config, firebaseApp *fbapp.App) service.PushSender {
	var webPush, fcm service.PushSender

	if cfg.PushProvider == "webpush" || cfg.PushProvider == "all" {
		publicKey, privateKey := cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey
		if (publicKey == "" || privateKey == "") && cfg.Environment == "development" {
			var err error
			privateKey, publicKey, err = push.GenerateVAPIDKeys()
			if err != nil {
				log.Fatalf("Failed to generate VAPID keys: %v", err)
			}
			log.Printf("Generated throwaway VAPID keys; browser subscriptions end on restart. Public key: %s", publicKey)
		}

		client, err := push.NewWebPushClient(publicKey, privateKey, cfg.VAPIDEmail)
		if err != nil {
			log.Printf("Web push disabled: %v", err)
		} else {
			webPush = client
		}
	}

	if cfg.PushProvider == "fcm" || cfg.PushProvider == "all" {
		messagingClient, err := firebaseApp.Messaging(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase Messaging: %v", err)
		}
		fcm = push.NewFCMClient(messagingClient)
	}

	if webPush == nil && fcm == nil {
		return nil
	}
	return push.NewRouter(webPush, fcm)
}
