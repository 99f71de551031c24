package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"pigeon/internal/cache"
	"pigeon/internal/config"
	"pigeon/internal/domain"
	"pigeon/internal/httpserver"
	"pigeon/internal/logger"
	"pigeon/internal/queue"
	"pigeon/internal/security"
	"pigeon/internal/service"
	"pigeon/internal/store/mongodb"
	"pigeon/internal/store/sqlite"
	"pigeon/internal/ws"
)

type repositories struct {
	users         domain.UserRepository
	messages      domain.MessageRepository
	contacts      domain.ContactRepository
	notifications domain.NotificationRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	logger.Init(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repos, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open store")
	}
	defer closeStore()

	// Security components
	tokenSvc := security.NewTokenService(cfg.Security.JwtKey, time.Duration(cfg.Security.TokenTTLMinutes)*time.Minute)
	passwordHasher := security.NewPasswordHasher(0)
	encryptor, err := security.NewEncryptor([]byte(cfg.Security.EncryptKey))
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize encryptor")
	}

	// Presence cache
	var presence *cache.PresenceCache
	redisClient, err := cache.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logrus.WithError(err).Warn("Redis unavailable, presence reads fall back to the store")
	} else {
		defer redisClient.Close()
		presence = cache.NewPresenceCache(redisClient, &cfg.Redis)
	}

	// Notification queue
	var publisher service.Publisher
	rabbit, err := queue.Connect(&cfg.Queue.RabbitMQ)
	if err != nil {
		logrus.WithError(err).Warn("RabbitMQ unavailable, notifications are not published")
	} else {
		defer rabbit.Close()
		publisher = rabbit
	}

	// WebSocket hub and services
	hub := ws.NewHub()
	notificationSvc := service.NewNotificationService(repos.notifications, publisher, cfg.Limits.PageSize)
	authSvc := service.NewAuthService(repos.users, passwordHasher, tokenSvc)
	userSvc := service.NewUserService(repos.users, presence, cfg.Limits.PageSize)
	contactSvc := service.NewContactService(repos.contacts, repos.users, notificationSvc)
	deliverySvc := service.NewDeliveryService(
		repos.messages,
		repos.users,
		repos.contacts,
		notificationSvc,
		encryptor,
		hub,
		cfg.Limits.MaxContentLength,
		time.Duration(cfg.Limits.EditWindowMinutes)*time.Minute,
	)

	router := httpserver.NewRouter(httpserver.Dependencies{
		Cfg:           cfg,
		Hub:           hub,
		Tokens:        tokenSvc,
		Users:         repos.users,
		Presence:      presence,
		Auth:          authSvc,
		UserSvc:       userSvc,
		Contacts:      contactSvc,
		Notifications: notificationSvc,
		Delivery:      deliverySvc,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logrus.WithField("addr", cfg.HTTPAddr()).Infof("Starting %s", cfg.App.Name)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Server error")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logrus.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Graceful shutdown failed")
	}
}

// openStore builds the repository set for the configured driver.
func openStore(ctx context.Context, cfg *config.Configuration) (*repositories, func(), error) {
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.Database.Url)
		if err != nil {
			return nil, nil, err
		}
		if err := sqlite.Migrate(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return &repositories{
			users:         sqlite.NewUserRepo(db),
			messages:      sqlite.NewMessageRepo(db),
			contacts:      sqlite.NewContactRepo(db),
			notifications: sqlite.NewNotificationRepo(db),
		}, func() { db.Close() }, nil

	default:
		db, err := mongodb.Connect(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := db.EnsureIndexes(ctx); err != nil {
			_ = db.Close(ctx)
			return nil, nil, err
		}
		colls := cfg.Database.Collections
		return &repositories{
			users:         mongodb.NewUserRepo(db, colls.Users),
			messages:      mongodb.NewMessageRepo(db, colls.Messages, colls.Users),
			contacts:      mongodb.NewContactRepo(db, colls.Contacts),
			notifications: mongodb.NewNotificationRepo(db, colls.Notifications),
		}, func() { _ = db.Close(context.Background()) }, nil
	}
}
