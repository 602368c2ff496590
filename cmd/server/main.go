package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"flock/internal/config"
	"flock/internal/events"
	apphttp "flock/internal/http"
	"flock/internal/repository/sqlite"
	"flock/internal/service"
	"flock/internal/storage"
	"flock/internal/token"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Fatalf("auth jwt secret is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	userRepo := sqlite.NewUserRepository(db)
	notificationRepo := sqlite.NewNotificationRepository(db)

	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}
	if err := notificationRepo.Init(ctx); err != nil {
		logger.Fatalf("init notification repository: %v", err)
	}

	media := buildMediaStore(ctx, cfg, logger)
	publisher := buildPublisher(cfg, logger)
	if publisher != nil {
		defer publisher.Close()
	}

	tokens := token.NewService(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)
	accountService := service.NewAccountService(userRepo, media, logger)
	graphService := service.NewGraphService(userRepo, notificationRepo, publisher, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(accountService, graphService, tokens, cfg.Server.DevMode, logger)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

// buildMediaStore returns nil when no bucket is configured; profile image
// uploads are then dropped with a warning instead of failing updates.
func buildMediaStore(ctx context.Context, cfg config.Config, logger *logrus.Logger) storage.MediaStore {
	if cfg.Storage.Bucket == "" {
		logger.Warn("storage bucket not configured, media uploads disabled")
		return nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		logger.Fatalf("load aws config: %v", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3MediaStore(client, cfg.Storage.Bucket, cfg.Storage.KeyPrefix)
}

// buildPublisher returns nil when no broker is configured; follow events are
// then only recorded as notifications.
func buildPublisher(cfg config.Config, logger *logrus.Logger) events.Publisher {
	if cfg.AMQP.URL == "" {
		return nil
	}

	publisher, err := events.NewAMQPPublisher(cfg.AMQP.URL)
	if err != nil {
		logger.Fatalf("connect amqp publisher: %v", err)
	}
	logger.Info("amqp follow-event publisher connected")
	return publisher
}
