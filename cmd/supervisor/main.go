package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"live-chat-supervisor/pkg/alert"
	"live-chat-supervisor/pkg/config"
	"live-chat-supervisor/pkg/constants"
	"live-chat-supervisor/pkg/handlers"
	"live-chat-supervisor/pkg/hub"
	"live-chat-supervisor/pkg/ingest"
	"live-chat-supervisor/pkg/metrics"
	redisClient "live-chat-supervisor/pkg/redis"
	"live-chat-supervisor/pkg/server"
	"live-chat-supervisor/pkg/service"
	"live-chat-supervisor/pkg/settings"
	"live-chat-supervisor/pkg/store"
	"live-chat-supervisor/pkg/supervisor"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger
	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"instance_id":   cfg.InstanceID,
		"redis_enabled": cfg.RedisEnabled,
	}).Info("Starting live chat supervisor")

	metrics := metrics.NewMetrics(prometheus.DefaultRegisterer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var player alert.Player
	if cfg.AlertBell {
		player = alert.NewBellPlayer(os.Stdout)
	}

	panelHub := hub.NewHub(logger, metrics)
	alerters := alert.Fanout{alert.NewLogAlerter(logger, player), panelHub}

	var repo settings.Repository = settings.NewMemoryRepository()
	if cfg.RedisEnabled {
		rdb, err := redisClient.NewClient(redisClient.DefaultConnectionConfig(cfg.RedisURL), logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer rdb.Close()

		repo = settings.NewRedisRepository(rdb.Raw(), logger, metrics)
		alerters = append(alerters, alert.NewStreamPublisher(rdb.Raw(), logger, metrics))
	}

	initial, err := settings.Bootstrap(ctx, repo, cfg.SettingsFile, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load supervisor settings")
	}

	sup, err := supervisor.NewSupervisor(store.NewConversationStore(), initial, alerters, logger, metrics)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create supervisor")
	}

	observer := ingest.NewObserver(sup, ingest.Classifier{
		CustomerClasses: cfg.CustomerClasses,
		AgentClasses:    cfg.AgentClasses,
		AgentAuthors:    cfg.AgentAuthors,
	}, constants.DefaultSeenElementsLimit, logger, metrics)

	handler := handlers.NewHandler(sup, observer, repo, logger, time.Now)
	router := server.NewRouter(handler, panelHub.ServeWS, logger)

	svc := service.NewService(cfg, sup, panelHub, router, logger, metrics)
	if err := svc.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start service")
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := svc.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error during service shutdown")
	}

	logger.Info("Live chat supervisor shutdown complete")
}
