package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"live-chat-supervisor/pkg/alert"
	"live-chat-supervisor/pkg/config"
	"live-chat-supervisor/pkg/metrics"
	"live-chat-supervisor/pkg/models"
	"live-chat-supervisor/pkg/panel"
	redisClient "live-chat-supervisor/pkg/redis"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "supervisor base URL")
	interval := flag.Duration("interval", 2*time.Second, "refresh interval")
	flag.Parse()

	if err := run(*addr, *interval); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(addr string, interval time.Duration) error {
	cfg := config.Load()

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	logger.SetOutput(os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	color.New(color.FgCyan).Printf("Watching %s every %s\n\n", addr, interval)

	if cfg.RedisEnabled {
		rdb, err := redisClient.NewClient(redisClient.DefaultConnectionConfig(cfg.RedisURL), logger)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()

		var player alert.Player
		if cfg.AlertBell {
			player = alert.NewBellPlayer(os.Stdout)
		}
		printer := alert.AlerterFunc(func(ctx context.Context, event models.AlertEvent) error {
			fmt.Println(panel.AlertLine(event))
			if player != nil {
				player.Play()
			}
			return nil
		})

		group := alert.PanelGroup(cfg.AlertConsumerGroup, cfg.InstanceID)
		consumer := alert.NewStreamConsumer(rdb.Raw(), group, "panel-"+cfg.InstanceID, printer, logger,
			metrics.NewMetrics(prometheus.NewRegistry()))
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("starting alert consumer: %w", err)
		}
		defer func() {
			consumer.Stop()
			if err := consumer.DestroyGroup(context.Background()); err != nil {
				logger.WithError(err).Warn("Failed to remove panel consumer group")
			}
		}()
	}

	client := panel.NewClient(addr, 5*time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		snapshot, err := client.Status(ctx)
		if err != nil {
			color.Red("%v", err)
		} else {
			panel.Render(os.Stdout, snapshot)
			fmt.Println()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
