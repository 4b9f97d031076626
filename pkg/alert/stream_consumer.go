package alert

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"live-chat-supervisor/pkg/constants"
	"live-chat-supervisor/pkg/metrics"
	"live-chat-supervisor/pkg/models"
)

// StreamConsumer reads alerts from the Redis stream as part of a consumer
// group and hands each one to a local Alerter, typically a LogAlerter with a bell.
// A group delivers each entry to one of its consumers, so every panel that must
// hear every alert needs a group of its own (see PanelGroup).
type StreamConsumer struct {
	rdb          *redis.Client
	logger       *logrus.Logger
	metrics      *metrics.Metrics
	handler      Alerter
	stream       string
	group        string
	consumerName string
	stopCh       chan struct{}
}

func NewStreamConsumer(rdb *redis.Client, group, instanceID string, handler Alerter, logger *logrus.Logger, metrics *metrics.Metrics) *StreamConsumer {
	return &StreamConsumer{
		rdb:          rdb,
		logger:       logger,
		metrics:      metrics,
		handler:      handler,
		stream:       constants.AlertEventsStream,
		group:        group,
		consumerName: fmt.Sprintf("consumer-%s", instanceID),
		stopCh:       make(chan struct{}),
	}
}

func (sc *StreamConsumer) Start(ctx context.Context) error {
	if err := sc.createConsumerGroup(ctx); err != nil {
		return err
	}

	sc.logger.WithField("consumer_name", sc.consumerName).Info("Starting alert stream consumer")

	go sc.consumeLoop(ctx)
	go sc.pendingMessagesRecovery(ctx)

	return nil
}

func (sc *StreamConsumer) Stop() {
	close(sc.stopCh)
}

// PanelGroup names the consumer group owned by a single panel instance
func PanelGroup(prefix, instanceID string) string {
	return fmt.Sprintf("%s:%s", prefix, instanceID)
}

// DestroyGroup removes the consumer group, used by panels on shutdown so
// their per-instance groups do not pile up on the stream
func (sc *StreamConsumer) DestroyGroup(ctx context.Context) error {
	if err := sc.rdb.XGroupDestroy(ctx, sc.stream, sc.group).Err(); err != nil {
		return fmt.Errorf("failed to destroy consumer group: %w", err)
	}
	return nil
}

func (sc *StreamConsumer) createConsumerGroup(ctx context.Context) error {
	err := sc.rdb.XGroupCreateMkStream(ctx, sc.stream, sc.group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	sc.logger.WithField("consumer_group", sc.group).Info("Consumer group ready")
	return nil
}

func (sc *StreamConsumer) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sc.stopCh:
			return
		default:
			sc.consumeMessages(ctx)
		}
	}
}

func (sc *StreamConsumer) consumeMessages(ctx context.Context) {
	streams, err := sc.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    sc.group,
		Consumer: sc.consumerName,
		Streams:  []string{sc.stream, ">"},
		Count:    10,
		Block:    1 * time.Second,
	}).Result()

	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			sc.logger.WithError(err).Error("Failed to read from alert stream")
			// Avoid a hot loop while Redis is unreachable
			time.Sleep(time.Second)
		}
		return
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			sc.processMessage(ctx, message)
		}
	}
}

func (sc *StreamConsumer) processMessage(ctx context.Context, message redis.XMessage) {
	start := time.Now()
	defer func() {
		sc.metrics.RedisOperationDuration.WithLabelValues("process_alert").Observe(time.Since(start).Seconds())
	}()

	event, err := parseAlertEvent(message)
	if err != nil {
		sc.logger.WithError(err).WithField("stream_id", message.ID).Error("Failed to parse alert event")
		sc.metrics.AlertStreamMessages.WithLabelValues("parse_error").Inc()
		// Acknowledge so a malformed entry is not redelivered forever
		sc.acknowledgeMessage(ctx, message.ID)
		return
	}

	if err := sc.handler.Alert(ctx, *event); err != nil {
		sc.logger.WithError(err).WithFields(logrus.Fields{
			"conversation_id": event.ConversationID,
			"stream_id":       message.ID,
		}).Error("Failed to handle alert event")
		sc.metrics.AlertStreamMessages.WithLabelValues("handler_error").Inc()
		return
	}

	if err := sc.acknowledgeMessage(ctx, message.ID); err != nil {
		sc.logger.WithError(err).WithField("stream_id", message.ID).Error("Failed to acknowledge alert")
		return
	}

	sc.metrics.AlertStreamMessages.WithLabelValues("success").Inc()
}

func parseAlertEvent(message redis.XMessage) (*models.AlertEvent, error) {
	event := &models.AlertEvent{}

	convID, ok := message.Values["conversation_id"].(string)
	if !ok || convID == "" {
		return nil, fmt.Errorf("missing or invalid conversation_id")
	}
	event.ConversationID = convID

	messageID, ok := message.Values["message_id"].(string)
	if !ok || messageID == "" {
		return nil, fmt.Errorf("missing or invalid message_id")
	}
	event.MessageID = messageID

	event.DisplayName, _ = message.Values["display_name"].(string)
	event.Text, _ = message.Values["text"].(string)

	if matched, ok := message.Values["matched_keywords"].(string); ok && matched != "" {
		event.MatchedKeywords = strings.Split(matched, ",")
	}

	detectedAtStr, ok := message.Values["detected_at"].(string)
	if !ok {
		return nil, fmt.Errorf("missing or invalid detected_at")
	}
	detectedAt, err := strconv.ParseInt(detectedAtStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid detected_at format: %w", err)
	}
	event.DetectedAt = time.UnixMilli(detectedAt)

	event.Attempt = 1
	if attemptStr, ok := message.Values["attempt"].(string); ok {
		attempt, err := strconv.Atoi(attemptStr)
		if err != nil {
			return nil, fmt.Errorf("invalid attempt format: %w", err)
		}
		event.Attempt = attempt
	}

	return event, nil
}

func (sc *StreamConsumer) acknowledgeMessage(ctx context.Context, messageID string) error {
	return sc.rdb.XAck(ctx, sc.stream, sc.group, messageID).Err()
}

func (sc *StreamConsumer) pendingMessagesRecovery(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sc.stopCh:
			return
		case <-ticker.C:
			sc.processPendingMessages(ctx)
		}
	}
}

func (sc *StreamConsumer) processPendingMessages(ctx context.Context) {
	pending, err := sc.rdb.XPending(ctx, sc.stream, sc.group).Result()
	if err != nil {
		sc.logger.WithError(err).Error("Failed to get pending alerts")
		return
	}

	if pending.Count == 0 {
		return
	}

	sc.logger.WithField("pending_count", pending.Count).Info("Reclaiming pending alerts")

	messages, _, err := sc.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   sc.stream,
		Group:    sc.group,
		Consumer: sc.consumerName,
		MinIdle:  1 * time.Minute,
		Count:    10,
		Start:    "0-0",
	}).Result()

	if err != nil {
		sc.logger.WithError(err).Error("Failed to auto-claim pending alerts")
		return
	}

	for _, message := range messages {
		sc.processMessage(ctx, message)
	}
}
