package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"live-chat-supervisor/pkg/constants"
	"live-chat-supervisor/pkg/metrics"
	"live-chat-supervisor/pkg/models"
)

// StreamPublisher forwards alerts to a Redis stream so every connected
// supervisor panel can play the sound, not just the process that saw the message.
// Panels each read through their own consumer group.
type StreamPublisher struct {
	rdb     *redis.Client
	logger  *logrus.Logger
	metrics *metrics.Metrics
	stream  string
}

func NewStreamPublisher(rdb *redis.Client, logger *logrus.Logger, metrics *metrics.Metrics) *StreamPublisher {
	return &StreamPublisher{
		rdb:     rdb,
		logger:  logger,
		metrics: metrics,
		stream:  constants.AlertEventsStream,
	}
}

func (sp *StreamPublisher) Alert(ctx context.Context, event models.AlertEvent) error {
	start := time.Now()
	defer func() {
		sp.metrics.RedisOperationDuration.WithLabelValues("publish_alert").Observe(time.Since(start).Seconds())
	}()

	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal alert event: %w", err)
	}

	streamArgs := &redis.XAddArgs{
		Stream: sp.stream,
		Values: map[string]interface{}{
			"conversation_id":  event.ConversationID,
			"display_name":     event.DisplayName,
			"message_id":       event.MessageID,
			"text":             event.Text,
			"matched_keywords": strings.Join(event.MatchedKeywords, ","),
			"detected_at":      event.DetectedAt.UnixMilli(),
			"attempt":          event.Attempt,
			"event_data":       string(eventData),
		},
	}

	streamID, err := sp.rdb.XAdd(ctx, streamArgs).Result()
	if err != nil {
		return fmt.Errorf("failed to add alert to stream: %w", err)
	}

	sp.logger.WithFields(logrus.Fields{
		"conversation_id": event.ConversationID,
		"message_id":      event.MessageID,
		"stream_id":       streamID,
	}).Debug("Published alert event to stream")

	return nil
}
