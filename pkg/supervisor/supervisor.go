package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"live-chat-supervisor/pkg/alert"
	"live-chat-supervisor/pkg/metrics"
	"live-chat-supervisor/pkg/models"
	"live-chat-supervisor/pkg/settings"
	"live-chat-supervisor/pkg/store"
)

// AppendResult is what the caller learns about a freshly appended message
type AppendResult struct {
	Message         models.Message `json:"message"`
	Alert           bool           `json:"alert"`
	MatchedKeywords []string       `json:"matched_keywords,omitempty"`
}

// Supervisor holds the latest settings handed to it and runs the engine over
// the conversation store. Only the store mutates conversation data.
type Supervisor struct {
	store   *store.ConversationStore
	alerter alert.Alerter
	logger  *logrus.Logger
	metrics *metrics.Metrics

	updateMu sync.Mutex
	mu       sync.RWMutex
	settings models.Settings
}

func NewSupervisor(conversations *store.ConversationStore, initial models.Settings, alerter alert.Alerter, logger *logrus.Logger, metrics *metrics.Metrics) (*Supervisor, error) {
	prepared, err := settings.Prepare(initial)
	if err != nil {
		return nil, err
	}

	return &Supervisor{
		store:    conversations,
		alerter:  alerter,
		logger:   logger,
		metrics:  metrics,
		settings: prepared,
	}, nil
}

// CreateConversation starts monitoring a new conversation
func (s *Supervisor) CreateConversation(displayName string) models.Conversation {
	conv := s.store.CreateConversation(displayName)

	s.logger.WithFields(logrus.Fields{
		"conversation_id": conv.ID,
		"display_name":    conv.DisplayName,
	}).Info("Conversation created")

	return conv
}

// AppendMessage records a message stamped now and runs the alert decision for it
func (s *Supervisor) AppendMessage(ctx context.Context, conversationID string, sender models.Sender, text string) (AppendResult, error) {
	msg, err := s.store.AppendMessage(conversationID, sender, text)
	if err != nil {
		return AppendResult{}, err
	}
	return s.afterAppend(ctx, conversationID, msg), nil
}

// AppendMessageAt records a message observed at a caller-supplied instant
func (s *Supervisor) AppendMessageAt(ctx context.Context, conversationID string, sender models.Sender, text string, at time.Time) (AppendResult, error) {
	msg, err := s.store.AppendMessageAt(conversationID, sender, text, at)
	if err != nil {
		return AppendResult{}, err
	}
	return s.afterAppend(ctx, conversationID, msg), nil
}

func (s *Supervisor) afterAppend(ctx context.Context, conversationID string, msg models.Message) AppendResult {
	s.metrics.MessagesAppended.WithLabelValues(string(msg.Sender)).Inc()

	cfg := s.GetConfig()
	result := AppendResult{Message: msg}

	if msg.Sender == models.SenderCustomer {
		result.MatchedKeywords = MatchedKeywords(msg.Text, cfg.Keywords)
	}
	result.Alert = ShouldAlert(msg, cfg)

	s.logger.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"message_id":      msg.ID,
		"sender":          msg.Sender,
		"alert":           result.Alert,
	}).Debug("Message appended")

	if result.Alert {
		s.raiseAlert(ctx, conversationID, msg, result.MatchedKeywords)
	}

	return result
}

// raiseAlert hands the alert to the side-effect collaborator. A failing
// alerter is logged; the message stays appended.
func (s *Supervisor) raiseAlert(ctx context.Context, conversationID string, msg models.Message, matched []string) {
	s.metrics.AlertsRaised.Inc()

	event := models.AlertEvent{
		ConversationID:  conversationID,
		MessageID:       msg.ID,
		Text:            msg.Text,
		MatchedKeywords: matched,
		DetectedAt:      msg.Timestamp,
		Attempt:         1,
	}
	if conv, err := s.store.GetConversation(conversationID); err == nil {
		event.DisplayName = conv.DisplayName
	}

	if s.alerter == nil {
		return
	}
	if err := s.alerter.Alert(ctx, event); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"conversation_id": conversationID,
			"message_id":      msg.ID,
		}).Error("Failed to deliver keyword alert")
	}
}

// SetActive includes or excludes a conversation from the aggregate counts
func (s *Supervisor) SetActive(conversationID string, active bool) error {
	if err := s.store.SetActive(conversationID, active); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"active":          active,
	}).Info("Conversation activity changed")
	return nil
}

// Conversation returns a snapshot of one conversation
func (s *Supervisor) Conversation(conversationID string) (models.Conversation, error) {
	return s.store.GetConversation(conversationID)
}

// Conversations returns snapshots of all conversations in creation order
func (s *Supervisor) Conversations() []models.Conversation {
	return s.store.ListConversations()
}

// Evaluate computes the status snapshot at now with the current settings
func (s *Supervisor) Evaluate(now time.Time) models.StatusSnapshot {
	start := time.Now()
	defer func() {
		s.metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	}()

	return Evaluate(s.store.ListConversations(), s.GetConfig(), now)
}

// SettingsSaver persists settings before the supervisor applies them
type SettingsSaver interface {
	Save(ctx context.Context, s models.Settings) error
}

// UpdateConfig derives new settings from the current ones, validates them,
// saves them through saver (when non-nil) and only then installs them. Updates
// are serialised, so a failed save leaves both the engine and the stored copy
// on the previous settings.
func (s *Supervisor) UpdateConfig(ctx context.Context, saver SettingsSaver, mutate func(current models.Settings) models.Settings) (models.Settings, error) {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	prepared, err := settings.Prepare(mutate(s.GetConfig()))
	if err != nil {
		s.logger.WithError(err).Warn("Rejected supervisor settings")
		return models.Settings{}, err
	}

	if saver != nil {
		if err := saver.Save(ctx, prepared); err != nil {
			return models.Settings{}, fmt.Errorf("failed to persist settings: %w", err)
		}
	}

	s.mu.Lock()
	s.settings = prepared
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"deadline_seconds":   prepared.DeadlineSeconds,
		"keywords":           len(prepared.Keywords),
		"alerts_enabled":     prepared.AlertsEnabled,
		"monitoring_enabled": prepared.MonitoringEnabled,
	}).Info("Supervisor settings updated")
	return prepared.Clone(), nil
}

// SetConfig validates and installs new settings without persisting them
func (s *Supervisor) SetConfig(cfg models.Settings) error {
	_, err := s.UpdateConfig(context.Background(), nil, func(models.Settings) models.Settings {
		return cfg
	})
	return err
}

// GetConfig returns a copy of the current settings
func (s *Supervisor) GetConfig() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Clone()
}

// ToggleMonitoring flips MonitoringEnabled and returns the resulting settings
func (s *Supervisor) ToggleMonitoring() models.Settings {
	out, _ := s.UpdateConfig(context.Background(), nil, FlipMonitoring)
	return out
}

// FlipMonitoring is the settings change behind the monitoring toggle
func FlipMonitoring(current models.Settings) models.Settings {
	current.MonitoringEnabled = !current.MonitoringEnabled
	return current
}
