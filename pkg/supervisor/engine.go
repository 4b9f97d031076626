package supervisor

import (
	"strings"
	"time"

	"live-chat-supervisor/pkg/constants"
	"live-chat-supervisor/pkg/models"
)

// Matches reports whether text contains any keyword, case-insensitively.
// Empty keywords never match.
func Matches(text string, keywords []string) bool {
	lowered := strings.ToLower(text)
	for _, k := range keywords {
		if k != "" && strings.Contains(lowered, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// MatchedKeywords returns every keyword found in text, in keyword order
func MatchedKeywords(text string, keywords []string) []string {
	lowered := strings.ToLower(text)

	var matched []string
	for _, k := range keywords {
		if k != "" && strings.Contains(lowered, strings.ToLower(k)) {
			matched = append(matched, k)
		}
	}
	return matched
}

// IsCritical reports whether any customer message ever matched a keyword
func IsCritical(conv models.Conversation, keywords []string) bool {
	return len(flaggedMessages(conv, keywords)) > 0
}

func flaggedMessages(conv models.Conversation, keywords []string) []string {
	if len(keywords) == 0 {
		return nil
	}

	var ids []string
	for _, m := range conv.Messages {
		if m.Sender == models.SenderCustomer && Matches(m.Text, keywords) {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// Assess computes the delay and keyword state of one conversation at now
func Assess(conv models.Conversation, settings models.Settings, now time.Time) models.ConversationStatus {
	status := models.ConversationStatus{
		ConversationID:    conv.ID,
		DisplayName:       conv.DisplayName,
		IsActive:          conv.IsActive,
		FlaggedMessageIDs: flaggedMessages(conv, settings.Keywords),
	}
	status.HasKeywordMatch = len(status.FlaggedMessageIDs) > 0

	last, ok := conv.LastMessage()
	if !ok || last.Sender != models.SenderCustomer {
		return status
	}
	status.IsAwaitingReply = true

	waitingSince := last.Timestamp
	if conv.LastCustomerMessageAt != nil {
		waitingSince = *conv.LastCustomerMessageAt
	}

	status.SecondsWaiting = secondsBetween(waitingSince, now)
	status.IsDelayed = status.SecondsWaiting > settings.DeadlineSeconds

	return status
}

// secondsBetween floors the elapsed time to whole seconds; a clock that reads
// earlier than the message yields zero rather than a negative wait
func secondsBetween(from, to time.Time) int {
	elapsed := to.Sub(from)
	if elapsed <= 0 {
		return 0
	}
	return int(elapsed / time.Second)
}

// Evaluate aggregates counts over the active conversations and returns a view
// of every conversation in input order. It reads no clock and mutates nothing.
func Evaluate(conversations []models.Conversation, settings models.Settings, now time.Time) models.StatusSnapshot {
	snapshot := models.StatusSnapshot{
		EvaluatedAt:   now,
		Conversations: make([]models.ConversationStatus, 0, len(conversations)),
	}

	for _, conv := range conversations {
		status := Assess(conv, settings, now)
		snapshot.Conversations = append(snapshot.Conversations, status)

		if !conv.IsActive {
			continue
		}
		snapshot.ActiveCount++
		if status.IsDelayed {
			snapshot.DelayedCount++
		}
		if status.HasKeywordMatch {
			snapshot.CriticalCount++
		}
	}

	snapshot.LoadLevel = LoadLevelFor(snapshot.ActiveCount)
	return snapshot
}

// ShouldAlert decides, once per appended message, whether to fire the alert side effect
func ShouldAlert(msg models.Message, settings models.Settings) bool {
	return msg.Sender == models.SenderCustomer &&
		settings.MonitoringEnabled &&
		settings.AlertsEnabled &&
		Matches(msg.Text, settings.Keywords)
}

// LoadLevelFor maps the active conversation count to a floor load level
func LoadLevelFor(active int) models.LoadLevel {
	switch {
	case active > constants.CriticalLoadThreshold:
		return models.LoadCritical
	case active > constants.HighLoadThreshold:
		return models.LoadHigh
	default:
		return models.LoadNormal
	}
}
