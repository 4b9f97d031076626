package models

import "time"

// Sender identifies who wrote a message
type Sender string

const (
	SenderCustomer Sender = "customer"
	SenderAgent    Sender = "agent"
	SenderSystem   Sender = "system"
)

// Valid reports whether s is one of the known senders
func (s Sender) Valid() bool {
	switch s {
	case SenderCustomer, SenderAgent, SenderSystem:
		return true
	}
	return false
}

// Message is a single immutable chat entry
type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is one monitored support chat and its append-only message log
type Conversation struct {
	ID                    string     `json:"id"`
	DisplayName           string     `json:"display_name"`
	Messages              []Message  `json:"messages"`
	StartedAt             time.Time  `json:"started_at"`
	LastCustomerMessageAt *time.Time `json:"last_customer_message_at,omitempty"`
	LastAgentMessageAt    *time.Time `json:"last_agent_message_at,omitempty"`
	IsActive              bool       `json:"is_active"`
}

// LastMessage returns the most recently appended message, if any
func (c Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// Clone returns a deep copy that shares no memory with c
func (c Conversation) Clone() Conversation {
	out := c
	out.Messages = append([]Message(nil), c.Messages...)
	if c.LastCustomerMessageAt != nil {
		t := *c.LastCustomerMessageAt
		out.LastCustomerMessageAt = &t
	}
	if c.LastAgentMessageAt != nil {
		t := *c.LastAgentMessageAt
		out.LastAgentMessageAt = &t
	}
	return out
}

// Settings is the supervisor configuration owned by the caller
type Settings struct {
	DeadlineSeconds   int      `json:"deadline_seconds" yaml:"deadline_seconds"`
	Keywords          []string `json:"keywords" yaml:"keywords"`
	AlertsEnabled     bool     `json:"alerts_enabled" yaml:"alerts_enabled"`
	MonitoringEnabled bool     `json:"monitoring_enabled" yaml:"monitoring_enabled"`
}

// Deadline returns the reply deadline as a duration
func (s Settings) Deadline() time.Duration {
	return time.Duration(s.DeadlineSeconds) * time.Second
}

// Clone returns a copy with its own keyword slice
func (s Settings) Clone() Settings {
	out := s
	out.Keywords = append([]string(nil), s.Keywords...)
	return out
}

// LoadLevel describes how busy the monitored floor is
type LoadLevel string

const (
	LoadNormal   LoadLevel = "normal"
	LoadHigh     LoadLevel = "high"
	LoadCritical LoadLevel = "critical"
)

// ConversationStatus is the per-conversation view computed at evaluation time
type ConversationStatus struct {
	ConversationID    string   `json:"conversation_id"`
	DisplayName       string   `json:"display_name"`
	IsActive          bool     `json:"is_active"`
	IsAwaitingReply   bool     `json:"is_awaiting_reply"`
	SecondsWaiting    int      `json:"seconds_waiting"`
	IsDelayed         bool     `json:"is_delayed"`
	HasKeywordMatch   bool     `json:"has_keyword_match"`
	FlaggedMessageIDs []string `json:"flagged_message_ids,omitempty"`
}

// StatusSnapshot aggregates supervisor counts at a single evaluation time
type StatusSnapshot struct {
	ActiveCount   int                  `json:"active_count"`
	DelayedCount  int                  `json:"delayed_count"`
	CriticalCount int                  `json:"critical_count"`
	LoadLevel     LoadLevel            `json:"load_level"`
	EvaluatedAt   time.Time            `json:"evaluated_at"`
	Conversations []ConversationStatus `json:"conversations"`
}

// AlertEvent is raised when a customer message matches a crisis keyword
type AlertEvent struct {
	ConversationID  string    `json:"conversation_id"`
	DisplayName     string    `json:"display_name"`
	MessageID       string    `json:"message_id"`
	Text            string    `json:"text"`
	MatchedKeywords []string  `json:"matched_keywords"`
	DetectedAt      time.Time `json:"detected_at"`
	Attempt         int       `json:"attempt"`
}
