package constants

import "time"

// Default supervisor settings, applied when nothing has been persisted yet
const (
	// DefaultDeadlineSeconds - reply deadline before a waiting chat counts as delayed
	DefaultDeadlineSeconds = 120

	DefaultAlertsEnabled     = true
	DefaultMonitoringEnabled = true
)

// DefaultKeywords returns the crisis keywords flagged out of the box
func DefaultKeywords() []string {
	return []string{"refund", "komplain", "marah", "lama", "kecewa"}
}

// Load thresholds for the floor banner, compared against the active chat count
const (
	HighLoadThreshold     = 5
	CriticalLoadThreshold = 8
)

// ChatStartedText seeds every new conversation
const ChatStartedText = "Chat started"

// Redis key names
const (
	SettingsKey       = "supervisor:settings"
	AlertEventsStream = "supervisor_alerts"
)

// Ingest defaults mirror the class names the chat widget puts on message nodes
const (
	DefaultCustomerClass = "msg-customer"
	DefaultAgentClass    = "msg-agent"

	// DefaultSeenElementsLimit bounds the duplicate-suppression window
	DefaultSeenElementsLimit = 4096
)

// Configuration environment variable names
const (
	EnvPort                 = "PORT"
	EnvLogLevel             = "LOG_LEVEL"
	EnvRedisURL             = "REDIS_URL"
	EnvRedisEnabled         = "REDIS_ENABLED"
	EnvInstanceID           = "INSTANCE_ID"
	EnvEvaluationIntervalMS = "EVALUATION_INTERVAL_MS"
	EnvAlertConsumerGroup   = "ALERT_CONSUMER_GROUP"
	EnvSettingsFile         = "SETTINGS_FILE"
	EnvAlertBell            = "ALERT_BELL"
	EnvCustomerClasses      = "CUSTOMER_CLASSES"
	EnvAgentClasses         = "AGENT_CLASSES"
	EnvAgentAuthors         = "AGENT_AUTHORS"
)

// SecondsToDuration converts whole seconds to a time.Duration
func SecondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
