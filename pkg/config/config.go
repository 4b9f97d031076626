package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"live-chat-supervisor/pkg/constants"
)

type Config struct {
	Port                 string
	LogLevel             string
	RedisURL             string
	RedisEnabled         bool
	InstanceID           string
	EvaluationIntervalMS int64
	AlertConsumerGroup   string
	SettingsFile         string
	AlertBell            bool
	CustomerClasses      []string
	AgentClasses         []string
	AgentAuthors         []string
}

func Load() *Config {
	config := &Config{
		Port:                 getEnv(constants.EnvPort, "8080"),
		LogLevel:             getEnv(constants.EnvLogLevel, "info"),
		RedisURL:             getEnv(constants.EnvRedisURL, "redis://localhost:6379"),
		RedisEnabled:         getEnvBool(constants.EnvRedisEnabled, false),
		InstanceID:           getEnv(constants.EnvInstanceID, generateInstanceID()),
		EvaluationIntervalMS: getEnvInt64(constants.EnvEvaluationIntervalMS, 1000),
		AlertConsumerGroup:   getEnv(constants.EnvAlertConsumerGroup, "supervisor-panels"),
		SettingsFile:         getEnv(constants.EnvSettingsFile, ""),
		AlertBell:            getEnvBool(constants.EnvAlertBell, true),
		CustomerClasses:      getEnvList(constants.EnvCustomerClasses, []string{constants.DefaultCustomerClass}),
		AgentClasses:         getEnvList(constants.EnvAgentClasses, []string{constants.DefaultAgentClass}),
		AgentAuthors:         getEnvList(constants.EnvAgentAuthors, nil),
	}

	return config
}

func (c *Config) EvaluationInterval() time.Duration {
	if c.EvaluationIntervalMS <= 0 {
		return time.Second
	}
	return time.Duration(c.EvaluationIntervalMS) * time.Millisecond
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping blank entries
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func generateInstanceID() string {
	hostname, err := os.Hostname()
	if err != nil {
		return uuid.New().String()
	}
	return hostname + "-" + uuid.New().String()[:8]
}
