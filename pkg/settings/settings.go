package settings

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"live-chat-supervisor/pkg/constants"
	"live-chat-supervisor/pkg/models"
)

// ErrInvalidConfig is matched by every InvalidConfigError via errors.Is
var ErrInvalidConfig = errors.New("invalid supervisor settings")

// InvalidConfigError reports a settings value the engine refuses to run with
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Default returns the out-of-the-box supervisor settings
func Default() models.Settings {
	return models.Settings{
		DeadlineSeconds:   constants.DefaultDeadlineSeconds,
		Keywords:          constants.DefaultKeywords(),
		AlertsEnabled:     constants.DefaultAlertsEnabled,
		MonitoringEnabled: constants.DefaultMonitoringEnabled,
	}
}

// Validate rejects a non-positive deadline and blank keyword entries
func Validate(s models.Settings) error {
	if s.DeadlineSeconds <= 0 {
		return &InvalidConfigError{
			Field:  "deadline_seconds",
			Reason: fmt.Sprintf("must be positive, got %d", s.DeadlineSeconds),
		}
	}

	for i, k := range s.Keywords {
		if strings.TrimSpace(k) == "" {
			return &InvalidConfigError{
				Field:  "keywords",
				Reason: fmt.Sprintf("entry %d is empty", i),
			}
		}
	}

	return nil
}

// Normalize trims and lowercases keywords and drops duplicates, keeping first-seen order
func Normalize(s models.Settings) models.Settings {
	out := s.Clone()
	out.Keywords = out.Keywords[:0]

	seen := make(map[string]struct{}, len(s.Keywords))
	for _, k := range s.Keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out.Keywords = append(out.Keywords, k)
	}

	return out
}

// Prepare validates s and returns its normalized form
func Prepare(s models.Settings) (models.Settings, error) {
	if err := Validate(s); err != nil {
		return models.Settings{}, err
	}
	return Normalize(s), nil
}

// LoadFile reads a YAML settings seed. Fields absent from the file keep their defaults.
func LoadFile(path string) (models.Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Settings{}, fmt.Errorf("reading settings file: %w", err)
	}

	s := Default()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return models.Settings{}, fmt.Errorf("parsing settings file: %w", err)
	}

	return Prepare(s)
}
