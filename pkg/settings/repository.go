package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"live-chat-supervisor/pkg/constants"
	"live-chat-supervisor/pkg/metrics"
	"live-chat-supervisor/pkg/models"
)

// ErrNotStored is returned by Load when nothing has been saved yet
var ErrNotStored = errors.New("settings not stored")

// Repository persists the supervisor settings between restarts
type Repository interface {
	Load(ctx context.Context) (models.Settings, error)
	Save(ctx context.Context, s models.Settings) error
}

// MemoryRepository keeps settings for the lifetime of the process
type MemoryRepository struct {
	mu     sync.RWMutex
	stored *models.Settings
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Load(ctx context.Context) (models.Settings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.stored == nil {
		return models.Settings{}, ErrNotStored
	}
	return r.stored.Clone(), nil
}

func (r *MemoryRepository) Save(ctx context.Context, s models.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := s.Clone()
	r.stored = &stored
	return nil
}

// RedisRepository stores settings as a JSON document under a single key
type RedisRepository struct {
	rdb     *redis.Client
	key     string
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

func NewRedisRepository(rdb *redis.Client, logger *logrus.Logger, metrics *metrics.Metrics) *RedisRepository {
	return &RedisRepository{
		rdb:     rdb,
		key:     constants.SettingsKey,
		logger:  logger,
		metrics: metrics,
	}
}

func (r *RedisRepository) Load(ctx context.Context) (models.Settings, error) {
	start := time.Now()
	defer func() {
		r.metrics.RedisOperationDuration.WithLabelValues("load_settings").Observe(time.Since(start).Seconds())
	}()

	raw, err := r.rdb.Get(ctx, r.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return models.Settings{}, ErrNotStored
		}
		return models.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}

	var s models.Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return models.Settings{}, fmt.Errorf("invalid stored settings: %w", err)
	}

	return s, nil
}

func (r *RedisRepository) Save(ctx context.Context, s models.Settings) error {
	start := time.Now()
	defer func() {
		r.metrics.RedisOperationDuration.WithLabelValues("save_settings").Observe(time.Since(start).Seconds())
	}()

	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := r.rdb.Set(ctx, r.key, raw, 0).Err(); err != nil {
		r.logger.WithError(err).WithField("key", r.key).Error("Failed to save settings")
		return fmt.Errorf("failed to save settings: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"deadline_seconds": s.DeadlineSeconds,
		"keywords":         len(s.Keywords),
	}).Debug("Saved supervisor settings")

	return nil
}

// Bootstrap resolves the settings to start with: whatever the repository
// holds, else the seed file, else the defaults. A freshly resolved value is
// written back so the next start finds it.
func Bootstrap(ctx context.Context, repo Repository, seedFile string, logger *logrus.Logger) (models.Settings, error) {
	stored, err := repo.Load(ctx)
	if err == nil {
		prepared, perr := Prepare(stored)
		if perr == nil {
			return prepared, nil
		}
		logger.WithError(perr).Warn("Stored settings are invalid, falling back to defaults")
	} else if !errors.Is(err, ErrNotStored) {
		return models.Settings{}, err
	}

	s := Default()
	if seedFile != "" {
		seeded, err := LoadFile(seedFile)
		if err != nil {
			return models.Settings{}, err
		}
		s = seeded
		logger.WithField("path", seedFile).Info("Loaded settings seed file")
	}

	if err := repo.Save(ctx, s); err != nil {
		return models.Settings{}, err
	}
	return s, nil
}
