package settings

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-chat-supervisor/pkg/constants"
	"live-chat-supervisor/pkg/metrics"
	"live-chat-supervisor/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestDefault(t *testing.T) {
	s := Default()

	assert.Equal(t, 120, s.DeadlineSeconds)
	assert.Equal(t, []string{"refund", "komplain", "marah", "lama", "kecewa"}, s.Keywords)
	assert.True(t, s.AlertsEnabled)
	assert.True(t, s.MonitoringEnabled)
	assert.NoError(t, Validate(s))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.Settings)
		field   string
		wantErr bool
	}{
		{name: "defaults", mutate: func(*models.Settings) {}},
		{name: "empty keyword set", mutate: func(s *models.Settings) { s.Keywords = nil }},
		{name: "zero deadline", mutate: func(s *models.Settings) { s.DeadlineSeconds = 0 }, field: "deadline_seconds", wantErr: true},
		{name: "negative deadline", mutate: func(s *models.Settings) { s.DeadlineSeconds = -5 }, field: "deadline_seconds", wantErr: true},
		{name: "blank keyword", mutate: func(s *models.Settings) { s.Keywords = []string{"refund", "  "} }, field: "keywords", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(&s)

			err := Validate(s)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))

			var invalid *InvalidConfigError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, tt.field, invalid.Field)
		})
	}
}

func TestNormalize(t *testing.T) {
	in := models.Settings{
		DeadlineSeconds: 60,
		Keywords:        []string{" Refund", "refund", "MARAH ", "lama"},
	}

	out := Normalize(in)

	assert.Equal(t, []string{"refund", "marah", "lama"}, out.Keywords)
	// Input is left untouched
	assert.Equal(t, " Refund", in.Keywords[0])
}

func TestPrepare_RejectsInvalid(t *testing.T) {
	_, err := Prepare(models.Settings{DeadlineSeconds: 0})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("deadline_seconds: 90\nkeywords:\n  - Refund\n  - Chargeback\nalerts_enabled: false\n"), 0o600))

	s, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 90, s.DeadlineSeconds)
	assert.Equal(t, []string{"refund", "chargeback"}, s.Keywords)
	assert.False(t, s.AlertsEnabled)
	// Not present in the file, default kept
	assert.True(t, s.MonitoringEnabled)
}

func TestLoadFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("deadline_seconds: -1\n"), 0o600))

	_, err := LoadFile(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	_, err := repo.Load(ctx)
	assert.ErrorIs(t, err, ErrNotStored)

	s := Default()
	require.NoError(t, repo.Save(ctx, s))

	// Mutating the caller's copy must not leak into the stored value
	s.Keywords[0] = "changed"

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refund", loaded.Keywords[0])
}

func TestBootstrap_UsesDefaultsAndPersists(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	s, err := Bootstrap(ctx, repo, "", testLogger())
	require.NoError(t, err)
	assert.Equal(t, Default(), s)

	stored, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, s, stored)
}

func TestBootstrap_PrefersStored(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Save(ctx, models.Settings{DeadlineSeconds: 30, Keywords: []string{"Angry"}}))

	s, err := Bootstrap(ctx, repo, "", testLogger())
	require.NoError(t, err)
	assert.Equal(t, 30, s.DeadlineSeconds)
	assert.Equal(t, []string{"angry"}, s.Keywords)
}

func TestBootstrap_ReplacesInvalidStored(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Save(ctx, models.Settings{DeadlineSeconds: 0}))

	s, err := Bootstrap(ctx, repo, "", testLogger())
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultDeadlineSeconds, s.DeadlineSeconds)
}

func setupTestRedis(t *testing.T) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   3, // Use test database
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		t.Skipf("Redis not available: %v", err)
	}

	rdb.FlushDB(ctx)
	return rdb
}

func TestRedisRepository_RoundTrip(t *testing.T) {
	rdb := setupTestRedis(t)
	defer rdb.Close()

	repo := NewRedisRepository(rdb, testLogger(), metrics.NewMetrics(prometheus.NewRegistry()))
	ctx := context.Background()

	_, err := repo.Load(ctx)
	assert.ErrorIs(t, err, ErrNotStored)

	s := models.Settings{DeadlineSeconds: 45, Keywords: []string{"refund"}, MonitoringEnabled: true}
	require.NoError(t, repo.Save(ctx, s))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}
