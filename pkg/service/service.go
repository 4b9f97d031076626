package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"live-chat-supervisor/pkg/config"
	"live-chat-supervisor/pkg/hub"
	"live-chat-supervisor/pkg/metrics"
	"live-chat-supervisor/pkg/models"
	"live-chat-supervisor/pkg/server"
)

// Evaluator is the slice of the supervisor the evaluation loop needs.
type Evaluator interface {
	Evaluate(now time.Time) models.StatusSnapshot
}

// Service runs the periodic evaluation loop, the panel hub and the HTTP API.
type Service struct {
	config    *config.Config
	logger    *logrus.Logger
	metrics   *metrics.Metrics
	evaluator Evaluator
	hub       *hub.Hub
	router    http.Handler
	server    *http.Server
	now       func() time.Time

	lastDelayed  int
	lastCritical int
	lastLoad     models.LoadLevel
}

func NewService(cfg *config.Config, evaluator Evaluator, panelHub *hub.Hub, router http.Handler, logger *logrus.Logger, metrics *metrics.Metrics) *Service {
	return &Service{
		config:    cfg,
		logger:    logger,
		metrics:   metrics,
		evaluator: evaluator,
		hub:       panelHub,
		router:    router,
		now:       time.Now,
		lastLoad:  models.LoadNormal,
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("Starting live chat supervisor service")

	if s.hub != nil {
		go s.hub.Run(ctx)
	}

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	go s.evaluationLoop(ctx)

	s.logger.WithFields(logrus.Fields{
		"instance_id": s.config.InstanceID,
		"interval":    s.config.EvaluationInterval(),
	}).Info("Supervisor service started successfully")
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.logger.Info("Stopping supervisor service")

	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.WithError(err).Error("Failed to shutdown HTTP server gracefully")
			return err
		}
	}

	s.logger.Info("Supervisor service stopped")
	return nil
}

func (s *Service) startHTTPServer() error {
	if s.router == nil {
		return fmt.Errorf("no router configured")
	}
	s.server = server.NewHTTPServer(s.config.Port, s.router)

	go func() {
		s.logger.WithField("port", s.config.Port).Info("Starting HTTP server")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	return nil
}

func (s *Service) evaluationLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.EvaluationInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick runs one evaluation pass and pushes the snapshot to metrics and the panel.
func (s *Service) tick() models.StatusSnapshot {
	snapshot := s.evaluator.Evaluate(s.now())

	s.metrics.ObserveSnapshot(snapshot)
	if s.hub != nil {
		s.hub.PublishSnapshot(snapshot)
	}

	if snapshot.DelayedCount != s.lastDelayed || snapshot.CriticalCount != s.lastCritical || snapshot.LoadLevel != s.lastLoad {
		entry := s.logger.WithFields(logrus.Fields{
			"active":     snapshot.ActiveCount,
			"delayed":    snapshot.DelayedCount,
			"critical":   snapshot.CriticalCount,
			"load_level": snapshot.LoadLevel,
		})
		if snapshot.DelayedCount > s.lastDelayed || snapshot.LoadLevel != models.LoadNormal {
			entry.Warn("Supervisor status changed")
		} else {
			entry.Info("Supervisor status changed")
		}
		s.lastDelayed = snapshot.DelayedCount
		s.lastCritical = snapshot.CriticalCount
		s.lastLoad = snapshot.LoadLevel
	}

	return snapshot
}
