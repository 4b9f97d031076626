package alert

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"live-chat-supervisor/pkg/models"
)

// Alerter receives keyword alerts raised at append time
type Alerter interface {
	Alert(ctx context.Context, event models.AlertEvent) error
}

// AlerterFunc adapts a function to Alerter
type AlerterFunc func(ctx context.Context, event models.AlertEvent) error

func (f AlerterFunc) Alert(ctx context.Context, event models.AlertEvent) error {
	return f(ctx, event)
}

// Player is the zero-argument "play alert" side effect
type Player interface {
	Play()
}

// BellPlayer rings the terminal bell
type BellPlayer struct {
	mu  sync.Mutex
	out io.Writer
}

func NewBellPlayer(out io.Writer) *BellPlayer {
	return &BellPlayer{out: out}
}

func (p *BellPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out.Write([]byte("\a"))
}

// LogAlerter logs the alert and plays the sound, if a player is set
type LogAlerter struct {
	logger *logrus.Logger
	player Player
}

func NewLogAlerter(logger *logrus.Logger, player Player) *LogAlerter {
	return &LogAlerter{logger: logger, player: player}
}

func (a *LogAlerter) Alert(ctx context.Context, event models.AlertEvent) error {
	a.logger.WithFields(logrus.Fields{
		"conversation_id":  event.ConversationID,
		"display_name":     event.DisplayName,
		"message_id":       event.MessageID,
		"matched_keywords": event.MatchedKeywords,
	}).Warn("Crisis keyword detected")

	if a.player != nil {
		a.player.Play()
	}
	return nil
}

// Fanout delivers each alert to every alerter and joins their errors
type Fanout []Alerter

func (f Fanout) Alert(ctx context.Context, event models.AlertEvent) error {
	var errs []error
	for _, a := range f {
		if err := a.Alert(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
