package ingest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"live-chat-supervisor/pkg/metrics"
	"live-chat-supervisor/pkg/models"
	"live-chat-supervisor/pkg/supervisor"
)

// ObservedMessage is one message node reported by the chat widget observer
type ObservedMessage struct {
	ConversationID string    `json:"conversation_id"`
	ElementID      string    `json:"element_id"`
	Author         string    `json:"author"`
	Classes        []string  `json:"classes"`
	Text           string    `json:"text"`
	ObservedAt     time.Time `json:"observed_at,omitempty"`
}

// Outcome says what happened to an observed message
type Outcome string

const (
	OutcomeRecorded     Outcome = "recorded"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeEmpty        Outcome = "empty"
	OutcomeUnclassified Outcome = "unclassified"
)

// Classifier guesses the sender from the widget markup. Matching against
// third-party markup is best effort; unknown nodes are reported, not guessed.
type Classifier struct {
	CustomerClasses []string
	AgentClasses    []string
	AgentAuthors    []string
}

// Classify returns the sender for an observed node, or false if it cannot tell
func (c Classifier) Classify(obs ObservedMessage) (models.Sender, bool) {
	for _, class := range obs.Classes {
		if containsFold(c.CustomerClasses, class) {
			return models.SenderCustomer, true
		}
		if containsFold(c.AgentClasses, class) {
			return models.SenderAgent, true
		}
	}

	if obs.Author != "" && containsFold(c.AgentAuthors, strings.TrimSpace(obs.Author)) {
		return models.SenderAgent, true
	}

	return "", false
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

// Observer turns observed widget messages into store appends, dropping
// repeats of the same element
type Observer struct {
	supervisor *supervisor.Supervisor
	classifier Classifier
	logger     *logrus.Logger
	metrics    *metrics.Metrics

	mu       sync.Mutex
	seen     map[string]struct{}
	seenRing []string
	next     int
}

func NewObserver(sup *supervisor.Supervisor, classifier Classifier, seenLimit int, logger *logrus.Logger, metrics *metrics.Metrics) *Observer {
	if seenLimit <= 0 {
		seenLimit = 1
	}
	return &Observer{
		supervisor: sup,
		classifier: classifier,
		logger:     logger,
		metrics:    metrics,
		seen:       make(map[string]struct{}, seenLimit),
		seenRing:   make([]string, seenLimit),
	}
}

// Observe records one observed message. Unknown conversation ids surface as
// store.NotFoundError; conversations are never created implicitly.
func (o *Observer) Observe(ctx context.Context, obs ObservedMessage) (Outcome, *supervisor.AppendResult, error) {
	text := strings.TrimSpace(obs.Text)
	if text == "" {
		o.count(OutcomeEmpty)
		return OutcomeEmpty, nil, nil
	}

	sender, ok := o.classifier.Classify(obs)
	if !ok {
		o.count(OutcomeUnclassified)
		o.logger.WithFields(logrus.Fields{
			"conversation_id": obs.ConversationID,
			"element_id":      obs.ElementID,
			"classes":         obs.Classes,
		}).Debug("Could not classify observed message")
		return OutcomeUnclassified, nil, nil
	}

	key := obs.ConversationID + "/" + obs.ElementID
	if obs.ElementID != "" && !o.reserve(key) {
		o.count(OutcomeDuplicate)
		return OutcomeDuplicate, nil, nil
	}

	var (
		result supervisor.AppendResult
		err    error
	)
	if obs.ObservedAt.IsZero() {
		result, err = o.supervisor.AppendMessage(ctx, obs.ConversationID, sender, text)
	} else {
		result, err = o.supervisor.AppendMessageAt(ctx, obs.ConversationID, sender, text, obs.ObservedAt)
	}
	if err != nil {
		if obs.ElementID != "" {
			o.forget(key)
		}
		o.metrics.IngestEvents.WithLabelValues("error").Inc()
		return "", nil, err
	}

	o.count(OutcomeRecorded)

	return OutcomeRecorded, &result, nil
}

func (o *Observer) count(outcome Outcome) {
	o.metrics.IngestEvents.WithLabelValues(string(outcome)).Inc()
}

// reserve marks key as seen and reports false if it already was. Once the
// window is full the oldest key is evicted.
func (o *Observer) reserve(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.seen[key]; ok {
		return false
	}
	if old := o.seenRing[o.next]; old != "" {
		delete(o.seen, old)
	}
	o.seenRing[o.next] = key
	o.seen[key] = struct{}{}
	o.next = (o.next + 1) % len(o.seenRing)
	return true
}

// forget releases a key whose append failed so a retry is not dropped
func (o *Observer) forget(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	delete(o.seen, key)
	for i, k := range o.seenRing {
		if k == key {
			o.seenRing[i] = ""
		}
	}
}
