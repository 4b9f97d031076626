package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"live-chat-supervisor/pkg/constants"
	"live-chat-supervisor/pkg/models"
)

// ErrNotFound is matched by every NotFoundError via errors.Is
var ErrNotFound = errors.New("conversation not found")

// ErrInvalidSender is returned when a message carries an unknown sender
var ErrInvalidSender = errors.New("invalid sender")

// NotFoundError reports an operation on an unknown conversation id
type NotFoundError struct {
	ConversationID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("conversation %q not found", e.ConversationID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// entry guards a single conversation so appends to the same chat serialize
// while appends to different chats proceed independently
type entry struct {
	mu   sync.Mutex
	conv models.Conversation
}

// ConversationStore is the authoritative append-only log of conversations
type ConversationStore struct {
	mu    sync.RWMutex
	byID  map[string]*entry
	order []*entry
	clock func() time.Time
	newID func() string
}

// Option customizes a ConversationStore
type Option func(*ConversationStore)

// WithClock overrides the time source used to stamp new conversations and messages
func WithClock(clock func() time.Time) Option {
	return func(s *ConversationStore) {
		s.clock = clock
	}
}

// WithIDGenerator overrides the id generator
func WithIDGenerator(newID func() string) Option {
	return func(s *ConversationStore) {
		s.newID = newID
	}
}

func NewConversationStore(opts ...Option) *ConversationStore {
	s := &ConversationStore{
		byID:  make(map[string]*entry),
		clock: time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateConversation registers a new active conversation seeded with a system message
func (s *ConversationStore) CreateConversation(displayName string) models.Conversation {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if displayName == "" {
		displayName = fmt.Sprintf("Customer %d", len(s.order)+1)
	}

	e := &entry{conv: models.Conversation{
		ID:          s.newID(),
		DisplayName: displayName,
		Messages: []models.Message{{
			ID:        s.newID(),
			Sender:    models.SenderSystem,
			Text:      constants.ChatStartedText,
			Timestamp: now,
		}},
		StartedAt: now,
		IsActive:  true,
	}}

	s.byID[e.conv.ID] = e
	s.order = append(s.order, e)

	return e.conv.Clone()
}

// AppendMessage appends a message stamped with the store clock. The clock is
// read under the conversation lock so log order and timestamps agree.
func (s *ConversationStore) AppendMessage(conversationID string, sender models.Sender, text string) (models.Message, error) {
	return s.appendMessage(conversationID, sender, text, nil)
}

// AppendMessageAt appends a message observed at the given instant. The
// conversation's last-sender caches are updated in the same critical section
// as the log so readers never see one without the other.
func (s *ConversationStore) AppendMessageAt(conversationID string, sender models.Sender, text string, at time.Time) (models.Message, error) {
	return s.appendMessage(conversationID, sender, text, &at)
}

func (s *ConversationStore) appendMessage(conversationID string, sender models.Sender, text string, at *time.Time) (models.Message, error) {
	if !sender.Valid() {
		return models.Message{}, fmt.Errorf("%w: %q", ErrInvalidSender, sender)
	}

	e, err := s.lookup(conversationID)
	if err != nil {
		return models.Message{}, err
	}

	msg := models.Message{
		ID:     s.newID(),
		Sender: sender,
		Text:   text,
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if at != nil {
		msg.Timestamp = *at
	} else {
		msg.Timestamp = s.clock()
	}

	e.conv.Messages = append(e.conv.Messages, msg)
	switch sender {
	case models.SenderCustomer:
		ts := msg.Timestamp
		e.conv.LastCustomerMessageAt = &ts
	case models.SenderAgent:
		ts := msg.Timestamp
		e.conv.LastAgentMessageAt = &ts
	}

	return msg, nil
}

// SetActive includes or excludes a conversation from aggregate counts
func (s *ConversationStore) SetActive(conversationID string, active bool) error {
	e, err := s.lookup(conversationID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.conv.IsActive = active
	e.mu.Unlock()

	return nil
}

// GetConversation returns a snapshot of one conversation
func (s *ConversationStore) GetConversation(conversationID string) (models.Conversation, error) {
	e, err := s.lookup(conversationID)
	if err != nil {
		return models.Conversation{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conv.Clone(), nil
}

// ListConversations returns snapshots of every conversation in creation order
func (s *ConversationStore) ListConversations() []models.Conversation {
	s.mu.RLock()
	entries := append([]*entry(nil), s.order...)
	s.mu.RUnlock()

	out := make([]models.Conversation, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.conv.Clone())
		e.mu.Unlock()
	}
	return out
}

// Len returns the number of conversations ever created
func (s *ConversationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *ConversationStore) lookup(conversationID string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.byID[conversationID]
	s.mu.RUnlock()

	if !ok {
		return nil, &NotFoundError{ConversationID: conversationID}
	}
	return e, nil
}
