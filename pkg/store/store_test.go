package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-chat-supervisor/pkg/constants"
	"live-chat-supervisor/pkg/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestConversationStore_CreateConversation(t *testing.T) {
	clock := newFakeClock()
	s := NewConversationStore(WithClock(clock.Now))

	conv := s.CreateConversation("Budi")

	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, "Budi", conv.DisplayName)
	assert.True(t, conv.IsActive)
	assert.Equal(t, clock.Now(), conv.StartedAt)
	assert.Nil(t, conv.LastCustomerMessageAt)
	assert.Nil(t, conv.LastAgentMessageAt)

	require.Len(t, conv.Messages, 1)
	assert.Equal(t, models.SenderSystem, conv.Messages[0].Sender)
	assert.Equal(t, constants.ChatStartedText, conv.Messages[0].Text)
	assert.Equal(t, clock.Now(), conv.Messages[0].Timestamp)
}

func TestConversationStore_CreateConversation_DefaultName(t *testing.T) {
	s := NewConversationStore()

	first := s.CreateConversation("")
	second := s.CreateConversation("")

	assert.Equal(t, "Customer 1", first.DisplayName)
	assert.Equal(t, "Customer 2", second.DisplayName)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestConversationStore_AppendCustomerMessage(t *testing.T) {
	clock := newFakeClock()
	s := NewConversationStore(WithClock(clock.Now))
	conv := s.CreateConversation("Budi")

	clock.Advance(5 * time.Second)
	msg, err := s.AppendMessage(conv.ID, models.SenderCustomer, "halo")
	require.NoError(t, err)

	got, err := s.GetConversation(conv.ID)
	require.NoError(t, err)

	require.NotNil(t, got.LastCustomerMessageAt)
	assert.Equal(t, msg.Timestamp, *got.LastCustomerMessageAt)
	assert.Nil(t, got.LastAgentMessageAt)

	last, ok := got.LastMessage()
	require.True(t, ok)
	assert.Equal(t, msg, last)
}

func TestConversationStore_AppendAgentMessage_LeavesCustomerTimestamp(t *testing.T) {
	clock := newFakeClock()
	s := NewConversationStore(WithClock(clock.Now))
	conv := s.CreateConversation("Budi")

	customer, err := s.AppendMessage(conv.ID, models.SenderCustomer, "halo")
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	agent, err := s.AppendMessage(conv.ID, models.SenderAgent, "Hi, how can I help?")
	require.NoError(t, err)

	got, err := s.GetConversation(conv.ID)
	require.NoError(t, err)

	assert.Equal(t, customer.Timestamp, *got.LastCustomerMessageAt)
	assert.Equal(t, agent.Timestamp, *got.LastAgentMessageAt)
}

func TestConversationStore_AppendSystemMessage_UpdatesNeitherTimestamp(t *testing.T) {
	s := NewConversationStore()
	conv := s.CreateConversation("Budi")

	_, err := s.AppendMessage(conv.ID, models.SenderSystem, "transferred")
	require.NoError(t, err)

	got, err := s.GetConversation(conv.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LastCustomerMessageAt)
	assert.Nil(t, got.LastAgentMessageAt)
	assert.Len(t, got.Messages, 2)
}

func TestConversationStore_AppendUnknownConversation(t *testing.T) {
	s := NewConversationStore()
	conv := s.CreateConversation("Budi")

	_, err := s.AppendMessage("missing", models.SenderCustomer, "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "missing", notFound.ConversationID)

	// Store is unchanged
	assert.Equal(t, 1, s.Len())
	got, err := s.GetConversation(conv.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1)
}

func TestConversationStore_AppendInvalidSender(t *testing.T) {
	s := NewConversationStore()
	conv := s.CreateConversation("Budi")

	_, err := s.AppendMessage(conv.ID, models.Sender("bot"), "beep")
	assert.ErrorIs(t, err, ErrInvalidSender)
}

func TestConversationStore_CachedTimestampsMatchLog(t *testing.T) {
	clock := newFakeClock()
	s := NewConversationStore(WithClock(clock.Now))
	conv := s.CreateConversation("Budi")

	senders := []models.Sender{
		models.SenderCustomer, models.SenderAgent, models.SenderCustomer,
		models.SenderSystem, models.SenderCustomer, models.SenderAgent,
	}
	for i, sender := range senders {
		clock.Advance(time.Duration(i+1) * time.Second)
		_, err := s.AppendMessage(conv.ID, sender, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	got, err := s.GetConversation(conv.ID)
	require.NoError(t, err)

	var lastCustomer, lastAgent *time.Time
	for i := range got.Messages {
		ts := got.Messages[i].Timestamp
		switch got.Messages[i].Sender {
		case models.SenderCustomer:
			lastCustomer = &ts
		case models.SenderAgent:
			lastAgent = &ts
		}
	}

	assert.Equal(t, lastCustomer, got.LastCustomerMessageAt)
	assert.Equal(t, lastAgent, got.LastAgentMessageAt)
}

func TestConversationStore_ListConversations_CreationOrder(t *testing.T) {
	s := NewConversationStore()
	a := s.CreateConversation("A")
	b := s.CreateConversation("B")
	c := s.CreateConversation("C")

	list := s.ListConversations()
	require.Len(t, list, 3)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func TestConversationStore_SnapshotsAreIsolated(t *testing.T) {
	s := NewConversationStore()
	conv := s.CreateConversation("A")

	snapshot := s.ListConversations()[0]
	_, err := s.AppendMessage(conv.ID, models.SenderCustomer, "later")
	require.NoError(t, err)

	assert.Len(t, snapshot.Messages, 1)
	assert.Nil(t, snapshot.LastCustomerMessageAt)
}

func TestConversationStore_SetActive(t *testing.T) {
	s := NewConversationStore()
	conv := s.CreateConversation("A")

	require.NoError(t, s.SetActive(conv.ID, false))
	got, err := s.GetConversation(conv.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Len(t, got.Messages, 1)

	require.NoError(t, s.SetActive(conv.ID, true))
	got, err = s.GetConversation(conv.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	assert.ErrorIs(t, s.SetActive("missing", true), ErrNotFound)
}

func TestConversationStore_ConcurrentAppends(t *testing.T) {
	s := NewConversationStore()
	a := s.CreateConversation("A")
	b := s.CreateConversation("B")

	const perWriter = 50
	var wg sync.WaitGroup
	for _, id := range []string{a.ID, a.ID, b.ID, b.ID} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := s.AppendMessage(id, models.SenderCustomer, "ping")
				assert.NoError(t, err)
			}
		}(id)
	}

	// Readers run alongside writers and must always see consistent caches
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < perWriter; i++ {
			for _, conv := range s.ListConversations() {
				last, _ := conv.LastMessage()
				if last.Sender == models.SenderCustomer {
					assert.NotNil(t, conv.LastCustomerMessageAt)
					assert.Equal(t, last.Timestamp, *conv.LastCustomerMessageAt)
				}
			}
		}
	}()
	wg.Wait()

	for _, conv := range s.ListConversations() {
		assert.Len(t, conv.Messages, 1+2*perWriter)
	}
}

// tickingClock advances one millisecond on every read
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func TestConversationStore_ConcurrentAppendsKeepTimestampOrder(t *testing.T) {
	clock := &tickingClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	s := NewConversationStore(WithClock(clock.Now))
	conv := s.CreateConversation("")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sender := models.SenderCustomer
				if (i+j)%2 == 0 {
					sender = models.SenderAgent
				}
				_, err := s.AppendMessage(conv.ID, sender, fmt.Sprintf("m-%d-%d", i, j))
				require.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := s.GetConversation(conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1+16*50)

	for i := 1; i < len(got.Messages); i++ {
		assert.True(t, got.Messages[i].Timestamp.After(got.Messages[i-1].Timestamp),
			"message %d is stamped before its predecessor", i)
	}
}
