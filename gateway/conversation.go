package gateway

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ConversationStore tracks shared conversation histories for gateway
// implementations that model conversations client-side. Histories are
// append-only; turn order is insertion order.
type ConversationStore struct {
	mu            sync.RWMutex
	conversations map[string][]Message
}

// NewConversationStore constructs an empty store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		conversations: make(map[string][]Message),
	}
}

// Create opens a new conversation and returns its id.
func (s *ConversationStore) Create() string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[id] = nil
	return id
}

// Append adds a message to the conversation.
func (s *ConversationStore) Append(conversationID string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conversationID]; !ok {
		return fmt.Errorf("conversation %s not found", conversationID)
	}
	s.conversations[conversationID] = append(s.conversations[conversationID], msg)
	return nil
}

// History returns a copy of the conversation's messages in insertion order.
func (s *ConversationStore) History(conversationID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs, ok := s.conversations[conversationID]
	if !ok {
		return nil, fmt.Errorf("conversation %s not found", conversationID)
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}
