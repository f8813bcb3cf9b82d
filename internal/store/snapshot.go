package store

import (
	"github.com/matheus3301/chatsync/internal/chaterr"
	"github.com/matheus3301/chatsync/internal/model"
)

// Snapshot is a consistent, unaliased copy of the session state.
type Snapshot struct {
	CurrentConversationID string
	Messages              []model.Message
	Conversations         []model.Conversation
	OnlineUsers           []string
	TypingUsers           []string
	Loading               bool
	Error                 *chaterr.Error
}

// Snapshot copies the whole session state under one read lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := make([]model.Message, len(s.messages))
	copy(msgs, s.messages)

	convs := make([]model.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		convs = append(convs, c.Clone())
	}
	sortConversations(convs)

	return Snapshot{
		CurrentConversationID: s.current,
		Messages:              msgs,
		Conversations:         convs,
		OnlineUsers:           sortedKeys(s.online),
		TypingUsers:           sortedKeys(s.typing),
		Loading:               s.loading > 0,
		Error:                 s.err,
	}
}
