package store

import (
	"sync"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chaterr"
	"github.com/matheus3301/chatsync/internal/model"
)

// Session is the in-memory state of one authenticated session: the open
// conversation's messages, the conversation directory, presence, and the
// loading/error gates the UI renders. It is created empty and wiped by Reset;
// nothing is persisted.
//
// Every mutation publishes a state.* event on the bus after the lock is released.
type Session struct {
	mu  sync.RWMutex
	bus *bus.Bus

	current       string
	messages      []model.Message
	messageIndex  map[string]int
	conversations map[string]*model.Conversation
	online        map[string]struct{}
	typing        map[string]struct{}

	loading   int
	// loadEpoch changes on every Reset so calls begun earlier do not end newer ones.
	loadEpoch uint64
	err       *chaterr.Error
}

// New creates an empty session store publishing to b (which may be nil).
func New(b *bus.Bus) *Session {
	s := &Session{bus: b}
	s.init()
	return s
}

func (s *Session) init() {
	s.current = ""
	s.messages = nil
	s.messageIndex = make(map[string]int)
	s.conversations = make(map[string]*model.Conversation)
	s.online = make(map[string]struct{})
	s.typing = make(map[string]struct{})
	s.loading = 0
	s.loadEpoch++
	s.err = nil
}

// Reset wipes every collection, the open conversation, and the error and loading gates.
func (s *Session) Reset() {
	s.mu.Lock()
	s.init()
	s.mu.Unlock()

	for _, kind := range []string{bus.KindMessages, bus.KindConversations, bus.KindPresence, bus.KindError, bus.KindLoading} {
		s.bus.Emit(kind, nil)
	}
}
