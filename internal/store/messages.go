package store

import (
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/model"
)

// OpenConversation makes peerID the open conversation and empties the message log.
func (s *Session) OpenConversation(peerID string) {
	s.mu.Lock()
	s.current = peerID
	s.messages = nil
	s.messageIndex = make(map[string]int)
	s.mu.Unlock()

	s.bus.Emit(bus.KindMessages, peerID)
}

// CurrentConversation returns the open peer id, or "" when none is open.
func (s *Session) CurrentConversation() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// IsOpen reports whether peerID is the open conversation.
func (s *Session) IsOpen(peerID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return peerID != "" && s.current == peerID
}

// Messages returns a copy of the open conversation's messages in timestamp order.
func (s *Session) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Message looks up a message of the open conversation by id.
func (s *Session) Message(id string) (model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.messageIndex[id]
	if !ok {
		return model.Message{}, false
	}
	return s.messages[i], true
}

// AppendMessage adds m at the tail of the open conversation if m belongs to it
// and its id is not already present. A duplicate can still upgrade the read flag.
// It reports whether m was appended.
func (s *Session) AppendMessage(m model.Message) bool {
	s.mu.Lock()
	if s.current == "" || !m.Involves(s.current) {
		s.mu.Unlock()
		return false
	}
	if i, ok := s.messageIndex[m.ID]; ok && m.ID != "" {
		upgraded := m.Read && !s.messages[i].Read
		if upgraded {
			s.messages[i].Read = true
		}
		s.mu.Unlock()
		if upgraded {
			s.bus.Emit(bus.KindMessages, s.current)
		}
		return false
	}
	s.messages = append(s.messages, m)
	if m.ID != "" {
		s.messageIndex[m.ID] = len(s.messages) - 1
	}
	peer := s.current
	s.mu.Unlock()

	s.bus.Emit(bus.KindMessages, peer)
	return true
}

// MergeMessages applies a snapshot fetched for peerID. The snapshot is merged by
// id with whatever the log already holds for that peer, so push-delivered
// messages that raced the fetch survive. Nothing is applied when peerID is no
// longer the open conversation. It returns the resulting log and whether it was applied.
func (s *Session) MergeMessages(peerID string, snapshot []model.Message) ([]model.Message, bool) {
	s.mu.Lock()
	if peerID == "" || s.current != peerID {
		s.mu.Unlock()
		return nil, false
	}
	local := make([]model.Message, 0, len(s.messages))
	for _, m := range s.messages {
		if m.Involves(peerID) {
			local = append(local, m)
		}
	}
	s.messages = Reconcile(snapshot, local)
	s.reindex()
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	s.mu.Unlock()

	s.bus.Emit(bus.KindMessages, peerID)
	return out, true
}

// MarkMessageRead flips the read flag of a message in the open conversation.
// It reports whether anything changed.
func (s *Session) MarkMessageRead(id string) bool {
	s.mu.Lock()
	i, ok := s.messageIndex[id]
	if !ok || s.messages[i].Read {
		s.mu.Unlock()
		return false
	}
	s.messages[i].Read = true
	peer := s.current
	s.mu.Unlock()

	s.bus.Emit(bus.KindMessages, peer)
	return true
}

func (s *Session) reindex() {
	s.messageIndex = make(map[string]int, len(s.messages))
	for i, m := range s.messages {
		if m.ID != "" {
			s.messageIndex[m.ID] = i
		}
	}
}
