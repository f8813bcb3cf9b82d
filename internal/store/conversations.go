package store

import (
	"sort"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/model"
)

// Conversations returns copies of all conversations, most recent activity first.
func (s *Session) Conversations() []model.Conversation {
	s.mu.RLock()
	out := make([]model.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c.Clone())
	}
	s.mu.RUnlock()

	sortConversations(out)
	return out
}

// Conversation returns a copy of the conversation with peerID.
func (s *Session) Conversation(peerID string) (model.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[peerID]
	if !ok {
		return model.Conversation{}, false
	}
	return c.Clone(), true
}

// ReplaceConversations swaps the whole directory for list. Entries without a
// peer id are dropped; for duplicate peers the later entry wins.
func (s *Session) ReplaceConversations(list []model.Conversation) {
	next := make(map[string]*model.Conversation, len(list))
	for _, c := range list {
		if c.Peer.ID == "" {
			continue
		}
		cc := c.Clone()
		if cc.UnreadCount < 0 {
			cc.UnreadCount = 0
		}
		next[cc.Peer.ID] = &cc
	}

	s.mu.Lock()
	s.conversations = next
	s.mu.Unlock()

	s.bus.Emit(bus.KindConversations, len(next))
}

// EnsureConversation returns the conversation with peer, creating it with
// newID() when absent. A known conversation adopts peer's profile unless
// peer is only a placeholder. It reports whether an entry was created.
// A peer without an id is never stored.
func (s *Session) EnsureConversation(peer model.User, newID func() string) (model.Conversation, bool) {
	if peer.ID == "" {
		return model.Conversation{}, false
	}
	s.mu.Lock()
	c, ok := s.conversations[peer.ID]
	if ok {
		if !peer.IsPlaceholder() && c.Peer != peer {
			c.Peer = peer
			out := c.Clone()
			s.mu.Unlock()
			s.bus.Emit(bus.KindConversations, peer.ID)
			return out, false
		}
		out := c.Clone()
		s.mu.Unlock()
		return out, false
	}
	c = &model.Conversation{ID: newID(), Peer: peer}
	s.conversations[peer.ID] = c
	out := c.Clone()
	s.mu.Unlock()

	s.bus.Emit(bus.KindConversations, peer.ID)
	return out, true
}

// UpdateConversation applies fn to the conversation with peerID. fn also
// learns whether that conversation is the open one. UnreadCount is clamped at
// zero afterwards. It reports whether the conversation exists.
func (s *Session) UpdateConversation(peerID string, fn func(c *model.Conversation, open bool)) bool {
	s.mu.Lock()
	c, ok := s.conversations[peerID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	fn(c, s.current == peerID)
	if c.UnreadCount < 0 {
		c.UnreadCount = 0
	}
	s.mu.Unlock()

	s.bus.Emit(bus.KindConversations, peerID)
	return true
}

func sortConversations(list []model.Conversation) {
	sort.Slice(list, func(i, j int) bool {
		ti, tj := lastActivity(list[i]), lastActivity(list[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return list[i].Peer.ID < list[j].Peer.ID
	})
}

func lastActivity(c model.Conversation) time.Time {
	if c.LastMessage == nil {
		return time.Time{}
	}
	return c.LastMessage.Timestamp
}
