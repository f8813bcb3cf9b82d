package store

import (
	"sort"

	"github.com/matheus3301/chatsync/internal/bus"
)

type presenceSet int

const (
	onlineSet presenceSet = iota
	typingSet
)

// SetOnline adds or removes userID from the online set. It reports whether the set changed.
func (s *Session) SetOnline(userID string, online bool) bool {
	return s.toggle(onlineSet, userID, online)
}

// SetTyping adds or removes userID from the typing set. It reports whether the set changed.
func (s *Session) SetTyping(userID string, typing bool) bool {
	return s.toggle(typingSet, userID, typing)
}

// ReplaceOnline swaps the whole online set for ids.
func (s *Session) ReplaceOnline(ids []string) {
	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			next[id] = struct{}{}
		}
	}
	s.mu.Lock()
	s.online = next
	s.mu.Unlock()

	s.bus.Emit(bus.KindPresence, nil)
}

// ClearPresence empties both the online and the typing set.
func (s *Session) ClearPresence() {
	s.mu.Lock()
	s.online = make(map[string]struct{})
	s.typing = make(map[string]struct{})
	s.mu.Unlock()

	s.bus.Emit(bus.KindPresence, nil)
}

// IsOnline reports whether userID is in the online set.
func (s *Session) IsOnline(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.online[userID]
	return ok
}

// IsTyping reports whether userID is in the typing set.
func (s *Session) IsTyping(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.typing[userID]
	return ok
}

// OnlineUsers returns the online set, sorted.
func (s *Session) OnlineUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.online)
}

// TypingUsers returns the typing set, sorted.
func (s *Session) TypingUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.typing)
}

func (s *Session) toggle(which presenceSet, userID string, member bool) bool {
	if userID == "" {
		return false
	}
	s.mu.Lock()
	set := s.online
	if which == typingSet {
		set = s.typing
	}
	_, had := set[userID]
	if had == member {
		s.mu.Unlock()
		return false
	}
	if member {
		set[userID] = struct{}{}
	} else {
		delete(set, userID)
	}
	s.mu.Unlock()

	s.bus.Emit(bus.KindPresence, userID)
	return true
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
