// Package presence tracks who is online and who is typing, and throttles the
// typing signals this client sends.
package presence

import (
	"github.com/matheus3301/chatsync/internal/push"
	"go.uber.org/zap"
)

// Sets is the state the tracker reduces into.
type Sets interface {
	SetOnline(userID string, online bool) bool
	SetTyping(userID string, typing bool) bool
	ReplaceOnline(ids []string)
	ClearPresence()
	IsOnline(userID string) bool
}

// Tracker applies presence events from the push channel.
type Tracker struct {
	sets Sets
	log  *zap.Logger
}

// NewTracker creates a tracker writing into sets.
func NewTracker(sets Sets, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{sets: sets, log: log}
}

// ApplyUserStatus inserts the user on "online" and removes them on "offline".
func (t *Tracker) ApplyUserStatus(evt push.UserStatus) {
	if t.sets.SetOnline(evt.UserID, evt.Online()) {
		t.log.Debug("presence changed", zap.String("user", evt.UserID), zap.String("status", evt.Status))
	}
}

// ApplyOnlineUsers replaces the whole online set.
func (t *Tracker) ApplyOnlineUsers(evt push.OnlineUsers) {
	t.sets.ReplaceOnline(evt.UserIDs)
	t.log.Debug("online set replaced", zap.Int("count", len(evt.UserIDs)))
}

// ApplyTyping toggles the user's membership in the typing set.
func (t *Tracker) ApplyTyping(evt push.Typing) {
	t.sets.SetTyping(evt.UserID, evt.IsTyping)
}

// IsOnline reports whether userID is currently online.
func (t *Tracker) IsOnline(userID string) bool {
	return t.sets.IsOnline(userID)
}

// Clear forgets all presence. Called whenever the push channel goes down.
func (t *Tracker) Clear() {
	t.sets.ClearPresence()
}
