// Package directory maintains the conversation list: one entry per peer with
// the last message and the unread count.
package directory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/matheus3301/chatsync/internal/chaterr"
	"github.com/matheus3301/chatsync/internal/model"
	"go.uber.org/zap"
)

// API is the REST surface the directory needs.
type API interface {
	ListConversations(ctx context.Context) ([]model.Conversation, error)
}

// Store is the state the directory mutates.
type Store interface {
	ReplaceConversations(list []model.Conversation)
	Conversation(peerID string) (model.Conversation, bool)
	EnsureConversation(peer model.User, newID func() string) (model.Conversation, bool)
	UpdateConversation(peerID string, fn func(c *model.Conversation, open bool)) bool
	BeginLoad() uint64
	EndLoad(epoch uint64)
}

// Directory owns the conversation mapping.
type Directory struct {
	api      API
	store    Store
	reporter chaterr.Reporter
	log      *zap.Logger
	eager    bool
	newID    func() string

	mu        sync.Mutex
	seen      map[string]*recentIDs
	seenLimit int
}

// DefaultSeenLimit is how many delivered message ids are remembered per peer
// to recognize redelivery.
const DefaultSeenLimit = 256

// recentIDs is a bounded set that forgets its oldest id first.
type recentIDs struct {
	ids   map[string]struct{}
	order []string
}

// Option configures a Directory.
type Option func(*Directory)

// WithEagerCreation makes ApplyIncomingMessage create entries for unknown
// peers instead of waiting for the next fetch or open.
func WithEagerCreation(eager bool) Option {
	return func(d *Directory) { d.eager = eager }
}

// WithIDGenerator replaces the generator for locally created conversation ids.
func WithIDGenerator(fn func() string) Option {
	return func(d *Directory) { d.newID = fn }
}

// NewLocalID returns an id for a conversation the server has not reported yet.
func NewLocalID() string {
	return "local-" + uuid.NewString()
}

// New creates a Directory.
func New(api API, store Store, reporter chaterr.Reporter, log *zap.Logger, opts ...Option) *Directory {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Directory{
		api:       api,
		store:     store,
		reporter:  reporter,
		log:       log,
		newID:     NewLocalID,
		seen:      make(map[string]*recentIDs),
		seenLimit: DefaultSeenLimit,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FetchConversations replaces the whole directory with the server's list.
// Concurrent calls are allowed; the last response to arrive wins.
func (d *Directory) FetchConversations(ctx context.Context) ([]model.Conversation, error) {
	defer d.store.EndLoad(d.store.BeginLoad())

	list, err := d.api.ListConversations(ctx)
	if err != nil {
		ce := chaterr.Classify(err, chaterr.KindNetwork)
		d.reporter.Surface(ce)
		return nil, ce
	}
	d.store.ReplaceConversations(list)
	d.log.Debug("conversations fetched", zap.Int("count", len(list)))
	return list, nil
}

// ApplyIncomingMessage folds a pushed message into the entry for the other
// participant. The unread count grows only for messages written by the peer
// while that conversation is not open. Redelivered ids are ignored.
func (d *Directory) ApplyIncomingMessage(msg model.Message, selfID string) {
	other := msg.PeerOf(selfID)
	if other == "" {
		return
	}
	if !d.markSeen(other, msg.ID) {
		return
	}

	if d.eager {
		if _, created := d.store.EnsureConversation(model.MinimalPeer(other), d.newID); created {
			d.log.Debug("conversation created from push", zap.String("peer", other))
		}
	}

	fromPeer := msg.SenderID != selfID
	ok := d.store.UpdateConversation(other, func(c *model.Conversation, open bool) {
		advanceLast(c, msg)
		if fromPeer && !open {
			c.UnreadCount++
		}
	})
	if !ok {
		d.log.Debug("message for untracked conversation", zap.String("peer", other), zap.String("message", msg.ID))
	}
}

// Resolve makes sure an entry for peerID exists, using profile when the
// server supplied one, and resets its unread count. It returns the unread
// count the entry had before.
func (d *Directory) Resolve(peerID string, profile *model.User) int {
	peer := model.MinimalPeer(peerID)
	if profile != nil && (profile.ID == "" || profile.ID == peerID) {
		peer = *profile
		peer.ID = peerID
	}
	d.store.EnsureConversation(peer, d.newID)

	prev := 0
	d.store.UpdateConversation(peerID, func(c *model.Conversation, _ bool) {
		prev = c.UnreadCount
		c.UnreadCount = 0
	})
	return prev
}

// RecordSent mirrors a message the server accepted into its conversation.
// Messages without a receiver are ignored.
func (d *Directory) RecordSent(msg model.Message) {
	if msg.ReceiverID == "" {
		d.log.Warn("sent message has no receiver", zap.String("message", msg.ID))
		return
	}
	d.markSeen(msg.ReceiverID, msg.ID)
	d.store.EnsureConversation(model.MinimalPeer(msg.ReceiverID), d.newID)
	d.store.UpdateConversation(msg.ReceiverID, func(c *model.Conversation, _ bool) {
		advanceLast(c, msg)
	})
}

// Reset forgets which message ids have been counted.
func (d *Directory) Reset() {
	d.mu.Lock()
	d.seen = make(map[string]*recentIDs)
	d.mu.Unlock()
}

// markSeen reports whether id is new for peer. Messages without an id always
// count. Only the last seenLimit ids per peer are remembered.
func (d *Directory) markSeen(peer, id string) bool {
	if id == "" {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	r := d.seen[peer]
	if r == nil {
		r = &recentIDs{ids: make(map[string]struct{})}
		d.seen[peer] = r
	}
	if _, ok := r.ids[id]; ok {
		return false
	}
	r.ids[id] = struct{}{}
	r.order = append(r.order, id)
	if len(r.order) > d.seenLimit {
		delete(r.ids, r.order[0])
		r.order = r.order[1:]
	}
	return true
}

// advanceLast replaces the last message unless msg is older than it.
func advanceLast(c *model.Conversation, msg model.Message) {
	if c.LastMessage != nil && msg.Timestamp.Before(c.LastMessage.Timestamp) {
		return
	}
	m := msg
	c.LastMessage = &m
}
