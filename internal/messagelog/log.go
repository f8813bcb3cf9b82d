// Package messagelog holds the open conversation's messages: it loads
// history, appends pushed messages and sends new ones.
package messagelog

import (
	"context"
	"strings"

	"github.com/matheus3301/chatsync/internal/chaterr"
	"github.com/matheus3301/chatsync/internal/model"
	"github.com/matheus3301/chatsync/internal/receipts"
	"github.com/matheus3301/chatsync/internal/rest"
	"go.uber.org/zap"
)

// API is the REST surface the log needs.
type API interface {
	GetConversation(ctx context.Context, peerID string) (*rest.ConversationDetail, error)
	SendMessage(ctx context.Context, receiverID, content string) (*model.Message, error)
}

// Store holds the open conversation.
type Store interface {
	OpenConversation(peerID string)
	IsOpen(peerID string) bool
	AppendMessage(m model.Message) bool
	MergeMessages(peerID string, snapshot []model.Message) ([]model.Message, bool)
	BeginLoad() uint64
	EndLoad(epoch uint64)
}

// Directory receives the side effects a conversation load or send has on the list.
type Directory interface {
	Resolve(peerID string, profile *model.User) int
	RecordSent(msg model.Message)
}

// Receipts acknowledges messages in the background.
type Receipts interface {
	MarkAll(messageIDs []string)
}

// Log is the message log of the open conversation.
type Log struct {
	api      API
	store    Store
	dir      Directory
	receipts Receipts
	reporter chaterr.Reporter
	log      *zap.Logger
}

// New creates a Log.
func New(api API, store Store, dir Directory, rc Receipts, reporter chaterr.Reporter, log *zap.Logger) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	return &Log{api: api, store: store, dir: dir, receipts: rc, reporter: reporter, log: log}
}

// FetchMessages opens the conversation with peerID and loads its history.
//
// The conversation becomes the open one before the request is sent. If the
// user opens another conversation while the request is in flight, the
// response is discarded when it arrives and the fetched messages are
// returned without touching state.
func (l *Log) FetchMessages(ctx context.Context, peerID string) ([]model.Message, error) {
	if peerID == "" {
		ce := chaterr.Validation("peer id is required")
		l.reporter.Surface(ce)
		return nil, ce
	}

	l.store.OpenConversation(peerID)
	defer l.store.EndLoad(l.store.BeginLoad())

	detail, err := l.api.GetConversation(ctx, peerID)
	if err != nil {
		ce := chaterr.Classify(err, chaterr.KindNetwork)
		if l.store.IsOpen(peerID) {
			l.reporter.Surface(ce)
		} else {
			l.reporter.Swallow(ce)
		}
		return nil, ce
	}

	merged, applied := l.store.MergeMessages(peerID, detail.Messages)
	if !applied {
		l.log.Debug("discarding stale conversation response", zap.String("peer", peerID))
		return detail.Messages, nil
	}

	if prev := l.dir.Resolve(peerID, detail.User); prev > 0 {
		if ids := receipts.UnreadFrom(merged, peerID); len(ids) > 0 {
			l.receipts.MarkAll(ids)
		}
	}
	l.log.Debug("conversation loaded", zap.String("peer", peerID), zap.Int("messages", len(merged)))
	return merged, nil
}

// AppendIncoming adds a pushed message if it belongs to the open
// conversation and is not already present. It reports whether it was added.
func (l *Log) AppendIncoming(msg model.Message) bool {
	return l.store.AppendMessage(msg)
}

// SendMessage sends content to receiverID. Nothing changes locally until the
// server returns the created message.
func (l *Log) SendMessage(ctx context.Context, receiverID, content string) (*model.Message, error) {
	if receiverID == "" {
		ce := chaterr.Validation("receiver id is required")
		l.reporter.Surface(ce)
		return nil, ce
	}
	if strings.TrimSpace(content) == "" {
		ce := chaterr.Validation("message content is empty")
		l.reporter.Surface(ce)
		return nil, ce
	}

	defer l.store.EndLoad(l.store.BeginLoad())

	msg, err := l.api.SendMessage(ctx, receiverID, content)
	if err != nil {
		ce := chaterr.Classify(err, chaterr.KindNetwork)
		l.reporter.Surface(ce)
		return nil, ce
	}
	if msg == nil || msg.ID == "" || msg.SenderID == "" || msg.ReceiverID == "" {
		ce := chaterr.New(chaterr.KindServer, "server did not return the sent message")
		l.reporter.Surface(ce)
		return nil, ce
	}

	if l.store.IsOpen(receiverID) {
		l.store.AppendMessage(*msg)
	}
	l.dir.RecordSent(*msg)
	return msg, nil
}
