// Package receipts sends read receipts. Receipts are best-effort: failures are
// logged, never shown, except that an auth failure still ends the session.
package receipts

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/chatsync/internal/chaterr"
	"github.com/matheus3301/chatsync/internal/model"
	"go.uber.org/zap"
)

// DefaultTimeout bounds each receipt sent by MarkAll.
const DefaultTimeout = 10 * time.Second

// API is the REST surface for receipts.
type API interface {
	MarkRead(ctx context.Context, messageID string) error
}

// Store holds the messages whose read flag is flipped.
type Store interface {
	Message(id string) (model.Message, bool)
	MarkMessageRead(id string) bool
}

// Coordinator marks messages read on the server and then locally.
type Coordinator struct {
	api      API
	store    Store
	reporter chaterr.Reporter
	log      *zap.Logger
	timeout  time.Duration

	mu    sync.Mutex
	acked map[string]struct{}
	wg    sync.WaitGroup
}

// New creates a Coordinator. A non-positive timeout uses DefaultTimeout.
func New(api API, store Store, reporter chaterr.Reporter, log *zap.Logger, timeout time.Duration) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Coordinator{
		api:      api,
		store:    store,
		reporter: reporter,
		log:      log,
		timeout:  timeout,
		acked:    make(map[string]struct{}),
	}
}

// MarkRead acknowledges messageID and sets its local read flag once the
// server accepts. Messages already read, acknowledged or in flight are skipped.
func (c *Coordinator) MarkRead(ctx context.Context, messageID string) {
	if messageID == "" {
		return
	}
	if m, ok := c.store.Message(messageID); ok && m.Read {
		return
	}
	if !c.claim(messageID) {
		return
	}

	if err := c.api.MarkRead(ctx, messageID); err != nil {
		c.release(messageID)
		c.reporter.Swallow(chaterr.Classify(err, chaterr.KindNetwork))
		return
	}
	c.store.MarkMessageRead(messageID)
	c.log.Debug("message marked read", zap.String("message", messageID))
}

// MarkAll marks each message independently in the background. One failure
// does not stop the rest.
func (c *Coordinator) MarkAll(messageIDs []string) {
	if len(messageIDs) == 0 {
		return
	}
	ids := append([]string(nil), messageIDs...)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for _, id := range ids {
			ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
			c.MarkRead(ctx, id)
			cancel()
		}
	}()
}

// Wait blocks until every batch started by MarkAll has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Reset forgets acknowledged ids.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.acked = make(map[string]struct{})
	c.mu.Unlock()
}

func (c *Coordinator) claim(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.acked[id]; ok {
		return false
	}
	c.acked[id] = struct{}{}
	return true
}

func (c *Coordinator) release(id string) {
	c.mu.Lock()
	delete(c.acked, id)
	c.mu.Unlock()
}

// UnreadFrom returns the ids of messages written by peerID that are not yet read.
func UnreadFrom(msgs []model.Message, peerID string) []string {
	var ids []string
	for _, m := range msgs {
		if m.SenderID == peerID && !m.Read && m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	return ids
}
