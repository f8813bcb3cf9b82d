package presence

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultQuietWindow is how long after the last keystroke "stopped typing" is sent.
const DefaultQuietWindow = 3 * time.Second

// Signaler sends typing indicators to a peer.
type Signaler interface {
	SendTyping(ctx context.Context, receiverID string, isTyping bool) error
}

// Typist emits typing signals. Every call sends "started"; the first call
// for a receiver also schedules one "stopped" after the quiet window. Later
// calls inside the window do not move that timer.
type Typist struct {
	signal Signaler
	window time.Duration
	log    *zap.Logger

	// afterFunc is time.AfterFunc, swapped in tests.
	afterFunc func(time.Duration, func()) stopper

	mu      sync.Mutex
	pending map[string]stopper
}

type stopper interface {
	Stop() bool
}

// NewTypist creates a Typist. A non-positive window uses DefaultQuietWindow.
func NewTypist(signal Signaler, window time.Duration, log *zap.Logger) *Typist {
	if window <= 0 {
		window = DefaultQuietWindow
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Typist{
		signal:  signal,
		window:  window,
		log:     log,
		pending: make(map[string]stopper),
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
}

// Emit signals that the user is typing to receiverID.
func (t *Typist) Emit(ctx context.Context, receiverID string) {
	if receiverID == "" {
		return
	}
	t.send(ctx, receiverID, true)

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[receiverID]; ok {
		return
	}
	t.pending[receiverID] = t.afterFunc(t.window, func() {
		t.mu.Lock()
		delete(t.pending, receiverID)
		t.mu.Unlock()
		t.send(context.Background(), receiverID, false)
	})
}

// Stop cancels every scheduled "stopped" signal without sending it.
func (t *Typist) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, s := range t.pending {
		s.Stop()
		delete(t.pending, id)
	}
}

// Pending reports whether a "stopped" signal is scheduled for receiverID.
func (t *Typist) Pending(receiverID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[receiverID]
	return ok
}

func (t *Typist) send(ctx context.Context, receiverID string, typing bool) {
	if err := t.signal.SendTyping(ctx, receiverID, typing); err != nil {
		t.log.Debug("typing signal not sent",
			zap.String("receiver", receiverID),
			zap.Bool("typing", typing),
			zap.Error(err),
		)
	}
}
