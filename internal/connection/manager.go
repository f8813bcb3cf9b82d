// Package connection owns the push channel: it opens it, pumps its events
// into the engine, and applies the reconnect policy.
package connection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/matheus3301/chatsync/internal/chaterr"
	"github.com/matheus3301/chatsync/internal/push"
	"github.com/matheus3301/chatsync/internal/status"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by SendTyping while no channel is open.
var ErrNotConnected = errors.New("push channel not connected")

// Auth gates connecting.
type Auth interface {
	IsAuthenticated() bool
}

// Presence is cleared whenever the channel goes away.
type Presence interface {
	Clear()
}

// Handler receives every inbound event, one at a time, in arrival order.
type Handler func(push.Event)

// Config holds the collaborators of a Manager.
type Config struct {
	Dialer   push.Dialer
	Auth     Auth
	Machine  *status.Machine
	Handler  Handler
	Presence Presence
	Reporter chaterr.Reporter
	Logger   *zap.Logger
	// ReconnectDelay is waited before the automatic reconnect.
	ReconnectDelay time.Duration
}

// Manager maintains at most one push channel.
//
// A server-initiated disconnect triggers exactly one automatic reconnect
// attempt. Any other disconnect leaves the manager Disconnected until the
// next Connect.
type Manager struct {
	dialer   push.Dialer
	auth     Auth
	machine  *status.Machine
	handle   Handler
	presence Presence
	reporter chaterr.Reporter
	log      *zap.Logger
	delay    time.Duration

	mu      sync.Mutex
	channel push.Channel
	// gen identifies the current channel. Disconnect bumps it so events and
	// dial results from older channels are ignored.
	gen             uint64
	cancelReconnect context.CancelFunc

	wg sync.WaitGroup
}

// New creates a Manager.
func New(cfg Config) *Manager {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	handle := cfg.Handler
	if handle == nil {
		handle = func(push.Event) {}
	}
	return &Manager{
		dialer:   cfg.Dialer,
		auth:     cfg.Auth,
		machine:  cfg.Machine,
		handle:   handle,
		presence: cfg.Presence,
		reporter: cfg.Reporter,
		log:      log,
		delay:    cfg.ReconnectDelay,
	}
}

// Connect opens the push channel if the session is authenticated and no
// channel exists or is being opened. A dial failure is reported as a
// socket error and leaves the manager Disconnected.
func (m *Manager) Connect(ctx context.Context) {
	if !m.auth.IsAuthenticated() {
		m.log.Debug("connect skipped: not authenticated")
		return
	}

	m.mu.Lock()
	if m.channel != nil || !m.machine.In(status.Disconnected) {
		m.mu.Unlock()
		return
	}
	if err := m.machine.Transition(status.Connecting); err != nil {
		m.mu.Unlock()
		m.log.Warn("connect", zap.Error(err))
		return
	}
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	m.dial(ctx, gen)
}

// Disconnect closes the channel, cancels a pending reconnect and clears
// presence. It is safe to call in any state.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	ch := m.channel
	m.channel = nil
	if m.cancelReconnect != nil {
		m.cancelReconnect()
		m.cancelReconnect = nil
	}
	m.machine.Settle()
	m.mu.Unlock()

	if ch != nil {
		if err := ch.Close(); err != nil {
			m.log.Warn("closing push channel", zap.Error(err))
		}
	}
	m.presence.Clear()
}

// SendTyping forwards a typing indicator over the open channel.
func (m *Manager) SendTyping(ctx context.Context, receiverID string, isTyping bool) error {
	m.mu.Lock()
	ch := m.channel
	m.mu.Unlock()
	if ch == nil {
		return ErrNotConnected
	}
	return ch.SendTyping(ctx, receiverID, isTyping)
}

// State returns the connection state.
func (m *Manager) State() status.State {
	return m.machine.Current()
}

// Wait blocks until every pump and reconnect goroutine has exited.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// dial opens a channel for generation gen and installs it if gen is still current.
func (m *Manager) dial(ctx context.Context, gen uint64) {
	ch, err := m.dialer.Dial(ctx)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		if ch != nil {
			ch.Close()
		}
		return
	}
	if err != nil {
		m.channel = nil
		m.machine.Settle()
		m.mu.Unlock()

		m.log.Warn("push channel connect failed", zap.Error(err))
		m.reporter.Surface(chaterr.Socket(err))
		m.handle(push.ConnectError{Err: err})
		return
	}
	m.channel = ch
	if err := m.machine.Transition(status.Connected); err != nil {
		m.log.Warn("connect", zap.Error(err))
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go m.pump(gen, ch)
}

// pump delivers the channel's events until it closes. Events from a channel
// that is no longer current are drained and dropped.
func (m *Manager) pump(gen uint64, ch push.Channel) {
	defer m.wg.Done()
	for evt := range ch.Events() {
		if d, ok := evt.(push.Disconnected); ok {
			m.onDisconnected(gen, d)
			continue
		}
		if !m.isCurrent(gen) {
			continue
		}
		m.handle(evt)
	}
}

func (m *Manager) onDisconnected(gen uint64, evt push.Disconnected) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.channel = nil

	reconnect := evt.Reason == push.ReasonServerDisconnect && m.auth.IsAuthenticated()
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if reconnect {
		if err := m.machine.Transition(status.Reconnecting); err != nil {
			m.log.Warn("reconnect", zap.Error(err))
			reconnect = false
		}
	}
	if reconnect {
		m.gen++
		gen = m.gen
		ctx, cancel = context.WithCancel(context.Background())
		m.cancelReconnect = cancel
		m.wg.Add(1)
	} else {
		m.machine.Settle()
	}
	m.mu.Unlock()

	m.log.Info("push channel disconnected", zap.String("reason", evt.Reason), zap.Bool("reconnect", reconnect))
	m.presence.Clear()
	m.handle(evt)

	if reconnect {
		go m.reconnect(ctx, cancel, gen)
	}
}

// reconnect makes the single automatic attempt after a server disconnect.
func (m *Manager) reconnect(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	defer m.wg.Done()
	defer cancel()

	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
	if ctx.Err() != nil {
		return
	}
	m.dial(ctx, gen)

	m.mu.Lock()
	if gen == m.gen {
		m.cancelReconnect = nil
	}
	m.mu.Unlock()
}

func (m *Manager) isCurrent(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen
}
