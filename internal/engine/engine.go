// Package engine is the client-side sync engine. An Engine owns one session's
// state, turns UI intents into REST calls and applies push events.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/chatsync/internal/auth"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chaterr"
	"github.com/matheus3301/chatsync/internal/connection"
	"github.com/matheus3301/chatsync/internal/directory"
	"github.com/matheus3301/chatsync/internal/messagelog"
	"github.com/matheus3301/chatsync/internal/model"
	"github.com/matheus3301/chatsync/internal/presence"
	"github.com/matheus3301/chatsync/internal/push"
	"github.com/matheus3301/chatsync/internal/receipts"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/store"
	"go.uber.org/zap"
)

// API is the REST collaborator.
type API interface {
	directory.API
	messagelog.API
	receipts.API
}

// Options configures an Engine. API, Dialer and Auth are required.
type Options struct {
	API    API
	Dialer push.Dialer
	Auth   auth.Session
	// Bus receives state change notifications. Nil creates a private bus.
	Bus    *bus.Bus
	Logger *zap.Logger

	TypingQuietWindow  time.Duration
	ReconnectDelay     time.Duration
	ReceiptTimeout     time.Duration
	EagerConversations bool

	// OnUnauthorized runs after the server rejected the credential and the
	// auth session was logged out, before state is wiped.
	OnUnauthorized func()
}

// Engine is one isolated sync engine instance.
type Engine struct {
	auth           auth.Session
	bus            *bus.Bus
	log            *zap.Logger
	onUnauthorized func()

	store    *store.Session
	presence *presence.Tracker
	typist   *presence.Typist
	dir      *directory.Directory
	receipts *receipts.Coordinator
	messages *messagelog.Log
	conn     *connection.Manager

	// authMu guards the logged-out credential generation. A rejected
	// credential is logged out once, even if it expired meanwhile.
	authMu       sync.Mutex
	loggedOut    bool
	loggedOutGen uint64
}

// New builds an Engine from opts.
func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	b := opts.Bus
	if b == nil {
		b = bus.New()
	}

	e := &Engine{
		auth:           opts.Auth,
		bus:            b,
		log:            log,
		onUnauthorized: opts.OnUnauthorized,
	}
	rep := reporter{e}

	e.store = store.New(b)
	e.presence = presence.NewTracker(e.store, log.Named("presence"))
	e.dir = directory.New(opts.API, e.store, rep, log.Named("directory"),
		directory.WithEagerCreation(opts.EagerConversations))
	e.receipts = receipts.New(opts.API, e.store, rep, log.Named("receipts"), opts.ReceiptTimeout)
	e.messages = messagelog.New(opts.API, e.store, e.dir, e.receipts, rep, log.Named("messages"))
	e.conn = connection.New(connection.Config{
		Dialer:         opts.Dialer,
		Auth:           opts.Auth,
		Machine:        status.NewMachine(b),
		Handler:        e.Dispatch,
		Presence:       e.presence,
		Reporter:       rep,
		Logger:         log.Named("connection"),
		ReconnectDelay: opts.ReconnectDelay,
	})
	e.typist = presence.NewTypist(e.conn, opts.TypingQuietWindow, log.Named("typing"))
	return e
}

// FetchConversations refreshes the conversation list.
func (e *Engine) FetchConversations(ctx context.Context) ([]model.Conversation, error) {
	if err := e.requireAuth(); err != nil {
		return nil, err
	}
	return e.dir.FetchConversations(ctx)
}

// OpenConversation makes peerID the open conversation and loads its history.
func (e *Engine) OpenConversation(ctx context.Context, peerID string) ([]model.Message, error) {
	if err := e.requireAuth(); err != nil {
		return nil, err
	}
	return e.messages.FetchMessages(ctx, peerID)
}

// SendMessage sends content to receiverID.
func (e *Engine) SendMessage(ctx context.Context, receiverID, content string) (*model.Message, error) {
	if err := e.requireAuth(); err != nil {
		return nil, err
	}
	return e.messages.SendMessage(ctx, receiverID, content)
}

// MarkRead acknowledges a message. Failures are never visible.
func (e *Engine) MarkRead(ctx context.Context, messageID string) {
	if !e.auth.IsAuthenticated() {
		return
	}
	e.receipts.MarkRead(ctx, messageID)
}

// EmitTyping tells receiverID the user is typing.
func (e *Engine) EmitTyping(ctx context.Context, receiverID string) {
	e.typist.Emit(ctx, receiverID)
}

// IsOnline reports whether userID is online.
func (e *Engine) IsOnline(userID string) bool {
	return e.presence.IsOnline(userID)
}

// Connect opens the push channel.
func (e *Engine) Connect(ctx context.Context) {
	e.conn.Connect(ctx)
}

// Disconnect closes the push channel and clears presence.
func (e *Engine) Disconnect() {
	e.typist.Stop()
	e.conn.Disconnect()
}

// EndSession disconnects and wipes all session state. The credential is kept.
func (e *Engine) EndSession() {
	e.Disconnect()
	e.store.Reset()
	e.dir.Reset()
	e.receipts.Reset()
	e.log.Info("session ended")
}

// Logout drops the credential and ends the session.
func (e *Engine) Logout() {
	e.authMu.Lock()
	e.markLoggedOut()
	e.auth.Logout()
	e.authMu.Unlock()
	e.EndSession()
}

// markLoggedOut records the current credential as logged out and reports
// whether it was not already. Callers hold authMu.
func (e *Engine) markLoggedOut() bool {
	gen := e.auth.Generation()
	if e.loggedOut && e.loggedOutGen == gen {
		return false
	}
	e.loggedOut = true
	e.loggedOutGen = gen
	return true
}

// Close disconnects and waits for background work to finish.
func (e *Engine) Close() {
	e.Disconnect()
	e.Wait()
}

// Wait blocks until pending read receipts and channel goroutines are done.
func (e *Engine) Wait() {
	e.receipts.Wait()
	e.conn.Wait()
}

// Snapshot returns a copy of the whole session state.
func (e *Engine) Snapshot() store.Snapshot {
	return e.store.Snapshot()
}

// Conversations returns the conversation list, most recent first.
func (e *Engine) Conversations() []model.Conversation {
	return e.store.Conversations()
}

// Messages returns the open conversation's messages.
func (e *Engine) Messages() []model.Message {
	return e.store.Messages()
}

// Error returns the visible error, if any.
func (e *Engine) Error() *chaterr.Error {
	return e.store.Error()
}

// DismissError clears the visible error.
func (e *Engine) DismissError() {
	e.store.ClearError()
}

// Loading reports whether a REST call is in flight.
func (e *Engine) Loading() bool {
	return e.store.Loading()
}

// ConnectionState returns the push channel state.
func (e *Engine) ConnectionState() status.State {
	return e.conn.State()
}

// Bus returns the bus state changes are published on.
func (e *Engine) Bus() *bus.Bus {
	return e.bus
}

func (e *Engine) requireAuth() error {
	if e.auth.IsAuthenticated() {
		return nil
	}
	ce := chaterr.Classify(chaterr.ErrNotAuthenticated, chaterr.KindValidation)
	e.store.SetError(ce)
	return ce
}

// unauthorized handles a credential the server rejected: log out once, tell
// the host, wipe the session and leave the error visible.
func (e *Engine) unauthorized(ce *chaterr.Error) {
	e.authMu.Lock()
	first := e.markLoggedOut()
	if first {
		e.auth.Logout()
	}
	e.authMu.Unlock()

	if !first {
		e.log.Debug("auth failure for a credential already logged out", zap.Error(ce))
		return
	}

	e.log.Warn("credential rejected, logging out", zap.Error(ce))
	if e.onUnauthorized != nil {
		e.onUnauthorized()
	}
	e.EndSession()
	e.store.SetError(ce)
}

// reporter routes classified errors from the components.
type reporter struct {
	e *Engine
}

func (r reporter) Surface(err *chaterr.Error) {
	if err == nil {
		return
	}
	if err.Kind == chaterr.KindAuth {
		r.e.unauthorized(err)
		return
	}
	r.e.log.Warn("operation failed", zap.String("kind", string(err.Kind)), zap.Error(err))
	r.e.store.SetError(err)
}

func (r reporter) Swallow(err *chaterr.Error) {
	if err == nil {
		return
	}
	if err.Kind == chaterr.KindAuth {
		r.e.unauthorized(err)
		return
	}
	r.e.log.Warn("best-effort operation failed", zap.String("kind", string(err.Kind)), zap.Error(err))
}
