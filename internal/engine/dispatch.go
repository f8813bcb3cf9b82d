package engine

import (
	"github.com/matheus3301/chatsync/internal/chaterr"
	"github.com/matheus3301/chatsync/internal/model"
	"github.com/matheus3301/chatsync/internal/push"
	"go.uber.org/zap"
)

// Dispatch applies one push event. The connection manager calls it for
// every event in arrival order.
func (e *Engine) Dispatch(evt push.Event) {
	switch ev := evt.(type) {
	case push.NewMessage:
		e.applyNewMessage(ev.Message)
	case push.UserStatus:
		e.presence.ApplyUserStatus(ev)
	case push.OnlineUsers:
		e.presence.ApplyOnlineUsers(ev)
	case push.Typing:
		e.presence.ApplyTyping(ev)
	case push.ServerError:
		reporter{e}.Surface(chaterr.New(chaterr.KindSocket, ev.Message))
	case push.Disconnected:
		e.log.Debug("push disconnected", zap.String("reason", ev.Reason))
	case push.ConnectError:
		e.log.Debug("push connect error", zap.Error(ev.Err))
	default:
		e.log.Warn("unhandled push event", zap.Any("event", evt))
	}
}

// applyNewMessage updates the open log and the directory. A peer message
// landing in the open conversation is read on arrival.
func (e *Engine) applyNewMessage(m model.Message) {
	self := e.auth.CurrentUserID()
	appended := e.messages.AppendIncoming(m)
	e.dir.ApplyIncomingMessage(m, self)

	if appended && m.SenderID != self && !m.Read {
		e.receipts.MarkAll([]string{m.ID})
	}
}
