package daemon

import (
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/status"
	"go.uber.org/zap"
)

// watchBus logs state changes until the returned function is called.
func watchBus(b *bus.Bus, logger *zap.Logger) func() {
	events, unsub := b.Subscribe("", 256)
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		for {
			select {
			case <-done:
				return
			case evt := <-events:
				logEvent(logger, evt)
			}
		}
	}()

	return func() {
		unsub()
		close(done)
		<-stopped
	}
}

func logEvent(logger *zap.Logger, evt bus.Event) {
	switch evt.Kind {
	case bus.KindConnectionStatus:
		if change, ok := evt.Payload.(status.StatusChange); ok {
			logger.Info("connection status changed",
				zap.String("from", string(change.From)),
				zap.String("to", string(change.To)),
			)
		}
	case bus.KindError:
		if evt.Payload != nil {
			logger.Info("visible error changed", zap.Any("error", evt.Payload))
		}
	default:
		logger.Debug("state changed", zap.String("kind", evt.Kind), zap.Any("payload", evt.Payload))
	}
}
