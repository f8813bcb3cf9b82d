package bus

import "time"

// Event kinds published by the engine. Subscribers filter by prefix, so
// "state." receives every state change and "connection." every lifecycle change.
const (
	KindMessages         = "state.messages"
	KindConversations    = "state.conversations"
	KindPresence         = "state.presence"
	KindError            = "state.error"
	KindLoading          = "state.loading"
	KindConnectionStatus = "connection.status_changed"
)

// Event represents a state-change notification published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
