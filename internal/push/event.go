// Package push is the server-push channel: a WebSocket carrying JSON
// envelopes, decoded into a closed set of event variants.
package push

import "github.com/matheus3301/chatsync/internal/model"

// Disconnect reasons carried by Disconnected.
const (
	ReasonServerDisconnect = "io server disconnect"
	ReasonClientDisconnect = "io client disconnect"
	ReasonTransportClose   = "transport close"
)

// Event is one inbound push event. The variants below are the only implementations.
type Event interface {
	isEvent()
}

// NewMessage delivers a message sent to or by the current user.
type NewMessage struct {
	Message model.Message
}

// UserStatus reports a single user going online or offline.
type UserStatus struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// Online reports whether the status is "online".
func (u UserStatus) Online() bool { return u.Status == "online" }

// OnlineUsers replaces the whole online set.
type OnlineUsers struct {
	UserIDs []string
}

// Typing reports a peer's typing indicator.
type Typing struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// ServerError is an error frame sent by the server over the channel.
type ServerError struct {
	Message string `json:"message"`
}

// Disconnected is the last event of a channel.
type Disconnected struct {
	Reason string
}

// ConnectError reports that the channel could not be established.
type ConnectError struct {
	Err error
}

func (NewMessage) isEvent()   {}
func (UserStatus) isEvent()   {}
func (OnlineUsers) isEvent()  {}
func (Typing) isEvent()       {}
func (ServerError) isEvent()  {}
func (Disconnected) isEvent() {}
func (ConnectError) isEvent() {}
