package push

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/matheus3301/chatsync/internal/model"
)

// Wire event types.
const (
	TypeNewMessage  = "newMessage"
	TypeUserStatus  = "userStatus"
	TypeOnlineUsers = "onlineUsers"
	TypeTyping      = "typing"
	TypeError       = "error"
)

// ErrUnknownEvent is returned by Decode for envelope types it does not know.
var ErrUnknownEvent = errors.New("unknown event type")

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type typingCommand struct {
	ReceiverID string `json:"receiverId"`
	IsTyping   bool   `json:"isTyping"`
}

// Decode parses one inbound frame. Frames that parse but are missing the
// fields their type requires are rejected as malformed.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Type {
	case TypeNewMessage:
		var m model.Message
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		if m.ID == "" || m.SenderID == "" || m.ReceiverID == "" {
			return nil, fmt.Errorf("decode %s: missing id or participants", env.Type)
		}
		return NewMessage{Message: m}, nil

	case TypeUserStatus:
		var u UserStatus
		if err := json.Unmarshal(env.Payload, &u); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		if u.UserID == "" || (u.Status != "online" && u.Status != "offline") {
			return nil, fmt.Errorf("decode %s: invalid user %q or status %q", env.Type, u.UserID, u.Status)
		}
		return u, nil

	case TypeOnlineUsers:
		var ids []string
		if err := json.Unmarshal(env.Payload, &ids); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return OnlineUsers{UserIDs: ids}, nil

	case TypeTyping:
		var t Typing
		if err := json.Unmarshal(env.Payload, &t); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		if t.UserID == "" {
			return nil, fmt.Errorf("decode %s: missing userId", env.Type)
		}
		return t, nil

	case TypeError:
		var e ServerError
		// The server sends either {"message": "..."} or a bare string.
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			var s string
			if err := json.Unmarshal(env.Payload, &s); err != nil {
				return nil, fmt.Errorf("decode %s: %w", env.Type, err)
			}
			e.Message = s
		}
		return e, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
}

// EncodeTyping builds the outbound typing frame.
func EncodeTyping(receiverID string, isTyping bool) ([]byte, error) {
	payload, err := json.Marshal(typingCommand{ReceiverID: receiverID, IsTyping: isTyping})
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: TypeTyping, Payload: payload})
}
