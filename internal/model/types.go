package model

import "time"

// UnknownUsername is used for peers whose profile the server did not embed.
const UnknownUsername = "Unknown"

// User is a chat participant. ID is the stable key.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// MinimalPeer returns the placeholder profile for a peer known only by id.
func MinimalPeer(id string) User {
	return User{ID: id, Username: UnknownUsername, Email: ""}
}

// IsPlaceholder reports whether u was synthesized by MinimalPeer.
func (u User) IsPlaceholder() bool {
	return u.Username == UnknownUsername && u.Email == ""
}

// Message is a one-to-one chat message. Only Read ever changes after creation.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	Read       bool      `json:"read"`
	Timestamp  time.Time `json:"timestamp"`
}

// Involves reports whether userID is the sender or the receiver.
func (m Message) Involves(userID string) bool {
	return userID != "" && (m.SenderID == userID || m.ReceiverID == userID)
}

// PeerOf returns the participant that is not selfID.
func (m Message) PeerOf(selfID string) string {
	if m.SenderID == selfID {
		return m.ReceiverID
	}
	return m.SenderID
}

// Conversation is the directory entry for one peer.
type Conversation struct {
	ID          string   `json:"id"`
	Peer        User     `json:"user"`
	LastMessage *Message `json:"lastMessage,omitempty"`
	UnreadCount int      `json:"unreadCount"`
}

// Clone returns a copy that shares no pointers with c.
func (c Conversation) Clone() Conversation {
	if c.LastMessage != nil {
		m := *c.LastMessage
		c.LastMessage = &m
	}
	return c
}
