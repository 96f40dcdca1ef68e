package core

import "time"

// ConnectionState is the controller lifecycle state.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session is the local user's view of the connection.
type Session struct {
	Username      string          `json:"username"`
	State         ConnectionState `json:"-"`
	CurrentRoomID string          `json:"currentRoom"`
	ConnectedAt   time.Time       `json:"connectedAt,omitzero"`
}

// SessionView is a Session snapshot with derived fields.
type SessionView struct {
	Session
	StateName string   `json:"state"`
	IsAdmin   bool     `json:"isAdmin"`
	Users     []string `json:"users"`
	Typing    string   `json:"typing,omitempty"`
}
