package core

import "time"

// SessionStats counts activity for the current session.
type SessionStats struct {
	sent        int
	received    int
	online      int
	connectedAt time.Time
}

// StatsSnapshot is a point-in-time copy of the session counters.
type StatsSnapshot struct {
	MessagesSent     int           `json:"messagesSent"`
	MessagesReceived int           `json:"messagesReceived"`
	TotalMessages    int           `json:"totalMessages"`
	OnlineUsers      int           `json:"onlineUsers"`
	SessionDuration  time.Duration `json:"-"`
	SessionMs        int64         `json:"sessionDurationMs"`
}

// Start resets the counters and starts the session clock at t.
func (s *SessionStats) Start(t time.Time) {
	*s = SessionStats{connectedAt: t}
}

// Reset zeroes everything.
func (s *SessionStats) Reset() {
	*s = SessionStats{}
}

func (s *SessionStats) RecordSent()     { s.sent++ }
func (s *SessionStats) RecordReceived() { s.received++ }

// SetOnlineUsers stores the size of the latest user list.
func (s *SessionStats) SetOnlineUsers(n int) { s.online = n }

// Snapshot returns the counters as of now.
func (s *SessionStats) Snapshot(now time.Time) StatsSnapshot {
	snap := StatsSnapshot{
		MessagesSent:     s.sent,
		MessagesReceived: s.received,
		TotalMessages:    s.sent + s.received,
		OnlineUsers:      s.online,
	}
	if !s.connectedAt.IsZero() && now.After(s.connectedAt) {
		snap.SessionDuration = now.Sub(s.connectedAt)
		snap.SessionMs = snap.SessionDuration.Milliseconds()
	}
	return snap
}
