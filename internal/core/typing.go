package core

import (
	"fmt"
	"time"

	"github.com/vovakirdan/wirechat-client/internal/proto"
)

// Typing defaults.
const (
	DefaultTypingQuietPeriod  = time.Second
	DefaultTypingStaleTimeout = 5 * time.Second
)

// TypingTracker holds local typing state and the remote typers of the active room.
type TypingTracker struct {
	quiet time.Duration
	stale time.Duration
	sched scheduler

	// send transmits typing or stop-typing for the current room.
	send func(event string)
	// changed is called whenever the display text may have changed.
	changed func(text string)

	local      bool
	quietTimer timer

	remote      []string
	staleTimers map[string]timer
}

// NewTypingTracker builds a tracker. send and changed may be nil.
func NewTypingTracker(quiet, stale time.Duration, sched scheduler, send func(string), changed func(string)) *TypingTracker {
	if quiet <= 0 {
		quiet = DefaultTypingQuietPeriod
	}
	if stale <= 0 {
		stale = DefaultTypingStaleTimeout
	}
	if send == nil {
		send = func(string) {}
	}
	if changed == nil {
		changed = func(string) {}
	}
	return &TypingTracker{
		quiet:       quiet,
		stale:       stale,
		sched:       sched,
		send:        send,
		changed:     changed,
		staleTimers: make(map[string]timer),
	}
}

// MarkTyping records a local keystroke. typing is sent only on the first keystroke of a burst;
// every keystroke restarts the quiet timer.
func (t *TypingTracker) MarkTyping() {
	if !t.local {
		t.local = true
		t.send(proto.EventTyping)
	}
	stopTimer(t.quietTimer)
	t.quietTimer = t.sched.AfterFunc(t.quiet, t.StopLocal)
}

// StopLocal ends the local burst, sending stop-typing if one was active.
func (t *TypingTracker) StopLocal() {
	stopTimer(t.quietTimer)
	t.quietTimer = nil
	if !t.local {
		return
	}
	t.local = false
	t.send(proto.EventStopTyping)
}

// Local reports whether the local user is in a typing burst.
func (t *TypingTracker) Local() bool {
	return t.local
}

// RemoteStart adds a remote typer, or refreshes its stale timer.
func (t *TypingTracker) RemoteStart(user string) {
	if user == "" {
		return
	}
	stopTimer(t.staleTimers[user])
	t.staleTimers[user] = t.sched.AfterFunc(t.stale, func() {
		delete(t.staleTimers, user)
		t.RemoteStop(user)
	})
	for _, u := range t.remote {
		if u == user {
			return
		}
	}
	t.remote = append(t.remote, user)
	t.changed(t.DisplayText())
}

// RemoteStop removes a remote typer if present.
func (t *TypingTracker) RemoteStop(user string) {
	stopTimer(t.staleTimers[user])
	delete(t.staleTimers, user)
	for i, u := range t.remote {
		if u == user {
			t.remote = append(t.remote[:i], t.remote[i+1:]...)
			t.changed(t.DisplayText())
			return
		}
	}
}

// Typers returns the remote typers in arrival order.
func (t *TypingTracker) Typers() []string {
	return append([]string(nil), t.remote...)
}

// Reset cancels every timer and forgets all typing state without sending anything.
func (t *TypingTracker) Reset() {
	stopTimer(t.quietTimer)
	t.quietTimer = nil
	t.local = false
	for user, tm := range t.staleTimers {
		tm.Stop()
		delete(t.staleTimers, user)
	}
	if len(t.remote) > 0 {
		t.remote = nil
		t.changed("")
	}
}

// DisplayText renders the remote typers for the status line.
func (t *TypingTracker) DisplayText() string {
	return TypingText(t.remote)
}

// TypingText renders a typing indicator for the given users.
func TypingText(users []string) string {
	switch len(users) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%s is typing…", users[0])
	case 2:
		return fmt.Sprintf("%s and %s are typing…", users[0], users[1])
	default:
		return fmt.Sprintf("%d people are typing…", len(users))
	}
}
