package core

import (
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-client/internal/proto"
)

func TestTypingText(t *testing.T) {
	tests := []struct {
		name  string
		users []string
		want  string
	}{
		{name: "nobody", users: nil, want: ""},
		{name: "one", users: []string{"alice"}, want: "alice is typing…"},
		{name: "two", users: []string{"alice", "bob"}, want: "alice and bob are typing…"},
		{name: "three", users: []string{"alice", "bob", "carol"}, want: "3 people are typing…"},
		{name: "many", users: []string{"a", "b", "c", "d", "e"}, want: "5 people are typing…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TypingText(tt.users); got != tt.want {
				t.Fatalf("TypingText(%v) = %q, want %q", tt.users, got, tt.want)
			}
		})
	}
}

type typingRecorder struct {
	sent []string
	text []string
}

func newTestTracker(sched scheduler) (*TypingTracker, *typingRecorder) {
	rec := &typingRecorder{}
	tr := NewTypingTracker(time.Second, 5*time.Second, sched,
		func(event string) { rec.sent = append(rec.sent, event) },
		func(text string) { rec.text = append(rec.text, text) })
	return tr, rec
}

func TestLocalTypingBurst(t *testing.T) {
	sched := newFakeScheduler()
	tr, rec := newTestTracker(sched)

	tr.MarkTyping()
	sched.Advance(600 * time.Millisecond)
	tr.MarkTyping()
	sched.Advance(600 * time.Millisecond)

	if len(rec.sent) != 1 || rec.sent[0] != proto.EventTyping {
		t.Fatalf("expected a single typing signal, got %v", rec.sent)
	}
	if !tr.Local() {
		t.Fatal("second keystroke should have restarted the quiet timer")
	}

	sched.Advance(400 * time.Millisecond)
	if len(rec.sent) != 2 || rec.sent[1] != proto.EventStopTyping {
		t.Fatalf("expected stop-typing after quiet period, got %v", rec.sent)
	}
	if tr.Local() {
		t.Fatal("local typing flag still set")
	}
}

func TestStopLocalIsIdempotent(t *testing.T) {
	sched := newFakeScheduler()
	tr, rec := newTestTracker(sched)

	tr.StopLocal()
	if len(rec.sent) != 0 {
		t.Fatalf("stop without typing sent %v", rec.sent)
	}
	tr.MarkTyping()
	tr.StopLocal()
	tr.StopLocal()
	if len(rec.sent) != 2 {
		t.Fatalf("expected typing + one stop, got %v", rec.sent)
	}
	if sched.Pending() != 0 {
		t.Fatalf("quiet timer left pending")
	}
}

func TestRemoteTypersKeepArrivalOrder(t *testing.T) {
	sched := newFakeScheduler()
	tr, _ := newTestTracker(sched)

	tr.RemoteStart("carol")
	tr.RemoteStart("alice")
	tr.RemoteStart("carol")
	if got := tr.Typers(); len(got) != 2 || got[0] != "carol" || got[1] != "alice" {
		t.Fatalf("typers = %v", got)
	}
	if got := tr.DisplayText(); got != "carol and alice are typing…" {
		t.Fatalf("display = %q", got)
	}

	tr.RemoteStop("carol")
	if got := tr.DisplayText(); got != "alice is typing…" {
		t.Fatalf("display after stop = %q", got)
	}
}

func TestRemoteTyperGoesStale(t *testing.T) {
	sched := newFakeScheduler()
	tr, rec := newTestTracker(sched)

	tr.RemoteStart("alice")
	sched.Advance(3 * time.Second)
	tr.RemoteStart("bob")
	sched.Advance(2 * time.Second)

	if got := tr.Typers(); len(got) != 1 || got[0] != "bob" {
		t.Fatalf("alice should have gone stale, typers = %v", got)
	}
	sched.Advance(3 * time.Second)
	if len(tr.Typers()) != 0 {
		t.Fatalf("bob should have gone stale, typers = %v", tr.Typers())
	}
	if last := rec.text[len(rec.text)-1]; last != "" {
		t.Fatalf("last display text = %q, want empty", last)
	}
}

func TestTypingResetCancelsTimers(t *testing.T) {
	sched := newFakeScheduler()
	tr, rec := newTestTracker(sched)

	tr.MarkTyping()
	tr.RemoteStart("alice")
	tr.Reset()

	if sched.Pending() != 0 {
		t.Fatalf("%d timers still pending", sched.Pending())
	}
	if tr.Local() || len(tr.Typers()) != 0 {
		t.Fatal("state not cleared")
	}
	sched.Advance(10 * time.Second)
	if len(rec.sent) != 1 {
		t.Fatalf("reset must not send stop-typing, got %v", rec.sent)
	}
}
