package core

import (
	"time"

	"github.com/benbjohnson/clock"
)

// timer is a pending callback that can be cancelled.
type timer interface {
	Stop() bool
}

// scheduler runs callbacks on the controller goroutine after a delay.
type scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) timer
}

// loopScheduler fires clock timers by posting the callback into the controller queue.
type loopScheduler struct {
	clock clock.Clock
	post  func(fn func())
}

// loopTimer is only touched from the controller goroutine, apart from the clock
// callback which does nothing but post.
type loopTimer struct {
	t    *clock.Timer
	done bool
}

func (s *loopScheduler) Now() time.Time {
	return s.clock.Now()
}

func (s *loopScheduler) AfterFunc(d time.Duration, fn func()) timer {
	lt := &loopTimer{}
	lt.t = s.clock.AfterFunc(d, func() {
		s.post(func() {
			// Stop may have run between the clock firing and this closure.
			if lt.done {
				return
			}
			lt.done = true
			fn()
		})
	})
	return lt
}

func (lt *loopTimer) Stop() bool {
	if lt.done {
		return false
	}
	lt.done = true
	lt.t.Stop()
	return true
}

func stopTimer(t timer) {
	if t != nil {
		t.Stop()
	}
}
