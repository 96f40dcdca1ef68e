package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-client/internal/proto"
	"github.com/vovakirdan/wirechat-client/internal/store"
)

var errConnClosed = errors.New("connection closed")

// fakeConn records sent frames and delivers frames pushed by the test.
type fakeConn struct {
	mu      sync.Mutex
	sent    []proto.Frame
	sendErr error

	inbound   chan proto.Frame
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan proto.Frame, 16),
		closed:  make(chan struct{}),
	}
}

func (f *fakeConn) Send(_ context.Context, frame proto.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeConn) Receive(ctx context.Context) (proto.Frame, error) {
	select {
	case frame := <-f.inbound:
		return frame, nil
	case <-f.closed:
		return proto.Frame{}, errConnClosed
	case <-ctx.Done():
		return proto.Frame{}, ctx.Err()
	}
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeConn) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, frame := range f.sent {
		out = append(out, frame.Event)
	}
	return out
}

func (f *fakeConn) named(event string) []proto.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []proto.Frame
	for _, frame := range f.sent {
		if frame.Event == event {
			out = append(out, frame)
		}
	}
	return out
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

// fakeDialer hands out fakeConns, failing with the queued errors first.
type fakeDialer struct {
	mu    sync.Mutex
	calls int
	errs  []error
	fail  error
	conns []*fakeConn
}

func (d *fakeDialer) Dial(context.Context) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if len(d.errs) > 0 {
		err := d.errs[0]
		d.errs = d.errs[1:]
		if err != nil {
			return nil, err
		}
	} else if d.fail != nil {
		return nil, d.fail
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) setFail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = err
}

func (d *fakeDialer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// fakeScheduler is a manual clock; timers fire synchronously on Advance.
type fakeScheduler struct {
	now    time.Time
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	at      time.Time
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (s *fakeScheduler) Now() time.Time { return s.now }

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) timer {
	s.seq++
	t := &fakeTimer{at: s.now.Add(d), seq: s.seq, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) live() []*fakeTimer {
	var out []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].at.Equal(out[j].at) {
			return out[i].seq < out[j].seq
		}
		return out[i].at.Before(out[j].at)
	})
	return out
}

// Advance moves the clock forward, firing due timers in order.
func (s *fakeScheduler) Advance(d time.Duration) {
	target := s.now.Add(d)
	for {
		live := s.live()
		if len(live) == 0 || live[0].at.After(target) {
			break
		}
		next := live[0]
		s.now = next.at
		next.fired = true
		next.fn()
	}
	s.now = target
}

// FireNext jumps to the earliest pending timer and fires it.
func (s *fakeScheduler) FireNext() bool {
	live := s.live()
	if len(live) == 0 {
		return false
	}
	next := live[0]
	if next.at.After(s.now) {
		s.now = next.at
	}
	next.fired = true
	next.fn()
	return true
}

func (s *fakeScheduler) Pending() int {
	return len(s.live())
}

// fakeStorage keeps settings and the last room in memory.
type fakeStorage struct {
	settings store.Settings
	lastRoom string
	saves    int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{settings: store.DefaultSettings()}
}

func (f *fakeStorage) LoadSettings(context.Context) (store.Settings, error) {
	return f.settings, nil
}

func (f *fakeStorage) SaveSettings(_ context.Context, s store.Settings) error {
	f.settings = s
	f.saves++
	return nil
}

func (f *fakeStorage) LastRoom(context.Context) (string, error) {
	return f.lastRoom, nil
}

func (f *fakeStorage) SaveLastRoom(_ context.Context, roomID string) error {
	f.lastRoom = roomID
	return nil
}

// harness drives a controller synchronously from the test goroutine.
type harness struct {
	c      *Controller
	sched  *fakeScheduler
	dialer *fakeDialer
	store  *fakeStorage
	conn   *fakeConn
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sched:  newFakeScheduler(),
		dialer: &fakeDialer{},
		store:  newFakeStorage(),
	}
	h.c = newController(DefaultConfig(), h.dialer, nil, h.sched, WithStorage(h.store))
	t.Cleanup(func() { h.c.teardown() })
	return h
}

// connect runs the connect handshake against a fresh fakeConn and clears its sent frames.
func (h *harness) connect(t *testing.T, user string) {
	t.Helper()
	epoch, err := h.c.beginConnect(user)
	if err != nil {
		t.Fatalf("beginConnect: %v", err)
	}
	conn := newFakeConn()
	if err := h.c.finishConnect(epoch, conn, nil); err != nil {
		t.Fatalf("finishConnect: %v", err)
	}
	h.conn = conn
	conn.reset()
	h.drainUpdates()
}

func (h *harness) inject(t *testing.T, event string, payload any) {
	t.Helper()
	frame, err := proto.NewFrame(event, payload)
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	h.c.handleFrame(h.c.connGen, frame)
}

// echo plays back the last send-message the way the server broadcasts it.
func (h *harness) echo(t *testing.T) {
	t.Helper()
	frames := h.conn.named(proto.EventSendMessage)
	if len(frames) == 0 {
		t.Fatal("no send-message to echo")
	}
	var sent proto.SendMessageData
	if err := frames[len(frames)-1].Decode(&sent); err != nil {
		t.Fatalf("decode sent message: %v", err)
	}
	h.inject(t, proto.EventNewMessage, proto.MessageData{
		Username:  sent.Username,
		Message:   sent.Message,
		Room:      sent.Room,
		Timestamp: proto.Timestamp{Time: h.sched.Now()},
	})
}

func (h *harness) drainUpdates() []Update {
	var out []Update
	for {
		select {
		case u := <-h.c.updates:
			out = append(out, u)
		default:
			return out
		}
	}
}

func findUpdate(updates []Update, kind UpdateKind) (Update, bool) {
	for _, u := range updates {
		if u.Kind == kind {
			return u, true
		}
	}
	return Update{}, false
}

// runUntil executes posted work on the test goroutine until cond holds.
func runUntil(t *testing.T, c *Controller, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case fn := <-c.queue:
			fn()
		case <-deadline:
			t.Fatal("condition not reached")
		}
	}
}

// eventually polls cond the way tests of the running loop wait for effects.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out: %s", msg)
}
