package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/proto"
	"github.com/vovakirdan/wirechat-client/internal/store"
)

// ErrStopped is returned by API calls once Run has returned.
var ErrStopped = errors.New("controller stopped")

const (
	queueSize   = 256
	sessionTick = time.Second
)

// Config tunes the controller. Zero values fall back to DefaultConfig.
type Config struct {
	DefaultRoom           string
	Token                 string
	ConnectTimeout        time.Duration
	WriteTimeout          time.Duration
	MaxReconnectAttempts  int
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	TypingQuietPeriod     time.Duration
	TypingStaleTimeout    time.Duration
	SendWindow            time.Duration
	LegacyEventNames      bool
	UpdateBuffer          int
}

// DefaultConfig returns the stock controller settings.
func DefaultConfig() Config {
	return Config{
		DefaultRoom:           DefaultRoomID,
		ConnectTimeout:        10 * time.Second,
		WriteTimeout:          5 * time.Second,
		MaxReconnectAttempts:  5,
		ReconnectInitialDelay: 500 * time.Millisecond,
		ReconnectMaxDelay:     10 * time.Second,
		TypingQuietPeriod:     DefaultTypingQuietPeriod,
		TypingStaleTimeout:    DefaultTypingStaleTimeout,
		SendWindow:            DefaultSendWindow,
		UpdateBuffer:          256,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.DefaultRoom == "" {
		c.DefaultRoom = def.DefaultRoom
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = def.MaxReconnectAttempts
	}
	if c.ReconnectInitialDelay <= 0 {
		c.ReconnectInitialDelay = def.ReconnectInitialDelay
	}
	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = def.ReconnectMaxDelay
	}
	if c.TypingQuietPeriod <= 0 {
		c.TypingQuietPeriod = def.TypingQuietPeriod
	}
	if c.TypingStaleTimeout <= 0 {
		c.TypingStaleTimeout = def.TypingStaleTimeout
	}
	if c.SendWindow <= 0 {
		c.SendWindow = def.SendWindow
	}
	if c.UpdateBuffer <= 0 {
		c.UpdateBuffer = def.UpdateBuffer
	}
	return c
}

// Option customizes a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) { c.clock = clk }
}

// WithStorage persists settings and the last room.
func WithStorage(s Storage) Option {
	return func(c *Controller) { c.store = s }
}

// WithMetrics forwards counters to r.
func WithMetrics(r Recorder) Option {
	return func(c *Controller) {
		if r != nil {
			c.metrics = r
		}
	}
}

// Controller owns the session and every component around it. All state is confined to
// the goroutine running Run; public methods post work to it and wait for the result.
type Controller struct {
	cfg     Config
	dialer  Dialer
	store   Storage
	log     *zerolog.Logger
	metrics Recorder
	clock   clock.Clock
	sched   scheduler

	queue   chan func()
	done    chan struct{}
	updates chan Update
	runCtx  context.Context

	session  Session
	users    []string
	settings store.Settings

	rooms   *RoomDirectory
	history *ChatHistoryCache
	typing  *TypingTracker
	limiter *RateLimiter
	notes   *NotificationCenter
	stats   SessionStats

	conn       Conn
	connGen    uint64
	connCtx    context.Context
	connCancel context.CancelFunc

	// epoch changes on every Connect and Disconnect so late dial results and
	// reconnect timers from an older session are ignored.
	epoch          uint64
	attempts       int
	backoff        *backoff.ExponentialBackOff
	reconnectTimer timer
	clockTimer     timer

	handlers map[string]inboundHandler
}

// New builds a controller that dials through dialer. Call Run before using it.
func New(cfg Config, dialer Dialer, logger *zerolog.Logger, opts ...Option) *Controller {
	return newController(cfg, dialer, logger, nil, opts...)
}

func newController(cfg Config, dialer Dialer, logger *zerolog.Logger, sched scheduler, opts ...Option) *Controller {
	cfg = cfg.withDefaults()
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	c := &Controller{
		cfg:      cfg,
		dialer:   dialer,
		log:      logger,
		metrics:  nopRecorder{},
		clock:    clock.New(),
		queue:    make(chan func(), queueSize),
		done:     make(chan struct{}),
		updates:  make(chan Update, cfg.UpdateBuffer),
		runCtx:   context.Background(),
		settings: store.DefaultSettings(),
		rooms:    NewRoomDirectory(),
		history:  NewChatHistoryCache(HistoryCapacity),
		limiter:  NewRateLimiter(cfg.SendWindow),
		notes:    NewNotificationCenter(NotificationCapacity),
		handlers: newDispatchTable(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if sched == nil {
		sched = &loopScheduler{clock: c.clock, post: c.post}
	}
	c.sched = sched
	c.typing = NewTypingTracker(cfg.TypingQuietPeriod, cfg.TypingStaleTimeout, sched, c.sendTyping, c.typingChanged)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.ReconnectInitialDelay
	b.MaxInterval = cfg.ReconnectMaxDelay
	c.backoff = b
	return c
}

// Updates streams changes for the UI. Updates are dropped when the consumer falls behind.
func (c *Controller) Updates() <-chan Update {
	return c.updates
}

// Run processes API calls, network frames and timers until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	c.runCtx = ctx
	defer close(c.done)

	c.loadSettings(ctx)
	c.log.Debug().Msg("controller started")

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case fn := <-c.queue:
			fn()
		}
	}
}

func (c *Controller) shutdown() {
	if c.session.State != StateDisconnected {
		c.epoch++
		c.teardown()
		c.session.State = StateDisconnected
		c.metrics.StateChanged(StateDisconnected.String())
	}
	c.log.Debug().Msg("controller stopped")
}

// post hands fn to the controller goroutine. It is a no-op once Run has returned.
func (c *Controller) post(fn func()) {
	select {
	case c.queue <- fn:
	case <-c.done:
	}
}

// do runs fn on the controller goroutine and returns its error.
func (c *Controller) do(ctx context.Context, fn func() error) error {
	errCh := make(chan error, 1)
	select {
	case c.queue <- func() { errCh <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
}

// query runs fn on the controller goroutine and returns its result.
func query[T any](ctx context.Context, c *Controller, fn func() T) (T, error) {
	out := make(chan T, 1)
	if err := c.do(ctx, func() error {
		out <- fn()
		return nil
	}); err != nil {
		var zero T
		return zero, err
	}
	return <-out, nil
}

// Connect validates username, dials the server and joins the last used room.
func (c *Controller) Connect(ctx context.Context, username string) error {
	epochCh := make(chan uint64, 1)
	if err := c.do(ctx, func() error {
		epoch, err := c.beginConnect(username)
		epochCh <- epoch
		return err
	}); err != nil {
		return err
	}
	epoch := <-epochCh

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	conn, dialErr := c.dialer.Dial(dialCtx)
	cancel()

	err := c.do(context.WithoutCancel(ctx), func() error {
		return c.finishConnect(epoch, conn, dialErr)
	})
	if errors.Is(err, ErrStopped) && conn != nil {
		_ = conn.Close()
	}
	return err
}

// Disconnect leaves the chat. It is safe to call in any state.
func (c *Controller) Disconnect(ctx context.Context) error {
	return c.do(ctx, func() error {
		c.disconnect("You left the chat")
		return nil
	})
}

func (c *Controller) beginConnect(username string) (uint64, error) {
	username = strings.TrimSpace(username)
	if err := ValidateUsername(username); err != nil {
		return 0, c.fail(err)
	}
	switch c.session.State {
	case StateConnecting, StateConnected, StateReconnecting:
		return 0, c.fail(connectionError(ErrCodeAlreadyConnected, "already connected", nil))
	}
	c.epoch++
	c.resetSessionState()
	c.session = Session{Username: username, State: c.session.State}
	c.setState(StateConnecting)
	return c.epoch, nil
}

func (c *Controller) finishConnect(epoch uint64, conn Conn, dialErr error) error {
	if epoch != c.epoch || c.session.State != StateConnecting {
		if conn != nil {
			_ = conn.Close()
		}
		return connectionError(ErrCodeConnectCancelled, "connect was cancelled", nil)
	}
	if dialErr != nil {
		c.log.Warn().Err(dialErr).Msg("connect failed")
		c.session = Session{State: c.session.State}
		c.setState(StateDisconnected)
		err := connectionError(ErrCodeDialFailed, "failed to connect to server", dialErr)
		c.notify(NotifyConnection, "Connection failed", err.Error())
		return c.fail(err)
	}

	now := c.now()
	c.attach(conn)
	c.session.CurrentRoomID = c.initialRoom()
	c.session.ConnectedAt = now
	c.stats.Start(now)
	c.attempts = 0
	c.backoff.Reset()
	c.setState(StateConnected)
	c.startSessionClock()

	c.log.Info().Str("user", c.session.Username).Str("room", c.session.CurrentRoomID).Msg("connected")
	c.notify(NotifyConnection, "Connected", fmt.Sprintf("Connected as %s", c.session.Username))
	c.emit(Update{Kind: UpdateRoomChanged, Room: c.session.CurrentRoomID, Messages: c.history.Snapshot(c.session.CurrentRoomID)})

	if err := c.announce(); err != nil {
		return c.fail(err)
	}
	return nil
}

// announce joins the current room and asks for its history.
func (c *Controller) announce() error {
	room := c.session.CurrentRoomID
	if err := c.transmit(proto.EventJoin, proto.JoinData{
		Username: c.session.Username,
		Room:     room,
		Token:    c.cfg.Token,
	}); err != nil {
		return err
	}
	return c.transmit(proto.EventGetHistory, proto.RoomRef{Username: c.session.Username, Room: room})
}

func (c *Controller) initialRoom() string {
	if c.store != nil {
		room, err := c.store.LastRoom(c.runCtx)
		if err != nil {
			c.log.Warn().Err(err).Msg("failed to load last room")
		} else if _, ok := c.rooms.Lookup(room); ok {
			return room
		}
	}
	if _, ok := c.rooms.Lookup(c.cfg.DefaultRoom); ok {
		return c.cfg.DefaultRoom
	}
	return DefaultRoomID
}

func (c *Controller) attach(conn Conn) {
	c.connGen++
	ctx, cancel := context.WithCancel(c.runCtx)
	c.conn = conn
	c.connCtx = ctx
	c.connCancel = cancel
	go c.readLoop(ctx, c.connGen, conn)
}

func (c *Controller) detach() {
	if c.conn == nil {
		return
	}
	c.connCancel()
	if err := c.conn.Close(); err != nil {
		c.log.Debug().Err(err).Msg("close connection")
	}
	c.conn = nil
	c.connCtx = nil
	c.connCancel = nil
}

func (c *Controller) readLoop(ctx context.Context, gen uint64, conn Conn) {
	for {
		frame, err := conn.Receive(ctx)
		if err != nil {
			c.post(func() { c.connectionLost(gen, err) })
			return
		}
		c.post(func() { c.handleFrame(gen, frame) })
	}
}

func (c *Controller) connectionLost(gen uint64, err error) {
	if gen != c.connGen || c.conn == nil {
		return
	}
	c.log.Warn().Err(err).Msg("connection lost")
	c.detach()
	c.typing.Reset()
	c.stopSessionClock()
	if c.session.State != StateConnected {
		return
	}
	c.attempts = 0
	c.backoff.Reset()
	c.setState(StateReconnecting)
	c.notify(NotifyConnection, "Reconnecting", "Connection lost, trying to reconnect")
	c.scheduleReconnect()
}

func (c *Controller) scheduleReconnect() {
	delay := c.backoff.NextBackOff()
	epoch := c.epoch
	c.reconnectTimer = c.sched.AfterFunc(delay, func() { c.reconnect(epoch) })
	c.log.Debug().Dur("delay", delay).Int("attempt", c.attempts+1).Msg("reconnect scheduled")
}

func (c *Controller) reconnect(epoch uint64) {
	c.reconnectTimer = nil
	if epoch != c.epoch || c.session.State != StateReconnecting {
		return
	}
	c.attempts++
	c.metrics.ReconnectAttempt()
	c.log.Info().Int("attempt", c.attempts).Msg("reconnecting")

	ctx := c.runCtx
	go func() {
		dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		conn, err := c.dialer.Dial(dialCtx)
		cancel()
		c.post(func() { c.reconnected(epoch, conn, err) })
	}()
}

func (c *Controller) reconnected(epoch uint64, conn Conn, err error) {
	if epoch != c.epoch || c.session.State != StateReconnecting {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.log.Warn().Err(err).Int("attempt", c.attempts).Msg("reconnect failed")
		if c.attempts >= c.cfg.MaxReconnectAttempts {
			c.giveUp()
			return
		}
		c.scheduleReconnect()
		return
	}

	c.attach(conn)
	c.attempts = 0
	c.backoff.Reset()
	c.setState(StateConnected)
	c.startSessionClock()
	c.notify(NotifyConnection, "Reconnected", "Connection restored")
	if err := c.announce(); err != nil {
		_ = c.fail(err)
	}
}

func (c *Controller) giveUp() {
	stopTimer(c.reconnectTimer)
	c.reconnectTimer = nil
	c.stopSessionClock()
	c.typing.Reset()
	c.setState(StateFailed)

	err := &Error{
		Kind:    KindConnection,
		Code:    ErrCodeReconnectFailed,
		Message: fmt.Sprintf("could not reconnect after %d attempts", c.attempts),
	}
	c.log.Error().Int("attempts", c.attempts).Msg("giving up reconnecting")
	c.notify(NotifyError, "Connection failed", err.Message)
	_ = c.fail(err)
}

func (c *Controller) disconnect(reason string) {
	if c.session.State == StateDisconnected {
		return
	}
	c.epoch++
	c.teardown()
	c.setState(StateDisconnected)
	c.log.Info().Str("reason", reason).Msg("disconnected")
	c.notify(NotifyConnection, "Disconnected", reason)
}

// teardown releases the connection and every timer, and resets the session.
func (c *Controller) teardown() {
	stopTimer(c.reconnectTimer)
	c.reconnectTimer = nil
	c.stopSessionClock()
	c.typing.Reset()
	c.detach()
	c.session = Session{State: c.session.State}
	c.resetSessionState()
}

func (c *Controller) resetSessionState() {
	c.users = nil
	c.stats.Reset()
	c.history.Reset()
	c.rooms.Reset()
	c.attempts = 0
	c.backoff.Reset()
}

func (c *Controller) startSessionClock() {
	c.stopSessionClock()
	c.clockTimer = c.sched.AfterFunc(sessionTick, c.tick)
}

func (c *Controller) stopSessionClock() {
	stopTimer(c.clockTimer)
	c.clockTimer = nil
}

func (c *Controller) tick() {
	c.clockTimer = c.sched.AfterFunc(sessionTick, c.tick)
	c.emit(Update{Kind: UpdateStats, Stats: c.stats.Snapshot(c.now())})
}

func (c *Controller) requireSession() error {
	if c.session.State != StateConnected || c.conn == nil {
		return connectionError(ErrCodeNotConnected, "not connected", nil)
	}
	return nil
}

// transmit encodes payload and writes it to the current connection.
func (c *Controller) transmit(event string, payload any) error {
	if c.conn == nil {
		return connectionError(ErrCodeNotConnected, "not connected", nil)
	}
	frame, err := proto.NewFrame(proto.WireName(event, c.cfg.LegacyEventNames), payload)
	if err != nil {
		return fmt.Errorf("transmit %s: %w", event, err)
	}
	ctx, cancel := context.WithTimeout(c.connCtx, c.cfg.WriteTimeout)
	defer cancel()
	if err := c.conn.Send(ctx, frame); err != nil {
		c.log.Warn().Err(err).Str("event", event).Msg("send failed")
		return connectionError(ErrCodeSendFailed, "failed to send "+event, err)
	}
	c.log.Debug().Str("event", event).Msg("sent")
	return nil
}

func (c *Controller) setState(s ConnectionState) {
	prev := c.session.State
	if prev == s {
		return
	}
	c.session.State = s
	c.metrics.StateChanged(s.String())
	c.log.Debug().Stringer("from", prev).Stringer("to", s).Msg("connection state changed")
	c.emit(Update{Kind: UpdateState, State: s})
}

func (c *Controller) emit(u Update) {
	select {
	case c.updates <- u:
	default:
		c.log.Warn().Stringer("kind", u.Kind).Msg("dropping update for slow consumer")
	}
}

// fail reports err to the UI and returns it.
func (c *Controller) fail(err error) error {
	c.log.Debug().Err(err).Msg("action failed")
	c.emit(Update{Kind: UpdateError, Err: err})
	return err
}

func (c *Controller) notify(kind NotificationKind, title, body string) {
	n := c.notes.Push(kind, title, body, c.now())
	c.emit(Update{Kind: UpdateNotification, Notification: &n})
}

func (c *Controller) now() time.Time {
	return c.sched.Now()
}

func (c *Controller) sendTyping(event string) {
	if c.conn == nil || c.session.State != StateConnected {
		return
	}
	if err := c.transmit(event, proto.TypingData{
		Username: c.session.Username,
		Room:     c.session.CurrentRoomID,
	}); err != nil {
		c.log.Debug().Err(err).Str("event", event).Msg("typing signal not sent")
	}
}

func (c *Controller) typingChanged(text string) {
	c.emit(Update{Kind: UpdateTyping, Room: c.session.CurrentRoomID, Text: text})
}

func (c *Controller) loadSettings(ctx context.Context) {
	if c.store == nil {
		return
	}
	s, err := c.store.LoadSettings(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to load settings, using defaults")
		return
	}
	c.settings = s
}

func (c *Controller) saveLastRoom(roomID string) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveLastRoom(c.runCtx, roomID); err != nil {
		c.log.Warn().Err(err).Str("room", roomID).Msg("failed to save last room")
	}
}
