package term

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/store"
)

// Client is the controller surface the terminal client drives.
type Client interface {
	Updates() <-chan core.Update

	Connect(ctx context.Context, username string) error
	Disconnect(ctx context.Context) error
	SendMessage(ctx context.Context, text string) error
	SwitchRoom(ctx context.Context, roomID string) error
	CreateRoom(ctx context.Context, spec core.RoomSpec) error
	JoinRoom(ctx context.Context, code, password string) error
	DeleteRoom(ctx context.Context, roomID string) error
	Kick(ctx context.Context, user, roomID string) error
	Ban(ctx context.Context, user, roomID string) error
	Unban(ctx context.Context, user, roomID string) error
	Promote(ctx context.Context, user, roomID string) error
	RequestRoomInfo(ctx context.Context, roomID string) error
	RefreshPrivateRooms(ctx context.Context) error

	Session(ctx context.Context) (core.SessionView, error)
	Rooms(ctx context.Context) ([]core.Room, error)
	Stats(ctx context.Context) (core.StatsSnapshot, error)
	Notifications(ctx context.Context) ([]core.Notification, error)
	MarkNotificationRead(ctx context.Context, id uint64) error
	MarkAllNotificationsRead(ctx context.Context) error
	Settings(ctx context.Context) (store.Settings, error)
	UpdateSettings(ctx context.Context, fn func(*store.Settings)) (store.Settings, error)
}

// UI is a line-oriented chat client: plain lines are messages, lines starting with a
// slash are commands.
type UI struct {
	client Client
	in     io.Reader
	out    io.Writer
	theme  Theme
	log    *zerolog.Logger

	cmds map[string]command

	outMu sync.Mutex

	roomsMu   sync.Mutex
	roomNames map[string]string

	timestamps atomic.Bool
}

// New builds the terminal client. It reads commands from in and prints to out.
func New(client Client, in io.Reader, out io.Writer, logger *zerolog.Logger) *UI {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	u := &UI{
		client:    client,
		in:        in,
		out:       out,
		theme:     NewTheme(out, false),
		log:       logger,
		roomNames: make(map[string]string),
	}
	u.cmds = u.commands()
	u.timestamps.Store(true)
	u.rememberRooms(core.BuiltinRooms())
	return u
}

// Run connects as username (when set) and processes input until /quit, end of input
// or ctx cancellation. The session is closed on return.
func (u *UI) Run(ctx context.Context, username string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s, err := u.client.Settings(ctx); err == nil {
		u.applySettings(s)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		u.pump(ctx)
	}()
	defer wg.Wait()
	defer cancel()

	defer func() {
		if err := u.client.Disconnect(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, core.ErrStopped) {
			u.log.Debug().Err(err).Msg("disconnect on exit")
		}
	}()

	u.println(u.theme.Header().Render("WireChat"), u.theme.Muted().Render("Type /help for commands."))
	if username != "" {
		if err := u.client.Connect(ctx, username); err != nil {
			u.report(err)
		}
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(u.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := u.Execute(ctx, line)
			if err != nil {
				u.report(err)
			}
			if quit {
				return nil
			}
		}
	}
}

// pump prints controller updates until ctx is done.
func (u *UI) pump(ctx context.Context) {
	updates := u.client.Updates()
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-updates:
			if !ok {
				return
			}
			if lines := u.render(up); len(lines) > 0 {
				u.println(lines...)
			}
		}
	}
}

// report prints errors the controller does not publish as updates itself.
func (u *UI) report(err error) {
	var coreErr *core.Error
	var rateErr *core.RateLimitError
	if errors.As(err, &coreErr) || errors.As(err, &rateErr) {
		return
	}
	u.println(u.theme.Error().Render("! " + err.Error()))
}

func (u *UI) println(lines ...string) {
	u.outMu.Lock()
	defer u.outMu.Unlock()
	for _, line := range lines {
		fmt.Fprintln(u.out, line)
	}
}

func (u *UI) applySettings(s store.Settings) {
	u.timestamps.Store(s.ShowTimestamps)
	u.theme.renderer.SetHasDarkBackground(s.DarkMode)
}

func (u *UI) showTimestamps() bool {
	return u.timestamps.Load()
}

func (u *UI) rememberRooms(rooms []core.Room) {
	u.roomsMu.Lock()
	defer u.roomsMu.Unlock()
	for _, r := range rooms {
		u.roomNames[r.ID] = r.DisplayName
	}
}

func (u *UI) roomTitle(id string) string {
	u.roomsMu.Lock()
	defer u.roomsMu.Unlock()
	if name := u.roomNames[id]; name != "" && !strings.EqualFold(name, id) {
		return fmt.Sprintf("%s (%s)", name, id)
	}
	if name := u.roomNames[id]; name != "" {
		return name
	}
	return id
}
