package term

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/store"
)

// UsageError reports a malformed command line.
type UsageError struct {
	Usage string
}

func (e *UsageError) Error() string {
	return "usage: " + e.Usage
}

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, args []string) (quit bool, err error)
}

// Execute runs one input line. It reports quit for /quit.
func (u *UI) Execute(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, u.client.SendMessage(ctx, line)
	}

	fields := splitArgs(line[1:])
	if len(fields) == 0 {
		return false, nil
	}
	name := strings.ToLower(fields[0])
	cmd, ok := u.cmds[name]
	if !ok {
		return false, fmt.Errorf("unknown command /%s, try /help", name)
	}
	return cmd.run(ctx, fields[1:])
}

func (u *UI) commands() map[string]command {
	return map[string]command{
		"help": {
			usage: "/help",
			help:  "list commands",
			run:   u.cmdHelp,
		},
		"connect": {
			usage: "/connect <username>",
			help:  "join the chat",
			run: func(ctx context.Context, args []string) (bool, error) {
				if len(args) != 1 {
					return false, &UsageError{Usage: "/connect <username>"}
				}
				return false, u.client.Connect(ctx, args[0])
			},
		},
		"leave": {
			usage: "/leave",
			help:  "leave the chat",
			run: func(ctx context.Context, _ []string) (bool, error) {
				return false, u.client.Disconnect(ctx)
			},
		},
		"quit": {
			usage: "/quit",
			help:  "leave and exit",
			run: func(context.Context, []string) (bool, error) {
				return true, nil
			},
		},
		"rooms": {
			usage: "/rooms",
			help:  "list rooms",
			run:   u.cmdRooms,
		},
		"refresh": {
			usage: "/refresh",
			help:  "reload your private rooms",
			run: func(ctx context.Context, _ []string) (bool, error) {
				return false, u.client.RefreshPrivateRooms(ctx)
			},
		},
		"switch": {
			usage: "/switch <room>",
			help:  "move to another room",
			run: func(ctx context.Context, args []string) (bool, error) {
				if len(args) != 1 {
					return false, &UsageError{Usage: "/switch <room>"}
				}
				return false, u.client.SwitchRoom(ctx, roomArg(args[0]))
			},
		},
		"create": {
			usage: `/create "<name>" [max users] [password]`,
			help:  "create a private room",
			run:   u.cmdCreate,
		},
		"join": {
			usage: "/join <code> [password]",
			help:  "join a private room",
			run: func(ctx context.Context, args []string) (bool, error) {
				if len(args) < 1 || len(args) > 2 {
					return false, &UsageError{Usage: "/join <code> [password]"}
				}
				return false, u.client.JoinRoom(ctx, args[0], optionalArg(args, 1))
			},
		},
		"delete": {
			usage: "/delete [room]",
			help:  "delete a private room you administer",
			run: func(ctx context.Context, args []string) (bool, error) {
				return false, u.client.DeleteRoom(ctx, roomArg(optionalArg(args, 0)))
			},
		},
		"kick":    u.moderation("kick", "remove a user from the room", u.client.Kick),
		"ban":     u.moderation("ban", "remove a user and keep them out", u.client.Ban),
		"unban":   u.moderation("unban", "lift a ban", u.client.Unban),
		"promote": u.moderation("promote", "make a user room admin", u.client.Promote),
		"info": {
			usage: "/info [room]",
			help:  "show room details (admins)",
			run: func(ctx context.Context, args []string) (bool, error) {
				return false, u.client.RequestRoomInfo(ctx, roomArg(optionalArg(args, 0)))
			},
		},
		"notifications": {
			usage: "/notifications",
			help:  "list notifications",
			run:   u.cmdNotifications,
		},
		"read": {
			usage: "/read [id|all]",
			help:  "mark notifications as read",
			run:   u.cmdRead,
		},
		"stats": {
			usage: "/stats",
			help:  "show session statistics",
			run:   u.cmdStats,
		},
		"settings": {
			usage: "/settings [name on|off]",
			help:  "show or change preferences",
			run:   u.cmdSettings,
		},
	}
}

func (u *UI) moderation(name, help string, fn func(ctx context.Context, user, roomID string) error) command {
	usage := fmt.Sprintf("/%s <user> [room]", name)
	return command{
		usage: usage,
		help:  help,
		run: func(ctx context.Context, args []string) (bool, error) {
			if len(args) < 1 || len(args) > 2 {
				return false, &UsageError{Usage: usage}
			}
			return false, fn(ctx, args[0], roomArg(optionalArg(args, 1)))
		},
	}
}

func (u *UI) cmdHelp(context.Context, []string) (bool, error) {
	names := make([]string, 0, len(u.cmds))
	for name := range u.cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		cmd := u.cmds[name]
		lines = append(lines, fmt.Sprintf("  %-32s %s", cmd.usage, cmd.help))
	}
	u.println(lines...)
	return false, nil
}

func (u *UI) cmdRooms(ctx context.Context, _ []string) (bool, error) {
	rooms, err := u.client.Rooms(ctx)
	if err != nil {
		return false, err
	}
	u.rememberRooms(rooms)
	current := ""
	if view, err := u.client.Session(ctx); err == nil {
		current = view.CurrentRoomID
	}
	u.println(formatRooms(rooms, current)...)
	return false, nil
}

func (u *UI) cmdCreate(ctx context.Context, args []string) (bool, error) {
	usage := &UsageError{Usage: `/create "<name>" [max users] [password]`}
	if len(args) < 1 || len(args) > 3 {
		return false, usage
	}
	spec := core.RoomSpec{Name: args[0], Password: optionalArg(args, 2)}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return false, usage
		}
		spec.MaxUsers = n
	}
	return false, u.client.CreateRoom(ctx, spec)
}

func (u *UI) cmdNotifications(ctx context.Context, _ []string) (bool, error) {
	list, err := u.client.Notifications(ctx)
	if err != nil {
		return false, err
	}
	u.println(formatNotifications(list)...)
	return false, nil
}

func (u *UI) cmdRead(ctx context.Context, args []string) (bool, error) {
	if len(args) == 0 || args[0] == "all" {
		return false, u.client.MarkAllNotificationsRead(ctx)
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil {
		return false, &UsageError{Usage: "/read [id|all]"}
	}
	return false, u.client.MarkNotificationRead(ctx, id)
}

func (u *UI) cmdStats(ctx context.Context, _ []string) (bool, error) {
	s, err := u.client.Stats(ctx)
	if err != nil {
		return false, err
	}
	u.println(formatStats(s)...)
	return false, nil
}

// settingFields maps command names to preference fields.
var settingFields = map[string]func(*store.Settings) *bool{
	"sound":      func(s *store.Settings) *bool { return &s.SoundEnabled },
	"desktop":    func(s *store.Settings) *bool { return &s.DesktopNotifications },
	"dark":       func(s *store.Settings) *bool { return &s.DarkMode },
	"animations": func(s *store.Settings) *bool { return &s.MessageAnimations },
	"enter":      func(s *store.Settings) *bool { return &s.SendOnEnter },
	"timestamps": func(s *store.Settings) *bool { return &s.ShowTimestamps },
}

func (u *UI) cmdSettings(ctx context.Context, args []string) (bool, error) {
	usage := &UsageError{Usage: "/settings [name on|off]"}
	switch len(args) {
	case 0:
		s, err := u.client.Settings(ctx)
		if err != nil {
			return false, err
		}
		u.println(formatSettings(s)...)
		return false, nil
	case 2:
	default:
		return false, usage
	}

	field, ok := settingFields[strings.ToLower(args[0])]
	if !ok {
		return false, usage
	}
	var value bool
	switch strings.ToLower(args[1]) {
	case "on", "true", "yes":
		value = true
	case "off", "false", "no":
	default:
		return false, usage
	}

	s, err := u.client.UpdateSettings(ctx, func(s *store.Settings) { *field(s) = value })
	if err != nil {
		return false, err
	}
	u.applySettings(s)
	u.println(u.theme.Muted().Render(fmt.Sprintf("* %s is %s", strings.ToLower(args[0]), onOff(value))))
	return false, nil
}

func formatSettings(s store.Settings) []string {
	names := make([]string, 0, len(settingFields))
	for name := range settingFields {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, fmt.Sprintf("  %-11s %s", name, onOff(*settingFields[name](&s))))
	}
	return out
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// roomArg maps a typed room to its id: built-in rooms match by id ignoring case, anything
// else is a private room code.
func roomArg(room string) string {
	room = strings.TrimSpace(room)
	if room == "" {
		return ""
	}
	for _, r := range core.BuiltinRooms() {
		if strings.EqualFold(r.ID, room) {
			return r.ID
		}
	}
	return core.NormalizeRoomCode(room)
}

func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// splitArgs splits on whitespace, keeping double-quoted runs together.
func splitArgs(s string) []string {
	var (
		out     []string
		cur     strings.Builder
		quoted  bool
		started bool
	)
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
			started = true
		case !quoted && (r == ' ' || r == '\t'):
			if started {
				out = append(out, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if started {
		out = append(out, cur.String())
	}
	return out
}

// IsUsage reports whether err is a command usage error.
func IsUsage(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}
