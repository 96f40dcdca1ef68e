package term

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vovakirdan/wirechat-client/internal/core"
)

const timeLayout = "15:04"

// render turns an update into the lines to print. Updates with nothing to show
// return nil.
func (u *UI) render(up core.Update) []string {
	switch up.Kind {
	case core.UpdateState:
		return []string{u.theme.Muted().Render("* " + up.State.String())}
	case core.UpdateMessage:
		return []string{u.formatMessage(up.Message)}
	case core.UpdateSystem:
		return []string{u.theme.Notice().Render("* " + up.Text)}
	case core.UpdateRoomChanged:
		lines := []string{u.theme.Header().Render(fmt.Sprintf("== %s ==", u.roomTitle(up.Room)))}
		return append(lines, u.formatMessages(up.Messages)...)
	case core.UpdateHistory:
		if len(up.Messages) == 0 {
			return []string{u.theme.Muted().Render("* no messages yet")}
		}
		return u.formatMessages(up.Messages)
	case core.UpdateTyping:
		if up.Text == "" {
			return nil
		}
		return []string{u.theme.Muted().Render(up.Text)}
	case core.UpdateUsers:
		return []string{u.theme.Muted().Render(fmt.Sprintf("* online (%d): %s", len(up.Users), strings.Join(up.Users, ", ")))}
	case core.UpdateRooms:
		u.rememberRooms(up.Rooms)
		return nil
	case core.UpdateRoomInfo:
		if up.RoomInfo == nil {
			return nil
		}
		return u.formatRoomInfo(*up.RoomInfo)
	case core.UpdateNotification:
		if up.Notification == nil || up.Notification.Kind == core.NotifyMessage {
			return nil
		}
		n := up.Notification
		return []string{u.theme.Notice().Render(fmt.Sprintf("! %s: %s", n.Title, n.Body))}
	case core.UpdateError:
		return []string{u.formatError(up.Err)}
	default:
		return nil
	}
}

func (u *UI) formatMessage(m core.Message) string {
	var b strings.Builder
	if u.showTimestamps() {
		b.WriteString(u.theme.Muted().Render(m.Timestamp.Local().Format(timeLayout)))
		b.WriteByte(' ')
	}
	b.WriteString(u.theme.Author(m.IsOwn).Render(m.Author))
	b.WriteString(": ")
	b.WriteString(m.Text)
	return b.String()
}

func (u *UI) formatMessages(msgs []core.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, u.formatMessage(m))
	}
	return out
}

func (u *UI) formatRoomInfo(r core.Room) []string {
	lines := []string{
		u.theme.Header().Render(fmt.Sprintf("Room %s (%s)", r.DisplayName, r.ID)),
		fmt.Sprintf("  users: %d/%d", r.Users, r.MaxUsers),
	}
	if !r.CreatedAt.IsZero() {
		lines = append(lines, fmt.Sprintf("  created: %s", r.CreatedAt.Local().Format(time.DateTime)))
	}
	banned := "none"
	if len(r.BannedUsers) > 0 {
		banned = strings.Join(r.BannedUsers, ", ")
	}
	return append(lines, fmt.Sprintf("  banned: %s", banned))
}

func (u *UI) formatError(err error) string {
	var rl *core.RateLimitError
	if errors.As(err, &rl) {
		return u.theme.Error().Render(fmt.Sprintf("! slow down, try again in %s", rl.RetryAfter.Round(10*time.Millisecond)))
	}
	return u.theme.Error().Render("! " + err.Error())
}

func formatRooms(rooms []core.Room, current string) []string {
	out := make([]string, 0, len(rooms))
	for _, r := range rooms {
		marker := " "
		if r.ID == current {
			marker = "*"
		}
		line := fmt.Sprintf("%s %-10s %s", marker, r.ID, r.DisplayName)
		if r.Kind == core.RoomPrivate {
			line += fmt.Sprintf(" (private, %d/%d)", r.Users, r.MaxUsers)
		} else if r.Description != "" {
			line += " - " + r.Description
		}
		out = append(out, line)
	}
	return out
}

func formatNotifications(list []core.Notification) []string {
	if len(list) == 0 {
		return []string{"no notifications"}
	}
	out := make([]string, 0, len(list))
	for _, n := range list {
		mark := " "
		if !n.Read {
			mark = "•"
		}
		out = append(out, fmt.Sprintf("%s #%d %s %s: %s", mark, n.ID, n.CreatedAt.Local().Format(timeLayout), n.Title, n.Body))
	}
	return out
}

func formatStats(s core.StatsSnapshot) []string {
	return []string{
		fmt.Sprintf("sent: %d", s.MessagesSent),
		fmt.Sprintf("received: %d", s.MessagesReceived),
		fmt.Sprintf("total: %d", s.TotalMessages),
		fmt.Sprintf("online: %d", s.OnlineUsers),
		fmt.Sprintf("session: %s", s.SessionDuration.Truncate(time.Second)),
	}
}
