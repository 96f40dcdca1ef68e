package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vovakirdan/wirechat-client/internal/proto"
	"github.com/vovakirdan/wirechat-client/internal/store"
)

// SendMessage sends text to the current room. The message shows up in history when the
// server echoes it back.
func (c *Controller) SendMessage(ctx context.Context, text string) error {
	return c.do(ctx, func() error { return c.sendMessage(text) })
}

// Typing records a local keystroke.
func (c *Controller) Typing(ctx context.Context) error {
	return c.do(ctx, func() error {
		if c.requireSession() != nil {
			return nil
		}
		c.typing.MarkTyping()
		return nil
	})
}

// SwitchRoom makes roomID the current room.
func (c *Controller) SwitchRoom(ctx context.Context, roomID string) error {
	return c.do(ctx, func() error { return c.switchRoom(roomID) })
}

// CreateRoom asks the server for a new private room.
func (c *Controller) CreateRoom(ctx context.Context, spec RoomSpec) error {
	return c.do(ctx, func() error { return c.createRoom(spec) })
}

// JoinRoom asks the server to join a private room by code.
func (c *Controller) JoinRoom(ctx context.Context, code, password string) error {
	return c.do(ctx, func() error { return c.joinRoom(code, password) })
}

// DeleteRoom deletes a private room. An empty roomID means the current room.
func (c *Controller) DeleteRoom(ctx context.Context, roomID string) error {
	return c.do(ctx, func() error { return c.deleteRoom(roomID) })
}

// Kick removes user from the room. An empty roomID means the current room.
func (c *Controller) Kick(ctx context.Context, user, roomID string) error {
	return c.do(ctx, func() error { return c.moderate(OpKick, user, roomID) })
}

// Ban removes user from the room and keeps them out.
func (c *Controller) Ban(ctx context.Context, user, roomID string) error {
	return c.do(ctx, func() error { return c.moderate(OpBan, user, roomID) })
}

// Promote makes user an admin of the room.
func (c *Controller) Promote(ctx context.Context, user, roomID string) error {
	return c.do(ctx, func() error { return c.moderate(OpPromote, user, roomID) })
}

// Unban lifts a ban.
func (c *Controller) Unban(ctx context.Context, user, roomID string) error {
	return c.do(ctx, func() error { return c.moderate(OpUnban, user, roomID) })
}

// RequestRoomInfo asks for occupancy and ban details of a room the caller administers.
func (c *Controller) RequestRoomInfo(ctx context.Context, roomID string) error {
	return c.do(ctx, func() error { return c.requestRoomInfo(roomID) })
}

// RefreshPrivateRooms asks for the private rooms the user belongs to.
func (c *Controller) RefreshPrivateRooms(ctx context.Context) error {
	return c.do(ctx, func() error {
		if err := c.requireSession(); err != nil {
			return c.fail(err)
		}
		return c.transmitOrFail(proto.EventGetPrivateRooms, proto.UserRequest{Username: c.session.Username})
	})
}

// RequestServerStats asks the server for its statistics.
func (c *Controller) RequestServerStats(ctx context.Context) error {
	return c.do(ctx, func() error {
		if err := c.requireSession(); err != nil {
			return c.fail(err)
		}
		return c.transmitOrFail(proto.EventGetStats, proto.UserRequest{Username: c.session.Username})
	})
}

// Session returns the current session.
func (c *Controller) Session(ctx context.Context) (SessionView, error) {
	return query(ctx, c, c.sessionView)
}

// History returns the cached history of a room. An empty roomID means the current room.
func (c *Controller) History(ctx context.Context, roomID string) ([]Message, error) {
	return query(ctx, c, func() []Message {
		if roomID == "" {
			roomID = c.session.CurrentRoomID
		}
		return c.history.Snapshot(roomID)
	})
}

// Rooms returns the room catalog.
func (c *Controller) Rooms(ctx context.Context) ([]Room, error) {
	return query(ctx, c, c.rooms.List)
}

// Banned reports whether the server banned the local user from roomID during this session.
func (c *Controller) Banned(ctx context.Context, roomID string) (bool, error) {
	return query(ctx, c, func() bool { return c.rooms.Banned(roomID) })
}

// Stats returns the session counters.
func (c *Controller) Stats(ctx context.Context) (StatsSnapshot, error) {
	return query(ctx, c, func() StatsSnapshot { return c.stats.Snapshot(c.now()) })
}

// Notifications returns the notifications, newest first.
func (c *Controller) Notifications(ctx context.Context) ([]Notification, error) {
	return query(ctx, c, c.notes.List)
}

// UnreadCount returns the number of unread notifications.
func (c *Controller) UnreadCount(ctx context.Context) (int, error) {
	return query(ctx, c, c.notes.UnreadCount)
}

// MarkNotificationRead marks one notification as read. Unknown ids are ignored.
func (c *Controller) MarkNotificationRead(ctx context.Context, id uint64) error {
	return c.do(ctx, func() error {
		c.notes.MarkRead(id)
		return nil
	})
}

// MarkAllNotificationsRead marks every notification as read.
func (c *Controller) MarkAllNotificationsRead(ctx context.Context) error {
	return c.do(ctx, func() error {
		c.notes.MarkAllRead()
		return nil
	})
}

// ClearNotifications removes every notification.
func (c *Controller) ClearNotifications(ctx context.Context) error {
	return c.do(ctx, func() error {
		c.notes.Clear()
		return nil
	})
}

// Settings returns the user preferences.
func (c *Controller) Settings(ctx context.Context) (store.Settings, error) {
	return query(ctx, c, func() store.Settings { return c.settings })
}

// UpdateSettings applies fn to the preferences and persists the result.
func (c *Controller) UpdateSettings(ctx context.Context, fn func(*store.Settings)) (store.Settings, error) {
	out := make(chan store.Settings, 1)
	err := c.do(ctx, func() error {
		s := c.settings
		fn(&s)
		s.Version = store.SettingsVersion
		c.settings = s
		out <- s
		if c.store == nil {
			return nil
		}
		if err := c.store.SaveSettings(c.runCtx, s); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
		return nil
	})
	if err != nil {
		return store.Settings{}, err
	}
	return <-out, nil
}

func (c *Controller) sessionView() SessionView {
	return SessionView{
		Session:   c.session,
		StateName: c.session.State.String(),
		IsAdmin:   c.rooms.IsAdmin(c.session.CurrentRoomID, c.session.Username),
		Users:     append([]string(nil), c.users...),
		Typing:    c.typing.DisplayText(),
	}
}

func (c *Controller) sendMessage(text string) error {
	text = strings.TrimSpace(text)
	if err := ValidateMessage(text); err != nil {
		return c.fail(err)
	}
	if err := c.requireSession(); err != nil {
		return c.fail(err)
	}
	now := c.now()
	if wait, ok := c.limiter.TryConsume(now); !ok {
		c.metrics.RateLimited()
		return c.fail(&RateLimitError{Text: text, RetryAfter: wait})
	}
	if err := c.transmit(proto.EventSendMessage, proto.SendMessageData{
		Username:  c.session.Username,
		Message:   text,
		Room:      c.session.CurrentRoomID,
		Timestamp: proto.FormatTimestamp(now),
		ClientID:  uuid.NewString(),
	}); err != nil {
		return c.fail(err)
	}
	c.stats.RecordSent()
	c.metrics.MessageSent()
	c.typing.StopLocal()
	return nil
}

func (c *Controller) switchRoom(roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == c.session.CurrentRoomID && roomID != "" {
		return nil
	}
	if err := c.requireSession(); err != nil {
		return c.fail(err)
	}
	if _, ok := c.rooms.Lookup(roomID); !ok {
		return c.fail(validationError(ErrCodeUnknownRoom, fmt.Sprintf("unknown room %q", roomID)))
	}
	if err := c.enterRoom(roomID, true); err != nil {
		return c.fail(err)
	}
	return nil
}

// enterRoom makes roomID current. announce tells the server about the move; it is false
// when the server already moved us.
func (c *Controller) enterRoom(roomID string, announce bool) error {
	c.typing.StopLocal()
	c.typing.Reset()
	c.session.CurrentRoomID = roomID
	c.saveLastRoom(roomID)
	c.log.Debug().Str("room", roomID).Msg("entered room")
	c.emit(Update{Kind: UpdateRoomChanged, Room: roomID, Messages: c.history.Snapshot(roomID)})

	ref := proto.RoomRef{Username: c.session.Username, Room: roomID}
	if announce {
		if err := c.transmit(proto.EventSwitchRoom, ref); err != nil {
			return err
		}
	}
	return c.transmit(proto.EventGetHistory, ref)
}

func (c *Controller) createRoom(spec RoomSpec) error {
	spec, err := c.rooms.ValidateCreate(spec)
	if err != nil {
		return c.fail(err)
	}
	if err := c.requireSession(); err != nil {
		return c.fail(err)
	}
	return c.transmitOrFail(proto.EventCreateRoom, proto.CreateRoomData{
		Name:     spec.Name,
		Password: optional(spec.Password),
		MaxUsers: spec.MaxUsers,
		Creator:  c.session.Username,
	})
}

func (c *Controller) joinRoom(code, password string) error {
	code = NormalizeRoomCode(code)
	if code == "" {
		return c.fail(validationError(ErrCodeBadRoomCode, "room code is required"))
	}
	if err := c.requireSession(); err != nil {
		return c.fail(err)
	}
	return c.transmitOrFail(proto.EventJoinRoom, proto.JoinRoomData{
		Code:     code,
		Password: optional(password),
		Username: c.session.Username,
	})
}

func (c *Controller) deleteRoom(roomID string) error {
	if err := c.requireSession(); err != nil {
		return c.fail(err)
	}
	roomID = c.targetRoom(roomID)
	if err := c.rooms.AuthorizeAdmin(c.session.Username, roomID, "delete rooms"); err != nil {
		return c.fail(err)
	}
	return c.transmitOrFail(proto.EventDeleteRoom, proto.RoomCodeData{RoomCode: roomID})
}

var moderationEvents = map[ModerationOp]string{
	OpKick:    proto.EventKickUser,
	OpBan:     proto.EventBanUser,
	OpPromote: proto.EventMakeAdmin,
	OpUnban:   proto.EventUnbanUser,
}

func (c *Controller) moderate(op ModerationOp, target, roomID string) error {
	if err := c.requireSession(); err != nil {
		return c.fail(err)
	}
	target = strings.TrimSpace(target)
	roomID = c.targetRoom(roomID)
	if err := c.rooms.AuthorizeModeration(op, c.session.Username, target, roomID); err != nil {
		return c.fail(err)
	}
	c.log.Info().Stringer("op", op).Str("target", target).Str("room", roomID).Msg("moderation request")
	return c.transmitOrFail(moderationEvents[op], proto.ModerationData{
		TargetUsername: target,
		RoomCode:       roomID,
	})
}

func (c *Controller) requestRoomInfo(roomID string) error {
	if err := c.requireSession(); err != nil {
		return c.fail(err)
	}
	roomID = c.targetRoom(roomID)
	if err := c.rooms.AuthorizeAdmin(c.session.Username, roomID, "view room info"); err != nil {
		return c.fail(err)
	}
	return c.transmitOrFail(proto.EventGetRoomInfo, proto.RoomCodeData{RoomCode: roomID})
}

func (c *Controller) targetRoom(roomID string) string {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return c.session.CurrentRoomID
	}
	return roomID
}

func (c *Controller) transmitOrFail(event string, payload any) error {
	if err := c.transmit(event, payload); err != nil {
		return c.fail(err)
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
