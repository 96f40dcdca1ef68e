package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vovakirdan/wirechat-client/internal/proto"
)

type inboundHandler func(c *Controller, frame proto.Frame) error

// handle adapts a typed handler to the dispatch table.
func handle[T any](fn func(c *Controller, payload T)) inboundHandler {
	return func(c *Controller, frame proto.Frame) error {
		var payload T
		if err := frame.Decode(&payload); err != nil {
			return err
		}
		fn(c, payload)
		return nil
	}
}

func newDispatchTable() map[string]inboundHandler {
	return map[string]inboundHandler{
		proto.EventNewMessage:    handle((*Controller).onNewMessage),
		proto.EventHistory:       handle((*Controller).onHistory),
		proto.EventUserJoined:    handle((*Controller).onUserJoined),
		proto.EventUserLeft:      handle((*Controller).onUserLeft),
		proto.EventUsersUpdate:   handle((*Controller).onUsersUpdate),
		proto.EventTyping:        handle((*Controller).onTyping),
		proto.EventStopTyping:    handle((*Controller).onStopTyping),
		proto.EventRoomCreated:   handle((*Controller).onRoomCreated),
		proto.EventRoomJoined:    handle((*Controller).onRoomJoined),
		proto.EventRoomError:     handle((*Controller).onRoomError),
		proto.EventAdminError:    handle((*Controller).onAdminError),
		proto.EventPrivateRooms:  handle((*Controller).onPrivateRooms),
		proto.EventRoomInfo:      handle((*Controller).onRoomInfo),
		proto.EventKicked:        handle((*Controller).onKicked),
		proto.EventBanned:        handle((*Controller).onBanned),
		proto.EventPromoted:      handle((*Controller).onPromoted),
		proto.EventRoomDeleted:   handle((*Controller).onRoomDeleted),
		proto.EventUsernameTaken: handle((*Controller).onUsernameTaken),
	}
}

// handleFrame routes a frame read from connection gen.
func (c *Controller) handleFrame(gen uint64, frame proto.Frame) {
	if gen != c.connGen || c.conn == nil {
		return
	}
	name := proto.Canonical(frame.Event)
	h, ok := c.handlers[name]
	if !ok {
		c.log.Debug().Str("event", frame.Event).Msg("ignoring unknown event")
		return
	}
	if err := h(c, frame); err != nil {
		c.log.Warn().Err(err).Str("event", name).Msg("malformed event")
	}
}

func (c *Controller) onNewMessage(p proto.MessageData) {
	room := p.Room
	if room == "" {
		room = c.session.CurrentRoomID
	}
	if p.Type == proto.MessageTypeSystem {
		if room == c.session.CurrentRoomID {
			c.emit(Update{Kind: UpdateSystem, Room: room, Text: p.Message})
		}
		return
	}

	msg := Message{
		Author:    p.Username,
		Text:      p.Message,
		Timestamp: p.Timestamp.Or(c.now()),
		IsOwn:     p.Username == c.session.Username,
	}
	c.history.Record(room, msg)

	if !msg.IsOwn {
		c.stats.RecordReceived()
		c.metrics.MessageReceived()
		if room == c.session.CurrentRoomID {
			c.typing.RemoteStop(msg.Author)
		}
		if c.settings.DesktopNotifications {
			c.notify(NotifyMessage, "New message from "+msg.Author, msg.Text)
		}
	}
	if room == c.session.CurrentRoomID {
		c.emit(Update{Kind: UpdateMessage, Room: room, Message: msg})
	}
}

func (c *Controller) onHistory(p proto.HistoryData) {
	room := p.Room
	if room == "" {
		room = c.session.CurrentRoomID
	}
	msgs := make([]Message, 0, len(p.Messages))
	for _, m := range p.Messages {
		if m.Type == proto.MessageTypeSystem {
			continue
		}
		msgs = append(msgs, Message{
			Author:    m.Username,
			Text:      m.Message,
			Timestamp: m.Timestamp.Or(c.now()),
			IsOwn:     m.Username == c.session.Username,
		})
	}
	c.history.Replace(room, msgs)
	if room == c.session.CurrentRoomID {
		c.emit(Update{Kind: UpdateHistory, Room: room, Messages: c.history.Snapshot(room)})
	}
}

func (c *Controller) onUserJoined(p proto.UserEventData) {
	if p.Username == "" || p.Username == c.session.Username {
		return
	}
	text := fmt.Sprintf("%s joined the chat", p.Username)
	c.emit(Update{Kind: UpdateSystem, Room: c.session.CurrentRoomID, Text: text})
	c.notify(NotifyUser, "User joined", text)
}

func (c *Controller) onUserLeft(p proto.UserEventData) {
	if p.Username == "" || p.Username == c.session.Username {
		return
	}
	c.typing.RemoteStop(p.Username)
	text := fmt.Sprintf("%s left the chat", p.Username)
	c.emit(Update{Kind: UpdateSystem, Room: c.session.CurrentRoomID, Text: text})
	c.notify(NotifyUser, "User left", text)
}

func (c *Controller) onUsersUpdate(users []proto.UserRef) {
	names := make([]string, 0, len(users))
	for _, u := range users {
		if u.Username != "" {
			names = append(names, u.Username)
		}
	}
	c.users = names
	c.stats.SetOnlineUsers(len(names))
	c.emit(Update{Kind: UpdateUsers, Room: c.session.CurrentRoomID, Users: append([]string(nil), names...)})
}

func (c *Controller) onTyping(p proto.TypingData) {
	if !c.typingApplies(p) {
		return
	}
	c.typing.RemoteStart(p.Username)
}

func (c *Controller) onStopTyping(p proto.TypingData) {
	if !c.typingApplies(p) {
		return
	}
	c.typing.RemoteStop(p.Username)
}

func (c *Controller) typingApplies(p proto.TypingData) bool {
	if p.Username == "" || p.Username == c.session.Username {
		return false
	}
	return p.Room == "" || p.Room == c.session.CurrentRoomID
}

func (c *Controller) onRoomCreated(p proto.RoomCreatedData) {
	code := strings.TrimSpace(p.Code)
	if code == "" {
		c.log.Warn().Str("name", p.Name).Msg("room-created without code")
		return
	}
	c.rooms.Install(Room{
		ID:          code,
		DisplayName: p.Name,
		MaxUsers:    p.MaxUsers,
		CreatedAt:   p.CreatedAt.Time,
	})
	creator := p.Creator
	if creator == "" {
		creator = c.session.Username
	}
	c.rooms.SetRole(code, creator, RoleAdmin)
	c.notify(NotifyRoom, "Room created", fmt.Sprintf("Private room %q created. Code: %s", p.Name, code))
	c.emit(Update{Kind: UpdateRooms, Rooms: c.rooms.List()})

	if err := c.transmit(proto.EventGetPrivateRooms, proto.UserRequest{Username: c.session.Username}); err != nil {
		c.log.Warn().Err(err).Msg("failed to refresh private rooms")
	}
}

func (c *Controller) onRoomJoined(p proto.RoomJoinedData) {
	code := strings.TrimSpace(p.Code)
	if code == "" {
		c.log.Warn().Str("name", p.Name).Msg("room-joined without code")
		return
	}
	c.rooms.Install(Room{
		ID:          code,
		DisplayName: p.Name,
		Users:       p.Users,
		MaxUsers:    p.MaxUsers,
	})
	role := RoleMember
	if p.IsAdmin {
		role = RoleAdmin
	}
	c.rooms.SetRole(code, c.session.Username, role)
	c.notify(NotifyRoom, "Joined room", fmt.Sprintf("Joined private room %s", p.Name))
	c.emit(Update{Kind: UpdateRooms, Rooms: c.rooms.List()})

	if code != c.session.CurrentRoomID {
		if err := c.enterRoom(code, false); err != nil {
			_ = c.fail(err)
		}
	}
}

func (c *Controller) onRoomError(p proto.ErrorData) {
	c.serverError(ErrCodeRoomError, "Room error", p)
}

func (c *Controller) onAdminError(p proto.ErrorData) {
	c.serverError(ErrCodeAdminError, "Admin error", p)
}

func (c *Controller) serverError(code, title string, p proto.ErrorData) {
	if p.Code != "" {
		code = p.Code
	}
	err := coreError(KindRoom, code, p.Message)
	c.notify(NotifyError, title, p.Message)
	_ = c.fail(err)
}

func (c *Controller) onPrivateRooms(list []proto.PrivateRoomData) {
	rooms := make([]Room, 0, len(list))
	for _, r := range list {
		rooms = append(rooms, Room{
			ID:          strings.TrimSpace(r.Code),
			DisplayName: r.Name,
			Users:       r.Users,
			MaxUsers:    r.MaxUsers,
		})
	}
	c.rooms.SyncPrivate(rooms, c.session.CurrentRoomID)
	c.emit(Update{Kind: UpdateRooms, Rooms: c.rooms.List()})
}

func (c *Controller) onRoomInfo(p proto.RoomInfoData) {
	code := strings.TrimSpace(p.Code)
	if _, known := c.rooms.Lookup(code); code == "" || !known {
		c.log.Debug().Str("room", code).Msg("room info for unknown room ignored")
		return
	}
	banned := p.BannedUsers
	if banned == nil {
		banned = []string{}
	}
	c.rooms.Install(Room{
		ID:          code,
		Users:       p.Users,
		MaxUsers:    p.MaxUsers,
		CreatedAt:   p.CreatedAt.Time,
		BannedUsers: banned,
	})
	room, ok := c.rooms.Lookup(code)
	if !ok {
		return
	}
	c.emit(Update{Kind: UpdateRoomInfo, Room: code, RoomInfo: &room})
}

func (c *Controller) onKicked(p proto.ModerationEventData) {
	roomID, name, _ := c.resolveRoom(p.RoomCode, p.RoomName)
	c.forceRemoval(ErrCodeKicked, roomID, "Kicked", removalText("You were kicked from", name, p.Admin))
}

func (c *Controller) onBanned(p proto.ModerationEventData) {
	roomID, name, _ := c.resolveRoom(p.RoomCode, p.RoomName)
	if roomID != "" {
		c.rooms.MarkBanned(roomID)
	}
	c.forceRemoval(ErrCodeBanned, roomID, "Banned", removalText("You were banned from", name, p.Admin))
}

func (c *Controller) onRoomDeleted(p proto.RoomDeletedData) {
	roomID, name, _ := c.resolveRoom(p.RoomCode, p.RoomName)
	c.forceRemoval(ErrCodeRoomDeleted, roomID, "Room deleted", fmt.Sprintf("Room %s was deleted", name))
}

func (c *Controller) onPromoted(p proto.ModerationEventData) {
	roomID, name, ok := c.resolveRoom(p.RoomCode, p.RoomName)
	if !ok {
		roomID = c.session.CurrentRoomID
	}
	c.rooms.SetRole(roomID, c.session.Username, RoleAdmin)
	c.notify(NotifyModeration, "Promoted", fmt.Sprintf("You are now an admin of %s", name))
	c.emit(Update{Kind: UpdateRooms, Rooms: c.rooms.List()})
}

func (c *Controller) onUsernameTaken(json.RawMessage) {
	c.log.Warn().Str("user", c.session.Username).Msg("username taken")
	c.epoch++
	c.teardown()
	c.setState(StateDisconnected)
	err := validationError(ErrCodeUsernameTaken, "username is already taken")
	c.notify(NotifyError, "Username taken", "Choose another username and connect again")
	_ = c.fail(err)
}

// forceRemoval handles the server taking the user out of a room. An empty roomID means
// the room could not be identified: the session still leaves for the default room but no
// local state is dropped.
func (c *Controller) forceRemoval(code, roomID, title, text string) {
	c.log.Info().Str("room", roomID).Str("reason", code).Msg("removed from room")
	current := c.session.CurrentRoomID
	if (roomID == "" || roomID == current) && current != c.cfg.DefaultRoom {
		if err := c.enterRoom(c.cfg.DefaultRoom, true); err != nil {
			c.log.Warn().Err(err).Msg("failed to move to default room")
		}
	}
	if roomID != "" {
		c.history.Clear(roomID)
		c.rooms.Forget(roomID)
	}
	c.notify(NotifyModeration, title, text)
	c.emit(Update{Kind: UpdateRooms, Rooms: c.rooms.List()})
	_ = c.fail(&Error{Kind: KindForcedRemoval, Code: code, Message: text})
}

// resolveRoom finds the affected room from a code or, for older servers, a display name.
// It reports false with an empty id when neither identifies a known room.
func (c *Controller) resolveRoom(code, name string) (string, string, bool) {
	if code = strings.TrimSpace(code); code != "" {
		if name == "" {
			if r, ok := c.rooms.Lookup(code); ok {
				name = r.DisplayName
			} else {
				name = code
			}
		}
		return code, name, true
	}
	if r, ok := c.rooms.FindByName(name); ok {
		return r.ID, r.DisplayName, true
	}
	if name == "" {
		name = "the room"
	}
	return "", name, false
}

func removalText(prefix, room, admin string) string {
	if admin == "" {
		return fmt.Sprintf("%s %s", prefix, room)
	}
	return fmt.Sprintf("%s %s by %s", prefix, room, admin)
}
