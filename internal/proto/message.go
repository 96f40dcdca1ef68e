package proto

import (
	"encoding/json"
	"fmt"
)

// Frame is the envelope carried by every websocket text frame in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame encodes payload as the frame data. A nil payload produces a frame without data.
func NewFrame(event string, payload any) (Frame, error) {
	if payload == nil {
		return Frame{Event: event}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return Frame{Event: event, Data: data}, nil
}

// Decode unmarshals the frame data into v. Frames without data leave v untouched.
func (f Frame) Decode(v any) error {
	if len(f.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", f.Event, err)
	}
	return nil
}

// Outbound event names.
const (
	EventJoin            = "join"
	EventSendMessage     = "send-message"
	EventSwitchRoom      = "switch-room"
	EventTyping          = "typing"
	EventStopTyping      = "stop-typing"
	EventCreateRoom      = "create-room"
	EventJoinRoom        = "join-room"
	EventKickUser        = "kick-user"
	EventBanUser         = "ban-user"
	EventMakeAdmin       = "make-admin"
	EventUnbanUser       = "unban-user"
	EventDeleteRoom      = "delete-room"
	EventGetHistory      = "get-history"
	EventGetPrivateRooms = "get-private-rooms"
	EventGetRoomInfo     = "get-room-info"
	EventGetStats        = "get-stats"
)

// Inbound event names. typing and stop-typing are shared with the outbound set.
const (
	EventNewMessage    = "new-message"
	EventHistory       = "history"
	EventUserJoined    = "user-joined"
	EventUserLeft      = "user-left"
	EventUsersUpdate   = "users-update"
	EventRoomCreated   = "room-created"
	EventRoomJoined    = "room-joined"
	EventRoomError     = "room-error"
	EventPrivateRooms  = "private-rooms-update"
	EventRoomInfo      = "room-info"
	EventKicked        = "kicked"
	EventBanned        = "banned"
	EventPromoted      = "promoted"
	EventRoomDeleted   = "room-deleted"
	EventAdminError    = "admin-error"
	EventUsernameTaken = "username-taken"
)

// Older servers speak snake_case and a few differently named events.
var legacyInbound = map[string]string{
	"message":              EventNewMessage,
	"chat_message":         EventNewMessage,
	"user_joined":          EventUserJoined,
	"user_left":            EventUserLeft,
	"users_update":         EventUsersUpdate,
	"stop_typing":          EventStopTyping,
	"room_created":         EventRoomCreated,
	"room_joined":          EventRoomJoined,
	"room_error":           EventRoomError,
	"private_rooms_update": EventPrivateRooms,
	"room_info_update":     EventRoomInfo,
	"kicked_from_room":     EventKicked,
	"banned_from_room":     EventBanned,
	"promoted_to_admin":    EventPromoted,
	"room_deleted":         EventRoomDeleted,
	"admin_error":          EventAdminError,
	"username_taken":       EventUsernameTaken,
}

var legacyOutbound = map[string]string{
	EventSendMessage:     "message",
	EventSwitchRoom:      "switch_room",
	EventStopTyping:      "stop_typing",
	EventCreateRoom:      "create_room",
	EventJoinRoom:        "join_room",
	EventKickUser:        "kick_user",
	EventBanUser:         "ban_user",
	EventMakeAdmin:       "make_admin",
	EventUnbanUser:       "unban_user",
	EventDeleteRoom:      "delete_room",
	EventGetHistory:      "get_history",
	EventGetPrivateRooms: "get_private_rooms",
	EventGetRoomInfo:     "get_room_info",
	EventGetStats:        "get_stats",
}

// Canonical maps an inbound event name to its canonical form.
// Unknown names are returned unchanged.
func Canonical(name string) string {
	if canonical, ok := legacyInbound[name]; ok {
		return canonical
	}
	return name
}

// WireName returns the name to put on the wire for a canonical outbound event.
func WireName(name string, legacy bool) string {
	if !legacy {
		return name
	}
	if old, ok := legacyOutbound[name]; ok {
		return old
	}
	return name
}
