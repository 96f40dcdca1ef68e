package proto

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// JoinData announces the session to the server.
type JoinData struct {
	Username string `json:"username"`
	Room     string `json:"room"`
	Token    string `json:"token,omitempty"`
}

// SendMessageData is a chat message written by the local user.
type SendMessageData struct {
	Username  string `json:"username"`
	Message   string `json:"message"`
	Room      string `json:"room"`
	Timestamp string `json:"timestamp"`
	ClientID  string `json:"clientId,omitempty"`
}

// RoomRef names a room on behalf of a user (switch-room, typing, stop-typing, get-history).
type RoomRef struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

// UserRequest carries only the requesting user (get-private-rooms, get-stats).
type UserRequest struct {
	Username string `json:"username"`
}

// CreateRoomData asks the server to create a private room.
type CreateRoomData struct {
	Name     string  `json:"name"`
	Password *string `json:"password"`
	MaxUsers int     `json:"maxUsers"`
	Creator  string  `json:"creator"`
}

// JoinRoomData asks the server to join a private room by code.
type JoinRoomData struct {
	Code     string  `json:"code"`
	Password *string `json:"password"`
	Username string  `json:"username"`
}

// ModerationData targets a user inside a room (kick-user, ban-user, make-admin, unban-user).
type ModerationData struct {
	TargetUsername string `json:"targetUsername"`
	RoomCode       string `json:"roomCode"`
}

// RoomCodeData names a room by code (delete-room, get-room-info).
type RoomCodeData struct {
	RoomCode string `json:"roomCode"`
}

// MessageData is a chat message broadcast by the server.
type MessageData struct {
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Room      string    `json:"room,omitempty"`
	Timestamp Timestamp `json:"timestamp"`
	Type      string    `json:"type,omitempty"`
}

// MessageTypeSystem marks server generated lines that are shown but not stored.
const MessageTypeSystem = "system"

// HistoryData is the server's answer to get-history.
type HistoryData struct {
	Room     string        `json:"room"`
	Messages []MessageData `json:"messages"`
}

// UnmarshalJSON accepts both the object form and a bare array of messages.
func (h *HistoryData) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		h.Room = ""
		return json.Unmarshal(trimmed, &h.Messages)
	}
	type plain HistoryData
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*h = HistoryData(p)
	return nil
}

// UserEventData is sent when a user joins or leaves a room.
type UserEventData struct {
	Username string `json:"username"`
	Room     string `json:"room,omitempty"`
}

// UserRef is a users-update entry. Servers send either a bare name or {"username": name}.
type UserRef struct {
	Username string `json:"username"`
}

// UnmarshalJSON accepts both entry shapes.
func (u *UserRef) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &u.Username)
	}
	type plain UserRef
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*u = UserRef(p)
	return nil
}

// TypingData announces that a user started or stopped typing.
type TypingData struct {
	Username string `json:"username"`
	Room     string `json:"room,omitempty"`
}

// RoomCreatedData acknowledges create-room.
type RoomCreatedData struct {
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	MaxUsers  int       `json:"maxUsers"`
	CreatedAt Timestamp `json:"createdAt"`
	Creator   string    `json:"creator,omitempty"`
}

// RoomJoinedData acknowledges join-room.
type RoomJoinedData struct {
	Name     string `json:"name"`
	Code     string `json:"code"`
	IsAdmin  bool   `json:"isAdmin"`
	Users    int    `json:"users"`
	MaxUsers int    `json:"maxUsers"`
}

// ErrorData is the payload of room-error and admin-error.
type ErrorData struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// PrivateRoomData is one entry of private-rooms-update.
type PrivateRoomData struct {
	Name     string `json:"name"`
	Code     string `json:"code"`
	Users    int    `json:"users"`
	MaxUsers int    `json:"maxUsers"`
}

// RoomInfoData answers get-room-info.
type RoomInfoData struct {
	Code        string    `json:"code"`
	Users       int       `json:"users"`
	MaxUsers    int       `json:"maxUsers"`
	CreatedAt   Timestamp `json:"createdAt"`
	BannedUsers []string  `json:"bannedUsers"`
}

// ModerationEventData is the payload of kicked, banned and promoted.
type ModerationEventData struct {
	RoomName string `json:"roomName"`
	RoomCode string `json:"roomCode,omitempty"`
	Admin    string `json:"admin,omitempty"`
}

// RoomDeletedData is the payload of room-deleted.
type RoomDeletedData struct {
	RoomName string `json:"roomName"`
	RoomCode string `json:"roomCode,omitempty"`
}

// Timestamp decodes either an RFC 3339 string or unix milliseconds.
type Timestamp struct {
	time.Time
}

// FormatTimestamp renders t the way outbound payloads carry it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// UnmarshalJSON implements json.Unmarshaler. Values in any other format leave the
// timestamp unset so the frame still decodes and Or supplies the receive time.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	ts.Time = time.Time{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			ts.Time = t
		}
		return nil
	}
	if ms, err := strconv.ParseFloat(string(trimmed), 64); err == nil {
		ts.Time = time.UnixMilli(int64(ms))
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(FormatTimestamp(ts.Time))
}

// Or returns the timestamp, or fallback when it is unset.
func (ts Timestamp) Or(fallback time.Time) time.Time {
	if ts.IsZero() {
		return fallback
	}
	return ts.Time
}
