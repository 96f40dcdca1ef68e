package core

// UpdateKind tells the UI what changed.
type UpdateKind int

const (
	// UpdateState reports a connection state change.
	UpdateState UpdateKind = iota
	// UpdateMessage delivers a message recorded in the current room.
	UpdateMessage
	// UpdateSystem delivers a transient line (joins, leaves, server notices).
	UpdateSystem
	// UpdateRoomChanged reports a new current room with its cached history.
	UpdateRoomChanged
	// UpdateHistory replaces the visible history of the current room.
	UpdateHistory
	// UpdateTyping carries the new typing indicator text.
	UpdateTyping
	// UpdateUsers carries the online user list.
	UpdateUsers
	// UpdateRooms reports a catalog or role change.
	UpdateRooms
	// UpdateRoomInfo carries room details requested by an admin.
	UpdateRoomInfo
	// UpdateNotification carries a freshly pushed notification.
	UpdateNotification
	// UpdateStats is emitted by the session clock.
	UpdateStats
	// UpdateError reports a failure the user should see.
	UpdateError
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateState:
		return "state"
	case UpdateMessage:
		return "message"
	case UpdateSystem:
		return "system"
	case UpdateRoomChanged:
		return "room_changed"
	case UpdateHistory:
		return "history"
	case UpdateTyping:
		return "typing"
	case UpdateUsers:
		return "users"
	case UpdateRooms:
		return "rooms"
	case UpdateRoomInfo:
		return "room_info"
	case UpdateNotification:
		return "notification"
	case UpdateStats:
		return "stats"
	case UpdateError:
		return "error"
	default:
		return "unknown"
	}
}

// Update is sent to the UI to describe what happened.
type Update struct {
	Kind         UpdateKind
	State        ConnectionState
	Room         string
	Message      Message
	Messages     []Message // UpdateRoomChanged, UpdateHistory
	Text         string    // UpdateSystem, UpdateTyping
	Users        []string
	Rooms        []Room
	RoomInfo     *Room
	Notification *Notification
	Stats        StatsSnapshot
	Err          error
}
