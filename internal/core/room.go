package core

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultRoomID is where sessions start and where forced removals land.
const DefaultRoomID = "gaming"

// Private room size limits.
const (
	DefaultMaxUsers = 5
	MinMaxUsers     = 2
	MaxMaxUsers     = 50
)

// RoomKind distinguishes the fixed catalog from server-created rooms.
type RoomKind int

const (
	RoomBuiltIn RoomKind = iota
	RoomPrivate
)

func (k RoomKind) String() string {
	if k == RoomPrivate {
		return "private"
	}
	return "built-in"
}

// Role is a user's standing inside a room.
type Role int

const (
	RoleMember Role = iota
	RoleAdmin
)

func (r Role) String() string {
	if r == RoleAdmin {
		return "admin"
	}
	return "member"
}

// Room describes a chat room. Private rooms use the server code as ID.
type Room struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Kind        RoomKind  `json:"kind"`
	Icon        string    `json:"icon,omitempty"`
	Description string    `json:"description,omitempty"`
	MaxUsers    int       `json:"maxUsers,omitempty"`
	Users       int       `json:"users,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
	BannedUsers []string  `json:"bannedUsers,omitempty"`
}

var builtinRooms = [...]Room{
	{ID: "gaming", DisplayName: "Gaming", Kind: RoomBuiltIn, Icon: "fas fa-gamepad", Description: "Gaming discussions and LFG • Let's play together!"},
	{ID: "coding", DisplayName: "Coding", Kind: RoomBuiltIn, Icon: "fas fa-code", Description: "Programming help and code sharing • Debug together!"},
	{ID: "chilling", DisplayName: "Chilling", Kind: RoomBuiltIn, Icon: "fas fa-coffee", Description: "Casual conversations and relaxation • Take it easy!"},
	{ID: "general", DisplayName: "General", Kind: RoomBuiltIn, Icon: "fas fa-comments", Description: "General discussions • Talk about anything!"},
}

// BuiltinRooms returns the fixed room catalog.
func BuiltinRooms() []Room {
	return append([]Room(nil), builtinRooms[:]...)
}

// RoomSpec is a create-room request.
type RoomSpec struct {
	Name     string
	Password string
	MaxUsers int
}

// ModerationOp is an admin action aimed at another user.
type ModerationOp int

const (
	OpKick ModerationOp = iota
	OpBan
	OpPromote
	OpUnban
)

func (op ModerationOp) String() string {
	switch op {
	case OpKick:
		return "kick"
	case OpBan:
		return "ban"
	case OpPromote:
		return "promote"
	case OpUnban:
		return "unban"
	default:
		return "unknown"
	}
}

type membershipKey struct {
	room string
	user string
}

// RoomDirectory is the room catalog plus the room-scoped roles learnt from the server.
type RoomDirectory struct {
	rooms  map[string]*Room
	order  []string
	roles  map[membershipKey]Role
	banned map[string]bool
}

// NewRoomDirectory creates a directory holding only the built-in rooms.
func NewRoomDirectory() *RoomDirectory {
	d := &RoomDirectory{}
	d.Reset()
	return d
}

// Reset drops private rooms, roles and ban records.
func (d *RoomDirectory) Reset() {
	d.rooms = make(map[string]*Room, len(builtinRooms))
	d.order = d.order[:0]
	for _, r := range builtinRooms {
		room := r
		d.rooms[room.ID] = &room
		d.order = append(d.order, room.ID)
	}
	d.roles = make(map[membershipKey]Role)
	d.banned = make(map[string]bool)
}

// Lookup returns a copy of the room.
func (d *RoomDirectory) Lookup(id string) (Room, bool) {
	r, ok := d.rooms[id]
	if !ok {
		return Room{}, false
	}
	return cloneRoom(r), true
}

// List returns the catalog, built-ins first, then private rooms in install order.
func (d *RoomDirectory) List() []Room {
	out := make([]Room, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, cloneRoom(d.rooms[id]))
	}
	return out
}

// Role returns the user's role in the room; unknown memberships are members.
func (d *RoomDirectory) Role(roomID, user string) Role {
	return d.roles[membershipKey{room: roomID, user: user}]
}

// SetRole records a role reported by the server.
func (d *RoomDirectory) SetRole(roomID, user string, role Role) {
	key := membershipKey{room: roomID, user: user}
	if role == RoleMember {
		delete(d.roles, key)
		return
	}
	d.roles[key] = role
}

// IsAdmin reports whether user is admin of the room.
func (d *RoomDirectory) IsAdmin(roomID, user string) bool {
	return d.Role(roomID, user) == RoleAdmin
}

// Install adds or updates a private room. Fields left zero keep their current value.
func (d *RoomDirectory) Install(room Room) {
	room.Kind = RoomPrivate
	existing, ok := d.rooms[room.ID]
	if !ok {
		r := room
		d.rooms[room.ID] = &r
		d.order = append(d.order, room.ID)
		return
	}
	if existing.Kind == RoomBuiltIn {
		return
	}
	if room.DisplayName != "" {
		existing.DisplayName = room.DisplayName
	}
	if room.MaxUsers > 0 {
		existing.MaxUsers = room.MaxUsers
	}
	if room.Users > 0 {
		existing.Users = room.Users
	}
	if !room.CreatedAt.IsZero() {
		existing.CreatedAt = room.CreatedAt
	}
	if room.BannedUsers != nil {
		existing.BannedUsers = append([]string(nil), room.BannedUsers...)
	}
}

// SyncPrivate mirrors the server's private room list. Rooms missing from the list are
// forgotten, except keep, which is the room the session is currently in.
func (d *RoomDirectory) SyncPrivate(rooms []Room, keep string) {
	listed := make(map[string]bool, len(rooms))
	for _, r := range rooms {
		if r.ID == "" {
			continue
		}
		listed[r.ID] = true
		d.Install(r)
	}
	for _, id := range append([]string(nil), d.order...) {
		r := d.rooms[id]
		if r.Kind == RoomPrivate && !listed[id] && id != keep {
			d.Forget(id)
		}
	}
}

// Forget removes the room's memberships and, for private rooms, its catalog entry.
func (d *RoomDirectory) Forget(roomID string) {
	for key := range d.roles {
		if key.room == roomID {
			delete(d.roles, key)
		}
	}
	r, ok := d.rooms[roomID]
	if !ok || r.Kind == RoomBuiltIn {
		return
	}
	delete(d.rooms, roomID)
	for i, id := range d.order {
		if id == roomID {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// FindByName looks a room up by display name, ignoring case.
func (d *RoomDirectory) FindByName(name string) (Room, bool) {
	if name == "" {
		return Room{}, false
	}
	for _, id := range d.order {
		if r := d.rooms[id]; strings.EqualFold(r.DisplayName, name) {
			return cloneRoom(r), true
		}
	}
	return Room{}, false
}

// MarkBanned records that the local user was banned from the room.
func (d *RoomDirectory) MarkBanned(roomID string) {
	d.banned[roomID] = true
}

// Banned reports whether the local user was banned from the room during this session.
func (d *RoomDirectory) Banned(roomID string) bool {
	return d.banned[roomID]
}

// NameTaken reports whether a known room already uses the display name, ignoring case.
func (d *RoomDirectory) NameTaken(name string) bool {
	for _, r := range d.rooms {
		if strings.EqualFold(r.DisplayName, name) || strings.EqualFold(r.ID, name) {
			return true
		}
	}
	return false
}

// ValidateCreate normalizes a create-room request.
func (d *RoomDirectory) ValidateCreate(spec RoomSpec) (RoomSpec, error) {
	spec.Name = strings.TrimSpace(spec.Name)
	switch n := utf8.RuneCountInString(spec.Name); {
	case n < MinRoomNameLength:
		return spec, validationError(ErrCodeBadRoomName, fmt.Sprintf("room name must be at least %d characters", MinRoomNameLength))
	case n > MaxRoomNameLength:
		return spec, validationError(ErrCodeBadRoomName, fmt.Sprintf("room name must be at most %d characters", MaxRoomNameLength))
	}
	if d.NameTaken(spec.Name) {
		return spec, validationError(ErrCodeRoomExists, fmt.Sprintf("a room named %q already exists", spec.Name))
	}
	if spec.MaxUsers == 0 {
		spec.MaxUsers = DefaultMaxUsers
	}
	if spec.MaxUsers < MinMaxUsers || spec.MaxUsers > MaxMaxUsers {
		return spec, validationError(ErrCodeBadMaxUsers, fmt.Sprintf("max users must be between %d and %d", MinMaxUsers, MaxMaxUsers))
	}
	return spec, nil
}

// AuthorizeModeration checks a moderation action against the cached roles.
func (d *RoomDirectory) AuthorizeModeration(op ModerationOp, caller, target, roomID string) error {
	if !d.IsAdmin(roomID, caller) {
		return coreError(KindPermission, ErrCodeNotAdmin, fmt.Sprintf("only room admins can %s users", op))
	}
	if target == "" {
		return coreError(KindInvalidTarget, ErrCodeNoTarget, "no user selected")
	}
	if target == caller && (op == OpKick || op == OpBan) {
		return coreError(KindInvalidTarget, ErrCodeSelfTarget, fmt.Sprintf("you cannot %s yourself", op))
	}
	return nil
}

// AuthorizeAdmin checks that caller is admin of the room.
func (d *RoomDirectory) AuthorizeAdmin(caller, roomID, action string) error {
	if !d.IsAdmin(roomID, caller) {
		return coreError(KindPermission, ErrCodeNotAdmin, fmt.Sprintf("only room admins can %s", action))
	}
	return nil
}

func cloneRoom(r *Room) Room {
	out := *r
	if r.BannedUsers != nil {
		out.BannedUsers = append([]string(nil), r.BannedUsers...)
	}
	return out
}
