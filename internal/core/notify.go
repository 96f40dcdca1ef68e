package core

import "time"

// NotificationCapacity is the number of notifications kept.
const NotificationCapacity = 50

// NotificationKind groups notifications for display.
type NotificationKind string

const (
	NotifyConnection NotificationKind = "connection"
	NotifyRoom       NotificationKind = "room"
	NotifyModeration NotificationKind = "moderation"
	NotifyMessage    NotificationKind = "message"
	NotifyUser       NotificationKind = "user"
	NotifyError      NotificationKind = "error"
)

// Notification is a user-facing notice.
type Notification struct {
	ID        uint64           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	CreatedAt time.Time        `json:"createdAt"`
	Read      bool             `json:"read"`
}

// NotificationCenter keeps the most recent notifications, newest first.
type NotificationCenter struct {
	capacity int
	nextID   uint64
	items    []Notification
}

// NewNotificationCenter creates a center keeping at most capacity entries.
func NewNotificationCenter(capacity int) *NotificationCenter {
	if capacity <= 0 {
		capacity = NotificationCapacity
	}
	return &NotificationCenter{capacity: capacity}
}

// Push inserts a new unread notification at the head and trims the tail.
func (n *NotificationCenter) Push(kind NotificationKind, title, body string, now time.Time) Notification {
	// Keep descending order even if the wall clock steps back.
	if len(n.items) > 0 && now.Before(n.items[0].CreatedAt) {
		now = n.items[0].CreatedAt
	}
	n.nextID++
	item := Notification{
		ID:        n.nextID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		CreatedAt: now,
	}
	n.items = append(n.items, Notification{})
	copy(n.items[1:], n.items)
	n.items[0] = item
	if len(n.items) > n.capacity {
		n.items = n.items[:n.capacity]
	}
	return item
}

// MarkRead flags the notification as read. It reports whether the id exists.
func (n *NotificationCenter) MarkRead(id uint64) bool {
	for i := range n.items {
		if n.items[i].ID == id {
			n.items[i].Read = true
			return true
		}
	}
	return false
}

// MarkAllRead flags every notification as read.
func (n *NotificationCenter) MarkAllRead() {
	for i := range n.items {
		n.items[i].Read = true
	}
}

// UnreadCount returns the number of unread notifications.
func (n *NotificationCenter) UnreadCount() int {
	count := 0
	for _, item := range n.items {
		if !item.Read {
			count++
		}
	}
	return count
}

// List returns a copy of the notifications, newest first.
func (n *NotificationCenter) List() []Notification {
	out := make([]Notification, len(n.items))
	copy(out, n.items)
	return out
}

// Clear removes every notification. Ids keep increasing.
func (n *NotificationCenter) Clear() {
	n.items = nil
}
