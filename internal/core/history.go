package core

// HistoryCapacity is the number of messages kept per room.
const HistoryCapacity = 100

// ChatHistoryCache keeps a bounded, ordered message history per room.
type ChatHistoryCache struct {
	capacity int
	rooms    map[string][]Message
}

// NewChatHistoryCache creates a cache keeping at most capacity messages per room.
func NewChatHistoryCache(capacity int) *ChatHistoryCache {
	if capacity <= 0 {
		capacity = HistoryCapacity
	}
	return &ChatHistoryCache{
		capacity: capacity,
		rooms:    make(map[string][]Message),
	}
}

// Record appends msg to the room history, evicting the oldest entries past capacity.
func (h *ChatHistoryCache) Record(roomID string, msg Message) {
	msgs := append(h.rooms[roomID], msg)
	if len(msgs) > h.capacity {
		msgs = msgs[len(msgs)-h.capacity:]
	}
	h.rooms[roomID] = msgs
}

// Replace installs a full history for the room, keeping the newest entries.
func (h *ChatHistoryCache) Replace(roomID string, msgs []Message) {
	if len(msgs) > h.capacity {
		msgs = msgs[len(msgs)-h.capacity:]
	}
	h.rooms[roomID] = append([]Message(nil), msgs...)
}

// Snapshot returns a copy of the room history, oldest first.
func (h *ChatHistoryCache) Snapshot(roomID string) []Message {
	msgs := h.rooms[roomID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// Len returns the number of cached messages for the room.
func (h *ChatHistoryCache) Len(roomID string) int {
	return len(h.rooms[roomID])
}

// Clear drops the room history.
func (h *ChatHistoryCache) Clear(roomID string) {
	delete(h.rooms, roomID)
}

// Reset drops every room.
func (h *ChatHistoryCache) Reset() {
	h.rooms = make(map[string][]Message)
}
