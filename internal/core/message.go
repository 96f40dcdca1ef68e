package core

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Input limits.
const (
	MaxUsernameLength = 20
	MaxMessageLength  = 500
	MinRoomNameLength = 3
	MaxRoomNameLength = 30
)

// Message is the domain model for a chat message.
type Message struct {
	Author    string
	Text      string
	Timestamp time.Time
	IsOwn     bool
}

// ValidateUsername checks a trimmed username.
func ValidateUsername(name string) error {
	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		return validationError(ErrCodeBadUsername, "username is required")
	case n > MaxUsernameLength:
		return validationError(ErrCodeBadUsername, fmt.Sprintf("username must be at most %d characters", MaxUsernameLength))
	}
	return nil
}

// ValidateMessage checks a trimmed message body.
func ValidateMessage(text string) error {
	switch n := utf8.RuneCountInString(text); {
	case n == 0:
		return validationError(ErrCodeBadMessage, "message is empty")
	case n > MaxMessageLength:
		return validationError(ErrCodeBadMessage, fmt.Sprintf("message must be at most %d characters", MaxMessageLength))
	}
	return nil
}

// NormalizeRoomCode trims and uppercases a private room code.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
