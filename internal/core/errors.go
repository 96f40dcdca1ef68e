package core

import (
	"fmt"
	"time"
)

// ErrorKind classifies failures surfaced by the core.
type ErrorKind int

const (
	// KindConnection covers dial failures, lost transports and exhausted reconnects.
	KindConnection ErrorKind = iota + 1
	// KindValidation covers malformed local input.
	KindValidation
	// KindPermission is returned when the cached role does not allow an action.
	KindPermission
	// KindInvalidTarget is returned for moderation actions aimed at nobody or at oneself.
	KindInvalidTarget
	// KindRateLimit is returned when a send falls inside the rate window.
	KindRateLimit
	// KindRoom covers room and admin errors reported by the server.
	KindRoom
	// KindForcedRemoval is surfaced when the server kicks, bans or deletes a room.
	KindForcedRemoval
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindValidation:
		return "validation"
	case KindPermission:
		return "permission"
	case KindInvalidTarget:
		return "invalid_target"
	case KindRateLimit:
		return "rate_limit"
	case KindRoom:
		return "room"
	case KindForcedRemoval:
		return "forced_removal"
	default:
		return "unknown"
	}
}

// Error codes for domain errors.
const (
	ErrCodeNotConnected     = "not_connected"
	ErrCodeAlreadyConnected = "already_connected"
	ErrCodeDialFailed       = "dial_failed"
	ErrCodeConnectCancelled = "connect_cancelled"
	ErrCodeSendFailed       = "send_failed"
	ErrCodeReconnectFailed  = "reconnect_failed"

	ErrCodeBadUsername   = "bad_username"
	ErrCodeUsernameTaken = "username_taken"
	ErrCodeBadMessage    = "bad_message"
	ErrCodeUnknownRoom   = "unknown_room"
	ErrCodeBadRoomName   = "bad_room_name"
	ErrCodeRoomExists    = "room_exists"
	ErrCodeBadMaxUsers   = "bad_max_users"
	ErrCodeBadRoomCode   = "bad_room_code"

	ErrCodeNotAdmin   = "not_admin"
	ErrCodeNoTarget   = "no_target"
	ErrCodeSelfTarget = "self_target"
	ErrCodeRateLimit  = "rate_limited"

	ErrCodeRoomError  = "room_error"
	ErrCodeAdminError = "admin_error"

	ErrCodeKicked      = "kicked"
	ErrCodeBanned      = "banned"
	ErrCodeRoomDeleted = "room_deleted"
)

// Error is the single error type returned by the core.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind, and by code when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

// Sentinels for errors.Is.
var (
	ErrConnection     = &Error{Kind: KindConnection, Message: "connection error"}
	ErrValidation     = &Error{Kind: KindValidation, Message: "validation error"}
	ErrPermission     = &Error{Kind: KindPermission, Message: "permission denied"}
	ErrInvalidTarget  = &Error{Kind: KindInvalidTarget, Message: "invalid target"}
	ErrRateLimited    = &Error{Kind: KindRateLimit, Message: "rate limited"}
	ErrRoom           = &Error{Kind: KindRoom, Message: "room error"}
	ErrForcedRemoval  = &Error{Kind: KindForcedRemoval, Message: "removed from room"}
	ErrNotConnected   = &Error{Kind: KindConnection, Code: ErrCodeNotConnected, Message: "not connected"}
	ErrUsernameTaken  = &Error{Kind: KindValidation, Code: ErrCodeUsernameTaken, Message: "username is already taken"}
	ErrReconnectLimit = &Error{Kind: KindConnection, Code: ErrCodeReconnectFailed, Message: "reconnect attempts exhausted"}
)

// RateLimitError reports a send that was refused by the rate limiter.
// Text is the refused message so the caller can retry it unchanged.
type RateLimitError struct {
	Text       string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("sending too fast, retry in %s", e.RetryAfter.Round(time.Millisecond))
}

// Is reports whether target is the rate limit sentinel.
func (e *RateLimitError) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == KindRateLimit
}

func coreError(kind ErrorKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func validationError(code, msg string) *Error {
	return coreError(KindValidation, code, msg)
}

func connectionError(code, msg string, err error) *Error {
	return &Error{Kind: KindConnection, Code: code, Message: msg, Err: err}
}
