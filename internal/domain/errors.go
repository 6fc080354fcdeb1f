package domain

import "errors"

var (
	ErrAuthentication      = errors.New("authentication failed")
	ErrRoomNotFound        = errors.New("room not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrRoomFull            = errors.New("room is full")
	ErrNotRoomMember       = errors.New("not a member of the room")
	ErrForbidden           = errors.New("forbidden")
	ErrNotConnected        = errors.New("user is not connected")
	ErrInvalidEvent        = errors.New("invalid event")
	ErrInvalidStatus       = errors.New("invalid presence status")
	ErrInvalidMessage      = errors.New("invalid message")
	ErrInvalidNotification = errors.New("invalid notification")
	ErrUnavailable         = errors.New("feature not configured")
	ErrUpstream            = errors.New("upstream service error")
)

// Error codes sent to clients in error events and REST error bodies.
const (
	CodeAuthentication = "AUTHENTICATION_FAILED"
	CodeNotFound       = "NOT_FOUND"
	CodeRoomFull       = "ROOM_FULL"
	CodeForbidden      = "FORBIDDEN"
	CodeNotConnected   = "NOT_CONNECTED"
	CodeValidation     = "VALIDATION_ERROR"
	CodeUpstream       = "UPSTREAM_ERROR"
	CodeInternal       = "INTERNAL_ERROR"
)

// ErrorCode classifies err into a client-facing code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthentication):
		return CodeAuthentication
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrUserNotFound), errors.Is(err, ErrUnavailable):
		return CodeNotFound
	case errors.Is(err, ErrRoomFull):
		return CodeRoomFull
	case errors.Is(err, ErrNotRoomMember), errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrNotConnected):
		return CodeNotConnected
	case errors.Is(err, ErrInvalidEvent), errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidMessage), errors.Is(err, ErrInvalidNotification):
		return CodeValidation
	case errors.Is(err, ErrUpstream):
		return CodeUpstream
	default:
		return CodeInternal
	}
}
