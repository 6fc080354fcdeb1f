package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"auth", ErrAuthentication, CodeAuthentication},
		{"wrapped room not found", fmt.Errorf("join: %w", ErrRoomNotFound), CodeNotFound},
		{"unavailable feature", ErrUnavailable, CodeNotFound},
		{"full", ErrRoomFull, CodeRoomFull},
		{"not a member", fmt.Errorf("send: %w", ErrNotRoomMember), CodeForbidden},
		{"not connected", ErrNotConnected, CodeNotConnected},
		{"bad status", ErrInvalidStatus, CodeValidation},
		{"bad notification", ErrInvalidNotification, CodeValidation},
		{"upstream", fmt.Errorf("%w: timeout", ErrUpstream), CodeUpstream},
		{"anything else", errors.New("boom"), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestParsePresenceStatus(t *testing.T) {
	for _, s := range []string{"online", "busy", "meeting", "away"} {
		status, err := ParsePresenceStatus(s)
		assert.NoError(t, err)
		assert.Equal(t, PresenceStatus(s), status)
	}

	for _, s := range []string{"offline", "", "ONLINE", "sleeping"} {
		_, err := ParsePresenceStatus(s)
		assert.ErrorIs(t, err, ErrInvalidStatus, s)
	}
}

func TestParseMessageKind(t *testing.T) {
	kind, err := ParseMessageKind("")
	assert.NoError(t, err)
	assert.Equal(t, MessageKindText, kind)

	kind, err = ParseMessageKind("file")
	assert.NoError(t, err)
	assert.Equal(t, MessageKindFile, kind)

	_, err = ParseMessageKind("video")
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestNotificationPayloadValidate(t *testing.T) {
	assert.NoError(t, NotificationPayload{Title: "Task assigned", Kind: "TASK_ASSIGNED"}.Validate())
	assert.ErrorIs(t, NotificationPayload{Kind: "TASK_ASSIGNED"}.Validate(), ErrInvalidNotification)
}
