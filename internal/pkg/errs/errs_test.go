package errs

import (
	"io"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"chatrelay/internal/pkg/logx"
)

func TestNewError(t *testing.T) {
	logx.SetOutput(io.Discard, zerolog.Disabled)

	t.Run("known code keeps its status", func(t *testing.T) {
		err := NewError(ErrRateLimitExceeded)
		assert.Equal(t, ErrRateLimitExceeded, err.Code)
		assert.Equal(t, http.StatusTooManyRequests, err.Status)
	})

	t.Run("missing status defaults to 200", func(t *testing.T) {
		err := NewError(ErrInvalidUsername)
		assert.Equal(t, http.StatusOK, err.Status)
	})

	t.Run("details fill the template", func(t *testing.T) {
		err := NewError(ErrMessageContentTooLong, 1000)
		assert.Equal(t, "Message is too long (max 1000 characters).", err.Message)
	})

	t.Run("unknown code falls back to ErrUnknown", func(t *testing.T) {
		err := NewError(424242)
		assert.Equal(t, ErrUnknown, err.Code)
		assert.Equal(t, http.StatusInternalServerError, err.Status)
	})

	t.Run("template without verb ignores details", func(t *testing.T) {
		err := NewError(ErrRoomNotFound, "extra")
		assert.Equal(t, "Chat room not found.", err.Message)
	})
}

func TestSessionNotFoundIsNotFound(t *testing.T) {
	logx.SetOutput(io.Discard, zerolog.Disabled)

	err := NewError(ErrSessionNotFound)
	assert.Equal(t, http.StatusNotFound, err.Status)
}
