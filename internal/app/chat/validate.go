package chat

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"chatrelay/internal/pkg/errs"
)

const (
	// MaxRoomIDLength is the longest accepted room id, in characters.
	MaxRoomIDLength = 100

	// DefaultMaxContentLength is the default message length limit, in characters.
	DefaultMaxContentLength = 1000

	MinUsernameLength = 3
	MaxUsernameLength = 50

	MinRoomNameLength        = 3
	MaxRoomNameLength        = 100
	MaxRoomDescriptionLength = 500
)

// ValidateRoomID checks that roomID is non-empty and not too long.
func ValidateRoomID(roomID string) *errs.CustomError {
	if strings.TrimSpace(roomID) == "" || utf8.RuneCountInString(roomID) > MaxRoomIDLength {
		return errs.NewError(errs.ErrRoomIDInvalid)
	}
	return nil
}

// ValidateUsername trims the sender name and checks its length in characters.
// Any script is allowed; control characters are not. It returns the trimmed name.
func ValidateUsername(username string) (string, *errs.CustomError) {
	trimmed := strings.TrimSpace(username)

	n := utf8.RuneCountInString(trimmed)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return "", errs.NewError(errs.ErrInvalidUsername)
	}
	if strings.IndexFunc(trimmed, unicode.IsControl) >= 0 {
		return "", errs.NewError(errs.ErrInvalidUsername)
	}
	return trimmed, nil
}

// ValidateContent trims content and checks it against maxLen characters.
// It returns the trimmed content.
func ValidateContent(content string, maxLen int) (string, *errs.CustomError) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", errs.NewError(errs.ErrMessageContentEmpty)
	}
	if utf8.RuneCountInString(trimmed) > maxLen {
		return "", errs.NewError(errs.ErrMessageContentTooLong, maxLen)
	}
	return trimmed, nil
}

// ValidateRoomDetails checks a room name and description for explicit creation.
// It returns both values trimmed.
func ValidateRoomDetails(name, description string) (string, string, *errs.CustomError) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)

	n := utf8.RuneCountInString(name)
	if n < MinRoomNameLength || n > MaxRoomNameLength || utf8.RuneCountInString(description) > MaxRoomDescriptionLength {
		return "", "", errs.NewError(errs.ErrRoomNameInvalid)
	}
	return name, description, nil
}
