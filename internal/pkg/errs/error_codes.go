/*
Package errs provides custom error types and application-level error code constants.

These codes identify business and system errors both inside the server and in the error
events and HTTP responses sent to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body is not valid JSON.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained data after the JSON value.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the caller exceeded its request or operation rate.
	ErrRateLimitExceeded = 1007

	// ErrUnsupportedEventType indicates that a WebSocket frame carried an unknown event type.
	ErrUnsupportedEventType = 1008
)

// 2xxx: Room and Content Business Logic Errors
const (
	// ErrRoomNotFound indicates that the requested room does not exist.
	ErrRoomNotFound = 2103

	// ErrRoomIDInvalid indicates that a room id is empty or too long.
	ErrRoomIDInvalid = 2105

	// ErrRoomNameInvalid indicates that a room name or description is outside its length bounds.
	ErrRoomNameInvalid = 2106

	// ErrMessageContentTooLong indicates that the message content exceeded the maximum length.
	ErrMessageContentTooLong = 2201

	// ErrMessageContentEmpty indicates that the message content was empty after trimming.
	ErrMessageContentEmpty = 2202
)

// 3xxx: User and Session Errors
const (
	// ErrInvalidUsername indicates that the sender name is blank, too short, too long or contains control characters.
	ErrInvalidUsername = 3101

	// ErrSessionNotFound indicates that no session exists with the requested id.
	ErrSessionNotFound = 3102
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
