package internal

import "errors"

// Application errors are reported to the local operator only. The offending
// request is dropped and the connection stays open.
var (
	// ErrEmptyUsername - register request without a user name.
	ErrEmptyUsername = errors.New("chat: empty user name")

	// ErrEmptyChannel - join request without a channel name.
	ErrEmptyChannel = errors.New("chat: empty channel name")

	// ErrDuplicateJoin - join request for a channel the connection is already in.
	ErrDuplicateJoin = errors.New("chat: already joined channel")

	// ErrEmptyMessage - text request without a message body.
	ErrEmptyMessage = errors.New("chat: empty message")

	// ErrUnknownCommand - decoded message of a type the receiver does not handle.
	ErrUnknownCommand = errors.New("chat: unknown command")
)

// IsApplicationError reports whether err is one of the application errors above.
func IsApplicationError(err error) bool {
	for _, target := range []error{ErrEmptyUsername, ErrEmptyChannel, ErrDuplicateJoin, ErrEmptyMessage, ErrUnknownCommand} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
