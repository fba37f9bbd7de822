package proto

import (
	"errors"
	"fmt"
)

var (
	// ErrFrameTooLarge - payload does not fit into the 2-byte length field.
	ErrFrameTooLarge = errors.New("proto: frame payload exceeds 65535 bytes")

	// ErrUnknownCommand - payload carries a command outside of register, join and message.
	ErrUnknownCommand = errors.New("proto: unknown command")

	// ErrMissingField - payload lacks a field required by its command.
	ErrMissingField = errors.New("proto: missing required field")

	// ErrMalformed - payload is not a JSON object or a field has the wrong type.
	ErrMalformed = errors.New("proto: malformed payload")
)

// ProtocolError is returned by every failing encode, write or decode.
// Msg is set when sending a message failed, Raw holds the payload bytes
// when a complete frame was read but could not be parsed.
type ProtocolError struct {
	Op  string
	Msg Message
	Raw []byte
	Err error
}

func (e *ProtocolError) Error() string {
	switch {
	case e.Msg != nil:
		return fmt.Sprintf("proto %s %s: %v", e.Op, e.Msg.Command(), e.Err)
	case e.Raw != nil:
		return fmt.Sprintf("proto %s %q: %v", e.Op, e.Raw, e.Err)
	default:
		return fmt.Sprintf("proto %s: %v", e.Op, e.Err)
	}
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// FrameConsumed reports whether the whole frame was read off the stream,
// so the next read starts on a frame boundary.
func (e *ProtocolError) FrameConsumed() bool {
	return e.Raw != nil
}
