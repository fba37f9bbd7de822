// Package proto implements the chat wire protocol: three message variants
// carried as JSON objects inside length-prefixed frames.
package proto

import "time"

// Command discriminates message variants on the wire.
type Command string

// Known commands
const (
	CommandRegister Command = "register"
	CommandJoin     Command = "join"
	CommandMessage  Command = "message"
)

// Message is one of Register, Join or Text.
type Message interface {
	Command() Command
}

// Register announces a display name for the connection.
type Register struct {
	User string
}

// Join requests subscription to a channel.
type Join struct {
	Channel string
}

// Text is a chat payload. An empty Channel means the default channel.
type Text struct {
	Message   string
	Channel   string
	Timestamp int64
}

func (Register) Command() Command { return CommandRegister }
func (Join) Command() Command     { return CommandJoin }
func (Text) Command() Command     { return CommandMessage }

// NewText builds a Text stamped with the current time in seconds.
func NewText(message, channel string) Text {
	return Text{
		Message:   message,
		Channel:   channel,
		Timestamp: time.Now().Unix(),
	}
}
