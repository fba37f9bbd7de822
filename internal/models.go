package internal

import (
	"net"
	"slices"
	"time"

	"github.com/google/uuid"

	"cdchat/internal/reactor"
)

// DefaultChannel is the unscoped channel. It is never joined explicitly and is
// omitted from Text frames on the wire.
const DefaultChannel = ""

// ConnID is the opaque registry key of a connection.
type ConnID = uuid.UUID

// Connection represents one accepted client on the server.
type Connection struct {
	id       ConnID
	conn     net.Conn
	stream   *reactor.Stream
	name     string
	joinTime time.Time
	channels []string // Joined channels in join order
}

func newConnection(conn net.Conn) *Connection {
	return &Connection{
		id:       uuid.New(),
		conn:     conn,
		stream:   reactor.NewStream(conn),
		joinTime: time.Now(),
		channels: []string{DefaultChannel},
	}
}

// ID returns the registry key.
func (c *Connection) ID() ConnID { return c.id }

// Name returns the registered user name, empty until a Register was accepted.
func (c *Connection) Name() string { return c.name }

// Registered reports whether a user name is bound to the connection.
func (c *Connection) Registered() bool { return c.name != "" }

// Channels returns a copy of the joined channels.
func (c *Connection) Channels() []string {
	return slices.Clone(c.channels)
}

// IsMember reports whether the connection receives messages sent to channel.
func (c *Connection) IsMember(channel string) bool {
	return slices.Contains(c.channels, channel)
}

// RemoteAddr returns the peer address as text.
func (c *Connection) RemoteAddr() string {
	if c.conn == nil || c.conn.RemoteAddr() == nil {
		return "unknown"
	}
	return c.conn.RemoteAddr().String()
}

// Register binds name to the connection, replacing any earlier binding.
func (c *Connection) Register(name string) error {
	if name == "" {
		return ErrEmptyUsername
	}
	c.name = name
	return nil
}

// Join adds channel to the membership set. The first successful join replaces
// the default channel placeholder; later joins append.
func (c *Connection) Join(channel string) error {
	if channel == DefaultChannel {
		return ErrEmptyChannel
	}
	if c.IsMember(channel) {
		return ErrDuplicateJoin
	}
	if len(c.channels) == 1 && c.channels[0] == DefaultChannel {
		c.channels = []string{channel}
		return nil
	}
	c.channels = append(c.channels, channel)
	return nil
}

// ConnInfo is a read-only snapshot of a Connection.
type ConnInfo struct {
	ID       string    `json:"id"`
	User     string    `json:"user"`
	Channels []string  `json:"channels"`
	Remote   string    `json:"remote"`
	JoinedAt time.Time `json:"joined_at"`
}

func (c *Connection) info() ConnInfo {
	return ConnInfo{
		ID:       c.id.String(),
		User:     c.name,
		Channels: c.Channels(),
		Remote:   c.RemoteAddr(),
		JoinedAt: c.joinTime,
	}
}
