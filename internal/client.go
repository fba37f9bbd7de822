package internal

import (
	"errors"
	"fmt"
	"io"
	"net"
	"slices"
	"strings"
	"time"

	"cdchat/internal/proto"
	"cdchat/internal/reactor"
)

// Client is the interactive side of a chat session. Its state is touched only
// from reactor handlers and posted tasks.
type Client struct {
	name    string
	conn    net.Conn
	stream  *reactor.Stream
	input   *reactor.Stream
	reactor *reactor.Reactor
	out     io.Writer
	log     *activityLog

	active   string
	channels []string
	closed   bool

	// OnChange runs on the loop goroutine whenever the active channel or
	// the joined channels change.
	OnChange func()
}

// Dial connects to the server named by cfg, over WebSocket when a URL is set.
func Dial(cfg ClientConfig) (net.Conn, error) {
	if cfg.WebSocketURL != "" {
		return DialWebSocket(cfg.WebSocketURL)
	}
	conn, err := net.Dial("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("could not connect to server: %w", err)
	}
	return conn, nil
}

// NewClient builds a session for name over conn. Chat output goes to out,
// diagnostics to logOut.
func NewClient(name string, conn net.Conn, r *reactor.Reactor, out, logOut io.Writer) *Client {
	return &Client{
		name:    name,
		conn:    conn,
		stream:  reactor.NewStream(conn),
		reactor: r,
		out:     out,
		log:     newActivityLog(logOut),
		active:  DefaultChannel,
	}
}

// Name returns the display name.
func (c *Client) Name() string { return c.name }

// ActiveChannel returns the channel plain lines are sent to.
func (c *Client) ActiveChannel() string { return c.active }

// Channels returns the channels joined in this session.
func (c *Client) Channels() []string { return slices.Clone(c.channels) }

// Start registers the display name with the server and starts receiving.
func (c *Client) Start() error {
	if err := c.reactor.Register(c.stream, c.receive); err != nil {
		return fmt.Errorf("watch connection: %w", err)
	}
	if err := proto.Write(c.conn, proto.Register{User: c.name}); err != nil {
		c.reactor.Unregister(c.stream)
		return err
	}
	c.log.logActivity(fmt.Sprintf("Connected to chat server %s as %s", c.conn.RemoteAddr(), c.name))
	c.printf("Connection established with chat server as %s", c.name)
	return nil
}

// AttachInput reads command lines from r on the loop. End of input quits.
func (c *Client) AttachInput(r io.Reader) error {
	c.input = reactor.NewStream(r)
	return c.reactor.Register(c.input, func(reactor.Source) {
		line, err := c.input.ReadString('\n')
		if err != nil && line == "" {
			c.Quit()
			return
		}
		c.HandleInput(strings.TrimRight(line, "\r\n"))
	})
}

// HandleInput runs HandleLine and reports the outcome to the user. Rejected
// input is printed and the session goes on; any other failure means the
// connection is unusable and ends the session.
func (c *Client) HandleInput(line string) {
	err := c.HandleLine(line)
	switch {
	case err == nil, errors.Is(err, ErrEmptyMessage):
	case IsApplicationError(err):
		c.printf("Error. %v", err)
	default:
		c.printf("Connection lost: %v", err)
		c.close()
	}
}

// HandleLine interprets one line of local input: "exit", "/join <channel>"
// or a message for the active channel.
func (c *Client) HandleLine(line string) error {
	if c.closed {
		return net.ErrClosed
	}
	if line == "exit" {
		c.Quit()
		return nil
	}

	if fields := strings.Split(line, " "); len(fields) == 2 && fields[0] == "/join" {
		return c.join(fields[1])
	}

	if line == "" {
		return ErrEmptyMessage
	}
	if err := c.send(proto.NewText(line, c.active)); err != nil {
		return err
	}
	c.log.logActivity(fmt.Sprintf("Sent message to channel %q", c.active))
	return nil
}

func (c *Client) join(channel string) error {
	if channel == DefaultChannel {
		return ErrEmptyChannel
	}
	if slices.Contains(c.channels, channel) {
		c.log.logActivity(fmt.Sprintf("ERR join %q: %v", channel, ErrDuplicateJoin))
		return fmt.Errorf("%s is already in channel %q: %w", c.name, channel, ErrDuplicateJoin)
	}

	if err := c.send(proto.Join{Channel: channel}); err != nil {
		return err
	}
	c.channels = append(c.channels, channel)
	c.active = channel
	c.changed()
	c.printf("%s has joined %s", c.name, channel)
	return nil
}

// Quit says goodbye, releases the connection and stops the loop.
func (c *Client) Quit() {
	if c.closed {
		return
	}
	c.printf("%s left the server.", c.name)
	c.close()
}

func (c *Client) close() {
	if c.closed {
		return
	}
	c.closed = true
	c.reactor.Unregister(c.stream)
	if c.input != nil {
		c.reactor.Unregister(c.input)
	}
	c.conn.Close()
	c.log.logActivity("Disconnected")
	c.reactor.Stop()
}

func (c *Client) send(msg proto.Message) error {
	if err := proto.Write(c.conn, msg); err != nil {
		c.log.logActivity(fmt.Sprintf("ERR %v", err))
		return err
	}
	return nil
}

func (c *Client) receive(reactor.Source) {
	c.conn.SetReadDeadline(time.Now().Add(DefaultReadTimeout))
	msg, err := proto.Decode(c.stream)
	c.conn.SetReadDeadline(time.Time{})
	if err != nil {
		var perr *proto.ProtocolError
		if errors.As(err, &perr) && perr.FrameConsumed() {
			c.log.logActivity(fmt.Sprintf("ERR %v", err))
			return
		}
		if err != io.EOF {
			c.log.logActivity(fmt.Sprintf("ERR %v", err))
		}
		c.printf("Connection closed by server")
		c.close()
		return
	}

	text, ok := msg.(proto.Text)
	if !ok {
		c.log.logActivity(fmt.Sprintf("ERR unexpected %s from server", msg.Command()))
		return
	}
	c.log.logActivity(fmt.Sprintf("Received message: %q (channel %q)", text.Message, text.Channel))
	fmt.Fprintf(c.out, "< %s\n", text.Message)
}

func (c *Client) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format+"\n", args...)
}

func (c *Client) changed() {
	if c.OnChange != nil {
		c.OnChange()
	}
}
