package internal

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"cdchat/internal/proto"
)

const timeLayout = "2006-01-02 15:04:05"

// activityLog writes timestamped operator lines.
type activityLog struct {
	logger *log.Logger
}

func newActivityLog(w io.Writer) *activityLog {
	if w == nil {
		w = io.Discard
	}
	return &activityLog{logger: log.New(w, "", 0)}
}

func (l *activityLog) logActivity(message string) {
	l.logger.Printf("[%s] %s", time.Now().Format(timeLayout), message)
}

func (l *activityLog) logError(id ConnID, err error) {
	l.logActivity(fmt.Sprintf("ERR %s: %v", id, err))
}

// OpenLogFile opens path for appending, creating it if needed.
func OpenLogFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, nil
}

// DefaultClientLogFile names the client log after the running binary.
func DefaultClientLogFile() string {
	name := filepath.Base(os.Args[0])
	if name == "" || name == "." {
		name = "cdchat"
	}
	return name + ".log"
}

// DisplayName is the name used in forwarded messages.
func (c *Connection) DisplayName() string {
	if c.name == "" {
		return "anonymous"
	}
	return c.name
}

func (c *Connection) sendMessage(msg proto.Message, timeout time.Duration) error {
	if timeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(timeout))
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	return proto.Write(c.conn, msg)
}

// receive decodes the next frame. The whole frame must arrive within timeout,
// so a peer that stops mid-frame cannot hold the loop.
func (c *Connection) receive(timeout time.Duration) (proto.Message, error) {
	if timeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(timeout))
		defer c.conn.SetReadDeadline(time.Time{})
	}
	return proto.Decode(c.stream)
}
