package internal

import (
	"os"
	"strings"
	"time"
)

const (
	// DefaultAddr is where the server listens and the client connects.
	DefaultAddr = "localhost:5000"
	// DefaultName is the client display name when none is given.
	DefaultName = "Foo"
	// DefaultServerLogFile is the server's activity log.
	DefaultServerLogFile = "server.log"
	// DefaultWriteTimeout bounds every outbound frame write.
	DefaultWriteTimeout = 10 * time.Second
	// DefaultReadTimeout bounds the read of a frame once its first byte arrived.
	DefaultReadTimeout = 10 * time.Second

	// LogFileEnv overrides the log destination of either process.
	LogFileEnv = "CDCHAT_LOG_FILE"
)

// ServerConfig holds the server settings.
type ServerConfig struct {
	Addr         string
	HTTPAddr     string // Empty disables the HTTP surface
	LogFile      string
	MaxClients   int // Zero means unlimited
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	EchoOnce     bool
}

// ClientConfig holds the client settings.
type ClientConfig struct {
	Addr         string
	WebSocketURL string // Dial this instead of Addr when set
	Name         string
	LogFile      string
	UI           bool
}

// DefaultServerConfig returns the server defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         DefaultAddr,
		LogFile:      DefaultServerLogFile,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
}

// DefaultClientConfig returns the client defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Addr:    DefaultAddr,
		Name:    DefaultName,
		LogFile: DefaultClientLogFile(),
	}
}

// Sanitize fills invalid or empty fields with defaults and applies the
// log file override from the environment.
func (cfg ServerConfig) Sanitize() ServerConfig {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	cfg.HTTPAddr = strings.TrimSpace(cfg.HTTPAddr)
	if cfg.MaxClients < 0 {
		cfg.MaxClients = 0
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	cfg.LogFile = logFileFromEnv(cfg.LogFile)
	if cfg.LogFile == "" {
		cfg.LogFile = DefaultServerLogFile
	}
	return cfg
}

// Sanitize fills invalid or empty fields with defaults and applies the
// log file override from the environment.
func (cfg ClientConfig) Sanitize() ClientConfig {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	cfg.WebSocketURL = strings.TrimSpace(cfg.WebSocketURL)
	cfg.Name = strings.TrimSpace(cfg.Name)
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	cfg.LogFile = logFileFromEnv(cfg.LogFile)
	if cfg.LogFile == "" {
		cfg.LogFile = DefaultClientLogFile()
	}
	return cfg
}

func logFileFromEnv(fallback string) string {
	if path := strings.TrimSpace(os.Getenv(LogFileEnv)); path != "" {
		return path
	}
	return strings.TrimSpace(fallback)
}
