package htcp

import (
	"github.com/pion/logging"

	"github.com/htcpproto/htcp/pkg/crypto"
)

// DefaultMaxConnections and DefaultHandleConnections are the admission
// control capacities used when a Config leaves them unset.
const (
	DefaultMaxConnections    = 1000
	DefaultHandleConnections = 64
)

// Config holds all configuration for a Server.
type Config struct {
	// Host and Port give the bind address for the listener. Port 0
	// picks an ephemeral port.
	Host string
	Port int

	// Name identifies this server instance in log output.
	Name string

	// MaxConnections caps connection_semaphore. Must be >= 1.
	MaxConnections int

	// HandleConnections caps processing_semaphore. Must be >= 1 and
	// <= MaxConnections.
	HandleConnections int

	// DHEncryption requires a DH handshake before the first frame on
	// every accepted connection.
	DHEncryption bool

	// Profile selects the record cipher derived from the handshake.
	// Only meaningful when DHEncryption is true.
	Profile crypto.Profile

	// ConnectPasskey, if non-empty, requires a matching "_auth" frame
	// as the first post-handshake frame on every connection.
	ConnectPasskey string

	// LoggerFactory builds this server's loggers. When nil, logging is
	// a no-op.
	LoggerFactory logging.LoggerFactory
}

// applyDefaults fills unset fields with their defaults.
func (c *Config) applyDefaults() {
	if c.MaxConnections == 0 {
		c.MaxConnections = DefaultMaxConnections
	}
	if c.HandleConnections == 0 {
		c.HandleConnections = DefaultHandleConnections
	}
	if c.Name == "" {
		c.Name = "htcp-server"
	}
}

// Validate rejects invalid admission-control combinations.
func (c *Config) Validate() error {
	if c.MaxConnections != 0 && c.MaxConnections < 1 {
		return ErrInvalidMaxConnections
	}
	if c.HandleConnections != 0 {
		if c.HandleConnections < 1 {
			return ErrInvalidHandleConnections
		}
		max := c.MaxConnections
		if max == 0 {
			max = DefaultMaxConnections
		}
		if c.HandleConnections > max {
			return ErrInvalidHandleConnections
		}
	}
	return nil
}
