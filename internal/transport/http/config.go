// Package http carries overlay messages as HTTP POST requests. Endpoint
// addresses are base URLs; the listener is a gorilla/mux router.
package http

import (
	"time"
)

// Name is the protocol id endpoints use for this transport
const Name = "http"

// Config holds client and listener settings
type Config struct {
	// ListenAddress is where Listen binds, e.g. ":8470"
	ListenAddress string

	// Timeout bounds a single send
	Timeout time.Duration

	// MaxConnections limits idle connections kept per client
	MaxConnections int

	// KeepAlive specifies how long to keep idle connections alive
	KeepAlive time.Duration

	// MaxBodySize caps inbound message bodies
	MaxBodySize int64
}

// Validate applies defaults for zero values
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = 100
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = 30 * time.Second
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = 4 << 20
	}
	return nil
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() *Config {
	c := &Config{ListenAddress: ":8470"}
	_ = c.Validate()
	return c
}
