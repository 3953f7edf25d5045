// Package server provides HTTP server configuration and lifecycle management.
package server

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/Vanaheimr/Hermod-sub016/internal/config"
	"github.com/Vanaheimr/Hermod-sub016/internal/credential"
)

// Config holds the server configuration.
type Config struct {
	// Addr is the listen address, host:port.
	Addr string

	// TLS enables HTTPS when set.
	TLS *tls.Config

	// Timeouts
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:            "127.0.0.1:8443",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// FromConfig builds the server configuration from the service
// configuration, loading the listener's TLS credential when one is set.
func FromConfig(c *config.Config) (*Config, error) {
	out := &Config{
		Addr:            c.Server.Addr,
		ReadTimeout:     c.Server.ReadTimeout,
		WriteTimeout:    c.Server.WriteTimeout,
		IdleTimeout:     c.Server.IdleTimeout,
		ShutdownTimeout: c.Server.ShutdownTimeout,
	}
	if c.Server.TLSCertFile == "" {
		return out, nil
	}
	b, err := credential.Load(c.Server.TLSCertFile, c.Server.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS credential: %w", err)
	}
	cert, err := b.TLSCertificate()
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS credential: %w", err)
	}
	out.TLS = &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	return out, nil
}

// Scheme returns "https" when TLS is configured and "http" otherwise.
func (c *Config) Scheme() string {
	if c.TLS != nil {
		return "https"
	}
	return "http"
}
