package server

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/duduk-dev/duduk/internal/errors"
)

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	// Address is the address to listen on (e.g., "127.0.0.1:8000").
	// Default: "127.0.0.1:8000".
	Address string

	// HTTP server timeouts

	// ReadHeaderTimeout bounds reading request headers.
	// Default: 10 seconds.
	ReadHeaderTimeout time.Duration

	// ReadTimeout bounds reading the whole request.
	// Default: 30 seconds.
	ReadTimeout time.Duration

	// WriteTimeout bounds writing the response. It must leave room for
	// the render timeout.
	// Default: 60 seconds.
	WriteTimeout time.Duration

	// IdleTimeout bounds keep-alive connections.
	// Default: 120 seconds.
	IdleTimeout time.Duration

	// Server lifecycle

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// Observability

	// MetricsPath serves the Prometheus handler when set, e.g. "/metrics".
	// Default: "" (disabled).
	MetricsPath string

	// Proxies and cookies

	// TrustedProxies lists proxy IPs or CIDRs whose forwarding headers
	// are honored for the client address and the request scheme.
	TrustedProxies []string

	// SecureCookies marks cookies set over secure requests as Secure.
	// Default: true.
	SecureCookies bool

	// SameSite is applied to cookies that do not set it.
	// Default: http.SameSiteLaxMode.
	SameSite http.SameSite

	// CookieDomain is applied to cookies that do not set a domain.
	CookieDomain string
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:           "127.0.0.1:8000",
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		SecureCookies:     true,
		SameSite:          http.SameSiteLaxMode,
	}
}

// fillDefaults sets every zero duration and the address from defaults.
func (c *ServerConfig) fillDefaults() {
	defaults := DefaultServerConfig()
	if c.Address == "" {
		c.Address = defaults.Address
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = defaults.ReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = defaults.WriteTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = defaults.IdleTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if c.SameSite == 0 {
		c.SameSite = defaults.SameSite
	}
}

// Clone returns a copy of the ServerConfig.
func (c *ServerConfig) Clone() *ServerConfig {
	if c == nil {
		return nil
	}
	clone := *c
	clone.TrustedProxies = append([]string(nil), c.TrustedProxies...)
	return &clone
}

// WithAddress sets the server address and returns the config for chaining.
func (c *ServerConfig) WithAddress(addr string) *ServerConfig {
	c.Address = addr
	return c
}

// WithHostPort sets the address from a host and port.
func (c *ServerConfig) WithHostPort(host string, port int) *ServerConfig {
	c.Address = net.JoinHostPort(host, strconv.Itoa(port))
	return c
}

// Validate checks the configuration.
func (c *ServerConfig) Validate() error {
	if _, _, err := net.SplitHostPort(c.Address); err != nil {
		return errors.New(errors.CodeConfig).
			WithDetailf("invalid server address %q", c.Address).
			Wrap(err)
	}
	if c.ShutdownTimeout < 0 {
		return errors.New(errors.CodeConfig).WithDetail("shutdown timeout must not be negative")
	}
	if c.MetricsPath != "" && c.MetricsPath[0] != '/' {
		return errors.New(errors.CodeConfig).
			WithDetailf("metrics path %q must start with /", c.MetricsPath)
	}
	return nil
}
