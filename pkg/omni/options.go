package omni

import (
	"time"

	"github.com/pkg/errors"
	"github.com/trickstertwo/xclock"

	"github.com/wayneeseguin/omnilog/pkg/backends"
	"github.com/wayneeseguin/omnilog/pkg/types"
)

// Config holds the settings New applies before the logger is returned.
type Config struct {
	Ident        string             // Identifier shown by back-ends with show-ident
	ShowLocation bool               // Capture the caller's file:line
	Registry     *backends.Registry // Registry Configure resolves back-end names in
	ErrorHandler types.ErrorHandler // Receives back-end failures
	Clock        func() time.Time   // Timestamp source
}

func defaultConfig() *Config {
	return &Config{
		Registry:     backends.NewDefaultRegistry(),
		ErrorHandler: types.StderrErrorHandler,
		Clock:        xclock.Now,
	}
}

// Option is a functional option for configuring a Logger
type Option func(*Config) error

// WithIdent sets the logger identifier
func WithIdent(ident string) Option {
	return func(c *Config) error {
		c.Ident = ident
		return nil
	}
}

// WithShowLocation enables capturing the caller's source location
func WithShowLocation(enabled bool) Option {
	return func(c *Config) error {
		c.ShowLocation = enabled
		return nil
	}
}

// WithRegistry sets the back-end registry used by Configure
func WithRegistry(r *backends.Registry) Option {
	return func(c *Config) error {
		if r == nil {
			return errors.New("registry cannot be nil")
		}
		c.Registry = r
		return nil
	}
}

// WithErrorHandler sets the error handler
func WithErrorHandler(handler types.ErrorHandler) Option {
	return func(c *Config) error {
		c.ErrorHandler = handler
		return nil
	}
}

// WithClock replaces the timestamp source. By default records are stamped
// with xclock.Now, which tests can freeze with the xclock frozen adapter.
func WithClock(now func() time.Time) Option {
	return func(c *Config) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		c.Clock = now
		return nil
	}
}
