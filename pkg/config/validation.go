package config

import (
	"fmt"
	"net/url"
	"strings"
)

func (c *Config) validate() error {
	if c.URL == "" {
		return ErrMissingURL
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidURL, c.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host in %q", ErrInvalidURL, c.URL)
	}

	if c.Channel == "" {
		return fmt.Errorf("%w: channel must not be empty", ErrInvalidValue)
	}
	if !strings.HasPrefix(c.PubPath, "/") {
		return fmt.Errorf("%w: pub path must start with /, got %q", ErrInvalidValue, c.PubPath)
	}
	if !strings.HasPrefix(c.SubPath, "/") {
		return fmt.Errorf("%w: sub path must start with /, got %q", ErrInvalidValue, c.SubPath)
	}
	if c.PublishDelay < 0 {
		return fmt.Errorf("%w: publish delay must be >= 0, got %v", ErrInvalidValue, c.PublishDelay)
	}
	if c.MaxLatency < 0 {
		return fmt.Errorf("%w: max latency must be >= 0, got %v", ErrInvalidValue, c.MaxLatency)
	}
	if c.Verbosity < 0 {
		return fmt.Errorf("%w: verbosity must be >= 0, got %d", ErrInvalidValue, c.Verbosity)
	}
	if c.MaxBuffer < 0 {
		return fmt.Errorf("%w: max buffer must be >= 0, got %d", ErrInvalidValue, c.MaxBuffer)
	}
	if c.Timeouts.Publish < 0 {
		return fmt.Errorf("%w: publish timeout must be >= 0, got %v", ErrInvalidValue, c.Timeouts.Publish)
	}
	if c.Timeouts.Connect < 0 {
		return fmt.Errorf("%w: connect timeout must be >= 0, got %v", ErrInvalidValue, c.Timeouts.Connect)
	}
	if c.Telemetry.StatusInterval < 0 {
		return fmt.Errorf("%w: status interval must be >= 0, got %v", ErrInvalidValue, c.Telemetry.StatusInterval)
	}
	if err := c.ReconnectPolicy().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return nil
}
