package config

import (
	"errors"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		URL:          "http://broker:8080",
		Channel:      DefaultChannel,
		PubPath:      DefaultPubPath,
		SubPath:      DefaultSubPath,
		PublishDelay: time.Second,
		MaxLatency:   DefaultMaxLatencySeconds,
		MaxBuffer:    DefaultMaxBuffer,
		Network: NetworkConfig{
			ReconnectBackoff: time.Second,
			MaxBackoff:       30 * time.Second,
			BackoffStrategy:  DefaultBackoffStrategy,
		},
		Timeouts:  TimeoutConfig{Publish: 10 * time.Second, Connect: 30 * time.Second},
		Telemetry: TelemetryConfig{StatusInterval: 10 * time.Second},
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		if err := validConfig().validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"empty config", func(c *Config) { *c = Config{} }, ErrMissingURL},
		{"missing url", func(c *Config) { c.URL = "" }, ErrMissingURL},
		{"bad scheme", func(c *Config) { c.URL = "ws://broker" }, ErrInvalidURL},
		{"no host", func(c *Config) { c.URL = "http://" }, ErrInvalidURL},
		{"unparsable url", func(c *Config) { c.URL = "http://[::1" }, ErrInvalidURL},
		{"empty channel", func(c *Config) { c.Channel = "" }, ErrInvalidValue},
		{"relative pub path", func(c *Config) { c.PubPath = "pub" }, ErrInvalidValue},
		{"relative sub path", func(c *Config) { c.SubPath = "sub" }, ErrInvalidValue},
		{"negative delay", func(c *Config) { c.PublishDelay = -time.Second }, ErrInvalidValue},
		{"negative threshold", func(c *Config) { c.MaxLatency = -0.1 }, ErrInvalidValue},
		{"negative buffer", func(c *Config) { c.MaxBuffer = -1 }, ErrInvalidValue},
		{"negative timeout", func(c *Config) { c.Timeouts.Publish = -time.Second }, ErrInvalidValue},
		{"negative connect timeout", func(c *Config) { c.Timeouts.Connect = -time.Second }, ErrInvalidValue},
		{"negative status interval", func(c *Config) { c.Telemetry.StatusInterval = -time.Second }, ErrInvalidValue},
		{"unknown strategy", func(c *Config) { c.Network.BackoffStrategy = "linear" }, ErrInvalidValue},
		{"max below initial backoff", func(c *Config) { c.Network.MaxBackoff = time.Millisecond }, ErrInvalidValue},
		{"negative jitter", func(c *Config) { c.Network.BackoffJitter = -time.Second }, ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	t.Run("zero delay and buffer allowed", func(t *testing.T) {
		cfg := validConfig()
		cfg.PublishDelay = 0
		cfg.MaxBuffer = 0
		cfg.Timeouts.Publish = 0
		cfg.Timeouts.Connect = 0
		cfg.Telemetry.StatusInterval = 0
		if err := cfg.validate(); err != nil {
			t.Fatalf("expected zeros to be valid, got %v", err)
		}
	})
}
