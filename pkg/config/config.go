package config

import (
	"errors"
	"fmt"
	"time"

	"pushstream-latency/pkg/reconnect"
)

var (
	// ErrHelp is returned when -h/--help was given; usage should be printed
	// and the program should exit successfully.
	ErrHelp = errors.New("help requested")
	// ErrVersion is returned when --version was given.
	ErrVersion       = errors.New("version requested")
	ErrMissingURL    = errors.New("missing broker URL")
	ErrInvalidOption = errors.New("invalid option")
	ErrInvalidURL    = errors.New("invalid broker URL")
	ErrInvalidValue  = errors.New("invalid configuration value")
)

type Config struct {
	URL     string
	Channel string
	PubPath string
	SubPath string

	PublishDelay time.Duration
	// MaxLatency is the alert threshold in seconds.
	MaxLatency float64
	Outfile    string
	Verbosity  int
	MaxBuffer  int

	Network   NetworkConfig
	Timeouts  TimeoutConfig
	Telemetry TelemetryConfig

	// ConfigFile is the config file actually read, if any.
	ConfigFile string
}

type NetworkConfig struct {
	ReconnectBackoff time.Duration
	MaxBackoff       time.Duration
	BackoffStrategy  string
	BackoffJitter    time.Duration
}

type TimeoutConfig struct {
	// Publish bounds one publish request.
	Publish time.Duration
	// Connect bounds dialing and the TLS handshake of either role.
	Connect time.Duration
}

type TelemetryConfig struct {
	MetricsAddr    string
	EventsFile     string
	StatusInterval time.Duration
}

// Load loads configuration from CLI arguments (without the program name),
// environment variables and an optional config file.
// CLI flags take precedence over environment variables, which take precedence
// over the config file.
func Load(args []string) (*Config, error) {
	flagSource, cli, err := parseCLIFlags(args)
	if err != nil {
		return nil, err
	}

	env := &EnvSource{}
	configPath := NewConfigResolver(flagSource, env).ResolveString(KeyConfigFile, "")
	fileSource, err := NewViperSource(configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	resolver := NewConfigResolver(flagSource, env, fileSource)

	url := cli.url
	if url == "" {
		url = resolver.ResolveString(KeyURL, "")
	}

	cfg := &Config{
		URL:          url,
		Channel:      resolver.ResolveString(KeyChannel, DefaultChannel),
		PubPath:      resolver.ResolveString(KeyPubPath, DefaultPubPath),
		SubPath:      resolver.ResolveString(KeySubPath, DefaultSubPath),
		PublishDelay: resolver.ResolveSeconds(KeyPublishDelay, DefaultPublishDelaySeconds),
		MaxLatency:   resolver.ResolveFloat(KeyMaxLatency, DefaultMaxLatencySeconds),
		Outfile:      resolver.ResolveString(KeyOutfile, ""),
		Verbosity:    resolver.ResolveInt(KeyVerbosity, 0),
		MaxBuffer:    resolver.ResolveInt(KeyMaxBuffer, DefaultMaxBuffer),
		Network: NetworkConfig{
			ReconnectBackoff: resolver.ResolveSeconds(KeyReconnectBackoff, DefaultReconnectBackoffSeconds),
			MaxBackoff:       resolver.ResolveSeconds(KeyMaxBackoff, DefaultMaxBackoffSeconds),
			BackoffStrategy:  resolver.ResolveString(KeyBackoffStrategy, DefaultBackoffStrategy),
			BackoffJitter:    resolver.ResolveSeconds(KeyBackoffJitter, DefaultBackoffJitterSeconds),
		},
		Timeouts: TimeoutConfig{
			Publish: resolver.ResolveSeconds(KeyPublishTimeout, DefaultPublishTimeoutSeconds),
			Connect: resolver.ResolveSeconds(KeyConnectTimeout, DefaultConnectTimeoutSeconds),
		},
		Telemetry: TelemetryConfig{
			MetricsAddr:    resolver.ResolveString(KeyMetricsAddr, ""),
			EventsFile:     resolver.ResolveString(KeyEventsFile, ""),
			StatusInterval: resolver.ResolveSeconds(KeyStatusInterval, DefaultStatusIntervalSeconds),
		},
		ConfigFile: fileSource.File(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReconnectPolicy is the reconnect configuration shared by both roles.
func (c *Config) ReconnectPolicy() reconnect.Policy {
	return reconnect.Policy{
		Strategy:  reconnect.Strategy(c.Network.BackoffStrategy),
		Delay:     c.Network.ReconnectBackoff,
		MaxDelay:  c.Network.MaxBackoff,
		MaxJitter: c.Network.BackoffJitter,
	}
}
