package config

// Configuration key constants
// Keys double as environment variable names; config files use the same key
// lowercased without the prefix (LATENCY_PUBLISH_DELAY -> publish_delay).

const EnvPrefix = "LATENCY_"

const (
	// Target
	KeyURL     = "LATENCY_URL"
	KeyChannel = "LATENCY_CHANNEL"
	KeyPubPath = "LATENCY_PUB_PATH"
	KeySubPath = "LATENCY_SUB_PATH"

	// Probe
	KeyPublishDelay = "LATENCY_PUBLISH_DELAY"
	KeyMaxLatency   = "LATENCY_MAX_LATENCY"
	KeyOutfile      = "LATENCY_OUTFILE"
	KeyVerbosity    = "LATENCY_VERBOSITY"
	KeyMaxBuffer    = "LATENCY_MAX_BUFFER"

	// Network configuration keys
	KeyReconnectBackoff = "LATENCY_RECONNECT_BACKOFF"
	KeyMaxBackoff       = "LATENCY_MAX_BACKOFF"
	KeyBackoffStrategy  = "LATENCY_BACKOFF_STRATEGY"
	KeyBackoffJitter    = "LATENCY_BACKOFF_JITTER"
	KeyPublishTimeout   = "LATENCY_PUBLISH_TIMEOUT"
	KeyConnectTimeout   = "LATENCY_CONNECT_TIMEOUT"

	// Observability
	KeyMetricsAddr    = "LATENCY_METRICS_ADDR"
	KeyEventsFile     = "LATENCY_EVENTS_FILE"
	KeyStatusInterval = "LATENCY_STATUS_INTERVAL"

	KeyConfigFile = "LATENCY_CONFIG"
)

// Default values for configuration
const (
	DefaultChannel             = "latency"
	DefaultPubPath             = "/pub"
	DefaultSubPath             = "/sub"
	DefaultPublishDelaySeconds = 1.0
	DefaultMaxLatencySeconds   = 0.5
	DefaultMaxBuffer           = 1 << 20

	// Network defaults
	DefaultReconnectBackoffSeconds = 1.0
	DefaultMaxBackoffSeconds       = 30.0
	DefaultBackoffStrategy         = "fixed"
	DefaultBackoffJitterSeconds    = 0.0
	DefaultPublishTimeoutSeconds   = 10.0
	DefaultConnectTimeoutSeconds   = 30.0

	DefaultStatusIntervalSeconds = 10.0
)

// CLI flag name constants
const (
	FlagChannel          = "channel"
	FlagPubPath          = "pub-path"
	FlagSubPath          = "sub-path"
	FlagPublishDelay     = "publish-delay"
	FlagMaxLatency       = "max-latency"
	FlagOutfile          = "outfile"
	FlagVerbose          = "verbose"
	FlagMaxBuffer        = "max-buffer"
	FlagReconnectBackoff = "reconnect-backoff"
	FlagMaxBackoff       = "max-backoff"
	FlagBackoffStrategy  = "backoff-strategy"
	FlagBackoffJitter    = "backoff-jitter"
	FlagPublishTimeout   = "publish-timeout"
	FlagConnectTimeout   = "connect-timeout"
	FlagMetricsAddr      = "metrics-addr"
	FlagEventsFile       = "events-file"
	FlagStatusInterval   = "status-interval"
	FlagConfigFile       = "config"
	FlagHelp             = "help"
	FlagVersion          = "version"

	// Hidden aliases accepted for scripts written against the older tool.
	FlagAliasPubDelay = "pubdelay"
	FlagAliasPub      = "pub"
	FlagAliasSub      = "sub"
	FlagAliasMax      = "max"
)

// Help message constants
const (
	AppName        = "latency"
	AppDescription = "Measure end-to-end latency of an HTTP push-stream broker"
	UsageFormat    = "latency URL [options]"

	HelpChannel          = "Channel."
	HelpPubPath          = "Pub URI."
	HelpSubPath          = "Sub URI."
	HelpPublishDelay     = "Publisher delay (in seconds) between messages."
	HelpMaxLatency       = "Max latency before alert."
	HelpOutfile          = "Output file (write the last latency timing to use in any external tool)."
	HelpVerbose          = "Verbose mode, repeat for more (-vv)."
	HelpMaxBuffer        = "Max bytes buffered without a line terminator, 0 for unbounded."
	HelpReconnectBackoff = "Reconnect delay in seconds."
	HelpMaxBackoff       = "Max reconnect delay in seconds (exponential strategy)."
	HelpBackoffStrategy  = "Reconnect strategy: fixed or exponential."
	HelpBackoffJitter    = "Max random jitter added to each reconnect delay, in seconds."
	HelpPublishTimeout   = "Timeout for each publish request in seconds, 0 for none."
	HelpConnectTimeout   = "Dial and TLS handshake timeout for both connections in seconds, 0 for none."
	HelpMetricsAddr      = "Serve Prometheus metrics on this address (e.g. :9100)."
	HelpEventsFile       = "Append every probe event as JSON lines to this file."
	HelpStatusInterval   = "Seconds between status lines, 0 to disable."
	HelpConfigFile       = "Config file (yaml, toml or json)."
	HelpShowHelp         = "Show this help message."
	HelpShowVersion      = "Show version information."

	// Help section headers
	HelpUsage           = "Usage:"
	HelpExamples        = "Examples:"
	HelpOptions         = "Options:"
	HelpEnvironmentVars = "Environment Variables:"
	HelpNote            = "Note: CLI options override environment variables, which override the config file"
)

var usageExamples = []string{
	"latency http://www.nginxpushstream.org --channel latency --publish-delay 1 --outfile output.txt",
	"latency http://www.nginxpushstream.org -p /pub -s /sub --publish-delay 0.3",
	"latency http://www.nginxpushstream.org --max-latency 0.5",
}

// envDescriptions lists environment variables in the order they are printed.
var envDescriptions = []struct {
	Key  string
	Desc string
}{
	{KeyURL, "Broker URL (instead of the positional argument)"},
	{KeyChannel, "Channel"},
	{KeyPubPath, "Pub URI"},
	{KeySubPath, "Sub URI"},
	{KeyPublishDelay, "Publisher delay in seconds"},
	{KeyMaxLatency, "Max latency before alert"},
	{KeyOutfile, "Output file"},
	{KeyVerbosity, "Verbosity level"},
	{KeyMaxBuffer, "Max unterminated bytes buffered"},
	{KeyReconnectBackoff, "Reconnect delay in seconds"},
	{KeyMaxBackoff, "Max reconnect delay in seconds"},
	{KeyBackoffStrategy, "Reconnect strategy"},
	{KeyBackoffJitter, "Reconnect jitter in seconds"},
	{KeyPublishTimeout, "Publish timeout in seconds"},
	{KeyConnectTimeout, "Connect timeout in seconds"},
	{KeyMetricsAddr, "Prometheus listen address"},
	{KeyEventsFile, "JSON lines event log"},
	{KeyStatusInterval, "Status line interval in seconds"},
	{KeyConfigFile, "Config file"},
}
