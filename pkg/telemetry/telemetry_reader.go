package telemetry

type Snapshot struct {
	// Core counters
	MessagesPublished uint64
	MessagesReceived  uint64
	SamplesTotal      uint64
	AlertsTotal       uint64
	TimestampMisses   uint64
	ReconnectsTotal   uint64
	ErrorsTotal       uint64

	// Connection status
	PublisherConnected  bool
	SubscriberConnected bool

	// Rate metrics
	PublishesPerSecond float64
	ReceivesPerSecond  float64

	// Latency metrics, in seconds. Zero until SamplesTotal > 0.
	LastLatency float64
	LastAlert   bool
	AvgLatency  float64
	P95Latency  float64
	MaxLatency  float64

	// Publish round trip
	AvgPublishMs float64

	// System metrics
	UptimeSeconds      float64
	ChannelUtilization float64

	// Error breakdown
	ReconnectsByRole map[Role]uint64
	ErrorsByType     map[string]uint64
	ErrorsBySeverity map[ErrorSeverity]uint64
	RecentErrors     []string
}

type TelemetryReader interface {
	Snapshot() Snapshot
}
