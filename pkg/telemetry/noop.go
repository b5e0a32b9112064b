package telemetry

// NoopPublisher discards every event.
// Roles fall back to it when no telemetry consumer is wired.
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

func (n *NoopPublisher) Publish(TelemetryEvent) {}

// OrNoop returns pub, or a NoopPublisher when pub is nil.
func OrNoop(pub TelemetryPublisher) TelemetryPublisher {
	if pub == nil {
		return NewNoopPublisher()
	}
	return pub
}
