package telemetry

import (
	"time"

	"pushstream-latency/pkg/latency"
)

type TelemetryEvent interface {
	Timestamp() time.Time // When the event occurred
	EventType() string    // For categorization/filtering
}

// Role names the loop that emitted an event.
type Role string

const (
	RolePublisher  Role = "publisher"
	RoleSubscriber Role = "subscriber"
)

type ConnectionStatusChanged struct {
	timestamp time.Time
	Role      Role
	SessionID string
	Connected bool
}

func (e ConnectionStatusChanged) Timestamp() time.Time { return e.timestamp }
func (e ConnectionStatusChanged) EventType() string    { return "connection_status_changed" }

func NewConnectionStatusChanged(role Role, sessionID string, connected bool) ConnectionStatusChanged {
	return ConnectionStatusChanged{
		timestamp: time.Now(),
		Role:      role,
		SessionID: sessionID,
		Connected: connected,
	}
}

type MessagePublished struct {
	timestamp time.Time
	Channel   string
	Body      string
	Ack       string        // Broker response body
	Duration  time.Duration // POST round trip
}

func (e MessagePublished) Timestamp() time.Time { return e.timestamp }
func (e MessagePublished) EventType() string    { return "message_published" }

func NewMessagePublished(channel, body string, ack []byte, d time.Duration) MessagePublished {
	return MessagePublished{
		timestamp: time.Now(),
		Channel:   channel,
		Body:      body,
		Ack:       string(ack),
		Duration:  d,
	}
}

type MessageReceived struct {
	timestamp time.Time
	Channel   string
	Raw       string // Framed message including its terminator
}

func (e MessageReceived) Timestamp() time.Time { return e.timestamp }
func (e MessageReceived) EventType() string    { return "message_received" }

func NewMessageReceived(channel string, raw []byte) MessageReceived {
	return MessageReceived{
		timestamp: time.Now(),
		Channel:   channel,
		Raw:       string(raw),
	}
}

// TimestampMissing marks a framed message with no TS marker. It is not an
// error; foreign traffic on the channel is expected.
type TimestampMissing struct {
	timestamp time.Time
	Channel   string
	Raw       string
}

func (e TimestampMissing) Timestamp() time.Time { return e.timestamp }
func (e TimestampMissing) EventType() string    { return "timestamp_missing" }

func NewTimestampMissing(channel string, raw []byte) TimestampMissing {
	return TimestampMissing{
		timestamp: time.Now(),
		Channel:   channel,
		Raw:       string(raw),
	}
}

type LatencyComputed struct {
	timestamp time.Time
	Channel   string
	Sample    latency.Sample
}

func (e LatencyComputed) Timestamp() time.Time { return e.timestamp }
func (e LatencyComputed) EventType() string    { return "latency_computed" }

func NewLatencyComputed(channel string, s latency.Sample) LatencyComputed {
	return LatencyComputed{
		timestamp: time.Now(),
		Channel:   channel,
		Sample:    s,
	}
}

type ReconnectScheduled struct {
	timestamp time.Time
	Role      Role
	Attempt   uint
	Wait      time.Duration
	Err       error // Why the previous session ended
}

func (e ReconnectScheduled) Timestamp() time.Time { return e.timestamp }
func (e ReconnectScheduled) EventType() string    { return "reconnect_scheduled" }

func NewReconnectScheduled(role Role, attempt uint, wait time.Duration, err error) ReconnectScheduled {
	return ReconnectScheduled{
		timestamp: time.Now(),
		Role:      role,
		Attempt:   attempt,
		Wait:      wait,
		Err:       err,
	}
}

type RoleError struct {
	timestamp time.Time
	Role      Role
	Err       error
	Context   string // Where it happened (e.g., "publish", "subscribe", "outfile_write")
	Severity  ErrorSeverity
}

func (e RoleError) Timestamp() time.Time { return e.timestamp }
func (e RoleError) EventType() string    { return "role_error" }

func NewRoleError(role Role, err error, context string, severity ErrorSeverity) RoleError {
	return RoleError{
		timestamp: time.Now(),
		Role:      role,
		Err:       err,
		Context:   context,
		Severity:  severity,
	}
}

type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
	ErrorSeverityCritical
)

func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityInfo:
		return "info"
	case ErrorSeverityWarning:
		return "warning"
	case ErrorSeverityError:
		return "error"
	case ErrorSeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

type TelemetryPublisher interface {
	// Publish hands an event to a consumer.
	// This is a non-blocking, fire-and-forget call.
	Publish(event TelemetryEvent)
}

// MultiPublisher fans every event out to each of its publishers in order.
type MultiPublisher []TelemetryPublisher

func (m MultiPublisher) Publish(event TelemetryEvent) {
	for _, p := range m {
		if p != nil {
			p.Publish(event)
		}
	}
}
