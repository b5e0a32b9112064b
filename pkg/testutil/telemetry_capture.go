package testutil

import (
	"sync"
	"time"

	"pushstream-latency/pkg/telemetry"
)

// CapturingPublisher collects telemetry events for assertions in tests.
type CapturingPublisher struct {
	mu     sync.Mutex
	Events []telemetry.TelemetryEvent
}

func NewCapturingPublisher() *CapturingPublisher { return &CapturingPublisher{} }

func (c *CapturingPublisher) Publish(event telemetry.TelemetryEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Events = append(c.Events, event)
}

func (c *CapturingPublisher) Snapshot() []telemetry.TelemetryEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]telemetry.TelemetryEvent, len(c.Events))
	copy(out, c.Events)
	return out
}

// Count returns how many captured events have the given EventType.
func (c *CapturingPublisher) Count(eventType string) int {
	n := 0
	for _, e := range c.Snapshot() {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}

// WaitFor polls until cond holds for the captured events or timeout passes.
func (c *CapturingPublisher) WaitFor(timeout time.Duration, cond func([]telemetry.TelemetryEvent) bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond(c.Snapshot()) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// Of returns the captured events of type T in arrival order.
func Of[T telemetry.TelemetryEvent](events []telemetry.TelemetryEvent) []T {
	var out []T
	for _, e := range events {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}
