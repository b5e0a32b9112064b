package telemetry

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"pushstream-latency/pkg/latency"
)

// Mock clock for deterministic testing
type MockClock struct {
	mu      sync.Mutex
	current time.Time
}

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.current.Add(d)
}

// eventually polls cond until it holds or a second passes.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met within 1s")
}

func startAggregator(t *testing.T, clock Clock) *Aggregator {
	t.Helper()
	agg := NewAggregator(clock, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	agg.Start(ctx)
	t.Cleanup(func() {
		agg.Stop()
		cancel()
	})
	return agg
}

func TestAggregator_MessageCounting(t *testing.T) {
	clock := &MockClock{current: time.Unix(1000, 0)}
	agg := startAggregator(t, clock)

	agg.Publish(NewMessagePublished("latency", "TS:1.000:", []byte("ok"), 4*time.Millisecond))
	agg.Publish(NewMessagePublished("latency", "TS:2.000:", []byte("ok"), 6*time.Millisecond))
	agg.Publish(NewMessageReceived("latency", []byte("TS:1.000:\r\n")))
	agg.Publish(NewTimestampMissing("latency", []byte("hello\r\n")))

	eventually(t, func() bool { return agg.Snapshot().TimestampMisses == 1 })

	snapshot := agg.Snapshot()
	if snapshot.MessagesPublished != 2 {
		t.Errorf("expected MessagesPublished to be 2, got %d", snapshot.MessagesPublished)
	}
	if snapshot.MessagesReceived != 1 {
		t.Errorf("expected MessagesReceived to be 1, got %d", snapshot.MessagesReceived)
	}
	if snapshot.AvgPublishMs != 5 {
		t.Errorf("expected AvgPublishMs to be 5, got %.2f", snapshot.AvgPublishMs)
	}
	if snapshot.PublishesPerSecond != 0.2 {
		t.Errorf("expected PublishesPerSecond to be 0.2, got %.2f", snapshot.PublishesPerSecond)
	}

	clock.Advance(11 * time.Second)
	if rate := agg.Snapshot().PublishesPerSecond; rate != 0 {
		t.Errorf("expected rate to decay to 0 outside the window, got %.2f", rate)
	}
}

func TestAggregator_StopHandlesQueuedEvents(t *testing.T) {
	agg := NewAggregator(&MockClock{current: time.Unix(1000, 0)}, DefaultConfig())
	for i := 0; i < 50; i++ {
		agg.Publish(NewMessageReceived("latency", []byte("TS:1.000:\r\n")))
	}

	agg.Start(context.Background())
	agg.Stop()

	if got := agg.Snapshot().MessagesReceived; got != 50 {
		t.Errorf("expected all 50 queued events in the final snapshot, got %d", got)
	}
}

func TestAggregator_LatencyMetrics(t *testing.T) {
	clock := &MockClock{current: time.Unix(1000, 0)}
	agg := startAggregator(t, clock)

	if s := agg.Snapshot(); s.SamplesTotal != 0 || s.AvgLatency != 0 || s.P95Latency != 0 {
		t.Fatalf("expected empty latency metrics, got %+v", s)
	}

	for i := 1; i <= 20; i++ {
		agg.Publish(NewLatencyComputed("latency", latency.Evaluate(0, float64(i)/10, 1.5)))
	}
	eventually(t, func() bool { return agg.Snapshot().SamplesTotal == 20 })

	s := agg.Snapshot()
	if s.AlertsTotal != 5 {
		t.Errorf("expected 5 alerts (1.6..2.0 > 1.5), got %d", s.AlertsTotal)
	}
	if math.Abs(s.AvgLatency-1.05) > 1e-9 {
		t.Errorf("expected AvgLatency 1.05, got %v", s.AvgLatency)
	}
	if math.Abs(s.P95Latency-1.9) > 1e-9 {
		t.Errorf("expected P95Latency 1.9, got %v", s.P95Latency)
	}
	if math.Abs(s.MaxLatency-2.0) > 1e-9 {
		t.Errorf("expected MaxLatency 2.0, got %v", s.MaxLatency)
	}
	if math.Abs(s.LastLatency-2.0) > 1e-9 || !s.LastAlert {
		t.Errorf("expected last sample 2.0 ALERT, got %v alert=%v", s.LastLatency, s.LastAlert)
	}
}

func TestAggregator_NegativeLatencyCounts(t *testing.T) {
	agg := startAggregator(t, &MockClock{current: time.Unix(1000, 0)})

	agg.Publish(NewLatencyComputed("latency", latency.Evaluate(10.25, 10, 0.5)))
	eventually(t, func() bool { return agg.Snapshot().SamplesTotal == 1 })

	s := agg.Snapshot()
	if s.LastLatency != -0.25 || s.AvgLatency != -0.25 {
		t.Errorf("expected negative latency to be kept, got last=%v avg=%v", s.LastLatency, s.AvgLatency)
	}
	if s.AlertsTotal != 0 {
		t.Errorf("expected negative latency to be OK, got %d alerts", s.AlertsTotal)
	}
}

func TestAggregator_LatencyWindowWraps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LatencyWindow = 4
	agg := NewAggregator(&MockClock{current: time.Unix(1000, 0)}, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	agg.Start(ctx)
	defer agg.Stop()

	for _, v := range []float64{100, 100, 1, 2, 3, 4} {
		agg.Publish(NewLatencyComputed("latency", latency.Evaluate(0, v, 1000)))
	}
	eventually(t, func() bool { return agg.Snapshot().SamplesTotal == 6 })

	if s := agg.Snapshot(); s.AvgLatency != 2.5 || s.MaxLatency != 4 {
		t.Errorf("expected only the last 4 samples to count, got avg=%v max=%v", s.AvgLatency, s.MaxLatency)
	}
}

func TestAggregator_ConnectionStatus(t *testing.T) {
	agg := startAggregator(t, &MockClock{current: time.Unix(1000, 0)})

	agg.Publish(NewConnectionStatusChanged(RolePublisher, "a", true))
	agg.Publish(NewConnectionStatusChanged(RoleSubscriber, "b", true))
	agg.Publish(NewConnectionStatusChanged(RoleSubscriber, "b", false))
	agg.Publish(NewReconnectScheduled(RoleSubscriber, 1, time.Second, errors.New("EOF")))

	eventually(t, func() bool { return agg.Snapshot().ReconnectsTotal == 1 })

	snapshot := agg.Snapshot()
	if !snapshot.PublisherConnected {
		t.Error("expected PublisherConnected to be true")
	}
	if snapshot.SubscriberConnected {
		t.Error("expected SubscriberConnected to be false")
	}
	if snapshot.ReconnectsByRole[RoleSubscriber] != 1 {
		t.Errorf("expected one subscriber reconnect, got %d", snapshot.ReconnectsByRole[RoleSubscriber])
	}
}

func TestAggregator_ErrorTracking(t *testing.T) {
	agg := startAggregator(t, &MockClock{current: time.Unix(1000, 0)})

	agg.Publish(NewRoleError(RolePublisher, context.DeadlineExceeded, "publish", ErrorSeverityWarning))
	agg.Publish(NewRoleError(RoleSubscriber, errors.New("read-only file system"), "outfile_write", ErrorSeverityError))

	eventually(t, func() bool { return agg.Snapshot().ErrorsTotal == 2 })

	snapshot := agg.Snapshot()
	if snapshot.ErrorsByType["publish"] != 1 {
		t.Errorf("expected ErrorsByType[publish] to be 1, got %d", snapshot.ErrorsByType["publish"])
	}
	if snapshot.ErrorsBySeverity[ErrorSeverityWarning] != 1 {
		t.Errorf("expected ErrorsBySeverity[Warning] to be 1, got %d", snapshot.ErrorsBySeverity[ErrorSeverityWarning])
	}
	if len(snapshot.RecentErrors) != 2 {
		t.Fatalf("expected 2 recent errors, got %v", snapshot.RecentErrors)
	}
	if snapshot.RecentErrors[0] != "subscriber: outfile_write: read-only file system" {
		t.Errorf("expected newest error first, got %q", snapshot.RecentErrors[0])
	}
}

func TestAggregator_Uptime(t *testing.T) {
	clock := &MockClock{current: time.Unix(1000, 0)}
	agg := NewAggregator(clock, DefaultConfig())

	clock.Advance(90 * time.Second)
	if up := agg.Snapshot().UptimeSeconds; up != 90 {
		t.Errorf("expected 90s uptime, got %v", up)
	}
}

func TestNoopPublisher(t *testing.T) {
	noop := NewNoopPublisher()

	// Should not panic
	noop.Publish(NewMessageReceived("test", []byte("x\r\n")))
	OrNoop(nil).Publish(NewMessagePublished("test", "x", nil, time.Millisecond))
}

func TestMultiPublisher(t *testing.T) {
	var a, b recorder
	m := MultiPublisher{&a, nil, &b}
	m.Publish(NewMessageReceived("latency", []byte("x\r\n")))

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("expected fan-out to both publishers, got %d and %d", len(a.events), len(b.events))
	}
}

func TestEventTypes(t *testing.T) {
	testCases := []struct {
		name      string
		event     TelemetryEvent
		eventType string
	}{
		{"ConnectionStatusChanged", NewConnectionStatusChanged(RolePublisher, "id", true), "connection_status_changed"},
		{"MessagePublished", NewMessagePublished("c", "b", nil, 0), "message_published"},
		{"MessageReceived", NewMessageReceived("c", nil), "message_received"},
		{"TimestampMissing", NewTimestampMissing("c", nil), "timestamp_missing"},
		{"LatencyComputed", NewLatencyComputed("c", latency.Sample{}), "latency_computed"},
		{"ReconnectScheduled", NewReconnectScheduled(RoleSubscriber, 1, time.Second, nil), "reconnect_scheduled"},
		{"RoleError", NewRoleError(RolePublisher, context.DeadlineExceeded, "test", ErrorSeverityInfo), "role_error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.event.EventType() != tc.eventType {
				t.Errorf("expected event type %s, got %s", tc.eventType, tc.event.EventType())
			}
			if tc.event.Timestamp().IsZero() {
				t.Error("expected non-zero timestamp")
			}
		})
	}
}

func TestErrorSeverity_String(t *testing.T) {
	want := map[ErrorSeverity]string{
		ErrorSeverityInfo:     "info",
		ErrorSeverityWarning:  "warning",
		ErrorSeverityError:    "error",
		ErrorSeverityCritical: "critical",
		ErrorSeverity(42):     "unknown",
	}
	for sev, s := range want {
		if sev.String() != s {
			t.Errorf("expected %s, got %s", s, sev.String())
		}
	}
}

type recorder struct {
	mu     sync.Mutex
	events []TelemetryEvent
}

func (r *recorder) Publish(e TelemetryEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
