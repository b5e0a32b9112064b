package telemetry

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// Clock interface allows for deterministic testing
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Config for telemetry settings
type Config struct {
	BufferSize        int `default:"1000"`
	MaxRecentErrors   int `default:"50"`
	RateWindowSeconds int `default:"10"`
	LatencyWindow     int `default:"100"`
}

func DefaultConfig() Config {
	return Config{
		BufferSize:        1000,
		MaxRecentErrors:   50,
		RateWindowSeconds: 10,
		LatencyWindow:     100,
	}
}

// Aggregator is the core stateful component that processes telemetry events
type Aggregator struct {
	mu    sync.RWMutex
	clock Clock
	cfg   Config

	// Core counters
	published   uint64
	received    uint64
	samples     uint64
	alerts      uint64
	misses      uint64
	reconnects  uint64
	errorsTotal uint64

	// Breakdown
	reconnectsByRole map[Role]uint64
	errorsByType     map[string]uint64
	errorsBySeverity map[ErrorSeverity]uint64

	// Rate calculations
	publishTimes []time.Time
	receiveTimes []time.Time

	// Current state
	publisherConnected  bool
	subscriberConnected bool

	// Recent errors (ring buffer)
	recentErrors []string
	errorIndex   int

	// Latency tracking (ring buffer, seconds; negative values are valid)
	latencies    []float64
	latencyIndex int
	latencyCount int
	lastLatency  float64
	lastAlert    bool

	publishTotal time.Duration

	// Control channels
	eventCh chan TelemetryEvent
	done    chan struct{}
	wg      sync.WaitGroup

	// Startup time
	startTime time.Time
}

// NewAggregator creates a new telemetry aggregator
func NewAggregator(clock Clock, cfg Config) *Aggregator {
	if clock == nil {
		clock = RealClock{}
	}
	if cfg.LatencyWindow <= 0 {
		cfg.LatencyWindow = DefaultConfig().LatencyWindow
	}
	if cfg.MaxRecentErrors <= 0 {
		cfg.MaxRecentErrors = DefaultConfig().MaxRecentErrors
	}
	if cfg.RateWindowSeconds <= 0 {
		cfg.RateWindowSeconds = DefaultConfig().RateWindowSeconds
	}

	return &Aggregator{
		clock:            clock,
		cfg:              cfg,
		reconnectsByRole: make(map[Role]uint64),
		errorsByType:     make(map[string]uint64),
		errorsBySeverity: make(map[ErrorSeverity]uint64),
		publishTimes:     make([]time.Time, 0, cfg.RateWindowSeconds*10),
		receiveTimes:     make([]time.Time, 0, cfg.RateWindowSeconds*10),
		recentErrors:     make([]string, cfg.MaxRecentErrors),
		latencies:        make([]float64, cfg.LatencyWindow),
		eventCh:          make(chan TelemetryEvent, cfg.BufferSize),
		done:             make(chan struct{}),
		startTime:        clock.Now(),
	}
}

// Start begins processing telemetry events
func (a *Aggregator) Start(ctx context.Context) {
	a.wg.Add(1)
	go a.processEvents(ctx)
}

// Stop gracefully shuts down the aggregator
func (a *Aggregator) Stop() {
	close(a.done)
	a.wg.Wait()
}

// Publish implements TelemetryPublisher interface
func (a *Aggregator) Publish(event TelemetryEvent) {
	select {
	case a.eventCh <- event:
	default:
		// Non-blocking send - drop if channel is full
		// This protects the hot path from being blocked
	}
}

// Snapshot implements TelemetryReader interface
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	now := a.clock.Now()

	avg, p95, maxLatency := a.calculateLatencyMetrics()

	avgPublishMs := 0.0
	if a.published > 0 {
		avgPublishMs = float64(a.publishTotal) / float64(a.published) / float64(time.Millisecond)
	}

	channelUtilization := 0.0
	if cap(a.eventCh) > 0 {
		channelUtilization = float64(len(a.eventCh)) / float64(cap(a.eventCh)) * 100
	}

	// Copy maps to prevent data races
	reconnectsCopy := make(map[Role]uint64, len(a.reconnectsByRole))
	for k, v := range a.reconnectsByRole {
		reconnectsCopy[k] = v
	}

	errorsByTypeCopy := make(map[string]uint64, len(a.errorsByType))
	for k, v := range a.errorsByType {
		errorsByTypeCopy[k] = v
	}

	errorsBySeverityCopy := make(map[ErrorSeverity]uint64, len(a.errorsBySeverity))
	for k, v := range a.errorsBySeverity {
		errorsBySeverityCopy[k] = v
	}

	// Newest first
	recentErrors := make([]string, 0)
	for i := 0; i < len(a.recentErrors); i++ {
		idx := (a.errorIndex - i - 1 + len(a.recentErrors)) % len(a.recentErrors)
		if a.recentErrors[idx] != "" {
			recentErrors = append(recentErrors, a.recentErrors[idx])
		}
	}

	return Snapshot{
		MessagesPublished:   a.published,
		MessagesReceived:    a.received,
		SamplesTotal:        a.samples,
		AlertsTotal:         a.alerts,
		TimestampMisses:     a.misses,
		ReconnectsTotal:     a.reconnects,
		ErrorsTotal:         a.errorsTotal,
		PublisherConnected:  a.publisherConnected,
		SubscriberConnected: a.subscriberConnected,
		PublishesPerSecond:  a.calculateRate(a.publishTimes, now),
		ReceivesPerSecond:   a.calculateRate(a.receiveTimes, now),
		LastLatency:         a.lastLatency,
		LastAlert:           a.lastAlert,
		AvgLatency:          avg,
		P95Latency:          p95,
		MaxLatency:          maxLatency,
		AvgPublishMs:        avgPublishMs,
		UptimeSeconds:       now.Sub(a.startTime).Seconds(),
		ChannelUtilization:  channelUtilization,
		ReconnectsByRole:    reconnectsCopy,
		ErrorsByType:        errorsByTypeCopy,
		ErrorsBySeverity:    errorsBySeverityCopy,
		RecentErrors:        recentErrors,
	}
}

func (a *Aggregator) processEvents(ctx context.Context) {
	defer a.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.done:
			a.drain()
			return
		case event := <-a.eventCh:
			a.handleEvent(event)
		}
	}
}

// drain handles whatever was queued before Stop.
func (a *Aggregator) drain() {
	for {
		select {
		case event := <-a.eventCh:
			a.handleEvent(event)
		default:
			return
		}
	}
}

func (a *Aggregator) handleEvent(event TelemetryEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()

	switch e := event.(type) {
	case MessagePublished:
		a.published++
		a.publishTotal += e.Duration
		a.publishTimes = a.addTime(a.publishTimes, now)

	case MessageReceived:
		a.received++
		a.receiveTimes = a.addTime(a.receiveTimes, now)

	case TimestampMissing:
		a.misses++

	case LatencyComputed:
		a.samples++
		if e.Sample.Alert() {
			a.alerts++
		}
		a.addLatency(e.Sample.Latency)
		a.lastAlert = e.Sample.Alert()

	case ConnectionStatusChanged:
		switch e.Role {
		case RolePublisher:
			a.publisherConnected = e.Connected
		case RoleSubscriber:
			a.subscriberConnected = e.Connected
		}

	case ReconnectScheduled:
		a.reconnects++
		a.reconnectsByRole[e.Role]++

	case RoleError:
		a.errorsTotal++
		a.errorsByType[e.Context]++
		a.errorsBySeverity[e.Severity]++
		msg := e.Context
		if e.Err != nil {
			msg = fmt.Sprintf("%s: %s: %v", e.Role, e.Context, e.Err)
		}
		a.addRecentError(msg)
	}
}

func (a *Aggregator) addTime(times []time.Time, t time.Time) []time.Time {
	cutoff := t.Add(-time.Duration(a.cfg.RateWindowSeconds) * time.Second)

	// Remove old entries
	for len(times) > 0 && times[0].Before(cutoff) {
		times = times[1:]
	}

	return append(times, t)
}

func (a *Aggregator) addLatency(v float64) {
	a.latencies[a.latencyIndex] = v
	a.latencyIndex = (a.latencyIndex + 1) % len(a.latencies)
	if a.latencyCount < len(a.latencies) {
		a.latencyCount++
	}
	a.lastLatency = v
}

func (a *Aggregator) addRecentError(err string) {
	a.recentErrors[a.errorIndex] = err
	a.errorIndex = (a.errorIndex + 1) % len(a.recentErrors)
}

func (a *Aggregator) calculateRate(times []time.Time, now time.Time) float64 {
	if len(times) == 0 {
		return 0.0
	}

	cutoff := now.Add(-time.Duration(a.cfg.RateWindowSeconds) * time.Second)
	count := 0

	for _, t := range times {
		if t.After(cutoff) {
			count++
		}
	}

	return float64(count) / float64(a.cfg.RateWindowSeconds)
}

// calculateLatencyMetrics returns avg, nearest-rank p95 and max over the
// retained window.
func (a *Aggregator) calculateLatencyMetrics() (float64, float64, float64) {
	if a.latencyCount == 0 {
		return 0, 0, 0
	}

	window := make([]float64, a.latencyCount)
	copy(window, a.latencies[:a.latencyCount])
	sort.Float64s(window)

	var sum float64
	for _, v := range window {
		sum += v
	}
	avg := sum / float64(len(window))

	rank := int(math.Ceil(0.95*float64(len(window)))) - 1
	if rank < 0 {
		rank = 0
	}

	return avg, window[rank], window[len(window)-1]
}
