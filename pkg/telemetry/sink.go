package telemetry

import (
	"sync"
	"sync/atomic"
)

const DefaultSinkBuffer = 200

// Sink is a buffered adapter in front of a TelemetryPublisher. Roles publish
// into it from their hot paths; a single goroutine forwards to the wrapped
// publisher so slow consumers (terminal, file, metrics) never stall a read
// or a publish. Events are dropped when the buffer is full, except latency
// samples: those wait for room so every sample reaches the console.
type Sink struct {
	pub TelemetryPublisher
	ch  chan TelemetryEvent

	mu      sync.Mutex
	started bool
	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	dropped atomic.Uint64
}

// NewSink constructs a Sink for the provided publisher. A size of zero or
// less uses DefaultSinkBuffer.
func NewSink(pub TelemetryPublisher, size int) *Sink {
	if size <= 0 {
		size = DefaultSinkBuffer
	}
	return &Sink{
		pub:  pub,
		ch:   make(chan TelemetryEvent, size),
		done: make(chan struct{}),
	}
}

func (s *Sink) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pub == nil || s.started {
		return // nothing to do or already started
	}
	s.started = true
	s.running.Store(true)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case ev := <-s.ch:
				s.pub.Publish(ev)
			case <-s.done:
				s.drain()
				return
			}
		}
	}()
}

// Stop forwards whatever is still buffered and waits for the forwarding
// goroutine to exit. Events published after Stop are discarded.
func (s *Sink) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.running.Store(false)
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Sink) drain() {
	for {
		select {
		case ev := <-s.ch:
			s.pub.Publish(ev)
		default:
			return
		}
	}
}

// Publish implements TelemetryPublisher. Only a LatencyComputed on a running
// sink may block, and only until there is room or Stop is called.
func (s *Sink) Publish(event TelemetryEvent) {
	if s == nil {
		return
	}
	if _, ok := event.(LatencyComputed); ok && s.running.Load() {
		select {
		case s.ch <- event:
		case <-s.done:
		}
		return
	}
	select {
	case s.ch <- event:
	default:
		s.dropped.Add(1)
	}
}

// Dropped reports how many events were discarded because the buffer was full.
func (s *Sink) Dropped() uint64 {
	return s.dropped.Load()
}
