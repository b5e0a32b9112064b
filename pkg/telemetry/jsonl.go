package telemetry

import (
	"bufio"
	"io"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Record is the JSON-lines shape of an event.
type Record struct {
	Time      time.Time `json:"time"`
	Type      string    `json:"type"`
	Role      Role      `json:"role,omitempty"`
	Channel   string    `json:"channel,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Connected *bool     `json:"connected,omitempty"`

	Body  string  `json:"body,omitempty"`
	Ack   string  `json:"ack,omitempty"`
	Raw   string  `json:"raw,omitempty"`
	RTTMs float64 `json:"rtt_ms,omitempty"`

	Send      *float64 `json:"send,omitempty"`
	Receive   *float64 `json:"receive,omitempty"`
	Latency   *float64 `json:"latency,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	Class     string   `json:"class,omitempty"`

	Attempt  uint    `json:"attempt,omitempty"`
	WaitMs   float64 `json:"wait_ms,omitempty"`
	Context  string  `json:"context,omitempty"`
	Severity string  `json:"severity,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// NewRecord flattens an event for serialization.
func NewRecord(event TelemetryEvent) Record {
	r := Record{Time: event.Timestamp(), Type: event.EventType()}

	switch e := event.(type) {
	case ConnectionStatusChanged:
		connected := e.Connected
		r.Role, r.SessionID, r.Connected = e.Role, e.SessionID, &connected
	case MessagePublished:
		r.Role, r.Channel, r.Body, r.Ack = RolePublisher, e.Channel, e.Body, e.Ack
		r.RTTMs = float64(e.Duration) / float64(time.Millisecond)
	case MessageReceived:
		r.Role, r.Channel, r.Raw = RoleSubscriber, e.Channel, e.Raw
	case TimestampMissing:
		r.Role, r.Channel, r.Raw = RoleSubscriber, e.Channel, e.Raw
	case LatencyComputed:
		s := e.Sample
		r.Role, r.Channel = RoleSubscriber, e.Channel
		r.Send, r.Receive, r.Latency, r.Threshold = &s.Send, &s.Receive, &s.Latency, &s.Threshold
		r.Class = s.Class.String()
	case ReconnectScheduled:
		r.Role, r.Attempt = e.Role, e.Attempt
		r.WaitMs = float64(e.Wait) / float64(time.Millisecond)
		if e.Err != nil {
			r.Error = e.Err.Error()
		}
	case RoleError:
		r.Role, r.Context, r.Severity = e.Role, e.Context, e.Severity.String()
		if e.Err != nil {
			r.Error = e.Err.Error()
		}
	}
	return r
}

// JSONLPublisher appends one JSON object per event to a writer.
type JSONLPublisher struct {
	mu  sync.Mutex
	w   *bufio.Writer
	c   io.Closer
	err error
}

// NewJSONLPublisher writes to w. If w is an io.Closer it is closed by Close.
func NewJSONLPublisher(w io.Writer) *JSONLPublisher {
	p := &JSONLPublisher{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		p.c = c
	}
	return p
}

func (p *JSONLPublisher) Publish(event TelemetryEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return
	}

	data, err := json.Marshal(NewRecord(event))
	if err != nil {
		p.err = err
		return
	}
	if _, err := p.w.Write(append(data, '\n')); err != nil {
		p.err = err
	}
}

// Flush pushes buffered records to the underlying writer.
func (p *JSONLPublisher) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	return p.w.Flush()
}

// Close flushes and closes the underlying writer. It reports the first write
// error seen, if any.
func (p *JSONLPublisher) Close() error {
	err := p.Flush()
	if p.c != nil {
		if cerr := p.c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Err returns the first error that stopped the publisher.
func (p *JSONLPublisher) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
