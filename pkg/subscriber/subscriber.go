// Package subscriber runs the receiving half of the probe: it holds a
// streaming subscription open, frames the body into messages and turns every
// timestamped message into a latency sample.
package subscriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"pushstream-latency/pkg/broker"
	"pushstream-latency/pkg/framer"
	"pushstream-latency/pkg/latency"
	"pushstream-latency/pkg/reconnect"
	"pushstream-latency/pkg/telemetry"

	"github.com/google/uuid"
)

const readBufferSize = 4 << 10

var (
	ErrEmptyChannel = errors.New("subscriber: empty channel")
	// ErrStreamClosed is the session error when the broker ends the
	// subscription body cleanly.
	ErrStreamClosed = errors.New("subscriber: stream closed by broker")
)

// Persister stores the most recent latency value.
type Persister interface {
	Write(latency float64) error
}

type Config struct {
	Channel   string
	Threshold float64
	// MaxBuffered caps the unterminated tail held by the framer; zero or less
	// disables the cap.
	MaxBuffered int
	Reconnect   reconnect.Policy
}

type Option func(*Subscriber)

// WithStore persists every sample's latency.
func WithStore(s Persister) Option {
	return func(sub *Subscriber) {
		sub.store = s
	}
}

// WithClock replaces the clock that stamps received messages.
func WithClock(c telemetry.Clock) Option {
	return func(sub *Subscriber) {
		sub.clock = c
	}
}

type Subscriber struct {
	cfg    Config
	broker broker.Broker
	logger *log.Logger
	tel    telemetry.TelemetryPublisher
	clock  telemetry.Clock
	store  Persister
}

func New(cfg Config, b broker.Broker, logger *log.Logger, tel telemetry.TelemetryPublisher, opts ...Option) (*Subscriber, error) {
	if cfg.Channel == "" {
		return nil, ErrEmptyChannel
	}
	if err := cfg.Reconnect.Validate(); err != nil {
		return nil, fmt.Errorf("subscriber: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}

	s := &Subscriber{
		cfg:    cfg,
		broker: b,
		logger: logger,
		tel:    telemetry.OrNoop(tel),
		clock:  telemetry.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run consumes the channel until ctx is cancelled and then returns ctx's
// error.
func (s *Subscriber) Run(ctx context.Context) error {
	s.logger.Printf("subscriber: channel %q, max latency %vs", s.cfg.Channel, s.cfg.Threshold)
	return reconnect.Run(ctx, s.cfg.Reconnect, s.session, s.onRetry)
}

func (s *Subscriber) onRetry(attempt uint, err error, wait time.Duration) {
	s.tel.Publish(telemetry.NewRoleError(telemetry.RoleSubscriber, err, "subscribe", telemetry.ErrorSeverityWarning))
	s.tel.Publish(telemetry.NewReconnectScheduled(telemetry.RoleSubscriber, attempt, wait, err))
}

// session is one subscription: connect, open the stream and process it until
// it ends. The framer lives and dies with the session so a partial message
// from a broken stream never bleeds into the next one.
func (s *Subscriber) session(ctx context.Context, connected func()) error {
	sess, err := s.broker.Connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer sess.Close()

	body, err := sess.Subscribe(ctx, s.cfg.Channel)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer body.Close()

	id := uuid.NewString()
	connected()
	s.tel.Publish(telemetry.NewConnectionStatusChanged(telemetry.RoleSubscriber, id, true))
	defer s.tel.Publish(telemetry.NewConnectionStatusChanged(telemetry.RoleSubscriber, id, false))

	return s.consume(ctx, body)
}

func (s *Subscriber) consume(ctx context.Context, body io.Reader) error {
	f := framer.New(framer.WithMaxBuffered(s.cfg.MaxBuffered))
	buf := make([]byte, readBufferSize)

	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return fmt.Errorf("frame stream: %w", err)
			}
			for msg := range f.Messages() {
				s.handle(msg, s.clock.Now())
			}
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(rerr, io.EOF) {
				return ErrStreamClosed
			}
			return fmt.Errorf("read stream: %w", rerr)
		}
	}
}

// handle processes one framed message received at recv.
func (s *Subscriber) handle(msg framer.Message, recv time.Time) {
	s.tel.Publish(telemetry.NewMessageReceived(s.cfg.Channel, msg))

	send, ok := latency.ExtractTimestamp(msg)
	if !ok {
		s.tel.Publish(telemetry.NewTimestampMissing(s.cfg.Channel, msg))
		return
	}

	sample := latency.Evaluate(send, latency.Seconds(recv), s.cfg.Threshold)
	s.tel.Publish(telemetry.NewLatencyComputed(s.cfg.Channel, sample))

	if s.store == nil {
		return
	}
	if err := s.store.Write(sample.Latency); err != nil {
		s.tel.Publish(telemetry.NewRoleError(telemetry.RoleSubscriber, err, "outfile_write", telemetry.ErrorSeverityError))
	}
}
