// Package publisher runs the sending half of the probe: it posts a
// timestamped message to the channel, waits, and does it again, reconnecting
// forever when the broker goes away.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"pushstream-latency/pkg/broker"
	"pushstream-latency/pkg/latency"
	"pushstream-latency/pkg/reconnect"
	"pushstream-latency/pkg/telemetry"

	"github.com/google/uuid"
)

var ErrEmptyChannel = errors.New("publisher: empty channel")

type Config struct {
	Channel string
	// Delay between publishes. Zero publishes back to back.
	Delay time.Duration
	// RequestTimeout bounds each POST. Zero means no bound beyond ctx.
	RequestTimeout time.Duration
	Reconnect      reconnect.Policy
}

type Option func(*Publisher)

// WithClock replaces the clock that stamps outgoing messages.
func WithClock(c telemetry.Clock) Option {
	return func(p *Publisher) {
		p.clock = c
	}
}

type Publisher struct {
	cfg    Config
	broker broker.Broker
	logger *log.Logger
	tel    telemetry.TelemetryPublisher
	clock  telemetry.Clock
}

func New(cfg Config, b broker.Broker, logger *log.Logger, tel telemetry.TelemetryPublisher, opts ...Option) (*Publisher, error) {
	if cfg.Channel == "" {
		return nil, ErrEmptyChannel
	}
	if cfg.Delay < 0 {
		return nil, fmt.Errorf("publisher: negative delay %v", cfg.Delay)
	}
	if err := cfg.Reconnect.Validate(); err != nil {
		return nil, fmt.Errorf("publisher: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}

	p := &Publisher{
		cfg:    cfg,
		broker: b,
		logger: logger,
		tel:    telemetry.OrNoop(tel),
		clock:  telemetry.RealClock{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run publishes until ctx is cancelled and then returns ctx's error.
func (p *Publisher) Run(ctx context.Context) error {
	p.logger.Printf("publisher: channel %q, delay %v", p.cfg.Channel, p.cfg.Delay)
	return reconnect.Run(ctx, p.cfg.Reconnect, p.session, p.onRetry)
}

func (p *Publisher) onRetry(attempt uint, err error, wait time.Duration) {
	p.tel.Publish(telemetry.NewRoleError(telemetry.RolePublisher, err, "publish", telemetry.ErrorSeverityWarning))
	p.tel.Publish(telemetry.NewReconnectScheduled(telemetry.RolePublisher, attempt, wait, err))
}

// session is one connection lifetime: connect, then send and wait until a
// publish fails. A broker that answers with an error status is still
// reachable, so that only costs the message.
func (p *Publisher) session(ctx context.Context, connected func()) error {
	sess, err := p.broker.Connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	id := uuid.NewString()
	up := false
	defer func() {
		sess.Close()
		if up {
			p.tel.Publish(telemetry.NewConnectionStatusChanged(telemetry.RolePublisher, id, false))
		}
	}()

	for {
		if err := p.publishOnce(ctx, sess); err != nil {
			return err
		}
		// the first acknowledged publish proves the session
		if !up {
			up = true
			connected()
			p.tel.Publish(telemetry.NewConnectionStatusChanged(telemetry.RolePublisher, id, true))
		}
		if err := p.wait(ctx); err != nil {
			return err
		}
	}
}

func (p *Publisher) publishOnce(ctx context.Context, sess broker.Session) error {
	body := latency.FormatTimestamp(p.clock.Now())

	reqCtx := ctx
	if p.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, p.cfg.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	ack, err := sess.Publish(reqCtx, p.cfg.Channel, []byte(body))
	var statusErr *broker.StatusError
	if errors.As(err, &statusErr) {
		p.tel.Publish(telemetry.NewRoleError(telemetry.RolePublisher, err, "publish_status", telemetry.ErrorSeverityWarning))
		return nil
	}
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	p.tel.Publish(telemetry.NewMessagePublished(p.cfg.Channel, body, ack, time.Since(start)))
	return nil
}

func (p *Publisher) wait(ctx context.Context) error {
	if p.cfg.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.cfg.Delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
