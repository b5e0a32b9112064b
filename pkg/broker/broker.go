// Package broker talks to an HTTP push-stream broker: channel publishes are
// POSTed to the publish path, subscriptions are long-lived streaming GETs.
package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Broker opens sessions against a push-stream endpoint.
type Broker interface {
	Connect(ctx context.Context) (Session, error)
}

// Session is one connection attempt. A failed operation leaves the session
// unusable; callers close it and connect again.
type Session interface {
	// Publish sends body to channel and returns the broker's acknowledgement.
	Publish(ctx context.Context, channel string, body []byte) ([]byte, error)
	// Subscribe opens the channel stream. The caller owns the returned body
	// and must close it.
	Subscribe(ctx context.Context, channel string) (io.ReadCloser, error)
	Close() error
}

var (
	ErrInvalidURL    = errors.New("broker: invalid endpoint URL")
	ErrEmptyChannel  = errors.New("broker: empty channel")
	ErrSessionClosed = errors.New("broker: session closed")
)

// StatusError is returned when the broker answers with a non-2xx status.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %s", e.Method, e.URL, e.Status)
}
