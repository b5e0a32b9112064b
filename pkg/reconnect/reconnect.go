// Package reconnect runs a connection session over and over, waiting a
// backoff between attempts, until its context is cancelled.
package reconnect

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/avast/retry-go/v4"
)

// Strategy selects how the wait grows with consecutive failures.
type Strategy string

const (
	StrategyFixed       Strategy = "fixed"
	StrategyExponential Strategy = "exponential"
)

// ParseStrategy accepts the names used on the command line.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyFixed, StrategyExponential:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown backoff strategy %q (want %q or %q)", s, StrategyFixed, StrategyExponential)
	}
}

// ErrSessionEnded is reported when a session returns without an error while
// its context is still live. It is retried like any other failure.
var ErrSessionEnded = errors.New("session ended")

// Policy is the reconnect configuration shared by both roles.
type Policy struct {
	Strategy  Strategy
	Delay     time.Duration
	MaxDelay  time.Duration
	MaxJitter time.Duration
}

// DefaultPolicy waits one second between attempts, forever.
func DefaultPolicy() Policy {
	return Policy{
		Strategy: StrategyFixed,
		Delay:    time.Second,
		MaxDelay: 30 * time.Second,
	}
}

func (p Policy) Validate() error {
	if _, err := ParseStrategy(string(p.Strategy)); err != nil {
		return err
	}
	if p.Delay < 0 {
		return fmt.Errorf("reconnect delay must be >= 0, got %v", p.Delay)
	}
	if p.MaxDelay < 0 {
		return fmt.Errorf("max reconnect delay must be >= 0, got %v", p.MaxDelay)
	}
	if p.MaxDelay > 0 && p.MaxDelay < p.Delay {
		return fmt.Errorf("max reconnect delay %v is below reconnect delay %v", p.MaxDelay, p.Delay)
	}
	if p.MaxJitter < 0 {
		return fmt.Errorf("reconnect jitter must be >= 0, got %v", p.MaxJitter)
	}
	return nil
}

// Backoff returns the wait after the given number of consecutive failures
// (1 for the first failure). Jitter is added on top and may push the result
// past MaxDelay.
func (p Policy) Backoff(failures uint) time.Duration {
	if failures == 0 {
		failures = 1
	}

	d := p.Delay
	if p.Strategy == StrategyExponential {
		for i := uint(1); i < failures; i++ {
			if p.MaxDelay > 0 && d >= p.MaxDelay {
				break
			}
			// stop doubling before the duration overflows
			if d > time.Duration(1<<62) {
				break
			}
			d *= 2
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.MaxJitter > 0 {
		d += rand.N(p.MaxJitter)
	}
	return d
}

// SessionFunc is one connection lifetime. It calls connected once the session
// is established so that the failure count restarts from zero, and returns
// when the session breaks.
type SessionFunc func(ctx context.Context, connected func()) error

// RetryFunc is told about every failed session before the wait starts.
type RetryFunc func(attempt uint, err error, wait time.Duration)

// Run calls session until ctx is cancelled. It only ever returns ctx's error.
func Run(ctx context.Context, p Policy, session SessionFunc, onRetry RetryFunc) error {
	var (
		failures uint
		wait     time.Duration
	)

	err := retry.Do(
		func() error {
			established := false
			err := session(ctx, func() { established = true })
			if established {
				failures = 0
			}
			if ctx.Err() != nil {
				return retry.Unrecoverable(ctx.Err())
			}
			if err == nil {
				err = ErrSessionEnded
			}
			failures++
			wait = p.Backoff(failures)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(0),
		retry.LastErrorOnly(true),
		retry.DelayType(func(uint, error, *retry.Config) time.Duration {
			return wait
		}),
		retry.OnRetry(func(n uint, err error) {
			if onRetry != nil {
				onRetry(n+1, err, wait)
			}
		}),
	)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
