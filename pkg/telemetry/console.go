package telemetry

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"pushstream-latency/pkg/latency"

	"github.com/fatih/color"
)

// Verbosity thresholds for console output.
const (
	VerbosityAcks = 1 // broker acknowledgements, connection changes, reconnects
	VerbosityRaw  = 2 // every framed message, timestamp misses
)

// ConsoleOption configures a ConsolePublisher.
type ConsoleOption func(*ConsolePublisher)

// WithColor forces colored output on or off. By default fatih/color decides
// from the terminal.
func WithColor(enabled bool) ConsoleOption {
	return func(c *ConsolePublisher) {
		for _, col := range []*color.Color{c.alert, c.ok} {
			if enabled {
				col.EnableColor()
			} else {
				col.DisableColor()
			}
		}
	}
}

// WithLogger routes errors and connection notices to logger instead of
// discarding them.
func WithLogger(logger *log.Logger) ConsoleOption {
	return func(c *ConsolePublisher) {
		c.logger = logger
	}
}

// ConsolePublisher renders events for a human. Latency lines are always
// printed; everything else is gated by verbosity.
type ConsolePublisher struct {
	mu        sync.Mutex
	out       io.Writer
	logger    *log.Logger
	verbosity int

	alert *color.Color
	ok    *color.Color
}

func NewConsolePublisher(out io.Writer, verbosity int, opts ...ConsoleOption) *ConsolePublisher {
	c := &ConsolePublisher{
		out:       out,
		logger:    log.New(io.Discard, "", 0),
		verbosity: verbosity,
		alert:     color.New(color.FgHiRed),
		ok:        color.New(color.FgHiGreen),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ConsolePublisher) Publish(event TelemetryEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e := event.(type) {
	case LatencyComputed:
		line := "Latency: " + latency.FormatLatency(e.Sample.Latency)
		if e.Sample.Alert() {
			c.alert.Fprintln(c.out, line)
		} else {
			c.ok.Fprintln(c.out, line)
		}

	case MessagePublished:
		if c.verbosity >= VerbosityAcks {
			c.writeLine(e.Ack)
		}

	case MessageReceived:
		if c.verbosity >= VerbosityRaw {
			c.writeLine(e.Raw)
		}

	case TimestampMissing:
		if c.verbosity >= VerbosityRaw {
			c.logger.Printf("no timestamp in message %q", e.Raw)
		}

	case ConnectionStatusChanged:
		if c.verbosity >= VerbosityAcks {
			state := "disconnected"
			if e.Connected {
				state = "connected"
			}
			c.logger.Printf("%s %s (session %s)", e.Role, state, e.SessionID)
		}

	case ReconnectScheduled:
		if c.verbosity >= VerbosityAcks {
			c.logger.Printf("%s reconnecting in %v (attempt %d): %v", e.Role, e.Wait, e.Attempt, e.Err)
		}

	case RoleError:
		if e.Severity >= ErrorSeverityWarning || c.verbosity >= VerbosityAcks {
			c.logger.Printf("%s %s [%s]: %v", e.Role, e.Context, e.Severity, e.Err)
		}
	}
}

// writeLine prints s with exactly one trailing newline, keeping whatever line
// ending it already carries.
func (c *ConsolePublisher) writeLine(s string) {
	if strings.HasSuffix(s, "\n") {
		fmt.Fprint(c.out, s)
		return
	}
	fmt.Fprintln(c.out, s)
}
