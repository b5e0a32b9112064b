// Package latency holds the probe's wire timestamp format and the pure
// latency computation shared by the publisher and the subscriber.
package latency

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DefaultThreshold is the alert threshold in seconds.
const DefaultThreshold = 0.5

var timestampPattern = regexp.MustCompile(`TS:(\d+\.\d+):`)

// Class is the presentation class of a sample.
type Class int

const (
	ClassOK Class = iota
	ClassAlert
)

func (c Class) String() string {
	switch c {
	case ClassOK:
		return "OK"
	case ClassAlert:
		return "ALERT"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// Sample is one latency measurement. All values are seconds since the epoch
// (Send, Receive) or seconds (Latency, Threshold). Latency may be negative
// when the publisher clock runs ahead of the subscriber clock.
type Sample struct {
	Send      float64
	Receive   float64
	Latency   float64
	Threshold float64
	Class     Class
}

// Alert reports whether the sample exceeded its threshold.
func (s Sample) Alert() bool { return s.Class == ClassAlert }

// Duration returns the latency as a time.Duration.
func (s Sample) Duration() time.Duration {
	return time.Duration(s.Latency * float64(time.Second))
}

// Evaluate computes receive - send and classifies it against threshold.
// The threshold itself is OK; only strictly greater latencies alert.
func Evaluate(send, receive, threshold float64) Sample {
	s := Sample{
		Send:      send,
		Receive:   receive,
		Latency:   receive - send,
		Threshold: threshold,
		Class:     ClassOK,
	}
	if s.Latency > threshold {
		s.Class = ClassAlert
	}
	return s
}

// ExtractTimestamp returns the send time embedded in msg as TS:<sec>.<frac>:.
// Messages without the marker report false; that is not an error, they simply
// carry no latency information.
func ExtractTimestamp(msg []byte) (float64, bool) {
	m := timestampPattern.FindSubmatch(msg)
	if m == nil {
		return 0, false
	}
	ts, err := strconv.ParseFloat(string(m[1]), 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

// FormatTimestamp renders t as the publisher's message body,
// TS:<unix seconds>.<milliseconds>:.
func FormatTimestamp(t time.Time) string {
	return fmt.Sprintf("TS:%d.%03d:", t.Unix(), t.Nanosecond()/int(time.Millisecond))
}

// Seconds converts t to fractional seconds since the epoch.
func Seconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
}

// FormatLatency renders a latency value the way it is printed and persisted:
// shortest decimal form, no exponent.
func FormatLatency(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
