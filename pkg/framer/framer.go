// Package framer reassembles line-terminated messages out of an arbitrarily
// chunked byte stream, such as the body of a long-lived push-stream response.
package framer

import (
	"bytes"
	"errors"
	"iter"
)

// Terminator ends every message on the push-stream wire.
var Terminator = []byte("\r\n")

// DefaultMaxBuffered is the largest unterminated tail a Framer holds before
// reporting ErrBufferOverflow.
const DefaultMaxBuffered = 1 << 20

// ErrBufferOverflow is returned by Write when the unterminated tail grows past
// the configured limit. The stream is unusable after that point.
var ErrBufferOverflow = errors.New("framer: unterminated data exceeds buffer limit")

// Message is one complete frame, terminator included.
type Message []byte

func (m Message) String() string { return string(m) }

// Payload returns the message without its terminator.
func (m Message) Payload() []byte { return bytes.TrimSuffix(m, Terminator) }

// Option configures a Framer.
type Option func(*Framer)

// WithMaxBuffered caps the unterminated tail. Zero or less disables the cap.
func WithMaxBuffered(n int) Option {
	return func(f *Framer) {
		f.maxBuffered = n
	}
}

// Framer owns the reassembly buffer for a single stream. It is not safe for
// concurrent use; a stream has exactly one reader.
type Framer struct {
	buf         []byte
	off         int // start of the unconsumed data in buf
	maxBuffered int
}

// New returns an empty Framer.
func New(opts ...Option) *Framer {
	f := &Framer{maxBuffered: DefaultMaxBuffered}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Write appends a chunk to the buffer. It implements io.Writer so a stream
// can be copied straight into the framer; complete messages are then drained
// with Messages.
func (f *Framer) Write(chunk []byte) (int, error) {
	if len(chunk) == 0 {
		return 0, nil
	}

	if f.off > 0 {
		n := copy(f.buf, f.buf[f.off:])
		f.buf = f.buf[:n]
		f.off = 0
	}
	f.buf = append(f.buf, chunk...)

	if f.maxBuffered > 0 && f.tailLen() > f.maxBuffered {
		return len(chunk), ErrBufferOverflow
	}
	return len(chunk), nil
}

// Messages yields every complete message currently buffered, oldest first.
// Each yielded message is removed from the buffer and owned by the caller.
// Stopping the iteration early leaves the remaining messages buffered.
func (f *Framer) Messages() iter.Seq[Message] {
	return func(yield func(Message) bool) {
		for {
			pending := f.buf[f.off:]
			i := bytes.Index(pending, Terminator)
			if i < 0 {
				return
			}
			end := i + len(Terminator)
			msg := make(Message, end)
			copy(msg, pending[:end])
			f.off += end
			if f.off == len(f.buf) {
				f.buf = f.buf[:0]
				f.off = 0
			}
			if !yield(msg) {
				return
			}
		}
	}
}

// Buffered reports how many bytes are held and not yet yielded.
func (f *Framer) Buffered() int {
	return len(f.buf) - f.off
}

// tailLen is the length of the data after the last complete message.
func (f *Framer) tailLen() int {
	pending := f.buf[f.off:]
	if len(pending) <= f.maxBuffered {
		return len(pending)
	}
	i := bytes.LastIndex(pending, Terminator)
	if i < 0 {
		return len(pending)
	}
	return len(pending) - (i + len(Terminator))
}
