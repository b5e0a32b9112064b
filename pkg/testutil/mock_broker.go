package testutil

import (
	"context"
	"errors"
	"io"
	"sync"

	"pushstream-latency/pkg/broker"
)

// Stream scripts one subscription body. Chunks are returned one per Read;
// after the last chunk the reader returns Err, or io.EOF when Err is nil.
type Stream struct {
	Chunks []string
	Err    error
}

// MockBroker is an in-memory broker.Broker for role tests. Scripted values
// are consumed in call order; calls are recorded for assertions.
type MockBroker struct {
	mu sync.Mutex

	ConnectErrors []error  // one per Connect call, nil entries succeed
	PublishErrors []error  // one per Publish call, nil entries succeed
	Streams       []Stream // one per Subscribe call
	Ack           []byte

	ConnectCalls   int
	CloseCalls     int
	PublishCalls   []string
	SubscribeCalls []string

	// PublishHook, if set, runs after each publish is recorded.
	PublishHook func(n int, body string)
}

var _ broker.Broker = (*MockBroker)(nil)

func (m *MockBroker) Connect(ctx context.Context) (broker.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.ConnectCalls
	m.ConnectCalls++
	if i < len(m.ConnectErrors) && m.ConnectErrors[i] != nil {
		return nil, m.ConnectErrors[i]
	}
	return &mockSession{broker: m}, nil
}

// Published returns a copy of the recorded publish bodies.
func (m *MockBroker) Published() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.PublishCalls...)
}

// Counts returns connect, subscribe and close call counts.
func (m *MockBroker) Counts() (connects, subscribes, closes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ConnectCalls, len(m.SubscribeCalls), m.CloseCalls
}

type mockSession struct {
	broker *MockBroker
	closed bool
}

func (s *mockSession) Publish(ctx context.Context, channel string, body []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := s.broker
	m.mu.Lock()
	i := len(m.PublishCalls)
	m.PublishCalls = append(m.PublishCalls, string(body))
	var err error
	if i < len(m.PublishErrors) {
		err = m.PublishErrors[i]
	}
	hook, ack := m.PublishHook, m.Ack
	m.mu.Unlock()

	if hook != nil {
		hook(i+1, string(body))
	}
	if err != nil {
		return nil, err
	}
	return ack, nil
}

func (s *mockSession) Subscribe(ctx context.Context, channel string) (io.ReadCloser, error) {
	m := s.broker
	m.mu.Lock()
	i := len(m.SubscribeCalls)
	m.SubscribeCalls = append(m.SubscribeCalls, channel)
	var stream *Stream
	if i < len(m.Streams) {
		stream = &m.Streams[i]
	}
	m.mu.Unlock()

	if stream == nil {
		return &idleReader{ctx: ctx}, nil
	}
	return NewChunkReader(stream.Chunks, stream.Err), nil
}

func (s *mockSession) Close() error {
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.broker.CloseCalls++
	}
	return nil
}

// ChunkReader hands out scripted chunks, one per Read call.
type ChunkReader struct {
	chunks []string
	err    error
	cur    []byte
	closed bool
}

func NewChunkReader(chunks []string, err error) *ChunkReader {
	if err == nil {
		err = io.EOF
	}
	return &ChunkReader{chunks: chunks, err: err}
}

func (r *ChunkReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, errors.New("read on closed stream")
	}
	for len(r.cur) == 0 {
		if len(r.chunks) == 0 {
			return 0, r.err
		}
		r.cur = []byte(r.chunks[0])
		r.chunks = r.chunks[1:]
	}
	n := copy(p, r.cur)
	r.cur = r.cur[n:]
	return n, nil
}

func (r *ChunkReader) Close() error {
	r.closed = true
	return nil
}

// idleReader models a subscription on a quiet channel: it blocks until the
// request context ends.
type idleReader struct {
	ctx context.Context
}

func (r *idleReader) Read([]byte) (int, error) {
	<-r.ctx.Done()
	return 0, r.ctx.Err()
}

func (r *idleReader) Close() error { return nil }
