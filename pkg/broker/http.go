package broker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	DefaultPubPath = "/pub"
	DefaultSubPath = "/sub"

	// maxAckBytes bounds how much of a publish response is kept.
	maxAckBytes = 64 << 10
)

// HTTPOption configures an HTTP broker.
type HTTPOption func(*HTTPBroker)

// WithPaths overrides the publish and subscribe paths. Empty values keep the
// defaults.
func WithPaths(pubPath, subPath string) HTTPOption {
	return func(b *HTTPBroker) {
		if pubPath != "" {
			b.pubPath = pubPath
		}
		if subPath != "" {
			b.subPath = subPath
		}
	}
}

// WithTransport sets the transport cloned for every session.
func WithTransport(t *http.Transport) HTTPOption {
	return func(b *HTTPBroker) {
		b.transport = t
	}
}

// WithUserAgent sets the User-Agent header sent on every request.
func WithUserAgent(ua string) HTTPOption {
	return func(b *HTTPBroker) {
		b.userAgent = ua
	}
}

// HTTPBroker is a Broker backed by net/http.
type HTTPBroker struct {
	base      *url.URL
	pubPath   string
	subPath   string
	transport *http.Transport
	userAgent string
}

// NewHTTP parses rawURL and returns a broker for it. Only http and https
// endpoints with a host are accepted.
func NewHTTP(rawURL string, opts ...HTTPOption) (*HTTPBroker, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidURL, rawURL)
	}

	b := &HTTPBroker{
		base:    u,
		pubPath: DefaultPubPath,
		subPath: DefaultSubPath,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.transport == nil {
		b.transport = http.DefaultTransport.(*http.Transport)
	}
	return b, nil
}

// PublishURL returns the endpoint a message for channel is POSTed to.
func (b *HTTPBroker) PublishURL(channel string) string {
	u := b.endpoint(b.pubPath)
	u.RawQuery = url.Values{"id": {channel}}.Encode()
	return u.String()
}

// SubscribeURL returns the streaming endpoint for channel.
func (b *HTTPBroker) SubscribeURL(channel string) string {
	u := b.endpoint(strings.TrimRight(b.subPath, "/") + "/" + channel)
	return u.String()
}

func (b *HTTPBroker) endpoint(path string) *url.URL {
	u := *b.base
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = strings.TrimRight(b.base.Path, "/") + path
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return &u
}

// Connect opens a session with its own connection pool so that closing it
// tears down every socket it used.
func (b *HTTPBroker) Connect(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := b.transport.Clone()
	return &httpSession{
		broker:    b,
		transport: t,
		client:    &http.Client{Transport: t},
	}, nil
}

type httpSession struct {
	broker    *HTTPBroker
	transport *http.Transport
	client    *http.Client

	mu     sync.Mutex
	closed bool
}

func (s *httpSession) Publish(ctx context.Context, channel string, body []byte) ([]byte, error) {
	if channel == "" {
		return nil, ErrEmptyChannel
	}
	if s.isClosed() {
		return nil, ErrSessionClosed
	}

	target := s.broker.PublishURL(channel)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build publish request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	s.decorate(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("publish to %s: %w", target, err)
	}
	defer resp.Body.Close()

	ack, err := io.ReadAll(io.LimitReader(resp.Body, maxAckBytes))
	if err != nil {
		return nil, fmt.Errorf("read publish response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: http.MethodPost, URL: target, Code: resp.StatusCode, Status: resp.Status}
	}
	return ack, nil
}

func (s *httpSession) Subscribe(ctx context.Context, channel string) (io.ReadCloser, error) {
	if channel == "" {
		return nil, ErrEmptyChannel
	}
	if s.isClosed() {
		return nil, ErrSessionClosed
	}

	target := s.broker.SubscribeURL(channel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build subscribe request: %w", err)
	}
	s.decorate(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxAckBytes))
		resp.Body.Close()
		return nil, &StatusError{Method: http.MethodGet, URL: target, Code: resp.StatusCode, Status: resp.Status}
	}
	return resp.Body, nil
}

func (s *httpSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.transport.CloseIdleConnections()
	return nil
}

func (s *httpSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *httpSession) decorate(req *http.Request) {
	if s.broker.userAgent != "" {
		req.Header.Set("User-Agent", s.broker.userAgent)
	}
}

var _ Broker = (*HTTPBroker)(nil)

// NewTransport returns a transport whose connect and TLS phases are bounded
// by timeout. Stream reads are never bounded; a subscription may stay idle
// for as long as the channel is quiet.
func NewTransport(timeout time.Duration) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	t.TLSHandshakeTimeout = timeout
	return t
}
