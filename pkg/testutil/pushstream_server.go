package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// PushStreamServer is an in-process stand-in for an nginx push-stream
// broker: POST <pub>?id=<channel> fans the body out, \r\n terminated, to every
// open GET <sub>/<channel> stream.
type PushStreamServer struct {
	*httptest.Server

	PubPath string
	SubPath string

	mu          sync.Mutex
	subscribers map[string]map[*subscriber]struct{}
	published   map[string][]string
	failNext    int
}

type subscriber struct {
	ch   chan []byte
	drop chan struct{}
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.drop) })
}

// NewPushStreamServer starts a server on the default /pub and /sub paths.
func NewPushStreamServer() *PushStreamServer {
	return NewPushStreamServerWithPaths("/pub", "/sub")
}

func NewPushStreamServerWithPaths(pubPath, subPath string) *PushStreamServer {
	p := &PushStreamServer{
		PubPath:     pubPath,
		SubPath:     strings.TrimRight(subPath, "/"),
		subscribers: make(map[string]map[*subscriber]struct{}),
		published:   make(map[string][]string),
	}
	p.Server = httptest.NewServer(http.HandlerFunc(p.serveHTTP))
	return p
}

func (p *PushStreamServer) serveHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == p.PubPath:
		p.handlePublish(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, p.SubPath+"/"):
		p.handleSubscribe(w, r, strings.TrimPrefix(r.URL.Path, p.SubPath+"/"))
	default:
		http.NotFound(w, r)
	}
}

func (p *PushStreamServer) handlePublish(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("id")
	if channel == "" {
		http.Error(w, "missing channel id", http.StatusBadRequest)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	if p.failNext > 0 {
		p.failNext--
		p.mu.Unlock()
		http.Error(w, "injected failure", http.StatusInternalServerError)
		return
	}
	p.published[channel] = append(p.published[channel], string(body))
	count := len(p.published[channel])
	subs := p.subscribersLocked(channel)
	p.mu.Unlock()

	p.fanOut(subs, append(body, '\r', '\n'))
	fmt.Fprintf(w, `{"channel": "%s", "published_messages": %d, "stored_messages": 0, "subscribers": %d}`,
		channel, count, len(subs))
}

func (p *PushStreamServer) handleSubscribe(w http.ResponseWriter, r *http.Request, channel string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := &subscriber{ch: make(chan []byte, 64), drop: make(chan struct{})}
	p.mu.Lock()
	if p.subscribers[channel] == nil {
		p.subscribers[channel] = make(map[*subscriber]struct{})
	}
	p.subscribers[channel][sub] = struct{}{}
	p.mu.Unlock()

	defer func() {
		sub.close()
		p.mu.Lock()
		delete(p.subscribers[channel], sub)
		p.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case msg := <-sub.ch:
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()
		case <-sub.drop:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (p *PushStreamServer) subscribersLocked(channel string) []*subscriber {
	subs := make([]*subscriber, 0, len(p.subscribers[channel]))
	for s := range p.subscribers[channel] {
		subs = append(subs, s)
	}
	return subs
}

func (p *PushStreamServer) fanOut(subs []*subscriber, msg []byte) {
	for _, s := range subs {
		select {
		case s.ch <- msg:
		case <-s.drop:
		}
	}
}

// Inject writes raw bytes, verbatim, to every subscriber of channel.
func (p *PushStreamServer) Inject(channel string, raw string) {
	p.mu.Lock()
	subs := p.subscribersLocked(channel)
	p.mu.Unlock()
	p.fanOut(subs, []byte(raw))
}

// DropSubscribers ends every open subscription; clients see end of stream.
func (p *PushStreamServer) DropSubscribers() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, subs := range p.subscribers {
		for s := range subs {
			s.close()
		}
	}
}

// FailPublishes makes the next n publishes answer 500.
func (p *PushStreamServer) FailPublishes(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = n
}

// Subscribers reports how many streams are open on channel.
func (p *PushStreamServer) Subscribers(channel string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subscribers[channel])
}

// WaitForSubscribers polls until channel has at least n open streams.
func (p *PushStreamServer) WaitForSubscribers(channel string, n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if p.Subscribers(channel) >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// Published returns the bodies accepted on channel, in order.
func (p *PushStreamServer) Published(channel string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.published[channel]...)
}

// Close drops every subscriber and shuts the server down.
func (p *PushStreamServer) Close() {
	p.DropSubscribers()
	p.Server.Close()
}
