// Package coretest provides in-memory collaborators for tests.
package coretest

import (
	"errors"
	"sync"

	"github.com/dkeye/VideoCall/internal/protocol"
)

var ErrSendFailed = errors.New("send failed")

// Signal records outbound messages and lets tests inject inbound ones.
type Signal struct {
	mu          sync.Mutex
	sent        []protocol.Message
	failKinds   map[protocol.Kind]bool
	onConnected []func()
	onMessage   []func(protocol.Message)
	onError     []func(error)
	closed      bool
}

func NewSignal() *Signal {
	return &Signal{failKinds: make(map[protocol.Kind]bool)}
}

func (s *Signal) Send(m protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failKinds[m.Kind()] {
		return ErrSendFailed
	}
	s.sent = append(s.sent, m)
	return nil
}

func (s *Signal) OnConnected(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConnected = append(s.onConnected, f)
}

func (s *Signal) OnMessage(f func(protocol.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMessage = append(s.onMessage, f)
}

func (s *Signal) OnError(f func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = append(s.onError, f)
}

func (s *Signal) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Signal) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// FailSends makes Send reject messages of kind k.
func (s *Signal) FailSends(k protocol.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failKinds[k] = true
}

func (s *Signal) Connect() {
	s.mu.Lock()
	hs := append([]func(){}, s.onConnected...)
	s.mu.Unlock()
	for _, h := range hs {
		h()
	}
}

// Deliver runs the message handlers on the calling goroutine.
func (s *Signal) Deliver(m protocol.Message) {
	s.mu.Lock()
	hs := append([]func(protocol.Message){}, s.onMessage...)
	s.mu.Unlock()
	for _, h := range hs {
		h(m)
	}
}

func (s *Signal) Fail(err error) {
	s.mu.Lock()
	hs := append([]func(error){}, s.onError...)
	s.mu.Unlock()
	for _, h := range hs {
		h(err)
	}
}

func (s *Signal) Sent() []protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Message(nil), s.sent...)
}

func (s *Signal) SentKind(k protocol.Kind) []protocol.Message {
	var out []protocol.Message
	for _, m := range s.Sent() {
		if m.Kind() == k {
			out = append(out, m)
		}
	}
	return out
}

func (s *Signal) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = nil
}
