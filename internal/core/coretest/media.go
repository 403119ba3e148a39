package coretest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dkeye/VideoCall/internal/core"
	"github.com/dkeye/VideoCall/internal/domain"
	"github.com/dkeye/VideoCall/internal/protocol"
)

var (
	ErrCreateFailed  = errors.New("create transports failed")
	ErrConsumeFailed = errors.New("consume failed")
)

// Media is an in-memory core.MediaProvider. Handles get sequential ids.
type Media struct {
	seq atomic.Int64

	mu          sync.Mutex
	gate        chan struct{}
	failCreate  bool
	failConsume bool
	pairs       map[domain.UserID]*Pair
}

type Pair struct {
	Send *SendTransport
	Recv *RecvTransport
}

func NewMedia() *Media {
	return &Media{pairs: make(map[domain.UserID]*Pair)}
}

// Hold makes CreateTransports block until Release.
func (m *Media) Hold() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
}

func (m *Media) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate != nil {
		close(m.gate)
		m.gate = nil
	}
}

func (m *Media) FailCreate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCreate = true
}

func (m *Media) FailConsume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failConsume = true
}

func (m *Media) Pair(id domain.UserID) (*Pair, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pairs[id]
	return p, ok
}

func (m *Media) next(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, m.seq.Add(1))
}

func (m *Media) CreateTransports(ctx context.Context, participant domain.UserID) (core.TransportPair, error) {
	m.mu.Lock()
	gate := m.gate
	fail := m.failCreate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return core.TransportPair{}, ctx.Err()
		}
	}
	if fail {
		return core.TransportPair{}, ErrCreateFailed
	}

	p := &Pair{
		Send: &SendTransport{transportBase{media: m, id: m.next("send")}},
		Recv: &RecvTransport{transportBase{media: m, id: m.next("recv")}},
	}
	m.mu.Lock()
	m.pairs[participant] = p
	m.mu.Unlock()
	return core.TransportPair{Send: p.Send, Recv: p.Recv}, nil
}

type transportBase struct {
	media     *Media
	id        string
	mu        sync.Mutex
	connect   core.ConnectFunc
	connected bool
	closed    bool
}

func (t *transportBase) ID() string { return t.id }

func (t *transportBase) OnConnect(f core.ConnectFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connect = f
}

func (t *transportBase) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}

func (t *transportBase) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *transportBase) ensureConnected(ctx context.Context, dir domain.Direction) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.New("transport closed")
	}
	if t.connected {
		t.mu.Unlock()
		return nil
	}
	f := t.connect
	t.mu.Unlock()

	if f != nil {
		err := f(ctx, core.ConnectParams{
			TransportID: t.id,
			Direction:   dir,
			DTLSParameters: protocol.DTLSParameters{
				Role:         "auto",
				Fingerprints: []protocol.DTLSFingerprint{{Algorithm: "sha-256", Value: "fake"}},
			},
		})
		if err != nil {
			return err
		}
	}
	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()
	return nil
}

type SendTransport struct {
	transportBase
}

func (t *SendTransport) Produce(ctx context.Context, track core.Track) (core.Producer, error) {
	if err := t.ensureConnected(ctx, domain.DirectionSend); err != nil {
		return nil, err
	}
	return &Handle{id: t.media.next("producer"), kind: track.Kind()}, nil
}

type RecvTransport struct {
	transportBase
}

func (t *RecvTransport) Consume(ctx context.Context, opts core.ConsumeOptions) (core.Consumer, error) {
	t.media.mu.Lock()
	fail := t.media.failConsume
	t.media.mu.Unlock()
	if fail {
		return nil, ErrConsumeFailed
	}
	if err := t.ensureConnected(ctx, domain.DirectionRecv); err != nil {
		return nil, err
	}
	return &Handle{id: t.media.next("consumer"), producerID: opts.ProducerID, kind: opts.Kind}, nil
}

// Handle serves as both producer and consumer.
type Handle struct {
	id         string
	producerID string
	kind       domain.MediaKind
	closed     atomic.Bool
}

func (h *Handle) ID() string             { return h.id }
func (h *Handle) ProducerID() string     { return h.producerID }
func (h *Handle) Kind() domain.MediaKind { return h.kind }
func (h *Handle) Close()                 { h.closed.Store(true) }
func (h *Handle) Closed() bool           { return h.closed.Load() }
