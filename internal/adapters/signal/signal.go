// Package signal provides core.SignalChannel implementations over a
// WebSocket connection and over Redis pub/sub.
package signal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/VideoCall/internal/protocol"
	"github.com/frostbyte73/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("signaling closed")
)

const writeWait = 5 * time.Second

// handlers fans channel notifications out to registered callbacks.
type handlers struct {
	mu          sync.RWMutex
	onConnected []func()
	onMessage   []func(protocol.Message)
	onError     []func(error)
}

func (h *handlers) OnConnected(f func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onConnected = append(h.onConnected, f)
}

func (h *handlers) OnMessage(f func(protocol.Message)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onMessage = append(h.onMessage, f)
}

func (h *handlers) OnError(f func(error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onError = append(h.onError, f)
}

func (h *handlers) fireConnected() {
	h.mu.RLock()
	fs := append([]func(){}, h.onConnected...)
	h.mu.RUnlock()
	for _, f := range fs {
		f()
	}
}

func (h *handlers) fireMessage(m protocol.Message) {
	h.mu.RLock()
	fs := append([]func(protocol.Message){}, h.onMessage...)
	h.mu.RUnlock()
	for _, f := range fs {
		f(m)
	}
}

func (h *handlers) fireError(err error) {
	h.mu.RLock()
	fs := append([]func(error){}, h.onError...)
	h.mu.RUnlock()
	for _, f := range fs {
		f(err)
	}
}

type WSConfig struct {
	URL        string
	Codec      protocol.Codec
	Token      string
	PingPeriod time.Duration
	ReadLimit  int64
	SendBuffer int
}

// WSChannel is a client connection to a signaling server. Frames are
// queued on a bounded buffer and written by a single pump.
type WSChannel struct {
	handlers
	cfg WSConfig

	conn   *websocket.Conn
	send   chan []byte
	closed core.Fuse
}

func NewWS(cfg WSConfig) *WSChannel {
	if cfg.Codec == nil {
		cfg.Codec = protocol.JSONCodec{}
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 32
	}
	if cfg.PingPeriod <= 0 {
		cfg.PingPeriod = 30 * time.Second
	}
	return &WSChannel{
		cfg:    cfg,
		send:   make(chan []byte, cfg.SendBuffer),
		closed: core.NewFuse(),
	}
}

// Connect dials the server, starts the pumps and notifies connected
// handlers. It must be called once, after handlers are registered.
func (c *WSChannel) Connect(ctx context.Context) error {
	if c.closed.IsBroken() {
		return ErrClosed
	}
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	if c.cfg.ReadLimit > 0 {
		conn.SetReadLimit(c.cfg.ReadLimit)
	}
	pongWait := c.cfg.PingPeriod * 10 / 9
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.conn = conn
	log.Info().Str("module", "adapters.signal").Str("url", c.cfg.URL).Str("codec", c.cfg.Codec.Name()).Msg("signaling connected")

	go c.writePump()
	go c.readPump()
	c.fireConnected()
	return nil
}

// Send never blocks: a full buffer yields ErrBackpressure.
func (c *WSChannel) Send(m protocol.Message) error {
	data, err := c.cfg.Codec.Encode(m)
	if err != nil {
		return err
	}
	return c.trySend(data)
}

func (c *WSChannel) trySend(data []byte) error {
	if c.closed.IsBroken() {
		return ErrClosed
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

// Close stops the pumps; the write pump sends a close frame on its way out.
func (c *WSChannel) Close() error {
	c.closed.Break()
	return nil
}

// Done is closed once the channel is closed, locally or by the peer.
func (c *WSChannel) Done() <-chan struct{} {
	return c.closed.Watch()
}
