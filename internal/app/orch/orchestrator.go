package orch

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/dkeye/VideoCall/internal/app/call"
	"github.com/dkeye/VideoCall/internal/app/events"
	"github.com/dkeye/VideoCall/internal/app/names"
	"github.com/dkeye/VideoCall/internal/app/queue"
	"github.com/dkeye/VideoCall/internal/core"
	"github.com/dkeye/VideoCall/internal/domain"
	"github.com/dkeye/VideoCall/internal/protocol"
	"github.com/rs/zerolog/log"
)

type EventType string

// Domain events. Every inbound signaling message is also re-emitted under
// its own kind, e.g. "producerAdded".
const (
	EventConnected EventType = "connected"
	EventCreated   EventType = "created"
	EventJoined    EventType = "joined"
	EventLeave     EventType = "leave"
	EventEnded     EventType = "ended"
	EventError     EventType = "error"
)

type Event struct {
	Type    EventType
	RoomID  domain.RoomID
	UserID  domain.UserID
	Err     error
	Message protocol.Message
}

type Params struct {
	Signal  core.SignalChannel
	Media   core.MediaProvider
	Capture core.Capturer
	Names   *names.Allocator
	// SerializeInbound runs inbound dispatch on the ordered queue instead of
	// the signaling reader goroutine.
	SerializeInbound bool
}

// Orchestrator coordinates calls for one local session.
type Orchestrator struct {
	signal  core.SignalChannel
	media   core.MediaProvider
	capture core.Capturer
	names   *names.Allocator
	serial  bool

	ctx    context.Context
	cancel context.CancelFunc
	queue  *queue.Queue
	events *events.Bus[EventType, Event]

	mu          sync.RWMutex
	calls       map[domain.RoomID]*call.Call
	localUserID domain.UserID

	closeOnce sync.Once
}

func New(p Params) *Orchestrator {
	alloc := p.Names
	if alloc == nil {
		alloc = names.NewAllocator(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		signal:  p.Signal,
		media:   p.Media,
		capture: p.Capture,
		names:   alloc,
		serial:  p.SerializeInbound,
		ctx:     ctx,
		cancel:  cancel,
		queue:   queue.New("orchestrator"),
		events:  events.NewBus[EventType, Event](),
		calls:   make(map[domain.RoomID]*call.Call),
	}

	o.signal.OnConnected(func() {
		log.Info().Str("module", "app.orch").Msg("signaling connected")
		o.emit(Event{Type: EventConnected})
	})
	o.signal.OnError(func(err error) {
		o.fail(domain.RoomID(""), err)
	})
	o.signal.OnMessage(o.onMessage)
	return o
}

func (o *Orchestrator) Start() {
	o.queue.Start()
}

// Close drains queued operations, ends every call and closes signaling.
func (o *Orchestrator) Close(ctx context.Context) error {
	var err error
	o.closeOnce.Do(func() {
		o.queue.Stop()
		select {
		case <-o.queue.Done():
		case <-ctx.Done():
			err = ctx.Err()
		}
		o.cancel()
		for _, c := range o.GetAllCalls() {
			c.EndCall()
		}
		if cerr := o.signal.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		log.Info().Str("module", "app.orch").Msg("orchestrator closed")
	})
	return err
}

// On subscribes to a domain event and returns the unsubscribe func.
func (o *Orchestrator) On(t EventType, h func(Event)) (off func()) {
	return o.events.On(t, h)
}

func (o *Orchestrator) LocalUserID() domain.UserID {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.localUserID
}

func (o *Orchestrator) GetCall(id domain.RoomID) (*call.Call, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	c, ok := o.calls[id]
	return c, ok
}

// GetAllCalls returns registered calls ordered by id.
func (o *Orchestrator) GetAllCalls() []*call.Call {
	o.mu.RLock()
	out := make([]*call.Call, 0, len(o.calls))
	for _, c := range o.calls {
		out = append(out, c)
	}
	o.mu.RUnlock()
	slices.SortFunc(out, func(a, b *call.Call) int { return strings.Compare(string(a.ID()), string(b.ID())) })
	return out
}

func (o *Orchestrator) emit(e Event) {
	o.events.Emit(e.Type, e)
}

func (o *Orchestrator) fail(room domain.RoomID, err error) {
	log.Warn().Str("module", "app.orch").Str("room", string(room)).Err(err).Msg("operation failed")
	o.emit(Event{Type: EventError, RoomID: room, Err: err})
}
