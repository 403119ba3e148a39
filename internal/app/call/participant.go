package call

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/dkeye/VideoCall/internal/app/events"
	"github.com/dkeye/VideoCall/internal/core"
	"github.com/dkeye/VideoCall/internal/domain"
	"github.com/dkeye/VideoCall/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrParticipantClosed = errors.New("participant closed")
	ErrDuplicateHandle   = errors.New("duplicate media handle id")
	ErrNotLocal          = errors.New("participant is not local")
)

type MediaEventType string

const (
	EventProducerAdded      MediaEventType = "producerAdded"
	EventProducerRemoved    MediaEventType = "producerRemoved"
	EventConsumerAdded      MediaEventType = "consumerAdded"
	EventConsumerRemoved    MediaEventType = "consumerRemoved"
	EventTransportConnected MediaEventType = "transportConnected"
	EventError              MediaEventType = "error"
)

// MediaEvent is a participant-level notification.
type MediaEvent struct {
	Type        MediaEventType
	Participant domain.UserID
	ProducerID  string
	ConsumerID  string
	TransportID string
	Direction   domain.Direction
	Kind        domain.MediaKind
	Err         error
}

type ParticipantOptions struct {
	IsLocal bool
	// OnError is subscribed to EventError before transport creation starts.
	OnError func(MediaEvent)
}

// Participant is one member of a Call. The Call owns it; the signaling
// channel is shared and never closed from here.
type Participant struct {
	id      domain.UserID
	roomID  domain.RoomID
	name    string
	isLocal bool
	signal  core.SignalChannel
	events  *events.Bus[MediaEventType, MediaEvent]
	logger  zerolog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	ready     chan struct{}
	readyOnce sync.Once

	mu         sync.RWMutex
	status     domain.ConnectionStatus
	speaking   bool
	transports *core.TransportPair
	initErr    error
	producers  map[string]core.Producer
	consumers  map[string]core.Consumer
}

func newParticipant(
	ctx context.Context,
	roomID domain.RoomID,
	id domain.UserID,
	name string,
	signal core.SignalChannel,
	opts ParticipantOptions,
) *Participant {
	ctx, cancel := context.WithCancel(ctx)
	p := &Participant{
		id:      id,
		roomID:  roomID,
		name:    name,
		isLocal: opts.IsLocal,
		signal:  signal,
		events:  events.NewBus[MediaEventType, MediaEvent](),
		logger: log.With().
			Str("module", "app.call").
			Str("room", string(roomID)).
			Str("user", string(id)).
			Logger(),
		ctx:       ctx,
		cancel:    cancel,
		ready:     make(chan struct{}),
		status:    domain.StatusConnecting,
		producers: make(map[string]core.Producer),
		consumers: make(map[string]core.Consumer),
	}
	if opts.OnError != nil {
		p.events.On(EventError, opts.OnError)
	}
	return p
}

func (p *Participant) ID() domain.UserID     { return p.id }
func (p *Participant) RoomID() domain.RoomID { return p.roomID }
func (p *Participant) Name() string          { return p.name }
func (p *Participant) IsLocal() bool         { return p.isLocal }

func (p *Participant) Events() *events.Bus[MediaEventType, MediaEvent] { return p.events }

// Ready is closed once transport initialization finished, successfully or
// not, and its outcome has been announced.
func (p *Participant) Ready() <-chan struct{} { return p.ready }

func (p *Participant) Status() domain.ConnectionStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

func (p *Participant) IsSpeaking() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.speaking
}

func (p *Participant) SetSpeaking(speaking bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.speaking = speaking
}

// Transports returns the pair once initialized.
func (p *Participant) Transports() (core.TransportPair, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.transports == nil {
		if p.initErr != nil {
			return core.TransportPair{}, fmt.Errorf("%w: %w", domain.ErrTransportNotInitialized, p.initErr)
		}
		return core.TransportPair{}, domain.ErrTransportNotInitialized
	}
	return *p.transports, nil
}

func (p *Participant) initTransports(media core.MediaProvider) {
	defer p.markReady()

	pair, err := media.CreateTransports(p.ctx, p.id)
	if err != nil {
		p.mu.Lock()
		p.initErr = err
		p.mu.Unlock()
		if p.ctx.Err() == nil {
			p.report(fmt.Errorf("create transports: %w", err))
		}
		return
	}

	pair.Send.OnConnect(p.connectTransport)
	pair.Recv.OnConnect(p.connectTransport)

	p.mu.Lock()
	if p.status == domain.StatusDisconnected {
		p.mu.Unlock()
		pair.Send.Close()
		pair.Recv.Close()
		return
	}
	p.transports = &pair
	p.status = domain.StatusConnected
	p.mu.Unlock()

	p.logger.Info().Str("send", pair.Send.ID()).Str("recv", pair.Recv.ID()).Msg("transports ready")
	p.send(protocol.DeviceLoaded{})
	for _, t := range []struct {
		id  string
		dir domain.Direction
	}{
		{pair.Send.ID(), domain.DirectionSend},
		{pair.Recv.ID(), domain.DirectionRecv},
	} {
		p.send(protocol.TransportConnected{TransportID: t.id, Direction: t.dir})
		p.events.Emit(EventTransportConnected, MediaEvent{
			Type:        EventTransportConnected,
			Participant: p.id,
			TransportID: t.id,
			Direction:   t.dir,
		})
	}
}

func (p *Participant) markReady() {
	p.readyOnce.Do(func() { close(p.ready) })
}

// connectTransport forwards the transport's connection parameters over
// signaling; the transport finishes connecting only if the send succeeds.
func (p *Participant) connectTransport(_ context.Context, params core.ConnectParams) error {
	p.logger.Debug().Str("transport", params.TransportID).Str("direction", string(params.Direction)).Msg("connect transport")
	if err := p.signal.Send(protocol.ConnectTransport{
		TransportID:    params.TransportID,
		DTLSParameters: params.DTLSParameters,
	}); err != nil {
		return fmt.Errorf("signal connectTransport: %w", err)
	}
	return nil
}

func (p *Participant) AddProducer(ctx context.Context, kind domain.MediaKind, track core.Track) (core.Producer, error) {
	if track.Kind() != kind {
		return nil, fmt.Errorf("track %s is %s, not %s", track.ID(), track.Kind(), kind)
	}
	pair, err := p.Transports()
	if err != nil {
		return nil, err
	}
	prod, err := pair.Send.Produce(ctx, track)
	if err != nil {
		return nil, fmt.Errorf("produce %s: %w", kind, err)
	}

	p.mu.Lock()
	if p.status == domain.StatusDisconnected {
		p.mu.Unlock()
		prod.Close()
		return nil, ErrParticipantClosed
	}
	if _, dup := p.producers[prod.ID()]; dup {
		p.mu.Unlock()
		prod.Close()
		return nil, fmt.Errorf("%w: producer %s", ErrDuplicateHandle, prod.ID())
	}
	p.producers[prod.ID()] = prod
	p.mu.Unlock()

	p.logger.Info().Str("producer", prod.ID()).Str("kind", string(kind)).Msg("producer added")
	p.send(protocol.ProducerAdded{RoomID: p.roomID, UserID: p.id, ProducerID: prod.ID(), MediaKind: kind})
	p.events.Emit(EventProducerAdded, MediaEvent{Type: EventProducerAdded, Participant: p.id, ProducerID: prod.ID(), Kind: kind})
	return prod, nil
}

func (p *Participant) AddConsumer(ctx context.Context, producerID string, kind domain.MediaKind) (core.Consumer, error) {
	pair, err := p.Transports()
	if err != nil {
		return nil, err
	}
	cons, err := pair.Recv.Consume(ctx, core.ConsumeOptions{
		ID:         producerID,
		ProducerID: producerID,
		Kind:       kind,
	})
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", producerID, err)
	}

	p.mu.Lock()
	if p.status == domain.StatusDisconnected {
		p.mu.Unlock()
		cons.Close()
		return nil, ErrParticipantClosed
	}
	if _, dup := p.consumers[cons.ID()]; dup {
		p.mu.Unlock()
		cons.Close()
		return nil, fmt.Errorf("%w: consumer %s", ErrDuplicateHandle, cons.ID())
	}
	p.consumers[cons.ID()] = cons
	p.mu.Unlock()

	p.logger.Info().Str("consumer", cons.ID()).Str("producer", producerID).Str("kind", string(kind)).Msg("consumer added")
	p.send(protocol.ConsumerAdded{RoomID: p.roomID, UserID: p.id, ConsumerID: cons.ID(), ProducerID: producerID, MediaKind: kind})
	p.events.Emit(EventConsumerAdded, MediaEvent{Type: EventConsumerAdded, Participant: p.id, ConsumerID: cons.ID(), ProducerID: producerID, Kind: kind})
	return cons, nil
}

// RemoveProducer closes and forgets the producer. Unknown ids are a no-op.
func (p *Participant) RemoveProducer(producerID string) bool {
	p.mu.Lock()
	prod, ok := p.producers[producerID]
	delete(p.producers, producerID)
	p.mu.Unlock()
	if !ok {
		return false
	}

	prod.Close()
	p.logger.Info().Str("producer", producerID).Msg("producer removed")
	p.send(protocol.ProducerRemoved{RoomID: p.roomID, UserID: p.id, ProducerID: producerID})
	p.events.Emit(EventProducerRemoved, MediaEvent{Type: EventProducerRemoved, Participant: p.id, ProducerID: producerID, Kind: prod.Kind()})
	return true
}

// RemoveConsumer closes and forgets the consumer. Unknown ids are a no-op.
func (p *Participant) RemoveConsumer(consumerID string) bool {
	p.mu.Lock()
	cons, ok := p.consumers[consumerID]
	delete(p.consumers, consumerID)
	p.mu.Unlock()
	if !ok {
		return false
	}

	cons.Close()
	p.logger.Info().Str("consumer", consumerID).Msg("consumer removed")
	p.send(protocol.ConsumerRemoved{RoomID: p.roomID, UserID: p.id, ConsumerID: consumerID})
	p.events.Emit(EventConsumerRemoved, MediaEvent{Type: EventConsumerRemoved, Participant: p.id, ConsumerID: consumerID, ProducerID: cons.ProducerID(), Kind: cons.Kind()})
	return true
}

// SetupLocalMedia captures local tracks and produces each of them. Failures
// are reported through the error event, never returned. Captured tracks live
// until ctx ends or the participant is torn down, whichever comes first.
func (p *Participant) SetupLocalMedia(ctx context.Context, capturer core.Capturer) {
	if !p.isLocal {
		p.report(ErrNotLocal)
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	context.AfterFunc(p.ctx, cancel)

	select {
	case <-p.ready:
	case <-ctx.Done():
		if p.ctx.Err() == nil {
			p.report(fmt.Errorf("waiting for transports: %w", ctx.Err()))
		}
		return
	}
	// init failures and removal were already reported
	if _, err := p.Transports(); err != nil {
		return
	}

	tracks, err := capturer.Capture(ctx)
	if err != nil {
		p.report(fmt.Errorf("%w: %w", domain.ErrMediaAcquisitionFailed, err))
		return
	}
	for _, track := range tracks {
		if _, err := p.AddProducer(ctx, track.Kind(), track); err != nil {
			p.report(err)
			return
		}
	}
}

func (p *Participant) Producers() []core.Producer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return sortedHandles(p.producers)
}

func (p *Participant) Consumers() []core.Consumer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return sortedHandles(p.consumers)
}

func (p *Participant) Producer(id string) (core.Producer, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	prod, ok := p.producers[id]
	return prod, ok
}

func (p *Participant) Consumer(id string) (core.Consumer, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cons, ok := p.consumers[id]
	return cons, ok
}

func (p *Participant) ConsumerByProducerID(producerID string) (core.Consumer, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, c := range p.consumers {
		if c.ProducerID() == producerID {
			return c, true
		}
	}
	return nil, false
}

func (p *Participant) ProducersByKind(kind domain.MediaKind) []core.Producer {
	return slices.DeleteFunc(p.Producers(), func(prod core.Producer) bool { return prod.Kind() != kind })
}

func (p *Participant) ConsumersByKind(kind domain.MediaKind) []core.Consumer {
	return slices.DeleteFunc(p.Consumers(), func(c core.Consumer) bool { return c.Kind() != kind })
}

func (p *Participant) Snapshot() domain.Member {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return domain.Member{
		ID:        p.id,
		Name:      p.name,
		IsLocal:   p.isLocal,
		Status:    p.status,
		Speaking:  p.speaking,
		Producers: len(p.producers),
		Consumers: len(p.consumers),
	}
}

// closeMedia marks the participant disconnected and closes every producer
// and consumer. It reports false if that already happened.
func (p *Participant) closeMedia() bool {
	p.mu.Lock()
	if p.status == domain.StatusDisconnected {
		p.mu.Unlock()
		return false
	}
	p.status = domain.StatusDisconnected
	prodIDs := keys(p.producers)
	consIDs := keys(p.consumers)
	p.mu.Unlock()

	for _, id := range prodIDs {
		p.RemoveProducer(id)
	}
	for _, id := range consIDs {
		p.RemoveConsumer(id)
	}
	return true
}

func (p *Participant) closeTransports() {
	p.cancel()
	p.mu.Lock()
	pair := p.transports
	p.transports = nil
	p.mu.Unlock()
	if pair != nil {
		pair.Send.Close()
		pair.Recv.Close()
	}
}

func (p *Participant) send(m protocol.Message) {
	if err := p.signal.Send(m); err != nil {
		p.logger.Warn().Err(err).Str("event", string(m.Kind())).Msg("signal send failed")
	}
}

func (p *Participant) report(err error) {
	p.logger.Error().Err(err).Msg("participant error")
	p.send(protocol.NewErrorReport(err))
	p.events.Emit(EventError, MediaEvent{Type: EventError, Participant: p.id, Err: err})
}

type identified interface{ ID() string }

func sortedHandles[H identified](m map[string]H) []H {
	out := make([]H, 0, len(m))
	for _, h := range m {
		out = append(out, h)
	}
	slices.SortFunc(out, func(a, b H) int { return strings.Compare(a.ID(), b.ID()) })
	return out
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
