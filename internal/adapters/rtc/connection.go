// Package rtc implements core.MediaProvider on pion PeerConnections: one
// send-only and one receive-only connection per participant.
package rtc

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/VideoCall/internal/core"
	"github.com/dkeye/VideoCall/internal/domain"
	"github.com/dkeye/VideoCall/internal/protocol"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrTransportClosed = errors.New("transport closed")

// LocalTrack is a captured track pion can send as is.
type LocalTrack interface {
	core.Track
	Local() webrtc.TrackLocal
}

func DefaultICEServers() []string {
	return []string{"stun:stun.l.google.com:19302"}
}

type Provider struct {
	iceServers []string
}

func NewProvider(iceServers []string) *Provider {
	return &Provider{iceServers: iceServers}
}

func (p *Provider) CreateTransports(ctx context.Context, participant domain.UserID) (core.TransportPair, error) {
	send, err := p.newConnection(ctx, participant, domain.DirectionSend)
	if err != nil {
		return core.TransportPair{}, err
	}
	recv, err := p.newConnection(ctx, participant, domain.DirectionRecv)
	if err != nil {
		send.Close()
		return core.TransportPair{}, err
	}
	return core.TransportPair{
		Send: &SendTransport{connection: send},
		Recv: &RecvTransport{connection: recv},
	}, nil
}

func (p *Provider) newConnection(ctx context.Context, participant domain.UserID, dir domain.Direction) (*connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate %s key: %w", dir, err)
	}
	cert, err := webrtc.GenerateCertificate(key)
	if err != nil {
		return nil, fmt.Errorf("generate %s certificate: %w", dir, err)
	}

	cfg := webrtc.Configuration{Certificates: []webrtc.Certificate{*cert}}
	if len(p.iceServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: p.iceServers}}
	}
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("new %s peer connection: %w", dir, err)
	}

	c := &connection{
		id:          uuid.NewString(),
		dir:         dir,
		participant: participant,
		pc:          pc,
		cert:        cert,
	}
	c.watch()
	return c, nil
}

// connection is one PeerConnection plus the pending connect handshake.
type connection struct {
	id          string
	dir         domain.Direction
	participant domain.UserID
	pc          *webrtc.PeerConnection
	cert        *webrtc.Certificate

	mu        sync.Mutex
	connect   core.ConnectFunc
	connected bool
	closed    bool
}

func (c *connection) ID() string { return c.id }

func (c *connection) OnConnect(f core.ConnectFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connect = f
}

func (c *connection) watch() {
	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "adapters.rtc").Str("transport", c.id).Str("user", string(c.participant)).Str("ice_state", s.String()).Msg("ICE state")
	})
	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "adapters.rtc").Str("transport", c.id).Str("user", string(c.participant)).Str("peer_connection_state", s.String()).Msg("Peer state")
	})
}

func (c *connection) dtlsParameters() (protocol.DTLSParameters, error) {
	fps, err := c.cert.GetFingerprints()
	if err != nil {
		return protocol.DTLSParameters{}, fmt.Errorf("fingerprints: %w", err)
	}
	params := protocol.DTLSParameters{Role: "auto"}
	for _, fp := range fps {
		params.Fingerprints = append(params.Fingerprints, protocol.DTLSFingerprint{
			Algorithm: fp.Algorithm,
			Value:     fp.Value,
		})
	}
	return params, nil
}

// ensureConnected runs the connect handshake once, before the first
// produce or consume. A failed handshake is retried next time.
func (c *connection) ensureConnected(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrTransportClosed
	}
	if c.connected {
		return nil
	}
	if c.connect != nil {
		params, err := c.dtlsParameters()
		if err != nil {
			return err
		}
		if err := c.connect(ctx, core.ConnectParams{
			TransportID:    c.id,
			Direction:      c.dir,
			DTLSParameters: params,
		}); err != nil {
			return err
		}
	}
	c.connected = true
	return nil
}

func (c *connection) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	if err := c.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "adapters.rtc").Str("transport", c.id).Msg("close error")
		return
	}
	log.Info().Str("module", "adapters.rtc").Str("transport", c.id).Str("direction", string(c.dir)).Msg("closed")
}

type SendTransport struct {
	*connection
}

func (t *SendTransport) Produce(ctx context.Context, track core.Track) (core.Producer, error) {
	local, err := localTrack(track)
	if err != nil {
		return nil, err
	}
	if err := t.ensureConnected(ctx); err != nil {
		return nil, err
	}
	sender, err := t.pc.AddTrack(local)
	if err != nil {
		return nil, fmt.Errorf("add %s track: %w", track.Kind(), err)
	}
	prod := &Producer{id: uuid.NewString(), kind: track.Kind(), sender: sender, pc: t.pc}
	log.Debug().Str("module", "adapters.rtc").Str("transport", t.id).Str("producer", prod.id).Str("kind", string(prod.kind)).Msg("producing")
	return prod, nil
}

// localTrack uses the captured pion track when there is one and otherwise
// allocates a static track of the same kind.
func localTrack(track core.Track) (webrtc.TrackLocal, error) {
	if lt, ok := track.(LocalTrack); ok {
		return lt.Local(), nil
	}
	capability, err := codecFor(track.Kind())
	if err != nil {
		return nil, err
	}
	local, err := webrtc.NewTrackLocalStaticRTP(capability, track.ID(), "videocall")
	if err != nil {
		return nil, fmt.Errorf("new %s track: %w", track.Kind(), err)
	}
	return local, nil
}

func codecFor(kind domain.MediaKind) (webrtc.RTPCodecCapability, error) {
	switch kind {
	case domain.KindAudio:
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}, nil
	case domain.KindVideo:
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}, nil
	default:
		return webrtc.RTPCodecCapability{}, fmt.Errorf("unknown media kind %q", kind)
	}
}

func codecType(kind domain.MediaKind) (webrtc.RTPCodecType, error) {
	switch kind {
	case domain.KindAudio:
		return webrtc.RTPCodecTypeAudio, nil
	case domain.KindVideo:
		return webrtc.RTPCodecTypeVideo, nil
	default:
		return 0, fmt.Errorf("unknown media kind %q", kind)
	}
}

type RecvTransport struct {
	*connection
}

func (t *RecvTransport) Consume(ctx context.Context, opts core.ConsumeOptions) (core.Consumer, error) {
	typ, err := codecType(opts.Kind)
	if err != nil {
		return nil, err
	}
	if err := t.ensureConnected(ctx); err != nil {
		return nil, err
	}
	tr, err := t.pc.AddTransceiverFromKind(typ, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	})
	if err != nil {
		return nil, fmt.Errorf("add %s transceiver: %w", opts.Kind, err)
	}
	cons := &Consumer{id: uuid.NewString(), producerID: opts.ProducerID, kind: opts.Kind, transceiver: tr}
	log.Debug().Str("module", "adapters.rtc").Str("transport", t.id).Str("consumer", cons.id).Str("producer", opts.ProducerID).Msg("consuming")
	return cons, nil
}

type Producer struct {
	id     string
	kind   domain.MediaKind
	sender *webrtc.RTPSender
	pc     *webrtc.PeerConnection
	once   sync.Once
}

func (p *Producer) ID() string             { return p.id }
func (p *Producer) Kind() domain.MediaKind { return p.kind }

func (p *Producer) Close() {
	p.once.Do(func() {
		if err := p.pc.RemoveTrack(p.sender); err != nil && !errors.Is(err, webrtc.ErrConnectionClosed) {
			log.Warn().Err(err).Str("module", "adapters.rtc").Str("producer", p.id).Msg("remove track")
		}
	})
}

type Consumer struct {
	id          string
	producerID  string
	kind        domain.MediaKind
	transceiver *webrtc.RTPTransceiver
	once        sync.Once
}

func (c *Consumer) ID() string             { return c.id }
func (c *Consumer) ProducerID() string     { return c.producerID }
func (c *Consumer) Kind() domain.MediaKind { return c.kind }

func (c *Consumer) Close() {
	c.once.Do(func() {
		if err := c.transceiver.Stop(); err != nil {
			log.Warn().Err(err).Str("module", "adapters.rtc").Str("consumer", c.id).Msg("stop transceiver")
		}
	})
}
