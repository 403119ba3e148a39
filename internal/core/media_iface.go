package core

import (
	"context"

	"github.com/dkeye/VideoCall/internal/domain"
	"github.com/dkeye/VideoCall/internal/protocol"
)

//go:generate mockgen -destination=mocks/mock_core.go -package=mocks . SignalChannel,MediaProvider,Capturer

// Track is a local media source handed to a send transport.
type Track interface {
	ID() string
	Kind() domain.MediaKind
}

type Producer interface {
	ID() string
	Kind() domain.MediaKind
	Close()
}

type Consumer interface {
	ID() string
	ProducerID() string
	Kind() domain.MediaKind
	Close()
}

// ConnectParams are handed to the connect callback the first time a
// transport needs its remote side. The transport stays pending until the
// callback returns.
type ConnectParams struct {
	TransportID    string
	Direction      domain.Direction
	DTLSParameters protocol.DTLSParameters
}

type ConnectFunc func(ctx context.Context, p ConnectParams) error

type ConsumeOptions struct {
	ID         string
	ProducerID string
	Kind       domain.MediaKind
}

type SendTransport interface {
	ID() string
	OnConnect(ConnectFunc)
	Produce(ctx context.Context, track Track) (Producer, error)
	Close()
}

type RecvTransport interface {
	ID() string
	OnConnect(ConnectFunc)
	Consume(ctx context.Context, opts ConsumeOptions) (Consumer, error)
	Close()
}

// TransportPair holds the send and recv halves created for one participant.
type TransportPair struct {
	Send SendTransport
	Recv RecvTransport
}

// MediaProvider creates transports; creation may block on the media engine.
type MediaProvider interface {
	CreateTransports(ctx context.Context, participant domain.UserID) (TransportPair, error)
}

// Capturer acquires local audio and video tracks.
type Capturer interface {
	Capture(ctx context.Context) ([]Track, error)
}
