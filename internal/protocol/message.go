// Package protocol defines the signaling messages exchanged with the remote
// side of a room. Every message kind carries its own payload shape; anything
// the orchestrator does not understand travels as a Passthrough.
package protocol

import (
	"github.com/dkeye/VideoCall/internal/domain"
)

type Kind string

const (
	KindJoined             Kind = "joined"
	KindLeave              Kind = "leave"
	KindRequestProducers   Kind = "requestProducers"
	KindProducerAdded      Kind = "producerAdded"
	KindProducerRemoved    Kind = "producerRemoved"
	KindConsumerAdded      Kind = "consumerAdded"
	KindConsumerRemoved    Kind = "consumerRemoved"
	KindConnectTransport   Kind = "connectTransport"
	KindTransportConnected Kind = "transportConnected"
	KindDeviceLoaded       Kind = "deviceLoaded"
	KindError              Kind = "error"
)

// Message is the closed set of signaling payloads.
type Message interface {
	Kind() Kind
	isMessage()
}

type Joined struct {
	RoomID domain.RoomID `json:"roomId" msgpack:"roomId"`
	UserID domain.UserID `json:"userId" msgpack:"userId"`
}

type Leave struct {
	RoomID domain.RoomID `json:"roomId" msgpack:"roomId"`
	UserID domain.UserID `json:"userId" msgpack:"userId"`
}

type RequestProducers struct {
	RoomID domain.RoomID `json:"roomId" msgpack:"roomId"`
	UserID domain.UserID `json:"userId" msgpack:"userId"`
}

type ProducerAdded struct {
	RoomID     domain.RoomID    `json:"roomId,omitempty" msgpack:"roomId,omitempty"`
	UserID     domain.UserID    `json:"userId,omitempty" msgpack:"userId,omitempty"`
	ProducerID string           `json:"producerId" msgpack:"producerId"`
	MediaKind  domain.MediaKind `json:"kind" msgpack:"kind"`
}

type ProducerRemoved struct {
	RoomID     domain.RoomID `json:"roomId,omitempty" msgpack:"roomId,omitempty"`
	UserID     domain.UserID `json:"userId,omitempty" msgpack:"userId,omitempty"`
	ProducerID string        `json:"producerId" msgpack:"producerId"`
}

type ConsumerAdded struct {
	RoomID     domain.RoomID    `json:"roomId,omitempty" msgpack:"roomId,omitempty"`
	UserID     domain.UserID    `json:"userId,omitempty" msgpack:"userId,omitempty"`
	ConsumerID string           `json:"consumerId" msgpack:"consumerId"`
	ProducerID string           `json:"producerId,omitempty" msgpack:"producerId,omitempty"`
	MediaKind  domain.MediaKind `json:"kind" msgpack:"kind"`
}

type ConsumerRemoved struct {
	RoomID     domain.RoomID `json:"roomId,omitempty" msgpack:"roomId,omitempty"`
	UserID     domain.UserID `json:"userId,omitempty" msgpack:"userId,omitempty"`
	ConsumerID string        `json:"consumerId" msgpack:"consumerId"`
}

type DTLSFingerprint struct {
	Algorithm string `json:"algorithm" msgpack:"algorithm"`
	Value     string `json:"value" msgpack:"value"`
}

type DTLSParameters struct {
	Role         string            `json:"role" msgpack:"role"`
	Fingerprints []DTLSFingerprint `json:"fingerprints" msgpack:"fingerprints"`
}

type ConnectTransport struct {
	TransportID    string         `json:"transportId" msgpack:"transportId"`
	DTLSParameters DTLSParameters `json:"dtlsParameters" msgpack:"dtlsParameters"`
}

type TransportConnected struct {
	TransportID string           `json:"transportId" msgpack:"transportId"`
	Direction   domain.Direction `json:"type" msgpack:"type"`
}

type DeviceLoaded struct{}

type ErrorReport struct {
	Message string `json:"message" msgpack:"message"`
}

// Passthrough keeps an event the protocol has no shape for.
type Passthrough struct {
	Event string
	Data  any
}

func (Joined) Kind() Kind             { return KindJoined }
func (Leave) Kind() Kind              { return KindLeave }
func (RequestProducers) Kind() Kind   { return KindRequestProducers }
func (ProducerAdded) Kind() Kind      { return KindProducerAdded }
func (ProducerRemoved) Kind() Kind    { return KindProducerRemoved }
func (ConsumerAdded) Kind() Kind      { return KindConsumerAdded }
func (ConsumerRemoved) Kind() Kind    { return KindConsumerRemoved }
func (ConnectTransport) Kind() Kind   { return KindConnectTransport }
func (TransportConnected) Kind() Kind { return KindTransportConnected }
func (DeviceLoaded) Kind() Kind       { return KindDeviceLoaded }
func (ErrorReport) Kind() Kind        { return KindError }
func (p Passthrough) Kind() Kind      { return Kind(p.Event) }

func (Joined) isMessage()             {}
func (Leave) isMessage()              {}
func (RequestProducers) isMessage()   {}
func (ProducerAdded) isMessage()      {}
func (ProducerRemoved) isMessage()    {}
func (ConsumerAdded) isMessage()      {}
func (ConsumerRemoved) isMessage()    {}
func (ConnectTransport) isMessage()   {}
func (TransportConnected) isMessage() {}
func (DeviceLoaded) isMessage()       {}
func (ErrorReport) isMessage()        {}
func (Passthrough) isMessage()        {}

// NewErrorReport turns a local failure into something the remote side can log.
func NewErrorReport(err error) ErrorReport {
	if err == nil {
		return ErrorReport{}
	}
	return ErrorReport{Message: err.Error()}
}
