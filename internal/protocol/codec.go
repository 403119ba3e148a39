package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/VideoCall/internal/domain"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// Codec frames a message as {event, payload}.
type Codec interface {
	Name() string
	Encode(Message) ([]byte, error)
	Decode([]byte) (Message, error)
}

func NewCodec(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return JSONCodec{}, nil
	case CodecMsgpack:
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown signaling codec %q", name)
	}
}

type JSONCodec struct{}

type jsonEnvelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (JSONCodec) Name() string { return CodecJSON }

func (JSONCodec) Encode(m Message) ([]byte, error) {
	raw, err := json.Marshal(payloadOf(m))
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", m.Kind(), err)
	}
	return json.Marshal(jsonEnvelope{Event: string(m.Kind()), Payload: raw})
}

func (JSONCodec) Decode(data []byte) (Message, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSignalingDecodeFailed, err)
	}
	return decode(env.Event, func(v any) error {
		if len(env.Payload) == 0 {
			return nil
		}
		return json.Unmarshal(env.Payload, v)
	})
}

type MsgpackCodec struct{}

type msgpackEnvelope struct {
	Event   string             `msgpack:"event"`
	Payload msgpack.RawMessage `msgpack:"payload,omitempty"`
}

func (MsgpackCodec) Name() string { return CodecMsgpack }

func (MsgpackCodec) Encode(m Message) ([]byte, error) {
	raw, err := msgpack.Marshal(payloadOf(m))
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", m.Kind(), err)
	}
	return msgpack.Marshal(msgpackEnvelope{Event: string(m.Kind()), Payload: raw})
}

func (MsgpackCodec) Decode(data []byte) (Message, error) {
	var env msgpackEnvelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSignalingDecodeFailed, err)
	}
	return decode(env.Event, func(v any) error {
		if len(env.Payload) == 0 {
			return nil
		}
		return msgpack.Unmarshal(env.Payload, v)
	})
}

func payloadOf(m Message) any {
	if p, ok := m.(Passthrough); ok {
		return p.Data
	}
	return m
}

type decoderFunc func(unmarshal func(any) error) (Message, error)

func decodeInto[T Message](unmarshal func(any) error) (Message, error) {
	var m T
	if err := unmarshal(&m); err != nil {
		return nil, err
	}
	return m, nil
}

var decoders = map[Kind]decoderFunc{
	KindJoined:             decodeInto[Joined],
	KindLeave:              decodeInto[Leave],
	KindRequestProducers:   decodeInto[RequestProducers],
	KindProducerAdded:      decodeInto[ProducerAdded],
	KindProducerRemoved:    decodeInto[ProducerRemoved],
	KindConsumerAdded:      decodeInto[ConsumerAdded],
	KindConsumerRemoved:    decodeInto[ConsumerRemoved],
	KindConnectTransport:   decodeInto[ConnectTransport],
	KindTransportConnected: decodeInto[TransportConnected],
	KindDeviceLoaded:       decodeInto[DeviceLoaded],
	KindError:              decodeInto[ErrorReport],
}

func decode(event string, unmarshal func(any) error) (Message, error) {
	if event == "" {
		return nil, fmt.Errorf("%w: missing event name", domain.ErrSignalingDecodeFailed)
	}
	dec, ok := decoders[Kind(event)]
	if !ok {
		var data any
		if err := unmarshal(&data); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrSignalingDecodeFailed, event, err)
		}
		return Passthrough{Event: event, Data: data}, nil
	}
	m, err := dec(unmarshal)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrSignalingDecodeFailed, event, err)
	}
	if err := Validate(m); err != nil {
		return nil, err
	}
	return m, nil
}

var errMissingField = errors.New("missing field")

// Validate reports payloads that decode cleanly but cannot drive a transition.
func Validate(m Message) error {
	var field string
	switch v := m.(type) {
	case Joined:
		field = missingRoomUser(v.RoomID, v.UserID)
	case Leave:
		field = missingRoomUser(v.RoomID, v.UserID)
	case RequestProducers:
		field = missingRoomUser(v.RoomID, v.UserID)
	case ProducerAdded:
		switch {
		case v.ProducerID == "":
			field = "producerId"
		case !v.MediaKind.Valid():
			field = "kind"
		}
	case ProducerRemoved:
		if v.ProducerID == "" {
			field = "producerId"
		}
	case ConsumerAdded:
		if v.ConsumerID == "" {
			field = "consumerId"
		}
	case ConsumerRemoved:
		if v.ConsumerID == "" {
			field = "consumerId"
		}
	case ConnectTransport:
		if v.TransportID == "" {
			field = "transportId"
		}
	}
	if field != "" {
		return fmt.Errorf("%w: %s: %w %s", domain.ErrSignalingDecodeFailed, m.Kind(), errMissingField, field)
	}
	return nil
}

func missingRoomUser(room domain.RoomID, user domain.UserID) string {
	switch {
	case room == "":
		return "roomId"
	case user == "":
		return "userId"
	}
	return ""
}
