package domain

import "fmt"

type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

func (k MediaKind) Valid() bool {
	return k == KindAudio || k == KindVideo
}

func ParseMediaKind(raw string) (MediaKind, error) {
	k := MediaKind(raw)
	if !k.Valid() {
		return "", fmt.Errorf("unknown media kind %q", raw)
	}
	return k, nil
}

// ConnectionStatus only moves forward: connecting, connected, disconnected.
type ConnectionStatus int32

const (
	StatusConnecting ConnectionStatus = iota
	StatusConnected
	StatusDisconnected
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

func (s ConnectionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ConnectionStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "connecting":
		*s = StatusConnecting
	case "connected":
		*s = StatusConnected
	case "disconnected":
		*s = StatusDisconnected
	default:
		return fmt.Errorf("unknown connection status %q", b)
	}
	return nil
}

// Direction tells the two halves of a transport pair apart.
type Direction string

const (
	DirectionSend Direction = "send"
	DirectionRecv Direction = "recv"
)
