package core

import "github.com/dkeye/VideoCall/internal/protocol"

// SignalChannel abstracts the bidirectional signaling pipe.
// The orchestrator that receives it closes it.
// Handlers may be invoked from the adapter's reader goroutine.
type SignalChannel interface {
	Send(protocol.Message) error
	OnConnected(func())
	OnMessage(func(protocol.Message))
	OnError(func(error))
	Close() error
}
