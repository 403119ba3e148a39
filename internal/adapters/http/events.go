package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dkeye/VideoCall/internal/app/orch"
	"github.com/dkeye/VideoCall/internal/domain"
	"github.com/dkeye/VideoCall/internal/protocol"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var streamedEvents = []orch.EventType{
	orch.EventConnected,
	orch.EventCreated,
	orch.EventJoined,
	orch.EventLeave,
	orch.EventEnded,
	orch.EventError,
	orch.EventType(protocol.KindRequestProducers),
	orch.EventType(protocol.KindProducerAdded),
	orch.EventType(protocol.KindProducerRemoved),
	orch.EventType(protocol.KindConsumerAdded),
	orch.EventType(protocol.KindConsumerRemoved),
	orch.EventType(protocol.KindConnectTransport),
	orch.EventType(protocol.KindTransportConnected),
	orch.EventType(protocol.KindDeviceLoaded),
}

type eventView struct {
	Type    orch.EventType `json:"type"`
	RoomID  domain.RoomID  `json:"roomId,omitempty"`
	UserID  domain.UserID  `json:"userId,omitempty"`
	Error   string         `json:"error,omitempty"`
	Payload any            `json:"payload,omitempty"`
}

func eventViewOf(e orch.Event) eventView {
	v := eventView{Type: e.Type, RoomID: e.RoomID, UserID: e.UserID}
	if e.Err != nil {
		v.Error = e.Err.Error()
	}
	if e.Message != nil {
		v.Payload = e.Message
		if p, ok := e.Message.(protocol.Passthrough); ok {
			v.Payload = p.Data
		}
	}
	return v
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamEvents pushes every domain event to the socket as JSON. Slow
// readers lose events rather than stall the emitter.
func (ctl *controller) streamEvents(c *gin.Context) {
	uid := userOf(c)
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "adapters.http").Str("user", string(uid)).Msg("event stream opened")

	send := make(chan []byte, 64)
	done := make(chan struct{})

	offs := make([]func(), 0, len(streamedEvents))
	for _, t := range streamedEvents {
		offs = append(offs, ctl.orch.On(t, func(e orch.Event) {
			data, err := json.Marshal(eventViewOf(e))
			if err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("marshal event")
				return
			}
			select {
			case send <- data:
			case <-done:
			default:
				log.Warn().Str("module", "adapters.http").Str("user", string(uid)).Str("event", string(e.Type)).Msg("event dropped")
			}
		}))
	}

	go func() {
		defer func() {
			for _, off := range offs {
				off()
			}
			close(done)
			_ = ws.Close()
			log.Info().Str("module", "adapters.http").Str("user", string(uid)).Msg("event stream closed")
		}()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		for {
			select {
			case <-done:
				return
			case data := <-send:
				_ = ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()
}
