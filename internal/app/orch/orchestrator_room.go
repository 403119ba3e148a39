package orch

import (
	"fmt"

	"github.com/dkeye/VideoCall/internal/app/call"
	"github.com/dkeye/VideoCall/internal/app/queue"
	"github.com/dkeye/VideoCall/internal/domain"
	"github.com/dkeye/VideoCall/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) CreateCall() *call.Call {
	c := call.New(o.ctx, o.names, o.media)

	o.mu.Lock()
	o.calls[c.ID()] = c
	o.mu.Unlock()

	log.Info().Str("module", "app.orch").Str("room", string(c.ID())).Msg("call created")
	o.emit(Event{Type: EventCreated, RoomID: c.ID()})
	return c
}

// JoinCall enters the call as the local user. Failures surface as error
// events; the returned future only tells when the operation settled.
func (o *Orchestrator) JoinCall(roomID domain.RoomID, userID domain.UserID) *queue.Future[struct{}] {
	return o.queue.Go(func() error {
		c, ok := o.GetCall(roomID)
		if !ok {
			o.fail(roomID, fmt.Errorf("join %s: %w", roomID, domain.ErrRoomNotFound))
			return nil
		}

		o.mu.Lock()
		o.localUserID = userID
		o.mu.Unlock()

		_, rejoin := c.Participant(userID)
		p, err := o.addParticipant(c, userID, true)
		if err != nil {
			o.fail(roomID, err)
			return nil
		}
		if p.IsLocal() && !rejoin {
			p.SetupLocalMedia(o.ctx, o.capture)
		}

		o.send(protocol.Joined{RoomID: roomID, UserID: userID})
		log.Info().Str("module", "app.orch").Str("room", string(roomID)).Str("user", string(userID)).Msg("joined call")
		o.emit(Event{Type: EventJoined, RoomID: roomID, UserID: userID})
		return nil
	})
}

func (o *Orchestrator) LeaveCall(roomID domain.RoomID, userID domain.UserID) *queue.Future[struct{}] {
	return o.queue.Go(func() error {
		c, ok := o.GetCall(roomID)
		if !ok {
			o.fail(roomID, fmt.Errorf("leave %s: %w", roomID, domain.ErrRoomNotFound))
			return nil
		}
		c.RemoveParticipant(userID)

		o.send(protocol.Leave{RoomID: roomID, UserID: userID})
		log.Info().Str("module", "app.orch").Str("room", string(roomID)).Str("user", string(userID)).Msg("left call")
		o.emit(Event{Type: EventLeave, RoomID: roomID, UserID: userID})
		return nil
	})
}

// EndCall tears the call down behind any queued joins or leaves. The ended
// call stays registered so readers can observe it.
func (o *Orchestrator) EndCall(roomID domain.RoomID) *queue.Future[struct{}] {
	return o.queue.Go(func() error {
		c, ok := o.GetCall(roomID)
		if !ok {
			o.fail(roomID, fmt.Errorf("end %s: %w", roomID, domain.ErrRoomNotFound))
			return nil
		}
		if c.IsEnded() {
			return nil
		}
		c.EndCall()
		o.emit(Event{Type: EventEnded, RoomID: roomID})
		return nil
	})
}

// addParticipant registers userID and forwards its media errors as domain
// events.
func (o *Orchestrator) addParticipant(c *call.Call, userID domain.UserID, local bool) (*call.Participant, error) {
	roomID := c.ID()
	p, err := c.AddParticipant(userID, o.signal, call.ParticipantOptions{
		IsLocal: local,
		OnError: func(e call.MediaEvent) {
			o.emit(Event{Type: EventError, RoomID: roomID, UserID: e.Participant, Err: e.Err})
		},
	})
	if err != nil {
		return nil, fmt.Errorf("add %s to %s: %w", userID, roomID, err)
	}
	return p, nil
}

func (o *Orchestrator) send(m protocol.Message) {
	if err := o.signal.Send(m); err != nil {
		o.fail(domain.RoomID(""), fmt.Errorf("send %s: %w", m.Kind(), err))
	}
}
