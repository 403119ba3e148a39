package orch

import (
	"errors"
	"fmt"

	"github.com/dkeye/VideoCall/internal/app/call"
	"github.com/dkeye/VideoCall/internal/domain"
	"github.com/dkeye/VideoCall/internal/protocol"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"
)

var ErrHandlerPanicked = errors.New("inbound handler panicked")

func (o *Orchestrator) onMessage(m protocol.Message) {
	if !o.serial {
		o.dispatch(m)
		return
	}
	o.queue.Go(func() error {
		o.dispatch(m)
		return nil
	})
}

// dispatch applies one inbound message to local state, then re-emits it
// under its own kind whether or not it was recognized.
func (o *Orchestrator) dispatch(m protocol.Message) {
	room, user := addressOf(m)
	var (
		pc  panics.Catcher
		err error
	)
	pc.Try(func() { err = o.handle(m) })
	if r := pc.Recovered(); r != nil {
		log.Error().Str("module", "app.orch").Str("kind", string(m.Kind())).Str("stack", string(r.Stack)).Msg("inbound handler panicked")
		err = fmt.Errorf("%w: %v", ErrHandlerPanicked, r.Value)
	}
	if err != nil {
		o.fail(room, fmt.Errorf("handle %s: %w", m.Kind(), err))
	}
	e := Event{Type: EventType(m.Kind()), RoomID: room, UserID: user, Message: m}
	if report, ok := m.(protocol.ErrorReport); ok {
		e.Err = errors.New(report.Message)
	}
	o.emit(e)
}

func (o *Orchestrator) handle(m protocol.Message) error {
	local := o.LocalUserID()

	switch msg := m.(type) {
	case protocol.Joined:
		if msg.UserID == local {
			return nil
		}
		c, ok := o.callFor(msg.RoomID)
		if !ok {
			return nil
		}
		if _, err := o.addParticipant(c, msg.UserID, false); err != nil {
			return err
		}
		o.send(protocol.RequestProducers{RoomID: msg.RoomID, UserID: msg.UserID})

	case protocol.Leave:
		c, ok := o.callFor(msg.RoomID)
		if !ok {
			return nil
		}
		c.RemoveParticipant(msg.UserID)

	case protocol.RequestProducers:
		if msg.UserID != local {
			return nil
		}
		p, ok := o.localParticipant(msg.RoomID)
		if !ok {
			return nil
		}
		for _, prod := range p.Producers() {
			o.send(protocol.ProducerAdded{
				RoomID:     msg.RoomID,
				UserID:     local,
				ProducerID: prod.ID(),
				MediaKind:  prod.Kind(),
			})
		}

	case protocol.ProducerAdded:
		if msg.UserID == local {
			return nil
		}
		p, ok := o.localParticipant(msg.RoomID)
		if !ok {
			return nil
		}
		if _, err := p.AddConsumer(o.ctx, msg.ProducerID, msg.MediaKind); err != nil {
			return err
		}

	case protocol.ProducerRemoved:
		if msg.UserID == local {
			return nil
		}
		p, ok := o.localParticipant(msg.RoomID)
		if !ok {
			return nil
		}
		if cons, ok := p.ConsumerByProducerID(msg.ProducerID); ok {
			p.RemoveConsumer(cons.ID())
		}
	}
	return nil
}

// callFor ignores rooms this session never created; a shared signaling
// channel carries traffic for them too.
func (o *Orchestrator) callFor(id domain.RoomID) (*call.Call, bool) {
	c, ok := o.GetCall(id)
	if !ok {
		log.Debug().Str("module", "app.orch").Str("room", string(id)).Msg("message for unknown room")
	}
	return c, ok
}

func (o *Orchestrator) localParticipant(id domain.RoomID) (*call.Participant, bool) {
	c, ok := o.callFor(id)
	if !ok {
		return nil, false
	}
	local := o.LocalUserID()
	if local == "" {
		return nil, false
	}
	return c.Participant(local)
}

func addressOf(m protocol.Message) (domain.RoomID, domain.UserID) {
	switch msg := m.(type) {
	case protocol.Joined:
		return msg.RoomID, msg.UserID
	case protocol.Leave:
		return msg.RoomID, msg.UserID
	case protocol.RequestProducers:
		return msg.RoomID, msg.UserID
	case protocol.ProducerAdded:
		return msg.RoomID, msg.UserID
	case protocol.ProducerRemoved:
		return msg.RoomID, msg.UserID
	case protocol.ConsumerAdded:
		return msg.RoomID, msg.UserID
	case protocol.ConsumerRemoved:
		return msg.RoomID, msg.UserID
	}
	return "", ""
}
