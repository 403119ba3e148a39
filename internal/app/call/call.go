// Package call holds the in-memory state of a room and its members.
package call

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/dkeye/VideoCall/internal/app/names"
	"github.com/dkeye/VideoCall/internal/core"
	"github.com/dkeye/VideoCall/internal/domain"
	"github.com/rs/zerolog/log"
)

// Call is a room. Once ended it refuses every mutation.
type Call struct {
	id    domain.RoomID
	ctx   context.Context
	names *names.Allocator
	media core.MediaProvider

	mu           sync.RWMutex
	participants map[domain.UserID]*Participant
	ended        bool
}

// New creates an active call. ctx bounds transport creation for every
// participant added later.
func New(ctx context.Context, alloc *names.Allocator, media core.MediaProvider) *Call {
	return &Call{
		id:           domain.NewRoomID(),
		ctx:          ctx,
		names:        alloc,
		media:        media,
		participants: make(map[domain.UserID]*Participant),
	}
}

func (c *Call) ID() domain.RoomID { return c.id }

func (c *Call) IsEnded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ended
}

// AddParticipant registers id, or returns the participant already holding it.
// Transport creation starts in the background.
func (c *Call) AddParticipant(id domain.UserID, sig core.SignalChannel, opts ParticipantOptions) (*Participant, error) {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return nil, domain.ErrCallEnded
	}
	if p, ok := c.participants[id]; ok {
		c.mu.Unlock()
		return p, nil
	}
	p := newParticipant(c.ctx, c.id, id, c.names.Allocate(), sig, opts)
	c.participants[id] = p
	c.mu.Unlock()

	log.Info().
		Str("module", "app.call").
		Str("room", string(c.id)).
		Str("user", string(id)).
		Str("name", p.Name()).
		Bool("local", opts.IsLocal).
		Msg("participant added")
	go p.initTransports(c.media)
	return p, nil
}

// RemoveParticipant tears id down and reports whether it was present.
func (c *Call) RemoveParticipant(id domain.UserID) bool {
	c.mu.Lock()
	p, ok := c.participants[id]
	delete(c.participants, id)
	c.mu.Unlock()
	if !ok {
		return false
	}
	c.teardown(p)
	return true
}

// EndCall removes everyone and ends the call. Repeated calls are no-ops.
func (c *Call) EndCall() {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}
	c.ended = true
	ps := c.participants
	c.participants = make(map[domain.UserID]*Participant)
	c.mu.Unlock()

	for _, p := range ps {
		c.teardown(p)
	}
	log.Info().Str("module", "app.call").Str("room", string(c.id)).Int("removed", len(ps)).Msg("call ended")
}

func (c *Call) teardown(p *Participant) {
	if !p.closeMedia() {
		return
	}
	c.names.Release(p.Name())
	p.closeTransports()
	p.markReady()
	log.Info().Str("module", "app.call").Str("room", string(c.id)).Str("user", string(p.ID())).Msg("participant removed")
}

func (c *Call) Participant(id domain.UserID) (*Participant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.participants[id]
	return p, ok
}

// Participants returns members ordered by id.
func (c *Call) Participants() []*Participant {
	c.mu.RLock()
	out := make([]*Participant, 0, len(c.participants))
	for _, p := range c.participants {
		out = append(out, p)
	}
	c.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Participant) int { return strings.Compare(string(a.ID()), string(b.ID())) })
	return out
}

func (c *Call) ParticipantCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.participants)
}

func (c *Call) Members() []domain.Member {
	ps := c.Participants()
	out := make([]domain.Member, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Snapshot())
	}
	return out
}
