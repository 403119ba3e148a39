package coretest

import (
	"context"
	"sync"

	"github.com/dkeye/VideoCall/internal/core"
	"github.com/dkeye/VideoCall/internal/domain"
)

type Track struct {
	TrackID   string
	TrackKind domain.MediaKind
}

func (t Track) ID() string             { return t.TrackID }
func (t Track) Kind() domain.MediaKind { return t.TrackKind }

// Capturer returns a fixed set of tracks or a fixed error. It keeps the
// context of the last capture so tests can see when the tracks stop.
type Capturer struct {
	Tracks []core.Track
	Err    error

	mu   sync.Mutex
	last context.Context
}

func AudioOnly() *Capturer {
	return &Capturer{Tracks: []core.Track{Track{TrackID: "mic", TrackKind: domain.KindAudio}}}
}

func AudioVideo() *Capturer {
	return &Capturer{Tracks: []core.Track{
		Track{TrackID: "mic", TrackKind: domain.KindAudio},
		Track{TrackID: "cam", TrackKind: domain.KindVideo},
	}}
}

func (c *Capturer) Capture(ctx context.Context) ([]core.Track, error) {
	c.mu.Lock()
	c.last = ctx
	c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Tracks, nil
}

func (c *Capturer) LastContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
