// Package capture stands in for camera and microphone: it hands out pion
// tracks and keeps the audio one fed with silence.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/VideoCall/internal/core"
	"github.com/dkeye/VideoCall/internal/domain"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrCaptureDisabled = errors.New("capture disabled")

const (
	opusPayloadType = 111
	frameDuration   = 20 * time.Millisecond
	// 20ms at 48kHz
	samplesPerFrame = 960
)

// opus TOC byte plus an empty frame
var opusSilence = []byte{0xf8, 0xff, 0xfe}

type Track struct {
	kind  domain.MediaKind
	local *webrtc.TrackLocalStaticRTP
}

func (t *Track) ID() string               { return t.local.ID() }
func (t *Track) Kind() domain.MediaKind   { return t.kind }
func (t *Track) Local() webrtc.TrackLocal { return t.local }

type Synthetic struct {
	enabled bool
}

func NewSynthetic(enabled bool) *Synthetic {
	return &Synthetic{enabled: enabled}
}

// Capture returns an audio and a video track. The audio track receives
// silence until ctx is done.
func (s *Synthetic) Capture(ctx context.Context) ([]core.Track, error) {
	if !s.enabled {
		return nil, ErrCaptureDisabled
	}
	audio, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", "videocall")
	if err != nil {
		return nil, fmt.Errorf("audio track: %w", err)
	}
	video, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		"video", "videocall")
	if err != nil {
		return nil, fmt.Errorf("video track: %w", err)
	}

	go pump(ctx, audio)
	return []core.Track{
		&Track{kind: domain.KindAudio, local: audio},
		&Track{kind: domain.KindVideo, local: video},
	}, nil
}

func pump(ctx context.Context, track *webrtc.TrackLocalStaticRTP) {
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	src := newSilence(uint32(time.Now().UnixNano()))
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "adapters.capture").Str("track", track.ID()).Msg("silence stopped")
			return
		case <-ticker.C:
			if err := track.WriteRTP(src.next()); err != nil {
				log.Warn().Err(err).Str("module", "adapters.capture").Msg("write silence")
				return
			}
		}
	}
}

type silence struct {
	ssrc      uint32
	seq       uint16
	timestamp uint32
}

func newSilence(ssrc uint32) *silence {
	return &silence{ssrc: ssrc}
}

func (s *silence) next() *rtp.Packet {
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    opusPayloadType,
			SequenceNumber: s.seq,
			Timestamp:      s.timestamp,
			SSRC:           s.ssrc,
		},
		Payload: opusSilence,
	}
	s.seq++
	s.timestamp += samplesPerFrame
	return pkt
}
