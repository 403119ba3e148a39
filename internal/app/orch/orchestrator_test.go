package orch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/VideoCall/internal/app/call"
	"github.com/dkeye/VideoCall/internal/app/names"
	"github.com/dkeye/VideoCall/internal/app/queue"
	"github.com/dkeye/VideoCall/internal/core/coretest"
	"github.com/dkeye/VideoCall/internal/domain"
	"github.com/dkeye/VideoCall/internal/protocol"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

type harness struct {
	orch    *Orchestrator
	sig     *coretest.Signal
	media   *coretest.Media
	capture *coretest.Capturer
	names   *names.Allocator

	mu     sync.Mutex
	events []Event
}

func newHarness(t *testing.T, serial bool) *harness {
	t.Helper()
	h := &harness{
		sig:     coretest.NewSignal(),
		media:   coretest.NewMedia(),
		capture: coretest.AudioOnly(),
		names:   names.NewAllocator(nil),
	}
	h.orch = New(Params{
		Signal:           h.sig,
		Media:            h.media,
		Capture:          h.capture,
		Names:            h.names,
		SerializeInbound: serial,
	})
	h.orch.Start()
	t.Cleanup(func() {
		h.media.Release()
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = h.orch.Close(ctx)
	})
	return h
}

func (h *harness) record(types ...EventType) {
	for _, typ := range types {
		h.orch.On(typ, func(e Event) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.events = append(h.events, e)
		})
	}
}

func (h *harness) recorded(typ EventType) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Event
	for _, e := range h.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func wait(t *testing.T, f *queue.Future[struct{}]) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	_, err := f.Wait(ctx)
	require.NoError(t, err)
}

// joined creates a call and joins it as alice.
func (h *harness) joined(t *testing.T) *call.Call {
	t.Helper()
	c := h.orch.CreateCall()
	wait(t, h.orch.JoinCall(c.ID(), "alice"))
	return c
}

func TestCreateCall(t *testing.T) {
	h := newHarness(t, false)
	h.record(EventCreated)

	c := h.orch.CreateCall()
	got, ok := h.orch.GetCall(c.ID())
	require.True(t, ok)
	require.Same(t, c, got)
	require.Len(t, h.orch.GetAllCalls(), 1)

	created := h.recorded(EventCreated)
	require.Len(t, created, 1)
	require.Equal(t, c.ID(), created[0].RoomID)
}

func TestJoinCall(t *testing.T) {
	h := newHarness(t, false)
	h.record(EventJoined)
	c := h.joined(t)

	alice, ok := c.Participant("alice")
	require.True(t, ok)
	require.True(t, alice.IsLocal())
	require.Len(t, alice.Producers(), 1)
	require.Equal(t, domain.UserID("alice"), h.orch.LocalUserID())

	sent := h.sig.SentKind(protocol.KindJoined)
	require.Equal(t, []protocol.Message{protocol.Joined{RoomID: c.ID(), UserID: "alice"}}, sent)
	require.Len(t, h.recorded(EventJoined), 1)
}

func TestJoinUnknownRoom(t *testing.T) {
	h := newHarness(t, false)
	h.record(EventError, EventJoined)

	wait(t, h.orch.JoinCall("missing", "alice"))

	errs := h.recorded(EventError)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0].Err, domain.ErrRoomNotFound)
	require.Empty(t, h.recorded(EventJoined))
	require.Empty(t, h.sig.SentKind(protocol.KindJoined))

	// the queue keeps going
	c := h.orch.CreateCall()
	wait(t, h.orch.JoinCall(c.ID(), "alice"))
	require.Len(t, h.recorded(EventJoined), 1)
}

func TestJoinCaptureFailure(t *testing.T) {
	h := newHarness(t, false)
	h.orch.capture = &coretest.Capturer{Err: errors.New("device denied")}
	h.record(EventError, EventJoined)

	h.joined(t)

	errs := h.recorded(EventError)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0].Err, domain.ErrMediaAcquisitionFailed)
	require.Equal(t, domain.UserID("alice"), errs[0].UserID)
	require.Len(t, h.recorded(EventJoined), 1)
}

func TestLeaveCall(t *testing.T) {
	h := newHarness(t, false)
	h.record(EventLeave, EventError)
	c := h.joined(t)

	wait(t, h.orch.LeaveCall(c.ID(), "alice"))
	require.Zero(t, c.ParticipantCount())
	require.Zero(t, h.names.Leased())
	require.Equal(t, []protocol.Message{protocol.Leave{RoomID: c.ID(), UserID: "alice"}}, h.sig.SentKind(protocol.KindLeave))
	require.Len(t, h.recorded(EventLeave), 1)

	wait(t, h.orch.LeaveCall("missing", "alice"))
	errs := h.recorded(EventError)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0].Err, domain.ErrRoomNotFound)
}

func TestLeaveStopsLocalCapture(t *testing.T) {
	h := newHarness(t, false)
	c := h.joined(t)
	captureCtx := h.capture.LastContext()
	require.NotNil(t, captureCtx)
	require.NoError(t, captureCtx.Err())

	wait(t, h.orch.LeaveCall(c.ID(), "alice"))
	select {
	case <-captureCtx.Done():
	case <-time.After(waitFor):
		t.Fatal("capture outlived the participant")
	}
	require.NoError(t, h.orch.ctx.Err())
}

func TestLeaveThenJoinIsOrdered(t *testing.T) {
	h := newHarness(t, false)
	c := h.joined(t)
	first, _ := c.Participant("alice")

	leave := h.orch.LeaveCall(c.ID(), "alice")
	join := h.orch.JoinCall(c.ID(), "alice")
	wait(t, join)

	select {
	case <-leave.Done():
	default:
		t.Fatal("join settled before leave")
	}
	require.Equal(t, 1, c.ParticipantCount())
	second, ok := c.Participant("alice")
	require.True(t, ok)
	require.NotSame(t, first, second)
	require.Equal(t, 1, h.names.Leased())

	kinds := []protocol.Kind{}
	for _, m := range h.sig.Sent() {
		if m.Kind() == protocol.KindJoined || m.Kind() == protocol.KindLeave {
			kinds = append(kinds, m.Kind())
		}
	}
	require.Equal(t, []protocol.Kind{protocol.KindJoined, protocol.KindLeave, protocol.KindJoined}, kinds)
}

func TestEndCall(t *testing.T) {
	h := newHarness(t, false)
	h.record(EventEnded)
	c := h.joined(t)

	wait(t, h.orch.EndCall(c.ID()))
	wait(t, h.orch.EndCall(c.ID()))
	require.True(t, c.IsEnded())
	require.Zero(t, h.names.Leased())
	require.Len(t, h.recorded(EventEnded), 1)

	h.record(EventError)
	wait(t, h.orch.JoinCall(c.ID(), "alice"))
	errs := h.recorded(EventError)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0].Err, domain.ErrCallEnded)
}

func TestInboundRequestProducers(t *testing.T) {
	h := newHarness(t, false)
	c := h.joined(t)
	alice, _ := c.Participant("alice")
	prod := alice.Producers()[0]

	t.Run("for the local user", func(t *testing.T) {
		h.sig.Reset()
		h.sig.Deliver(protocol.RequestProducers{RoomID: c.ID(), UserID: "alice"})

		require.Equal(t, []protocol.Message{protocol.ProducerAdded{
			RoomID:     c.ID(),
			UserID:     "alice",
			ProducerID: prod.ID(),
			MediaKind:  domain.KindAudio,
		}}, h.sig.Sent())
	})

	t.Run("for someone else", func(t *testing.T) {
		h.sig.Reset()
		h.sig.Deliver(protocol.RequestProducers{RoomID: c.ID(), UserID: "bob"})
		require.Empty(t, h.sig.Sent())
	})
}

func TestInboundProducerAdded(t *testing.T) {
	h := newHarness(t, false)
	h.record(EventType(protocol.KindProducerAdded))
	c := h.joined(t)
	h.sig.Reset()

	h.sig.Deliver(protocol.ProducerAdded{RoomID: c.ID(), UserID: "bob", ProducerID: "p1", MediaKind: domain.KindAudio})

	alice, _ := c.Participant("alice")
	cons, ok := alice.ConsumerByProducerID("p1")
	require.True(t, ok)
	require.Equal(t, domain.KindAudio, cons.Kind())

	added := h.sig.SentKind(protocol.KindConsumerAdded)
	require.Len(t, added, 1)
	require.Equal(t, cons.ID(), added[0].(protocol.ConsumerAdded).ConsumerID)

	passed := h.recorded(EventType(protocol.KindProducerAdded))
	require.Len(t, passed, 1)
	require.Equal(t, domain.UserID("bob"), passed[0].UserID)

	t.Run("own producer is ignored", func(t *testing.T) {
		h.sig.Reset()
		h.sig.Deliver(protocol.ProducerAdded{RoomID: c.ID(), UserID: "alice", ProducerID: "p2", MediaKind: domain.KindAudio})
		require.Empty(t, h.sig.SentKind(protocol.KindConsumerAdded))
	})

	t.Run("producer removed", func(t *testing.T) {
		h.sig.Reset()
		h.sig.Deliver(protocol.ProducerRemoved{RoomID: c.ID(), UserID: "bob", ProducerID: "p1"})

		_, ok := alice.ConsumerByProducerID("p1")
		require.False(t, ok)
		require.Equal(t, []protocol.Message{protocol.ConsumerRemoved{RoomID: c.ID(), UserID: "alice", ConsumerID: cons.ID()}},
			h.sig.SentKind(protocol.KindConsumerRemoved))
	})
}

func TestInboundConsumerFailure(t *testing.T) {
	h := newHarness(t, false)
	h.record(EventError)
	c := h.joined(t)
	h.media.FailConsume()

	require.NotPanics(t, func() {
		h.sig.Deliver(protocol.ProducerAdded{RoomID: c.ID(), UserID: "bob", ProducerID: "p1", MediaKind: domain.KindAudio})
	})
	errs := h.recorded(EventError)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0].Err, coretest.ErrConsumeFailed)

	// later messages are still handled
	h.sig.Reset()
	h.sig.Deliver(protocol.RequestProducers{RoomID: c.ID(), UserID: "alice"})
	require.Len(t, h.sig.SentKind(protocol.KindProducerAdded), 1)
}

func TestInboundJoinedAndLeave(t *testing.T) {
	h := newHarness(t, false)
	c := h.joined(t)
	h.sig.Reset()

	h.sig.Deliver(protocol.Joined{RoomID: c.ID(), UserID: "bob"})
	bob, ok := c.Participant("bob")
	require.True(t, ok)
	require.False(t, bob.IsLocal())
	require.Equal(t, []protocol.Message{protocol.RequestProducers{RoomID: c.ID(), UserID: "bob"}},
		h.sig.SentKind(protocol.KindRequestProducers))

	// echo of our own join
	h.sig.Reset()
	h.sig.Deliver(protocol.Joined{RoomID: c.ID(), UserID: "alice"})
	require.Empty(t, h.sig.SentKind(protocol.KindRequestProducers))
	require.Equal(t, 2, c.ParticipantCount())

	<-bob.Ready()
	h.sig.Deliver(protocol.Leave{RoomID: c.ID(), UserID: "bob"})
	_, ok = c.Participant("bob")
	require.False(t, ok)
	require.Equal(t, 1, c.ParticipantCount())
}

func TestInboundUnknownRoomIsIgnored(t *testing.T) {
	h := newHarness(t, false)
	h.record(EventError, EventJoined)
	h.joined(t)
	h.sig.Reset()

	h.sig.Deliver(protocol.Joined{RoomID: "elsewhere", UserID: "bob"})
	require.Empty(t, h.sig.Sent())
	require.Empty(t, h.recorded(EventError))
	// still re-emitted
	require.Len(t, h.recorded(EventJoined), 2)
}

func TestPassthrough(t *testing.T) {
	h := newHarness(t, false)
	var got []Event
	h.orch.On("chat", func(e Event) { got = append(got, e) })

	h.sig.Deliver(protocol.Passthrough{Event: "chat", Data: map[string]any{"text": "hi"}})
	require.Len(t, got, 1)
	require.Equal(t, protocol.Kind("chat"), got[0].Message.Kind())
}

func TestInboundErrorReport(t *testing.T) {
	h := newHarness(t, false)
	h.record(EventError)

	h.sig.Deliver(protocol.ErrorReport{Message: "boom"})
	errs := h.recorded(EventError)
	require.Len(t, errs, 1)
	require.EqualError(t, errs[0].Err, "boom")
}

func TestSignalLifecycle(t *testing.T) {
	h := newHarness(t, false)
	h.record(EventConnected, EventError)

	h.sig.Connect()
	require.Len(t, h.recorded(EventConnected), 1)

	h.sig.Fail(domain.ErrSignalingDecodeFailed)
	errs := h.recorded(EventError)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0].Err, domain.ErrSignalingDecodeFailed)
}

func TestInboundRacesPendingJoin(t *testing.T) {
	h := newHarness(t, false)
	h.record(EventError)
	c := h.orch.CreateCall()
	h.media.Hold()

	join := h.orch.JoinCall(c.ID(), "alice")
	require.Eventually(t, func() bool {
		_, ok := c.Participant("alice")
		return ok
	}, waitFor, time.Millisecond)

	h.sig.Deliver(protocol.ProducerAdded{RoomID: c.ID(), UserID: "bob", ProducerID: "p1", MediaKind: domain.KindAudio})
	errs := h.recorded(EventError)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0].Err, domain.ErrTransportNotInitialized)

	h.media.Release()
	wait(t, join)
}

func TestSerializedInboundWaitsForJoin(t *testing.T) {
	h := newHarness(t, true)
	h.record(EventError)
	c := h.orch.CreateCall()
	h.media.Hold()

	join := h.orch.JoinCall(c.ID(), "alice")
	require.Eventually(t, func() bool {
		_, ok := c.Participant("alice")
		return ok
	}, waitFor, time.Millisecond)
	h.sig.Deliver(protocol.ProducerAdded{RoomID: c.ID(), UserID: "bob", ProducerID: "p1", MediaKind: domain.KindAudio})

	h.media.Release()
	wait(t, join)
	wait(t, h.orch.queue.Go(func() error { return nil }))

	require.Empty(t, h.recorded(EventError))
	alice, _ := c.Participant("alice")
	_, ok := alice.ConsumerByProducerID("p1")
	require.True(t, ok)
}

func TestClose(t *testing.T) {
	h := newHarness(t, false)
	c := h.joined(t)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, h.orch.Close(ctx))
	require.True(t, c.IsEnded())
	require.True(t, h.sig.Closed())
	require.Zero(t, h.names.Leased())

	_, err := h.orch.JoinCall(c.ID(), "alice").Wait(ctx)
	require.ErrorIs(t, err, queue.ErrQueueStopped)
}
