package signal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/VideoCall/internal/domain"
	"github.com/dkeye/VideoCall/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

const waitFor = 2 * time.Second

type peer struct {
	auth  chan string
	conns chan *websocket.Conn
}

func newPeer(t *testing.T) (*httptest.Server, *peer) {
	t.Helper()
	p := &peer{auth: make(chan string, 1), conns: make(chan *websocket.Conn, 1)}
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.auth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		p.conns <- conn
	}))
	t.Cleanup(srv.Close)
	return srv, p
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (p *peer) conn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-p.conns:
		t.Cleanup(func() { _ = c.Close() })
		return c
	case <-time.After(waitFor):
		t.Fatal("no connection")
		return nil
	}
}

func TestWSChannel(t *testing.T) {
	srv, p := newPeer(t)
	ch := NewWS(WSConfig{URL: wsURL(srv), Token: "tok", PingPeriod: time.Minute})

	connected := make(chan struct{}, 1)
	messages := make(chan protocol.Message, 1)
	errs := make(chan error, 4)
	ch.OnConnected(func() { connected <- struct{}{} })
	ch.OnMessage(func(m protocol.Message) { messages <- m })
	ch.OnError(func(err error) { errs <- err })

	require.NoError(t, ch.Connect(context.Background()))
	require.Equal(t, "Bearer tok", <-p.auth)
	server := p.conn(t)
	<-connected

	t.Run("send", func(t *testing.T) {
		require.NoError(t, ch.Send(protocol.Joined{RoomID: "r1", UserID: "alice"}))
		_ = server.SetReadDeadline(time.Now().Add(waitFor))
		kind, data, err := server.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, websocket.TextMessage, kind)
		require.JSONEq(t, `{"event":"joined","payload":{"roomId":"r1","userId":"alice"}}`, string(data))
	})

	t.Run("receive", func(t *testing.T) {
		frame := `{"event":"producerAdded","payload":{"roomId":"r1","userId":"bob","producerId":"p1","kind":"audio"}}`
		require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte(frame)))
		select {
		case m := <-messages:
			require.Equal(t, protocol.ProducerAdded{RoomID: "r1", UserID: "bob", ProducerID: "p1", MediaKind: domain.KindAudio}, m)
		case <-time.After(waitFor):
			t.Fatal("no message")
		}
	})

	t.Run("malformed frame", func(t *testing.T) {
		require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte("not json")))
		select {
		case err := <-errs:
			require.ErrorIs(t, err, domain.ErrSignalingDecodeFailed)
		case <-time.After(waitFor):
			t.Fatal("no error")
		}
		// the connection survives
		require.NoError(t, ch.Send(protocol.Leave{RoomID: "r1", UserID: "alice"}))
	})

	t.Run("close", func(t *testing.T) {
		require.NoError(t, ch.Close())
		select {
		case <-ch.Done():
		case <-time.After(waitFor):
			t.Fatal("not closed")
		}
		require.ErrorIs(t, ch.Send(protocol.DeviceLoaded{}), ErrClosed)
		require.NoError(t, ch.Close())
	})
}

func TestWSChannelMsgpack(t *testing.T) {
	srv, p := newPeer(t)
	ch := NewWS(WSConfig{URL: wsURL(srv), Codec: protocol.MsgpackCodec{}})
	require.NoError(t, ch.Connect(context.Background()))
	<-p.auth
	server := p.conn(t)
	t.Cleanup(func() { _ = ch.Close() })

	require.NoError(t, ch.Send(protocol.RequestProducers{RoomID: "r1", UserID: "alice"}))
	_ = server.SetReadDeadline(time.Now().Add(waitFor))
	kind, data, err := server.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, kind)

	m, err := protocol.MsgpackCodec{}.Decode(data)
	require.NoError(t, err)
	require.Equal(t, protocol.RequestProducers{RoomID: "r1", UserID: "alice"}, m)
}

func TestWSChannelBackpressure(t *testing.T) {
	ch := NewWS(WSConfig{URL: "ws://unused", SendBuffer: 1})

	require.NoError(t, ch.Send(protocol.DeviceLoaded{}))
	require.ErrorIs(t, ch.Send(protocol.DeviceLoaded{}), ErrBackpressure)

	require.NoError(t, ch.Close())
	require.ErrorIs(t, ch.Connect(context.Background()), ErrClosed)
}

func TestWSChannelDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	ch := NewWS(WSConfig{URL: wsURL(srv)})
	require.Error(t, ch.Connect(context.Background()))
}

func TestRedisPayload(t *testing.T) {
	ch := NewRedis(nil, RedisConfig{Channel: "calls", ClientID: "me"})
	var got []protocol.Message
	var errs []error
	ch.OnMessage(func(m protocol.Message) { got = append(got, m) })
	ch.OnError(func(err error) { errs = append(errs, err) })

	wrap := func(from string, m protocol.Message) []byte {
		data, err := protocol.JSONCodec{}.Encode(m)
		require.NoError(t, err)
		frame, err := msgpack.Marshal(redisFrame{From: from, Data: data})
		require.NoError(t, err)
		return frame
	}

	ch.handlePayload(wrap("me", protocol.Joined{RoomID: "r1", UserID: "alice"}))
	require.Empty(t, got)

	ch.handlePayload(wrap("peer", protocol.Joined{RoomID: "r1", UserID: "bob"}))
	require.Equal(t, []protocol.Message{protocol.Joined{RoomID: "r1", UserID: "bob"}}, got)

	ch.handlePayload([]byte("garbage"))
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], domain.ErrSignalingDecodeFailed)

	bad, err := msgpack.Marshal(redisFrame{From: "peer", Data: []byte("{")})
	require.NoError(t, err)
	ch.handlePayload(bad)
	require.Len(t, errs, 2)
	require.ErrorIs(t, errs[1], domain.ErrSignalingDecodeFailed)
}

func TestWSChannelClosedBeforeConnect(t *testing.T) {
	ch := NewWS(WSConfig{URL: "ws://127.0.0.1:1/ws"})
	select {
	case <-ch.Done():
		t.Fatal("fresh channel reports done")
	default:
	}

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
	require.ErrorIs(t, ch.Send(protocol.DeviceLoaded{}), ErrClosed)
	require.ErrorIs(t, ch.Connect(context.Background()), ErrClosed)
	<-ch.Done()
}

func TestRedisClosed(t *testing.T) {
	ch := NewRedis(nil, RedisConfig{Channel: "calls"})
	require.NoError(t, ch.Close())
	require.ErrorIs(t, ch.Send(protocol.DeviceLoaded{}), ErrClosed)
	require.ErrorIs(t, ch.Connect(context.Background()), ErrClosed)
}

func TestToken(t *testing.T) {
	raw, err := MintToken("secret", "alice", time.Minute)
	require.NoError(t, err)

	claims, err := ParseToken("secret", raw)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.UserID)

	_, err = ParseToken("other", raw)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired, err := MintToken("secret", "alice", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken("secret", expired)
	require.ErrorIs(t, err, ErrInvalidToken)
}
