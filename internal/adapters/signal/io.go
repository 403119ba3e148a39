package signal

import (
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/VideoCall/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (c *WSChannel) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.closed.Watch():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			log.Info().Str("module", "adapters.signal").Msg("writePump closed")
			return
		case data := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.fail(fmt.Errorf("set write deadline: %w", err))
				return
			}
			msgType := websocket.TextMessage
			if c.cfg.Codec.Name() != protocol.CodecJSON {
				msgType = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(msgType, data); err != nil {
				c.fail(fmt.Errorf("write: %w", err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.fail(fmt.Errorf("ping: %w", err))
				return
			}
		}
	}
}

func (c *WSChannel) readPump() {
	defer func() {
		log.Info().Str("module", "adapters.signal").Msg("readPump closing")
		_ = c.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.closed.IsBroken() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			c.fail(fmt.Errorf("read: %w", err))
			return
		}
		c.handleFrame(data)
	}
}

// handleFrame decodes one frame. Malformed frames are reported and skipped.
func (c *WSChannel) handleFrame(data []byte) {
	m, err := c.cfg.Codec.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.signal").Msg("bad frame")
		c.fireError(err)
		return
	}
	c.fireMessage(m)
}

func (c *WSChannel) fail(err error) {
	if c.closed.IsBroken() || errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	log.Error().Err(err).Str("module", "adapters.signal").Msg("signaling connection failed")
	c.fireError(err)
	_ = c.Close()
}
