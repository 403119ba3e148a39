package signal

import (
	"context"
	"fmt"

	"github.com/dkeye/VideoCall/internal/domain"
	"github.com/dkeye/VideoCall/internal/protocol"
	"github.com/frostbyte73/core"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"
)

type RedisConfig struct {
	Channel string
	Codec   protocol.Codec
	// ClientID tags published frames so the channel can drop its own echoes.
	ClientID string
}

// RedisChannel carries signaling over one Redis pub/sub channel shared by
// every peer.
type RedisChannel struct {
	handlers
	cfg    RedisConfig
	client *redis.Client
	sub    *redis.PubSub
	closed core.Fuse
}

// redisFrame wraps a codec frame with its publisher.
type redisFrame struct {
	From string `msgpack:"from"`
	Data []byte `msgpack:"data"`
}

func NewRedis(client *redis.Client, cfg RedisConfig) *RedisChannel {
	if cfg.Codec == nil {
		cfg.Codec = protocol.JSONCodec{}
	}
	return &RedisChannel{cfg: cfg, client: client, closed: core.NewFuse()}
}

func (c *RedisChannel) Connect(ctx context.Context) error {
	if c.closed.IsBroken() {
		return ErrClosed
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	sub := c.client.Subscribe(ctx, c.cfg.Channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", c.cfg.Channel, err)
	}
	c.sub = sub
	log.Info().Str("module", "adapters.signal").Str("channel", c.cfg.Channel).Str("client", c.cfg.ClientID).Msg("redis signaling subscribed")

	go c.readLoop(sub.Channel())
	c.fireConnected()
	return nil
}

func (c *RedisChannel) Send(m protocol.Message) error {
	if c.closed.IsBroken() {
		return ErrClosed
	}
	data, err := c.cfg.Codec.Encode(m)
	if err != nil {
		return err
	}
	frame, err := msgpack.Marshal(redisFrame{From: c.cfg.ClientID, Data: data})
	if err != nil {
		return fmt.Errorf("wrap frame: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	if err := c.client.Publish(ctx, c.cfg.Channel, frame).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", m.Kind(), err)
	}
	return nil
}

func (c *RedisChannel) Close() error {
	if c.closed.IsBroken() {
		return nil
	}
	c.closed.Break()
	if c.sub != nil {
		return c.sub.Close()
	}
	return nil
}

func (c *RedisChannel) readLoop(ch <-chan *redis.Message) {
	for {
		select {
		case <-c.closed.Watch():
			return
		case msg, ok := <-ch:
			if !ok {
				if !c.closed.IsBroken() {
					c.fireError(fmt.Errorf("redis subscription closed: %w", ErrClosed))
				}
				return
			}
			c.handlePayload([]byte(msg.Payload))
		}
	}
}

func (c *RedisChannel) handlePayload(payload []byte) {
	var frame redisFrame
	if err := msgpack.Unmarshal(payload, &frame); err != nil {
		log.Warn().Err(err).Str("module", "adapters.signal").Msg("bad redis frame")
		c.fireError(fmt.Errorf("%w: unwrap frame: %v", domain.ErrSignalingDecodeFailed, err))
		return
	}
	if frame.From == c.cfg.ClientID {
		return
	}
	m, err := c.cfg.Codec.Decode(frame.Data)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.signal").Str("from", frame.From).Msg("bad frame")
		c.fireError(err)
		return
	}
	c.fireMessage(m)
}
