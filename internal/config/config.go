package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dkeye/VideoCall/internal/protocol"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode             string          `mapstructure:"mode"`
	Port             int             `mapstructure:"port"`
	LogLevel         string          `mapstructure:"log_level"`
	ReadLimit        int64           `mapstructure:"read_limit"`
	PingPeriod       time.Duration   `mapstructure:"ping_period"`
	Secret           string          `mapstructure:"secret"`
	Signaling        SignalingConfig `mapstructure:"signaling"`
	Media            MediaConfig     `mapstructure:"media"`
	Names            []string        `mapstructure:"names"`
	SerializeInbound bool            `mapstructure:"serialize_inbound"`
	JoinRate         RateConfig      `mapstructure:"join_rate"`
}

type SignalingConfig struct {
	Transport     string `mapstructure:"transport"`
	URL           string `mapstructure:"url"`
	Codec         string `mapstructure:"codec"`
	TokenSecret   string `mapstructure:"token_secret"`
	SendBuffer    int    `mapstructure:"send_buffer"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisChannel  string `mapstructure:"redis_channel"`
}

type MediaConfig struct {
	ICEServers     []string `mapstructure:"ice_servers"`
	CaptureEnabled bool     `mapstructure:"capture_enabled"`
}

type RateConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

const (
	TransportWS    = "ws"
	TransportRedis = "redis"
)

// Load reads config/config.<CONFIG_ENV>.yaml, falling back to defaults, and
// applies command-line overrides from args.
func Load(args []string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("signaling.transport", TransportWS)
	v.SetDefault("signaling.url", "ws://localhost:3000/ws")
	v.SetDefault("signaling.codec", protocol.CodecJSON)
	v.SetDefault("signaling.send_buffer", 32)
	v.SetDefault("signaling.redis_addr", "localhost:6379")
	v.SetDefault("signaling.redis_channel", "videocall:signaling")
	v.SetDefault("media.ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("media.capture_enabled", true)
	v.SetDefault("serialize_inbound", false)
	v.SetDefault("join_rate.limit", 5)
	v.SetDefault("join_rate.interval", "10s")

	fs := pflag.NewFlagSet("videocall", pflag.ContinueOnError)
	fs.String("mode", "", "gin mode: debug or release")
	fs.Int("port", 0, "HTTP listen port")
	fs.String("log-level", "", "zerolog level")
	fs.String("signaling-transport", "", "signaling transport: ws or redis")
	fs.String("signaling-url", "", "signaling server URL")
	fs.String("signaling-codec", "", "signaling codec: json or msgpack")
	fs.Bool("serialize-inbound", false, "run inbound signaling on the ordered queue")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	for key, flag := range map[string]string{
		"mode":                "mode",
		"port":                "port",
		"log_level":           "log-level",
		"signaling.transport": "signaling-transport",
		"signaling.url":       "signaling-url",
		"signaling.codec":     "signaling-codec",
		"serialize_inbound":   "serialize-inbound",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("signaling", cfg.Signaling.Transport).
		Str("codec", cfg.Signaling.Codec).
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch c.Signaling.Transport {
	case TransportWS:
		if c.Signaling.URL == "" {
			errs = append(errs, errors.New("signaling.url is required for ws transport"))
		}
	case TransportRedis:
		if c.Signaling.RedisChannel == "" {
			errs = append(errs, errors.New("signaling.redis_channel is required for redis transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown signaling transport %q", c.Signaling.Transport))
	}
	if _, err := protocol.NewCodec(c.Signaling.Codec); err != nil {
		errs = append(errs, err)
	}
	if c.JoinRate.Limit <= 0 || c.JoinRate.Interval <= 0 {
		errs = append(errs, errors.New("join_rate limit and interval must be positive"))
	}
	return errors.Join(errs...)
}
