package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/VideoCall/internal/adapters/capture"
	router "github.com/dkeye/VideoCall/internal/adapters/http"
	"github.com/dkeye/VideoCall/internal/adapters/rtc"
	sig "github.com/dkeye/VideoCall/internal/adapters/signal"
	"github.com/dkeye/VideoCall/internal/app/names"
	"github.com/dkeye/VideoCall/internal/app/orch"
	"github.com/dkeye/VideoCall/internal/config"
	"github.com/dkeye/VideoCall/internal/core"
	"github.com/dkeye/VideoCall/internal/protocol"
)

// signalChannel is satisfied by both signaling adapters.
type signalChannel interface {
	core.SignalChannel
	Connect(ctx context.Context) error
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
	log.Info().Msg("Server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	channel, err := newSignal(cfg)
	if err != nil {
		return err
	}

	o := orch.New(orch.Params{
		Signal:           channel,
		Media:            rtc.NewProvider(cfg.Media.ICEServers),
		Capture:          capture.NewSynthetic(cfg.Media.CaptureEnabled),
		Names:            names.NewAllocator(cfg.Names),
		SerializeInbound: cfg.SerializeInbound,
	})
	o.Start()

	// handlers are registered by orch.New, so connecting now loses nothing
	dialCtx, dialCancel := context.WithTimeout(ctx, 10*time.Second)
	err = channel.Connect(dialCtx)
	dialCancel()
	if err != nil {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		_ = o.Close(closeCtx)
		return fmt.Errorf("connect signaling: %w", err)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router.SetupRouter(cfg, o),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("VideoCall server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return o.Close(shutdownCtx)
	})
	return g.Wait()
}

func newSignal(cfg *config.Config) (signalChannel, error) {
	codec, err := protocol.NewCodec(cfg.Signaling.Codec)
	if err != nil {
		return nil, err
	}

	switch cfg.Signaling.Transport {
	case config.TransportRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Signaling.RedisAddr,
			Password: cfg.Signaling.RedisPassword,
			DB:       cfg.Signaling.RedisDB,
		})
		return sig.NewRedis(client, sig.RedisConfig{
			Channel:  cfg.Signaling.RedisChannel,
			Codec:    codec,
			ClientID: uuid.NewString(),
		}), nil
	default:
		var token string
		if cfg.Signaling.TokenSecret != "" {
			token, err = sig.MintToken(cfg.Signaling.TokenSecret, uuid.NewString(), 24*time.Hour)
			if err != nil {
				return nil, fmt.Errorf("mint signaling token: %w", err)
			}
		}
		return sig.NewWS(sig.WSConfig{
			URL:        cfg.Signaling.URL,
			Codec:      codec,
			Token:      token,
			PingPeriod: cfg.PingPeriod,
			ReadLimit:  cfg.ReadLimit,
			SendBuffer: cfg.Signaling.SendBuffer,
		}), nil
	}
}
