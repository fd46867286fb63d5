package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/wes-io-live/liveroom/internal/client"
	"github.com/weiawesome/wes-io-live/liveroom/internal/config"
	"github.com/weiawesome/wes-io-live/liveroom/internal/coordinator"
	"github.com/weiawesome/wes-io-live/liveroom/internal/handler"
	"github.com/weiawesome/wes-io-live/liveroom/internal/hub"
	"github.com/weiawesome/wes-io-live/liveroom/internal/kafka"
	"github.com/weiawesome/wes-io-live/liveroom/internal/profile"
	"github.com/weiawesome/wes-io-live/liveroom/internal/service"
	"github.com/weiawesome/wes-io-live/liveroom/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-live/liveroom/pkg/log"
	"github.com/weiawesome/wes-io-live/liveroom/pkg/middleware"
	"github.com/weiawesome/wes-io-live/liveroom/pkg/pubsub"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	pkglog.Init(pkglog.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "liveroom-service"})
	logger := pkglog.L()

	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting liveroom-service")

	// Initialize PubSub
	ps, err := pubsub.NewPubSub(cfg.PubSub)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize pubsub")
	}
	defer ps.Close()
	logger.Info().Str("driver", cfg.PubSub.Driver).Msg("connected to pubsub")

	verifier, err := jwt.NewVerifierFromFile(cfg.Auth.PublicKeyPath, cfg.Auth.Issuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load jwt public key")
	}

	roomClient := client.NewRoomClient(cfg.Room.HTTPAddress, cfg.Room.Timeout)
	logger.Info().Str("address", cfg.Room.HTTPAddress).Msg("room service client configured")

	// Mute preferences fall back to process memory without Redis
	var profiles service.MuteStore
	redisProfiles, err := profile.NewRedisStore(cfg.Profile)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to connect profile store, preferences kept in memory")
		profiles = profile.NewMemoryStore()
	} else {
		defer redisProfiles.Close()
		profiles = redisProfiles
	}

	// Session events are optional
	var events coordinator.EventProducer
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka producer, session events disabled")
		} else {
			defer producer.Close()
			events = producer
			logger.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("connected to kafka")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wsHub := hub.NewHub(cfg.WebSocket)

	liveSvc := service.NewLiveRoomService(service.Deps{
		Hub:         wsHub,
		Verifier:    verifier,
		Rooms:       roomClient,
		PubSub:      ps,
		Profiles:    profiles,
		Events:      events,
		Coordinator: cfg.Coordinator,
	})
	if err := liveSvc.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start live room service")
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))
	handler.NewHandler(wsHub, liveSvc, middleware.NewAuthMiddleware(verifier)).RegisterRoutes(r)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		wsHub.Run(gCtx)
		return nil
	})

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("liveroom-service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info().Msg("shutting down liveroom-service")

		// Graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server forced to shutdown")
		}
		return liveSvc.Stop()
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("liveroom-service exited with error")
	}
	logger.Info().Msg("liveroom-service stopped")
}
