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

	"github.com/cfoust/spleef/pkg/bridge"
	"github.com/cfoust/spleef/pkg/config"
	"github.com/cfoust/spleef/pkg/feed"
	"github.com/cfoust/spleef/pkg/ingress"
	"github.com/cfoust/spleef/pkg/registry"
	"github.com/cfoust/spleef/pkg/stats"
	"github.com/cfoust/spleef/pkg/status"
	"github.com/cfoust/spleef/pkg/telemetry"

	"github.com/rs/zerolog/log"
)

func serve(configs []string) error {
	cfg, err := config.Load(configs)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	serverConfig := cfg.Server

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, "spleef")
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn().Err(err).Msg("failed to flush traces")
		}
	}()

	host := bridge.New(cfg.Arenas, cfg.Game.Loadout)
	log.Info().Int("arenas", len(cfg.Arenas)).Msg("loaded arenas")

	sessions := registry.New(ctx, cfg.Game.Settings(), host, serverConfig.Lanes)

	var ratings ingress.Ratings
	if serverConfig.DBPath != "" {
		db, err := stats.InitDB(serverConfig.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open database %s: %w", serverConfig.DBPath, err)
		}

		store := stats.NewStore(db)
		ratings = store
		go store.Poll(ctx, sessions.Events().Subscribe())
	}

	if serverConfig.Redis.Address != "" {
		redis := status.NewRedisStore(serverConfig.Redis)
		defer redis.Close()

		if err := redis.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("address", serverConfig.Redis.Address).Msg("redis unreachable, status may lag")
		}

		mirror := status.NewMirror(redis, serverConfig.Redis.TTL.Duration())
		go mirror.Poll(ctx, sessions.Events().Subscribe())
	}

	wsFeed := feed.New(sessions, sessions.Events(), host.Commands())
	go wsFeed.Poll(ctx)

	sessions.Start()

	mux := http.NewServeMux()
	mux.Handle("/ws/", wsFeed)
	mux.Handle("/api/", ingress.New(sessions, host, ratings, serverConfig.RateLimit))

	address := fmt.Sprintf("%s:%d", serverConfig.Web.Address, serverConfig.Web.Port)
	server := &http.Server{
		Addr:    address,
		Handler: mux,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("address", address).Msg("listening")
		errc <- server.ListenAndServe()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("failed to serve")
		}
	case sig := <-sigs:
		log.Info().Str("signal", sig.String()).Msg("terminating")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http server did not shut down cleanly")
	}

	ended := sessions.Shutdown()
	log.Info().Int("sessions", ended).Msg("ended sessions")

	// let the pollers drain the final events
	time.Sleep(100 * time.Millisecond)
	cancel()

	return nil
}
