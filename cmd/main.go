package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labhelp/queue-service/config"
	"github.com/labhelp/queue-service/internal/auth"
	"github.com/labhelp/queue-service/internal/course"
	"github.com/labhelp/queue-service/internal/postgres"
	"github.com/labhelp/queue-service/internal/service"
	"github.com/labhelp/queue-service/internal/state"
	httpx "github.com/labhelp/queue-service/internal/transport/http"
	"github.com/labhelp/queue-service/internal/transport/ws"
	"github.com/labhelp/queue-service/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting queue-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version, "rooms", cfg.Queue.Rooms)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- postgres ---
	db, err := postgres.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()

	if err := postgres.EnsureSchema(ctx, db.Pool); err != nil {
		log.Fatalf("schema: %v", err)
	}

	// --- repos & changefeed ---
	entryRepo := postgres.NewEntryRepository(db.Pool)
	feed := postgres.NewChangefeed(cfg.Postgres.DSN)

	// --- external clients ---
	identity := auth.NewIdentityClient(cfg.Course.APIRoot, cfg.Course.APIToken, cfg.Timeouts.Collaborator)
	courseAPI := course.NewClient(cfg.Course.APIRoot, cfg.Course.APIToken, cfg.Timeouts.Collaborator)
	signer := auth.NewTokenSigner(cfg.Auth.TokenSecret, cfg.Logging.Service, cfg.Auth.TokenTTL)

	// --- state, hub, services ---
	hub := ws.NewHub()
	rooms := state.NewRooms(cfg.Queue.Rooms)
	sessions := state.NewSessions()
	presence := state.NewPresence(cfg.Queue.Rooms, func(room string, delta state.StaffDelta) {
		hub.Broadcast(room, ws.Message{Type: ws.TypeStaffList, Payload: delta})
	})

	queueSvc := service.NewQueueService(
		entryRepo, courseAPI, rooms, sessions, presence,
		cfg.Queue.CheckInRequired, cfg.Timeouts.Collaborator,
		func(room string, locked bool) {
			hub.Broadcast(room, ws.Message{Type: ws.TypeLocked, Payload: locked})
		},
	)

	if err := queueSvc.Prime(ctx); err != nil {
		log.Fatalf("prime: %v", err)
	}

	propagator := service.NewPropagator(feed.Changes(), rooms, sessions, queueSvc, hub)

	go func() {
		if err := feed.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("changefeed stopped", "err", err)
		}
	}()
	go propagator.Run(ctx)

	// --- HTTP ---
	wsServer := ws.NewServer(hub, queueSvc, identity, signer, rooms, sessions, cfg.Timeouts.Collaborator)
	router := httpx.NewRouter(wsServer)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	_ = httpSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}
