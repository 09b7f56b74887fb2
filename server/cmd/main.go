package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"skirmish/server"
	"skirmish/server/config"
	"skirmish/server/domain"
	"skirmish/server/handler"
	"skirmish/server/scheduler"
	"skirmish/server/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: "skirmish",
		Level:       cfg.LogLevel,
		Enabled:     cfg.OTelEnabled,
		Output:      os.Stdout,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Error("telemetry shutdown failed", "err", err)
		}
	}()

	seed := cfg.MapSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	lobby := domain.NewLobby(cfg.LobbyCapacity)
	sched, err := scheduler.New(cfg.Scheduler, scheduler.LobbyAcceptor(lobby), scheduler.RealClock(), rng)
	if err != nil {
		return err
	}

	accept := handler.NewAcceptHandler(lobby, handler.NewAuthenticator(cfg.JWTSecret), domain.ConnectionOptions{
		HeartbeatInterval: cfg.HeartbeatInterval,
		IdleTimeout:       cfg.IdleTimeout,
	})
	router := server.Route(server.Dependencies{
		Lobby:  lobby,
		Stats:  sched,
		Accept: accept,
	})

	// 接続はシグナルでは終了させず、スケジューラが終了理由付きで閉じた後にキャンセルする
	connCtx, cancelConns := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelConns()
	s := server.NewServer(connCtx, cfg.ListenAddr(), router)

	schedDone := make(chan struct{})
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer close(schedDone)
		return sched.Run(egCtx)
	})
	eg.Go(func() error {
		slog.InfoContext(ctx, "server listening", "addr", s.Addr(), "seed", seed)
		if err := s.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		slog.InfoContext(ctx, "shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		defer cancelConns()

		if err := s.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(ctx, "graceful shutdown failed", "error", err)
			if err := s.Close(); err != nil {
				slog.ErrorContext(ctx, "forced close failed", "error", err)
			}
		}
		// スケジューラが全参加者に終了理由を送り終えるまで待つ
		<-schedDone
		if err := accept.Wait(shutdownCtx); err != nil {
			slog.WarnContext(ctx, "connections did not drain", "err", err)
		}
		return nil
	})

	err = eg.Wait()
	slog.InfoContext(ctx, "server shutdown complete")
	return err
}
