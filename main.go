package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tshreegupta/react-tetris/internal/config"
	"github.com/tshreegupta/react-tetris/internal/db"
	"github.com/tshreegupta/react-tetris/internal/httpserver"
	"github.com/tshreegupta/react-tetris/internal/scores"
	"github.com/tshreegupta/react-tetris/internal/session"
	"github.com/tshreegupta/react-tetris/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogging(cfg)

	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	defer conn.Close()
	if err := db.Migrate(conn); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	results := scores.NewStore(conn)
	mgr := session.NewManager(store.NewMemoryStore[*session.Session](), session.Options{
		IdleTimeout: cfg.SessionIdleTimeout,
		OnGameOver:  scores.Recorder(results),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go mgr.RunPruner(ctx, pruneEvery(cfg.SessionIdleTimeout))

	log.Info().Str("addr", cfg.Addr()).Str("db", cfg.DBPath).Msg("starting tetris server")
	if err := httpserver.New(mgr, results, cfg).Run(ctx, cfg.Addr()); err != nil {
		log.Error().Err(err).Msg("server exited")
		return
	}
	log.Info().Msg("server stopped")
}

func setupLogging(cfg config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// pruneEvery checks for idle sessions a few times per timeout window.
func pruneEvery(idle time.Duration) time.Duration {
	if idle <= 0 {
		return 0
	}
	if every := idle / 4; every > time.Second {
		return every
	}
	return time.Second
}
