package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"pubg-rank-bot/internal/constants"
	"pubg-rank-bot/internal/discord"
	fxmodules "pubg-rank-bot/internal/fx"
	"pubg-rank-bot/internal/scheduler"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(run),
	).Run()
}

func run(
	lc fx.Lifecycle,
	bot *discord.Bot,
	sched *scheduler.Scheduler,
	srv *http.Server,
	db *sql.DB,
	logger zerolog.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("ops server starting")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal().Err(err).Msg("ops server failed")
				}
			}()

			if err := bot.Start(); err != nil {
				return err
			}
			logger.Info().Msg("discord bot connected")

			return sched.Start()
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			sched.Stop()

			if err := bot.Stop(); err != nil {
				logger.Warn().Err(err).Msg("error closing discord session")
			}

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("ops server shutdown failed")
			}

			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
				return err
			}
			logger.Info().Msg("stopped gracefully")
			return nil
		},
	})
}
