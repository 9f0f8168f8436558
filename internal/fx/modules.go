package fx

import (
	"context"
	"fmt"

	"pubg-rank-bot/internal/api"
	"pubg-rank-bot/internal/config"
	"pubg-rank-bot/internal/constants"
	"pubg-rank-bot/internal/database"
	"pubg-rank-bot/internal/discord"
	"pubg-rank-bot/internal/logger"
	"pubg-rank-bot/internal/parser"
	"pubg-rank-bot/internal/repository"
	"pubg-rank-bot/internal/scheduler"
	"pubg-rank-bot/internal/server"
	"pubg-rank-bot/internal/service"
	"pubg-rank-bot/internal/tier"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// ProvideResolver seeds the tier role names on first start and builds the resolver from
// whatever the settings store holds.
func ProvideResolver(settings *repository.SettingsRepository, cfg *config.Config, logger zerolog.Logger) (*tier.Resolver, error) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()

	names, err := settings.EnsureTierRoles(ctx, cfg.TierRoles)
	if err != nil {
		return nil, fmt.Errorf("failed to load tier roles: %w", err)
	}
	logger.Info().Strs("tier_roles", names).Msg("tier roles loaded")
	return tier.NewResolver(names)
}

func ProvideFetcher(client *api.DakGGClient) service.ProfileFetcher {
	return client
}

func ProvideParser() service.StatsParser {
	return parser.New()
}

func ProvideRecordStore(repo *repository.PlayerRepository) service.RecordStore {
	return repo
}

func ProvideHistoryStore(repo *repository.SyncHistoryRepository) service.HistoryStore {
	return repo
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewPlayerRepository),
	fx.Provide(repository.NewSettingsRepository),
	fx.Provide(repository.NewSyncHistoryRepository),
	fx.Provide(ProvideRecordStore),
	fx.Provide(ProvideHistoryStore),
	// dak.gg
	fx.Provide(api.NewDakGGClient),
	fx.Provide(ProvideFetcher),
	fx.Provide(ProvideParser),
	// svc
	fx.Provide(ProvideResolver),
	fx.Provide(service.NewRoleReconciler),
	fx.Provide(service.NewSyncService),
	// discord
	fx.Provide(discord.NewSession),
	fx.Provide(discord.NewBot),
	fx.Provide(scheduler.New),
	// server
	fx.Provide(server.NewOpsServer),
	fx.Provide(server.NewHTTPServer),
)
