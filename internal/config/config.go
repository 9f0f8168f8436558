package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"pubg-rank-bot/internal/constants"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// DefaultTierRoles lists the tier role names from lowest to highest.
var DefaultTierRoles = []string{"Bronze", "Silver", "Gold", "Platinum", "Diamond", "Elite"}

type Config struct {
	DiscordToken  string
	GuildID       string
	CommandPrefix string
	DBPath        string
	ServerPort    string
	LogLevel      string
	DakGGBaseURL  string
	TierRoles     []string
	SyncPacing    time.Duration
	SyncInterval  time.Duration
	AbortOnError  bool
	FetchRetries  int
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	pacing, err := getDuration("SYNC_PACING", constants.DefaultSyncPacing)
	if err != nil {
		return nil, err
	}
	interval, err := getDuration("SYNC_INTERVAL", 0)
	if err != nil {
		return nil, err
	}
	retries, err := getInt("FETCH_MAX_RETRIES", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DiscordToken:  getEnv("DISCORD_BOT_TOKEN", ""),
		GuildID:       getEnv("DISCORD_GUILD_ID", ""),
		CommandPrefix: getEnv("COMMAND_PREFIX", constants.DefaultCommandPrefix),
		DBPath:        getEnv("DB_PATH", "pubg.db"),
		ServerPort:    getEnv("SERVER_PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", constants.DefaultLogLevel),
		DakGGBaseURL:  strings.TrimRight(getEnv("DAKGG_BASE_URL", constants.DefaultDakGGBaseURL), "/"),
		TierRoles:     ParseTierRoles(getEnv("TIER_ROLES", "")),
		SyncPacing:    pacing,
		SyncInterval:  interval,
		AbortOnError:  getEnv("SYNC_ABORT_ON_ERROR", "false") == "true",
		FetchRetries:  retries,
	}

	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}
	if len(cfg.TierRoles) != len(DefaultTierRoles) {
		return nil, fmt.Errorf("TIER_ROLES must list exactly %d names, got %d", len(DefaultTierRoles), len(cfg.TierRoles))
	}
	if cfg.FetchRetries < 0 {
		return nil, fmt.Errorf("FETCH_MAX_RETRIES must not be negative")
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("guild_id", cfg.GuildID).
		Strs("tier_roles", cfg.TierRoles).
		Dur("sync_pacing", cfg.SyncPacing).
		Dur("sync_interval", cfg.SyncInterval).
		Bool("abort_on_error", cfg.AbortOnError).
		Int("fetch_retries", cfg.FetchRetries).
		Msg("configuration loaded")

	return cfg, nil
}

// ParseTierRoles reads a comma separated list, lowest tier first. An empty
// value yields the defaults.
func ParseTierRoles(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return append([]string(nil), DefaultTierRoles...)
	}
	var names []string
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

var Module = fx.Provide(Load)
