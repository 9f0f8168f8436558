package logger

import (
	"os"

	"pubg-rank-bot/internal/constants"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func New() zerolog.Logger {
	return SetLevel(levelFromEnv())
}

func SetLevel(level zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Caller().
		Logger()

	logger = logger.Level(level)

	return logger
}

// the logger is built before config, so LOG_LEVEL is read directly
func levelFromEnv() zerolog.Level {
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level, _ = zerolog.ParseLevel(constants.DefaultLogLevel)
	}
	return level
}

var Module = fx.Provide(New)
