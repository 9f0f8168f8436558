package constants

import "time"

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
	CommandTimeout     = 2 * time.Minute
)

const (
	DBMaxOpenConns    = 10
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	DefaultSyncPacing  = 1 * time.Second
	FetchRetryInterval = 2 * time.Second
	HistoryListLimit   = 20
)

const (
	NoticeTTL      = 2 * time.Second
	ErrorNoticeTTL = 10 * time.Second
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultLogLevel      = "info"
	DefaultCommandPrefix = "p!"
	DefaultDakGGBaseURL  = "https://dak.gg"
	UserAgent            = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)
