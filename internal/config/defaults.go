package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	appName           = "siren"
	projectConfigFile = "siren.toml"
	dotEnvFile        = ".env"

	// DefaultAPIEndpoint is the public Monster Siren API root.
	DefaultAPIEndpoint = "https://monster-siren.hypergryph.com/api/"

	defaultUserAgent      = "siren/dev"
	defaultTimeoutSeconds = 30
	defaultMaxRetries     = 3
	defaultRetryDelayMS   = 500
	defaultConcurrency    = 4
	defaultBatchSize      = 10
	defaultMinFreeMiB     = 512
	defaultPlayerBinary   = "ffplay"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultLogMaxSizeMiB  = 10
	defaultLogMaxBackups  = 5
	defaultLogMaxAgeDays  = 30

	CacheBackendJSON   = "json"
	CacheBackendSQLite = "sqlite"

	jsonCacheFile   = "metadata.json"
	sqliteCacheFile = "metadata.db"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		API: API{
			Endpoint:       DefaultAPIEndpoint,
			UserAgent:      defaultUserAgent,
			TimeoutSeconds: defaultTimeoutSeconds,
			MaxRetries:     defaultMaxRetries,
			RetryDelayMS:   defaultRetryDelayMS,
		},
		Download: Download{
			Dir:         defaultDownloadDir(),
			Concurrency: defaultConcurrency,
			BatchSize:   defaultBatchSize,
			MinFreeMiB:  defaultMinFreeMiB,
		},
		Cache: Cache{
			Backend: CacheBackendJSON,
		},
		Player: Player{
			Binary: defaultPlayerBinary,
			Loop:   true,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			Dir:        defaultLogDir(),
			MaxSizeMiB: defaultLogMaxSizeMiB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
	}
}

func defaultDownloadDir() string {
	return filepath.Join(xdg.UserDirs.Music, "msr")
}

func defaultLogDir() string {
	return filepath.Join(xdg.StateHome, appName, "logs")
}
