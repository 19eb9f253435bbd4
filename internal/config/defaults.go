package config

import "github.com/spf13/viper"

// Default configuration values.
const (
	LogLevel = "info"
	LogFile  = "~/.config/mxpack/mxpack.log"

	// Source connector defaults.
	TelegramAPIURL            = "https://api.telegram.org"
	TelegramTimeoutSeconds    = 30
	TelegramRequestsPerSecond = 20.0

	// Content store defaults.
	MatrixUploadTimeoutSeconds = 60

	// Import pipeline defaults.
	ImportWorkers     = 4
	ImportBoundingBox = 256
	ImportMaxAttempts = 4
	ImportRetryBaseMS = 500

	// Dedup cache defaults.
	DedupBackend   = "file"
	DedupCacheFile = "~/.config/mxpack/uploads.json"

	// Manifest index defaults.
	IndexDir = "web/packs"
)

// setDefaults registers all default configuration values with viper.
// Called during Init() before reading config files.
func setDefaults() {
	viper.SetDefault("log_level", LogLevel)
	viper.SetDefault("log_file", LogFile)

	viper.SetDefault("telegram.api_url", TelegramAPIURL)
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.timeout_seconds", TelegramTimeoutSeconds)
	viper.SetDefault("telegram.requests_per_second", TelegramRequestsPerSecond)

	viper.SetDefault("matrix.homeserver_url", "")
	viper.SetDefault("matrix.access_token", "")
	viper.SetDefault("matrix.upload_timeout_seconds", MatrixUploadTimeoutSeconds)

	viper.SetDefault("import.workers", ImportWorkers)
	viper.SetDefault("import.bounding_box", ImportBoundingBox)
	viper.SetDefault("import.max_attempts", ImportMaxAttempts)
	viper.SetDefault("import.retry_base_ms", ImportRetryBaseMS)

	viper.SetDefault("dedup.backend", DedupBackend)
	viper.SetDefault("dedup.cache_file", DedupCacheFile)
	viper.SetDefault("dedup.redis_addr", "")
	viper.SetDefault("dedup.redis_password", "")
	viper.SetDefault("dedup.redis_db", 0)

	viper.SetDefault("index.dir", IndexDir)
}
