package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Gateway (indexers + download clients)
	GatewayURL    string
	GatewayAPIKey string

	// Newznab
	NewznabURL      string
	NewznabKey      string
	NewznabName     string
	NewznabPriority int

	// Search
	SearchTimeout    time.Duration
	SearchRetries    int
	SearchRetryDelay time.Duration
	SubmitTimeout    time.Duration

	// Scheduling
	GlobalSweepSchedule string        // cron spec of the all-users safety sweep
	MinCheckInterval    time.Duration // floor for per-user check and rename intervals
	EntityDelay         time.Duration // pause between entities of one batch
	DownloadTimeout     time.Duration // downloading entities older than this are searched again

	// Watcher
	StabilityWait      time.Duration
	MinWatcherInterval time.Duration
	RecentLimit        int
	WatcherNotify      bool

	// Library
	MinMovieSize int64 // bytes

	// Settings cache
	SettingsCacheTTL time.Duration

	// Server
	ServerPort string

	// Paths
	BlacklistFile string // $CONFIG_DIR/blacklist.txt
	DatabaseFile  string // $CONFIG_DIR/reconcilarr.db

	// Logging
	LogLevel  string
	LogFormat string

	// Tracing
	TracingEnabled bool
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Setup viper FIRST to load .env file
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	// Set defaults
	viper.SetDefault("NEWZNAB_NAME", "newznab")
	viper.SetDefault("NEWZNAB_PRIORITY", 25)
	viper.SetDefault("SEARCH_TIMEOUT_SECONDS", 30)
	viper.SetDefault("SEARCH_RETRIES", 2)
	viper.SetDefault("SEARCH_RETRY_DELAY_MS", 1500)
	viper.SetDefault("SUBMIT_TIMEOUT_SECONDS", 30)
	viper.SetDefault("GLOBAL_SWEEP_SCHEDULE", "@every 6h")
	viper.SetDefault("MIN_CHECK_INTERVAL_MINUTES", 15)
	viper.SetDefault("ENTITY_DELAY_MS", 1000)
	viper.SetDefault("DOWNLOAD_TIMEOUT_MINUTES", 1440)
	viper.SetDefault("STABILITY_WAIT_MS", 2000)
	viper.SetDefault("MIN_WATCHER_INTERVAL_SECONDS", 10)
	viper.SetDefault("RECENT_ACTIVITY_LIMIT", 20)
	viper.SetDefault("WATCHER_NOTIFY", true)
	viper.SetDefault("MIN_MOVIE_SIZE_MB", 50)
	viper.SetDefault("SETTINGS_CACHE_SECONDS", 60)
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")
	viper.SetDefault("TRACING_ENABLED", false)

	// NOW read CONFIG_DIR from viper (which has loaded .env file)
	configDir := viper.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "reconcilarr")
	} else {
		// Convert relative path to absolute path
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	// Create config directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	config := &Config{
		// Gateway
		GatewayURL:    viper.GetString("GATEWAY_URL"),
		GatewayAPIKey: viper.GetString("GATEWAY_API_KEY"),

		// Newznab
		NewznabURL:      viper.GetString("NEWZNAB_URL"),
		NewznabKey:      viper.GetString("NEWZNAB_KEY"),
		NewznabName:     viper.GetString("NEWZNAB_NAME"),
		NewznabPriority: viper.GetInt("NEWZNAB_PRIORITY"),

		// Search
		SearchTimeout:    time.Duration(viper.GetInt("SEARCH_TIMEOUT_SECONDS")) * time.Second,
		SearchRetries:    viper.GetInt("SEARCH_RETRIES"),
		SearchRetryDelay: time.Duration(viper.GetInt("SEARCH_RETRY_DELAY_MS")) * time.Millisecond,
		SubmitTimeout:    time.Duration(viper.GetInt("SUBMIT_TIMEOUT_SECONDS")) * time.Second,

		// Scheduling
		GlobalSweepSchedule: viper.GetString("GLOBAL_SWEEP_SCHEDULE"),
		MinCheckInterval:    time.Duration(viper.GetInt("MIN_CHECK_INTERVAL_MINUTES")) * time.Minute,
		EntityDelay:         time.Duration(viper.GetInt("ENTITY_DELAY_MS")) * time.Millisecond,
		DownloadTimeout:     time.Duration(viper.GetInt("DOWNLOAD_TIMEOUT_MINUTES")) * time.Minute,

		// Watcher
		StabilityWait:      time.Duration(viper.GetInt("STABILITY_WAIT_MS")) * time.Millisecond,
		MinWatcherInterval: time.Duration(viper.GetInt("MIN_WATCHER_INTERVAL_SECONDS")) * time.Second,
		RecentLimit:        viper.GetInt("RECENT_ACTIVITY_LIMIT"),
		WatcherNotify:      viper.GetBool("WATCHER_NOTIFY"),

		// Library
		MinMovieSize: viper.GetInt64("MIN_MOVIE_SIZE_MB") * 1024 * 1024,

		// Settings cache
		SettingsCacheTTL: time.Duration(viper.GetInt("SETTINGS_CACHE_SECONDS")) * time.Second,

		// Server
		ServerPort: viper.GetString("SERVER_PORT"),

		// Paths
		BlacklistFile: filepath.Join(configDir, "blacklist.txt"),
		DatabaseFile:  filepath.Join(configDir, "reconcilarr.db"),

		// Logging
		LogLevel:  viper.GetString("LOG_LEVEL"),
		LogFormat: viper.GetString("LOG_FORMAT"),

		// Tracing
		TracingEnabled: viper.GetBool("TRACING_ENABLED"),
	}

	if config.SearchRetries < 0 {
		return nil, fmt.Errorf("SEARCH_RETRIES must not be negative")
	}
	if config.MinCheckInterval <= 0 {
		return nil, fmt.Errorf("MIN_CHECK_INTERVAL_MINUTES must be positive")
	}

	return config, nil
}

// ValidateServe checks what the serve command needs on top of Load: at
// least one search backend
func (c *Config) ValidateServe() error {
	if c.GatewayURL == "" && c.NewznabURL == "" {
		return fmt.Errorf("GATEWAY_URL or NEWZNAB_URL is required")
	}
	if c.NewznabURL != "" && c.NewznabKey == "" {
		return fmt.Errorf("NEWZNAB_KEY is required when NEWZNAB_URL is set")
	}
	return nil
}
