package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Updater     UpdaterConfig     `yaml:"updater"`
	LiveTimes   LiveTimesConfig   `yaml:"live_times"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	API         APIConfig         `yaml:"api"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// DatabaseConfig locates the two SQLite files and the bundled reference asset.
type DatabaseConfig struct {
	BusStopPath  string `yaml:"bus_stop_path" validate:"required"`
	AssetPath    string `yaml:"asset_path" validate:"required"`
	SchemaName   string `yaml:"schema_name" validate:"required"`
	SettingsPath string `yaml:"settings_path" validate:"required"`
}

type UpdaterConfig struct {
	EndpointURL   string        `yaml:"endpoint_url" validate:"required,url"`
	APIKey        string        `yaml:"api_key"`
	CheckInterval time.Duration `yaml:"check_interval" validate:"gt=0"`
	// UnmeteredOnly is the user preference restricting downloads to
	// unmetered networks; MeteredNetwork says what this host is on.
	UnmeteredOnly   bool          `yaml:"unmetered_only"`
	MeteredNetwork  bool          `yaml:"metered_network"`
	DownloadTimeout time.Duration `yaml:"download_timeout" validate:"gt=0"`
}

type LiveTimesConfig struct {
	BaseURL     string        `yaml:"base_url" validate:"required,url"`
	APIKey      string        `yaml:"api_key"`
	Departures  int           `yaml:"departures" validate:"gt=0"`
	CacheExpiry time.Duration `yaml:"cache_expiry" validate:"gte=0"`
	MaxParallel int           `yaml:"max_parallel" validate:"gt=0"`
}

type MaintenanceConfig struct {
	AlertRetention  time.Duration `yaml:"alert_retention" validate:"gt=0"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" validate:"gt=0"`
}

type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	FilePath   string `yaml:"file_path"`
	WebhookURL string `yaml:"webhook_url" validate:"omitempty,url"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			BusStopPath:  "data/busstops10.db",
			AssetPath:    "assets/busstops10.db",
			SchemaName:   "MBE_10",
			SettingsPath: "data/settings.db",
		},
		Updater: UpdaterConfig{
			EndpointURL:     "https://edinb.us/api/DatabaseVersion",
			CheckInterval:   12 * time.Hour,
			UnmeteredOnly:   false,
			MeteredNetwork:  false,
			DownloadTimeout: 5 * time.Minute,
		},
		LiveTimes: LiveTimesConfig{
			BaseURL:     "http://ws.mybustracker.co.uk/",
			Departures:  4,
			CacheExpiry: 30 * time.Second,
			MaxParallel: 4,
		},
		Maintenance: MaintenanceConfig{
			AlertRetention:  time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
		API: APIConfig{
			Enabled: true,
			Listen:  ":8080",
		},
		Logging: LoggingConfig{
			Level:    "info",
			FilePath: "mybus.log",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// MYBUS_CONFIG_FILE, and finally environment variables, then validates it.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("MYBUS_CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Database.BusStopPath = getEnv("MYBUS_BUSSTOP_DB", cfg.Database.BusStopPath)
	cfg.Database.AssetPath = getEnv("MYBUS_BUSSTOP_ASSET", cfg.Database.AssetPath)
	cfg.Database.SchemaName = getEnv("MYBUS_SCHEMA_NAME", cfg.Database.SchemaName)
	cfg.Database.SettingsPath = getEnv("MYBUS_SETTINGS_DB", cfg.Database.SettingsPath)

	cfg.Updater.EndpointURL = getEnv("MYBUS_DB_ENDPOINT", cfg.Updater.EndpointURL)
	cfg.Updater.APIKey = getEnv("MYBUS_DB_API_KEY", cfg.Updater.APIKey)
	cfg.Updater.CheckInterval = getDurationEnv("MYBUS_DB_CHECK_INTERVAL", cfg.Updater.CheckInterval)
	cfg.Updater.UnmeteredOnly = getBoolEnv("MYBUS_UNMETERED_ONLY", cfg.Updater.UnmeteredOnly)
	cfg.Updater.MeteredNetwork = getBoolEnv("MYBUS_METERED_NETWORK", cfg.Updater.MeteredNetwork)
	cfg.Updater.DownloadTimeout = getDurationEnv("MYBUS_DB_DOWNLOAD_TIMEOUT", cfg.Updater.DownloadTimeout)

	cfg.LiveTimes.BaseURL = getEnv("MYBUS_LIVE_URL", cfg.LiveTimes.BaseURL)
	cfg.LiveTimes.APIKey = getEnv("MYBUS_LIVE_API_KEY", cfg.LiveTimes.APIKey)
	cfg.LiveTimes.Departures = getIntEnv("MYBUS_LIVE_DEPARTURES", cfg.LiveTimes.Departures)
	cfg.LiveTimes.CacheExpiry = getDurationEnv("MYBUS_LIVE_CACHE_EXPIRY", cfg.LiveTimes.CacheExpiry)
	cfg.LiveTimes.MaxParallel = getIntEnv("MYBUS_LIVE_MAX_PARALLEL", cfg.LiveTimes.MaxParallel)

	cfg.Maintenance.AlertRetention = getDurationEnv("MYBUS_ALERT_RETENTION", cfg.Maintenance.AlertRetention)
	cfg.Maintenance.CleanupInterval = getDurationEnv("MYBUS_CLEANUP_INTERVAL", cfg.Maintenance.CleanupInterval)

	cfg.API.Enabled = getBoolEnv("MYBUS_API_ENABLED", cfg.API.Enabled)
	cfg.API.Listen = getEnv("MYBUS_API_LISTEN", cfg.API.Listen)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.FilePath = getEnv("LOG_FILE", cfg.Logging.FilePath)
	cfg.Logging.WebhookURL = getEnv("LOG_WEBHOOK_URL", cfg.Logging.WebhookURL)
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
