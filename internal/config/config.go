package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the application configuration. It is assembled in a fixed merge
// order: built-in defaults, then environment (including .env), then persisted
// overrides from the config table applied last via ApplyStoredOverrides.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Garmin   GarminConfig   `mapstructure:"garmin"`
	Strava   StravaConfig   `mapstructure:"strava"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Log      LogConfig      `mapstructure:"log"`
}

type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"`
	Path        string `mapstructure:"path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

type GarminConfig struct {
	SessionDir string `mapstructure:"session_dir"`
}

type StravaConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

type SyncConfig struct {
	PollIntervalMinutes  int      `mapstructure:"poll_interval_minutes"`
	FetchLimit           int      `mapstructure:"fetch_limit"`
	UploadTimeoutSecs    int      `mapstructure:"upload_timeout_secs"`
	UploadPollSecs       int      `mapstructure:"upload_poll_secs"`
	BlockedActivityTypes []string `mapstructure:"blocked_activity_types"`
	GearRules            string   `mapstructure:"gear_rules"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Load assembles configuration from defaults and the environment. Persisted
// overrides are applied separately once the database is open.
func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	v.AutomaticEnv()
	v.SetEnvPrefix("GARAVA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	home, _ := os.UserHomeDir()

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./garava.db")
	v.SetDefault("database.postgres_dsn", "")
	v.SetDefault("garmin.session_dir", filepath.Join(home, ".garava", "garmin"))
	v.SetDefault("strava.redirect_uri", "http://localhost:8000/callback")
	v.SetDefault("sync.poll_interval_minutes", 15)
	v.SetDefault("sync.fetch_limit", 20)
	v.SetDefault("sync.upload_timeout_secs", 120)
	v.SetDefault("sync.upload_poll_secs", 2)
	v.SetDefault("sync.blocked_activity_types", []string{"strength_training"})
	v.SetDefault("sync.gear_rules", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")

	// Bind environment variables explicitly for credentials
	v.BindEnv("strava.client_id", "STRAVA_CLIENT_ID")
	v.BindEnv("strava.client_secret", "STRAVA_CLIENT_SECRET")
	v.BindEnv("strava.redirect_uri", "STRAVA_REDIRECT_URI")
	v.BindEnv("database.path", "GARAVA_DB_PATH")
	v.BindEnv("database.postgres_dsn", "GARAVA_POSTGRES_DSN")
	v.BindEnv("garmin.session_dir", "GARAVA_GARMIN_SESSION_DIR")
	v.BindEnv("sync.blocked_activity_types", "GARAVA_BLOCKED_TYPES")
	v.BindEnv("sync.fetch_limit", "GARAVA_FETCH_LIMIT")
	v.BindEnv("sync.poll_interval_minutes", "GARAVA_POLL_INTERVAL")
	v.BindEnv("sync.gear_rules", "GARAVA_GEAR_RULES")
	v.BindEnv("log.level", "GARAVA_LOG_LEVEL")
	v.BindEnv("log.file", "GARAVA_LOG_FILE")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Env var form is a comma-separated list
	if len(cfg.Sync.BlockedActivityTypes) == 1 && strings.Contains(cfg.Sync.BlockedActivityTypes[0], ",") {
		cfg.Sync.BlockedActivityTypes = splitList(cfg.Sync.BlockedActivityTypes[0])
	}

	return &cfg, nil
}

// SettingsSource is the subset of the settings repository the config layer
// reads overrides from.
type SettingsSource interface {
	Get(ctx context.Context, key string) (string, bool, error)
}

// ApplyStoredOverrides overlays persisted config-table values onto the config.
// Stored values win over environment and defaults. Unknown or malformed
// values are ignored so a bad row cannot brick startup.
func (c *Config) ApplyStoredOverrides(ctx context.Context, settings SettingsSource) error {
	if raw, ok, err := settings.Get(ctx, "blocked_types"); err != nil {
		return err
	} else if ok {
		var types []string
		if json.Unmarshal([]byte(raw), &types) == nil {
			c.Sync.BlockedActivityTypes = types
		}
	}

	if raw, ok, err := settings.Get(ctx, "poll_interval_minutes"); err != nil {
		return err
	} else if ok {
		if n, convErr := parsePositiveInt(raw); convErr == nil {
			c.Sync.PollIntervalMinutes = n
		}
	}

	if raw, ok, err := settings.Get(ctx, "fetch_limit"); err != nil {
		return err
	} else if ok {
		if n, convErr := parsePositiveInt(raw); convErr == nil {
			c.Sync.FetchLimit = n
		}
	}

	return nil
}

// Validate returns the list of configuration violations, empty when valid.
func (c *Config) Validate() []string {
	var errs []string

	if c.Strava.ClientID == "" {
		errs = append(errs, "STRAVA_CLIENT_ID is required")
	}
	if c.Strava.ClientSecret == "" {
		errs = append(errs, "STRAVA_CLIENT_SECRET is required")
	}
	if c.Sync.PollIntervalMinutes < 1 {
		errs = append(errs, "poll interval must be at least 1 minute")
	}
	if c.Sync.FetchLimit < 1 {
		errs = append(errs, "fetch limit must be at least 1")
	}
	if c.Sync.UploadTimeoutSecs < 1 {
		errs = append(errs, "upload timeout must be at least 1 second")
	}
	if c.Database.Driver == "postgres" && c.Database.PostgresDSN == "" {
		errs = append(errs, "postgres driver requires GARAVA_POSTGRES_DSN")
	}

	return errs
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parsePositiveInt(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &n); err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("value must be positive: %d", n)
	}
	return n, nil
}
