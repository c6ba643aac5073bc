package config

import (
	"context"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: "sqlite", Path: "./garava.db"},
		Strava:   StravaConfig{ClientID: "123", ClientSecret: "secret"},
		Sync: SyncConfig{
			PollIntervalMinutes: 15,
			FetchLimit:          20,
			UploadTimeoutSecs:   120,
			UploadPollSecs:      2,
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Config)
		violations int
	}{
		{"valid", func(c *Config) {}, 0},
		{"missing client id", func(c *Config) { c.Strava.ClientID = "" }, 1},
		{"missing client secret", func(c *Config) { c.Strava.ClientSecret = "" }, 1},
		{"zero poll interval", func(c *Config) { c.Sync.PollIntervalMinutes = 0 }, 1},
		{"zero fetch limit", func(c *Config) { c.Sync.FetchLimit = 0 }, 1},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }, 1},
		{
			"multiple violations",
			func(c *Config) {
				c.Strava.ClientID = ""
				c.Strava.ClientSecret = ""
				c.Sync.FetchLimit = -1
			},
			3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			got := cfg.Validate()
			if len(got) != tt.violations {
				t.Errorf("Validate() = %v, want %d violations", got, tt.violations)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Sync.PollIntervalMinutes != 15 {
		t.Errorf("PollIntervalMinutes = %d, want 15", cfg.Sync.PollIntervalMinutes)
	}
	if cfg.Sync.FetchLimit != 20 {
		t.Errorf("FetchLimit = %d, want 20", cfg.Sync.FetchLimit)
	}
	if len(cfg.Sync.BlockedActivityTypes) != 1 || cfg.Sync.BlockedActivityTypes[0] != "strength_training" {
		t.Errorf("BlockedActivityTypes = %v, want default block list", cfg.Sync.BlockedActivityTypes)
	}
	if cfg.Strava.RedirectURI != "http://localhost:8000/callback" {
		t.Errorf("RedirectURI = %q", cfg.Strava.RedirectURI)
	}
}

// fakeSettings is an in-memory SettingsSource.
type fakeSettings map[string]string

func (f fakeSettings) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := f[key]
	return v, ok, nil
}

func TestApplyStoredOverrides(t *testing.T) {
	ctx := context.Background()
	cfg := validConfig()
	cfg.Sync.BlockedActivityTypes = []string{"strength_training"}

	settings := fakeSettings{
		"blocked_types":         `["yoga","pilates"]`,
		"poll_interval_minutes": "30",
		"fetch_limit":           "50",
	}
	if err := cfg.ApplyStoredOverrides(ctx, settings); err != nil {
		t.Fatalf("ApplyStoredOverrides() error = %v", err)
	}

	if len(cfg.Sync.BlockedActivityTypes) != 2 || cfg.Sync.BlockedActivityTypes[0] != "yoga" {
		t.Errorf("BlockedActivityTypes = %v, want stored override", cfg.Sync.BlockedActivityTypes)
	}
	if cfg.Sync.PollIntervalMinutes != 30 {
		t.Errorf("PollIntervalMinutes = %d, want 30", cfg.Sync.PollIntervalMinutes)
	}
	if cfg.Sync.FetchLimit != 50 {
		t.Errorf("FetchLimit = %d, want 50", cfg.Sync.FetchLimit)
	}
}

func TestApplyStoredOverridesIgnoresMalformed(t *testing.T) {
	ctx := context.Background()
	cfg := validConfig()

	settings := fakeSettings{
		"blocked_types":         `not json`,
		"poll_interval_minutes": "-5",
		"fetch_limit":           "zebra",
	}
	if err := cfg.ApplyStoredOverrides(ctx, settings); err != nil {
		t.Fatalf("ApplyStoredOverrides() error = %v", err)
	}

	if cfg.Sync.PollIntervalMinutes != 15 || cfg.Sync.FetchLimit != 20 {
		t.Errorf("malformed overrides must not change values: %+v", cfg.Sync)
	}
}
