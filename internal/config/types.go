package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	NHL      NHLConfig      `json:"nhl"`
	Tracker  TrackerConfig  `json:"tracker"`
	Notifier NotifierConfig `json:"notifier"`
	Health   HealthConfig   `json:"health"`
	Restart  RestartConfig  `json:"restart"`

	// Storage is the optional announcement audit log. Nil means disabled.
	Storage *StorageConfig `json:"storage,omitempty"`
}

// TelegramConfig identifies the publishing target.
//
// Token supports ${ENV} expansion so the secret can stay out of the file.
// ChannelID is the chat the bot posts announcements to.
type TelegramConfig struct {
	Token     string `json:"token"`
	ChannelID int64  `json:"channel_id"`

	// Login retry policy (bounded; exhausting attempts is fatal).
	// Durations are Go duration strings (e.g. "2s", "1m").
	LoginMaxAttempts int    `json:"login_max_attempts,omitempty"`
	LoginBaseDelay   string `json:"login_base_delay,omitempty"`
	LoginMaxDelay    string `json:"login_max_delay,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// NHLConfig controls the schedule/play-by-play provider.
type NHLConfig struct {
	BaseURL string `json:"base_url,omitempty"` // default: https://api-web.nhle.com/v1

	// PollInterval is a Go duration string; default "50s".
	PollInterval string `json:"poll_interval,omitempty"`

	// RequestTimeout bounds a single API call; default "15s".
	RequestTimeout string `json:"request_timeout,omitempty"`
}

// TrackerConfig controls goal state retention and the correction budget.
type TrackerConfig struct {
	// Timezone is the IANA reference time zone for all "today" checks.
	// Default: "America/New_York".
	Timezone string `json:"timezone,omitempty"`

	// Retention is a Go duration string; default "5h".
	Retention string `json:"retention,omitempty"`

	// MaxUpdates caps correction posts per goal. Omitted means the default
	// of 2; an explicit 0 disables corrections.
	MaxUpdates *int `json:"max_updates,omitempty"`

	// CountEmptyUpdates consumes an update slot even when a re-observed
	// goal has no visible diff (no correction is posted either way).
	CountEmptyUpdates bool `json:"count_empty_updates,omitempty"`
}

// NotifierConfig controls the delay-verify-publish workflow.
// All durations are Go duration strings.
type NotifierConfig struct {
	SettleDelay     string `json:"settle_delay,omitempty"`      // default "45s"
	PostSettleDelay string `json:"post_settle_delay,omitempty"` // default "90s"
	LockTimeout     string `json:"lock_timeout,omitempty"`      // default "60s"
	SendTimeout     string `json:"send_timeout,omitempty"`      // default "10s"
	RatePerSec      int    `json:"rate_per_sec,omitempty"`      // default 1
}

// HealthConfig controls the plaintext liveness endpoint.
// When Addr is empty the PORT env var decides the bind address.
type HealthConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
}

// RestartConfig escalates repeated upstream failures to a full restart.
type RestartConfig struct {
	// MaxConsecutiveFailures before the poll loop is torn down; default 5.
	MaxConsecutiveFailures int `json:"max_consecutive_failures,omitempty"`

	// Cooldown before the loop is rebuilt; Go duration string, default "30s".
	Cooldown string `json:"cooldown,omitempty"`
}

// StorageConfig controls the announcement audit log.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./goalbot.db", "keep_days": 14 }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
	KeepDays    int    `json:"keep_days,omitempty"`    // default 14
}

// Validate rejects configs that cannot possibly run. Tunables with sane
// defaults are left alone; only hard requirements fail here.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if cfg.Telegram.ChannelID == 0 {
		return errors.New("telegram.channel_id is required")
	}
	if tz := strings.TrimSpace(cfg.Tracker.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("tracker.timezone: %w", err)
		}
	}
	for _, f := range []struct{ path, raw string }{
		{"telegram.login_base_delay", cfg.Telegram.LoginBaseDelay},
		{"telegram.login_max_delay", cfg.Telegram.LoginMaxDelay},
		{"nhl.poll_interval", cfg.NHL.PollInterval},
		{"nhl.request_timeout", cfg.NHL.RequestTimeout},
		{"tracker.retention", cfg.Tracker.Retention},
		{"notifier.settle_delay", cfg.Notifier.SettleDelay},
		{"notifier.post_settle_delay", cfg.Notifier.PostSettleDelay},
		{"notifier.lock_timeout", cfg.Notifier.LockTimeout},
		{"notifier.send_timeout", cfg.Notifier.SendTimeout},
		{"restart.cooldown", cfg.Restart.Cooldown},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	if cfg.Tracker.MaxUpdates != nil && *cfg.Tracker.MaxUpdates < 0 {
		return errors.New("tracker.max_updates must be >= 0")
	}
	if cfg.Storage != nil {
		d := strings.TrimSpace(cfg.Storage.Driver)
		if d != "" && d != "sqlite" {
			return fmt.Errorf("storage.driver: unknown driver %q", d)
		}
		if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}
