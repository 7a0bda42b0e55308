// Package config defines process configuration and how it is loaded.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address for serve, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Countdown registry.
	MaxActiveTimers              int `koanf:"max_active_timers"`
	NearEndThresholdMinutes      int `koanf:"near_end_threshold_minutes"`
	SweepPeriodMS                int `koanf:"sweep_period_ms"`
	RedrawPeriodMS               int `koanf:"redraw_period_ms"`
	LegacyDefaultDurationMinutes int `koanf:"legacy_default_duration_minutes"`

	// Metronome.
	LookAheadWindowMS     int     `koanf:"look_ahead_window_ms"`
	PulseVisualDurationMS int     `koanf:"pulse_visual_duration_ms"`
	FramePeriodMS         int     `koanf:"frame_period_ms"`
	MinIntervalMS         int     `koanf:"min_interval_ms"`
	SoundEnabled          bool    `koanf:"sound_enabled"`
	VibrationEnabled      bool    `koanf:"vibration_enabled"`
	ToneFrequencyHz       float64 `koanf:"tone_frequency_hz"`
	ToneDurationMS        int     `koanf:"tone_duration_ms"`

	// Persistence.
	StoreBackend   string `koanf:"store_backend"`
	StoreDir       string `koanf:"store_dir"`
	StoreKey       string `koanf:"store_key"`
	StoreRedisAddr string `koanf:"store_redis_addr"`
	StoreRedisDB   int    `koanf:"store_redis_db"`

	// Notifications.
	NotifyBackends         []string `koanf:"notify_backends"`
	NotifyWebhookURL       string   `koanf:"notify_webhook_url"`
	NotifyWebhookTimeoutMS int      `koanf:"notify_webhook_timeout_ms"`
	NotifyMQTTBroker       string   `koanf:"notify_mqtt_broker"`
	NotifyMQTTTopic        string   `koanf:"notify_mqtt_topic"`
	NotifyMQTTClientID     string   `koanf:"notify_mqtt_client_id"`
	NotifyQueueSize        int      `koanf:"notify_queue_size"`
	NotifyDedupeSize       int      `koanf:"notify_dedupe_size"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:                     "info",
		Addr:                         ":9080",
		MaxActiveTimers:              7,
		NearEndThresholdMinutes:      5,
		SweepPeriodMS:                10_000,
		RedrawPeriodMS:               1_000,
		LegacyDefaultDurationMinutes: 60,
		LookAheadWindowMS:            100,
		PulseVisualDurationMS:        150,
		FramePeriodMS:                16,
		MinIntervalMS:                10,
		SoundEnabled:                 true,
		VibrationEnabled:             false,
		ToneFrequencyHz:              800,
		ToneDurationMS:               100,
		StoreBackend:                 StoreFile,
		StoreDir:                     "~/.dripcue",
		StoreKey:                     "drip-calc-timers",
		StoreRedisAddr:               "localhost:6379",
		NotifyBackends:               []string{"log"},
		NotifyWebhookTimeoutMS:       5_000,
		NotifyMQTTTopic:              "dripcue/notifications",
		NotifyMQTTClientID:           "dripcue",
		NotifyQueueSize:              64,
		NotifyDedupeSize:             256,
	}
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	positive := []struct {
		name string
		v    int
	}{
		{"max_active_timers", c.MaxActiveTimers},
		{"near_end_threshold_minutes", c.NearEndThresholdMinutes},
		{"sweep_period_ms", c.SweepPeriodMS},
		{"redraw_period_ms", c.RedrawPeriodMS},
		{"legacy_default_duration_minutes", c.LegacyDefaultDurationMinutes},
		{"look_ahead_window_ms", c.LookAheadWindowMS},
		{"pulse_visual_duration_ms", c.PulseVisualDurationMS},
		{"frame_period_ms", c.FramePeriodMS},
		{"tone_duration_ms", c.ToneDurationMS},
		{"notify_queue_size", c.NotifyQueueSize},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, p.name, p.v)
		}
	}
	if c.MinIntervalMS < 0 {
		return fmt.Errorf("%w: min_interval_ms must not be negative", ErrInvalidConfig)
	}
	if c.ToneFrequencyHz <= 0 {
		return fmt.Errorf("%w: tone_frequency_hz must be positive", ErrInvalidConfig)
	}
	if c.FramePeriodMS >= c.LookAheadWindowMS {
		return fmt.Errorf("%w: frame_period_ms must be shorter than look_ahead_window_ms", ErrInvalidConfig)
	}
	if !slices.Contains([]string{StoreMemory, StoreFile, StoreSQLite, StoreRedis}, c.StoreBackend) {
		return fmt.Errorf("%w: unknown store_backend %q", ErrInvalidConfig, c.StoreBackend)
	}
	if strings.TrimSpace(c.StoreKey) == "" {
		return fmt.Errorf("%w: store_key must not be empty", ErrInvalidConfig)
	}
	for _, b := range c.NotifyBackends {
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "log", "":
		case "webhook":
			if c.NotifyWebhookURL == "" {
				return fmt.Errorf("%w: notify_webhook_url is required for the webhook backend", ErrInvalidConfig)
			}
		case "mqtt":
			if c.NotifyMQTTBroker == "" {
				return fmt.Errorf("%w: notify_mqtt_broker is required for the mqtt backend", ErrInvalidConfig)
			}
		default:
			return fmt.Errorf("%w: unknown notify backend %q", ErrInvalidConfig, b)
		}
	}
	return nil
}

// NearEndThreshold returns the near-end window as a Duration.
func (c *Config) NearEndThreshold() time.Duration {
	return time.Duration(c.NearEndThresholdMinutes) * time.Minute
}

// SweepPeriod returns the sweep driver period.
func (c *Config) SweepPeriod() time.Duration { return ms(c.SweepPeriodMS) }

// RedrawPeriod returns the redraw driver period.
func (c *Config) RedrawPeriod() time.Duration { return ms(c.RedrawPeriodMS) }

// LegacyDefaultDuration returns the backfill duration for legacy records.
func (c *Config) LegacyDefaultDuration() time.Duration {
	return time.Duration(c.LegacyDefaultDurationMinutes) * time.Minute
}

// LookAhead returns the scheduler look-ahead window.
func (c *Config) LookAhead() time.Duration { return ms(c.LookAheadWindowMS) }

// PulseVisualDuration returns how long the visual pulse stays on.
func (c *Config) PulseVisualDuration() time.Duration { return ms(c.PulseVisualDurationMS) }

// FramePeriod returns the scheduler tick period.
func (c *Config) FramePeriod() time.Duration { return ms(c.FramePeriodMS) }

// MinInterval returns the smallest beat interval the scheduler accepts.
func (c *Config) MinInterval() time.Duration { return ms(c.MinIntervalMS) }

// ToneDuration returns the length of each tone blip.
func (c *Config) ToneDuration() time.Duration { return ms(c.ToneDurationMS) }

// NotifyWebhookTimeout returns the per-request webhook timeout.
func (c *Config) NotifyWebhookTimeout() time.Duration { return ms(c.NotifyWebhookTimeoutMS) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
