// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/refracta/PEAK-MangHoMagnet/internal/magnet"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Validation ValidationConfig `mapstructure:"validation"`
	Join       JoinConfig       `mapstructure:"join"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs the board poll loop.
type CrawlerConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	ListingURL          string `mapstructure:"listing_url"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds"`
	MaxPostsPerPoll     int    `mapstructure:"max_posts_per_poll"`
	MaxRegistryEntries  int    `mapstructure:"max_registry_entries"`
	UserAgent           string `mapstructure:"user_agent"`
	LogFoundLinks       bool   `mapstructure:"log_found_links"`
	ViewDeltaThreshold  int    `mapstructure:"view_delta_threshold"`
	FetchTimeoutSeconds int    `mapstructure:"fetch_timeout_seconds"`
	DetailFetchDelayMS  int    `mapstructure:"detail_fetch_delay_ms"`
}

// ValidationConfig governs the lobby validity checks.
type ValidationConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Mode            string `mapstructure:"mode"`
	IntervalSeconds int    `mapstructure:"interval_seconds"`
	ExpectedAppID   uint32 `mapstructure:"expected_app_id"`
	RequestURL      string `mapstructure:"request_url"`
}

// JoinConfig governs automatic lobby joining.
type JoinConfig struct {
	Auto            bool `mapstructure:"auto"`
	CooldownSeconds int  `mapstructure:"cooldown_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MAGNET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.enabled", true)
	v.SetDefault("crawler.listing_url", "https://gall.dcinside.com/mgallery/board/lists?id=bingbongcrew")
	v.SetDefault("crawler.poll_interval_seconds", 5)
	v.SetDefault("crawler.max_posts_per_poll", 50)
	v.SetDefault("crawler.max_registry_entries", 200)
	v.SetDefault("crawler.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) PEAK-MangHoMagnet/1.0")
	v.SetDefault("crawler.log_found_links", true)
	v.SetDefault("crawler.view_delta_threshold", 2)
	v.SetDefault("crawler.fetch_timeout_seconds", 10)
	v.SetDefault("crawler.detail_fetch_delay_ms", 200)
	v.SetDefault("validation.enabled", true)
	v.SetDefault("validation.mode", "format-only")
	v.SetDefault("validation.interval_seconds", 30)
	v.SetDefault("validation.expected_app_id", 0)
	v.SetDefault("validation.request_url", "")
	v.SetDefault("join.auto", false)
	v.SetDefault("join.cooldown_seconds", 10)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.ListingURL == "" {
		return fmt.Errorf("crawler.listing_url must be set")
	}
	if c.Crawler.PollIntervalSeconds < 1 {
		return fmt.Errorf("crawler.poll_interval_seconds must be >= 1")
	}
	if c.Crawler.MaxPostsPerPoll < 1 {
		return fmt.Errorf("crawler.max_posts_per_poll must be > 0")
	}
	if c.Crawler.MaxRegistryEntries < 1 {
		return fmt.Errorf("crawler.max_registry_entries must be > 0")
	}
	if c.Crawler.ViewDeltaThreshold < 0 {
		return fmt.Errorf("crawler.view_delta_threshold must be >= 0")
	}
	if c.Crawler.DetailFetchDelayMS < 0 {
		return fmt.Errorf("crawler.detail_fetch_delay_ms must be >= 0")
	}
	if c.Validation.IntervalSeconds < 1 {
		return fmt.Errorf("validation.interval_seconds must be >= 1")
	}
	if c.Join.CooldownSeconds < 0 {
		return fmt.Errorf("join.cooldown_seconds must be >= 0")
	}
	switch magnet.Mode(c.Validation.Mode) {
	case magnet.ModeNone, magnet.ModeFormatOnly, magnet.ModeExternal:
	default:
		return fmt.Errorf("validation.mode must be none, format-only, or external")
	}
	return nil
}

// PollInterval returns the crawl cadence as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Crawler.PollIntervalSeconds) * time.Second
}

// FetchTimeout returns the per-request fetch budget as a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Crawler.FetchTimeoutSeconds) * time.Second
}

// DetailFetchDelay returns the spacing between detail-page fetches as
// a duration.
func (c Config) DetailFetchDelay() time.Duration {
	return time.Duration(c.Crawler.DetailFetchDelayMS) * time.Millisecond
}

// ValidationInterval returns the per-entry revalidation gap as a duration.
func (c Config) ValidationInterval() time.Duration {
	return time.Duration(c.Validation.IntervalSeconds) * time.Second
}

// JoinCooldown returns the global automatic join gap as a duration.
func (c Config) JoinCooldown() time.Duration {
	return time.Duration(c.Join.CooldownSeconds) * time.Second
}
