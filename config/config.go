// Package config loads the shell's static configuration: where the remote app
// lives, which hosts count as in-app, and the knobs for presence, updates and
// logging. User preferences live in package prefs, not here.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppName names the config directory and the socket/log files under it.
const AppName = "kosmi"

type PresenceConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	ClientID string        `mapstructure:"client_id"`
	Interval time.Duration `mapstructure:"interval"`
}

type UpdateConfig struct {
	FeedURL      string `mapstructure:"feed_url"`
	CheckOnStart bool   `mapstructure:"check_on_start"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type Config struct {
	EntryURL       string         `mapstructure:"entry_url"`
	AllowedDomains []string       `mapstructure:"allowed_domains"`
	LoadTimeout    time.Duration  `mapstructure:"load_timeout"`
	Presence       PresenceConfig `mapstructure:"presence"`
	Update         UpdateConfig   `mapstructure:"update"`
	Log            LogConfig      `mapstructure:"log"`
}

func Default() *Config {
	return &Config{
		EntryURL:       "https://app.kosmi.io/",
		AllowedDomains: []string{"kosmi.io", "kosmi.to"},
		LoadTimeout:    30 * time.Second,
		Presence: PresenceConfig{
			Enabled:  true,
			ClientID: "1424391198860382310",
			Interval: 15 * time.Second,
		},
		Update: UpdateConfig{
			FeedURL:      "https://dl.kosmi.io/desktop",
			CheckOnStart: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Dir returns the per-user directory holding config, preferences, logs and
// the instance socket.
func Dir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir, _ = os.UserHomeDir()
	}
	return filepath.Join(dir, AppName)
}

// Load reads config.toml from cfgFile (or the default directory) and applies
// KOSMI_* environment overrides. A missing file is not an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	def := Default()
	v.SetDefault("entry_url", def.EntryURL)
	v.SetDefault("allowed_domains", def.AllowedDomains)
	v.SetDefault("load_timeout", def.LoadTimeout)
	v.SetDefault("presence.enabled", def.Presence.Enabled)
	v.SetDefault("presence.client_id", def.Presence.ClientID)
	v.SetDefault("presence.interval", def.Presence.Interval)
	v.SetDefault("update.feed_url", def.Update.FeedURL)
	v.SetDefault("update.check_on_start", def.Update.CheckOnStart)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.file", def.Log.File)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(Dir())
	}

	v.SetEnvPrefix("KOSMI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values the shell cannot start without.
func (c *Config) Validate() error {
	u, err := url.Parse(c.EntryURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid entry_url %q", c.EntryURL)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("entry_url must be http(s), got %q", u.Scheme)
	}
	if len(c.AllowedDomains) == 0 {
		return errors.New("allowed_domains must not be empty")
	}
	if c.LoadTimeout <= 0 {
		return fmt.Errorf("load_timeout must be positive, got %s", c.LoadTimeout)
	}
	if c.Presence.Enabled {
		if c.Presence.ClientID == "" {
			return errors.New("presence.client_id is required when presence is enabled")
		}
		if c.Presence.Interval <= 0 {
			return fmt.Errorf("presence.interval must be positive, got %s", c.Presence.Interval)
		}
	}
	return nil
}
