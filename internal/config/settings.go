package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings holds service-level configuration that does not change while the
// process runs (feed endpoint, storage, scheduling, notifications).
type Settings struct {
	Feed     FeedSettings     `mapstructure:"feed"`
	Refresh  RefreshSettings  `mapstructure:"refresh"`
	Storage  StorageSettings  `mapstructure:"storage"`
	Server   ServerSettings   `mapstructure:"server"`
	Telegram TelegramSettings `mapstructure:"telegram"`
	Logging  LoggingSettings  `mapstructure:"logging"`
}

// FeedSettings configures the upstream price API client.
type FeedSettings struct {
	BaseURL     string        `mapstructure:"base_url"`
	UserAgent   string        `mapstructure:"user_agent"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
}

// RefreshSettings configures the recompute cadence.
type RefreshSettings struct {
	Cron           string        `mapstructure:"cron"`
	SearchDebounce time.Duration `mapstructure:"search_debounce"`
}

// StorageSettings configures the SQLite preference store.
type StorageSettings struct {
	DBPath         string `mapstructure:"db_path"`
	HistoryKeepDay int    `mapstructure:"history_keep_days"`
}

// ServerSettings configures the local HTTP API.
type ServerSettings struct {
	Port int `mapstructure:"port"`
}

// TelegramSettings configures pinned-item alerts.
type TelegramSettings struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// LoggingSettings configures console output.
type LoggingSettings struct {
	Quiet bool `mapstructure:"quiet"`
}

// LoadSettings reads settings from an optional file and OSRS_FLIPPER_*
// environment variables. A missing file is not an error.
func LoadSettings(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("OSRS_FLIPPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("feed.base_url", "https://prices.runescape.wiki/api/v1/osrs")
	v.SetDefault("feed.user_agent", "osrs-flipper/1.0 (github.com)")
	v.SetDefault("feed.timeout", "30s")
	v.SetDefault("feed.concurrency", 8)

	v.SetDefault("refresh.cron", "@every 1m")
	v.SetDefault("refresh.search_debounce", "300ms")

	v.SetDefault("storage.db_path", "")
	v.SetDefault("storage.history_keep_days", 7)

	v.SetDefault("server.port", 13380)

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")

	v.SetDefault("logging.quiet", false)
}

// Validate checks settings that would otherwise fail later at runtime.
func (s *Settings) Validate() error {
	if s.Feed.BaseURL == "" {
		return fmt.Errorf("feed.base_url must not be empty")
	}
	if s.Feed.Timeout <= 0 {
		return fmt.Errorf("feed.timeout must be positive")
	}
	if s.Feed.Concurrency <= 0 {
		return fmt.Errorf("feed.concurrency must be positive")
	}
	if s.Refresh.Cron == "" {
		return fmt.Errorf("refresh.cron must not be empty")
	}
	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", s.Server.Port)
	}
	if s.Telegram.Enabled && (s.Telegram.BotToken == "" || s.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id are required when telegram is enabled")
	}
	return nil
}
