// Package config loads service configuration from the environment (with the
// VACATION_ prefix) and an optional vacation.yaml file next to the binary.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	// ListenAddr is the HTTP bind address.
	ListenAddr string `mapstructure:"listen_addr"`
	// DBPath is the SQLite database path (":memory:" for in-memory).
	DBPath string `mapstructure:"db_path"`
	// SlackBaseURL overrides the Web API endpoint (tests, proxies).
	SlackBaseURL string `mapstructure:"slack_base_url"`
	// OpsWorkspaceID and OpsChannelID address the operations channel that
	// receives failure reports. Reporting is disabled when either is empty.
	OpsWorkspaceID string `mapstructure:"ops_workspace_id"`
	OpsChannelID   string `mapstructure:"ops_channel_id"`
	// FeedBuffer is the change-feed queue's initial capacity.
	FeedBuffer int `mapstructure:"feed_buffer"`
}

// Load reads configuration. Environment variables win over the file,
// defaults fill the rest.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VACATION")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("db_path", "./vacations.db")
	v.SetDefault("slack_base_url", "https://slack.com/api")
	v.SetDefault("ops_workspace_id", "")
	v.SetDefault("ops_channel_id", "")
	v.SetDefault("feed_buffer", 256)

	v.SetConfigName("vacation")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
