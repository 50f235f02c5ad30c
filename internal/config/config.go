package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads a YAML config file, applies defaults and validates it.
// Validation failures here are startup-fatal; nothing re-validates the
// configuration per tick.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// RenderYAML dumps the resolved configuration with secrets masked, for
// the startup summary and the debug endpoint.
func (c *Config) RenderYAML() (string, error) {
	masked := *c
	if masked.Notify.Telegram.BotToken != "" {
		masked.Notify.Telegram.BotToken = "****"
	}
	if masked.Notify.Slack.WebhookURL != "" {
		masked.Notify.Slack.WebhookURL = "****"
	}
	out, err := yaml.Marshal(&masked)
	if err != nil {
		return "", fmt.Errorf("rendering config failed: %w", err)
	}
	return string(out), nil
}
