// UniAgent - Unified OpenAI chat agent for the terminal
// License: MIT
//
// Copyright (c) 2026 UniAgent contributors

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// FlexibleStringSlice is a []string that also accepts YAML numbers, so
// allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalYAML(value *yaml.Node) error {
	var ss []string
	if err := value.Decode(&ss); err == nil {
		*f = ss
		return nil
	}

	var raw []interface{}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case int:
			result = append(result, fmt.Sprintf("%d", val))
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Agents      AgentsConfig      `yaml:"agents"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Channels    ChannelsConfig    `yaml:"channels"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	mu          sync.RWMutex
}

type AgentsConfig struct {
	Dir          string `yaml:"dir" env:"UNIAGENT_AGENTS_DIR"`
	DefaultModel string `yaml:"default_model" env:"UNIAGENT_AGENTS_DEFAULT_MODEL"`
}

type ProvidersConfig struct {
	OpenAI ProviderConfig `yaml:"openai"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key" env:"OPENAI_API_KEY"`
	APIBase string `yaml:"api_base" env:"UNIAGENT_PROVIDERS_OPENAI_API_BASE"`
	Proxy   string `yaml:"proxy,omitempty" env:"UNIAGENT_PROVIDERS_OPENAI_PROXY"`
}

type ChannelsConfig struct {
	Discord DiscordConfig `yaml:"discord"`
}

type DiscordConfig struct {
	Token     string              `yaml:"token" env:"UNIAGENT_CHANNELS_DISCORD_TOKEN"`
	AllowFrom FlexibleStringSlice `yaml:"allow_from" env:"UNIAGENT_CHANNELS_DISCORD_ALLOW_FROM"`
}

type MaintenanceConfig struct {
	// BackupCron schedules gateway-mode history backups. Standard five-field
	// cron expression; empty disables the sweep.
	BackupCron string `yaml:"backup_cron" env:"UNIAGENT_MAINTENANCE_BACKUP_CRON"`
	MaxBackups int    `yaml:"max_backups" env:"UNIAGENT_MAINTENANCE_MAX_BACKUPS"`
}

func DefaultConfig() *Config {
	return &Config{
		Agents: AgentsConfig{
			Dir:          "~/.uniagent/agents",
			DefaultModel: "gpt-4.1",
		},
		Providers: ProvidersConfig{
			OpenAI: ProviderConfig{
				APIBase: "https://api.openai.com/v1",
			},
		},
		Channels: ChannelsConfig{
			Discord: DiscordConfig{
				AllowFrom: FlexibleStringSlice{},
			},
		},
		Maintenance: MaintenanceConfig{
			BackupCron: "0 * * * *",
			MaxBackups: 10,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// AgentsPath returns the expanded directory that holds per-agent state.
func (c *Config) AgentsPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Agents.Dir)
}

func (c *Config) GetAPIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Providers.OpenAI.APIKey
}

func (c *Config) GetAPIBase() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Providers.OpenAI.APIBase != "" {
		return c.Providers.OpenAI.APIBase
	}
	return "https://api.openai.com/v1"
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
