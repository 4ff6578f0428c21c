package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// AgentConfig is the per-agent sampling and behavior configuration, persisted
// as config.yaml inside the agent's directory.
type AgentConfig struct {
	Model            string  `yaml:"model"`
	Temperature      float64 `yaml:"temperature"`
	MaxTokens        int     `yaml:"max_tokens"`
	MaxHistorySize   int     `yaml:"max_history_size"`
	Stream           bool    `yaml:"stream"`
	SystemPrompt     string  `yaml:"system_prompt,omitempty"`
	ResponseFormat   string  `yaml:"response_format"`
	TopP             float64 `yaml:"top_p"`
	FrequencyPenalty float64 `yaml:"frequency_penalty"`
	PresencePenalty  float64 `yaml:"presence_penalty"`
	CreatedAt        string  `yaml:"created_at"`
	UpdatedAt        string  `yaml:"updated_at"`
}

// DefaultAgentConfig returns the default configuration for a model, using the
// registry's token limit. Unknown models fall back to gpt-4.1.
func DefaultAgentConfig(model string) AgentConfig {
	if !IsValidModel(model) {
		model = "gpt-4.1"
	}
	info, _ := GetModelInfo(model)
	now := time.Now().Format(time.RFC3339)
	return AgentConfig{
		Model:          model,
		Temperature:    1.0,
		MaxTokens:      info.MaxTokens,
		MaxHistorySize: 1000,
		Stream:         true,
		ResponseFormat: "text",
		TopP:           1.0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func LoadAgentConfig(agentDir string) (AgentConfig, error) {
	path := filepath.Join(agentDir, "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return AgentConfig{}, err
	}
	var cfg AgentConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AgentConfig{}, fmt.Errorf("parse agent config: %w", err)
	}
	return cfg, nil
}

func SaveAgentConfig(agentDir string, cfg AgentConfig) error {
	cfg.UpdatedAt = time.Now().Format(time.RFC3339)
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(agentDir, "config.yaml"), data, 0o644)
}

// Validate returns the list of problems with the configuration, empty when
// everything is in range.
func (c AgentConfig) Validate() []string {
	var issues []string
	if !ValidTemperature(c.Temperature) {
		issues = append(issues, fmt.Sprintf("invalid temperature: %v", c.Temperature))
	}
	if !ValidMaxTokens(c.MaxTokens) {
		issues = append(issues, fmt.Sprintf("invalid max_tokens: %d", c.MaxTokens))
	}
	if !IsValidModel(c.Model) {
		issues = append(issues, fmt.Sprintf("invalid model: %s", c.Model))
	}
	if c.MaxHistorySize <= 0 {
		issues = append(issues, fmt.Sprintf("invalid max_history_size: %d", c.MaxHistorySize))
	}
	return issues
}

var agentIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func ValidAgentID(id string) bool {
	return id != "" && agentIDPattern.MatchString(id)
}

func ValidTemperature(t float64) bool {
	return t >= 0.0 && t <= 2.0
}

func ValidMaxTokens(n int) bool {
	return n > 0
}
