package config

import (
	"sort"
	"time"
)

// APIFormat selects how message content is encoded on the wire. Standard
// models take plain string content; structured models take a list of typed
// text parts and use the max_completion_tokens / response_format fields.
type APIFormat string

const (
	FormatStandard   APIFormat = "standard"
	FormatStructured APIFormat = "structured"
)

type ModelInfo struct {
	Name        string
	Description string
	Timeout     time.Duration
	MaxTokens   int
	APIFormat   APIFormat
	CostTier    string
}

var supportedModels = map[string]ModelInfo{
	"gpt-4.1": {
		Name:        "GPT-4.1",
		Description: "Advanced GPT-4.1 model with comprehensive capabilities",
		Timeout:     300 * time.Second,
		MaxTokens:   32768,
		APIFormat:   FormatStandard,
		CostTier:    "premium",
	},
	"gpt-4.1-mini": {
		Name:        "GPT-4.1 Mini",
		Description: "Compact GPT-4.1-mini model balancing performance and efficiency",
		Timeout:     180 * time.Second,
		MaxTokens:   32768,
		APIFormat:   FormatStructured,
		CostTier:    "standard",
	},
	"gpt-4.1-nano": {
		Name:        "GPT-4.1 Nano",
		Description: "Lightweight GPT-4.1 model optimized for speed",
		Timeout:     120 * time.Second,
		MaxTokens:   32768,
		APIFormat:   FormatStandard,
		CostTier:    "economy",
	},
}

func IsValidModel(model string) bool {
	_, ok := supportedModels[model]
	return ok
}

func ListModels() []string {
	models := make([]string, 0, len(supportedModels))
	for m := range supportedModels {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}

func GetModelInfo(model string) (ModelInfo, bool) {
	info, ok := supportedModels[model]
	return info, ok
}

// ModelTimeout returns the per-model request timeout, falling back to the
// most conservative default for unknown models.
func ModelTimeout(model string) time.Duration {
	if info, ok := supportedModels[model]; ok {
		return info.Timeout
	}
	return 120 * time.Second
}

func ModelDisplayName(model string) string {
	if info, ok := supportedModels[model]; ok {
		return info.Name
	}
	return model
}

func ModelAPIFormat(model string) APIFormat {
	if info, ok := supportedModels[model]; ok {
		return info.APIFormat
	}
	return FormatStandard
}
