// UniAgent - Unified OpenAI chat agent for the terminal
// License: MIT
//
// Copyright (c) 2026 UniAgent contributors

// Package credentials resolves API keys. Environment wins over the secrets
// file, and per-model entries win over the shared default.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	envKey      = "OPENAI_API_KEY"
	secretsFile = "secrets.json"
	defaultSlot = "default"
)

// ErrNoAPIKey means no key was found in the environment or secrets file.
var ErrNoAPIKey = errors.New("no API key configured: set OPENAI_API_KEY or run onboard")

// Resolve returns the API key for model, checking in order: the environment,
// the model's entry in secrets.json under dir, then the "default" entry.
func Resolve(dir, model string) (string, error) {
	if key := strings.TrimSpace(os.Getenv(envKey)); key != "" {
		return key, nil
	}

	secrets, err := load(dir)
	if err != nil {
		return "", err
	}
	if key := strings.TrimSpace(secrets[model]); key != "" {
		return key, nil
	}
	if key := strings.TrimSpace(secrets[defaultSlot]); key != "" {
		return key, nil
	}
	return "", ErrNoAPIKey
}

// SaveKey stores a key in secrets.json under dir. Empty slot writes the
// shared default.
func SaveKey(dir, slot, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("refusing to save empty API key")
	}
	if slot == "" {
		slot = defaultSlot
	}

	secrets, err := load(dir)
	if err != nil {
		return err
	}
	secrets[slot] = key

	data, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return fmt.Errorf("encode secrets: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create secrets dir: %w", err)
	}
	// Keys at rest stay owner-only.
	if err := os.WriteFile(filepath.Join(dir, secretsFile), data, 0o600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}
	return nil
}

func load(dir string) (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, secretsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read secrets: %w", err)
	}
	secrets := map[string]string{}
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parse secrets: %w", err)
	}
	return secrets, nil
}

// Mask renders a key safe for display, keeping only a short prefix and suffix.
func Mask(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", 6) + key[len(key)-4:]
}
