package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveOrder(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := Resolve(dir, "gpt-4.1"); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}

	if err := SaveKey(dir, "", "sk-default-key"); err != nil {
		t.Fatalf("SaveKey default: %v", err)
	}
	key, err := Resolve(dir, "gpt-4.1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if key != "sk-default-key" {
		t.Errorf("expected default key, got %q", key)
	}

	if err := SaveKey(dir, "gpt-4.1", "sk-model-key"); err != nil {
		t.Fatalf("SaveKey model: %v", err)
	}
	key, err = Resolve(dir, "gpt-4.1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if key != "sk-model-key" {
		t.Errorf("model entry should win over default, got %q", key)
	}

	t.Setenv("OPENAI_API_KEY", "sk-env-key")
	key, err = Resolve(dir, "gpt-4.1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if key != "sk-env-key" {
		t.Errorf("environment should win over secrets file, got %q", key)
	}
}

func TestSaveKeyPermissions(t *testing.T) {
	dir := t.TempDir()
	if err := SaveKey(dir, "", "sk-secret"); err != nil {
		t.Fatalf("SaveKey: %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, "secrets.json"))
	if err != nil {
		t.Fatalf("stat secrets: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected 0600 permissions, got %o", perm)
	}
}

func TestSaveKeyRejectsEmpty(t *testing.T) {
	if err := SaveKey(t.TempDir(), "", "   "); err == nil {
		t.Error("expected error for blank key")
	}
}

func TestMask(t *testing.T) {
	if got := Mask("sk-abcdefghijklmnop"); got != "sk-a******mnop" {
		t.Errorf("unexpected mask %q", got)
	}
	if got := Mask("short"); got != "*****" {
		t.Errorf("short keys must be fully masked, got %q", got)
	}
}
